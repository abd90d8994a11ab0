package store

import (
	"context"
	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/lefinal/festfinder/errors"
	"strings"
	"time"
)

// Registration of a participant for a sub-event of a festival.
type Registration struct {
	// FestivalID is the id of the festival the sub-event belongs to.
	FestivalID string
	// SubEvent is the position of the sub-event in the festival.
	SubEvent int
	// Participant that registered.
	Participant string
	// RegisteredAt is the timestamp of the first registration in milliseconds
	// since epoch.
	RegisteredAt int64
}

// RegisterForSubEvent registers the participant for the sub-event at the given
// position of the festival. Registering again has no effect and returns the
// existing Registration. The returned bool is true if the registration was
// newly created. If the festival or sub-event does not exist, an
// errors.ErrNotFound error is returned.
func (m *Mall) RegisterForSubEvent(ctx context.Context, festivalID string, subEvent int, participant string) (Registration, bool, error) {
	details := errors.Details{
		"festival_id": festivalID,
		"sub_event":   subEvent,
	}
	participant = strings.TrimSpace(participant)
	if participant == "" {
		return Registration{}, false, errors.NewBadRequestErr("missing participant", nil, details)
	}
	if _, err := uuid.Parse(festivalID); err != nil || subEvent < 0 {
		return Registration{}, false, errors.NewResourceNotFoundError("sub-event not found", details)
	}
	// Begin tx.
	tx, err := m.db.Begin(ctx)
	if err != nil {
		return Registration{}, false, errors.NewDBTxBeginError(err)
	}
	defer m.rollbackTx(ctx, tx, "register for sub-event failed")
	// Assure sub-event exists.
	q, _, err := m.dialect.From(goqu.T("sub_events")).
		Select(goqu.C("position")).
		Where(goqu.C("festival").Eq(festivalID),
			goqu.C("position").Eq(subEvent)).ToSQL()
	if err != nil {
		return Registration{}, false, errors.NewQueryToSQLError(err, details)
	}
	var position int
	err = tx.QueryRow(ctx, q).Scan(&position)
	if err != nil {
		if err == pgx.ErrNoRows {
			return Registration{}, false, errors.NewResourceNotFoundError("sub-event not found", details)
		}
		return Registration{}, false, errors.NewScanDBRowError(err, "scan sub-event", q)
	}
	// Register.
	q, err = registerQuery(m.dialect, Registration{
		FestivalID:   festivalID,
		SubEvent:     subEvent,
		Participant:  participant,
		RegisteredAt: time.Now().UnixMilli(),
	})
	if err != nil {
		return Registration{}, false, errors.NewQueryToSQLError(err, details)
	}
	result, err := tx.Exec(ctx, q)
	if err != nil {
		return Registration{}, false, errors.NewExecQueryError(err, "exec register query", q)
	}
	created := result.RowsAffected() == 1
	// Retrieve actual registration.
	q, _, err = m.dialect.From(goqu.T("registrations")).
		Select(goqu.C("registered_at")).
		Where(goqu.C("festival").Eq(festivalID),
			goqu.C("position").Eq(subEvent),
			goqu.C("participant").Eq(participant)).ToSQL()
	if err != nil {
		return Registration{}, false, errors.NewQueryToSQLError(err, details)
	}
	registration := Registration{
		FestivalID:  festivalID,
		SubEvent:    subEvent,
		Participant: participant,
	}
	err = tx.QueryRow(ctx, q).Scan(&registration.RegisteredAt)
	if err != nil {
		return Registration{}, false, errors.NewScanDBRowError(err, "scan registration", q)
	}
	// Commit.
	err = tx.Commit(ctx)
	if err != nil {
		return Registration{}, false, errors.NewDBTxCommitError(err)
	}
	return registration, created, nil
}

// registerQuery builds the insert query for the Registration that does nothing
// if the participant is already registered for the sub-event.
func registerQuery(dialect goqu.DialectWrapper, registration Registration) (string, error) {
	q, _, err := dialect.Insert(goqu.T("registrations")).Rows(goqu.Record{
		"festival":      registration.FestivalID,
		"position":      registration.SubEvent,
		"participant":   registration.Participant,
		"registered_at": registration.RegisteredAt,
	}).OnConflict(goqu.DoNothing()).ToSQL()
	return q, err
}
