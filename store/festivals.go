package store

import (
	"context"
	"fmt"
	"github.com/doug-martin/goqu/v9"
	"github.com/gobuffalo/nulls"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/lefinal/festfinder/errors"
	"go.uber.org/multierr"
	"strings"
	"time"
)

// SubEvent is a competition or activity within a Festival.
type SubEvent struct {
	// Name of the sub-event, for example "Robotics".
	Name string
	// Type of the sub-event, for example "Competition".
	Type string
}

// FestivalDraft holds all information needed for creating a Festival.
type FestivalDraft struct {
	// College that organizes the festival.
	College string
	// EventName is the name of the festival.
	EventName string
	// Location is the city the festival takes place in.
	Location string
	// Dates is the date range as entered by organizers, for example "25th to
	// 26th Nov 25".
	Dates string
	// Type of the festival, for example "Cultural" or "Technical".
	Type string
	// Competition is the optional competition type.
	Competition nulls.String
	// SubEvents in display order.
	SubEvents []SubEvent
}

// Validate the FestivalDraft. All missing fields are reported in a single
// errors.ErrBadRequest error.
func (draft FestivalDraft) Validate() error {
	var err error
	required := map[string]string{
		"college":    draft.College,
		"event_name": draft.EventName,
		"location":   draft.Location,
		"dates":      draft.Dates,
		"type":       draft.Type,
	}
	for _, field := range []string{"college", "event_name", "location", "dates", "type"} {
		if strings.TrimSpace(required[field]) == "" {
			err = multierr.Append(err, fmt.Errorf("missing %s", field))
		}
	}
	for i, sub := range draft.SubEvents {
		if strings.TrimSpace(sub.Name) == "" {
			err = multierr.Append(err, fmt.Errorf("missing name for sub-event %d", i))
		}
	}
	if err != nil {
		return errors.NewBadRequestErr("invalid festival", err, errors.Details{
			"college":    draft.College,
			"event_name": draft.EventName,
		})
	}
	return nil
}

// Festival is a stored festival.
type Festival struct {
	// ID identifies the festival.
	ID string
	// College that organizes the festival.
	College string
	// EventName is the name of the festival.
	EventName string
	// Location is the city the festival takes place in.
	Location string
	// Dates is the date range as entered by organizers.
	Dates string
	// Type of the festival.
	Type string
	// Competition is the optional competition type.
	Competition nulls.String
	// CreatedAt is the creation timestamp in milliseconds since epoch. Might be
	// missing for imported festivals.
	CreatedAt nulls.Int64
	// SubEvents in display order.
	SubEvents []SubEvent
}

// festivalColumns are the columns selected for scanning a Festival with
// scanFestival.
var festivalColumns = []interface{}{
	goqu.C("id"),
	goqu.C("college"),
	goqu.C("event_name"),
	goqu.C("location"),
	goqu.C("dates"),
	goqu.C("type"),
	goqu.C("competition"),
	goqu.C("created_at"),
}

// scanner is implemented by pgx.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanFestival(row scanner) (Festival, error) {
	var festival Festival
	err := row.Scan(&festival.ID,
		&festival.College,
		&festival.EventName,
		&festival.Location,
		&festival.Dates,
		&festival.Type,
		&festival.Competition,
		&festival.CreatedAt)
	festival.SubEvents = make([]SubEvent, 0)
	return festival, err
}

// Festivals retrieves all stored festivals including their sub-events.
func (m *Mall) Festivals(ctx context.Context) ([]Festival, error) {
	// Build query.
	q, _, err := m.dialect.From(goqu.T("festivals")).
		Select(festivalColumns...).
		Order(goqu.C("created_at").Asc().NullsFirst(), goqu.C("id").Asc()).ToSQL()
	if err != nil {
		return nil, errors.NewQueryToSQLError(err, nil)
	}
	// Query.
	rows, err := m.db.Query(ctx, q)
	if err != nil {
		return nil, errors.NewExecQueryError(err, "query festivals", q)
	}
	defer rows.Close()
	// Scan.
	festivals := make([]Festival, 0)
	festivalsByID := make(map[string]int)
	for rows.Next() {
		festival, err := scanFestival(rows)
		if err != nil {
			return nil, errors.NewScanDBRowError(err, "scan festival", q)
		}
		festivalsByID[festival.ID] = len(festivals)
		festivals = append(festivals, festival)
	}
	rows.Close()
	// Add sub-events.
	subEvents, err := m.subEvents(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "sub-events", nil)
	}
	for festivalID, festivalSubEvents := range subEvents {
		i, ok := festivalsByID[festivalID]
		if !ok {
			continue
		}
		festivals[i].SubEvents = festivalSubEvents
	}
	return festivals, nil
}

// FestivalByID retrieves the Festival with the given id. If none was found, an
// errors.ErrNotFound error is returned.
func (m *Mall) FestivalByID(ctx context.Context, festivalID string) (Festival, error) {
	if _, err := uuid.Parse(festivalID); err != nil {
		return Festival{}, errors.NewResourceNotFoundError("festival not found", errors.Details{"festival_id": festivalID})
	}
	// Build query.
	q, _, err := m.dialect.From(goqu.T("festivals")).
		Select(festivalColumns...).
		Where(goqu.C("id").Eq(festivalID)).ToSQL()
	if err != nil {
		return Festival{}, errors.NewQueryToSQLError(err, errors.Details{"festival_id": festivalID})
	}
	// Query.
	rows, err := m.db.Query(ctx, q)
	if err != nil {
		return Festival{}, errors.NewExecQueryError(err, "query festival", q)
	}
	defer rows.Close()
	// Scan.
	if !rows.Next() {
		return Festival{}, errors.NewResourceNotFoundError("festival not found", errors.Details{"festival_id": festivalID})
	}
	festival, err := scanFestival(rows)
	if err != nil {
		return Festival{}, errors.NewScanDBRowError(err, "scan festival", q)
	}
	rows.Close()
	// Add sub-events.
	subEvents, err := m.subEvents(ctx, goqu.C("festival").Eq(festivalID))
	if err != nil {
		return Festival{}, errors.Wrap(err, "sub-events", errors.Details{"festival_id": festivalID})
	}
	if festivalSubEvents, ok := subEvents[festivalID]; ok {
		festival.SubEvents = festivalSubEvents
	}
	return festival, nil
}

// subEvents retrieves sub-events grouped by their festival id. If the given
// expression is not nil, it is used for filtering.
func (m *Mall) subEvents(ctx context.Context, filter goqu.Expression) (map[string][]SubEvent, error) {
	// Build query.
	qb := m.dialect.From(goqu.T("sub_events")).
		Select(goqu.C("festival"),
			goqu.C("name"),
			goqu.C("type")).
		Order(goqu.C("festival").Asc(), goqu.C("position").Asc())
	if filter != nil {
		qb = qb.Where(filter)
	}
	q, _, err := qb.ToSQL()
	if err != nil {
		return nil, errors.NewQueryToSQLError(err, nil)
	}
	// Query.
	rows, err := m.db.Query(ctx, q)
	if err != nil {
		return nil, errors.NewExecQueryError(err, "query sub-events", q)
	}
	defer rows.Close()
	// Scan.
	subEvents := make(map[string][]SubEvent)
	for rows.Next() {
		var festivalID string
		var subEvent SubEvent
		err = rows.Scan(&festivalID, &subEvent.Name, &subEvent.Type)
		if err != nil {
			return nil, errors.NewScanDBRowError(err, "scan sub-event", q)
		}
		subEvents[festivalID] = append(subEvents[festivalID], subEvent)
	}
	return subEvents, nil
}

// CreateFestival creates a Festival from the given FestivalDraft. The id is
// generated and the creation timestamp set to the current time.
func (m *Mall) CreateFestival(ctx context.Context, draft FestivalDraft) (Festival, error) {
	err := draft.Validate()
	if err != nil {
		return Festival{}, errors.Wrap(err, "validate draft", nil)
	}
	festival := Festival{
		ID:          uuid.New().String(),
		College:     draft.College,
		EventName:   draft.EventName,
		Location:    draft.Location,
		Dates:       draft.Dates,
		Type:        draft.Type,
		Competition: draft.Competition,
		CreatedAt:   nulls.NewInt64(time.Now().UnixMilli()),
		SubEvents:   make([]SubEvent, 0, len(draft.SubEvents)),
	}
	festival.SubEvents = append(festival.SubEvents, draft.SubEvents...)
	// Begin tx.
	tx, err := m.db.Begin(ctx)
	if err != nil {
		return Festival{}, errors.NewDBTxBeginError(err)
	}
	// Create festival.
	q, _, err := m.dialect.Insert(goqu.T("festivals")).Rows(goqu.Record{
		"id":          festival.ID,
		"college":     festival.College,
		"event_name":  festival.EventName,
		"location":    festival.Location,
		"dates":       festival.Dates,
		"type":        festival.Type,
		"competition": festival.Competition,
		"created_at":  festival.CreatedAt,
	}).ToSQL()
	if err != nil {
		m.rollbackTx(ctx, tx, "festival query to sql failed")
		return Festival{}, errors.NewQueryToSQLError(err, nil)
	}
	_, err = tx.Exec(ctx, q)
	if err != nil {
		m.rollbackTx(ctx, tx, "create festival failed")
		return Festival{}, errors.NewExecQueryError(err, "exec create festival query", q)
	}
	// Create sub-events.
	err = m.insertSubEvents(ctx, tx, festival.ID, festival.SubEvents)
	if err != nil {
		m.rollbackTx(ctx, tx, "create sub-events failed")
		return Festival{}, errors.Wrap(err, "insert sub-events", nil)
	}
	// Commit.
	err = tx.Commit(ctx)
	if err != nil {
		return Festival{}, errors.NewDBTxCommitError(err)
	}
	return festival, nil
}

// insertSubEvents inserts the given sub-events for the festival with their
// index as position.
func (m *Mall) insertSubEvents(ctx context.Context, tx pgx.Tx, festivalID string, subEvents []SubEvent) error {
	if len(subEvents) == 0 {
		return nil
	}
	subEventRecords := make([]interface{}, 0, len(subEvents))
	for i, subEvent := range subEvents {
		subEventRecords = append(subEventRecords, goqu.Record{
			"festival": festivalID,
			"position": i,
			"name":     subEvent.Name,
			"type":     subEvent.Type,
		})
	}
	q, _, err := m.dialect.Insert(goqu.T("sub_events")).Rows(subEventRecords...).ToSQL()
	if err != nil {
		return errors.NewQueryToSQLError(err, nil)
	}
	_, err = tx.Exec(ctx, q)
	if err != nil {
		return errors.NewExecQueryError(err, "exec create sub-events query", q)
	}
	return nil
}

// UpdateFestival replaces the Festival with the given id with the draft. The id
// and creation timestamp are kept. Sub-events are replaced as well and
// registrations for sub-event positions that no longer exist are removed. If
// the festival was not found, an errors.ErrNotFound error is returned.
func (m *Mall) UpdateFestival(ctx context.Context, festivalID string, draft FestivalDraft) (Festival, error) {
	if _, err := uuid.Parse(festivalID); err != nil {
		return Festival{}, errors.NewResourceNotFoundError("festival not found", errors.Details{"festival_id": festivalID})
	}
	err := draft.Validate()
	if err != nil {
		return Festival{}, errors.Wrap(err, "validate draft", nil)
	}
	festival := Festival{
		ID:          festivalID,
		College:     draft.College,
		EventName:   draft.EventName,
		Location:    draft.Location,
		Dates:       draft.Dates,
		Type:        draft.Type,
		Competition: draft.Competition,
		SubEvents:   make([]SubEvent, 0, len(draft.SubEvents)),
	}
	festival.SubEvents = append(festival.SubEvents, draft.SubEvents...)
	// Begin tx.
	tx, err := m.db.Begin(ctx)
	if err != nil {
		return Festival{}, errors.NewDBTxBeginError(err)
	}
	defer m.rollbackTx(ctx, tx, "update festival failed")
	// Update festival.
	q, _, err := m.dialect.Update(goqu.T("festivals")).Set(goqu.Record{
		"college":     festival.College,
		"event_name":  festival.EventName,
		"location":    festival.Location,
		"dates":       festival.Dates,
		"type":        festival.Type,
		"competition": festival.Competition,
	}).Where(goqu.C("id").Eq(festivalID)).
		Returning(goqu.C("created_at")).ToSQL()
	if err != nil {
		return Festival{}, errors.NewQueryToSQLError(err, errors.Details{"festival_id": festivalID})
	}
	err = tx.QueryRow(ctx, q).Scan(&festival.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return Festival{}, errors.NewResourceNotFoundError("festival not found", errors.Details{"festival_id": festivalID})
		}
		return Festival{}, errors.NewScanDBRowError(err, "update festival", q)
	}
	// Replace sub-events.
	q, _, err = m.dialect.Delete(goqu.T("sub_events")).
		Where(goqu.C("festival").Eq(festivalID)).ToSQL()
	if err != nil {
		return Festival{}, errors.NewQueryToSQLError(err, errors.Details{"festival_id": festivalID})
	}
	_, err = tx.Exec(ctx, q)
	if err != nil {
		return Festival{}, errors.NewExecQueryError(err, "exec delete sub-events query", q)
	}
	err = m.insertSubEvents(ctx, tx, festivalID, festival.SubEvents)
	if err != nil {
		return Festival{}, errors.Wrap(err, "insert sub-events", nil)
	}
	// Remove registrations for removed sub-events.
	q, _, err = m.dialect.Delete(goqu.T("registrations")).
		Where(goqu.C("festival").Eq(festivalID),
			goqu.C("position").Gte(len(festival.SubEvents))).ToSQL()
	if err != nil {
		return Festival{}, errors.NewQueryToSQLError(err, errors.Details{"festival_id": festivalID})
	}
	_, err = tx.Exec(ctx, q)
	if err != nil {
		return Festival{}, errors.NewExecQueryError(err, "exec delete orphaned registrations query", q)
	}
	// Commit.
	err = tx.Commit(ctx)
	if err != nil {
		return Festival{}, errors.NewDBTxCommitError(err)
	}
	return festival, nil
}

// DeleteFestival deletes the Festival with the given id including its
// sub-events. If none was found, an errors.ErrNotFound error is returned.
func (m *Mall) DeleteFestival(ctx context.Context, festivalID string) error {
	if _, err := uuid.Parse(festivalID); err != nil {
		return errors.NewResourceNotFoundError("festival not found", errors.Details{"festival_id": festivalID})
	}
	// Build query.
	q, _, err := m.dialect.Delete(goqu.T("festivals")).
		Where(goqu.C("id").Eq(festivalID)).ToSQL()
	if err != nil {
		return errors.NewQueryToSQLError(err, errors.Details{"festival_id": festivalID})
	}
	// Exec.
	result, err := m.db.Exec(ctx, q)
	if err != nil {
		return errors.NewExecQueryError(err, "exec delete festival query", q)
	}
	// Assure found.
	if result.RowsAffected() != 1 {
		return errors.NewResourceNotFoundError("festival not found", errors.Details{"festival_id": festivalID})
	}
	return nil
}
