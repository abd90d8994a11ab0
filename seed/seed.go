// Package seed imports festival fixtures from YAML files.
package seed

import (
	"context"
	"fmt"
	"github.com/gobuffalo/nulls"
	"github.com/lefinal/festfinder/errors"
	"github.com/lefinal/festfinder/store"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
	"io"
	"os"
	"strings"
)

type subEventFixture struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
}

type festivalFixture struct {
	College     string            `yaml:"college"`
	EventName   string            `yaml:"event_name"`
	Location    string            `yaml:"location"`
	Dates       string            `yaml:"dates"`
	Type        string            `yaml:"type"`
	Competition string            `yaml:"competition"`
	SubEvents   []subEventFixture `yaml:"sub_events"`
}

type fixtureFile struct {
	Festivals []festivalFixture `yaml:"festivals"`
}

// Store is the persistence needed for Import.
type Store interface {
	// Festivals retrieves all stored festivals.
	Festivals(ctx context.Context) ([]store.Festival, error)
	// CreateFestival creates a festival from the given draft.
	CreateFestival(ctx context.Context, draft store.FestivalDraft) (store.Festival, error)
}

// Parse reads festival drafts from the given YAML document. Invalid drafts are
// reported combined in the returned error while valid ones are still
// returned.
func Parse(r io.Reader) ([]store.FestivalDraft, error) {
	var f fixtureFile
	err := yaml.NewDecoder(r).Decode(&f)
	if err != nil && err != io.EOF {
		return nil, errors.NewBadRequestErr("decode yaml", err, nil)
	}
	drafts := make([]store.FestivalDraft, 0, len(f.Festivals))
	var validationErr error
	for i, fixture := range f.Festivals {
		draft := fixture.draft()
		if err := draft.Validate(); err != nil {
			validationErr = multierr.Append(validationErr, errors.Wrap(err, fmt.Sprintf("festival %d", i), nil))
			continue
		}
		drafts = append(drafts, draft)
	}
	return drafts, validationErr
}

func (fixture festivalFixture) draft() store.FestivalDraft {
	draft := store.FestivalDraft{
		College:   fixture.College,
		EventName: fixture.EventName,
		Location:  fixture.Location,
		Dates:     fixture.Dates,
		Type:      fixture.Type,
		SubEvents: make([]store.SubEvent, 0, len(fixture.SubEvents)),
	}
	if fixture.Competition != "" {
		draft.Competition = nulls.NewString(fixture.Competition)
	}
	for _, sub := range fixture.SubEvents {
		draft.SubEvents = append(draft.SubEvents, store.SubEvent{
			Name: sub.Name,
			Type: sub.Type,
		})
	}
	return draft
}

// LoadFile parses the YAML fixture file at the given path using Parse.
func LoadFile(filename string) ([]store.FestivalDraft, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, errors.NewInternalErrorFromErr(err, "open seed file", errors.Details{"filename": filename})
	}
	defer func() { _ = f.Close() }()
	drafts, err := Parse(f)
	if err != nil {
		return drafts, errors.Wrap(err, "parse seed file", errors.Details{"filename": filename})
	}
	return drafts, nil
}

// fixtureKey identifies a festival for detecting already imported ones.
func fixtureKey(college string, eventName string, dates string) string {
	return strings.ToLower(strings.Join([]string{
		strings.TrimSpace(college),
		strings.TrimSpace(eventName),
		strings.TrimSpace(dates),
	}, "\x00"))
}

// Import creates the given drafts in the Store. Drafts matching an already
// stored festival by college, event name and dates are skipped. It returns the
// number of created festivals.
func Import(ctx context.Context, logger *zap.Logger, s Store, drafts []store.FestivalDraft) (int, error) {
	existing, err := s.Festivals(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "festivals", nil)
	}
	known := make(map[string]struct{}, len(existing))
	for _, festival := range existing {
		known[fixtureKey(festival.College, festival.EventName, festival.Dates)] = struct{}{}
	}
	created := 0
	for _, draft := range drafts {
		key := fixtureKey(draft.College, draft.EventName, draft.Dates)
		if _, ok := known[key]; ok {
			logger.Debug("skipping already imported festival",
				zap.String("college", draft.College),
				zap.String("event_name", draft.EventName))
			continue
		}
		festival, err := s.CreateFestival(ctx, draft)
		if err != nil {
			return created, errors.Wrap(err, "create festival", errors.Details{
				"college":    draft.College,
				"event_name": draft.EventName,
			})
		}
		known[key] = struct{}{}
		created++
		logger.Debug("imported festival", zap.String("festival_id", festival.ID))
	}
	return created, nil
}
