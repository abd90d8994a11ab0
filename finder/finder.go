package finder

import (
	"context"
	"github.com/lefinal/festfinder/errors"
	"github.com/lefinal/festfinder/metrics"
	"github.com/lefinal/festfinder/search"
	"github.com/lefinal/festfinder/store"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/text/language"
	"strings"
	"sync"
	"time"
)

// Store provides the festival catalog.
type Store interface {
	// Festivals retrieves all stored festivals including their sub-events.
	Festivals(ctx context.Context) ([]store.Festival, error)
}

// Result is the outcome of Finder.Search.
type Result struct {
	// Query as requested.
	Query string
	// Today is the day the festivals were ranked for.
	Today search.Date
	// Locale used for matching formatted date ranges.
	Locale search.Locale
	// Events in ranking order.
	Events []search.RankedEvent
}

// Finder searches the stored festival catalog. Each search works on a fresh
// snapshot of the catalog.
type Finder struct {
	logger  *zap.Logger
	store   Store
	metrics *metrics.Metrics
	// now returns the current time for determining today.
	now func() time.Time
	// engines holds a search.Engine for each used search.Locale.
	engines map[language.Tag]*search.Engine
	// enginesMutex locks engines.
	enginesMutex sync.Mutex
}

// New creates a Finder for the given Store that records to the given
// metrics.Metrics.
func New(logger *zap.Logger, store Store, metrics *metrics.Metrics) *Finder {
	return &Finder{
		logger:  logger,
		store:   store,
		metrics: metrics,
		now:     time.Now,
		engines: make(map[language.Tag]*search.Engine),
	}
}

// engine returns the search.Engine for the given search.Locale.
func (f *Finder) engine(locale search.Locale) *search.Engine {
	f.enginesMutex.Lock()
	defer f.enginesMutex.Unlock()
	engine, ok := f.engines[locale.Tag()]
	if !ok {
		engine = search.NewEngine(locale)
		f.engines[locale.Tag()] = engine
	}
	return engine
}

// Search the catalog for the given query. Dates in the haystack are formatted
// with the given search.Locale. Catalog entries that cannot be searched are
// skipped and logged.
func (f *Finder) Search(ctx context.Context, query string, locale search.Locale) (Result, error) {
	start := time.Now()
	mode := queryMode(query)
	summaries, err := f.Catalog(ctx)
	if err != nil {
		f.metrics.ObserveSearchFailure(mode)
		return Result{}, errors.Wrap(err, "catalog", nil)
	}
	today := search.Today(f.now())
	events := f.engine(locale).Search(summaries, query, today)
	f.metrics.ObserveSearch(mode, time.Since(start), len(events))
	return Result{
		Query:  query,
		Today:  today,
		Locale: locale,
		Events: events,
	}, nil
}

// Catalog retrieves all stored festivals as search.Summary list. Festivals
// that are rejected by search.NewSummary are skipped and logged.
func (f *Finder) Catalog(ctx context.Context) ([]search.Summary, error) {
	festivals, err := f.store.Festivals(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "festivals from store", nil)
	}
	summaries, err := search.Summarize(Records(festivals))
	if err != nil {
		rejected := multierr.Errors(err)
		f.metrics.AddRejectedRecords(len(rejected))
		for _, rejection := range rejected {
			errors.Log(f.logger, errors.Wrap(rejection, "skipping festival", nil))
		}
	}
	f.metrics.SetCatalogSize(len(summaries))
	return summaries, nil
}

// Records converts the stored festivals to search.Record lists.
func Records(festivals []store.Festival) []search.Record {
	records := make([]search.Record, 0, len(festivals))
	for _, festival := range festivals {
		subEvents := make([]search.SubEvent, 0, len(festival.SubEvents))
		for _, sub := range festival.SubEvents {
			subEvents = append(subEvents, search.SubEvent{
				Name: sub.Name,
				Type: sub.Type,
			})
		}
		records = append(records, search.Record{
			ID:          festival.ID,
			College:     festival.College,
			EventName:   festival.EventName,
			Location:    festival.Location,
			Dates:       festival.Dates,
			Type:        festival.Type,
			Competition: festival.Competition.String,
			CreatedAt:   festival.CreatedAt.Int64,
			SubEvents:   subEvents,
		})
	}
	return records
}

// queryMode determines the mode for labeling metrics.
func queryMode(query string) string {
	if strings.TrimSpace(query) == "" {
		return metrics.ModeBlank
	}
	if search.Classify(query).DayOnly {
		return metrics.ModeDayOnly
	}
	return metrics.ModeTokens
}
