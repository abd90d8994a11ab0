package search

import (
	"github.com/lefinal/festfinder/errors"
	"go.uber.org/multierr"
	"strings"
)

// SubEvent is a competition or activity within a festival.
type SubEvent struct {
	Name string
	Type string
}

// Record is a festival as provided by the catalog. Dates holds the range
// text as entered by organizers, for example "25th to 26th Nov 25".
type Record struct {
	ID          string
	College     string
	EventName   string
	Location    string
	Dates       string
	Type        string
	Competition string
	// CreatedAt is the creation timestamp in milliseconds. Zero if unknown.
	CreatedAt int64
	SubEvents []SubEvent
}

// Summary is a validated festival ready for ranking and searching.
type Summary struct {
	ID              string
	College         string
	Name            string
	City            string
	Start           Date
	End             Date
	EventType       string
	CompetitionType string
	CreatedAt       int64
	// SubEventText holds names and types of all sub-events and is only used
	// for searching.
	SubEventText string
}

// NewSummary validates the given Record and normalizes its dates. Records
// without id are rejected with an errors.ErrBadRequest error.
func NewSummary(record Record) (Summary, error) {
	if strings.TrimSpace(record.ID) == "" {
		return Summary{}, errors.NewBadRequestErr("festival record without id", nil, errors.Details{
			"college":    record.College,
			"event_name": record.EventName,
		})
	}
	start, end := NormalizeRange(record.Dates)
	subEventParts := make([]string, 0, len(record.SubEvents))
	for _, sub := range record.SubEvents {
		subEventParts = append(subEventParts, sub.Name+" "+sub.Type)
	}
	return Summary{
		ID:              record.ID,
		College:         record.College,
		Name:            record.EventName,
		City:            record.Location,
		Start:           start,
		End:             end,
		EventType:       record.Type,
		CompetitionType: record.Competition,
		CreatedAt:       record.CreatedAt,
		SubEventText:    strings.Join(subEventParts, " "),
	}, nil
}

// Summarize converts all records using NewSummary. Rejected records are left
// out and their errors are combined in the returned error.
func Summarize(records []Record) ([]Summary, error) {
	summaries := make([]Summary, 0, len(records))
	var err error
	for _, record := range records {
		summary, summaryErr := NewSummary(record)
		if summaryErr != nil {
			err = multierr.Append(err, summaryErr)
			continue
		}
		summaries = append(summaries, summary)
	}
	return summaries, err
}
