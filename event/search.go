package event

import (
	"github.com/lefinal/festfinder/search"
)

// SearchHit is a ranked festival as displayed to clients.
type SearchHit struct {
	ID      string `json:"id"`
	College string `json:"college"`
	Name    string `json:"name"`
	City    string `json:"city"`
	// Dates is the locale-formatted date range.
	Dates       string      `json:"dates"`
	Start       search.Date `json:"start"`
	End         search.Date `json:"end"`
	Type        string      `json:"type"`
	Competition string      `json:"competition,omitempty"`
	// Category is one of "current", "upcoming" or "past".
	Category search.Category `json:"category"`
}

// SearchHitsFromRanked converts the ranked festivals to SearchHit lists,
// formatting dates with the given search.Locale.
func SearchHitsFromRanked(ranked []search.RankedEvent, locale search.Locale) []SearchHit {
	hits := make([]SearchHit, 0, len(ranked))
	for _, e := range ranked {
		hits = append(hits, SearchHit{
			ID:          e.ID,
			College:     e.College,
			Name:        e.Name,
			City:        e.City,
			Dates:       locale.FormatRange(e.Start, e.End),
			Start:       e.Start,
			End:         e.End,
			Type:        e.EventType,
			Competition: e.CompetitionType,
			Category:    e.Category,
		})
	}
	return hits
}

// SearchRequestEvent requests a search.
type SearchRequestEvent struct {
	// RequestID is chosen by the client and returned with the result.
	RequestID string `json:"request_id"`
	// Seq is the client's sequence number of the request. It is echoed in the
	// result so that clients can discard results of superseded requests.
	Seq uint64 `json:"seq"`
	// Query is the search query.
	Query string `json:"query"`
	// Locale is an optional BCP 47 tag for formatting dates.
	Locale string `json:"locale,omitempty"`
}

// SearchResultEvent holds the result of a search requested with
// SearchRequestEvent.
type SearchResultEvent struct {
	// RequestID from the SearchRequestEvent.
	RequestID string `json:"request_id"`
	// Seq from the SearchRequestEvent.
	Seq uint64 `json:"seq"`
	// Results of the search in ranking order.
	Results []SearchHit `json:"results"`
	// Error is set if the search failed.
	Error *ErrorEventPayload `json:"error,omitempty"`
}
