package search

import (
	"strings"
)

// Engine searches festivals. It holds no mutable state and is safe for
// concurrent use.
type Engine struct {
	locale Locale
	dates  *DateTokenParser
}

// NewEngine creates an Engine that formats dates in the haystack with the
// given Locale.
func NewEngine(locale Locale) *Engine {
	return &Engine{
		locale: locale,
		dates:  NewDateTokenParser(),
	}
}

// Locale returns the Locale the Engine was created with.
func (engine *Engine) Locale() Locale {
	return engine.locale
}

// Search ranks the events with Rank and keeps the ones matching the query.
// A blank query keeps all ranked events. Ranking order is preserved.
func (engine *Engine) Search(events []Summary, query string, today Date) []RankedEvent {
	ranked := Rank(events, today)
	if strings.TrimSpace(query) == "" {
		return ranked
	}
	q := Classify(query)
	matches := make([]RankedEvent, 0, len(ranked))
	if q.DayOnly {
		// Day of month only, regardless of month.
		for _, e := range ranked {
			if e.Start.Day <= q.Day && q.Day <= e.End.Day {
				matches = append(matches, e)
			}
		}
		return matches
	}
	for _, e := range ranked {
		if engine.matches(e.Summary, q, today) {
			matches = append(matches, e)
		}
	}
	return matches
}

// matches checks the date tokens and text tokens of the query against the
// festival. All tokens must match.
func (engine *Engine) matches(e Summary, q Query, today Date) bool {
	for _, token := range q.DateTokens {
		d, ok := engine.dates.Parse(token, today)
		if !ok || !d.Within(e.Start, e.End) {
			return false
		}
	}
	if len(q.TextTokens) == 0 {
		return true
	}
	haystack := engine.Haystack(e)
	for _, token := range q.TextTokens {
		if !MatchesHaystack(token, haystack) {
			return false
		}
	}
	return true
}

// Haystack returns the lowercased searchable text of the festival.
func (engine *Engine) Haystack(e Summary) string {
	return strings.ToLower(strings.Join([]string{
		e.College,
		e.Name,
		e.City,
		engine.locale.FormatRange(e.Start, e.End),
		e.EventType,
		e.CompetitionType,
		e.SubEventText,
	}, " "))
}
