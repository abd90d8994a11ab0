package search

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	// dayOnlyTokenPattern matches bare days of month like "12" or "25th".
	dayOnlyTokenPattern = regexp.MustCompile(`(?i)^(\d{1,2})(?:st|nd|rd|th)?$`)
	// slashDateQueryPattern matches slash dates as typed in queries.
	slashDateQueryPattern = regexp.MustCompile(`^\d{1,2}/\d{1,2}/(\d{2}|\d{4})$`)
	// alphabeticTokenPattern matches tokens that may be month names.
	alphabeticTokenPattern = regexp.MustCompile(`^[a-zA-Z]+$`)
)

// Query is a classified search query.
type Query struct {
	// DateTokens must each parse to a date within the range of a festival.
	DateTokens []string
	// TextTokens are lowercased and must each match the haystack of a festival.
	TextTokens []string
	// DayOnly is set if the query contains a bare day of month. Then only Day is
	// used for filtering and all other tokens are ignored.
	DayOnly bool
	// Day is the day of month to filter by in DayOnly mode.
	Day int
}

// Classify splits the query at whitespace and classifies the tokens. The
// first bare day-of-month token switches the whole query to day-only mode.
func Classify(query string) Query {
	var q Query
	for _, token := range strings.Fields(query) {
		if m := dayOnlyTokenPattern.FindStringSubmatch(token); m != nil {
			day, _ := strconv.Atoi(m[1])
			return Query{DayOnly: true, Day: day}
		}
		if slashDateQueryPattern.MatchString(token) || alphabeticTokenPattern.MatchString(token) {
			q.DateTokens = append(q.DateTokens, token)
			continue
		}
		q.TextTokens = append(q.TextTokens, strings.ToLower(token))
	}
	return q
}
