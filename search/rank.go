package search

import (
	"sort"
)

// RetentionDays is the number of days after its end for which a festival is
// still listed.
const RetentionDays = 7

// Category groups ranked festivals relative to today.
type Category int

const (
	// CategoryCurrent is for festivals taking place today.
	CategoryCurrent Category = iota
	// CategoryUpcoming is for festivals starting after today.
	CategoryUpcoming
	// CategoryPast is for festivals that ended within the retention window.
	CategoryPast
)

func (c Category) String() string {
	switch c {
	case CategoryCurrent:
		return "current"
	case CategoryUpcoming:
		return "upcoming"
	case CategoryPast:
		return "past"
	}
	return "unknown"
}

// MarshalText encodes the Category by its name.
func (c Category) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// RankedEvent is a Summary with its position-determining values.
type RankedEvent struct {
	Summary
	Category Category
	// SortKey orders festivals within their Category in ascending order.
	SortKey int64
}

// Rank drops festivals that ended more than RetentionDays before today and
// orders the remaining ones: current festivals first, then upcoming ones, both
// by start date, then past ones with the most recently ended first. Ties are
// ordered by creation time.
func Rank(events []Summary, today Date) []RankedEvent {
	oldestEnd := today.AddDays(-RetentionDays)
	ranked := make([]RankedEvent, 0, len(events))
	for _, e := range events {
		if e.End.Before(oldestEnd) {
			continue
		}
		r := RankedEvent{Summary: e}
		switch {
		case today.Before(e.Start):
			r.Category = CategoryUpcoming
			r.SortKey = e.Start.UnixMilli()
		case !today.After(e.End):
			r.Category = CategoryCurrent
			r.SortKey = e.Start.UnixMilli()
		default:
			r.Category = CategoryPast
			r.SortKey = -e.End.endOfDayMilli()
		}
		ranked = append(ranked, r)
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.Category != b.Category {
			return a.Category < b.Category
		}
		if a.SortKey != b.SortKey {
			return a.SortKey < b.SortKey
		}
		return a.CreatedAt < b.CreatedAt
	})
	return ranked
}
