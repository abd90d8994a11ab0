package search

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	// rangeDatesPattern matches "25th to 26th Nov 25".
	rangeDatesPattern = regexp.MustCompile(`(\d{1,2})(?:st|nd|rd|th)?\s+to\s+(\d{1,2})(?:st|nd|rd|th)?\s+(\w+)\s+(\d{4}|\d{2})`)
	// singleDatePattern matches "25th Nov 25".
	singleDatePattern = regexp.MustCompile(`(\d{1,2})(?:st|nd|rd|th)?\s+(\w+)\s+(\d{4}|\d{2})`)
)

var monthAbbreviations = map[string]time.Month{
	"jan": time.January,
	"feb": time.February,
	"mar": time.March,
	"apr": time.April,
	"may": time.May,
	"jun": time.June,
	"jul": time.July,
	"aug": time.August,
	"sep": time.September,
	"oct": time.October,
	"nov": time.November,
	"dec": time.December,
}

// NormalizeRange converts festival date text like "25th to 26th Nov 25" or
// "24th Dec 25" into a start and end date. Text that does not follow one of
// these forms normalizes to FallbackDate for both. The returned end is never
// before the start.
func NormalizeRange(text string) (Date, Date) {
	if m := rangeDatesPattern.FindStringSubmatch(text); m != nil {
		year := expandYear(m[4])
		month := monthNumber(m[3])
		start := dateOrFallback(year, month, m[1])
		end := dateOrFallback(year, month, m[2])
		if end.Before(start) {
			end = start
		}
		return start, end
	}
	if m := singleDatePattern.FindStringSubmatch(text); m != nil {
		d := dateOrFallback(expandYear(m[3]), monthNumber(m[2]), m[1])
		return d, d
	}
	return FallbackDate, FallbackDate
}

// expandYear turns a two-digit year into 20xx. Four-digit years like "2026"
// are kept as written instead of being cut to their first two digits.
func expandYear(raw string) int {
	year, _ := strconv.Atoi(raw)
	if len(raw) == 2 {
		year += 2000
	}
	return year
}

// monthNumber resolves a month abbreviation like "Nov" case-insensitively.
// Only the exact abbreviations are known, so "November" or "Sept" resolve to
// January like any other unknown name.
func monthNumber(name string) time.Month {
	if month, ok := monthAbbreviations[strings.ToLower(name)]; ok {
		return month
	}
	return time.January
}

// dateOrFallback builds the date for the given day text. Days that do not
// exist in the month yield FallbackDate.
func dateOrFallback(year int, month time.Month, rawDay string) Date {
	day, err := strconv.Atoi(rawDay)
	if err != nil || day < 1 || day > daysIn(year, month) {
		return FallbackDate
	}
	return Date{Year: year, Month: month, Day: day}
}
