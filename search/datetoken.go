package search

import (
	"github.com/olebedev/when"
	"github.com/olebedev/when/rules"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	// slashDateTokenPattern matches "13/12/25", "13th/12/2025".
	slashDateTokenPattern = regexp.MustCompile(`(?i)^(\d{1,2})(?:st|nd|rd|th)?/(\d{1,2})/(\d{2}|\d{4})$`)
	// ordinalSuffixPattern matches day numbers with ordinal suffix like "25th".
	ordinalSuffixPattern = regexp.MustCompile(`(?i)(\d+)(st|nd|rd|th)`)
	// vagueNaturalDatePattern matches text the natural language rules resolve
	// to a date although it names a time of day or a whole month, like "now"
	// or "may".
	vagueNaturalDatePattern = regexp.MustCompile(`(?i)^(?:now|tonight|last\s*night|` + en.MONTH_OFFSET_PATTERN + `)$`)
)

// dateLayout is a layout tried for natural date text before falling back to
// the rule based parser.
type dateLayout struct {
	layout  string
	hasYear bool
}

var naturalDateLayouts = []dateLayout{
	{layout: "2006-01-02", hasYear: true},
	{layout: "2 Jan 2006", hasYear: true},
	{layout: "2 January 2006", hasYear: true},
	{layout: "Jan 2 2006", hasYear: true},
	{layout: "January 2 2006", hasYear: true},
	{layout: "Jan 2, 2006", hasYear: true},
	{layout: "January 2, 2006", hasYear: true},
	{layout: "2 Jan"},
	{layout: "2 January"},
	{layout: "Jan 2"},
	{layout: "January 2"},
}

// DateTokenParser turns query tokens into dates. It is safe for concurrent
// use.
type DateTokenParser struct {
	natural *when.Parser
}

// NewDateTokenParser creates a DateTokenParser with the natural language
// rules that denote days. Rules for times of day and durations are left out.
func NewDateTokenParser() *DateTokenParser {
	w := when.New(nil)
	w.Add(en.Weekday(rules.Override),
		en.CasualDate(rules.Override),
		en.ExactMonthDate(rules.Override))
	w.Add(common.All...)
	return &DateTokenParser{natural: w}
}

// Parse parses the given token into a Date. Relative expressions and dates
// without year are resolved against today. The second return value is false
// if the token does not denote a date.
func (p *DateTokenParser) Parse(token string, today Date) (Date, bool) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Date{}, false
	}
	if m := slashDateTokenPattern.FindStringSubmatch(token); m != nil {
		day, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		year, _ := strconv.Atoi(m[3])
		if year < 100 {
			if year <= 79 {
				year += 2000
			} else {
				year += 1900
			}
		}
		return NewDate(year, time.Month(month), day), true
	}
	text := strings.Join(strings.Fields(ordinalSuffixPattern.ReplaceAllString(token, "$1")), " ")
	for _, l := range naturalDateLayouts {
		t, err := time.Parse(l.layout, text)
		if err != nil {
			continue
		}
		if !l.hasYear {
			return NewDate(today.Year, t.Month(), t.Day()), true
		}
		return DateOf(t), true
	}
	result, err := p.natural.Parse(text, today.Time())
	if err != nil || result == nil {
		return Date{}, false
	}
	// Only accept if the whole text denotes a day.
	if !strings.EqualFold(strings.TrimSpace(result.Text), text) || vagueNaturalDatePattern.MatchString(text) {
		return Date{}, false
	}
	return DateOf(result.Time), true
}
