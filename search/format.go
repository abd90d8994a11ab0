package search

import (
	"fmt"
	"golang.org/x/text/language"
)

// Locale formats dates for display and for the search haystack.
type Locale struct {
	tag    language.Tag
	months [12]string
	// monthFirst formats "Dec 12, 2025" instead of "12 Dec 2025".
	monthFirst bool
	// daySuffix is appended to day numbers, for example "12." in German.
	daySuffix string
}

var (
	localeEnUS = Locale{
		tag:        language.AmericanEnglish,
		months:     [12]string{"Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"},
		monthFirst: true,
	}
	localeEnGB = Locale{
		tag:    language.BritishEnglish,
		months: [12]string{"Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sept", "Oct", "Nov", "Dec"},
	}
	localeEnIN = Locale{
		tag:    language.MustParse("en-IN"),
		months: [12]string{"Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sept", "Oct", "Nov", "Dec"},
	}
	localeDe = Locale{
		tag:       language.German,
		months:    [12]string{"Jan.", "Feb.", "März", "Apr.", "Mai", "Juni", "Juli", "Aug.", "Sept.", "Okt.", "Nov.", "Dez."},
		daySuffix: ".",
	}
	localeFr = Locale{
		tag:    language.French,
		months: [12]string{"janv.", "févr.", "mars", "avr.", "mai", "juin", "juil.", "août", "sept.", "oct.", "nov.", "déc."},
	}
)

// DefaultLocale is used if no preference matches a supported locale.
var DefaultLocale = localeEnUS

// supportedLocales must start with DefaultLocale as the matcher falls back to
// the first entry.
var supportedLocales = []Locale{localeEnUS, localeEnGB, localeEnIN, localeDe, localeFr}

var localeMatcher = func() language.Matcher {
	tags := make([]language.Tag, 0, len(supportedLocales))
	for _, l := range supportedLocales {
		tags = append(tags, l.tag)
	}
	return language.NewMatcher(tags)
}()

// LocaleFor returns the supported Locale best matching the given preferences.
// Preferences may be BCP 47 tags or Accept-Language header values.
func LocaleFor(preferences ...string) Locale {
	_, i := language.MatchStrings(localeMatcher, preferences...)
	if i < 0 || i >= len(supportedLocales) {
		return DefaultLocale
	}
	return supportedLocales[i]
}

// Tag returns the language tag of the Locale.
func (l Locale) Tag() language.Tag {
	return l.tag
}

func (l Locale) month(d Date) string {
	return l.months[d.Month-1]
}

func (l Locale) day(d Date) string {
	return fmt.Sprintf("%d%s", d.Day, l.daySuffix)
}

// FormatDate formats the date with day, short month and year.
func (l Locale) FormatDate(d Date) string {
	if l.monthFirst {
		return fmt.Sprintf("%s %s, %d", l.month(d), l.day(d), d.Year)
	}
	return fmt.Sprintf("%s %s %d", l.day(d), l.month(d), d.Year)
}

func (l Locale) formatDayMonth(d Date) string {
	if l.monthFirst {
		return fmt.Sprintf("%s %s", l.month(d), l.day(d))
	}
	return fmt.Sprintf("%s %s", l.day(d), l.month(d))
}

func (l Locale) formatMonthYear(d Date) string {
	return fmt.Sprintf("%s %d", l.month(d), d.Year)
}

// FormatRange formats the range as shown on festival cards. Shared month and
// year are only printed once.
func (l Locale) FormatRange(start, end Date) string {
	switch {
	case start == end:
		return l.FormatDate(start)
	case start.Year == end.Year && start.Month == end.Month:
		return fmt.Sprintf("%s–%s %s", l.day(start), l.day(end), l.formatMonthYear(start))
	case start.Year == end.Year:
		return fmt.Sprintf("%s – %s", l.formatDayMonth(start), l.FormatDate(end))
	default:
		return fmt.Sprintf("%s – %s", l.FormatDate(start), l.FormatDate(end))
	}
}
