package search

import (
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"testing"
	"time"
)

type EngineSearchSuite struct {
	suite.Suite
	engine *Engine
	today  Date
	events []Summary
}

func (suite *EngineSearchSuite) SetupTest() {
	suite.engine = NewEngine(DefaultLocale)
	suite.today = day(2025, time.December, 10)
	records := []Record{
		{
			ID:          "techfest",
			College:     "IIT Bombay",
			EventName:   "Techfest",
			Location:    "Mumbai",
			Dates:       "12th to 13th Dec 2025",
			Type:        "Technical",
			Competition: "Inter-college",
			CreatedAt:   100,
			SubEvents:   []SubEvent{{Name: "Robotics", Type: "Competition"}},
		},
		{
			ID:          "mood-indigo",
			College:     "IIT Bombay",
			EventName:   "Mood Indigo",
			Location:    "Mumbai",
			Dates:       "13th to 16th Dec 25",
			Type:        "Cultural",
			Competition: "Open",
			CreatedAt:   200,
			SubEvents:   []SubEvent{{Name: "Dancing", Type: "Competition"}},
		},
		{
			ID:        "kaizo",
			College:   "Kaizo Institute",
			EventName: "Kaizo Fest",
			Location:  "Pune",
			Dates:     "5th to 6th Dec 2025",
			Type:      "Cultural",
			CreatedAt: 300,
		},
		{
			ID:        "expired",
			College:   "Old College",
			EventName: "Old Fest",
			Location:  "Mumbai",
			Dates:     "1st to 2nd Dec 2025",
			CreatedAt: 400,
		},
	}
	events, err := Summarize(records)
	suite.Require().NoError(err, "summarize should not fail")
	suite.events = events
}

func (suite *EngineSearchSuite) search(query string) []string {
	return ids(suite.engine.Search(suite.events, query, suite.today))
}

func (suite *EngineSearchSuite) TestBlankQuery() {
	want := Rank(suite.events, suite.today)
	suite.Equal(want, suite.engine.Search(suite.events, "", suite.today))
	suite.Equal(want, suite.engine.Search(suite.events, "   ", suite.today))
	suite.Equal([]string{"techfest", "mood-indigo", "kaizo"}, ids(want))
}

func (suite *EngineSearchSuite) TestIdempotent() {
	first := suite.engine.Search(suite.events, "mumba1", suite.today)
	second := suite.engine.Search(suite.events, "mumba1", suite.today)
	suite.Equal(first, second)
}

func (suite *EngineSearchSuite) TestDayOnlyIgnoresOtherTokens() {
	suite.Equal([]string{"techfest"}, suite.search("12 Dancing"))
}

func (suite *EngineSearchSuite) TestDayOnlyWithOrdinal() {
	suite.Equal([]string{"techfest", "mood-indigo"}, suite.search("13th"))
}

func (suite *EngineSearchSuite) TestSlashDate() {
	suite.Equal([]string{"techfest", "mood-indigo"}, suite.search("13/12/25"))
	suite.Equal([]string{"mood-indigo"}, suite.search("14/12/25"))
	suite.Equal([]string{"mood-indigo"}, suite.search("14/12/2025"))
}

func (suite *EngineSearchSuite) TestTypoTolerantText() {
	suite.Equal([]string{"techfest", "mood-indigo"}, suite.search("mumba1"))
	suite.Equal([]string{"kaizo"}, suite.search("ka1zo"))
}

func (suite *EngineSearchSuite) TestAllTokensMustMatch() {
	suite.Equal([]string{"mood-indigo"}, suite.search("mumba1 14/12/25"))
	suite.Empty(suite.search("ka1zo 14/12/25"))
}

func (suite *EngineSearchSuite) TestAlphabeticWordIsDateToken() {
	suite.Empty(suite.search("kaizo"))
}

func (suite *EngineSearchSuite) TestNoMatch() {
	suite.Empty(suite.search("xqzvwk9"))
}

func (suite *EngineSearchSuite) TestExpiredNeverReturned() {
	suite.NotContains(suite.search("2/12/25"), "expired")
}

func (suite *EngineSearchSuite) TestEmptyCollection() {
	suite.Empty(suite.engine.Search(nil, "", suite.today))
	suite.Empty(suite.engine.Search(nil, "mumba1", suite.today))
}

func TestEngine_Search(t *testing.T) {
	suite.Run(t, new(EngineSearchSuite))
}

func TestEngine_SearchDayOnlyAcrossMonths(t *testing.T) {
	engine := NewEngine(DefaultLocale)
	today := day(2025, time.December, 10)
	events := []Summary{
		summary("new-year", day(2025, time.December, 28), day(2026, time.January, 2), 0),
	}
	assert.Empty(t, engine.Search(events, "30", today), "day-only compares days of month only")
	assert.Empty(t, engine.Search(events, "1", today), "day-only compares days of month only")
	assert.Len(t, engine.Search(events, "30/12/25", today), 1, "full dates should still match")
}

func TestEngine_SearchVagueNaturalDates(t *testing.T) {
	engine := NewEngine(DefaultLocale)
	today := day(2025, time.December, 10)
	events := []Summary{
		summary("running", day(2025, time.December, 9), day(2025, time.December, 11), 0),
	}
	assert.Len(t, engine.Search(events, "today", today), 1, "today should match")
	assert.Len(t, engine.Search(events, "tomorrow", today), 1, "tomorrow should match")
	for _, query := range []string{"now", "noon", "tonight", "dec", "december", "may"} {
		assert.Empty(t, engine.Search(events, query, today), "%q should not denote a day", query)
	}
}

func TestEngine_Haystack(t *testing.T) {
	engine := NewEngine(DefaultLocale)
	e, err := NewSummary(Record{
		ID:          "a",
		College:     "IIT Bombay",
		EventName:   "Techfest",
		Location:    "Mumbai",
		Dates:       "12th to 13th Dec 2025",
		Type:        "Technical",
		Competition: "Open",
		SubEvents:   []SubEvent{{Name: "Robotics", Type: "Competition"}},
	})
	require.NoError(t, err, "summary should not fail")
	assert.Equal(t, "iit bombay techfest mumbai 12–13 dec 2025 technical open robotics competition", engine.Haystack(e))
}

func TestEngine_Locale(t *testing.T) {
	de := LocaleFor("de")
	assert.Equal(t, de, NewEngine(de).Locale())
}
