package search

import (
	"github.com/stretchr/testify/assert"
	"testing"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  Query
	}{
		{
			name:  "empty",
			query: "   ",
			want:  Query{},
		},
		{
			name:  "day only",
			query: "12",
			want:  Query{DayOnly: true, Day: 12},
		},
		{
			name:  "day only with ordinal dominates",
			query: "mumbai 25TH dance",
			want:  Query{DayOnly: true, Day: 25},
		},
		{
			name:  "first day only token wins",
			query: "12 14th",
			want:  Query{DayOnly: true, Day: 12},
		},
		{
			name:  "slash dates and words are date tokens",
			query: "13/12/25 Dec",
			want:  Query{DateTokens: []string{"13/12/25", "Dec"}},
		},
		{
			name:  "other tokens are lowercased text tokens",
			query: "IIT-Bombay  2025 Mumba1",
			want:  Query{TextTokens: []string{"iit-bombay", "2025", "mumba1"}},
		},
		{
			name:  "three digit number is text",
			query: "123",
			want:  Query{TextTokens: []string{"123"}},
		},
		{
			name:  "mixed",
			query: "nov techfest'25",
			want:  Query{DateTokens: []string{"nov"}, TextTokens: []string{"techfest'25"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.query))
		})
	}
}
