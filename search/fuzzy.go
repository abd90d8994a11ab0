package search

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// haystackWordSeparator splits lowercased haystacks into words.
var haystackWordSeparator = regexp.MustCompile(`[^a-z0-9]+`)

// EditDistance returns the Levenshtein distance between the lowercased
// strings. Insertion, deletion and substitution each cost 1.
func EditDistance(a, b string) int {
	ra := []rune(strings.ToLower(a))
	rb := []rune(strings.ToLower(b))
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}
	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

// typoThreshold is the maximum edit distance tolerated for a token with the
// given length.
func typoThreshold(tokenLength int) int {
	switch {
	case tokenLength <= 4:
		return 1
	case tokenLength <= 7:
		return 2
	default:
		return 3
	}
}

// MatchesWord reports whether the token matches the word, either by being
// contained in it or by being within the typo threshold. An empty token
// matches everything.
func MatchesWord(token, word string) bool {
	if token == "" {
		return true
	}
	token = strings.ToLower(token)
	word = strings.ToLower(word)
	if strings.Contains(word, token) {
		return true
	}
	return EditDistance(token, word) <= typoThreshold(utf8.RuneCountInString(token))
}

// MatchesHaystack reports whether the token is contained in the haystack or
// matches any of its alphanumeric words with MatchesWord.
func MatchesHaystack(token, haystack string) bool {
	s := strings.ToLower(haystack)
	if strings.Contains(s, strings.ToLower(token)) {
		return true
	}
	for _, word := range haystackWordSeparator.Split(s, -1) {
		if word == "" {
			continue
		}
		if MatchesWord(token, word) {
			return true
		}
	}
	return false
}
