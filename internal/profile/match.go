package profile

import (
	"strings"

	"github.com/danieldevos90/brutally-honest-ai/internal/model"
)

// Match quality for a lookup name against a profile name or alias
const (
	scoreExact    = 1.0
	scoreContains = 0.9
	scoreFuzzy    = 0.75
)

// matchProfile returns how well query names p (0 when it does not)
func matchProfile(p model.Profile, query string) float64 {
	q := normalize(query)
	if q == "" {
		return 0
	}
	best := 0.0
	for _, name := range append([]string{p.Name}, p.Aliases...) {
		if s := matchName(normalize(name), q); s > best {
			best = s
		}
	}
	return best
}

func matchName(name, query string) float64 {
	if name == "" {
		return 0
	}
	if name == query {
		return scoreExact
	}
	if containsWords(query, name) {
		return scoreContains
	}
	if len(name) >= 5 && len(query) >= 5 && levenshtein(name, query) <= 1 {
		return scoreFuzzy
	}
	return 0
}

// factsFor copies a profile's facts annotated with the match score
func factsFor(p model.Profile, score float64) []model.ProfileFact {
	facts := make([]model.ProfileFact, 0, len(p.Facts))
	for _, f := range p.Facts {
		f.ProfileID = p.ID
		f.ProfileName = p.Name
		f.ProfileType = p.Type
		if f.Confidence <= 0 {
			f.Confidence = 1
		}
		f.MatchScore = score
		facts = append(facts, f)
	}
	return facts
}

func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(strings.Trim(s, " .,!?;:\"'"))), " ")
}

// containsWords reports whether needle occurs in haystack on word boundaries
func containsWords(haystack, needle string) bool {
	h := " " + haystack + " "
	return strings.Contains(h, " "+needle+" ")
}

func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	prev := make([]int, len(rb)+1)
	cur := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		cur[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			cur[j] = min(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(rb)]
}
