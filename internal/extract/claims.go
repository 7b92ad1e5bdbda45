package extract

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/danieldevos90/brutally-honest-ai/internal/model"
)

// ClaimExtractor splits free-form text into classified claims.
// Extraction is rule based: the same text always yields the same claims.
type ClaimExtractor struct {
	minWords int
	rules    []classRule
}

type classRule struct {
	class model.ClaimClass
	label string
	cues  []cue
}

type cue struct {
	text string
	re   *regexp.Regexp
}

func newCues(words ...string) []cue {
	cues := make([]cue, 0, len(words))
	for _, w := range words {
		cues = append(cues, cue{text: w, re: regexp.MustCompile(`\b` + regexp.QuoteMeta(w) + `\b`)})
	}
	return cues
}

var (
	opinionCues = newCues(
		"i think", "i believe", "i feel", "i guess", "i suppose", "i reckon",
		"in my opinion", "in my view", "personally",
		"best", "worst", "amazing", "awesome", "terrible", "awful", "horrible",
		"wonderful", "beautiful", "ugly", "boring", "overrated", "underrated",
		"should", "shouldn't", "ought to",
	)
	predictionCues = newCues(
		"will", "won't", "shall", "going to", "gonna", "plan to", "plans to",
		"expect", "expects", "forecast", "predict", "predicts",
		"next year", "next week", "next month", "tomorrow", "someday", "in the future",
	)
	hedgeCues = newCues(
		"maybe", "perhaps", "probably", "possibly", "seems", "appears",
		"might", "could", "likely", "supposedly", "apparently",
	)
	factCues = newCues(
		"is", "are", "was", "were", "has", "have", "had", "can", "cannot", "can't",
		"does", "did", "contains", "consists", "always", "never", "every", "all", "none",
		"according to", "research shows", "studies show", "more than", "less than",
		"the most", "the largest", "the longest", "the first",
	)

	fillerWords = map[string]bool{
		"um": true, "uh": true, "er": true, "ah": true, "hmm": true,
		"okay": true, "ok": true, "yeah": true, "well": true, "so": true,
	}

	metaPrefixes = []string{"let me", "let's", "i mean", "as i said", "i want to say", "what i'm saying"}

	conjunctions = []string{"and", "but", "or", "so", "while", "whereas", "yet"}

	abbreviations = map[string]bool{
		"dr": true, "mr": true, "mrs": true, "ms": true, "prof": true, "st": true,
		"vs": true, "etc": true, "e.g": true, "i.e": true, "inc": true, "ltd": true, "jr": true, "sr": true,
	}

	digitPattern = regexp.MustCompile(`\d`)
)

// NewClaimExtractor creates a new claim extractor; clauses shorter than
// minWords are merged into their neighbours or skipped
func NewClaimExtractor(minWords int) *ClaimExtractor {
	if minWords <= 0 {
		minWords = 3
	}
	return &ClaimExtractor{
		minWords: minWords,
		rules: []classRule{
			{class: model.ClassOpinion, label: "opinion", cues: opinionCues},
			{class: model.ClassPrediction, label: "prediction", cues: predictionCues},
			{class: model.ClassStatement, label: "hedge", cues: hedgeCues},
		},
	}
}

// span is a half-open byte range into the original text
type span struct {
	start, end int
}

type sentence struct {
	span
	question bool
}

// Extract splits text into claims in source order
func (e *ClaimExtractor) Extract(text string) []model.Claim {
	if strings.TrimSpace(text) == "" {
		return []model.Claim{}
	}

	claims := make([]model.Claim, 0)
	for _, s := range splitSentences(text) {
		if s.question {
			continue
		}
		for _, c := range e.splitClauses(text, s.span) {
			surface := trimClause(text[c.start:c.end])
			if e.skip(surface) {
				continue
			}
			class, heuristic := e.classify(surface)
			claims = append(claims, model.Claim{
				ID:        fmt.Sprintf("claim-%d", len(claims)+1),
				Text:      surface,
				Class:     class,
				Index:     len(claims),
				Heuristic: heuristic,
			})
		}
	}
	return claims
}

// splitSentences finds sentence spans on terminators and line breaks
func splitSentences(text string) []sentence {
	var sentences []sentence
	start := 0
	for i := 0; i < len(text); i++ {
		c := text[i]
		switch c {
		case '\n', ';':
		case '!', '?':
		case '.':
			// Decimal point or abbreviation
			if i > 0 && i+1 < len(text) && isDigit(text[i-1]) && isDigit(text[i+1]) {
				continue
			}
			if abbreviations[strings.ToLower(lastWord(text[start:i]))] {
				continue
			}
		default:
			continue
		}
		// Consume runs of terminators ("?!", "...")
		end := i + 1
		for end < len(text) && strings.IndexByte(".!?", text[end]) >= 0 {
			end++
		}
		if c != '\n' && end < len(text) && !unicode.IsSpace(rune(text[end])) && text[end] != '"' && text[end] != '\'' {
			continue
		}
		question := strings.ContainsRune(text[i:end], '?')
		if strings.TrimSpace(text[start:end]) != "" {
			sentences = append(sentences, sentence{span: span{start, end}, question: question})
		}
		start = end
		i = end - 1
	}
	if strings.TrimSpace(text[start:]) != "" {
		sentences = append(sentences, sentence{span: span{start, len(text)}})
	}
	return sentences
}

// splitClauses cuts a sentence at commas and clause-joining conjunctions,
// merging fragments shorter than minWords into a neighbour
func (e *ClaimExtractor) splitClauses(text string, s span) []span {
	var cuts []span // regions removed between clauses
	body := text[s.start:s.end]
	lower := strings.ToLower(body)
	for i := 0; i < len(body); i++ {
		if body[i] == ',' && (i+1 == len(body) || body[i+1] == ' ') {
			cuts = append(cuts, span{s.start + i, s.start + i + 1})
			continue
		}
		if body[i] != ' ' {
			continue
		}
		for _, conj := range conjunctions {
			w := " " + conj + " "
			if strings.HasPrefix(lower[i:], w) {
				cuts = append(cuts, span{s.start + i, s.start + i + len(w) - 1})
				break
			}
		}
	}

	var segments []span
	pos := s.start
	for _, c := range cuts {
		if c.start < pos {
			continue
		}
		segments = append(segments, span{pos, c.start})
		pos = c.end
	}
	segments = append(segments, span{pos, s.end})

	var out []span
	pending := -1
	for _, seg := range segments {
		if strings.TrimSpace(text[seg.start:seg.end]) == "" {
			continue
		}
		if pending >= 0 {
			seg.start = pending
			pending = -1
		}
		if wordCount(text[seg.start:seg.end]) < e.minWords {
			if len(out) > 0 {
				out[len(out)-1].end = seg.end
			} else {
				pending = seg.start
			}
			continue
		}
		out = append(out, seg)
	}
	if pending >= 0 {
		out = append(out, span{pending, s.end})
	}
	return out
}

// skip reports whether a clause carries no checkable content
func (e *ClaimExtractor) skip(clause string) bool {
	if wordCount(clause) < e.minWords {
		return true
	}
	lower := strings.ToLower(clause)
	for _, p := range metaPrefixes {
		if strings.HasPrefix(lower, p+" ") {
			return true
		}
	}
	content := 0
	for _, w := range strings.Fields(lower) {
		if !fillerWords[strings.Trim(w, ",.!?;:'\"")] {
			content++
		}
	}
	return content < e.minWords
}

// classify picks the first matching rule; cue order is fixed
func (e *ClaimExtractor) classify(clause string) (model.ClaimClass, string) {
	lower := strings.ToLower(clause)
	for _, rule := range e.rules {
		for _, c := range rule.cues {
			if c.re.MatchString(lower) {
				return rule.class, rule.label + ":" + c.text
			}
		}
	}
	if digitPattern.MatchString(clause) {
		return model.ClassFact, "fact:number"
	}
	for _, c := range factCues {
		if c.re.MatchString(lower) {
			return model.ClassFact, "fact:" + c.text
		}
	}
	if hasInnerProperNoun(clause) {
		return model.ClassFact, "fact:proper-noun"
	}
	return model.ClassStatement, "default"
}

// Entities returns runs of capitalized words, e.g. "Praxis Labs"
func Entities(text string) []string {
	var entities []string
	var current []string
	flush := func() {
		if len(current) > 0 {
			entities = append(entities, strings.Join(current, " "))
			current = nil
		}
	}
	for _, raw := range strings.Fields(text) {
		w := strings.Trim(raw, ",.!?;:()\"'")
		if w == "" || !isCapitalized(w) || entityStopwords[strings.ToLower(w)] {
			flush()
			continue
		}
		current = append(current, w)
		if strings.ContainsAny(raw, ",.!?;:)") {
			flush()
		}
	}
	flush()
	return entities
}

var entityStopwords = map[string]bool{
	"a": true, "an": true, "the": true, "i": true, "it": true, "this": true, "that": true,
	"he": true, "she": true, "we": true, "they": true, "my": true, "our": true, "in": true,
	"on": true, "and": true, "but": true, "or": true, "so": true, "if": true, "there": true,
}

func hasInnerProperNoun(clause string) bool {
	words := strings.Fields(clause)
	for i := 1; i < len(words); i++ {
		w := strings.Trim(words[i], ",.!?;:()\"'")
		if w != "I" && isCapitalized(w) {
			return true
		}
	}
	return false
}

func isCapitalized(w string) bool {
	r, _ := utf8.DecodeRuneInString(w)
	return unicode.IsUpper(r)
}

func trimClause(s string) string {
	return strings.TrimFunc(s, func(r rune) bool {
		return unicode.IsSpace(r) || strings.ContainsRune(",;-.!", r)
	})
}

func wordCount(s string) int {
	return len(strings.Fields(s))
}

func lastWord(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return strings.TrimLeft(fields[len(fields)-1], "(\"'")
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}
