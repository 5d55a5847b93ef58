package knowledge

import (
	"regexp"
	"strings"
	"unicode"
)

const (
	minPassageLen = 120
	maxPassages   = 1200
	maxChunkLen   = 600

	termWeight  = 3
	phraseBonus = 5
	domainBonus = 2
)

var domainKeywords = []string{"annex 1", "aseptic", "cleanroom", "grade a"}

// Term is one lowercased query term, compiled for whole-word matching.
type Term struct {
	Text string
	re   *regexp.Regexp
}

// Terms splits a query into lowercased whitespace-separated words. Text
// inside double quotes is kept together as a single multi-word term.
func Terms(query string) []Term {
	var words []string
	q := strings.ToLower(query)
	for {
		start := strings.IndexByte(q, '"')
		if start < 0 {
			break
		}
		end := strings.IndexByte(q[start+1:], '"')
		if end < 0 {
			break
		}
		words = append(words, strings.Fields(q[:start])...)
		if phrase := strings.Join(strings.Fields(q[start+1:start+1+end]), " "); phrase != "" {
			words = append(words, phrase)
		}
		q = q[start+1+end+1:]
	}
	words = append(words, strings.Fields(strings.ReplaceAll(q, `"`, " "))...)

	terms := make([]Term, 0, len(words))
	for _, w := range words {
		terms = append(terms, Term{Text: w, re: regexp.MustCompile(`\b` + regexp.QuoteMeta(w) + `\b`)})
	}
	return terms
}

// Score rates a passage against query terms: each whole-word occurrence of
// a term is worth 3, a multi-word term found verbatim adds 5, and mentioning
// a domain keyword adds 2 once.
func Score(text string, terms []Term) int {
	t := strings.ToLower(text)
	score := 0
	for _, term := range terms {
		score += len(term.re.FindAllStringIndex(t, -1)) * termWeight
		if strings.Contains(term.Text, " ") && strings.Contains(t, term.Text) {
			score += phraseBonus
		}
	}
	for _, kw := range domainKeywords {
		if strings.Contains(t, kw) {
			score += domainBonus
			break
		}
	}
	return score
}

// Passages splits page text into sentence-ending paragraphs longer than
// 120 characters, keeping at most the first 1200.
func Passages(text string) []string {
	var out []string
	start := 0
	for i := 0; i < len(text) && len(out) < maxPassages; i++ {
		if text[i] != '.' || i+1 >= len(text) || !unicode.IsSpace(rune(text[i+1])) {
			continue
		}
		out = appendPassage(out, text[start:i+1])
		j := i + 1
		for j < len(text) && unicode.IsSpace(rune(text[j])) {
			j++
		}
		start = j
		i = j - 1
	}
	if start < len(text) && len(out) < maxPassages {
		out = appendPassage(out, text[start:])
	}
	return out
}

func appendPassage(out []string, p string) []string {
	if len(p) > minPassageLen {
		return append(out, p)
	}
	return out
}
