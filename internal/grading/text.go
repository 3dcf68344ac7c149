package grading

import (
	"math"
	"strings"
	"unicode"
)

// normalize casefolds, drops punctuation and collapses whitespace.
func normalize(s string) string {
	out := make([]rune, 0, len(s))
	space := false
	for _, r := range []rune(s) {
		switch {
		case unicode.IsSpace(r):
			space = true
		case unicode.IsPunct(r):
			// skip
		default:
			if space && len(out) > 0 {
				out = append(out, ' ')
			}
			space = false
			out = append(out, unicode.ToLower(r))
		}
	}
	return string(out)
}

func tokenize(s string) []string {
	return strings.Fields(normalize(s))
}

// stem strips common English inflection suffixes. Good enough for
// required-term and keyword matching; not a full stemmer.
func stem(w string) string {
	for _, suf := range []string{"ingly", "edly", "ing", "ies", "ed", "ly", "es", "s"} {
		if strings.HasSuffix(w, suf) && len(w)-len(suf) >= 3 {
			return strings.TrimSuffix(w, suf)
		}
	}
	return w
}

// splitSentences breaks text on sentence-final punctuation. Segments shorter
// than minLen runes are merged into the following segment so trivial
// fragments ("e.g.", initials) do not become points of their own.
func splitSentences(text string, minLen int) []string {
	var raw []string
	var b strings.Builder
	for _, r := range text {
		b.WriteRune(r)
		if r == '.' || r == '!' || r == '?' || r == ';' || r == '\n' {
			if s := strings.TrimSpace(b.String()); s != "" {
				raw = append(raw, s)
			}
			b.Reset()
		}
	}
	if s := strings.TrimSpace(b.String()); s != "" {
		raw = append(raw, s)
	}

	var out []string
	carry := ""
	for _, seg := range raw {
		if carry != "" {
			seg = carry + " " + seg
			carry = ""
		}
		if len([]rune(seg)) < minLen {
			carry = seg
			continue
		}
		out = append(out, seg)
	}
	if carry != "" {
		if len(out) > 0 {
			out[len(out)-1] += " " + carry
		} else {
			out = append(out, carry)
		}
	}
	return out
}

func termFreq(tokens []string) map[string]float64 {
	tf := make(map[string]float64, len(tokens))
	for _, t := range tokens {
		tf[stem(t)]++
	}
	return tf
}

func cosine(a, b map[string]float64) float64 {
	var dot, na, nb float64
	for k, va := range a {
		na += va * va
		if vb, ok := b[k]; ok {
			dot += va * vb
		}
	}
	for _, vb := range b {
		nb += vb * vb
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// containsTerm reports whether text contains the term, by case-insensitive
// substring or stemmed-token match.
func containsTerm(text, term string) bool {
	t := strings.ToLower(strings.TrimSpace(term))
	if t == "" {
		return false
	}
	if strings.Contains(strings.ToLower(text), t) {
		return true
	}
	ts := stem(t)
	for _, tok := range tokenize(text) {
		if stem(tok) == ts {
			return true
		}
	}
	return false
}

func containsAnyTerm(text string, terms []string) bool {
	for _, term := range terms {
		if containsTerm(text, term) {
			return true
		}
	}
	return false
}
