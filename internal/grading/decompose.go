package grading

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

const weightTolerance = 1e-6

// DecomposeConfig controls automatic point extraction from a standard
// answer's full text.
type DecomposeConfig struct {
	Stopwords     map[string]struct{}
	MinSegmentLen int // runes; shorter segments merge into neighbors
	MaxKeywords   int // per point
}

func DefaultDecomposeConfig() DecomposeConfig {
	return DecomposeConfig{
		Stopwords:     defaultStopwords(),
		MinSegmentLen: 20,
		MaxKeywords:   6,
	}
}

// ValidatePoints checks hand-authored points: unique pointNumbers, weights in
// [0,1] summing to 1 within tolerance, non-empty text.
func ValidatePoints(points []SentencePoint) error {
	if len(points) == 0 {
		return &ValidationError{Field: "points", Reason: "at least one point required"}
	}
	seen := make(map[string]struct{}, len(points))
	sum := 0.0
	for _, p := range points {
		if p.PointNumber == "" {
			return &ValidationError{Field: "pointNumber", Reason: "empty"}
		}
		if _, dup := seen[p.PointNumber]; dup {
			return &ValidationError{Field: "pointNumber", Reason: "duplicate " + p.PointNumber}
		}
		seen[p.PointNumber] = struct{}{}
		if strings.TrimSpace(p.Text) == "" {
			return &ValidationError{Field: "text", Reason: "empty text on " + p.PointNumber}
		}
		if p.Weight < 0 || p.Weight > 1 {
			return &ValidationError{Field: "weight", Reason: fmt.Sprintf("%s weight %.4f outside [0,1]", p.PointNumber, p.Weight)}
		}
		sum += p.Weight
	}
	if math.Abs(sum-1.0) > weightTolerance {
		return &ValidationError{Field: "weight", Reason: fmt.Sprintf("weights sum to %.6f, want 1.0", sum)}
	}
	return nil
}

// Decompose splits a standard answer's full text into sentence-level points.
// Pure: same text and config always yield the same points. Point numbers are
// sequential ("P1", "P2", ...), keywords come from term-frequency salience
// with stopwords excluded, and weights are proportional to segment length,
// normalized to sum to 1.
func Decompose(fullText string, cfg DecomposeConfig) ([]SentencePoint, error) {
	if strings.TrimSpace(fullText) == "" {
		return nil, &ValidationError{Field: "fullText", Reason: "empty standard answer"}
	}
	if cfg.MinSegmentLen <= 0 {
		cfg.MinSegmentLen = DefaultDecomposeConfig().MinSegmentLen
	}
	if cfg.MaxKeywords <= 0 {
		cfg.MaxKeywords = DefaultDecomposeConfig().MaxKeywords
	}
	if cfg.Stopwords == nil {
		cfg.Stopwords = defaultStopwords()
	}

	segments := splitSentences(fullText, cfg.MinSegmentLen)
	if len(segments) == 0 {
		return nil, &ValidationError{Field: "fullText", Reason: "no usable segments"}
	}

	totalLen := 0
	for _, s := range segments {
		totalLen += len([]rune(s))
	}

	points := make([]SentencePoint, 0, len(segments))
	for i, seg := range segments {
		points = append(points, SentencePoint{
			PointNumber: fmt.Sprintf("P%d", i+1),
			Text:        seg,
			Keywords:    salientKeywords(seg, cfg),
			Weight:      float64(len([]rune(seg))) / float64(totalLen),
		})
	}
	normalizeWeights(points)
	return points, nil
}

// salientKeywords ranks content words by frequency, then length as tiebreak,
// then alphabetically so output is stable.
func salientKeywords(seg string, cfg DecomposeConfig) []string {
	counts := map[string]int{}
	repr := map[string]string{} // stem -> surface form first seen
	for _, tok := range tokenize(seg) {
		if _, stop := cfg.Stopwords[tok]; stop {
			continue
		}
		if len([]rune(tok)) < 3 {
			continue
		}
		st := stem(tok)
		counts[st]++
		if _, ok := repr[st]; !ok {
			repr[st] = tok
		}
	}
	stems := make([]string, 0, len(counts))
	for st := range counts {
		stems = append(stems, st)
	}
	sort.Slice(stems, func(i, j int) bool {
		a, b := stems[i], stems[j]
		if counts[a] != counts[b] {
			return counts[a] > counts[b]
		}
		if len(repr[a]) != len(repr[b]) {
			return len(repr[a]) > len(repr[b])
		}
		return a < b
	})
	if len(stems) > cfg.MaxKeywords {
		stems = stems[:cfg.MaxKeywords]
	}
	out := make([]string, len(stems))
	for i, st := range stems {
		out[i] = repr[st]
	}
	return out
}

func normalizeWeights(points []SentencePoint) {
	sum := 0.0
	for _, p := range points {
		sum += p.Weight
	}
	if sum == 0 {
		for i := range points {
			points[i].Weight = 1.0 / float64(len(points))
		}
		return
	}
	for i := range points {
		points[i].Weight /= sum
	}
}

func defaultStopwords() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "so", "because",
		"of", "in", "on", "at", "to", "from", "by", "with", "about", "as",
		"is", "are", "was", "were", "be", "been", "being", "it", "its", "this",
		"that", "these", "those", "which", "who", "whom", "what", "when",
		"where", "how", "why", "not", "no", "can", "could", "will", "would",
		"shall", "should", "may", "might", "must", "do", "does", "did", "has",
		"have", "had", "for", "their", "there", "they", "them", "he", "she",
		"his", "her", "we", "our", "you", "your", "i", "me", "my", "also",
		"such", "than", "too", "very", "more", "most", "other", "some", "any",
		"each", "both", "into", "through", "during", "before", "after",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
