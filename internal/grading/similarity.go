package grading

import (
	"context"
	"strings"
)

// Scorer is the similarity capability the matcher runs against. Implementations
// may be lexical, embedding-based, or model-backed; the engine only needs a
// score in [0,1] and the best-matching span of the candidate text.
//
// Retryable failures should be returned as *ScorerTransientError; anything
// else non-nil is treated as fatal for the point being scored. Required-term
// gating is applied by the matcher on top of whatever a Scorer returns, so
// implementations do not need to handle it.
type Scorer interface {
	Score(ctx context.Context, candidateText, pointText string, requiredTerms []string) (similarity float64, matchedSpan string, err error)
}

// ScorerFunc adapts a function to the Scorer interface.
type ScorerFunc func(ctx context.Context, candidateText, pointText string, requiredTerms []string) (float64, string, error)

func (f ScorerFunc) Score(ctx context.Context, c, p string, terms []string) (float64, string, error) {
	return f(ctx, c, p, terms)
}

// LexicalScorer is the reference Scorer: term-frequency cosine similarity over
// stemmed tokens, evaluated across sliding windows of the candidate's
// sentences. Deterministic and cheap; no external capability required.
type LexicalScorer struct {
	// MinSegmentLen mirrors the decomposer's segmentation so candidate windows
	// line up with how standard answers were split.
	MinSegmentLen int
	// WindowSpan is the largest number of consecutive sentences considered as
	// one candidate window.
	WindowSpan int
}

func NewLexicalScorer() *LexicalScorer {
	return &LexicalScorer{MinSegmentLen: 20, WindowSpan: 2}
}

func (s *LexicalScorer) Score(ctx context.Context, candidateText, pointText string, _ []string) (float64, string, error) {
	if err := ctx.Err(); err != nil {
		return 0, "", &ScorerTransientError{Err: err}
	}
	if strings.TrimSpace(candidateText) == "" {
		return 0, "", nil
	}
	span := s.WindowSpan
	if span < 1 {
		span = 1
	}
	minLen := s.MinSegmentLen
	if minLen <= 0 {
		minLen = 20
	}

	pointTF := termFreq(tokenize(pointText))
	sentences := splitSentences(candidateText, minLen)
	if len(sentences) == 0 {
		sentences = []string{candidateText}
	}

	best := 0.0
	bestSpan := sentences[0]
	for i := range sentences {
		for w := 1; w <= span && i+w <= len(sentences); w++ {
			window := strings.Join(sentences[i:i+w], " ")
			sim := cosine(pointTF, termFreq(tokenize(window)))
			if sim > best {
				best = sim
				bestSpan = window
			}
		}
	}
	return best, bestSpan, nil
}
