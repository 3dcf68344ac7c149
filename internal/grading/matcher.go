package grading

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"
)

// pointOutcome is the per-point result of one matching pass. Exactly one of
// matched-or-missed holds for every point; failed/timedOut record why a point
// ended up missed.
type pointOutcome struct {
	point    SentencePoint
	matched  *MatchedPoint
	failed   bool // scorer exhausted retries or failed fatally
	timedOut bool // submission deadline hit before this point was scored
}

// matchPoints scores every point of the standard answer against the student
// text concurrently, bounded by cfg.Concurrency. Point results are
// independent, so ordering of goroutine completion never affects the output:
// outcomes are collected by index.
func (e *Engine) matchPoints(ctx context.Context, points []SentencePoint, answerText string) []pointOutcome {
	outcomes := make([]pointOutcome, len(points))

	g := &errgroup.Group{}
	g.SetLimit(e.cfg.Concurrency)
	for i, p := range points {
		i, p := i, p
		g.Go(func() error {
			outcomes[i] = e.scoreOnePoint(ctx, p, answerText)
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

func (e *Engine) scoreOnePoint(ctx context.Context, p SentencePoint, answerText string) pointOutcome {
	out := pointOutcome{point: p}
	if ctx.Err() != nil {
		out.timedOut = true
		return out
	}

	sim, span, err := e.scoreWithRetry(ctx, p, answerText)
	if err != nil {
		// Only the submission-level deadline counts as a timeout; a scorer
		// reporting its own deadline is an ordinary failure for this point.
		if ctx.Err() != nil {
			out.timedOut = true
		} else {
			out.failed = true
		}
		return out
	}

	if sim < 0 {
		sim = 0
	}
	if sim > 1 {
		sim = 1
	}
	// Required-term gate: no mandated term present caps the score below the
	// "partial"/"high" boundary no matter what the scorer said.
	if len(p.RequiredTerms) > 0 && !containsAnyTerm(answerText, p.RequiredTerms) {
		if sim > e.cfg.RequiredTermCeiling {
			sim = e.cfg.RequiredTermCeiling
		}
	}

	mt := e.classify(sim)
	if mt == MatchWeak {
		// Below the partial threshold the point counts as missed.
		return out
	}
	out.matched = &MatchedPoint{
		PointNumber:     p.PointNumber,
		StandardText:    p.Text,
		StudentText:     span,
		SimilarityScore: sim,
		MatchType:       mt,
	}
	return out
}

func (e *Engine) scoreWithRetry(ctx context.Context, p SentencePoint, answerText string) (float64, string, error) {
	var lastErr error
	delay := e.cfg.RetryBaseDelay
	for attempt := 0; attempt < e.cfg.ScorerRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return 0, "", ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}
		sim, span, err := e.scorer.Score(ctx, answerText, p.Text, p.RequiredTerms)
		if err == nil {
			return sim, span, nil
		}
		lastErr = err
		var transient *ScorerTransientError
		if !errors.As(err, &transient) {
			// Fatal: retrying cannot help.
			return 0, "", err
		}
		if ctx.Err() != nil {
			return 0, "", ctx.Err()
		}
	}
	return 0, "", lastErr
}

func (e *Engine) classify(sim float64) MatchType {
	switch {
	case sim >= e.cfg.ExactThreshold:
		return MatchExact
	case sim >= e.cfg.HighThreshold:
		return MatchHigh
	case sim >= e.cfg.PartialThreshold:
		return MatchPartial
	default:
		return MatchWeak
	}
}
