// Package grading implements the point-based answer matching and scoring
// engine: a standard answer decomposed into weighted points is matched
// against a student's free text, marking rules are evaluated over the matched
// set, and a deterministic, explainable result comes out.
package grading

import (
	"context"
	"time"
)

// Config carries the engine tunables. The partial threshold is the one that
// decides matched-vs-missed and is the most grading-sensitive knob.
type Config struct {
	ExactThreshold      float64
	HighThreshold       float64
	PartialThreshold    float64
	RequiredTermCeiling float64
	Concurrency         int
	ScorerRetries       int
	RetryBaseDelay      time.Duration
	SubmissionTimeout   time.Duration
}

func DefaultConfig() Config {
	return Config{
		ExactThreshold:      0.90,
		HighThreshold:       0.70,
		PartialThreshold:    0.40,
		RequiredTermCeiling: 0.40,
		Concurrency:         4,
		ScorerRetries:       3,
		RetryBaseDelay:      100 * time.Millisecond,
		SubmissionTimeout:   30 * time.Second,
	}
}

type Option func(*Config)

func WithThresholds(exact, high, partial float64) Option {
	return func(c *Config) {
		c.ExactThreshold, c.HighThreshold, c.PartialThreshold = exact, high, partial
	}
}
func WithRequiredTermCeiling(v float64) Option {
	return func(c *Config) { c.RequiredTermCeiling = v }
}
func WithConcurrency(n int) Option { return func(c *Config) { c.Concurrency = n } }
func WithRetries(n int, base time.Duration) Option {
	return func(c *Config) { c.ScorerRetries, c.RetryBaseDelay = n, base }
}
func WithSubmissionTimeout(d time.Duration) Option {
	return func(c *Config) { c.SubmissionTimeout = d }
}

// Engine runs the full matching and scoring pipeline for one submission.
// It holds no per-submission state; Grade is safe for concurrent use.
type Engine struct {
	scorer Scorer
	cfg    Config
}

func New(scorer Scorer, opts ...Option) *Engine {
	cfg := DefaultConfig()
	for _, o := range opts {
		o(&cfg)
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.ScorerRetries < 1 {
		cfg.ScorerRetries = 1
	}
	return &Engine{scorer: scorer, cfg: cfg}
}

// Input is everything Grade needs. Points and Scheme are read-only during
// grading; MaxScore is the question's maximum (or the scheme total when the
// caller prefers that cap).
type Input struct {
	Points     []SentencePoint
	Scheme     Scheme
	AnswerText string
	MaxScore   float64
}

// Grade validates the inputs, matches every point concurrently, evaluates the
// marking rules and aggregates a Result. Deterministic for a deterministic
// Scorer. Returns *ValidationError before any matching happens, and
// *ScorerUnavailableError when a majority of points could not be scored (the
// submission should then be marked errored, with no result persisted).
func (e *Engine) Grade(ctx context.Context, in Input) (Result, error) {
	started := time.Now()

	if err := ValidatePoints(in.Points); err != nil {
		return Result{}, err
	}
	if err := ValidateScheme(in.Scheme, in.Points); err != nil {
		return Result{}, err
	}
	if in.MaxScore <= 0 {
		return Result{}, &ValidationError{Field: "maxScore", Reason: "must be positive"}
	}

	if e.cfg.SubmissionTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.SubmissionTimeout)
		defer cancel()
	}

	outcomes := e.matchPoints(ctx, in.Points, in.AnswerText)

	failed := 0
	for _, o := range outcomes {
		if o.failed {
			failed++
		}
	}
	if failed*2 > len(outcomes) {
		return Result{}, &ScorerUnavailableError{Failed: failed, Total: len(outcomes)}
	}

	res := e.aggregate(in.Points, outcomes, in.Scheme, in.MaxScore)
	res.ProcessingTime = time.Since(started)
	return res, nil
}
