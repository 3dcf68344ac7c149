package grading

import "fmt"

// ValidationError reports a malformed standard answer or marking scheme.
// It is raised before any matching starts and is meant for the authoring
// teacher, never retried.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Reason)
}

// ScorerTransientError wraps a similarity-capability failure that is worth
// retrying (rate limit, timeout, 5xx from a hosted model).
type ScorerTransientError struct{ Err error }

func (e *ScorerTransientError) Error() string { return "scorer transient: " + e.Err.Error() }
func (e *ScorerTransientError) Unwrap() error { return e.Err }

// ScorerFatalError wraps a failure that retrying cannot fix (capability
// rejects the input outright). The affected point degrades to unmatched.
type ScorerFatalError struct{ Err error }

func (e *ScorerFatalError) Error() string { return "scorer fatal: " + e.Err.Error() }
func (e *ScorerFatalError) Unwrap() error { return e.Err }

// ScorerUnavailableError is returned by the engine when a majority of points
// could not be scored at all. The submission should be marked as errored and
// no result persisted.
type ScorerUnavailableError struct {
	Failed int
	Total  int
}

func (e *ScorerUnavailableError) Error() string {
	return fmt.Sprintf("scorer unavailable: %d of %d points failed", e.Failed, e.Total)
}
