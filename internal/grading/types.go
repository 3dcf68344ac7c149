package grading

import "time"

// SentencePoint is one gradable idea inside a standard answer. Weights across
// all points of one answer sum to 1.
type SentencePoint struct {
	PointNumber   string   `json:"pointNumber"`
	Text          string   `json:"text"`
	Keywords      []string `json:"keywords,omitempty"`
	Weight        float64  `json:"weight"`
	RequiredTerms []string `json:"requiredTerms,omitempty"`
}

// MarkingRule awards marks when its condition over matched points holds.
// Condition is "all", "any", or an AND/OR expression over point numbers
// (e.g. "P1 AND P3 OR P4").
type MarkingRule struct {
	RuleID       string   `json:"ruleId"`
	Condition    string   `json:"condition"`
	Points       []string `json:"points"`
	MarksAwarded float64  `json:"marksAwarded"`
	Description  string   `json:"description,omitempty"`
}

// Scheme is the engine's view of a marking scheme.
type Scheme struct {
	Rules            []MarkingRule `json:"rules"`
	TotalMarks       float64       `json:"totalMarks"`
	PassingThreshold float64       `json:"passingThreshold"`
}

// MatchType buckets a similarity score.
type MatchType string

const (
	MatchExact   MatchType = "exact"
	MatchHigh    MatchType = "high"
	MatchPartial MatchType = "partial"
	MatchWeak    MatchType = "weak"
)

// MatchedPoint is one standard-answer point found in a student's text.
// MarksAwarded here is informational (weight-scaled); the authoritative total
// comes from rule evaluation.
type MatchedPoint struct {
	PointNumber     string    `json:"pointNumber"`
	StandardText    string    `json:"standardText"`
	StudentText     string    `json:"studentText"`
	SimilarityScore float64   `json:"similarityScore"`
	MatchType       MatchType `json:"matchType"`
	MarksAwarded    float64   `json:"marksAwarded"`
	Feedback        string    `json:"feedback,omitempty"`
}

// Result is the outcome of grading one submission against one standard answer.
// Every point of the standard answer appears in exactly one of MatchedPoints
// or MissedPoints.
type Result struct {
	TotalScore      float64        `json:"totalScore"`
	MaxScore        float64        `json:"maxScore"`
	Percentage      float64        `json:"percentage"`
	MatchedPoints   []MatchedPoint `json:"matchedPoints"`
	MissedPoints    []string       `json:"missedPoints"`
	SatisfiedRules  []string       `json:"satisfiedRules,omitempty"`
	OverallFeedback string         `json:"overallFeedback"`
	Clamped         bool           `json:"clamped,omitempty"`
	ProcessingTime  time.Duration  `json:"-"`
}
