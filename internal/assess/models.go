package assess

import "github.com/intemass/intemass/internal/grading"

// Question is a teacher-authored essay question.
type Question struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Subject    string `json:"subject,omitempty"`
	Curriculum string `json:"curriculum,omitempty"`
	MaxPoints  int    `json:"maxPoints"`
	CreatedAt  int64  `json:"createdAt,omitempty"`
	UpdatedAt  int64  `json:"updatedAt,omitempty"`
}

// StandardAnswer is the ideal answer for a question, decomposed into
// weighted points. Read-only input to grading once a submission exists.
type StandardAnswer struct {
	ID         string                  `json:"id"`
	QuestionID string                  `json:"questionId"`
	FullText   string                  `json:"fullText"`
	Points     []grading.SentencePoint `json:"sentenceList"`
	Keywords   []string                `json:"keywords,omitempty"`
	ConceptMap map[string]float64      `json:"conceptMap,omitempty"`
}

// MarkingScheme carries the rules used to award marks for a question.
type MarkingScheme struct {
	ID               string                `json:"id"`
	QuestionID       string                `json:"questionId"`
	Rules            []grading.MarkingRule `json:"rules"`
	TotalMarks       float64               `json:"totalMarks"`
	PassingThreshold float64               `json:"passingThreshold"`
}

// Grading view of a scheme.
func (m MarkingScheme) Scheme() grading.Scheme {
	return grading.Scheme{
		Rules:            m.Rules,
		TotalMarks:       m.TotalMarks,
		PassingThreshold: m.PassingThreshold,
	}
}

// Submission statuses. Transitions are driven only by the grading pipeline:
// pending → processing → completed | error.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusError      = "error"
)

// StudentAnswer is one student's submitted essay.
type StudentAnswer struct {
	ID               string `json:"id"`
	QuestionID       string `json:"questionId"`
	StudentName      string `json:"studentName"`
	AnswerText       string `json:"answerText"`
	SubmittedAt      int64  `json:"submittedAt"`
	ProcessingStatus string `json:"processingStatus"`
}

// GradingResult is the persisted outcome of grading one submission. At most
// one exists per StudentAnswer; regrading replaces it.
type GradingResult struct {
	ID              string                 `json:"id"`
	StudentAnswerID string                 `json:"studentAnswerId"`
	TotalScore      float64                `json:"totalScore"`
	MaxScore        float64                `json:"maxScore"`
	Percentage      float64                `json:"percentage"`
	MatchedPoints   []grading.MatchedPoint `json:"matchedPoints"`
	MissedPoints    []string               `json:"missedPoints"`
	OverallFeedback string                 `json:"overallFeedback"`
	ProcessingTime  int64                  `json:"processingTime"` // milliseconds
	GradedAt        int64                  `json:"gradedAt"`
}

// QuestionSummary backs the dashboard: per-question submission counts and
// average percentage over completed gradings.
type QuestionSummary struct {
	QuestionID    string  `json:"questionId"`
	Title         string  `json:"title"`
	Submissions   int     `json:"submissions"`
	Completed     int     `json:"completed"`
	Errored       int     `json:"errored"`
	AvgPercentage float64 `json:"avgPercentage"`
}
