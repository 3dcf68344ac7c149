package assess

import "context"

// ListOpts filters submission listings for teacher dashboards and student
// "my submissions" views.
type ListOpts struct {
	QuestionID string
	Student    string
	Status     string
	Limit      int
	Offset     int
}

// Store is the document-store boundary. Grading treats it as read-only for
// inputs and write-once (upsert-on-regrade) for results.
type Store interface {
	PutQuestion(ctx context.Context, q Question) error
	GetQuestion(ctx context.Context, id string) (Question, error)
	ListQuestions(ctx context.Context, limit, offset int) ([]Question, error)

	PutStandardAnswer(ctx context.Context, a StandardAnswer) error
	GetStandardAnswer(ctx context.Context, questionID string) (StandardAnswer, error)

	PutMarkingScheme(ctx context.Context, m MarkingScheme) error
	GetMarkingScheme(ctx context.Context, questionID string) (MarkingScheme, error)

	NewSubmission(ctx context.Context, s StudentAnswer) (StudentAnswer, error)
	GetSubmission(ctx context.Context, id string) (StudentAnswer, error)
	ListSubmissions(ctx context.Context, opts ListOpts) ([]StudentAnswer, error)
	SetSubmissionStatus(ctx context.Context, id, status string) error

	// UpsertResult replaces any prior result for the same submission.
	UpsertResult(ctx context.Context, r GradingResult) error
	GetResult(ctx context.Context, studentAnswerID string) (GradingResult, error)

	Summary(ctx context.Context) ([]QuestionSummary, error)
}
