package assess

import (
	"context"
	"errors"
	"testing"

	"github.com/intemass/intemass/internal/grading"
)

const standardText = "Mitochondria are the powerhouse of the cell and produce its energy. " +
	"They generate ATP through the process of cellular respiration."

func newTestService(t *testing.T, scorer grading.Scorer, opts ...ServiceOption) (*Service, Store) {
	t.Helper()
	store := NewInMemoryStore()
	engine := grading.New(scorer)
	return NewService(store, engine, opts...), store
}

func authorQuestion(t *testing.T, svc *Service) AuthorInput {
	t.Helper()
	out, err := svc.CreateQuestion(context.Background(), AuthorInput{
		Question: Question{Title: "Explain the role of mitochondria.", MaxPoints: 10},
		Answer:   StandardAnswer{FullText: standardText},
	})
	if err != nil {
		t.Fatalf("CreateQuestion: %v", err)
	}
	return out
}

func TestCreateQuestionAutoDecomposes(t *testing.T) {
	svc, _ := newTestService(t, grading.NewLexicalScorer())
	out := authorQuestion(t, svc)

	if out.Question.ID == "" {
		t.Error("question ID not assigned")
	}
	if len(out.Answer.Points) != 2 {
		t.Fatalf("got %d points, want 2 from decomposition", len(out.Answer.Points))
	}
	if out.Scheme.TotalMarks != 10 {
		t.Errorf("totalMarks = %.1f, want defaulted to maxPoints 10", out.Scheme.TotalMarks)
	}
	if len(out.Scheme.Rules) != 2 {
		t.Errorf("got %d default rules, want one per point", len(out.Scheme.Rules))
	}
	var sum float64
	for _, r := range out.Scheme.Rules {
		sum += r.MarksAwarded
	}
	if diff := sum - 10; diff > 1e-6 || diff < -1e-6 {
		t.Errorf("default rule marks sum to %.4f, want 10", sum)
	}
}

func TestCreateQuestionValidation(t *testing.T) {
	svc, store := newTestService(t, grading.NewLexicalScorer())

	tests := []struct {
		name string
		in   AuthorInput
	}{
		{"missing title", AuthorInput{
			Question: Question{MaxPoints: 10},
			Answer:   StandardAnswer{FullText: standardText},
		}},
		{"zero max points", AuthorInput{
			Question: Question{Title: "q", MaxPoints: 0},
			Answer:   StandardAnswer{FullText: standardText},
		}},
		{"max points above cap", AuthorInput{
			Question: Question{Title: "q", MaxPoints: 150},
			Answer:   StandardAnswer{FullText: standardText},
		}},
		{"hand-authored weights do not sum", AuthorInput{
			Question: Question{Title: "q", MaxPoints: 10},
			Answer: StandardAnswer{Points: []grading.SentencePoint{
				{PointNumber: "P1", Text: "a", Weight: 0.3},
				{PointNumber: "P2", Text: "b", Weight: 0.3},
			}},
		}},
		{"empty standard answer", AuthorInput{
			Question: Question{Title: "q", MaxPoints: 10},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateQuestion(context.Background(), tt.in)
			var verr *grading.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("err = %v, want ValidationError", err)
			}
		})
	}

	// Fail-fast: nothing persisted for any rejected input.
	qs, err := store.ListQuestions(context.Background(), 0, 0)
	if err != nil {
		t.Fatalf("ListQuestions: %v", err)
	}
	if len(qs) != 0 {
		t.Errorf("%d questions persisted after rejected inputs, want 0", len(qs))
	}
}

func TestSubmitAndGradeLifecycle(t *testing.T) {
	svc, store := newTestService(t, grading.NewLexicalScorer())
	out := authorQuestion(t, svc)
	ctx := context.Background()

	sub, err := svc.Submit(ctx, StudentAnswer{
		QuestionID:  out.Question.ID,
		StudentName: "alice",
		AnswerText:  "The mitochondria are the powerhouse of the cell and make its energy through cellular respiration producing ATP.",
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if sub.ProcessingStatus != StatusPending {
		t.Errorf("status after submit = %q, want pending", sub.ProcessingStatus)
	}

	gr, err := svc.Grade(ctx, sub.ID)
	if err != nil {
		t.Fatalf("Grade: %v", err)
	}
	if gr.StudentAnswerID != sub.ID {
		t.Errorf("result keyed to %q, want %q", gr.StudentAnswerID, sub.ID)
	}
	if gr.TotalScore <= 0 {
		t.Errorf("total score = %.2f, want positive for a close answer", gr.TotalScore)
	}
	if gr.MaxScore != 10 {
		t.Errorf("max score = %.1f, want 10", gr.MaxScore)
	}

	after, err := store.GetSubmission(ctx, sub.ID)
	if err != nil {
		t.Fatalf("GetSubmission: %v", err)
	}
	if after.ProcessingStatus != StatusCompleted {
		t.Errorf("status after grade = %q, want completed", after.ProcessingStatus)
	}
	stored, err := store.GetResult(ctx, sub.ID)
	if err != nil {
		t.Fatalf("GetResult: %v", err)
	}
	if stored.ID != gr.ID {
		t.Errorf("stored result %q differs from returned %q", stored.ID, gr.ID)
	}
}

func TestRegradeReplacesResult(t *testing.T) {
	svc, store := newTestService(t, grading.NewLexicalScorer())
	out := authorQuestion(t, svc)
	ctx := context.Background()

	sub, err := svc.Submit(ctx, StudentAnswer{
		QuestionID:  out.Question.ID,
		StudentName: "bob",
		AnswerText:  "Mitochondria make energy through cellular respiration generating ATP for the cell.",
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	first, err := svc.Grade(ctx, sub.ID)
	if err != nil {
		t.Fatalf("first Grade: %v", err)
	}
	second, err := svc.Grade(ctx, sub.ID)
	if err != nil {
		t.Fatalf("regrade: %v", err)
	}
	if first.ID == second.ID {
		t.Error("regrade returned the same result ID")
	}
	stored, err := store.GetResult(ctx, sub.ID)
	if err != nil {
		t.Fatalf("GetResult: %v", err)
	}
	if stored.ID != second.ID {
		t.Errorf("stored result = %q, want the regrade %q to replace %q", stored.ID, second.ID, first.ID)
	}
	if stored.TotalScore != first.TotalScore {
		t.Errorf("regrade of unchanged answer scored %.2f, want %.2f", stored.TotalScore, first.TotalScore)
	}
}

func TestGradeScorerUnavailableErrorsSubmission(t *testing.T) {
	down := grading.ScorerFunc(func(ctx context.Context, _, _ string, _ []string) (float64, string, error) {
		return 0, "", &grading.ScorerFatalError{Err: errors.New("backend down")}
	})
	svc, store := newTestService(t, down)
	out := authorQuestion(t, svc)
	ctx := context.Background()

	sub, err := svc.Submit(ctx, StudentAnswer{
		QuestionID:  out.Question.ID,
		StudentName: "carol",
		AnswerText:  "Mitochondria make energy.",
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	_, err = svc.Grade(ctx, sub.ID)
	var uerr *grading.ScorerUnavailableError
	if !errors.As(err, &uerr) {
		t.Fatalf("err = %v, want ScorerUnavailableError", err)
	}

	after, err := store.GetSubmission(ctx, sub.ID)
	if err != nil {
		t.Fatalf("GetSubmission: %v", err)
	}
	if after.ProcessingStatus != StatusError {
		t.Errorf("status = %q, want error", after.ProcessingStatus)
	}
	if _, err := store.GetResult(ctx, sub.ID); !IsNotFound(err) {
		t.Errorf("GetResult err = %v, want not-found (no result on errored submission)", err)
	}
}

func TestSubmitValidation(t *testing.T) {
	svc, _ := newTestService(t, grading.NewLexicalScorer())
	out := authorQuestion(t, svc)
	ctx := context.Background()

	var verr *grading.ValidationError
	if _, err := svc.Submit(ctx, StudentAnswer{QuestionID: out.Question.ID, StudentName: "dan"}); !errors.As(err, &verr) {
		t.Errorf("missing answer text: err = %v, want ValidationError", err)
	}
	if _, err := svc.Submit(ctx, StudentAnswer{QuestionID: out.Question.ID, AnswerText: "x"}); !errors.As(err, &verr) {
		t.Errorf("missing student name: err = %v, want ValidationError", err)
	}
	if _, err := svc.Submit(ctx, StudentAnswer{QuestionID: "no-such-question", StudentName: "dan", AnswerText: "x"}); !IsNotFound(err) {
		t.Errorf("unknown question: err = %v, want not-found", err)
	}
}

func TestFeedbackFailureDoesNotAffectScore(t *testing.T) {
	flaky := feedbackFunc(func(ctx context.Context, _ string, _ grading.Result) (string, error) {
		return "", errors.New("model offline")
	})
	svc, store := newTestService(t, grading.NewLexicalScorer(), WithFeedbackGenerator(flaky))
	out := authorQuestion(t, svc)
	ctx := context.Background()

	sub, err := svc.Submit(ctx, StudentAnswer{
		QuestionID:  out.Question.ID,
		StudentName: "erin",
		AnswerText:  "Mitochondria are the powerhouse of the cell producing ATP by cellular respiration.",
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	gr, err := svc.Grade(ctx, sub.ID)
	if err != nil {
		t.Fatalf("Grade: %v (feedback failures must not fail grading)", err)
	}
	if gr.OverallFeedback == "" {
		t.Error("deterministic feedback missing")
	}
	after, _ := store.GetSubmission(ctx, sub.ID)
	if after.ProcessingStatus != StatusCompleted {
		t.Errorf("status = %q, want completed despite feedback failure", after.ProcessingStatus)
	}
}

type feedbackFunc func(ctx context.Context, answerText string, res grading.Result) (string, error)

func (f feedbackFunc) GenerateFeedback(ctx context.Context, a string, r grading.Result) (string, error) {
	return f(ctx, a, r)
}
