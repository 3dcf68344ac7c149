package assess

import (
	"context"
	"testing"
)

func seedSubmissions(t *testing.T, store Store) (qID string, subIDs []string) {
	t.Helper()
	ctx := context.Background()
	q := Question{ID: "q1", Title: "Photosynthesis", MaxPoints: 10}
	if err := store.PutQuestion(ctx, q); err != nil {
		t.Fatalf("PutQuestion: %v", err)
	}
	for _, name := range []string{"alice", "bob", "alice"} {
		sub, err := store.NewSubmission(ctx, StudentAnswer{QuestionID: q.ID, StudentName: name, AnswerText: "x"})
		if err != nil {
			t.Fatalf("NewSubmission: %v", err)
		}
		subIDs = append(subIDs, sub.ID)
	}
	return q.ID, subIDs
}

func TestListSubmissionsFilters(t *testing.T) {
	store := NewInMemoryStore()
	qID, subIDs := seedSubmissions(t, store)
	ctx := context.Background()

	if err := store.SetSubmissionStatus(ctx, subIDs[0], StatusCompleted); err != nil {
		t.Fatalf("SetSubmissionStatus: %v", err)
	}

	t.Run("by student", func(t *testing.T) {
		subs, err := store.ListSubmissions(ctx, ListOpts{QuestionID: qID, Student: "alice"})
		if err != nil {
			t.Fatalf("ListSubmissions: %v", err)
		}
		if len(subs) != 2 {
			t.Errorf("got %d submissions for alice, want 2", len(subs))
		}
	})

	t.Run("by status", func(t *testing.T) {
		subs, err := store.ListSubmissions(ctx, ListOpts{Status: StatusPending})
		if err != nil {
			t.Fatalf("ListSubmissions: %v", err)
		}
		if len(subs) != 2 {
			t.Errorf("got %d pending submissions, want 2", len(subs))
		}
	})

	t.Run("pagination", func(t *testing.T) {
		subs, err := store.ListSubmissions(ctx, ListOpts{Limit: 2, Offset: 2})
		if err != nil {
			t.Fatalf("ListSubmissions: %v", err)
		}
		if len(subs) != 1 {
			t.Errorf("got %d submissions at offset 2, want 1", len(subs))
		}
	})
}

func TestUpsertResultReplaces(t *testing.T) {
	store := NewInMemoryStore()
	_, subIDs := seedSubmissions(t, store)
	ctx := context.Background()

	first := GradingResult{ID: "r1", StudentAnswerID: subIDs[0], Percentage: 40}
	if err := store.UpsertResult(ctx, first); err != nil {
		t.Fatalf("UpsertResult: %v", err)
	}
	second := GradingResult{ID: "r2", StudentAnswerID: subIDs[0], Percentage: 70}
	if err := store.UpsertResult(ctx, second); err != nil {
		t.Fatalf("UpsertResult: %v", err)
	}
	got, err := store.GetResult(ctx, subIDs[0])
	if err != nil {
		t.Fatalf("GetResult: %v", err)
	}
	if got.ID != "r2" || got.Percentage != 70 {
		t.Errorf("result = %+v, want the replacement r2", got)
	}
}

func TestSummary(t *testing.T) {
	store := NewInMemoryStore()
	qID, subIDs := seedSubmissions(t, store)
	ctx := context.Background()

	for i, pct := range []float64{80, 60} {
		if err := store.SetSubmissionStatus(ctx, subIDs[i], StatusCompleted); err != nil {
			t.Fatalf("SetSubmissionStatus: %v", err)
		}
		if err := store.UpsertResult(ctx, GradingResult{StudentAnswerID: subIDs[i], Percentage: pct}); err != nil {
			t.Fatalf("UpsertResult: %v", err)
		}
	}
	if err := store.SetSubmissionStatus(ctx, subIDs[2], StatusError); err != nil {
		t.Fatalf("SetSubmissionStatus: %v", err)
	}

	summary, err := store.Summary(ctx)
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if len(summary) != 1 {
		t.Fatalf("got %d rows, want 1", len(summary))
	}
	row := summary[0]
	if row.QuestionID != qID || row.Submissions != 3 || row.Completed != 2 || row.Errored != 1 {
		t.Errorf("summary row = %+v, want 3 submissions, 2 completed, 1 errored", row)
	}
	if row.AvgPercentage != 70 {
		t.Errorf("avg percentage = %.1f, want 70", row.AvgPercentage)
	}
}
