package grading

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// scriptedScorer returns a fixed similarity per point text. Deterministic, so
// engine runs against it must be reproducible.
type scriptedScorer struct {
	mu     sync.Mutex
	scores map[string]float64 // point text -> similarity
	spans  map[string]string  // point text -> matched span
	errs   map[string]error   // point text -> error to return
	fails  map[string]int     // point text -> remaining failures before success
	calls  int
}

func (s *scriptedScorer) Score(ctx context.Context, candidate, pointText string, _ []string) (float64, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if n := s.fails[pointText]; n > 0 {
		s.fails[pointText] = n - 1
		return 0, "", &ScorerTransientError{Err: errors.New("flaky")}
	}
	if err := s.errs[pointText]; err != nil {
		return 0, "", err
	}
	span := s.spans[pointText]
	return s.scores[pointText], span, nil
}

func twoPointInput(scheme Scheme) Input {
	return Input{
		Points: []SentencePoint{
			{PointNumber: "P1", Text: "The mitochondria is the powerhouse of the cell.", Weight: 0.5, RequiredTerms: []string{"mitochondria"}},
			{PointNumber: "P2", Text: "ATP is produced during cellular respiration.", Weight: 0.5},
		},
		Scheme:     scheme,
		AnswerText: "The mitochondria is the powerhouse that makes energy for the cell.",
		MaxScore:   10,
	}
}

func perPointScheme() Scheme {
	return Scheme{
		TotalMarks:       10,
		PassingThreshold: 50,
		Rules: []MarkingRule{
			{RuleID: "R1", Condition: "all", Points: []string{"P1"}, MarksAwarded: 5},
			{RuleID: "R2", Condition: "all", Points: []string{"P2"}, MarksAwarded: 5},
		},
	}
}

func TestGradeMatchedAndMissedPartition(t *testing.T) {
	sc := &scriptedScorer{
		scores: map[string]float64{
			"The mitochondria is the powerhouse of the cell.": 0.95,
			"ATP is produced during cellular respiration.":    0.1,
		},
		spans: map[string]string{
			"The mitochondria is the powerhouse of the cell.": "The mitochondria is the powerhouse that makes energy for the cell.",
		},
	}
	e := New(sc)
	res, err := e.Grade(context.Background(), twoPointInput(perPointScheme()))
	if err != nil {
		t.Fatalf("Grade: %v", err)
	}

	if len(res.MatchedPoints) != 1 || res.MatchedPoints[0].PointNumber != "P1" {
		t.Fatalf("matched = %+v, want P1 only", res.MatchedPoints)
	}
	if res.MatchedPoints[0].MatchType != MatchExact {
		t.Errorf("match type = %s, want exact", res.MatchedPoints[0].MatchType)
	}
	if got := res.MatchedPoints[0].MarksAwarded; got != 5 {
		t.Errorf("informational marks = %.2f, want 5.00 (0.5 x 10 x 1.0)", got)
	}
	if len(res.MissedPoints) != 1 || res.MissedPoints[0] != "P2" {
		t.Errorf("missed = %v, want [P2]", res.MissedPoints)
	}
	if res.TotalScore != 5 {
		t.Errorf("total = %.2f, want 5 (only R1 fires)", res.TotalScore)
	}
	if res.Percentage != 50.0 {
		t.Errorf("percentage = %.1f, want 50.0", res.Percentage)
	}

	// Partition: every point in exactly one bucket.
	seen := map[string]int{}
	for _, mp := range res.MatchedPoints {
		seen[mp.PointNumber]++
	}
	for _, pn := range res.MissedPoints {
		seen[pn]++
	}
	for _, pn := range []string{"P1", "P2"} {
		if seen[pn] != 1 {
			t.Errorf("point %s appears %d times across matched+missed, want exactly 1", pn, seen[pn])
		}
	}
}

func TestGradeIdempotent(t *testing.T) {
	sc := &scriptedScorer{
		scores: map[string]float64{
			"The mitochondria is the powerhouse of the cell.": 0.82,
			"ATP is produced during cellular respiration.":    0.55,
		},
		spans: map[string]string{},
	}
	e := New(sc)
	in := twoPointInput(perPointScheme())

	first, err := e.Grade(context.Background(), in)
	if err != nil {
		t.Fatalf("Grade: %v", err)
	}
	second, err := e.Grade(context.Background(), in)
	if err != nil {
		t.Fatalf("Grade: %v", err)
	}
	if first.TotalScore != second.TotalScore || first.Percentage != second.Percentage {
		t.Errorf("scores differ across identical runs: %.2f vs %.2f", first.TotalScore, second.TotalScore)
	}
	if len(first.MatchedPoints) != len(second.MatchedPoints) {
		t.Fatalf("matched count differs: %d vs %d", len(first.MatchedPoints), len(second.MatchedPoints))
	}
	for i := range first.MatchedPoints {
		if first.MatchedPoints[i].MatchType != second.MatchedPoints[i].MatchType {
			t.Errorf("match type differs at %d: %s vs %s", i, first.MatchedPoints[i].MatchType, second.MatchedPoints[i].MatchType)
		}
	}
	if first.OverallFeedback != second.OverallFeedback {
		t.Errorf("feedback differs across identical runs")
	}
}

func TestGradeRequiredTermGate(t *testing.T) {
	// Raw similarity is high but the answer never mentions the required term.
	sc := &scriptedScorer{
		scores: map[string]float64{
			"The mitochondria is the powerhouse of the cell.": 0.92,
			"ATP is produced during cellular respiration.":    0.1,
		},
		spans: map[string]string{},
	}
	e := New(sc)
	in := twoPointInput(perPointScheme())
	in.AnswerText = "A small organelle makes all the energy used by the cell."

	res, err := e.Grade(context.Background(), in)
	if err != nil {
		t.Fatalf("Grade: %v", err)
	}
	for _, mp := range res.MatchedPoints {
		if mp.PointNumber == "P1" {
			if mp.MatchType == MatchExact || mp.MatchType == MatchHigh {
				t.Errorf("P1 classified %s despite missing required term", mp.MatchType)
			}
			if mp.SimilarityScore > 0.4 {
				t.Errorf("P1 similarity %.2f above the required-term ceiling", mp.SimilarityScore)
			}
		}
	}
}

func TestGradeClampOverlappingRules(t *testing.T) {
	scores := map[string]float64{
		"The mitochondria is the powerhouse of the cell.": 0.95,
		"ATP is produced during cellular respiration.":    0.1,
	}

	t.Run("over-award clamps and flags", func(t *testing.T) {
		scheme := Scheme{
			TotalMarks: 10,
			Rules: []MarkingRule{
				{RuleID: "R1", Condition: "any", Points: []string{"P1"}, MarksAwarded: 8},
				{RuleID: "R2", Condition: "any", Points: []string{"P1"}, MarksAwarded: 5},
			},
		}
		e := New(&scriptedScorer{scores: scores, spans: map[string]string{}})
		res, err := e.Grade(context.Background(), twoPointInput(scheme))
		if err != nil {
			t.Fatalf("Grade: %v", err)
		}
		if res.TotalScore != 10 {
			t.Errorf("total = %.2f, want exactly 10 (clamped)", res.TotalScore)
		}
		if !res.Clamped {
			t.Error("Clamped flag not set")
		}
		if !strings.Contains(res.OverallFeedback, "capped") {
			t.Errorf("feedback does not mention the cap: %q", res.OverallFeedback)
		}
	})

	t.Run("exact-sum boundary does not clamp", func(t *testing.T) {
		scheme := Scheme{
			TotalMarks: 10,
			Rules: []MarkingRule{
				{RuleID: "R1", Condition: "any", Points: []string{"P1"}, MarksAwarded: 5},
				{RuleID: "R2", Condition: "any", Points: []string{"P1"}, MarksAwarded: 5},
			},
		}
		e := New(&scriptedScorer{scores: scores, spans: map[string]string{}})
		res, err := e.Grade(context.Background(), twoPointInput(scheme))
		if err != nil {
			t.Fatalf("Grade: %v", err)
		}
		if res.TotalScore != 10 {
			t.Errorf("total = %.2f, want 10", res.TotalScore)
		}
		if res.Clamped {
			t.Error("clamp fired on the exact-sum boundary")
		}
	})
}

func TestGradeTransientRetrySucceeds(t *testing.T) {
	sc := &scriptedScorer{
		scores: map[string]float64{
			"The mitochondria is the powerhouse of the cell.": 0.95,
			"ATP is produced during cellular respiration.":    0.75,
		},
		spans: map[string]string{},
		fails: map[string]int{
			"ATP is produced during cellular respiration.": 2,
		},
	}
	e := New(sc, WithRetries(3, time.Millisecond))
	in := twoPointInput(perPointScheme())
	in.AnswerText = "The mitochondria is the powerhouse. ATP comes from respiration."

	res, err := e.Grade(context.Background(), in)
	if err != nil {
		t.Fatalf("Grade: %v", err)
	}
	if len(res.MatchedPoints) != 2 {
		t.Fatalf("matched %d points, want 2 (P2 should succeed on the third attempt)", len(res.MatchedPoints))
	}
}

func TestGradeExhaustedRetriesDegradeToMissed(t *testing.T) {
	sc := &scriptedScorer{
		scores: map[string]float64{
			"The mitochondria is the powerhouse of the cell.": 0.95,
		},
		spans: map[string]string{},
		fails: map[string]int{
			"ATP is produced during cellular respiration.": 100,
		},
	}
	e := New(sc, WithRetries(2, time.Millisecond))
	res, err := e.Grade(context.Background(), twoPointInput(perPointScheme()))
	if err != nil {
		t.Fatalf("Grade: %v (one failed point of two is not a majority)", err)
	}
	if len(res.MissedPoints) != 1 || res.MissedPoints[0] != "P2" {
		t.Errorf("missed = %v, want [P2]", res.MissedPoints)
	}
}

func TestGradeMajorityFailureErrors(t *testing.T) {
	boom := &ScorerFatalError{Err: errors.New("rejected")}
	sc := &scriptedScorer{
		scores: map[string]float64{},
		spans:  map[string]string{},
		errs: map[string]error{
			"The mitochondria is the powerhouse of the cell.": boom,
			"ATP is produced during cellular respiration.":    boom,
		},
	}
	e := New(sc, WithRetries(2, time.Millisecond))
	_, err := e.Grade(context.Background(), twoPointInput(perPointScheme()))
	var uerr *ScorerUnavailableError
	if !errors.As(err, &uerr) {
		t.Fatalf("err = %v, want ScorerUnavailableError", err)
	}
	if uerr.Failed != 2 || uerr.Total != 2 {
		t.Errorf("failure counts = %d/%d, want 2/2", uerr.Failed, uerr.Total)
	}
}

func TestGradeScorerTimeoutOnAllPointsErrors(t *testing.T) {
	sc := ScorerFunc(func(ctx context.Context, _, _ string, _ []string) (float64, string, error) {
		return 0, "", &ScorerTransientError{Err: context.DeadlineExceeded}
	})
	e := New(sc, WithRetries(2, time.Millisecond))
	_, err := e.Grade(context.Background(), twoPointInput(perPointScheme()))
	var uerr *ScorerUnavailableError
	if !errors.As(err, &uerr) {
		t.Fatalf("err = %v, want ScorerUnavailableError when the scorer times out on every point", err)
	}
}

func TestGradeSubmissionTimeoutMarksRemainderMissed(t *testing.T) {
	var done atomic.Int32
	sc := ScorerFunc(func(ctx context.Context, _, pointText string, _ []string) (float64, string, error) {
		if pointText == "The mitochondria is the powerhouse of the cell." {
			done.Add(1)
			return 0.95, "span", nil
		}
		<-ctx.Done()
		return 0, "", &ScorerTransientError{Err: ctx.Err()}
	})
	e := New(sc,
		WithRetries(1, time.Millisecond),
		WithSubmissionTimeout(50*time.Millisecond),
		WithConcurrency(2),
	)
	res, err := e.Grade(context.Background(), twoPointInput(perPointScheme()))
	if err != nil {
		t.Fatalf("Grade: %v (timed-out remainder should finalize, not error)", err)
	}
	if len(res.MatchedPoints) != 1 {
		t.Fatalf("matched = %d, want the one point that completed", len(res.MatchedPoints))
	}
	if len(res.MissedPoints) != 1 || res.MissedPoints[0] != "P2" {
		t.Errorf("missed = %v, want [P2]", res.MissedPoints)
	}
}

func TestGradeValidationFailsFast(t *testing.T) {
	sc := &scriptedScorer{scores: map[string]float64{}, spans: map[string]string{}}
	e := New(sc)

	tests := []struct {
		name   string
		mutate func(*Input)
	}{
		{"weights not summing to one", func(in *Input) { in.Points[0].Weight = 0.9 }},
		{"duplicate point number", func(in *Input) { in.Points[1].PointNumber = "P1" }},
		{"rule references unknown point", func(in *Input) {
			in.Scheme.Rules[0].Points = []string{"P9"}
		}},
		{"non-positive max score", func(in *Input) { in.MaxScore = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := twoPointInput(perPointScheme())
			tt.mutate(&in)
			_, err := e.Grade(context.Background(), in)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("err = %v, want ValidationError", err)
			}
			if sc.calls != 0 {
				t.Errorf("scorer called %d times before validation failure", sc.calls)
			}
		})
	}
}

func TestMatcherRespectsConcurrencyLimit(t *testing.T) {
	var inflight, peak atomic.Int32
	sc := ScorerFunc(func(ctx context.Context, _, _ string, _ []string) (float64, string, error) {
		cur := inflight.Add(1)
		for {
			p := peak.Load()
			if cur <= p || peak.CompareAndSwap(p, cur) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		inflight.Add(-1)
		return 0.8, "", nil
	})

	points := make([]SentencePoint, 10)
	rules := make([]MarkingRule, 10)
	for i := range points {
		pn := "P" + string(rune('0'+i))
		points[i] = SentencePoint{PointNumber: pn, Text: "point " + pn, Weight: 0.1}
		rules[i] = MarkingRule{RuleID: "R" + pn, Condition: "all", Points: []string{pn}, MarksAwarded: 1}
	}
	e := New(sc, WithConcurrency(3))
	_, err := e.Grade(context.Background(), Input{
		Points:     points,
		Scheme:     Scheme{TotalMarks: 10, Rules: rules},
		AnswerText: "whatever",
		MaxScore:   10,
	})
	if err != nil {
		t.Fatalf("Grade: %v", err)
	}
	if peak.Load() > 3 {
		t.Errorf("peak in-flight scorer calls = %d, want <= 3", peak.Load())
	}
}
