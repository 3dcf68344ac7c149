package assess

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/intemass/intemass/internal/audit"
	"github.com/intemass/intemass/internal/grading"
)

// FeedbackGenerator optionally decorates the deterministic overall feedback
// with model-written prose. Scores never depend on it.
type FeedbackGenerator interface {
	GenerateFeedback(ctx context.Context, answerText string, res grading.Result) (string, error)
}

// Service drives the grading pipeline: authoring with validation, submission
// lifecycle, and the pending → processing → completed|error state machine.
type Service struct {
	store    Store
	engine   *grading.Engine
	decomp   grading.DecomposeConfig
	feedback FeedbackGenerator // nil: deterministic feedback only
	events   *audit.EventRepo  // nil: no audit log
}

func NewService(store Store, engine *grading.Engine, opts ...ServiceOption) *Service {
	s := &Service{store: store, engine: engine, decomp: grading.DefaultDecomposeConfig()}
	for _, o := range opts {
		o(s)
	}
	return s
}

type ServiceOption func(*Service)

func WithFeedbackGenerator(fg FeedbackGenerator) ServiceOption {
	return func(s *Service) { s.feedback = fg }
}
func WithEventLog(repo *audit.EventRepo) ServiceOption {
	return func(s *Service) { s.events = repo }
}
func WithDecomposeConfig(cfg grading.DecomposeConfig) ServiceOption {
	return func(s *Service) { s.decomp = cfg }
}

// AuthorInput bundles everything a teacher submits when creating a question:
// the question itself, the standard answer (hand-authored points or fullText
// for auto-decomposition), and the marking scheme.
type AuthorInput struct {
	Question Question       `json:"question"`
	Answer   StandardAnswer `json:"standardAnswer"`
	Scheme   MarkingScheme  `json:"markingScheme"`
}

// CreateQuestion validates and persists a question with its standard answer
// and marking scheme. When no points are hand-authored the full text is
// decomposed automatically. Fails with *grading.ValidationError before
// anything is written.
func (s *Service) CreateQuestion(ctx context.Context, in AuthorInput) (AuthorInput, error) {
	q := in.Question
	if q.Title == "" {
		return AuthorInput{}, &grading.ValidationError{Field: "title", Reason: "required"}
	}
	if q.MaxPoints <= 0 || q.MaxPoints > 100 {
		return AuthorInput{}, &grading.ValidationError{Field: "maxPoints", Reason: "must be a positive integer <= 100"}
	}
	if q.ID == "" {
		q.ID = uuid.NewString()
	}

	a := in.Answer
	a.QuestionID = q.ID
	if len(a.Points) == 0 {
		points, err := grading.Decompose(a.FullText, s.decomp)
		if err != nil {
			return AuthorInput{}, err
		}
		a.Points = points
	} else if err := grading.ValidatePoints(a.Points); err != nil {
		return AuthorInput{}, err
	}

	m := in.Scheme
	m.QuestionID = q.ID
	if m.TotalMarks == 0 {
		m.TotalMarks = float64(q.MaxPoints)
	}
	if len(m.Rules) == 0 {
		m.Rules = defaultRules(a.Points, m.TotalMarks)
	}
	if err := grading.ValidateScheme(m.Scheme(), a.Points); err != nil {
		return AuthorInput{}, err
	}

	if err := s.store.PutQuestion(ctx, q); err != nil {
		return AuthorInput{}, err
	}
	if err := s.store.PutStandardAnswer(ctx, a); err != nil {
		return AuthorInput{}, err
	}
	if err := s.store.PutMarkingScheme(ctx, m); err != nil {
		return AuthorInput{}, err
	}
	return AuthorInput{Question: q, Answer: a, Scheme: m}, nil
}

// defaultRules awards each point its weight share of the total marks when the
// teacher supplies no scheme rules.
func defaultRules(points []grading.SentencePoint, totalMarks float64) []grading.MarkingRule {
	rules := make([]grading.MarkingRule, 0, len(points))
	for i, p := range points {
		rules = append(rules, grading.MarkingRule{
			RuleID:       fmt.Sprintf("R%d", i+1),
			Condition:    "all",
			Points:       []string{p.PointNumber},
			MarksAwarded: p.Weight * totalMarks,
			Description:  "Awarded when " + p.PointNumber + " is matched.",
		})
	}
	return rules
}

// Submit records a student answer in status pending.
func (s *Service) Submit(ctx context.Context, sub StudentAnswer) (StudentAnswer, error) {
	if sub.AnswerText == "" {
		return StudentAnswer{}, &grading.ValidationError{Field: "answerText", Reason: "required"}
	}
	if sub.StudentName == "" {
		return StudentAnswer{}, &grading.ValidationError{Field: "studentName", Reason: "required"}
	}
	sub, err := s.store.NewSubmission(ctx, sub)
	if err != nil {
		return StudentAnswer{}, err
	}
	s.logEvent(ctx, audit.EventSubmissionCreated, sub.ID, sub)
	return sub, nil
}

// Grade runs the engine for one submission and drives its status. Regrading a
// completed submission replaces the stored result (never appends).
func (s *Service) Grade(ctx context.Context, submissionID string) (GradingResult, error) {
	sub, err := s.store.GetSubmission(ctx, submissionID)
	if err != nil {
		return GradingResult{}, err
	}
	q, err := s.store.GetQuestion(ctx, sub.QuestionID)
	if err != nil {
		return GradingResult{}, err
	}
	answer, err := s.store.GetStandardAnswer(ctx, sub.QuestionID)
	if err != nil {
		return GradingResult{}, err
	}
	scheme, err := s.store.GetMarkingScheme(ctx, sub.QuestionID)
	if err != nil {
		return GradingResult{}, err
	}

	regrade := sub.ProcessingStatus == StatusCompleted
	if err := s.store.SetSubmissionStatus(ctx, sub.ID, StatusProcessing); err != nil {
		return GradingResult{}, err
	}

	maxScore := float64(q.MaxPoints)
	if scheme.TotalMarks > 0 {
		maxScore = scheme.TotalMarks
	}
	res, err := s.engine.Grade(ctx, grading.Input{
		Points:     answer.Points,
		Scheme:     scheme.Scheme(),
		AnswerText: sub.AnswerText,
		MaxScore:   maxScore,
	})
	if err != nil {
		// Validation errors are the author's problem; scorer unavailability is
		// operational. Either way this submission is errored, with no result.
		if serr := s.store.SetSubmissionStatus(ctx, sub.ID, StatusError); serr != nil {
			log.Printf("assess: mark submission %s errored: %v", sub.ID, serr)
		}
		s.logEvent(ctx, audit.EventSubmissionErrored, sub.ID, map[string]string{"error": err.Error()})
		return GradingResult{}, err
	}

	if s.feedback != nil {
		if extra, ferr := s.feedback.GenerateFeedback(ctx, sub.AnswerText, res); ferr == nil && extra != "" {
			res.OverallFeedback += " " + extra
		} else if ferr != nil {
			log.Printf("assess: feedback generation for %s skipped: %v", sub.ID, ferr)
		}
	}

	gr := GradingResult{
		ID:              uuid.NewString(),
		StudentAnswerID: sub.ID,
		TotalScore:      res.TotalScore,
		MaxScore:        res.MaxScore,
		Percentage:      res.Percentage,
		MatchedPoints:   res.MatchedPoints,
		MissedPoints:    res.MissedPoints,
		OverallFeedback: res.OverallFeedback,
		ProcessingTime:  res.ProcessingTime.Milliseconds(),
		GradedAt:        time.Now().Unix(),
	}
	if err := s.store.UpsertResult(ctx, gr); err != nil {
		if serr := s.store.SetSubmissionStatus(ctx, sub.ID, StatusError); serr != nil {
			log.Printf("assess: mark submission %s errored: %v", sub.ID, serr)
		}
		return GradingResult{}, err
	}
	if err := s.store.SetSubmissionStatus(ctx, sub.ID, StatusCompleted); err != nil {
		return GradingResult{}, err
	}
	if regrade {
		s.logEvent(ctx, audit.EventResultReplaced, sub.ID, gr)
	} else {
		s.logEvent(ctx, audit.EventSubmissionGraded, sub.ID, gr)
	}
	return gr, nil
}

// IsNotFound reports whether err is the store's not-found condition.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

func (s *Service) logEvent(ctx context.Context, typ, key string, payload any) {
	if s.events == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		data = []byte("{}")
	}
	if err := s.events.Append(ctx, audit.Event{Type: typ, Key: key, DataJSON: string(data)}); err != nil {
		log.Printf("assess: audit append %s/%s failed: %v", typ, key, err)
	}
}
