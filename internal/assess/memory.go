package assess

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// memoryStore keeps everything in maps. Used in tests and for quick local
// runs without a database file.
type memoryStore struct {
	mu          sync.RWMutex
	questions   map[string]Question
	answers     map[string]StandardAnswer // by questionID
	schemes     map[string]MarkingScheme  // by questionID
	submissions map[string]StudentAnswer
	results     map[string]GradingResult // by studentAnswerID
}

func NewInMemoryStore() Store {
	return &memoryStore{
		questions:   map[string]Question{},
		answers:     map[string]StandardAnswer{},
		schemes:     map[string]MarkingScheme{},
		submissions: map[string]StudentAnswer{},
		results:     map[string]GradingResult{},
	}
}

func (m *memoryStore) PutQuestion(_ context.Context, q Question) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().Unix()
	if prev, ok := m.questions[q.ID]; ok {
		q.CreatedAt = prev.CreatedAt
	} else if q.CreatedAt == 0 {
		q.CreatedAt = now
	}
	q.UpdatedAt = now
	m.questions[q.ID] = q
	return nil
}

func (m *memoryStore) GetQuestion(_ context.Context, id string) (Question, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	q, ok := m.questions[id]
	if !ok {
		return Question{}, fmt.Errorf("question %s: %w", id, ErrNotFound)
	}
	return q, nil
}

func (m *memoryStore) ListQuestions(_ context.Context, limit, offset int) ([]Question, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Question, 0, len(m.questions))
	for _, q := range m.questions {
		out = append(out, q)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt > out[j].CreatedAt })
	return page(out, limit, offset), nil
}

func (m *memoryStore) PutStandardAnswer(_ context.Context, a StandardAnswer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	m.answers[a.QuestionID] = a
	return nil
}

func (m *memoryStore) GetStandardAnswer(_ context.Context, questionID string) (StandardAnswer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.answers[questionID]
	if !ok {
		return StandardAnswer{}, fmt.Errorf("standard answer for %s: %w", questionID, ErrNotFound)
	}
	return a, nil
}

func (m *memoryStore) PutMarkingScheme(_ context.Context, s MarkingScheme) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	m.schemes[s.QuestionID] = s
	return nil
}

func (m *memoryStore) GetMarkingScheme(_ context.Context, questionID string) (MarkingScheme, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.schemes[questionID]
	if !ok {
		return MarkingScheme{}, fmt.Errorf("marking scheme for %s: %w", questionID, ErrNotFound)
	}
	return s, nil
}

func (m *memoryStore) NewSubmission(_ context.Context, sub StudentAnswer) (StudentAnswer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.questions[sub.QuestionID]; !ok {
		return StudentAnswer{}, fmt.Errorf("question %s: %w", sub.QuestionID, ErrNotFound)
	}
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	sub.SubmittedAt = time.Now().Unix()
	sub.ProcessingStatus = StatusPending
	m.submissions[sub.ID] = sub
	return sub, nil
}

func (m *memoryStore) GetSubmission(_ context.Context, id string) (StudentAnswer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sub, ok := m.submissions[id]
	if !ok {
		return StudentAnswer{}, fmt.Errorf("submission %s: %w", id, ErrNotFound)
	}
	return sub, nil
}

func (m *memoryStore) ListSubmissions(_ context.Context, opts ListOpts) ([]StudentAnswer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []StudentAnswer{}
	for _, sub := range m.submissions {
		if opts.QuestionID != "" && sub.QuestionID != opts.QuestionID {
			continue
		}
		if opts.Student != "" && sub.StudentName != opts.Student {
			continue
		}
		if opts.Status != "" && sub.ProcessingStatus != opts.Status {
			continue
		}
		out = append(out, sub)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SubmittedAt > out[j].SubmittedAt })
	return page(out, opts.Limit, opts.Offset), nil
}

func (m *memoryStore) SetSubmissionStatus(_ context.Context, id, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sub, ok := m.submissions[id]
	if !ok {
		return fmt.Errorf("submission %s: %w", id, ErrNotFound)
	}
	sub.ProcessingStatus = status
	m.submissions[id] = sub
	return nil
}

func (m *memoryStore) UpsertResult(_ context.Context, r GradingResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	m.results[r.StudentAnswerID] = r
	return nil
}

func (m *memoryStore) GetResult(_ context.Context, studentAnswerID string) (GradingResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.results[studentAnswerID]
	if !ok {
		return GradingResult{}, fmt.Errorf("result for %s: %w", studentAnswerID, ErrNotFound)
	}
	return r, nil
}

func (m *memoryStore) Summary(_ context.Context) ([]QuestionSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	byQ := map[string]*QuestionSummary{}
	ids := []string{}
	for id, q := range m.questions {
		byQ[id] = &QuestionSummary{QuestionID: id, Title: q.Title}
		ids = append(ids, id)
	}
	sums := map[string]float64{}
	for _, sub := range m.submissions {
		qs, ok := byQ[sub.QuestionID]
		if !ok {
			continue
		}
		qs.Submissions++
		switch sub.ProcessingStatus {
		case StatusCompleted:
			qs.Completed++
			if r, ok := m.results[sub.ID]; ok {
				sums[sub.QuestionID] += r.Percentage
			}
		case StatusError:
			qs.Errored++
		}
	}
	sort.Strings(ids)
	out := make([]QuestionSummary, 0, len(ids))
	for _, id := range ids {
		qs := *byQ[id]
		if qs.Completed > 0 {
			qs.AvgPercentage = sums[id] / float64(qs.Completed)
		}
		out = append(out, qs)
	}
	return out, nil
}

func page[T any](in []T, limit, offset int) []T {
	if offset >= len(in) {
		return []T{}
	}
	in = in[offset:]
	if limit > 0 && limit < len(in) {
		in = in[:limit]
	}
	return in
}
