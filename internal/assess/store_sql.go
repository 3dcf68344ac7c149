package assess

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound = errors.New("not found")
)

// SQLStore persists the grading records as JSON documents in SQL rows, one
// table per record type. Standard answers, schemes and results are keyed by
// their parent record so lookups never need the document ID.
type SQLStore struct {
	db     *sql.DB
	driver string // "sqlite" or "postgres"
}

func NewSQLStore(db *sql.DB, driver string) *SQLStore {
	return &SQLStore{db: db, driver: driver}
}

func (s *SQLStore) PutQuestion(ctx context.Context, q Question) error {
	now := time.Now().Unix()
	if q.CreatedAt == 0 {
		q.CreatedAt = now
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO questions (id,title,subject,curriculum,max_points,created_at,updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (id) DO UPDATE SET title=EXCLUDED.title, subject=EXCLUDED.subject,
			curriculum=EXCLUDED.curriculum, max_points=EXCLUDED.max_points, updated_at=EXCLUDED.updated_at`,
		q.ID, q.Title, q.Subject, q.Curriculum, q.MaxPoints, q.CreatedAt, now)
	return err
}

func (s *SQLStore) GetQuestion(ctx context.Context, id string) (Question, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id,title,subject,curriculum,max_points,created_at,updated_at FROM questions WHERE id=$1`, id)
	var q Question
	if err := row.Scan(&q.ID, &q.Title, &q.Subject, &q.Curriculum, &q.MaxPoints, &q.CreatedAt, &q.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Question{}, fmt.Errorf("question %s: %w", id, ErrNotFound)
		}
		return Question{}, err
	}
	return q, nil
}

func (s *SQLStore) ListQuestions(ctx context.Context, limit, offset int) ([]Question, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id,title,subject,curriculum,max_points,created_at,updated_at FROM questions ORDER BY created_at DESC LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Question{}
	for rows.Next() {
		var q Question
		if err := rows.Scan(&q.ID, &q.Title, &q.Subject, &q.Curriculum, &q.MaxPoints, &q.CreatedAt, &q.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

func (s *SQLStore) PutStandardAnswer(ctx context.Context, a StandardAnswer) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	doc, err := json.Marshal(a)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO standard_answers (question_id,id,doc)
		VALUES ($1,$2,$3)
		ON CONFLICT (question_id) DO UPDATE SET id=EXCLUDED.id, doc=EXCLUDED.doc`,
		a.QuestionID, a.ID, string(doc))
	return err
}

func (s *SQLStore) GetStandardAnswer(ctx context.Context, questionID string) (StandardAnswer, error) {
	var doc string
	err := s.db.QueryRowContext(ctx, `SELECT doc FROM standard_answers WHERE question_id=$1`, questionID).Scan(&doc)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return StandardAnswer{}, fmt.Errorf("standard answer for %s: %w", questionID, ErrNotFound)
		}
		return StandardAnswer{}, err
	}
	var a StandardAnswer
	if err := json.Unmarshal([]byte(doc), &a); err != nil {
		return StandardAnswer{}, err
	}
	return a, nil
}

func (s *SQLStore) PutMarkingScheme(ctx context.Context, m MarkingScheme) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	doc, err := json.Marshal(m)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO marking_schemes (question_id,id,doc)
		VALUES ($1,$2,$3)
		ON CONFLICT (question_id) DO UPDATE SET id=EXCLUDED.id, doc=EXCLUDED.doc`,
		m.QuestionID, m.ID, string(doc))
	return err
}

func (s *SQLStore) GetMarkingScheme(ctx context.Context, questionID string) (MarkingScheme, error) {
	var doc string
	err := s.db.QueryRowContext(ctx, `SELECT doc FROM marking_schemes WHERE question_id=$1`, questionID).Scan(&doc)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return MarkingScheme{}, fmt.Errorf("marking scheme for %s: %w", questionID, ErrNotFound)
		}
		return MarkingScheme{}, err
	}
	var m MarkingScheme
	if err := json.Unmarshal([]byte(doc), &m); err != nil {
		return MarkingScheme{}, err
	}
	return m, nil
}

func (s *SQLStore) NewSubmission(ctx context.Context, sub StudentAnswer) (StudentAnswer, error) {
	// ensure question exists
	var one int
	if err := s.db.QueryRowContext(ctx, `SELECT 1 FROM questions WHERE id=$1`, sub.QuestionID).Scan(&one); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return StudentAnswer{}, fmt.Errorf("question %s: %w", sub.QuestionID, ErrNotFound)
		}
		return StudentAnswer{}, err
	}
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	sub.SubmittedAt = time.Now().Unix()
	sub.ProcessingStatus = StatusPending
	_, err := s.db.ExecContext(ctx, `INSERT INTO student_answers (id,question_id,student_name,answer_text,submitted_at,status)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		sub.ID, sub.QuestionID, sub.StudentName, sub.AnswerText, sub.SubmittedAt, sub.ProcessingStatus)
	if err != nil {
		return StudentAnswer{}, err
	}
	return sub, nil
}

func (s *SQLStore) GetSubmission(ctx context.Context, id string) (StudentAnswer, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id,question_id,student_name,answer_text,submitted_at,status FROM student_answers WHERE id=$1`, id)
	var sub StudentAnswer
	if err := row.Scan(&sub.ID, &sub.QuestionID, &sub.StudentName, &sub.AnswerText, &sub.SubmittedAt, &sub.ProcessingStatus); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return StudentAnswer{}, fmt.Errorf("submission %s: %w", id, ErrNotFound)
		}
		return StudentAnswer{}, err
	}
	return sub, nil
}

func (s *SQLStore) ListSubmissions(ctx context.Context, opts ListOpts) ([]StudentAnswer, error) {
	if opts.Limit <= 0 || opts.Limit > 200 {
		opts.Limit = 50
	}
	q := `SELECT id,question_id,student_name,answer_text,submitted_at,status FROM student_answers WHERE 1=1`
	args := []any{}
	n := 0
	add := func(clause string, v any) {
		n++
		q += fmt.Sprintf(" AND %s=$%d", clause, n)
		args = append(args, v)
	}
	if opts.QuestionID != "" {
		add("question_id", opts.QuestionID)
	}
	if opts.Student != "" {
		add("student_name", opts.Student)
	}
	if opts.Status != "" {
		add("status", opts.Status)
	}
	q += fmt.Sprintf(" ORDER BY submitted_at DESC LIMIT $%d OFFSET $%d", n+1, n+2)
	args = append(args, opts.Limit, opts.Offset)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []StudentAnswer{}
	for rows.Next() {
		var sub StudentAnswer
		if err := rows.Scan(&sub.ID, &sub.QuestionID, &sub.StudentName, &sub.AnswerText, &sub.SubmittedAt, &sub.ProcessingStatus); err != nil {
			return nil, err
		}
		out = append(out, sub)
	}
	return out, rows.Err()
}

func (s *SQLStore) SetSubmissionStatus(ctx context.Context, id, status string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE student_answers SET status=$1 WHERE id=$2`, status, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("submission %s: %w", id, ErrNotFound)
	}
	return nil
}

func (s *SQLStore) UpsertResult(ctx context.Context, r GradingResult) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	doc, err := json.Marshal(r)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO grading_results (student_answer_id,id,percentage,doc,graded_at)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (student_answer_id) DO UPDATE SET id=EXCLUDED.id, percentage=EXCLUDED.percentage,
			doc=EXCLUDED.doc, graded_at=EXCLUDED.graded_at`,
		r.StudentAnswerID, r.ID, r.Percentage, string(doc), r.GradedAt)
	return err
}

func (s *SQLStore) GetResult(ctx context.Context, studentAnswerID string) (GradingResult, error) {
	var doc string
	err := s.db.QueryRowContext(ctx, `SELECT doc FROM grading_results WHERE student_answer_id=$1`, studentAnswerID).Scan(&doc)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return GradingResult{}, fmt.Errorf("result for %s: %w", studentAnswerID, ErrNotFound)
		}
		return GradingResult{}, err
	}
	var r GradingResult
	if err := json.Unmarshal([]byte(doc), &r); err != nil {
		return GradingResult{}, err
	}
	return r, nil
}

func (s *SQLStore) Summary(ctx context.Context) ([]QuestionSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT q.id, q.title,
		       COUNT(sa.id),
		       COALESCE(SUM(CASE WHEN sa.status='completed' THEN 1 ELSE 0 END),0),
		       COALESCE(SUM(CASE WHEN sa.status='error' THEN 1 ELSE 0 END),0),
		       COALESCE(AVG(gr.percentage),0)
		FROM questions q
		LEFT JOIN student_answers sa ON sa.question_id=q.id
		LEFT JOIN grading_results gr ON gr.student_answer_id=sa.id
		GROUP BY q.id, q.title
		ORDER BY q.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []QuestionSummary{}
	for rows.Next() {
		var qs QuestionSummary
		if err := rows.Scan(&qs.QuestionID, &qs.Title, &qs.Submissions, &qs.Completed, &qs.Errored, &qs.AvgPercentage); err != nil {
			return nil, err
		}
		out = append(out, qs)
	}
	return out, rows.Err()
}
