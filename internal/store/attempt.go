package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/pavelanni/examhall/internal/model"
)

const attemptColumns = `t.id, t.exam_id, t.student_id, t.attempt_number, t.answers, t.score, t.total,
	t.is_published, t.reviewed_by, t.status, t.submitted_at, t.created_at`

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// InsertAttempt stores an attempt record as given. Lifecycle code goes
// through Assign and RecordSubmission; this is for imports and fixtures.
func (s *Store) InsertAttempt(ctx context.Context, a model.Attempt) (model.Attempt, error) {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now()
	}
	return s.insertAttempt(ctx, s.db, a)
}

func (s *Store) insertAttempt(ctx context.Context, db execer, a model.Attempt) (model.Attempt, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.Answers == nil {
		a.Answers = map[string]int{}
	}
	answers, err := json.Marshal(a.Answers)
	if err != nil {
		return model.Attempt{}, fmt.Errorf("encode answers: %w", err)
	}
	var reviewedBy any
	if a.ReviewedBy != "" {
		reviewedBy = a.ReviewedBy
	}
	_, err = db.ExecContext(ctx, s.q(
		`INSERT INTO attempts (id, exam_id, student_id, attempt_number, answers, score, total,
			is_published, reviewed_by, status, submitted_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		a.ID, a.ExamID, a.StudentID, a.AttemptNumber, string(answers), a.Score, a.Total,
		a.IsPublished, reviewedBy, a.Status, a.SubmittedAt, a.CreatedAt,
	)
	if err != nil {
		return model.Attempt{}, err
	}
	return a, nil
}

// GetAttempt returns an attempt by ID. Attempts whose exam was deleted are
// reported as not found.
func (s *Store) GetAttempt(ctx context.Context, id string) (model.Attempt, error) {
	row := s.db.QueryRowContext(ctx, s.q(
		`SELECT `+attemptColumns+` FROM attempts t JOIN exams e ON e.id = t.exam_id WHERE t.id = ?`), id)
	a, err := scanAttempt(row)
	return a, notFound(err)
}

// ListAttemptsForPair returns all attempt records of a student for an exam.
func (s *Store) ListAttemptsForPair(ctx context.Context, examID, studentID string) ([]model.Attempt, error) {
	rows, err := s.db.QueryContext(ctx, s.q(
		`SELECT `+attemptColumns+` FROM attempts t
		 WHERE t.exam_id = ? AND t.student_id = ? ORDER BY t.attempt_number, t.created_at`), examID, studentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	attempts := []model.Attempt{}
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}

const attemptViewQuery = `SELECT ` + attemptColumns + `, e.name, u.name, u.public_id
	FROM attempts t
	JOIN exams e ON e.id = t.exam_id
	JOIN users u ON u.id = t.student_id`

// ListSubmissions returns the submitted and reviewed attempts of an exam,
// most recent submission first.
func (s *Store) ListSubmissions(ctx context.Context, examID string) ([]model.AttemptView, error) {
	return s.listAttemptViews(ctx,
		attemptViewQuery+` WHERE t.exam_id = ? AND t.status <> ? ORDER BY t.submitted_at DESC, t.id`,
		examID, model.AttemptAssigned)
}

// ListPublishedAttempts returns a student's published attempts, most recent
// submission first.
func (s *Store) ListPublishedAttempts(ctx context.Context, studentID string) ([]model.AttemptView, error) {
	return s.listAttemptViews(ctx,
		attemptViewQuery+` WHERE t.student_id = ? AND t.is_published = TRUE ORDER BY t.submitted_at DESC, t.id`,
		studentID)
}

func (s *Store) listAttemptViews(ctx context.Context, query string, args ...any) ([]model.AttemptView, error) {
	rows, err := s.db.QueryContext(ctx, s.q(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	views := []model.AttemptView{}
	for rows.Next() {
		var v model.AttemptView
		var answers string
		var reviewedBy sql.NullString
		err := rows.Scan(&v.ID, &v.ExamID, &v.StudentID, &v.AttemptNumber, &answers, &v.Score, &v.Total,
			&v.IsPublished, &reviewedBy, &v.Status, &v.SubmittedAt, &v.CreatedAt,
			&v.ExamName, &v.StudentName, &v.StudentPublicID)
		if err != nil {
			return nil, err
		}
		v.ReviewedBy = reviewedBy.String
		if err := json.Unmarshal([]byte(answers), &v.Answers); err != nil {
			return nil, fmt.Errorf("decode answers of attempt %s: %w", v.ID, err)
		}
		views = append(views, v)
	}
	return views, rows.Err()
}

// UpdateReview writes the teacher-controlled fields of an attempt.
func (s *Store) UpdateReview(ctx context.Context, a model.Attempt) error {
	var reviewedBy any
	if a.ReviewedBy != "" {
		reviewedBy = a.ReviewedBy
	}
	res, err := s.db.ExecContext(ctx, s.q(
		`UPDATE attempts SET score = ?, total = ?, is_published = ?, reviewed_by = ?, status = ? WHERE id = ?`),
		a.Score, a.Total, a.IsPublished, reviewedBy, a.Status, a.ID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// PurgeOrphanedAttempts deletes attempt records whose exam no longer exists.
func (s *Store) PurgeOrphanedAttempts(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM attempts WHERE NOT EXISTS (SELECT 1 FROM exams e WHERE e.id = attempts.exam_id)`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// TopStudents counts published attempts per student, highest first.
func (s *Store) TopStudents(ctx context.Context, limit int) ([]model.LeaderboardEntry, error) {
	rows, err := s.db.QueryContext(ctx, s.q(
		`SELECT u.name, COUNT(t.id) AS completed
		 FROM users u
		 LEFT JOIN attempts t ON t.student_id = u.id AND t.is_published = TRUE
			AND EXISTS (SELECT 1 FROM exams e WHERE e.id = t.exam_id)
		 WHERE u.role = ?
		 GROUP BY u.id, u.name
		 ORDER BY completed DESC, u.name
		 LIMIT ?`), model.UserRoleStudent, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	entries := []model.LeaderboardEntry{}
	for rows.Next() {
		var e model.LeaderboardEntry
		if err := rows.Scan(&e.Name, &e.ExamsCompleted); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func scanAttempt(row scanner) (model.Attempt, error) {
	var a model.Attempt
	var answers string
	var reviewedBy sql.NullString
	err := row.Scan(&a.ID, &a.ExamID, &a.StudentID, &a.AttemptNumber, &answers, &a.Score, &a.Total,
		&a.IsPublished, &reviewedBy, &a.Status, &a.SubmittedAt, &a.CreatedAt)
	if err != nil {
		return model.Attempt{}, err
	}
	a.ReviewedBy = reviewedBy.String
	if err := json.Unmarshal([]byte(answers), &a.Answers); err != nil {
		return model.Attempt{}, fmt.Errorf("decode answers of attempt %s: %w", a.ID, err)
	}
	return a, nil
}
