package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/pavelanni/examhall/internal/model"
)

const assignmentColumns = `a.exam_id, a.student_id, u.public_id, u.name, a.is_active, a.submitted, a.attempts, a.started_at, a.assigned_at`

// ListAssignments returns all assignments of an exam.
func (s *Store) ListAssignments(ctx context.Context, examID string) ([]model.Assignment, error) {
	rows, err := s.db.QueryContext(ctx, s.q(
		`SELECT `+assignmentColumns+`
		 FROM assignments a JOIN users u ON u.id = a.student_id
		 WHERE a.exam_id = ? ORDER BY a.assigned_at, u.public_id`), examID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	assignments := []model.Assignment{}
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		assignments = append(assignments, a)
	}
	return assignments, rows.Err()
}

// GetAssignment returns the assignment of a student to an exam.
func (s *Store) GetAssignment(ctx context.Context, examID, studentID string) (model.Assignment, error) {
	row := s.db.QueryRowContext(ctx, s.q(
		`SELECT `+assignmentColumns+`
		 FROM assignments a JOIN users u ON u.id = a.student_id
		 WHERE a.exam_id = ? AND a.student_id = ?`), examID, studentID)
	a, err := scanAssignment(row)
	return a, notFound(err)
}

// Assign creates or reactivates an assignment. Attempts and the submitted
// flag are reset, previous attempt records for the pair are discarded and a
// fresh record in status assigned is created.
func (s *Store) Assign(ctx context.Context, examID, studentID string) (model.Assignment, model.Attempt, error) {
	at := now()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Assignment{}, model.Attempt{}, err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, s.q(
		`INSERT INTO assignments (exam_id, student_id, is_active, submitted, attempts, started_at, assigned_at)
		 VALUES (?, ?, TRUE, FALSE, 0, NULL, ?)
		 ON CONFLICT (exam_id, student_id) DO UPDATE
		 SET is_active = TRUE, submitted = FALSE, attempts = 0, started_at = NULL, assigned_at = excluded.assigned_at`),
		examID, studentID, at,
	)
	if err != nil {
		return model.Assignment{}, model.Attempt{}, fmt.Errorf("upsert assignment: %w", err)
	}

	if _, err := tx.ExecContext(ctx, s.q(
		`DELETE FROM attempts WHERE exam_id = ? AND student_id = ?`), examID, studentID); err != nil {
		return model.Assignment{}, model.Attempt{}, fmt.Errorf("discard attempts: %w", err)
	}

	fresh := model.Attempt{
		ExamID:    examID,
		StudentID: studentID,
		Answers:   map[string]int{},
		Status:    model.AttemptAssigned,
		CreatedAt: at,
	}
	if fresh, err = s.insertAttempt(ctx, tx, fresh); err != nil {
		return model.Assignment{}, model.Attempt{}, fmt.Errorf("create attempt: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return model.Assignment{}, model.Attempt{}, err
	}

	a, err := s.GetAssignment(ctx, examID, studentID)
	if err != nil {
		return model.Assignment{}, model.Attempt{}, err
	}
	return a, fresh, nil
}

// Deactivate closes an assignment for further submissions.
func (s *Store) Deactivate(ctx context.Context, examID, studentID string) error {
	res, err := s.db.ExecContext(ctx, s.q(
		`UPDATE assignments SET is_active = FALSE, started_at = NULL WHERE exam_id = ? AND student_id = ?`),
		examID, studentID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// StartAssignment stamps the start time of the current attempt if it is not
// already running. It reports whether a new start time was written.
func (s *Store) StartAssignment(ctx context.Context, examID, studentID string, at time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx, s.q(
		`UPDATE assignments SET started_at = ?
		 WHERE exam_id = ? AND student_id = ? AND started_at IS NULL AND is_active = TRUE AND attempts < ?`),
		at.UTC(), examID, studentID, model.MaxAttempts)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// Submission is a graded answer set ready to be recorded.
type Submission struct {
	ExamID    string
	StudentID string
	Answers   map[string]int
	Score     int
	Total     int
	Submitted bool

	// Expired closes a running attempt whose clock has run out. The
	// update then only applies while the clock is still running and the
	// counter still equals Attempts, so a timed-out attempt is closed once.
	Expired  bool
	Attempts int
}

// RecordSubmission consumes one attempt and stores the attempt record in a
// single transaction. The attempt counter is incremented with a conditional
// update, so concurrent submissions cannot exceed model.MaxAttempts.
// ErrAttemptRejected is returned if the assignment is missing, inactive or
// out of attempts.
func (s *Store) RecordSubmission(ctx context.Context, sub Submission) (model.Attempt, error) {
	at := now()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Attempt{}, err
	}
	defer tx.Rollback()

	query := `UPDATE assignments SET attempts = attempts + 1, submitted = ?, started_at = NULL
		 WHERE exam_id = ? AND student_id = ? AND is_active = TRUE AND attempts < ?`
	args := []any{sub.Submitted, sub.ExamID, sub.StudentID, model.MaxAttempts}
	if sub.Expired {
		query += ` AND started_at IS NOT NULL AND attempts = ?`
		args = append(args, sub.Attempts)
	}

	var attempts int
	err = tx.QueryRowContext(ctx, s.q(query+` RETURNING attempts`), args...).Scan(&attempts)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Attempt{}, ErrAttemptRejected
	}
	if err != nil {
		return model.Attempt{}, fmt.Errorf("consume attempt: %w", err)
	}

	score := sub.Score
	a := model.Attempt{
		ExamID:        sub.ExamID,
		StudentID:     sub.StudentID,
		AttemptNumber: attempts,
		Answers:       sub.Answers,
		Score:         &score,
		Total:         sub.Total,
		Status:        model.AttemptSubmitted,
		SubmittedAt:   &at,
		CreatedAt:     at,
	}

	// The first submission after (re)assignment fills the fresh record.
	var placeholderID string
	err = tx.QueryRowContext(ctx, s.q(
		`SELECT id FROM attempts WHERE exam_id = ? AND student_id = ? AND status = ? ORDER BY created_at LIMIT 1`),
		sub.ExamID, sub.StudentID, model.AttemptAssigned,
	).Scan(&placeholderID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if a, err = s.insertAttempt(ctx, tx, a); err != nil {
			return model.Attempt{}, fmt.Errorf("insert attempt: %w", err)
		}
	case err != nil:
		return model.Attempt{}, fmt.Errorf("find fresh attempt: %w", err)
	default:
		a.ID = placeholderID
		answers, err := json.Marshal(a.Answers)
		if err != nil {
			return model.Attempt{}, err
		}
		_, err = tx.ExecContext(ctx, s.q(
			`UPDATE attempts SET attempt_number = ?, answers = ?, score = ?, total = ?, status = ?, submitted_at = ?
			 WHERE id = ?`),
			a.AttemptNumber, string(answers), score, a.Total, a.Status, at, a.ID)
		if err != nil {
			return model.Attempt{}, fmt.Errorf("fill attempt: %w", err)
		}
		if err := tx.QueryRowContext(ctx, s.q(`SELECT created_at FROM attempts WHERE id = ?`), a.ID).Scan(&a.CreatedAt); err != nil {
			return model.Attempt{}, err
		}
	}

	return a, tx.Commit()
}

func scanAssignment(row scanner) (model.Assignment, error) {
	var a model.Assignment
	err := row.Scan(&a.ExamID, &a.StudentID, &a.StudentPublicID, &a.StudentName,
		&a.IsActive, &a.Submitted, &a.Attempts, &a.StartedAt, &a.AssignedAt)
	return a, err
}
