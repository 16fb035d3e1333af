package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/pavelanni/examhall/internal/model"
)

const examColumns = `id, teacher_id, name, class_name, topic, exam_date, duration_minutes, created_at, updated_at`

// CreateExam inserts an exam with no questions and no assignments.
func (s *Store) CreateExam(ctx context.Context, e model.Exam) (model.Exam, error) {
	e.ID = uuid.NewString()
	e.CreatedAt = now()
	e.UpdatedAt = e.CreatedAt
	e.Questions = []model.Question{}
	e.AssignedTo = []model.Assignment{}
	_, err := s.db.ExecContext(ctx, s.q(
		`INSERT INTO exams (`+examColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		e.ID, e.TeacherID, e.Name, e.ClassName, e.Topic, e.Date.UTC(), e.DurationMinutes, e.CreatedAt, e.UpdatedAt,
	)
	if err != nil {
		return model.Exam{}, err
	}
	return e, nil
}

// GetExamSummary returns exam metadata without questions or assignments.
func (s *Store) GetExamSummary(ctx context.Context, id string) (model.Exam, error) {
	row := s.db.QueryRowContext(ctx, s.q(`SELECT `+examColumns+` FROM exams WHERE id = ?`), id)
	e, err := scanExam(row)
	return e, notFound(err)
}

// GetExam returns an exam with its questions and assignments.
func (s *Store) GetExam(ctx context.Context, id string) (model.Exam, error) {
	e, err := s.GetExamSummary(ctx, id)
	if err != nil {
		return model.Exam{}, err
	}
	return s.loadExamChildren(ctx, e)
}

// ListExamsByTeacher returns all exams owned by a teacher, newest first.
func (s *Store) ListExamsByTeacher(ctx context.Context, teacherID string) ([]model.Exam, error) {
	exams, err := s.listExams(ctx,
		`SELECT `+examColumns+` FROM exams WHERE teacher_id = ? ORDER BY created_at DESC, id`, teacherID)
	if err != nil {
		return nil, err
	}
	for i := range exams {
		if exams[i], err = s.loadExamChildren(ctx, exams[i]); err != nil {
			return nil, err
		}
	}
	return exams, nil
}

// ListActiveExamsForStudent returns exams the student is actively assigned to.
func (s *Store) ListActiveExamsForStudent(ctx context.Context, studentID string) ([]model.Exam, error) {
	return s.listExams(ctx,
		`SELECT e.id, e.teacher_id, e.name, e.class_name, e.topic, e.exam_date, e.duration_minutes, e.created_at, e.updated_at
		 FROM exams e JOIN assignments a ON a.exam_id = e.id
		 WHERE a.student_id = ? AND a.is_active = TRUE
		 ORDER BY e.exam_date, e.id`, studentID)
}

func (s *Store) listExams(ctx context.Context, query string, args ...any) ([]model.Exam, error) {
	rows, err := s.db.QueryContext(ctx, s.q(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	exams := []model.Exam{}
	for rows.Next() {
		e, err := scanExam(rows)
		if err != nil {
			return nil, err
		}
		exams = append(exams, e)
	}
	return exams, rows.Err()
}

func (s *Store) loadExamChildren(ctx context.Context, e model.Exam) (model.Exam, error) {
	var err error
	if e.Questions, err = s.ListQuestions(ctx, e.ID); err != nil {
		return model.Exam{}, fmt.Errorf("load questions: %w", err)
	}
	if e.AssignedTo, err = s.ListAssignments(ctx, e.ID); err != nil {
		return model.Exam{}, fmt.Errorf("load assignments: %w", err)
	}
	return e, nil
}

// UpdateExam writes exam metadata.
func (s *Store) UpdateExam(ctx context.Context, e model.Exam) (model.Exam, error) {
	e.UpdatedAt = now()
	res, err := s.db.ExecContext(ctx, s.q(
		`UPDATE exams SET name = ?, class_name = ?, topic = ?, exam_date = ?, duration_minutes = ?, updated_at = ?
		 WHERE id = ?`),
		e.Name, e.ClassName, e.Topic, e.Date.UTC(), e.DurationMinutes, e.UpdatedAt, e.ID,
	)
	if err != nil {
		return model.Exam{}, err
	}
	if err := requireRow(res); err != nil {
		return model.Exam{}, err
	}
	return e, nil
}

// DeleteExam removes an exam with its questions and assignments. Attempt
// records are left behind; reads ignore them and PurgeOrphanedAttempts
// removes them.
func (s *Store) DeleteExam(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, s.q(`DELETE FROM questions WHERE exam_id = ?`), id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, s.q(`DELETE FROM assignments WHERE exam_id = ?`), id); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, s.q(`DELETE FROM exams WHERE id = ?`), id)
	if err != nil {
		return err
	}
	if err := requireRow(res); err != nil {
		return err
	}
	return tx.Commit()
}

const questionColumns = `id, exam_id, position, text, option_a, option_b, option_c, option_d, correct_option`

// ListQuestions returns an exam's questions in order.
func (s *Store) ListQuestions(ctx context.Context, examID string) ([]model.Question, error) {
	rows, err := s.db.QueryContext(ctx, s.q(
		`SELECT `+questionColumns+` FROM questions WHERE exam_id = ? ORDER BY position, id`), examID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	questions := []model.Question{}
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

// GetQuestion returns a question of an exam by ID.
func (s *Store) GetQuestion(ctx context.Context, examID, questionID string) (model.Question, error) {
	row := s.db.QueryRowContext(ctx, s.q(
		`SELECT `+questionColumns+` FROM questions WHERE exam_id = ? AND id = ?`), examID, questionID)
	q, err := scanQuestion(row)
	return q, notFound(err)
}

// InsertQuestion appends a question to the end of an exam.
func (s *Store) InsertQuestion(ctx context.Context, q model.Question) (model.Question, error) {
	q.ID = uuid.NewString()
	err := s.db.QueryRowContext(ctx, s.q(
		`INSERT INTO questions (`+questionColumns+`)
		 VALUES (?, ?, (SELECT COALESCE(MAX(position), 0) + 1 FROM questions WHERE exam_id = ?), ?, ?, ?, ?, ?, ?)
		 RETURNING position`),
		q.ID, q.ExamID, q.ExamID, q.Text, q.Options[0], q.Options[1], q.Options[2], q.Options[3], q.CorrectOptionIndex,
	).Scan(&q.Position)
	if err != nil {
		return model.Question{}, err
	}
	return q, nil
}

// UpdateQuestion writes a question's text, options and correct answer.
func (s *Store) UpdateQuestion(ctx context.Context, q model.Question) error {
	res, err := s.db.ExecContext(ctx, s.q(
		`UPDATE questions SET text = ?, option_a = ?, option_b = ?, option_c = ?, option_d = ?, correct_option = ?
		 WHERE exam_id = ? AND id = ?`),
		q.Text, q.Options[0], q.Options[1], q.Options[2], q.Options[3], q.CorrectOptionIndex, q.ExamID, q.ID,
	)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// DeleteQuestion removes a question. Other questions keep their IDs.
func (s *Store) DeleteQuestion(ctx context.Context, examID, questionID string) error {
	res, err := s.db.ExecContext(ctx, s.q(`DELETE FROM questions WHERE exam_id = ? AND id = ?`), examID, questionID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func scanExam(row scanner) (model.Exam, error) {
	var e model.Exam
	err := row.Scan(&e.ID, &e.TeacherID, &e.Name, &e.ClassName, &e.Topic, &e.Date, &e.DurationMinutes, &e.CreatedAt, &e.UpdatedAt)
	return e, err
}

func scanQuestion(row scanner) (model.Question, error) {
	var q model.Question
	err := row.Scan(&q.ID, &q.ExamID, &q.Position, &q.Text,
		&q.Options[0], &q.Options[1], &q.Options[2], &q.Options[3], &q.CorrectOptionIndex)
	return q, err
}
