package model

import (
	"context"
	"time"
)

// UserRole represents a user's access level.
type UserRole string

const (
	// UserRoleStudent is a student user role.
	UserRoleStudent UserRole = "student"
	// UserRoleTeacher is a teacher user role.
	UserRoleTeacher UserRole = "teacher"
)

// Valid reports whether r is a known role.
func (r UserRole) Valid() bool {
	return r == UserRoleStudent || r == UserRoleTeacher
}

const (
	// MaxAttempts caps submissions per (exam, student) pair until reassignment.
	MaxAttempts = 3
	// NumOptions is the fixed number of options of every question.
	NumOptions = 4
	// Unanswered marks a question the student left blank.
	Unanswered = -1
)

// User represents a teacher or student account.
type User struct {
	ID           string    `json:"id"`
	PublicID     string    `json:"publicId"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         UserRole  `json:"role"`
	ClassName    string    `json:"className,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

type userCtxKey struct{}

// ContextWithUser stores a user in the request context.
func ContextWithUser(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, userCtxKey{}, u)
}

// UserFromContext retrieves the authenticated user from context, or nil.
func UserFromContext(ctx context.Context) *User {
	u, _ := ctx.Value(userCtxKey{}).(*User)
	return u
}

// Question is a multiple-choice question embedded in an exam.
type Question struct {
	ID                 string             `json:"id"`
	ExamID             string             `json:"examId"`
	Position           int                `json:"position"`
	Text               string             `json:"text"`
	Options            [NumOptions]string `json:"options"`
	CorrectOptionIndex int                `json:"correctOptionIndex"`
}

// StudentQuestion is a question as shown to a student: no correct answer.
type StudentQuestion struct {
	ID      string             `json:"id"`
	Text    string             `json:"text"`
	Options [NumOptions]string `json:"options"`
}

// ForStudent strips the correct answer.
func (q Question) ForStudent() StudentQuestion {
	return StudentQuestion{ID: q.ID, Text: q.Text, Options: q.Options}
}

// Exam is a teacher-authored assessment.
type Exam struct {
	ID              string       `json:"id"`
	TeacherID       string       `json:"teacherId"`
	Name            string       `json:"name"`
	ClassName       string       `json:"className"`
	Topic           string       `json:"topic"`
	Date            time.Time    `json:"date"`
	DurationMinutes int          `json:"durationMinutes"`
	Questions       []Question   `json:"questions"`
	AssignedTo      []Assignment `json:"assignedTo"`
	CreatedAt       time.Time    `json:"createdAt"`
	UpdatedAt       time.Time    `json:"updatedAt"`
}

// Assignment is the progress state between one student and one exam.
type Assignment struct {
	ExamID          string     `json:"examId"`
	StudentID       string     `json:"studentId"`
	StudentPublicID string     `json:"studentPublicId,omitempty"`
	StudentName     string     `json:"studentName,omitempty"`
	IsActive        bool       `json:"isActive"`
	Submitted       bool       `json:"submitted"`
	Attempts        int        `json:"attempts"`
	StartedAt       *time.Time `json:"startedAt,omitempty"`
	AssignedAt      time.Time  `json:"assignedAt"`
}

// RemainingAttempts returns how many submissions are still allowed.
func (a Assignment) RemainingAttempts() int {
	if a.Attempts >= MaxAttempts {
		return 0
	}
	return MaxAttempts - a.Attempts
}

// AttemptStatus represents the status of an attempt record.
type AttemptStatus string

const (
	AttemptAssigned  AttemptStatus = "assigned"
	AttemptSubmitted AttemptStatus = "submitted"
	AttemptReviewed  AttemptStatus = "reviewed"
)

// Attempt is one submission of answers for an exam.
type Attempt struct {
	ID            string         `json:"id"`
	ExamID        string         `json:"examId"`
	StudentID     string         `json:"studentId"`
	AttemptNumber int            `json:"attemptNumber"`
	Answers       map[string]int `json:"answers"`
	Score         *int           `json:"score"`
	Total         int            `json:"total"`
	IsPublished   bool           `json:"isPublished"`
	ReviewedBy    string         `json:"reviewedBy,omitempty"`
	Status        AttemptStatus  `json:"status"`
	SubmittedAt   *time.Time     `json:"submittedAt,omitempty"`
	CreatedAt     time.Time      `json:"createdAt"`
}

// AttemptView decorates an attempt with exam and student names for listings.
type AttemptView struct {
	Attempt
	ExamName        string `json:"examName"`
	StudentName     string `json:"studentName,omitempty"`
	StudentPublicID string `json:"studentPublicId,omitempty"`
}

// StudentExamView is what a student receives before an attempt.
type StudentExamView struct {
	ExamID            string            `json:"examId"`
	ExamName          string            `json:"examName"`
	Topic             string            `json:"topic"`
	Questions         []StudentQuestion `json:"questions"`
	DurationMinutes   int               `json:"durationMinutes"`
	AttemptCount      int               `json:"attemptCount"`
	RemainingAttempts int               `json:"remainingAttempts"`
	IsActive          bool              `json:"isActive"`
	Deadline          *time.Time        `json:"deadline,omitempty"`
}

// SubmitResult is returned to the student after a submission.
type SubmitResult struct {
	AttemptID         string `json:"attemptId"`
	Score             int    `json:"score"`
	Total             int    `json:"total"`
	AttemptNumber     int    `json:"attemptNumber"`
	RemainingAttempts int    `json:"remainingAttempts"`
	Submitted         bool   `json:"submitted"`
}

// DraftRequest asks a question drafter for new questions.
type DraftRequest struct {
	Topic      string
	Count      int
	Difficulty string
	Avoid      []string // texts of questions already in the exam
}

// LeaderboardEntry is one row of the top-students list.
type LeaderboardEntry struct {
	Name           string `json:"name"`
	ExamsCompleted int    `json:"examsCompleted"`
}

// ExamConfig holds runtime exam parameters set via CLI flags.
type ExamConfig struct {
	BasePath    string // URL prefix for sub-path deployments (e.g. "/ru")
	CORSOrigins []string
}
