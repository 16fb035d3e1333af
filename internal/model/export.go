package model

import "time"

// ExamExport is the top-level JSON structure for exam result export.
type ExamExport struct {
	ExamID       string          `json:"exam_id"`
	Name         string          `json:"name"`
	ClassName    string          `json:"class_name"`
	Topic        string          `json:"topic"`
	Date         time.Time       `json:"date"`
	NumQuestions int             `json:"num_questions"`
	Results      []StudentResult `json:"results"`
}

// StudentResult holds one student's published attempt for export.
type StudentResult struct {
	PublicID      string           `json:"public_id"`
	Name          string           `json:"name"`
	AttemptNumber int              `json:"attempt_number"`
	Status        AttemptStatus    `json:"status"`
	SubmittedAt   *time.Time       `json:"submitted_at,omitempty"`
	Score         int              `json:"score"`
	Total         int              `json:"total"`
	Questions     []QuestionResult `json:"questions"`
}

// QuestionResult holds per-question data for export.
type QuestionResult struct {
	Text     string `json:"text"`
	Selected int    `json:"selected"`
	Correct  int    `json:"correct"`
}
