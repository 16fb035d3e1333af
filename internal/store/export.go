package store

import (
	"context"
	"fmt"

	"github.com/pavelanni/examhall/internal/model"
)

// ExportPublishedResults builds export-ready results from the published
// attempts of one exam.
func (s *Store) ExportPublishedResults(ctx context.Context, examID string) (model.ExamExport, error) {
	exam, err := s.GetExamSummary(ctx, examID)
	if err != nil {
		return model.ExamExport{}, fmt.Errorf("get exam %s: %w", examID, err)
	}
	questions, err := s.ListQuestions(ctx, examID)
	if err != nil {
		return model.ExamExport{}, fmt.Errorf("list questions: %w", err)
	}
	views, err := s.listAttemptViews(ctx,
		attemptViewQuery+` WHERE t.exam_id = ? AND t.is_published = TRUE ORDER BY u.public_id, t.attempt_number`,
		examID)
	if err != nil {
		return model.ExamExport{}, fmt.Errorf("list published attempts: %w", err)
	}

	results := []model.StudentResult{}
	for _, v := range views {
		qr := make([]model.QuestionResult, 0, len(questions))
		for _, q := range questions {
			selected, ok := v.Answers[q.ID]
			if !ok {
				selected = model.Unanswered
			}
			qr = append(qr, model.QuestionResult{
				Text:     q.Text,
				Selected: selected,
				Correct:  q.CorrectOptionIndex,
			})
		}

		var score int
		if v.Score != nil {
			score = *v.Score
		}
		results = append(results, model.StudentResult{
			PublicID:      v.StudentPublicID,
			Name:          v.StudentName,
			AttemptNumber: v.AttemptNumber,
			Status:        v.Status,
			SubmittedAt:   v.SubmittedAt,
			Score:         score,
			Total:         v.Total,
			Questions:     qr,
		})
	}

	return model.ExamExport{
		ExamID:       exam.ID,
		Name:         exam.Name,
		ClassName:    exam.ClassName,
		Topic:        exam.Topic,
		Date:         exam.Date,
		NumQuestions: len(questions),
		Results:      results,
	}, nil
}
