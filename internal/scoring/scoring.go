// Package scoring grades multiple-choice answers against a question set.
package scoring

import "github.com/pavelanni/examhall/internal/model"

// Score counts the questions whose answer equals the correct option index.
// Answers keyed by unknown question IDs are ignored; unanswered or
// out-of-range selections never match.
func Score(questions []model.Question, answers map[string]int) int {
	score := 0
	for _, q := range questions {
		sel, ok := answers[q.ID]
		if !ok || !inRange(sel) {
			continue
		}
		if sel == q.CorrectOptionIndex {
			score++
		}
	}
	return score
}

// Normalize maps raw answers onto the current question set. Every question
// gets an entry; missing or out-of-range selections become model.Unanswered
// and answers for questions not in the set are dropped.
func Normalize(questions []model.Question, answers map[string]int) map[string]int {
	out := make(map[string]int, len(questions))
	for _, q := range questions {
		sel, ok := answers[q.ID]
		if !ok || !inRange(sel) {
			sel = model.Unanswered
		}
		out[q.ID] = sel
	}
	return out
}

// Answered reports whether at least one answer is a real selection.
func Answered(answers map[string]int) bool {
	for _, sel := range answers {
		if inRange(sel) {
			return true
		}
	}
	return false
}

func inRange(sel int) bool {
	return sel >= 0 && sel < model.NumOptions
}
