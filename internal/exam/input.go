package exam

import (
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/pavelanni/examhall/internal/model"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// ExamInput is the body of an exam creation request.
type ExamInput struct {
	Name            string `json:"name" validate:"required,max=200"`
	ClassName       string `json:"className" validate:"required,max=100"`
	Topic           string `json:"topic" validate:"required,max=200"`
	Date            string `json:"date" validate:"required"`
	DurationMinutes int    `json:"durationMinutes" validate:"required,min=1,max=1440"`
}

// ExamPatch is a partial exam update. Nil fields keep their value.
type ExamPatch struct {
	Name            *string `json:"name" validate:"omitnil,max=200"`
	ClassName       *string `json:"className" validate:"omitnil,max=100"`
	Topic           *string `json:"topic" validate:"omitnil,max=200"`
	Date            *string `json:"date"`
	DurationMinutes *int    `json:"durationMinutes" validate:"omitnil,min=1,max=1440"`
}

// QuestionInput is the body of a question creation request. The correct
// answer is given either as an index or as a letter A-D.
type QuestionInput struct {
	Text               string   `json:"text" validate:"required,max=2000"`
	Options            []string `json:"options" validate:"len=4,dive,required,max=500"`
	CorrectOptionIndex *int     `json:"correctOptionIndex" validate:"omitnil,min=0,max=3"`
	CorrectOption      string   `json:"correctOption" validate:"omitempty,oneof=A B C D a b c d"`
}

// QuestionPatch is a partial question update.
type QuestionPatch struct {
	Text               *string  `json:"text" validate:"omitnil,min=1,max=2000"`
	Options            []string `json:"options" validate:"omitempty,len=4,dive,required,max=500"`
	CorrectOptionIndex *int     `json:"correctOptionIndex" validate:"omitnil,min=0,max=3"`
	CorrectOption      string   `json:"correctOption" validate:"omitempty,oneof=A B C D a b c d"`
}

// GenerateInput asks the drafter for new questions.
type GenerateInput struct {
	Topic      string `json:"topic" validate:"max=200"`
	Count      int    `json:"count" validate:"required,min=1,max=20"`
	Difficulty string `json:"difficulty" validate:"omitempty,oneof=easy standard hard"`
}

// SubmitInput is a student's answer set keyed by question ID. A null
// selection is an unanswered question.
type SubmitInput struct {
	Answers map[string]*int `json:"answers" validate:"required"`
}

func (in SubmitInput) selections() map[string]int {
	out := make(map[string]int, len(in.Answers))
	for id, sel := range in.Answers {
		if sel == nil {
			out[id] = model.Unanswered
			continue
		}
		out[id] = *sel
	}
	return out
}

// validationDetail flattens validator errors into "Field:tag" pairs.
func validationDetail(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fe.Field()+":"+fe.Tag())
	}
	return strings.Join(parts, ", ")
}

// parseDate accepts a calendar date or an RFC 3339 timestamp.
func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}

// correctIndex resolves the index-or-letter pair. ok is false if neither is set.
func correctIndex(idx *int, letter string) (int, bool) {
	if idx != nil {
		return *idx, true
	}
	if letter != "" {
		return int(strings.ToUpper(letter)[0] - 'A'), true
	}
	return 0, false
}

func (in ExamInput) toExam(teacherID string) (model.Exam, error) {
	if err := validate.Struct(in); err != nil {
		return model.Exam{}, validationErr(MsgMissingExamFields, validationDetail(err))
	}
	name := strings.TrimSpace(in.Name)
	className := strings.TrimSpace(in.ClassName)
	topic := strings.TrimSpace(in.Topic)
	if name == "" || className == "" || topic == "" {
		return model.Exam{}, validationErr(MsgMissingExamFields, "")
	}
	date, err := parseDate(in.Date)
	if err != nil {
		return model.Exam{}, validationErr(MsgInvalidExamDate, in.Date)
	}
	return model.Exam{
		TeacherID:       teacherID,
		Name:            name,
		ClassName:       className,
		Topic:           topic,
		Date:            date,
		DurationMinutes: in.DurationMinutes,
	}, nil
}

// apply merges the patch into e.
func (p ExamPatch) apply(e model.Exam) (model.Exam, error) {
	if err := validate.Struct(p); err != nil {
		return model.Exam{}, validationErr(MsgInvalidRequest, validationDetail(err))
	}
	for _, f := range []struct {
		v   *string
		dst *string
	}{{p.Name, &e.Name}, {p.ClassName, &e.ClassName}, {p.Topic, &e.Topic}} {
		if f.v == nil {
			continue
		}
		v := strings.TrimSpace(*f.v)
		if v == "" {
			return model.Exam{}, validationErr(MsgMissingExamFields, "")
		}
		*f.dst = v
	}
	if p.Date != nil {
		date, err := parseDate(*p.Date)
		if err != nil {
			return model.Exam{}, validationErr(MsgInvalidExamDate, *p.Date)
		}
		e.Date = date
	}
	if p.DurationMinutes != nil {
		e.DurationMinutes = *p.DurationMinutes
	}
	return e, nil
}

func (in QuestionInput) toQuestion(examID string) (model.Question, error) {
	if err := validate.Struct(in); err != nil {
		return model.Question{}, validationErr(MsgInvalidQuestion, validationDetail(err))
	}
	idx, ok := correctIndex(in.CorrectOptionIndex, in.CorrectOption)
	if !ok {
		return model.Question{}, validationErr(MsgInvalidQuestion, "correct option missing")
	}
	q := model.Question{ExamID: examID, Text: strings.TrimSpace(in.Text), CorrectOptionIndex: idx}
	copy(q.Options[:], in.Options)
	return q, nil
}

func (p QuestionPatch) apply(q model.Question) (model.Question, error) {
	if err := validate.Struct(p); err != nil {
		return model.Question{}, validationErr(MsgInvalidQuestion, validationDetail(err))
	}
	if p.Text != nil {
		q.Text = strings.TrimSpace(*p.Text)
		if q.Text == "" {
			return model.Question{}, validationErr(MsgInvalidQuestion, "empty text")
		}
	}
	if len(p.Options) > 0 {
		copy(q.Options[:], p.Options)
	}
	if idx, ok := correctIndex(p.CorrectOptionIndex, p.CorrectOption); ok {
		q.CorrectOptionIndex = idx
	}
	return q, nil
}
