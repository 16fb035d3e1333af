// Package exam implements the exam lifecycle: catalog, assignment, timed
// attempts, publishing and the leaderboard.
package exam

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/pavelanni/examhall/internal/metrics"
	"github.com/pavelanni/examhall/internal/model"
	"github.com/pavelanni/examhall/internal/scoring"
	"github.com/pavelanni/examhall/internal/store"
)

const (
	DefaultLeaderboardLimit = 10
	MaxLeaderboardLimit     = 100
	DefaultSubmitGrace      = 30 * time.Second
)

// LeaderboardCache caches top-students lists by limit.
type LeaderboardCache interface {
	Get(ctx context.Context, limit int) ([]model.LeaderboardEntry, bool, error)
	Set(ctx context.Context, limit int, entries []model.LeaderboardEntry) error
	Invalidate(ctx context.Context) error
}

// QuestionDrafter produces candidate questions. Returned questions carry
// no ID or exam.
type QuestionDrafter interface {
	DraftQuestions(ctx context.Context, req model.DraftRequest) ([]model.Question, error)
}

// Service runs lifecycle operations against the store.
type Service struct {
	store   *store.Store
	cache   LeaderboardCache
	drafter QuestionDrafter
	grace   time.Duration
	now     func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithCache enables the leaderboard cache.
func WithCache(c LeaderboardCache) Option {
	return func(s *Service) { s.cache = c }
}

// WithDrafter enables question generation.
func WithDrafter(d QuestionDrafter) Option {
	return func(s *Service) { s.drafter = d }
}

// WithSubmitGrace sets the lateness tolerated past the exam deadline.
func WithSubmitGrace(d time.Duration) Option {
	return func(s *Service) { s.grace = d }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(st *store.Store, opts ...Option) *Service {
	s := &Service{store: st, grace: DefaultSubmitGrace, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

// CanDraft reports whether question generation is configured.
func (s *Service) CanDraft() bool {
	return s.drafter != nil
}

// ownedExam loads an exam and checks that teacherID owns it.
func (s *Service) ownedExam(ctx context.Context, examID, teacherID string) (model.Exam, error) {
	e, err := s.store.GetExamSummary(ctx, examID)
	if errors.Is(err, store.ErrNotFound) {
		return model.Exam{}, notFoundErr(MsgExamNotFound)
	}
	if err != nil {
		return model.Exam{}, internalErr("get exam", err)
	}
	if e.TeacherID != teacherID {
		return model.Exam{}, errNotOwner
	}
	return e, nil
}

func (s *Service) student(ctx context.Context, publicID string) (model.User, error) {
	u, err := s.store.GetUserByPublicID(ctx, publicID)
	if errors.Is(err, store.ErrNotFound) || (err == nil && u.Role != model.UserRoleStudent) {
		return model.User{}, notFoundErr(MsgStudentNotFound)
	}
	if err != nil {
		return model.User{}, internalErr("get student", err)
	}
	return u, nil
}

// CreateExam creates an empty exam owned by teacherID.
func (s *Service) CreateExam(ctx context.Context, teacherID string, in ExamInput) (model.Exam, error) {
	teacher, err := s.store.GetUserByID(ctx, teacherID)
	if errors.Is(err, store.ErrNotFound) || (err == nil && teacher.Role != model.UserRoleTeacher) {
		return model.Exam{}, notFoundErr(MsgTeacherNotFound)
	}
	if err != nil {
		return model.Exam{}, internalErr("get teacher", err)
	}
	e, err := in.toExam(teacherID)
	if err != nil {
		return model.Exam{}, err
	}
	e, err = s.store.CreateExam(ctx, e)
	if err != nil {
		return model.Exam{}, internalErr("create exam", err)
	}
	slog.Info("exam created", "exam_id", e.ID, "teacher_id", teacherID)
	return e, nil
}

// ListExams returns the teacher's own exams.
func (s *Service) ListExams(ctx context.Context, teacherID string) ([]model.Exam, error) {
	exams, err := s.store.ListExamsByTeacher(ctx, teacherID)
	if err != nil {
		return nil, internalErr("list exams", err)
	}
	return exams, nil
}

// GetExam returns an owned exam with questions and assignments.
func (s *Service) GetExam(ctx context.Context, examID, teacherID string) (model.Exam, error) {
	if _, err := s.ownedExam(ctx, examID, teacherID); err != nil {
		return model.Exam{}, err
	}
	e, err := s.store.GetExam(ctx, examID)
	if err != nil {
		return model.Exam{}, internalErr("get exam", err)
	}
	return e, nil
}

// UpdateExam merges a partial update into an owned exam.
func (s *Service) UpdateExam(ctx context.Context, examID, teacherID string, p ExamPatch) (model.Exam, error) {
	e, err := s.ownedExam(ctx, examID, teacherID)
	if err != nil {
		return model.Exam{}, err
	}
	if e, err = p.apply(e); err != nil {
		return model.Exam{}, err
	}
	if _, err := s.store.UpdateExam(ctx, e); err != nil {
		return model.Exam{}, internalErr("update exam", err)
	}
	return s.GetExam(ctx, examID, teacherID)
}

// DeleteExam removes an owned exam. Its attempts become unreachable.
func (s *Service) DeleteExam(ctx context.Context, examID, teacherID string) error {
	if _, err := s.ownedExam(ctx, examID, teacherID); err != nil {
		return err
	}
	if err := s.store.DeleteExam(ctx, examID); err != nil {
		return internalErr("delete exam", err)
	}
	slog.Info("exam deleted", "exam_id", examID, "teacher_id", teacherID)
	s.invalidateLeaderboard(ctx)
	return nil
}

// ListQuestions returns the questions of an owned exam, answers included.
func (s *Service) ListQuestions(ctx context.Context, examID, teacherID string) ([]model.Question, error) {
	if _, err := s.ownedExam(ctx, examID, teacherID); err != nil {
		return nil, err
	}
	qs, err := s.store.ListQuestions(ctx, examID)
	if err != nil {
		return nil, internalErr("list questions", err)
	}
	return qs, nil
}

// AddQuestion appends a question to an owned exam.
func (s *Service) AddQuestion(ctx context.Context, examID, teacherID string, in QuestionInput) (model.Question, error) {
	if _, err := s.ownedExam(ctx, examID, teacherID); err != nil {
		return model.Question{}, err
	}
	q, err := in.toQuestion(examID)
	if err != nil {
		return model.Question{}, err
	}
	q, err = s.store.InsertQuestion(ctx, q)
	if err != nil {
		return model.Question{}, internalErr("insert question", err)
	}
	return q, nil
}

func (s *Service) ownedQuestion(ctx context.Context, examID, questionID, teacherID string) (model.Question, error) {
	if _, err := s.ownedExam(ctx, examID, teacherID); err != nil {
		return model.Question{}, err
	}
	q, err := s.store.GetQuestion(ctx, examID, questionID)
	if errors.Is(err, store.ErrNotFound) {
		return model.Question{}, notFoundErr(MsgQuestionNotFound)
	}
	if err != nil {
		return model.Question{}, internalErr("get question", err)
	}
	return q, nil
}

// UpdateQuestion applies a partial update to one question by ID.
func (s *Service) UpdateQuestion(ctx context.Context, examID, questionID, teacherID string, p QuestionPatch) (model.Question, error) {
	q, err := s.ownedQuestion(ctx, examID, questionID, teacherID)
	if err != nil {
		return model.Question{}, err
	}
	if q, err = p.apply(q); err != nil {
		return model.Question{}, err
	}
	if err := s.store.UpdateQuestion(ctx, q); err != nil {
		return model.Question{}, internalErr("update question", err)
	}
	return q, nil
}

// DeleteQuestion removes one question by ID.
func (s *Service) DeleteQuestion(ctx context.Context, examID, questionID, teacherID string) error {
	if _, err := s.ownedQuestion(ctx, examID, questionID, teacherID); err != nil {
		return err
	}
	if err := s.store.DeleteQuestion(ctx, examID, questionID); err != nil {
		return internalErr("delete question", err)
	}
	return nil
}

// GenerateQuestions drafts questions with the configured drafter and
// appends the well-formed ones to an owned exam.
func (s *Service) GenerateQuestions(ctx context.Context, examID, teacherID string, in GenerateInput) ([]model.Question, error) {
	e, err := s.ownedExam(ctx, examID, teacherID)
	if err != nil {
		return nil, err
	}
	if s.drafter == nil {
		return nil, &Error{Kind: KindUnavailable, MsgID: MsgDrafterUnavailable}
	}
	if err := validate.Struct(in); err != nil {
		return nil, validationErr(MsgInvalidRequest, validationDetail(err))
	}
	req := model.DraftRequest{Topic: in.Topic, Count: in.Count, Difficulty: in.Difficulty}
	if req.Topic == "" {
		req.Topic = e.Topic
	}
	existing, err := s.store.ListQuestions(ctx, examID)
	if err != nil {
		return nil, internalErr("list questions", err)
	}
	for _, q := range existing {
		req.Avoid = append(req.Avoid, q.Text)
	}

	drafts, err := s.drafter.DraftQuestions(ctx, req)
	if err != nil {
		slog.Error("question drafting failed", "exam_id", examID, "error", err)
		return nil, &Error{Kind: KindUnavailable, MsgID: MsgDraftFailed, Err: err}
	}

	added := []model.Question{}
	for _, d := range drafts {
		if len(added) == in.Count {
			break
		}
		if !wellFormed(d) {
			slog.Warn("discarding malformed draft", "exam_id", examID, "text", d.Text)
			continue
		}
		d.ID = ""
		d.ExamID = examID
		q, err := s.store.InsertQuestion(ctx, d)
		if err != nil {
			return nil, internalErr("insert question", err)
		}
		added = append(added, q)
	}
	if len(added) == 0 {
		return nil, &Error{Kind: KindUnavailable, MsgID: MsgDraftFailed}
	}
	metrics.QuestionsDrafted.Add(float64(len(added)))
	slog.Info("questions generated", "exam_id", examID, "count", len(added))
	return added, nil
}

func wellFormed(q model.Question) bool {
	if q.Text == "" || q.CorrectOptionIndex < 0 || q.CorrectOptionIndex >= model.NumOptions {
		return false
	}
	for _, o := range q.Options {
		if o == "" {
			return false
		}
	}
	return true
}

// Assign creates or resets the assignment of a student to an owned exam.
func (s *Service) Assign(ctx context.Context, examID, teacherID, studentPublicID string) (model.Assignment, error) {
	if _, err := s.ownedExam(ctx, examID, teacherID); err != nil {
		return model.Assignment{}, err
	}
	st, err := s.student(ctx, studentPublicID)
	if err != nil {
		return model.Assignment{}, err
	}
	a, fresh, err := s.store.Assign(ctx, examID, st.ID)
	if err != nil {
		return model.Assignment{}, internalErr("assign", err)
	}
	metrics.Assignments.Inc()
	slog.Info("exam assigned", "exam_id", examID, "student_id", st.ID, "attempt_id", fresh.ID)
	s.invalidateLeaderboard(ctx)
	return a, nil
}

// Deactivate closes a student's assignment to an owned exam.
func (s *Service) Deactivate(ctx context.Context, examID, teacherID, studentPublicID string) (model.Assignment, error) {
	if _, err := s.ownedExam(ctx, examID, teacherID); err != nil {
		return model.Assignment{}, err
	}
	st, err := s.student(ctx, studentPublicID)
	if err != nil {
		return model.Assignment{}, err
	}
	err = s.store.Deactivate(ctx, examID, st.ID)
	if errors.Is(err, store.ErrNotFound) {
		return model.Assignment{}, notFoundErr(MsgNotAssigned)
	}
	if err != nil {
		return model.Assignment{}, internalErr("deactivate", err)
	}
	slog.Info("assignment deactivated", "exam_id", examID, "student_id", st.ID)
	a, err := s.store.GetAssignment(ctx, examID, st.ID)
	if err != nil {
		return model.Assignment{}, internalErr("get assignment", err)
	}
	return a, nil
}

// StudentExams lists the exams a student is actively assigned to.
func (s *Service) StudentExams(ctx context.Context, studentID string) ([]model.StudentExamView, error) {
	exams, err := s.store.ListActiveExamsForStudent(ctx, studentID)
	if err != nil {
		return nil, internalErr("list student exams", err)
	}
	views := make([]model.StudentExamView, 0, len(exams))
	for _, e := range exams {
		a, err := s.store.GetAssignment(ctx, e.ID, studentID)
		if err != nil {
			return nil, internalErr("get assignment", err)
		}
		views = append(views, baseView(e, a))
	}
	return views, nil
}

func baseView(e model.Exam, a model.Assignment) model.StudentExamView {
	v := model.StudentExamView{
		ExamID:            e.ID,
		ExamName:          e.Name,
		Topic:             e.Topic,
		Questions:         []model.StudentQuestion{},
		DurationMinutes:   e.DurationMinutes,
		AttemptCount:      a.Attempts,
		RemainingAttempts: a.RemainingAttempts(),
		IsActive:          a.IsActive,
	}
	if a.StartedAt != nil {
		deadline := a.StartedAt.Add(time.Duration(e.DurationMinutes) * time.Minute)
		v.Deadline = &deadline
	}
	return v
}

// FetchForStudent returns the exam as the student sees it and starts the
// attempt clock when an attempt is available. An attempt whose clock ran
// out is closed first. A student who is not assigned still gets the view,
// with no attempts remaining.
func (s *Service) FetchForStudent(ctx context.Context, examID, studentID string) (model.StudentExamView, error) {
	e, err := s.store.GetExam(ctx, examID)
	if errors.Is(err, store.ErrNotFound) {
		return model.StudentExamView{}, notFoundErr(MsgExamNotFound)
	}
	if err != nil {
		return model.StudentExamView{}, internalErr("get exam", err)
	}

	a, err := s.store.GetAssignment(ctx, examID, studentID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		a = model.Assignment{ExamID: examID, StudentID: studentID}
	case err != nil:
		return model.StudentExamView{}, internalErr("get assignment", err)
	case a.IsActive && s.expired(a, e.DurationMinutes):
		if err := s.closeExpired(ctx, a, e.Questions); err != nil {
			return model.StudentExamView{}, err
		}
		if a, err = s.store.GetAssignment(ctx, examID, studentID); err != nil {
			return model.StudentExamView{}, internalErr("get assignment", err)
		}
	}

	if a.IsActive && a.RemainingAttempts() > 0 {
		started, err := s.store.StartAssignment(ctx, examID, studentID, s.now())
		if err != nil {
			return model.StudentExamView{}, internalErr("start attempt", err)
		}
		if started {
			if a, err = s.store.GetAssignment(ctx, examID, studentID); err != nil {
				return model.StudentExamView{}, internalErr("get assignment", err)
			}
			slog.Info("attempt started", "exam_id", examID, "student_id", studentID, "attempt", a.Attempts+1)
		}
	}

	v := baseView(e, a)
	if !a.IsActive {
		v.RemainingAttempts = 0
	}
	if v.RemainingAttempts > 0 {
		for _, q := range e.Questions {
			v.Questions = append(v.Questions, q.ForStudent())
		}
	}
	return v, nil
}

// Submit grades and records one attempt.
func (s *Service) Submit(ctx context.Context, examID, studentID string, in SubmitInput) (model.SubmitResult, error) {
	if err := validate.Struct(in); err != nil {
		return model.SubmitResult{}, validationErr(MsgInvalidAnswers, validationDetail(err))
	}
	e, err := s.store.GetExamSummary(ctx, examID)
	if errors.Is(err, store.ErrNotFound) {
		return model.SubmitResult{}, notFoundErr(MsgExamNotFound)
	}
	if err != nil {
		return model.SubmitResult{}, internalErr("get exam", err)
	}

	a, err := s.store.GetAssignment(ctx, examID, studentID)
	if err != nil {
		return model.SubmitResult{}, s.rejectSubmission(examID, studentID, a, err)
	}
	if err := checkSubmittable(a); err != nil {
		return model.SubmitResult{}, s.rejectSubmission(examID, studentID, a, err)
	}

	questions, err := s.store.ListQuestions(ctx, examID)
	if err != nil {
		return model.SubmitResult{}, internalErr("list questions", err)
	}
	if s.expired(a, e.DurationMinutes) {
		// Late answers are discarded; the timed-out attempt still counts.
		if err := s.closeExpired(ctx, a, questions); err != nil {
			return model.SubmitResult{}, err
		}
		return model.SubmitResult{}, s.rejectSubmission(examID, studentID, a, policyErr(MsgTimeExpired))
	}
	answers := scoring.Normalize(questions, in.selections())
	answered := scoring.Answered(answers)
	score := 0
	if answered {
		score = scoring.Score(questions, answers)
	}

	att, err := s.store.RecordSubmission(ctx, store.Submission{
		ExamID:    examID,
		StudentID: studentID,
		Answers:   answers,
		Score:     score,
		Total:     len(questions),
		Submitted: answered,
	})
	if errors.Is(err, store.ErrAttemptRejected) {
		// Lost a race with another submit or a teacher action.
		a, rerr := s.store.GetAssignment(ctx, examID, studentID)
		if rerr == nil {
			rerr = checkSubmittable(a)
		}
		if rerr == nil {
			rerr = policyErr(MsgMaxAttemptsReached)
		}
		return model.SubmitResult{}, s.rejectSubmission(examID, studentID, a, rerr)
	}
	if err != nil {
		metrics.Submissions.WithLabelValues("error").Inc()
		slog.Error("failed to record submission", "exam_id", examID, "student_id", studentID, "error", err)
		return model.SubmitResult{}, internalErr("record submission", err)
	}

	metrics.Submissions.WithLabelValues("accepted").Inc()
	slog.Info("exam submitted", "exam_id", examID, "student_id", studentID,
		"attempt_id", att.ID, "attempt", att.AttemptNumber, "score", score, "total", len(questions))
	return model.SubmitResult{
		AttemptID:         att.ID,
		Score:             score,
		Total:             len(questions),
		AttemptNumber:     att.AttemptNumber,
		RemainingAttempts: max(model.MaxAttempts-att.AttemptNumber, 0),
		Submitted:         answered,
	}, nil
}

// expired reports whether the running attempt of a is past its deadline
// plus the submit grace.
func (s *Service) expired(a model.Assignment, durationMinutes int) bool {
	if a.StartedAt == nil {
		return false
	}
	return s.now().After(a.StartedAt.Add(time.Duration(durationMinutes)*time.Minute + s.grace))
}

// closeExpired records a timed-out attempt as an empty submission with score
// 0 and stops its clock, so the next fetch can start a fresh attempt. If a
// concurrent request already closed it, nothing is recorded.
func (s *Service) closeExpired(ctx context.Context, a model.Assignment, questions []model.Question) error {
	att, err := s.store.RecordSubmission(ctx, store.Submission{
		ExamID:    a.ExamID,
		StudentID: a.StudentID,
		Answers:   scoring.Normalize(questions, nil),
		Total:     len(questions),
		Expired:   true,
		Attempts:  a.Attempts,
	})
	if errors.Is(err, store.ErrAttemptRejected) {
		return nil
	}
	if err != nil {
		return internalErr("close expired attempt", err)
	}
	metrics.Submissions.WithLabelValues("expired").Inc()
	slog.Info("attempt expired", "exam_id", a.ExamID, "student_id", a.StudentID,
		"attempt_id", att.ID, "attempt", att.AttemptNumber)
	return nil
}

func checkSubmittable(a model.Assignment) error {
	switch {
	case !a.IsActive:
		return policyErr(MsgExamNotActive)
	case a.Attempts >= model.MaxAttempts:
		return policyErr(MsgMaxAttemptsReached)
	}
	return nil
}

func (s *Service) rejectSubmission(examID, studentID string, a model.Assignment, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		err = notFoundErr(MsgNotAssigned)
	} else if KindOf(err) == KindInternal {
		return internalErr("get assignment", err)
	}
	metrics.Submissions.WithLabelValues("rejected").Inc()
	slog.Info("submission rejected", "exam_id", examID, "student_id", studentID,
		"attempts", a.Attempts, "reason", MsgIDOf(err))
	return err
}

// Submissions lists submitted attempts of an owned exam.
func (s *Service) Submissions(ctx context.Context, examID, teacherID string) ([]model.AttemptView, error) {
	if _, err := s.ownedExam(ctx, examID, teacherID); err != nil {
		return nil, err
	}
	subs, err := s.store.ListSubmissions(ctx, examID)
	if err != nil {
		return nil, internalErr("list submissions", err)
	}
	return subs, nil
}

// ownedAttempt loads a submitted attempt of an exam owned by teacherID.
func (s *Service) ownedAttempt(ctx context.Context, attemptID, teacherID string) (model.Attempt, error) {
	a, err := s.store.GetAttempt(ctx, attemptID)
	if errors.Is(err, store.ErrNotFound) {
		return model.Attempt{}, notFoundErr(MsgSubmissionNotFound)
	}
	if err != nil {
		return model.Attempt{}, internalErr("get attempt", err)
	}
	if _, err := s.ownedExam(ctx, a.ExamID, teacherID); err != nil {
		if KindOf(err) == KindNotFound {
			return model.Attempt{}, notFoundErr(MsgSubmissionNotFound)
		}
		return model.Attempt{}, err
	}
	if a.Status == model.AttemptAssigned {
		return model.Attempt{}, policyErr(MsgNotSubmitted)
	}
	return a, nil
}

// Publish makes an attempt visible to its student, or hides it again when
// publish is false. A missing score is computed from the current questions.
func (s *Service) Publish(ctx context.Context, attemptID, teacherID string, publish bool) (model.Attempt, error) {
	a, err := s.ownedAttempt(ctx, attemptID, teacherID)
	if err != nil {
		return model.Attempt{}, err
	}

	action := "unpublish"
	if publish {
		action = "publish"
		if a.Score == nil {
			questions, err := s.store.ListQuestions(ctx, a.ExamID)
			if err != nil {
				return model.Attempt{}, internalErr("list questions", err)
			}
			score := scoring.Score(questions, a.Answers)
			a.Score = &score
			a.Total = len(questions)
		}
		a.ReviewedBy = teacherID
		a.Status = model.AttemptReviewed
	}
	a.IsPublished = publish

	if err := s.store.UpdateReview(ctx, a); err != nil {
		return model.Attempt{}, internalErr("update review", err)
	}
	metrics.Publications.WithLabelValues(action).Inc()
	slog.Info("attempt "+action+"ed", "exam_id", a.ExamID, "student_id", a.StudentID, "attempt_id", a.ID)
	s.invalidateLeaderboard(ctx)
	return a, nil
}

// OverrideScore sets a teacher-chosen score on a submitted attempt.
func (s *Service) OverrideScore(ctx context.Context, attemptID, teacherID string, score int) (model.Attempt, error) {
	a, err := s.ownedAttempt(ctx, attemptID, teacherID)
	if err != nil {
		return model.Attempt{}, err
	}
	if score < 0 || score > a.Total {
		return model.Attempt{}, validationErr(MsgScoreOutOfRange, "")
	}
	a.Score = &score
	a.ReviewedBy = teacherID
	if err := s.store.UpdateReview(ctx, a); err != nil {
		return model.Attempt{}, internalErr("update review", err)
	}
	slog.Info("score overridden", "exam_id", a.ExamID, "attempt_id", a.ID, "score", score)
	return a, nil
}

// StudentResults returns a student's published attempts, newest first.
func (s *Service) StudentResults(ctx context.Context, studentID string) ([]model.AttemptView, error) {
	res, err := s.store.ListPublishedAttempts(ctx, studentID)
	if err != nil {
		return nil, internalErr("list results", err)
	}
	return res, nil
}

// StudentExamResults returns the student's published attempts of one exam
// in attempt order.
func (s *Service) StudentExamResults(ctx context.Context, examID, studentID string) ([]model.Attempt, error) {
	if _, err := s.store.GetExamSummary(ctx, examID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, notFoundErr(MsgExamNotFound)
		}
		return nil, internalErr("get exam", err)
	}
	attempts, err := s.store.ListAttemptsForPair(ctx, examID, studentID)
	if err != nil {
		return nil, internalErr("list attempts", err)
	}
	published := []model.Attempt{}
	for _, a := range attempts {
		if a.IsPublished {
			published = append(published, a)
		}
	}
	if len(published) == 0 {
		return nil, notFoundErr(MsgResultsNotPublished)
	}
	return published, nil
}

// LookupStudent finds a student by public ID.
func (s *Service) LookupStudent(ctx context.Context, publicID string) (model.User, error) {
	return s.student(ctx, publicID)
}

// TopStudents ranks students by published attempts. Limits outside
// 1..MaxLeaderboardLimit fall back to the default or are capped.
func (s *Service) TopStudents(ctx context.Context, limit int) ([]model.LeaderboardEntry, error) {
	if limit <= 0 {
		limit = DefaultLeaderboardLimit
	}
	limit = min(limit, MaxLeaderboardLimit)

	if s.cache != nil {
		entries, ok, err := s.cache.Get(ctx, limit)
		if err != nil {
			slog.Warn("leaderboard cache read failed", "error", err)
		}
		if ok {
			metrics.LeaderboardCache.WithLabelValues("hit").Inc()
			return entries, nil
		}
		metrics.LeaderboardCache.WithLabelValues("miss").Inc()
	}

	entries, err := s.store.TopStudents(ctx, limit)
	if err != nil {
		return nil, internalErr("top students", err)
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, limit, entries); err != nil {
			slog.Warn("leaderboard cache write failed", "error", err)
		}
	}
	return entries, nil
}

func (s *Service) invalidateLeaderboard(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx); err != nil {
		slog.Warn("leaderboard cache invalidation failed", "error", err)
	}
}
