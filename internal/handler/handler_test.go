package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/pavelanni/examhall/internal/auth"
	"github.com/pavelanni/examhall/internal/exam"
	appI18n "github.com/pavelanni/examhall/internal/i18n"
	"github.com/pavelanni/examhall/internal/model"
	"github.com/pavelanni/examhall/internal/store"
)

type testEnv struct {
	router  http.Handler
	store   *store.Store
	teacher model.User
	other   model.User
	student model.User
	tokens  map[string]string
}

func newTestEnv(t *testing.T, cfg model.ExamConfig) *testEnv {
	t.Helper()
	if err := appI18n.Init("en"); err != nil {
		t.Fatalf("i18n.Init: %v", err)
	}
	st, err := store.New(store.DriverSQLite, ":memory:")
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	issuer, err := auth.NewIssuer("handler-test-secret-0123", "examhall-test", time.Hour)
	if err != nil {
		t.Fatalf("NewIssuer: %v", err)
	}
	h, err := New(exam.NewService(st), st, issuer, cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	env := &testEnv{router: h.Router(), store: st, tokens: map[string]string{}}
	mk := func(name string, role model.UserRole) model.User {
		u, err := st.CreateUser(context.Background(), model.User{
			Name: name, Email: name + "@example.com", PasswordHash: "x", Role: role, ClassName: "10A",
		})
		if err != nil {
			t.Fatalf("CreateUser(%s): %v", name, err)
		}
		tok, err := issuer.Issue(u)
		if err != nil {
			t.Fatalf("Issue(%s): %v", name, err)
		}
		env.tokens[name] = tok
		return u
	}
	env.teacher = mk("teacher", model.UserRoleTeacher)
	env.other = mk("other", model.UserRoleTeacher)
	env.student = mk("student", model.UserRoleStudent)
	return env
}

// do sends a request as the named user ("" for anonymous).
func (env *testEnv) do(t *testing.T, method, path, as string, body any, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if as != "" {
		req.Header.Set("Authorization", "Bearer "+env.tokens[as])
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("status = %d, want %d; body: %s", rec.Code, want, rec.Body.String())
	}
}

// createExam creates an exam as teacher with one question per correct index.
func (env *testEnv) createExam(t *testing.T, correct ...int) (model.Exam, []model.Question) {
	t.Helper()
	rec := env.do(t, "POST", "/exams", "teacher", map[string]any{
		"name": "Fractions", "className": "10A", "topic": "math", "date": "2026-05-01", "durationMinutes": 30,
	})
	expectStatus(t, rec, http.StatusCreated)
	e := decodeBody[model.Exam](t, rec)

	var qs []model.Question
	for _, c := range correct {
		rec := env.do(t, "POST", "/exams/"+e.ID+"/questions", "teacher", map[string]any{
			"text": "question", "options": []string{"a", "b", "c", "d"}, "correctOption": string(rune('A' + c)),
		})
		expectStatus(t, rec, http.StatusCreated)
		qs = append(qs, decodeBody[model.Question](t, rec))
	}
	return e, qs
}

func TestHealthAndMetrics(t *testing.T) {
	env := newTestEnv(t, model.ExamConfig{})

	rec := env.do(t, "GET", "/healthz", "", nil)
	expectStatus(t, rec, http.StatusOK)
	body := decodeBody[map[string]any](t, rec)
	if body["status"] != "ok" || body["drafting"] != false || body["app"] != "Exam Hall" {
		t.Errorf("unexpected health body: %v", body)
	}
	if langs, _ := body["languages"].([]any); len(langs) != 2 {
		t.Errorf("languages = %v, want en and ru", body["languages"])
	}
	rec = env.do(t, "GET", "/healthz", "", nil, "Accept-Language", "ru")
	if body := decodeBody[map[string]any](t, rec); body["app"] != "Экзаменационный зал" {
		t.Errorf("localized app title = %v", body["app"])
	}

	rec = env.do(t, "GET", "/metrics", "", nil)
	expectStatus(t, rec, http.StatusOK)
	if !strings.Contains(rec.Body.String(), "examhall_http_requests_total") {
		t.Error("metrics output should include the request counter")
	}
}

func TestAuthorization(t *testing.T) {
	env := newTestEnv(t, model.ExamConfig{})
	env.tokens["forged"] = "not.a.jwt"

	tests := []struct {
		name   string
		method string
		path   string
		as     string
		want   int
	}{
		{"anonymous", "GET", "/exams", "", http.StatusUnauthorized},
		{"forged token", "GET", "/exams", "forged", http.StatusUnauthorized},
		{"student on teacher route", "GET", "/exams", "student", http.StatusForbidden},
		{"teacher on student route", "GET", "/student/exams", "teacher", http.StatusForbidden},
		{"teacher lists exams", "GET", "/exams", "teacher", http.StatusOK},
		{"student lists exams", "GET", "/student/exams", "student", http.StatusOK},
		{"leaderboard is public", "GET", "/top-students", "", http.StatusOK},
		{"leaderboard ignores role", "GET", "/top-students", "teacher", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expectStatus(t, env.do(t, tt.method, tt.path, tt.as, nil), tt.want)
		})
	}

	rec := env.do(t, "GET", "/exams", "", nil)
	if msg := decodeBody[messageBody](t, rec).Message; msg != "Authentication required." {
		t.Errorf("message = %q", msg)
	}
}

func TestExamRoundTrip(t *testing.T) {
	env := newTestEnv(t, model.ExamConfig{})
	e, qs := env.createExam(t, 0, 1, 2, 3)

	rec := env.do(t, "POST", "/exams/"+e.ID+"/assign", "teacher", studentRef{StudentPublicID: env.student.PublicID})
	expectStatus(t, rec, http.StatusOK)
	if a := decodeBody[model.Assignment](t, rec); !a.IsActive || a.Attempts != 0 {
		t.Errorf("unexpected assignment: %+v", a)
	}

	rec = env.do(t, "GET", "/student/exam/"+e.ID, "student", nil)
	expectStatus(t, rec, http.StatusOK)
	if strings.Contains(rec.Body.String(), "correctOptionIndex") {
		t.Error("student view must not include correct answers")
	}
	view := decodeBody[model.StudentExamView](t, rec)
	if len(view.Questions) != 4 || view.RemainingAttempts != 3 || !view.IsActive {
		t.Errorf("unexpected view: %+v", view)
	}

	answers := map[string]int{qs[0].ID: 0, qs[1].ID: 1, qs[2].ID: 0, qs[3].ID: 3}
	rec = env.do(t, "POST", "/student/exam/"+e.ID+"/submit", "student", map[string]any{"answers": answers})
	expectStatus(t, rec, http.StatusOK)
	sr := decodeBody[submitResponse](t, rec)
	res := sr.SubmitResult
	if res.Score != 3 || res.Total != 4 || res.AttemptNumber != 1 || res.RemainingAttempts != 2 {
		t.Errorf("unexpected submit result: %+v", res)
	}
	if sr.Message != "Score: 3 of 4. 2 attempts remaining." {
		t.Errorf("message = %q", sr.Message)
	}

	rec = env.do(t, "GET", "/student/results/"+e.ID, "student", nil)
	expectStatus(t, rec, http.StatusNotFound)
	if msg := decodeBody[messageBody](t, rec).Message; msg != "No results have been published for this exam yet." {
		t.Errorf("message = %q", msg)
	}

	rec = env.do(t, "GET", "/student/results", "student", nil)
	expectStatus(t, rec, http.StatusOK)
	if got := decodeBody[[]model.AttemptView](t, rec); len(got) != 0 {
		t.Fatalf("unpublished attempts must stay hidden, got %d", len(got))
	}

	rec = env.do(t, "GET", "/exams/"+e.ID+"/submissions", "teacher", nil)
	expectStatus(t, rec, http.StatusOK)
	subs := decodeBody[[]model.AttemptView](t, rec)
	if len(subs) != 1 || subs[0].ID != res.AttemptID {
		t.Fatalf("unexpected submissions: %+v", subs)
	}

	expectStatus(t, env.do(t, "PATCH", "/submissions/"+res.AttemptID+"/publish", "other", nil), http.StatusForbidden)

	rec = env.do(t, "PATCH", "/submissions/"+res.AttemptID+"/publish", "teacher", nil)
	expectStatus(t, rec, http.StatusOK)
	if a := decodeBody[model.Attempt](t, rec); !a.IsPublished || a.Status != model.AttemptReviewed {
		t.Errorf("unexpected published attempt: %+v", a)
	}

	rec = env.do(t, "GET", "/student/results", "student", nil)
	results := decodeBody[[]model.AttemptView](t, rec)
	if len(results) != 1 || results[0].Score == nil || *results[0].Score != 3 || results[0].Total != 4 {
		t.Fatalf("unexpected results: %+v", results)
	}

	rec = env.do(t, "GET", "/student/results/"+e.ID, "student", nil)
	expectStatus(t, rec, http.StatusOK)
	if got := decodeBody[[]model.Attempt](t, rec); len(got) != 1 || got[0].ID != res.AttemptID {
		t.Errorf("unexpected exam results: %+v", got)
	}
	expectStatus(t, env.do(t, "GET", "/student/results/"+e.ID, "teacher", nil), http.StatusForbidden)

	rec = env.do(t, "GET", "/top-students?limit=5", "", nil)
	expectStatus(t, rec, http.StatusOK)
	top := decodeBody[[]model.LeaderboardEntry](t, rec)
	if len(top) != 1 || top[0].Name != "student" || top[0].ExamsCompleted != 1 {
		t.Errorf("unexpected leaderboard: %+v", top)
	}

	rec = env.do(t, "PATCH", "/submissions/"+res.AttemptID+"/publish", "teacher", map[string]any{"publish": false})
	expectStatus(t, rec, http.StatusOK)
	if a := decodeBody[model.Attempt](t, rec); a.IsPublished {
		t.Error("attempt should be unpublished")
	}
}

func TestMaxAttemptsOverHTTP(t *testing.T) {
	env := newTestEnv(t, model.ExamConfig{})
	e, _ := env.createExam(t, 0)
	expectStatus(t, env.do(t, "POST", "/exams/"+e.ID+"/assign", "teacher", studentRef{env.student.PublicID}), http.StatusOK)

	path := "/student/exam/" + e.ID + "/submit"
	for i := 0; i < model.MaxAttempts; i++ {
		expectStatus(t, env.do(t, "POST", path, "student", map[string]any{"answers": map[string]int{}}), http.StatusOK)
	}
	rec := env.do(t, "POST", path, "student", map[string]any{"answers": map[string]int{}})
	expectStatus(t, rec, http.StatusForbidden)
	if msg := decodeBody[messageBody](t, rec).Message; msg != "You have used all attempts for this exam." {
		t.Errorf("message = %q", msg)
	}

	rec = env.do(t, "POST", path, "student", map[string]any{"answers": map[string]int{}}, "Accept-Language", "ru")
	if msg := decodeBody[messageBody](t, rec).Message; msg != "Вы использовали все попытки для этого экзамена." {
		t.Errorf("localized message = %q", msg)
	}

	rec = env.do(t, "GET", "/student/exam/"+e.ID, "student", nil)
	expectStatus(t, rec, http.StatusOK)
	if v := decodeBody[model.StudentExamView](t, rec); v.RemainingAttempts != 0 || v.AttemptCount != model.MaxAttempts {
		t.Errorf("unexpected view: %+v", v)
	}
}

func TestNullAnswerOverHTTP(t *testing.T) {
	env := newTestEnv(t, model.ExamConfig{})
	e, qs := env.createExam(t, 0, 0)
	expectStatus(t, env.do(t, "POST", "/exams/"+e.ID+"/assign", "teacher", studentRef{env.student.PublicID}), http.StatusOK)

	rec := env.do(t, "POST", "/student/exam/"+e.ID+"/submit", "student", map[string]any{
		"answers": map[string]any{qs[0].ID: nil, qs[1].ID: 0},
	})
	expectStatus(t, rec, http.StatusOK)
	res := decodeBody[submitResponse](t, rec)
	if res.Score != 1 || !res.Submitted {
		t.Errorf("null answer must count as unanswered: %+v", res)
	}

	rec = env.do(t, "GET", "/exams/"+e.ID+"/submissions", "teacher", nil)
	subs := decodeBody[[]model.AttemptView](t, rec)
	if len(subs) != 1 || subs[0].Answers[qs[0].ID] != model.Unanswered {
		t.Errorf("unexpected stored answers: %+v", subs)
	}
}

func TestErrorMapping(t *testing.T) {
	env := newTestEnv(t, model.ExamConfig{})
	e, qs := env.createExam(t, 2)

	tests := []struct {
		name   string
		method string
		path   string
		as     string
		body   any
		want   int
	}{
		{"missing exam fields", "POST", "/exams", "teacher", map[string]any{"name": "x"}, http.StatusBadRequest},
		{"malformed json", "POST", "/exams", "teacher", "not an object", http.StatusBadRequest},
		{"unknown exam", "GET", "/exams/nope", "teacher", nil, http.StatusNotFound},
		{"foreign exam update", "PUT", "/exams/" + e.ID, "other", map[string]any{"name": "mine"}, http.StatusForbidden},
		{"foreign exam delete", "DELETE", "/exams/" + e.ID, "other", nil, http.StatusForbidden},
		{"three options", "POST", "/exams/" + e.ID + "/questions", "teacher",
			map[string]any{"text": "q", "options": []string{"a", "b", "c"}, "correctOptionIndex": 0}, http.StatusBadRequest},
		{"unknown question", "PUT", "/exams/" + e.ID + "/questions/nope", "teacher", map[string]any{"text": "q"}, http.StatusNotFound},
		{"unknown student", "POST", "/exams/" + e.ID + "/assign", "teacher", studentRef{"STD000000"}, http.StatusNotFound},
		{"submit unassigned", "POST", "/student/exam/" + e.ID + "/submit", "student",
			map[string]any{"answers": map[string]int{qs[0].ID: 2}}, http.StatusNotFound},
		{"submit without answers", "POST", "/student/exam/" + e.ID + "/submit", "student", map[string]any{}, http.StatusBadRequest},
		{"unknown submission", "PATCH", "/submissions/nope/publish", "teacher", nil, http.StatusNotFound},
		{"score without value", "PATCH", "/submissions/nope/score", "teacher", map[string]any{}, http.StatusBadRequest},
		{"generate without drafter", "POST", "/exams/" + e.ID + "/questions/generate", "teacher",
			map[string]any{"count": 2}, http.StatusServiceUnavailable},
		{"bad leaderboard limit", "GET", "/top-students?limit=ten", "teacher", nil, http.StatusBadRequest},
		{"unknown route", "GET", "/nowhere", "", nil, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, tt.method, tt.path, tt.as, tt.body)
			expectStatus(t, rec, tt.want)
			if msg := decodeBody[messageBody](t, rec).Message; msg == "" {
				t.Error("error responses carry a message")
			}
		})
	}
}

func TestUnassignedFetchIsInformational(t *testing.T) {
	env := newTestEnv(t, model.ExamConfig{})
	e, _ := env.createExam(t, 0, 1)

	rec := env.do(t, "GET", "/student/exam/"+e.ID, "student", nil)
	expectStatus(t, rec, http.StatusOK)
	v := decodeBody[model.StudentExamView](t, rec)
	if v.RemainingAttempts != 0 || v.IsActive || len(v.Questions) != 0 {
		t.Errorf("unexpected view for unassigned student: %+v", v)
	}
}

func TestQuestionAndExamEdits(t *testing.T) {
	env := newTestEnv(t, model.ExamConfig{})
	e, qs := env.createExam(t, 0, 1)

	rec := env.do(t, "PUT", "/exams/"+e.ID, "teacher", map[string]any{"topic": "algebra"})
	expectStatus(t, rec, http.StatusOK)
	if got := decodeBody[model.Exam](t, rec); got.Topic != "algebra" || got.Name != "Fractions" {
		t.Errorf("partial update should merge fields: %+v", got)
	}

	rec = env.do(t, "PUT", "/exams/"+e.ID+"/questions/"+qs[1].ID, "teacher", map[string]any{"correctOption": "D"})
	expectStatus(t, rec, http.StatusOK)
	if got := decodeBody[model.Question](t, rec); got.CorrectOptionIndex != 3 || got.ID != qs[1].ID {
		t.Errorf("unexpected question: %+v", got)
	}

	expectStatus(t, env.do(t, "DELETE", "/exams/"+e.ID+"/questions/"+qs[0].ID, "teacher", nil), http.StatusOK)
	rec = env.do(t, "GET", "/exams/"+e.ID+"/questions", "teacher", nil)
	if got := decodeBody[[]model.Question](t, rec); len(got) != 1 || got[0].ID != qs[1].ID {
		t.Errorf("remaining questions keep their IDs: %+v", got)
	}

	rec = env.do(t, "GET", "/students/"+env.student.PublicID, "teacher", nil)
	expectStatus(t, rec, http.StatusOK)
	if strings.Contains(rec.Body.String(), "password") {
		t.Error("student lookup must not expose the password hash")
	}

	expectStatus(t, env.do(t, "DELETE", "/exams/"+e.ID, "teacher", nil), http.StatusOK)
	expectStatus(t, env.do(t, "GET", "/exams/"+e.ID, "teacher", nil), http.StatusNotFound)
}

func TestBasePath(t *testing.T) {
	env := newTestEnv(t, model.ExamConfig{BasePath: "exam/"})

	expectStatus(t, env.do(t, "GET", "/exam/healthz", "", nil), http.StatusOK)
	expectStatus(t, env.do(t, "GET", "/healthz", "", nil), http.StatusNotFound)
	expectStatus(t, env.do(t, "GET", "/exam/exams", "teacher", nil), http.StatusOK)
}

func TestCORS(t *testing.T) {
	env := newTestEnv(t, model.ExamConfig{CORSOrigins: []string{"https://school.example"}})

	req := httptest.NewRequest("OPTIONS", "/exams", nil)
	req.Header.Set("Origin", "https://school.example")
	req.Header.Set("Access-Control-Request-Method", "POST")
	req.Header.Set("Access-Control-Request-Headers", "Authorization")
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://school.example" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}
}

func TestNewRequiresDependencies(t *testing.T) {
	if _, err := New(nil, nil, nil, model.ExamConfig{}); err == nil {
		t.Error("expected error for missing dependencies")
	}
}
