package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pavelanni/examhall/internal/exam"
	appI18n "github.com/pavelanni/examhall/internal/i18n"
	"github.com/pavelanni/examhall/internal/model"
)

// submitResponse adds a localized summary line to the graded result.
type submitResponse struct {
	model.SubmitResult
	Message string `json:"message"`
}

func (h *Handler) handleStudentExams(w http.ResponseWriter, r *http.Request) {
	views, err := h.svc.StudentExams(r.Context(), currentUser(r).ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, views)
}

// handleFetchExam returns the exam without answers. Unassigned students get
// an informational view with no attempts left rather than an error.
func (h *Handler) handleFetchExam(w http.ResponseWriter, r *http.Request) {
	view, err := h.svc.FetchForStudent(r.Context(), chi.URLParam(r, "examID"), currentUser(r).ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var in exam.SubmitInput
	if err := decodeJSON(r, &in, false); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.svc.Submit(r.Context(), chi.URLParam(r, "examID"), currentUser(r).ID, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	ctx := r.Context()
	msg := appI18n.Td(ctx, "ScoreOf", map[string]any{"Score": res.Score, "Total": res.Total}) +
		" " + appI18n.Tp(ctx, "AttemptsRemaining", res.RemainingAttempts)
	writeJSON(w, http.StatusOK, submitResponse{SubmitResult: res, Message: msg})
}

func (h *Handler) handleStudentResults(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.StudentResults(r.Context(), currentUser(r).ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleStudentExamResults returns the published attempts of one exam, or
// 404 while none are published.
func (h *Handler) handleStudentExamResults(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.StudentExamResults(r.Context(), chi.URLParam(r, "examID"), currentUser(r).ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
