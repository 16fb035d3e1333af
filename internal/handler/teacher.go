package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pavelanni/examhall/internal/exam"
	appI18n "github.com/pavelanni/examhall/internal/i18n"
)

const (
	msgExamDeleted      = "ExamDeleted"
	msgQuestionDeleted  = "QuestionDeleted"
	msgQuestionsDrafted = "QuestionsDrafted"
)

type studentRef struct {
	StudentPublicID string `json:"studentPublicId"`
}

type publishRequest struct {
	Publish *bool `json:"publish"`
}

type scoreRequest struct {
	Score *int `json:"score"`
}

func (h *Handler) handleCreateExam(w http.ResponseWriter, r *http.Request) {
	var in exam.ExamInput
	if err := decodeJSON(r, &in, false); err != nil {
		writeError(w, r, err)
		return
	}
	e, err := h.svc.CreateExam(r.Context(), currentUser(r).ID, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

func (h *Handler) handleListExams(w http.ResponseWriter, r *http.Request) {
	exams, err := h.svc.ListExams(r.Context(), currentUser(r).ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, exams)
}

func (h *Handler) handleGetExam(w http.ResponseWriter, r *http.Request) {
	e, err := h.svc.GetExam(r.Context(), chi.URLParam(r, "examID"), currentUser(r).ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (h *Handler) handleUpdateExam(w http.ResponseWriter, r *http.Request) {
	var p exam.ExamPatch
	if err := decodeJSON(r, &p, false); err != nil {
		writeError(w, r, err)
		return
	}
	e, err := h.svc.UpdateExam(r.Context(), chi.URLParam(r, "examID"), currentUser(r).ID, p)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (h *Handler) handleDeleteExam(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteExam(r.Context(), chi.URLParam(r, "examID"), currentUser(r).ID); err != nil {
		writeError(w, r, err)
		return
	}
	writeMessage(w, r, http.StatusOK, msgExamDeleted)
}

func (h *Handler) handleListQuestions(w http.ResponseWriter, r *http.Request) {
	qs, err := h.svc.ListQuestions(r.Context(), chi.URLParam(r, "examID"), currentUser(r).ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, qs)
}

func (h *Handler) handleAddQuestion(w http.ResponseWriter, r *http.Request) {
	var in exam.QuestionInput
	if err := decodeJSON(r, &in, false); err != nil {
		writeError(w, r, err)
		return
	}
	q, err := h.svc.AddQuestion(r.Context(), chi.URLParam(r, "examID"), currentUser(r).ID, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, q)
}

func (h *Handler) handleUpdateQuestion(w http.ResponseWriter, r *http.Request) {
	var p exam.QuestionPatch
	if err := decodeJSON(r, &p, false); err != nil {
		writeError(w, r, err)
		return
	}
	q, err := h.svc.UpdateQuestion(r.Context(), chi.URLParam(r, "examID"), chi.URLParam(r, "questionID"), currentUser(r).ID, p)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

func (h *Handler) handleDeleteQuestion(w http.ResponseWriter, r *http.Request) {
	err := h.svc.DeleteQuestion(r.Context(), chi.URLParam(r, "examID"), chi.URLParam(r, "questionID"), currentUser(r).ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeMessage(w, r, http.StatusOK, msgQuestionDeleted)
}

func (h *Handler) handleGenerateQuestions(w http.ResponseWriter, r *http.Request) {
	var in exam.GenerateInput
	if err := decodeJSON(r, &in, false); err != nil {
		writeError(w, r, err)
		return
	}
	qs, err := h.svc.GenerateQuestions(r.Context(), chi.URLParam(r, "examID"), currentUser(r).ID, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"message":   appI18n.Tp(r.Context(), msgQuestionsDrafted, len(qs)),
		"questions": qs,
	})
}

func (h *Handler) handleAssign(w http.ResponseWriter, r *http.Request) {
	var ref studentRef
	if err := decodeJSON(r, &ref, false); err != nil {
		writeError(w, r, err)
		return
	}
	a, err := h.svc.Assign(r.Context(), chi.URLParam(r, "examID"), currentUser(r).ID, ref.StudentPublicID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *Handler) handleDeactivate(w http.ResponseWriter, r *http.Request) {
	var ref studentRef
	if err := decodeJSON(r, &ref, false); err != nil {
		writeError(w, r, err)
		return
	}
	a, err := h.svc.Deactivate(r.Context(), chi.URLParam(r, "examID"), currentUser(r).ID, ref.StudentPublicID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *Handler) handleSubmissions(w http.ResponseWriter, r *http.Request) {
	subs, err := h.svc.Submissions(r.Context(), chi.URLParam(r, "examID"), currentUser(r).ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, subs)
}

// handlePublish publishes by default; {"publish": false} hides the attempt again.
func (h *Handler) handlePublish(w http.ResponseWriter, r *http.Request) {
	var req publishRequest
	if err := decodeJSON(r, &req, true); err != nil {
		writeError(w, r, err)
		return
	}
	publish := req.Publish == nil || *req.Publish
	a, err := h.svc.Publish(r.Context(), chi.URLParam(r, "attemptID"), currentUser(r).ID, publish)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *Handler) handleOverrideScore(w http.ResponseWriter, r *http.Request) {
	var req scoreRequest
	if err := decodeJSON(r, &req, false); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Score == nil {
		writeError(w, r, &exam.Error{Kind: exam.KindValidation, MsgID: exam.MsgScoreOutOfRange, Detail: "Score:required"})
		return
	}
	a, err := h.svc.OverrideScore(r.Context(), chi.URLParam(r, "attemptID"), currentUser(r).ID, *req.Score)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}
