package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pavelanni/examhall/internal/exam"
	appI18n "github.com/pavelanni/examhall/internal/i18n"
)

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := h.store.Ping(ctx); err != nil {
		slog.Error("health check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"app":       appI18n.T(r.Context(), "AppTitle"),
		"languages": appI18n.Languages(),
		"drafting":  h.svc.CanDraft(),
	})
}

func (h *Handler) handleLookupStudent(w http.ResponseWriter, r *http.Request) {
	u, err := h.svc.LookupStudent(r.Context(), chi.URLParam(r, "publicID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (h *Handler) handleTopStudents(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			writeError(w, r, &exam.Error{Kind: exam.KindValidation, MsgID: exam.MsgInvalidRequest, Detail: "limit:numeric"})
			return
		}
		limit = n
	}
	entries, err := h.svc.TopStudents(r.Context(), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}
