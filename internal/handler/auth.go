package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/pavelanni/examhall/internal/exam"
	"github.com/pavelanni/examhall/internal/model"
	"github.com/pavelanni/examhall/internal/store"
)

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// requireAuth is middleware that checks for a valid bearer token and loads
// the user it names.
func (h *Handler) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			writeMessage(w, r, http.StatusUnauthorized, exam.MsgUnauthorized)
			return
		}
		id, err := h.tokens.Verify(token)
		if err != nil {
			slog.Debug("rejected bearer token", "error", err)
			writeMessage(w, r, http.StatusUnauthorized, exam.MsgUnauthorized)
			return
		}

		user, err := h.store.GetUserByID(r.Context(), id.ID)
		if errors.Is(err, store.ErrNotFound) || (err == nil && user.Role != id.Role) {
			writeMessage(w, r, http.StatusUnauthorized, exam.MsgUnauthorized)
			return
		}
		if err != nil {
			slog.Error("failed to load token user", "user_id", id.ID, "error", err)
			writeMessage(w, r, http.StatusInternalServerError, exam.MsgInternalError)
			return
		}

		ctx := model.ContextWithUser(r.Context(), &user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireRole returns middleware that checks the user has one of the allowed roles.
func requireRole(allowed ...model.UserRole) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := model.UserFromContext(r.Context())
			if user == nil {
				writeMessage(w, r, http.StatusUnauthorized, exam.MsgUnauthorized)
				return
			}
			for _, role := range allowed {
				if user.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			writeMessage(w, r, http.StatusForbidden, exam.MsgForbidden)
		})
	}
}

// currentUser returns the authenticated user. Routes behind requireAuth
// always have one.
func currentUser(r *http.Request) *model.User {
	return model.UserFromContext(r.Context())
}
