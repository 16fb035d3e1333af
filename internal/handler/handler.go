package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/pavelanni/examhall/internal/auth"
	"github.com/pavelanni/examhall/internal/exam"
	appI18n "github.com/pavelanni/examhall/internal/i18n"
	"github.com/pavelanni/examhall/internal/metrics"
	"github.com/pavelanni/examhall/internal/model"
	"github.com/pavelanni/examhall/internal/store"
)

const maxBodyBytes = 1 << 20

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	svc    *exam.Service
	store  *store.Store
	tokens *auth.Issuer
	config model.ExamConfig
}

// New creates a new Handler.
func New(svc *exam.Service, s *store.Store, tokens *auth.Issuer, cfg model.ExamConfig) (*Handler, error) {
	if svc == nil || s == nil || tokens == nil {
		return nil, errors.New("handler: service, store and token issuer are required")
	}
	cfg.BasePath = normalizeBasePath(cfg.BasePath)
	return &Handler{svc: svc, store: s, tokens: tokens, config: cfg}, nil
}

func normalizeBasePath(p string) string {
	p = strings.TrimRight(p, "/")
	if p != "" && !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return p
}

// Router returns the full HTTP handler: shared middleware plus all routes,
// mounted under the configured base path.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)
	if len(h.config.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   h.config.CORSOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Authorization", "Content-Type", "Accept-Language"},
			ExposedHeaders:   []string{"X-Request-Id"},
			AllowCredentials: false,
			MaxAge:           300,
		}))
	}
	r.Use(appI18n.Middleware)
	r.NotFound(h.handleNotFound)

	if h.config.BasePath != "" {
		r.Route(h.config.BasePath, h.Routes)
	} else {
		h.Routes(r)
	}
	return r
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/healthz", h.handleHealth)
	r.Handle("/metrics", metrics.Handler())
	r.Get("/top-students", h.handleTopStudents)

	r.Group(func(r chi.Router) {
		r.Use(h.requireAuth)

		r.Group(func(r chi.Router) {
			r.Use(requireRole(model.UserRoleTeacher))

			r.Post("/exams", h.handleCreateExam)
			r.Get("/exams", h.handleListExams)
			r.Route("/exams/{examID}", func(r chi.Router) {
				r.Get("/", h.handleGetExam)
				r.Put("/", h.handleUpdateExam)
				r.Delete("/", h.handleDeleteExam)

				r.Get("/questions", h.handleListQuestions)
				r.Post("/questions", h.handleAddQuestion)
				r.Post("/questions/generate", h.handleGenerateQuestions)
				r.Put("/questions/{questionID}", h.handleUpdateQuestion)
				r.Delete("/questions/{questionID}", h.handleDeleteQuestion)

				r.Post("/assign", h.handleAssign)
				r.Post("/deactivate", h.handleDeactivate)
				r.Get("/submissions", h.handleSubmissions)
			})
			r.Patch("/submissions/{attemptID}/publish", h.handlePublish)
			r.Patch("/submissions/{attemptID}/score", h.handleOverrideScore)
			r.Get("/students/{publicID}", h.handleLookupStudent)
		})

		r.Group(func(r chi.Router) {
			r.Use(requireRole(model.UserRoleStudent))

			r.Get("/student/exams", h.handleStudentExams)
			r.Get("/student/exam/{examID}", h.handleFetchExam)
			r.Post("/student/exam/{examID}/submit", h.handleSubmit)
			r.Get("/student/results", h.handleStudentResults)
			r.Get("/student/results/{examID}", h.handleStudentExamResults)
		})
	})
}

type messageBody struct {
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

func writeMessage(w http.ResponseWriter, r *http.Request, status int, msgID string) {
	writeJSON(w, status, messageBody{Message: appI18n.T(r.Context(), msgID)})
}

func statusFor(k exam.Kind) int {
	switch k {
	case exam.KindValidation:
		return http.StatusBadRequest
	case exam.KindAuthorization, exam.KindPolicy:
		return http.StatusForbidden
	case exam.KindNotFound:
		return http.StatusNotFound
	case exam.KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError maps a lifecycle error to its status and a localized message.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(exam.KindOf(err))
	if status >= http.StatusInternalServerError {
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path,
			"request_id", middleware.GetReqID(r.Context()), "error", err)
	} else {
		slog.Debug("request rejected", "method", r.Method, "path", r.URL.Path, "status", status, "error", err)
	}

	body := messageBody{Message: appI18n.T(r.Context(), exam.MsgIDOf(err))}
	var e *exam.Error
	if errors.As(err, &e) && e.Kind == exam.KindValidation {
		body.Detail = e.Detail
	}
	writeJSON(w, status, body)
}

// decodeJSON reads a JSON body into v. An empty body is an error unless
// optional is set.
func decodeJSON(r *http.Request, v any, optional bool) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if optional && errors.Is(err, io.EOF) {
			return nil
		}
		return &exam.Error{Kind: exam.KindValidation, MsgID: exam.MsgInvalidRequest, Detail: err.Error()}
	}
	return nil
}

func (h *Handler) handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeMessage(w, r, http.StatusNotFound, exam.MsgRouteNotFound)
}
