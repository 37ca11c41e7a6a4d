// Package api exposes the planner over JSON HTTP. Callers are identified by
// the X-User-ID header set by the account gateway in front of the service.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/p-n-ai/pai-planner/internal/assessment"
	"github.com/p-n-ai/pai-planner/internal/course"
	"github.com/p-n-ai/pai-planner/internal/guidance"
	"github.com/p-n-ai/pai-planner/internal/insight"
	"github.com/p-n-ai/pai-planner/internal/plan"
	"github.com/p-n-ai/pai-planner/internal/platform/metrics"
	"github.com/p-n-ai/pai-planner/internal/progress"
)

// UserHeader carries the caller's identity.
const UserHeader = "X-User-ID"

const maxBodyBytes = 1 << 20

// HealthChecker is a dependency probed by /readyz.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Deps are the components the server routes to.
type Deps struct {
	Courses     course.Store
	Plans       plan.Store
	Synthesizer *plan.Synthesizer
	Tracker     *progress.Tracker
	Evaluator   *assessment.Evaluator
	Documents   insight.Store
	Annotator   *insight.Generator
	Guidance    *guidance.Builder
	// Checks are probed by /readyz, keyed by name.
	Checks map[string]HealthChecker
}

// Server routes HTTP requests to the planner components.
type Server struct {
	Deps
}

func New(d Deps) *Server {
	if d.Guidance == nil {
		d.Guidance = guidance.NewBuilder(nil)
	}
	return &Server{Deps: d}
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealthz)
	mux.HandleFunc("GET /readyz", s.handleReadyz)
	mux.Handle("GET /metrics", metrics.Handler())

	mux.HandleFunc("POST /courses", s.withUser(s.handleCreateCourse))
	mux.HandleFunc("GET /courses/{id}", s.withUser(s.handleGetCourse))
	mux.HandleFunc("POST /courses/{id}/plan", s.withUser(s.handleRegenerate))
	mux.HandleFunc("GET /courses/{id}/weeks", s.withUser(s.handleListWeeks))
	mux.HandleFunc("GET /courses/{id}/weeks/{week}", s.withUser(s.handleGetWeek))
	mux.HandleFunc("GET /courses/{id}/weeks/{week}/topics/{topic}", s.withUser(s.handleTopic))
	mux.HandleFunc("GET /courses/{id}/weeks/{week}/test", s.withUser(s.handleGetTest))
	mux.HandleFunc("POST /courses/{id}/weeks/{week}/test", s.withUser(s.handleSubmitTest))
	mux.HandleFunc("GET /courses/{id}/weeks/{week}/progress", s.withUser(s.handleWeekProgress))
	mux.HandleFunc("GET /courses/{id}/export.xlsx", s.withUser(s.handleExport))
	mux.HandleFunc("POST /progress/toggle", s.withUser(s.handleToggle))
	mux.HandleFunc("POST /documents/{id}/annotate", s.withUser(s.handleAnnotate))
	return mux
}

type userHandler func(w http.ResponseWriter, r *http.Request, userID string)

func (s *Server) withUser(h userHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := r.Header.Get(UserHeader)
		if user == "" {
			writeMessage(w, http.StatusUnauthorized, "missing "+UserHeader+" header")
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		h(w, r, user)
	}
}

func handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	failed := map[string]string{}
	for name, c := range s.Checks {
		if err := c.HealthCheck(ctx); err != nil {
			slog.Warn("readiness check failed", "check", name, "error", err)
			failed[name] = err.Error()
		}
	}
	if len(failed) > 0 {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "unavailable", "failed": failed})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("write response failed", "error", err)
	}
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"success": false, "message": msg})
}

// writeError maps domain errors onto status codes.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		verr *plan.ValidationError
		perr *plan.PersistenceError
	)
	switch {
	case errors.Is(err, plan.ErrNotFound), errors.Is(err, course.ErrNotFound), errors.Is(err, insight.ErrNotFound):
		writeMessage(w, http.StatusNotFound, err.Error())
	case errors.As(err, &verr):
		writeMessage(w, http.StatusBadRequest, verr.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeMessage(w, http.StatusServiceUnavailable, "request cancelled")
	case errors.As(err, &perr):
		slog.Error("persistence failure", "path", r.URL.Path, "op", perr.Op, "week", perr.Week, "error", perr.Err)
		writeMessage(w, http.StatusInternalServerError, "storage unavailable, please retry")
	default:
		slog.Error("request failed", "path", r.URL.Path, "error", err)
		writeMessage(w, http.StatusInternalServerError, "internal error")
	}
}
