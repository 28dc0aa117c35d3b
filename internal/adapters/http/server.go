// Package http exposes sessions over a JSON HTTP API.
package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/aretw0/caseconf/internal/logging"
	"github.com/aretw0/caseconf/pkg/domain"
	"github.com/aretw0/caseconf/pkg/graph"
	"github.com/aretw0/caseconf/pkg/observability"
	"github.com/aretw0/caseconf/pkg/session"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Server serves the sessions of one Manager.
type Server struct {
	manager *session.Manager
	logger  *slog.Logger
	metrics http.Handler
	version string
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithMetrics mounts h on GET /metrics, typically promhttp.Handler().
func WithMetrics(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

// WithVersion sets the version reported by GET /info.
func WithVersion(v string) Option {
	return func(s *Server) {
		s.version = v
	}
}

// NewHandler creates the HTTP handler for mgr.
func NewHandler(mgr *session.Manager, opts ...Option) http.Handler {
	s := &Server{manager: mgr, logger: logging.NewNop(), version: "dev"}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", s.health)
	r.Get("/info", s.info)
	r.Get("/graph", s.graph)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}

	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", s.openSession)
		r.Get("/", s.listSessions)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.describeSession)
			r.Delete("/", s.closeSession)
			r.Get("/events", s.events)
			r.Put("/variables/{key}", s.setValue)
			r.Delete("/variables/{key}", s.unsetValue)
			r.Get("/variables/{key}/explain", s.explain)
			r.Post("/advance", s.advance)
			r.Post("/stages/{index}/reset", s.resetStage)
			r.Post("/export", s.export)
		})
	})
	r.Get("/snapshots/{id}", s.snapshot)
	return r
}

// -- Meta --

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) info(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"app":       "caseconf-http",
		"version":   s.version,
		"blueprint": s.manager.Blueprint().Name(),
	})
}

// graph renders the constraint graph as Mermaid, with the state of ?session= overlaid.
func (s *Server) graph(w http.ResponseWriter, r *http.Request) {
	var overlay *graph.Overlay
	if id := r.URL.Query().Get("session"); id != "" {
		err := s.manager.View(r.Context(), id, func(sess *session.Session) error {
			overlay = sess.Overlay()
			return nil
		})
		if err != nil {
			s.writeError(w, err)
			return
		}
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(s.manager.Blueprint().Graph().Mermaid(overlay)))
}

// -- Sessions --

type openRequest struct {
	ID string `json:"id"`
}

func (s *Server) openSession(w http.ResponseWriter, r *http.Request) {
	var body openRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
	}
	id, err := s.manager.Open(r.Context(), body.ID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.respondView(w, r, id, http.StatusCreated)
}

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string][]string{"sessions": s.manager.List()})
}

func (s *Server) describeSession(w http.ResponseWriter, r *http.Request) {
	s.respondView(w, r, chi.URLParam(r, "id"), http.StatusOK)
}

func (s *Server) respondView(w http.ResponseWriter, r *http.Request, id string, status int) {
	var view session.View
	err := s.manager.View(r.Context(), id, func(sess *session.Session) error {
		var err error
		view, err = sess.Describe()
		return err
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, status, view)
}

func (s *Server) closeSession(w http.ResponseWriter, r *http.Request) {
	if err := s.manager.Close(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// -- Mutations --

type setRequest struct {
	Value string `json:"value"`
}

func (s *Server) setValue(w http.ResponseWriter, r *http.Request) {
	var body setRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	key := chi.URLParam(r, "key")
	s.mutate(w, r, func(sess *session.Session) (domain.Batch, error) {
		return sess.SetValue(key, domain.Value(body.Value))
	})
}

func (s *Server) unsetValue(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	s.mutate(w, r, func(sess *session.Session) (domain.Batch, error) {
		return sess.Unset(key)
	})
}

func (s *Server) advance(w http.ResponseWriter, r *http.Request) {
	s.mutate(w, r, (*session.Session).Advance)
}

func (s *Server) resetStage(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		http.Error(w, "Invalid stage index", http.StatusBadRequest)
		return
	}
	s.mutate(w, r, func(sess *session.Session) (domain.Batch, error) {
		return sess.ResetStage(index)
	})
}

func (s *Server) mutate(w http.ResponseWriter, r *http.Request, fn func(*session.Session) (domain.Batch, error)) {
	var batch domain.Batch
	err := s.manager.Update(r.Context(), chi.URLParam(r, "id"), func(sess *session.Session) error {
		var err error
		batch, err = fn(sess)
		return err
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, batch)
}

// -- Queries --

type explainResponse struct {
	Key     string       `json:"key"`
	Value   domain.Value `json:"value"`
	Legal   bool         `json:"legal"`
	Reasons []string     `json:"reasons"`
}

func (s *Server) explain(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	value := domain.Value(r.URL.Query().Get("value"))
	resp := explainResponse{Key: key, Value: value, Reasons: []string{}}

	err := s.manager.View(r.Context(), chi.URLParam(r, "id"), func(sess *session.Session) error {
		reasons, err := sess.Explain(key, value)
		if err != nil {
			return err
		}
		if len(reasons) > 0 {
			resp.Reasons = reasons
			return nil
		}
		d, err := sess.Domain(key)
		if err != nil {
			return err
		}
		resp.Legal = d.Contains(value)
		return nil
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) export(w http.ResponseWriter, r *http.Request) {
	snap, err := s.manager.Export(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, snap)
}

func (s *Server) snapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := s.manager.Snapshot(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, snap)
}

// -- Helpers --

type errorResponse struct {
	Error   string   `json:"error"`
	Code    string   `json:"code"`
	Reasons []string `json:"reasons,omitempty"`
}

// StatusFor maps engine errors to HTTP status codes.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrDomainViolation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrStageLocked),
		errors.Is(err, domain.ErrStageIncomplete),
		errors.Is(err, domain.ErrSessionExists),
		errors.Is(err, domain.ErrReentrant):
		return http.StatusConflict
	case errors.Is(err, domain.ErrUnknownVariable),
		errors.Is(err, domain.ErrUnknownStage),
		errors.Is(err, domain.ErrSessionNotFound),
		errors.Is(err, domain.ErrSnapshotNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := StatusFor(err)
	resp := errorResponse{Error: err.Error(), Code: observability.Reason(err)}
	var dv *domain.DomainViolationError
	if errors.As(err, &dv) {
		resp.Reasons = dv.Reasons
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "error", err)
	}
	s.writeJSON(w, status, resp)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("failed to encode response", "error", err)
	}
}

// sseEvent formats one server-sent event.
func sseEvent(event string, data []byte) string {
	return fmt.Sprintf("event: %s\ndata: %s\n\n", event, data)
}
