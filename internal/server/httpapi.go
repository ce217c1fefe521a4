// Package server exposes the persona pipeline over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/normanking/personad/internal/config"
	"github.com/normanking/personad/internal/pipeline"
	"github.com/normanking/personad/internal/spec"
	"github.com/normanking/personad/internal/version"
)

// APIError is the JSON envelope for every error response.
type APIError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// Server wires the pipeline to HTTP routes.
type Server struct {
	cfg        config.ServerConfig
	pipe       *pipeline.Pipeline
	httpServer *http.Server
	log        zerolog.Logger
}

// New creates the HTTP server around a pipeline.
func New(cfg config.ServerConfig, pipe *pipeline.Pipeline, log zerolog.Logger) *Server {
	s := &Server{
		cfg:  cfg,
		pipe: pipe,
		log:  log,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.healthHandler)
	mux.HandleFunc("POST /persona/assess", s.assessHandler)
	mux.HandleFunc("POST /persona/build", s.buildHandler)
	mux.HandleFunc("POST /persona/test", s.testHandler)
	mux.HandleFunc("POST /persona/deploy", s.deployHandler)
	mux.HandleFunc("GET /personas", s.listHandler)
	mux.HandleFunc("GET /persona/{name}", s.showHandler)
	mux.HandleFunc("GET /persona/{name}/versions", s.versionsHandler)

	s.httpServer = &http.Server{
		Addr:         cfg.Addr(),
		Handler:      s.loggingMiddleware(s.corsMiddleware(mux)),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Handler returns the fully wrapped root handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start runs the server until Shutdown or a listener error.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.httpServer.Addr).Msg("HTTP server starting")
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ───────────────────────────────────────────────────────────────────────────────
// MIDDLEWARE
// ───────────────────────────────────────────────────────────────────────────────

// loggingMiddleware logs one line per request.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("duration", time.Since(start)).
			Msg("Request handled")
	})
}

// statusRecorder captures the response status for the request log.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// corsMiddleware allows the configured origins, credentials included,
// and answers preflight requests directly.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	allowed := make(map[string]bool, len(s.cfg.CORSOrigins))
	for _, origin := range s.cfg.CORSOrigins {
		allowed[strings.TrimSpace(origin)] = true
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && allowed[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// ───────────────────────────────────────────────────────────────────────────────
// HANDLERS
// ───────────────────────────────────────────────────────────────────────────────

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) assessHandler(w http.ResponseWriter, r *http.Request) {
	raw, apiErr := decodeDefinition(r)
	if apiErr != nil {
		writeError(w, *apiErr)
		return
	}

	writeJSON(w, http.StatusOK, s.pipe.Assess(raw))
}

func (s *Server) buildHandler(w http.ResponseWriter, r *http.Request) {
	raw, apiErr := decodeDefinition(r)
	if apiErr != nil {
		writeError(w, *apiErr)
		return
	}

	res, rej, err := s.pipe.Build(r.Context(), raw)
	if err != nil {
		s.respondPipelineError(w, "Build", err)
		return
	}
	if rej != nil {
		writeJSON(w, http.StatusUnprocessableEntity, rej)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) testHandler(w http.ResponseWriter, r *http.Request) {
	raw, apiErr := decodeDefinition(r)
	if apiErr != nil {
		writeError(w, *apiErr)
		return
	}

	writeJSON(w, http.StatusOK, s.pipe.TestSuite(raw))
}

func (s *Server) deployHandler(w http.ResponseWriter, r *http.Request) {
	raw, apiErr := decodeDefinition(r)
	if apiErr != nil {
		writeError(w, *apiErr)
		return
	}

	res, rej, err := s.pipe.Deploy(r.Context(), raw)
	if err != nil {
		s.respondPipelineError(w, "Deploy", err)
		return
	}
	if rej != nil {
		writeJSON(w, http.StatusUnprocessableEntity, rej)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) listHandler(w http.ResponseWriter, r *http.Request) {
	personas := s.pipe.List()
	writeJSON(w, http.StatusOK, map[string]any{
		"total":    len(personas),
		"personas": personas,
	})
}

func (s *Server) showHandler(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	res, ok := s.pipe.Show(spec.Slugify(name))
	if !ok {
		writeError(w, APIError{
			Code:    http.StatusNotFound,
			Message: fmt.Sprintf("Persona '%s' not found", name),
		})
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) versionsHandler(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	set := s.pipe.Versions(spec.Slugify(name))
	if set.TotalVersions == 0 {
		writeError(w, APIError{
			Code:    http.StatusNotFound,
			Message: fmt.Sprintf("Persona '%s' has no versions", name),
		})
		return
	}
	writeJSON(w, http.StatusOK, set)
}

// ───────────────────────────────────────────────────────────────────────────────
// HELPERS
// ───────────────────────────────────────────────────────────────────────────────

// decodeDefinition reads a raw persona definition from the request
// body. JSON nulls are dropped so the normalizer treats them the same
// as omitted keys. A definition without a usable name is rejected
// before it reaches the pipeline.
func decodeDefinition(r *http.Request) (map[string]any, *APIError) {
	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return nil, &APIError{Code: http.StatusBadRequest, Message: "Invalid JSON body"}
	}

	raw := make(map[string]any, len(body))
	for key, value := range body {
		if value != nil {
			raw[key] = value
		}
	}

	name, _ := raw["name"].(string)
	if strings.TrimSpace(name) == "" {
		return nil, &APIError{
			Code:    http.StatusUnprocessableEntity,
			Message: "Persona definition requires a non-empty 'name'",
		}
	}

	return raw, nil
}

// respondPipelineError maps pipeline errors onto API statuses. Version
// store problems and lock contention surface as 503 so callers can
// retry; everything else is a 500.
func (s *Server) respondPipelineError(w http.ResponseWriter, op string, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, version.ErrStoreUnavailable) || errors.Is(err, version.ErrLockTimeout) {
		status = http.StatusServiceUnavailable
	}

	s.log.Error().Err(err).Str("op", op).Msg("Pipeline operation failed")
	writeError(w, APIError{Code: status, Message: fmt.Sprintf("%s failed: %v", op, err)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, apiErr APIError) {
	writeJSON(w, apiErr.Code, apiErr)
}
