// Package api serves the loaded problem records read-only over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/docutag/mathwiki"
	"github.com/docutag/mathwiki/metrics"
	"github.com/docutag/mathwiki/models"
	"github.com/docutag/mathwiki/store"
)

// Server represents the API server
type Server struct {
	store       store.Store
	metrics     *metrics.Metrics
	logger      *zap.Logger
	addr        string
	server      *http.Server
	mux         *http.ServeMux
	corsEnabled bool
}

// Config contains server configuration
type Config struct {
	Addr        string
	CORSEnabled bool
}

// DefaultConfig returns default server configuration
func DefaultConfig() Config {
	return Config{
		Addr:        ":8080",
		CORSEnabled: true,
	}
}

// NewServer creates a new API server over st. m may be nil.
func NewServer(config Config, st store.Store, logger *zap.Logger, m *metrics.Metrics) (*Server, error) {
	if st == nil {
		return nil, errors.New("store is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		store:       st,
		metrics:     m,
		logger:      logger,
		addr:        config.Addr,
		mux:         http.NewServeMux(),
		corsEnabled: config.CORSEnabled,
	}

	s.registerRoutes()

	s.server = &http.Server{
		Addr:         config.Addr,
		Handler:      s.middleware(s.mux),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s, nil
}

// Handler returns the routed handler, for tests and embedding
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// registerRoutes sets up all API routes
func (s *Server) registerRoutes() {
	s.handle("GET /health", s.handleHealth)
	s.handle("GET /api/competitions", s.handleCompetitions)
	s.handle("GET /api/competitions/{competition}/exams", s.handleExams)
	s.handle("GET /api/competitions/{competition}/exams/{year}/problems", s.handleProblems)
	s.handle("GET /api/competitions/{competition}/exams/{year}/problems/{number}", s.handleProblem)
	s.handle("GET /api/competitions/{competition}/completion", s.handleCompletion)
	s.mux.Handle("GET /metrics", s.metrics.Handler())
}

func (s *Server) handle(pattern string, h http.HandlerFunc) {
	s.mux.Handle(pattern, s.metrics.Middleware(pattern, h))
}

// Start starts the API server
func (s *Server) Start() error {
	s.logger.Info("starting API server", zap.String("addr", s.addr))
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server and closes the store
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down API server")
	if err := s.server.Shutdown(ctx); err != nil {
		return err
	}
	return s.store.Close()
}

// middleware applies common middleware to all routes
func (s *Server) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.corsEnabled {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}
		}

		start := time.Now()
		next.ServeHTTP(w, r)

		// Skip health checks and scrapes to reduce noise
		if r.URL.Path != "/health" && r.URL.Path != "/metrics" {
			s.logger.Debug("request completed",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Duration("duration", time.Since(start)),
			)
		}
	})
}

// handleHealth reports whether the store answers
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	docs, err := s.store.List(r.Context(), "competitions")
	if err != nil {
		s.logger.Error("health check failed", zap.Error(err))
		respondJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status": "unhealthy",
			"time":   time.Now(),
		})
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":       "healthy",
		"competitions": len(docs),
		"time":         time.Now(),
	})
}

func (s *Server) handleCompetitions(w http.ResponseWriter, r *http.Request) {
	comps, err := mathwiki.Competitions(r.Context(), s.store)
	if err != nil {
		s.storeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"data":  comps,
		"total": len(comps),
	})
}

func (s *Server) handleExams(w http.ResponseWriter, r *http.Request) {
	competition := r.PathValue("competition")
	docs, err := s.store.List(r.Context(), store.ExamsCollection(competition))
	if err != nil {
		s.storeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"data":  fieldsOf(docs),
		"total": len(docs),
	})
}

// handleProblems lists the problems of one exam with pagination
func (s *Server) handleProblems(w http.ResponseWriter, r *http.Request) {
	competition := r.PathValue("competition")
	year, err := strconv.Atoi(r.PathValue("year"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "year must be a number")
		return
	}

	limit := 25
	offset := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			offset = n
		}
	}

	// Enforce reasonable limits
	if limit < 1 {
		limit = 25
	}
	if limit > 100 {
		limit = 100
	}

	docs, err := s.store.List(r.Context(), store.ProblemsCollection(competition, year))
	if err != nil {
		s.storeError(w, err)
		return
	}

	total := len(docs)
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"data":   fieldsOf(docs[offset:end]),
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

func (s *Server) handleProblem(w http.ResponseWriter, r *http.Request) {
	competition := r.PathValue("competition")
	year, errYear := strconv.Atoi(r.PathValue("year"))
	number, errNumber := strconv.Atoi(r.PathValue("number"))
	if errYear != nil || errNumber != nil {
		respondError(w, http.StatusBadRequest, "year and problem number must be numbers")
		return
	}

	p, err := mathwiki.Verify(r.Context(), s.store, competition, year, number)
	if err != nil {
		s.storeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

// CompletionResponse is the completion audit of one competition
type CompletionResponse struct {
	models.Summary
	AnswerRate float64 `json:"answerRate"`
	ChoiceRate float64 `json:"choiceRate"`
}

func (s *Server) handleCompletion(w http.ResponseWriter, r *http.Request) {
	competition := r.PathValue("competition")
	summary, err := mathwiki.Completion(r.Context(), s.store, competition)
	if err != nil {
		s.storeError(w, err)
		return
	}
	if summary.Exams == 0 {
		respondError(w, http.StatusNotFound, "competition not found")
		return
	}
	respondJSON(w, http.StatusOK, CompletionResponse{
		Summary:    summary,
		AnswerRate: summary.AnswerRate(),
		ChoiceRate: summary.ChoiceRate(),
	})
}

func (s *Server) storeError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrNotFound) {
		respondError(w, http.StatusNotFound, "not found")
		return
	}
	s.logger.Error("store error", zap.Error(err))
	respondError(w, http.StatusInternalServerError, "store error")
}

func fieldsOf(docs []store.Document) []map[string]any {
	out := make([]map[string]any, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.Fields)
	}
	return out
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError sends an error response
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}
