// Package diag serves the metadata engine diagnostics over HTTP.
package diag

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/conduit-lang/metagraph/internal/metadata"
	"github.com/conduit-lang/metagraph/internal/process"
)

// StatsResponse is the body of GET /stats
type StatsResponse struct {
	metadata.Stats
	HitRate float64 `json:"hit_rate"`
	Summary string  `json:"summary"`
}

// DependenciesResponse is the body of GET /dependencies
type DependenciesResponse struct {
	Upstream   string   `json:"upstream"`
	Downstream []string `json:"downstream"`
}

// ErrorResponse is the body of every error reply
type ErrorResponse struct {
	Error  ErrorDetail `json:"error"`
	Status int         `json:"status"`
}

// ErrorDetail describes what went wrong
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Server exposes read access to a Service and a notify trigger. Every request
// runs as one process-manager operation.
type Server struct {
	svc     *metadata.Service
	manager *process.Manager
	logger  *zap.Logger
	mux     chi.Router
}

// NewServer creates the diagnostics handler
func NewServer(svc *metadata.Service, manager *process.Manager, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		svc:     svc,
		manager: manager,
		logger:  logger,
		mux:     chi.NewRouter(),
	}

	s.mux.Use(middleware.Recoverer)
	s.mux.Get("/stats", s.handleStats)
	s.mux.Get("/providers", s.handleProviders)
	s.mux.Get("/dependencies", s.handleDependencies)
	s.mux.Get("/edges", s.handleEdges)
	s.mux.Get("/rescans", s.handleRescans)
	s.mux.Post("/notify", s.handleNotify)

	return s
}

// ServeHTTP implements http.Handler interface
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is done
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("diagnostics listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// run executes fn as one operation and writes its result as JSON
func (s *Server) run(w http.ResponseWriter, r *http.Request, name string, fn func() (interface{}, error)) {
	var body interface{}
	err := s.manager.Run(r.Context(), name, func(ctx context.Context) error {
		var err error
		body, err = fn()
		return err
	})
	if err != nil {
		if errors.Is(err, metadata.ErrInvalidIdentifier) {
			writeError(w, http.StatusBadRequest, "INVALID_IDENTIFIER", err.Error())
			return
		}
		s.logger.Error("diagnostics request failed", zap.String("op", name), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	s.run(w, r, "diag-stats", func() (interface{}, error) {
		stats := s.svc.Stats()
		return StatsResponse{Stats: stats, HitRate: stats.HitRate(), Summary: stats.String()}, nil
	})
}

func (s *Server) handleProviders(w http.ResponseWriter, r *http.Request) {
	s.run(w, r, "diag-providers", func() (interface{}, error) {
		return map[string][]string{"providers": s.svc.ProviderTypes()}, nil
	})
}

func (s *Server) handleDependencies(w http.ResponseWriter, r *http.Request) {
	upstream := r.URL.Query().Get("upstream")
	if upstream == "" {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "missing upstream parameter")
		return
	}
	s.run(w, r, "diag-dependencies", func() (interface{}, error) {
		return DependenciesResponse{
			Upstream:   upstream,
			Downstream: s.svc.Dependencies().Downstream(upstream),
		}, nil
	})
}

func (s *Server) handleEdges(w http.ResponseWriter, r *http.Request) {
	s.run(w, r, "diag-edges", func() (interface{}, error) {
		return map[string][]metadata.Edge{"edges": s.svc.Dependencies().Edges()}, nil
	})
}

func (s *Server) handleRescans(w http.ResponseWriter, r *http.Request) {
	s.run(w, r, "diag-rescans", func() (interface{}, error) {
		return map[string][]string{"rescans": s.svc.PendingRescans()}, nil
	})
}

func (s *Server) handleNotify(w http.ResponseWriter, r *http.Request) {
	upstream := r.URL.Query().Get("upstream")
	if upstream == "" {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "missing upstream parameter")
		return
	}
	s.run(w, r, "diag-notify", func() (interface{}, error) {
		if err := s.svc.Dependencies().NotifyDownstream(upstream); err != nil {
			return nil, err
		}
		stats := s.svc.Stats()
		return StatsResponse{Stats: stats, HitRate: stats.HitRate(), Summary: stats.String()}, nil
	})
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{
		Error:  ErrorDetail{Code: code, Message: message},
		Status: status,
	})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body) // client went away
}
