// Package web exposes the HTTP control API: graph installation, run
// control, status, validation reports, and a server-sent event stream of
// run progress.
package web

import (
	"log/slog"
	"net/http"

	"github.com/example/wavefront/internal/events"
	"github.com/example/wavefront/internal/scheduler"
	"github.com/example/wavefront/internal/storage"
)

// Server is the control-plane HTTP server
type Server struct {
	addr     string
	handlers *Handlers
	mux      *http.ServeMux
}

// NewServer creates a new web server
func NewServer(addr string, sched *scheduler.Scheduler, store storage.Storage, broadcaster *events.Broadcaster, logger *slog.Logger) *Server {
	s := &Server{
		addr:     addr,
		handlers: NewHandlers(sched, store, broadcaster, logger),
		mux:      http.NewServeMux(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/execution/graph", s.corsMiddleware(s.handlers.SetGraph))
	s.mux.HandleFunc("/api/execution/run", s.corsMiddleware(s.handlers.Run))
	s.mux.HandleFunc("/api/execution/stop", s.corsMiddleware(s.handlers.Stop))
	s.mux.HandleFunc("/api/execution/retry-task", s.corsMiddleware(s.handlers.RetryTask))
	s.mux.HandleFunc("/api/execution/status", s.corsMiddleware(s.handlers.Status))
	s.mux.HandleFunc("/api/execution/reports", s.corsMiddleware(s.handlers.Reports))
	s.mux.HandleFunc("/api/execution/events", s.corsMiddleware(s.handlers.Events))
	s.mux.HandleFunc("/api/plans", s.corsMiddleware(s.handlers.ListPlans))
}

// corsMiddleware adds CORS headers to responses
func (s *Server) corsMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next(w, r)
	}
}

// Start starts the HTTP server
func (s *Server) Start() error {
	return http.ListenAndServe(s.addr, s.mux)
}

// Handler returns the HTTP handler for the server
func (s *Server) Handler() http.Handler {
	return s.mux
}
