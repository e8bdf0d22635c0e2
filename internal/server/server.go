// Package server implements the optional monitor HTTP server that exposes a
// running replay: its summary, recent results, Prometheus metrics and a live
// dashboard fed over WebSocket.
package server

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/SmitUplenchwar2687/rhythm/internal/clock"
	"github.com/SmitUplenchwar2687/rhythm/internal/recorder"
	"github.com/SmitUplenchwar2687/rhythm/internal/replay"
)

const defaultResults = 100

// ResultSource provides the most recent results, oldest first.
type ResultSource interface {
	Recent(n int) []recorder.Result
}

// Options wires the server to a replay run. Nil fields disable the
// matching endpoint.
type Options struct {
	Addr    string
	Summary func() *replay.Summary
	Results ResultSource
	Metrics http.Handler
	Hub     *Hub
	Clock   clock.Clock
	Logger  log.Logger
}

// Server is the monitor HTTP server.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	opts       Options
	clock      clock.Clock
	logger     log.Logger
	started    time.Time
}

// New creates a monitor server.
func New(opts Options) *Server {
	clk := opts.Clock
	if clk == nil {
		clk = clock.NewRealClock()
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.NewNopLogger()
	}

	s := &Server{
		mux:     http.NewServeMux(),
		opts:    opts,
		clock:   clk,
		logger:  log.With(logger, "component", "monitor"),
		started: clk.Now(),
	}
	s.routes()
	s.httpServer = &http.Server{
		Addr:              opts.Addr,
		Handler:           LoggingMiddleware(s.mux, s.logger, clk),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("/", s.handleRoot)
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/api/summary", s.handleSummary)
	s.mux.HandleFunc("/api/results", s.handleResults)
	s.mux.HandleFunc("/dashboard/", s.handleDashboard)
	if s.opts.Metrics != nil {
		s.mux.Handle("/metrics", s.opts.Metrics)
	}
	if s.opts.Hub != nil {
		s.mux.HandleFunc("/ws", s.opts.Hub.HandleWebSocket)
	}
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Handler returns the server's handler, middleware included.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// handleRoot serves a short service description.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"service":   "rhythm",
		"status":    "running",
		"time":      s.clock.Now().Format(time.RFC3339),
		"dashboard": "/dashboard/",
	})
}

// handleHealth returns server health status.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"uptime": s.clock.Since(s.started).Round(time.Second).String(),
	})
}

// handleSummary returns a snapshot of the replay summary.
func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	if s.opts.Summary == nil {
		writeError(w, http.StatusServiceUnavailable, "no replay attached")
		return
	}
	sum := s.opts.Summary()
	if sum == nil {
		writeError(w, http.StatusServiceUnavailable, "replay not started")
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

// handleResults returns the latest results. Query: ?n=<count>.
func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	if s.opts.Results == nil {
		writeError(w, http.StatusServiceUnavailable, "no recorder attached")
		return
	}
	n := defaultResults
	if raw := r.URL.Query().Get("n"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			writeError(w, http.StatusBadRequest, "n must be a non-negative integer")
			return
		}
		n = v
	}
	writeJSON(w, http.StatusOK, s.opts.Results.Recent(n))
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(DashboardHTML))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// Start begins listening. It blocks until the server is shut down.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	return s.StartOnListener(ln)
}

// StartOnListener begins serving on the provided listener.
// Useful for tests that need to pick an ephemeral port.
func (s *Server) StartOnListener(ln net.Listener) error {
	level.Info(s.logger).Log("msg", "monitor listening", "addr", ln.Addr().String())
	err := s.httpServer.Serve(ln)
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully shuts down the server and disconnects WebSocket
// clients.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.opts.Hub != nil {
		s.opts.Hub.Close()
	}
	return s.httpServer.Shutdown(ctx)
}
