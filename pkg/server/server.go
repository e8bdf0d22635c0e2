package server

import (
	"net/http"

	"github.com/go-kit/log"

	internalserver "github.com/SmitUplenchwar2687/rhythm/internal/server"
	"github.com/SmitUplenchwar2687/rhythm/pkg/clock"
)

// Server is the monitor HTTP server for a running replay.
type Server = internalserver.Server

// Options wires the server to a replay run.
type Options = internalserver.Options

// ResultSource provides the most recent results.
type ResultSource = internalserver.ResultSource

// Hub manages WebSocket clients and broadcasts replay results.
type Hub = internalserver.Hub

// DashboardHTML is the embedded single-page dashboard.
const DashboardHTML = internalserver.DashboardHTML

// New creates a new monitor server.
func New(opts Options) *Server {
	return internalserver.New(opts)
}

// NewHub creates a new WebSocket hub.
func NewHub(logger log.Logger) *Hub {
	return internalserver.NewHub(logger)
}

// LoggingMiddleware logs every request handled by next.
func LoggingMiddleware(next http.Handler, logger log.Logger, clk clock.Clock) http.Handler {
	return internalserver.LoggingMiddleware(next, logger, clk)
}
