package cli

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/SmitUplenchwar2687/rhythm/internal/server"
)

const monitorShutdownTimeout = 5 * time.Second

// startMonitor binds the monitor address and serves in the background. The
// returned function shuts the server down.
func startMonitor(srv *server.Server, logger log.Logger) (func(), error) {
	ln, err := net.Listen("tcp", srv.Addr())
	if err != nil {
		return nil, fmt.Errorf("listening on %s: %w", srv.Addr(), err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.StartOnListener(ln)
	}()
	level.Info(logger).Log("msg", "monitor started", "dashboard", "http://"+ln.Addr().String()+"/dashboard/")

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), monitorShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			level.Warn(logger).Log("msg", "monitor shutdown", "err", err)
		}
		if err := <-errCh; err != nil {
			level.Warn(logger).Log("msg", "monitor stopped", "err", err)
		}
	}, nil
}
