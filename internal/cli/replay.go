package cli

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/segmentio/ksuid"
	"github.com/spf13/cobra"

	"github.com/SmitUplenchwar2687/rhythm/internal/clock"
	"github.com/SmitUplenchwar2687/rhythm/internal/executor"
	"github.com/SmitUplenchwar2687/rhythm/internal/ingest"
	"github.com/SmitUplenchwar2687/rhythm/internal/metrics"
	"github.com/SmitUplenchwar2687/rhythm/internal/pool"
	"github.com/SmitUplenchwar2687/rhythm/internal/recorder"
	"github.com/SmitUplenchwar2687/rhythm/internal/replay"
	"github.com/SmitUplenchwar2687/rhythm/internal/server"
)

func newReplayCmd(a *app) *cobra.Command {
	var outputJSON bool

	cmd := &cobra.Command{
		Use:   "replay [log-file]",
		Short: "Replay an access log against a target host",
		Long: `Parses the access log, orders its requests by time and sends them to the
target, waiting the original gap (divided by --speed) before each one.

--scale sets attempts per entry: 2 sends every request twice, 1.5 sends
it once plus a second time with probability 0.5.

When the worker queue is full, --queue-policy decides: abort records a
rejected result, caller_runs sends the request from the dispatcher,
discard drops it and discard_oldest drops the oldest queued one.

Ctrl-C stops dispatching; in-flight requests get --shutdown-grace to finish.`,
		Example: `  rhythm replay access.log --host http://staging:8080
  rhythm replay --log-file access.log --host http://staging:8080 --speed 10 --scale 1.5
  rhythm replay access.log --host https://staging --insecure --workers 64 --monitor-addr :9090
  rhythm replay --config rhythm.yaml --methods GET --paths /api --console`,
		Args: cobra.MaximumNArgs(1),
	}

	flags := newFlagSet(cmd)
	flags.addInputFlags()
	flags.addTargetFlags()
	flags.addLoadFlags()
	flags.addOutputFlags()
	cmd.Flags().BoolVar(&outputJSON, "json", false, "print the summary as JSON")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		if len(args) == 1 {
			a.v.Set("input.log_path", args[0])
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return a.runReplay(ctx, flags, outputJSON)
	}
	return cmd
}

func (a *app) runReplay(ctx context.Context, flags *flagSet, outputJSON bool) error {
	cfg, logger, err := a.load(flags)
	if err != nil {
		return err
	}
	runID := ksuid.New().String()
	logger = log.With(logger, "run_id", runID)
	clk := clock.NewRealClock()
	collector := metrics.New()

	// Ingest.
	inOpts, err := cfg.IngestOptions(clk, logger)
	if err != nil {
		return phaseErr(phaseIngest, "building parser", err)
	}
	pipeline, err := ingest.New(inOpts)
	if err != nil {
		return phaseErr(phaseIngest, "building parser", err)
	}
	entries, stats, err := pipeline.Load(ctx, cfg.Input.LogPath)
	if err != nil {
		return phaseErr(phaseIngest, "reading "+cfg.Input.LogPath, err)
	}
	collector.ObserveIngest(stats)
	if !outputJSON {
		printIngestStats(a.stdout, cfg.Input.LogPath, stats, entries)
	}

	// Results.
	sinks, err := openSinks(ctx, cfg, runID, a.stdout, logger)
	if err != nil {
		return phaseErr(phaseReplay, "opening result sinks", err)
	}
	sinks = append(sinks, collector)

	var hub *server.Hub
	if cfg.Monitor.Addr != "" {
		hub = server.NewHub(logger)
		sinks = append(sinks, hub)
	}
	rec := recorder.New(0, sinks...)
	defer func() {
		if err := rec.Close(); err != nil {
			level.Error(logger).Log("msg", "closing result sinks", "err", err)
		}
	}()

	// Engine.
	exec, err := executor.New(cfg.ExecutorOptions(clk))
	if err != nil {
		return phaseErr(phaseReplay, "building http client", err)
	}
	rOpts, err := cfg.ReplayOptions(runID, logger)
	if err != nil {
		exec.Close()
		return phaseErr(phaseReplay, "building replayer", err)
	}
	rp, err := replay.New(exec, clk, rOpts)
	if err != nil {
		exec.Close()
		return phaseErr(phaseReplay, "building replayer", err)
	}
	collector.Track(rp.Snapshot)

	if hub != nil {
		mon := server.New(server.Options{
			Addr:    cfg.Monitor.Addr,
			Summary: rp.Snapshot,
			Results: rec,
			Metrics: collector.Handler(),
			Hub:     hub,
			Clock:   clk,
			Logger:  logger,
		})
		stopMonitor, err := startMonitor(mon, logger)
		if err != nil {
			exec.Close()
			return phaseErr(phaseReplay, "starting monitor", err)
		}
		defer stopMonitor()
	}

	summary, err := rp.Run(ctx, entries, func(res recorder.Result) {
		if res.Failed() {
			level.Debug(logger).Log("msg", "attempt failed", "url", res.URL, "err", res.Err)
		}
		if err := rec.Record(res); err != nil {
			level.Warn(logger).Log("msg", "writing result", "err", err)
		}
	})

	var printErr error
	if summary != nil {
		if outputJSON {
			enc := json.NewEncoder(a.stdout)
			enc.SetIndent("", "  ")
			if perr := enc.Encode(summary); perr != nil {
				printErr = phaseErr(phaseReplay, "writing summary", perr)
			}
		} else {
			printReplaySummary(a.stdout, summary)
		}
	}

	switch {
	case err == nil:
		return printErr
	case errors.Is(err, pool.ErrShutdownTimeout), errors.Is(err, pool.ErrStuckWorkers):
		return phaseErr(phaseShutdown, "draining workers", err)
	case errors.Is(err, context.Canceled) && summary != nil:
		level.Warn(logger).Log("msg", "replay interrupted", "dispatched", summary.Dispatched, "entries", summary.Entries)
		return printErr
	default:
		return phaseErr(phaseReplay, "dispatching", err)
	}
}
