package cli

import (
	"context"
	"errors"
	"io"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/SmitUplenchwar2687/rhythm/internal/config"
	"github.com/SmitUplenchwar2687/rhythm/internal/recorder"
)

// openSinks creates the result sinks the output configuration asks for. On
// error every sink opened so far is closed again.
func openSinks(ctx context.Context, cfg config.Config, runID string, console io.Writer, logger log.Logger) (_ []recorder.Sink, err error) {
	format, err := recorder.ParseFormat(cfg.Output.Format)
	if err != nil {
		return nil, err
	}

	var sinks []recorder.Sink
	defer func() {
		if err != nil {
			closeSinks(sinks, logger)
		}
	}()

	if cfg.Output.WriteToFile {
		fs, err := recorder.OpenFile(cfg.Output.ResultFile, format)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, fs)
		level.Info(logger).Log("msg", "writing results", "file", cfg.Output.ResultFile, "format", format)
	}

	if cfg.Output.Console {
		sinks = append(sinks, recorder.NewWriterSink(console, format))
	}

	if rc := cfg.RedisConfig(runID); rc != nil {
		rs, err := recorder.NewRedisSink(ctx, rc)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, rs)
		level.Info(logger).Log("msg", "streaming results to redis", "addr", rc.Addr, "stream", rc.Stream)
	}

	return sinks, nil
}

func closeSinks(sinks []recorder.Sink, logger log.Logger) {
	var errs []error
	for _, s := range sinks {
		errs = append(errs, s.Close())
	}
	if err := errors.Join(errs...); err != nil {
		level.Error(logger).Log("msg", "closing result sinks", "err", err)
	}
}
