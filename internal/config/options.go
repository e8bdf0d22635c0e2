package config

import (
	"strings"

	"github.com/go-kit/log"

	"github.com/SmitUplenchwar2687/rhythm/internal/clock"
	"github.com/SmitUplenchwar2687/rhythm/internal/executor"
	"github.com/SmitUplenchwar2687/rhythm/internal/ingest"
	"github.com/SmitUplenchwar2687/rhythm/internal/logformat"
	"github.com/SmitUplenchwar2687/rhythm/internal/pool"
	"github.com/SmitUplenchwar2687/rhythm/internal/recorder"
	"github.com/SmitUplenchwar2687/rhythm/internal/replay"
)

// The conversions below assume Validate has passed.

// IngestOptions builds the ingestion pipeline options.
func (c Config) IngestOptions(clk clock.Clock, logger log.Logger) (ingest.Options, error) {
	spec, err := logformat.Compile(c.Input.Format)
	if err != nil {
		return ingest.Options{}, err
	}
	layout, err := logformat.Layout(c.Input.TimeFormat)
	if err != nil {
		return ingest.Options{}, err
	}

	return ingest.Options{
		Parser: ingest.ParserConfig{
			Spec:            spec,
			TimeLayout:      layout,
			MinTimestamp:    c.Input.StartTimestamp,
			DestinationHost: c.Target.DestinationHost,
			Scheme:          c.Target.Scheme,
		},
		Workers: c.Input.ParserWorkers,
		Timeout: c.Input.Timeout,
		Speed:   c.Load.Speed,
		Clock:   clk,
		Logger:  logger,
	}, nil
}

// ExecutorOptions builds the HTTP executor options.
func (c Config) ExecutorOptions(clk clock.Clock) executor.Options {
	return executor.Options{
		Workers:             c.Load.Workers,
		ConnectTimeout:      c.Target.ConnectTimeout,
		ReadTimeout:         c.Target.ReadTimeout,
		InsecureSkipVerify:  c.Target.InsecureSkipVerify,
		CloseAfterFirstByte: c.Target.CloseAfterFirstByte,
		Username:            c.Target.Username,
		Password:            c.Target.Password,
		Clock:               clk,
	}
}

// ReplayOptions builds the replay engine options.
func (c Config) ReplayOptions(runID string, logger log.Logger) (replay.Options, error) {
	policy, err := pool.ParsePolicy(c.Load.QueuePolicy)
	if err != nil {
		return replay.Options{}, err
	}

	methods := make([]string, len(c.Load.Methods))
	for i, m := range c.Load.Methods {
		methods[i] = strings.ToUpper(m)
	}

	return replay.Options{
		Workers:        c.Load.Workers,
		QueueCapacity:  c.Load.QueueCapacity,
		Policy:         policy,
		LoadMultiplier: c.Load.Scale,
		ShutdownGrace:  c.Load.ShutdownGrace,
		Filter: replay.Filter{
			Methods: methods,
			Paths:   c.Load.Paths,
			After:   c.Load.After,
			Before:  c.Load.Before,
		},
		RunID:          runID,
		Logger:         logger,
	}, nil
}

// RedisConfig returns the Redis sink configuration, or nil when the sink
// is disabled.
func (c Config) RedisConfig(runID string) *recorder.RedisConfig {
	r := c.Output.Redis
	if r.Addr == "" {
		return nil
	}
	return &recorder.RedisConfig{
		Addr:     r.Addr,
		Password: r.Password,
		DB:       r.DB,
		Stream:   r.Stream,
		MaxLen:   r.MaxLen,
		RunID:    runID,
	}
}
