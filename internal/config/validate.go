package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/SmitUplenchwar2687/rhythm/internal/ingest"
	"github.com/SmitUplenchwar2687/rhythm/internal/logformat"
	"github.com/SmitUplenchwar2687/rhythm/internal/logging"
	"github.com/SmitUplenchwar2687/rhythm/internal/pool"
	"github.com/SmitUplenchwar2687/rhythm/internal/recorder"
)

// Validate checks every field and returns all problems at once. The format
// template and time pattern are compiled here so that a bad one fails
// before any replay starts.
func (c Config) Validate() error {
	var errs []error
	bad := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
	}

	in := c.Input
	if in.LogPath == "" {
		bad("input.log_path is required")
	}
	spec, err := logformat.Compile(in.Format)
	if err != nil {
		errs = append(errs, fmt.Errorf("%w: input.format: %w", ErrInvalid, err))
	}
	if _, err := logformat.Layout(in.TimeFormat); err != nil {
		errs = append(errs, fmt.Errorf("%w: input.time_format: %w", ErrInvalid, err))
	}
	if spec != nil {
		if !spec.Has(logformat.FieldRequestTime) || !spec.Has(logformat.FieldRequestLine) {
			bad("input.format must contain %s and %s",
				logformat.FieldRequestTime.Placeholder(), logformat.FieldRequestLine.Placeholder())
		}
		if c.Target.DestinationHost == "" && !spec.Has(logformat.FieldDestinationHost) {
			bad("target.destination_host is required when input.format has no %s",
				logformat.FieldDestinationHost.Placeholder())
		}
	}
	if in.StartTimestamp < 0 {
		bad("input.start_timestamp must be >= 0, got %d", in.StartTimestamp)
	}
	if in.ParserWorkers <= 0 {
		bad("input.parser_workers must be positive, got %d", in.ParserWorkers)
	}
	if in.Timeout <= 0 {
		bad("input.timeout must be positive, got %s", in.Timeout)
	}

	tg := c.Target
	if tg.Scheme != "http" && tg.Scheme != "https" {
		bad("target.scheme must be http or https, got %q", tg.Scheme)
	}
	if tg.DestinationHost != "" {
		if _, err := ingest.BuildURL(tg.Scheme, tg.DestinationHost, "/"); err != nil {
			bad("target.destination_host %q: %v", tg.DestinationHost, err)
		}
	}
	if tg.ConnectTimeout <= 0 {
		bad("target.connect_timeout must be positive, got %s", tg.ConnectTimeout)
	}
	if tg.ReadTimeout <= 0 {
		bad("target.read_timeout must be positive, got %s", tg.ReadTimeout)
	}
	if (tg.Username == "") != (tg.Password == "") {
		bad("target.username and target.password must be set together")
	}

	ld := c.Load
	if !(ld.Speed > 0) {
		bad("load.speed must be > 0, got %v", ld.Speed)
	}
	if ld.Scale < 0 {
		bad("load.scale must be >= 0, got %v", ld.Scale)
	}
	if ld.Workers <= 0 {
		bad("load.workers must be positive, got %d", ld.Workers)
	}
	if ld.QueueCapacity <= 0 {
		bad("load.queue_capacity must be positive, got %d", ld.QueueCapacity)
	}
	if _, err := pool.ParsePolicy(ld.QueuePolicy); err != nil {
		bad("load.queue_policy: %v", err)
	}
	if ld.ShutdownGrace <= 0 {
		bad("load.shutdown_grace must be positive, got %s", ld.ShutdownGrace)
	}
	if !ld.After.IsZero() && !ld.Before.IsZero() && !ld.Before.After(ld.After) {
		bad("load.before (%s) must be later than load.after (%s)",
			ld.Before.Format(time.RFC3339), ld.After.Format(time.RFC3339))
	}
	for _, m := range ld.Methods {
		if _, err := ingest.ParseMethod(strings.ToUpper(m)); err != nil {
			bad("load.methods: %v", err)
		}
	}

	out := c.Output
	if _, err := recorder.ParseFormat(out.Format); err != nil {
		bad("output.format: %v", err)
	}
	if out.WriteToFile && out.ResultFile == "" {
		bad("output.result_file is required when output.write_to_file is set")
	}
	if out.Redis.DB < 0 {
		bad("output.redis.db must be >= 0, got %d", out.Redis.DB)
	}

	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		bad("log.level: %v", err)
	}

	return errors.Join(errs...)
}
