package cli

import (
	"errors"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/SmitUplenchwar2687/rhythm/internal/config"
)

// flagSet declares command flags that map onto configuration keys. Flag
// defaults mirror the configuration defaults so --help shows them; the
// binding to viper happens in bind, once the command actually runs.
type flagSet struct {
	fs       *pflag.FlagSet
	defaults *viper.Viper
	keys     map[string]string // flag name -> config key
}

func newFlagSet(cmd *cobra.Command) *flagSet {
	d := viper.New()
	config.SetDefaults(d)
	return &flagSet{fs: cmd.Flags(), defaults: d, keys: make(map[string]string)}
}

func (f *flagSet) String(name, key, usage string) {
	f.fs.String(name, f.defaults.GetString(key), usage)
	f.keys[name] = key
}

func (f *flagSet) Bool(name, key, usage string) {
	f.fs.Bool(name, f.defaults.GetBool(key), usage)
	f.keys[name] = key
}

func (f *flagSet) Int(name, key, usage string) {
	f.fs.Int(name, f.defaults.GetInt(key), usage)
	f.keys[name] = key
}

func (f *flagSet) Int64(name, key, usage string) {
	f.fs.Int64(name, f.defaults.GetInt64(key), usage)
	f.keys[name] = key
}

func (f *flagSet) Float64(name, key, usage string) {
	f.fs.Float64(name, f.defaults.GetFloat64(key), usage)
	f.keys[name] = key
}

func (f *flagSet) Duration(name, key, usage string) {
	f.fs.Duration(name, f.defaults.GetDuration(key), usage)
	f.keys[name] = key
}

func (f *flagSet) StringSlice(name, key, usage string) {
	f.fs.StringSlice(name, f.defaults.GetStringSlice(key), usage)
	f.keys[name] = key
}

// bind attaches every declared flag to its key in v. Only flags the user
// set override lower-precedence sources.
func (f *flagSet) bind(v *viper.Viper) error {
	var errs []error
	for name, key := range f.keys {
		errs = append(errs, v.BindPFlag(key, f.fs.Lookup(name)))
	}
	return errors.Join(errs...)
}

// addInputFlags declares the flags shared by every command that reads a log.
func (f *flagSet) addInputFlags() {
	f.String("log-file", "input.log_path", "access log to replay")
	f.String("format", "input.format", "log format template")
	f.String("time-format", "input.time_format", "request time pattern (Java style or Go layout)")
	f.Int64("start-timestamp", "input.start_timestamp", "skip entries before this unix time (0 = no limit)")
	f.Int("parser-workers", "input.parser_workers", "concurrent line parsers")
	f.Duration("parse-timeout", "input.timeout", "upper bound on reading and parsing the log")
	f.String("host", "target.destination_host", "target host; overrides the host column of the log")
	f.String("scheme", "target.scheme", "scheme for hosts given without one (http, https)")
	f.Float64("speed", "load.speed", "replay speed multiplier (2 = twice as fast)")
}

func (f *flagSet) addTargetFlags() {
	f.Duration("connect-timeout", "target.connect_timeout", "TCP connect timeout")
	f.Duration("read-timeout", "target.read_timeout", "wait for response headers")
	f.Bool("insecure", "target.insecure_skip_verify", "skip TLS certificate verification")
	f.Bool("close-after-first-byte", "target.close_after_first_byte", "close each connection after the first response byte")
	f.String("username", "target.username", "basic auth user")
	f.String("password", "target.password", "basic auth password")
}

func (f *flagSet) addLoadFlags() {
	f.Float64("scale", "load.scale", "attempts per entry; fractions are drawn at random (0 = one attempt)")
	f.Int("workers", "load.workers", "concurrent request workers")
	f.Int("queue-capacity", "load.queue_capacity", "pending request queue size")
	f.String("queue-policy", "load.queue_policy", "full queue policy (abort, caller_runs, discard, discard_oldest)")
	f.Duration("shutdown-grace", "load.shutdown_grace", "how long in-flight requests may finish after dispatch ends")
	f.StringSlice("methods", "load.methods", "only replay these methods")
	f.StringSlice("paths", "load.paths", "only replay paths equal to or containing one of these")
	f.String("after", "load.after", "only replay entries logged after this RFC 3339 time")
	f.String("before", "load.before", "only replay entries logged before this RFC 3339 time")
}

func (f *flagSet) addOutputFlags() {
	f.String("result-file", "output.result_file", "result file")
	f.Bool("write-to-file", "output.write_to_file", "write results to the result file")
	f.Bool("console", "output.console", "print every result to stdout")
	f.String("output-format", "output.format", "result format (tsv, json)")
	f.String("redis-addr", "output.redis.addr", "also stream results to this Redis (host:port)")
	f.String("redis-stream", "output.redis.stream", "Redis stream key")
	f.String("redis-password", "output.redis.password", "Redis password")
	f.Int("redis-db", "output.redis.db", "Redis database index")
	f.Int64("redis-max-len", "output.redis.max_len", "approximate stream length cap (< 0 = unbounded)")
	f.String("monitor-addr", "monitor.addr", "serve the live monitor on this address")
}
