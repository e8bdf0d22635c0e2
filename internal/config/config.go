// Package config loads the replay configuration from defaults, a config
// file, RHYTHM_* environment variables and command-line flags, in that
// order of increasing precedence.
package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/SmitUplenchwar2687/rhythm/internal/executor"
	"github.com/SmitUplenchwar2687/rhythm/internal/ingest"
	"github.com/SmitUplenchwar2687/rhythm/internal/logformat"
	"github.com/SmitUplenchwar2687/rhythm/internal/logging"
	"github.com/SmitUplenchwar2687/rhythm/internal/pool"
	"github.com/SmitUplenchwar2687/rhythm/internal/recorder"
	"github.com/SmitUplenchwar2687/rhythm/internal/replay"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// EnvPrefix prefixes environment overrides, e.g. RHYTHM_LOAD_SPEED.
const EnvPrefix = "RHYTHM"

// DefaultFormat is the log format template used when none is configured.
const DefaultFormat = `"[$requestTime]" "$requestUrl" "$statusCode" "$destinationHost" "$refererHeader" "$userAgentHeader" "$responseTime"`

// Config is the top-level configuration for a replay run.
type Config struct {
	Input   InputConfig   `mapstructure:"input"`
	Target  TargetConfig  `mapstructure:"target"`
	Load    LoadConfig    `mapstructure:"load"`
	Output  OutputConfig  `mapstructure:"output"`
	Monitor MonitorConfig `mapstructure:"monitor"`
	Log     LogConfig     `mapstructure:"log"`
}

// InputConfig describes the access log and how to parse it.
type InputConfig struct {
	LogPath        string        `mapstructure:"log_path"`
	Format         string        `mapstructure:"format"`
	TimeFormat     string        `mapstructure:"time_format"`
	StartTimestamp int64         `mapstructure:"start_timestamp"` // unix seconds, 0 = unset
	ParserWorkers  int           `mapstructure:"parser_workers"`
	Timeout        time.Duration `mapstructure:"timeout"`
}

// TargetConfig describes where requests are sent.
type TargetConfig struct {
	DestinationHost     string        `mapstructure:"destination_host"`
	Scheme              string        `mapstructure:"scheme"`
	ConnectTimeout      time.Duration `mapstructure:"connect_timeout"`
	ReadTimeout         time.Duration `mapstructure:"read_timeout"`
	InsecureSkipVerify  bool          `mapstructure:"insecure_skip_verify"`
	CloseAfterFirstByte bool          `mapstructure:"close_after_first_byte"`
	Username            string        `mapstructure:"username"`
	Password            string        `mapstructure:"password"`
}

// LoadConfig shapes the replayed traffic.
type LoadConfig struct {
	Speed         float64       `mapstructure:"speed"`
	Scale         float64       `mapstructure:"scale"` // 0 = one attempt per entry
	Workers       int           `mapstructure:"workers"`
	QueueCapacity int           `mapstructure:"queue_capacity"`
	QueuePolicy   string        `mapstructure:"queue_policy"`
	ShutdownGrace time.Duration `mapstructure:"shutdown_grace"`
	Methods       []string      `mapstructure:"methods"`
	Paths         []string      `mapstructure:"paths"`
	After         time.Time     `mapstructure:"after"`  // RFC 3339; zero = no lower bound
	Before        time.Time     `mapstructure:"before"` // RFC 3339; zero = no upper bound
}

// OutputConfig selects the result sinks.
type OutputConfig struct {
	ResultFile  string      `mapstructure:"result_file"`
	WriteToFile bool        `mapstructure:"write_to_file"`
	Console     bool        `mapstructure:"console"`
	Format      string      `mapstructure:"format"`
	Redis       RedisOutput `mapstructure:"redis"`
}

// RedisOutput configures the Redis stream sink. An empty Addr disables it.
type RedisOutput struct {
	Addr     string `mapstructure:"addr"`
	Stream   string `mapstructure:"stream"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	MaxLen   int64  `mapstructure:"max_len"`
}

// MonitorConfig configures the monitor HTTP server. An empty Addr disables it.
type MonitorConfig struct {
	Addr string `mapstructure:"addr"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

// SetDefaults registers every key with its default so that environment
// variables can override keys that appear in no config file.
func SetDefaults(v *viper.Viper) {
	workers := ingest.DefaultWorkers()

	v.SetDefault("input.log_path", "")
	v.SetDefault("input.format", DefaultFormat)
	v.SetDefault("input.time_format", logformat.DefaultTimePattern)
	v.SetDefault("input.start_timestamp", 0)
	v.SetDefault("input.parser_workers", workers)
	v.SetDefault("input.timeout", ingest.DefaultTimeout)

	v.SetDefault("target.destination_host", "")
	v.SetDefault("target.scheme", "http")
	v.SetDefault("target.connect_timeout", executor.DefaultConnectTimeout)
	v.SetDefault("target.read_timeout", executor.DefaultReadTimeout)
	v.SetDefault("target.insecure_skip_verify", false)
	v.SetDefault("target.close_after_first_byte", false)
	v.SetDefault("target.username", "")
	v.SetDefault("target.password", "")

	v.SetDefault("load.speed", 1.0)
	v.SetDefault("load.scale", 0.0)
	v.SetDefault("load.workers", workers)
	v.SetDefault("load.queue_capacity", pool.DefaultQueueCapacity)
	v.SetDefault("load.queue_policy", pool.PolicyCallerRuns.String())
	v.SetDefault("load.shutdown_grace", replay.DefaultShutdownGrace)
	v.SetDefault("load.methods", []string{})
	v.SetDefault("load.paths", []string{})
	v.SetDefault("load.after", "")
	v.SetDefault("load.before", "")

	v.SetDefault("output.result_file", "rhythm.log")
	v.SetDefault("output.write_to_file", true)
	v.SetDefault("output.console", false)
	v.SetDefault("output.format", string(recorder.FormatTSV))
	v.SetDefault("output.redis.addr", "")
	v.SetDefault("output.redis.stream", recorder.DefaultRedisStream)
	v.SetDefault("output.redis.password", "")
	v.SetDefault("output.redis.db", 0)
	v.SetDefault("output.redis.max_len", recorder.DefaultRedisMaxLen)

	v.SetDefault("monitor.addr", "")

	v.SetDefault("log.level", logging.LevelInfo)
	v.SetDefault("log.json", false)
}

// NewViper returns a viper instance with defaults and environment binding.
func NewViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Default returns the configuration with nothing but defaults applied.
func Default() Config {
	cfg, _ := Load(NewViper(), "")
	return cfg
}

// Load reads the optional config file at path into v and decodes the merged
// settings. Flags must already be bound to v.
func Load(v *viper.Viper, path string) (Config, error) {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		stringToTimeHook,
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&cfg, hook); err != nil {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}
	cfg.Load.Methods = splitList(cfg.Load.Methods)
	cfg.Load.Paths = splitList(cfg.Load.Paths)
	return cfg, nil
}

// stringToTimeHook decodes RFC 3339 strings into time.Time. An empty string
// is the zero time.
func stringToTimeHook(from, to reflect.Type, data any) (any, error) {
	if from.Kind() != reflect.String || to != reflect.TypeFor[time.Time]() {
		return data, nil
	}
	s := strings.TrimSpace(data.(string))
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, fmt.Errorf("time %q is not RFC 3339: %w", s, err)
	}
	return t, nil
}

// WriteExample writes the defaults to path; the extension picks the format.
func WriteExample(path string) error {
	v := viper.New()
	SetDefaults(v)
	v.Set("input.log_path", "/var/log/nginx/access.log")
	v.Set("target.destination_host", "http://localhost:8080")
	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing example config: %w", err)
	}
	return nil
}

// splitList flattens comma-separated items, which is how list values arrive
// from a single environment variable.
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
