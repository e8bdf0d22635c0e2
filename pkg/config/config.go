package config

import (
	"github.com/spf13/viper"

	internalconfig "github.com/SmitUplenchwar2687/rhythm/internal/config"
)

// Config is the top-level configuration for a rhythm run.
type Config = internalconfig.Config

// InputConfig describes the access log and how to parse it.
type InputConfig = internalconfig.InputConfig

// TargetConfig describes where requests are replayed to.
type TargetConfig = internalconfig.TargetConfig

// LoadConfig holds speed, scaling and worker pool settings.
type LoadConfig = internalconfig.LoadConfig

// OutputConfig selects the result sinks.
type OutputConfig = internalconfig.OutputConfig

// DefaultFormat is the default access log format template.
const DefaultFormat = internalconfig.DefaultFormat

// ErrInvalid is wrapped by every validation error.
var ErrInvalid = internalconfig.ErrInvalid

// Default returns a Config with sensible defaults.
func Default() Config {
	return internalconfig.Default()
}

// NewViper returns a viper instance with rhythm's defaults and environment
// bindings applied.
func NewViper() *viper.Viper {
	return internalconfig.NewViper()
}

// Load reads an optional config file into v and decodes the result.
func Load(v *viper.Viper, path string) (Config, error) {
	return internalconfig.Load(v, path)
}

// WriteExample writes an example config file to the given path.
func WriteExample(path string) error {
	return internalconfig.WriteExample(path)
}
