package cli

import (
	"io"
	"os"

	"github.com/go-kit/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/SmitUplenchwar2687/rhythm/internal/config"
	"github.com/SmitUplenchwar2687/rhythm/internal/logging"
)

// app carries state shared by every subcommand of one invocation.
type app struct {
	v          *viper.Viper
	configPath string
	stdout     io.Writer
	stderr     io.Writer
}

// NewRootCmd creates the root rhythm command.
func NewRootCmd() *cobra.Command {
	a := &app{
		v:      config.NewViper(),
		stdout: os.Stdout,
		stderr: os.Stderr,
	}

	root := &cobra.Command{
		Use:   "rhythm",
		Short: "Replay HTTP access logs against a target with their original timing",
		Long: `Rhythm reads an access log, rebuilds the requests it describes and sends them
to a target host, keeping the original gaps between requests (optionally
sped up or scaled). Every attempt is recorded with its status and
time to first byte.

Settings come from flags, RHYTHM_* environment variables and an optional
config file, in that order of precedence.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			a.stdout = cmd.OutOrStdout()
			a.stderr = cmd.ErrOrStderr()
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&a.configPath, "config", "c", "", "config file (yaml, json or toml)")
	pf.String("log-level", logging.LevelInfo, "log level (none, error, warn, info, debug)")
	pf.Bool("log-json", false, "log as JSON instead of logfmt")
	a.v.BindPFlag("log.level", pf.Lookup("log-level"))
	a.v.BindPFlag("log.json", pf.Lookup("log-json"))

	root.AddCommand(
		newReplayCmd(a),
		newParseCmd(a),
		newGenerateCmd(a),
	)

	return root
}

// load binds the command's flags, reads the merged configuration and
// validates it, then builds the process logger from it.
func (a *app) load(flags *flagSet) (config.Config, log.Logger, error) {
	if err := flags.bind(a.v); err != nil {
		return config.Config{}, nil, phaseErr(phaseConfig, "binding flags", err)
	}
	cfg, err := config.Load(a.v, a.configPath)
	if err != nil {
		return config.Config{}, nil, phaseErr(phaseConfig, "loading", err)
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, nil, phaseErr(phaseConfig, "validating", err)
	}

	logger, err := logging.New(a.stderr, logging.Options{Level: cfg.Log.Level, JSON: cfg.Log.JSON})
	if err != nil {
		return config.Config{}, nil, phaseErr(phaseConfig, "creating logger", err)
	}
	return cfg, logger, nil
}
