package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/SmitUplenchwar2687/rhythm/internal/config"
	"github.com/SmitUplenchwar2687/rhythm/pkg/generate"
)

func newGenerateCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a sample access log or config file",
		Long: `Generates sample data for trying rhythm out.

Use "generate log" to write a synthetic access log in the default format.
Use "generate config" to write an example config file.`,
	}

	var (
		output string
		opts   = generate.DefaultOptions()
	)
	logCmd := &cobra.Command{
		Use:   "log",
		Short: "Generate a synthetic access log in the default format",
		Long: `Writes an access log with configurable traffic shape.

Patterns:
  steady    Evenly spaced requests
  burst     Four tight bursts with quiet periods between them
  ramp      Request rate grows towards the end`,
		Example: `  rhythm generate log --output access.log --count 500
  rhythm generate log --output burst.log --count 2000 --pattern burst --duration 10m --junk 20`,
		RunE: func(cmd *cobra.Command, args []string) error {
			lines, err := generate.Log(opts)
			if err != nil {
				return err
			}

			f, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("creating file: %w", err)
			}
			defer f.Close()

			if err := generate.Write(f, lines); err != nil {
				return fmt.Errorf("writing log: %w", err)
			}

			fmt.Fprintf(a.stdout, "Generated %d log lines to %s\n", len(lines), output)
			fmt.Fprintf(a.stdout, "  Pattern:  %s\n", opts.Pattern)
			fmt.Fprintf(a.stdout, "  Duration: %s\n", opts.Duration)
			fmt.Fprintf(a.stdout, "  Host:     %s\n", opts.Host)
			return nil
		},
	}
	logCmd.Flags().StringVar(&output, "output", "access.log", "output file path")
	logCmd.Flags().IntVar(&opts.Count, "count", opts.Count, "number of requests")
	logCmd.Flags().DurationVar(&opts.Duration, "duration", opts.Duration, "time span of the traffic")
	logCmd.Flags().StringVar(&opts.Pattern, "pattern", opts.Pattern, "traffic pattern (steady, burst, ramp)")
	logCmd.Flags().StringVar(&opts.Host, "host", opts.Host, "value of the destination host column")
	logCmd.Flags().IntVar(&opts.Junk, "junk", 0, "malformed lines to mix in")
	logCmd.Flags().Uint64Var(&opts.Seed, "seed", 0, "random seed (0 = time based)")

	var configOut string
	configCmd := &cobra.Command{
		Use:     "config",
		Short:   "Generate an example config file",
		Long:    "Writes every setting with its default value. The file extension picks the format (yaml, json, toml).",
		Example: `  rhythm generate config --output rhythm.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.WriteExample(configOut); err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "Generated example config at %s\n", configOut)
			return nil
		},
	}
	configCmd.Flags().StringVar(&configOut, "output", "rhythm.yaml", "output file path")

	cmd.AddCommand(logCmd, configCmd)
	return cmd
}
