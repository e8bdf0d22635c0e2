package cli

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/SmitUplenchwar2687/rhythm/internal/clock"
	"github.com/SmitUplenchwar2687/rhythm/internal/ingest"
)

// ParseResult is the JSON output of the parse command.
type ParseResult struct {
	Stats   ingest.Stats    `json:"stats"`
	Entries []*ingest.Entry `json:"entries,omitempty"`
}

func newParseCmd(a *app) *cobra.Command {
	var (
		outputJSON bool
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "parse [log-file]",
		Short: "Parse an access log and show the replay schedule without sending anything",
		Long: `Runs only the ingestion step: every line is tokenized against the format
template, invalid lines are counted by reason, and the remaining entries
are sorted and given their replay delays.

Use it to check a format template or time pattern before a replay.`,
		Example: `  rhythm parse access.log
  rhythm parse access.log --format '"[$requestTime]" "$requestUrl" "$statusCode"' --host http://localhost
  rhythm parse access.log --json --limit 20`,
		Args: cobra.MaximumNArgs(1),
	}

	flags := newFlagSet(cmd)
	flags.addInputFlags()
	cmd.Flags().BoolVar(&outputJSON, "json", false, "print stats and entries as JSON")
	cmd.Flags().IntVar(&limit, "limit", 0, "entries to include in JSON output (0 = all)")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		if len(args) == 1 {
			a.v.Set("input.log_path", args[0])
		}
		cfg, logger, err := a.load(flags)
		if err != nil {
			return err
		}

		opts, err := cfg.IngestOptions(clock.NewRealClock(), logger)
		if err != nil {
			return phaseErr(phaseIngest, "building parser", err)
		}
		p, err := ingest.New(opts)
		if err != nil {
			return phaseErr(phaseIngest, "building parser", err)
		}
		entries, stats, err := p.Load(cmd.Context(), cfg.Input.LogPath)
		if err != nil {
			return phaseErr(phaseIngest, "reading "+cfg.Input.LogPath, err)
		}

		if outputJSON {
			if limit > 0 && limit < len(entries) {
				entries = entries[:limit]
			}
			enc := json.NewEncoder(a.stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(ParseResult{Stats: stats, Entries: entries})
		}

		printIngestStats(a.stdout, cfg.Input.LogPath, stats, entries)
		return nil
	}
	return cmd
}
