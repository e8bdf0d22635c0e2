package cli

import (
	"github.com/spf13/cobra"

	internalcli "github.com/SmitUplenchwar2687/rhythm/internal/cli"
)

// NewRootCmd creates the public rhythm root command for embedding.
func NewRootCmd() *cobra.Command {
	return internalcli.NewRootCmd()
}
