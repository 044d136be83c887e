package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version is the current release, overridable at link time.
var Version = "0.1.0"

// NewVersionCmd creates the version command.
func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), "replant", Version)

			return nil
		},
	}
}
