package commands

import (
	"context"
	"errors"
	"io"

	"github.com/spf13/cobra"

	"github.com/roasbeef/replant/git"
	"github.com/roasbeef/replant/output"
	"github.com/roasbeef/replant/rebase"
)

// NewStatusCmd creates the status command.
func NewStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the state of the current session",
		Long: `Show the state of the current session: progress counters, the
next instruction, and any conflict awaiting resolution.

Use --json for machine-readable output.`,
		Example: `  # Check what the session is waiting on
  replant status

  # JSON output for tooling
  replant status --json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd.Context(), cmd.OutOrStdout())
		},
	}
}

func runStatus(ctx context.Context, w io.Writer) error {
	cfg := getConfig(ctx)
	client := git.NewClient(cfg.WorkDir)

	store, err := openStore(ctx, client)
	if err != nil {
		return err
	}

	sess, err := store.Load()
	if err != nil && !errors.Is(err, rebase.ErrNoSession) {
		return err
	}

	status := output.BuildStatus(sess)

	if cfg.JSONOut {
		return output.FormatStatusJSON(w, status)
	}

	return output.FormatStatusText(w, status)
}
