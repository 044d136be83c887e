package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/roasbeef/replant/output"
)

// NewContinueCmd creates the continue command.
func NewContinueCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "continue",
		Short: "Resume a suspended session",
		Long: `Resume a session suspended by a conflict or an edit stop.

After a conflict:
  1. Resolve the conflicts in the affected files
  2. Stage the resolved files with 'git add <file>'

After an edit stop, amend the commit (or leave it as-is) and continue.`,
		Example: `  # After resolving conflicts
  git add resolved-file.go
  replant continue`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runContinue(cmd.Context(), cmd.OutOrStdout())
		},
	}
}

// NewSkipCmd creates the skip command.
func NewSkipCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "skip",
		Short: "Drop the conflicted commit and resume",
		Long: `Discard the failed attempt's changes and drop the conflicted
commit from the rewritten history, then resume with the next entry.`,
		Example: `  # Give up on the conflicting commit
  replant skip`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSkip(cmd.Context(), cmd.OutOrStdout())
		},
	}
}

// NewAbortCmd creates the abort command.
func NewAbortCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "abort",
		Short: "Abort the session and restore the original branch",
		Long: `Abort the current session.

All progress is discarded and the branch is restored to exactly the
state recorded when the session started.`,
		Example: `  # Abort without a confirmation prompt
  replant abort --force`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runAbort(cmd.Context(), cmd.OutOrStdout(), force)
		},
	}

	cmd.Flags().BoolVarP(
		&force, "force", "f", false,
		"skip the confirmation prompt",
	)

	return cmd
}

func runContinue(ctx context.Context, w io.Writer) error {
	cfg := getConfig(ctx)

	engine, store, err := loadEngine(ctx, cfg, w)
	if err != nil {
		return err
	}

	runErr := engine.Continue(ctx)

	return reportOutcome(w, cfg, engine, store, runErr)
}

func runSkip(ctx context.Context, w io.Writer) error {
	cfg := getConfig(ctx)

	engine, store, err := loadEngine(ctx, cfg, w)
	if err != nil {
		return err
	}

	runErr := engine.Skip(ctx)

	return reportOutcome(w, cfg, engine, store, runErr)
}

func runAbort(ctx context.Context, w io.Writer, force bool) error {
	cfg := getConfig(ctx)

	engine, _, err := loadEngine(ctx, cfg, w)
	if err != nil {
		return err
	}

	if !force && !cfg.JSONOut {
		done := len(engine.Session().Done)

		confirmed := false
		prompt := huh.NewConfirm().
			Title(fmt.Sprintf(
				"Abort and discard %d replayed commits?", done,
			)).
			Value(&confirmed)
		if err := prompt.Run(); err != nil {
			return err
		}

		if !confirmed {
			fmt.Fprintln(w, "Abort cancelled.")

			return nil
		}
	}

	if err := engine.Abort(ctx); err != nil {
		return err
	}

	if cfg.JSONOut {
		return output.FormatResultJSON(w, output.ResultOutput{
			Success: true,
			Message: "Session aborted. Branch restored to original state.",
			State:   "aborted",
		})
	}

	fmt.Fprintln(w, "Session aborted. Branch restored to original state.")

	return nil
}
