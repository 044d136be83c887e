package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roasbeef/replant/git"
	"github.com/roasbeef/replant/rebase"
)

// NewPlanCmd creates the plan command.
func NewPlanCmd() *cobra.Command {
	var opts startOptions

	cmd := &cobra.Command{
		Use:   "plan [UPSTREAM] [BRANCH]",
		Short: "Show the instruction list a start would execute",
		Long: `Compute and print the instruction list that 'replant start' with
the same arguments would execute, without creating a session or
touching the repository.`,
		Example: `  # See what would be replayed
  replant plan origin/main

  # As a JSON plan, editable and feedable back via --plan
  replant plan origin/main --json > plan.json`,
		Args: cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlan(
				cmd.Context(), cmd.OutOrStdout(), opts, args,
			)
		},
	}

	cmd.Flags().StringVar(
		&opts.onto, "onto", "",
		"base to replay onto (defaults to UPSTREAM)",
	)
	cmd.Flags().BoolVar(
		&opts.root, "root", false,
		"replay all commits down to the root (requires --onto)",
	)
	cmd.Flags().BoolVarP(
		&opts.preserve, "preserve-merges", "p", false,
		"recreate merge commits instead of linearizing",
	)

	return cmd
}

func runPlan(
	ctx context.Context, w io.Writer, opts startOptions, args []string,
) error {

	cfg := getConfig(ctx)
	client := git.NewClient(cfg.WorkDir)

	req, err := buildPlanRequest(ctx, client, opts, args)
	if err != nil {
		return err
	}

	sess, err := rebase.Plan(ctx, client, req)
	if err != nil {
		return err
	}

	if cfg.JSONOut {
		plan := rebase.PlanFile{}
		for _, entry := range sess.Todo {
			plan.Instructions = append(
				plan.Instructions, rebase.PlanInstruction{
					Command: entry.Command,
					Commit:  entry.Commit,
				},
			)
		}

		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")

		return enc.Encode(plan)
	}

	fmt.Fprint(w, rebase.FormatTodo(sess.Todo))

	return nil
}
