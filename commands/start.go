package commands

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/roasbeef/replant/git"
	"github.com/roasbeef/replant/rebase"
)

// startOptions are the flags of the start command.
type startOptions struct {
	onto     string
	root     bool
	preserve bool
	strategy string
	verbose  bool
	planFile string
	noEdit   bool
}

// NewStartCmd creates the start command.
func NewStartCmd() *cobra.Command {
	var opts startOptions

	cmd := &cobra.Command{
		Use:   "start [UPSTREAM] [BRANCH]",
		Short: "Start rewriting a range of commits onto a new base",
		Long: `Start a rewrite session.

Commits in UPSTREAM..HEAD (or all commits with --root) are planned as
an instruction list, presented in your editor for reordering, dropping,
editing, or squashing, and then replayed onto the new base.

The session is durable. If a commit conflicts, fix the files, stage
them, and run 'replant continue'. 'replant skip' drops the conflicted
commit; 'replant abort' restores the original branch.`,
		Example: `  # Replay local work onto the updated upstream
  replant start origin/main

  # Replay onto a different base, keeping merges
  replant start origin/main --onto release/1.2 --preserve-merges

  # Rewrite another branch without checking it out first
  replant start origin/main feature/login

  # Non-interactive, from a JSON plan
  replant start origin/main --plan plan.json`,
		Args: cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStart(
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
	cmd.Flags().StringVarP(
		&opts.strategy, "strategy", "s", "",
		"merge strategy for replaying commits",
	)
	cmd.Flags().BoolVarP(
		&opts.verbose, "verbose", "v", false,
		"print a progress line per replayed commit",
	)
	cmd.Flags().StringVar(
		&opts.planFile, "plan", "",
		"JSON plan file with the instruction list (use - for stdin)",
	)
	cmd.Flags().BoolVar(
		&opts.noEdit, "no-edit", false,
		"use the planned instruction list without opening an editor",
	)

	return cmd
}

func runStart(
	ctx context.Context, w io.Writer, opts startOptions, args []string,
) error {

	cfg := getConfig(ctx)
	client := git.NewClient(cfg.WorkDir)
	client.Strategy = opts.strategy

	store, err := openStore(ctx, client)
	if err != nil {
		return err
	}
	if store.Exists() {
		return rebase.ErrSessionExists
	}

	clean, err := client.IsClean(ctx)
	if err != nil {
		return err
	}
	if !clean {
		return rebase.ErrDirtyWorkTree
	}

	req, err := buildPlanRequest(ctx, client, opts, args)
	if err != nil {
		return err
	}

	sess, err := rebase.Plan(ctx, client, req)
	if err != nil {
		return err
	}

	if err := applyUserPlan(ctx, cfg, opts, sess); err != nil {
		return err
	}

	engine := rebase.NewEngine(client, client, store, sess)
	engine.SetOutput(w)
	engine.SetEditor(&rebase.ExecEditor{WorkDir: cfg.WorkDir})

	runErr := engine.Start(ctx)

	return reportOutcome(w, cfg, engine, store, runErr)
}

// buildPlanRequest resolves the command arguments into a plan request.
func buildPlanRequest(
	ctx context.Context, client *git.Client, opts startOptions,
	args []string,
) (rebase.PlanRequest, error) {

	var req rebase.PlanRequest

	req.Root = opts.root
	req.PreserveMerges = opts.preserve
	req.Strategy = opts.strategy
	req.Verbose = opts.verbose

	if opts.root {
		if len(args) > 1 {
			return req, fmt.Errorf("--root takes at most a BRANCH argument")
		}
		if opts.onto == "" {
			return req, fmt.Errorf("--root requires --onto")
		}
	} else {
		if len(args) < 1 {
			return req, fmt.Errorf("UPSTREAM is required (or use --root)")
		}

		upstream, err := client.Resolve(ctx, args[0])
		if err != nil {
			return req, &rebase.InvalidRefError{Rev: args[0], Err: err}
		}
		req.Upstream = upstream
	}

	ontoRev := opts.onto
	if ontoRev == "" {
		ontoRev = args[0]
	}
	onto, err := client.Resolve(ctx, ontoRev)
	if err != nil {
		return req, &rebase.InvalidRefError{Rev: ontoRev, Err: err}
	}
	req.Onto = onto

	// An explicit BRANCH argument rewrites that branch; otherwise the
	// current head is rewritten.
	branchArg := ""
	if !opts.root && len(args) > 1 {
		branchArg = args[1]
	} else if opts.root && len(args) == 1 {
		branchArg = args[0]
	}

	if branchArg != "" {
		head, err := client.Resolve(ctx, branchArg)
		if err != nil {
			return req, &rebase.InvalidRefError{Rev: branchArg, Err: err}
		}

		req.Head = head
		req.HeadRef = "refs/heads/" + branchArg

		return req, nil
	}

	head, err := client.Head(ctx)
	if err != nil {
		return req, err
	}
	req.Head = head

	headRef, err := client.SymbolicHead(ctx)
	if err != nil {
		return req, err
	}
	req.HeadRef = headRef

	return req, nil
}

// applyUserPlan replaces the planned todo with the user's version,
// from a JSON plan file or an editor round-trip. The planned todo is
// kept as the backup either way.
func applyUserPlan(
	ctx context.Context, cfg Config, opts startOptions,
	sess *rebase.Session,
) error {

	var entries []rebase.TodoEntry

	switch {
	case opts.planFile != "":
		var (
			data []byte
			err  error
		)
		if opts.planFile == "-" {
			data, err = io.ReadAll(os.Stdin)
		} else {
			data, err = os.ReadFile(opts.planFile)
		}
		if err != nil {
			return fmt.Errorf("failed to read plan file: %w", err)
		}

		entries, err = rebase.ParsePlanFile(data)
		if err != nil {
			return err
		}

	case opts.noEdit:
		return nil

	default:
		editor := &rebase.ExecEditor{WorkDir: cfg.WorkDir}

		edited, err := editor.EditTodo(
			ctx, rebase.FormatTodoForEdit(sess.Todo),
		)
		if err != nil {
			return err
		}

		entries, err = rebase.ParseTodo(edited)
		if err != nil {
			return err
		}
	}

	validated, err := rebase.ValidateTodo(entries, sess.Backup)
	if err != nil {
		return err
	}

	// Deleting every line still needs a representable session.
	if len(validated) == 0 {
		validated = []rebase.TodoEntry{{Command: rebase.CmdNoop}}
	}

	sess.Todo = validated

	return nil
}
