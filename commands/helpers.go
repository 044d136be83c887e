package commands

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/roasbeef/replant/git"
	"github.com/roasbeef/replant/output"
	"github.com/roasbeef/replant/rebase"
)

// openStore locates the session store for the repository the client
// points at.
func openStore(
	ctx context.Context, client *git.Client,
) (*rebase.FileStore, error) {

	gitDir, err := client.GitDir(ctx)
	if err != nil {
		return nil, err
	}

	return rebase.NewFileStore(gitDir), nil
}

// loadEngine loads the active session and builds an engine around it.
func loadEngine(
	ctx context.Context, cfg Config, w io.Writer,
) (*rebase.Engine, *rebase.FileStore, error) {

	client := git.NewClient(cfg.WorkDir)

	store, err := openStore(ctx, client)
	if err != nil {
		return nil, nil, err
	}

	sess, err := store.Load()
	if err != nil {
		return nil, nil, err
	}

	client.Strategy = sess.Strategy

	engine := rebase.NewEngine(client, client, store, sess)
	engine.SetOutput(w)
	engine.SetEditor(&rebase.ExecEditor{WorkDir: cfg.WorkDir})

	return engine, store, nil
}

// reportOutcome renders the result of running the engine: completion,
// a clean edit stop, or a conflict that suspended the session. The
// original error is returned for conflicts so the process exits
// non-zero.
func reportOutcome(
	w io.Writer, cfg Config, engine *rebase.Engine,
	store *rebase.FileStore, runErr error,
) error {

	var conflict *rebase.Conflict
	if errors.As(runErr, &conflict) {
		report := output.BuildConflict(conflict)

		if cfg.JSONOut {
			_ = output.FormatResultJSON(w, output.ResultOutput{
				Success:  false,
				Message:  conflict.Error(),
				State:    "conflicted",
				Conflict: report,
			})
		} else {
			output.FormatConflictText(w, report)
		}

		return runErr
	}
	if runErr != nil {
		return runErr
	}

	// No error: either the session completed, or it paused for an
	// edit.
	if store.Exists() && engine.Session().Stop == rebase.StopEdit {
		if cfg.JSONOut {
			return output.FormatResultJSON(w, output.ResultOutput{
				Success: true,
				Message: "Stopped for amending.",
				State:   "editing",
			})
		}

		fmt.Fprintln(w, "Stopped for amending. When you are done:")
		fmt.Fprintln(w, "  replant continue")

		return nil
	}

	if cfg.JSONOut {
		return output.FormatResultJSON(w, output.ResultOutput{
			Success: true,
			Message: "Rewrite completed successfully.",
			State:   "completed",
		})
	}

	fmt.Fprintln(w, "Rewrite completed successfully.")

	return nil
}
