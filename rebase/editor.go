package rebase

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// ErrEditorAborted indicates the user's editor exited non-zero,
// cancelling the operation.
var ErrEditorAborted = errors.New("aborted by user editor")

// Editor presents text to the user for modification: the todo list
// before execution begins, and commit messages during squash runs.
type Editor interface {
	// EditTodo presents the todo list and returns the edited text.
	EditTodo(ctx context.Context, content string) (string, error)

	// EditMessage presents a commit message and returns the edited
	// text.
	EditMessage(ctx context.Context, content string) (string, error)
}

// ExecEditor launches the user's configured editor on a temp file,
// honoring GIT_SEQUENCE_EDITOR for the todo and GIT_EDITOR/EDITOR for
// messages.
type ExecEditor struct {
	// WorkDir is the directory the editor is launched in.
	WorkDir string
}

// EditTodo presents the todo list in the sequence editor.
func (e *ExecEditor) EditTodo(
	ctx context.Context, content string,
) (string, error) {

	editor := firstEnv("GIT_SEQUENCE_EDITOR", "GIT_EDITOR", "EDITOR")
	if editor == "" {
		editor = "vi"
	}

	return e.edit(ctx, editor, "replant-todo-*", content)
}

// EditMessage presents a commit message in the message editor.
func (e *ExecEditor) EditMessage(
	ctx context.Context, content string,
) (string, error) {

	editor := firstEnv("GIT_EDITOR", "EDITOR")
	if editor == "" {
		editor = "vi"
	}

	return e.edit(ctx, editor, "replant-msg-*", content)
}

// edit writes content to a temp file, runs the editor on it, and reads
// the result back.
func (e *ExecEditor) edit(
	ctx context.Context, editor, pattern, content string,
) (string, error) {

	tmp, err := os.CreateTemp("", pattern)
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	path := tmp.Name()
	defer os.Remove(path)

	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()

		return "", fmt.Errorf("failed to write temp file: %w", err)
	}
	tmp.Close()

	// The editor value is a shell fragment, same as git's own
	// handling of core.editor.
	cmd := exec.CommandContext(
		ctx, "sh", "-c", editor+" "+shellQuote(path),
	)
	cmd.Dir = e.WorkDir
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrEditorAborted, err)
	}

	edited, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read edited file: %w", err)
	}

	return string(edited), nil
}

// firstEnv returns the first non-empty environment variable.
func firstEnv(names ...string) string {
	for _, name := range names {
		if v := os.Getenv(name); v != "" {
			return v
		}
	}

	return ""
}

// shellQuote single-quotes a path for the editor shell fragment.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
