package rebase

import (
	"errors"
	"fmt"

	"github.com/roasbeef/replant/git"
)

var (
	// ErrNoSession indicates no rewrite session is in progress.
	ErrNoSession = errors.New("no session in progress")

	// ErrSessionExists indicates a rewrite session is already in
	// progress in this repository.
	ErrSessionExists = errors.New("a session is already in progress")

	// ErrDirtyWorkTree indicates uncommitted changes block the
	// requested operation.
	ErrDirtyWorkTree = errors.New("working tree has uncommitted changes")

	// ErrAmendMismatch indicates the user moved head away from the
	// recorded edit anchor without committing their changes.
	ErrAmendMismatch = errors.New(
		"head does not match the edited commit; commit your changes first",
	)

	// ErrNothingStaged indicates continue was invoked mid-conflict
	// with nothing staged to record as the resolution.
	ErrNothingStaged = errors.New(
		"no resolution staged; stage the resolved files or use skip",
	)

	// ErrRefRejected indicates the final branch update lost a race
	// with another writer. The session is kept so the update can be
	// retried without replaying.
	ErrRefRejected = errors.New("branch moved during the session")
)

// InvalidRefError reports a revision that does not resolve.
type InvalidRefError struct {
	// Rev is the revision the user supplied.
	Rev string

	// Err is the underlying resolution failure.
	Err error
}

// Error implements error.
func (e *InvalidRefError) Error() string {
	return fmt.Sprintf("invalid revision %q: %v", e.Rev, e.Err)
}

// Unwrap exposes the underlying error.
func (e *InvalidRefError) Unwrap() error {
	return e.Err
}

// MalformedTodoError reports an unusable todo list, typically after a
// user edit referencing an unknown command or commit.
type MalformedTodoError struct {
	// Line is the 1-based todo line, or 0 when unknown.
	Line int

	// Reason describes what was wrong.
	Reason string
}

// Error implements error.
func (e *MalformedTodoError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("malformed todo line %d: %s", e.Line, e.Reason)
	}

	return fmt.Sprintf("malformed todo: %s", e.Reason)
}

// Conflict reports a content conflict that suspended the session. It
// is recoverable: the user resolves the files, then continues or
// skips.
type Conflict struct {
	// Command is the todo command that was being executed.
	Command Command

	// Commit is the commit that failed to replay.
	Commit git.OID

	// Subject is the commit's subject line, for human review.
	Subject string

	// Files lists the conflicted paths.
	Files []string

	// Patch is the unified diff of the conflicted state, staged for
	// user resolution.
	Patch string
}

// Error implements error.
func (c *Conflict) Error() string {
	return fmt.Sprintf(
		"could not apply %s... %s", c.Commit.Short(), c.Subject,
	)
}
