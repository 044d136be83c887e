package git

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-git/go-git/v5/plumbing"
)

// Head returns the current head commit id.
func (c *Client) Head(ctx context.Context) (OID, error) {
	output, err := c.run(ctx, nil, "rev-parse", "HEAD")
	if err != nil {
		return ZeroOID, err
	}

	return OID(strings.TrimSpace(output)), nil
}

// SymbolicHead returns the full ref name HEAD points at, or "" when
// detached.
func (c *Client) SymbolicHead(ctx context.Context) (string, error) {
	repo, err := c.open()
	if err != nil {
		return "", err
	}

	ref, err := repo.Reference(plumbing.HEAD, false)
	if err != nil {
		return "", fmt.Errorf("failed to read HEAD: %w", err)
	}

	if ref.Type() != plumbing.SymbolicReference {
		return "", nil
	}

	return ref.Target().String(), nil
}

// CherryPick replays commit c onto the current head.
func (c *Client) CherryPick(
	ctx context.Context, commit OID, opts CherryPickOptions,
) (OID, error) {

	args := []string{"cherry-pick"}
	if opts.NoCommit {
		args = append(args, "-n")
	}
	if opts.AllowEmpty {
		args = append(args, "--allow-empty", "--keep-redundant-commits")
	}
	if c.Strategy != "" {
		args = append(args, "--strategy", c.Strategy)
	}
	args = append(args, commit.String())

	if _, err := c.run(ctx, nil, args...); err != nil {
		if conflict, ok := c.conflictState(ctx, "cherry-pick"); ok {
			return ZeroOID, conflict
		}

		return ZeroOID, err
	}

	if opts.NoCommit {
		return ZeroOID, nil
	}

	return c.Head(ctx)
}

// Merge merges the given parents into the current head, reusing the
// supplied message and authorship.
func (c *Client) Merge(
	ctx context.Context, parents []OID, message string,
	author Signature,
) (OID, error) {

	args := []string{"merge", "--no-ff", "--no-edit", "-m", message}
	if c.Strategy != "" {
		args = append(args, "--strategy", c.Strategy)
	}
	for _, p := range parents {
		args = append(args, p.String())
	}

	if _, err := c.runEnv(ctx, authorEnv(author), args...); err != nil {
		if conflict, ok := c.conflictState(ctx, "merge"); ok {
			return ZeroOID, conflict
		}

		return ZeroOID, err
	}

	return c.Head(ctx)
}

// Commit records staged changes, optionally amending the head commit.
func (c *Client) Commit(
	ctx context.Context, message string, author Signature, amend bool,
) (OID, error) {

	args := []string{"commit", "--allow-empty", "-m", message}
	if amend {
		args = append(args, "--amend")
	}

	if _, err := c.runEnv(ctx, authorEnv(author), args...); err != nil {
		return ZeroOID, err
	}

	return c.Head(ctx)
}

// ResetHard moves head and working tree to the given commit.
func (c *Client) ResetHard(ctx context.Context, id OID) error {
	_, err := c.run(ctx, nil, "reset", "--hard", id.String())

	return err
}

// CancelReplay clears any half-finished cherry-pick or merge state
// without moving head.
func (c *Client) CancelReplay(ctx context.Context) error {
	// Both commands fail when their state file is absent, which is
	// fine: the goal is only that no sequencer state survives.
	_, _ = c.run(ctx, nil, "cherry-pick", "--quit")
	_, _ = c.run(ctx, nil, "merge", "--quit")

	return nil
}

// GitDir returns the absolute path of the repository's git directory.
func (c *Client) GitDir(ctx context.Context) (string, error) {
	output, err := c.run(ctx, nil, "rev-parse", "--absolute-git-dir")
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(output), nil
}

// CheckoutDetached detaches HEAD at the given commit.
func (c *Client) CheckoutDetached(ctx context.Context, id OID) error {
	_, err := c.run(ctx, nil, "checkout", "--detach", id.String())

	return err
}

// UpdateRef compare-and-sets a ref from old to new, relying on the ref
// store's atomic check-and-set.
func (c *Client) UpdateRef(
	ctx context.Context, name string, old, new OID,
) error {

	repo, err := c.open()
	if err != nil {
		return err
	}

	refName := plumbing.ReferenceName(name)
	newRef := plumbing.NewHashReference(
		refName, plumbing.NewHash(new.String()),
	)

	var oldRef *plumbing.Reference
	if !old.IsZero() {
		oldRef = plumbing.NewHashReference(
			refName, plumbing.NewHash(old.String()),
		)
	}

	if err := repo.Storer.CheckAndSetReference(newRef, oldRef); err != nil {
		return fmt.Errorf("%s: %w", name, ErrStaleRef)
	}

	return nil
}

// AttachHead points HEAD at the given branch ref without touching the
// working tree.
func (c *Client) AttachHead(ctx context.Context, refName string) error {
	_, err := c.run(ctx, nil, "symbolic-ref", "HEAD", refName)

	return err
}

// IsClean reports whether the working tree and index have no pending
// changes.
func (c *Client) IsClean(ctx context.Context) (bool, error) {
	output, err := c.run(ctx, nil, "status", "--porcelain")
	if err != nil {
		return false, err
	}

	return strings.TrimSpace(output) == "", nil
}

// HasStagedChanges reports whether the index differs from HEAD.
func (c *Client) HasStagedChanges(ctx context.Context) (bool, error) {
	output, err := c.run(ctx, nil, "status", "--porcelain")
	if err != nil {
		return false, err
	}

	for _, line := range strings.Split(output, "\n") {
		if len(line) < 2 {
			continue
		}

		if line[0] != ' ' && line[0] != '?' {
			return true, nil
		}
	}

	return false, nil
}

// Maintenance runs post-rewrite repository housekeeping.
func (c *Client) Maintenance(ctx context.Context) error {
	_, err := c.run(ctx, nil, "gc", "--auto")

	return err
}

// conflictState inspects the repository for unmerged paths after a
// failed replay, building a structured conflict report when found.
func (c *Client) conflictState(
	ctx context.Context, op string,
) (*ConflictError, bool) {

	output, err := c.run(
		ctx, nil, "diff", "--name-only", "--diff-filter=U",
	)
	if err != nil {
		return nil, false
	}

	var files []string
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			files = append(files, line)
		}
	}

	if len(files) == 0 {
		return nil, false
	}

	patch, err := c.run(ctx, nil, "diff", "--no-color")
	if err != nil {
		patch = ""
	}

	return &ConflictError{Op: op, Files: files, Patch: patch}, true
}
