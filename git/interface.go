// Package git provides the repository collaborators consumed by the
// replay core: read-only commit graph queries and the mutating replay
// primitives. This enables testing the core without actual git
// repositories.
package git

import (
	"context"
	"fmt"
	"strings"
)

// OID is a commit object id in hex form. The zero value means "unset".
type OID string

// ZeroOID is the absent commit id.
const ZeroOID OID = ""

// IsZero reports whether the id is unset.
func (o OID) IsZero() bool {
	return o == ZeroOID
}

// Short returns the abbreviated form used in human-facing output.
func (o OID) Short() string {
	if len(o) > 7 {
		return string(o[:7])
	}

	return string(o)
}

// String returns the full hex id.
func (o OID) String() string {
	return string(o)
}

// Signature is commit authorship metadata.
type Signature struct {
	// Name is the author name.
	Name string

	// Email is the author email.
	Email string

	// Date is the author date in git's internal format.
	Date string
}

// Graph is the read-only view of the commit DAG.
type Graph interface {
	// Resolve resolves a revision (ref name, hash prefix, HEAD) to a
	// commit id.
	Resolve(ctx context.Context, rev string) (OID, error)

	// Parents returns the parent ids of a commit, first parent first.
	Parents(ctx context.Context, id OID) ([]OID, error)

	// Message returns the full commit message.
	Message(ctx context.Context, id OID) (string, error)

	// Authorship returns the author signature of a commit.
	Authorship(ctx context.Context, id OID) (Signature, error)

	// MergeBases returns the best common ancestors of a and b.
	MergeBases(ctx context.Context, a, b OID) ([]OID, error)

	// IsAncestor reports whether a is an ancestor of b.
	IsAncestor(ctx context.Context, a, b OID) (bool, error)

	// CherryEquivalent returns the commits in upstream..head whose
	// patch is already present upstream (same patch id, different
	// identity).
	CherryEquivalent(ctx context.Context, upstream, head OID) (
		map[OID]bool, error)

	// TopoOrder lists upstream..head oldest-first in topological
	// order. A zero upstream walks all ancestors of head down to the
	// root. With firstParent set, only the first-parent chain is
	// followed.
	TopoOrder(ctx context.Context, upstream, head OID,
		firstParent bool) ([]OID, error)
}

// CherryPickOptions tweaks a single-commit replay.
type CherryPickOptions struct {
	// NoCommit stages the changes without creating a commit.
	NoCommit bool

	// AllowEmpty keeps commits that become empty after replay instead
	// of failing.
	AllowEmpty bool
}

// Repo is the mutating replay primitive plus reference updates.
type Repo interface {
	// Head returns the current head commit id.
	Head(ctx context.Context) (OID, error)

	// SymbolicHead returns the full ref name HEAD points at, or ""
	// when detached.
	SymbolicHead(ctx context.Context) (string, error)

	// CherryPick replays commit c onto the current head. Returns the
	// new head id, or ZeroOID when NoCommit is set. A content
	// conflict is returned as *ConflictError with the working tree
	// left in the conflicted state for manual resolution.
	CherryPick(ctx context.Context, c OID,
		opts CherryPickOptions) (OID, error)

	// Merge merges the given parents into the current head, reusing
	// the supplied message and authorship. A conflict is returned as
	// *ConflictError.
	Merge(ctx context.Context, parents []OID, message string,
		author Signature) (OID, error)

	// Commit records staged changes. With amend, replaces the current
	// head commit. An empty author keeps the default.
	Commit(ctx context.Context, message string, author Signature,
		amend bool) (OID, error)

	// ResetHard moves head and working tree to the given commit.
	ResetHard(ctx context.Context, id OID) error

	// CancelReplay clears any half-finished cherry-pick or merge
	// state without moving head. Safe to call when no replay is in
	// flight.
	CancelReplay(ctx context.Context) error

	// CheckoutDetached detaches HEAD at the given commit.
	CheckoutDetached(ctx context.Context, id OID) error

	// UpdateRef compare-and-sets a ref from old to new. Returns
	// ErrStaleRef when the ref no longer points at old.
	UpdateRef(ctx context.Context, name string, old, new OID) error

	// AttachHead points HEAD at the given branch ref without touching
	// the working tree.
	AttachHead(ctx context.Context, refName string) error

	// IsClean reports whether the working tree and index have no
	// pending changes.
	IsClean(ctx context.Context) (bool, error)

	// HasStagedChanges reports whether the index differs from HEAD.
	HasStagedChanges(ctx context.Context) (bool, error)

	// Maintenance runs post-rewrite repository housekeeping.
	Maintenance(ctx context.Context) error
}

// ErrStaleRef is returned by UpdateRef when the compare-and-set old
// value no longer matches.
var ErrStaleRef = fmt.Errorf("ref changed by another writer")

// ConflictError reports a content conflict from CherryPick or Merge.
// The working tree is left mid-operation so the user can resolve it.
type ConflictError struct {
	// Op is the operation that conflicted ("cherry-pick" or "merge").
	Op string

	// Files lists the paths with conflict markers.
	Files []string

	// Patch is the unified diff of the conflicted state, suitable for
	// review or tooling.
	Patch string
}

// Error implements error.
func (e *ConflictError) Error() string {
	if len(e.Files) == 0 {
		return fmt.Sprintf("%s conflict", e.Op)
	}

	return fmt.Sprintf(
		"%s conflict in %s", e.Op, strings.Join(e.Files, ", "),
	)
}
