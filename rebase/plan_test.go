package rebase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roasbeef/replant/git"
)

// TestPlanLinearFiltersRange verifies that linear planning lists the
// range oldest first, excluding merge commits and commits whose patch
// already landed upstream.
func TestPlanLinearFiltersRange(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := newFakeRepo()
	o := repo.add("oid-o", "base")
	u := repo.add("oid-u", "upstream work", o)
	x := repo.add("oid-x", "add x", o)
	s := repo.add("oid-s", "already upstream", o)
	m := repo.add("oid-m", "merge s", x, s)
	y := repo.add("oid-y", "add y", m)

	repo.equivalent[s] = true

	sess, err := Plan(ctx, repo, PlanRequest{
		Head:     y,
		Upstream: u,
		Onto:     u,
	})
	require.NoError(t, err)

	var commits []git.OID
	for _, entry := range sess.Todo {
		require.Equal(t, CmdPick, entry.Command)
		commits = append(commits, entry.Commit)
	}

	require.Equal(t, []git.OID{x, y}, commits)
	require.Equal(t, "add x", sess.Todo[0].Subject)
	require.Equal(t, sess.Todo, sess.Backup)
}

// TestPlanEmptyRangeIsNoop verifies that an empty range still produces
// a representable session.
func TestPlanEmptyRangeIsNoop(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := newFakeRepo()
	o := repo.add("oid-o", "base")

	sess, err := Plan(ctx, repo, PlanRequest{
		Head:     o,
		Upstream: o,
		Onto:     o,
	})
	require.NoError(t, err)

	require.Equal(t, []TodoEntry{{Command: CmdNoop}}, sess.Todo)
}

// TestPlanRootCoversAllAncestors verifies --root planning: a zero
// upstream walks the whole ancestry of head.
func TestPlanRootCoversAllAncestors(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := newFakeRepo()
	base := repo.add("oid-base", "elsewhere")
	o := repo.add("oid-o", "first")
	x := repo.add("oid-x", "second", o)

	sess, err := Plan(ctx, repo, PlanRequest{
		Head: x,
		Onto: base,
		Root: true,
	})
	require.NoError(t, err)

	var commits []git.OID
	for _, entry := range sess.Todo {
		commits = append(commits, entry.Commit)
	}
	require.Equal(t, []git.OID{o, x}, commits)
}

// TestPlanRootPreservingKeepsChain verifies merge-preserving planning
// from the root: descendants of a pending root commit are preserved
// too, even though the pending entry has no replacement id yet.
func TestPlanRootPreservingKeepsChain(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := newFakeRepo()
	base := repo.add("oid-base", "elsewhere")
	r := repo.add("oid-r", "first")
	c1 := repo.add("oid-c1", "second", r)
	c2 := repo.add("oid-c2", "third", c1)

	sess, err := Plan(ctx, repo, PlanRequest{
		Head:           c2,
		Onto:           base,
		Root:           true,
		PreserveMerges: true,
	})
	require.NoError(t, err)

	var commits []git.OID
	for _, entry := range sess.Todo {
		commits = append(commits, entry.Commit)
	}
	require.Equal(t, []git.OID{r, c1, c2}, commits)

	// The synthetic root key stands in for the replaced base.
	resolved, ok := sess.Rewrite.Resolved(RootKey)
	require.True(t, ok)
	require.Equal(t, base, resolved)
}

// TestPlanPreservingSeedsMaps verifies the merge-preserving planner:
// merge bases are pre-resolved to the new base, preserved commits are
// marked pending, and cherry-equivalent commits land in the drop map
// pointing at their surviving ancestor.
func TestPlanPreservingSeedsMaps(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := newFakeRepo()
	o := repo.add("oid-o", "base")
	u := repo.add("oid-u", "upstream work", o)
	n := repo.add("oid-n", "new base", u)
	a := repo.add("oid-a", "add a", o)
	b := repo.add("oid-b", "already upstream", a)
	c := repo.add("oid-c", "add c", o)
	m := repo.add("oid-m", "merge c", b, c)

	repo.equivalent[b] = true

	sess, err := Plan(ctx, repo, PlanRequest{
		Head:           m,
		Upstream:       u,
		Onto:           n,
		PreserveMerges: true,
	})
	require.NoError(t, err)

	// The merge base is pre-resolved to the new base.
	resolved, ok := sess.Rewrite.Resolved(o)
	require.True(t, ok)
	require.Equal(t, n, resolved)

	// b vanished into the drop map, routed to its surviving ancestor.
	require.Equal(t, a, sess.Drop[b])
	_, tracked := sess.Rewrite.Lookup(b)
	require.False(t, tracked)

	// The todo carries only the surviving commits.
	var commits []git.OID
	for _, entry := range sess.Todo {
		commits = append(commits, entry.Commit)
	}
	require.Equal(t, []git.OID{a, c, m}, commits)

	// Survivors are pending, not resolved.
	for _, id := range []git.OID{a, c, m} {
		_, tracked := sess.Rewrite.Lookup(id)
		require.True(t, tracked)
		_, done := sess.Rewrite.Resolved(id)
		require.False(t, done)
	}
}
