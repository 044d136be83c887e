package git

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roasbeef/replant/testutil"
)

// TestGraphReads exercises the go-git-backed graph queries against a
// real repository.
func TestGraphReads(t *testing.T) {
	t.Parallel()

	repo := testutil.NewGitTestRepo(t)
	c1 := repo.CommitFile("a.txt", "one\n", "first commit")
	c2 := repo.CommitFile("b.txt", "two\n", "second commit")

	ctx := context.Background()
	client := NewClient(repo.Dir)

	head, err := client.Head(ctx)
	require.NoError(t, err)
	require.Equal(t, OID(c2), head)

	resolved, err := client.Resolve(ctx, "HEAD")
	require.NoError(t, err)
	require.Equal(t, OID(c2), resolved)

	_, err = client.Resolve(ctx, "no-such-ref")
	require.Error(t, err)

	parents, err := client.Parents(ctx, OID(c2))
	require.NoError(t, err)
	require.Equal(t, []OID{OID(c1)}, parents)

	msg, err := client.Message(ctx, OID(c1))
	require.NoError(t, err)
	require.Contains(t, msg, "first commit")

	author, err := client.Authorship(ctx, OID(c1))
	require.NoError(t, err)
	require.Equal(t, "Test User", author.Name)
	require.Equal(t, "test@test.com", author.Email)
	require.NotEmpty(t, author.Date)

	ancestor, err := client.IsAncestor(ctx, OID(c1), OID(c2))
	require.NoError(t, err)
	require.True(t, ancestor)

	ancestor, err = client.IsAncestor(ctx, OID(c2), OID(c1))
	require.NoError(t, err)
	require.False(t, ancestor)

	ref, err := client.SymbolicHead(ctx)
	require.NoError(t, err)
	require.Equal(t, "refs/heads/main", ref)
}

// TestMergeBases verifies merge base computation across a fork.
func TestMergeBases(t *testing.T) {
	t.Parallel()

	repo := testutil.NewGitTestRepo(t)
	base := repo.CommitFile("a.txt", "one\n", "base")

	repo.Branch("feature")
	feat := repo.CommitFile("f.txt", "feat\n", "feature work")

	repo.Checkout("main")
	main := repo.CommitFile("m.txt", "main\n", "main work")

	ctx := context.Background()
	client := NewClient(repo.Dir)

	bases, err := client.MergeBases(ctx, OID(feat), OID(main))
	require.NoError(t, err)
	require.Equal(t, []OID{OID(base)}, bases)
}

// TestTopoOrderAndCherryEquivalent verifies range listing and patch-id
// equivalence detection: a commit cherry-picked to the upstream is
// flagged even though its id in the range differs.
func TestTopoOrderAndCherryEquivalent(t *testing.T) {
	t.Parallel()

	repo := testutil.NewGitTestRepo(t)
	repo.CommitFile("a.txt", "one\n", "base")

	repo.Branch("feature")
	f1 := repo.CommitFile("f1.txt", "f1\n", "feature one")
	f2 := repo.CommitFile("f2.txt", "f2\n", "feature two")

	repo.Checkout("main")
	repo.Git("cherry-pick", f1)
	upstream := repo.HeadSHA()

	ctx := context.Background()
	client := NewClient(repo.Dir)

	order, err := client.TopoOrder(
		ctx, OID(upstream), OID(f2), false,
	)
	require.NoError(t, err)
	require.Equal(t, []OID{OID(f1), OID(f2)}, order)

	equivalent, err := client.CherryEquivalent(
		ctx, OID(upstream), OID(f2),
	)
	require.NoError(t, err)
	require.True(t, equivalent[OID(f1)])
	require.False(t, equivalent[OID(f2)])
}

// TestTopoOrderFirstParent verifies that the first-parent walk skips
// side-branch commits.
func TestTopoOrderFirstParent(t *testing.T) {
	t.Parallel()

	repo := testutil.NewGitTestRepo(t)
	base := repo.CommitFile("a.txt", "one\n", "base")

	repo.Branch("side")
	side := repo.CommitFile("s.txt", "s\n", "side work")

	repo.Checkout("main")
	m1 := repo.CommitFile("m.txt", "m\n", "main work")
	merge := repo.Merge("side", "merge side")

	ctx := context.Background()
	client := NewClient(repo.Dir)

	order, err := client.TopoOrder(
		ctx, OID(base), OID(merge), true,
	)
	require.NoError(t, err)
	require.Equal(t, []OID{OID(m1), OID(merge)}, order)

	full, err := client.TopoOrder(
		ctx, OID(base), OID(merge), false,
	)
	require.NoError(t, err)
	require.Contains(t, full, OID(side))
}

// TestCherryPickApplies verifies a clean single-commit replay onto a
// detached head.
func TestCherryPickApplies(t *testing.T) {
	t.Parallel()

	repo := testutil.NewGitTestRepo(t)
	base := repo.CommitFile("a.txt", "one\n", "base")

	repo.Branch("feature")
	feat := repo.CommitFile("f.txt", "feat\n", "feature work")

	ctx := context.Background()
	client := NewClient(repo.Dir)

	require.NoError(t, client.CheckoutDetached(ctx, OID(base)))

	newID, err := client.CherryPick(ctx, OID(feat), CherryPickOptions{
		AllowEmpty: true,
	})
	require.NoError(t, err)
	require.NotEqual(t, OID(feat), newID)

	msg, err := client.Message(ctx, newID)
	require.NoError(t, err)
	require.Contains(t, msg, "feature work")
	require.Equal(t, "feat\n", repo.ReadFile("f.txt"))
}

// TestCherryPickConflict verifies that an overlapping change surfaces
// as a structured conflict with the offending path, and that
// CancelReplay clears the sequencer state.
func TestCherryPickConflict(t *testing.T) {
	t.Parallel()

	repo := testutil.NewGitTestRepo(t)
	repo.CommitFile("file.txt", "base\n", "base")

	repo.Branch("side")
	side := repo.CommitFile("file.txt", "side\n", "side change")

	repo.Checkout("main")
	main := repo.CommitFile("file.txt", "main\n", "main change")

	ctx := context.Background()
	client := NewClient(repo.Dir)

	_, err := client.CherryPick(ctx, OID(side), CherryPickOptions{})

	var conflict *ConflictError
	require.ErrorAs(t, err, &conflict)
	require.Equal(t, "cherry-pick", conflict.Op)
	require.Equal(t, []string{"file.txt"}, conflict.Files)
	require.NotEmpty(t, conflict.Patch)

	require.NoError(t, client.CancelReplay(ctx))
	require.NoError(t, client.ResetHard(ctx, OID(main)))

	clean, err := client.IsClean(ctx)
	require.NoError(t, err)
	require.True(t, clean)
}

// TestCommitStagedChanges verifies index inspection and commit
// creation with explicit authorship.
func TestCommitStagedChanges(t *testing.T) {
	t.Parallel()

	repo := testutil.NewGitTestRepo(t)
	repo.CommitFile("a.txt", "one\n", "base")

	ctx := context.Background()
	client := NewClient(repo.Dir)

	staged, err := client.HasStagedChanges(ctx)
	require.NoError(t, err)
	require.False(t, staged)

	repo.WriteFile("a.txt", "changed\n")

	clean, err := client.IsClean(ctx)
	require.NoError(t, err)
	require.False(t, clean)

	staged, err = client.HasStagedChanges(ctx)
	require.NoError(t, err)
	require.False(t, staged)

	repo.StageFile("a.txt")

	staged, err = client.HasStagedChanges(ctx)
	require.NoError(t, err)
	require.True(t, staged)

	newID, err := client.Commit(ctx, "resolved change", Signature{
		Name:  "Original Author",
		Email: "orig@test.com",
	}, false)
	require.NoError(t, err)
	require.Equal(t, string(newID), repo.HeadSHA())

	author, err := client.Authorship(ctx, newID)
	require.NoError(t, err)
	require.Equal(t, "Original Author", author.Name)
	require.Equal(t, "orig@test.com", author.Email)
}

// TestCommitAmend verifies that amending replaces the head commit.
func TestCommitAmend(t *testing.T) {
	t.Parallel()

	repo := testutil.NewGitTestRepo(t)
	base := repo.CommitFile("a.txt", "one\n", "base")
	repo.CommitFile("b.txt", "two\n", "to be amended")

	ctx := context.Background()
	client := NewClient(repo.Dir)

	repo.WriteFile("b.txt", "two plus\n")
	repo.StageFile("b.txt")

	newID, err := client.Commit(ctx, "amended", Signature{}, true)
	require.NoError(t, err)

	parents, err := client.Parents(ctx, newID)
	require.NoError(t, err)
	require.Equal(t, []OID{OID(base)}, parents)

	msg, err := client.Message(ctx, newID)
	require.NoError(t, err)
	require.Contains(t, msg, "amended")
}

// TestUpdateRefCAS verifies the compare-and-set ref update: a stale
// old value is rejected, a matching one moves the ref.
func TestUpdateRefCAS(t *testing.T) {
	t.Parallel()

	repo := testutil.NewGitTestRepo(t)
	c1 := repo.CommitFile("a.txt", "one\n", "first")
	c2 := repo.CommitFile("b.txt", "two\n", "second")

	ctx := context.Background()
	client := NewClient(repo.Dir)

	err := client.UpdateRef(ctx, "refs/heads/main", OID(c1), OID(c1))
	require.ErrorIs(t, err, ErrStaleRef)
	require.Equal(t, c2, repo.RevParse("refs/heads/main"))

	err = client.UpdateRef(ctx, "refs/heads/main", OID(c2), OID(c1))
	require.NoError(t, err)
	require.Equal(t, c1, repo.RevParse("refs/heads/main"))
}

// TestDetachAndAttach verifies the head attachment round trip used
// during a session's lifetime.
func TestDetachAndAttach(t *testing.T) {
	t.Parallel()

	repo := testutil.NewGitTestRepo(t)
	c1 := repo.CommitFile("a.txt", "one\n", "first")
	repo.CommitFile("b.txt", "two\n", "second")

	ctx := context.Background()
	client := NewClient(repo.Dir)

	require.NoError(t, client.CheckoutDetached(ctx, OID(c1)))

	ref, err := client.SymbolicHead(ctx)
	require.NoError(t, err)
	require.Empty(t, ref)

	require.NoError(t, client.AttachHead(ctx, "refs/heads/main"))

	ref, err = client.SymbolicHead(ctx)
	require.NoError(t, err)
	require.Equal(t, "refs/heads/main", ref)
}

// TestGitDir verifies git-dir discovery from the work tree.
func TestGitDir(t *testing.T) {
	t.Parallel()

	repo := testutil.NewGitTestRepo(t)
	repo.CommitFile("a.txt", "one\n", "base")

	client := NewClient(repo.Dir)

	dir, err := client.GitDir(context.Background())
	require.NoError(t, err)
	require.Contains(t, dir, ".git")
}
