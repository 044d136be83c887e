// Package testutil provides test helpers for git repository testing.
package testutil

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// GitTestRepo creates a temporary git repository for testing.
type GitTestRepo struct {
	t   *testing.T
	Dir string

	// ticks counts git invocations so each commit gets a distinct,
	// deterministic timestamp. Without this, a cherry-pick of a
	// commit onto its own parent within the same second produces a
	// byte-identical object with the same sha.
	ticks int
}

// NewGitTestRepo creates a new test repo with git initialized.
func NewGitTestRepo(t *testing.T) *GitTestRepo {
	t.Helper()

	dir, err := os.MkdirTemp("", "replant-test-*")
	require.NoError(t, err)

	repo := &GitTestRepo{t: t, Dir: dir}
	t.Cleanup(repo.cleanup)

	// Initialize git repo with basic config.
	repo.Git("init", "-b", "main")
	repo.Git("config", "user.email", "test@test.com")
	repo.Git("config", "user.name", "Test User")

	return repo
}

func (r *GitTestRepo) cleanup() {
	os.RemoveAll(r.Dir)
}

// dateEnv returns GIT_AUTHOR_DATE/GIT_COMMITTER_DATE values that
// advance by one second per git invocation, from a fixed epoch.
func (r *GitTestRepo) dateEnv() []string {
	r.ticks++
	date := fmt.Sprintf("%d +0000", 1234567890+r.ticks)

	return []string{
		"GIT_AUTHOR_DATE=" + date,
		"GIT_COMMITTER_DATE=" + date,
	}
}

// Git runs a git command in the test repo.
func (r *GitTestRepo) Git(args ...string) string {
	r.t.Helper()

	cmd := exec.Command("git", args...)
	cmd.Dir = r.Dir
	cmd.Env = append(cmd.Environ(), r.dateEnv()...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		r.t.Fatalf("git %v failed: %v\n%s", args, err, out)
	}

	return string(out)
}

// GitMayFail runs a git command that may fail, returning the error.
func (r *GitTestRepo) GitMayFail(args ...string) (string, error) {
	r.t.Helper()

	cmd := exec.Command("git", args...)
	cmd.Dir = r.Dir
	cmd.Env = append(cmd.Environ(), r.dateEnv()...)
	out, err := cmd.CombinedOutput()

	return string(out), err
}

// WriteFile creates or overwrites a file in the repo.
func (r *GitTestRepo) WriteFile(path, content string) {
	r.t.Helper()

	fullPath := filepath.Join(r.Dir, path)
	dir := filepath.Dir(fullPath)

	err := os.MkdirAll(dir, 0755)
	require.NoError(r.t, err)

	err = os.WriteFile(fullPath, []byte(content), 0644)
	require.NoError(r.t, err)
}

// ReadFile reads a file from the repo.
func (r *GitTestRepo) ReadFile(path string) string {
	r.t.Helper()

	data, err := os.ReadFile(filepath.Join(r.Dir, path))
	require.NoError(r.t, err)

	return string(data)
}

// FileExists checks if a file exists in the repo.
func (r *GitTestRepo) FileExists(path string) bool {
	r.t.Helper()

	_, err := os.Stat(filepath.Join(r.Dir, path))

	return err == nil
}

// CommitAll stages and commits all changes, returning the new head sha.
func (r *GitTestRepo) CommitAll(msg string) string {
	r.t.Helper()

	r.Git("add", "-A")
	r.Git("commit", "-m", msg)

	return r.HeadSHA()
}

// CommitFile writes a file, stages it, and commits it in one step.
func (r *GitTestRepo) CommitFile(path, content, msg string) string {
	r.t.Helper()

	r.WriteFile(path, content)

	return r.CommitAll(msg)
}

// StageFile stages a specific file.
func (r *GitTestRepo) StageFile(path string) {
	r.t.Helper()

	r.Git("add", path)
}

// HeadSHA returns the current head commit sha.
func (r *GitTestRepo) HeadSHA() string {
	r.t.Helper()

	return strings.TrimSpace(r.Git("rev-parse", "HEAD"))
}

// RevParse resolves a revision to a full sha.
func (r *GitTestRepo) RevParse(rev string) string {
	r.t.Helper()

	return strings.TrimSpace(r.Git("rev-parse", rev+"^{commit}"))
}

// Branch creates a branch at the current head and checks it out.
func (r *GitTestRepo) Branch(name string) {
	r.t.Helper()

	r.Git("checkout", "-b", name)
}

// Checkout switches to an existing branch or commit.
func (r *GitTestRepo) Checkout(rev string) {
	r.t.Helper()

	r.Git("checkout", rev)
}

// Merge merges the given revision into the current branch with a merge
// commit, returning the new head sha.
func (r *GitTestRepo) Merge(rev, msg string) string {
	r.t.Helper()

	r.Git("merge", "--no-ff", "-m", msg, rev)

	return r.HeadSHA()
}

// CurrentBranch returns the symbolic name of the checked-out branch.
func (r *GitTestRepo) CurrentBranch() string {
	r.t.Helper()

	return strings.TrimSpace(r.Git("rev-parse", "--abbrev-ref", "HEAD"))
}

// Log returns the one-line subjects of rev's history, newest first.
func (r *GitTestRepo) Log(rev string) []string {
	r.t.Helper()

	out := strings.TrimSpace(r.Git("log", "--format=%s", rev))
	if out == "" {
		return nil
	}

	return strings.Split(out, "\n")
}

// MessageOf returns the full commit message of a revision.
func (r *GitTestRepo) MessageOf(rev string) string {
	r.t.Helper()

	return r.Git("log", "-1", "--format=%B", rev)
}

// ParentsOf returns the parent shas of a revision.
func (r *GitTestRepo) ParentsOf(rev string) []string {
	r.t.Helper()

	out := strings.TrimSpace(r.Git(
		"rev-list", "--parents", "-n", "1", rev,
	))
	fields := strings.Fields(out)
	if len(fields) <= 1 {
		return nil
	}

	return fields[1:]
}
