package git

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"

	gogit "github.com/go-git/go-git/v5"
)

// Client implements Graph and Repo against a real repository. Graph
// queries go through go-git; mutations shell out to git, which keeps
// conflict handling and working-tree semantics identical to what the
// user sees in their own terminal.
type Client struct {
	// WorkDir is the working directory for git commands. If empty,
	// uses current directory.
	WorkDir string

	// Strategy is an optional merge strategy passed to cherry-pick
	// and merge invocations.
	Strategy string

	mu   sync.Mutex
	repo *gogit.Repository
}

// NewClient creates a new Client rooted at workDir.
func NewClient(workDir string) *Client {
	return &Client{WorkDir: workDir}
}

// open lazily opens the go-git repository handle.
func (c *Client) open() (*gogit.Repository, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.repo != nil {
		return c.repo, nil
	}

	dir := c.WorkDir
	if dir == "" {
		dir = "."
	}

	repo, err := gogit.PlainOpenWithOptions(dir, &gogit.PlainOpenOptions{
		DetectDotGit: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open repository: %w", err)
	}

	c.repo = repo

	return repo, nil
}

// run executes a git command and returns stdout.
func (c *Client) run(
	ctx context.Context, stdin io.Reader, args ...string,
) (string, error) {

	cmd := exec.CommandContext(ctx, "git", args...)
	if c.WorkDir != "" {
		cmd.Dir = c.WorkDir
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.Stdin = stdin

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf(
			"git %s failed: %w: %s",
			strings.Join(args, " "), err, stderr.String(),
		)
	}

	return stdout.String(), nil
}

// runEnv executes a git command with extra environment variables.
func (c *Client) runEnv(
	ctx context.Context, env []string, args ...string,
) (string, error) {

	cmd := exec.CommandContext(ctx, "git", args...)
	if c.WorkDir != "" {
		cmd.Dir = c.WorkDir
	}
	cmd.Env = append(cmd.Environ(), env...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf(
			"git %s failed: %w: %s",
			strings.Join(args, " "), err, stderr.String(),
		)
	}

	return stdout.String(), nil
}

// authorEnv converts a signature into GIT_AUTHOR_* variables. An empty
// signature yields nil, keeping git's own defaults.
func authorEnv(author Signature) []string {
	if author.Name == "" && author.Email == "" {
		return nil
	}

	env := []string{
		"GIT_AUTHOR_NAME=" + author.Name,
		"GIT_AUTHOR_EMAIL=" + author.Email,
	}
	if author.Date != "" {
		env = append(env, "GIT_AUTHOR_DATE="+author.Date)
	}

	return env
}

// Compile-time checks that Client implements both collaborator roles.
var (
	_ Graph = (*Client)(nil)
	_ Repo  = (*Client)(nil)
)
