package git

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// Resolve resolves a revision to a commit id.
func (c *Client) Resolve(ctx context.Context, rev string) (OID, error) {
	repo, err := c.open()
	if err != nil {
		return ZeroOID, err
	}

	hash, err := repo.ResolveRevision(plumbing.Revision(rev))
	if err != nil {
		return ZeroOID, fmt.Errorf(
			"failed to resolve %q: %w", rev, err,
		)
	}

	return OID(hash.String()), nil
}

// commitObject loads the commit object for an id.
func (c *Client) commitObject(id OID) (*object.Commit, error) {
	repo, err := c.open()
	if err != nil {
		return nil, err
	}

	commit, err := repo.CommitObject(plumbing.NewHash(string(id)))
	if err != nil {
		return nil, fmt.Errorf(
			"failed to load commit %s: %w", id.Short(), err,
		)
	}

	return commit, nil
}

// Parents returns the parent ids of a commit, first parent first.
func (c *Client) Parents(ctx context.Context, id OID) ([]OID, error) {
	commit, err := c.commitObject(id)
	if err != nil {
		return nil, err
	}

	parents := make([]OID, 0, len(commit.ParentHashes))
	for _, h := range commit.ParentHashes {
		parents = append(parents, OID(h.String()))
	}

	return parents, nil
}

// Message returns the full commit message.
func (c *Client) Message(ctx context.Context, id OID) (string, error) {
	commit, err := c.commitObject(id)
	if err != nil {
		return "", err
	}

	return commit.Message, nil
}

// Authorship returns the author signature of a commit.
func (c *Client) Authorship(
	ctx context.Context, id OID,
) (Signature, error) {

	commit, err := c.commitObject(id)
	if err != nil {
		return Signature{}, err
	}

	return Signature{
		Name:  commit.Author.Name,
		Email: commit.Author.Email,
		Date:  commit.Author.When.Format(time.RFC3339),
	}, nil
}

// MergeBases returns the best common ancestors of a and b.
func (c *Client) MergeBases(
	ctx context.Context, a, b OID,
) ([]OID, error) {

	commitA, err := c.commitObject(a)
	if err != nil {
		return nil, err
	}

	commitB, err := c.commitObject(b)
	if err != nil {
		return nil, err
	}

	bases, err := commitA.MergeBase(commitB)
	if err != nil {
		return nil, fmt.Errorf("failed to find merge base: %w", err)
	}

	result := make([]OID, 0, len(bases))
	for _, base := range bases {
		result = append(result, OID(base.Hash.String()))
	}

	return result, nil
}

// IsAncestor reports whether a is an ancestor of b.
func (c *Client) IsAncestor(
	ctx context.Context, a, b OID,
) (bool, error) {

	commitA, err := c.commitObject(a)
	if err != nil {
		return false, err
	}

	commitB, err := c.commitObject(b)
	if err != nil {
		return false, err
	}

	return commitA.IsAncestor(commitB)
}

// CherryEquivalent returns the commits in upstream..head whose patch
// is already present upstream. Patch-id comparison is delegated to
// git cherry, matching the behavior users see from the porcelain.
func (c *Client) CherryEquivalent(
	ctx context.Context, upstream, head OID,
) (map[OID]bool, error) {

	equivalent := make(map[OID]bool)

	// Rebasing from the root has no upstream to compare against.
	if upstream.IsZero() {
		return equivalent, nil
	}

	output, err := c.run(
		ctx, nil, "cherry", upstream.String(), head.String(),
	)
	if err != nil {
		return nil, err
	}

	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)

		// Lines look like "- <sha>" (already upstream) or "+ <sha>".
		if !strings.HasPrefix(line, "- ") {
			continue
		}

		equivalent[OID(strings.TrimPrefix(line, "- "))] = true
	}

	return equivalent, nil
}

// TopoOrder lists upstream..head oldest-first in topological order.
func (c *Client) TopoOrder(
	ctx context.Context, upstream, head OID, firstParent bool,
) ([]OID, error) {

	args := []string{"rev-list", "--reverse", "--topo-order"}
	if firstParent {
		args = append(args, "--first-parent")
	}

	args = append(args, head.String())
	if !upstream.IsZero() {
		args = append(args, "^"+upstream.String())
	}

	output, err := c.run(ctx, nil, args...)
	if err != nil {
		return nil, err
	}

	var commits []OID
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		commits = append(commits, OID(line))
	}

	return commits, nil
}
