package rebase

import (
	"context"
	"fmt"
	"strings"

	"github.com/roasbeef/replant/git"
)

// PlanRequest describes the rewrite to plan.
type PlanRequest struct {
	// HeadRef is the full ref name of the branch being rewritten, or
	// "" when head is detached.
	HeadRef string

	// Head is the tip being rewritten.
	Head git.OID

	// Upstream is the old base. Zero when Root is set.
	Upstream git.OID

	// Onto is the new base.
	Onto git.OID

	// Root replays everything down to the root instead of an
	// upstream range.
	Root bool

	// PreserveMerges reconstructs merge topology instead of
	// linearizing.
	PreserveMerges bool

	// Strategy is an optional merge strategy name.
	Strategy string

	// Verbose enables per-step progress output.
	Verbose bool
}

// Plan walks the commit graph and produces the initial session: the
// todo list plus the rewrite/drop map skeletons.
func Plan(
	ctx context.Context, g git.Graph, req PlanRequest,
) (*Session, error) {

	sess := &Session{
		HeadRef:        req.HeadRef,
		OrigHead:       req.Head,
		Onto:           req.Onto,
		Upstream:       req.Upstream,
		PreserveMerges: req.PreserveMerges,
		Strategy:       req.Strategy,
		Verbose:        req.Verbose,
		RebaseRoot:     req.Root,
		Rewrite:        RewriteMap{},
		Drop:           DropMap{},
	}

	var (
		picks []git.OID
		err   error
	)
	if req.PreserveMerges {
		picks, err = planPreserving(ctx, g, req, sess)
	} else {
		picks, err = planLinear(ctx, g, req)
	}
	if err != nil {
		return nil, err
	}

	for _, id := range picks {
		subject, err := commitSubject(ctx, g, id)
		if err != nil {
			return nil, err
		}

		sess.Todo = append(sess.Todo, TodoEntry{
			Command: CmdPick,
			Commit:  id,
			Subject: subject,
		})
	}

	// An empty plan still needs a representable session.
	if len(sess.Todo) == 0 {
		sess.Todo = []TodoEntry{{Command: CmdNoop}}
	}

	sess.Backup = append([]TodoEntry(nil), sess.Todo...)

	return sess, nil
}

// planLinear lists the commits of upstream..head oldest-first,
// excluding merges and commits whose patch is already upstream.
func planLinear(
	ctx context.Context, g git.Graph, req PlanRequest,
) ([]git.OID, error) {

	candidates, err := g.TopoOrder(ctx, req.Upstream, req.Head, false)
	if err != nil {
		return nil, err
	}

	equivalent, err := g.CherryEquivalent(ctx, req.Upstream, req.Head)
	if err != nil {
		return nil, err
	}

	var picks []git.OID
	for _, id := range candidates {
		parents, err := g.Parents(ctx, id)
		if err != nil {
			return nil, err
		}

		if len(parents) > 1 || equivalent[id] {
			continue
		}

		picks = append(picks, id)
	}

	return picks, nil
}

// planPreserving computes the preserved commit set for merge-preserving
// mode and seeds the session's rewrite and drop maps.
func planPreserving(
	ctx context.Context, g git.Graph, req PlanRequest, sess *Session,
) ([]git.OID, error) {

	// Seed: the new base substitutes for every merge base (or for the
	// synthetic root when rebasing from the root).
	if req.Root {
		sess.Rewrite.Resolve(RootKey, req.Onto)
	} else {
		bases, err := g.MergeBases(ctx, req.Head, req.Upstream)
		if err != nil {
			return nil, err
		}

		for _, base := range bases {
			sess.Rewrite.Resolve(base, req.Onto)
		}
	}

	candidates, err := g.TopoOrder(ctx, req.Upstream, req.Head, false)
	if err != nil {
		return nil, err
	}

	// The first commit after upstream on the first-parent chain is
	// always preserved, anchoring the chain even when its parent is
	// not tracked.
	firstChain, err := g.TopoOrder(ctx, req.Upstream, req.Head, true)
	if err != nil {
		return nil, err
	}

	firstAfterUpstream := git.ZeroOID
	if len(firstChain) > 0 {
		firstAfterUpstream = firstChain[0]
	}

	var kept []git.OID
	for _, c := range candidates {
		parents, err := g.Parents(ctx, c)
		if err != nil {
			return nil, err
		}

		keys := parents
		if len(keys) == 0 && req.Root {
			keys = []git.OID{RootKey}
		}

		preserved := false
		for _, p := range keys {
			// A pending parent always preserves the child: its
			// replacement is not produced yet, but it is guaranteed to
			// differ from the original. The value comparison only
			// filters parents pre-resolved to the upstream itself.
			v, ok := sess.Rewrite.Lookup(p)
			if ok && (v.IsZero() || v != req.Upstream) {
				preserved = true

				break
			}
		}
		if c == firstAfterUpstream {
			preserved = true
		}

		// A commit with no preserved parent is a pure copy: replaying
		// its parent reproduces it, so it never enters the todo list.
		if !preserved {
			continue
		}

		sess.Rewrite.MarkPending(c)
		kept = append(kept, c)
	}

	// Preserved commits whose patch is already upstream are redundant:
	// route dependents to the surviving first-parent ancestor instead.
	equivalent, err := g.CherryEquivalent(ctx, req.Upstream, req.Head)
	if err != nil {
		return nil, err
	}

	var picks []git.OID
	for _, c := range kept {
		if !equivalent[c] {
			picks = append(picks, c)

			continue
		}

		parents, err := g.Parents(ctx, c)
		if err != nil {
			return nil, err
		}

		survivor := git.ZeroOID
		if len(parents) > 0 {
			survivor = parents[0]
		}
		if sub, ok := sess.Drop[survivor]; ok {
			survivor = sub
		}

		sess.Drop[c] = survivor
		delete(sess.Rewrite, c)
	}

	return picks, nil
}

// commitSubject returns the first line of a commit's message.
func commitSubject(
	ctx context.Context, g git.Graph, id git.OID,
) (string, error) {

	msg, err := g.Message(ctx, id)
	if err != nil {
		return "", fmt.Errorf(
			"failed to read message of %s: %w", id.Short(), err,
		)
	}

	subject, _, _ := strings.Cut(msg, "\n")

	return strings.TrimSpace(subject), nil
}
