package rebase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/roasbeef/replant/git"
)

// Engine is the replay state machine. It consumes todo entries one at
// a time against the commit graph, updating the rewrite and drop maps,
// and suspends on conflict. Every state mutation is persisted before
// the side effect it guards is treated as final, so a crashed session
// resumes deterministically.
type Engine struct {
	graph  git.Graph
	repo   git.Repo
	store  Store
	sess   *Session
	editor Editor
	out    io.Writer
}

// NewEngine creates an engine bound to a session. The editor may be
// nil, in which case accumulated squash messages are used as-is.
func NewEngine(
	graph git.Graph, repo git.Repo, store Store, sess *Session,
) *Engine {

	return &Engine{
		graph: graph,
		repo:  repo,
		store: store,
		sess:  sess,
		out:   io.Discard,
	}
}

// SetEditor installs the message editor collaborator.
func (e *Engine) SetEditor(editor Editor) {
	e.editor = editor
}

// SetOutput directs verbose progress output to w.
func (e *Engine) SetOutput(w io.Writer) {
	if w != nil {
		e.out = w
	}
}

// Session exposes the engine's session for status reporting.
func (e *Engine) Session() *Session {
	return e.sess
}

// logf prints a progress line in verbose mode.
func (e *Engine) logf(format string, args ...any) {
	if e.sess.Verbose {
		fmt.Fprintf(e.out, format+"\n", args...)
	}
}

// save persists the session.
func (e *Engine) save() error {
	if err := e.store.Save(e.sess); err != nil {
		return fmt.Errorf("failed to persist session: %w", err)
	}

	return nil
}

// Start acquires the session lock, moves to the new base, and runs.
// Exactly one session may exist per repository.
func (e *Engine) Start(ctx context.Context) error {
	if err := e.store.Create(e.sess); err != nil {
		return err
	}

	if err := e.repo.CheckoutDetached(ctx, e.sess.Onto); err != nil {
		// Nothing replayed yet: release the lock so the failed start
		// leaves no session behind.
		_ = e.store.Delete()

		return err
	}

	return e.Run(ctx)
}

// Run consumes todo entries until the list is exhausted, a conflict
// suspends the session, or an edit entry pauses it.
func (e *Engine) Run(ctx context.Context) error {
	for {
		if e.sess.Peek() == nil {
			return e.finalize(ctx)
		}

		stopped, err := e.advance(ctx)
		if err != nil {
			return err
		}
		if stopped {
			return nil
		}
	}
}

// advance executes exactly one todo entry. It persists intent (the
// in-progress commit and the pre-step head) before the side effect, so
// a crash in between is detectable and re-execution idempotent.
func (e *Engine) advance(ctx context.Context) (bool, error) {
	entry := *e.sess.Peek()

	head, err := e.repo.Head(ctx)
	if err != nil {
		return false, err
	}

	e.sess.InProgress = entry.Commit
	e.sess.PreStepHead = head
	if err := e.save(); err != nil {
		return false, err
	}

	switch entry.Command {
	case CmdNoop, CmdDrop:
		// No side effect; drop entries normally never survive
		// validation, but a stored plan may still carry them.
		return false, e.completeEntry(entry, git.ZeroOID)

	case CmdPick:
		newID, err := e.pick(ctx, entry, head)
		if err != nil {
			return false, e.suspend(entry, err)
		}

		e.logf("Applied %s... %s", newID.Short(), entry.Subject)

		return false, e.completeEntry(entry, newID)

	case CmdEdit:
		newID, err := e.pick(ctx, entry, head)
		if err != nil {
			return false, e.suspend(entry, err)
		}

		if err := e.completeEntry(entry, git.ZeroOID); err != nil {
			return false, err
		}

		// Pause so the user can amend; resolution is recorded on
		// continue, once any amendment has been folded in.
		e.sess.AmendAnchor = newID
		e.sess.Stop = StopEdit
		if err := e.save(); err != nil {
			return false, err
		}

		e.logf("Stopped at %s... %s", newID.Short(), entry.Subject)

		return true, nil

	case CmdSquash:
		if len(e.sess.Done) == 0 {
			return false, &MalformedTodoError{
				Reason: "squash without a previous commit",
			}
		}

		newID, err := e.squash(ctx, entry, head)
		if err != nil {
			return false, e.suspend(entry, err)
		}

		return false, e.completeEntry(entry, newID)

	default:
		return false, &MalformedTodoError{
			Reason: fmt.Sprintf("unknown command %q", entry.Command),
		}
	}
}

// completeEntry records a successful step: the entry moves to the done
// sequence atomically with its rewrite resolution, and the scratch
// slots are cleared.
func (e *Engine) completeEntry(entry TodoEntry, newID git.OID) error {
	if !newID.IsZero() {
		if _, ok := e.sess.Rewrite.Lookup(entry.Commit); ok {
			e.sess.Rewrite.Resolve(entry.Commit, newID)
		}
	}

	e.sess.MarkDone()
	e.sess.clearScratch()

	return e.save()
}

// suspend converts a replay conflict into a suspended session. Any
// other error aborts the current operation without destroying the
// session.
func (e *Engine) suspend(entry TodoEntry, err error) error {
	var ce *git.ConflictError
	if !errors.As(err, &ce) {
		return err
	}

	e.sess.Stop = StopConflict
	e.sess.LastConflict = &ConflictInfo{
		Command: entry.Command,
		Commit:  entry.Commit,
		Subject: entry.Subject,
		Files:   ce.Files,
		Patch:   ce.Patch,
	}
	if saveErr := e.save(); saveErr != nil {
		return saveErr
	}

	return &Conflict{
		Command: entry.Command,
		Commit:  entry.Commit,
		Subject: entry.Subject,
		Files:   ce.Files,
		Patch:   ce.Patch,
	}
}

// pick replays a single commit onto the current head, fast-forwarding
// when the head already equals the commit's recorded parent.
func (e *Engine) pick(
	ctx context.Context, entry TodoEntry, head git.OID,
) (git.OID, error) {

	origParents, err := e.graph.Parents(ctx, entry.Commit)
	if err != nil {
		return git.ZeroOID, err
	}

	if e.sess.PreserveMerges {
		// Reposition onto the resolved first parent: in a preserved
		// DAG the previous entry may belong to a different branch.
		head, err = e.seekFirstParent(ctx, origParents, head)
		if err != nil {
			return git.ZeroOID, err
		}

		if len(origParents) > 1 {
			return e.redoMerge(ctx, entry, head, origParents)
		}
	}

	// Fast-forward: head already is the recorded parent, so the
	// commit can be reused verbatim. Applied whenever legal, because
	// replaying instead would alter commit ids for no reason.
	if len(origParents) == 1 && head == origParents[0] {
		if err := e.repo.ResetHard(ctx, entry.Commit); err != nil {
			return git.ZeroOID, err
		}

		e.logf("Fast-forwarded to %s", entry.Commit.Short())

		return entry.Commit, nil
	}

	return e.repo.CherryPick(ctx, entry.Commit, git.CherryPickOptions{
		AllowEmpty: true,
	})
}

// seekFirstParent moves head to the replacement of the commit's first
// parent when the previous step left it elsewhere.
func (e *Engine) seekFirstParent(
	ctx context.Context, origParents []git.OID, head git.OID,
) (git.OID, error) {

	key := RootKey
	if len(origParents) > 0 {
		key = origParents[0]
	}

	target := e.resolveParent(key)
	if target == head {
		return head, nil
	}

	if err := e.repo.CheckoutDetached(ctx, target); err != nil {
		return git.ZeroOID, err
	}

	return target, nil
}

// resolveParent maps an original parent through the drop and rewrite
// maps to the commit that stands in for it in the rewritten history.
func (e *Engine) resolveParent(p git.OID) git.OID {
	if sub, ok := e.sess.Drop[p]; ok && !sub.IsZero() {
		p = sub
	}
	if r, ok := e.sess.Rewrite.Resolved(p); ok {
		return r
	}

	return p
}

// redoMerge recomputes a merge commit against the rewritten parent
// set. Parents collapse away when the rewritten history already
// contains them; if all non-first parents collapse, the merge
// degenerates to a fast-forward.
func (e *Engine) redoMerge(
	ctx context.Context, entry TodoEntry, head git.OID,
	origParents []git.OID,
) (git.OID, error) {

	resolved := make([]git.OID, 0, len(origParents))
	seen := make(map[git.OID]bool)
	rewritten := false
	for _, p := range origParents {
		rp := e.resolveParent(p)
		if rp != p {
			rewritten = true
		}
		if seen[rp] {
			continue
		}
		seen[rp] = true
		resolved = append(resolved, rp)
	}

	var others []git.OID
	for _, p := range resolved[1:] {
		ancestor, err := e.graph.IsAncestor(ctx, p, head)
		if err != nil {
			return git.ZeroOID, err
		}
		if ancestor {
			continue
		}

		others = append(others, p)
	}

	if len(others) == 0 {
		if !rewritten && head == origParents[0] {
			if err := e.repo.ResetHard(ctx, entry.Commit); err != nil {
				return git.ZeroOID, err
			}

			return entry.Commit, nil
		}

		// Everything the merge brought in is already reachable from
		// head; the head commit stands in for the merge.
		return head, nil
	}

	message, err := e.graph.Message(ctx, entry.Commit)
	if err != nil {
		return git.ZeroOID, err
	}

	author, err := e.graph.Authorship(ctx, entry.Commit)
	if err != nil {
		return git.ZeroOID, err
	}

	return e.repo.Merge(ctx, others, message, author)
}

// squash folds the commit into the previous entry's commit. The
// message buffer accumulates across consecutive squash entries and is
// finalized only when the lookahead shows the run is over.
func (e *Engine) squash(
	ctx context.Context, entry TodoEntry, head git.OID,
) (git.OID, error) {

	// First squash of a run seeds the buffer with the previous
	// commit's message.
	if len(e.sess.SquashMsgs) == 0 {
		prevMsg, err := e.graph.Message(ctx, head)
		if err != nil {
			return git.ZeroOID, err
		}

		e.sess.SquashMsgs = []string{prevMsg}
		prev := e.sess.Done[len(e.sess.Done)-1]
		if !prev.Commit.IsZero() {
			e.sess.SquashCommits = []git.OID{prev.Commit}
		}
	}

	// Stage the commit's changes without a commit boundary, then fold
	// them into the previous commit.
	_, err := e.repo.CherryPick(ctx, entry.Commit, git.CherryPickOptions{
		NoCommit: true,
	})
	if err != nil {
		return git.ZeroOID, err
	}

	return e.finishSquashStep(ctx, entry)
}

// finishSquashStep appends the entry's message to the buffer and
// amends the previous commit with the staged changes. Shared with the
// conflict-resolution path.
func (e *Engine) finishSquashStep(
	ctx context.Context, entry TodoEntry,
) (git.OID, error) {

	message, err := e.graph.Message(ctx, entry.Commit)
	if err != nil {
		return git.ZeroOID, err
	}

	e.sess.SquashMsgs = append(e.sess.SquashMsgs, message)
	e.sess.SquashCommits = append(e.sess.SquashCommits, entry.Commit)

	next := e.sess.PeekNext()
	final := next == nil || next.Command != CmdSquash

	combined := combineSquashMessage(e.sess.SquashMsgs, final)
	if final && e.editor != nil {
		edited, err := e.editor.EditMessage(ctx, combined)
		if err != nil {
			return git.ZeroOID, err
		}
		combined = edited
	}

	newID, err := e.repo.Commit(ctx, combined, git.Signature{}, true)
	if err != nil {
		return git.ZeroOID, err
	}

	if final {
		for _, c := range e.sess.SquashCommits {
			if _, ok := e.sess.Rewrite.Lookup(c); ok {
				e.sess.Rewrite.Resolve(c, newID)
			}
		}

		e.sess.SquashMsgs = nil
		e.sess.SquashCommits = nil
		e.logf("Squashed into %s", newID.Short())
	}

	return newID, nil
}

// combineSquashMessage renders the accumulated message sections as one
// commit message.
func combineSquashMessage(msgs []string, final bool) string {
	var sb strings.Builder

	if final {
		fmt.Fprintf(
			&sb, "# This is a combination of %d commits.\n", len(msgs),
		)
	} else {
		fmt.Fprintf(
			&sb, "# This is a combination of %d commits (in progress).\n",
			len(msgs),
		)
	}

	for i, msg := range msgs {
		if i == 0 {
			sb.WriteString("# The first commit's message is:\n\n")
		} else {
			fmt.Fprintf(&sb, "# This is commit message #%d:\n\n", i+1)
		}

		sb.WriteString(strings.TrimRight(msg, "\n"))
		sb.WriteString("\n\n")
	}

	return strings.TrimRight(sb.String(), "\n") + "\n"
}

// Continue resumes a suspended session: folding an edit amendment,
// recording a staged conflict resolution, or completing a step whose
// side effect landed before a crash.
func (e *Engine) Continue(ctx context.Context) error {
	switch e.sess.Stop {
	case StopEdit:
		if err := e.resumeEdit(ctx); err != nil {
			return err
		}

	case StopConflict:
		if err := e.resumeConflict(ctx); err != nil {
			return err
		}

	default:
		if !e.sess.InProgress.IsZero() {
			if err := e.resumeCrash(ctx); err != nil {
				return err
			}
		}
	}

	return e.Run(ctx)
}

// resumeEdit folds in whatever the user did after an edit pause and
// records the entry's final resolution.
func (e *Engine) resumeEdit(ctx context.Context) error {
	head, err := e.repo.Head(ctx)
	if err != nil {
		return err
	}

	clean, err := e.repo.IsClean(ctx)
	if err != nil {
		return err
	}

	if !clean {
		// Uncommitted work is only foldable while head still sits on
		// the anchor; otherwise we cannot tell what it belongs to.
		if head != e.sess.AmendAnchor {
			return ErrAmendMismatch
		}

		staged, err := e.repo.HasStagedChanges(ctx)
		if err != nil {
			return err
		}
		if !staged {
			return ErrDirtyWorkTree
		}

		message, err := e.graph.Message(ctx, head)
		if err != nil {
			return err
		}

		head, err = e.repo.Commit(ctx, message, git.Signature{}, true)
		if err != nil {
			return err
		}
	}

	// The edited entry is the most recently consumed one; its
	// resolution is wherever the user left head.
	if len(e.sess.Done) > 0 {
		last := e.sess.Done[len(e.sess.Done)-1]
		if _, ok := e.sess.Rewrite.Lookup(last.Commit); ok {
			e.sess.Rewrite.Resolve(last.Commit, head)
		}
	}

	e.sess.AmendAnchor = git.ZeroOID
	e.sess.clearScratch()

	return e.save()
}

// resumeConflict records a staged resolution for the entry that
// conflicted, or detects that the step actually completed before a
// crash.
func (e *Engine) resumeConflict(ctx context.Context) error {
	entry := e.sess.Peek()
	if entry == nil {
		e.sess.clearScratch()

		return e.save()
	}

	staged, err := e.repo.HasStagedChanges(ctx)
	if err != nil {
		return err
	}

	if staged {
		var newID git.OID
		if entry.Command == CmdSquash {
			newID, err = e.finishSquashStep(ctx, *entry)
			if err != nil {
				return err
			}
		} else {
			message, err := e.graph.Message(ctx, entry.Commit)
			if err != nil {
				return err
			}

			author, err := e.graph.Authorship(ctx, entry.Commit)
			if err != nil {
				return err
			}

			newID, err = e.repo.Commit(ctx, message, author, false)
			if err != nil {
				return err
			}
		}

		return e.completeEntry(*entry, newID)
	}

	clean, err := e.repo.IsClean(ctx)
	if err != nil {
		return err
	}
	if !clean {
		return ErrNothingStaged
	}

	return e.resumeCrash(ctx)
}

// resumeCrash re-synchronizes after a crash between a step's side
// effect and its durable record: if head moved off the pre-step
// snapshot, the side effect landed and the entry completes without
// re-replaying; otherwise re-execution is safe.
func (e *Engine) resumeCrash(ctx context.Context) error {
	entry := e.sess.Peek()
	if entry == nil {
		e.sess.clearScratch()

		return e.save()
	}

	head, err := e.repo.Head(ctx)
	if err != nil {
		return err
	}

	if !e.sess.PreStepHead.IsZero() && head != e.sess.PreStepHead {
		return e.completeEntry(*entry, head)
	}

	if e.sess.Stop == StopConflict {
		return ErrNothingStaged
	}

	e.sess.clearScratch()

	return e.save()
}

// Skip discards the failed attempt's working-tree changes and drops
// the conflicted entry without recording it done.
func (e *Engine) Skip(ctx context.Context) error {
	if e.sess.Stop != StopConflict {
		return fmt.Errorf("nothing to skip: session is not conflicted")
	}

	if err := e.repo.CancelReplay(ctx); err != nil {
		return err
	}

	target := e.sess.PreStepHead
	if target.IsZero() {
		var err error
		target, err = e.repo.Head(ctx)
		if err != nil {
			return err
		}
	}

	if err := e.repo.ResetHard(ctx, target); err != nil {
		return err
	}

	e.sess.DropCurrent()

	// A skipped squash abandons its run: the buffer must not leak into
	// a later, unrelated squash run.
	e.sess.SquashMsgs = nil
	e.sess.SquashCommits = nil
	e.sess.clearScratch()
	if err := e.save(); err != nil {
		return err
	}

	return e.Run(ctx)
}

// Abort restores the original head exactly as recorded at session
// start and discards the session. All-or-nothing: the session survives
// any failure, so abort can be retried.
func (e *Engine) Abort(ctx context.Context) error {
	if err := e.repo.CancelReplay(ctx); err != nil {
		return err
	}

	if e.sess.HeadRef != "" {
		// The branch ref was never moved during the session, so
		// reattaching is enough to restore it.
		if err := e.repo.AttachHead(ctx, e.sess.HeadRef); err != nil {
			return err
		}
	}

	if err := e.repo.ResetHard(ctx, e.sess.OrigHead); err != nil {
		return err
	}

	return e.store.Delete()
}

// finalize updates the original branch to the rewritten tip and
// destroys the session. A rejected ref update keeps the session intact
// so the update can be retried without re-replaying anything.
func (e *Engine) finalize(ctx context.Context) error {
	newHead, err := e.repo.Head(ctx)
	if err != nil {
		return err
	}

	if e.sess.HeadRef != "" {
		err := e.repo.UpdateRef(
			ctx, e.sess.HeadRef, e.sess.OrigHead, newHead,
		)
		if err != nil {
			if errors.Is(err, git.ErrStaleRef) {
				return fmt.Errorf("%w: %v", ErrRefRejected, err)
			}

			return err
		}

		if err := e.repo.AttachHead(ctx, e.sess.HeadRef); err != nil {
			return err
		}
	}

	if err := e.repo.Maintenance(ctx); err != nil {
		e.logf("maintenance failed: %v", err)
	}

	e.logf(
		"Successfully rewrote %d commits onto %s",
		len(e.sess.Done), e.sess.Onto.Short(),
	)

	return e.store.Delete()
}
