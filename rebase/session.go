package rebase

import (
	"github.com/roasbeef/replant/git"
)

// RootKey is the synthetic RewriteMap key standing in for the parent
// of root commits when rebasing from the root.
const RootKey git.OID = "root"

// RewriteMap tracks, for each original commit touched by merge
// preservation, its replacement id. Absence means the commit is not
// part of the preserved set; a zero value means the replacement is
// known to be needed but not yet produced.
type RewriteMap map[git.OID]git.OID

// MarkPending records that a commit will need rewriting.
func (m RewriteMap) MarkPending(id git.OID) {
	if _, ok := m[id]; !ok {
		m[id] = git.ZeroOID
	}
}

// Resolve records the replacement for a commit. Resolution is
// monotonic: a resolved entry is never reset back to pending.
func (m RewriteMap) Resolve(id, replacement git.OID) {
	m[id] = replacement
}

// Lookup returns the entry for a commit and whether it is tracked at
// all. A tracked commit with a zero replacement is still pending.
func (m RewriteMap) Lookup(id git.OID) (git.OID, bool) {
	v, ok := m[id]

	return v, ok
}

// Resolved returns the replacement for a commit, if one has been
// produced.
func (m RewriteMap) Resolved(id git.OID) (git.OID, bool) {
	v, ok := m[id]
	if !ok || v.IsZero() {
		return git.ZeroOID, false
	}

	return v, true
}

// DropMap records original commits whose changes vanished during
// planning (already present upstream), mapped to the surviving
// first-parent-chain ancestor substituted when remapping merge
// parents. Append-only.
type DropMap map[git.OID]git.OID

// StopReason says why a session is suspended.
type StopReason string

const (
	// StopNone means the session is runnable.
	StopNone StopReason = ""

	// StopConflict means the last step's replay failed and needs user
	// resolution.
	StopConflict StopReason = "conflict"

	// StopEdit means an edit entry completed and the session pauses
	// for amending.
	StopEdit StopReason = "edit"
)

// ConflictInfo is the durable record of the conflict that suspended
// the session, kept so status can be reported across restarts.
type ConflictInfo struct {
	Command Command  `json:"command"`
	Commit  git.OID  `json:"commit"`
	Subject string   `json:"subject,omitempty"`
	Files   []string `json:"files,omitempty"`
	Patch   string   `json:"patch,omitempty"`
}

// Session is the durable record of an in-progress rewrite. It is
// mutated exclusively by the engine, one step at a time, and persisted
// before each step's side effect is treated as final.
type Session struct {
	// HeadRef is the full ref name of the original branch, or ""
	// when the session started detached.
	HeadRef string `json:"head_ref,omitempty"`

	// OrigHead is the commit the original head pointed at.
	OrigHead git.OID `json:"orig_head"`

	// Onto is the new base commit.
	Onto git.OID `json:"onto"`

	// Upstream is the old base commit. Zero when rebasing from the
	// root.
	Upstream git.OID `json:"upstream,omitempty"`

	// PreserveMerges reconstructs merge commits with remapped parents
	// instead of linearizing.
	PreserveMerges bool `json:"preserve_merges,omitempty"`

	// Strategy is an optional merge strategy name.
	Strategy string `json:"strategy,omitempty"`

	// Verbose enables per-step progress output.
	Verbose bool `json:"verbose,omitempty"`

	// RebaseRoot replays all ancestors of head, down to the root.
	RebaseRoot bool `json:"rebase_root,omitempty"`

	// Todo is the pending instruction sequence, consumed from the
	// front.
	Todo []TodoEntry `json:"todo"`

	// Done is the consumed sequence, append-only.
	Done []TodoEntry `json:"done,omitempty"`

	// Backup is the todo as planned, before any user edit, so a
	// malformed edit can be rolled back.
	Backup []TodoEntry `json:"backup,omitempty"`

	// Rewrite tracks replacements for preserved commits.
	Rewrite RewriteMap `json:"rewritten,omitempty"`

	// Drop records commits replaced by a surviving ancestor.
	Drop DropMap `json:"dropped,omitempty"`

	// Stop records why the session is suspended, if it is.
	Stop StopReason `json:"stop,omitempty"`

	// LastConflict describes the conflict behind a StopConflict.
	LastConflict *ConflictInfo `json:"last_conflict,omitempty"`

	// InProgress is the commit of the entry currently being executed.
	// Set before the step's side effect, cleared once the entry is
	// recorded done, so a crash in between is detectable.
	InProgress git.OID `json:"in_progress,omitempty"`

	// PreStepHead is the head observed before the in-progress step's
	// side effect. If head moved off it, the side effect landed.
	PreStepHead git.OID `json:"pre_step_head,omitempty"`

	// AmendAnchor is the commit produced by an edit entry, recorded
	// so continue can tell whether the user amended it.
	AmendAnchor git.OID `json:"amend_anchor,omitempty"`

	// SquashMsgs accumulates the message sections of a run of
	// consecutive squash entries, finalized when the run ends.
	SquashMsgs []string `json:"squash_msgs,omitempty"`

	// SquashCommits are the original commits folded by the current
	// squash run, resolved to the final commit when it is recorded.
	SquashCommits []git.OID `json:"squash_commits,omitempty"`
}

// Peek returns the next pending entry, or nil when the todo is
// exhausted.
func (s *Session) Peek() *TodoEntry {
	if len(s.Todo) == 0 {
		return nil
	}

	return &s.Todo[0]
}

// PeekNext returns the entry after the current one, or nil. Explicit
// lookahead: squash runs are finalized only when the next entry is not
// also a squash.
func (s *Session) PeekNext() *TodoEntry {
	if len(s.Todo) < 2 {
		return nil
	}

	return &s.Todo[1]
}

// MarkDone moves the current entry to the done sequence.
func (s *Session) MarkDone() {
	if len(s.Todo) == 0 {
		return
	}

	s.Done = append(s.Done, s.Todo[0])
	s.Todo = s.Todo[1:]
}

// DropCurrent removes the current entry without recording it done,
// used by skip.
func (s *Session) DropCurrent() {
	if len(s.Todo) == 0 {
		return
	}

	s.Todo = s.Todo[1:]
}

// Total returns the number of entries the session started with.
func (s *Session) Total() int {
	return len(s.Todo) + len(s.Done)
}

// clearScratch wipes the per-step scratch slots before a fresh
// attempt.
func (s *Session) clearScratch() {
	s.InProgress = git.ZeroOID
	s.PreStepHead = git.ZeroOID
	s.Stop = StopNone
	s.LastConflict = nil
}
