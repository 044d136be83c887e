package rebase

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/roasbeef/replant/git"
)

// fakeCommit is a node of the in-memory commit graph used by the
// engine tests.
type fakeCommit struct {
	parents []git.OID
	message string
	author  git.Signature
}

// fakeRepo implements both git.Graph and git.Repo over an in-memory
// DAG, so engine behavior can be exercised without a real repository.
type fakeRepo struct {
	commits map[git.OID]*fakeCommit
	order   []git.OID

	head    git.OID
	headRef string
	refs    map[string]git.OID

	staged bool
	dirty  bool

	// conflictOn makes the first replay of a commit fail with a
	// content conflict, the way an overlapping change would.
	conflictOn map[git.OID]bool

	// equivalent backs CherryEquivalent.
	equivalent map[git.OID]bool

	// pendingPick holds the commit staged by a NoCommit cherry-pick.
	pendingPick git.OID

	seq         int
	picks       int
	maintenance int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		commits:    make(map[git.OID]*fakeCommit),
		refs:       make(map[string]git.OID),
		conflictOn: make(map[git.OID]bool),
		equivalent: make(map[git.OID]bool),
	}
}

// add inserts a commit. Insertion order doubles as topological order,
// so tests add commits oldest first.
func (f *fakeRepo) add(id git.OID, message string, parents ...git.OID) git.OID {
	f.commits[id] = &fakeCommit{
		parents: parents,
		message: message,
		author: git.Signature{
			Name:  "Test User",
			Email: "test@test.com",
		},
	}
	f.order = append(f.order, id)

	return id
}

// newID mints a replay-product commit id.
func (f *fakeRepo) newID() git.OID {
	f.seq++

	return git.OID(fmt.Sprintf("rewritten%04d", f.seq))
}

// reachable returns the ancestor closure of id, inclusive.
func (f *fakeRepo) reachable(id git.OID) map[git.OID]bool {
	seen := make(map[git.OID]bool)
	stack := []git.OID{id}
	for len(stack) > 0 {
		c := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if c.IsZero() || seen[c] {
			continue
		}
		seen[c] = true

		if node, ok := f.commits[c]; ok {
			stack = append(stack, node.parents...)
		}
	}

	return seen
}

func (f *fakeRepo) Resolve(_ context.Context, rev string) (git.OID, error) {
	if id, ok := f.refs[rev]; ok {
		return id, nil
	}
	if _, ok := f.commits[git.OID(rev)]; ok {
		return git.OID(rev), nil
	}

	return git.ZeroOID, fmt.Errorf("unknown revision %q", rev)
}

func (f *fakeRepo) Parents(_ context.Context, id git.OID) ([]git.OID, error) {
	node, ok := f.commits[id]
	if !ok {
		return nil, fmt.Errorf("unknown commit %s", id)
	}

	return append([]git.OID(nil), node.parents...), nil
}

func (f *fakeRepo) Message(_ context.Context, id git.OID) (string, error) {
	node, ok := f.commits[id]
	if !ok {
		return "", fmt.Errorf("unknown commit %s", id)
	}

	return node.message, nil
}

func (f *fakeRepo) Authorship(
	_ context.Context, id git.OID,
) (git.Signature, error) {

	node, ok := f.commits[id]
	if !ok {
		return git.Signature{}, fmt.Errorf("unknown commit %s", id)
	}

	return node.author, nil
}

func (f *fakeRepo) MergeBases(
	_ context.Context, a, b git.OID,
) ([]git.OID, error) {

	common := make(map[git.OID]bool)
	ra, rb := f.reachable(a), f.reachable(b)
	for id := range ra {
		if rb[id] {
			common[id] = true
		}
	}

	// Best common ancestors: those with no descendant also in the
	// intersection.
	var bases []git.OID
	for id := range common {
		best := true
		for other := range common {
			if other == id {
				continue
			}
			if f.reachable(other)[id] {
				best = false

				break
			}
		}
		if best {
			bases = append(bases, id)
		}
	}
	sort.Slice(bases, func(i, j int) bool {
		return bases[i] < bases[j]
	})

	return bases, nil
}

func (f *fakeRepo) IsAncestor(
	_ context.Context, a, b git.OID,
) (bool, error) {

	return f.reachable(b)[a], nil
}

func (f *fakeRepo) CherryEquivalent(
	_ context.Context, upstream, _ git.OID,
) (map[git.OID]bool, error) {

	if upstream.IsZero() {
		return map[git.OID]bool{}, nil
	}

	out := make(map[git.OID]bool)
	for id := range f.equivalent {
		out[id] = true
	}

	return out, nil
}

func (f *fakeRepo) TopoOrder(
	_ context.Context, upstream, head git.OID, firstParent bool,
) ([]git.OID, error) {

	inRange := f.reachable(head)
	if !upstream.IsZero() {
		for id := range f.reachable(upstream) {
			delete(inRange, id)
		}
	}

	if firstParent {
		// Walk the first-parent chain from head, then reverse.
		var chain []git.OID
		for c := head; inRange[c]; {
			chain = append(chain, c)
			node := f.commits[c]
			if len(node.parents) == 0 {
				break
			}
			c = node.parents[0]
		}
		for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
			chain[i], chain[j] = chain[j], chain[i]
		}

		return chain, nil
	}

	var out []git.OID
	for _, id := range f.order {
		if inRange[id] {
			out = append(out, id)
		}
	}

	return out, nil
}

func (f *fakeRepo) Head(_ context.Context) (git.OID, error) {
	return f.head, nil
}

func (f *fakeRepo) SymbolicHead(_ context.Context) (string, error) {
	return f.headRef, nil
}

// moveHead advances head, moving the attached branch ref with it the
// way a real checkout-attached head would.
func (f *fakeRepo) moveHead(id git.OID) {
	f.head = id
	if f.headRef != "" {
		f.refs[f.headRef] = id
	}
}

func (f *fakeRepo) CherryPick(
	_ context.Context, c git.OID, opts git.CherryPickOptions,
) (git.OID, error) {

	f.picks++

	if f.conflictOn[c] {
		delete(f.conflictOn, c)
		f.dirty = true
		f.pendingPick = c

		return git.ZeroOID, &git.ConflictError{
			Op:    "cherry-pick",
			Files: []string{"file.txt"},
		}
	}

	node, ok := f.commits[c]
	if !ok {
		return git.ZeroOID, fmt.Errorf("unknown commit %s", c)
	}

	if opts.NoCommit {
		f.staged = true
		f.pendingPick = c

		return git.ZeroOID, nil
	}

	id := f.newID()
	f.add(id, node.message, f.head)
	f.moveHead(id)

	return id, nil
}

func (f *fakeRepo) Merge(
	_ context.Context, parents []git.OID, message string,
	author git.Signature,
) (git.OID, error) {

	id := f.newID()
	all := append([]git.OID{f.head}, parents...)
	f.add(id, message, all...)
	f.commits[id].author = author
	f.moveHead(id)

	return id, nil
}

func (f *fakeRepo) Commit(
	_ context.Context, message string, author git.Signature, amend bool,
) (git.OID, error) {

	id := f.newID()
	if amend {
		old := f.commits[f.head]
		f.add(id, message, old.parents...)
	} else {
		f.add(id, message, f.head)
	}
	if author != (git.Signature{}) {
		f.commits[id].author = author
	}

	f.staged = false
	f.dirty = false
	f.pendingPick = git.ZeroOID
	f.moveHead(id)

	return id, nil
}

func (f *fakeRepo) ResetHard(_ context.Context, id git.OID) error {
	f.staged = false
	f.dirty = false
	f.pendingPick = git.ZeroOID
	f.moveHead(id)

	return nil
}

func (f *fakeRepo) CancelReplay(_ context.Context) error {
	f.dirty = false
	f.pendingPick = git.ZeroOID

	return nil
}

func (f *fakeRepo) CheckoutDetached(_ context.Context, id git.OID) error {
	f.headRef = ""
	f.head = id

	return nil
}

func (f *fakeRepo) UpdateRef(
	_ context.Context, name string, old, newID git.OID,
) error {

	cur := f.refs[name]
	if cur != old {
		return fmt.Errorf("%w: %s is at %s, expected %s",
			git.ErrStaleRef, name, cur, old)
	}
	f.refs[name] = newID

	return nil
}

func (f *fakeRepo) AttachHead(_ context.Context, refName string) error {
	f.headRef = refName
	if id, ok := f.refs[refName]; ok {
		f.head = id
	}

	return nil
}

func (f *fakeRepo) IsClean(_ context.Context) (bool, error) {
	return !f.dirty && !f.staged, nil
}

func (f *fakeRepo) HasStagedChanges(_ context.Context) (bool, error) {
	return f.staged, nil
}

func (f *fakeRepo) Maintenance(_ context.Context) error {
	f.maintenance++

	return nil
}

// resolveConflict simulates the user resolving a suspended replay and
// staging the result.
func (f *fakeRepo) resolveConflict() {
	f.dirty = false
	f.staged = true
}

// historyMessages returns the messages of head's first-parent chain up
// to (excluding) stop, newest first.
func (f *fakeRepo) historyMessages(stop git.OID) []string {
	var out []string
	for c := f.head; !c.IsZero() && c != stop; {
		node, ok := f.commits[c]
		if !ok {
			break
		}
		out = append(out, strings.TrimRight(node.message, "\n"))
		if len(node.parents) == 0 {
			break
		}
		c = node.parents[0]
	}

	return out
}

// Compile-time checks.
var (
	_ git.Graph = (*fakeRepo)(nil)
	_ git.Repo  = (*fakeRepo)(nil)
)
