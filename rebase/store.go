package rebase

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Store is the durable home of a session. Exactly one session exists
// per repository; Create enforces that with create-if-absent
// semantics, making the store double as the session lock.
type Store interface {
	// Create persists a brand-new session. Returns ErrSessionExists
	// if one is already present.
	Create(sess *Session) error

	// Load reads the persisted session. Returns ErrNoSession when
	// none is present.
	Load() (*Session, error)

	// Save rewrites the persisted session. Returns ErrNoSession when
	// none is present.
	Save(sess *Session) error

	// Delete discards the persisted session. Deleting an absent
	// session is not an error.
	Delete() error

	// Exists reports whether a session is present.
	Exists() bool
}

// FileStore persists sessions in a directory under the repository's
// git dir. Presence of the directory is the sole witness of "session
// active".
type FileStore struct {
	// Dir is the session directory.
	Dir string
}

// SessionDirName is the session directory created under the git dir.
const SessionDirName = "replant"

// stateFile is the canonical session record inside the directory. The
// todo mirrors exist for human inspection only.
const stateFile = "state.json"

// NewFileStore creates a store rooted under the given git directory.
func NewFileStore(gitDir string) *FileStore {
	return &FileStore{Dir: filepath.Join(gitDir, SessionDirName)}
}

// Create persists a brand-new session, failing fast when one exists.
func (f *FileStore) Create(sess *Session) error {
	if err := os.Mkdir(f.Dir, 0o755); err != nil {
		if os.IsExist(err) {
			return ErrSessionExists
		}

		return fmt.Errorf("failed to create session dir: %w", err)
	}

	if err := f.write(sess); err != nil {
		// Creation is all-or-nothing: a half-written session must not
		// hold the lock.
		_ = os.RemoveAll(f.Dir)

		return err
	}

	return nil
}

// Load reads the persisted session.
func (f *FileStore) Load() (*Session, error) {
	data, err := os.ReadFile(filepath.Join(f.Dir, stateFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNoSession
		}

		return nil, fmt.Errorf("failed to read session: %w", err)
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("corrupt session state: %w", err)
	}

	return &sess, nil
}

// Save rewrites the persisted session.
func (f *FileStore) Save(sess *Session) error {
	if !f.Exists() {
		return ErrNoSession
	}

	return f.write(sess)
}

// write persists the session atomically (write-then-rename) so a crash
// mid-save leaves the previous state intact.
func (f *FileStore) write(sess *Session) error {
	data, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize session: %w", err)
	}

	path := filepath.Join(f.Dir, stateFile)
	tmp := path + ".tmp"

	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write session: %w", err)
	}

	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to commit session write: %w", err)
	}

	// Human-readable mirrors of the instruction sequences. Best
	// effort: state.json is canonical.
	_ = os.WriteFile(
		filepath.Join(f.Dir, "todo"),
		[]byte(FormatTodo(sess.Todo)), 0o644,
	)
	_ = os.WriteFile(
		filepath.Join(f.Dir, "done"),
		[]byte(FormatTodo(sess.Done)), 0o644,
	)
	_ = os.WriteFile(
		filepath.Join(f.Dir, "todo.backup"),
		[]byte(FormatTodo(sess.Backup)), 0o644,
	)

	return nil
}

// Delete discards the persisted session.
func (f *FileStore) Delete() error {
	if err := os.RemoveAll(f.Dir); err != nil {
		return fmt.Errorf("failed to remove session dir: %w", err)
	}

	return nil
}

// Exists reports whether a session is present.
func (f *FileStore) Exists() bool {
	_, err := os.Stat(filepath.Join(f.Dir, stateFile))

	return err == nil
}

// MemStore is an in-memory Store for tests: same lifecycle semantics,
// no filesystem.
type MemStore struct {
	sess *Session
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{}
}

// Create persists a brand-new session.
func (m *MemStore) Create(sess *Session) error {
	if m.sess != nil {
		return ErrSessionExists
	}

	m.sess = cloneSession(sess)

	return nil
}

// Load reads the persisted session.
func (m *MemStore) Load() (*Session, error) {
	if m.sess == nil {
		return nil, ErrNoSession
	}

	return cloneSession(m.sess), nil
}

// Save rewrites the persisted session.
func (m *MemStore) Save(sess *Session) error {
	if m.sess == nil {
		return ErrNoSession
	}

	m.sess = cloneSession(sess)

	return nil
}

// Delete discards the persisted session.
func (m *MemStore) Delete() error {
	m.sess = nil

	return nil
}

// Exists reports whether a session is present.
func (m *MemStore) Exists() bool {
	return m.sess != nil
}

// cloneSession deep-copies a session through its JSON form, the same
// round trip the file store performs.
func cloneSession(sess *Session) *Session {
	data, err := json.Marshal(sess)
	if err != nil {
		panic(fmt.Sprintf("session not serializable: %v", err))
	}

	var out Session
	if err := json.Unmarshal(data, &out); err != nil {
		panic(fmt.Sprintf("session not round-trippable: %v", err))
	}

	return &out
}

// Compile-time checks.
var (
	_ Store = (*FileStore)(nil)
	_ Store = (*MemStore)(nil)
)
