// Package rebase implements the resumable history-rewriting core: todo
// planning, the replay state machine, and durable session state.
package rebase

// Command is a todo instruction. The set is closed: anything else in a
// todo file is a malformed-todo error, never a fallthrough.
type Command string

const (
	// CmdPick replays the commit as-is.
	CmdPick Command = "pick"

	// CmdEdit replays the commit, then pauses so the user can amend
	// it before the session resumes.
	CmdEdit Command = "edit"

	// CmdSquash folds the commit into the previous entry's commit,
	// accumulating both messages.
	CmdSquash Command = "squash"

	// CmdDrop removes the commit from the rewritten history.
	CmdDrop Command = "drop"

	// CmdNoop does nothing. Planning emits a single noop when the
	// range is empty, so an empty session stays representable.
	CmdNoop Command = "noop"
)

// Valid returns true if the command is recognized.
func (c Command) Valid() bool {
	switch c {
	case CmdPick, CmdEdit, CmdSquash, CmdDrop, CmdNoop:
		return true
	default:
		return false
	}
}

// String returns the todo-file keyword for the command.
func (c Command) String() string {
	return string(c)
}

// expandShortCommand expands single-letter command abbreviations.
func expandShortCommand(s string) Command {
	switch s {
	case "p", "pick":
		return CmdPick
	case "e", "edit":
		return CmdEdit
	case "s", "squash":
		return CmdSquash
	case "d", "drop":
		return CmdDrop
	case "noop":
		return CmdNoop
	default:
		return Command(s)
	}
}
