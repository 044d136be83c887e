package rebase

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/roasbeef/replant/git"
)

// TodoEntry is a single rewrite instruction. The subject is advisory
// only: execution never depends on it.
type TodoEntry struct {
	// Command is the rewrite command (pick, squash, etc.).
	Command Command `json:"command"`

	// Commit is the original commit id. Empty for noop.
	Commit git.OID `json:"commit,omitempty"`

	// Subject is the commit subject line, for human review.
	Subject string `json:"subject,omitempty"`
}

// ParseTodo parses a git-format todo file into entries. Comments and
// blank lines are ignored. Unknown commands are a malformed-todo
// error rather than a fallthrough.
func ParseTodo(content string) ([]TodoEntry, error) {
	var entries []TodoEntry

	scanner := bufio.NewScanner(strings.NewReader(content))

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments.
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		entry, err := parseTodoLine(line, lineNum)
		if err != nil {
			return nil, err
		}

		entries = append(entries, entry)
	}

	return entries, nil
}

// parseTodoLine parses a single line like "pick abc1234 subject".
func parseTodoLine(line string, lineNum int) (TodoEntry, error) {
	fields := strings.Fields(line)

	command := expandShortCommand(strings.ToLower(fields[0]))
	if !command.Valid() {
		return TodoEntry{}, &MalformedTodoError{
			Line:   lineNum,
			Reason: fmt.Sprintf("unknown command %q", fields[0]),
		}
	}

	if command == CmdNoop {
		return TodoEntry{Command: CmdNoop}, nil
	}

	if len(fields) < 2 {
		return TodoEntry{}, &MalformedTodoError{
			Line:   lineNum,
			Reason: fmt.Sprintf("%s requires a commit", command),
		}
	}

	// Everything after the commit is the subject.
	subject := ""
	if len(fields) > 2 {
		subject = strings.Join(fields[2:], " ")
	}

	return TodoEntry{
		Command: command,
		Commit:  git.OID(fields[1]),
		Subject: subject,
	}, nil
}

// FormatTodo generates a git-format todo file from entries.
func FormatTodo(entries []TodoEntry) string {
	var sb strings.Builder

	for _, entry := range entries {
		if entry.Command == CmdNoop {
			sb.WriteString("noop\n")

			continue
		}

		if entry.Subject == "" {
			fmt.Fprintf(&sb, "%s %s\n", entry.Command, entry.Commit)

			continue
		}

		fmt.Fprintf(
			&sb, "%s %s %s\n",
			entry.Command, entry.Commit, entry.Subject,
		)
	}

	return sb.String()
}

// todoHelp is appended (as comments) when the todo is handed to the
// user's editor.
const todoHelp = `
# Commands:
# p, pick <commit> = use commit
# e, edit <commit> = use commit, but stop for amending
# s, squash <commit> = use commit, but meld into previous commit
# d, drop <commit> = remove commit
#
# These lines can be re-ordered; they are executed from top to bottom.
# If you remove a line here THAT COMMIT WILL BE LOST.
`

// FormatTodoForEdit renders entries plus the command legend shown
// during interactive editing.
func FormatTodoForEdit(entries []TodoEntry) string {
	return FormatTodo(entries) + todoHelp
}

// ValidateTodo checks a user-edited todo against the commits of the
// original plan. Each non-noop entry must reference a commit from the
// original range, matched by full id or unique prefix. Drop entries
// are removed from the returned list: deletion and drop are the same
// operation.
func ValidateTodo(
	entries, original []TodoEntry,
) ([]TodoEntry, error) {

	known := make(map[git.OID]TodoEntry)
	for _, entry := range original {
		if entry.Commit.IsZero() {
			continue
		}

		known[entry.Commit] = entry
	}

	var result []TodoEntry
	havePrev := false
	for i, entry := range entries {
		if entry.Command == CmdNoop {
			result = append(result, entry)

			continue
		}

		full, ok := matchCommit(known, entry.Commit)
		if !ok {
			return nil, &MalformedTodoError{
				Line: i + 1,
				Reason: fmt.Sprintf(
					"commit %q not in the rewrite range", entry.Commit,
				),
			}
		}

		if entry.Command == CmdDrop {
			continue
		}

		// A squash folds into the preceding commit, so one must exist
		// once noops and dropped lines are out of the picture. Caught
		// here, before anything touches the repository.
		if entry.Command == CmdSquash && !havePrev {
			return nil, &MalformedTodoError{
				Line:   i + 1,
				Reason: "cannot start with squash: no previous commit",
			}
		}

		// Keep the full id and original subject.
		result = append(result, TodoEntry{
			Command: entry.Command,
			Commit:  full.Commit,
			Subject: full.Subject,
		})
		havePrev = true
	}

	return result, nil
}

// matchCommit looks up a commit by full id or unique prefix.
func matchCommit(
	known map[git.OID]TodoEntry, id git.OID,
) (TodoEntry, bool) {

	if entry, ok := known[id]; ok {
		return entry, true
	}

	var (
		match TodoEntry
		found int
	)
	for full, entry := range known {
		if strings.HasPrefix(full.String(), id.String()) {
			match = entry
			found++
		}
	}

	if found != 1 {
		return TodoEntry{}, false
	}

	return match, true
}
