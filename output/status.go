// Package output renders session status and conflict reports for
// humans (text) and tooling (JSON).
package output

import (
	"strings"

	godiff "github.com/sourcegraph/go-diff/diff"

	"github.com/roasbeef/replant/rebase"
)

// Status is the reportable view of a session.
type Status struct {
	// InProgress indicates an active session.
	InProgress bool `json:"in_progress"`

	// State is "none", "in-progress", "conflicted", or "editing".
	State string `json:"state"`

	// Branch is the short name of the branch being rewritten, empty
	// when the session started detached.
	Branch string `json:"branch,omitempty"`

	// Onto is the abbreviated new base commit.
	Onto string `json:"onto,omitempty"`

	// Total, Completed, and Remaining count todo entries.
	Total     int `json:"total_commits,omitempty"`
	Completed int `json:"completed_commits,omitempty"`
	Remaining int `json:"remaining_commits,omitempty"`

	// Current is the entry being executed or awaiting resolution.
	Current *EntryInfo `json:"current,omitempty"`

	// Conflict describes the conflict suspending the session.
	Conflict *ConflictReport `json:"conflict,omitempty"`
}

// EntryInfo is a todo entry in reportable form.
type EntryInfo struct {
	Command string `json:"command"`
	Commit  string `json:"commit,omitempty"`
	Subject string `json:"subject,omitempty"`
}

// ConflictReport is a structured conflict: the command, the offending
// commit, and the patch staged for user resolution.
type ConflictReport struct {
	Command string   `json:"command"`
	Commit  string   `json:"commit"`
	Subject string   `json:"subject,omitempty"`
	Files   []string `json:"files,omitempty"`
	Patch   string   `json:"patch,omitempty"`
}

// BuildStatus converts a session into its reportable view. A nil
// session means no rewrite is in progress.
func BuildStatus(sess *rebase.Session) Status {
	if sess == nil {
		return Status{State: "none"}
	}

	status := Status{
		InProgress: true,
		State:      "in-progress",
		Onto:       sess.Onto.Short(),
		Total:      sess.Total(),
		Completed:  len(sess.Done),
		Remaining:  len(sess.Todo),
	}

	if sess.HeadRef != "" {
		status.Branch = strings.TrimPrefix(sess.HeadRef, "refs/heads/")
	}

	if entry := sess.Peek(); entry != nil {
		status.Current = &EntryInfo{
			Command: entry.Command.String(),
			Commit:  entry.Commit.Short(),
			Subject: entry.Subject,
		}
	}

	switch sess.Stop {
	case rebase.StopConflict:
		status.State = "conflicted"
		if info := sess.LastConflict; info != nil {
			status.Conflict = buildConflictReport(
				info.Command.String(), info.Commit.Short(),
				info.Subject, info.Files, info.Patch,
			)
		}

	case rebase.StopEdit:
		status.State = "editing"
	}

	return status
}

// BuildConflict converts a replay conflict into its reportable form.
func BuildConflict(c *rebase.Conflict) *ConflictReport {
	return buildConflictReport(
		c.Command.String(), c.Commit.Short(), c.Subject,
		c.Files, c.Patch,
	)
}

func buildConflictReport(
	command, commit, subject string, files []string, patch string,
) *ConflictReport {

	if len(files) == 0 {
		files = ConflictFiles(patch)
	}

	return &ConflictReport{
		Command: command,
		Commit:  commit,
		Subject: subject,
		Files:   files,
		Patch:   patch,
	}
}

// ConflictFiles extracts the affected paths from a conflict patch.
func ConflictFiles(patch string) []string {
	if strings.TrimSpace(patch) == "" {
		return nil
	}

	files, err := godiff.ParseMultiFileDiff([]byte(patch))
	if err != nil {
		return nil
	}

	var paths []string
	seen := make(map[string]bool)
	for _, f := range files {
		path := strings.TrimPrefix(f.NewName, "b/")
		if path == "/dev/null" || path == "" {
			path = strings.TrimPrefix(f.OrigName, "a/")
		}
		if path == "" || seen[path] {
			continue
		}

		seen[path] = true
		paths = append(paths, path)
	}

	return paths
}
