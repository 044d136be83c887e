package output

import (
	"fmt"
	"io"
)

// FormatStatusText writes the session status as human-readable text.
func FormatStatusText(w io.Writer, status Status) error {
	if !status.InProgress {
		fmt.Fprintln(w, "No session in progress.")

		return nil
	}

	if status.Branch != "" {
		fmt.Fprintf(
			w, "Rewriting %s onto %s.\n", status.Branch, status.Onto,
		)
	} else {
		fmt.Fprintf(w, "Rewriting detached head onto %s.\n", status.Onto)
	}

	fmt.Fprintf(
		w, "Progress: %d/%d commits, %d remaining.\n",
		status.Completed, status.Total, status.Remaining,
	)

	switch status.State {
	case "conflicted":
		fmt.Fprintln(w, "")
		if status.Conflict != nil {
			FormatConflictText(w, status.Conflict)
		} else {
			fmt.Fprintln(w, "Paused on a conflict.")
		}

	case "editing":
		fmt.Fprintln(w, "")
		fmt.Fprintln(w, "Stopped for amending. When you are done:")
		fmt.Fprintln(w, "  replant continue")

	default:
		if status.Current != nil {
			fmt.Fprintf(
				w, "Next: %s %s %s\n",
				status.Current.Command, status.Current.Commit,
				status.Current.Subject,
			)
		}
	}

	return nil
}

// FormatConflictText writes a conflict report as human-readable text.
func FormatConflictText(w io.Writer, report *ConflictReport) {
	fmt.Fprintf(
		w, "Could not apply %s... %s\n",
		report.Commit, report.Subject,
	)

	for _, file := range report.Files {
		fmt.Fprintf(w, "  Conflict: %s\n", file)
	}

	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Resolve the conflicts and stage the files, then:")
	fmt.Fprintln(w, "  replant continue  # record the resolution")
	fmt.Fprintln(w, "  replant skip      # drop this commit")
	fmt.Fprintln(w, "  replant abort     # restore the original branch")
}
