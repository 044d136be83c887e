package rebase

import (
	"encoding/json"
	"fmt"

	"github.com/roasbeef/replant/git"
)

// PlanFile is a declarative instruction list supplied instead of the
// editor round-trip. This lets tooling and agents drive a rewrite
// without interactive prompts.
type PlanFile struct {
	// Instructions is the ordered list of rewrite instructions.
	Instructions []PlanInstruction `json:"instructions"`
}

// PlanInstruction is a single declarative instruction.
type PlanInstruction struct {
	// Command is the rewrite command (pick, squash, drop, etc.).
	Command Command `json:"command"`

	// Commit is the commit id or unique prefix.
	Commit git.OID `json:"commit,omitempty"`
}

// ParsePlanFile parses a declarative plan from JSON data and converts
// it into todo entries. Validation against the planned range happens
// separately, through ValidateTodo.
func ParsePlanFile(data []byte) ([]TodoEntry, error) {
	var plan PlanFile

	if err := json.Unmarshal(data, &plan); err != nil {
		// Include a snippet of the invalid JSON for debugging.
		snippet := string(data)
		if len(snippet) > 100 {
			snippet = snippet[:100] + "..."
		}

		return nil, fmt.Errorf(
			"invalid JSON plan: %w\ninput: %s", err, snippet,
		)
	}

	if len(plan.Instructions) == 0 {
		return nil, &MalformedTodoError{Reason: "plan has no instructions"}
	}

	entries := make([]TodoEntry, 0, len(plan.Instructions))
	for i, inst := range plan.Instructions {
		if !inst.Command.Valid() {
			return nil, &MalformedTodoError{
				Line: i + 1,
				Reason: fmt.Sprintf(
					"unknown command %q", inst.Command,
				),
			}
		}

		if inst.Command != CmdNoop && inst.Commit.IsZero() {
			return nil, &MalformedTodoError{
				Line: i + 1,
				Reason: fmt.Sprintf(
					"%s requires a commit", inst.Command,
				),
			}
		}

		entries = append(entries, TodoEntry{
			Command: inst.Command,
			Commit:  inst.Commit,
		})
	}

	if entries[0].Command == CmdSquash {
		return nil, &MalformedTodoError{
			Line:   1,
			Reason: "cannot start with squash: no previous commit",
		}
	}

	return entries, nil
}
