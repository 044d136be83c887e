package output

import (
	"encoding/json"
	"io"
)

// FormatStatusJSON writes the session status as indented JSON.
func FormatStatusJSON(w io.Writer, status Status) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	return enc.Encode(status)
}

// ResultOutput is the JSON envelope for control commands.
type ResultOutput struct {
	Success  bool            `json:"success"`
	Message  string          `json:"message"`
	State    string          `json:"state,omitempty"`
	Conflict *ConflictReport `json:"conflict,omitempty"`
}

// FormatResultJSON writes a control-command result as indented JSON.
func FormatResultJSON(w io.Writer, result ResultOutput) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	return enc.Encode(result)
}
