package models

import (
	"encoding/json"
	"time"
)

// TimestampFormat is ISO-8601 UTC with microseconds and a trailing Z.
const TimestampFormat = "2006-01-02T15:04:05.000000Z"

// Timestamp renders t in TimestampFormat.
func Timestamp(t time.Time) string {
	return t.UTC().Format(TimestampFormat)
}

// EntryType identifies the kind of a session log record
type EntryType string

const (
	EntrySessionStart    EntryType = "session_start"
	EntrySessionResume   EntryType = "session_resume"
	EntrySessionContinue EntryType = "session_continue"
	EntryContextChange   EntryType = "context_change"
	EntryToolCall        EntryType = "tool_call"
)

// Entry is one line of a session log. Entries are written once and never
// rewritten; unknown fields on read are ignored so new kinds stay additive.
type Entry struct {
	Timestamp string          `json:"timestamp"`
	Type      EntryType       `json:"type"`
	Tool      string          `json:"tool,omitempty"`
	Params    json.RawMessage `json:"params,omitempty"`
	Result    any             `json:"result,omitempty"`
	Error     *EntryError     `json:"error,omitempty"`
	Context   *EntryContext   `json:"context,omitempty"`
}

// EntryError records a failed tool call
type EntryError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// EntryContext is the focus snapshot attached to an entry. A nil
// ProjectFocus on a context_change entry clears the focus.
type EntryContext struct {
	ProjectFocus *string `json:"project_focus"`
}

// NewEntry creates an entry of the given type stamped with at
func NewEntry(entryType EntryType, at time.Time) Entry {
	return Entry{
		Timestamp: Timestamp(at),
		Type:      entryType,
	}
}
