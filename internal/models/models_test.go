package models

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimestamp(t *testing.T) {
	ts := Timestamp(time.Date(2024, 3, 1, 12, 30, 45, 123456000, time.FixedZone("X", 3600)))
	assert.Equal(t, "2024-03-01T11:30:45.123456Z", ts)
	assert.True(t, strings.HasSuffix(Timestamp(time.Now()), "Z"))
}

func TestEntryJSON(t *testing.T) {
	t.Run("context change keeps a null focus", func(t *testing.T) {
		entry := NewEntry(EntryContextChange, time.Now())
		entry.Context = &EntryContext{}

		data, err := json.Marshal(entry)
		require.NoError(t, err)

		var raw map[string]any
		require.NoError(t, json.Unmarshal(data, &raw))
		assert.Equal(t, "context_change", raw["type"])
		ctx, ok := raw["context"].(map[string]any)
		require.True(t, ok)
		value, present := ctx["project_focus"]
		assert.True(t, present)
		assert.Nil(t, value)
		assert.NotContains(t, raw, "tool")
	})

	t.Run("tool call round trips params verbatim", func(t *testing.T) {
		focus := "/srv/app"
		entry := NewEntry(EntryToolCall, time.Now())
		entry.Tool = "file_read"
		entry.Params = json.RawMessage(`{"path":"main.go"}`)
		entry.Error = &EntryError{Type: "FileNotFound", Message: "missing"}
		entry.Context = &EntryContext{ProjectFocus: &focus}

		data, err := json.Marshal(entry)
		require.NoError(t, err)

		var decoded Entry
		require.NoError(t, json.Unmarshal(data, &decoded))
		assert.Equal(t, "file_read", decoded.Tool)
		assert.JSONEq(t, `{"path":"main.go"}`, string(decoded.Params))
		assert.Equal(t, "FileNotFound", decoded.Error.Type)
		require.NotNil(t, decoded.Context.ProjectFocus)
		assert.Equal(t, focus, *decoded.Context.ProjectFocus)
	})

	t.Run("unknown fields are ignored", func(t *testing.T) {
		var decoded Entry
		err := json.Unmarshal([]byte(`{"timestamp":"t","type":"future_kind","extra":1}`), &decoded)
		require.NoError(t, err)
		assert.Equal(t, EntryType("future_kind"), decoded.Type)
	})
}

func TestNewSuccess(t *testing.T) {
	env := NewSuccess("sess_abc12345", "echo", "auto", map[string]any{"ok": true}, NewContext("/srv/app", "sess_abc12345"))

	data, err := env.JSON()
	require.NoError(t, err)
	assert.Contains(t, string(data), "\n  \"success\": true")

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, true, raw["success"])
	assert.Equal(t, false, raw["dry_run"])
	assert.Nil(t, raw["error"])
	assert.Equal(t, map[string]any{"ok": true}, raw["result"])

	ctx := raw["context"].(map[string]any)
	assert.Equal(t, "/srv/app", ctx["project"])
	assert.Equal(t, "sess_abc12345", ctx["session_id"])
	assert.Equal(t, map[string]any{}, ctx["additional"])
}

func TestNewDryRun(t *testing.T) {
	env := NewDryRun("sess_abc12345", "file_write", "confirm", json.RawMessage(`{"path":"a.txt","dry_run":true}`), NewContext("", "sess_abc12345"))

	data, err := env.JSON()
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, true, raw["success"])
	assert.Equal(t, true, raw["dry_run"])

	result := raw["result"].(map[string]any)
	assert.Equal(t, true, result["dry_run"])
	assert.Equal(t, "file_write", result["would_execute"])
	assert.Equal(t, "confirm", result["approval_level"])
	assert.Equal(t, map[string]any{"path": "a.txt", "dry_run": true}, result["params"])

	ctx := raw["context"].(map[string]any)
	assert.Nil(t, ctx["project"])
}

func TestNewError(t *testing.T) {
	env := NewError("sess_abc12345", "danger", "explicit", "ApprovalRequired", "needs approval", nil, NewContext("", "sess_abc12345"))

	data, err := env.JSON()
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, false, raw["success"])
	assert.Nil(t, raw["result"])

	detail := raw["error"].(map[string]any)
	assert.Equal(t, "ApprovalRequired", detail["type"])
	assert.Equal(t, "danger", detail["tool"])
	assert.Equal(t, map[string]any{}, detail["details"])
}

func TestNewUsageError(t *testing.T) {
	env := NewUsageError("", "MissingArgument", "--tool is required")

	assert.False(t, env.Success)
	assert.Equal(t, SessionNone, env.SessionID)
	assert.Equal(t, ApprovalNone, env.ApprovalLevel)
	assert.Equal(t, "agent", env.Tool)
	assert.Nil(t, env.Context.Project)
	assert.Nil(t, env.Context.SessionID)
	assert.NotNil(t, env.Context.Additional)
}
