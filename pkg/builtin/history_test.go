package builtin

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prismon/vps-agent/internal/models"
)

func TestSessionHistory(t *testing.T) {
	env := newEnv(t)
	for _, tool := range []string{"file_read", "dir_tree", "vps_status"} {
		require.NoError(t, env.Session.LogToolCall(tool, json.RawMessage(`{}`), map[string]any{"ok": true}, nil, ""))
	}

	result, err := call(t, "session_history", env, `{"limit": 2}`)
	require.NoError(t, err)

	assert.Equal(t, env.Session.ID, result["session_id"])
	assert.Nil(t, result["project_focus"])
	assert.EqualValues(t, 2, result["count"])
	entries := result["entries"].([]any)
	assert.Equal(t, "dir_tree", entries[0].(map[string]any)["tool"])
	assert.Equal(t, "vps_status", entries[1].(map[string]any)["tool"])

	result, err = call(t, "session_history", env, `{}`)
	require.NoError(t, err)
	assert.EqualValues(t, 4, result["count"])
	first := result["entries"].([]any)[0].(map[string]any)
	assert.Equal(t, string(models.EntrySessionStart), first["type"])
}

func TestSessionHistoryLimitBounds(t *testing.T) {
	tool := lookup(t, "session_history")
	_, err := validateParams(tool, `{"limit": 0}`)
	assert.Error(t, err)
	_, err = validateParams(tool, `{"limit": 101}`)
	assert.Error(t, err)
}

func TestSessionHistoryWithoutSession(t *testing.T) {
	env := newEnv(t)
	env.Session = nil
	_, err := call(t, "session_history", env, `{}`)
	require.Error(t, err)
	assert.Equal(t, "NoSession", kindOf(err))
}
