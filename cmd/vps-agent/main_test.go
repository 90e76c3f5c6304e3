package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type agent struct {
	t    *testing.T
	home string
}

func newAgent(t *testing.T) *agent {
	t.Helper()
	t.Setenv("GO_ENV", "test")
	return &agent{t: t, home: t.TempDir()}
}

// run invokes the CLI and decodes the single envelope it prints
func (a *agent) run(args ...string) (int, map[string]any) {
	a.t.Helper()
	var out bytes.Buffer
	code := execute(context.Background(), append([]string{"--home", a.home}, args...), &out)

	var envelope map[string]any
	require.NoError(a.t, json.Unmarshal(out.Bytes(), &envelope), out.String())
	return code, envelope
}

func (a *agent) sessionFiles() []string {
	a.t.Helper()
	matches, err := filepath.Glob(filepath.Join(a.home, "sessions", "*.jsonl"))
	require.NoError(a.t, err)
	return matches
}

func errorType(envelope map[string]any) string {
	e, _ := envelope["error"].(map[string]any)
	s, _ := e["type"].(string)
	return s
}

func TestListTools(t *testing.T) {
	a := newAgent(t)
	code, env := a.run("--list-tools")

	assert.Equal(t, 0, code)
	assert.Equal(t, true, env["success"])
	assert.Equal(t, "none", env["session_id"])
	assert.Equal(t, "list_tools", env["tool"])
	assert.Equal(t, "none", env["approval_level"])

	result := env["result"].(map[string]any)
	assert.EqualValues(t, 14, result["count"])
	first := result["tools"].([]any)[0].(map[string]any)
	assert.Equal(t, "project_focus", first["name"])
	assert.Equal(t, "auto", first["approval_level"])
	schema := first["params_schema"].(map[string]any)
	assert.Equal(t, []any{"path"}, schema["required"])
	assert.Equal(t, false, schema["additionalProperties"])

	assert.Empty(t, a.sessionFiles())
	assert.FileExists(t, filepath.Join(a.home, "config.yaml"))
}

func TestUsageErrors(t *testing.T) {
	a := newAgent(t)

	code, env := a.run()
	assert.Equal(t, 1, code)
	assert.Equal(t, false, env["success"])
	assert.Equal(t, "none", env["session_id"])
	assert.Equal(t, "MissingArgument", errorType(env))
	assert.Equal(t, "--tool is required. Use --list-tools to see available tools.",
		env["error"].(map[string]any)["message"])

	code, env = a.run("--tool", "vps_status", "--params", "{not json")
	assert.Equal(t, 1, code)
	assert.Equal(t, "InvalidJSON", errorType(env))
	assert.Contains(t, env["error"].(map[string]any)["message"], "Invalid JSON in --params")

	code, env = a.run("--bogus")
	assert.Equal(t, 1, code)
	assert.Equal(t, "UsageError", errorType(env))

	assert.Empty(t, a.sessionFiles())
}

func TestApprovalAcrossInvocations(t *testing.T) {
	a := newAgent(t)

	code, env := a.run("--tool", "bash_run", "--params", `{"command": "echo hi"}`)
	assert.Equal(t, 0, code)
	assert.Equal(t, false, env["success"])
	assert.Equal(t, "ApprovalRequired", errorType(env))
	assert.Equal(t, "explicit", env["approval_level"])

	code, env = a.run("--continue", "--tool", "bash_run", "--params", `{"command": "echo hi"}`, "--auto-approve")
	assert.Equal(t, 0, code)
	require.Equal(t, true, env["success"], env)
	assert.Equal(t, "hi\n", env["result"].(map[string]any)["stdout"])

	assert.Len(t, a.sessionFiles(), 1)
}

func TestFocusPersistsAcrossInvocations(t *testing.T) {
	a := newAgent(t)
	project := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(project, "README.md"), []byte("# demo\n"), 0644))

	code, env := a.run("--tool", "project_focus", "--params", `{"path": "`+project+`"}`)
	require.Equal(t, 0, code)
	require.Equal(t, true, env["success"], env)
	sessionID := env["session_id"].(string)
	assert.Equal(t, project, env["context"].(map[string]any)["project"])

	code, env = a.run("--continue", "--tool", "file_read", "--params", `{"path": "README.md"}`)
	require.Equal(t, 0, code)
	require.Equal(t, true, env["success"], env)
	assert.Equal(t, sessionID, env["session_id"])
	assert.Equal(t, "# demo\n", env["result"].(map[string]any)["content"])

	code, env = a.run("--resume", sessionID, "--tool", "session_history", "--params", `{"limit": 100}`)
	require.Equal(t, 0, code)
	assert.Equal(t, sessionID, env["session_id"])
	types := []string{}
	for _, e := range env["result"].(map[string]any)["entries"].([]any) {
		types = append(types, e.(map[string]any)["type"].(string))
	}
	assert.Equal(t, []string{
		"session_start", "context_change", "tool_call",
		"session_continue", "tool_call",
		"session_resume",
	}, types)

	// A fresh session does not see the focus
	code, env = a.run("--tool", "file_read", "--params", `{"path": "README.md"}`)
	assert.Equal(t, 0, code)
	assert.NotEqual(t, sessionID, env["session_id"])
	assert.Equal(t, "NoFocus", errorType(env))
}

func TestResumeUnknownStartsNewSession(t *testing.T) {
	a := newAgent(t)
	code, env := a.run("--resume", "sess_missing1", "--tool", "session_history")
	assert.Equal(t, 0, code)
	assert.NotEqual(t, "sess_missing1", env["session_id"])
	assert.Len(t, a.sessionFiles(), 1)
}

func TestUnknownToolIsNotLogged(t *testing.T) {
	a := newAgent(t)
	code, env := a.run("--tool", "format_disk")
	assert.Equal(t, 0, code)
	assert.Equal(t, "ToolNotFound", errorType(env))
	assert.Equal(t, "none", env["approval_level"])

	files := a.sessionFiles()
	require.Len(t, files, 1)
	data, err := os.ReadFile(files[0])
	require.NoError(t, err)
	assert.Equal(t, 1, bytes.Count(data, []byte("\n")))
}

func TestListAndCleanupSessions(t *testing.T) {
	a := newAgent(t)
	require.NoError(t, os.WriteFile(filepath.Join(a.home, "config.yaml"), []byte("sessions:\n  ttlHours: 1\n"), 0644))

	_, first := a.run("--tool", "session_history")
	_, second := a.run("--tool", "session_history")

	old := time.Now().Add(-2 * time.Hour)
	stale := filepath.Join(a.home, "sessions", first["session_id"].(string)+".jsonl")
	require.NoError(t, os.Chtimes(stale, old, old))

	code, env := a.run("--list-sessions")
	assert.Equal(t, 0, code)
	result := env["result"].(map[string]any)
	assert.EqualValues(t, 1, result["count"])
	listed := result["sessions"].([]any)[0].(map[string]any)
	assert.Equal(t, second["session_id"], listed["session_id"])

	_, env = a.run("--list-sessions", "--include-expired")
	assert.EqualValues(t, 2, env["result"].(map[string]any)["count"])

	code, env = a.run("--cleanup-sessions")
	assert.Equal(t, 0, code)
	assert.EqualValues(t, 1, env["result"].(map[string]any)["deleted"])
	assert.NoFileExists(t, stale)
	assert.Len(t, a.sessionFiles(), 1)
}

func TestDryRunPreview(t *testing.T) {
	a := newAgent(t)
	target := filepath.Join(t.TempDir(), "out.txt")

	code, env := a.run("--tool", "file_write", "--params", `{"path": "`+target+`", "content": "x", "dry_run": true}`)
	assert.Equal(t, 0, code)
	assert.Equal(t, true, env["success"])
	assert.Equal(t, true, env["dry_run"])
	result := env["result"].(map[string]any)
	assert.Equal(t, "file_write", result["would_execute"])
	assert.Equal(t, "confirm", result["approval_level"])
	assert.NoFileExists(t, target)
}
