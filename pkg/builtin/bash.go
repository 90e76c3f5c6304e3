package builtin

import (
	"context"
	"fmt"
	"math"
	"os"
	"time"
	"unicode/utf8"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/prismon/vps-agent/pkg/home"
	"github.com/prismon/vps-agent/pkg/tools"
)

const truncationNote = "\n... (output truncated)"

func bashRunTool(cfg *home.Config) tools.Tool {
	maxTimeout := cfg.Bash.MaxTimeoutSeconds
	if maxTimeout < 1 {
		maxTimeout = 1
	}
	def := mcp.NewTool("bash_run",
		mcp.WithDescription("Run a shell command and capture its output. Runs in the focused project unless cwd is given. Requires explicit approval."),
		mcp.WithString("command",
			mcp.Required(),
			mcp.Description("Command line passed to bash -c"),
		),
		mcp.WithString("cwd",
			mcp.Description("Working directory; relative paths resolve against the focus"),
		),
		mcp.WithNumber("timeout",
			integer(),
			mcp.Description("Seconds before the command is killed"),
			mcp.Min(1),
			mcp.Max(float64(maxTimeout)),
			mcp.DefaultNumber(float64(max(1, min(cfg.Bash.DefaultTimeoutSeconds, maxTimeout)))),
		),
	)

	return newTool(def, tools.TierExplicit, func(ctx context.Context, params tools.Params, env *tools.Env) (any, error) {
		command := params.String("command")

		var cwd string
		if params.String("cwd") != "" {
			dir, err := resolvePath(env, params.String("cwd"))
			if err != nil {
				return nil, err
			}
			cwd = dir
		} else if r := resolver(env); r.HasFocus() {
			cwd = r.Focus()
		}
		if cwd != "" {
			if st, err := os.Stat(cwd); err != nil {
				return nil, err
			} else if !st.IsDir() {
				return nil, newError("NotADirectory", "working directory is not a directory: %s", cwd)
			}
		}

		timeout := params.Int("timeout")
		runCtx, cancel := context.WithTimeout(ctx, time.Duration(timeout)*time.Second)
		defer cancel()

		log.WithField("command", command).WithField("cwd", cwd).Debug("Running command")

		res, err := runCommand(runCtx, cwd, shell(), "-c", command)
		if err != nil {
			return nil, fmt.Errorf("failed to start command: %w", err)
		}
		if res.TimedOut {
			res.Stderr += fmt.Sprintf("\nCommand timed out after %d seconds", timeout)
		}

		limit := config(env).Limits.MaxOutputBytes
		stdout, stdoutCut := truncateOutput(res.Stdout, limit)
		stderr, stderrCut := truncateOutput(res.Stderr, limit)

		return map[string]any{
			"command":          command,
			"exit_code":        res.ExitCode,
			"stdout":           stdout,
			"stderr":           stderr,
			"timed_out":        res.TimedOut,
			"duration_seconds": math.Round(res.Duration.Seconds()*1000) / 1000,
			"cwd":              nullable(cwd),
			"stdout_truncated": stdoutCut,
			"stderr_truncated": stderrCut,
		}, nil
	})
}

func shell() string {
	if available("bash") {
		return "bash"
	}
	return "sh"
}

// truncateOutput cuts s to at most limit bytes without splitting a rune
func truncateOutput(s string, limit int) (string, bool) {
	if limit <= 0 || len(s) <= limit {
		return s, false
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + truncationNote, true
}
