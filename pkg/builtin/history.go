package builtin

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/prismon/vps-agent/pkg/tools"
)

func sessionHistoryTool() tools.Tool {
	def := mcp.NewTool("session_history",
		mcp.WithDescription("Show the most recent entries of the current session log."),
		mcp.WithNumber("limit",
			integer(),
			mcp.Description("Number of entries to return"),
			mcp.Min(1),
			mcp.Max(100),
			mcp.DefaultNumber(10),
		),
	)

	return newTool(def, tools.TierAuto, func(ctx context.Context, params tools.Params, env *tools.Env) (any, error) {
		if env == nil || env.Session == nil {
			return nil, newError("NoSession", "no session is active")
		}
		entries := env.Session.History(params.Int("limit"))
		return map[string]any{
			"session_id":    env.Session.ID,
			"project_focus": nullable(env.Session.Focus()),
			"count":         len(entries),
			"entries":       entries,
		}, nil
	})
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
