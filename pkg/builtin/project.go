package builtin

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/prismon/vps-agent/pkg/home"
	"github.com/prismon/vps-agent/pkg/pathutil"
	"github.com/prismon/vps-agent/pkg/project"
	"github.com/prismon/vps-agent/pkg/tools"
)

func projectFocusTool() tools.Tool {
	def := mcp.NewTool("project_focus",
		mcp.WithDescription("Set the project focus for this session. Relative paths in later calls resolve against it."),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Absolute path to an existing project directory"),
		),
	)

	return newTool(def, tools.TierAuto, func(ctx context.Context, params tools.Params, env *tools.Env) (any, error) {
		path := params.String("path")
		if path == "~" || strings.HasPrefix(path, "~/") {
			expanded, err := pathutil.ExpandPath(path)
			if err != nil {
				return nil, err
			}
			path = expanded
		}

		r := resolver(env)
		if err := r.SetFocus(path); err != nil {
			return nil, err
		}
		if env != nil && env.Session != nil {
			if err := env.Session.LogContextChange(r.Focus()); err != nil {
				return nil, fmt.Errorf("failed to record focus change: %w", err)
			}
		}

		info, err := project.GetInfo(r.Focus())
		if err != nil {
			return nil, err
		}

		log.WithField("focus", r.Focus()).Debug("Project focus set")

		return map[string]any{
			"focused": true,
			"path":    r.Focus(),
			"project": info,
		}, nil
	})
}

func projectListTool(cfg *home.Config) tools.Tool {
	def := mcp.NewTool("project_list",
		mcp.WithDescription("List project directories under the projects base directory."),
		mcp.WithString("base_path",
			mcp.Description("Directory to scan instead of the configured base"),
			mcp.DefaultString(cfg.Projects.BaseDir),
		),
	)

	return newTool(def, tools.TierAuto, func(ctx context.Context, params tools.Params, env *tools.Env) (any, error) {
		base := params.String("base_path")
		if base == "" {
			base = config(env).Projects.BaseDir
		}
		base, err := pathutil.ExpandPath(base)
		if err != nil {
			return nil, err
		}

		projects, err := project.Discover(base)
		if err != nil {
			return nil, err
		}

		return map[string]any{
			"base_path": base,
			"count":     len(projects),
			"projects":  projects,
		}, nil
	})
}

func projectInfoTool() tools.Tool {
	def := mcp.NewTool("project_info",
		mcp.WithDescription("Describe a project directory: type, languages, config files and size. Defaults to the focused project."),
		mcp.WithString("path",
			mcp.Description("Project path; relative paths resolve against the focus"),
		),
	)

	return newTool(def, tools.TierAuto, func(ctx context.Context, params tools.Params, env *tools.Env) (any, error) {
		path, err := targetPath(env, params.String("path"))
		if err != nil {
			return nil, err
		}
		return project.GetInfo(path)
	})
}
