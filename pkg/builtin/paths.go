package builtin

import (
	"strings"

	"github.com/prismon/vps-agent/pkg/focus"
	"github.com/prismon/vps-agent/pkg/pathutil"
	"github.com/prismon/vps-agent/pkg/tools"
)

// resolvePath turns a tool path argument into an absolute path. "~" is
// expanded; other relative paths are joined to the focus.
func resolvePath(env *tools.Env, path string) (string, error) {
	if path == "~" || strings.HasPrefix(path, "~/") {
		return pathutil.ExpandPath(path)
	}
	return resolver(env).Resolve(path)
}

// targetPath is resolvePath with the focus itself as the default target
func targetPath(env *tools.Env, path string) (string, error) {
	if path != "" {
		return resolvePath(env, path)
	}
	r := resolver(env)
	if !r.HasFocus() {
		return "", newError("NoFocus", "no path given and no project focus set. Use project_focus to set the current project first.")
	}
	return r.Focus(), nil
}

func resolver(env *tools.Env) *focus.Resolver {
	if env == nil || env.Focus == nil {
		return focus.NewResolver()
	}
	return env.Focus
}
