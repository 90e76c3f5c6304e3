// Package builtin provides the tools shipped with vps-agent: project focus
// and discovery, file access, shell execution, service control, host status
// and session history.
package builtin

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/sirupsen/logrus"

	"github.com/prismon/vps-agent/pkg/home"
	"github.com/prismon/vps-agent/pkg/logger"
	"github.com/prismon/vps-agent/pkg/tools"
)

var log *logrus.Entry

func init() {
	log = logger.WithName("builtin")
}

type runFunc func(ctx context.Context, params tools.Params, env *tools.Env) (any, error)

// tool adapts a descriptor and a function to tools.Tool
type tool struct {
	desc tools.Descriptor
	run  runFunc
}

func (t *tool) Descriptor() tools.Descriptor {
	return t.desc
}

func (t *tool) Execute(ctx context.Context, params tools.Params, env *tools.Env) (any, error) {
	return t.run(ctx, params, env)
}

func newTool(def mcp.Tool, tier tools.Tier, run runFunc) tools.Tool {
	return &tool{desc: tools.NewDescriptor(def, tier), run: run}
}

// All returns every built-in tool. Parameter bounds that are configurable
// are taken from cfg.
func All(cfg *home.Config) []tools.Tool {
	if cfg == nil {
		cfg = home.DefaultConfig()
	}
	return []tools.Tool{
		projectFocusTool(),
		projectListTool(cfg),
		projectInfoTool(),
		fileReadTool(),
		fileWriteTool(),
		dirTreeTool(cfg),
		bashRunTool(cfg),
		serviceListTool(),
		serviceStatusTool(),
		serviceControlTool("service_start", "start", tools.TierConfirm, "Start a service."),
		serviceControlTool("service_restart", "restart", tools.TierConfirm, "Restart a service."),
		serviceControlTool("service_stop", "stop", tools.TierExplicit, "Stop a service. Requires explicit approval."),
		vpsStatusTool(),
		sessionHistoryTool(),
	}
}

// NewRegistry builds a registry holding every built-in tool
func NewRegistry(cfg *home.Config) (*tools.Registry, error) {
	registry := tools.NewRegistry()
	for _, t := range All(cfg) {
		if err := registry.Register(t); err != nil {
			return nil, fmt.Errorf("failed to register built-in tools: %w", err)
		}
	}
	return registry, nil
}

// toolError is a tool failure with its own envelope kind
type toolError struct {
	kind    string
	message string
}

func (e *toolError) Error() string {
	return e.message
}

func (e *toolError) Kind() string {
	return e.kind
}

func newError(kind, format string, args ...any) error {
	return &toolError{kind: kind, message: fmt.Sprintf(format, args...)}
}

// integer narrows a number property to whole values
func integer() mcp.PropertyOption {
	return func(schema map[string]any) {
		schema["type"] = "integer"
	}
}

func config(env *tools.Env) *home.Config {
	if env == nil || env.Config == nil {
		return home.DefaultConfig()
	}
	return env.Config
}

// humanSize renders a byte count with a binary unit
func humanSize(n uint64) string {
	size := float64(n)
	for _, unit := range []string{"B", "KB", "MB", "GB", "TB"} {
		if size < 1024 {
			return fmt.Sprintf("%.1f %s", size, unit)
		}
		size /= 1024
	}
	return fmt.Sprintf("%.1f PB", size)
}

func percent(part, total uint64) float64 {
	if total == 0 {
		return 0
	}
	return float64(int(float64(part)/float64(total)*1000+0.5)) / 10
}
