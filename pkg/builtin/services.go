package builtin

import (
	"bufio"
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/prismon/vps-agent/pkg/tools"
)

const (
	managerSystemd = "systemd"
	managerDocker  = "docker"
	managerPM2     = "pm2"
)

var managerNames = []string{managerSystemd, managerDocker, managerPM2}

// serviceManager is one supervisor that services can be listed and
// controlled through
type serviceManager interface {
	// Binary is the executable that must be on PATH
	Binary() string
	List(ctx context.Context) ([]map[string]any, error)
	Status(ctx context.Context, name string) (map[string]any, error)
	Has(ctx context.Context, name string) bool
}

// serviceRunner runs manager commands under a per-command timeout
type serviceRunner struct {
	timeout time.Duration
}

func (r serviceRunner) run(ctx context.Context, name string, args ...string) (*commandResult, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return runCommand(ctx, "", name, args...)
}

func (r serviceRunner) ok(ctx context.Context, name string, args ...string) (*commandResult, bool) {
	res, err := r.run(ctx, name, args...)
	if err != nil || res.TimedOut || res.ExitCode != 0 {
		return res, false
	}
	return res, true
}

func newManager(name string, r serviceRunner) serviceManager {
	switch name {
	case managerSystemd:
		return systemdManager{r}
	case managerDocker:
		return dockerManager{r}
	case managerPM2:
		return pm2Manager{r}
	}
	return nil
}

func runnerFor(env *tools.Env) serviceRunner {
	seconds := config(env).Bash.DefaultTimeoutSeconds
	if seconds < 1 {
		seconds = 60
	}
	return serviceRunner{timeout: time.Duration(seconds) * time.Second}
}

// pickManager returns the requested manager, or the first available one
// that knows the service
func pickManager(ctx context.Context, r serviceRunner, requested, service string) (string, serviceManager, error) {
	if requested != "" {
		m := newManager(requested, r)
		if !available(m.Binary()) {
			return "", nil, newError("ServiceManagerUnavailable", "service manager %s is not installed", requested)
		}
		return requested, m, nil
	}

	for _, name := range managerNames {
		m := newManager(name, r)
		if available(m.Binary()) && m.Has(ctx, service) {
			return name, m, nil
		}
	}
	return "", nil, newError("ServiceNotFound", "could not find service '%s' in any manager", service)
}

func withManager(opts ...mcp.ToolOption) []mcp.ToolOption {
	return append(opts, mcp.WithString("manager",
		mcp.Description("Service manager; detected when omitted"),
		mcp.Enum(managerNames...),
	))
}

func serviceListTool() tools.Tool {
	def := mcp.NewTool("service_list", withManager(
		mcp.WithDescription("List services from systemd, Docker or pm2. Lists every installed manager unless one is given."),
	)...)

	return newTool(def, tools.TierAuto, func(ctx context.Context, params tools.Params, env *tools.Env) (any, error) {
		r := runnerFor(env)
		names := managerNames
		if m := params.String("manager"); m != "" {
			names = []string{m}
		}

		services := map[string]any{}
		for _, name := range names {
			m := newManager(name, r)
			if !available(m.Binary()) {
				continue
			}
			list, err := m.List(ctx)
			if err != nil {
				log.WithError(err).WithField("manager", name).Warn("Failed to list services")
				list = []map[string]any{}
			}
			services[name] = list
		}

		return map[string]any{"services": services}, nil
	})
}

func serviceStatusTool() tools.Tool {
	def := mcp.NewTool("service_status", withManager(
		mcp.WithDescription("Get the status of a service. Detects the manager when not given."),
		mcp.WithString("name",
			mcp.Required(),
			mcp.Description("Service, container or process name"),
		),
	)...)

	return newTool(def, tools.TierAuto, func(ctx context.Context, params tools.Params, env *tools.Env) (any, error) {
		_, m, err := pickManager(ctx, runnerFor(env), params.String("manager"), params.String("name"))
		if err != nil {
			return nil, err
		}
		return m.Status(ctx, params.String("name"))
	})
}

func serviceControlTool(toolName, action string, tier tools.Tier, description string) tools.Tool {
	def := mcp.NewTool(toolName, withManager(
		mcp.WithDescription(description),
		mcp.WithString("name",
			mcp.Required(),
			mcp.Description("Service, container or process name"),
		),
	)...)

	return newTool(def, tier, func(ctx context.Context, params tools.Params, env *tools.Env) (any, error) {
		r := runnerFor(env)
		service := params.String("name")
		manager, m, err := pickManager(ctx, r, params.String("manager"), service)
		if err != nil {
			return nil, err
		}

		res, err := r.run(ctx, m.Binary(), action, service)
		if err != nil {
			return nil, err
		}
		success := !res.TimedOut && res.ExitCode == 0

		log.WithField("service", service).WithField("manager", manager).WithField("action", action).
			WithField("success", success).Info("Service control")

		var stderr any
		if !success {
			stderr = res.Stderr
		}
		return map[string]any{
			"name":    service,
			"manager": manager,
			"action":  action,
			"success": success,
			"output":  res.Stdout,
			"error":   stderr,
		}, nil
	})
}

type systemdManager struct{ r serviceRunner }

func (systemdManager) Binary() string { return "systemctl" }

func (m systemdManager) List(ctx context.Context) ([]map[string]any, error) {
	res, err := m.r.run(ctx, "systemctl", "list-units", "--type=service", "--all", "--no-pager", "--plain", "--no-legend")
	if err != nil {
		return nil, err
	}
	services := []map[string]any{}
	scanner := bufio.NewScanner(strings.NewReader(res.Stdout))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 4 || !strings.HasSuffix(fields[0], ".service") {
			continue
		}
		services = append(services, map[string]any{
			"name":        strings.TrimSuffix(fields[0], ".service"),
			"load":        fields[1],
			"active":      fields[2],
			"sub":         fields[3],
			"description": strings.Join(fields[4:], " "),
		})
	}
	return services, scanner.Err()
}

func (m systemdManager) Status(ctx context.Context, name string) (map[string]any, error) {
	res, ok := m.r.ok(ctx, "systemctl", "show", name, "--no-pager")
	if !ok {
		return nil, newError("ServiceNotFound", "systemctl show %s failed: %s", name, strings.TrimSpace(stderrOf(res)))
	}

	info := map[string]any{"name": name, "manager": managerSystemd}
	for _, line := range strings.Split(res.Stdout, "\n") {
		key, value, found := strings.Cut(line, "=")
		if !found {
			continue
		}
		switch key {
		case "LoadState":
			info["load_state"] = value
		case "ActiveState":
			info["status"] = value
		case "SubState":
			info["sub_state"] = value
		case "MainPID":
			if pid, err := strconv.Atoi(value); err == nil && pid != 0 {
				info["pid"] = pid
			} else {
				info["pid"] = nil
			}
		case "UnitFileState":
			info["enabled"] = value == "enabled"
		case "ActiveEnterTimestamp":
			info["started_at"] = value
		}
	}
	return info, nil
}

func (m systemdManager) Has(ctx context.Context, name string) bool {
	_, ok := m.r.ok(ctx, "systemctl", "cat", name)
	return ok
}

type dockerManager struct{ r serviceRunner }

func (dockerManager) Binary() string { return "docker" }

func (m dockerManager) List(ctx context.Context) ([]map[string]any, error) {
	res, err := m.r.run(ctx, "docker", "ps", "-a", "--format", "{{json .}}")
	if err != nil {
		return nil, err
	}
	containers := []map[string]any{}
	for _, line := range strings.Split(res.Stdout, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var c struct {
			Names  string
			Image  string
			State  string
			Status string
			Ports  string
		}
		if err := json.Unmarshal([]byte(line), &c); err != nil {
			continue
		}
		status := c.State
		if status == "" {
			status = c.Status
		}
		containers = append(containers, map[string]any{
			"name":   c.Names,
			"image":  c.Image,
			"status": status,
			"ports":  c.Ports,
		})
	}
	return containers, nil
}

func (m dockerManager) Status(ctx context.Context, name string) (map[string]any, error) {
	res, ok := m.r.ok(ctx, "docker", "inspect", name, "--format", "{{json .}}")
	if !ok {
		return nil, newError("ServiceNotFound", "docker inspect %s failed: %s", name, strings.TrimSpace(stderrOf(res)))
	}

	var data struct {
		State struct {
			Status    string
			Running   bool
			Pid       int
			StartedAt string
		}
		Config struct {
			Image string
		}
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(res.Stdout)), &data); err != nil {
		return nil, newError("ServiceStatusError", "failed to parse docker inspect output: %v", err)
	}

	return map[string]any{
		"name":       name,
		"manager":    managerDocker,
		"status":     data.State.Status,
		"running":    data.State.Running,
		"pid":        data.State.Pid,
		"started_at": data.State.StartedAt,
		"image":      data.Config.Image,
	}, nil
}

func (m dockerManager) Has(ctx context.Context, name string) bool {
	_, ok := m.r.ok(ctx, "docker", "inspect", name)
	return ok
}

type pm2Manager struct{ r serviceRunner }

// pm2Process is one element of pm2 jlist
type pm2Process struct {
	Name  string `json:"name"`
	PMID  int    `json:"pm_id"`
	PID   int    `json:"pid"`
	Monit struct {
		Memory int64   `json:"memory"`
		CPU    float64 `json:"cpu"`
	} `json:"monit"`
	Env struct {
		Status      string `json:"status"`
		RestartTime int    `json:"restart_time"`
		Uptime      int64  `json:"pm_uptime"`
	} `json:"pm2_env"`
}

func (pm2Manager) Binary() string { return "pm2" }

func (m pm2Manager) processes(ctx context.Context) ([]pm2Process, error) {
	res, ok := m.r.ok(ctx, "pm2", "jlist")
	if !ok {
		return nil, newError("ServiceStatusError", "pm2 jlist failed: %s", strings.TrimSpace(stderrOf(res)))
	}
	var procs []pm2Process
	if err := json.Unmarshal([]byte(strings.TrimSpace(res.Stdout)), &procs); err != nil {
		return nil, newError("ServiceStatusError", "failed to parse pm2 jlist output: %v", err)
	}
	return procs, nil
}

func (m pm2Manager) List(ctx context.Context) ([]map[string]any, error) {
	procs, err := m.processes(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]map[string]any, 0, len(procs))
	for _, p := range procs {
		out = append(out, map[string]any{
			"name":   p.Name,
			"pm_id":  p.PMID,
			"status": p.Env.Status,
			"memory": p.Monit.Memory,
			"cpu":    p.Monit.CPU,
		})
	}
	return out, nil
}

func (m pm2Manager) Status(ctx context.Context, name string) (map[string]any, error) {
	procs, err := m.processes(ctx)
	if err != nil {
		return nil, err
	}
	for _, p := range procs {
		if p.Name != name {
			continue
		}
		return map[string]any{
			"name":     name,
			"manager":  managerPM2,
			"pm_id":    p.PMID,
			"status":   p.Env.Status,
			"pid":      p.PID,
			"memory":   p.Monit.Memory,
			"cpu":      p.Monit.CPU,
			"restarts": p.Env.RestartTime,
			"uptime":   p.Env.Uptime,
		}, nil
	}
	return nil, newError("ServiceNotFound", "pm2 has no process named '%s'", name)
}

func (m pm2Manager) Has(ctx context.Context, name string) bool {
	procs, err := m.processes(ctx)
	if err != nil {
		return false
	}
	for _, p := range procs {
		if p.Name == name {
			return true
		}
	}
	return false
}

func stderrOf(res *commandResult) string {
	if res == nil {
		return "command failed to start"
	}
	if res.TimedOut {
		return "command timed out"
	}
	return res.Stderr
}
