package builtin

import (
	"context"
	"fmt"
	"math"
	"net"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/prismon/vps-agent/pkg/tools"
)

const (
	topProcesses    = 10
	processTimeout  = 10 * time.Second
	maxCommandWidth = 80
)

// hostSnapshot is what the platform reader could collect. Nil sections were
// unavailable.
type hostSnapshot struct {
	Hostname string
	Uptime   time.Duration
	Load     []float64
	Memory   *memoryStats
	Disk     *diskStats
	CPUModel string
}

type memoryStats struct {
	Total     uint64
	Available uint64
	Free      uint64
	Buffers   uint64
	Cached    uint64
}

type diskStats struct {
	Total     uint64
	Free      uint64
	Available uint64
}

func vpsStatusTool() tools.Tool {
	def := mcp.NewTool("vps_status",
		mcp.WithDescription("Report host status: hostname, uptime, load, memory, disk and CPU. Optionally the top processes and network interfaces."),
		mcp.WithBoolean("include_processes",
			mcp.Description("Include the top processes by CPU"),
			mcp.DefaultBool(false),
		),
		mcp.WithBoolean("include_network",
			mcp.Description("Include network interfaces and addresses"),
			mcp.DefaultBool(false),
		),
	)

	return newTool(def, tools.TierAuto, func(ctx context.Context, params tools.Params, env *tools.Env) (any, error) {
		snap := readHost()

		status := map[string]any{
			"hostname":       snap.Hostname,
			"uptime":         formatUptime(snap.Uptime),
			"uptime_seconds": int64(snap.Uptime.Seconds()),
			"load_average":   snap.Load,
			"memory":         renderMemory(snap.Memory),
			"disk":           renderDisk(snap.Disk),
			"cpu": map[string]any{
				"count": runtime.NumCPU(),
				"model": snap.CPUModel,
			},
		}

		if params.Bool("include_processes") {
			status["processes"] = topProcessList(ctx)
		}
		if params.Bool("include_network") {
			network, err := networkInfo()
			if err != nil {
				status["network"] = map[string]any{"error": err.Error()}
			} else {
				status["network"] = network
			}
		}

		return status, nil
	})
}

// formatUptime renders a duration as "3d 4h 5m", omitting zero days and hours
func formatUptime(d time.Duration) string {
	if d <= 0 {
		return "unknown"
	}
	total := int64(d.Minutes())
	days, hours, minutes := total/(24*60), (total/60)%24, total%60

	var parts []string
	if days > 0 {
		parts = append(parts, fmt.Sprintf("%dd", days))
	}
	if hours > 0 {
		parts = append(parts, fmt.Sprintf("%dh", hours))
	}
	parts = append(parts, fmt.Sprintf("%dm", minutes))
	return strings.Join(parts, " ")
}

func renderMemory(m *memoryStats) map[string]any {
	if m == nil {
		return map[string]any{"error": "memory statistics unavailable on " + runtime.GOOS}
	}
	used := m.Total - m.Available
	return map[string]any{
		"total_bytes":     m.Total,
		"available_bytes": m.Available,
		"used_bytes":      used,
		"free_bytes":      m.Free,
		"buffers_bytes":   m.Buffers,
		"cached_bytes":    m.Cached,
		"percent_used":    percent(used, m.Total),
		"total_human":     humanSize(m.Total),
		"used_human":      humanSize(used),
		"available_human": humanSize(m.Available),
	}
}

func renderDisk(d *diskStats) map[string]any {
	if d == nil {
		return map[string]any{"error": "disk statistics unavailable on " + runtime.GOOS}
	}
	used := d.Total - d.Free
	return map[string]any{
		"total_bytes":     d.Total,
		"used_bytes":      used,
		"free_bytes":      d.Free,
		"available_bytes": d.Available,
		"percent_used":    percent(used, d.Total),
		"total_human":     humanSize(d.Total),
		"used_human":      humanSize(used),
		"available_human": humanSize(d.Available),
	}
}

func topProcessList(ctx context.Context) []map[string]any {
	ctx, cancel := context.WithTimeout(ctx, processTimeout)
	defer cancel()

	processes := []map[string]any{}
	res, err := runCommand(ctx, "", "ps", "aux", "--sort=-pcpu")
	if err != nil || res.ExitCode != 0 {
		log.WithError(err).Debug("ps failed")
		return processes
	}
	return parsePS(res.Stdout, topProcesses)
}

// parsePS reads `ps aux` output, skipping the header
func parsePS(out string, limit int) []map[string]any {
	processes := []map[string]any{}
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	for _, line := range lines[min(1, len(lines)):] {
		if len(processes) >= limit {
			break
		}
		fields := strings.Fields(line)
		if len(fields) < 11 {
			continue
		}
		pid, _ := strconv.Atoi(fields[1])
		cpu, _ := strconv.ParseFloat(fields[2], 64)
		mem, _ := strconv.ParseFloat(fields[3], 64)
		vsz, _ := strconv.ParseInt(fields[4], 10, 64)
		rss, _ := strconv.ParseInt(fields[5], 10, 64)
		command := strings.Join(fields[10:], " ")
		if len(command) > maxCommandWidth {
			command = command[:maxCommandWidth]
		}
		processes = append(processes, map[string]any{
			"user":           fields[0],
			"pid":            pid,
			"cpu_percent":    cpu,
			"memory_percent": mem,
			"vsz":            vsz,
			"rss":            rss,
			"command":        command,
		})
	}
	return processes
}

func networkInfo() (map[string]any, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

	list := []map[string]any{}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		state := "down"
		if iface.Flags&net.FlagUp != 0 {
			state = "up"
		}

		addresses := []map[string]any{}
		addrs, err := iface.Addrs()
		if err == nil {
			for _, addr := range addrs {
				ipnet, ok := addr.(*net.IPNet)
				if !ok {
					continue
				}
				family := "inet6"
				if ipnet.IP.To4() != nil {
					family = "inet"
				}
				ones, _ := ipnet.Mask.Size()
				addresses = append(addresses, map[string]any{
					"family":    family,
					"address":   ipnet.IP.String(),
					"prefixlen": ones,
				})
			}
		}

		list = append(list, map[string]any{
			"name":      iface.Name,
			"state":     state,
			"mac":       iface.HardwareAddr.String(),
			"addresses": addresses,
		})
	}

	return map[string]any{"interfaces": list}, nil
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
