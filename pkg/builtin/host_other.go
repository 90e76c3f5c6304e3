//go:build !linux

package builtin

import "os"

func readHost() hostSnapshot {
	snap := hostSnapshot{Hostname: "unknown", Load: []float64{0, 0, 0}, CPUModel: "unknown"}
	if name, err := os.Hostname(); err == nil {
		snap.Hostname = name
	}
	return snap
}
