//go:build linux

package builtin

import (
	"bufio"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sys/unix"
)

// loadShift is the fixed-point scale of sysinfo load averages
const loadShift = 1 << 16

func readHost() hostSnapshot {
	snap := hostSnapshot{Hostname: "unknown", Load: []float64{0, 0, 0}, CPUModel: "unknown"}

	var uts unix.Utsname
	if err := unix.Uname(&uts); err == nil {
		snap.Hostname = unix.ByteSliceToString(uts.Nodename[:])
	}

	var si unix.Sysinfo_t
	if err := unix.Sysinfo(&si); err == nil {
		snap.Uptime = time.Duration(int64(si.Uptime)) * time.Second
		for i := range snap.Load {
			snap.Load[i] = round2(float64(si.Loads[i]) / loadShift)
		}

		unit := uint64(si.Unit)
		if unit == 0 {
			unit = 1
		}
		mem := &memoryStats{
			Total:   uint64(si.Totalram) * unit,
			Free:    uint64(si.Freeram) * unit,
			Buffers: uint64(si.Bufferram) * unit,
		}
		mem.Available = mem.Free + mem.Buffers
		if meminfo := readMeminfo(); meminfo != nil {
			if v, ok := meminfo["MemAvailable"]; ok {
				mem.Available = v
			}
			mem.Cached = meminfo["Cached"]
		}
		snap.Memory = mem
	} else {
		log.WithError(err).Debug("sysinfo failed")
	}

	var st unix.Statfs_t
	if err := unix.Statfs("/", &st); err == nil {
		blockSize := uint64(st.Frsize)
		if blockSize == 0 {
			blockSize = uint64(st.Bsize)
		}
		snap.Disk = &diskStats{
			Total:     uint64(st.Blocks) * blockSize,
			Free:      uint64(st.Bfree) * blockSize,
			Available: uint64(st.Bavail) * blockSize,
		}
	} else {
		log.WithError(err).Debug("statfs failed")
	}

	snap.CPUModel = cpuModel()
	return snap
}

// readMeminfo returns /proc/meminfo values in bytes
func readMeminfo() map[string]uint64 {
	f, err := os.Open("/proc/meminfo")
	if err != nil {
		return nil
	}
	defer f.Close()

	values := map[string]uint64{}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		key, rest, found := strings.Cut(scanner.Text(), ":")
		if !found {
			continue
		}
		fields := strings.Fields(rest)
		if len(fields) == 0 {
			continue
		}
		if kb, err := strconv.ParseUint(fields[0], 10, 64); err == nil {
			values[key] = kb * 1024
		}
	}
	return values
}

func cpuModel() string {
	f, err := os.Open("/proc/cpuinfo")
	if err != nil {
		return "unknown"
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		key, value, found := strings.Cut(scanner.Text(), ":")
		if found && strings.TrimSpace(key) == "model name" {
			return strings.TrimSpace(value)
		}
	}
	return "unknown"
}
