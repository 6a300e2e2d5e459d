package probe

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// DefaultMeminfoPath is the kernel memory accounting file on Linux.
const DefaultMeminfoPath = "/proc/meminfo"

// MeminfoFile reads memory usage from a file in /proc/meminfo format. It lets
// the agent report a container's or chroot's view of memory instead of the
// host's.
type MeminfoFile struct {
	Path string
}

// MemoryUsed returns MemTotal minus MemAvailable. Kernels without
// MemAvailable fall back to MemFree + Buffers + Cached.
func (m MeminfoFile) MemoryUsed(ctx context.Context) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	path := m.Path
	if path == "" {
		path = DefaultMeminfoPath
	}

	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open meminfo: %w", err)
	}
	defer f.Close()

	fields := make(map[string]uint64)
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		// "MemTotal:       16318412 kB"
		name, rest, ok := strings.Cut(sc.Text(), ":")
		if !ok {
			continue
		}
		parts := strings.Fields(rest)
		if len(parts) == 0 {
			continue
		}
		v, err := strconv.ParseUint(parts[0], 10, 64)
		if err != nil {
			continue
		}
		if len(parts) > 1 && parts[1] == "kB" {
			v *= 1024
		}
		fields[name] = v
	}
	if err := sc.Err(); err != nil {
		return 0, fmt.Errorf("read meminfo: %w", err)
	}

	total, ok := fields["MemTotal"]
	if !ok {
		return 0, fmt.Errorf("%s: MemTotal missing", path)
	}
	avail, ok := fields["MemAvailable"]
	if !ok {
		avail = fields["MemFree"] + fields["Buffers"] + fields["Cached"]
	}
	if avail > total {
		return 0, nil
	}
	return total - avail, nil
}
