// Package probe samples the host state reported by the hoststat agent.
// Each metric comes from an independent source so backends can be swapped
// per platform, and each degrades to a defined default instead of failing
// the whole snapshot.
package probe

import "context"

// UnspecifiedHardwareAddr is reported when no network identity is available.
const UnspecifiedHardwareAddr = "000000000000"

const bytesPerMegabyte = 1 << 20

// Metric names used when a source degrades.
const (
	MetricMemory  = "memory"
	MetricDisk    = "disk"
	MetricNetwork = "network"
)

// Snapshot is one point-in-time sample of the host.
type Snapshot struct {
	// MemoryUsedBytes is the memory in use (not free) at refresh time.
	MemoryUsedBytes uint64

	// DiskUsedMegabytes is total minus available capacity of the filesystem
	// mounted at the configured root, in MiB.
	DiskUsedMegabytes uint64

	// HardwareAddr is the lowercase hex hardware address with separators
	// stripped, or UnspecifiedHardwareAddr.
	HardwareAddr string
}

// Interface is an enumerated network interface.
type Interface struct {
	Name         string
	HardwareAddr string
}

// MemorySource reports memory currently in use.
type MemorySource interface {
	MemoryUsed(ctx context.Context) (uint64, error)
}

// DiskSource enumerates mount points and reports used capacity for one of them.
type DiskSource interface {
	Mounts(ctx context.Context) ([]string, error)
	UsedBytes(ctx context.Context, mountpoint string) (uint64, error)
}

// NetworkSource enumerates network interfaces in system order.
type NetworkSource interface {
	Interfaces(ctx context.Context) ([]Interface, error)
}
