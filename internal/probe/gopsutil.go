package probe

import (
	"context"
	"fmt"

	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
	psnet "github.com/shirou/gopsutil/v3/net"
)

// VirtualMemory reads memory usage from the OS through gopsutil.
type VirtualMemory struct{}

func (VirtualMemory) MemoryUsed(ctx context.Context) (uint64, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return 0, fmt.Errorf("virtual memory: %w", err)
	}
	return vm.Used, nil
}

// Filesystems enumerates mounted partitions through gopsutil.
type Filesystems struct {
	// All includes pseudo filesystems such as proc and sysfs.
	All bool
}

func (f Filesystems) Mounts(ctx context.Context) ([]string, error) {
	parts, err := disk.PartitionsWithContext(ctx, f.All)
	if err != nil {
		return nil, fmt.Errorf("partitions: %w", err)
	}
	mounts := make([]string, 0, len(parts))
	for _, p := range parts {
		mounts = append(mounts, p.Mountpoint)
	}
	return mounts, nil
}

// UsedBytes returns total minus available capacity, so blocks reserved for
// root count as used.
func (Filesystems) UsedBytes(ctx context.Context, mountpoint string) (uint64, error) {
	usage, err := disk.UsageWithContext(ctx, mountpoint)
	if err != nil {
		return 0, fmt.Errorf("usage of %s: %w", mountpoint, err)
	}
	if usage.Free > usage.Total {
		return 0, nil
	}
	return usage.Total - usage.Free, nil
}

// NetInterfaces enumerates network interfaces through gopsutil.
type NetInterfaces struct{}

func (NetInterfaces) Interfaces(ctx context.Context) ([]Interface, error) {
	stats, err := psnet.InterfacesWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("interfaces: %w", err)
	}
	ifaces := make([]Interface, 0, len(stats))
	for _, s := range stats {
		ifaces = append(ifaces, Interface{Name: s.Name, HardwareAddr: s.HardwareAddr})
	}
	return ifaces, nil
}
