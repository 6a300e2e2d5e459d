package probe

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

var (
	ErrMountNotFound     = errors.New("root path is not a mount point")
	ErrNoInterface       = errors.New("no usable network interface")
	ErrInterfaceNotFound = errors.New("network interface not found")
)

// DegradedError reports a metric that fell back to its default value.
type DegradedError struct {
	Metric string
	Err    error
}

func (e *DegradedError) Error() string {
	return fmt.Sprintf("%s probe degraded: %v", e.Metric, e.Err)
}

func (e *DegradedError) Unwrap() error {
	return e.Err
}

// Options configures a Probe. Nil sources fall back to the gopsutil backends.
type Options struct {
	Memory  MemorySource
	Disk    DiskSource
	Network NetworkSource

	// RootPath is the mount point whose usage is reported.
	RootPath string

	// InterfaceName selects the interface whose address is reported.
	// Empty means the first interface with a hardware address.
	InterfaceName string
}

// Probe samples memory, disk, and network identity. It is owned by a single
// report loop and is not safe for concurrent use.
type Probe struct {
	memory        MemorySource
	disk          DiskSource
	network       NetworkSource
	rootPath      string
	interfaceName string
}

// New creates a Probe from opts.
func New(opts Options) *Probe {
	p := &Probe{
		memory:        opts.Memory,
		disk:          opts.Disk,
		network:       opts.Network,
		rootPath:      filepath.Clean(opts.RootPath),
		interfaceName: opts.InterfaceName,
	}
	if p.memory == nil {
		p.memory = VirtualMemory{}
	}
	if p.disk == nil {
		p.disk = Filesystems{}
	}
	if p.network == nil {
		p.network = NetInterfaces{}
	}
	return p
}

// Sample refreshes every source and returns a complete Snapshot. A non-nil
// error joins the DegradedErrors of the sources that fell back to defaults;
// the Snapshot is valid either way.
func (p *Probe) Sample(ctx context.Context) (Snapshot, error) {
	snap := Snapshot{HardwareAddr: UnspecifiedHardwareAddr}
	var errs []error

	if used, err := p.memory.MemoryUsed(ctx); err != nil {
		errs = append(errs, &DegradedError{Metric: MetricMemory, Err: err})
	} else {
		snap.MemoryUsedBytes = used
	}

	if used, err := p.diskUsed(ctx); err != nil {
		errs = append(errs, &DegradedError{Metric: MetricDisk, Err: err})
	} else {
		snap.DiskUsedMegabytes = used / bytesPerMegabyte
	}

	if addr, err := p.hardwareAddr(ctx); err != nil {
		errs = append(errs, &DegradedError{Metric: MetricNetwork, Err: err})
	} else {
		snap.HardwareAddr = addr
	}

	return snap, errors.Join(errs...)
}

func (p *Probe) diskUsed(ctx context.Context) (uint64, error) {
	mounts, err := p.disk.Mounts(ctx)
	if err != nil {
		return 0, err
	}
	for _, m := range mounts {
		if filepath.Clean(m) == p.rootPath {
			return p.disk.UsedBytes(ctx, m)
		}
	}
	return 0, fmt.Errorf("%w: %s", ErrMountNotFound, p.rootPath)
}

func (p *Probe) hardwareAddr(ctx context.Context) (string, error) {
	ifaces, err := p.network.Interfaces(ctx)
	if err != nil {
		return "", err
	}
	if p.interfaceName == "" {
		iface, ok := FirstUsableInterface(ifaces)
		if !ok {
			return "", ErrNoInterface
		}
		return NormalizeHardwareAddr(iface.HardwareAddr), nil
	}
	for _, iface := range ifaces {
		if iface.Name != p.interfaceName {
			continue
		}
		addr := NormalizeHardwareAddr(iface.HardwareAddr)
		if addr == "" {
			return "", fmt.Errorf("%w: %s has no hardware address", ErrNoInterface, iface.Name)
		}
		return addr, nil
	}
	return "", fmt.Errorf("%w: %s", ErrInterfaceNotFound, p.interfaceName)
}

// FirstUsableInterface returns the first interface that has a hardware address.
func FirstUsableInterface(ifaces []Interface) (Interface, bool) {
	for _, iface := range ifaces {
		if NormalizeHardwareAddr(iface.HardwareAddr) != "" {
			return iface, true
		}
	}
	return Interface{}, false
}

// NormalizeHardwareAddr lowercases addr and strips ':' and '-' separators,
// so "AA:BB:CC:DD:EE:FF" becomes "aabbccddeeff".
func NormalizeHardwareAddr(addr string) string {
	addr = strings.ToLower(strings.TrimSpace(addr))
	return strings.NewReplacer(":", "", "-", "").Replace(addr)
}

// Degradations returns every *DegradedError in err, including those joined
// by Sample.
func Degradations(err error) []*DegradedError {
	switch e := err.(type) {
	case nil:
		return nil
	case *DegradedError:
		return []*DegradedError{e}
	case interface{ Unwrap() []error }:
		var out []*DegradedError
		for _, inner := range e.Unwrap() {
			out = append(out, Degradations(inner)...)
		}
		return out
	}

	var d *DegradedError
	if errors.As(err, &d) {
		return []*DegradedError{d}
	}
	return nil
}
