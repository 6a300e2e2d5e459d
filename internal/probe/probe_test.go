package probe

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

type fakeMemory struct {
	used uint64
	err  error
}

func (f fakeMemory) MemoryUsed(context.Context) (uint64, error) { return f.used, f.err }

type fakeDisk struct {
	mounts []string
	used   map[string]uint64
	err    error
	calls  int
}

func (f *fakeDisk) Mounts(context.Context) ([]string, error) {
	f.calls++
	return f.mounts, f.err
}

func (f *fakeDisk) UsedBytes(_ context.Context, mountpoint string) (uint64, error) {
	return f.used[mountpoint], nil
}

type fakeNetwork struct {
	ifaces []Interface
	err    error
}

func (f fakeNetwork) Interfaces(context.Context) ([]Interface, error) { return f.ifaces, f.err }

func TestSampleAllSources(t *testing.T) {
	p := New(Options{
		Memory: fakeMemory{used: 12345},
		Disk: &fakeDisk{
			mounts: []string{"/", "/data"},
			used:   map[string]uint64{"/": 678 * bytesPerMegabyte, "/data": 1},
		},
		Network: fakeNetwork{ifaces: []Interface{
			{Name: "lo"},
			{Name: "eth0", HardwareAddr: "AA:BB:CC:DD:EE:FF"},
		}},
		RootPath: "/",
	})

	snap, err := p.Sample(context.Background())
	if err != nil {
		t.Fatalf("Sample returned error: %v", err)
	}
	want := Snapshot{MemoryUsedBytes: 12345, DiskUsedMegabytes: 678, HardwareAddr: "aabbccddeeff"}
	if snap != want {
		t.Errorf("Sample() = %+v, want %+v", snap, want)
	}
}

func TestSampleRefreshesEveryCall(t *testing.T) {
	disk := &fakeDisk{mounts: []string{"/"}, used: map[string]uint64{"/": 0}}
	p := New(Options{
		Memory:   fakeMemory{},
		Disk:     disk,
		Network:  fakeNetwork{},
		RootPath: "/",
	})

	for i := 0; i < 3; i++ {
		disk.used["/"] = uint64(i) * bytesPerMegabyte
		snap, _ := p.Sample(context.Background())
		if snap.DiskUsedMegabytes != uint64(i) {
			t.Errorf("call %d: DiskUsedMegabytes = %d, want %d", i, snap.DiskUsedMegabytes, i)
		}
	}
	if disk.calls != 3 {
		t.Errorf("Mounts called %d times, want 3", disk.calls)
	}
}

func TestSampleRootNotMounted(t *testing.T) {
	p := New(Options{
		Memory:   fakeMemory{used: 1},
		Disk:     &fakeDisk{mounts: []string{"/", "/boot"}},
		Network:  fakeNetwork{ifaces: []Interface{{Name: "eth0", HardwareAddr: "00:11:22:33:44:55"}}},
		RootPath: "/does/not/exist",
	})

	snap, err := p.Sample(context.Background())
	if snap.DiskUsedMegabytes != 0 {
		t.Errorf("DiskUsedMegabytes = %d, want 0", snap.DiskUsedMegabytes)
	}
	if !errors.Is(err, ErrMountNotFound) {
		t.Errorf("expected ErrMountNotFound, got %v", err)
	}
	var degraded *DegradedError
	if !errors.As(err, &degraded) || degraded.Metric != MetricDisk {
		t.Errorf("expected disk DegradedError, got %v", err)
	}
	if snap.MemoryUsedBytes != 1 || snap.HardwareAddr != "001122334455" {
		t.Errorf("other metrics should be unaffected, got %+v", snap)
	}
}

func TestSampleNoInterfaces(t *testing.T) {
	tests := []struct {
		name   string
		ifaces []Interface
		iface  string
		want   error
	}{
		{name: "none enumerable", ifaces: nil, want: ErrNoInterface},
		{name: "only loopback", ifaces: []Interface{{Name: "lo"}}, want: ErrNoInterface},
		{name: "named missing", ifaces: []Interface{{Name: "eth0", HardwareAddr: "aa:bb:cc:dd:ee:ff"}}, iface: "wlan0", want: ErrInterfaceNotFound},
		{name: "named without address", ifaces: []Interface{{Name: "lo"}}, iface: "lo", want: ErrNoInterface},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New(Options{
				Memory:        fakeMemory{},
				Disk:          &fakeDisk{mounts: []string{"/"}},
				Network:       fakeNetwork{ifaces: tt.ifaces},
				RootPath:      "/",
				InterfaceName: tt.iface,
			})
			snap, err := p.Sample(context.Background())
			if snap.HardwareAddr != UnspecifiedHardwareAddr {
				t.Errorf("HardwareAddr = %q, want %q", snap.HardwareAddr, UnspecifiedHardwareAddr)
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestSampleNamedInterface(t *testing.T) {
	p := New(Options{
		Memory: fakeMemory{},
		Disk:   &fakeDisk{mounts: []string{"/"}},
		Network: fakeNetwork{ifaces: []Interface{
			{Name: "eth0", HardwareAddr: "aa:aa:aa:aa:aa:aa"},
			{Name: "eth1", HardwareAddr: "bb-bb-bb-bb-bb-bb"},
		}},
		RootPath:      "/",
		InterfaceName: "eth1",
	})

	snap, err := p.Sample(context.Background())
	if err != nil {
		t.Fatalf("Sample returned error: %v", err)
	}
	if snap.HardwareAddr != "bbbbbbbbbbbb" {
		t.Errorf("HardwareAddr = %q, want bbbbbbbbbbbb", snap.HardwareAddr)
	}
}

func TestSampleDegradesIndependently(t *testing.T) {
	p := New(Options{
		Memory:   fakeMemory{err: errors.New("meminfo unavailable")},
		Disk:     &fakeDisk{err: errors.New("partitions unavailable")},
		Network:  fakeNetwork{err: errors.New("netlink unavailable")},
		RootPath: "/",
	})

	snap, err := p.Sample(context.Background())
	if err == nil {
		t.Fatal("expected joined degradation error")
	}
	want := Snapshot{HardwareAddr: UnspecifiedHardwareAddr}
	if snap != want {
		t.Errorf("Sample() = %+v, want %+v", snap, want)
	}

	metrics := map[string]bool{}
	for _, d := range Degradations(err) {
		metrics[d.Metric] = true
	}
	for _, m := range []string{MetricMemory, MetricDisk, MetricNetwork} {
		if !metrics[m] {
			t.Errorf("missing degradation for %s", m)
		}
	}
}

func TestDegradations(t *testing.T) {
	if got := Degradations(nil); got != nil {
		t.Errorf("Degradations(nil) = %v", got)
	}

	single := &DegradedError{Metric: MetricDisk, Err: ErrMountNotFound}
	if got := Degradations(single); len(got) != 1 || got[0] != single {
		t.Errorf("Degradations(single) = %v", got)
	}

	wrapped := fmt.Errorf("sample: %w", single)
	if got := Degradations(wrapped); len(got) != 1 || got[0].Metric != MetricDisk {
		t.Errorf("Degradations(wrapped) = %v", got)
	}

	joined := errors.Join(single, errors.New("unrelated"), &DegradedError{Metric: MetricNetwork, Err: ErrNoInterface})
	got := Degradations(joined)
	if len(got) != 2 || got[0].Metric != MetricDisk || got[1].Metric != MetricNetwork {
		t.Errorf("Degradations(joined) = %v", got)
	}

	if got := Degradations(errors.New("plain")); got != nil {
		t.Errorf("Degradations(plain) = %v", got)
	}
}

func TestNormalizeHardwareAddr(t *testing.T) {
	tests := map[string]string{
		"AA:BB:CC:DD:EE:FF": "aabbccddeeff",
		"aa-bb-cc-dd-ee-ff": "aabbccddeeff",
		"aabbccddeeff":      "aabbccddeeff",
		" 00:00:5e:00:53:01": "00005e005301",
		"":                  "",
	}
	for in, want := range tests {
		if got := NormalizeHardwareAddr(in); got != want {
			t.Errorf("NormalizeHardwareAddr(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestMeminfoFile(t *testing.T) {
	dir := t.TempDir()

	t.Run("MemAvailable", func(t *testing.T) {
		path := filepath.Join(dir, "meminfo")
		content := "MemTotal:       1000 kB\nMemFree:         100 kB\nMemAvailable:    400 kB\nBuffers:          10 kB\n"
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
		used, err := MeminfoFile{Path: path}.MemoryUsed(context.Background())
		if err != nil {
			t.Fatalf("MemoryUsed failed: %v", err)
		}
		if used != 600*1024 {
			t.Errorf("MemoryUsed = %d, want %d", used, 600*1024)
		}
	})

	t.Run("legacy kernel", func(t *testing.T) {
		path := filepath.Join(dir, "meminfo-legacy")
		content := "MemTotal: 1000 kB\nMemFree: 100 kB\nBuffers: 50 kB\nCached: 250 kB\n"
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
		used, err := MeminfoFile{Path: path}.MemoryUsed(context.Background())
		if err != nil {
			t.Fatalf("MemoryUsed failed: %v", err)
		}
		if used != 600*1024 {
			t.Errorf("MemoryUsed = %d, want %d", used, 600*1024)
		}
	})

	t.Run("missing total", func(t *testing.T) {
		path := filepath.Join(dir, "meminfo-bad")
		if err := os.WriteFile(path, []byte("MemFree: 1 kB\n"), 0o644); err != nil {
			t.Fatal(err)
		}
		if _, err := (MeminfoFile{Path: path}).MemoryUsed(context.Background()); err == nil {
			t.Error("expected error for missing MemTotal")
		}
	})

	t.Run("missing file", func(t *testing.T) {
		if _, err := (MeminfoFile{Path: filepath.Join(dir, "nope")}).MemoryUsed(context.Background()); !errors.Is(err, os.ErrNotExist) {
			t.Errorf("expected ErrNotExist, got %v", err)
		}
	})
}

func TestVirtualMemoryReportsUsage(t *testing.T) {
	if runtime.GOOS != "linux" && runtime.GOOS != "darwin" {
		t.Skip("gopsutil memory backend only exercised on linux and darwin")
	}
	used, err := VirtualMemory{}.MemoryUsed(context.Background())
	if err != nil {
		t.Fatalf("MemoryUsed failed: %v", err)
	}
	if used == 0 {
		t.Error("expected non-zero memory usage")
	}
}
