package reporter

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net"
	"net/netip"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bc-dunia/hoststat/internal/config"
	"github.com/bc-dunia/hoststat/internal/events"
	"github.com/bc-dunia/hoststat/internal/interval"
	"github.com/bc-dunia/hoststat/internal/probe"
	"github.com/bc-dunia/hoststat/internal/transport"
)

type fakeSampler struct {
	snap  probe.Snapshot
	err   error
	calls int
}

func (f *fakeSampler) Sample(context.Context) (probe.Snapshot, error) {
	f.calls++
	return f.snap, f.err
}

type recordingSender struct {
	mu       sync.Mutex
	payloads []string
	err      error
}

func (r *recordingSender) Send(_ context.Context, payload []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.payloads = append(r.payloads, string(payload))
	return r.err
}

type fixedScheduler time.Duration

func (f fixedScheduler) Next(uint64, uint64) time.Duration { return time.Duration(f) }

type sleepRecorder struct {
	sleeps []time.Duration
	hook   func(n int) error
}

func (s *sleepRecorder) sleep(_ context.Context, d time.Duration) error {
	s.sleeps = append(s.sleeps, d)
	if s.hook != nil {
		return s.hook(len(s.sleeps))
	}
	return nil
}

var testSnapshot = probe.Snapshot{MemoryUsedBytes: 12345, DiskUsedMegabytes: 678, HardwareAddr: "aabbccddeeff"}

func testConfig(minSec, maxSec uint64, sendNow bool) config.Config {
	return config.Config{
		Destination:        netip.MustParseAddrPort("127.0.0.1:8125"),
		MinIntervalSeconds: minSec,
		MaxIntervalSeconds: maxSec,
		RootPath:           "/",
		SendNow:            sendNow,
	}
}

func TestRunLoopbackSingleIteration(t *testing.T) {
	ln, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Skipf("cannot listen on loopback: %v", err)
	}
	defer ln.Close()

	cfg := testConfig(0, 0, true)
	cfg.Destination = ln.LocalAddr().(*net.UDPAddr).AddrPort()

	sender, err := transport.NewUDPSender(cfg.Destination)
	if err != nil {
		t.Fatal(err)
	}
	defer sender.Close()

	sleeper := &sleepRecorder{}
	loop, err := New(cfg, Options{
		Sampler:    &fakeSampler{snap: testSnapshot},
		Sender:     sender,
		Scheduler:  interval.New(nil),
		Sleep:      sleeper.sleep,
		Iterations: 1,
	})
	if err != nil {
		t.Fatal(err)
	}

	if err := loop.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	ln.SetReadDeadline(time.Now().Add(5 * time.Second))
	buf := make([]byte, 1500)
	n, _, err := ln.ReadFromUDPAddrPort(buf)
	if err != nil {
		t.Fatalf("no datagram received: %v", err)
	}
	if got := string(buf[:n]); got != "12345 678 aabbccddeeff" {
		t.Errorf("payload = %q", got)
	}

	ln.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	if _, _, err := ln.ReadFromUDPAddrPort(buf); err == nil {
		t.Error("expected exactly one datagram")
	}

	if len(sleeper.sleeps) != 1 || sleeper.sleeps[0] != 0 {
		t.Errorf("sleeps = %v, want [0s]", sleeper.sleeps)
	}
	if loop.ReportsSent() != 1 {
		t.Errorf("ReportsSent = %d, want 1", loop.ReportsSent())
	}
}

func TestRunWaitsMinIntervalFirst(t *testing.T) {
	sender := &recordingSender{}
	sleeper := &sleepRecorder{}
	loop, err := New(testConfig(300, 540, false), Options{
		Sampler:    &fakeSampler{snap: testSnapshot},
		Sender:     sender,
		Scheduler:  fixedScheduler(400 * time.Second),
		Sleep:      sleeper.sleep,
		Iterations: 2,
	})
	if err != nil {
		t.Fatal(err)
	}

	if err := loop.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	want := []time.Duration{300 * time.Second, 400 * time.Second, 400 * time.Second}
	if len(sleeper.sleeps) != len(want) {
		t.Fatalf("sleeps = %v, want %v", sleeper.sleeps, want)
	}
	for i := range want {
		if sleeper.sleeps[i] != want[i] {
			t.Errorf("sleep[%d] = %v, want %v", i, sleeper.sleeps[i], want[i])
		}
	}
	if len(sender.payloads) != 2 {
		t.Errorf("sent %d payloads, want 2", len(sender.payloads))
	}
}

func TestRunSendNowSkipsInitialWait(t *testing.T) {
	sleeper := &sleepRecorder{}
	loop, err := New(testConfig(300, 540, true), Options{
		Sampler:    &fakeSampler{snap: testSnapshot},
		Sender:     &recordingSender{},
		Scheduler:  fixedScheduler(time.Second),
		Sleep:      sleeper.sleep,
		Iterations: 1,
	})
	if err != nil {
		t.Fatal(err)
	}

	if err := loop.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(sleeper.sleeps) != 1 || sleeper.sleeps[0] != time.Second {
		t.Errorf("sleeps = %v, want [1s]", sleeper.sleeps)
	}
}

func TestRunContinuesAfterSendFailure(t *testing.T) {
	var logs bytes.Buffer
	sender := &recordingSender{err: transport.MapError(errors.New("boom"), "127.0.0.1:8125")}
	loop, err := New(testConfig(0, 0, true), Options{
		Sampler:    &fakeSampler{snap: testSnapshot},
		Sender:     sender,
		Sleep:      (&sleepRecorder{}).sleep,
		Logger:     events.NewEventLogger(&logs, events.Options{Level: slog.LevelDebug}),
		Iterations: 3,
	})
	if err != nil {
		t.Fatal(err)
	}

	if err := loop.Run(context.Background()); err != nil {
		t.Fatalf("send failures must not stop the loop: %v", err)
	}
	if len(sender.payloads) != 3 {
		t.Errorf("attempted %d sends, want 3", len(sender.payloads))
	}
	if loop.SendErrors() != 3 || loop.ReportsSent() != 0 {
		t.Errorf("SendErrors = %d, ReportsSent = %d", loop.SendErrors(), loop.ReportsSent())
	}
	if got := strings.Count(logs.String(), `"msg":"send_failed"`); got != 3 {
		t.Errorf("logged %d send_failed events, want 3:\n%s", got, logs.String())
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sender := &recordingSender{}
	sleeper := &sleepRecorder{hook: func(n int) error {
		if n == 2 {
			cancel()
			return ctx.Err()
		}
		return nil
	}}
	loop, err := New(testConfig(0, 0, true), Options{
		Sampler: &fakeSampler{snap: testSnapshot},
		Sender:  sender,
		Sleep:   sleeper.sleep,
	})
	if err != nil {
		t.Fatal(err)
	}

	if err := loop.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() = %v, want context.Canceled", err)
	}
	if len(sender.payloads) != 2 {
		t.Errorf("sent %d payloads before cancel, want 2", len(sender.payloads))
	}
}

func TestRunCancelledDuringInitialWait(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sender := &recordingSender{}
	loop, err := New(testConfig(300, 540, false), Options{
		Sampler: &fakeSampler{snap: testSnapshot},
		Sender:  sender,
	})
	if err != nil {
		t.Fatal(err)
	}

	if err := loop.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() = %v, want context.Canceled", err)
	}
	if len(sender.payloads) != 0 {
		t.Error("nothing should be sent before the initial wait completes")
	}
}

func TestRunOnceReportsDegradedSnapshot(t *testing.T) {
	var logs bytes.Buffer
	degraded := errors.Join(
		&probe.DegradedError{Metric: probe.MetricDisk, Err: probe.ErrMountNotFound},
		&probe.DegradedError{Metric: probe.MetricNetwork, Err: probe.ErrNoInterface},
	)
	sampler := &fakeSampler{
		snap: probe.Snapshot{MemoryUsedBytes: 42, HardwareAddr: probe.UnspecifiedHardwareAddr},
		err:  degraded,
	}
	sender := &recordingSender{}

	loop, err := New(testConfig(0, 0, true), Options{
		Sampler: sampler,
		Sender:  sender,
		Logger:  events.NewEventLogger(&logs, events.Options{Level: slog.LevelDebug}),
	})
	if err != nil {
		t.Fatal(err)
	}

	if err := loop.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce failed: %v", err)
	}
	if len(sender.payloads) != 1 || sender.payloads[0] != "42 0 000000000000" {
		t.Errorf("payloads = %q", sender.payloads)
	}

	out := logs.String()
	for _, want := range []string{`"metric":"disk"`, `"metric":"network"`, `"msg":"report_sent"`} {
		if !strings.Contains(out, want) {
			t.Errorf("logs missing %s:\n%s", want, out)
		}
	}
}

func TestRunOnceRefreshesEachIteration(t *testing.T) {
	sampler := &fakeSampler{snap: testSnapshot}
	loop, err := New(testConfig(0, 0, true), Options{Sampler: sampler, Sender: &recordingSender{}})
	if err != nil {
		t.Fatal(err)
	}

	for range 3 {
		if err := loop.RunOnce(context.Background()); err != nil {
			t.Fatal(err)
		}
	}
	if sampler.calls != 3 {
		t.Errorf("Sample called %d times, want 3", sampler.calls)
	}
}

func TestNewValidatesOptions(t *testing.T) {
	cfg := testConfig(0, 0, true)
	tests := []struct {
		name string
		opts Options
	}{
		{name: "no sampler", opts: Options{Sender: &recordingSender{}}},
		{name: "no sender", opts: Options{Sampler: &fakeSampler{}}},
		{name: "negative iterations", opts: Options{Sampler: &fakeSampler{}, Sender: &recordingSender{}, Iterations: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(cfg, tt.opts); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestSleepContext(t *testing.T) {
	if err := SleepContext(context.Background(), 0); err != nil {
		t.Errorf("zero sleep = %v", err)
	}
	if err := SleepContext(context.Background(), time.Millisecond); err != nil {
		t.Errorf("short sleep = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start := time.Now()
	if err := SleepContext(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled sleep = %v", err)
	}
	if time.Since(start) > time.Second {
		t.Error("cancelled sleep did not return promptly")
	}
}
