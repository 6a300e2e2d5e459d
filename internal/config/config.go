// Package config resolves the agent's settings from command-line flags, a
// persisted settings file, and computed system defaults, in that order of
// precedence, into a validated Config.
package config

import (
	"log/slog"
	"net/netip"
	"time"

	"github.com/bc-dunia/hoststat/internal/otel"
)

// Config is the validated agent configuration. It is built once by Resolve
// and passed by value; nothing mutates it afterwards.
type Config struct {
	// Destination is the UDP endpoint reports are sent to.
	Destination netip.AddrPort

	// InterfaceName selects the interface whose hardware address is
	// reported. Empty means the first usable interface at sample time.
	InterfaceName string

	// MinIntervalSeconds and MaxIntervalSeconds bound the sleep between
	// reports. MinIntervalSeconds <= MaxIntervalSeconds always holds.
	MinIntervalSeconds uint64
	MaxIntervalSeconds uint64

	// RootPath is the mount point whose disk usage is reported.
	RootPath string

	// SendNow skips the initial wait before the first report.
	SendNow bool

	// MeminfoPath selects a meminfo-format file as the memory source.
	// Empty means the OS default.
	MeminfoPath string

	// SettingsPath is the settings file given with --config, if any.
	SettingsPath string

	Observability Observability
}

// Observability configures the agent's own logs, metrics, and traces.
type Observability struct {
	LogLevel     slog.Level
	LogFormat    string
	OTelExporter otel.ExporterType
	OTelEndpoint string
	OTelInsecure bool
}

// MinInterval returns the minimum sleep between reports.
func (c Config) MinInterval() time.Duration {
	return time.Duration(c.MinIntervalSeconds) * time.Second
}

// MaxInterval returns the maximum sleep between reports.
func (c Config) MaxInterval() time.Duration {
	return time.Duration(c.MaxIntervalSeconds) * time.Second
}
