package config

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/netip"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/bc-dunia/hoststat/internal/otel"
	"github.com/bc-dunia/hoststat/internal/probe"
)

// Options supplies the collaborators Resolve may use. Nil fields fall back
// to the OS implementations.
type Options struct {
	Store   Store
	Disk    probe.DiskSource
	Network probe.NetworkSource

	// Output receives the usage text for --help.
	Output io.Writer
}

func (o Options) withDefaults() Options {
	if o.Store == nil {
		o.Store = YAMLFile{}
	}
	if o.Disk == nil {
		o.Disk = probe.Filesystems{}
	}
	if o.Network == nil {
		o.Network = probe.NetInterfaces{}
	}
	if o.Output == nil {
		o.Output = os.Stdout
	}
	return o
}

// Resolution is the outcome of Resolve. Config is nil when Help is set.
type Resolution struct {
	Config *Config

	// Help is set when usage was printed and the caller should exit cleanly.
	Help bool

	// Bootstrapped is set when a missing settings file was written.
	Bootstrapped bool

	// Warnings are non-fatal problems, such as a failed bootstrap write.
	Warnings []error
}

// Resolve merges command-line flags, the settings file named by --config,
// and system defaults into a validated Config. Each layer only fills what
// the layers above it left unset. On error no Config is produced.
func Resolve(ctx context.Context, args []string, opts Options) (*Resolution, error) {
	opts = opts.withDefaults()

	cli, err := parseFlags(args)
	if errors.Is(err, flag.ErrHelp) {
		printUsage(opts.Output)
		return &Resolution{Help: true}, nil
	}
	if err != nil {
		return nil, NewArgParseError(err)
	}

	res := &Resolution{}
	raw := cli.settings

	if cli.configPath != "" {
		if err := applySettingsFile(opts.Store, cli.configPath, &raw, res); err != nil {
			return nil, err
		}
	}

	ifaces, ifacesKnown := applyDefaults(ctx, opts, &raw, res)

	cfg, err := build(raw, cli, ifaces, ifacesKnown)
	if err != nil {
		return nil, err
	}
	res.Config = cfg
	return res, nil
}

// applySettingsFile fills raw from the file at path, or writes raw to path
// when the file does not exist yet.
func applySettingsFile(store Store, path string, raw *Settings, res *Resolution) error {
	loaded, err := store.Load(path)
	switch {
	case err == nil:
		raw.fillFrom(loaded)
		return nil
	case errors.Is(err, fs.ErrNotExist):
		if err := store.Save(path, *raw); err != nil {
			res.Warnings = append(res.Warnings, NewIOError(path, "write", err))
			return nil
		}
		res.Bootstrapped = true
		return nil
	case errors.Is(err, ErrMalformedSettings):
		return NewInvalidValueError(fieldConfig, path, err)
	default:
		return NewIOError(path, "read", err)
	}
}

// applyDefaults fills the remaining unset fields. It returns the enumerated
// interfaces and whether enumeration succeeded, for validating a configured
// interface name.
func applyDefaults(ctx context.Context, opts Options, raw *Settings, res *Resolution) ([]probe.Interface, bool) {
	var ifaces []probe.Interface
	ifacesKnown := false
	if raw.InterfaceName == nil || *raw.InterfaceName != "" {
		list, err := opts.Network.Interfaces(ctx)
		if err != nil {
			res.Warnings = append(res.Warnings, fmt.Errorf("cannot enumerate network interfaces: %w", err))
		} else {
			ifaces, ifacesKnown = list, true
		}
	}
	if raw.InterfaceName == nil && ifacesKnown {
		if iface, ok := probe.FirstUsableInterface(ifaces); ok {
			raw.InterfaceName = stringPtr(iface.Name)
		}
	}

	if raw.RootPath == nil {
		root := DefaultRootPath
		mounts, err := opts.Disk.Mounts(ctx)
		switch {
		case err != nil:
			res.Warnings = append(res.Warnings, fmt.Errorf("cannot enumerate mount points: %w", err))
		case len(mounts) > 0:
			root = mounts[0]
		}
		raw.RootPath = stringPtr(root)
	}

	raw.fillFrom(Settings{
		StatsDestination: stringPtr(DefaultDestination),
		MinInterval:      stringPtr(DefaultMinInterval),
		MaxInterval:      stringPtr(DefaultMaxInterval),
	})
	return ifaces, ifacesKnown
}

func build(raw Settings, cli *cliFlags, ifaces []probe.Interface, ifacesKnown bool) (*Config, error) {
	dest, err := parseDestination(value(raw.StatsDestination))
	if err != nil {
		return nil, err
	}

	minSec, err := parseSeconds(fieldMinInterval, value(raw.MinInterval))
	if err != nil {
		return nil, err
	}
	maxSec, err := parseSeconds(fieldMaxInterval, value(raw.MaxInterval))
	if err != nil {
		return nil, err
	}
	if minSec > maxSec {
		return nil, NewIntervalOrderError(minSec, maxSec)
	}

	root := strings.TrimSpace(value(raw.RootPath))
	if root == "" {
		return nil, NewMissingValueError(fieldRootPath)
	}

	iface := strings.TrimSpace(value(raw.InterfaceName))
	if iface != "" && ifacesKnown {
		known := slices.ContainsFunc(ifaces, func(i probe.Interface) bool { return i.Name == iface })
		if !known {
			return nil, NewUnknownInterfaceError(iface)
		}
	}

	obs, err := parseObservability(cli)
	if err != nil {
		return nil, err
	}

	return &Config{
		Destination:        dest,
		InterfaceName:      iface,
		MinIntervalSeconds: minSec,
		MaxIntervalSeconds: maxSec,
		RootPath:           filepath.Clean(root),
		SendNow:            cli.sendNow,
		MeminfoPath:        cli.meminfoPath,
		SettingsPath:       cli.configPath,
		Observability:      obs,
	}, nil
}

func value(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

// parseDestination accepts an IP literal with a port, "IP:PORT" or
// "[IPv6]:PORT". Host names are rejected so resolution never touches DNS.
func parseDestination(v string) (netip.AddrPort, error) {
	s := strings.TrimSpace(v)
	if s == "" {
		return netip.AddrPort{}, NewMissingValueError(fieldDestination)
	}
	ap, err := netip.ParseAddrPort(s)
	if err != nil {
		return netip.AddrPort{}, NewInvalidValueError(fieldDestination, v, err)
	}
	if ap.Port() == 0 {
		return netip.AddrPort{}, NewInvalidValueError(fieldDestination, v, errors.New("port must be between 1 and 65535"))
	}
	return ap, nil
}

// parseSeconds parses a Go duration literal such as "5m" or "1h30m", or a
// bare number of seconds, truncated to whole seconds.
func parseSeconds(field, v string) (uint64, error) {
	s := strings.TrimSpace(v)
	if s == "" {
		return 0, NewMissingValueError(field)
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		var bareErr error
		if d, bareErr = time.ParseDuration(s + "s"); bareErr != nil {
			return 0, NewInvalidValueError(field, v, err)
		}
	}
	if d < 0 {
		return 0, NewInvalidValueError(field, v, errors.New("duration must not be negative"))
	}
	return uint64(d / time.Second), nil
}

func parseObservability(cli *cliFlags) (Observability, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cli.logLevel)); err != nil {
		return Observability{}, NewInvalidValueError(fieldLogLevel, cli.logLevel, err)
	}

	format := strings.ToLower(strings.TrimSpace(cli.logFormat))
	if format != "json" && format != "text" {
		return Observability{}, NewInvalidValueError(fieldLogFormat, cli.logFormat, errors.New("must be json or text"))
	}

	exporter, err := otel.ParseExporterType(cli.otelExporter)
	if err != nil {
		return Observability{}, NewInvalidValueError(fieldExporter, cli.otelExporter, err)
	}

	return Observability{
		LogLevel:     level,
		LogFormat:    format,
		OTelExporter: exporter,
		OTelEndpoint: cli.otelEndpoint,
		OTelInsecure: cli.otelInsecure,
	}, nil
}
