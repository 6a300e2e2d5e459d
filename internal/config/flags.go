package config

import (
	"flag"
	"fmt"
	"io"
	"text/tabwriter"
)

// cliFlags holds everything parsed from the command line. Only settings
// takes part in layering; the rest is command-line only.
type cliFlags struct {
	settings     Settings
	configPath   string
	sendNow      bool
	meminfoPath  string
	logLevel     string
	logFormat    string
	otelExporter string
	otelEndpoint string
	otelInsecure bool
}

// optionalString is a flag.Value that records whether it was set, so an
// explicit empty value still counts as set.
type optionalString struct {
	p **string
}

func (o optionalString) String() string {
	if o.p == nil || *o.p == nil {
		return ""
	}
	return **o.p
}

func (o optionalString) Set(v string) error {
	*o.p = stringPtr(v)
	return nil
}

func parseFlags(args []string) (*cliFlags, error) {
	f := &cliFlags{}
	fs := flag.NewFlagSet("hoststat", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.Usage = func() {}

	optionalVar(fs, &f.settings.StatsDestination, "s", "stats")
	optionalVar(fs, &f.settings.InterfaceName, "e", "network-interface")
	optionalVar(fs, &f.settings.MinInterval, "i", "min-interval")
	optionalVar(fs, &f.settings.MaxInterval, "x", "max-interval")
	optionalVar(fs, &f.settings.RootPath, "r", "root")

	for _, name := range []string{"c", "config"} {
		fs.StringVar(&f.configPath, name, "", "")
	}
	for _, name := range []string{"m", "meminfo"} {
		fs.StringVar(&f.meminfoPath, name, "", "")
	}
	for _, name := range []string{"n", "now"} {
		fs.BoolVar(&f.sendNow, name, false, "")
	}
	fs.StringVar(&f.logLevel, "log-level", "info", "")
	fs.StringVar(&f.logFormat, "log-format", DefaultLogFormat, "")
	fs.StringVar(&f.otelExporter, "otel-exporter", "none", "")
	fs.StringVar(&f.otelEndpoint, "otel-endpoint", "", "")
	fs.BoolVar(&f.otelInsecure, "otel-insecure", false, "")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected argument %q", fs.Arg(0))
	}
	return f, nil
}

func optionalVar(fs *flag.FlagSet, p **string, short, long string) {
	v := optionalString{p: p}
	fs.Var(v, short, "")
	fs.Var(v, long, "")
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: hoststat [options]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Options:")

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	rows := [][3]string{
		{"-c, --config", "PATH", "settings file; created from the given options if missing"},
		{"-s, --stats", "HOST:PORT", "statistics server socket, defaults to " + DefaultDestination},
		{"-e, --network-interface", "NAME", "interface whose hardware address is reported, defaults to the first usable one"},
		{"-i, --min-interval", DefaultMinInterval, "minimum interval between sending statistics, defaults to 5 minutes"},
		{"-x, --max-interval", DefaultMaxInterval, "maximum interval between sending statistics, defaults to 9 minutes"},
		{"-n, --now", "", "send statistics now, defaults to waiting the minimum interval"},
		{"-m, --meminfo", "PATH", "read memory usage from a meminfo-format file instead of the OS"},
		{"-r, --root", "PATH", "mount point for disk usage, defaults to the first mount point"},
		{"    --log-level", "LEVEL", "debug, info, warn or error"},
		{"    --log-format", "FORMAT", "json or text"},
		{"    --otel-exporter", "TYPE", "none, stdout, otlp-grpc or otlp-http"},
		{"    --otel-endpoint", "HOST:PORT", "OTLP collector endpoint"},
		{"    --otel-insecure", "", "disable TLS for the OTLP exporter"},
		{"-h, --help", "", "print this help menu"},
	}
	for _, r := range rows {
		fmt.Fprintf(tw, "  %s\t%s\t%s\n", r[0], r[1], r[2])
	}
	tw.Flush()
}
