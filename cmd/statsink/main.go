// Command statsink listens for hoststat reports and logs each one.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bc-dunia/hoststat/internal/events"
	"github.com/bc-dunia/hoststat/internal/sink"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("statsink", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var listen, logFormat, logLevel string
	for _, name := range []string{"l", "listen"} {
		fs.StringVar(&listen, name, sink.DefaultConfig().Addr, "address to receive reports on")
	}
	fs.StringVar(&logFormat, "log-format", events.FormatJSON, "json or text")
	fs.StringVar(&logLevel, "log-level", "info", "debug, info, warn or error")

	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 1
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(logLevel)); err != nil {
		fmt.Fprintf(stderr, "statsink: invalid log level %q: %v\n", logLevel, err)
		return 1
	}

	logger := events.NewEventLogger(stdout, events.Options{Level: level, Format: logFormat})
	srv := sink.New(&sink.Config{Addr: listen}, logger, nil)
	if err := srv.Start(); err != nil {
		fmt.Fprintf(stderr, "statsink: %v\n", err)
		return 1
	}

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	srv.Stop(shutdownCtx)
	return 0
}
