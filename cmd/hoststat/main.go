// Command hoststat periodically reports memory usage, disk usage, and a
// hardware address to a statistics server over UDP.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/bc-dunia/hoststat/internal/config"
	"github.com/bc-dunia/hoststat/internal/events"
	"github.com/bc-dunia/hoststat/internal/interval"
	"github.com/bc-dunia/hoststat/internal/otel"
	"github.com/bc-dunia/hoststat/internal/probe"
	"github.com/bc-dunia/hoststat/internal/reporter"
	"github.com/bc-dunia/hoststat/internal/transport"
)

var version = "dev"

const telemetryShutdownTimeout = 5 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	res, err := config.Resolve(ctx, args, config.Options{Output: stdout})
	if err != nil {
		fmt.Fprintf(stderr, "hoststat: %v\n", err)
		fmt.Fprintln(stderr, "Run 'hoststat --help' for usage.")
		return 1
	}
	if res.Help {
		return 0
	}
	cfg := *res.Config

	instanceID := uuid.NewString()
	logger := events.NewEventLogger(stderr, events.Options{
		Level:      cfg.Observability.LogLevel,
		Format:     cfg.Observability.LogFormat,
		InstanceID: instanceID,
	})
	if res.Bootstrapped {
		logger.LogSettingsBootstrapped(cfg.SettingsPath)
	}
	for _, w := range res.Warnings {
		logger.LogSettingsWarning(w)
	}

	tracer, metrics := setupTelemetry(ctx, cfg.Observability, instanceID, logger)
	defer shutdownTelemetry(logger, tracer, metrics)

	sender, err := transport.NewUDPSender(cfg.Destination)
	if err != nil {
		fmt.Fprintf(stderr, "hoststat: %v\n", err)
		return 1
	}
	defer sender.Close()

	sampler := probe.New(probe.Options{
		Memory:        memorySource(cfg),
		RootPath:      cfg.RootPath,
		InterfaceName: cfg.InterfaceName,
	})

	loop, err := reporter.New(cfg, reporter.Options{
		Sampler:   sampler,
		Sender:    sender,
		Scheduler: interval.New(nil),
		Logger:    logger,
		Metrics:   metrics,
		Tracer:    tracer,
	})
	if err != nil {
		fmt.Fprintf(stderr, "hoststat: %v\n", err)
		return 1
	}

	logger.LogAgentStarted(cfg.Destination, cfg.InterfaceName, cfg.RootPath, cfg.MinInterval(), cfg.MaxInterval(), cfg.SendNow)

	err = loop.Run(ctx)
	switch {
	case err == nil:
		logger.LogAgentStopped("completed", loop.ReportsSent())
	case errors.Is(err, context.Canceled):
		logger.LogAgentStopped("signal", loop.ReportsSent())
	default:
		fmt.Fprintf(stderr, "hoststat: %v\n", err)
		return 1
	}
	return 0
}

func memorySource(cfg config.Config) probe.MemorySource {
	if cfg.MeminfoPath != "" {
		return probe.MeminfoFile{Path: cfg.MeminfoPath}
	}
	return probe.VirtualMemory{}
}

// setupTelemetry builds the tracer and metrics. Exporter failures are logged
// and fall back to no-op telemetry; they never stop the agent.
func setupTelemetry(ctx context.Context, obs config.Observability, instanceID string, logger *events.EventLogger) (*otel.Tracer, *otel.Metrics) {
	enabled := obs.OTelExporter != otel.ExporterNone

	tracer, err := otel.NewTracer(ctx, &otel.Config{
		Enabled:        enabled,
		ServiceName:    "hoststat",
		ServiceVersion: version,
		InstanceID:     instanceID,
		ExporterType:   obs.OTelExporter,
		OTLPEndpoint:   obs.OTelEndpoint,
		OTLPInsecure:   obs.OTelInsecure,
		SampleRate:     1.0,
	})
	if err != nil {
		logger.LogTelemetryError("tracer", err)
		tracer = otel.NoopTracer()
	}

	metrics, err := otel.NewMetrics(ctx, &otel.MetricsConfig{
		Enabled:        enabled,
		ServiceName:    "hoststat",
		ServiceVersion: version,
		InstanceID:     instanceID,
		ExporterType:   obs.OTelExporter,
		OTLPEndpoint:   obs.OTelEndpoint,
		OTLPInsecure:   obs.OTelInsecure,
	})
	if err != nil {
		logger.LogTelemetryError("metrics", err)
		metrics = otel.NoopMetrics()
	}

	return tracer, metrics
}

func shutdownTelemetry(logger *events.EventLogger, tracer *otel.Tracer, metrics *otel.Metrics) {
	ctx, cancel := context.WithTimeout(context.Background(), telemetryShutdownTimeout)
	defer cancel()

	if err := metrics.Shutdown(ctx); err != nil {
		logger.LogTelemetryError("metrics", err)
	}
	if err := tracer.Shutdown(ctx); err != nil {
		logger.LogTelemetryError("tracer", err)
	}
}
