// Package events provides structured logging for key events in hoststat.
package events

import (
	"io"
	"log/slog"
	"net/netip"
	"strings"
	"time"
)

// Log formats accepted by NewEventLogger.
const (
	FormatJSON = "json"
	FormatText = "text"
)

// Options configures an EventLogger.
type Options struct {
	Level  slog.Level
	Format string

	// InstanceID is attached to every event when set.
	InstanceID string
}

// EventLogger provides structured logging for agent and sink events.
type EventLogger struct {
	logger *slog.Logger
}

// NewEventLogger creates an EventLogger writing to w. Format defaults to JSON.
func NewEventLogger(w io.Writer, opts Options) *EventLogger {
	handlerOpts := &slog.HandlerOptions{Level: opts.Level}

	var handler slog.Handler
	if strings.EqualFold(opts.Format, FormatText) {
		handler = slog.NewTextHandler(w, handlerOpts)
	} else {
		handler = slog.NewJSONHandler(w, handlerOpts)
	}

	logger := slog.New(handler)
	if opts.InstanceID != "" {
		logger = logger.With("instance_id", opts.InstanceID)
	}
	return &EventLogger{logger: logger}
}

// LogAgentStarted logs the resolved settings the report loop runs with.
// event: "agent_started"
func (el *EventLogger) LogAgentStarted(destination netip.AddrPort, interfaceName, rootPath string, minInterval, maxInterval time.Duration, sendNow bool) {
	el.logger.Info("agent_started",
		"destination", destination.String(),
		"interface", interfaceName,
		"root_path", rootPath,
		"min_interval", minInterval.String(),
		"max_interval", maxInterval.String(),
		"send_now", sendNow,
	)
}

// LogAgentStopped logs a clean shutdown.
// event: "agent_stopped"
func (el *EventLogger) LogAgentStopped(reason string, reportsSent int) {
	el.logger.Info("agent_stopped",
		"reason", reason,
		"reports_sent", reportsSent,
	)
}

// LogReportSent logs a datagram handed to the network.
// event: "report_sent"
func (el *EventLogger) LogReportSent(destination netip.AddrPort, payload []byte) {
	el.logger.Debug("report_sent",
		"destination", destination.String(),
		"bytes", len(payload),
		"payload", string(payload),
	)
}

// LogSendFailed logs a datagram that could not be sent. The loop keeps running.
// event: "send_failed"
func (el *EventLogger) LogSendFailed(destination netip.AddrPort, err error) {
	el.logger.Warn("send_failed",
		"destination", destination.String(),
		"error", err.Error(),
	)
}

// LogProbeDegraded logs a metric that fell back to its default value.
// event: "probe_degraded"
func (el *EventLogger) LogProbeDegraded(metric string, err error) {
	el.logger.Warn("probe_degraded",
		"metric", metric,
		"error", err.Error(),
	)
}

// LogNextInterval logs the sleep chosen before the next report.
// event: "next_interval"
func (el *EventLogger) LogNextInterval(d time.Duration) {
	el.logger.Debug("next_interval",
		"interval", d.String(),
	)
}

// LogSettingsBootstrapped logs that a missing settings file was created.
// event: "settings_bootstrapped"
func (el *EventLogger) LogSettingsBootstrapped(path string) {
	el.logger.Info("settings_bootstrapped",
		"path", path,
	)
}

// LogSettingsWarning logs a non-fatal problem found while resolving settings.
// event: "settings_warning"
func (el *EventLogger) LogSettingsWarning(err error) {
	el.logger.Warn("settings_warning",
		"error", err.Error(),
	)
}

// LogTelemetryError logs a failure of the agent's own OpenTelemetry pipeline.
// event: "telemetry_error"
func (el *EventLogger) LogTelemetryError(component string, err error) {
	el.logger.Error("telemetry_error",
		"component", component,
		"error", err.Error(),
	)
}

// LogSinkListening logs the address a stats sink is bound to.
// event: "sink_listening"
func (el *EventLogger) LogSinkListening(addr string) {
	el.logger.Info("sink_listening",
		"addr", addr,
	)
}

// LogReportReceived logs a decoded report at a stats sink.
// event: "report_received"
func (el *EventLogger) LogReportReceived(from netip.AddrPort, memoryUsedBytes, diskUsedMegabytes uint64, hardwareAddr string) {
	el.logger.Info("report_received",
		"from", from.String(),
		"memory_used_bytes", memoryUsedBytes,
		"disk_used_mb", diskUsedMegabytes,
		"hwaddr", hardwareAddr,
	)
}

// LogMalformedReport logs a datagram a stats sink could not decode.
// event: "malformed_report"
func (el *EventLogger) LogMalformedReport(from netip.AddrPort, err error) {
	el.logger.Warn("malformed_report",
		"from", from.String(),
		"error", err.Error(),
	)
}

// NoopEventLogger returns an event logger that discards all events.
// Useful for testing or when event logging is disabled.
func NoopEventLogger() *EventLogger {
	return &EventLogger{logger: slog.New(slog.NewJSONHandler(io.Discard, nil))}
}
