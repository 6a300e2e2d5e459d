// Package reporter runs the agent's report loop: sample the host, encode the
// snapshot, send it as one datagram, then sleep a jittered interval.
package reporter

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/codes"

	"github.com/bc-dunia/hoststat/internal/config"
	"github.com/bc-dunia/hoststat/internal/events"
	"github.com/bc-dunia/hoststat/internal/interval"
	"github.com/bc-dunia/hoststat/internal/otel"
	"github.com/bc-dunia/hoststat/internal/probe"
	"github.com/bc-dunia/hoststat/internal/transport"
	"github.com/bc-dunia/hoststat/internal/wire"
)

// Sampler produces a snapshot. A non-nil error describes degraded metrics;
// the snapshot is still sent.
type Sampler interface {
	Sample(ctx context.Context) (probe.Snapshot, error)
}

// Sender delivers one payload.
type Sender interface {
	Send(ctx context.Context, payload []byte) error
}

// Scheduler picks the next sleep from the configured bounds in seconds.
type Scheduler interface {
	Next(minSeconds, maxSeconds uint64) time.Duration
}

// Sleeper blocks for d or until ctx is done, returning ctx.Err() in the
// latter case.
type Sleeper func(ctx context.Context, d time.Duration) error

// SleepContext is the default Sleeper.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Options supplies the loop's collaborators. Sampler and Sender are
// required; the rest default to the real scheduler, SleepContext, and no-op
// telemetry.
type Options struct {
	Sampler   Sampler
	Sender    Sender
	Scheduler Scheduler
	Sleep     Sleeper
	Logger    *events.EventLogger
	Metrics   *otel.Metrics
	Tracer    *otel.Tracer

	// Iterations stops Run after that many reports. Zero runs until ctx is
	// cancelled.
	Iterations int
}

// Loop is the report loop. It runs on a single goroutine.
type Loop struct {
	cfg        config.Config
	sampler    Sampler
	sender     Sender
	scheduler  Scheduler
	sleep      Sleeper
	logger     *events.EventLogger
	metrics    *otel.Metrics
	tracer     *otel.Tracer
	iterations int

	iteration   int
	reportsSent atomic.Int64
	sendErrors  atomic.Int64
}

// New creates a Loop for cfg.
func New(cfg config.Config, opts Options) (*Loop, error) {
	if opts.Sampler == nil {
		return nil, errors.New("reporter: sampler is required")
	}
	if opts.Sender == nil {
		return nil, errors.New("reporter: sender is required")
	}
	if opts.Iterations < 0 {
		return nil, errors.New("reporter: iterations must not be negative")
	}

	l := &Loop{
		cfg:        cfg,
		sampler:    opts.Sampler,
		sender:     opts.Sender,
		scheduler:  opts.Scheduler,
		sleep:      opts.Sleep,
		logger:     opts.Logger,
		metrics:    opts.Metrics,
		tracer:     opts.Tracer,
		iterations: opts.Iterations,
	}
	if l.scheduler == nil {
		l.scheduler = interval.New(nil)
	}
	if l.sleep == nil {
		l.sleep = SleepContext
	}
	if l.logger == nil {
		l.logger = events.NoopEventLogger()
	}
	if l.metrics == nil {
		l.metrics = otel.NoopMetrics()
	}
	if l.tracer == nil {
		l.tracer = otel.NoopTracer()
	}
	return l, nil
}

// Run waits MinInterval unless SendNow is set, then reports and sleeps in a
// loop. It returns ctx.Err() once ctx is cancelled, or nil after Iterations
// reports. Send failures never stop the loop.
func (l *Loop) Run(ctx context.Context) error {
	if !l.cfg.SendNow {
		if err := l.sleep(ctx, l.cfg.MinInterval()); err != nil {
			return err
		}
	}

	for done := 0; l.iterations == 0 || done < l.iterations; done++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		_ = l.RunOnce(ctx)

		next := l.scheduler.Next(l.cfg.MinIntervalSeconds, l.cfg.MaxIntervalSeconds)
		l.metrics.SetNextInterval(next)
		l.logger.LogNextInterval(next)
		if err := l.sleep(ctx, next); err != nil {
			return err
		}
	}
	return nil
}

// RunOnce samples, encodes, and sends one report without sleeping. It
// returns the send error, if any; degraded metrics are logged and counted
// but not returned.
func (l *Loop) RunOnce(ctx context.Context) error {
	l.iteration++
	ctx, span := l.tracer.StartReportSpan(ctx, l.cfg.Destination, l.iteration)
	defer span.End()

	snap, err := l.sampler.Sample(ctx)
	for _, d := range probe.Degradations(err) {
		l.logger.LogProbeDegraded(d.Metric, d.Err)
		l.metrics.RecordProbeDegraded(ctx, d.Metric)
		span.AddEvent("probe_degraded")
	}

	payload := wire.Encode(snap)
	if err := l.sender.Send(ctx, payload); err != nil {
		errType := string(transport.ErrorTypeOf(err))
		l.sendErrors.Add(1)
		l.logger.LogSendFailed(l.cfg.Destination, err)
		l.metrics.RecordSendError(ctx, errType)
		otel.RecordError(span, err, errType)
		span.SetStatus(codes.Error, "send failed")
		return err
	}

	l.reportsSent.Add(1)
	l.logger.LogReportSent(l.cfg.Destination, payload)
	l.metrics.RecordReportSent(ctx, len(payload))
	return nil
}

// ReportsSent returns the number of reports handed to the network.
func (l *Loop) ReportsSent() int {
	return int(l.reportsSent.Load())
}

// SendErrors returns the number of reports that failed to send.
func (l *Loop) SendErrors() int {
	return int(l.sendErrors.Load())
}
