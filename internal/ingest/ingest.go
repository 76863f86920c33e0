// Package ingest runs the detection ingestion loop: it consumes raw
// detection messages from the source topic, validates them, folds them
// into the crowd-intelligence engine, and publishes the resulting hazard
// snapshot for downstream realtime consumers.
package ingest

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/spottr/hazard-intel/internal/domain"
	"github.com/spottr/hazard-intel/internal/observability"
)

// Extractor reads the next raw detection message from the source.
type Extractor interface {
	Extract(ctx context.Context) (domain.RawMessage, error)
}

// Publisher writes a hazard snapshot to the destination, tagged with the
// event that produced it ("created" or "merged").
type Publisher interface {
	Publish(ctx context.Context, h domain.Hazard, event string) error
}

// Reporter folds a validated report into the hazard store.
type Reporter interface {
	Report(r domain.Report) (domain.Hazard, bool)
}

// Runner orchestrates the consume-report-publish loop.
type Runner struct {
	extractor Extractor
	reporter  Reporter
	publisher Publisher
	logger    *slog.Logger
	metrics   *observability.Metrics
	ready     atomic.Bool
}

// New creates a Runner with the given stages and observability.
func New(e Extractor, r Reporter, p Publisher, logger *slog.Logger, metrics *observability.Metrics) *Runner {
	return &Runner{
		extractor: e,
		reporter:  r,
		publisher: p,
		logger:    logger,
		metrics:   metrics,
	}
}

// CheckReadiness returns nil once the loop has processed at least one
// message, or an error describing why the service is not yet ready.
func (r *Runner) CheckReadiness(_ context.Context) error {
	if !r.ready.Load() {
		return errors.New("ingest loop has not processed any messages yet")
	}
	return nil
}

// Run executes the ingestion loop until the context is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.Info("ingest loop started")
	r.metrics.IngestRunning.Set(1)
	defer r.metrics.IngestRunning.Set(0)

	// Exponential backoff: start at 200ms, double each retry, cap at 5s.
	// Keeps retry storms short while avoiding tight loops during Kafka outages.
	backoff := 200 * time.Millisecond
	maxBackoff := 5 * time.Second

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("ingest loop stopping", "reason", ctx.Err())
			return nil
		default:
		}

		if !r.processOne(ctx, &backoff, maxBackoff) {
			return nil
		}
	}
}

// processOne handles a single message. Returns false if the loop should stop.
func (r *Runner) processOne(ctx context.Context, backoff *time.Duration, maxBackoff time.Duration) bool {
	raw, err := r.extractor.Extract(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		r.logger.Error("extract failed", "error", err)
		return r.backoffOrStop(ctx, backoff, maxBackoff)
	}

	start := time.Now()
	r.metrics.MessagesConsumed.Inc()
	*backoff = 200 * time.Millisecond

	report, err := domain.ParseReport(raw)
	if err != nil {
		r.logger.Warn("invalid detection, skipping message",
			"error", err,
			"topic", raw.Topic,
			"partition", raw.Partition,
			"offset", raw.Offset,
		)
		r.metrics.ParseErrors.Inc()
		r.commitOffset(ctx, raw)
		return true
	}

	hazard, created := r.reporter.Report(report)

	event := "merged"
	if created {
		event = "created"
	}
	if err := r.publisher.Publish(ctx, hazard, event); err != nil {
		if ctx.Err() != nil {
			return false
		}
		// Dropping the message here would lose the report: back off and
		// retry the whole cycle without committing the offset. The
		// engine's dedup makes the re-report idempotent.
		r.logger.Error("publish failed", "error", err, "hazard_id", hazard.ID)
		return r.backoffOrStop(ctx, backoff, maxBackoff)
	}
	r.metrics.UpdatesPublished.Inc()

	r.commitOffset(ctx, raw)
	r.metrics.ReportProcessingDuration.Observe(time.Since(start).Seconds())
	r.ready.Store(true)
	return true
}

// backoffOrStop checks for context cancellation, sleeps with the current backoff,
// and advances the backoff. Returns false if the loop should stop.
func (r *Runner) backoffOrStop(ctx context.Context, backoff *time.Duration, maxBackoff time.Duration) bool {
	if ctx.Err() != nil {
		return false
	}
	if !sleepWithContext(ctx, *backoff) {
		return false
	}
	*backoff = nextBackoff(*backoff, maxBackoff)
	return true
}

// commitOffset commits the message offset if a commit function is available.
func (r *Runner) commitOffset(ctx context.Context, raw domain.RawMessage) {
	if raw.Commit == nil {
		return
	}
	if err := raw.Commit(ctx); err != nil {
		r.logger.Warn("commit offset failed", "error", err,
			"topic", raw.Topic, "partition", raw.Partition, "offset", raw.Offset)
	}
}

func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
