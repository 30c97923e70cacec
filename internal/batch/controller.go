package batch

import (
	"context"
	"fmt"
	"time"

	"github.com/candle-sync/internal/cache"
	"github.com/candle-sync/internal/messaging"
	"github.com/candle-sync/pkg/models"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Catalog provides the ordered instrument snapshot a run iterates over
type Catalog interface {
	Snapshot(ctx context.Context) ([]*models.Instrument, error)
}

// Progress persists the resume cursor between runs.
// Load returns 0 when no cursor is stored.
type Progress interface {
	Load(ctx context.Context) (int, error)
	Save(ctx context.Context, position int) error
	Clear(ctx context.Context) error
}

// Processor drives one instrument to a terminal outcome
type Processor interface {
	Process(ctx context.Context, instrument *models.Instrument) models.Outcome
}

// Controller walks the catalog in order, one instrument at a time, and
// checkpoints its position so an interrupted run resumes where it stopped.
// A checkpoint of n means instruments before position n have each had
// exactly one processing attempt this run.
type Controller struct {
	catalog         Catalog
	progress        Progress
	processor       Processor
	limiter         *RateLimiter
	checkpointEvery int
	logger          *logrus.Entry

	// Optional sinks, nil when not configured
	events   *messaging.NATSClient
	statuses *cache.StatusCache
}

// NewController creates a batch controller checkpointing every
// checkpointEvery items (failures always checkpoint immediately)
func NewController(catalog Catalog, progress Progress, processor Processor, limiter *RateLimiter, checkpointEvery int, logger *logrus.Logger) *Controller {
	return &Controller{
		catalog:         catalog,
		progress:        progress,
		processor:       processor,
		limiter:         limiter,
		checkpointEvery: checkpointEvery,
		logger:          logger.WithField("component", "controller"),
	}
}

// SetEventPublisher wires a NATS publisher for run events
func (c *Controller) SetEventPublisher(events *messaging.NATSClient) {
	c.events = events
}

// SetStatusCache wires a Redis cache for per-instrument statuses
func (c *Controller) SetStatusCache(statuses *cache.StatusCache) {
	c.statuses = statuses
}

// Run performs a single pass over the catalog and returns a summary of what
// it did. The summary is never nil, a run that dies early still reports the
// counters it accumulated. Repetition is the external scheduler's job, the
// controller holds no internal timers.
//
// A nil error means the catalog was fully processed and the cursor cleared.
// A non-nil error means the run crashed with the last written cursor intact,
// the next invocation resumes from it.
func (c *Controller) Run(ctx context.Context) (*models.RunSummary, error) {
	runID := uuid.New().String()
	logger := c.logger.WithField("run_id", runID)

	summary := &models.RunSummary{
		RunID:     runID,
		StartedAt: time.Now(),
	}

	instruments, err := c.catalog.Snapshot(ctx)
	if err != nil {
		summary.FinishedAt = time.Now()
		return summary, fmt.Errorf("catalog load failed: %w", err)
	}

	total := len(instruments)
	summary.Total = total

	start, err := c.progress.Load(ctx)
	if err != nil {
		summary.FinishedAt = time.Now()
		return summary, fmt.Errorf("failed to read checkpoint: %w", err)
	}
	if start > total {
		// The catalog shrank since the cursor was written
		logger.WithFields(logrus.Fields{
			"position": start,
			"total":    total,
		}).Warn("Checkpoint beyond catalog end, clamping")
		start = total
	}
	if start > 0 {
		logger.WithField("position", start).Info("Resuming from checkpoint")
	}

	logger.WithFields(logrus.Fields{
		"total":    total,
		"position": start,
	}).Info("Starting catalog pass")

	if c.events != nil {
		if err := c.events.PublishRunStarted(runID, total, start); err != nil {
			logger.WithError(err).Warn("Failed to publish run start")
		}
	}

	for i := start; i < total; i++ {
		outcome := c.processor.Process(ctx, instruments[i])
		summary.Count(outcome)
		c.recordOutcome(ctx, logger, runID, outcome, i+1, total)

		if err := c.limiter.Wait(ctx); err != nil {
			c.checkpointOnStop(logger, i+1)
			summary.FinishedAt = time.Now()
			return summary, err
		}

		// Failures checkpoint unconditionally so they survive a later kill,
		// everything else rides the group cadence
		if outcome.Status == models.OutcomeFailed || (i+1)%c.checkpointEvery == 0 {
			if err := c.progress.Save(ctx, i+1); err != nil {
				summary.FinishedAt = time.Now()
				return summary, fmt.Errorf("failed to persist checkpoint: %w", err)
			}
		}

		// Stop requests are honored only here, between items
		if ctx.Err() != nil {
			c.checkpointOnStop(logger, i+1)
			summary.FinishedAt = time.Now()
			return summary, ctx.Err()
		}
	}

	if err := c.progress.Clear(ctx); err != nil {
		summary.FinishedAt = time.Now()
		return summary, fmt.Errorf("failed to clear checkpoint: %w", err)
	}

	summary.FinishedAt = time.Now()

	if c.events != nil {
		if err := c.events.PublishRunComplete(summary); err != nil {
			logger.WithError(err).Warn("Failed to publish run completion")
		}
	}

	logger.WithFields(logrus.Fields{
		"succeeded": summary.Succeeded,
		"skipped":   summary.Skipped,
		"failed":    summary.Failed,
		"records":   summary.Records,
	}).Info("Catalog pass finished")

	return summary, nil
}

// recordOutcome logs one instrument's result and mirrors it to the
// optional sinks. Sink errors are logged, never escalated.
func (c *Controller) recordOutcome(ctx context.Context, logger *logrus.Entry, runID string, outcome models.Outcome, position, total int) {
	itemLogger := logger.WithFields(logrus.Fields{
		"symbol":   outcome.Symbol,
		"position": position,
		"total":    total,
	})

	switch outcome.Status {
	case models.OutcomeSuccess:
		itemLogger.WithField("records", outcome.Records).Info("Instrument synced")
	case models.OutcomeSkipped:
		itemLogger.Info("Instrument up to date")
	case models.OutcomeFailed:
		itemLogger.WithField("reason", outcome.Reason).Warn("Instrument sync failed")
	}

	if c.events != nil {
		if err := c.events.PublishItemOutcome(runID, &outcome, position, total); err != nil {
			itemLogger.WithError(err).Warn("Failed to publish item outcome")
		}
		if outcome.Status == models.OutcomeFailed {
			if err := c.events.PublishSyncError(runID, outcome.Symbol, outcome.Reason); err != nil {
				itemLogger.WithError(err).Warn("Failed to publish sync error")
			}
		}
	}

	if c.statuses != nil {
		status := &models.SyncStatus{
			Symbol:    outcome.Symbol,
			Status:    string(outcome.Status),
			Records:   outcome.Records,
			Position:  position,
			Total:     total,
			Error:     outcome.Reason,
			UpdatedAt: time.Now(),
		}
		if err := c.statuses.Put(ctx, status); err != nil {
			itemLogger.WithError(err).Warn("Failed to cache sync status")
		}
	}
}

// checkpointOnStop persists the cursor after a stop request. The loop
// context is already cancelled, so the write gets its own deadline.
func (c *Controller) checkpointOnStop(logger *logrus.Entry, position int) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := c.progress.Save(ctx, position); err != nil {
		logger.WithError(err).WithField("position", position).Error("Failed to persist checkpoint during shutdown")
		return
	}

	logger.WithField("position", position).Info("Checkpoint persisted, stopping")
}
