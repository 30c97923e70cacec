package batch

import (
	"context"
	"fmt"

	"github.com/candle-sync/pkg/models"
	"github.com/sirupsen/logrus"
)

// VolumeSource reports how many bars are already stored for a symbol
type VolumeSource interface {
	CountBars(ctx context.Context, symbol, interval string) (int64, error)
}

// Syncer fetches history for one instrument and persists it, returning the
// number of bars written. Zero with a nil error means nothing new upstream.
type Syncer interface {
	Sync(ctx context.Context, instrument *models.Instrument, days int) (int, error)
}

// Executor drives a single instrument through inspect, decide, fetch and
// classify. Errors never escape Process, they become Failed outcomes so
// one bad instrument cannot abort the batch.
type Executor struct {
	volumes  VolumeSource
	syncer   Syncer
	interval string
	logger   *logrus.Entry
}

// NewExecutor creates an executor for the given bar interval
func NewExecutor(volumes VolumeSource, syncer Syncer, interval string, logger *logrus.Logger) *Executor {
	return &Executor{
		volumes:  volumes,
		syncer:   syncer,
		interval: interval,
		logger:   logger.WithField("component", "executor"),
	}
}

// Process syncs one instrument and classifies the result
func (e *Executor) Process(ctx context.Context, instrument *models.Instrument) models.Outcome {
	volume, err := e.volumes.CountBars(ctx, instrument.Symbol, e.interval)
	if err != nil {
		return models.FailedOutcome(instrument.Symbol, fmt.Errorf("failed to count stored bars: %w", err))
	}

	days := BackfillDays(volume)

	e.logger.WithFields(logrus.Fields{
		"symbol": instrument.Symbol,
		"venue":  instrument.Venue,
		"volume": volume,
		"days":   days,
	}).Debug("Syncing instrument")

	written, err := e.syncer.Sync(ctx, instrument, days)
	if err != nil {
		return models.FailedOutcome(instrument.Symbol, err)
	}

	if written == 0 {
		return models.SkippedOutcome(instrument.Symbol)
	}

	return models.SuccessOutcome(instrument.Symbol, written)
}
