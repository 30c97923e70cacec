package batch

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/candle-sync/pkg/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

type fakeVolumes struct {
	count int64
	err   error
	calls int
}

func (f *fakeVolumes) CountBars(ctx context.Context, symbol, interval string) (int64, error) {
	f.calls++
	return f.count, f.err
}

type fakeSyncer struct {
	written  int
	err      error
	calls    int
	gotDays  int
	gotInstr *models.Instrument
}

func (f *fakeSyncer) Sync(ctx context.Context, instrument *models.Instrument, days int) (int, error) {
	f.calls++
	f.gotDays = days
	f.gotInstr = instrument
	return f.written, f.err
}

func testInstrument(symbol string) *models.Instrument {
	return &models.Instrument{
		Symbol:   symbol,
		Category: models.CategoryCrypto,
		Venue:    "binance",
		IsActive: true,
	}
}

func TestExecutorSuccess(t *testing.T) {
	volumes := &fakeVolumes{count: 150}
	syncer := &fakeSyncer{written: 42}
	executor := NewExecutor(volumes, syncer, "1d", testLogger())

	outcome := executor.Process(context.Background(), testInstrument("BTCUSDT"))

	assert.Equal(t, models.OutcomeSuccess, outcome.Status)
	assert.Equal(t, "BTCUSDT", outcome.Symbol)
	assert.Equal(t, 42, outcome.Records)
	assert.Equal(t, 90, syncer.gotDays)
}

func TestExecutorEmptyInstrumentRequestsFullHistory(t *testing.T) {
	volumes := &fakeVolumes{count: 0}
	syncer := &fakeSyncer{written: 9000}
	executor := NewExecutor(volumes, syncer, "1d", testLogger())

	executor.Process(context.Background(), testInstrument("ETHUSDT"))

	assert.Equal(t, 10000, syncer.gotDays)
}

func TestExecutorSkippedWhenNothingWritten(t *testing.T) {
	volumes := &fakeVolumes{count: 5000}
	syncer := &fakeSyncer{written: 0}
	executor := NewExecutor(volumes, syncer, "1d", testLogger())

	outcome := executor.Process(context.Background(), testInstrument("BTCUSDT"))

	assert.Equal(t, models.OutcomeSkipped, outcome.Status)
	assert.Zero(t, outcome.Records)
}

func TestExecutorSyncFailureBecomesOutcome(t *testing.T) {
	volumes := &fakeVolumes{count: 10}
	syncer := &fakeSyncer{err: errors.New("upstream said 503")}
	executor := NewExecutor(volumes, syncer, "1d", testLogger())

	outcome := executor.Process(context.Background(), testInstrument("BTCUSDT"))

	assert.Equal(t, models.OutcomeFailed, outcome.Status)
	assert.Contains(t, outcome.Reason, "upstream said 503")
}

func TestExecutorVolumeFailureSkipsFetch(t *testing.T) {
	volumes := &fakeVolumes{err: errors.New("store unreachable")}
	syncer := &fakeSyncer{}
	executor := NewExecutor(volumes, syncer, "1d", testLogger())

	outcome := executor.Process(context.Background(), testInstrument("BTCUSDT"))

	assert.Equal(t, models.OutcomeFailed, outcome.Status)
	assert.Contains(t, outcome.Reason, "store unreachable")
	assert.Zero(t, syncer.calls)
}
