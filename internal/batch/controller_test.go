package batch

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/candle-sync/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCatalog struct {
	instruments []*models.Instrument
	err         error
}

func (f *fakeCatalog) Snapshot(ctx context.Context) ([]*models.Instrument, error) {
	return f.instruments, f.err
}

type fakeProgress struct {
	position int
	saves    []int
	cleared  bool
	loadErr  error
	saveErr  error
	clearErr error
}

func (f *fakeProgress) Load(ctx context.Context) (int, error) {
	if f.loadErr != nil {
		return 0, f.loadErr
	}
	return f.position, nil
}

func (f *fakeProgress) Save(ctx context.Context, position int) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.position = position
	f.saves = append(f.saves, position)
	return nil
}

func (f *fakeProgress) Clear(ctx context.Context) error {
	if f.clearErr != nil {
		return f.clearErr
	}
	f.cleared = true
	f.position = 0
	return nil
}

// fakeProcessor succeeds by default, with per-symbol overrides. It can
// cancel the run context after a fixed number of items to simulate an
// operator stop signal arriving mid-run.
type fakeProcessor struct {
	outcomes    map[string]models.Outcome
	calls       []string
	cancel      context.CancelFunc
	cancelAfter int
}

func (f *fakeProcessor) Process(ctx context.Context, instrument *models.Instrument) models.Outcome {
	f.calls = append(f.calls, instrument.Symbol)
	if f.cancel != nil && len(f.calls) == f.cancelAfter {
		f.cancel()
	}
	if outcome, ok := f.outcomes[instrument.Symbol]; ok {
		return outcome
	}
	return models.SuccessOutcome(instrument.Symbol, 10)
}

func makeInstruments(n int) []*models.Instrument {
	instruments := make([]*models.Instrument, n)
	for i := 0; i < n; i++ {
		instruments[i] = &models.Instrument{
			Symbol:   fmt.Sprintf("SYM%02d", i),
			Category: models.CategoryCrypto,
			Venue:    "binance",
			IsActive: true,
		}
	}
	return instruments
}

func newTestController(catalog *fakeCatalog, progress *fakeProgress, processor *fakeProcessor, every int) *Controller {
	return NewController(catalog, progress, processor, NewRateLimiter(0), every, testLogger())
}

func TestControllerCompletesAndClearsCursor(t *testing.T) {
	catalog := &fakeCatalog{instruments: makeInstruments(3)}
	progress := &fakeProgress{}
	processor := &fakeProcessor{}
	controller := newTestController(catalog, progress, processor, 10)

	summary, err := controller.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 3, summary.Total)
	assert.Equal(t, 3, summary.Succeeded)
	assert.Equal(t, int64(30), summary.Records)
	assert.True(t, progress.cleared)
	// Three clean items never reach a group boundary, so no cursor writes
	assert.Empty(t, progress.saves)
}

func TestControllerCheckpointCadence(t *testing.T) {
	catalog := &fakeCatalog{instruments: makeInstruments(25)}
	progress := &fakeProgress{}
	processor := &fakeProcessor{}
	controller := newTestController(catalog, progress, processor, 10)

	summary, err := controller.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 25, summary.Succeeded)
	assert.Equal(t, []int{10, 20}, progress.saves)
	assert.True(t, progress.cleared)
}

func TestControllerCustomCadence(t *testing.T) {
	catalog := &fakeCatalog{instruments: makeInstruments(6)}
	progress := &fakeProgress{}
	processor := &fakeProcessor{}
	controller := newTestController(catalog, progress, processor, 2)

	_, err := controller.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []int{2, 4, 6}, progress.saves)
}

func TestControllerFailureCheckpointsImmediately(t *testing.T) {
	catalog := &fakeCatalog{instruments: makeInstruments(5)}
	progress := &fakeProgress{}
	processor := &fakeProcessor{
		outcomes: map[string]models.Outcome{
			"SYM01": models.FailedOutcome("SYM01", errors.New("boom")),
		},
	}
	controller := newTestController(catalog, progress, processor, 10)

	summary, err := controller.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 4, summary.Succeeded)
	// Position 2 is the failed item, persisted outside the group cadence
	assert.Equal(t, []int{2}, progress.saves)
	// Later items still ran
	assert.Len(t, processor.calls, 5)
	assert.True(t, progress.cleared)
}

func TestControllerResumesFromCursor(t *testing.T) {
	catalog := &fakeCatalog{instruments: makeInstruments(5)}
	progress := &fakeProgress{position: 2}
	processor := &fakeProcessor{}
	controller := newTestController(catalog, progress, processor, 10)

	summary, err := controller.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []string{"SYM02", "SYM03", "SYM04"}, processor.calls)
	assert.Equal(t, 3, summary.Succeeded)
	assert.Equal(t, 5, summary.Total)
	assert.True(t, progress.cleared)
}

func TestControllerCursorBeyondCatalogEnd(t *testing.T) {
	catalog := &fakeCatalog{instruments: makeInstruments(3)}
	progress := &fakeProgress{position: 10}
	processor := &fakeProcessor{}
	controller := newTestController(catalog, progress, processor, 10)

	summary, err := controller.Run(context.Background())

	require.NoError(t, err)
	assert.Empty(t, processor.calls)
	assert.Zero(t, summary.Succeeded)
	assert.True(t, progress.cleared)
}

func TestControllerEmptyCatalog(t *testing.T) {
	catalog := &fakeCatalog{}
	progress := &fakeProgress{}
	processor := &fakeProcessor{}
	controller := newTestController(catalog, progress, processor, 10)

	summary, err := controller.Run(context.Background())

	require.NoError(t, err)
	assert.Zero(t, summary.Total)
	assert.True(t, progress.cleared)
}

func TestControllerCatalogLoadFailure(t *testing.T) {
	catalog := &fakeCatalog{err: errors.New("connection refused")}
	progress := &fakeProgress{}
	processor := &fakeProcessor{}
	controller := newTestController(catalog, progress, processor, 10)

	summary, err := controller.Run(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "catalog load failed")
	require.NotNil(t, summary)
	assert.Empty(t, progress.saves)
	assert.False(t, progress.cleared)
}

func TestControllerCheckpointWriteFailureIsFatal(t *testing.T) {
	catalog := &fakeCatalog{instruments: makeInstruments(5)}
	progress := &fakeProgress{saveErr: errors.New("disk full")}
	processor := &fakeProcessor{
		outcomes: map[string]models.Outcome{
			"SYM00": models.FailedOutcome("SYM00", errors.New("boom")),
		},
	}
	controller := newTestController(catalog, progress, processor, 10)

	summary, err := controller.Run(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "checkpoint")
	// The run died at the first failed checkpoint write, later items never ran
	assert.Len(t, processor.calls, 1)
	// The accumulated counters survive for the terminal summary
	assert.Equal(t, 1, summary.Failed)
	assert.False(t, progress.cleared)
}

func TestControllerCancellationPersistsCursor(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	catalog := &fakeCatalog{instruments: makeInstruments(5)}
	progress := &fakeProgress{}
	processor := &fakeProcessor{cancel: cancel, cancelAfter: 2}
	controller := newTestController(catalog, progress, processor, 10)

	summary, err := controller.Run(ctx)

	assert.ErrorIs(t, err, context.Canceled)
	// The in-flight item finished, then the loop stopped at the boundary
	assert.Len(t, processor.calls, 2)
	assert.Equal(t, 2, progress.position)
	assert.Equal(t, 2, summary.Succeeded)
	assert.False(t, progress.cleared)
}

func TestControllerClearFailureIsFatal(t *testing.T) {
	catalog := &fakeCatalog{instruments: makeInstruments(2)}
	progress := &fakeProgress{clearErr: errors.New("disk full")}
	processor := &fakeProcessor{}
	controller := newTestController(catalog, progress, processor, 10)

	_, err := controller.Run(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "clear")
}

func TestControllerCursorMonotonic(t *testing.T) {
	catalog := &fakeCatalog{instruments: makeInstruments(30)}
	progress := &fakeProgress{}
	processor := &fakeProcessor{
		outcomes: map[string]models.Outcome{
			"SYM03": models.FailedOutcome("SYM03", errors.New("boom")),
			"SYM17": models.FailedOutcome("SYM17", errors.New("boom")),
		},
	}
	controller := newTestController(catalog, progress, processor, 10)

	_, err := controller.Run(context.Background())

	require.NoError(t, err)
	require.NotEmpty(t, progress.saves)
	last := 0
	for _, position := range progress.saves {
		assert.GreaterOrEqual(t, position, last)
		assert.LessOrEqual(t, position, 30)
		last = position
	}
}

func TestControllerMixedOutcomeCounters(t *testing.T) {
	catalog := &fakeCatalog{instruments: makeInstruments(4)}
	progress := &fakeProgress{}
	processor := &fakeProcessor{
		outcomes: map[string]models.Outcome{
			"SYM01": models.SkippedOutcome("SYM01"),
			"SYM02": models.FailedOutcome("SYM02", errors.New("boom")),
		},
	}
	controller := newTestController(catalog, progress, processor, 10)

	summary, err := controller.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 2, summary.Succeeded)
	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, int64(20), summary.Records)
}
