package ingest

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/candle-sync/internal/exchange"
	"github.com/candle-sync/pkg/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEntry() *logrus.Entry {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger.WithField("component", "syncer")
}

type fakeWriter struct {
	bars     []*models.Bar
	venue    string
	interval string
	calls    int
	err      error
}

func (f *fakeWriter) WriteBars(ctx context.Context, bars []*models.Bar, venue, interval string) error {
	f.calls++
	f.bars = bars
	f.venue = venue
	f.interval = interval
	return f.err
}

type fakeKlineSource struct {
	klines    []exchange.HistoricalKline
	err       error
	gotSymbol string
	gotStart  int64
	gotEnd    int64
}

func (f *fakeKlineSource) GetKlinesBatch(ctx context.Context, symbol, interval string, startTime, endTime int64) ([]exchange.HistoricalKline, error) {
	f.gotSymbol = symbol
	f.gotStart = startTime
	f.gotEnd = endTime
	return f.klines, f.err
}

type fakeDailySource struct {
	klines    []exchange.HistoricalKline
	err       error
	gotSymbol string
}

func (f *fakeDailySource) GetDailyKlines(ctx context.Context, symbol string, startTime, endTime int64) ([]exchange.HistoricalKline, error) {
	f.gotSymbol = symbol
	return f.klines, f.err
}

func validKline(openTime time.Time) exchange.HistoricalKline {
	return exchange.HistoricalKline{
		OpenTime:       openTime.UnixMilli(),
		CloseTime:      openTime.Add(24*time.Hour).UnixMilli() - 1,
		Open:           "100.5",
		High:           "101.0",
		Low:            "99.9",
		Close:          "100.1",
		Volume:         "1234.5",
		NumberOfTrades: 10,
	}
}

func cryptoInstrument(symbol string) *models.Instrument {
	return &models.Instrument{Symbol: symbol, Category: models.CategoryCrypto, Venue: "binance"}
}

func TestSyncBinanceWritesBars(t *testing.T) {
	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	writer := &fakeWriter{}
	source := &fakeKlineSource{klines: []exchange.HistoricalKline{validKline(day), validKline(day.Add(24 * time.Hour))}}
	syncer := &HistorySyncer{writer: writer, binance: source, interval: "1d", logger: testEntry()}

	written, err := syncer.Sync(context.Background(), cryptoInstrument("BTCUSDT"), 90)

	require.NoError(t, err)
	assert.Equal(t, 2, written)
	assert.Equal(t, 1, writer.calls)
	assert.Equal(t, "binance", writer.venue)
	assert.Equal(t, "1d", writer.interval)
	assert.Equal(t, "BTCUSDT", source.gotSymbol)
	assert.Equal(t, "BTCUSDT", writer.bars[0].Symbol)

	// The requested window spans the full backfill depth
	windowMs := source.gotEnd - source.gotStart
	assert.GreaterOrEqual(t, windowMs, int64(89*24*time.Hour/time.Millisecond))
}

func TestSyncNothingNewUpstream(t *testing.T) {
	writer := &fakeWriter{}
	source := &fakeKlineSource{}
	syncer := &HistorySyncer{writer: writer, binance: source, interval: "1d", logger: testEntry()}

	written, err := syncer.Sync(context.Background(), cryptoInstrument("BTCUSDT"), 30)

	require.NoError(t, err)
	assert.Zero(t, written)
	assert.Zero(t, writer.calls)
}

func TestSyncFetchErrorPropagates(t *testing.T) {
	writer := &fakeWriter{}
	source := &fakeKlineSource{err: errors.New("503 from upstream")}
	syncer := &HistorySyncer{writer: writer, binance: source, interval: "1d", logger: testEntry()}

	written, err := syncer.Sync(context.Background(), cryptoInstrument("BTCUSDT"), 30)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "503 from upstream")
	assert.Zero(t, written)
	assert.Zero(t, writer.calls)
}

func TestSyncMalformedKlineAbortsBeforeWrite(t *testing.T) {
	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	bad := validKline(day.Add(24 * time.Hour))
	bad.Open = "garbage"

	writer := &fakeWriter{}
	source := &fakeKlineSource{klines: []exchange.HistoricalKline{validKline(day), bad}}
	syncer := &HistorySyncer{writer: writer, binance: source, interval: "1d", logger: testEntry()}

	_, err := syncer.Sync(context.Background(), cryptoInstrument("BTCUSDT"), 30)

	require.Error(t, err)
	assert.Zero(t, writer.calls)
}

func TestSyncWriteErrorPropagates(t *testing.T) {
	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	writer := &fakeWriter{err: errors.New("influx down")}
	source := &fakeKlineSource{klines: []exchange.HistoricalKline{validKline(day)}}
	syncer := &HistorySyncer{writer: writer, binance: source, interval: "1d", logger: testEntry()}

	written, err := syncer.Sync(context.Background(), cryptoInstrument("BTCUSDT"), 30)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "influx down")
	assert.Zero(t, written)
}

func TestSyncUnknownVenue(t *testing.T) {
	syncer := &HistorySyncer{writer: &fakeWriter{}, interval: "1d", logger: testEntry()}
	instrument := &models.Instrument{Symbol: "X", Venue: "nasdaq-direct"}

	_, err := syncer.Sync(context.Background(), instrument, 30)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown venue")
}

func TestSyncOANDAUnconfigured(t *testing.T) {
	syncer := &HistorySyncer{writer: &fakeWriter{}, interval: "1d", logger: testEntry()}
	instrument := &models.Instrument{Symbol: "EUR_USD", Category: models.CategoryForex, Venue: "oanda"}

	_, err := syncer.Sync(context.Background(), instrument, 30)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "not configured")
}

func TestSyncOANDASymbolForm(t *testing.T) {
	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	writer := &fakeWriter{}
	source := &fakeKlineSource{klines: []exchange.HistoricalKline{validKline(day)}}
	syncer := &HistorySyncer{writer: writer, oanda: source, interval: "1d", logger: testEntry()}

	instrument := &models.Instrument{Symbol: "EURUSD", Category: models.CategoryForex, Venue: "oanda"}
	_, err := syncer.Sync(context.Background(), instrument, 30)

	require.NoError(t, err)
	assert.Equal(t, "EUR_USD", source.gotSymbol)
	// Stored symbol, not the wire form, tags the written bars
	assert.Equal(t, "EURUSD", writer.bars[0].Symbol)
}

func TestSyncAlphaVantageDailyOnly(t *testing.T) {
	syncer := &HistorySyncer{writer: &fakeWriter{}, alpha: &fakeDailySource{}, interval: "1h", logger: testEntry()}
	instrument := &models.Instrument{Symbol: "AAPL", Category: models.CategoryEquity, Venue: "alphavantage"}

	_, err := syncer.Sync(context.Background(), instrument, 30)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "daily")
}

func TestSyncAlphaVantageRoutes(t *testing.T) {
	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	writer := &fakeWriter{}
	source := &fakeDailySource{klines: []exchange.HistoricalKline{validKline(day)}}
	syncer := &HistorySyncer{writer: writer, alpha: source, interval: "1d", logger: testEntry()}

	instrument := &models.Instrument{Symbol: "AAPL", Category: models.CategoryEquity, Venue: "alphavantage"}
	written, err := syncer.Sync(context.Background(), instrument, 365)

	require.NoError(t, err)
	assert.Equal(t, 1, written)
	assert.Equal(t, "AAPL", source.gotSymbol)
	assert.Equal(t, "alphavantage", writer.venue)
}

func TestOANDAInstrumentName(t *testing.T) {
	assert.Equal(t, "EUR_USD", oandaInstrumentName("EURUSD"))
	assert.Equal(t, "EUR_USD", oandaInstrumentName("EUR_USD"))
	assert.Equal(t, "SPX500_USD", oandaInstrumentName("SPX500_USD"))
	assert.Equal(t, "XAU_USD", oandaInstrumentName("XAUUSD"))
}
