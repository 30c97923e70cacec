package ingest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/candle-sync/internal/database"
	"github.com/candle-sync/internal/exchange"
	"github.com/candle-sync/internal/external"
	"github.com/candle-sync/pkg/models"
	"github.com/sirupsen/logrus"
)

// BarWriter persists a batch of bars
type BarWriter interface {
	WriteBars(ctx context.Context, bars []*models.Bar, venue, interval string) error
}

// KlineSource fetches history in the common kline format
type KlineSource interface {
	GetKlinesBatch(ctx context.Context, symbol, interval string, startTime, endTime int64) ([]exchange.HistoricalKline, error)
}

// DailySource fetches daily-only history
type DailySource interface {
	GetDailyKlines(ctx context.Context, symbol string, startTime, endTime int64) ([]exchange.HistoricalKline, error)
}

// HistorySyncer fetches candles from the instrument's venue and writes them
// to the bar store. Writes are keyed by symbol and timestamp, so re-fetching
// an already-stored window rewrites the same points instead of duplicating.
type HistorySyncer struct {
	writer   BarWriter
	binance  KlineSource
	oanda    KlineSource
	alpha    DailySource
	interval string
	logger   *logrus.Entry
}

// NewHistorySyncer creates a syncer over the configured venue clients.
// OANDA and Alpha Vantage may be nil when unconfigured, instruments routed
// to them then fail individually instead of blocking the whole run.
func NewHistorySyncer(influx *database.InfluxClient, binance *exchange.BinanceClient, oanda *exchange.OANDAClient, alpha *external.AlphaVantageClient, interval string, logger *logrus.Logger) *HistorySyncer {
	s := &HistorySyncer{
		writer:   influx,
		binance:  binance,
		interval: interval,
		logger:   logger.WithField("component", "syncer"),
	}
	if oanda != nil {
		s.oanda = oanda
	}
	if alpha != nil {
		s.alpha = alpha
	}
	return s
}

// Sync fetches up to days of history for the instrument ending now and
// persists it in one batch. Returns the number of bars written, zero with
// a nil error when upstream had nothing for the window.
func (s *HistorySyncer) Sync(ctx context.Context, instrument *models.Instrument, days int) (int, error) {
	now := time.Now().UTC()
	from := now.AddDate(0, 0, -days)
	startMs := from.UnixMilli()
	endMs := now.UnixMilli()

	var klines []exchange.HistoricalKline
	var err error

	switch instrument.Venue {
	case "binance":
		klines, err = s.binance.GetKlinesBatch(ctx, instrument.Symbol, s.interval, startMs, endMs)

	case "oanda":
		if s.oanda == nil {
			return 0, fmt.Errorf("oanda is not configured")
		}
		klines, err = s.oanda.GetKlinesBatch(ctx, oandaInstrumentName(instrument.Symbol), s.interval, startMs, endMs)

	case "alphavantage":
		if s.alpha == nil {
			return 0, fmt.Errorf("alphavantage is not configured")
		}
		if s.interval != "1d" {
			return 0, fmt.Errorf("alphavantage only serves daily bars, interval is %s", s.interval)
		}
		klines, err = s.alpha.GetDailyKlines(ctx, instrument.Symbol, startMs, endMs)

	default:
		return 0, fmt.Errorf("unknown venue: %s", instrument.Venue)
	}

	if err != nil {
		return 0, fmt.Errorf("failed to fetch history: %w", err)
	}

	if len(klines) == 0 {
		return 0, nil
	}

	// Convert everything before writing anything, a malformed payload must
	// not leave a partial batch behind
	bars := make([]*models.Bar, 0, len(klines))
	for _, kline := range klines {
		bar, err := kline.ToBar(instrument.Symbol)
		if err != nil {
			return 0, fmt.Errorf("failed to convert kline for %s: %w", instrument.Symbol, err)
		}
		bars = append(bars, bar)
	}

	if err := s.writer.WriteBars(ctx, bars, instrument.Venue, s.interval); err != nil {
		return 0, fmt.Errorf("failed to write bars: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"symbol": instrument.Symbol,
		"venue":  instrument.Venue,
		"days":   days,
		"bars":   len(bars),
	}).Debug("History written")

	return len(bars), nil
}

// oandaInstrumentName converts a stored symbol to OANDA's underscore form.
// Symbols seeded from OANDA already carry it, six-letter pairs entered by
// hand get split in the middle.
func oandaInstrumentName(symbol string) string {
	if strings.Contains(symbol, "_") {
		return symbol
	}
	if len(symbol) == 6 {
		return symbol[:3] + "_" + symbol[3:]
	}
	return symbol
}
