package exchange

import (
	"fmt"
	"strconv"
	"time"

	"github.com/candle-sync/pkg/models"
)

// HistoricalKline represents one candlestick returned by a provider REST API.
// Price fields stay as wire strings until conversion.
type HistoricalKline struct {
	OpenTime       int64
	Open           string
	High           string
	Low            string
	Close          string
	Volume         string
	CloseTime      int64
	NumberOfTrades int
}

// ToBar converts the kline into a storable bar
func (k HistoricalKline) ToBar(symbol string) (*models.Bar, error) {
	open, err := strconv.ParseFloat(k.Open, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid open price %q: %w", k.Open, err)
	}

	high, err := strconv.ParseFloat(k.High, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid high price %q: %w", k.High, err)
	}

	low, err := strconv.ParseFloat(k.Low, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid low price %q: %w", k.Low, err)
	}

	close, err := strconv.ParseFloat(k.Close, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid close price %q: %w", k.Close, err)
	}

	volume, err := strconv.ParseFloat(k.Volume, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid volume %q: %w", k.Volume, err)
	}

	return &models.Bar{
		Symbol:     symbol,
		Timestamp:  time.Unix(k.OpenTime/1000, (k.OpenTime%1000)*1e6).UTC(),
		Open:       open,
		High:       high,
		Low:        low,
		Close:      close,
		Volume:     volume,
		TradeCount: int64(k.NumberOfTrades),
	}, nil
}

// intervalMilliseconds returns the duration of a bar interval in milliseconds
func intervalMilliseconds(interval string) int64 {
	switch interval {
	case "1m":
		return 60 * 1000
	case "5m":
		return 5 * 60 * 1000
	case "15m":
		return 15 * 60 * 1000
	case "30m":
		return 30 * 60 * 1000
	case "1h":
		return 60 * 60 * 1000
	case "4h":
		return 4 * 60 * 60 * 1000
	case "12h":
		return 12 * 60 * 60 * 1000
	case "1d":
		return 24 * 60 * 60 * 1000
	case "1w":
		return 7 * 24 * 60 * 60 * 1000
	default:
		return 24 * 60 * 60 * 1000 // Default to 1 day
	}
}
