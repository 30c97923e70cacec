package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/candle-sync/pkg/config"
	"github.com/sirupsen/logrus"
)

// BinanceClient fetches historical klines from the Binance REST API
type BinanceClient struct {
	client    *http.Client
	baseURL   string
	logger    *logrus.Entry
	rateLimit time.Duration
	lastCall  time.Time
}

// NewBinanceClient creates a new Binance REST client
func NewBinanceClient(cfg *config.BinanceConfig, logger *logrus.Logger) *BinanceClient {
	return &BinanceClient{
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseURL:   cfg.APIURL,
		logger:    logger.WithField("component", "binance"),
		rateLimit: 100 * time.Millisecond, // 10 requests per second max
	}
}

// GetKlines fetches kline/candlestick data for one request window
func (b *BinanceClient) GetKlines(ctx context.Context, symbol, interval string, startTime, endTime int64, limit int) ([]HistoricalKline, error) {
	b.enforceRateLimit()

	endpoint := fmt.Sprintf("%s/api/v3/klines", b.baseURL)
	params := url.Values{}
	params.Add("symbol", symbol)
	params.Add("interval", interval)

	if startTime > 0 {
		params.Add("startTime", strconv.FormatInt(startTime, 10))
	}
	if endTime > 0 {
		params.Add("endTime", strconv.FormatInt(endTime, 10))
	}
	if limit > 0 && limit <= 1000 {
		params.Add("limit", strconv.Itoa(limit))
	} else if limit > 1000 {
		params.Add("limit", "1000")
	}

	fullURL := fmt.Sprintf("%s?%s", endpoint, params.Encode())

	b.logger.WithFields(logrus.Fields{
		"symbol":    symbol,
		"interval":  interval,
		"startTime": time.Unix(startTime/1000, 0).Format(time.RFC3339),
		"endTime":   time.Unix(endTime/1000, 0).Format(time.RFC3339),
	}).Debug("Fetching klines")

	req, err := http.NewRequestWithContext(ctx, "GET", fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("API error: status=%d, body=%s", resp.StatusCode, string(body))
	}

	var rawKlines [][]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&rawKlines); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	klines := make([]HistoricalKline, 0, len(rawKlines))
	for i, raw := range rawKlines {
		kline, err := decodeKlineRow(raw)
		if err != nil {
			return nil, fmt.Errorf("malformed kline row %d for %s: %w", i, symbol, err)
		}
		klines = append(klines, kline)
	}

	b.logger.WithFields(logrus.Fields{
		"symbol": symbol,
		"count":  len(klines),
	}).Debug("Fetched klines successfully")

	return klines, nil
}

// GetKlinesBatch fetches klines in batches for large date ranges
func (b *BinanceClient) GetKlinesBatch(ctx context.Context, symbol, interval string, startTime, endTime int64) ([]HistoricalKline, error) {
	var allKlines []HistoricalKline

	intervalMs := intervalMilliseconds(interval)
	batchSize := int64(1000) // Max klines per request
	batchDuration := intervalMs * batchSize

	currentStart := startTime
	for currentStart < endTime {
		currentEnd := currentStart + batchDuration
		if currentEnd > endTime {
			currentEnd = endTime
		}

		klines, err := b.GetKlines(ctx, symbol, interval, currentStart, currentEnd, 1000)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch batch: %w", err)
		}

		allKlines = append(allKlines, klines...)

		if len(klines) > 0 {
			currentStart = klines[len(klines)-1].CloseTime + 1
		} else {
			currentStart = currentEnd
		}

		progress := float64(currentStart-startTime) / float64(endTime-startTime) * 100
		b.logger.WithFields(logrus.Fields{
			"symbol":   symbol,
			"progress": fmt.Sprintf("%.1f%%", progress),
			"fetched":  len(allKlines),
		}).Debug("Loading historical data")
	}

	return allKlines, nil
}

// enforceRateLimit keeps consecutive requests at least rateLimit apart
func (b *BinanceClient) enforceRateLimit() {
	elapsed := time.Since(b.lastCall)
	if elapsed < b.rateLimit {
		time.Sleep(b.rateLimit - elapsed)
	}
	b.lastCall = time.Now()
}

// decodeKlineRow converts one raw kline array into a HistoricalKline.
// The wire format is a positional array mixing numbers and strings.
func decodeKlineRow(raw []interface{}) (HistoricalKline, error) {
	if len(raw) < 9 {
		return HistoricalKline{}, fmt.Errorf("expected at least 9 fields, got %d", len(raw))
	}

	openTime, ok := raw[0].(float64)
	if !ok {
		return HistoricalKline{}, fmt.Errorf("open time is not a number")
	}

	closeTime, ok := raw[6].(float64)
	if !ok {
		return HistoricalKline{}, fmt.Errorf("close time is not a number")
	}

	trades, ok := raw[8].(float64)
	if !ok {
		return HistoricalKline{}, fmt.Errorf("trade count is not a number")
	}

	strs := make([]string, 5)
	for i, idx := range []int{1, 2, 3, 4, 5} {
		s, ok := raw[idx].(string)
		if !ok {
			return HistoricalKline{}, fmt.Errorf("field %d is not a string", idx)
		}
		strs[i] = s
	}

	return HistoricalKline{
		OpenTime:       int64(openTime),
		Open:           strs[0],
		High:           strs[1],
		Low:            strs[2],
		Close:          strs[3],
		Volume:         strs[4],
		CloseTime:      int64(closeTime),
		NumberOfTrades: int(trades),
	}, nil
}
