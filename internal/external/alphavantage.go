package external

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/candle-sync/internal/exchange"
	"github.com/candle-sync/pkg/config"
	"github.com/sirupsen/logrus"
)

// AlphaVantageClient fetches daily stock and index candles from Alpha Vantage
type AlphaVantageClient struct {
	config      *config.AlphaVantageConfig
	httpClient  *http.Client
	logger      *logrus.Entry
	rateLimiter chan struct{}
}

// dailySeriesResponse represents the TIME_SERIES_DAILY payload
type dailySeriesResponse struct {
	MetaData struct {
		Symbol        string `json:"2. Symbol"`
		LastRefreshed string `json:"3. Last Refreshed"`
	} `json:"Meta Data"`
	TimeSeries map[string]struct {
		Open   string `json:"1. open"`
		High   string `json:"2. high"`
		Low    string `json:"3. low"`
		Close  string `json:"4. close"`
		Volume string `json:"5. volume"`
	} `json:"Time Series (Daily)"`
	Note         string `json:"Note,omitempty"`
	ErrorMessage string `json:"Error Message,omitempty"`
}

// NewAlphaVantageClient creates a new Alpha Vantage client with rate limiting
func NewAlphaVantageClient(cfg *config.AlphaVantageConfig, logger *logrus.Logger) *AlphaVantageClient {
	client := &AlphaVantageClient{
		config: cfg,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger:      logger.WithField("component", "alphavantage"),
		rateLimiter: make(chan struct{}, 1),
	}

	// First request goes through immediately, the worker paces the rest
	client.rateLimiter <- struct{}{}
	go client.rateLimitWorker()

	return client
}

// rateLimitWorker refills the rate limiter token
// Free tier allows 5 requests per minute, so one token every 12 seconds
func (c *AlphaVantageClient) rateLimitWorker() {
	ticker := time.NewTicker(12 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		select {
		case c.rateLimiter <- struct{}{}:
		default:
		}
	}
}

// GetDailyKlines fetches daily candles for a symbol within [startTime, endTime]
// and converts them to the common kline format
func (c *AlphaVantageClient) GetDailyKlines(ctx context.Context, symbol string, startTime, endTime int64) ([]exchange.HistoricalKline, error) {
	select {
	case <-c.rateLimiter:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	from := time.Unix(startTime/1000, 0).UTC()
	to := time.Unix(endTime/1000, 0).UTC()

	// Compact covers the latest 100 trading days, anything older needs full
	outputSize := "compact"
	if time.Since(from) > 100*24*time.Hour {
		outputSize = "full"
	}

	url := fmt.Sprintf("%s/query?function=TIME_SERIES_DAILY&symbol=%s&outputsize=%s&apikey=%s",
		c.config.APIURL, symbol, outputSize, c.config.APIKey)

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("API error %d: %s", resp.StatusCode, string(body))
	}

	var response dailySeriesResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if response.ErrorMessage != "" {
		return nil, fmt.Errorf("API error: %s", response.ErrorMessage)
	}
	if response.Note != "" {
		return nil, fmt.Errorf("rate limited: %s", response.Note)
	}

	dates := make([]string, 0, len(response.TimeSeries))
	for date := range response.TimeSeries {
		dates = append(dates, date)
	}
	sort.Strings(dates)

	var klines []exchange.HistoricalKline
	for _, date := range dates {
		day, err := time.ParseInLocation("2006-01-02", date, time.UTC)
		if err != nil {
			c.logger.WithField("date", date).Warn("Skipping unparseable date")
			continue
		}
		if day.Before(from) || day.After(to) {
			continue
		}

		bar := response.TimeSeries[date]
		klines = append(klines, exchange.HistoricalKline{
			OpenTime:  day.UnixMilli(),
			CloseTime: day.Add(24*time.Hour).UnixMilli() - 1,
			Open:      bar.Open,
			High:      bar.High,
			Low:       bar.Low,
			Close:     bar.Close,
			Volume:    bar.Volume,
		})
	}

	c.logger.WithFields(logrus.Fields{
		"symbol": symbol,
		"count":  len(klines),
	}).Debug("Fetched Alpha Vantage daily series")

	return klines, nil
}
