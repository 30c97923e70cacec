package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/candle-sync/pkg/config"
	"github.com/sirupsen/logrus"
)

// OANDAClient fetches forex candles and instrument listings from OANDA
type OANDAClient struct {
	config     *config.OANDAConfig
	httpClient *http.Client
	logger     *logrus.Entry
}

// OANDAInstrument represents an OANDA instrument listing entry
type OANDAInstrument struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	DisplayName string `json:"displayName"`
}

// OANDACandle represents an OANDA candlestick
type OANDACandle struct {
	Complete bool              `json:"complete"`
	Volume   int               `json:"volume"`
	Time     time.Time         `json:"time"`
	Mid      *OANDAPriceFields `json:"mid,omitempty"`
}

// OANDAPriceFields represents OANDA OHLC price data
type OANDAPriceFields struct {
	Open  string `json:"o"`
	High  string `json:"h"`
	Low   string `json:"l"`
	Close string `json:"c"`
}

type instrumentsResponse struct {
	Instruments []OANDAInstrument `json:"instruments"`
}

type candlesResponse struct {
	Instrument  string        `json:"instrument"`
	Granularity string        `json:"granularity"`
	Candles     []OANDACandle `json:"candles"`
}

// NewOANDAClient creates a new OANDA REST client
func NewOANDAClient(cfg *config.OANDAConfig, logger *logrus.Logger) *OANDAClient {
	return &OANDAClient{
		config: cfg,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger.WithField("component", "oanda"),
	}
}

// GetInstruments fetches all instruments available to the configured account
func (c *OANDAClient) GetInstruments(ctx context.Context) ([]OANDAInstrument, error) {
	url := fmt.Sprintf("%s/v3/accounts/%s/instruments", c.config.APIURL, c.config.AccountID)

	req, err := c.createRequest(ctx, "GET", url)
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

	var response instrumentsResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	c.logger.WithField("count", len(response.Instruments)).Debug("Fetched OANDA instruments")
	return response.Instruments, nil
}

// GetCandles fetches mid-price candles for one request window
func (c *OANDAClient) GetCandles(ctx context.Context, instrument, granularity string, from, to time.Time) ([]OANDACandle, error) {
	url := fmt.Sprintf("%s/v3/instruments/%s/candles", c.config.APIURL, instrument)

	params := []string{
		fmt.Sprintf("granularity=%s", granularity),
		fmt.Sprintf("from=%s", from.UTC().Format(time.RFC3339)),
		fmt.Sprintf("to=%s", to.UTC().Format(time.RFC3339)),
		"price=M",
	}
	url += "?" + strings.Join(params, "&")

	req, err := c.createRequest(ctx, "GET", url)
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

	var response candlesResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	c.logger.WithFields(logrus.Fields{
		"instrument":  instrument,
		"granularity": granularity,
		"count":       len(response.Candles),
	}).Debug("Fetched OANDA candles")

	return response.Candles, nil
}

// GetKlinesBatch fetches candles in windows sized to OANDA's per-request cap
// and converts them to the common kline format
func (c *OANDAClient) GetKlinesBatch(ctx context.Context, instrument, interval string, startTime, endTime int64) ([]HistoricalKline, error) {
	granularity := intervalToGranularity(interval)
	if granularity == "" {
		return nil, fmt.Errorf("unsupported interval: %s", interval)
	}

	barDuration := granularityToDuration(granularity)
	// OANDA rejects from/to windows wider than 5000 candles
	window := barDuration * 5000

	from := time.Unix(startTime/1000, (startTime%1000)*1e6).UTC()
	to := time.Unix(endTime/1000, (endTime%1000)*1e6).UTC()

	var klines []HistoricalKline
	for current := from; current.Before(to); {
		windowEnd := current.Add(window)
		if windowEnd.After(to) {
			windowEnd = to
		}

		candles, err := c.GetCandles(ctx, instrument, granularity, current, windowEnd)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch candle window: %w", err)
		}

		for _, candle := range candles {
			if !candle.Complete || candle.Mid == nil {
				continue
			}

			klines = append(klines, HistoricalKline{
				OpenTime:       candle.Time.UnixMilli(),
				CloseTime:      candle.Time.Add(barDuration).UnixMilli() - 1,
				Open:           candle.Mid.Open,
				High:           candle.Mid.High,
				Low:            candle.Mid.Low,
				Close:          candle.Mid.Close,
				Volume:         strconv.Itoa(candle.Volume),
				NumberOfTrades: candle.Volume, // Tick count stands in for trade count
			})
		}

		current = windowEnd
	}

	return klines, nil
}

func (c *OANDAClient) createRequest(ctx context.Context, method, url string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	return req, nil
}

func intervalToGranularity(interval string) string {
	switch interval {
	case "1m":
		return "M1"
	case "5m":
		return "M5"
	case "15m":
		return "M15"
	case "30m":
		return "M30"
	case "1h":
		return "H1"
	case "4h":
		return "H4"
	case "12h":
		return "H12"
	case "1d":
		return "D"
	case "1w":
		return "W"
	default:
		return ""
	}
}

func granularityToDuration(granularity string) time.Duration {
	switch granularity {
	case "M1":
		return time.Minute
	case "M5":
		return 5 * time.Minute
	case "M15":
		return 15 * time.Minute
	case "M30":
		return 30 * time.Minute
	case "H1":
		return time.Hour
	case "H4":
		return 4 * time.Hour
	case "H12":
		return 12 * time.Hour
	case "D":
		return 24 * time.Hour
	case "W":
		return 7 * 24 * time.Hour
	default:
		return 24 * time.Hour
	}
}
