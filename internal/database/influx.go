package database

import (
	"context"
	"fmt"
	"time"

	"github.com/candle-sync/pkg/config"
	"github.com/candle-sync/pkg/models"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/sirupsen/logrus"
)

// InfluxClient handles InfluxDB time-series operations
type InfluxClient struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	queryAPI api.QueryAPI
	logger   *logrus.Entry
	cfg      *config.InfluxConfig
	org      string
	bucket   string
}

// NewInfluxClient creates a new InfluxDB client
func NewInfluxClient(cfg *config.InfluxConfig, logger *logrus.Logger) *InfluxClient {
	client := influxdb2.NewClientWithOptions(
		cfg.URL,
		cfg.Token,
		influxdb2.DefaultOptions().
			SetHTTPRequestTimeout(uint(cfg.Timeout.Seconds())).
			SetLogLevel(0), // Silent - no logs
	)

	return &InfluxClient{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		queryAPI: client.QueryAPI(cfg.Org),
		logger:   logger.WithField("component", "influxdb"),
		cfg:      cfg,
		org:      cfg.Org,
		bucket:   cfg.Bucket,
	}
}

// Close closes the InfluxDB client
func (ic *InfluxClient) Close() {
	ic.client.Close()
}

// Health checks InfluxDB health
func (ic *InfluxClient) Health(ctx context.Context) error {
	health, err := ic.client.Health(ctx)
	if err != nil {
		return fmt.Errorf("failed to check health: %w", err)
	}

	if health.Status != "pass" {
		msg := ""
		if health.Message != nil {
			msg = *health.Message
		}
		return fmt.Errorf("influxdb health check failed: %s", msg)
	}

	return nil
}

// measurementForInterval maps a bar interval to its measurement name.
// 1m bars live in the base "ohlcv" measurement, others get a suffix.
func measurementForInterval(interval string) string {
	if interval == "" || interval == "1m" {
		return "ohlcv"
	}
	return fmt.Sprintf("ohlcv_%s", interval)
}

// WriteBars writes OHLCV bars in a single batch. Points are keyed by
// measurement, tags and timestamp, so rewriting a bar replaces it rather
// than duplicating it.
func (ic *InfluxClient) WriteBars(ctx context.Context, bars []*models.Bar, venue, interval string) error {
	if len(bars) == 0 {
		return nil
	}

	measurement := measurementForInterval(interval)

	points := make([]*write.Point, 0, len(bars))
	for _, bar := range bars {
		point := influxdb2.NewPoint(
			measurement,
			map[string]string{
				"venue":  venue,
				"symbol": bar.Symbol,
			},
			map[string]interface{}{
				"open":        bar.Open,
				"high":        bar.High,
				"low":         bar.Low,
				"close":       bar.Close,
				"volume":      bar.Volume,
				"trade_count": bar.TradeCount,
			},
			bar.Timestamp,
		)
		points = append(points, point)
	}

	if err := ic.writeAPI.WritePoint(ctx, points...); err != nil {
		return fmt.Errorf("failed to write bars batch (%d points): %w", len(points), err)
	}

	return nil
}

// CountBars returns the number of stored bars for a symbol. A symbol with
// no data yields zero, not an error.
func (ic *InfluxClient) CountBars(ctx context.Context, symbol, interval string) (int64, error) {
	query := fmt.Sprintf(`
		from(bucket: "%s")
		|> range(start: 0)
		|> filter(fn: (r) => r._measurement == "%s")
		|> filter(fn: (r) => r.symbol == "%s")
		|> filter(fn: (r) => r._field == "close")
		|> count()
	`, ic.bucket, measurementForInterval(interval), symbol)

	result, err := ic.queryAPI.Query(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("failed to query bar count: %w", err)
	}
	defer result.Close()

	var count int64
	if result.Next() {
		if v, ok := result.Record().Value().(int64); ok {
			count = v
		}
	}

	if result.Err() != nil {
		return 0, fmt.Errorf("bar count query error: %w", result.Err())
	}

	return count, nil
}

// GetLatestBar retrieves the most recent bar for a symbol, or nil when the
// symbol has no data yet
func (ic *InfluxClient) GetLatestBar(ctx context.Context, symbol, interval string) (*models.Bar, error) {
	query := fmt.Sprintf(`
		from(bucket: "%s")
		|> range(start: 0)
		|> filter(fn: (r) => r._measurement == "%s")
		|> filter(fn: (r) => r.symbol == "%s")
		|> filter(fn: (r) => r._field == "open" or r._field == "high" or r._field == "low" or r._field == "close" or r._field == "volume")
		|> pivot(rowKey:["_time"], columnKey: ["_field"], valueColumn: "_value")
		|> sort(columns: ["_time"], desc: true)
		|> limit(n: 1)
	`, ic.bucket, measurementForInterval(interval), symbol)

	result, err := ic.queryAPI.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query latest bar: %w", err)
	}
	defer result.Close()

	if !result.Next() {
		return nil, nil // No data
	}

	record := result.Record()
	bar := &models.Bar{
		Symbol:    symbol,
		Timestamp: record.Time(),
	}

	if v, ok := record.Values()["open"].(float64); ok {
		bar.Open = v
	}
	if v, ok := record.Values()["high"].(float64); ok {
		bar.High = v
	}
	if v, ok := record.Values()["low"].(float64); ok {
		bar.Low = v
	}
	if v, ok := record.Values()["close"].(float64); ok {
		bar.Close = v
	}
	if v, ok := record.Values()["volume"].(float64); ok {
		bar.Volume = v
	}

	if result.Err() != nil {
		return nil, fmt.Errorf("latest bar query error: %w", result.Err())
	}

	return bar, nil
}

// GetDataTimeRange retrieves the earliest and latest bar timestamps plus the
// stored bar count for a symbol
func (ic *InfluxClient) GetDataTimeRange(ctx context.Context, symbol, interval string) (earliest, latest time.Time, count int64, err error) {
	measurement := measurementForInterval(interval)

	earliestQuery := fmt.Sprintf(`
		from(bucket: "%s")
		|> range(start: 0)
		|> filter(fn: (r) => r._measurement == "%s")
		|> filter(fn: (r) => r.symbol == "%s")
		|> filter(fn: (r) => r._field == "close")
		|> first()
	`, ic.bucket, measurement, symbol)

	earliestResult, err := ic.queryAPI.Query(ctx, earliestQuery)
	if err != nil {
		return time.Time{}, time.Time{}, 0, fmt.Errorf("failed to query earliest: %w", err)
	}
	defer earliestResult.Close()

	if earliestResult.Next() {
		earliest = earliestResult.Record().Time()
	}

	latestQuery := fmt.Sprintf(`
		from(bucket: "%s")
		|> range(start: 0)
		|> filter(fn: (r) => r._measurement == "%s")
		|> filter(fn: (r) => r.symbol == "%s")
		|> filter(fn: (r) => r._field == "close")
		|> last()
	`, ic.bucket, measurement, symbol)

	latestResult, err := ic.queryAPI.Query(ctx, latestQuery)
	if err != nil {
		return time.Time{}, time.Time{}, 0, fmt.Errorf("failed to query latest: %w", err)
	}
	defer latestResult.Close()

	if latestResult.Next() {
		latest = latestResult.Record().Time()
	}

	count, err = ic.CountBars(ctx, symbol, interval)
	if err != nil {
		return earliest, latest, 0, err
	}

	return earliest, latest, count, nil
}
