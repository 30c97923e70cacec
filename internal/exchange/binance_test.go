package exchange

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/candle-sync/pkg/config"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const dayMs = int64(24 * 60 * 60 * 1000)

func newBinanceTestClient(ts *httptest.Server) *BinanceClient {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	client := NewBinanceClient(&config.BinanceConfig{APIURL: ts.URL}, logger)
	client.rateLimit = 0
	return client
}

func klineRow(openTime int64) []interface{} {
	return []interface{}{
		openTime, "1.0", "2.0", "0.5", "1.5", "100.0",
		openTime + dayMs - 1, "150.0", 10, "50.0", "75.0", "0",
	}
}

func TestBinanceGetKlines(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).UnixMilli()

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v3/klines", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "BTCUSDT", r.URL.Query().Get("symbol"))
		assert.Equal(t, "1d", r.URL.Query().Get("interval"))
		json.NewEncoder(w).Encode([][]interface{}{klineRow(base), klineRow(base + dayMs)})
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	client := newBinanceTestClient(ts)
	klines, err := client.GetKlines(context.Background(), "BTCUSDT", "1d", base, base+2*dayMs, 1000)

	require.NoError(t, err)
	require.Len(t, klines, 2)
	assert.Equal(t, base, klines[0].OpenTime)
	assert.Equal(t, "1.0", klines[0].Open)
	assert.Equal(t, 10, klines[0].NumberOfTrades)
}

func TestBinanceGetKlinesAPIError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v3/klines", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"code":-1003,"msg":"Too many requests"}`))
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	client := newBinanceTestClient(ts)
	_, err := client.GetKlines(context.Background(), "BTCUSDT", "1d", 0, 0, 100)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestBinanceGetKlinesBatchPages(t *testing.T) {
	base := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC).UnixMilli()
	requests := 0

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v3/klines", func(w http.ResponseWriter, r *http.Request) {
		requests++
		start, _ := strconv.ParseInt(r.URL.Query().Get("startTime"), 10, 64)
		end, _ := strconv.ParseInt(r.URL.Query().Get("endTime"), 10, 64)

		rows := make([][]interface{}, 0, 1000)
		for ts := start; ts < end && len(rows) < 1000; ts += dayMs {
			rows = append(rows, klineRow(ts))
		}
		json.NewEncoder(w).Encode(rows)
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	client := newBinanceTestClient(ts)
	klines, err := client.GetKlinesBatch(context.Background(), "BTCUSDT", "1d", base, base+1500*dayMs)

	require.NoError(t, err)
	assert.Len(t, klines, 1500)
	assert.Equal(t, 2, requests)
	// Consecutive pages join without gaps or overlap
	assert.Equal(t, base+999*dayMs, klines[999].OpenTime)
	assert.Equal(t, base+1000*dayMs, klines[1000].OpenTime)
}

func TestBinanceGetKlinesBatchEmptyWindow(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v3/klines", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([][]interface{}{})
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).UnixMilli()
	client := newBinanceTestClient(ts)
	klines, err := client.GetKlinesBatch(context.Background(), "NEWUSDT", "1d", base, base+10*dayMs)

	require.NoError(t, err)
	assert.Empty(t, klines)
}
