package exchange

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/candle-sync/pkg/config"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newOANDATestClient(ts *httptest.Server) *OANDAClient {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return NewOANDAClient(&config.OANDAConfig{
		APIKey:    "test-key",
		AccountID: "001-001-1234567-001",
		APIURL:    ts.URL,
	}, logger)
}

func TestOANDAGetInstruments(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v3/accounts/001-001-1234567-001/instruments", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode(instrumentsResponse{Instruments: []OANDAInstrument{
			{Name: "EUR_USD", Type: "CURRENCY", DisplayName: "EUR/USD"},
			{Name: "SPX500_USD", Type: "CFD", DisplayName: "US SPX 500"},
		}})
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	client := newOANDATestClient(ts)
	instruments, err := client.GetInstruments(context.Background())

	require.NoError(t, err)
	require.Len(t, instruments, 2)
	assert.Equal(t, "EUR_USD", instruments[0].Name)
	assert.Equal(t, "CFD", instruments[1].Type)
}

func TestOANDAGetKlinesBatchConvertsCompleteCandles(t *testing.T) {
	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	mux := http.NewServeMux()
	mux.HandleFunc("/v3/instruments/EUR_USD/candles", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "D", r.URL.Query().Get("granularity"))
		assert.Equal(t, "M", r.URL.Query().Get("price"))
		json.NewEncoder(w).Encode(candlesResponse{
			Instrument:  "EUR_USD",
			Granularity: "D",
			Candles: []OANDACandle{
				{Complete: true, Volume: 4521, Time: day, Mid: &OANDAPriceFields{Open: "1.0801", High: "1.0912", Low: "1.0788", Close: "1.0874"}},
				{Complete: false, Volume: 231, Time: day.Add(24 * time.Hour), Mid: &OANDAPriceFields{Open: "1.0874", High: "1.0880", Low: "1.0860", Close: "1.0871"}},
			},
		})
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	client := newOANDATestClient(ts)
	klines, err := client.GetKlinesBatch(context.Background(), "EUR_USD", "1d", day.UnixMilli(), day.Add(48*time.Hour).UnixMilli())

	require.NoError(t, err)
	// The still-forming candle is dropped
	require.Len(t, klines, 1)
	assert.Equal(t, day.UnixMilli(), klines[0].OpenTime)
	assert.Equal(t, "1.0801", klines[0].Open)
	assert.Equal(t, "4521", klines[0].Volume)
	assert.Equal(t, 4521, klines[0].NumberOfTrades)
}

func TestOANDAGetKlinesBatchSplitsWideWindows(t *testing.T) {
	requests := 0

	mux := http.NewServeMux()
	mux.HandleFunc("/v3/instruments/EUR_USD/candles", func(w http.ResponseWriter, r *http.Request) {
		requests++
		json.NewEncoder(w).Encode(candlesResponse{Instrument: "EUR_USD", Granularity: "D"})
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	from := time.Date(2005, 1, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 6000)

	client := newOANDATestClient(ts)
	_, err := client.GetKlinesBatch(context.Background(), "EUR_USD", "1d", from.UnixMilli(), to.UnixMilli())

	require.NoError(t, err)
	// 6000 daily candles exceed the 5000-candle request cap
	assert.Equal(t, 2, requests)
}

func TestOANDAGetKlinesBatchUnsupportedInterval(t *testing.T) {
	ts := httptest.NewServer(http.NewServeMux())
	defer ts.Close()

	client := newOANDATestClient(ts)
	_, err := client.GetKlinesBatch(context.Background(), "EUR_USD", "3m", 0, 1)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported interval")
}

func TestGranularityMapping(t *testing.T) {
	assert.Equal(t, "M1", intervalToGranularity("1m"))
	assert.Equal(t, "H1", intervalToGranularity("1h"))
	assert.Equal(t, "D", intervalToGranularity("1d"))
	assert.Equal(t, "", intervalToGranularity("7m"))

	assert.Equal(t, 24*time.Hour, granularityToDuration("D"))
	assert.Equal(t, time.Minute, granularityToDuration("M1"))
}
