package catalog

import (
	"regexp"
	"strings"
	"sync"

	"github.com/candle-sync/pkg/models"
)

var (
	forexPattern    = regexp.MustCompile(`^[A-Z]{6}$`)
	forexSepPattern = regexp.MustCompile(`^[A-Z]{3}[/\-_][A-Z]{3}$`)
	tickerPattern   = regexp.MustCompile(`^[A-Z]+$`)
)

// Classifier assigns instruments to a category based on symbol shape
type Classifier struct {
	// Known symbol mappings
	cryptoSymbols map[string]bool
	forexPairs    map[string]bool
	equitySymbols map[string]bool
	indexSymbols  map[string]bool

	mu sync.RWMutex
}

// NewClassifier creates a classifier pre-populated with known symbols
func NewClassifier() *Classifier {
	c := &Classifier{
		cryptoSymbols: make(map[string]bool),
		forexPairs:    make(map[string]bool),
		equitySymbols: make(map[string]bool),
		indexSymbols:  make(map[string]bool),
	}

	c.initializeKnownSymbols()

	return c
}

// Classify determines the category of a symbol
func (c *Classifier) Classify(symbol string) models.Category {
	symbol = strings.ToUpper(symbol)

	// Priority 1: Check cached mappings
	c.mu.RLock()
	if c.cryptoSymbols[symbol] {
		c.mu.RUnlock()
		return models.CategoryCrypto
	}
	if c.forexPairs[symbol] {
		c.mu.RUnlock()
		return models.CategoryForex
	}
	if c.indexSymbols[symbol] {
		c.mu.RUnlock()
		return models.CategoryIndex
	}
	if c.equitySymbols[symbol] {
		c.mu.RUnlock()
		return models.CategoryEquity
	}
	c.mu.RUnlock()

	// Priority 2: Pattern-based detection

	// Index patterns come before forex, SPX500 style names contain currency codes
	indexPatterns := []string{"SPX", "NDX", "DJI", "VIX", "FTSE", "DAX", "NIFTY", "US30", "NAS100", "UK100", "JP225"}
	for _, pattern := range indexPatterns {
		if strings.Contains(symbol, pattern) {
			c.Add(symbol, models.CategoryIndex)
			return models.CategoryIndex
		}
	}

	// Crypto quote-asset suffixes
	if strings.HasSuffix(symbol, "USDT") ||
		strings.HasSuffix(symbol, "BUSD") ||
		strings.HasSuffix(symbol, "USDC") ||
		strings.HasSuffix(symbol, "BTC") ||
		strings.HasSuffix(symbol, "ETH") ||
		strings.HasSuffix(symbol, "BNB") {
		c.Add(symbol, models.CategoryCrypto)
		return models.CategoryCrypto
	}

	// Forex pairs (6 letters, both halves valid currency codes)
	if forexPattern.MatchString(symbol) {
		base := symbol[:3]
		quote := symbol[3:]
		if c.isCurrencyCode(base) && c.isCurrencyCode(quote) {
			c.Add(symbol, models.CategoryForex)
			return models.CategoryForex
		}
	}

	// Forex with separator (EUR/USD, GBP-USD, EUR_USD)
	if forexSepPattern.MatchString(symbol) {
		c.Add(symbol, models.CategoryForex)
		return models.CategoryForex
	}

	// Exchange-suffixed tickers (AAPL.US, NASDAQ:AAPL)
	if strings.Contains(symbol, ".") || strings.Contains(symbol, ":") {
		c.Add(symbol, models.CategoryEquity)
		return models.CategoryEquity
	}

	// Plain short tickers default to equity
	if len(symbol) >= 1 && len(symbol) <= 5 && tickerPattern.MatchString(symbol) {
		return models.CategoryEquity
	}

	return models.CategoryEquity
}

// Add records a symbol in the classifier's cache
func (c *Classifier) Add(symbol string, category models.Category) {
	c.mu.Lock()
	defer c.mu.Unlock()

	symbol = strings.ToUpper(symbol)

	switch category {
	case models.CategoryCrypto:
		c.cryptoSymbols[symbol] = true
	case models.CategoryForex:
		c.forexPairs[symbol] = true
	case models.CategoryEquity:
		c.equitySymbols[symbol] = true
	case models.CategoryIndex:
		c.indexSymbols[symbol] = true
	}
}

// Normalize converts various symbol formats to the stored format
func (c *Classifier) Normalize(symbol string, category models.Category) string {
	symbol = strings.ToUpper(symbol)

	switch category {
	case models.CategoryForex:
		symbol = strings.ReplaceAll(symbol, "/", "")
		symbol = strings.ReplaceAll(symbol, "-", "")
		symbol = strings.ReplaceAll(symbol, "_", "")

	case models.CategoryEquity:
		if idx := strings.Index(symbol, "."); idx > 0 {
			return symbol[:idx]
		}
		if idx := strings.Index(symbol, ":"); idx > 0 {
			return symbol[idx+1:]
		}

	case models.CategoryIndex:
		symbol = strings.ReplaceAll(symbol, "_", "")
	}

	return symbol
}

// VenueFor returns the default data source for a category
func (c *Classifier) VenueFor(category models.Category) string {
	switch category {
	case models.CategoryCrypto:
		return "binance"
	case models.CategoryForex, models.CategoryIndex:
		return "oanda"
	case models.CategoryEquity:
		return "alphavantage"
	}
	return ""
}

// isCurrencyCode checks if a 3-letter code is a currency OANDA can price
func (c *Classifier) isCurrencyCode(code string) bool {
	currencyCodes := map[string]bool{
		"USD": true, "EUR": true, "GBP": true, "JPY": true,
		"CHF": true, "CAD": true, "AUD": true, "NZD": true,
		"CNY": true, "INR": true, "KRW": true, "SGD": true,
		"HKD": true, "NOK": true, "SEK": true, "DKK": true,
		"PLN": true, "THB": true, "IDR": true, "HUF": true,
		"CZK": true, "ILS": true, "CLP": true, "PHP": true,
		"AED": true, "COP": true, "SAR": true, "MYR": true,
		"RON": true, "RUB": true, "ZAR": true, "MXN": true,
		"BRL": true, "TWD": true, "TRY": true,
		// Metals trade as currency pairs
		"XAU": true, "XAG": true, "XPT": true, "XPD": true,
	}
	return currencyCodes[code]
}

// initializeKnownSymbols pre-populates known symbols
func (c *Classifier) initializeKnownSymbols() {
	cryptos := []string{
		"BTCUSDT", "ETHUSDT", "BNBUSDT", "SOLUSDT", "XRPUSDT",
		"ADAUSDT", "DOGEUSDT", "AVAXUSDT", "DOTUSDT", "MATICUSDT",
		"LINKUSDT", "LTCUSDT", "UNIUSDT", "ATOMUSDT", "XLMUSDT",
	}
	for _, symbol := range cryptos {
		c.cryptoSymbols[symbol] = true
	}

	forexPairs := []string{
		"EURUSD", "GBPUSD", "USDJPY", "USDCHF", "AUDUSD",
		"USDCAD", "NZDUSD", "EURGBP", "EURJPY", "GBPJPY",
		"XAUUSD", "XAGUSD",
	}
	for _, pair := range forexPairs {
		c.forexPairs[pair] = true
	}

	equities := []string{
		"AAPL", "GOOGL", "MSFT", "AMZN", "TSLA",
		"NVDA", "JPM", "V", "JNJ", "WMT",
	}
	for _, equity := range equities {
		c.equitySymbols[equity] = true
	}

	indexes := []string{
		"SPX500", "NAS100", "US30", "UK100", "DE30", "JP225", "VIX",
	}
	for _, index := range indexes {
		c.indexSymbols[index] = true
	}
}
