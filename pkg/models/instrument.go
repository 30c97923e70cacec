package models

import "time"

// Category classifies an instrument into a market segment
type Category string

const (
	CategoryCrypto Category = "crypto"
	CategoryEquity Category = "equity"
	CategoryForex  Category = "forex"
	CategoryIndex  Category = "index"
)

// Valid reports whether the category is one of the known segments
func (c Category) Valid() bool {
	switch c {
	case CategoryCrypto, CategoryEquity, CategoryForex, CategoryIndex:
		return true
	}
	return false
}

// Instrument represents a tradable symbol tracked by the catalog
type Instrument struct {
	ID            int       `json:"id" db:"id"`
	Symbol        string    `json:"symbol" db:"symbol"`
	FullName      string    `json:"full_name" db:"full_name"`
	Category      Category  `json:"category" db:"category"`
	Venue         string    `json:"venue" db:"venue"` // data source (binance, oanda, alphavantage)
	BaseCurrency  string    `json:"base_currency" db:"base_currency"`
	QuoteCurrency string    `json:"quote_currency" db:"quote_currency"`
	IsActive      bool      `json:"is_active" db:"is_active"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}
