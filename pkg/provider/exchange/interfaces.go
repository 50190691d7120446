// Package exchange defines the contract of a remote currency service.
package exchange

import (
	"context"
	"time"

	"github.com/subsy/fx/pkg/exchange/core"
	"github.com/subsy/fx/pkg/money"
)

// RatesResponse is a rate table as answered by a provider.
type RatesResponse struct {
	Base      money.Code     `json:"base_currency"`
	Rates     core.RateTable `json:"rates"`
	Timestamp time.Time      `json:"timestamp"`
}

// ConvertResponse is the answer to a single conversion.
type ConvertResponse struct {
	OriginalAmount   float64    `json:"original_amount"`
	OriginalCurrency money.Code `json:"original_currency"`
	ConvertedAmount  float64    `json:"converted_amount"`
	TargetCurrency   money.Code `json:"target_currency"`
	ExchangeRate     float64    `json:"exchange_rate"`
}

// ConvertMultipleResponse is the answer to a bulk conversion.
type ConvertMultipleResponse struct {
	TotalConvertedAmount float64                `json:"total_converted_amount"`
	TargetCurrency       money.Code             `json:"target_currency"`
	OriginalAmounts      map[money.Code]float64 `json:"original_amounts"`
	ConversionCount      int                    `json:"conversion_count"`
}

// RateFetcher fetches rate tables.
type RateFetcher interface {
	// FetchRates returns rates relative to base. An empty targets slice
	// asks for every currency the provider knows.
	FetchRates(ctx context.Context, base money.Code, targets []money.Code) (*RatesResponse, error)
}

// Converter converts a single amount.
type Converter interface {
	Convert(ctx context.Context, amount float64, from, to money.Code) (*ConvertResponse, error)
}

// BulkConverter converts many amounts into one total.
type BulkConverter interface {
	ConvertMultiple(ctx context.Context, amounts core.Amounts, to money.Code) (*ConvertMultipleResponse, error)
}

// HealthChecker defines the interface for checking provider health
type HealthChecker interface {
	CheckHealth(ctx context.Context) error
}

// Exchange is the complete remote currency service.
type Exchange interface {
	RateFetcher
	Converter
	BulkConverter
	HealthChecker

	// Name identifies the provider in logs and errors.
	Name() string
}
