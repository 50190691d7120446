package core

import (
	"maps"
	"time"

	"github.com/subsy/fx/pkg/money"
)

// RateTable maps a currency to its rate relative to a single base currency.
// A consistent table holds 1.0 for the base itself; currencies without data
// are simply absent.
type RateTable map[money.Code]float64

// Clone returns a copy of the table. Consumers receive clones so a cached
// table is never mutated in place.
func (t RateTable) Clone() RateTable {
	if t == nil {
		return nil
	}
	return maps.Clone(t)
}

// RateSnapshot is a RateTable together with the base it is anchored at and
// when it was produced.
type RateSnapshot struct {
	Base      money.Code `json:"base"`
	Rates     RateTable  `json:"rates"`
	Timestamp time.Time  `json:"timestamp"`
	FetchedAt time.Time  `json:"fetched_at"`
	Source    string     `json:"source"`
}

// Clone returns a deep copy of the snapshot.
func (s *RateSnapshot) Clone() *RateSnapshot {
	if s == nil {
		return nil
	}
	c := *s
	c.Rates = s.Rates.Clone()
	return &c
}

// ConversionRequest represents a request to convert an amount between currencies
type ConversionRequest struct {
	Amount float64    `json:"amount"`
	From   money.Code `json:"from"`
	To     money.Code `json:"to"`
}

// BulkRequest asks for Amounts to be summed in currency To.
type BulkRequest struct {
	Amounts Amounts    `json:"amounts_by_currency"`
	To      money.Code `json:"to_currency"`
}

// Tier names the strategy that produced a conversion result.
type Tier string

const (
	// TierTrivial means no conversion was needed.
	TierTrivial Tier = "trivial"
	// TierBulk is one remote call for the whole mapping.
	TierBulk Tier = "bulk"
	// TierPerItem is one remote call per currency.
	TierPerItem Tier = "per_item"
	// TierNaive is the unconverted sum of all amounts.
	TierNaive Tier = "naive"
	// TierRemote is a single remote conversion.
	TierRemote Tier = "remote"
	// TierCrossRate is a local conversion from a cached rate table.
	TierCrossRate Tier = "cross_rate"
	// TierOriginal returns the unconverted input amount.
	TierOriginal Tier = "original"
)

// ConversionResult represents the result of a single-amount conversion.
// Degraded is set when Amount is not actually expressed in To.
type ConversionResult struct {
	OriginalAmount   float64    `json:"original_amount"`
	OriginalCurrency money.Code `json:"original_currency"`
	Amount           float64    `json:"converted_amount"`
	Currency         money.Code `json:"target_currency"`
	Tier             Tier       `json:"tier"`
	Degraded         bool       `json:"degraded"`
}

// BulkResult is the outcome of converting several amounts into one total.
type BulkResult struct {
	Total           float64    `json:"total_converted_amount"`
	Currency        money.Code `json:"target_currency"`
	OriginalAmounts Amounts    `json:"original_amounts"`
	ConversionCount int        `json:"conversion_count"`
	Tier            Tier       `json:"tier"`
	Degraded        bool       `json:"degraded"`
	// Unconverted lists currencies whose amounts were added without conversion.
	Unconverted []money.Code `json:"unconverted,omitempty"`
}
