package core

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/shopspring/decimal"
	"github.com/subsy/fx/pkg/money"
)

// Amount is a value in one currency.
type Amount struct {
	Currency money.Code `json:"currency"`
	Value    float64    `json:"value"`
}

// Amounts is an ordered amounts-by-currency mapping. Order is significant:
// per-item conversions are issued in this order.
type Amounts []Amount

// Merge sums entries sharing a currency, keeping first-seen order.
func (a Amounts) Merge() Amounts {
	index := make(map[money.Code]int, len(a))
	out := make(Amounts, 0, len(a))
	for _, item := range a {
		if i, ok := index[item.Currency]; ok {
			out[i].Value = decimal.NewFromFloat(out[i].Value).
				Add(decimal.NewFromFloat(item.Value)).
				InexactFloat64()
			continue
		}
		index[item.Currency] = len(out)
		out = append(out, item)
	}
	return out
}

// Validate reports the first entry with an invalid code or a non-finite value.
func (a Amounts) Validate() error {
	for _, item := range a {
		if !item.Currency.IsValid() {
			return fmt.Errorf("%w: %q", money.ErrInvalidCurrency, item.Currency)
		}
		if math.IsNaN(item.Value) || math.IsInf(item.Value, 0) {
			return fmt.Errorf("%w: %v %s", ErrInvalidAmount, item.Value, item.Currency)
		}
	}
	return nil
}

// AllIn reports whether every entry is already in currency c.
func (a Amounts) AllIn(c money.Code) bool {
	for _, item := range a {
		if item.Currency != c {
			return false
		}
	}
	return true
}

// Sum adds every value regardless of currency.
func (a Amounts) Sum() float64 {
	total := decimal.Zero
	for _, item := range a {
		total = total.Add(decimal.NewFromFloat(item.Value))
	}
	return total.InexactFloat64()
}

// Map returns the amounts keyed by currency.
func (a Amounts) Map() map[money.Code]float64 {
	m := make(map[money.Code]float64, len(a))
	for _, item := range a {
		m[item.Currency] += item.Value
	}
	return m
}

// MarshalJSON encodes Amounts as a JSON object in order.
func (a Amounts) MarshalJSON() ([]byte, error) {
	buf := []byte{'{'}
	for i, item := range a {
		if i > 0 {
			buf = append(buf, ',')
		}
		key, err := json.Marshal(item.Currency)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(item.Value)
		if err != nil {
			return nil, err
		}
		buf = append(buf, key...)
		buf = append(buf, ':')
		buf = append(buf, val...)
	}
	return append(buf, '}'), nil
}
