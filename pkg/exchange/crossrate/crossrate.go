// Package crossrate converts amounts using a rate table anchored at a base
// currency, triangulating through the base when neither side is the base.
//
// Results are plain float64 arithmetic with no rounding; a triangulated
// conversion can carry floating-point error from two operations.
package crossrate

import (
	"fmt"
	"math"

	"github.com/subsy/fx/pkg/exchange/core"
	"github.com/subsy/fx/pkg/money"
)

// DefaultBase is the anchor currency assumed when none is given.
const DefaultBase = money.USD

// Convert converts amount from one currency to another using rates, which
// are expressed relative to base. An empty base means DefaultBase.
func Convert(
	amount float64,
	from, to money.Code,
	rates core.RateTable,
	base money.Code,
) (float64, error) {
	if from == to {
		return amount, nil
	}
	if base == "" {
		base = DefaultBase
	}

	switch {
	case from == base:
		toRate, err := lookup(rates, from, to, to)
		if err != nil {
			return 0, err
		}
		return amount * toRate, nil
	case to == base:
		fromRate, err := lookup(rates, from, to, from)
		if err != nil {
			return 0, err
		}
		return amount / fromRate, nil
	default:
		fromRate, err := lookup(rates, from, to, from)
		if err != nil {
			return 0, err
		}
		toRate, err := lookup(rates, from, to, to)
		if err != nil {
			return 0, err
		}
		return (amount / fromRate) * toRate, nil
	}
}

// Rate returns the factor that converts one unit of from into to.
func Rate(from, to money.Code, rates core.RateTable, base money.Code) (float64, error) {
	return Convert(1, from, to, rates, base)
}

func lookup(rates core.RateTable, from, to, code money.Code) (float64, error) {
	rate, ok := rates[code]
	if !ok {
		return 0, &core.MissingRateError{From: from, To: to, Missing: code}
	}
	if !Usable(rate) {
		return 0, fmt.Errorf("%w: %s=%v", core.ErrInvalidRate, code, rate)
	}
	return rate, nil
}

// Usable reports whether rate can take part in a conversion.
func Usable(rate float64) bool {
	return rate > 0 && !math.IsNaN(rate) && !math.IsInf(rate, 0)
}
