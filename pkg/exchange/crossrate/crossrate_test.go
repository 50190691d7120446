package crossrate

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/subsy/fx/pkg/exchange/core"
	"github.com/subsy/fx/pkg/money"
)

func TestConvert_Identity(t *testing.T) {
	for _, rates := range []core.RateTable{nil, {}, {money.EUR: 0.9}} {
		for _, amount := range []float64{0, 1, -12.5, 100.123456789, math.MaxFloat64} {
			got, err := Convert(amount, money.EUR, money.EUR, rates, money.USD)
			require.NoError(t, err)
			assert.Equal(t, amount, got)
		}
	}
}

func TestConvert(t *testing.T) {
	rates := core.RateTable{
		money.USD: 1,
		money.EUR: 0.92,
		money.GBP: 0.79,
	}

	tests := []struct {
		name string
		from money.Code
		to   money.Code
		base money.Code
		want float64
	}{
		{name: "from base", from: money.USD, to: money.EUR, base: money.USD, want: 100 * 0.92},
		{name: "to base", from: money.EUR, to: money.USD, base: money.USD, want: 100 / 0.92},
		{name: "triangulated", from: money.EUR, to: money.GBP, base: money.USD, want: (100 / 0.92) * 0.79},
		{name: "empty base defaults to USD", from: money.USD, to: money.GBP, base: "", want: 100 * 0.79},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Convert(100, tt.from, tt.to, rates, tt.base)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestConvert_BaseAnchoredIsExactProduct(t *testing.T) {
	for _, r := range []float64{0.0001, 0.5, 1, 3.3, 150.25} {
		got, err := Convert(100, money.USD, money.JPY, core.RateTable{money.JPY: r}, money.USD)
		require.NoError(t, err)
		assert.Equal(t, 100*r, got)
	}
}

func TestConvert_NonUSDBase(t *testing.T) {
	rates := core.RateTable{money.USD: 1.087, money.GBP: 0.86}

	got, err := Convert(50, money.EUR, money.USD, rates, money.EUR)
	require.NoError(t, err)
	assert.InDelta(t, 50*1.087, got, 1e-9)

	got, err = Convert(50, money.USD, money.GBP, rates, money.EUR)
	require.NoError(t, err)
	assert.InDelta(t, (50/1.087)*0.86, got, 1e-9)
}

func TestConvert_MissingRate(t *testing.T) {
	tests := []struct {
		name    string
		from    money.Code
		to      money.Code
		rates   core.RateTable
		message string
	}{
		{
			name:    "missing source to base",
			from:    "ZZZ",
			to:      money.USD,
			rates:   core.RateTable{},
			message: "Missing exchange rate for conversion: ZZZ→USD (missing: ZZZ)",
		},
		{
			name:    "missing target from base",
			from:    money.USD,
			to:      "ZZZ",
			rates:   core.RateTable{money.EUR: 0.9},
			message: "Missing exchange rate for conversion: USD→ZZZ (missing: ZZZ)",
		},
		{
			name:    "missing target when triangulating",
			from:    money.EUR,
			to:      money.GBP,
			rates:   core.RateTable{money.EUR: 0.9},
			message: "Missing exchange rate for conversion: EUR→GBP (missing: GBP)",
		},
		{
			name:    "missing source when triangulating",
			from:    money.EUR,
			to:      money.GBP,
			rates:   core.RateTable{money.GBP: 0.8},
			message: "Missing exchange rate for conversion: EUR→GBP (missing: EUR)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Convert(100, tt.from, tt.to, tt.rates, money.USD)
			require.Error(t, err)
			assert.EqualError(t, err, tt.message)
			assert.ErrorIs(t, err, core.ErrRateNotFound)

			var missing *core.MissingRateError
			require.ErrorAs(t, err, &missing)
		})
	}
}

func TestConvert_UnusableRate(t *testing.T) {
	for _, r := range []float64{0, -1, math.NaN(), math.Inf(1)} {
		_, err := Convert(100, money.EUR, money.USD, core.RateTable{money.EUR: r}, money.USD)
		assert.ErrorIs(t, err, core.ErrInvalidRate)
	}
}

func TestRate(t *testing.T) {
	r, err := Rate(money.EUR, money.GBP, core.RateTable{money.EUR: 0.5, money.GBP: 0.25}, money.USD)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, r, 1e-12)
}
