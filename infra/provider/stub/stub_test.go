package stub

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/subsy/fx/pkg/exchange/core"
	"github.com/subsy/fx/pkg/money"
)

func TestProvider(t *testing.T) {
	ctx := context.Background()
	p := NewWithRates(money.USD, core.RateTable{money.USD: 1, money.EUR: 0.5, money.GBP: 0.25})

	rates, err := p.FetchRates(ctx, money.EUR, []money.Code{money.USD, money.GBP, money.JPY})
	require.NoError(t, err)
	assert.Equal(t, money.EUR, rates.Base)
	assert.InDelta(t, 2.0, rates.Rates[money.USD], 1e-12)
	assert.InDelta(t, 0.5, rates.Rates[money.GBP], 1e-12)
	assert.NotContains(t, rates.Rates, money.JPY)

	conv, err := p.Convert(ctx, 10, money.EUR, money.GBP)
	require.NoError(t, err)
	assert.InDelta(t, 5.0, conv.ConvertedAmount, 1e-12)
	assert.InDelta(t, 0.5, conv.ExchangeRate, 1e-12)

	bulk, err := p.ConvertMultiple(ctx, core.Amounts{
		{Currency: money.USD, Value: 100},
		{Currency: money.EUR, Value: 50},
	}, money.USD)
	require.NoError(t, err)
	assert.Equal(t, 200.0, bulk.TotalConvertedAmount)
}

func TestProvider_Fail(t *testing.T) {
	ctx := context.Background()
	p := New()
	p.Fail(core.ErrProviderUnavailable)

	_, err := p.Convert(ctx, 1, money.EUR, money.USD)
	assert.ErrorIs(t, err, core.ErrProviderUnavailable)
	assert.Error(t, p.CheckHealth(ctx))

	p.Fail(nil)
	assert.NoError(t, p.CheckHealth(ctx))
}

func TestProvider_UnusableRate(t *testing.T) {
	p := NewWithRates(money.USD, core.RateTable{money.USD: 1, money.EUR: 0})

	resp, err := p.Convert(context.Background(), 1, money.USD, money.EUR)
	assert.Nil(t, resp)
	assert.ErrorIs(t, err, core.ErrInvalidRate)
	assert.True(t, core.IsProviderError(err))
}

func TestProvider_UnknownCurrency(t *testing.T) {
	_, err := New().Convert(context.Background(), 1, "XXX", money.USD)
	assert.ErrorIs(t, err, core.ErrRateNotFound)
}
