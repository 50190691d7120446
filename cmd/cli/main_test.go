package main

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/subsy/fx/infra/provider/stub"
	"github.com/subsy/fx/pkg/exchange/core"
	"github.com/subsy/fx/pkg/money"
	"github.com/subsy/fx/webapi/testutils"
)

func init() {
	color.NoColor = true
}

func TestRun(t *testing.T) {
	a, _ := testutils.NewApp(t, stub.New(), nil)

	tests := []struct {
		name string
		args []string
		want []string
	}{
		{"rates", []string{"rates", "usd", "EUR", "GBP"}, []string{"Rates for 1 USD", "EUR  0.92", "GBP  0.79"}},
		{"convert", []string{"convert", "100", "USD", "EUR"}, []string{"100.00 USD = 92.00 EUR [remote]"}},
		{"bulk", []string{"bulk", "USD", "USD=100", "EUR=92"}, []string{"Total: 200.00 USD [bulk, 2 converted]"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var out bytes.Buffer
			require.NoError(t, run(context.Background(), a, tc.args, &out))
			for _, w := range tc.want {
				assert.Contains(t, out.String(), w)
			}
		})
	}
}

func TestRun_Degraded(t *testing.T) {
	p := stub.New()
	p.Fail(core.ErrProviderUnavailable)
	a, _ := testutils.NewApp(t, p, nil)

	var out bytes.Buffer
	require.NoError(t, run(context.Background(), a, []string{"bulk", "USD", "USD=1", "EUR=2"}, &out))
	assert.Contains(t, out.String(), "3.00 USD (degraded)")
	assert.Contains(t, out.String(), "Unconverted: EUR")

	out.Reset()
	require.NoError(t, run(context.Background(), a, []string{"convert", "5", "GBP", "JPY"}, &out))
	assert.Contains(t, out.String(), "5.00 JPY (degraded) [original]")
}

func TestRun_Errors(t *testing.T) {
	a, _ := testutils.NewApp(t, stub.New(), nil)

	tests := []struct {
		name string
		args []string
		want error
	}{
		{"unknown command", []string{"withdraw"}, errUsage},
		{"rates without base", []string{"rates"}, errUsage},
		{"convert arity", []string{"convert", "1", "USD"}, errUsage},
		{"bad amount", []string{"convert", "ten", "USD", "EUR"}, core.ErrInvalidAmount},
		{"bad code", []string{"convert", "1", "US", "EUR"}, money.ErrInvalidCurrency},
		{"bulk pair", []string{"bulk", "USD", "EUR:1"}, errUsage},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := run(context.Background(), a, tc.args, &bytes.Buffer{})
			assert.True(t, errors.Is(err, tc.want), "got %v", err)
		})
	}
}
