// Package stub is an in-process currency service with a fixed USD-anchored
// table, for development and tests.
package stub

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/subsy/fx/pkg/exchange/core"
	"github.com/subsy/fx/pkg/exchange/crossrate"
	"github.com/subsy/fx/pkg/money"
	"github.com/subsy/fx/pkg/provider/exchange"
)

// DefaultRates are units per USD.
var DefaultRates = core.RateTable{
	money.USD: 1,
	money.EUR: 0.92,
	money.GBP: 0.79,
	money.JPY: 151.4,
	money.CAD: 1.36,
	money.AUD: 1.52,
	money.CHF: 0.88,
	money.INR: 83.3,
}

// Provider serves conversions from a static table. Fail can be toggled to
// simulate an outage.
type Provider struct {
	mu    sync.RWMutex
	rates core.RateTable
	base  money.Code
	err   error
}

// New creates a stub with DefaultRates.
func New() *Provider {
	return NewWithRates(money.USD, DefaultRates)
}

// NewWithRates creates a stub anchored at base.
func NewWithRates(base money.Code, rates core.RateTable) *Provider {
	return &Provider{rates: rates.Clone(), base: base}
}

func (p *Provider) Name() string { return "stub" }

// Fail makes every call return err until called again with nil.
func (p *Provider) Fail(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = err
}

func (p *Provider) snapshot() (core.RateTable, money.Code, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.rates, p.base, p.err
}

func (p *Provider) FetchRates(
	_ context.Context,
	base money.Code,
	targets []money.Code,
) (*exchange.RatesResponse, error) {
	rates, anchor, err := p.snapshot()
	if err != nil {
		return nil, p.wrap("rates", err)
	}
	if len(targets) == 0 {
		targets = make([]money.Code, 0, len(rates))
		for c := range rates {
			targets = append(targets, c)
		}
	}
	out := make(core.RateTable, len(targets))
	for _, t := range targets {
		r, err := crossrate.Rate(base, t, rates, anchor)
		if err != nil {
			continue
		}
		out[t] = r
	}
	return &exchange.RatesResponse{Base: base, Rates: out, Timestamp: time.Now().UTC()}, nil
}

func (p *Provider) Convert(
	_ context.Context,
	amount float64,
	from, to money.Code,
) (*exchange.ConvertResponse, error) {
	rates, anchor, err := p.snapshot()
	if err != nil {
		return nil, p.wrap("convert", err)
	}
	converted, err := crossrate.Convert(amount, from, to, rates, anchor)
	if err != nil {
		return nil, p.wrap("convert", err)
	}
	r, err := crossrate.Rate(from, to, rates, anchor)
	if err != nil {
		return nil, p.wrap("convert", err)
	}
	return &exchange.ConvertResponse{
		OriginalAmount:   amount,
		OriginalCurrency: from,
		ConvertedAmount:  converted,
		TargetCurrency:   to,
		ExchangeRate:     r,
	}, nil
}

func (p *Provider) ConvertMultiple(
	_ context.Context,
	amounts core.Amounts,
	to money.Code,
) (*exchange.ConvertMultipleResponse, error) {
	rates, anchor, err := p.snapshot()
	if err != nil {
		return nil, p.wrap("convert-multiple", err)
	}
	total := decimal.Zero
	for _, a := range amounts {
		converted, err := crossrate.Convert(a.Value, a.Currency, to, rates, anchor)
		if err != nil {
			return nil, p.wrap("convert-multiple", err)
		}
		total = total.Add(decimal.NewFromFloat(converted))
	}
	return &exchange.ConvertMultipleResponse{
		TotalConvertedAmount: total.InexactFloat64(),
		TargetCurrency:       to,
		OriginalAmounts:      amounts.Map(),
		ConversionCount:      len(amounts),
	}, nil
}

func (p *Provider) CheckHealth(context.Context) error {
	_, _, err := p.snapshot()
	if err != nil {
		return p.wrap("health", err)
	}
	return nil
}

func (p *Provider) wrap(op string, err error) error {
	return &core.ProviderError{Provider: "stub", Op: op, Err: err}
}

var _ exchange.Exchange = (*Provider)(nil)
