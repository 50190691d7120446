// Package exchangerateapi adapts exchangerate-api.com (v6) to the remote
// currency service contract. The API only serves rate tables, so
// conversions are computed locally with cross rates.
package exchangerateapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/subsy/fx/pkg/config"
	"github.com/subsy/fx/pkg/exchange/core"
	"github.com/subsy/fx/pkg/exchange/crossrate"
	"github.com/subsy/fx/pkg/money"
	"github.com/subsy/fx/pkg/provider/exchange"
)

const providerName = "exchangerate-api"

// Provider implements exchange.Exchange for exchangerate-api.com
type Provider struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// responseV6 is the v6 "latest" response.
// See: https://www.exchangerate-api.com/docs/standard-requests
type responseV6 struct {
	Result             string             `json:"result"`
	TimeLastUpdateUnix int64              `json:"time_last_update_unix"`
	BaseCode           string             `json:"base_code"`
	ConversionRates    map[string]float64 `json:"conversion_rates"`
	ErrorType          string             `json:"error-type,omitempty"`
}

// New creates a new exchangerate-api provider using config
func New(cfg config.ExchangeRateApi, logger *slog.Logger) *Provider {
	if logger == nil {
		logger = slog.Default()
	}
	return &Provider{
		apiKey:  cfg.ApiKey,
		baseURL: strings.TrimRight(cfg.ApiUrl, "/"), // like https://v6.exchangerate-api.com/v6
		httpClient: &http.Client{
			Timeout: cfg.HTTPTimeout,
		},
		logger: logger.With("component", "exchangerate-api"),
	}
}

// Name returns the provider's name
func (p *Provider) Name() string {
	return providerName
}

// FetchRates returns the latest table for base, limited to targets when
// given. Targets the API does not know are left out.
func (p *Provider) FetchRates(
	ctx context.Context,
	base money.Code,
	targets []money.Code,
) (*exchange.RatesResponse, error) {
	apiResp, err := p.latest(ctx, base)
	if err != nil {
		return nil, &core.ProviderError{Provider: providerName, Op: "rates", Err: err}
	}

	all := make(core.RateTable, len(apiResp.ConversionRates))
	for code, r := range apiResp.ConversionRates {
		all[money.Code(strings.ToUpper(code))] = r
	}
	out := &exchange.RatesResponse{
		Base:      base,
		Rates:     all,
		Timestamp: time.Unix(apiResp.TimeLastUpdateUnix, 0).UTC(),
	}
	if len(targets) > 0 {
		out.Rates = make(core.RateTable, len(targets))
		for _, t := range targets {
			if r, ok := all[t]; ok {
				out.Rates[t] = r
			}
		}
	}
	return out, nil
}

// Convert fetches the table for from and applies the rate to to.
func (p *Provider) Convert(
	ctx context.Context,
	amount float64,
	from, to money.Code,
) (*exchange.ConvertResponse, error) {
	resp, err := p.FetchRates(ctx, from, nil)
	if err != nil {
		return nil, err
	}
	// The table is anchored at from, so the rate is the table entry for to
	// and the conversion is a single multiplication.
	r, err := crossrate.Rate(from, to, resp.Rates, from)
	if err != nil {
		return nil, &core.ProviderError{Provider: providerName, Op: "convert", Err: err}
	}
	return &exchange.ConvertResponse{
		OriginalAmount:   amount,
		OriginalCurrency: from,
		ConvertedAmount:  amount * r,
		TargetCurrency:   to,
		ExchangeRate:     r,
	}, nil
}

// ConvertMultiple fetches the table for to once and converts every amount
// against it. Any missing rate fails the whole call.
func (p *Provider) ConvertMultiple(
	ctx context.Context,
	amounts core.Amounts,
	to money.Code,
) (*exchange.ConvertMultipleResponse, error) {
	resp, err := p.FetchRates(ctx, to, nil)
	if err != nil {
		return nil, err
	}

	total := decimal.Zero
	count := 0
	for _, a := range amounts {
		converted, err := crossrate.Convert(a.Value, a.Currency, to, resp.Rates, to)
		if err != nil {
			return nil, &core.ProviderError{Provider: providerName, Op: "convert-multiple", Err: err}
		}
		if a.Currency != to {
			count++
		}
		total = total.Add(decimal.NewFromFloat(converted))
	}
	return &exchange.ConvertMultipleResponse{
		TotalConvertedAmount: total.InexactFloat64(),
		TargetCurrency:       to,
		OriginalAmounts:      amounts.Map(),
		ConversionCount:      count,
	}, nil
}

// CheckHealth checks if the provider is currently available
func (p *Provider) CheckHealth(ctx context.Context) error {
	_, err := p.latest(ctx, money.USD)
	if err != nil {
		return &core.ProviderError{Provider: providerName, Op: "health", Err: err}
	}
	return nil
}

func (p *Provider) latest(ctx context.Context, base money.Code) (*responseV6, error) {
	url := fmt.Sprintf("%s/%s/latest/%s", p.baseURL, p.apiKey, base)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	p.logger.Debug("Fetching exchange rates from API", "base", base)
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		cause := core.ErrRemoteRejected
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			cause = core.ErrProviderUnavailable
		}
		return nil, fmt.Errorf("%w: API returned status %d: %s", cause, resp.StatusCode, string(body))
	}

	var apiResp responseV6
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("%w: failed to decode response: %v", core.ErrRemoteRejected, err)
	}
	if apiResp.Result != "success" {
		return nil, fmt.Errorf("%w: API returned result=%s error-type=%s",
			core.ErrRemoteRejected, apiResp.Result, apiResp.ErrorType)
	}
	return &apiResp, nil
}

var _ exchange.Exchange = (*Provider)(nil)
