// Package subsyapi is the HTTP client for the Subsy backend currency
// endpoints.
package subsyapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/subsy/fx/pkg/config"
	"github.com/subsy/fx/pkg/exchange/core"
	"github.com/subsy/fx/pkg/money"
	"github.com/subsy/fx/pkg/provider/exchange"
	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"
)

const (
	providerName = "subsy"

	maxErrorBody = 4 << 10
)

// Client talks to the Subsy backend. It is safe for concurrent use.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	maxRetries int
	backoff    time.Duration
	logger     *slog.Logger
}

// New creates a Client from config. A RequestsPerMinute of zero disables
// client-side rate limiting.
func New(cfg config.SubsyApi, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RequestsPerMinute > 0 {
		burst := cfg.BurstSize
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(float64(cfg.RequestsPerMinute)/60), burst)
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.ApiUrl, "/"),
		apiKey:     cfg.ApiKey,
		httpClient: &http.Client{Timeout: cfg.HTTPTimeout},
		limiter:    limiter,
		maxRetries: max(cfg.MaxRetries, 0),
		backoff:    cfg.RetryBackoff,
		logger:     logger.With("component", "subsy-client"),
	}
}

func (c *Client) Name() string { return providerName }

// FetchRates implements exchange.RateFetcher.
func (c *Client) FetchRates(
	ctx context.Context,
	base money.Code,
	targets []money.Code,
) (*exchange.RatesResponse, error) {
	q := url.Values{}
	q.Set("base_currency", base.String())
	if len(targets) > 0 {
		q.Set("target_currencies", money.JoinCodes(targets, ","))
	}

	body, err := c.do(ctx, "rates", http.MethodGet, "/currency/rates", q, nil)
	if err != nil {
		return nil, err
	}

	data := payload(body)
	out := &exchange.RatesResponse{
		Base:      base,
		Rates:     make(core.RateTable),
		Timestamp: parseTimestamp(data.Get("timestamp")),
	}
	if b := data.Get("base_currency").String(); b != "" {
		out.Base = money.Code(strings.ToUpper(b))
	}
	rates := data.Get("rates")
	if !rates.IsObject() {
		return nil, c.wrap("rates", fmt.Errorf("%w: response has no rates object", core.ErrRemoteRejected))
	}
	rates.ForEach(func(key, value gjson.Result) bool {
		out.Rates[money.Code(strings.ToUpper(key.String()))] = value.Float()
		return true
	})
	return out, nil
}

// Convert implements exchange.Converter.
func (c *Client) Convert(
	ctx context.Context,
	amount float64,
	from, to money.Code,
) (*exchange.ConvertResponse, error) {
	q := url.Values{}
	q.Set("amount", strconv.FormatFloat(amount, 'f', -1, 64))
	q.Set("from_currency", from.String())
	q.Set("to_currency", to.String())

	body, err := c.do(ctx, "convert", http.MethodGet, "/currency/convert", q, nil)
	if err != nil {
		return nil, err
	}

	data := payload(body)
	converted := data.Get("converted_amount")
	if !converted.Exists() {
		return nil, c.wrap("convert", fmt.Errorf("%w: response has no converted_amount", core.ErrRemoteRejected))
	}
	return &exchange.ConvertResponse{
		OriginalAmount:   amount,
		OriginalCurrency: from,
		ConvertedAmount:  converted.Float(),
		TargetCurrency:   to,
		ExchangeRate:     data.Get("exchange_rate").Float(),
	}, nil
}

// ConvertMultiple implements exchange.BulkConverter.
func (c *Client) ConvertMultiple(
	ctx context.Context,
	amounts core.Amounts,
	to money.Code,
) (*exchange.ConvertMultipleResponse, error) {
	reqBody, err := json.Marshal(core.BulkRequest{Amounts: amounts, To: to})
	if err != nil {
		return nil, c.wrap("convert-multiple", err)
	}

	body, err := c.do(ctx, "convert-multiple", http.MethodPost, "/currency/convert-multiple", nil, reqBody)
	if err != nil {
		return nil, err
	}

	data := payload(body)
	total := data.Get("total_converted_amount")
	if !total.Exists() {
		return nil, c.wrap("convert-multiple",
			fmt.Errorf("%w: response has no total_converted_amount", core.ErrRemoteRejected))
	}
	out := &exchange.ConvertMultipleResponse{
		TotalConvertedAmount: total.Float(),
		TargetCurrency:       to,
		OriginalAmounts:      amounts.Map(),
		ConversionCount:      int(data.Get("conversion_count").Int()),
	}
	return out, nil
}

// CheckHealth implements exchange.HealthChecker by fetching a one-entry
// rate table.
func (c *Client) CheckHealth(ctx context.Context) error {
	_, err := c.FetchRates(ctx, money.USD, []money.Code{money.EUR})
	return err
}

// do sends a request, retrying network errors, 429 and 5xx with exponential
// backoff.
func (c *Client) do(
	ctx context.Context,
	op, method, path string,
	query url.Values,
	body []byte,
) ([]byte, error) {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	requestID := uuid.NewString()
	log := c.logger.With("op", op, "request_id", requestID)

	backoff := c.backoff
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			log.Debug("Retrying request", "attempt", attempt, "backoff", backoff, "error", lastErr)
			if err := sleep(ctx, backoff); err != nil {
				return nil, c.wrap(op, err)
			}
			backoff *= 2
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, c.wrap(op, err)
		}

		respBody, retry, err := c.attempt(ctx, method, endpoint, requestID, body)
		if err == nil {
			return respBody, nil
		}
		lastErr = err
		if !retry || ctx.Err() != nil {
			break
		}
	}
	log.Warn("Request failed", "error", lastErr)
	return nil, c.wrap(op, lastErr)
}

func (c *Client) attempt(
	ctx context.Context,
	method, endpoint, requestID string,
	body []byte,
) ([]byte, bool, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, false, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, false, ctx.Err()
		}
		return nil, true, fmt.Errorf("%w: %v", core.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		detail := errorDetail(msg)
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return nil, true, fmt.Errorf("%w: status %d: %s", core.ErrProviderUnavailable, resp.StatusCode, detail)
		}
		return nil, false, fmt.Errorf("%w: status %d: %s", core.ErrRemoteRejected, resp.StatusCode, detail)
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, fmt.Errorf("%w: read body: %v", core.ErrProviderUnavailable, err)
	}
	if !gjson.ValidBytes(respBody) {
		return nil, false, fmt.Errorf("%w: invalid JSON response", core.ErrRemoteRejected)
	}
	return respBody, false, nil
}

func (c *Client) wrap(op string, err error) error {
	return &core.ProviderError{Provider: providerName, Op: op, Err: err}
}

// payload returns the "data" member of an envelope response, or the whole
// body when it is not wrapped.
func payload(body []byte) gjson.Result {
	root := gjson.ParseBytes(body)
	if data := root.Get("data"); data.IsObject() {
		return data
	}
	return root
}

// parseTimestamp accepts RFC 3339 strings and unix seconds.
func parseTimestamp(v gjson.Result) time.Time {
	switch v.Type {
	case gjson.Number:
		return time.Unix(v.Int(), 0).UTC()
	case gjson.String:
		if ts, err := time.Parse(time.RFC3339, v.String()); err == nil {
			return ts.UTC()
		}
		if secs, err := strconv.ParseInt(v.String(), 10, 64); err == nil {
			return time.Unix(secs, 0).UTC()
		}
	}
	return time.Time{}
}

// errorDetail extracts a readable message from an error body.
func errorDetail(body []byte) string {
	if gjson.ValidBytes(body) {
		for _, path := range []string{"detail", "message", "error"} {
			if v := gjson.GetBytes(body, path); v.Type == gjson.String {
				return v.String()
			}
		}
	}
	s := strings.TrimSpace(string(body))
	if s == "" {
		return "empty body"
	}
	return s
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

var _ exchange.Exchange = (*Client)(nil)
