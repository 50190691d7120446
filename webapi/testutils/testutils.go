// Package testutils builds in-memory applications for HTTP tests.
package testutils

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
	infracache "github.com/subsy/fx/infra/cache"
	"github.com/subsy/fx/pkg/app"
	"github.com/subsy/fx/pkg/config"
	"github.com/subsy/fx/pkg/provider/exchange"
	"github.com/subsy/fx/webapi"
	"github.com/subsy/fx/webapi/common"
)

// Config returns an application config with short timeouts and no rate
// limiting.
func Config() *config.App {
	return &config.App{
		Env:    "test",
		Server: &config.Server{Scheme: "http", Host: "localhost", Port: 0},
		Log:    &config.Log{Format: "text"},
		ExchangeRateCache: &config.ExchangeRateCache{
			TTL:          time.Minute,
			Backend:      config.CacheBackendMemory,
			FetchTimeout: time.Second,
		},
		ExchangeRateAPIProviders: &config.ExchangeRateProviders{Name: config.ProviderStub},
		Conversion: &config.Conversion{
			BaseCurrency:       "USD",
			BulkTimeout:        time.Second,
			PerItemTimeout:     time.Second,
			SingleTimeout:      time.Second,
			PerItemConcurrency: 1,
			LocalFallback:      true,
		},
		RateLimit: &config.RateLimit{},
	}
}

// NewApp wires ex into a full application backed by an in-memory cache.
// A nil cfg uses Config().
func NewApp(t *testing.T, ex exchange.Exchange, cfg *config.App) (*app.App, *fiber.App) {
	t.Helper()
	if cfg == nil {
		cfg = Config()
	}
	store := infracache.NewMemoryCache()
	a := app.New(&app.Deps{
		Exchange:  ex,
		RateStore: store,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		Closers:   []io.Closer{store},
	}, cfg)
	t.Cleanup(func() { _ = a.Close() })
	return a, webapi.SetupApp(a)
}

// MakeRequest sends a request through app.Test. A non-empty body is sent as
// JSON.
func MakeRequest(t *testing.T, app *fiber.App, method, path, body string) *http.Response {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

// Decode reads a success envelope, unmarshalling its data into out.
func Decode(t *testing.T, resp *http.Response, out any) common.Response {
	t.Helper()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var env struct {
		common.Response
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(raw, &env), string(raw))
	if out != nil {
		require.NoError(t, json.Unmarshal(env.Data, out), string(raw))
	}
	return env.Response
}

// DecodeProblem reads an RFC 9457 problem body.
func DecodeProblem(t *testing.T, resp *http.Response) common.ProblemDetails {
	t.Helper()
	var pd common.ProblemDetails
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&pd))
	return pd
}
