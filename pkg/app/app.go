package app

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/subsy/fx/pkg/cache"
	"github.com/subsy/fx/pkg/config"
	"github.com/subsy/fx/pkg/money"
	"github.com/subsy/fx/pkg/provider/exchange"
	"github.com/subsy/fx/pkg/service/conversion"
	"github.com/subsy/fx/pkg/service/rates"
)

// Deps contains the infrastructure the services are built on
type Deps struct {
	Exchange  exchange.Exchange
	RateStore cache.RateStore
	Logger    *slog.Logger
	// Closers are released by App.Close in reverse order.
	Closers []io.Closer
}

type App struct {
	Deps              *Deps
	Config            *config.App
	RatesService      *rates.Service
	ConversionService *conversion.Service
}

func New(deps *Deps, cfg *config.App) *App {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	app := &App{
		Deps:   deps,
		Config: cfg,
	}

	ttl := cfg.ExchangeRateCache.TTL
	if ttl == 0 {
		ttl = -1 // never expire
	}
	app.RatesService = rates.New(
		deps.Exchange,
		deps.RateStore,
		rates.Options{
			TTL:          ttl,
			FetchTimeout: cfg.ExchangeRateCache.FetchTimeout,
		},
		deps.Logger,
	)

	conv := cfg.Conversion
	app.ConversionService = conversion.New(
		deps.Exchange,
		app.RatesService,
		conversion.Options{
			BaseCurrency:       money.Code(conv.BaseCurrency),
			BulkTimeout:        conv.BulkTimeout,
			PerItemTimeout:     conv.PerItemTimeout,
			SingleTimeout:      conv.SingleTimeout,
			PerItemConcurrency: conv.PerItemConcurrency,
			LocalFallback:      conv.LocalFallback,
		},
		deps.Logger,
	)
	return app
}

// CheckHealth reports whether the remote currency service is reachable.
func (a *App) CheckHealth(ctx context.Context) error {
	return a.Deps.Exchange.CheckHealth(ctx)
}

// Close releases every closer in Deps.
func (a *App) Close() error {
	var errs []error
	for i := len(a.Deps.Closers) - 1; i >= 0; i-- {
		if err := a.Deps.Closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
