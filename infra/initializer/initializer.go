package initializer

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	infracache "github.com/subsy/fx/infra/cache"
	"github.com/subsy/fx/infra/provider/exchangerateapi"
	"github.com/subsy/fx/infra/provider/stub"
	"github.com/subsy/fx/infra/provider/subsyapi"
	"github.com/subsy/fx/pkg/app"
	"github.com/subsy/fx/pkg/cache"
	"github.com/subsy/fx/pkg/config"
	"github.com/subsy/fx/pkg/money"
	"github.com/subsy/fx/pkg/provider/exchange"
)

const warmupTimeout = 30 * time.Second

// InitializeDependencies builds the logger, the remote currency service and
// the rate store selected by cfg.
func InitializeDependencies(cfg *config.App) (*app.Deps, error) {
	logger := setupLogger(os.Stdout, cfg.Log)
	return initializeDependencies(cfg, logger)
}

func initializeDependencies(cfg *config.App, logger *slog.Logger) (*app.Deps, error) {
	deps := &app.Deps{Logger: logger}

	exch, err := NewExchange(cfg.ExchangeRateAPIProviders, logger)
	if err != nil {
		return nil, err
	}
	deps.Exchange = exch

	store, closer, err := NewRateStore(cfg, logger)
	if err != nil {
		return nil, err
	}
	deps.RateStore = store
	deps.Closers = append(deps.Closers, closer)

	logger.Info("Dependencies initialized",
		"provider", exch.Name(),
		"cache_backend", cfg.ExchangeRateCache.Backend,
	)
	return deps, nil
}

// NewExchange returns the remote currency service named in cfg.
func NewExchange(cfg *config.ExchangeRateProviders, logger *slog.Logger) (exchange.Exchange, error) {
	switch cfg.Name {
	case config.ProviderSubsy:
		return subsyapi.New(*cfg.Subsy, logger), nil
	case config.ProviderExchangeRate:
		if cfg.ExchangeRateApi.ApiKey == "" {
			logger.Warn("exchangerate-api selected without an API key")
		}
		return exchangerateapi.New(*cfg.ExchangeRateApi, logger), nil
	case config.ProviderStub:
		return stub.New(), nil
	default:
		return nil, fmt.Errorf("unknown exchange rate provider %q", cfg.Name)
	}
}

type rateStoreCloser interface {
	cache.RateStore
	io.Closer
}

// NewRateStore returns the rate store for the configured backend together
// with its closer.
func NewRateStore(cfg *config.App, logger *slog.Logger) (cache.RateStore, io.Closer, error) {
	var store rateStoreCloser
	switch cfg.ExchangeRateCache.Backend {
	case config.CacheBackendMemory:
		store = infracache.NewMemoryCache()
	case config.CacheBackendRedis:
		opt, err := redisOptions(cfg.Redis)
		if err != nil {
			return nil, nil, err
		}
		rc := infracache.NewRedisCache(opt, cfg.ExchangeRateCache.Prefix, logger)
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Redis.DialTimeout)
		defer cancel()
		if err := rc.Ping(ctx); err != nil {
			_ = rc.Close()
			return nil, nil, fmt.Errorf("connect rate cache redis: %w", err)
		}
		store = rc
	default:
		return nil, nil, fmt.Errorf("unknown exchange rate cache backend %q", cfg.ExchangeRateCache.Backend)
	}
	logger.Info("Using exchange rate cache",
		"backend", cfg.ExchangeRateCache.Backend,
		"prefix", cfg.ExchangeRateCache.Prefix,
		"ttl", cfg.ExchangeRateCache.TTL,
	)
	return store, store, nil
}

func redisOptions(cfg *config.Redis) (*redis.Options, error) {
	opt, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if cfg.PoolSize > 0 {
		opt.PoolSize = cfg.PoolSize
	}
	if cfg.DialTimeout > 0 {
		opt.DialTimeout = cfg.DialTimeout
	}
	if cfg.ReadTimeout > 0 {
		opt.ReadTimeout = cfg.ReadTimeout
	}
	if cfg.WriteTimeout > 0 {
		opt.WriteTimeout = cfg.WriteTimeout
	}
	return opt, nil
}

// WarmRates fetches the base currency table once so the first conversion
// does not pay for it. Failure is logged and otherwise ignored.
func WarmRates(a *app.App) {
	base := money.Code(a.Config.Conversion.BaseCurrency)
	logger := a.Deps.Logger
	ctx, cancel := context.WithTimeout(context.Background(), warmupTimeout)
	defer cancel()

	snap, err := a.RatesService.GetRates(ctx, base, nil)
	if err != nil {
		logger.Error("Failed to warm exchange rates", "base", base, "error", err)
		return
	}
	if snap == nil {
		logger.Info("Rate warm-up skipped, no base currency configured")
		return
	}
	logger.Info("Successfully fetched and cached exchange rates",
		"base", base,
		"provider", snap.Source,
		"rates_count", len(snap.Rates),
	)
}
