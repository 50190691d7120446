package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/subsy/fx/pkg/money"
)

// Load reads the first env file found among envFilePath (searching parent
// directories), then builds the config from the environment. Without paths
// it tries .env in the working directory.
func Load(envFilePath ...string) (*App, error) {
	logger := slog.Default()
	logger.Info("Loading environment variables")

	if len(envFilePath) == 0 {
		logger.Debug("No environment file specified, trying default .env")
		if err := godotenv.Load(); err != nil {
			logger.Warn("No .env file found in current directory")
		}
		return loadFromEnv()
	}

	for _, path := range envFilePath {
		logger.Debug("Looking for environment file", "path", path)
		foundPath, err := FindEnvTest(path)
		if err != nil {
			logger.Debug("Environment file not found", "path", path, "error", err)
			continue
		}

		logger.Info("Loading environment from file", "path", foundPath)
		if err := godotenv.Load(foundPath); err != nil {
			logger.Error("Failed to load environment file", "path", foundPath, "error", err)
			continue
		}
		return loadFromEnv()
	}

	logger.Info("No valid environment files found, using process environment")
	return loadFromEnv()
}

func loadFromEnv() (*App, error) {
	var cfg App
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("process env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	providers := cfg.ExchangeRateAPIProviders
	slog.Default().Info("App config loaded",
		"env", cfg.Env,
		"rate_limit_max_requests", cfg.RateLimit.MaxRequests,
		"rate_limit_window", cfg.RateLimit.Window,
		"exchange_cache_backend", cfg.ExchangeRateCache.Backend,
		"exchange_cache_ttl", cfg.ExchangeRateCache.TTL,
		"exchange_provider", providers.Name,
		"subsy_api_url", providers.Subsy.ApiUrl,
		"subsy_api_key", maskValue(providers.Subsy.ApiKey),
		"exchange_api_url", providers.ExchangeRateApi.ApiUrl,
		"exchange_api_key", maskValue(providers.ExchangeRateApi.ApiKey),
		"redis_url", maskValue(cfg.Redis.URL),
		"base_currency", cfg.Conversion.BaseCurrency,
	)
	return &cfg, nil
}

// Validate normalizes enumerated settings and rejects unknown values.
func (a *App) Validate() error {
	p := a.ExchangeRateAPIProviders
	p.Name = strings.ToLower(strings.TrimSpace(p.Name))
	switch p.Name {
	case ProviderSubsy, ProviderExchangeRate, ProviderStub:
	default:
		return fmt.Errorf("unknown exchange rate provider %q", p.Name)
	}

	c := a.ExchangeRateCache
	c.Backend = strings.ToLower(strings.TrimSpace(c.Backend))
	switch c.Backend {
	case CacheBackendMemory, CacheBackendRedis:
	default:
		return fmt.Errorf("unknown exchange rate cache backend %q", c.Backend)
	}

	if a.Conversion.BaseCurrency != "" {
		base, err := money.ParseCode(a.Conversion.BaseCurrency)
		if err != nil {
			return fmt.Errorf("conversion base currency: %w", err)
		}
		a.Conversion.BaseCurrency = base.String()
	}
	if a.Conversion.PerItemConcurrency < 1 {
		return fmt.Errorf("conversion per-item concurrency must be positive, got %d",
			a.Conversion.PerItemConcurrency)
	}
	return nil
}

// FindEnvTest walks up from the working directory looking for filename,
// .env when empty.
func FindEnvTest(filename string) (string, error) {
	if filename == "" {
		filename = ".env"
	}
	curr, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		candidate := filepath.Join(curr, filename)
		if _, err = os.Stat(candidate); err == nil {
			return candidate, nil
		}
		parent := filepath.Dir(curr)
		if parent == curr {
			return "", os.ErrNotExist
		}
		curr = parent
	}
}

func maskValue(key string) string {
	if key == "" {
		return ""
	}
	if len(key) <= 6 {
		return "****"
	}
	return key[:2] + "****" + key[len(key)-4:]
}
