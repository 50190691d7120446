package config

import (
	"time"
)

type Redis struct {
	URL          string        `envconfig:"URL" default:"redis://localhost:6379/0"`
	PoolSize     int           `envconfig:"POOL_SIZE" default:"10"`
	DialTimeout  time.Duration `envconfig:"DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"READ_TIMEOUT" default:"3s"`
	WriteTimeout time.Duration `envconfig:"WRITE_TIMEOUT" default:"3s"`
}

type RateLimit struct {
	MaxRequests int           `envconfig:"MAX_REQUESTS" default:"100"`
	Window      time.Duration `envconfig:"WINDOW" default:"1m"`
}

// Cache backends for rate tables.
const (
	CacheBackendMemory = "memory"
	CacheBackendRedis  = "redis"
)

type ExchangeRateCache struct {
	// TTL of a cached rate table. Zero keeps entries until they are
	// invalidated.
	TTL          time.Duration `envconfig:"TTL" default:"15m"`
	Backend      string        `envconfig:"BACKEND" default:"memory"`
	Prefix       string        `envconfig:"PREFIX" default:"fx:rates:"`
	FetchTimeout time.Duration `envconfig:"FETCH_TIMEOUT" default:"10s"`
}

//revive:disable
type SubsyApi struct {
	ApiUrl            string        `envconfig:"API_URL" default:"http://localhost:8000/api/v1"`
	ApiKey            string        `envconfig:"API_KEY"`
	HTTPTimeout       time.Duration `envconfig:"HTTP_TIMEOUT" default:"10s"`
	MaxRetries        int           `envconfig:"MAX_RETRIES" default:"3"`
	RetryBackoff      time.Duration `envconfig:"RETRY_BACKOFF" default:"200ms"`
	RequestsPerMinute int           `envconfig:"REQUESTS_PER_MINUTE" default:"120"`
	BurstSize         int           `envconfig:"BURST_SIZE" default:"10"`
}

type ExchangeRateApi struct {
	ApiKey      string        `envconfig:"API_KEY"`
	ApiUrl      string        `envconfig:"API_URL" default:"https://v6.exchangerate-api.com/v6"`
	HTTPTimeout time.Duration `envconfig:"HTTP_TIMEOUT" default:"10s"`
}

//revive:enable

// Remote currency service implementations.
const (
	ProviderSubsy        = "subsy"
	ProviderExchangeRate = "exchangerate"
	ProviderStub         = "stub"
)

type ExchangeRateProviders struct {
	Name            string           `envconfig:"NAME" default:"subsy"`
	Subsy           *SubsyApi        `envconfig:"SUBSY"`
	ExchangeRateApi *ExchangeRateApi `envconfig:"EXCHANGERATE"`
}

type Conversion struct {
	BaseCurrency       string        `envconfig:"BASE_CURRENCY" default:"USD"`
	BulkTimeout        time.Duration `envconfig:"BULK_TIMEOUT" default:"5s"`
	PerItemTimeout     time.Duration `envconfig:"PER_ITEM_TIMEOUT" default:"3s"`
	PerItemConcurrency int           `envconfig:"PER_ITEM_CONCURRENCY" default:"4"`
	SingleTimeout      time.Duration `envconfig:"SINGLE_TIMEOUT" default:"3s"`
	LocalFallback      bool          `envconfig:"LOCAL_FALLBACK" default:"true"`
}

type Log struct {
	Level      int    `envconfig:"LEVEL" default:"0"`
	Format     string `envconfig:"FORMAT" default:"json"`
	TimeFormat string `envconfig:"TIME_FORMAT" default:"2006-01-02 15:04:05"`
	Prefix     string `envconfig:"PREFIX" default:"[fx]"`
}

type Server struct {
	Scheme string `envconfig:"SCHEME" default:"http"`
	Host   string `envconfig:"HOST" default:"localhost"`
	Port   int    `envconfig:"PORT" default:"3000"`
}

type App struct {
	Env                      string                 `envconfig:"APP_ENV" default:"development"`
	Server                   *Server                `envconfig:"SERVER"`
	Log                      *Log                   `envconfig:"LOG"`
	ExchangeRateCache        *ExchangeRateCache     `envconfig:"EXCHANGE_RATE_CACHE"`
	ExchangeRateAPIProviders *ExchangeRateProviders `envconfig:"EXCHANGE_RATE_PROVIDER"`
	Conversion               *Conversion            `envconfig:"CONVERSION"`
	Redis                    *Redis                 `envconfig:"REDIS"`
	RateLimit                *RateLimit             `envconfig:"RATE_LIMIT"`
}
