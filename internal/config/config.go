package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"go.uber.org/dig"

	"github.com/davidbz/pixelcredit/internal/domain"
	"github.com/davidbz/pixelcredit/internal/provider/google"
	"github.com/davidbz/pixelcredit/internal/provider/openai"
	"github.com/davidbz/pixelcredit/internal/provider/replicate"
)

// Storage drivers.
const (
	StorageSQLite   = "sqlite"
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

// Config represents the pricing service configuration.
type Config struct {
	Server    ServerConfig
	CORS      CORSConfig
	Storage   StorageConfig
	Redis     RedisConfig
	Pricing   PricingConfig
	OpenAI    openai.Config
	Replicate replicate.Config
	Google    google.Config
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port         int    `env:"SERVER_PORT"           envDefault:"8080"`
	ReadTimeout  int    `env:"SERVER_READ_TIMEOUT"   envDefault:"30"`
	WriteTimeout int    `env:"SERVER_WRITE_TIMEOUT"  envDefault:"30"`
	UpdateSecret string `env:"PRICING_UPDATE_SECRET"`
}

// CORSConfig contains CORS policy settings.
type CORSConfig struct {
	AllowedOrigins   []string `env:"CORS_ALLOWED_ORIGINS"   envSeparator:"," envDefault:"*"`
	AllowedMethods   []string `env:"CORS_ALLOWED_METHODS"   envSeparator:"," envDefault:"GET,POST,PUT,DELETE,OPTIONS"`
	AllowedHeaders   []string `env:"CORS_ALLOWED_HEADERS"   envSeparator:"," envDefault:"Content-Type,Authorization"`
	AllowCredentials bool     `env:"CORS_ALLOW_CREDENTIALS"                  envDefault:"true"`
	MaxAge           int      `env:"CORS_MAX_AGE"                            envDefault:"86400"`
}

// StorageConfig selects and configures the history/ledger store.
type StorageConfig struct {
	Driver           string `env:"STORAGE_DRIVER"     envDefault:"sqlite"`
	SQLitePath       string `env:"SQLITE_PATH"        envDefault:"data/pixelcredit.sqlite"`
	PostgresDSN      string `env:"POSTGRES_DSN"`
	PostgresMaxConns int32  `env:"POSTGRES_MAX_CONNS" envDefault:"10"`
}

// RedisConfig configures the shared pricing view. An empty Addr keeps the view in memory.
type RedisConfig struct {
	Addr      string `env:"REDIS_ADDR"`
	Password  string `env:"REDIS_PASSWORD"`
	DB        int    `env:"REDIS_DB"         envDefault:"0"`
	KeyPrefix string `env:"REDIS_KEY_PREFIX" envDefault:"pixelcredit:pricing"`
}

// PricingConfig contains the pricing engine knobs.
type PricingConfig struct {
	DefaultCoefficient   float64          `env:"PRICING_DEFAULT_COEFFICIENT"     envDefault:"4.0"`
	MinCostChange        float64          `env:"PRICING_MIN_COST_CHANGE"         envDefault:"0.0001"`
	MaxStaleness         time.Duration    `env:"PRICING_MAX_STALENESS"           envDefault:"5m"`
	EntryTimeout         time.Duration    `env:"PRICING_ENTRY_TIMEOUT"           envDefault:"2s"`
	ProbeTimeout         time.Duration    `env:"PRICING_PROBE_TIMEOUT"           envDefault:"20s"`
	FallbackCredits      map[string]int64 `env:"PRICING_FALLBACK_CREDITS"        envDefault:"openai_dalle3:15,replicate_flux:8,google_nano_banana:10"`
	FluxStandardMaxSteps int              `env:"PRICING_FLUX_STANDARD_MAX_STEPS" envDefault:"30"`
	FluxHighMaxSteps     int              `env:"PRICING_FLUX_HIGH_MAX_STEPS"     envDefault:"40"`
	FluxMaxSteps         int              `env:"PRICING_FLUX_MAX_STEPS"          envDefault:"50"`
}

// FallbackByProvider validates the fallback table against the known providers.
func (c PricingConfig) FallbackByProvider() (map[domain.Provider]int64, error) {
	out := make(map[domain.Provider]int64, len(c.FallbackCredits))
	for raw, credits := range c.FallbackCredits {
		provider, err := domain.ParseProvider(raw)
		if err != nil {
			return nil, fmt.Errorf("PRICING_FALLBACK_CREDITS: %w", err)
		}
		if credits <= 0 {
			return nil, fmt.Errorf("PRICING_FALLBACK_CREDITS: %s must be positive, got %d", raw, credits)
		}
		out[provider] = credits
	}
	return out, nil
}

// DepConfig is used for dependency injection with dig.
type DepConfig struct {
	dig.Out
	*ServerConfig
	*CORSConfig
	*StorageConfig
	*RedisConfig
	OpenAI    *openai.Config
	Replicate *replicate.Config
	Google    *google.Config

	Classifier domain.ClassifierConfig
	Catalog    domain.CatalogConfig
	Quote      domain.QuoteConfig
	AutoUpdate domain.AutoUpdateConfig
}

// Load loads environment files and parses configuration.
func Load() *Config {
	for _, file := range []string{".env"} {
		_ = godotenv.Load(file)
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		panic(err)
	}

	return &cfg
}

// ParseDependenciesConfig returns pointers to sub-configs and the domain
// configs for dependency injection.
func ParseDependenciesConfig(cfg *Config) (DepConfig, error) {
	fallback, err := cfg.Pricing.FallbackByProvider()
	if err != nil {
		return DepConfig{}, err
	}

	return DepConfig{
		Out:           dig.Out{},
		ServerConfig:  &cfg.Server,
		CORSConfig:    &cfg.CORS,
		StorageConfig: &cfg.Storage,
		RedisConfig:   &cfg.Redis,
		OpenAI:        &cfg.OpenAI,
		Replicate:     &cfg.Replicate,
		Google:        &cfg.Google,
		Classifier: domain.ClassifierConfig{
			FluxStandardMaxSteps: cfg.Pricing.FluxStandardMaxSteps,
			FluxHighMaxSteps:     cfg.Pricing.FluxHighMaxSteps,
			FluxMaxSteps:         cfg.Pricing.FluxMaxSteps,
		},
		Catalog: domain.CatalogConfig{MaxStaleness: cfg.Pricing.MaxStaleness},
		Quote: domain.QuoteConfig{
			EntryTimeout:    cfg.Pricing.EntryTimeout,
			FallbackCredits: fallback,
		},
		AutoUpdate: domain.AutoUpdateConfig{
			MinCostChange: cfg.Pricing.MinCostChange,
			ProbeTimeout:  cfg.Pricing.ProbeTimeout,
		},
	}, nil
}
