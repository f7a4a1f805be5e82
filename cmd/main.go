package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/davidbz/pixelcredit/internal/cache/redis"
	"github.com/davidbz/pixelcredit/internal/config"
	"github.com/davidbz/pixelcredit/internal/domain"
	"github.com/davidbz/pixelcredit/internal/httpserver"
	"github.com/davidbz/pixelcredit/internal/httpserver/middleware"
	"github.com/davidbz/pixelcredit/internal/observability"
	"github.com/davidbz/pixelcredit/internal/provider/google"
	"github.com/davidbz/pixelcredit/internal/provider/openai"
	"github.com/davidbz/pixelcredit/internal/provider/registry"
	"github.com/davidbz/pixelcredit/internal/provider/replicate"
	"github.com/davidbz/pixelcredit/internal/storage/memory"
	"github.com/davidbz/pixelcredit/internal/storage/postgres"
	"github.com/davidbz/pixelcredit/internal/storage/sqlite"
)

const (
	startupTimeout  = 15 * time.Second
	shutdownTimeout = 15 * time.Second
)

// Stores exposes the selected backend as both history and ledger store.
type Stores struct {
	dig.Out

	History domain.HistoryStore
	Ledger  domain.LedgerStore
}

// resources collects everything that must be released on shutdown, in reverse order.
type resources struct {
	mu      sync.Mutex
	closers []func() error
}

func (r *resources) add(closer func() error) {
	r.mu.Lock()
	r.closers = append(r.closers, closer)
	r.mu.Unlock()
}

func (r *resources) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	r.closers = nil
	return errors.Join(errs...)
}

func main() {
	container := buildContainer()

	err := container.Invoke(func(server *httpserver.Server, res *resources, logger *zap.Logger) {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		serveErr := make(chan error, 1)
		go func() {
			serveErr <- server.Start()
		}()

		select {
		case err := <-serveErr:
			if err != nil {
				log.Fatalf("Server failed to start: %v", err)
			}
		case <-ctx.Done():
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown failed", zap.Error(err))
		}
		if err := res.Close(); err != nil {
			logger.Error("failed to release resources", zap.Error(err))
		}
		_ = logger.Sync()
	})
	if err != nil {
		log.Fatalf("Failed to start application: %v", err)
	}
}

func buildContainer() *dig.Container {
	container := dig.New()

	// Configuration
	if err := container.Provide(config.Load); err != nil {
		log.Fatalf("Failed to provide config: %v", err)
	}
	if err := container.Provide(config.ParseDependenciesConfig); err != nil {
		log.Fatalf("Failed to provide config dependencies: %v", err)
	}

	// Observability
	if err := container.Provide(observability.InitLogger); err != nil {
		log.Fatalf("Failed to provide logger: %v", err)
	}
	if err := container.Provide(func(logger *zap.Logger) domain.EventPublisher {
		return observability.NewEventBus(logger)
	}); err != nil {
		log.Fatalf("Failed to provide event bus: %v", err)
	}

	// Storage
	if err := container.Provide(func() *resources { return &resources{} }); err != nil {
		log.Fatalf("Failed to provide resources: %v", err)
	}
	if err := container.Provide(provideStores); err != nil {
		log.Fatalf("Failed to provide storage: %v", err)
	}
	if err := container.Provide(providePricingView); err != nil {
		log.Fatalf("Failed to provide pricing view: %v", err)
	}

	// Prober Registry
	if err := container.Provide(func() domain.ProberRegistry {
		return registry.NewRegistry()
	}); err != nil {
		log.Fatalf("Failed to provide registry: %v", err)
	}

	// Register probers with registry (invoked for side effects)
	if err := container.Invoke(registerProbers); err != nil {
		log.Fatalf("Failed to register probers: %v", err)
	}

	// Domain Services
	if err := container.Provide(domain.NewClassifier); err != nil {
		log.Fatalf("Failed to provide classifier: %v", err)
	}
	if err := container.Provide(domain.NewPricingCatalog); err != nil {
		log.Fatalf("Failed to provide pricing catalog: %v", err)
	}
	if err := container.Provide(domain.NewQuoteService); err != nil {
		log.Fatalf("Failed to provide quote service: %v", err)
	}
	if err := container.Provide(domain.NewAutoUpdater); err != nil {
		log.Fatalf("Failed to provide auto-updater: %v", err)
	}
	if err := container.Provide(domain.NewLedgerService); err != nil {
		log.Fatalf("Failed to provide ledger service: %v", err)
	}

	// Seed the coefficient history and build the first view.
	if err := container.Invoke(func(catalog *domain.PricingCatalog, cfg *config.Config) error {
		ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
		defer cancel()
		return catalog.Bootstrap(ctx, cfg.Pricing.DefaultCoefficient)
	}); err != nil {
		log.Fatalf("Failed to bootstrap pricing: %v", err)
	}

	// HTTP Layer
	if err := container.Provide(middleware.BuildMiddlewareChain); err != nil {
		log.Fatalf("Failed to provide middleware chain: %v", err)
	}
	if err := container.Provide(httpserver.NewHandler); err != nil {
		log.Fatalf("Failed to provide HTTP handler: %v", err)
	}
	if err := container.Provide(httpserver.NewServer); err != nil {
		log.Fatalf("Failed to provide HTTP server: %v", err)
	}

	return container
}

// provideStores opens the configured history/ledger backend. The logger parameter orders
// construction after InitLogger.
func provideStores(cfg *config.StorageConfig, res *resources, _ *zap.Logger) (Stores, error) {
	ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	defer cancel()
	logger := observability.FromContext(ctx)

	switch cfg.Driver {
	case config.StorageMemory:
		logger.Warn("using in-memory storage, pricing history and balances are lost on restart")
		store := memory.NewStore()
		return Stores{History: store, Ledger: store}, nil

	case config.StoragePostgres:
		if cfg.PostgresDSN == "" {
			return Stores{}, errors.New("POSTGRES_DSN is required for the postgres storage driver")
		}
		pool, err := postgres.Connect(ctx, cfg.PostgresDSN, cfg.PostgresMaxConns)
		if err != nil {
			return Stores{}, err
		}
		res.add(func() error {
			pool.Close()
			return nil
		})

		store := postgres.New(pool)
		if err := store.Init(ctx); err != nil {
			return Stores{}, err
		}
		logger.Info("using postgres storage", observability.Int("max_conns", int(cfg.PostgresMaxConns)))
		return Stores{History: store, Ledger: store}, nil

	case config.StorageSQLite, "":
		store, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return Stores{}, err
		}
		res.add(store.Close)

		logger.Info("using sqlite storage", observability.String("path", cfg.SQLitePath))
		return Stores{History: store, Ledger: store}, nil

	default:
		return Stores{}, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

// providePricingView shares the view through Redis when REDIS_ADDR is set.
func providePricingView(cfg *config.RedisConfig, res *resources, _ *zap.Logger) (domain.PricingView, error) {
	ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	defer cancel()
	logger := observability.FromContext(ctx)

	if cfg.Addr == "" {
		logger.Info("REDIS_ADDR not set, keeping the pricing view in process memory")
		return domain.NewInMemoryPricingView(), nil
	}

	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}
	res.add(client.Close)

	logger.Info("using redis pricing view",
		observability.String("addr", cfg.Addr),
		observability.String("key_prefix", cfg.KeyPrefix))
	return redis.NewPricingView(client, cfg.KeyPrefix), nil
}

// registerProbers registers one cost prober per provider family.
func registerProbers(
	reg domain.ProberRegistry,
	openaiCfg *openai.Config,
	replicateCfg *replicate.Config,
	googleCfg *google.Config,
	_ *zap.Logger,
) error {
	ctx := context.Background()
	logger := observability.FromContext(ctx)

	var models openai.ModelChecker
	if openaiCfg.APIKey != "" {
		client, err := openai.NewClient(*openaiCfg)
		if err != nil {
			return fmt.Errorf("failed to create OpenAI client: %w", err)
		}
		models = client
	} else {
		logger.Info("OPENAI_API_KEY not set, the GPT prober will not verify model availability")
	}

	probers := []domain.CostProber{
		openai.NewGPTProber(*openaiCfg, models),
		openai.NewDallEProber(*openaiCfg),
		replicate.NewProber(*replicateCfg),
		google.NewProber(*googleCfg),
	}
	for _, p := range probers {
		if err := reg.Register(ctx, p); err != nil {
			return fmt.Errorf("failed to register %s prober: %w", p.Provider(), err)
		}
	}

	return nil
}
