package di

import (
	"context"
	"fmt"
	"time"

	"FinCast/internal/domain/models"
	"FinCast/internal/domain/repository"
	domsvc "FinCast/internal/domain/service"
	"FinCast/internal/handler/api"
	internalrepo "FinCast/internal/repository"
	"FinCast/internal/service/yahoo"
	"FinCast/internal/services/forecast"
	"FinCast/internal/services/report"
	"FinCast/internal/usecase"
	"FinCast/pkg/cache"
	pkgch "FinCast/pkg/clickhouse"
	"FinCast/pkg/config"
	applogger "FinCast/pkg/logger"
	"FinCast/pkg/metrics"
	"FinCast/pkg/server"
)

// ProvideLogger creates the application logger from the logging section.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l.With(applogger.String("env", cfg.Environment)), nil
}

// ProvideMetrics creates a Prometheus metrics recorder, or a no-op one when disabled.
func ProvideMetrics(cfg *config.Config) repository.Metrics {
	if !cfg.Metrics.Enabled {
		return metrics.Nop{}
	}
	return metrics.New()
}

// ProvideFSRegistry opens the artifact directory.
func ProvideFSRegistry(cfg *config.Config, l *applogger.Logger) (*internalrepo.FSModelRegistry, error) {
	reg, err := internalrepo.NewFSModelRegistry(cfg.Registry.ModelDir,
		internalrepo.WithSuffixes(cfg.Registry.ModelSuffix, cfg.Registry.ScalerSuffix),
		internalrepo.WithInstruments(cfg.Registry.Instruments),
		internalrepo.WithWindowSize(models.WindowSize),
		internalrepo.WithRegistryLogger(l),
	)
	if err != nil {
		return nil, fmt.Errorf("model registry: %w", err)
	}
	return reg, nil
}

// ProvideModelRegistry puts the artifact cache in front of the directory registry when enabled.
func ProvideModelRegistry(cfg *config.Config, fs *internalrepo.FSModelRegistry, l *applogger.Logger) (repository.ModelRegistry, func(), error) {
	if !cfg.Registry.Cache.Enabled {
		return fs, func() {}, nil
	}
	cached := internalrepo.NewCachedRegistry(fs, cfg.Registry.Cache.TTL, l)
	if cfg.Registry.Cache.Watch {
		if err := cached.Watch(fs.Dir(), fs.KeyOfFile); err != nil {
			// Entries still expire by TTL and by modification time.
			l.Warn("artifact watch disabled", applogger.String("dir", fs.Dir()), applogger.Error(err))
		}
	}
	cleanup := func() {
		if err := cached.Close(); err != nil {
			l.Warn("artifact cache close error", applogger.Error(err))
		}
	}
	return cached, cleanup, nil
}

// ProvideClickHouseClient connects to ClickHouse when it is the market data source.
func ProvideClickHouseClient(cfg *config.Config, l *applogger.Logger) (*pkgch.Client, func(), error) {
	if cfg.MarketData.Source != config.SourceClickHouse {
		return nil, func() {}, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("clickhouse client: %w", err)
	}

	if cfg.ClickHouse.InitSchema {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := client.InitSchema(ctx, pkgch.DailyBarsSchema); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("clickhouse schema: %w", err)
		}
	}
	l.Info("clickhouse connected",
		applogger.String("host", cfg.ClickHouse.Host),
		applogger.String("database", cfg.ClickHouse.Database),
	)

	cleanup := func() {
		if err := client.Close(); err != nil {
			l.Warn("clickhouse close error", applogger.Error(err))
		}
	}
	return client, cleanup, nil
}

// ProvideCache creates the market history cache backend. A nil Service disables caching.
func ProvideCache(cfg *config.Config, l *applogger.Logger) (cache.Service, func(), error) {
	var (
		svc cache.Service
		err error
	)
	switch cfg.MarketData.Cache.Backend {
	case "", config.CacheNone:
		return nil, func() {}, nil
	case config.CacheMemory:
		svc = cache.NewMemoryCache(cache.WithMemoryMaxSize(cfg.MarketData.Cache.MaxEntries))
	case config.CacheRedis, config.CacheLayered:
		var rc *cache.RedisCache
		rc, err = cache.NewRedisCache(
			cache.WithRedisHost(cfg.Redis.Host),
			cache.WithRedisPort(cfg.Redis.Port),
			cache.WithRedisPassword(cfg.Redis.Password),
			cache.WithRedisDB(cfg.Redis.DB),
			cache.WithRedisPrefix(cfg.Redis.Prefix),
		)
		if err != nil {
			return nil, nil, fmt.Errorf("market data cache: %w", err)
		}
		svc = rc
		if cfg.MarketData.Cache.Backend == config.CacheLayered {
			svc = cache.NewLayeredCache(rc,
				cache.WithLayeredMemorySize(cfg.MarketData.Cache.MaxEntries),
				cache.WithLayeredMemoryTTL(time.Minute),
			)
		}
	default:
		return nil, nil, fmt.Errorf("unknown market data cache backend %q", cfg.MarketData.Cache.Backend)
	}

	l.Info("market data cache ready",
		applogger.String("backend", cfg.MarketData.Cache.Backend),
		applogger.Duration("ttl", cfg.MarketData.Cache.TTL),
	)
	cleanup := func() {
		if err := svc.Close(); err != nil {
			l.Warn("market data cache close error", applogger.Error(err))
		}
	}
	return svc, cleanup, nil
}

// ProvideMarketData selects the history source and wraps it with the cache when one is configured.
func ProvideMarketData(cfg *config.Config, ch *pkgch.Client, c cache.Service, l *applogger.Logger) (repository.MarketDataProvider, error) {
	var src repository.MarketDataProvider
	switch cfg.MarketData.Source {
	case config.SourceYahoo:
		src = yahoo.New(
			yahoo.WithBaseURL(cfg.MarketData.Yahoo.BaseURL),
			yahoo.WithUserAgent(cfg.MarketData.Yahoo.UserAgent),
			yahoo.WithTimeout(cfg.MarketData.Timeout),
			yahoo.WithRetry(cfg.MarketData.RetryMax, cfg.MarketData.RetryBackoff),
			yahoo.WithLogger(l),
		)
	case config.SourceClickHouse:
		if ch == nil {
			return nil, fmt.Errorf("market data source %q needs a clickhouse client", cfg.MarketData.Source)
		}
		store := internalrepo.NewCHMarketData(ch, "")
		store.SetLogger(l)
		src = store
	default:
		return nil, fmt.Errorf("unknown market data source %q", cfg.MarketData.Source)
	}

	if c == nil {
		return src, nil
	}
	return internalrepo.NewCachedMarketData(src, c, cfg.MarketData.Cache.TTL, l), nil
}

// ProvideEngine creates the inference engine.
func ProvideEngine() domsvc.InferenceEngine {
	return forecast.NewEngine()
}

// ProvideAssembler creates the response assembler.
func ProvideAssembler() *report.Assembler {
	return report.NewAssembler()
}

// ProvidePredictEchoHandler creates the HTTP handler. Health is checked on the directory itself.
func ProvidePredictEchoHandler(
	cfg *config.Config,
	l *applogger.Logger,
	p *usecase.Predictor,
	fs *internalrepo.FSModelRegistry,
) *api.PredictEchoHandler {
	return api.NewPredictEchoHandler(l, p, fs, cfg.Server.RequestTimeout)
}

// ProvideApp creates the application server.
func ProvideApp(cfg *config.Config, l *applogger.Logger, h *api.PredictEchoHandler) *server.App {
	return server.New(cfg, l, h)
}
