package di

import (
	"fmt"
	"time"

	"TradePulse/internal/domain/repository"
	"TradePulse/internal/engine"
	"TradePulse/internal/handler/api"
	internalrepo "TradePulse/internal/repository"
	"TradePulse/internal/service/bybit"
	"TradePulse/internal/service/paper"
	"TradePulse/pkg/cache"
	pkgch "TradePulse/pkg/clickhouse"
	"TradePulse/pkg/config"
	xhttp "TradePulse/pkg/http"
	pkgkafka "TradePulse/pkg/kafka"
	applogger "TradePulse/pkg/logger"
	"TradePulse/pkg/metrics"
	"TradePulse/pkg/server"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	return applogger.New(&applogger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
}

// ProvideMetrics creates the Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideConfigHolder seeds the swappable filter/protect config.
func ProvideConfigHolder(cfg *config.Config) *engine.ConfigHolder {
	return engine.NewConfigHolder(cfg.Filters, cfg.Protect)
}

// Market bundles the exchange surface for one trading mode, so paper and
// bybit stay interchangeable behind the domain interfaces.
type Market struct {
	Exchange repository.ExchangeClient
	Source   repository.IndicatorSource
	Stream   *bybit.Stream // nil unless live streaming is enabled
}

// ProvideMarket builds the market for the configured mode. In paper mode
// the synthetic source feeds its closes into the paper exchange's mark
// price so fills track the series.
func ProvideMarket(cfg *config.Config, logger *applogger.Logger) (*Market, error) {
	if cfg.Exchange.Mode == "paper" {
		exch := paper.NewExchange()
		step, err := time.ParseDuration(cfg.Engine.Timeframe)
		if err != nil {
			step = 5 * time.Minute
		}
		src := paper.NewSource(step, paper.WithMarkSink(exch.SetMark))
		return &Market{Exchange: exch, Source: src}, nil
	}

	client := bybit.NewClient(cfg.Exchange.RestURL, cfg.Exchange.APIKey, cfg.Exchange.APISecret,
		bybit.WithCategory(cfg.Exchange.Category),
		bybit.WithTimeout(cfg.Exchange.Timeout),
		bybit.WithLogger(logger),
	)
	m := &Market{Exchange: client, Source: client}

	if cfg.Exchange.Stream.Enabled {
		stream, err := bybit.NewStream(
			cfg.Exchange.WsURL,
			cfg.Engine.Symbols,
			cfg.Engine.Timeframe,
			cfg.Exchange.Stream.ReconnectDelay,
			cfg.Exchange.Stream.PingInterval,
			logger,
		)
		if err != nil {
			return nil, fmt.Errorf("bybit stream: %w", err)
		}
		m.Stream = stream
	}
	return m, nil
}

// ProvideHistorySink builds the configured trade history backend.
func ProvideHistorySink(cfg *config.Config, logger *applogger.Logger) (repository.HistorySink, error) {
	switch cfg.History.Backend {
	case "kafka":
		producer, err := pkgkafka.NewProducer(
			pkgkafka.WithBrokers(cfg.Kafka.Brokers),
			pkgkafka.WithCompression(cfg.Kafka.Compression),
			pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
			pkgkafka.WithMaxAttempts(cfg.Kafka.MaxAttempts),
			pkgkafka.WithBatchTimeout(cfg.Kafka.Linger),
			pkgkafka.WithWriteTimeout(cfg.Kafka.WriteTimeout),
			pkgkafka.WithAsync(cfg.Kafka.Async),
		)
		if err != nil {
			return nil, fmt.Errorf("kafka producer: %w", err)
		}
		return internalrepo.NewKafkaHistorySink(producer, cfg.Kafka.Topic, logger), nil

	case "clickhouse":
		client, err := pkgch.NewClient(
			pkgch.WithHost(cfg.ClickHouse.Host),
			pkgch.WithPort(cfg.ClickHouse.Port),
			pkgch.WithDatabase(cfg.ClickHouse.Database),
			pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
			pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
			pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		)
		if err != nil {
			return nil, fmt.Errorf("clickhouse client: %w", err)
		}
		sink, err := internalrepo.NewClickHouseHistorySink(client, logger)
		if err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("clickhouse sink: %w", err)
		}
		return sink, nil

	default:
		return internalrepo.NopHistorySink{}, nil
	}
}

// ProvidePositionStore builds the position store: Redis when enabled,
// otherwise an in-memory cache that lives as long as the process.
func ProvidePositionStore(cfg *config.Config) (repository.PositionStore, error) {
	if !cfg.Redis.Enabled {
		return internalrepo.NewCachePositionStore(cache.NewMemoryCache()), nil
	}
	rc, err := cache.NewRedisCache(
		cache.WithAddr(cfg.Redis.Host, cfg.Redis.Port),
		cache.WithAuth(cfg.Redis.Password, cfg.Redis.DB),
		cache.WithPrefix(cfg.Redis.Prefix),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	return internalrepo.NewCachePositionStore(rc), nil
}

// ProvideEngine assembles the trading engine.
func ProvideEngine(
	cfg *config.Config,
	market *Market,
	holder *engine.ConfigHolder,
	sink repository.HistorySink,
	store repository.PositionStore,
	m repository.Metrics,
	logger *applogger.Logger,
) *engine.Engine {
	ecfg := engine.Config{
		Symbols:            cfg.Engine.Symbols,
		Timeframe:          cfg.Engine.Timeframe,
		CandleLookback:     cfg.Engine.CandleLookback,
		RefreshInterval:    cfg.Engine.RefreshInterval,
		EntryScanInterval:  cfg.Engine.EntryScanInterval,
		RefreshWorkers:     cfg.Engine.RefreshWorkers,
		MaxOpenPositions:   cfg.Engine.MaxOpenPositions,
		OrderQty:           cfg.Engine.OrderQty,
		OrderTimeout:       cfg.Engine.OrderTimeout,
		ExchangeTimeout:    cfg.Engine.ExchangeTimeout,
		SnapshotTimeout:    cfg.Engine.SnapshotTimeout,
		ReconcileTolerance: cfg.Engine.ReconcileTolerance,
		RSIPeriod:          cfg.Filters.RSIPeriod,
		EMAFast:            cfg.Engine.EMAFast,
		EMASlow:            cfg.Engine.EMASlow,
		MaturityMinCandles: cfg.Engine.MaturityMinCandles,
		AdvisorMinConf:     cfg.Engine.AdvisorMinConf,
		StrictInvariants:   cfg.Engine.StrictInvariants,
	}
	return engine.New(ecfg, engine.Deps{
		Exchange:  market.Exchange,
		Source:    market.Source,
		ConfigSrc: holder,
		History:   sink,
		PosStore:  store,
		Metrics:   m,
		Logger:    logger,
	})
}

// ProvideScheduler creates the cadence scheduler.
func ProvideScheduler(eng *engine.Engine) *engine.Scheduler {
	return engine.NewScheduler(eng)
}

// ProvideHTTPHandler creates the control-plane handler.
func ProvideHTTPHandler(logger *applogger.Logger, eng *engine.Engine) xhttp.Handler {
	return api.NewEngineEchoHandler(logger, eng)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	logger *applogger.Logger,
	eng *engine.Engine,
	sched *engine.Scheduler,
	market *Market,
	handler xhttp.Handler,
	sink repository.HistorySink,
	store repository.PositionStore,
) *server.App {
	return server.New(cfg, logger, eng, sched, market.Stream, handler, sink, store)
}
