package di

import (
	"context"
	"fmt"
	"time"

	drepo "MacroPull/internal/domain/repository"
	internalrepo "MacroPull/internal/repository"
	"MacroPull/internal/service/alphavantage"
	"MacroPull/internal/service/fred"
	"MacroPull/internal/service/ratelimit"
	"MacroPull/internal/service/retry"
	"MacroPull/internal/service/validate"
	"MacroPull/internal/service/yahoo"
	"MacroPull/internal/usecase"
	"MacroPull/pkg/cache"
	pkgch "MacroPull/pkg/clickhouse"
	"MacroPull/pkg/clock"
	"MacroPull/pkg/config"
	"MacroPull/pkg/httpclient"
	pkgkafka "MacroPull/pkg/kafka"
	applogger "MacroPull/pkg/logger"
	"MacroPull/pkg/metrics"
	"MacroPull/pkg/server"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	return applogger.New(&applogger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
}

// ProvideClock supplies the wall clock.
func ProvideClock() clock.Clock {
	return clock.New()
}

// ProvideMetrics creates the Prometheus metrics recorder.
func ProvideMetrics() drepo.Metrics {
	return metrics.New()
}

// ProvideClickHouseClient creates the ClickHouse client and ensures the
// schema exists.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.InitSchema(ctx, internalrepo.SchemaStatements(cfg.ClickHouse.Database, cfg.ClickHouse.Table)); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return client, nil
}

// ProvideRecordStore creates the ClickHouse record store.
func ProvideRecordStore(chClient *pkgch.Client, cfg *config.Config, l *applogger.Logger) drepo.RecordStore {
	store := internalrepo.NewCHRecordStore(chClient, cfg.ClickHouse.Database+"."+cfg.ClickHouse.Table)
	store.SetLogger(l)
	return store
}

// ProvideKafkaProducer creates the Kafka producer, or nil when Kafka is
// disabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithMaxAttempts(cfg.Kafka.MaxAttempts),
		pkgkafka.WithWriteTimeout(cfg.Kafka.WriteTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvidePublisher creates the Kafka record publisher, or nil when no
// producer is configured.
func ProvidePublisher(producer *pkgkafka.Producer, cfg *config.Config) drepo.Publisher {
	if producer == nil {
		return nil
	}
	return internalrepo.NewKafkaPublisher(producer, cfg.Kafka.Topic)
}

// ProvideFetchCache creates the optional cross-run fetch cache: layered
// memory-over-Redis when Redis is enabled, nil otherwise.
func ProvideFetchCache(cfg *config.Config, l *applogger.Logger) (cache.Store, error) {
	if !cfg.Redis.Enabled {
		return nil, nil
	}
	rc, err := cache.NewRedisCache(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	l.Info("fetch cache enabled", applogger.String("addr", cfg.Redis.Addr))
	return cache.NewLayeredCache(rc), nil
}

// ProvideFREDClient creates the primary economic-series adapter.
func ProvideFREDClient(cfg *config.Config, clk clock.Clock, m drepo.Metrics, l *applogger.Logger, fetches cache.Store) *fred.Client {
	limiter := ratelimit.NewWindow(cfg.FRED.WindowLimit, cfg.FRED.Window, clk)
	client := fred.New(fred.Options{
		BaseURL: cfg.FRED.BaseURL,
		APIKeys: cfg.FRED.APIKeys,
		Policy: retry.Policy{
			MaxAttempts: cfg.FRED.MaxRetries,
			BaseDelay:   cfg.FRED.RetryBase,
			MaxDelay:    cfg.FRED.RetryMax,
			Jitter:      0.25,
		},
		DefaultRetryAfter: cfg.FRED.DefaultRetryAfter,
		CacheTTL:          cfg.Redis.TTL,
	}, httpclient.NewClient(httpclient.WithTimeout(cfg.FRED.Timeout)), limiter, clk, m, l)
	if fetches != nil {
		client.SetFetchCache(fetches)
	}
	return client
}

// ProvideYahooClient creates the market-quote adapter.
func ProvideYahooClient(cfg *config.Config, clk clock.Clock, m drepo.Metrics, l *applogger.Logger) *yahoo.Client {
	return yahoo.New(yahoo.Options{
		BaseURL:  cfg.Yahoo.BaseURL,
		BootURL:  cfg.Yahoo.BootURL,
		CrumbTTL: cfg.Yahoo.CrumbTTL,
		Policy: retry.Policy{
			MaxAttempts: cfg.Yahoo.MaxRetries,
			BaseDelay:   time.Second,
			MaxDelay:    30 * time.Second,
			Jitter:      0.25,
		},
	}, httpclient.NewClient(
		httpclient.WithTimeout(cfg.Yahoo.Timeout),
		httpclient.WithUserAgent("Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36"),
	), clk, m, l)
}

// ProvideAlphaVantageClient creates the cross-check adapter, or nil
// when no API key is configured.
func ProvideAlphaVantageClient(cfg *config.Config, clk clock.Clock, m drepo.Metrics, l *applogger.Logger) *alphavantage.Client {
	if cfg.AlphaVantage.APIKey == "" {
		return nil
	}
	return alphavantage.New(alphavantage.Options{
		BaseURL:    cfg.AlphaVantage.BaseURL,
		APIKey:     cfg.AlphaVantage.APIKey,
		DailyQuota: cfg.AlphaVantage.DailyQuota,
		Policy: retry.Policy{
			MaxAttempts: 2,
			BaseDelay:   time.Second,
			MaxDelay:    10 * time.Second,
			Jitter:      0.25,
		},
	}, httpclient.NewClient(httpclient.WithTimeout(cfg.AlphaVantage.Timeout)), clk, m, l)
}

// ProvideValidationEngine creates the record validation engine.
func ProvideValidationEngine(cfg *config.Config) *validate.Engine {
	return validate.NewEngine(validate.DefaultRules(), cfg.Ingestion.AnomalyThresholdPct)
}

// ProvideIngestor creates the single-date pipeline.
func ProvideIngestor(
	cfg *config.Config,
	fredClient *fred.Client,
	yahooClient *yahoo.Client,
	avClient *alphavantage.Client,
	store drepo.RecordStore,
	publisher drepo.Publisher,
	engine *validate.Engine,
	clk clock.Clock,
	m drepo.Metrics,
	l *applogger.Logger,
) *usecase.Ingestor {
	var crossCheck drepo.Provider
	if avClient != nil {
		crossCheck = avClient
	}
	return usecase.NewIngestor(fredClient, yahooClient, crossCheck, store, publisher, engine, clk, m, l,
		usecase.IngestOptions{
			CrossCheckTolerance: cfg.Ingestion.CrossCheckTolerance,
			PersistPolicy: retry.Policy{
				MaxAttempts: cfg.Ingestion.PersistMaxAttempts,
				BaseDelay:   cfg.Ingestion.PersistRetryBase,
				MaxDelay:    cfg.Ingestion.PersistRetryMax,
				Jitter:      0.25,
			},
		})
}

// ProvideBackfiller creates the historical range controller. The FRED
// client doubles as the credential cycler.
func ProvideBackfiller(
	cfg *config.Config,
	ingestor *usecase.Ingestor,
	fredClient *fred.Client,
	store drepo.RecordStore,
	clk clock.Clock,
	l *applogger.Logger,
) *usecase.Backfiller {
	return usecase.NewBackfiller(ingestor, fredClient, store, clk, l,
		usecase.BackfillOptions{
			RequestsPerKey: cfg.Backfill.RequestsPerKey,
			CyclePause:     cfg.Backfill.CyclePause,
			PerDateDelay:   cfg.Backfill.PerDateDelay,
			ProgressEvery:  cfg.Backfill.ProgressEvery,
		})
}

// ProvideApp creates the application.
func ProvideApp(
	cfg *config.Config,
	ingestor *usecase.Ingestor,
	backfiller *usecase.Backfiller,
	chClient *pkgch.Client,
	producer *pkgkafka.Producer,
	l *applogger.Logger,
) *server.App {
	return server.New(cfg, ingestor, backfiller, chClient, producer, l)
}
