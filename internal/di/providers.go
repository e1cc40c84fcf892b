package di

import (
	"context"
	"fmt"
	"io"
	"time"

	"MandiCast/internal/domain/models"
	domrepo "MandiCast/internal/domain/repository"
	domsvc "MandiCast/internal/domain/service"
	"MandiCast/internal/handler/api"
	mid "MandiCast/internal/middleware"
	internalrepo "MandiCast/internal/repository"
	svcmetrics "MandiCast/internal/service/metrics"
	"MandiCast/internal/service/ratelimit"
	"MandiCast/internal/services/feed"
	"MandiCast/internal/services/lstm"
	"MandiCast/internal/services/registry"
	"MandiCast/internal/services/series"
	"MandiCast/internal/usecase"
	"MandiCast/pkg/cache"
	pkgch "MandiCast/pkg/clickhouse"
	"MandiCast/pkg/config"
	xhttp "MandiCast/pkg/http"
	pkgkafka "MandiCast/pkg/kafka"
	applogger "MandiCast/pkg/logger"
	"MandiCast/pkg/metrics"
	"MandiCast/pkg/queue"
	"MandiCast/pkg/server"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
)

// ProvideKafkaProducer creates a Kafka producer when the audit backend or
// the log collector needs one. Otherwise it returns nil.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if cfg.Audit.Backend != config.AuditBackendKafka && !cfg.Logging.Collector.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatching(cfg.Kafka.Producer.BatchSize, cfg.Kafka.Producer.BatchBytes, cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideLogger builds the application logger and, when enabled, attaches
// the aggregating collector that ships repeated errors to Kafka.
func ProvideLogger(cfg *config.Config, producer *pkgkafka.Producer) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		TimeFormat: cfg.Logging.TimeFormat,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	if cfg.Logging.Collector.Enabled && producer != nil {
		l.AddCollector(&applogger.CollectionConfig{
			TimeInterval:   cfg.Logging.Collector.Interval,
			CountThreshold: cfg.Logging.Collector.CountThreshold,
			Topic:          cfg.Logging.Collector.Topic,
			Publisher:      producer,
		})
	}
	return l, nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() domrepo.Metrics {
	return metrics.New(prometheus.DefaultRegisterer)
}

func ProvideCatalog(cfg *config.Config) (*models.Catalog, error) {
	c, err := internalrepo.LoadCatalog(cfg.Dataset.CatalogPath)
	if err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}
	return c, nil
}

// ProvideSeries loads the CSV once. A missing or unreadable dataset is not
// fatal: the service keeps answering with default prices and /health
// reports csv_loaded=false.
func ProvideSeries(cfg *config.Config, l *applogger.Logger) *series.Extractor {
	t, err := internalrepo.LoadDataset(cfg.Dataset.CSVPath, l)
	if err != nil {
		l.Warn("dataset unavailable, serving defaults", applogger.Error(err))
		return series.NewExtractor(nil)
	}
	return series.NewExtractor(t)
}

func decodeLSTM(r io.Reader) (domsvc.PriceModel, error) {
	return lstm.Load(r)
}

func ProvideModelStore(cfg *config.Config) domrepo.ModelStore {
	return internalrepo.NewFileModelStore(cfg.Models.Dir, decodeLSTM)
}

func ProvideModelRegistry(store domrepo.ModelStore, l *applogger.Logger, m domrepo.Metrics) domrepo.ModelRegistry {
	return registry.New(store, l, m)
}

// ProvideRedisClient returns nil when redis is disabled.
func ProvideRedisClient(cfg *config.Config) *redis.Client {
	if !cfg.Redis.Enabled {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
}

// ProvideFeedCache puts an in-process L1 in front of redis when redis is
// enabled, and uses memory alone otherwise.
func ProvideFeedCache(cfg *config.Config, rdb *redis.Client) cache.Service {
	if rdb == nil {
		return cache.NewMemoryCache(cache.WithMemoryMaxSize(1024))
	}
	prefix := cfg.Redis.Prefix
	if prefix == "" {
		prefix = "mandicast"
	}
	l1 := cfg.Feed.CacheTTL / 2
	if l1 <= 0 {
		l1 = time.Minute
	}
	return cache.NewLayeredCache(cache.NewRedisCacheFromClient(rdb, prefix), 1024, l1)
}

func ProvidePriceFeed(cfg *config.Config, c cache.Service, l *applogger.Logger, m domrepo.Metrics) domrepo.PriceFeed {
	if !cfg.Feed.Enabled {
		l.Info("live price feed disabled")
		return feed.Disabled{}
	}
	client := feed.NewCEDAClient(feed.Config{
		BaseURL: cfg.Feed.BaseURL,
		APIKey:  cfg.Feed.APIKey,
		Timeout: cfg.Feed.Timeout,
		Retries: cfg.Feed.Retries,
		Limit:   cfg.Feed.Limit,
	}, l, m)
	if cfg.Feed.CacheTTL <= 0 {
		return client
	}
	return feed.NewCached(client, c, cfg.Feed.CacheTTL, l)
}

func ProvideInferencePool(cfg *config.Config, l *applogger.Logger) *usecase.InferencePool {
	return usecase.NewInferencePool(cfg.Inference.Workers, cfg.Inference.QueueSize, l)
}

// ProvideClickHouseClient returns nil unless records end up in ClickHouse.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if cfg.Audit.Backend == config.AuditBackendNone || cfg.Audit.Store != config.AuditBackendClickHouse {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := pkgch.NewClient(ctx,
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
		pkgch.WithCompression(cfg.ClickHouse.Compress),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}
	return client, nil
}

// ProvideAuditStore opens the configured store and creates its schema.
// With audit disabled there is no store.
func ProvideAuditStore(cfg *config.Config, ch *pkgch.Client, l *applogger.Logger) (domrepo.AuditStore, error) {
	if cfg.Audit.Backend == config.AuditBackendNone {
		return nil, nil
	}

	var store domrepo.AuditStore
	switch cfg.Audit.Store {
	case config.AuditBackendClickHouse:
		store = internalrepo.NewClickHouseAuditStore(ch, cfg.ClickHouse.Database, l)
	default:
		s, err := internalrepo.OpenSQLiteAuditStore(cfg.SQLite.Path, l)
		if err != nil {
			return nil, err
		}
		store = s
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := store.Init(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("%s schema: %w", cfg.Audit.Store, err)
	}
	return store, nil
}

// ProvideRedisQueue creates the audit work queue for the redis backend. The
// same process enqueues and drains it.
func ProvideRedisQueue(cfg *config.Config, rdb *redis.Client, store domrepo.AuditStore, m domrepo.Metrics, l *applogger.Logger) *queue.RedisQueue {
	if cfg.Audit.Backend != config.AuditBackendRedis || rdb == nil {
		return nil
	}
	prefix := cfg.Redis.Prefix
	if prefix == "" {
		prefix = "mandicast"
	}
	q := queue.NewRedisQueue(l, queue.QueueConfig{
		Workers:    cfg.Redis.Queue.Workers,
		RetryLimit: cfg.Redis.Queue.RetryLimit,
		RetryDelay: cfg.Redis.Queue.RetryDelay,
	}, rdb, queue.ModeProducerConsumer, queue.WithKeyPrefix(prefix+":queue"))
	q.RegisterJob(usecase.NewAuditRecordJob(store, m))
	return q
}

// ProvideAuditPublisher returns the broker publisher for kafka and redis
// backends, nil otherwise.
func ProvideAuditPublisher(cfg *config.Config, producer *pkgkafka.Producer, q *queue.RedisQueue) domrepo.AuditPublisher {
	switch cfg.Audit.Backend {
	case config.AuditBackendKafka:
		return internalrepo.NewKafkaAuditPublisher(producer, cfg.Kafka.Topic)
	case config.AuditBackendRedis:
		return internalrepo.NewRedisAuditPublisher(q)
	default:
		return nil
	}
}

// ProvideAuditProcessor returns nil when auditing is off.
func ProvideAuditProcessor(cfg *config.Config, pub domrepo.AuditPublisher, store domrepo.AuditStore, m domrepo.Metrics) *usecase.AuditProcessor {
	switch {
	case cfg.Audit.Backend == config.AuditBackendNone:
		return nil
	case cfg.Audit.IsBroker():
		return usecase.NewAuditProcessor(pub, nil, m, cfg.Audit.Backend)
	default:
		return usecase.NewAuditProcessor(nil, store, m, cfg.Audit.Backend)
	}
}

func ProvideAuditCollector(cfg *config.Config, proc *usecase.AuditProcessor, m domrepo.Metrics, l *applogger.Logger) *usecase.AuditCollector {
	return usecase.NewAuditCollector(proc, m, l,
		mid.WithBufferSize(cfg.Audit.BufferSize),
		mid.WithMaxAttempts(3),
		mid.WithBackoff(100*time.Millisecond, 5*time.Second),
	)
}

// ProvideKafkaConsumer creates the consumer that drains the audit topic into
// the store. nil unless the kafka backend has its consumer enabled.
func ProvideKafkaConsumer(cfg *config.Config, l *applogger.Logger) (*pkgkafka.Consumer, error) {
	if cfg.Audit.Backend != config.AuditBackendKafka || !cfg.Kafka.Consumer.Enabled {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
		pkgkafka.WithConsumerLogger(l),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.WithConsumerHook(pkgkafka.NewHookChain(pkgkafka.TracingHook(l)))
	return consumer, nil
}

func ProvideKafkaAuditHandler(cfg *config.Config, consumer *pkgkafka.Consumer, store domrepo.AuditStore, m domrepo.Metrics) *usecase.KafkaAuditHandler {
	if consumer == nil {
		return nil
	}
	return usecase.NewKafkaAuditHandler(cfg.Kafka.Topic, store, m)
}

func ProvideForecastService(
	cfg *config.Config,
	catalog *models.Catalog,
	ex *series.Extractor,
	pf domrepo.PriceFeed,
	reg domrepo.ModelRegistry,
	pool *usecase.InferencePool,
	collector *usecase.AuditCollector,
	m domrepo.Metrics,
	l *applogger.Logger,
) *usecase.ForecastService {
	return usecase.NewForecastService(catalog, ex, pf, reg, pool, collector, m, l, usecase.ForecastConfig{
		Lookback:     cfg.Models.Lookback,
		DefaultPrice: cfg.Forecast.DefaultPrice,
		Currency:     cfg.Forecast.Currency,
		Unit:         cfg.Forecast.Unit,
		FeedTimeout:  cfg.Feed.Timeout,
	})
}

func ProvideAggregateUseCase(cfg *config.Config, catalog *models.Catalog, fs *usecase.ForecastService, l *applogger.Logger) *usecase.AggregateUseCase {
	return usecase.NewAggregateUseCase(catalog, fs, l, cfg.Forecast.Timeout)
}

func ProvideHistoryUseCase(catalog *models.Catalog, ex *series.Extractor) *usecase.HistoryUseCase {
	return usecase.NewHistoryUseCase(catalog, ex)
}

func ProvidePredictionsUseCase(store domrepo.AuditStore) *usecase.PredictionsUseCase {
	return usecase.NewPredictionsUseCase(store)
}

func ProvideRateLimiter(cfg *config.Config) *ratelimit.Limiter {
	return ratelimit.New(float64(cfg.RateLimit.Capacity), cfg.RateLimit.RefillPerSec)
}

func ProvideMarketHandler(
	l *applogger.Logger,
	fs *usecase.ForecastService,
	agg *usecase.AggregateUseCase,
	hist *usecase.HistoryUseCase,
	preds *usecase.PredictionsUseCase,
	ex *series.Extractor,
	reg domrepo.ModelRegistry,
	limiter *ratelimit.Limiter,
) *api.MarketEchoHandler {
	return api.NewMarketEchoHandler(l, api.MarketDeps{
		Forecast:    fs,
		Aggregate:   agg,
		History:     hist,
		Predictions: preds,
		Series:      ex,
		Registry:    reg,
		Limiter:     limiter,
	})
}

func ProvideHTTPServer(cfg *config.Config, l *applogger.Logger, h *api.MarketEchoHandler) *xhttp.Server {
	opts := []xhttp.ServerOption{
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
	}
	if cfg.Metrics.Enabled {
		opts = append(opts, xhttp.WithMetricsPath(cfg.Metrics.Path))
	}
	return xhttp.NewServer(l, []xhttp.Handler{h}, opts...)
}

// ProvideApp assembles the lifecycle. Optional components arrive as nil
// pointers and are only stored when present.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	pool *usecase.InferencePool,
	collector *usecase.AuditCollector,
	q *queue.RedisQueue,
	consumer *pkgkafka.Consumer,
	kh *usecase.KafkaAuditHandler,
	srv *xhttp.Server,
	limiter *ratelimit.Limiter,
	store domrepo.AuditStore,
	producer *pkgkafka.Producer,
	ch *pkgch.Client,
	fc cache.Service,
) *server.App {
	comps := server.Components{
		Pool:      pool,
		Collector: collector,
		Queue:     q,
		Consumer:  consumer,
		HTTP:      srv,
		Limiter:   limiter,
	}
	if kh != nil {
		comps.AuditHandler = kh
	}
	app := server.New(cfg, l, comps)

	if cfg.Metrics.Enabled {
		for name, depth := range map[string]func() int{
			"audit":     collector.Pending,
			"inference": pool.Pending,
		} {
			if err := svcmetrics.WatchQueue(prometheus.DefaultRegisterer, name, depth); err != nil {
				l.Warn("queue gauge not registered", applogger.String("queue", name), applogger.Error(err))
			}
		}
	}

	// registered in dependency order; they close in reverse.
	// The layered feed cache owns the redis client when there is one.
	app.AddCloser("feed cache", fc.Close)
	if ch != nil {
		app.AddCloser("clickhouse", ch.Close)
	}
	if producer != nil {
		app.AddCloser("kafka producer", producer.Close)
	}
	if store != nil {
		app.AddCloser("audit store", store.Close)
	}
	app.AddCloser("logger", func() error {
		l.RemoveCollector()
		return nil
	})
	return app
}
