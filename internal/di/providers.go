package di

import (
	"context"
	"fmt"
	"time"

	"TFTracker/internal/domain/repository"
	"TFTracker/internal/domain/service"
	"TFTracker/internal/handler/api"
	"TFTracker/internal/handler/ws"
	"TFTracker/internal/migrations"
	internalrepo "TFTracker/internal/repository"
	"TFTracker/internal/service/ratelimit"
	"TFTracker/internal/services/phase"
	"TFTracker/internal/usecase"
	"TFTracker/pkg/cache"
	pkgch "TFTracker/pkg/clickhouse"
	"TFTracker/pkg/config"
	xhttp "TFTracker/pkg/http"
	pkgkafka "TFTracker/pkg/kafka"
	applogger "TFTracker/pkg/logger"
	"TFTracker/pkg/metrics"
	"TFTracker/pkg/server"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
)

// ProvideLogger creates the application logger from the log section.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	l, err := applogger.New(&cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l.With(applogger.String("env", cfg.Environment)), nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics(cfg *config.Config) repository.Metrics {
	if !cfg.Metrics.Enabled {
		return metrics.Nop{}
	}
	return metrics.New()
}

// ProvideClickHouseClient connects to ClickHouse and applies pending
// migrations. It returns nil with the in-memory storage backend.
func ProvideClickHouseClient(cfg *config.Config, l *applogger.Logger) (*pkgch.Client, func(), error) {
	if cfg.Storage.Backend != "clickhouse" {
		return nil, func() {}, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
		pkgch.WithCreateDatabase(cfg.ClickHouse.AutoMigrate),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("clickhouse client: %w", err)
	}
	cleanup := func() {
		if err := client.Close(); err != nil {
			l.Warn("clickhouse close error", applogger.Error(err))
		}
	}

	if cfg.ClickHouse.AutoMigrate {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if err := pkgch.NewMigrator(client, migrations.FS, l).Up(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("clickhouse migrate: %w", err)
		}
	}
	l.Info("clickhouse ready", applogger.String("database", cfg.ClickHouse.Database))
	return client, cleanup, nil
}

// ProvideMigrator is used by the migrate command; it needs ClickHouse.
func ProvideMigrator(cfg *config.Config, l *applogger.Logger) (*pkgch.Migrator, func(), error) {
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithCreateDatabase(true),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("clickhouse client: %w", err)
	}
	return pkgch.NewMigrator(client, migrations.FS, l), func() { _ = client.Close() }, nil
}

// ProvideSnapshotStore picks the snapshot backend.
func ProvideSnapshotStore(ch *pkgch.Client, l *applogger.Logger) repository.SnapshotStore {
	if ch == nil {
		return internalrepo.NewMemorySnapshotStore()
	}
	s := internalrepo.NewCHSnapshotStore(ch)
	s.SetLogger(l)
	return s
}

// ProvideAssetStore picks the asset backend.
func ProvideAssetStore(ch *pkgch.Client, l *applogger.Logger) repository.AssetStore {
	if ch == nil {
		return internalrepo.NewMemoryAssetStore()
	}
	s := internalrepo.NewCHAssetStore(ch)
	s.SetLogger(l)
	return s
}

// ProvideRedisCache connects to Redis. It returns nil with the in-memory
// phase store backend.
func ProvideRedisCache(cfg *config.Config, l *applogger.Logger) (*cache.RedisCache, func(), error) {
	if cfg.PhaseStore.Backend != "redis" {
		return nil, func() {}, nil
	}
	rc, err := cache.NewRedisCache(
		cache.WithRedisHost(cfg.Redis.Host),
		cache.WithRedisPort(cfg.Redis.Port),
		cache.WithRedisPassword(cfg.Redis.Password),
		cache.WithRedisDB(cfg.Redis.DB),
		cache.WithRedisPool(cfg.Redis.PoolSize, cfg.Redis.MinIdleConns, cfg.Redis.PoolTimeout),
		cache.WithRedisPrefix(cfg.Redis.Prefix),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("redis: %w", err)
	}
	l.Info("redis ready", applogger.String("addr", fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port)))
	return rc, func() {
		if err := rc.Close(); err != nil {
			l.Warn("redis close error", applogger.Error(err))
		}
	}, nil
}

// ProvideCache backs the phase list cache and per-asset locks. Locks only
// span processes when Redis is configured.
func ProvideCache(rc *cache.RedisCache) (cache.Service, func()) {
	if rc != nil {
		return rc, func() {}
	}
	mc := cache.NewMemoryCache()
	return mc, func() { _ = mc.Close() }
}

// ProvidePhaseStore picks the phase state backend.
func ProvidePhaseStore(cfg *config.Config, rc *cache.RedisCache, l *applogger.Logger) repository.PhaseStore {
	if rc == nil {
		return internalrepo.NewMemoryPhaseStore()
	}
	s := internalrepo.NewRedisPhaseStore(rc.Client(), cfg.Redis.Prefix, cfg.PhaseStore.HistoryCap)
	s.SetLogger(l)
	return s
}

func ProvideLocker(cfg *config.Config, c cache.Service, l *applogger.Logger) repository.Locker {
	return internalrepo.NewCacheLocker(c,
		internalrepo.WithLockTTL(cfg.Updater.LockTTL),
		internalrepo.WithLockWait(cfg.Updater.LockWait, cfg.Updater.LockRetry),
		internalrepo.WithLockerLogger(l),
	)
}

func ProvideClassifier(cfg *config.Config, snaps repository.SnapshotStore, l *applogger.Logger) service.PhaseClassifier {
	return phase.NewClassifier(snaps,
		phase.WithSentiment(cfg.Classifier.SentimentEnabled, cfg.Classifier.SentimentWindow),
		phase.WithLogger(l),
	)
}

// ProvideKafkaProducer creates a Kafka producer, nil when Kafka is disabled.
func ProvideKafkaProducer(cfg *config.Config, l *applogger.Logger) (*pkgkafka.Producer, func(), error) {
	if !cfg.Kafka.Enabled {
		return nil, func() {}, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, func() {
		if err := producer.Close(); err != nil {
			l.Warn("kafka producer close error", applogger.Error(err))
		}
	}, nil
}

// ProvideKafkaConsumer creates a Kafka consumer, nil when Kafka is disabled.
func ProvideKafkaConsumer(cfg *config.Config, l *applogger.Logger) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled {
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
	consumer.WithConsumerHook(pkgkafka.TraceIDHook())
	return consumer, nil
}

func ProvideHub(cfg *config.Config, l *applogger.Logger) *ws.Hub {
	return ws.NewHub(ws.WithAllowedOrigins(cfg.Server.AllowedOrigins), ws.WithLogger(l))
}

func ProvidePhaseQuery(cfg *config.Config, assets repository.AssetStore, phases repository.PhaseStore, c cache.Service, l *applogger.Logger) *usecase.PhaseQuery {
	return usecase.NewPhaseQuery(assets, phases, c, cfg.Cache.PhaseTTL, cfg.Tickers.Aliases, l)
}

// ProvidePhaseUpdater wires the updater with its listeners: the list cache
// on every commit, websocket subscribers and, when enabled, Kafka on
// transitions.
func ProvidePhaseUpdater(
	cfg *config.Config,
	classifier service.PhaseClassifier,
	assets repository.AssetStore,
	phases repository.PhaseStore,
	locker repository.Locker,
	m repository.Metrics,
	l *applogger.Logger,
	producer *pkgkafka.Producer,
	hub *ws.Hub,
	query *usecase.PhaseQuery,
) *usecase.PhaseUpdater {
	notifiers := usecase.Notifiers{hub}
	if producer != nil {
		notifiers = append(notifiers, internalrepo.NewKafkaTransitionPublisher(producer, cfg.Kafka.TransitionTopic))
	}
	return usecase.NewPhaseUpdater(classifier, assets, phases, locker,
		usecase.WithUpdaterParallelism(cfg.Updater.Parallelism),
		usecase.WithUpdaterNotifier(notifiers),
		usecase.WithUpdaterCommitListener(query),
		usecase.WithUpdaterMetrics(m),
		usecase.WithUpdaterLogger(l),
	)
}

func ProvideSnapshotQuery(cfg *config.Config, assets repository.AssetStore, snaps repository.SnapshotStore) *usecase.SnapshotQuery {
	return usecase.NewSnapshotQuery(assets, snaps, cfg.Tickers.Aliases)
}

func ProvideAssetRegistry(cfg *config.Config, assets repository.AssetStore) *usecase.AssetRegistry {
	return usecase.NewAssetRegistry(assets, cfg.Tickers.Aliases)
}

func ProvidePhaseScheduler(cfg *config.Config, updater *usecase.PhaseUpdater, registry *usecase.AssetRegistry, l *applogger.Logger) *usecase.PhaseScheduler {
	return usecase.NewPhaseScheduler(updater, registry, cfg.Scheduler.Interval, cfg.Scheduler.Tickers, l)
}

// ProvideSnapshotEventsHandler handles the ingestion topic.
func ProvideSnapshotEventsHandler(
	cfg *config.Config,
	registry *usecase.AssetRegistry,
	snaps repository.SnapshotStore,
	updater *usecase.PhaseUpdater,
	m repository.Metrics,
	l *applogger.Logger,
) *usecase.SnapshotEventsHandler {
	return usecase.NewSnapshotEventsHandler(cfg.Kafka.SnapshotTopic, registry, snaps, updater, m, l)
}

// ProvideHealthChecks lists the checks served on /healthz.
func ProvideHealthChecks(ch *pkgch.Client, rc *cache.RedisCache) []api.HealthCheck {
	var checks []api.HealthCheck
	if ch != nil {
		checks = append(checks, api.HealthCheck{Name: "clickhouse", Check: ch.Health})
	}
	if rc != nil {
		checks = append(checks, api.HealthCheck{Name: "redis", Check: rc.Health})
	}
	return checks
}

// ProvideHTTPServer builds the Echo server with the phase and catalog APIs
// and the stream.
func ProvideHTTPServer(
	cfg *config.Config,
	l *applogger.Logger,
	query *usecase.PhaseQuery,
	updater *usecase.PhaseUpdater,
	snapshots *usecase.SnapshotQuery,
	registry *usecase.AssetRegistry,
	hub *ws.Hub,
	checks []api.HealthCheck,
) *xhttp.Server {
	var mw []echo.MiddlewareFunc
	if cfg.RateLimit.Enabled {
		lim := ratelimit.New(ratelimit.Config{
			RPS:     cfg.RateLimit.RPS,
			Burst:   cfg.RateLimit.Burst,
			IdleTTL: cfg.RateLimit.IdleTTL,
		})
		mw = append(mw, lim.Middleware())
	}

	handlers := []xhttp.Handler{
		hub,
		api.NewPhaseEchoHandler(l, query, updater, cfg.Tickers.Aliases, checks...),
		api.NewCatalogEchoHandler(l, snapshots, registry),
	}
	return xhttp.NewServer(handlers,
		xhttp.WithHost(cfg.Server.Host),
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithCORS(true, cfg.Server.AllowedOrigins),
		xhttp.WithLogger(l),
		xhttp.WithMetrics(prometheus.DefaultRegisterer, prometheus.DefaultGatherer, cfg.Metrics.SlowThreshold),
		xhttp.WithMiddleware(mw...),
	)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	srv *xhttp.Server,
	consumer *pkgkafka.Consumer,
	handler *usecase.SnapshotEventsHandler,
	scheduler *usecase.PhaseScheduler,
	hub *ws.Hub,
) *server.App {
	opts := []server.AppOption{
		server.WithShutdownTimeout(cfg.Server.ShutdownTimeout),
		server.WithClosers(server.NamedCloser{Name: "ws hub", Closer: hub}),
	}
	if consumer != nil {
		opts = append(opts, server.WithConsumer(consumer, handler))
	}
	if cfg.Scheduler.Enabled {
		opts = append(opts, server.WithBackground(scheduler))
	}
	return server.New(l, srv, opts...)
}

// Refresh bundles what the one-shot refresh command needs.
type Refresh struct {
	Updater  *usecase.PhaseUpdater
	Registry *usecase.AssetRegistry
	Query    *usecase.PhaseQuery
	Logger   *applogger.Logger
}

func ProvideRefresh(updater *usecase.PhaseUpdater, registry *usecase.AssetRegistry, query *usecase.PhaseQuery, l *applogger.Logger) *Refresh {
	return &Refresh{Updater: updater, Registry: registry, Query: query, Logger: l}
}
