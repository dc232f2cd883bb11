package di

import (
	"context"
	"fmt"
	"time"

	"CostSim/internal/domain/repository"
	dservice "CostSim/internal/domain/service"
	"CostSim/internal/handler/api"
	internalrepo "CostSim/internal/repository"
	"CostSim/internal/service/feed"
	"CostSim/internal/services/analytics"
	"CostSim/internal/services/vol"
	"CostSim/internal/usecase"
	"CostSim/pkg/cache"
	pkgch "CostSim/pkg/clickhouse"
	"CostSim/pkg/config"
	xhttp "CostSim/pkg/http"
	pkgkafka "CostSim/pkg/kafka"
	applogger "CostSim/pkg/logger"
	"CostSim/pkg/metrics"
	"CostSim/pkg/queue"
	"CostSim/pkg/server"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	return applogger.New(&applogger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideMarketStream creates the order-book WebSocket stream.
func ProvideMarketStream(cfg *config.Config, lgr *applogger.Logger) repository.MarketStream {
	return feed.New(
		cfg.Feed.WebSocketURL,
		cfg.Feed.Exchange,
		cfg.Feed.Symbol,
		cfg.Feed.ReconnectDelay,
		cfg.Feed.PingInterval,
		lgr,
	)
}

// ProvideSnapshotStore creates the latest-snapshot store.
func ProvideSnapshotStore() *usecase.SnapshotStore {
	return usecase.NewSnapshotStore()
}

// ProvideEstimator creates the rolling volatility estimator.
func ProvideEstimator(cfg *config.Config) *vol.Estimator {
	return vol.NewEstimator(cfg.Volatility.Window, cfg.Volatility.MinSamples, cfg.Volatility.Default)
}

// ProvideQueue creates the delayed execution queue.
func ProvideQueue(cfg *config.Config, lgr *applogger.Logger) *queue.MemoryQueue {
	return queue.NewMemoryQueue(lgr, &queue.QueueConfig{
		Workers: cfg.Simulator.Workers,
	})
}

// ProvideCache creates the predictor response cache: Redis when enabled,
// in-process otherwise.
func ProvideCache(cfg *config.Config) (cache.Service, error) {
	if cfg.Predictors.Redis.Enabled {
		c, err := cache.NewRedisCache(
			cfg.Predictors.Redis.Addr,
			cfg.Predictors.Redis.Password,
			cfg.Predictors.Redis.DB,
			"costsim",
		)
		if err != nil {
			return nil, fmt.Errorf("redis cache: %w", err)
		}
		return c, nil
	}
	return cache.NewMemoryCache(1024), nil
}

// ProvideClassifier selects the maker/taker classifier: the HTTP model service
// when configured, the seeded local model otherwise. With fail_closed set, a
// missing model service is a startup error instead of a silent fallback.
func ProvideClassifier(cfg *config.Config, cacheSvc cache.Service, lgr *applogger.Logger) (dservice.MakerTakerClassifier, error) {
	if cfg.Predictors.ServiceURL != "" {
		return analytics.NewHTTPMakerTaker(cfg, cacheSvc, lgr), nil
	}
	if cfg.Predictors.FailClosed {
		return nil, fmt.Errorf("predictors.fail_closed is set but predictors.service_url is empty")
	}
	return analytics.NewSeededMakerTaker(), nil
}

// ProvideRegressor selects the cost regressor; disabled without a model service.
func ProvideRegressor(cfg *config.Config) dservice.CostRegressionPredictor {
	if cfg.Predictors.ServiceURL != "" {
		return analytics.NewHTTPCostRegressor(cfg)
	}
	return analytics.NewDisabledCostRegressor()
}

// ProvideAuditSink builds the audit backend selected by configuration.
func ProvideAuditSink(cfg *config.Config) (repository.AuditSink, error) {
	switch cfg.Audit.Backend {
	case "clickhouse":
		return provideClickHouseSink(cfg)
	case "kafka":
		return provideKafkaSink(cfg)
	default:
		return internalrepo.NewCSVAuditSink(cfg.Audit.CSVPath)
	}
}

func provideClickHouseSink(cfg *config.Config) (repository.AuditSink, error) {
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
	sink, err := internalrepo.NewClickHouseAuditSink(ctx, client, cfg.ClickHouse.Database+"."+cfg.ClickHouse.Table)
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse audit sink: %w", err)
	}
	return closerSink{AuditSink: sink, close: client.Close}, nil
}

func provideKafkaSink(cfg *config.Config) (repository.AuditSink, error) {
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithMaxAttempts(cfg.Kafka.MaxAttempts),
		pkgkafka.WithTimeouts(cfg.Kafka.WriteTimeout, cfg.Kafka.ReadTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return internalrepo.NewKafkaAuditSink(producer, cfg.Kafka.Topic), nil
}

// closerSink ties an owned infrastructure client's lifetime to the sink's.
type closerSink struct {
	repository.AuditSink
	close func() error
}

func (s closerSink) Close() error {
	err := s.AuditSink.Close()
	if cerr := s.close(); err == nil {
		err = cerr
	}
	return err
}

// ProvideCollector creates the book collector use case.
func ProvideCollector(
	stream repository.MarketStream,
	snapshots *usecase.SnapshotStore,
	estimator *vol.Estimator,
	m repository.Metrics,
	lgr *applogger.Logger,
) *usecase.BookCollector {
	return usecase.NewBookCollector(stream, snapshots, estimator, m, lgr)
}

// ProvideSimulator creates the order simulator use case.
func ProvideSimulator(
	cfg *config.Config,
	snapshots *usecase.SnapshotStore,
	estimator *vol.Estimator,
	q *queue.MemoryQueue,
	classifier dservice.MakerTakerClassifier,
	regressor dservice.CostRegressionPredictor,
	audit repository.AuditSink,
	m repository.Metrics,
	lgr *applogger.Logger,
) *usecase.OrderSimulator {
	return usecase.NewOrderSimulator(cfg, snapshots, estimator, q, classifier, regressor, audit, m, lgr)
}

// ProvideHandler creates the REST handler.
func ProvideHandler(
	lgr *applogger.Logger,
	sim *usecase.OrderSimulator,
	collector *usecase.BookCollector,
	snapshots *usecase.SnapshotStore,
	estimator *vol.Estimator,
) xhttp.Handler {
	return api.NewOrdersHandler(lgr, sim, collector, snapshots, estimator)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	lgr *applogger.Logger,
	collector *usecase.BookCollector,
	q *queue.MemoryQueue,
	handler xhttp.Handler,
	audit repository.AuditSink,
	cacheSvc cache.Service,
) *server.App {
	return server.New(cfg, lgr, collector, q, handler, audit, cacheSvc)
}
