package app

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/cartstore/internal/domain"
	healthcheck "github.com/vladislavdragonenkov/cartstore/internal/health"
	"github.com/vladislavdragonenkov/cartstore/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/cartstore/internal/metrics"
	"github.com/vladislavdragonenkov/cartstore/internal/service/cart"
	"github.com/vladislavdragonenkov/cartstore/internal/service/inventory"
	"github.com/vladislavdragonenkov/cartstore/internal/service/notify"
	"github.com/vladislavdragonenkov/cartstore/internal/service/outbox"
	"github.com/vladislavdragonenkov/cartstore/internal/service/retention"
	"github.com/vladislavdragonenkov/cartstore/internal/version"
)

// Dependencies содержит все зависимости приложения.
type Dependencies struct {
	Store     *cart.Store
	Inventory domain.InventoryService
	Notifier  domain.Notifier
	Worker    *outbox.Worker
	Cleanup   *retention.CleanupWorker
	Health    *healthcheck.Handler
	Logger    *log.Entry
}

// NewDependencies собирает корзину поверх хранилищ из runtime.
// Worker и Cleanup создаются только при наличии Kafka producer.
func NewDependencies(
	ctx context.Context,
	cfg Config,
	runtime *runtimeDependencies,
	producer *kafka.Producer,
	logger *log.Entry,
) (*Dependencies, error) {
	if logger == nil {
		logger = log.WithField("component", "app")
	}
	if runtime == nil {
		return nil, fmt.Errorf("runtime dependencies are required")
	}

	cartMetrics := metrics.NewCartMetrics()
	healthHandler := healthcheck.NewHandler(version.GetVersion())
	if runtime.storageChecker != nil {
		healthHandler.RegisterChecker("storage", runtime.storageChecker)
	}

	inventorySvc, err := newInventoryService(cfg, cartMetrics, logger, healthHandler)
	if err != nil {
		return nil, err
	}

	notifiers := notify.Fanout{notify.NewLogNotifier(logger.WithField("layer", "notifier"))}

	var (
		worker  *outbox.Worker
		cleanup *retention.CleanupWorker
	)
	if producer != nil {
		outboxMetrics := metrics.NewOutboxMetrics()
		notifiers = append(notifiers, notify.NewOutboxNotifier(runtime.outboxRepo, cfg.StorageKey, logger.WithField("layer", "outbox-notifier")))
		worker = outbox.NewWorker(
			runtime.outboxRepo,
			kafka.NewOutboxPublisher(producer, cfg.NotificationTopic),
			outbox.WithLogger(logger.WithField("layer", "outbox")),
			outbox.WithMetrics(outboxMetrics),
			outbox.WithDLQPublisher(kafka.NewDLQPublisher(producer, cfg.NotificationTopic)),
			outbox.WithPollInterval(cfg.OutboxPollInterval),
			outbox.WithBatchSize(cfg.OutboxBatchSize),
			outbox.WithMaxAttempts(cfg.OutboxMaxAttempts),
			outbox.WithRetryBaseDelay(cfg.OutboxRetryDelay),
		)
		maxAge := cfg.OutboxMaxPendingAge
		healthHandler.RegisterChecker("outbox", healthcheck.NewDegradedChecker("outbox", func() error {
			return worker.CheckBacklog(maxAge)
		}))
		if cleaner, ok := runtime.outboxRepo.(domain.OutboxCleaner); ok {
			cleanup = retention.NewCleanupWorker(
				cleaner,
				retention.WithLogger(logger.WithField("layer", "outbox-cleanup")),
				retention.WithMetrics(outboxMetrics),
				retention.WithInterval(cfg.OutboxCleanupInterval),
				retention.WithBatchSize(cfg.OutboxBatchSize),
				retention.WithRetention(cfg.OutboxRetention),
			)
		}
	}

	store := cart.NewStore(
		ctx,
		runtime.storage,
		inventorySvc,
		notifiers,
		cart.WithLogger(logger.WithField("layer", "cart")),
		cart.WithMetrics(cartMetrics),
		cart.WithStorageKey(cfg.StorageKey),
	)

	return &Dependencies{
		Store:     store,
		Inventory: inventorySvc,
		Notifier:  notifiers,
		Worker:    worker,
		Cleanup:   cleanup,
		Health:    healthHandler,
		Logger:    logger,
	}, nil
}

// newInventoryService возвращает HTTP-клиент inventory или mock, если URL не задан.
func newInventoryService(cfg Config, m *metrics.CartMetrics, logger *log.Entry, healthHandler *healthcheck.Handler) (domain.InventoryService, error) {
	if cfg.InventoryURL == "" {
		// NOTE: mock пуст, любой товар считается отсутствующим. Только для разработки.
		logger.Warn("inventory url is not set, using in-memory mock inventory")
		return inventory.NewMockService(), nil
	}

	client, err := inventory.NewClient(
		cfg.InventoryURL,
		inventory.WithTimeout(cfg.InventoryTimeout),
		inventory.WithClientLogger(logger.WithField("layer", "inventory")),
		inventory.WithClientMetrics(m),
	)
	if err != nil {
		return nil, fmt.Errorf("init inventory client: %w", err)
	}
	healthHandler.RegisterChecker("inventory", healthcheck.NewDegradedChecker("inventory", client.CheckBreaker))
	return client, nil
}
