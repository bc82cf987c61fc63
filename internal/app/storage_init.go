package app

import (
	"context"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/cartstore/internal/domain"
	healthcheck "github.com/vladislavdragonenkov/cartstore/internal/health"
	"github.com/vladislavdragonenkov/cartstore/internal/storage/file"
	"github.com/vladislavdragonenkov/cartstore/internal/storage/memory"
	"github.com/vladislavdragonenkov/cartstore/internal/storage/postgres"
	"github.com/vladislavdragonenkov/cartstore/internal/storage/redis"
)

// runtimeDependencies содержит хранилища, зависящие от выбранного драйвера.
type runtimeDependencies struct {
	storage        domain.KeyValueStorage
	outboxRepo     domain.OutboxRepository
	storageChecker healthcheck.Checker
	closeFn        func() error
}

func (d *runtimeDependencies) close(logger *log.Entry) {
	if d == nil || d.closeFn == nil {
		return
	}
	if err := d.closeFn(); err != nil {
		logger.WithError(err).Warn("failed to close storage")
	}
}

// initRuntimeDependencies открывает хранилище корзины и outbox.
// Outbox живёт в Postgres только при драйвере postgres, иначе в памяти.
func initRuntimeDependencies(ctx context.Context, cfg Config, logger *log.Entry) (*runtimeDependencies, error) {
	driver := StorageDriver(strings.ToLower(strings.TrimSpace(string(cfg.StorageDriver))))
	if driver == "" {
		driver = StorageDriverMemory
	}
	logger = logger.WithField("storage_driver", driver)

	switch driver {
	case StorageDriverMemory:
		logger.Info("using in-memory cart storage")
		return &runtimeDependencies{
			storage:    memory.NewKeyValueStorage(),
			outboxRepo: memory.NewOutboxRepository(),
		}, nil

	case StorageDriverFile:
		storage, err := file.NewStorage(cfg.StorageDir)
		if err != nil {
			return nil, fmt.Errorf("init file storage: %w", err)
		}
		logger.WithField("dir", cfg.StorageDir).Info("using file cart storage")
		return &runtimeDependencies{
			storage:        storage,
			outboxRepo:     memory.NewOutboxRepository(),
			storageChecker: healthcheck.NewSimpleChecker("storage", storage.Ping),
		}, nil

	case StorageDriverPostgres:
		if strings.TrimSpace(cfg.PostgresDSN) == "" {
			return nil, fmt.Errorf("postgres dsn is required for storage driver %q", driver)
		}
		store, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		if cfg.PostgresAutoMigrate {
			if err := store.EnsureSchema(ctx); err != nil {
				_ = store.Close()
				return nil, fmt.Errorf("migrate postgres: %w", err)
			}
			logger.Info("postgres migrations applied")
		}
		return &runtimeDependencies{
			storage:        postgres.NewKeyValueStorage(store),
			outboxRepo:     postgres.NewOutboxRepository(store),
			storageChecker: healthcheck.NewPingChecker("storage", storagePingTimeout, store.Ping),
			closeFn:        store.Close,
		}, nil

	case StorageDriverRedis:
		storage, err := redis.Open(ctx, cfg.RedisAddr, cfg.RedisTTL)
		if err != nil {
			return nil, fmt.Errorf("open redis: %w", err)
		}
		logger.WithField("addr", cfg.RedisAddr).Info("using redis cart storage")
		return &runtimeDependencies{
			storage:        storage,
			outboxRepo:     memory.NewOutboxRepository(),
			storageChecker: healthcheck.NewPingChecker("storage", storagePingTimeout, storage.Ping),
			closeFn:        storage.Close,
		}, nil

	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
	}
}
