package app

import (
	"time"

	"github.com/vladislavdragonenkov/cartstore/internal/domain"
	"github.com/vladislavdragonenkov/cartstore/internal/messaging/kafka"
)

// StorageDriver выбирает backend KeyValueStorage для корзины.
type StorageDriver string

const (
	StorageDriverMemory   StorageDriver = "memory"
	StorageDriverFile     StorageDriver = "file"
	StorageDriverPostgres StorageDriver = "postgres"
	StorageDriverRedis    StorageDriver = "redis"
)

// Config описывает настройки запуска cart-service.
type Config struct {
	HTTPAddr    string
	MetricsAddr string

	StorageDriver StorageDriver
	StorageKey    string
	StorageDir    string

	PostgresDSN         string
	PostgresAutoMigrate bool

	RedisAddr string
	RedisTTL  time.Duration

	// Пустой InventoryURL включает in-memory mock (только для разработки).
	InventoryURL     string
	InventoryTimeout time.Duration

	// Пустой KafkaBrokers отключает outbox-публикацию уведомлений.
	KafkaBrokers      string
	NotificationTopic string

	OutboxPollInterval  time.Duration
	OutboxBatchSize     int
	OutboxMaxAttempts   int
	OutboxRetryDelay    time.Duration
	OutboxMaxPendingAge time.Duration

	// Sent/failed сообщения outbox старше OutboxRetention удаляются.
	OutboxRetention       time.Duration
	OutboxCleanupInterval time.Duration

	ShutdownTimeout time.Duration
}

// DefaultConfig возвращает настройки для локального запуска.
func DefaultConfig() Config {
	return Config{
		HTTPAddr:              ":8080",
		MetricsAddr:           ":9090",
		StorageDriver:         StorageDriverMemory,
		StorageKey:            domain.DefaultCartStorageKey,
		StorageDir:            "./data",
		PostgresAutoMigrate:   true,
		RedisAddr:             "localhost:6379",
		InventoryTimeout:      5 * time.Second,
		NotificationTopic:     kafka.TopicNotifications,
		OutboxPollInterval:    time.Second,
		OutboxBatchSize:       100,
		OutboxMaxAttempts:     3,
		OutboxRetryDelay:      50 * time.Millisecond,
		OutboxMaxPendingAge:   5 * time.Minute,
		OutboxRetention:       24 * time.Hour,
		OutboxCleanupInterval: 10 * time.Minute,
		ShutdownTimeout:       5 * time.Second,
	}
}
