package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/cartstore/internal/app"
	"github.com/vladislavdragonenkov/cartstore/internal/version"
)

const (
	envHTTPAddr            = "CART_HTTP_ADDR"
	envMetricsAddr         = "CART_METRICS_ADDR"
	envLogLevel            = "CART_LOG_LEVEL"
	envStorageDriver       = "CART_STORAGE_DRIVER"
	envStorageKey          = "CART_STORAGE_KEY"
	envStorageDir          = "CART_STORAGE_DIR"
	envPostgresDSN         = "CART_POSTGRES_DSN"
	envPostgresAutoMigrate = "CART_POSTGRES_AUTO_MIGRATE"
	envRedisAddr           = "CART_REDIS_ADDR"
	envRedisTTL            = "CART_REDIS_TTL"
	envInventoryURL        = "CART_INVENTORY_URL"
	envInventoryTimeout    = "CART_INVENTORY_TIMEOUT"
	envKafkaBrokers        = "CART_KAFKA_BROKERS"
	envNotificationTopic   = "CART_NOTIFICATION_TOPIC"
	envOutboxPollInterval  = "CART_OUTBOX_POLL_INTERVAL"
	envOutboxBatchSize     = "CART_OUTBOX_BATCH_SIZE"
	envOutboxMaxAttempts   = "CART_OUTBOX_MAX_ATTEMPTS"
	envOutboxRetryDelay    = "CART_OUTBOX_RETRY_DELAY"
	envOutboxMaxPendingAge = "CART_OUTBOX_MAX_PENDING_AGE"
	envOutboxRetention     = "CART_OUTBOX_RETENTION"
	envOutboxCleanup       = "CART_OUTBOX_CLEANUP_INTERVAL"
)

type envLookup func(key string) (string, bool)

// setupLogger настраивает формат и уровень логирования для сервиса.
func setupLogger(level string) {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.SetLevel(log.InfoLevel)
	if level == "" {
		return
	}
	parsed, err := log.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		log.WithError(err).Warn("invalid log level, using info")
		return
	}
	log.SetLevel(parsed)
}

// readConfig формирует конфигурацию приложения из переменных окружения CART_*.
func readConfig() app.Config {
	cfg, warnings := readConfigFromEnv(os.LookupEnv)
	for _, warning := range warnings {
		log.Warn(warning)
	}
	return cfg
}

// readConfigFromEnv применяет переопределения поверх DefaultConfig.
// Некорректные значения игнорируются с предупреждением.
func readConfigFromEnv(lookup envLookup) (app.Config, []string) {
	cfg := app.DefaultConfig()
	var warnings []string

	warn := func(key, value string, err error) {
		warnings = append(warnings, fmt.Sprintf("ignoring %s=%q: %v", key, value, err))
	}
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	positiveInt := func(key string, dst *int) {
		if v, ok := lookup(key); ok {
			value, err := parseInt(v, func(n int) bool { return n > 0 }, "must be > 0")
			if err != nil {
				warn(key, v, err)
				return
			}
			*dst = value
		}
	}
	duration := func(key string, dst *time.Duration, valid func(time.Duration) bool, rule string) {
		if v, ok := lookup(key); ok {
			value, err := parseDuration(v, valid, rule)
			if err != nil {
				warn(key, v, err)
				return
			}
			*dst = value
		}
	}
	positive := func(v time.Duration) bool { return v > 0 }
	nonNegative := func(v time.Duration) bool { return v >= 0 }

	str(envHTTPAddr, &cfg.HTTPAddr)
	str(envMetricsAddr, &cfg.MetricsAddr)

	if v, ok := lookup(envStorageDriver); ok && strings.TrimSpace(v) != "" {
		cfg.StorageDriver = app.StorageDriver(strings.ToLower(strings.TrimSpace(v)))
	}
	str(envStorageKey, &cfg.StorageKey)
	str(envStorageDir, &cfg.StorageDir)

	str(envPostgresDSN, &cfg.PostgresDSN)
	if v, ok := lookup(envPostgresAutoMigrate); ok {
		value, err := parseBool(v)
		if err != nil {
			warn(envPostgresAutoMigrate, v, err)
		} else {
			cfg.PostgresAutoMigrate = value
		}
	}

	str(envRedisAddr, &cfg.RedisAddr)
	duration(envRedisTTL, &cfg.RedisTTL, nonNegative, "must be >= 0")

	str(envInventoryURL, &cfg.InventoryURL)
	duration(envInventoryTimeout, &cfg.InventoryTimeout, positive, "must be > 0")

	str(envKafkaBrokers, &cfg.KafkaBrokers)
	str(envNotificationTopic, &cfg.NotificationTopic)

	duration(envOutboxPollInterval, &cfg.OutboxPollInterval, positive, "must be > 0")
	positiveInt(envOutboxBatchSize, &cfg.OutboxBatchSize)
	positiveInt(envOutboxMaxAttempts, &cfg.OutboxMaxAttempts)
	duration(envOutboxRetryDelay, &cfg.OutboxRetryDelay, nonNegative, "must be >= 0")
	duration(envOutboxMaxPendingAge, &cfg.OutboxMaxPendingAge, positive, "must be > 0")
	duration(envOutboxRetention, &cfg.OutboxRetention, positive, "must be > 0")
	duration(envOutboxCleanup, &cfg.OutboxCleanupInterval, positive, "must be > 0")

	return cfg, warnings
}

func parseBool(raw string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes", "on":
		return true, nil
	case "0", "false", "no", "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid bool value %q", raw)
	}
}

func parseInt(raw string, valid func(int) bool, rule string) (int, error) {
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, err
	}
	if !valid(value) {
		return 0, errors.New(rule)
	}
	return value, nil
}

func parseDuration(raw string, valid func(time.Duration) bool, rule string) (time.Duration, error) {
	value, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, err
	}
	if !valid(value) {
		return 0, errors.New(rule)
	}
	return value, nil
}

func main() {
	level, _ := os.LookupEnv(envLogLevel)
	setupLogger(level)
	cfg := readConfig()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.WithFields(log.Fields{
		"http_addr":      cfg.HTTPAddr,
		"metrics_addr":   cfg.MetricsAddr,
		"storage_driver": cfg.StorageDriver,
		"storage_key":    cfg.StorageKey,
		"version":        version.String(),
	}).Info("запускаем cart-service")

	if err := app.Run(ctx, cfg); err != nil && !errors.Is(err, context.Canceled) {
		log.WithError(err).Fatal("приложение завершилось с ошибкой")
	}

	log.Info("cart-service остановлен")
}
