package app

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	healthcheck "github.com/vladislavdragonenkov/cartstore/internal/health"
	"github.com/vladislavdragonenkov/cartstore/internal/service/rest"
)

const (
	storagePingTimeout     = 2 * time.Second
	defaultShutdownTimeout = 5 * time.Second
)

// Run поднимает HTTP API корзины, сервер метрик и outbox worker и блокируется
// до отмены ctx или падения API-сервера.
func Run(ctx context.Context, cfg Config) error {
	logger := log.WithField("component", "app")

	runtime, err := initRuntimeDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer runtime.close(logger)

	// Ошибка Kafka не фатальна: уведомления продолжают идти в лог.
	producer, _ := initKafkaProducer(cfg.KafkaBrokers, logger)
	defer closeKafka(producer, logger)

	deps, err := NewDependencies(ctx, cfg, runtime, producer, logger)
	if err != nil {
		return err
	}

	metricsSrv := startMetricsServer(ctx, cfg.MetricsAddr, logger, deps.Health)

	var (
		workerCancel context.CancelFunc
		workerDone   chan struct{}
	)
	if deps.Worker != nil {
		var workerCtx context.Context
		workerCtx, workerCancel = context.WithCancel(context.Background())
		workerDone = make(chan struct{})
		go func() {
			defer close(workerDone)
			var wg sync.WaitGroup
			if deps.Cleanup != nil {
				wg.Add(1)
				go func() {
					defer wg.Done()
					deps.Cleanup.Run(workerCtx)
				}()
			}
			deps.Worker.Run(workerCtx)
			wg.Wait()
		}()
		logger.WithField("topic", cfg.NotificationTopic).Info("outbox worker started")
	}

	router := rest.NewRouter(rest.NewHandler(deps.Store, logger.WithField("layer", "rest")))
	apiSrv := &http.Server{
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	lis, err := net.Listen("tcp", cfg.HTTPAddr)
	if err != nil {
		shutdownOutboxWorker(workerCancel, workerDone, logger)
		shutdownHTTP(metricsSrv, logger)
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("HTTP API корзины слушает %s", lis.Addr())
		errCh <- apiSrv.Serve(lis)
	}()

	shutdownTimeout := cfg.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = defaultShutdownTimeout
	}

	select {
	case <-ctx.Done():
		logger.Info("получен сигнал остановки, останавливаем HTTP API")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := apiSrv.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Warn("graceful stop превысил таймаут, принудительно останавливаем")
			_ = apiSrv.Close()
		}
		shutdownOutboxWorker(workerCancel, workerDone, logger)
		shutdownHTTP(metricsSrv, logger)
		return ctx.Err()
	case err := <-errCh:
		shutdownOutboxWorker(workerCancel, workerDone, logger)
		shutdownHTTP(metricsSrv, logger)
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// shutdownOutboxWorker останавливает worker и cleanup и ждёт завершения текущего цикла.
func shutdownOutboxWorker(cancel context.CancelFunc, done <-chan struct{}, logger *log.Entry) {
	if cancel == nil {
		return
	}
	cancel()
	if done == nil {
		return
	}
	select {
	case <-done:
		logger.Info("outbox worker stopped")
	case <-time.After(defaultShutdownTimeout):
		logger.Warn("outbox worker did not stop in time")
	}
}

// startMetricsServer запускает HTTP-обработчик /metrics для Prometheus и health-пробы.
func startMetricsServer(ctx context.Context, addr string, logger *log.Entry, healthHandler *healthcheck.Handler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", healthHandler)
	mux.HandleFunc("/livez", healthcheck.LivenessHandler)
	mux.HandleFunc("/readyz", healthHandler.ReadinessHandler)

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logger.Infof("метрики доступны по адресу %s/metrics", addr)
		logger.Infof("health checks: %s/healthz, %s/livez, %s/readyz", addr, addr, addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Warn("metrics server failed")
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownHTTP(srv, logger)
	}()

	return srv
}

// shutdownHTTP аккуратно останавливает HTTP-сервер.
func shutdownHTTP(srv *http.Server, logger *log.Entry) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Warn("metrics shutdown with error")
	}
}
