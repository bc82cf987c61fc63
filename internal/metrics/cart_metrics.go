package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/vladislavdragonenkov/cartstore/internal/domain"
)

// CartMetrics содержит метрики операций корзины и обращений к складу.
type CartMetrics struct {
	// Счётчик операций по типу и исходу
	operations *prometheus.CounterVec
	// Отдельно считаем уведомления покупателю
	notifications *prometheus.CounterVec

	// Время выполнения операций и запросов к inventory
	operationDuration *prometheus.HistogramVec
	inventoryDuration *prometheus.HistogramVec

	// Текущее состояние корзины
	cartItems prometheus.Gauge
	cartUnits prometheus.Gauge

	persistFailures prometheus.Counter
}

// NewCartMetrics создаёт метрики в DefaultRegisterer.
func NewCartMetrics() *CartMetrics {
	return NewCartMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewCartMetricsWithRegisterer создаёт метрики в указанном registerer.
// Повторная регистрация возвращает уже существующие коллекторы.
func NewCartMetricsWithRegisterer(registerer prometheus.Registerer) *CartMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &CartMetrics{
		operations: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "cart_operations_total",
			Help: "Total number of cart operations grouped by operation and result",
		}, []string{"operation", "result"}),
		notifications: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "cart_notifications_total",
			Help: "Total number of shopper notifications grouped by message",
		}, []string{"message"}),
		operationDuration: registerHistogramVec(registerer, prometheus.HistogramOpts{
			Name:    "cart_operation_duration_seconds",
			Help:    "Duration of cart operations in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}, []string{"operation"}),
		inventoryDuration: registerHistogramVec(registerer, prometheus.HistogramOpts{
			Name:    "cart_inventory_request_duration_seconds",
			Help:    "Duration of inventory service requests in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint", "result"}),
		cartItems: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "cart_items",
			Help: "Number of distinct products currently in the cart",
		}),
		cartUnits: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "cart_units",
			Help: "Total number of units currently in the cart",
		}),
		persistFailures: registerCounter(registerer, prometheus.CounterOpts{
			Name: "cart_persist_failures_total",
			Help: "Total number of failed cart writes to persistent storage",
		}),
	}
}

func registerCounter(registerer prometheus.Registerer, opts prometheus.CounterOpts) prometheus.Counter {
	collector := prometheus.NewCounter(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Counter)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter %q: %v", opts.Name, err))
	}
	return collector
}

func registerCounterVec(registerer prometheus.Registerer, opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	collector := prometheus.NewCounterVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.CounterVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter vec %q: %v", opts.Name, err))
	}
	return collector
}

func registerGauge(registerer prometheus.Registerer, opts prometheus.GaugeOpts) prometheus.Gauge {
	collector := prometheus.NewGauge(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Gauge)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register gauge %q: %v", opts.Name, err))
	}
	return collector
}

func registerHistogramVec(registerer prometheus.Registerer, opts prometheus.HistogramOpts, labels []string) *prometheus.HistogramVec {
	collector := prometheus.NewHistogramVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.HistogramVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register histogram vec %q: %v", opts.Name, err))
	}
	return collector
}

// RecordOperation увеличивает счётчик операций корзины.
func (m *CartMetrics) RecordOperation(op domain.CartOperation, result domain.OperationResult) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(string(op), string(result)).Inc()
}

// RecordOperationDuration записывает время выполнения операции.
func (m *CartMetrics) RecordOperationDuration(op domain.CartOperation, duration time.Duration) {
	if m == nil {
		return
	}
	m.operationDuration.WithLabelValues(string(op)).Observe(duration.Seconds())
}

// RecordNotification увеличивает счётчик уведомлений с данным текстом.
func (m *CartMetrics) RecordNotification(message string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(message).Inc()
}

// RecordInventoryRequest записывает длительность запроса к inventory-сервису.
func (m *CartMetrics) RecordInventoryRequest(endpoint string, err error, duration time.Duration) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.inventoryDuration.WithLabelValues(endpoint, result).Observe(duration.Seconds())
}

// RecordPersistFailure увеличивает счётчик неудачных записей корзины.
func (m *CartMetrics) RecordPersistFailure() {
	if m == nil {
		return
	}
	m.persistFailures.Inc()
}

// SetCartSize обновляет gauges размера корзины.
func (m *CartMetrics) SetCartSize(cart domain.Cart) {
	if m == nil {
		return
	}
	m.cartItems.Set(float64(len(cart)))
	m.cartUnits.Set(float64(cart.TotalUnits()))
}
