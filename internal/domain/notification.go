package domain

import "time"

const (
	// NotificationAggregateType — тип агрегата outbox-сообщений с уведомлениями.
	NotificationAggregateType = "cart"
	// NotificationEventType — тип события «корзина отклонила операцию».
	NotificationEventType = "cart.notification"
)

// Notification — полезная нагрузка outbox-сообщения с уведомлением покупателю.
type Notification struct {
	ID         string    `json:"id"`
	CartKey    string    `json:"cart_key"`
	Message    string    `json:"message"`
	OccurredAt time.Time `json:"occurred_at"`
}
