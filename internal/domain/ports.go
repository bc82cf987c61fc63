package domain

import (
	"context"
	"time"
)

// InventoryService описывает взаимодействие с сервисом остатков и каталога.
type InventoryService interface {
	// Stock возвращает текущий остаток товара на складе.
	Stock(ctx context.Context, productID int64) (Stock, error)
	// Product возвращает карточку товара.
	Product(ctx context.Context, productID int64) (Product, error)
}

// Notifier принимает человекочитаемые сообщения об отклонённых операциях.
// Вызов не должен блокироваться надолго и ничего не возвращает.
type Notifier interface {
	Notify(message string)
}

// KeyValueStorage — хранилище сериализованной корзины (аналог localStorage).
type KeyValueStorage interface {
	// Get возвращает значение ключа или ErrStorageKeyNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set полностью перезаписывает значение ключа.
	Set(ctx context.Context, key string, value []byte) error
}

// OutboxPublisher публикует события из transactional outbox.
type OutboxPublisher interface {
	// Publish передаёт событие наружу; должен быть идемпотентным.
	Publish(event OutboxMessage) error
}

// OutboxRepository позволяет сохранять события для последующей публикации.
type OutboxRepository interface {
	Enqueue(msg OutboxMessage) (OutboxMessage, error)
	PullPending(limit int) ([]OutboxMessage, error)
	Stats() (OutboxStats, error)
	MarkSent(id string) error
	MarkFailed(id string) error
}

// OutboxCleaner удаляет обработанные (sent/failed) сообщения outbox.
type OutboxCleaner interface {
	// DeleteProcessedBefore удаляет до limit записей, обновлённых раньше before,
	// и возвращает число удалённых.
	DeleteProcessedBefore(before time.Time, limit int) (int, error)
}

// CartOperation задаёт константы операций корзины для метрик/логов.
type CartOperation string

const (
	CartOperationAdd    CartOperation = "add"
	CartOperationRemove CartOperation = "remove"
	CartOperationUpdate CartOperation = "update"
)

// OperationResult описывает исход операции корзины.
type OperationResult string

const (
	OperationResultApplied    OperationResult = "applied"
	OperationResultOutOfStock OperationResult = "out_of_stock"
	OperationResultNotFound   OperationResult = "not_found"
	OperationResultIgnored    OperationResult = "ignored"
	OperationResultFailed     OperationResult = "failed"
)

// OutboxMessage хранит данные для публикуемого события.
type OutboxMessage struct {
	ID            string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// OutboxStats описывает текущее состояние backlog transactional outbox.
type OutboxStats struct {
	PendingCount    int
	OldestPendingAt time.Time
}
