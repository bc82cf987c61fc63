package domain

import "errors"

var (
	// ErrCartDuplicateProduct — в корзине несколько позиций одного товара.
	ErrCartDuplicateProduct = errors.New("cart contains duplicate product")
	// ErrCartAmountInvalid — количество товара в позиции не положительное.
	ErrCartAmountInvalid = errors.New("cart item amount must be greater than zero")
	// ErrInvalidCart — сохранённая корзина не читается или нарушает инварианты.
	ErrInvalidCart = errors.New("invalid persisted cart")
	// ErrStorageKeyNotFound возвращается хранилищем, если ключ ещё не записывался.
	ErrStorageKeyNotFound = errors.New("storage key not found")
	// ErrProductNotFound — inventory-сервис не знает такой товар.
	ErrProductNotFound = errors.New("product not found")
	// ErrInventoryUnavailable — inventory-сервис ответил ошибкой или недоступен.
	ErrInventoryUnavailable = errors.New("inventory unavailable")
	// ErrOutboxPublish — ошибка при публикации сообщения из outbox.
	ErrOutboxPublish = errors.New("outbox publish failed")
)

// IsNotFound сообщает, что ошибка означает отсутствие товара или ключа хранилища.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrProductNotFound) || errors.Is(err, ErrStorageKeyNotFound)
}
