package domain

// Сообщения, которые корзина передаёт в Notifier. Тексты видит покупатель.
const (
	MessageOutOfStock   = "requested quantity is out of stock"
	MessageAddFailed    = "error adding product"
	MessageRemoveFailed = "error removing product"
	MessageUpdateFailed = "error changing product quantity"
)

// DefaultCartStorageKey — ключ, под которым корзина лежит в хранилище.
const DefaultCartStorageKey = "@RocketShoes:cart"
