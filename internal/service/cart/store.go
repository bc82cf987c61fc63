// Package cart реализует хранилище состояния корзины покупателя:
// добавление, удаление и изменение количества товара с проверкой остатков
// на складе и сохранением корзины после каждой успешной операции.
package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/cartstore/internal/domain"
	"github.com/vladislavdragonenkov/cartstore/internal/metrics"
	"github.com/vladislavdragonenkov/cartstore/internal/service/notify"
)

// StoreOptions задаёт параметры Store.
type StoreOptions struct {
	Logger     *log.Entry
	Metrics    *metrics.CartMetrics
	StorageKey string
}

// Option настраивает Store.
type Option func(*StoreOptions)

// WithLogger задаёт logger для корзины.
func WithLogger(logger *log.Entry) Option {
	return func(opts *StoreOptions) {
		opts.Logger = logger
	}
}

// WithMetrics задаёт метрики корзины.
func WithMetrics(m *metrics.CartMetrics) Option {
	return func(opts *StoreOptions) {
		opts.Metrics = m
	}
}

// WithStorageKey задаёт ключ, под которым корзина лежит в хранилище.
func WithStorageKey(key string) Option {
	return func(opts *StoreOptions) {
		opts.StorageKey = key
	}
}

// Store хранит корзину в памяти и в KeyValueStorage.
//
// Операции над одним товаром сериализуются: чтение остатка, проверка и запись
// выполняются под мьютексом товара. Сама корзина меняется только заменой
// целиком (copy-on-write) под общим мьютексом, поэтому сохранённое значение
// всегда совпадает с корзиной в памяти.
type Store struct {
	mu   sync.RWMutex
	cart domain.Cart

	locks     *productLocks
	storage   domain.KeyValueStorage
	inventory domain.InventoryService
	notifier  domain.Notifier
	key       string
	logger    *log.Entry
	metrics   *metrics.CartMetrics
}

// NewStore создаёт корзину и один раз загружает её из хранилища.
// Отсутствующая или повреждённая запись даёт пустую корзину.
func NewStore(
	ctx context.Context,
	storage domain.KeyValueStorage,
	inventory domain.InventoryService,
	notifier domain.Notifier,
	options ...Option,
) *Store {
	opts := StoreOptions{StorageKey: domain.DefaultCartStorageKey}
	for _, option := range options {
		option(&opts)
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.WithField("component", "cart-store")
	}
	if opts.StorageKey == "" {
		opts.StorageKey = domain.DefaultCartStorageKey
	}
	if notifier == nil {
		notifier = notify.NewLogNotifier(logger)
	}

	s := &Store{
		locks:     newProductLocks(),
		storage:   storage,
		inventory: inventory,
		notifier:  notifier,
		key:       opts.StorageKey,
		logger:    logger.WithField("cart_key", opts.StorageKey),
		metrics:   opts.Metrics,
	}
	s.cart = s.load(ctx)
	s.metrics.SetCartSize(s.cart)

	return s
}

// Cart возвращает копию текущей корзины.
func (s *Store) Cart() domain.Cart {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cart.Clone()
}

// Key возвращает ключ корзины в хранилище.
func (s *Store) Key() string {
	return s.key
}

// AddProduct добавляет одну единицу товара. Новый товар попадает в конец
// корзины с количеством 1, если на складе есть хотя бы одна единица; уже
// имеющийся увеличивается на 1, только если текущее количество строго меньше
// остатка. Отказы и ошибки сообщаются через Notifier.
func (s *Store) AddProduct(ctx context.Context, productID int64) {
	start := time.Now()
	defer func() { s.metrics.RecordOperationDuration(domain.CartOperationAdd, time.Since(start)) }()

	unlock := s.locks.Lock(productID)
	defer unlock()

	logger := s.logger.WithFields(log.Fields{"operation": domain.CartOperationAdd, "product_id": productID})

	stock, err := s.inventory.Stock(ctx, productID)
	if err != nil {
		s.fail(logger, domain.CartOperationAdd, domain.MessageAddFailed, fmt.Errorf("fetch stock: %w", err))
		return
	}

	current := s.Cart()
	if idx := current.Find(productID); idx >= 0 {
		amount := current[idx].Amount
		if amount >= stock.Amount {
			s.reject(logger, domain.CartOperationAdd, domain.OperationResultOutOfStock, domain.MessageOutOfStock)
			return
		}
		if err := s.apply(ctx, func(c domain.Cart) domain.Cart {
			return c.WithAmount(productID, amount+1)
		}); err != nil {
			s.fail(logger, domain.CartOperationAdd, domain.MessageAddFailed, err)
			return
		}
		s.applied(logger, domain.CartOperationAdd, amount+1)
		return
	}

	if stock.Amount < 1 {
		s.reject(logger, domain.CartOperationAdd, domain.OperationResultOutOfStock, domain.MessageOutOfStock)
		return
	}

	product, err := s.inventory.Product(ctx, productID)
	if err != nil {
		s.fail(logger, domain.CartOperationAdd, domain.MessageAddFailed, fmt.Errorf("fetch product: %w", err))
		return
	}
	product.ID = productID
	product.Amount = 1

	if err := s.apply(ctx, func(c domain.Cart) domain.Cart {
		return c.Append(product)
	}); err != nil {
		s.fail(logger, domain.CartOperationAdd, domain.MessageAddFailed, err)
		return
	}
	s.applied(logger, domain.CartOperationAdd, 1)
}

// RemoveProduct удаляет позицию товара из корзины. Отсутствующий товар
// сообщается через Notifier.
func (s *Store) RemoveProduct(ctx context.Context, productID int64) {
	start := time.Now()
	defer func() { s.metrics.RecordOperationDuration(domain.CartOperationRemove, time.Since(start)) }()

	unlock := s.locks.Lock(productID)
	defer unlock()

	logger := s.logger.WithFields(log.Fields{"operation": domain.CartOperationRemove, "product_id": productID})

	if s.Cart().Find(productID) < 0 {
		s.reject(logger, domain.CartOperationRemove, domain.OperationResultNotFound, domain.MessageRemoveFailed)
		return
	}

	if err := s.apply(ctx, func(c domain.Cart) domain.Cart {
		return c.Without(productID)
	}); err != nil {
		s.fail(logger, domain.CartOperationRemove, domain.MessageRemoveFailed, err)
		return
	}
	s.applied(logger, domain.CartOperationRemove, 0)
}

// UpdateProductAmount устанавливает количество товара в amount.
// amount <= 0 игнорируется без уведомления. Товар, которого нет в корзине,
// тоже молча пропускается. Новое количество принимается, только если оно
// строго меньше остатка на складе.
func (s *Store) UpdateProductAmount(ctx context.Context, productID int64, amount int) {
	if amount <= 0 {
		s.metrics.RecordOperation(domain.CartOperationUpdate, domain.OperationResultIgnored)
		return
	}

	start := time.Now()
	defer func() { s.metrics.RecordOperationDuration(domain.CartOperationUpdate, time.Since(start)) }()

	unlock := s.locks.Lock(productID)
	defer unlock()

	logger := s.logger.WithFields(log.Fields{
		"operation":  domain.CartOperationUpdate,
		"product_id": productID,
		"amount":     amount,
	})

	stock, err := s.inventory.Stock(ctx, productID)
	if err != nil {
		s.fail(logger, domain.CartOperationUpdate, domain.MessageUpdateFailed, fmt.Errorf("fetch stock: %w", err))
		return
	}

	if s.Cart().Find(productID) < 0 {
		// TODO: RemoveProduct сообщает об отсутствующем товаре, здесь уведомления нет; согласовать с UI.
		logger.Debug("product is not in cart, update skipped")
		s.metrics.RecordOperation(domain.CartOperationUpdate, domain.OperationResultIgnored)
		return
	}

	if amount >= stock.Amount {
		s.reject(logger, domain.CartOperationUpdate, domain.OperationResultOutOfStock, domain.MessageOutOfStock)
		return
	}

	if err := s.apply(ctx, func(c domain.Cart) domain.Cart {
		return c.WithAmount(productID, amount)
	}); err != nil {
		s.fail(logger, domain.CartOperationUpdate, domain.MessageUpdateFailed, err)
		return
	}
	s.applied(logger, domain.CartOperationUpdate, amount)
}

// apply строит новую корзину из текущей, сохраняет её и только после
// успешной записи заменяет корзину в памяти.
func (s *Store) apply(ctx context.Context, mutate func(domain.Cart) domain.Cart) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := mutate(s.cart)
	if err := s.persist(ctx, next); err != nil {
		s.metrics.RecordPersistFailure()
		return err
	}

	s.cart = next
	s.metrics.SetCartSize(next)
	return nil
}

func (s *Store) persist(ctx context.Context, cart domain.Cart) error {
	data, err := encodeCart(cart)
	if err != nil {
		return err
	}
	if err := s.storage.Set(ctx, s.key, data); err != nil {
		return fmt.Errorf("persist cart: %w", err)
	}
	return nil
}

func (s *Store) load(ctx context.Context) domain.Cart {
	data, err := s.storage.Get(ctx, s.key)
	if err != nil {
		if !errors.Is(err, domain.ErrStorageKeyNotFound) {
			s.logger.WithError(err).Warn("failed to read persisted cart, starting with empty cart")
		}
		return domain.Cart{}
	}

	cart, err := decodeCart(data)
	if err != nil {
		s.logger.WithError(err).Warn("persisted cart is unreadable, starting with empty cart")
		return domain.Cart{}
	}

	s.logger.WithField("items", len(cart)).Info("cart restored from storage")
	return cart
}

func (s *Store) applied(logger *log.Entry, op domain.CartOperation, amount int) {
	s.metrics.RecordOperation(op, domain.OperationResultApplied)
	logger.WithField("new_amount", amount).Debug("cart updated")
}

func (s *Store) reject(logger *log.Entry, op domain.CartOperation, result domain.OperationResult, message string) {
	s.metrics.RecordOperation(op, result)
	logger.WithField("result", result).Debug("cart operation rejected")
	s.notify(message)
}

func (s *Store) fail(logger *log.Entry, op domain.CartOperation, message string, err error) {
	s.metrics.RecordOperation(op, domain.OperationResultFailed)
	logger.WithError(err).Warn("cart operation failed")
	s.notify(message)
}

func (s *Store) notify(message string) {
	s.metrics.RecordNotification(message)
	s.notifier.Notify(message)
}

// encodeCart сериализует корзину в JSON-массив позиций.
func encodeCart(cart domain.Cart) ([]byte, error) {
	if cart == nil {
		cart = domain.Cart{}
	}
	data, err := json.Marshal(cart)
	if err != nil {
		return nil, fmt.Errorf("encode cart: %w", err)
	}
	return data, nil
}

// decodeCart разбирает сохранённую корзину и проверяет её инварианты.
func decodeCart(data []byte) (domain.Cart, error) {
	var cart domain.Cart
	if err := json.Unmarshal(data, &cart); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidCart, err)
	}
	if errs := cart.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidCart, errors.Join(errs...))
	}
	if cart == nil {
		cart = domain.Cart{}
	}
	return cart, nil
}
