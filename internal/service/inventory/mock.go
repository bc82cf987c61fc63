package inventory

import (
	"context"
	"fmt"
	"sync"

	"github.com/vladislavdragonenkov/cartstore/internal/domain"
)

// MockService — конфигурируемая in-memory заглушка InventoryService
// для тестов и локального запуска без inventory-сервиса.
type MockService struct {
	mu       sync.Mutex
	stocks   map[int64]int
	products map[int64]domain.Product

	StockErr   error
	ProductErr error

	StockCalls   int
	ProductCalls int
}

// NewMockService возвращает mock с пустым каталогом.
func NewMockService() *MockService {
	return &MockService{
		stocks:   make(map[int64]int),
		products: make(map[int64]domain.Product),
	}
}

// SetStock задаёт остаток товара.
func (m *MockService) SetStock(productID int64, amount int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stocks[productID] = amount
}

// SetProduct кладёт карточку товара в каталог.
func (m *MockService) SetProduct(product domain.Product) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products[product.ID] = product.Clone()
}

// Stock возвращает настроенный остаток либо ErrProductNotFound.
func (m *MockService) Stock(_ context.Context, productID int64) (domain.Stock, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.StockCalls++
	if m.StockErr != nil {
		return domain.Stock{}, m.StockErr
	}
	amount, ok := m.stocks[productID]
	if !ok {
		return domain.Stock{}, fmt.Errorf("%w: stock/%d", domain.ErrProductNotFound, productID)
	}
	return domain.Stock{ID: productID, Amount: amount}, nil
}

// Product возвращает копию карточки товара либо ErrProductNotFound.
func (m *MockService) Product(_ context.Context, productID int64) (domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ProductCalls++
	if m.ProductErr != nil {
		return domain.Product{}, m.ProductErr
	}
	product, ok := m.products[productID]
	if !ok {
		return domain.Product{}, fmt.Errorf("%w: products/%d", domain.ErrProductNotFound, productID)
	}
	return product.Clone(), nil
}

// Calls возвращает счётчики вызовов под мьютексом.
func (m *MockService) Calls() (stock, product int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.StockCalls, m.ProductCalls
}

var _ domain.InventoryService = (*MockService)(nil)
