package memory

import (
	"context"
	"sync"

	"github.com/vladislavdragonenkov/cartstore/internal/domain"
)

// kvStorageInMemory — простая in-memory реализация KeyValueStorage.
type kvStorageInMemory struct {
	mu    sync.RWMutex
	items map[string][]byte
}

// NewKeyValueStorage возвращает in-memory хранилище для локальной разработки и тестов.
func NewKeyValueStorage() *kvStorageInMemory {
	return &kvStorageInMemory{
		items: make(map[string][]byte),
	}
}

// Get возвращает копию значения или ErrStorageKeyNotFound.
func (s *kvStorageInMemory) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, ok := s.items[key]
	if !ok {
		return nil, domain.ErrStorageKeyNotFound
	}
	return append([]byte(nil), value...), nil
}

// Set перезаписывает значение ключа.
func (s *kvStorageInMemory) Set(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Сохраняем копию, чтобы избежать непредсказуемых мутаций извне.
	s.items[key] = append([]byte(nil), value...)
	return nil
}

// Delete удаляет ключ; отсутствующий ключ не считается ошибкой.
func (s *kvStorageInMemory) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.items, key)
	return nil
}

var _ domain.KeyValueStorage = (*kvStorageInMemory)(nil)
