package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/cartstore/internal/domain"
)

// KeyValueStorage хранит сериализованную корзину в таблице cart_storage.
type KeyValueStorage struct {
	db *sql.DB
}

// NewKeyValueStorage создаёт PostgreSQL-реализацию domain.KeyValueStorage.
func NewKeyValueStorage(store *Store) *KeyValueStorage {
	return &KeyValueStorage{db: store.DB()}
}

// Get возвращает значение ключа или ErrStorageKeyNotFound.
func (s *KeyValueStorage) Get(ctx context.Context, key string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var value []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT value
		FROM cart_storage
		WHERE key = $1
	`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrStorageKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get cart storage key %q: %w", key, err)
	}
	return value, nil
}

// Set перезаписывает значение ключа целиком.
// Значение должно быть валидным JSON: колонка value имеет тип JSONB.
func (s *KeyValueStorage) Set(ctx context.Context, key string, value []byte) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cart_storage (key, value, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE
		SET value = EXCLUDED.value,
		    updated_at = EXCLUDED.updated_at
	`, key, string(value), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("set cart storage key %q: %w", key, err)
	}
	return nil
}

// Delete удаляет ключ; отсутствие ключа не считается ошибкой.
func (s *KeyValueStorage) Delete(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if _, err := s.db.ExecContext(ctx, `DELETE FROM cart_storage WHERE key = $1`, key); err != nil {
		return fmt.Errorf("delete cart storage key %q: %w", key, err)
	}
	return nil
}

var _ domain.KeyValueStorage = (*KeyValueStorage)(nil)
