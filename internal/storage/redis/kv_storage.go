// Package redis хранит корзину в Redis через go-redis.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/vladislavdragonenkov/cartstore/internal/domain"
)

// KeyValueStorage реализует domain.KeyValueStorage поверх Redis GET/SET.
type KeyValueStorage struct {
	client *goredis.Client
	ttl    time.Duration
}

// NewKeyValueStorage создаёт хранилище. ttl <= 0 означает хранение без срока жизни.
func NewKeyValueStorage(client *goredis.Client, ttl time.Duration) *KeyValueStorage {
	if ttl < 0 {
		ttl = 0
	}
	return &KeyValueStorage{client: client, ttl: ttl}
}

// Open подключается к Redis по адресу addr и проверяет соединение.
func Open(ctx context.Context, addr string, ttl time.Duration) (*KeyValueStorage, error) {
	client := goredis.NewClient(&goredis.Options{Addr: addr})
	storage := NewKeyValueStorage(client, ttl)
	if err := storage.Ping(ctx); err != nil {
		_ = client.Close()
		return nil, err
	}
	return storage, nil
}

// Get возвращает значение ключа или ErrStorageKeyNotFound.
func (s *KeyValueStorage) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, domain.ErrStorageKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}
	return data, nil
}

// Set перезаписывает значение; при заданном TTL срок жизни продлевается при каждой записи.
func (s *KeyValueStorage) Set(ctx context.Context, key string, value []byte) error {
	if err := s.client.Set(ctx, key, value, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

// Delete удаляет ключ.
func (s *KeyValueStorage) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

// Ping проверяет доступность Redis.
func (s *KeyValueStorage) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

// Close закрывает клиент.
func (s *KeyValueStorage) Close() error {
	return s.client.Close()
}

var _ domain.KeyValueStorage = (*KeyValueStorage)(nil)
