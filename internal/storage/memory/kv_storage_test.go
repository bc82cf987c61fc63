package memory_test

import (
	"context"
	"errors"
	"testing"

	"github.com/vladislavdragonenkov/cartstore/internal/domain"
	"github.com/vladislavdragonenkov/cartstore/internal/storage/memory"
)

func TestKeyValueStorage_SetGet(t *testing.T) {
	storage := memory.NewKeyValueStorage()
	ctx := context.Background()

	if err := storage.Set(ctx, "cart", []byte(`[{"id":1,"amount":1}]`)); err != nil {
		t.Fatalf("set failed: %v", err)
	}

	value, err := storage.Get(ctx, "cart")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if string(value) != `[{"id":1,"amount":1}]` {
		t.Fatalf("unexpected value %s", value)
	}
}

func TestKeyValueStorage_GetMissing(t *testing.T) {
	storage := memory.NewKeyValueStorage()

	if _, err := storage.Get(context.Background(), "missing"); !errors.Is(err, domain.ErrStorageKeyNotFound) {
		t.Fatalf("expected ErrStorageKeyNotFound, got %v", err)
	}
}

func TestKeyValueStorage_Overwrite(t *testing.T) {
	storage := memory.NewKeyValueStorage()
	ctx := context.Background()

	_ = storage.Set(ctx, "cart", []byte("first"))
	_ = storage.Set(ctx, "cart", []byte("second"))

	value, err := storage.Get(ctx, "cart")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if string(value) != "second" {
		t.Fatalf("expected overwritten value, got %s", value)
	}
}

func TestKeyValueStorage_CopiesValues(t *testing.T) {
	storage := memory.NewKeyValueStorage()
	ctx := context.Background()

	input := []byte("abc")
	_ = storage.Set(ctx, "k", input)
	input[0] = 'x'

	value, _ := storage.Get(ctx, "k")
	if string(value) != "abc" {
		t.Fatalf("storage must keep its own copy, got %s", value)
	}

	value[1] = 'y'
	again, _ := storage.Get(ctx, "k")
	if string(again) != "abc" {
		t.Fatalf("get must return a copy, got %s", again)
	}
}

func TestKeyValueStorage_Delete(t *testing.T) {
	storage := memory.NewKeyValueStorage()
	ctx := context.Background()

	_ = storage.Set(ctx, "k", []byte("v"))
	if err := storage.Delete(ctx, "k"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, err := storage.Get(ctx, "k"); !errors.Is(err, domain.ErrStorageKeyNotFound) {
		t.Fatalf("expected key to be gone, got %v", err)
	}
	if err := storage.Delete(ctx, "k"); err != nil {
		t.Fatalf("deleting missing key must not fail: %v", err)
	}
}
