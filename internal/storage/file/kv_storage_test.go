package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/cartstore/internal/domain"
)

func TestStorage_SetGet(t *testing.T) {
	storage, err := NewStorage(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, storage.Set(ctx, domain.DefaultCartStorageKey, []byte(`[{"id":1,"amount":2}]`)))

	value, err := storage.Get(ctx, domain.DefaultCartStorageKey)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":1,"amount":2}]`, string(value))
}

func TestStorage_GetMissing(t *testing.T) {
	storage, err := NewStorage(t.TempDir())
	require.NoError(t, err)

	_, err = storage.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrStorageKeyNotFound)
}

func TestStorage_OverwriteLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	storage, err := NewStorage(dir)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, storage.Set(ctx, "k", []byte("first")))
	require.NoError(t, storage.Set(ctx, "k", []byte("second")))

	value, err := storage.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "second", string(value))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "k.json", entries[0].Name())
}

func TestStorage_EscapesKey(t *testing.T) {
	dir := t.TempDir()
	storage, err := NewStorage(dir)
	require.NoError(t, err)

	require.NoError(t, storage.Set(context.Background(), "../escape/me", []byte("x")))

	_, err = os.Stat(filepath.Join(dir, "..%2Fescape%2Fme.json"))
	assert.NoError(t, err)
}

func TestStorage_CreatesDirAndPings(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "carts")

	storage, err := NewStorage(dir)
	require.NoError(t, err)
	assert.NoError(t, storage.Ping())
}

func TestNewStorage_RequiresDir(t *testing.T) {
	_, err := NewStorage("")
	assert.Error(t, err)
}

func TestStorage_CanceledContext(t *testing.T) {
	storage, err := NewStorage(t.TempDir())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, storage.Set(ctx, "k", []byte("v")), context.Canceled)
	_, err = storage.Get(ctx, "k")
	assert.ErrorIs(t, err, context.Canceled)
}
