package cart

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/cartstore/internal/domain"
	"github.com/vladislavdragonenkov/cartstore/internal/metrics"
	"github.com/vladislavdragonenkov/cartstore/internal/service/inventory"
	"github.com/vladislavdragonenkov/cartstore/internal/service/notify"
	"github.com/vladislavdragonenkov/cartstore/internal/storage/memory"
)

type fixture struct {
	storage   domain.KeyValueStorage
	inventory *inventory.MockService
	notifier  *notify.Recorder
	metrics   *metrics.CartMetrics
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return &fixture{
		storage:   memory.NewKeyValueStorage(),
		inventory: inventory.NewMockService(),
		notifier:  notify.NewRecorder(),
		metrics:   metrics.NewCartMetricsWithRegisterer(prometheus.NewRegistry()),
	}
}

func (f *fixture) seed(t *testing.T, cart domain.Cart) {
	t.Helper()
	data, err := json.Marshal(cart)
	require.NoError(t, err)
	require.NoError(t, f.storage.Set(context.Background(), domain.DefaultCartStorageKey, data))
}

func (f *fixture) product(id int64, stock int) {
	f.inventory.SetStock(id, stock)
	f.inventory.SetProduct(domain.Product{
		ID: id,
		Attributes: map[string]json.RawMessage{
			"title": json.RawMessage(`"Tênis de Caminhada Leve Confortável"`),
			"price": json.RawMessage(`179.9`),
		},
	})
}

func (f *fixture) store(t *testing.T) *Store {
	t.Helper()
	return NewStore(context.Background(), f.storage, f.inventory, f.notifier, WithMetrics(f.metrics))
}

func (f *fixture) persisted(t *testing.T) domain.Cart {
	t.Helper()
	data, err := f.storage.Get(context.Background(), domain.DefaultCartStorageKey)
	require.NoError(t, err)
	cart, err := decodeCart(data)
	require.NoError(t, err)
	return cart
}

// ids сводит корзину к парам id/amount для коротких сравнений.
func ids(cart domain.Cart) [][2]int64 {
	out := make([][2]int64, 0, len(cart))
	for _, item := range cart {
		out = append(out, [2]int64{item.ID, int64(item.Amount)})
	}
	return out
}

type failingStorage struct {
	domain.KeyValueStorage
	getErr error
	setErr error
}

func (s *failingStorage) Get(ctx context.Context, key string) ([]byte, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	return s.KeyValueStorage.Get(ctx, key)
}

func (s *failingStorage) Set(ctx context.Context, key string, value []byte) error {
	if s.setErr != nil {
		return s.setErr
	}
	return s.KeyValueStorage.Set(ctx, key, value)
}

func TestNewStore_EmptyWhenNothingPersisted(t *testing.T) {
	f := newFixture(t)

	store := f.store(t)

	assert.Empty(t, store.Cart())
	assert.NotNil(t, store.Cart())
	assert.Equal(t, domain.DefaultCartStorageKey, store.Key())
}

func TestNewStore_RestoresPersistedCart(t *testing.T) {
	f := newFixture(t)
	f.seed(t, domain.Cart{{ID: 1, Amount: 2}, {ID: 3, Amount: 1}})

	store := f.store(t)

	assert.Equal(t, [][2]int64{{1, 2}, {3, 1}}, ids(store.Cart()))
}

func TestNewStore_CorruptStorageStartsEmpty(t *testing.T) {
	cases := map[string]string{
		"not json":          `{{{`,
		"object":            `{"id":1}`,
		"duplicate product": `[{"id":1,"amount":1},{"id":1,"amount":2}]`,
		"zero amount":       `[{"id":1,"amount":0}]`,
		"missing id":        `[{"amount":1}]`,
	}

	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t)
			require.NoError(t, f.storage.Set(context.Background(), domain.DefaultCartStorageKey, []byte(raw)))

			store := f.store(t)

			assert.Empty(t, store.Cart())
			assert.Zero(t, f.notifier.Len())
		})
	}
}

func TestNewStore_StorageReadErrorStartsEmpty(t *testing.T) {
	f := newFixture(t)
	f.storage = &failingStorage{KeyValueStorage: f.storage, getErr: errors.New("connection refused")}

	store := f.store(t)

	assert.Empty(t, store.Cart())
}

func TestNewStore_CustomKey(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.storage.Set(context.Background(), "other", []byte(`[{"id":9,"amount":1}]`)))

	store := NewStore(context.Background(), f.storage, f.inventory, f.notifier, WithStorageKey("other"))

	assert.Equal(t, "other", store.Key())
	assert.Equal(t, [][2]int64{{9, 1}}, ids(store.Cart()))
}

func TestAddProduct_NewProduct(t *testing.T) {
	f := newFixture(t)
	f.product(1, 5)
	store := f.store(t)

	store.AddProduct(context.Background(), 1)

	cart := store.Cart()
	require.Len(t, cart, 1)
	assert.Equal(t, int64(1), cart[0].ID)
	assert.Equal(t, 1, cart[0].Amount)
	title, ok := cart[0].Attribute("title")
	require.True(t, ok)
	assert.JSONEq(t, `"Tênis de Caminhada Leve Confortável"`, string(title))
	assert.Zero(t, f.notifier.Len())
	assert.Equal(t, ids(cart), ids(f.persisted(t)))
}

func TestAddProduct_AppendsAtEnd(t *testing.T) {
	f := newFixture(t)
	f.seed(t, domain.Cart{{ID: 5, Amount: 1}, {ID: 2, Amount: 1}})
	f.product(1, 3)
	store := f.store(t)

	store.AddProduct(context.Background(), 1)

	assert.Equal(t, [][2]int64{{5, 1}, {2, 1}, {1, 1}}, ids(store.Cart()))
}

func TestAddProduct_ExistingIncrementsWhileBelowStock(t *testing.T) {
	cases := []struct {
		name    string
		current int
		stock   int
		want    int
		notify  bool
	}{
		{name: "well below stock", current: 1, stock: 5, want: 2},
		{name: "one below stock", current: 4, stock: 5, want: 5},
		{name: "equal to stock", current: 5, stock: 5, want: 5, notify: true},
		{name: "above stock", current: 6, stock: 5, want: 6, notify: true},
		{name: "stock exhausted", current: 1, stock: 0, want: 1, notify: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			f.seed(t, domain.Cart{{ID: 1, Amount: tc.current}})
			f.product(1, tc.stock)
			store := f.store(t)

			store.AddProduct(context.Background(), 1)

			assert.Equal(t, [][2]int64{{1, int64(tc.want)}}, ids(store.Cart()))
			assert.Equal(t, ids(store.Cart()), ids(f.persisted(t)))
			if tc.notify {
				assert.Equal(t, []string{domain.MessageOutOfStock}, f.notifier.Messages())
			} else {
				assert.Zero(t, f.notifier.Len())
			}
		})
	}
}

func TestAddProduct_ExistingDoesNotRefetchProduct(t *testing.T) {
	f := newFixture(t)
	f.seed(t, domain.Cart{{ID: 1, Amount: 1}})
	f.product(1, 5)
	store := f.store(t)

	store.AddProduct(context.Background(), 1)

	stockCalls, productCalls := f.inventory.Calls()
	assert.Equal(t, 1, stockCalls)
	assert.Zero(t, productCalls)
}

func TestAddProduct_NewProductOutOfStock(t *testing.T) {
	f := newFixture(t)
	f.product(1, 0)
	store := f.store(t)

	store.AddProduct(context.Background(), 1)

	assert.Empty(t, store.Cart())
	assert.Equal(t, []string{domain.MessageOutOfStock}, f.notifier.Messages())
	_, productCalls := f.inventory.Calls()
	assert.Zero(t, productCalls, "product must not be fetched when stock is exhausted")
	_, err := f.storage.Get(context.Background(), domain.DefaultCartStorageKey)
	assert.ErrorIs(t, err, domain.ErrStorageKeyNotFound, "nothing must be persisted on rejection")
}

func TestAddProduct_Failures(t *testing.T) {
	cases := []struct {
		name  string
		setup func(f *fixture)
	}{
		{
			name:  "stock fetch fails",
			setup: func(f *fixture) { f.inventory.StockErr = domain.ErrInventoryUnavailable },
		},
		{
			name: "unknown product",
			setup: func(f *fixture) {
				f.inventory.SetStock(1, 3)
			},
		},
		{
			name: "product fetch fails",
			setup: func(f *fixture) {
				f.product(1, 3)
				f.inventory.ProductErr = errors.New("malformed response")
			},
		},
		{
			name: "persist fails",
			setup: func(f *fixture) {
				f.product(1, 3)
				f.storage = &failingStorage{KeyValueStorage: f.storage, setErr: errors.New("disk full")}
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			tc.setup(f)
			store := f.store(t)

			store.AddProduct(context.Background(), 1)

			assert.Empty(t, store.Cart())
			assert.Equal(t, []string{domain.MessageAddFailed}, f.notifier.Messages())
		})
	}
}

func TestAddProduct_ForcesRequestedID(t *testing.T) {
	f := newFixture(t)
	f.inventory.SetStock(1, 2)
	f.inventory.SetProduct(domain.Product{ID: 1, Amount: 40})
	store := f.store(t)

	store.AddProduct(context.Background(), 1)

	assert.Equal(t, [][2]int64{{1, 1}}, ids(store.Cart()), "catalog amount must be replaced with 1")
}

func TestRemoveProduct(t *testing.T) {
	f := newFixture(t)
	f.seed(t, domain.Cart{{ID: 1, Amount: 1}, {ID: 2, Amount: 4}, {ID: 3, Amount: 2}})
	store := f.store(t)

	store.RemoveProduct(context.Background(), 2)

	assert.Equal(t, [][2]int64{{1, 1}, {3, 2}}, ids(store.Cart()))
	assert.Equal(t, ids(store.Cart()), ids(f.persisted(t)))
	assert.Zero(t, f.notifier.Len())
	stockCalls, _ := f.inventory.Calls()
	assert.Zero(t, stockCalls, "remove must not consult inventory")
}

func TestRemoveProduct_LastItem(t *testing.T) {
	f := newFixture(t)
	f.seed(t, domain.Cart{{ID: 2, Amount: 1}})
	store := f.store(t)

	store.RemoveProduct(context.Background(), 2)

	assert.Empty(t, store.Cart())
	data, err := f.storage.Get(context.Background(), domain.DefaultCartStorageKey)
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(data))
}

func TestRemoveProduct_Absent(t *testing.T) {
	f := newFixture(t)
	f.seed(t, domain.Cart{{ID: 1, Amount: 1}})
	store := f.store(t)

	store.RemoveProduct(context.Background(), 7)

	assert.Equal(t, [][2]int64{{1, 1}}, ids(store.Cart()))
	assert.Equal(t, []string{domain.MessageRemoveFailed}, f.notifier.Messages())
}

func TestRemoveProduct_PersistFails(t *testing.T) {
	f := newFixture(t)
	f.seed(t, domain.Cart{{ID: 1, Amount: 1}})
	f.storage = &failingStorage{KeyValueStorage: f.storage, setErr: errors.New("read-only")}
	store := f.store(t)

	store.RemoveProduct(context.Background(), 1)

	assert.Equal(t, [][2]int64{{1, 1}}, ids(store.Cart()))
	assert.Equal(t, []string{domain.MessageRemoveFailed}, f.notifier.Messages())
}

func TestUpdateProductAmount_NonPositiveIsIgnored(t *testing.T) {
	for _, amount := range []int{0, -1, -100} {
		f := newFixture(t)
		f.seed(t, domain.Cart{{ID: 1, Amount: 2}})
		f.product(1, 10)
		store := f.store(t)

		store.UpdateProductAmount(context.Background(), 1, amount)

		assert.Equal(t, [][2]int64{{1, 2}}, ids(store.Cart()))
		assert.Zero(t, f.notifier.Len())
		stockCalls, _ := f.inventory.Calls()
		assert.Zero(t, stockCalls, "amount %d must return before fetching stock", amount)
	}
}

func TestUpdateProductAmount_AgainstStock(t *testing.T) {
	cases := []struct {
		name   string
		target int
		stock  int
		want   int
		notify bool
	}{
		{name: "below stock", target: 3, stock: 10, want: 3},
		{name: "decrease", target: 1, stock: 10, want: 1},
		{name: "one below stock", target: 9, stock: 10, want: 9},
		{name: "equal to stock", target: 10, stock: 10, want: 2, notify: true},
		{name: "above stock", target: 11, stock: 10, want: 2, notify: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			f.seed(t, domain.Cart{{ID: 1, Amount: 2}, {ID: 4, Amount: 1}})
			f.product(1, tc.stock)
			store := f.store(t)

			store.UpdateProductAmount(context.Background(), 1, tc.target)

			assert.Equal(t, [][2]int64{{1, int64(tc.want)}, {4, 1}}, ids(store.Cart()))
			if tc.notify {
				assert.Equal(t, []string{domain.MessageOutOfStock}, f.notifier.Messages())
			} else {
				assert.Zero(t, f.notifier.Len())
				assert.Equal(t, ids(store.Cart()), ids(f.persisted(t)))
			}
		})
	}
}

func TestUpdateProductAmount_MissingProductIsSilent(t *testing.T) {
	f := newFixture(t)
	f.seed(t, domain.Cart{{ID: 1, Amount: 2}})
	f.product(8, 10)
	store := f.store(t)

	store.UpdateProductAmount(context.Background(), 8, 3)

	assert.Equal(t, [][2]int64{{1, 2}}, ids(store.Cart()))
	assert.Zero(t, f.notifier.Len())
}

func TestUpdateProductAmount_Failures(t *testing.T) {
	t.Run("stock fetch fails", func(t *testing.T) {
		f := newFixture(t)
		f.seed(t, domain.Cart{{ID: 1, Amount: 2}})
		f.inventory.StockErr = errors.New("timeout")
		store := f.store(t)

		store.UpdateProductAmount(context.Background(), 1, 3)

		assert.Equal(t, [][2]int64{{1, 2}}, ids(store.Cart()))
		assert.Equal(t, []string{domain.MessageUpdateFailed}, f.notifier.Messages())
	})

	t.Run("persist fails", func(t *testing.T) {
		f := newFixture(t)
		f.seed(t, domain.Cart{{ID: 1, Amount: 2}})
		f.product(1, 10)
		f.storage = &failingStorage{KeyValueStorage: f.storage, setErr: errors.New("quota exceeded")}
		store := f.store(t)

		store.UpdateProductAmount(context.Background(), 1, 3)

		assert.Equal(t, [][2]int64{{1, 2}}, ids(store.Cart()))
		assert.Equal(t, []string{domain.MessageUpdateFailed}, f.notifier.Messages())
	})
}

func TestCart_ReturnsCopy(t *testing.T) {
	f := newFixture(t)
	f.seed(t, domain.Cart{{ID: 1, Amount: 2}})
	store := f.store(t)

	snapshot := store.Cart()
	snapshot[0].Amount = 99
	_ = append(snapshot, domain.Product{ID: 2, Amount: 1})

	assert.Equal(t, [][2]int64{{1, 2}}, ids(store.Cart()))
}

func TestStore_PersistenceRoundTrip(t *testing.T) {
	f := newFixture(t)
	f.product(1, 5)
	f.product(2, 5)
	f.product(3, 5)

	first := f.store(t)
	first.AddProduct(context.Background(), 3)
	first.AddProduct(context.Background(), 1)
	first.AddProduct(context.Background(), 1)
	first.AddProduct(context.Background(), 2)
	first.UpdateProductAmount(context.Background(), 2, 4)
	first.RemoveProduct(context.Background(), 3)

	restarted := f.store(t)

	assert.Equal(t, first.Cart(), restarted.Cart())
	assert.Equal(t, [][2]int64{{1, 2}, {2, 4}}, ids(restarted.Cart()))
}

func TestStore_Scenarios(t *testing.T) {
	t.Run("empty cart add", func(t *testing.T) {
		f := newFixture(t)
		f.product(1, 5)
		store := f.store(t)

		store.AddProduct(context.Background(), 1)

		assert.Equal(t, [][2]int64{{1, 1}}, ids(store.Cart()))
	})

	t.Run("add at stock ceiling", func(t *testing.T) {
		f := newFixture(t)
		f.seed(t, domain.Cart{{ID: 1, Amount: 5}})
		f.product(1, 5)
		store := f.store(t)

		store.AddProduct(context.Background(), 1)

		assert.Equal(t, [][2]int64{{1, 5}}, ids(store.Cart()))
		assert.Equal(t, []string{domain.MessageOutOfStock}, f.notifier.Messages())
	})

	t.Run("update to zero", func(t *testing.T) {
		f := newFixture(t)
		f.seed(t, domain.Cart{{ID: 1, Amount: 2}})
		f.product(1, 10)
		store := f.store(t)

		store.UpdateProductAmount(context.Background(), 1, 0)

		assert.Equal(t, [][2]int64{{1, 2}}, ids(store.Cart()))
		assert.Zero(t, f.notifier.Len())
	})

	t.Run("remove only item", func(t *testing.T) {
		f := newFixture(t)
		f.seed(t, domain.Cart{{ID: 2, Amount: 1}})
		store := f.store(t)

		store.RemoveProduct(context.Background(), 2)

		assert.Empty(t, store.Cart())
	})
}

func TestAddProduct_ConcurrentAddsRespectStock(t *testing.T) {
	f := newFixture(t)
	f.product(1, 3)
	f.product(2, 100)
	store := f.store(t)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			store.AddProduct(context.Background(), 1)
		}()
		go func() {
			defer wg.Done()
			store.AddProduct(context.Background(), 2)
		}()
	}
	wg.Wait()

	cart := store.Cart()
	require.Len(t, cart, 2)
	amounts := map[int64]int{cart[0].ID: cart[0].Amount, cart[1].ID: cart[1].Amount}
	assert.Equal(t, 3, amounts[1])
	assert.Equal(t, 10, amounts[2])
	assert.Equal(t, 7, f.notifier.Len())
	assert.ElementsMatch(t, ids(cart), ids(f.persisted(t)))
	assert.Zero(t, store.locks.size(), "product locks must be released")
}
