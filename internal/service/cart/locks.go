package cart

import "sync"

// productLocks выдаёт по мьютексу на товар. Записи удаляются, когда
// мьютекс больше никто не держит и не ждёт.
type productLocks struct {
	mu    sync.Mutex
	locks map[int64]*productLock
}

type productLock struct {
	mu   sync.Mutex
	refs int
}

func newProductLocks() *productLocks {
	return &productLocks{locks: make(map[int64]*productLock)}
}

// Lock блокирует товар productID и возвращает функцию разблокировки.
func (l *productLocks) Lock(productID int64) func() {
	l.mu.Lock()
	lock, ok := l.locks[productID]
	if !ok {
		lock = &productLock{}
		l.locks[productID] = lock
	}
	lock.refs++
	l.mu.Unlock()

	lock.mu.Lock()

	return func() {
		lock.mu.Unlock()

		l.mu.Lock()
		lock.refs--
		if lock.refs == 0 {
			delete(l.locks, productID)
		}
		l.mu.Unlock()
	}
}

// size возвращает число живых записей (используется в тестах).
func (l *productLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
