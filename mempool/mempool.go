// mempool/mempool.go
package mempool

import (
	"errors"
	"sync"
)

// ErrPoolFull is returned by AddItem when the pool is at capacity
var ErrPoolFull = errors.New("mempool is full")

// Item is anything that can wait in the pool
type Item interface {
	GetID() string
}

// Mempool is a multiset of pending items kept in submission order. It has its
// own lock so submissions never wait on block commits.
type Mempool[T Item] struct {
	items   []T
	maxSize int
	mutex   sync.RWMutex
}

// NewMempool creates a new mempool. maxSize <= 0 means unbounded.
func NewMempool[T Item](maxSize int) *Mempool[T] {
	return &Mempool[T]{
		items:   make([]T, 0),
		maxSize: maxSize,
	}
}

// AddItem appends an item. Duplicates are kept.
func (mp *Mempool[T]) AddItem(item T) error {
	mp.mutex.Lock()
	defer mp.mutex.Unlock()

	if mp.maxSize > 0 && len(mp.items) >= mp.maxSize {
		return ErrPoolFull
	}
	mp.items = append(mp.items, item)
	return nil
}

// RemoveProcessedItems drops every item whose ID is in ids and returns how
// many were removed.
func (mp *Mempool[T]) RemoveProcessedItems(ids []string) int {
	if len(ids) == 0 {
		return 0
	}
	processed := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		processed[id] = struct{}{}
	}

	mp.mutex.Lock()
	defer mp.mutex.Unlock()

	kept := mp.items[:0]
	for _, item := range mp.items {
		if _, ok := processed[item.GetID()]; !ok {
			kept = append(kept, item)
		}
	}
	removed := len(mp.items) - len(kept)
	// Clear the tail so dropped items can be collected.
	var zero T
	for i := len(kept); i < len(mp.items); i++ {
		mp.items[i] = zero
	}
	mp.items = kept
	return removed
}

// GetPendingItems returns up to maxItems items in submission order.
// maxItems <= 0 returns everything.
func (mp *Mempool[T]) GetPendingItems(maxItems int) []T {
	mp.mutex.RLock()
	defer mp.mutex.RUnlock()

	n := len(mp.items)
	if maxItems > 0 && maxItems < n {
		n = maxItems
	}
	result := make([]T, n)
	copy(result, mp.items[:n])
	return result
}

// GetAllItems returns all items in mempool (for API/debug purposes)
func (mp *Mempool[T]) GetAllItems() []T {
	return mp.GetPendingItems(0)
}

// GetSize returns the number of items in the mempool
func (mp *Mempool[T]) GetSize() int {
	mp.mutex.RLock()
	defer mp.mutex.RUnlock()

	return len(mp.items)
}

// Clear removes all items from the mempool
func (mp *Mempool[T]) Clear() {
	mp.mutex.Lock()
	defer mp.mutex.Unlock()

	mp.items = make([]T, 0)
}
