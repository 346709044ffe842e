package mempool

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

type testItem struct {
	id string
}

func (i testItem) GetID() string { return i.id }

func TestAddAndGetPreservesOrderAndDuplicates(t *testing.T) {
	mp := NewMempool[testItem](0)
	require.NoError(t, mp.AddItem(testItem{"a"}))
	require.NoError(t, mp.AddItem(testItem{"b"}))
	require.NoError(t, mp.AddItem(testItem{"a"}))

	assert.Equal(t, 3, mp.GetSize())
	assert.Equal(t, []testItem{{"a"}, {"b"}, {"a"}}, mp.GetAllItems())
	assert.Equal(t, []testItem{{"a"}, {"b"}}, mp.GetPendingItems(2))
}

func TestRemoveProcessedItems(t *testing.T) {
	mp := NewMempool[testItem](0)
	for _, id := range []string{"a", "b", "a", "c"} {
		require.NoError(t, mp.AddItem(testItem{id}))
	}

	removed := mp.RemoveProcessedItems([]string{"a", "missing"})
	assert.Equal(t, 2, removed)
	assert.Equal(t, []testItem{{"b"}, {"c"}}, mp.GetAllItems())
	assert.Equal(t, 0, mp.RemoveProcessedItems(nil))
}

func TestCapacity(t *testing.T) {
	mp := NewMempool[testItem](1)
	require.NoError(t, mp.AddItem(testItem{"a"}))
	assert.ErrorIs(t, mp.AddItem(testItem{"b"}), ErrPoolFull)

	mp.Clear()
	assert.Equal(t, 0, mp.GetSize())
	assert.NoError(t, mp.AddItem(testItem{"b"}))
}

func TestConcurrentAdds(t *testing.T) {
	const n = 64
	mp := NewMempool[testItem](0)

	var g errgroup.Group
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			return mp.AddItem(testItem{fmt.Sprintf("item-%d", i)})
		})
	}
	require.NoError(t, g.Wait())
	assert.Equal(t, n, mp.GetSize())
}
