package patch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestQueue(t *testing.T, store ResourceStore) (*Queue, *LockSet) {
	t.Helper()
	addr, err := NewAddressing(100, "patch", nil)
	require.NoError(t, err)
	locks := NewLockSet()
	return NewQueue(addr, store, locks), locks
}

func TestQueue_FIFO(t *testing.T) {
	store := newFakeStore()
	q, _ := newTestQueue(t, store)

	assert.True(t, q.EnqueueLoad("patch_0_0", nil))
	assert.True(t, q.EnqueueLoad("patch_1_0", nil))
	assert.True(t, q.EnqueueLoad("patch_2_0", nil))
	assert.Equal(t, 3, q.Len())

	// Извлекается в порядке добавления
	for _, want := range []string{"patch_0_0", "patch_1_0", "patch_2_0"} {
		a, ok := q.Dequeue()
		require.True(t, ok)
		assert.Equal(t, want, a.Patch)
		assert.Equal(t, ActionLoad, a.Kind)
	}

	_, ok := q.Dequeue()
	assert.False(t, ok, "пустая очередь")
}

func TestQueue_DuplicateLoadSuppressed(t *testing.T) {
	store := newFakeStore()
	q, _ := newTestQueue(t, store)

	assert.True(t, q.EnqueueLoad("patch_0_0", nil))
	assert.False(t, q.EnqueueLoad("patch_0_0", nil), "дубликат не добавляется")
	assert.Equal(t, 1, q.Len())

	// После извлечения ту же операцию можно поставить снова
	_, ok := q.Dequeue()
	require.True(t, ok)
	assert.True(t, q.EnqueueLoad("patch_0_0", nil))
}

func TestQueue_DuplicateLoadChainsCallback(t *testing.T) {
	store := newFakeStore()
	q, _ := newTestQueue(t, store)

	var calls []string
	q.EnqueueLoad("patch_0_0", func(r Result) { calls = append(calls, "first") })
	q.EnqueueLoad("patch_0_0", func(r Result) { calls = append(calls, "second") })

	a, ok := q.Dequeue()
	require.True(t, ok)
	a.OnComplete(Result{Patch: a.Patch, Kind: ActionLoad})

	// Оба ожидающих получают результат одной операции
	assert.Equal(t, []string{"first", "second"}, calls)
}

func TestQueue_LoadOfResidentCompletesImmediately(t *testing.T) {
	store := newFakeStore()
	store.addResident("patch_0_0", []byte("data"))
	q, _ := newTestQueue(t, store)

	completed := false
	added := q.EnqueueLoad("patch_0_0", func(r Result) {
		completed = true
		assert.Equal(t, "patch_0_0", r.Patch)
		assert.NoError(t, r.Err)
	})

	assert.False(t, added, "загрузка уже загруженного не ставится в очередь")
	assert.True(t, completed, "колбэк вызывается сразу")
	assert.Equal(t, 0, q.Len())
}

func TestQueue_UnloadFiltersForeignAndLocked(t *testing.T) {
	store := newFakeStore()
	store.addResident("patch_0_0", nil)
	store.addResident("scene_0_0", nil)
	q, locks := newTestQueue(t, store)

	// Чужой идентификатор молча игнорируется
	assert.False(t, q.EnqueueUnload("scene_0_0", nil))
	assert.Equal(t, 0, q.Len())

	// Залоченный патч не выгружается
	locks.Lock("patch_0_0")
	assert.False(t, q.EnqueueUnload("patch_0_0", nil))
	assert.Equal(t, 0, q.Len())

	// После разлока — выгружается
	locks.Unlock("patch_0_0")
	assert.True(t, q.EnqueueUnload("patch_0_0", nil))
	assert.True(t, q.Contains("patch_0_0", ActionUnload))
}

func TestQueue_LoadAndUnloadAreDistinctKeys(t *testing.T) {
	store := newFakeStore()
	q, _ := newTestQueue(t, store)

	assert.True(t, q.EnqueueLoad("patch_0_0", nil))
	assert.True(t, q.EnqueueUnload("patch_0_0", nil), "выгрузка не дубликат загрузки")
	assert.Equal(t, 2, q.Len())
}

func TestQueue_Clear(t *testing.T) {
	store := newFakeStore()
	q, _ := newTestQueue(t, store)

	q.EnqueueLoad("patch_0_0", nil)
	q.EnqueueLoad("patch_1_0", nil)
	q.Clear()

	assert.Equal(t, 0, q.Len())
	assert.False(t, q.Contains("patch_0_0", ActionLoad))

	// Очередь пригодна к использованию после очистки
	assert.True(t, q.EnqueueLoad("patch_0_0", nil))
}

func TestLockSet_Idempotent(t *testing.T) {
	ls := NewLockSet()

	ls.Lock("patch_1_1")
	ls.Lock("patch_1_1")
	assert.True(t, ls.IsLocked("patch_1_1"))
	assert.Equal(t, 1, ls.Len())

	ls.Unlock("patch_1_1")
	assert.False(t, ls.IsLocked("patch_1_1"))

	// Разлок незалоченного — no-op
	ls.Unlock("patch_9_9")
	assert.Equal(t, 0, ls.Len())
}

func TestLockSet_Snapshot(t *testing.T) {
	ls := NewLockSet()
	ls.Lock("patch_2_0")
	ls.Lock("patch_0_0")
	ls.Lock("patch_1_0")

	assert.Equal(t, []string{"patch_0_0", "patch_1_0", "patch_2_0"}, ls.Snapshot())
}
