package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/patch-stream/internal/patch"
	"github.com/annel0/patch-stream/internal/vec"
)

func newMemStore(t *testing.T, bound int) (*MemoryStore, *patch.Addressing) {
	t.Helper()
	addr, err := patch.NewAddressing(100, "patch", nil)
	require.NoError(t, err)
	ms := NewMemoryStore(addr, bound)
	addr.SetIndex(ms)
	return ms, addr
}

func TestMemoryStore_LoadUnloadCycle(t *testing.T) {
	ms, _ := newMemStore(t, 0)
	coord := vec.Vec2{X: 1, Y: 2}
	ms.AddAsset(coord, []byte("payload"))

	assert.False(t, ms.IsResident("patch_1_2"))

	res := <-ms.RequestLoad("patch_1_2")
	require.NoError(t, res.Err)
	assert.Equal(t, []byte("payload"), res.Data)
	assert.True(t, ms.IsResident("patch_1_2"))
	assert.Equal(t, []string{"patch_1_2"}, ms.EnumerateResident())

	require.NoError(t, ms.RequestUnload("patch_1_2"))
	assert.False(t, ms.IsResident("patch_1_2"))

	// Повторная выгрузка — ошибка
	assert.Error(t, ms.RequestUnload("patch_1_2"))
}

func TestMemoryStore_LoadMissingAsset(t *testing.T) {
	ms, _ := newMemStore(t, 0)

	res := <-ms.RequestLoad("patch_9_9")
	assert.Error(t, res.Err)
	assert.False(t, ms.IsResident("patch_9_9"))
}

func TestMemoryStore_ExistsAndBounds(t *testing.T) {
	ms, _ := newMemStore(t, 2)
	ms.AddAsset(vec.Vec2{X: 1, Y: 1}, nil)
	ms.AddAsset(vec.Vec2{X: 5, Y: 5}, nil)

	assert.True(t, ms.Exists(vec.Vec2{X: 1, Y: 1}))
	assert.False(t, ms.Exists(vec.Vec2{X: 0, Y: 0}))

	// Граница мира режет допуск, но не существование
	assert.True(t, ms.CanLoad(vec.Vec2{X: 2, Y: -2}))
	assert.False(t, ms.CanLoad(vec.Vec2{X: 3, Y: 0}))
	assert.True(t, ms.Exists(vec.Vec2{X: 5, Y: 5}))
}
