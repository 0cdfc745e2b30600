package patch

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/patch-stream/internal/vec"
)

// fakeTracker запоминает отметки о загрузке/выгрузке
type fakeTracker struct {
	loaded   []string
	unloaded []string
}

func (f *fakeTracker) MarkLoaded(id string)   { f.loaded = append(f.loaded, id) }
func (f *fakeTracker) MarkUnloaded(id string) { f.unloaded = append(f.unloaded, id) }

func newTestManager(t *testing.T, store *fakeStore, tracker ResidentTracker) *Manager {
	t.Helper()
	m, err := NewManager(ManagerOptions{
		PatchSize: 100,
		Prefix:    "patch",
		Radius:    1,
		Store:     store,
		Tracker:   tracker,
	})
	require.NoError(t, err)
	return m
}

func TestManager_InvalidOptions(t *testing.T) {
	store := newFakeStore()

	_, err := NewManager(ManagerOptions{PatchSize: 0, Prefix: "patch", Store: store})
	assert.True(t, IsConfigurationError(err))

	_, err = NewManager(ManagerOptions{PatchSize: 100, Prefix: "", Store: store})
	assert.True(t, IsConfigurationError(err))
}

func TestManager_LoadAndLockResidentCompletesImmediately(t *testing.T) {
	store := newFakeStore()
	store.addResident("patch_1_1", []byte("x"))
	m := newTestManager(t, store, nil)

	ch, err := m.LoadAndLockAsync(vec.Vec2Float{X: 50, Y: 50})
	require.NoError(t, err)

	// Патч уже загружен: результат доступен без тиков и без обращения к хранилищу
	select {
	case r := <-ch:
		assert.Equal(t, "patch_1_1", r.Patch)
		assert.NoError(t, r.Err)
	default:
		t.Fatal("результат должен быть доступен сразу")
	}
	assert.Empty(t, store.loads)
	assert.True(t, m.IsLocked(vec.Vec2Float{X: 50, Y: 50}))
}

func TestManager_LoadAndLockTriggersLoad(t *testing.T) {
	store := newFakeStore()
	m := newTestManager(t, store, nil)

	ch, err := m.LoadAndLockAsync(vec.Vec2Float{X: 50, Y: 50})
	require.NoError(t, err)

	// Лок ставится сразу, загрузка — через очередь и тики
	assert.True(t, m.IsLocked(vec.Vec2Float{X: 50, Y: 50}))

	m.Tick() // старт загрузки
	require.True(t, m.IsBusy())
	store.finishLoad("patch_1_1", nil)
	m.Tick() // завершение

	select {
	case r := <-ch:
		assert.Equal(t, "patch_1_1", r.Patch)
		assert.Equal(t, ActionLoad, r.Kind)
	default:
		t.Fatal("результат не доставлен после завершения загрузки")
	}
	assert.False(t, m.IsBusy())
}

func TestManager_UnlockAllowsSweepUnload(t *testing.T) {
	store := newFakeStore()
	store.instant = true
	store.addResident("patch_5_5", nil)
	m := newTestManager(t, store, nil)
	pos := vec.Vec2Float{X: 500, Y: 500}

	require.NoError(t, m.LoadAndLock(pos, nil))

	// Пока патч залочен, проход видимости его не трогает
	m.UpdateVisibility(vec.Vec2Float{X: 50, Y: 50})
	for i := 0; i < 30; i++ {
		m.Tick()
	}
	assert.True(t, store.IsResident("patch_5_5"))

	// Разлок + следующий проход — патч выгружается
	m.Unlock(pos)
	m.UpdateVisibility(vec.Vec2Float{X: 50, Y: 50})
	for i := 0; i < 30; i++ {
		m.Tick()
	}
	assert.False(t, store.IsResident("patch_5_5"))
}

func TestManager_TrackerMirrorsLifecycle(t *testing.T) {
	store := newFakeStore()
	store.instant = true
	tracker := &fakeTracker{}
	m := newTestManager(t, store, tracker)

	require.NoError(t, m.LoadAndLock(vec.Vec2Float{X: 0, Y: 0}, nil))
	m.Tick() // старт загрузки
	m.Tick() // завершение

	assert.Equal(t, []string{"patch_0_0"}, tracker.loaded)

	m.Unlock(vec.Vec2Float{X: 0, Y: 0})
	m.UpdateVisibility(vec.Vec2Float{X: 1000, Y: 1000})
	for i := 0; i < 30; i++ {
		m.Tick()
	}
	assert.Contains(t, tracker.unloaded, "patch_0_0")
}

func TestManager_StopAndUnloadAsync(t *testing.T) {
	store := newFakeStore()
	store.addResident("patch_1_1", nil)
	store.addResident("patch_2_2", nil)
	m := newTestManager(t, store, nil)

	done := m.StopAndUnloadAsync()
	m.Tick()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("остановка не завершилась")
	}

	assert.Empty(t, store.EnumerateResident())
	status := m.Status()
	assert.True(t, status.Stopped)

	// После остановки видимость больше не ставит загрузки
	m.UpdateVisibility(vec.Vec2Float{X: 0, Y: 0})
	assert.Equal(t, 0, status.QueueLen)
}

func TestManager_Status(t *testing.T) {
	store := newFakeStore()
	store.addResident("patch_1_1", nil)
	m := newTestManager(t, store, nil)

	require.NoError(t, m.LoadAndLock(vec.Vec2Float{X: 50, Y: 50}, nil))

	status := m.Status()
	assert.False(t, status.Busy)
	assert.False(t, status.Stopped)
	assert.Equal(t, 1, status.Radius)
	assert.Equal(t, []string{"patch_1_1"}, status.Resident)
	assert.Equal(t, []string{"patch_1_1"}, status.Locked)
}
