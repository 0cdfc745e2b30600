package eventbus

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// collector потокобезопасно накапливает полученные события
type collector struct {
	mu  sync.Mutex
	evs []*Envelope
}

func (c *collector) handler(ctx context.Context, ev *Envelope) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.evs = append(c.evs, ev)
}

func (c *collector) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.evs)
}

func (c *collector) types() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.evs))
	for i, ev := range c.evs {
		out[i] = ev.EventType
	}
	return out
}

func TestNewEnvelope(t *testing.T) {
	ev := NewEnvelope("patch-stream", "patch_loaded", []byte(`{"patch":"patch_1_1"}`))

	assert.NotEmpty(t, ev.ID)
	assert.False(t, ev.Timestamp.IsZero())
	assert.Equal(t, "patch-stream", ev.Source)
	assert.Equal(t, "patch_loaded", ev.EventType)

	// Идентификаторы уникальны
	other := NewEnvelope("patch-stream", "patch_loaded", nil)
	assert.NotEqual(t, ev.ID, other.ID)
}

func TestMemoryBus_PublishSubscribe(t *testing.T) {
	bus := NewMemoryBus(16)
	col := &collector{}

	_, err := bus.Subscribe(context.Background(), Filter{}, col.handler)
	require.NoError(t, err)

	require.NoError(t, bus.Publish(context.Background(), NewEnvelope("patch-stream", "patch_loaded", nil)))
	require.NoError(t, bus.Publish(context.Background(), NewEnvelope("patch-stream", "patch_unloaded", nil)))

	require.Eventually(t, func() bool { return col.count() == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"patch_loaded", "patch_unloaded"}, col.types())

	stats := bus.Metrics()
	assert.Equal(t, uint64(2), stats.Published)
	assert.Equal(t, uint64(2), stats.Consumed)
	assert.Equal(t, uint64(0), stats.Dropped)
}

func TestMemoryBus_FilterByType(t *testing.T) {
	bus := NewMemoryBus(16)
	col := &collector{}

	_, err := bus.Subscribe(context.Background(), Filter{Types: []string{"patch_loaded"}}, col.handler)
	require.NoError(t, err)

	bus.Publish(context.Background(), NewEnvelope("patch-stream", "patch_loaded", nil))
	bus.Publish(context.Background(), NewEnvelope("patch-stream", "patch_unloaded", nil))
	bus.Publish(context.Background(), NewEnvelope("patch-stream", "patch_loaded", nil))

	require.Eventually(t, func() bool { return col.count() == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"patch_loaded", "patch_loaded"}, col.types())
}

func TestMemoryBus_FilterBySource(t *testing.T) {
	bus := NewMemoryBus(16)
	col := &collector{}

	_, err := bus.Subscribe(context.Background(), Filter{Sources: []string{"patch-stream"}}, col.handler)
	require.NoError(t, err)

	bus.Publish(context.Background(), NewEnvelope("patch-stream", "patch_loaded", nil))
	bus.Publish(context.Background(), NewEnvelope("other-service", "patch_loaded", nil))

	require.Eventually(t, func() bool { return col.count() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "patch-stream", col.evs[0].Source)
}

func TestMemoryBus_Unsubscribe(t *testing.T) {
	bus := NewMemoryBus(16)
	col := &collector{}

	sub, err := bus.Subscribe(context.Background(), Filter{}, col.handler)
	require.NoError(t, err)

	bus.Publish(context.Background(), NewEnvelope("patch-stream", "patch_loaded", nil))
	require.Eventually(t, func() bool { return col.count() == 1 }, time.Second, 5*time.Millisecond)

	sub.Unsubscribe()
	bus.Publish(context.Background(), NewEnvelope("patch-stream", "patch_loaded", nil))

	// Отписанный обработчик больше не получает событий
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, col.count())
}

func TestMemoryBus_DropsWhenFull(t *testing.T) {
	// Буфер на одно событие, подписчиков нет — диспетчер вычитывает медленно,
	// лишнее дропается без блокировки публикатора
	bus := NewMemoryBus(1)

	for i := 0; i < 64; i++ {
		require.NoError(t, bus.Publish(context.Background(), NewEnvelope("patch-stream", "patch_loaded", nil)))
	}

	stats := bus.Metrics()
	assert.Equal(t, uint64(64), stats.Published+stats.Dropped)
}

func TestMatchFilter(t *testing.T) {
	ev := &Envelope{Source: "patch-stream", EventType: "patch_loaded"}

	assert.True(t, matchFilter(ev, Filter{}))
	assert.True(t, matchFilter(ev, Filter{Types: []string{"patch_loaded"}}))
	assert.True(t, matchFilter(ev, Filter{Sources: []string{"patch-stream"}}))
	assert.False(t, matchFilter(ev, Filter{Types: []string{"patch_unloaded"}}))
	assert.False(t, matchFilter(ev, Filter{Sources: []string{"other"}}))
	assert.False(t, matchFilter(ev, Filter{Types: []string{"patch_loaded"}, Sources: []string{"other"}}))
}
