package patch

import (
	"context"
	"encoding/json"
	"time"

	"github.com/annel0/patch-stream/internal/eventbus"
	"github.com/annel0/patch-stream/internal/logging"
	"github.com/annel0/patch-stream/internal/vec"
)

// Типы событий жизненного цикла, публикуемые в шину
const (
	EventPatchLoaded   = "patch_loaded"
	EventPatchUnloaded = "patch_unloaded"
	EventPatchLocked   = "patch_locked"
	EventPatchUnlocked = "patch_unlocked"
	EventStreamStopped = "stream_stopped"
)

// eventSource — имя сервиса-источника в конвертах событий
const eventSource = "patch-stream"

// LifecycleEvent — полезная нагрузка события жизненного цикла патча
type LifecycleEvent struct {
	Patch string `json:"patch"`
	Kind  string `json:"kind,omitempty"`
	Error string `json:"error,omitempty"`
}

// ManagerOptions — зависимости и параметры менеджера стриминга
type ManagerOptions struct {
	PatchSize float64       // Размер патча в мировых единицах (> 0)
	Prefix    string        // Префикс идентификаторов патчей
	Radius    int           // Радиус видимости в патчах (клампится к >= 1)
	Store     ResourceStore // Внешняя система ресурсов (обязательно)
	Index     AssetIndex    // Индекс ресурсов (может быть nil)

	Bus     eventbus.EventBus // Шина событий (может быть nil)
	Tracker ResidentTracker   // Зеркало множества загруженных патчей (может быть nil)
	Metrics *Metrics          // Prometheus-метрики (может быть nil)
}

// Manager — фасад стриминга патчей: склеивает адресацию, очередь, локи,
// планировщик и обновлятор видимости в один API для внешних вызовов.
//
// Контракт однопоточности: Tick, UpdateVisibility и все Enqueue-производные
// вызовы должны исходить из одной планирующей горутины. IsBusy безопасен из
// любых горутин; LoadAndLock/Unlock, приходящие из других горутин (REST),
// должен сериализовать хост (см. cmd/server).
type Manager struct {
	addr    *Addressing
	queue   *Queue
	locks   *LockSet
	sched   *Scheduler
	updater *Updater
	store   ResourceStore

	bus     eventbus.EventBus
	tracker ResidentTracker
	metrics *Metrics
}

// NewManager собирает менеджер из опций
func NewManager(opts ManagerOptions) (*Manager, error) {
	addr, err := NewAddressing(opts.PatchSize, opts.Prefix, opts.Index)
	if err != nil {
		return nil, err
	}

	locks := NewLockSet()
	queue := NewQueue(addr, opts.Store, locks)
	sched := NewScheduler(addr, queue, opts.Store)
	updater := NewUpdater(addr, queue, opts.Store, opts.Radius)

	m := &Manager{
		addr:    addr,
		queue:   queue,
		locks:   locks,
		sched:   sched,
		updater: updater,
		store:   opts.Store,
		bus:     opts.Bus,
		tracker: opts.Tracker,
		metrics: opts.Metrics,
	}
	sched.SetExecutedHook(m.onExecuted)
	return m, nil
}

// Addressing возвращает схему адресации менеджера
func (m *Manager) Addressing() *Addressing { return m.addr }

// Tick выполняет один шаг планирования и обновляет мгновенные метрики
func (m *Manager) Tick() {
	m.sched.Tick()
	m.metrics.setGauges(m.queue.Len(), m.sched.IsBusy(), len(m.store.EnumerateResident()))
}

// UpdateVisibility выполняет проход видимости вокруг опорной позиции
func (m *Manager) UpdateVisibility(ref vec.Vec2Float) {
	if m.sched.IsStopped() {
		return
	}
	m.updater.Update(ref)
}

// LoadAndLock закрепляет патч, содержащий позицию, и загружает его, если он
// ещё не загружен. Лок — это «загрузить и закрепить», а не «закрепить, если
// есть»: загрузка ставится в очередь в обход окна видимости.
// Колбэк вызывается в тике завершения; для уже загруженного патча — сразу,
// без обращения к хранилищу.
func (m *Manager) LoadAndLock(pos vec.Vec2Float, onComplete CompletionFunc) error {
	id := m.addr.IdentifierAt(pos)

	m.locks.Lock(id)
	m.publish(EventPatchLocked, LifecycleEvent{Patch: id})
	logging.Debug("Патч %s залочен", id)

	if m.store.IsResident(id) {
		if onComplete != nil {
			onComplete(Result{Patch: id, Kind: ActionLoad})
		}
		return nil
	}

	m.queue.EnqueueLoad(id, onComplete)
	return nil
}

// LoadAndLockAsync — вариант LoadAndLock с ожиданием через канал.
// Канал получает ровно один результат.
func (m *Manager) LoadAndLockAsync(pos vec.Vec2Float) (<-chan Result, error) {
	ch := make(chan Result, 1)
	err := m.LoadAndLock(pos, func(r Result) {
		ch <- r
	})
	if err != nil {
		return nil, err
	}
	return ch, nil
}

// Unlock снимает закрепление с патча, содержащего позицию.
// Патч станет кандидатом на выгрузку при следующем проходе видимости.
func (m *Manager) Unlock(pos vec.Vec2Float) {
	id := m.addr.IdentifierAt(pos)
	m.locks.Unlock(id)
	m.publish(EventPatchUnlocked, LifecycleEvent{Patch: id})
	logging.Debug("Патч %s разлочен", id)
}

// IsBusy сообщает, исполняется ли операция. Безопасно из любых горутин.
func (m *Manager) IsBusy() bool {
	return m.sched.IsBusy()
}

// IsLocked проверяет, закреплён ли патч, содержащий позицию
func (m *Manager) IsLocked(pos vec.Vec2Float) bool {
	return m.locks.IsLocked(m.addr.IdentifierAt(pos))
}

// StopAndUnload немедленно останавливает стриминг и выгружает все патчи схемы.
// Небезопасно при IsBusy() == true — см. Scheduler.StopAndUnload.
func (m *Manager) StopAndUnload() {
	m.sched.StopAndUnload()
	m.publish(EventStreamStopped, LifecycleEvent{})
}

// StopAndUnloadAsync запрашивает кооперативную остановку.
// Канал закрывается после того, как выгрузка запрошена для всех загруженных
// патчей схемы и все колбэки отработали.
func (m *Manager) StopAndUnloadAsync() <-chan struct{} {
	done := m.sched.StopAndUnloadAsync()
	go func() {
		<-done
		m.publish(EventStreamStopped, LifecycleEvent{})
	}()
	return done
}

// Status — мгновенный снимок состояния для внешних наблюдателей
type Status struct {
	Busy     bool     `json:"busy"`
	Stopped  bool     `json:"stopped"`
	QueueLen int      `json:"queue_len"`
	Radius   int      `json:"radius"`
	Resident []string `json:"resident"`
	Locked   []string `json:"locked"`
}

// Status возвращает снимок состояния стриминга
func (m *Manager) Status() Status {
	return Status{
		Busy:     m.sched.IsBusy(),
		Stopped:  m.sched.IsStopped(),
		QueueLen: m.queue.Len(),
		Radius:   m.updater.Radius(),
		Resident: m.store.EnumerateResident(),
		Locked:   m.locks.Snapshot(),
	}
}

// onExecuted — хук планировщика: метрики, зеркало и события по завершении операции
func (m *Manager) onExecuted(action Action, result Result, took time.Duration) {
	m.metrics.observe(result, took)

	if m.tracker != nil && result.Err == nil {
		switch action.Kind {
		case ActionLoad:
			m.tracker.MarkLoaded(action.Patch)
		case ActionUnload:
			m.tracker.MarkUnloaded(action.Patch)
		}
	}

	payload := LifecycleEvent{Patch: action.Patch, Kind: action.Kind.String()}
	if result.Err != nil {
		payload.Error = result.Err.Error()
	}
	switch action.Kind {
	case ActionLoad:
		m.publish(EventPatchLoaded, payload)
	case ActionUnload:
		m.publish(EventPatchUnloaded, payload)
	}
}

// publish отправляет событие в шину, если она подключена
func (m *Manager) publish(eventType string, payload LifecycleEvent) {
	if m.bus == nil {
		return
	}

	data, err := json.Marshal(payload)
	if err != nil {
		logging.Error("Ошибка сериализации события %s: %v", eventType, err)
		return
	}

	ev := eventbus.NewEnvelope(eventSource, eventType, data)
	if err := m.bus.Publish(context.Background(), ev); err != nil {
		logging.Warn("Не удалось опубликовать событие %s: %v", eventType, err)
	}
}
