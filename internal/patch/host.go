package patch

import (
	"time"

	"github.com/annel0/patch-stream/internal/logging"
	"github.com/annel0/patch-stream/internal/vec"
)

// Host владеет тиковым циклом менеджера и сериализует внешние вызовы.
// Очередь и локи мутируются только из горутины цикла: вызовы из других
// горутин (REST-слой) заворачиваются в команды и исполняются между тиками.
// Это и есть «кооперативный контекст» из контракта менеджера.
type Host struct {
	mgr        *Manager
	tickEvery  time.Duration
	sweepEvery int

	commands chan func()
	quit     chan struct{}
	done     chan struct{}

	// Состояние ниже принадлежит горутине цикла
	ref      vec.Vec2Float
	refKnown bool
	tickN    int
}

// NewHost создаёт хост с указанным периодом тика.
// sweepEvery — проход видимости каждые N тиков (минимум 1).
func NewHost(mgr *Manager, tickEvery time.Duration, sweepEvery int) *Host {
	if tickEvery <= 0 {
		tickEvery = 50 * time.Millisecond // 20 Hz
	}
	if sweepEvery < 1 {
		sweepEvery = 1
	}
	return &Host{
		mgr:        mgr,
		tickEvery:  tickEvery,
		sweepEvery: sweepEvery,
		commands:   make(chan func(), 64),
		quit:       make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Start запускает тиковый цикл
func (h *Host) Start() {
	go h.loop()
}

// Close завершает тиковый цикл
func (h *Host) Close() {
	close(h.quit)
	<-h.done
}

// loop — единственная горутина, трогающая очередь, локи и планировщик
func (h *Host) loop() {
	defer close(h.done)

	ticker := time.NewTicker(h.tickEvery)
	defer ticker.Stop()

	for {
		select {
		case <-h.quit:
			return
		case cmd := <-h.commands:
			cmd()
		case <-ticker.C:
			h.tickN++
			if h.refKnown && h.tickN%h.sweepEvery == 0 {
				h.mgr.UpdateVisibility(h.ref)
			}
			h.mgr.Tick()
		}
	}
}

// do исполняет fn в горутине цикла и ждёт завершения
func (h *Host) do(fn func()) {
	doneCh := make(chan struct{})
	select {
	case h.commands <- func() {
		fn()
		close(doneCh)
	}:
		<-doneCh
	case <-h.quit:
	}
}

// SetReference задаёт опорную точку для проходов видимости
func (h *Host) SetReference(pos vec.Vec2Float) {
	h.do(func() {
		h.ref = pos
		h.refKnown = true
	})
}

// IsBusy сообщает, исполняется ли операция. Безопасно из любых горутин.
func (h *Host) IsBusy() bool {
	return h.mgr.IsBusy()
}

// Status возвращает снимок состояния стриминга
func (h *Host) Status() Status {
	var st Status
	h.do(func() {
		st = h.mgr.Status()
	})
	return st
}

// LoadAndLock закрепляет и загружает патч, содержащий позицию.
// Возвращённый канал получает результат в тике завершения загрузки.
func (h *Host) LoadAndLock(pos vec.Vec2Float) (<-chan Result, error) {
	var (
		ch  <-chan Result
		err error
	)
	h.do(func() {
		ch, err = h.mgr.LoadAndLockAsync(pos)
	})
	return ch, err
}

// Unlock снимает закрепление с патча, содержащего позицию
func (h *Host) Unlock(pos vec.Vec2Float) {
	h.do(func() {
		h.mgr.Unlock(pos)
	})
}

// StopAndUnload запрашивает кооперативную остановку стриминга.
// Канал закрывается после завершения слива.
func (h *Host) StopAndUnload() <-chan struct{} {
	var done <-chan struct{}
	h.do(func() {
		done = h.mgr.StopAndUnloadAsync()
	})
	logging.Info("Запрошена остановка стриминга патчей")
	return done
}
