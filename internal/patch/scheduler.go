package patch

import (
	"sync/atomic"
	"time"

	"github.com/annel0/patch-stream/internal/logging"
)

// ExecutedFunc вызывается после завершения каждой операции (для метрик и событий)
type ExecutedFunc func(action Action, result Result, took time.Duration)

// Scheduler — кооперативный планировщик операций над патчами.
// Шаговая функция Tick вызывается хостом раз в тик; между тиками планировщик
// полностью приостановлен. В один момент времени исполняется не более одной
// операции — флаг busy и есть механизм взаимного исключения, поскольку
// планирующая горутина одна.
type Scheduler struct {
	queue *Queue
	store ResourceStore
	addr  *Addressing

	busy     atomic.Bool
	pending  *pendingLoad
	stopped  bool
	drains   []chan struct{}
	executed ExecutedFunc
}

// pendingLoad — загрузка, ожидающая завершения во внешнем хранилище
type pendingLoad struct {
	action  Action
	result  <-chan LoadResult
	started time.Time
}

// NewScheduler создаёт планировщик поверх очереди и хранилища
func NewScheduler(addr *Addressing, queue *Queue, store ResourceStore) *Scheduler {
	return &Scheduler{
		queue: queue,
		store: store,
		addr:  addr,
	}
}

// SetExecutedHook задаёт обработчик завершённых операций.
// Вызывать до первого тика.
func (s *Scheduler) SetExecutedHook(hook ExecutedFunc) {
	s.executed = hook
}

// IsBusy сообщает, исполняется ли операция в данный момент.
// Безопасно для чтения из других горутин.
func (s *Scheduler) IsBusy() bool {
	return s.busy.Load()
}

// IsStopped сообщает, остановлен ли планировщик
func (s *Scheduler) IsStopped() bool {
	return s.stopped
}

// Tick выполняет один шаг планирования: продвигает незавершённую загрузку,
// либо начинает следующую операцию из очереди. За один тик стартует не более
// одной операции.
func (s *Scheduler) Tick() {
	if s.pending != nil {
		// Загрузка в полёте: неблокирующе проверяем завершение
		select {
		case res := <-s.pending.result:
			s.finishLoad(res)
		default:
		}
		return
	}

	if s.stopped {
		return
	}

	if len(s.drains) > 0 {
		// Запрошена остановка: busy уже false (pending == nil), выполняем слив
		s.drainAndStop()
		return
	}

	action, ok := s.queue.Dequeue()
	if !ok {
		return
	}
	s.execute(action)
}

// execute начинает исполнение операции
func (s *Scheduler) execute(action Action) {
	s.busy.Store(true)

	switch action.Kind {
	case ActionLoad:
		if s.store.IsResident(action.Patch) {
			// Уже загружен: завершаем в этом же тике без обращения к хранилищу
			s.complete(action, Result{Patch: action.Patch, Kind: ActionLoad}, 0)
			return
		}
		s.pending = &pendingLoad{
			action:  action,
			result:  s.store.RequestLoad(action.Patch),
			started: time.Now(),
		}
		logging.LogPatchRequest("load", action.Patch)

	case ActionUnload:
		if !s.store.IsResident(action.Patch) {
			s.complete(action, Result{Patch: action.Patch, Kind: ActionUnload}, 0)
			return
		}
		start := time.Now()
		err := s.store.RequestUnload(action.Patch)
		if err != nil {
			// Ошибка хранилища не валит цикл: логируем и идём дальше
			logging.Error("Ошибка выгрузки патча %s: %v", action.Patch, err)
		}
		s.complete(action, Result{Patch: action.Patch, Kind: ActionUnload, Err: err}, time.Since(start))
	}
}

// finishLoad завершает асинхронную загрузку
func (s *Scheduler) finishLoad(res LoadResult) {
	pending := s.pending
	s.pending = nil

	if res.Err != nil {
		logging.Error("Ошибка загрузки патча %s: %v", pending.action.Patch, res.Err)
	}

	took := time.Since(pending.started)
	s.complete(pending.action, Result{
		Patch: pending.action.Patch,
		Kind:  ActionLoad,
		Data:  res.Data,
		Err:   res.Err,
	}, took)
	logging.LogPatchComplete("load", pending.action.Patch, took)
}

// complete снимает busy, вызывает колбэк действия и хук планировщика
func (s *Scheduler) complete(action Action, result Result, took time.Duration) {
	s.busy.Store(false)

	if action.OnComplete != nil {
		action.OnComplete(result)
	}
	if s.executed != nil {
		s.executed(action, result, took)
	}
}

// StopAndUnload немедленно останавливает планировщик и выгружает все
// загруженные патчи этой схемы адресации.
//
// Небезопасно при busy == true: вызов не ждёт завершения операции в полёте
// и может гоняться с ней. Перед вызовом проверьте IsBusy или используйте
// StopAndUnloadAsync.
func (s *Scheduler) StopAndUnload() {
	s.drainAndStop()
}

// StopAndUnloadAsync запрашивает кооперативную остановку: слив начнётся только
// после того, как очередной тик увидит busy == false, и завершится после того,
// как выгрузка запрошена для всех загруженных патчей схемы.
// Возвращённый канал закрывается по окончании слива.
func (s *Scheduler) StopAndUnloadAsync() <-chan struct{} {
	done := make(chan struct{})
	if s.stopped {
		close(done)
		return done
	}
	s.drains = append(s.drains, done)
	return done
}

// drainAndStop выгружает все загруженные патчи схемы и останавливает планировщик
func (s *Scheduler) drainAndStop() {
	s.stopped = true
	s.queue.Clear()

	for _, id := range s.store.EnumerateResident() {
		if !s.addr.Owns(id) {
			continue
		}
		start := time.Now()
		err := s.store.RequestUnload(id)
		if err != nil {
			logging.Error("Ошибка выгрузки патча %s при остановке: %v", id, err)
		}
		if s.executed != nil {
			s.executed(
				Action{Patch: id, Kind: ActionUnload},
				Result{Patch: id, Kind: ActionUnload, Err: err},
				time.Since(start),
			)
		}
	}

	for _, done := range s.drains {
		close(done)
	}
	s.drains = nil
	logging.Info("Планировщик остановлен, все патчи выгружены")
}
