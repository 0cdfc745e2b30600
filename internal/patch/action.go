package patch

// ActionKind определяет вид операции над патчем
type ActionKind int

const (
	ActionLoad ActionKind = iota
	ActionUnload
)

// String возвращает строковое представление вида операции
func (k ActionKind) String() string {
	switch k {
	case ActionLoad:
		return "load"
	case ActionUnload:
		return "unload"
	default:
		return "unknown"
	}
}

// Result передаётся в колбэк завершения операции
type Result struct {
	Patch string     // Идентификатор патча
	Kind  ActionKind // Вид выполненной операции
	Data  []byte     // Полезная нагрузка (только для успешной загрузки)
	Err   error      // Ошибка хранилища (nil при успехе)
}

// CompletionFunc вызывается планировщиком ровно один раз по завершении операции
type CompletionFunc func(Result)

// Action описывает одну запланированную операцию над патчем.
// Значение не изменяется после постановки в очередь.
type Action struct {
	Patch      string
	Kind       ActionKind
	OnComplete CompletionFunc
}

// actionKey — ключ подавления дубликатов: операции совпадают по (патч, вид)
type actionKey struct {
	patch string
	kind  ActionKind
}

// Queue — FIFO-очередь операций с подавлением дубликатов за O(1).
// Не потокобезопасна: все вызовы должны приходить из кооперативного
// контекста тика (см. контракт планировщика).
type Queue struct {
	items   []*Action
	present map[actionKey]*Action
	store   ResourceStore
	locks   *LockSet
	addr    *Addressing
}

// NewQueue создаёт очередь операций
func NewQueue(addr *Addressing, store ResourceStore, locks *LockSet) *Queue {
	return &Queue{
		present: make(map[actionKey]*Action),
		store:   store,
		locks:   locks,
		addr:    addr,
	}
}

// EnqueueLoad добавляет загрузку патча.
// Не добавляет, если такая загрузка уже в очереди или патч уже загружен;
// при дубликате новый колбэк пристыковывается к уже запланированной операции,
// чтобы ожидающие не зависли.
func (q *Queue) EnqueueLoad(patch string, onComplete CompletionFunc) bool {
	key := actionKey{patch: patch, kind: ActionLoad}

	if existing, ok := q.present[key]; ok {
		if onComplete != nil {
			existing.OnComplete = chainCompletions(existing.OnComplete, onComplete)
		}
		return false
	}

	if q.store.IsResident(patch) {
		// Ресурс уже загружен — операция не нужна
		if onComplete != nil {
			onComplete(Result{Patch: patch, Kind: ActionLoad})
		}
		return false
	}

	q.push(&Action{Patch: patch, Kind: ActionLoad, OnComplete: onComplete})
	return true
}

// EnqueueUnload добавляет выгрузку патча.
// Запросы для чужих идентификаторов и для залоченных патчей молча игнорируются —
// это фильтр, а не ошибка.
func (q *Queue) EnqueueUnload(patch string, onComplete CompletionFunc) bool {
	if !q.addr.Owns(patch) {
		return false
	}
	if q.locks.IsLocked(patch) {
		return false
	}

	key := actionKey{patch: patch, kind: ActionUnload}
	if existing, ok := q.present[key]; ok {
		if onComplete != nil {
			existing.OnComplete = chainCompletions(existing.OnComplete, onComplete)
		}
		return false
	}

	q.push(&Action{Patch: patch, Kind: ActionUnload, OnComplete: onComplete})
	return true
}

// Dequeue извлекает голову очереди
func (q *Queue) Dequeue() (Action, bool) {
	if len(q.items) == 0 {
		return Action{}, false
	}

	head := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	delete(q.present, actionKey{patch: head.Patch, kind: head.Kind})
	return *head, true
}

// Contains проверяет наличие операции (патч, вид) в очереди
func (q *Queue) Contains(patch string, kind ActionKind) bool {
	_, ok := q.present[actionKey{patch: patch, kind: kind}]
	return ok
}

// Len возвращает количество операций в очереди
func (q *Queue) Len() int {
	return len(q.items)
}

// Clear удаляет все запланированные операции
func (q *Queue) Clear() {
	q.items = nil
	q.present = make(map[actionKey]*Action)
}

// push добавляет операцию в хвост
func (q *Queue) push(a *Action) {
	q.items = append(q.items, a)
	q.present[actionKey{patch: a.Patch, kind: a.Kind}] = a
}

// chainCompletions объединяет два колбэка в один
func chainCompletions(first, second CompletionFunc) CompletionFunc {
	if first == nil {
		return second
	}
	return func(r Result) {
		first(r)
		second(r)
	}
}
