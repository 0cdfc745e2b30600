package patch

import "sort"

// LockSet — множество патчей, закреплённых в памяти внешними вызовами.
// Залоченный патч не выгружается проходом видимости, пока не будет явно
// разлочен. Все операции идемпотентны и не возвращают ошибок.
type LockSet struct {
	ids map[string]struct{}
}

// NewLockSet создаёт пустое множество локов
func NewLockSet() *LockSet {
	return &LockSet{ids: make(map[string]struct{})}
}

// Lock закрепляет патч; повторный лок — no-op
func (ls *LockSet) Lock(id string) {
	ls.ids[id] = struct{}{}
}

// Unlock снимает закрепление; разлок незалоченного — no-op
func (ls *LockSet) Unlock(id string) {
	delete(ls.ids, id)
}

// IsLocked проверяет, закреплён ли патч
func (ls *LockSet) IsLocked(id string) bool {
	_, ok := ls.ids[id]
	return ok
}

// Len возвращает количество залоченных патчей
func (ls *LockSet) Len() int {
	return len(ls.ids)
}

// Snapshot возвращает отсортированный список залоченных патчей
func (ls *LockSet) Snapshot() []string {
	result := make([]string, 0, len(ls.ids))
	for id := range ls.ids {
		result = append(result, id)
	}
	sort.Strings(result)
	return result
}
