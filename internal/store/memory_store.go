package store

import (
	"fmt"
	"sort"
	"sync"

	"github.com/annel0/patch-stream/internal/patch"
	"github.com/annel0/patch-stream/internal/vec"
)

// MemoryStore — хранилище патчей в памяти. Используется в тестах и демо-режиме
// без каталога данных. Загрузки завершаются немедленно.
//
// Реализует patch.ResourceStore и patch.AssetIndex.
type MemoryStore struct {
	addr  *patch.Addressing
	bound int

	mu       sync.Mutex
	assets   map[string][]byte
	resident map[string][]byte
}

// NewMemoryStore создаёт пустое хранилище. bound — граница мира в патчах (0 = без границы).
func NewMemoryStore(addr *patch.Addressing, bound int) *MemoryStore {
	return &MemoryStore{
		addr:     addr,
		bound:    bound,
		assets:   make(map[string][]byte),
		resident: make(map[string][]byte),
	}
}

// AddAsset регистрирует ресурс для ячейки
func (ms *MemoryStore) AddAsset(coord vec.Vec2, data []byte) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.assets[ms.addr.IdentifierFor(coord)] = data
}

// IsResident сообщает, загружен ли патч
func (ms *MemoryStore) IsResident(id string) bool {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	_, ok := ms.resident[id]
	return ok
}

// RequestLoad завершает загрузку немедленно (канал уже содержит результат)
func (ms *MemoryStore) RequestLoad(id string) <-chan patch.LoadResult {
	out := make(chan patch.LoadResult, 1)

	ms.mu.Lock()
	defer ms.mu.Unlock()

	data, ok := ms.assets[id]
	if !ok {
		out <- patch.LoadResult{Patch: id, Err: fmt.Errorf("ресурс патча %s отсутствует", id)}
		return out
	}

	ms.resident[id] = data
	out <- patch.LoadResult{Patch: id, Data: data}
	return out
}

// RequestUnload выгружает патч
func (ms *MemoryStore) RequestUnload(id string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if _, ok := ms.resident[id]; !ok {
		return fmt.Errorf("патч %s не загружен", id)
	}
	delete(ms.resident, id)
	return nil
}

// EnumerateResident возвращает отсортированные идентификаторы загруженных патчей
func (ms *MemoryStore) EnumerateResident() []string {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	ids := make([]string, 0, len(ms.resident))
	for id := range ms.resident {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Exists сообщает, зарегистрирован ли ресурс для ячейки
func (ms *MemoryStore) Exists(coord vec.Vec2) bool {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	_, ok := ms.assets[ms.addr.IdentifierFor(coord)]
	return ok
}

// CanLoad применяет границу мира
func (ms *MemoryStore) CanLoad(coord vec.Vec2) bool {
	if ms.bound <= 0 {
		return true
	}
	return coord.X >= -ms.bound && coord.X <= ms.bound &&
		coord.Y >= -ms.bound && coord.Y <= ms.bound
}
