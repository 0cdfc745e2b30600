package patch

import (
	"sort"

	"github.com/annel0/patch-stream/internal/vec"
)

// fakeStore — хранилище для тестов с ручным завершением загрузок.
// В режиме instant загрузки завершаются прямо в RequestLoad, иначе
// висят до явного вызова finishLoad.
type fakeStore struct {
	resident  map[string][]byte
	data      map[string][]byte
	pending   map[string]chan LoadResult
	loads     []string // идентификаторы в порядке запросов загрузки
	unloads   []string // идентификаторы в порядке запросов выгрузки
	unloadErr map[string]error
	instant   bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		resident:  make(map[string][]byte),
		data:      make(map[string][]byte),
		pending:   make(map[string]chan LoadResult),
		unloadErr: make(map[string]error),
	}
}

func (f *fakeStore) addResident(id string, data []byte) {
	f.resident[id] = data
}

func (f *fakeStore) IsResident(id string) bool {
	_, ok := f.resident[id]
	return ok
}

func (f *fakeStore) RequestLoad(id string) <-chan LoadResult {
	f.loads = append(f.loads, id)
	ch := make(chan LoadResult, 1)
	if f.instant {
		f.resident[id] = f.data[id]
		ch <- LoadResult{Patch: id, Data: f.data[id]}
	} else {
		f.pending[id] = ch
	}
	return ch
}

// finishLoad завершает висящую загрузку; при err != nil патч не становится загруженным
func (f *fakeStore) finishLoad(id string, err error) {
	ch, ok := f.pending[id]
	if !ok {
		panic("finishLoad: нет висящей загрузки для " + id)
	}
	delete(f.pending, id)
	if err == nil {
		f.resident[id] = f.data[id]
	}
	ch <- LoadResult{Patch: id, Data: f.data[id], Err: err}
}

func (f *fakeStore) RequestUnload(id string) error {
	f.unloads = append(f.unloads, id)
	if err := f.unloadErr[id]; err != nil {
		return err
	}
	delete(f.resident, id)
	return nil
}

func (f *fakeStore) EnumerateResident() []string {
	ids := make([]string, 0, len(f.resident))
	for id := range f.resident {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// fakeIndex ограничивает допустимые ячейки квадратом |x|,|z| <= bound
type fakeIndex struct {
	bound int
}

func (f *fakeIndex) Exists(c vec.Vec2) bool {
	return abs(c.X) <= f.bound && abs(c.Y) <= f.bound
}

func (f *fakeIndex) CanLoad(c vec.Vec2) bool {
	return f.Exists(c)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
