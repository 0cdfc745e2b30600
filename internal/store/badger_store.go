package store

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"sync"

	"github.com/dgraph-io/badger/v3"
	"github.com/klauspost/compress/zstd"

	"github.com/annel0/patch-stream/internal/logging"
	"github.com/annel0/patch-stream/internal/patch"
	"github.com/annel0/patch-stream/internal/vec"
)

// BadgerOptions — параметры постоянного хранилища патчей
type BadgerOptions struct {
	Path       string            // Каталог данных
	Addressing *patch.Addressing // Схема адресации для разбора идентификаторов
	Generator  *Generator        // nil — генерация отсутствующих патчей отключена
	WorldBound int               // Граница мира в патчах от центра; 0 = без границы
}

// BadgerStore — постоянное хранилище патчей поверх BadgerDB.
// Полезные нагрузки лежат на диске (JSON, сжатый zstd), множество загруженных
// патчей держится в памяти. Загрузки исполняются отдельной горутиной, поэтому
// RequestLoad действительно асинхронен с точки зрения планировщика.
//
// Реализует patch.ResourceStore и patch.AssetIndex.
type BadgerStore struct {
	db   *badger.DB
	addr *patch.Addressing
	gen  *Generator

	bound int

	mu       sync.RWMutex
	resident map[string]*PatchData

	loadCh chan loadRequest
	quit   chan struct{}
	wg     sync.WaitGroup

	compressor   *zstd.Encoder
	decompressor *zstd.Decoder
}

// loadRequest — заявка на загрузку для горутины-загрузчика
type loadRequest struct {
	id  string
	out chan patch.LoadResult
}

// NewBadgerStore открывает хранилище и запускает загрузчик
func NewBadgerStore(opts BadgerOptions) (*BadgerStore, error) {
	dbPath := filepath.Join(opts.Path, "patches")
	badgerOpts := badger.DefaultOptions(dbPath)
	badgerOpts.Logger = nil // Отключаем логирование BadgerDB

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("не удалось открыть BadgerDB: %w", err)
	}

	compressor, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("zstd writer: %w", err)
	}
	decompressor, err := zstd.NewReader(nil)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("zstd reader: %w", err)
	}

	bs := &BadgerStore{
		db:           db,
		addr:         opts.Addressing,
		gen:          opts.Generator,
		bound:        opts.WorldBound,
		resident:     make(map[string]*PatchData),
		loadCh:       make(chan loadRequest, 64),
		quit:         make(chan struct{}),
		compressor:   compressor,
		decompressor: decompressor,
	}

	bs.wg.Add(1)
	go bs.loaderLoop()

	return bs, nil
}

// Close останавливает загрузчик и закрывает базу
func (bs *BadgerStore) Close() error {
	close(bs.quit)
	bs.wg.Wait()
	bs.decompressor.Close()
	_ = bs.compressor.Close()
	return bs.db.Close()
}

// IsResident сообщает, загружен ли патч
func (bs *BadgerStore) IsResident(id string) bool {
	bs.mu.RLock()
	defer bs.mu.RUnlock()
	_, ok := bs.resident[id]
	return ok
}

// RequestLoad ставит заявку на загрузку. Канал получает ровно один результат.
func (bs *BadgerStore) RequestLoad(id string) <-chan patch.LoadResult {
	out := make(chan patch.LoadResult, 1)
	select {
	case bs.loadCh <- loadRequest{id: id, out: out}:
	case <-bs.quit:
		out <- patch.LoadResult{Patch: id, Err: fmt.Errorf("хранилище закрыто")}
	}
	return out
}

// RequestUnload выгружает патч из памяти; данные на диске не трогаются
func (bs *BadgerStore) RequestUnload(id string) error {
	bs.mu.Lock()
	defer bs.mu.Unlock()

	if _, ok := bs.resident[id]; !ok {
		return fmt.Errorf("патч %s не загружен", id)
	}
	delete(bs.resident, id)
	return nil
}

// EnumerateResident возвращает отсортированные идентификаторы загруженных патчей
func (bs *BadgerStore) EnumerateResident() []string {
	bs.mu.RLock()
	defer bs.mu.RUnlock()

	ids := make([]string, 0, len(bs.resident))
	for id := range bs.resident {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Resident возвращает данные загруженного патча (для REST-слоя)
func (bs *BadgerStore) Resident(id string) (*PatchData, bool) {
	bs.mu.RLock()
	defer bs.mu.RUnlock()
	data, ok := bs.resident[id]
	return data, ok
}

// Exists сообщает, есть ли ресурс для ячейки: сохранённый на диске либо
// порождаемый генератором внутри границ мира
func (bs *BadgerStore) Exists(coord vec.Vec2) bool {
	if bs.hasStored(coord) {
		return true
	}
	return bs.gen != nil && bs.inBounds(coord)
}

// CanLoad применяет политику допуска: границы мира
func (bs *BadgerStore) CanLoad(coord vec.Vec2) bool {
	return bs.inBounds(coord)
}

// inBounds проверяет границу мира (0 = безгранично)
func (bs *BadgerStore) inBounds(coord vec.Vec2) bool {
	if bs.bound <= 0 {
		return true
	}
	return coord.X >= -bs.bound && coord.X <= bs.bound &&
		coord.Y >= -bs.bound && coord.Y <= bs.bound
}

// hasStored проверяет наличие сохранённых данных патча
func (bs *BadgerStore) hasStored(coord vec.Vec2) bool {
	err := bs.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(patchKey(coord))
		return err
	})
	return err == nil
}

// loaderLoop последовательно исполняет заявки на загрузку
func (bs *BadgerStore) loaderLoop() {
	defer bs.wg.Done()

	for {
		select {
		case <-bs.quit:
			return
		case req := <-bs.loadCh:
			req.out <- bs.load(req.id)
		}
	}
}

// load читает патч с диска, при отсутствии — генерирует и сохраняет
func (bs *BadgerStore) load(id string) patch.LoadResult {
	coord, ok := bs.addr.ParseIdentifier(id)
	if !ok {
		return patch.LoadResult{Patch: id, Err: fmt.Errorf("идентификатор %s не принадлежит схеме адресации", id)}
	}

	data, err := bs.readPatch(coord)
	if err == badger.ErrKeyNotFound {
		if bs.gen == nil || !bs.inBounds(coord) {
			return patch.LoadResult{Patch: id, Err: fmt.Errorf("ресурс патча %s отсутствует", id)}
		}
		data = bs.gen.Generate(coord)
		if err := bs.writePatch(coord, data); err != nil {
			return patch.LoadResult{Patch: id, Err: err}
		}
		logging.Debug("Патч %s сгенерирован (биом %s)", id, data.Biome)
	} else if err != nil {
		return patch.LoadResult{Patch: id, Err: err}
	}

	bs.mu.Lock()
	bs.resident[id] = data
	bs.mu.Unlock()

	raw, err := json.Marshal(data)
	if err != nil {
		return patch.LoadResult{Patch: id, Err: fmt.Errorf("ошибка сериализации патча: %w", err)}
	}
	return patch.LoadResult{Patch: id, Data: raw}
}

// readPatch читает и распаковывает данные патча
func (bs *BadgerStore) readPatch(coord vec.Vec2) (*PatchData, error) {
	var compressed []byte
	err := bs.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(patchKey(coord))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			compressed = append([]byte{}, val...)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	raw, err := bs.decompressor.DecodeAll(compressed, nil)
	if err != nil {
		return nil, fmt.Errorf("ошибка распаковки патча: %w", err)
	}

	var data PatchData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("ошибка десериализации патча: %w", err)
	}
	return &data, nil
}

// writePatch сжимает и сохраняет данные патча
func (bs *BadgerStore) writePatch(coord vec.Vec2, data *PatchData) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("ошибка сериализации патча: %w", err)
	}

	compressed := bs.compressor.EncodeAll(raw, nil)
	err = bs.db.Update(func(txn *badger.Txn) error {
		return txn.Set(patchKey(coord), compressed)
	})
	if err != nil {
		return fmt.Errorf("ошибка сохранения в BadgerDB: %w", err)
	}
	return nil
}

// patchKey — ключ BadgerDB для ячейки сетки
func patchKey(coord vec.Vec2) []byte {
	return []byte(fmt.Sprintf("patch:%d:%d", coord.X, coord.Y))
}
