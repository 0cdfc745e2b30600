package patch

import "github.com/annel0/patch-stream/internal/vec"

// LoadResult — результат асинхронной загрузки патча из хранилища.
type LoadResult struct {
	Patch string // Идентификатор патча
	Data  []byte // Полезная нагрузка загруженного ресурса
	Err   error  // Ошибка загрузки (nil при успехе)
}

// ResourceStore — внешняя система ресурсов, владеющая множеством загруженных патчей.
// Ядро стриминга только наблюдает это множество и запрашивает мутации,
// никогда не изменяя его напрямую.
type ResourceStore interface {
	// IsResident сообщает, загружен ли патч в данный момент
	IsResident(id string) bool

	// RequestLoad начинает асинхронную загрузку патча.
	// Возвращённый канал получает ровно один результат.
	RequestLoad(id string) <-chan LoadResult

	// RequestUnload выгружает патч; завершается синхронно с точки зрения планировщика
	RequestUnload(id string) error

	// EnumerateResident возвращает идентификаторы всех загруженных патчей
	EnumerateResident() []string
}

// AssetIndex отвечает на вопросы о существовании и допустимости загрузки патча.
// Реализуется хранилищем или внешней конфигурацией мира.
type AssetIndex interface {
	// Exists сообщает, есть ли ресурс для этой ячейки
	Exists(coord vec.Vec2) bool

	// CanLoad применяет политику допуска (например, границы мира)
	CanLoad(coord vec.Vec2) bool
}

// ResidentTracker получает уведомления об изменении множества загруженных патчей.
// Используется для зеркалирования состояния во внешние системы (Redis).
type ResidentTracker interface {
	MarkLoaded(id string)
	MarkUnloaded(id string)
}
