package patch

import "github.com/annel0/patch-stream/internal/vec"

// Updater пересчитывает окно видимости вокруг опорной точки и ставит в очередь
// загрузки недостающих патчей и выгрузки вышедших из окна.
// Пересчёт не хранит состояние между вызовами: корректность зависит только от
// текущего множества загруженных патчей и членства в окне.
type Updater struct {
	addr   *Addressing
	queue  *Queue
	store  ResourceStore
	radius int
}

// NewUpdater создаёт обновлятор видимости. Радиус меньше 1 поднимается до 1.
func NewUpdater(addr *Addressing, queue *Queue, store ResourceStore, radius int) *Updater {
	if radius < 1 {
		radius = 1
	}
	return &Updater{
		addr:   addr,
		queue:  queue,
		store:  store,
		radius: radius,
	}
}

// Radius возвращает радиус видимости в патчах
func (u *Updater) Radius() int { return u.radius }

// Update выполняет один проход видимости для опорной позиции.
// Окно квадратное и включающее: (2r+1)^2 кандидатов, без радиального отсечения.
func (u *Updater) Update(ref vec.Vec2Float) {
	center := u.addr.Coordinate(ref)

	window := make(map[string]struct{}, (2*u.radius+1)*(2*u.radius+1))
	for dx := -u.radius; dx <= u.radius; dx++ {
		for dz := -u.radius; dz <= u.radius; dz++ {
			coord := center.Add(vec.Vec2{X: dx, Y: dz})
			id := u.addr.IdentifierFor(coord)
			window[id] = struct{}{}

			if !u.addr.CanLoad(coord) {
				continue
			}
			// Очередь сама подавит дубликаты и уже загруженные патчи
			u.queue.EnqueueLoad(id, nil)
		}
	}

	// Выгружаем загруженные патчи схемы, выпавшие из окна.
	// Залоченные и чужие идентификаторы отфильтрует очередь.
	for _, id := range u.store.EnumerateResident() {
		if _, inWindow := window[id]; inWindow {
			continue
		}
		u.queue.EnqueueUnload(id, nil)
	}
}
