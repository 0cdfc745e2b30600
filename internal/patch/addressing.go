package patch

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/annel0/patch-stream/internal/vec"
)

// Addressing отображает мировые позиции в ячейки сетки и канонические
// идентификаторы патчей вида "<prefix>_<x>_<z>".
type Addressing struct {
	patchSize float64
	prefix    string
	index     AssetIndex
}

// NewAddressing создаёт схему адресации.
// index может быть nil — тогда Exists/CanLoad всегда true (политика допуска не задана).
func NewAddressing(patchSize float64, prefix string, index AssetIndex) (*Addressing, error) {
	if patchSize <= 0 {
		return nil, &ConfigurationError{Reason: fmt.Sprintf("размер патча должен быть > 0, получен %v", patchSize)}
	}
	if prefix == "" {
		return nil, &ConfigurationError{Reason: "префикс идентификаторов пуст"}
	}
	return &Addressing{patchSize: patchSize, prefix: prefix, index: index}, nil
}

// SetIndex задаёт индекс ресурсов после создания хранилища.
// Нужен, потому что хранилище само разбирает идентификаторы через эту же схему.
func (a *Addressing) SetIndex(index AssetIndex) {
	a.index = index
}

// PatchSize возвращает размер патча в мировых единицах
func (a *Addressing) PatchSize() float64 { return a.patchSize }

// Prefix возвращает префикс идентификаторов
func (a *Addressing) Prefix() string { return a.prefix }

// CoordinateFor переводит мировую позицию в координату ячейки для заданного
// размера патча. Округление к ближайшему целому, половины — от нуля
// (50/100 -> 1, -50/100 -> -1).
func CoordinateFor(pos vec.Vec2Float, patchSize float64) (vec.Vec2, error) {
	if patchSize <= 0 {
		return vec.Vec2{}, &ConfigurationError{Reason: fmt.Sprintf("размер патча должен быть > 0, получен %v", patchSize)}
	}
	return vec.Vec2{
		X: int(math.Round(pos.X / patchSize)),
		Y: int(math.Round(pos.Y / patchSize)),
	}, nil
}

// Coordinate переводит мировую позицию в координату ячейки этой схемы.
// Размер патча проверен при создании, поэтому ошибка невозможна.
func (a *Addressing) Coordinate(pos vec.Vec2Float) vec.Vec2 {
	coord, _ := CoordinateFor(pos, a.patchSize)
	return coord
}

// IdentifierFor формирует канонический идентификатор патча.
// Отображение инъективно: два разных coord всегда дают разные строки.
func (a *Addressing) IdentifierFor(coord vec.Vec2) string {
	return fmt.Sprintf("%s_%d_%d", a.prefix, coord.X, coord.Y)
}

// IdentifierAt возвращает идентификатор патча, содержащего позицию
func (a *Addressing) IdentifierAt(pos vec.Vec2Float) string {
	return a.IdentifierFor(a.Coordinate(pos))
}

// ParseIdentifier восстанавливает координату из идентификатора.
// Возвращает false, если строка не принадлежит этой схеме адресации.
func (a *Addressing) ParseIdentifier(id string) (vec.Vec2, bool) {
	rest, ok := strings.CutPrefix(id, a.prefix+"_")
	if !ok {
		return vec.Vec2{}, false
	}

	parts := strings.Split(rest, "_")
	if len(parts) != 2 {
		return vec.Vec2{}, false
	}

	x, err := strconv.Atoi(parts[0])
	if err != nil {
		return vec.Vec2{}, false
	}
	y, err := strconv.Atoi(parts[1])
	if err != nil {
		return vec.Vec2{}, false
	}

	return vec.Vec2{X: x, Y: y}, true
}

// Owns проверяет, принадлежит ли идентификатор этой схеме адресации
func (a *Addressing) Owns(id string) bool {
	_, ok := a.ParseIdentifier(id)
	return ok
}

// Exists сообщает, есть ли ресурс для ячейки во внешнем хранилище
func (a *Addressing) Exists(coord vec.Vec2) bool {
	if a.index == nil {
		return true
	}
	return a.index.Exists(coord)
}

// CanLoad объединяет существование ресурса с политикой допуска
func (a *Addressing) CanLoad(coord vec.Vec2) bool {
	if a.index == nil {
		return true
	}
	return a.index.Exists(coord) && a.index.CanLoad(coord)
}
