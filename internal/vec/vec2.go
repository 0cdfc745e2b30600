package vec

import "math"

// Vec2 представляет дискретные координаты ячейки сетки.
// X — индекс вдоль мировой оси X, Y — вдоль мировой оси Z.
type Vec2 struct {
	X, Y int
}

// Add складывает координаты
func (v Vec2) Add(other Vec2) Vec2 {
	return Vec2{X: v.X + other.X, Y: v.Y + other.Y}
}

// InWindow проверяет, попадает ли координата в квадратное окно [c-r, c+r] включительно
func (v Vec2) InWindow(center Vec2, radius int) bool {
	return v.X >= center.X-radius && v.X <= center.X+radius &&
		v.Y >= center.Y-radius && v.Y <= center.Y+radius
}

// DistanceTo вычисляет расстояние до другой ячейки
func (v Vec2) DistanceTo(other Vec2) float64 {
	dx := float64(v.X - other.X)
	dy := float64(v.Y - other.Y)
	return math.Sqrt(dx*dx + dy*dy)
}
