package store

import (
	"time"

	"github.com/aquilax/go-perlin"

	"github.com/annel0/patch-stream/internal/vec"
)

// PatchSideCells — разрешение полезной нагрузки патча (ячеек на сторону)
const PatchSideCells = 16

// PatchData — полезная нагрузка патча: карта высот и биом.
// Сериализуется в JSON и хранится в BadgerDB в сжатом виде.
type PatchData struct {
	Coord       vec.Vec2  `json:"coord"`
	Size        int       `json:"size"`
	Heights     []float64 `json:"heights"` // Size*Size, построчно
	Biome       string    `json:"biome"`
	GeneratedAt time.Time `json:"generated_at,omitempty"`
}

// Generator создаёт полезную нагрузку патчей из шума Перлина.
// Используется хранилищем, когда у патча внутри границ мира нет сохранённых данных.
type Generator struct {
	noise *perlin.Perlin
	seed  int64
}

// NewGenerator создаёт генератор рельефа с указанным сидом
func NewGenerator(seed int64) *Generator {
	alpha := 2.0  // Сглаживание шума
	beta := 2.0   // Частота шума
	n := int32(3) // Количество октав
	return &Generator{
		noise: perlin.NewPerlin(alpha, beta, n, seed),
		seed:  seed,
	}
}

// Generate строит данные патча для ячейки сетки
func (g *Generator) Generate(coord vec.Vec2) *PatchData {
	heights := make([]float64, PatchSideCells*PatchSideCells)

	var sum float64
	for z := 0; z < PatchSideCells; z++ {
		for x := 0; x < PatchSideCells; x++ {
			wx := float64(coord.X*PatchSideCells+x) / 64.0
			wz := float64(coord.Y*PatchSideCells+z) / 64.0
			// Noise2D возвращает [-1, 1], приводим к [0, 1]
			h := (g.noise.Noise2D(wx, wz) + 1.0) / 2.0
			heights[z*PatchSideCells+x] = h
			sum += h
		}
	}

	mean := sum / float64(len(heights))
	return &PatchData{
		Coord:       coord,
		Size:        PatchSideCells,
		Heights:     heights,
		Biome:       biomeForHeight(mean),
		GeneratedAt: time.Now().UTC(),
	}
}

// biomeForHeight выбирает биом по средней высоте патча
func biomeForHeight(mean float64) string {
	switch {
	case mean < 0.35:
		return "water"
	case mean < 0.55:
		return "plains"
	case mean < 0.75:
		return "forest"
	default:
		return "mountains"
	}
}
