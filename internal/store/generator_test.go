package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/patch-stream/internal/vec"
)

func TestGenerator_Deterministic(t *testing.T) {
	coord := vec.Vec2{X: 3, Y: -2}

	a := NewGenerator(42).Generate(coord)
	b := NewGenerator(42).Generate(coord)

	// Один сид — одинаковый рельеф
	assert.Equal(t, a.Heights, b.Heights)
	assert.Equal(t, a.Biome, b.Biome)

	// Другой сид — другой рельеф
	c := NewGenerator(1337).Generate(coord)
	assert.NotEqual(t, a.Heights, c.Heights)
}

func TestGenerator_PayloadShape(t *testing.T) {
	data := NewGenerator(7).Generate(vec.Vec2{X: 0, Y: 0})

	require.NotNil(t, data)
	assert.Equal(t, PatchSideCells, data.Size)
	assert.Len(t, data.Heights, PatchSideCells*PatchSideCells)
	assert.Equal(t, vec.Vec2{X: 0, Y: 0}, data.Coord)
	assert.NotEmpty(t, data.Biome)
	assert.False(t, data.GeneratedAt.IsZero())

	// Высоты нормированы в [0, 1]
	for i, h := range data.Heights {
		assert.GreaterOrEqual(t, h, 0.0, "высота %d", i)
		assert.LessOrEqual(t, h, 1.0, "высота %d", i)
	}
}

func TestGenerator_NeighboursDiffer(t *testing.T) {
	g := NewGenerator(42)

	a := g.Generate(vec.Vec2{X: 0, Y: 0})
	b := g.Generate(vec.Vec2{X: 1, Y: 0})
	assert.NotEqual(t, a.Heights, b.Heights, "соседние патчи не совпадают")
}

func TestBiomeForHeight(t *testing.T) {
	assert.Equal(t, "water", biomeForHeight(0.1))
	assert.Equal(t, "plains", biomeForHeight(0.45))
	assert.Equal(t, "forest", biomeForHeight(0.6))
	assert.Equal(t, "mountains", biomeForHeight(0.9))
}
