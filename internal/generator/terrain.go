package generator

import (
	"math"

	"github.com/aquilax/go-perlin"
)

// Terrain задаёт высоту поверхности шумом Перлина; по ней выбирается
// высота начала структуры, если она не указана явно.
type Terrain struct {
	noise     *perlin.Perlin
	scale     float64
	baseY     int
	amplitude int
}

// NewTerrain создаёт рельеф с указанным сидом
func NewTerrain(seed int64) *Terrain {
	alpha := 2.0  // Сглаживание шума
	beta := 2.0   // Частота шума
	n := int32(3) // Количество октав
	return &Terrain{
		noise:     perlin.NewPerlin(alpha, beta, n, seed),
		scale:     0.05,
		baseY:     64,
		amplitude: 16,
	}
}

// SurfaceY возвращает высоту поверхности в колонке (x, z)
func (t *Terrain) SurfaceY(x, z int) int {
	n := t.noise.Noise2D(float64(x)*t.scale, float64(z)*t.scale)
	n = math.Max(-1, math.Min(1, n))
	return t.baseY + int(math.Round(n*float64(t.amplitude)))
}
