package customobject

import (
	"fmt"

	"github.com/annel0/customobjects/internal/rotation"
	"github.com/annel0/customobjects/internal/vec"
)

// StructureCoordinate - результат выбора ветки: какую дочернюю структуру,
// где и с каким поворотом разместить.
type StructureCoordinate struct {
	Name     string
	Position vec.Vec3
	Rotation rotation.Rotation
}

func (c StructureCoordinate) String() string {
	return fmt.Sprintf("%s@%s/%s", c.Name, c.Position, c.Rotation)
}

// RandomSource выдаёт равномерные значения в [0,1). *rand.Rand подходит.
type RandomSource interface {
	Float64() float64
}
