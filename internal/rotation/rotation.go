// Package rotation содержит алгебру поворотов структур вокруг вертикальной оси.
package rotation

import (
	"fmt"
	"strconv"
	"strings"
)

// Rotation - один из четырёх поворотов на 90° вокруг оси Y.
// Значение совпадает с числом шагов по часовой стрелке от NORTH.
type Rotation uint8

const (
	North Rotation = iota
	East
	South
	West
)

// Count - порядок циклической группы поворотов
const Count = 4

// Span - ширина выравниваемого следа структуры (один чанк)
const Span = 16

var names = [Count]string{"NORTH", "EAST", "SOUTH", "WEST"}

// Parse возвращает поворот по токену конфигурации: имя (без учёта регистра) или id 0..3.
func Parse(token string) (Rotation, error) {
	t := strings.ToUpper(strings.TrimSpace(token))
	for i, name := range names {
		if name == t {
			return Rotation(i), nil
		}
	}
	if id, err := strconv.Atoi(t); err == nil && id >= 0 && id < Count {
		return Rotation(id), nil
	}
	return North, fmt.Errorf("неизвестный поворот %q", token)
}

// FromSteps приводит произвольное число шагов к повороту (mod 4).
func FromSteps(steps int) Rotation {
	s := steps % Count
	if s < 0 {
		s += Count
	}
	return Rotation(s)
}

// Valid сообщает, входит ли значение в группу
func (r Rotation) Valid() bool { return r < Count }

// Steps возвращает id поворота
func (r Rotation) Steps() int { return int(r) % Count }

// Next возвращает следующий поворот
func (r Rotation) Next() Rotation { return FromSteps(r.Steps() + 1) }

// Compose складывает повороты по модулю 4
func (r Rotation) Compose(other Rotation) Rotation { return FromSteps(r.Steps() + other.Steps()) }

// Inverse возвращает обратный поворот
func (r Rotation) Inverse() Rotation { return FromSteps(Count - r.Steps()) }

func (r Rotation) String() string {
	if !r.Valid() {
		return fmt.Sprintf("Rotation(%d)", uint8(r))
	}
	return names[r]
}

// RotateCoordinate поворачивает смещение на r шагов по часовой стрелке.
// Один шаг: (x, z) -> (-z, x). В выровненном варианте шаг (x, z) -> (Span-1-z, x),
// след [0,Span) остаётся неотрицательным. Y не меняется.
func RotateCoordinate(x, y, z int, r Rotation, justified bool) (int, int, int) {
	for i := 0; i < r.Steps(); i++ {
		if justified {
			x, z = Span-1-z, x
		} else {
			x, z = -z, x
		}
	}
	return x, y, z
}

// RotateBranchOffset поворачивает смещение точки ветвления r раз формулой
// x' = z-1, y' = y, z' = -x. Эта формула отличается от RotateCoordinate
// и используется только для Branch-функций.
func RotateBranchOffset(x, y, z int, r Rotation) (int, int, int) {
	for i := 0; i < r.Steps(); i++ {
		x, z = z-1, -x
	}
	return x, y, z
}
