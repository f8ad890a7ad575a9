package customobject

import (
	"github.com/annel0/customobjects/internal/rotation"
)

// Kind - семейство формата структуры
type Kind uint8

const (
	KindBO3 Kind = iota
	KindBO4
)

func (k Kind) String() string {
	switch k {
	case KindBO3:
		return "BO3"
	case KindBO4:
		return "BO4"
	default:
		return "unknown"
	}
}

// FunctionType - тег функции структуры, по нему выполняется диспетчеризация
type FunctionType uint8

const (
	FunctionBlock FunctionType = iota
	FunctionBranch
	FunctionWeightedBranch
)

func (t FunctionType) String() string {
	switch t {
	case FunctionBlock:
		return "Block"
	case FunctionBranch:
		return "Branch"
	case FunctionWeightedBranch:
		return "WeightedBranch"
	default:
		return "Unknown"
	}
}

// Function - функция структуры (блок или точка ветвления).
// Экземпляры неизменяемы; повёрнутые копии создаются через Rotate.
type Function interface {
	Type() FunctionType
	Holder() *Holder
	// Format возвращает функцию в текстовой грамматике
	Format() string
}

// Rotate возвращает копию функции, повёрнутую на r
func Rotate(f Function, r rotation.Rotation) Function {
	switch f.Type() {
	case FunctionBlock:
		return f.(*BlockFunction).Rotate(r)
	case FunctionBranch, FunctionWeightedBranch:
		return f.(*BranchFunction).RotateBy(r)
	}
	return f
}
