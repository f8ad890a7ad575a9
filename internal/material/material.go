package material

import (
	"fmt"
	"strconv"
)

// Orientation описывает, как данные блока кодируют направление
type Orientation uint8

const (
	OrientationNone   Orientation = iota
	OrientationFacing             // 2=N, 3=S, 4=W, 5=E (сундуки, печи, лестницы-ladder, таблички)
	OrientationStairs             // младшие 2 бита: 0=E, 1=W, 2=S, 3=N; бит 4 - перевёрнутые
	OrientationTorch              // 1=E, 2=W, 3=S, 4=N, 5=на полу
	OrientationAxis               // биты 2-3: 0=Y, 1=X, 2=Z; младшие 2 бита - порода
)

func (o Orientation) String() string {
	switch o {
	case OrientationNone:
		return "none"
	case OrientationFacing:
		return "facing"
	case OrientationStairs:
		return "stairs"
	case OrientationTorch:
		return "torch"
	case OrientationAxis:
		return "axis"
	default:
		return "unknown"
	}
}

// MaxData - максимальное значение данных блока
const MaxData = 15

// Material - значение материала: блок и его данные.
// Нулевое значение означает «не разрешён».
type Material struct {
	ID    uint16
	Block string
	Data  uint8
}

// IsZero сообщает, что материал не был разрешён
func (m Material) IsZero() bool {
	return m.Block == ""
}

// Name возвращает каноническое имя: BLOCK или BLOCK:data
func (m Material) Name() string {
	if m.IsZero() {
		return ""
	}
	if m.Data == 0 {
		return m.Block
	}
	return m.Block + ":" + strconv.Itoa(int(m.Data))
}

func (m Material) String() string {
	if m.IsZero() {
		return "<unresolved>"
	}
	return m.Name()
}

// WithData возвращает материал того же блока с другими данными
func (m Material) WithData(data uint8) Material {
	m.Data = data & MaxData
	return m
}

// Definition описывает тип блока в регистре
type Definition struct {
	ID          uint16
	Name        string
	Orientation Orientation
}

func (d Definition) material(data uint8) Material {
	return Material{ID: d.ID, Block: d.Name, Data: data}
}

// rotateData поворачивает данные на один шаг по часовой стрелке (N -> E -> S -> W)
func rotateData(o Orientation, data uint8) uint8 {
	switch o {
	case OrientationFacing:
		switch data {
		case 2:
			return 5
		case 5:
			return 3
		case 3:
			return 4
		case 4:
			return 2
		}
	case OrientationStairs:
		upper := data &^ 3
		switch data & 3 {
		case 3:
			return upper | 0
		case 0:
			return upper | 2
		case 2:
			return upper | 1
		case 1:
			return upper | 3
		}
	case OrientationTorch:
		switch data {
		case 4:
			return 1
		case 1:
			return 3
		case 3:
			return 2
		case 2:
			return 4
		}
	case OrientationAxis:
		kind := data & 3
		switch (data >> 2) & 3 {
		case 1:
			return kind | 2<<2
		case 2:
			return kind | 1<<2
		}
	}
	return data
}

func (d Definition) String() string {
	return fmt.Sprintf("%s(%d,%s)", d.Name, d.ID, d.Orientation)
}
