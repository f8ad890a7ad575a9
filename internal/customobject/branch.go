package customobject

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/annel0/customobjects/internal/rotation"
	"github.com/annel0/customobjects/internal/vec"
)

// DefaultTotalChance - знаменатель Branch без явного totalChance: шансы в процентах
const DefaultTotalChance = 100.0

// BranchNode - кандидат ветки: дочерняя структура, её поворот и шанс.
// Дочерняя структура хранится по имени и разрешается лениво.
type BranchNode struct {
	rotation rotation.Rotation
	chance   float64 // сохранённый порог (накопленный в режиме WeightedBranch)
	weight   float64 // шанс, как он записан в определении
	name     string
}

// Rotation возвращает поворот дочерней структуры
func (n BranchNode) Rotation() rotation.Rotation { return n.rotation }

// Chance возвращает сохранённый порог выбора
func (n BranchNode) Chance() float64 { return n.chance }

// Weight возвращает исходный шанс из определения
func (n BranchNode) Weight() float64 { return n.weight }

// Name возвращает имя дочерней структуры
func (n BranchNode) Name() string { return n.name }

type branchEntry struct {
	name     string
	rotation rotation.Rotation
	weight   float64
}

// BranchFunction - точка ветвления Branch(...) или WeightedBranch(...).
type BranchFunction struct {
	x, y, z        int
	nodes          []BranchNode
	totalChance    float64
	totalChanceSet bool
	cumulative     bool
	holder         *Holder
}

// newBranchFunction строит таблицу выбора. В накопительном режиме пороги:
// нарастающие суммы шансов; узлы упорядочены по порогу, при равенстве по порядку записи.
func newBranchFunction(h *Holder, x, y, z int, entries []branchEntry, cumulative bool, explicitTotal *float64) *BranchFunction {
	b := &BranchFunction{
		x:          x,
		y:          y,
		z:          z,
		nodes:      make([]BranchNode, 0, len(entries)),
		cumulative: cumulative,
		holder:     h,
	}

	var sum float64
	for _, e := range entries {
		chance := e.weight
		if cumulative {
			sum += e.weight
			chance = sum
		}
		b.nodes = append(b.nodes, BranchNode{
			rotation: e.rotation,
			chance:   chance,
			weight:   e.weight,
			name:     e.name,
		})
	}
	sort.SliceStable(b.nodes, func(i, j int) bool {
		return b.nodes[i].chance < b.nodes[j].chance
	})

	switch {
	case explicitTotal != nil:
		b.totalChance = *explicitTotal
		b.totalChanceSet = true
	case cumulative:
		b.totalChance = sum
	default:
		b.totalChance = DefaultTotalChance
	}
	return b
}

// ParseBranch разбирает аргументы [x, y, z, (имя, ПОВОРОТ, шанс)*, totalChance?].
// cumulative выбирает накопительный режим WeightedBranch.
func ParseBranch(h *Holder, args []string, cumulative bool) (*BranchFunction, error) {
	function := FunctionBranch.String()
	if cumulative {
		function = FunctionWeightedBranch.String()
	}

	if len(args) < 6 {
		return nil, parseErrorf(function, "нужно минимум 6 аргументов, получено %d", len(args))
	}
	rest := len(args) - 3
	if rest%3 == 2 {
		return nil, parseErrorf(function, "после координат ожидаются тройки (имя, поворот, шанс) и необязательный totalChance, получено %d аргументов", rest)
	}

	x, err := readInt(function, "x", args[0], -32, 32)
	if err != nil {
		return nil, err
	}
	y, err := readInt(function, "y", args[1], -64, 64)
	if err != nil {
		return nil, err
	}
	z, err := readInt(function, "z", args[2], -32, 32)
	if err != nil {
		return nil, err
	}

	entries := make([]branchEntry, 0, rest/3)
	i := 3
	for ; i+2 < len(args); i += 3 {
		name := args[i]
		if name == "" {
			return nil, parseErrorf(function, "пустое имя структуры в аргументе %d", i+1)
		}
		rot, err := rotation.Parse(args[i+1])
		if err != nil {
			return nil, &ConfigParseError{Function: function, Reason: "аргумент " + strconv.Itoa(i+2), Err: err}
		}
		weight, err := readDouble(function, "chance", args[i+2], 0, math.MaxFloat64)
		if err != nil {
			return nil, err
		}
		entries = append(entries, branchEntry{name: name, rotation: rot, weight: weight})
	}

	var explicit *float64
	if i < len(args) {
		total, err := readDouble(function, "totalChance", args[i], 0, math.MaxFloat64)
		if err != nil {
			return nil, err
		}
		explicit = &total
	}

	return newBranchFunction(h, x, y, z, entries, cumulative, explicit), nil
}

// Type реализует Function
func (b *BranchFunction) Type() FunctionType {
	if b.cumulative {
		return FunctionWeightedBranch
	}
	return FunctionBranch
}

// Holder реализует Function
func (b *BranchFunction) Holder() *Holder { return b.holder }

// Offset возвращает локальное смещение точки ветвления
func (b *BranchFunction) Offset() vec.Vec3 { return vec.Vec3{X: b.x, Y: b.y, Z: b.z} }

// Nodes возвращает копию узлов в порядке выбора
func (b *BranchFunction) Nodes() []BranchNode {
	return append([]BranchNode(nil), b.nodes...)
}

// TotalChance возвращает знаменатель вероятности
func (b *BranchFunction) TotalChance() float64 { return b.totalChance }

// TotalChanceSet сообщает, что totalChance задан явно
func (b *BranchFunction) TotalChanceSet() bool { return b.totalChanceSet }

// Cumulative сообщает о накопительном режиме
func (b *BranchFunction) Cumulative() bool { return b.cumulative }

// Evaluate выбирает не более одной ветки.
//
// Накопительный режим: одно значение random*totalChance, выбирается первый узел,
// чей порог больше него. Независимый режим: каждый узел по порядку проверяется
// своим броском и проходит с вероятностью chance/totalChance.
// При totalChance == 0 ветка не выбирается никогда.
func (b *BranchFunction) Evaluate(anchor vec.Vec3, rot rotation.Rotation, rnd RandomSource) (StructureCoordinate, bool) {
	if b.totalChance <= 0 || len(b.nodes) == 0 {
		return StructureCoordinate{}, false
	}

	if b.cumulative {
		draw := rnd.Float64() * b.totalChance
		for _, n := range b.nodes {
			if n.chance > draw {
				return b.coordinate(n, anchor, rot), true
			}
		}
		return StructureCoordinate{}, false
	}

	for _, n := range b.nodes {
		if n.chance > rnd.Float64()*b.totalChance {
			return b.coordinate(n, anchor, rot), true
		}
	}
	return StructureCoordinate{}, false
}

func (b *BranchFunction) coordinate(n BranchNode, anchor vec.Vec3, rot rotation.Rotation) StructureCoordinate {
	x, y, z := rotation.RotateBranchOffset(b.x, b.y, b.z, rot)
	return StructureCoordinate{
		Name:     n.name,
		Position: anchor.Add(vec.Vec3{X: x, Y: y, Z: z}),
		Rotation: n.rotation.Compose(rot),
	}
}

// Rotate поворачивает точку ветвления на один шаг: смещение по формуле ветвления,
// поворот каждого узла сдвигается на следующий.
func (b *BranchFunction) Rotate() *BranchFunction {
	rotated := &BranchFunction{
		nodes:          make([]BranchNode, len(b.nodes)),
		totalChance:    b.totalChance,
		totalChanceSet: b.totalChanceSet,
		cumulative:     b.cumulative,
		holder:         b.holder,
	}
	rotated.x, rotated.y, rotated.z = rotation.RotateBranchOffset(b.x, b.y, b.z, rotation.East)
	for i, n := range b.nodes {
		n.rotation = n.rotation.Next()
		rotated.nodes[i] = n
	}
	return rotated
}

// RotateBy применяет Rotate r.Steps() раз
func (b *BranchFunction) RotateBy(r rotation.Rotation) *BranchFunction {
	rotated := b
	for i := 0; i < r.Steps(); i++ {
		rotated = rotated.Rotate()
	}
	return rotated
}

// Format реализует Function
func (b *BranchFunction) Format() string {
	var sb strings.Builder
	sb.WriteString(b.Type().String())
	sb.WriteString("(")
	sb.WriteString(strconv.Itoa(b.x))
	sb.WriteString(",")
	sb.WriteString(strconv.Itoa(b.y))
	sb.WriteString(",")
	sb.WriteString(strconv.Itoa(b.z))

	for _, e := range b.entries() {
		sb.WriteString(",")
		sb.WriteString(e.name)
		sb.WriteString(",")
		sb.WriteString(e.rotation.String())
		sb.WriteString(",")
		sb.WriteString(formatFloat(e.weight))
	}
	if b.totalChanceSet {
		sb.WriteString(",")
		sb.WriteString(formatFloat(b.totalChance))
	}
	sb.WriteString(")")
	return sb.String()
}

func (b *BranchFunction) String() string { return b.Format() }

// entries возвращает узлы в форме определения
func (b *BranchFunction) entries() []branchEntry {
	entries := make([]branchEntry, len(b.nodes))
	for i, n := range b.nodes {
		entries[i] = branchEntry{name: n.name, rotation: n.rotation, weight: n.weight}
	}
	return entries
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
