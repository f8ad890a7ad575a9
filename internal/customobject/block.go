package customobject

import (
	"fmt"
	"math"
	"strings"

	"github.com/annel0/customobjects/internal/material"
	"github.com/annel0/customobjects/internal/metadata"
	"github.com/annel0/customobjects/internal/rotation"
	"github.com/annel0/customobjects/internal/vec"
)

// BlockFunction - размещение одного блока: смещение, материал и
// необязательное имя файла метаданных.
type BlockFunction struct {
	x, y, z      int
	material     material.Material
	// materialName - имя из определения; для неразрешённого материала
	// единственный источник имени при выводе
	materialName string
	metadataName string
	holder       *Holder
}

// NewBlockFunction создаёт блок структуры
func NewBlockFunction(holder *Holder, x, y, z int, mat material.Material, metadataName string) *BlockFunction {
	return &BlockFunction{
		x:            x,
		y:            y,
		z:            z,
		material:     mat,
		materialName: mat.Name(),
		metadataName: metadataName,
		holder:       holder,
	}
}

// Type реализует Function
func (b *BlockFunction) Type() FunctionType { return FunctionBlock }

// Holder реализует Function
func (b *BlockFunction) Holder() *Holder { return b.holder }

// Offset возвращает смещение от начала структуры
func (b *BlockFunction) Offset() vec.Vec3 { return vec.Vec3{X: b.x, Y: b.y, Z: b.z} }

// Material возвращает материал; нулевое значение - не разрешён
func (b *BlockFunction) Material() material.Material { return b.material }

// Resolved сообщает, что материал известен и блок можно разместить
func (b *BlockFunction) Resolved() bool { return !b.material.IsZero() }

// MaterialName возвращает имя материала для вывода. Неразрешённый материал
// сохраняет имя из определения.
func (b *BlockFunction) MaterialName() string {
	if b.Resolved() {
		return b.material.Name()
	}
	return b.materialName
}

// MetadataName возвращает имя файла метаданных или ""
func (b *BlockFunction) MetadataName() string { return b.metadataName }

// Metadata лениво загружает тег метаданных через структуру-владельца
func (b *BlockFunction) Metadata() (*metadata.Tag, error) {
	if b.metadataName == "" {
		return nil, nil
	}
	if b.holder == nil {
		return nil, fmt.Errorf("%w: блок без структуры", metadata.ErrNotFound)
	}
	return b.holder.ResolveMetadata(b.metadataName)
}

// Rotate возвращает копию с повёрнутым смещением и материалом.
// Блоки BO4 занимают один чанк и поворачиваются с выравниванием в [0, Span),
// блоки BO3 - вокруг начала структуры.
// id поворота равен числу шагов поворота материала.
func (b *BlockFunction) Rotate(r rotation.Rotation) *BlockFunction {
	rotated := *b
	justified := b.holder != nil && b.holder.kind == KindBO4
	rotated.x, rotated.y, rotated.z = rotation.RotateCoordinate(b.x, b.y, b.z, r, justified)
	if steps := r.Steps(); steps > 0 && b.Resolved() && b.holder != nil && b.holder.registry != nil {
		rotated.material = b.holder.registry.Rotate(b.material, steps)
		rotated.materialName = rotated.material.Name()
	}
	return &rotated
}

// Format реализует Function
func (b *BlockFunction) Format() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Block(%d,%d,%d,%s", b.x, b.y, b.z, b.MaterialName())
	if b.metadataName != "" {
		sb.WriteString(",")
		sb.WriteString(b.metadataName)
	}
	sb.WriteString(")")
	return sb.String()
}

func (b *BlockFunction) String() string { return b.Format() }

// Serialize кодирует блок:
// [int8 x][int16 y][int8 z][u16 длина + имя материала][u16 длина + имя метаданных]
func (b *BlockFunction) Serialize() ([]byte, error) {
	w := &recordWriter{}
	if err := b.writeTo(w); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

func (b *BlockFunction) writeTo(w *recordWriter) error {
	if b.x < math.MinInt8 || b.x > math.MaxInt8 {
		return &EncodeError{Field: "x", Reason: fmt.Sprintf("%d вне диапазона int8", b.x)}
	}
	if b.y < math.MinInt16 || b.y > math.MaxInt16 {
		return &EncodeError{Field: "y", Reason: fmt.Sprintf("%d вне диапазона int16", b.y)}
	}
	if b.z < math.MinInt8 || b.z > math.MaxInt8 {
		return &EncodeError{Field: "z", Reason: fmt.Sprintf("%d вне диапазона int8", b.z)}
	}

	w.writeInt8(int8(b.x))
	w.writeInt16(int16(b.y))
	w.writeInt8(int8(b.z))
	if err := w.writeString("material", b.MaterialName()); err != nil {
		return err
	}
	return w.writeString("metadata", b.metadataName)
}

// DeserializeBlockFunction декодирует одну запись блока.
func DeserializeBlockFunction(data []byte, holder *Holder) (*BlockFunction, error) {
	r := newRecordReader(data)
	b, err := readBlockFunction(r, holder)
	if err != nil {
		return nil, err
	}
	if err := r.expectEnd(); err != nil {
		return nil, err
	}
	return b, nil
}

// readBlockFunction читает запись блока. Неизвестный материал не делает запись
// ошибочной: материал остаётся неразрешённым. Неразрешимые метаданные сбрасываются.
func readBlockFunction(r *recordReader, holder *Holder) (*BlockFunction, error) {
	x, err := r.readInt8("x")
	if err != nil {
		return nil, err
	}
	y, err := r.readInt16("y")
	if err != nil {
		return nil, err
	}
	z, err := r.readInt8("z")
	if err != nil {
		return nil, err
	}
	materialName, err := r.readString("material")
	if err != nil {
		return nil, err
	}
	metadataName, err := r.readString("metadata")
	if err != nil {
		return nil, err
	}

	b := &BlockFunction{
		x:            int(x),
		y:            int(y),
		z:            int(z),
		materialName: materialName,
		holder:       holder,
	}

	if materialName != "" {
		mat, err := resolveMaterial(holder, materialName)
		if err != nil {
			holderLogger(holder).Warn("%s: блок (%d,%d,%d) без материала: %v", holderName(holder), b.x, b.y, b.z, err)
		} else {
			b.material = mat
			b.materialName = mat.Name()
		}
	}

	if metadataName != "" && holder != nil {
		if _, err := holder.ResolveMetadata(metadataName); err != nil {
			holderLogger(holder).Debug("%s: метаданные %s не загружены: %v", holderName(holder), metadataName, err)
		} else {
			b.metadataName = metadataName
		}
	}

	return b, nil
}

func resolveMaterial(holder *Holder, name string) (material.Material, error) {
	registry := DefaultRegistry()
	if holder != nil && holder.registry != nil {
		registry = holder.registry
	}
	mat, err := registry.Parse(name)
	if err != nil {
		return material.Material{}, &MaterialResolutionError{Name: name, Err: err}
	}
	return mat, nil
}
