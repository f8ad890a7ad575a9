package customobject

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/annel0/customobjects/internal/logging"
	"github.com/annel0/customobjects/internal/rotation"
)

// recordWriter накапливает big-endian запись
type recordWriter struct {
	buf []byte
}

func (w *recordWriter) Bytes() []byte { return w.buf }

func (w *recordWriter) writeInt8(v int8) { w.buf = append(w.buf, byte(v)) }

func (w *recordWriter) writeUint8(v uint8) { w.buf = append(w.buf, v) }

func (w *recordWriter) writeInt16(v int16) { w.buf = binary.BigEndian.AppendUint16(w.buf, uint16(v)) }

func (w *recordWriter) writeUint16(v uint16) { w.buf = binary.BigEndian.AppendUint16(w.buf, v) }

func (w *recordWriter) writeUint32(v uint32) { w.buf = binary.BigEndian.AppendUint32(w.buf, v) }

func (w *recordWriter) writeFloat64(v float64) {
	w.buf = binary.BigEndian.AppendUint64(w.buf, math.Float64bits(v))
}

func (w *recordWriter) writeString(field, s string) error {
	if len(s) > math.MaxUint16 {
		return &EncodeError{Field: field, Reason: fmt.Sprintf("строка длиной %d не помещается", len(s))}
	}
	w.writeUint16(uint16(len(s)))
	w.buf = append(w.buf, s...)
	return nil
}

// recordReader читает запись; любая нехватка байтов - DecodeError
type recordReader struct {
	data []byte
	off  int
}

func newRecordReader(data []byte) *recordReader {
	return &recordReader{data: data}
}

func (r *recordReader) take(field string, n int) ([]byte, error) {
	if n < 0 || r.off+n > len(r.data) {
		return nil, &DecodeError{Offset: r.off, Field: field, Err: io.ErrUnexpectedEOF}
	}
	b := r.data[r.off : r.off+n]
	r.off += n
	return b, nil
}

func (r *recordReader) readInt8(field string) (int8, error) {
	b, err := r.take(field, 1)
	if err != nil {
		return 0, err
	}
	return int8(b[0]), nil
}

func (r *recordReader) readUint8(field string) (uint8, error) {
	b, err := r.take(field, 1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *recordReader) readInt16(field string) (int16, error) {
	b, err := r.take(field, 2)
	if err != nil {
		return 0, err
	}
	return int16(binary.BigEndian.Uint16(b)), nil
}

func (r *recordReader) readUint16(field string) (uint16, error) {
	b, err := r.take(field, 2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

func (r *recordReader) readUint32(field string) (uint32, error) {
	b, err := r.take(field, 4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

func (r *recordReader) readFloat64(field string) (float64, error) {
	b, err := r.take(field, 8)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(binary.BigEndian.Uint64(b)), nil
}

func (r *recordReader) readString(field string) (string, error) {
	n, err := r.readUint16(field)
	if err != nil {
		return "", err
	}
	b, err := r.take(field, int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (r *recordReader) expectEnd() error {
	if r.off != len(r.data) {
		return &DecodeError{Offset: r.off, Field: "trailer", Err: fmt.Errorf("лишние %d байт", len(r.data)-r.off)}
	}
	return nil
}

const (
	branchFlagCumulative  = 1 << 0
	branchFlagTotalChance = 1 << 1
)

// EncodeStructure кодирует всю структуру для бинарного кеша:
// [kind u8][u16 настроек]{ключ, значение}[u32 функций]{[тип u8][запись]}
func EncodeStructure(h *Holder) ([]byte, error) {
	w := &recordWriter{}
	w.writeUint8(uint8(h.kind))

	keys := h.SettingKeys()
	if len(keys) > math.MaxUint16 {
		return nil, &EncodeError{Field: "settings", Reason: "слишком много настроек"}
	}
	w.writeUint16(uint16(len(keys)))
	for _, k := range keys {
		if err := w.writeString("setting key", k); err != nil {
			return nil, err
		}
		if err := w.writeString("setting value", h.settings[k]); err != nil {
			return nil, err
		}
	}

	w.writeUint32(uint32(len(h.functions)))
	for _, f := range h.functions {
		w.writeUint8(uint8(f.Type()))
		switch f.Type() {
		case FunctionBlock:
			if err := f.(*BlockFunction).writeTo(w); err != nil {
				return nil, fmt.Errorf("%s: %w", f.Format(), err)
			}
		case FunctionBranch, FunctionWeightedBranch:
			if err := f.(*BranchFunction).writeTo(w); err != nil {
				return nil, fmt.Errorf("%s: %w", f.Format(), err)
			}
		default:
			return nil, &EncodeError{Field: "function", Reason: fmt.Sprintf("неизвестный тип %d", f.Type())}
		}
	}
	return w.Bytes(), nil
}

// DecodeStructure восстанавливает структуру из бинарного кеша.
// Всё или ничего: при любой ошибке структура не возвращается.
func DecodeStructure(name, file string, data []byte, opts HolderOptions) (*Holder, error) {
	r := newRecordReader(data)

	kind, err := r.readUint8("kind")
	if err != nil {
		return nil, err
	}
	if Kind(kind) != KindBO3 && Kind(kind) != KindBO4 {
		return nil, &DecodeError{Offset: 0, Field: "kind", Err: fmt.Errorf("неизвестное семейство %d", kind)}
	}
	opts.Kind = Kind(kind)
	h := NewHolder(name, file, opts)

	settings, err := r.readUint16("settings")
	if err != nil {
		return nil, err
	}
	for i := 0; i < int(settings); i++ {
		key, err := r.readString("setting key")
		if err != nil {
			return nil, err
		}
		value, err := r.readString("setting value")
		if err != nil {
			return nil, err
		}
		h.setSetting(key, value)
	}

	count, err := r.readUint32("functions")
	if err != nil {
		return nil, err
	}
	// Каждая функция занимает минимум 7 байт; защищаемся от мусорного счётчика
	if int64(count)*7 > int64(len(data)-r.off) {
		return nil, &DecodeError{Offset: r.off, Field: "functions", Err: fmt.Errorf("счётчик %d превышает данные", count)}
	}

	h.functions = make([]Function, 0, count)
	for i := uint32(0); i < count; i++ {
		start := r.off
		t, err := r.readUint8("function type")
		if err != nil {
			return nil, err
		}
		switch FunctionType(t) {
		case FunctionBlock:
			b, err := readBlockFunction(r, h)
			if err != nil {
				return nil, err
			}
			h.add(b)
		case FunctionBranch, FunctionWeightedBranch:
			b, err := readBranchFunction(r, h, FunctionType(t))
			if err != nil {
				return nil, err
			}
			h.add(b)
		default:
			return nil, &DecodeError{Offset: start, Field: "function type", Err: fmt.Errorf("неизвестный тип %d", t)}
		}
	}

	if err := r.expectEnd(); err != nil {
		return nil, err
	}
	return h, nil
}

func (b *BranchFunction) writeTo(w *recordWriter) error {
	if b.x < math.MinInt8 || b.x > math.MaxInt8 || b.z < math.MinInt8 || b.z > math.MaxInt8 {
		return &EncodeError{Field: "offset", Reason: fmt.Sprintf("(%d,%d,%d) вне диапазона", b.x, b.y, b.z)}
	}
	if b.y < math.MinInt16 || b.y > math.MaxInt16 {
		return &EncodeError{Field: "y", Reason: fmt.Sprintf("%d вне диапазона int16", b.y)}
	}
	if len(b.nodes) > math.MaxUint16 {
		return &EncodeError{Field: "nodes", Reason: "слишком много веток"}
	}

	w.writeInt8(int8(b.x))
	w.writeInt16(int16(b.y))
	w.writeInt8(int8(b.z))

	var flags uint8
	if b.cumulative {
		flags |= branchFlagCumulative
	}
	if b.totalChanceSet {
		flags |= branchFlagTotalChance
	}
	w.writeUint8(flags)
	w.writeFloat64(b.totalChance)

	w.writeUint16(uint16(len(b.nodes)))
	for _, n := range b.nodes {
		if err := w.writeString("branch name", n.name); err != nil {
			return err
		}
		w.writeUint8(uint8(n.rotation))
		w.writeFloat64(n.weight)
	}
	return nil
}

func readBranchFunction(r *recordReader, h *Holder, t FunctionType) (*BranchFunction, error) {
	x, err := r.readInt8("branch x")
	if err != nil {
		return nil, err
	}
	y, err := r.readInt16("branch y")
	if err != nil {
		return nil, err
	}
	z, err := r.readInt8("branch z")
	if err != nil {
		return nil, err
	}
	flags, err := r.readUint8("branch flags")
	if err != nil {
		return nil, err
	}
	total, err := r.readFloat64("total chance")
	if err != nil {
		return nil, err
	}
	n, err := r.readUint16("branch nodes")
	if err != nil {
		return nil, err
	}

	cumulative := flags&branchFlagCumulative != 0
	if cumulative != (t == FunctionWeightedBranch) {
		return nil, &DecodeError{Offset: r.off, Field: "branch flags", Err: fmt.Errorf("режим не совпадает с типом %s", t)}
	}

	entries := make([]branchEntry, 0, n)
	for i := 0; i < int(n); i++ {
		name, err := r.readString("branch name")
		if err != nil {
			return nil, err
		}
		rot, err := r.readUint8("branch rotation")
		if err != nil {
			return nil, err
		}
		if !rotation.Rotation(rot).Valid() {
			return nil, &DecodeError{Offset: r.off - 1, Field: "branch rotation", Err: fmt.Errorf("недопустимый поворот %d", rot)}
		}
		weight, err := r.readFloat64("branch chance")
		if err != nil {
			return nil, err
		}
		if !validChance(weight) {
			return nil, &DecodeError{Offset: r.off - 8, Field: "branch chance", Err: fmt.Errorf("недопустимый шанс %v", weight)}
		}
		entries = append(entries, branchEntry{name: name, rotation: rotation.Rotation(rot), weight: weight})
	}

	var explicit *float64
	if flags&branchFlagTotalChance != 0 {
		if !validChance(total) {
			return nil, &DecodeError{Offset: r.off, Field: "total chance", Err: fmt.Errorf("недопустимый шанс %v", total)}
		}
		explicit = &total
	}

	return newBranchFunction(h, int(x), int(y), int(z), entries, cumulative, explicit), nil
}

func holderLogger(h *Holder) *logging.Logger {
	if h != nil && h.logger != nil {
		return h.logger
	}
	return logging.GetParserLogger()
}

func holderName(h *Holder) string {
	if h == nil {
		return "<no holder>"
	}
	return h.name
}
