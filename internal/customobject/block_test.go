package customobject

import (
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/customobjects/internal/metadata"
	"github.com/annel0/customobjects/internal/rotation"
	"github.com/annel0/customobjects/internal/vec"
)

func TestBlock_Serialize_Layout(t *testing.T) {
	loader := metadata.NewMemoryLoader()
	h := newTestHolder(KindBO3, loader)
	b := mustParse(h, `Block(1,-2,3,CHEST:2,chest.nbt)`).(*BlockFunction)

	data, err := b.Serialize()
	require.NoError(t, err)

	want := []byte{0x01, 0xFF, 0xFE, 0x03, 0x00, 0x07}
	want = append(want, "CHEST:2"...)
	want = append(want, 0x00, 0x09)
	want = append(want, "chest.nbt"...)
	assert.Equal(t, want, data)
}

func TestBlock_RoundTrip(t *testing.T) {
	loader := metadata.NewMemoryLoader()
	loader.Put("chest.nbt", &metadata.Tag{Name: "chest.nbt"})
	h := newTestHolder(KindBO3, loader)

	for _, line := range []string{
		`Block(0,0,0,STONE)`,
		`Block(-128,-32768,127,WOOD_STAIRS:6)`,
		`Block(5,64,5,CHEST:2,chest.nbt)`,
		`Block(1,1,1,UNKNOWN_THING)`,
	} {
		b := mustParse(h, line).(*BlockFunction)
		data, err := b.Serialize()
		require.NoError(t, err, line)

		decoded, err := DeserializeBlockFunction(data, h)
		require.NoError(t, err, line)
		assert.Equal(t, b.Offset(), decoded.Offset(), line)
		assert.Equal(t, b.Material().Name(), decoded.Material().Name(), line)
		assert.Equal(t, b.MaterialName(), decoded.MaterialName(), line)
		assert.Equal(t, b.Format(), decoded.Format(), line)
		assert.Equal(t, b.MetadataName(), decoded.MetadataName(), line)
		assert.Same(t, h, decoded.Holder())
	}
}

func TestBlock_DecodeUnknownMaterialIsNotFatal(t *testing.T) {
	h := newTestHolder(KindBO3, nil)
	w := &recordWriter{}
	w.writeInt8(2)
	w.writeInt16(10)
	w.writeInt8(3)
	require.NoError(t, w.writeString("material", "NOT_A_BLOCK"))
	require.NoError(t, w.writeString("metadata", ""))

	b, err := DeserializeBlockFunction(w.Bytes(), h)
	require.NoError(t, err)
	assert.False(t, b.Resolved(), "Материал остаётся неразрешённым")
	assert.Equal(t, vec.Vec3{X: 2, Y: 10, Z: 3}, b.Offset())
	assert.Equal(t, "NOT_A_BLOCK", b.MaterialName())
	assert.Equal(t, "Block(2,10,3,NOT_A_BLOCK)", b.Format())

	again, err := b.Serialize()
	require.NoError(t, err)
	assert.Equal(t, w.Bytes(), again, "Запись кодируется обратно без потерь")

	rotated := b.Rotate(rotation.East)
	assert.Equal(t, "NOT_A_BLOCK", rotated.MaterialName(), "Имя сохраняется при повороте")
}

func TestBlock_ParsedUnknownMaterialKeepsName(t *testing.T) {
	h := newTestHolder(KindBO3, nil)
	b := mustParse(h, `Block(1,1,1,UNKNOWN_THING)`).(*BlockFunction)
	assert.False(t, b.Resolved())
	assert.Equal(t, "Block(1,1,1,UNKNOWN_THING)", b.Format())

	data, err := b.Serialize()
	require.NoError(t, err)
	decoded, err := DeserializeBlockFunction(data, h)
	require.NoError(t, err)
	assert.Equal(t, "UNKNOWN_THING", decoded.MaterialName())
}

func TestBlock_DecodeClearsUnresolvableMetadata(t *testing.T) {
	loader := metadata.NewMemoryLoader()
	h := newTestHolder(KindBO3, loader)
	b := NewBlockFunction(h, 0, 0, 0, DefaultRegistry().MustParse("CHEST"), "missing.nbt")

	data, err := b.Serialize()
	require.NoError(t, err)

	decoded, err := DeserializeBlockFunction(data, h)
	require.NoError(t, err)
	assert.Equal(t, "", decoded.MetadataName(), "Имя метаданных сбрасывается")
	assert.True(t, decoded.Resolved())
	assert.Equal(t, int64(1), loader.Calls())
}

func TestBlock_DecodeTruncated(t *testing.T) {
	h := newTestHolder(KindBO3, nil)
	b := mustParse(h, `Block(1,2,3,STONE)`).(*BlockFunction)
	data, err := b.Serialize()
	require.NoError(t, err)

	for n := 0; n < len(data); n++ {
		_, err := DeserializeBlockFunction(data[:n], h)
		var de *DecodeError
		require.True(t, errors.As(err, &de), "префикс %d байт", n)
		assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	}

	_, err = DeserializeBlockFunction(append(data, 0), h)
	var de *DecodeError
	assert.True(t, errors.As(err, &de), "Лишние байты - ошибка")
}

func TestBlock_SerializeOutOfRange(t *testing.T) {
	h := newTestHolder(KindBO3, nil)
	b := mustParse(h, `Block(-128,0,0,STONE)`).(*BlockFunction)

	// После трёх шагов вокруг начала z = 128 не помещается в int8
	_, err := b.Rotate(rotation.West).Serialize()
	var ee *EncodeError
	assert.True(t, errors.As(err, &ee))
}

func TestBlock_Rotate(t *testing.T) {
	h := newTestHolder(KindBO4, nil)
	b := mustParse(h, `Block(1,5,2,CHEST:2,chest.nbt)`).(*BlockFunction)

	east := b.Rotate(rotation.East)
	assert.Equal(t, vec.Vec3{X: 13, Y: 5, Z: 1}, east.Offset())
	assert.Equal(t, "CHEST:5", east.Material().Name())
	assert.Equal(t, "chest.nbt", east.MetadataName(), "Метаданные не меняются")

	south := b.Rotate(rotation.South)
	assert.Equal(t, vec.Vec3{X: 14, Y: 5, Z: 13}, south.Offset())
	assert.Equal(t, "CHEST:3", south.Material().Name())

	west := b.Rotate(rotation.West)
	assert.Equal(t, "CHEST:4", west.Material().Name())

	north := b.Rotate(rotation.North)
	assert.Equal(t, b.Offset(), north.Offset())
	assert.Equal(t, b.Material(), north.Material())
	assert.NotSame(t, b, north)

	assert.Equal(t, vec.Vec3{X: 1, Y: 5, Z: 2}, b.Offset(), "Исходный блок не изменяется")
}

func TestBlock_RotateBO3AroundOrigin(t *testing.T) {
	h := newTestHolder(KindBO3, nil)
	b := mustParse(h, `Block(20,0,0,CHEST:2)`).(*BlockFunction)

	east := b.Rotate(rotation.East)
	assert.Equal(t, vec.Vec3{X: 0, Y: 0, Z: 20}, east.Offset())
	assert.Equal(t, "CHEST:5", east.Material().Name())
	assert.Equal(t, vec.Vec3{X: -20, Y: 0, Z: 0}, b.Rotate(rotation.South).Offset())
	assert.Equal(t, vec.Vec3{X: 0, Y: 0, Z: -20}, b.Rotate(rotation.West).Offset())

	for r := rotation.North; r < rotation.Count; r++ {
		_, err := b.Rotate(r).Serialize()
		assert.NoError(t, err, "Повёрнутый блок BO3 остаётся в диапазоне записи")
	}
}

func TestBlock_RotateClosure(t *testing.T) {
	h := newTestHolder(KindBO4, nil)
	for _, line := range []string{
		`Block(0,0,0,STONE)`,
		`Block(3,1,12,WOOD_STAIRS:5)`,
		`Block(15,2,0,LOG:4)`,
		`Block(7,9,7,TORCH:3)`,
	} {
		b := mustParse(h, line).(*BlockFunction)
		for r := rotation.North; r < rotation.Count; r++ {
			f := b.Rotate(r).Rotate(r).Rotate(r).Rotate(r)
			assert.Equal(t, b.Offset(), f.Offset(), "%s %s", line, r)
			assert.Equal(t, b.Material(), f.Material(), "%s %s", line, r)
		}
		generic := Rotate(Rotate(Rotate(Rotate(b, rotation.East), rotation.East), rotation.East), rotation.East)
		assert.Equal(t, b.Format(), generic.Format())
	}
}

func TestBlock_LazyMetadata(t *testing.T) {
	loader := metadata.NewMemoryLoader()
	loader.Put("spawner.nbt", &metadata.Tag{Name: "spawner.nbt", Root: map[string]interface{}{"EntityId": "Zombie"}})
	h := newTestHolder(KindBO3, loader)

	b := mustParse(h, `Block(0,0,0,STONE,spawner.nbt)`).(*BlockFunction)
	assert.Equal(t, int64(0), loader.Calls(), "Разбор не загружает метаданные")

	tag, err := b.Metadata()
	require.NoError(t, err)
	assert.Equal(t, "Zombie", tag.Root["EntityId"])

	_, err = b.Rotate(rotation.South).Metadata()
	require.NoError(t, err)
	assert.Equal(t, int64(1), loader.Calls(), "Результат запоминается в структуре")

	plain := mustParse(h, `Block(0,0,0,STONE)`).(*BlockFunction)
	tag, err = plain.Metadata()
	assert.NoError(t, err)
	assert.Nil(t, tag)
}
