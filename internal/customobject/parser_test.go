package customobject

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/customobjects/internal/vec"
)

func TestParseStructure_SkipsBadLines(t *testing.T) {
	src := strings.Join([]string{
		"// заголовок",
		"Block(0,0,0,STONE)",
		"Block(0,0)",
		"Teleport(1,2,3)",
		"Branch(0,0,0,A,UP,10)",
		"просто текст",
		"Block(1,0,0,DIRT)",
	}, "\n")

	h, errs, err := ParseStructure("Bad", "/structures/Bad.bo3", strings.NewReader(src), testOptions(KindBO3))
	require.NoError(t, err)
	require.Len(t, h.Functions(), 2, "Хорошие строки сохраняются")
	assert.Equal(t, "Block(1,0,0,DIRT)", h.Functions()[1].Format())

	require.Len(t, errs, 4)
	lines := make([]int, 0, len(errs))
	for _, pe := range errs {
		lines = append(lines, pe.Line)
	}
	assert.Equal(t, []int{3, 4, 5, 6}, lines)
	assert.Equal(t, "Teleport", errs[1].Function)
	assert.Contains(t, errs[0].Error(), "строка 3")
}

func TestParseStructure_Settings(t *testing.T) {
	src := "Author: someone\nminimumY : 40\nFrequency:3\nBlock(0,0,0,minecraft:stone)\n"
	h, errs, err := ParseStructure("S", "", strings.NewReader(src), testOptions(KindBO3))
	require.NoError(t, err)
	assert.Empty(t, errs)

	v, ok := h.Setting("MinimumY")
	assert.True(t, ok)
	assert.Equal(t, "40", v)
	assert.Equal(t, []string{"author", "frequency", "minimumy"}, h.SettingKeys())
	assert.Equal(t, "Block(0,0,0,STONE)", h.Functions()[0].Format())
}

func TestParseBlock_Ranges(t *testing.T) {
	bo4 := newTestHolder(KindBO4, nil)
	for _, line := range []string{
		"Block(16,0,0,STONE)",
		"Block(-1,0,0,STONE)",
		"Block(0,0,16,STONE)",
		"Block(0,40000,0,STONE)",
		"Block(a,0,0,STONE)",
		"Block(0,0,0,STONE,x.nbt,extra)",
	} {
		_, err := ParseFunction(bo4, line)
		var pe *ConfigParseError
		assert.True(t, errors.As(err, &pe), line)
	}

	bo3 := newTestHolder(KindBO3, nil)
	f, err := ParseFunction(bo3, "Block(-128,-32768,127,STONE)")
	require.NoError(t, err)
	assert.Equal(t, vec.Vec3{X: -128, Y: -32768, Z: 127}, f.(*BlockFunction).Offset())

	_, err = ParseFunction(bo3, "Block(128,0,0,STONE)")
	assert.Error(t, err)
}

func TestParseBlock_UnknownMaterial(t *testing.T) {
	h := newTestHolder(KindBO3, nil)
	f, err := ParseFunction(h, "Block(0,0,0,UNOBTAINIUM)")
	require.NoError(t, err, "Неизвестный материал не ошибка разбора")
	assert.False(t, f.(*BlockFunction).Resolved())
}

func TestParseFunction_Quoting(t *testing.T) {
	h := newTestHolder(KindBO3, nil)
	f, err := ParseFunction(h, `block( 1 , 2 , 3 , "CHEST:2" , "loot, rare.nbt" )`)
	require.NoError(t, err)
	b := f.(*BlockFunction)
	assert.Equal(t, "CHEST:2", b.Material().Name())
	assert.Equal(t, "loot, rare.nbt", b.MetadataName())

	br, err := ParseFunction(h, `WeightedBranch(0,0,0,'My House',east,50)`)
	require.NoError(t, err)
	assert.Equal(t, "My House", br.(*BranchFunction).Nodes()[0].Name())

	_, err = ParseFunction(h, `Block(0,0,0,"STONE)`)
	assert.Error(t, err)
}
