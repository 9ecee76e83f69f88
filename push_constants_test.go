package astral

import (
	"encoding/binary"
	"errors"
	"math"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConstantLayoutOf_EffectConstants(t *testing.T) {
	layout, err := ConstantLayoutOf(reflect.TypeOf(EffectConstants{}))
	require.NoError(t, err)

	assert.Equal(t, uintptr(16), layout.Size)
	require.Len(t, layout.Fields, 4)
	assert.Equal(t, uintptr(0), layout.Fields[0].Offset)
	assert.Equal(t, uintptr(4), layout.Fields[1].Offset)
	assert.Equal(t, uintptr(8), layout.Fields[2].Offset)
	assert.Equal(t, uintptr(12), layout.Fields[3].Offset)
}

func TestConstantLayoutOf_UiDrawConstants(t *testing.T) {
	layout, err := ConstantLayoutOf(reflect.TypeOf(UiDrawConstants{}))
	require.NoError(t, err)

	// 4x4 matrix plus base vertex plus three handles.
	assert.Equal(t, uintptr(80), layout.Size)
	assert.Equal(t, "Projection", layout.Fields[0].Name)
	assert.Equal(t, uintptr(64), layout.Fields[1].Offset)
}

func TestConstantLayoutOf_RejectsPadding(t *testing.T) {
	type padded struct {
		A uint32
		B uint64 // 4 bytes of alignment padding before this
	}
	_, err := ConstantLayoutOf(reflect.TypeOf(padded{}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "padding")
}

func TestConstantLayoutOf_RejectsUnsupportedTypes(t *testing.T) {
	type bad struct {
		Name string
	}
	_, err := ConstantLayoutOf(reflect.TypeOf(bad{}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported")

	_, err = ConstantLayoutOf(reflect.TypeOf(42))
	require.Error(t, err)
}

func TestConstantLayout_Match(t *testing.T) {
	type hostSide struct {
		Buffer  ResourceHandle
		Texture ResourceHandle
		Sampler ResourceHandle
		Time    float32
	}
	a, err := ConstantLayoutOf(reflect.TypeOf(EffectConstants{}))
	require.NoError(t, err)
	b, err := ConstantLayoutOf(reflect.TypeOf(hostSide{}))
	require.NoError(t, err)

	assert.NoError(t, a.Match(b))
}

func TestConstantLayout_MismatchIsNamedError(t *testing.T) {
	type shorter struct {
		Buffer ResourceHandle
		Time   float32
	}
	a, err := ConstantLayoutOf(reflect.TypeOf(EffectConstants{}))
	require.NoError(t, err)
	b, err := ConstantLayoutOf(reflect.TypeOf(shorter{}))
	require.NoError(t, err)

	err = a.Match(b)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrLayoutMismatch))
}

func TestNewConstantBlock_BudgetCheck(t *testing.T) {
	caps := DefaultBindlessCaps()
	_, err := NewConstantBlock[EffectConstants](caps)
	assert.NoError(t, err)

	caps.MaxPushConstantSize = 8
	_, err = NewConstantBlock[EffectConstants](caps)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "budget")
}

func TestConstantBlock_Bytes(t *testing.T) {
	block, err := NewConstantBlock[EffectConstants](DefaultBindlessCaps())
	require.NoError(t, err)

	pc := EffectConstants{
		VertexBuffer: 3,
		Texture:      7,
		Sampler:      1,
		Time:         0.5,
	}
	data := block.Bytes(&pc)
	require.Len(t, data, 16)

	assert.Equal(t, uint32(3), binary.LittleEndian.Uint32(data[0:4]))
	assert.Equal(t, uint32(7), binary.LittleEndian.Uint32(data[4:8]))
	assert.Equal(t, uint32(1), binary.LittleEndian.Uint32(data[8:12]))
	assert.Equal(t, float32(0.5), math.Float32frombits(binary.LittleEndian.Uint32(data[12:16])))
}

func TestEncodeRecords(t *testing.T) {
	records := []EffectVertex{
		{Position: [2]float32{1, 2}, Color: PackColor(255, 0, 0, 255), UV: [2]float32{0, 1}},
		{Position: [2]float32{3, 4}, Color: PackColor(0, 255, 0, 255), UV: [2]float32{1, 0}},
	}
	data := EncodeRecords(records)
	require.Len(t, data, 40)

	assert.Equal(t, float32(1), math.Float32frombits(binary.LittleEndian.Uint32(data[0:4])))
	assert.Equal(t, uint32(PackColor(255, 0, 0, 255)), binary.LittleEndian.Uint32(data[8:12]))
	assert.Equal(t, float32(3), math.Float32frombits(binary.LittleEndian.Uint32(data[20:24])))
}
