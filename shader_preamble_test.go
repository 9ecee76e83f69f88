package astral

import (
	"reflect"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBindlessPreamble_NonUniformIndexing(t *testing.T) {
	prelude := BindlessPreamble()

	// Every table subscript must go through NonUniformResourceIndex;
	// a bare handle subscript is a wave-uniformity bug on hardware
	// that assumes uniform descriptor indices.
	subscripts := []string{
		"g_textures[NonUniformResourceIndex(handle)]",
		"g_texture_cubes[NonUniformResourceIndex(handle)]",
		"g_samplers[NonUniformResourceIndex(handle)]",
		"g_buffers[NonUniformResourceIndex(handle)]",
	}
	for _, s := range subscripts {
		assert.Contains(t, prelude, s)
	}
	for _, table := range []string{"g_textures", "g_texture_cubes", "g_samplers", "g_buffers"} {
		if strings.Contains(prelude, table+"[handle]") {
			t.Errorf("Table %s indexed without NonUniformResourceIndex", table)
		}
	}
}

func TestBindlessPreamble_Helpers(t *testing.T) {
	prelude := BindlessPreamble()
	for _, helper := range []string{"GetTexture2D", "GetTextureCube", "GetSampler", "GetByteAddressBuffer", "LoadStructured", "UnpackColor"} {
		assert.Contains(t, prelude, helper)
	}
}

func TestPushConstantDecl_MatchingLayout(t *testing.T) {
	layout, err := ConstantLayoutOf(reflect.TypeOf(EffectConstants{}))
	require.NoError(t, err)

	params := []ShaderParameter{
		{Name: "vertex_buffer", Type: ParamByteAddressBuffer},
		{Name: "color_texture", Type: ParamTexture2D},
		{Name: "color_sampler", Type: ParamSampler},
		{Name: "time", Type: ParamFloat},
	}
	decl, err := PushConstantDecl("DrawConstants", layout, params)
	require.NoError(t, err)

	assert.Contains(t, decl, "struct DrawConstants")
	// Resource parameters cross the boundary as uint handles.
	assert.Contains(t, decl, "uint vertex_buffer;")
	assert.Contains(t, decl, "uint color_texture;")
	assert.Contains(t, decl, "uint color_sampler;")
	assert.Contains(t, decl, "float time;")
	assert.Contains(t, decl, "g_draw_constants")
}

func TestPushConstantDecl_FieldCountMismatch(t *testing.T) {
	layout, err := ConstantLayoutOf(reflect.TypeOf(EffectConstants{}))
	require.NoError(t, err)

	_, err = PushConstantDecl("DrawConstants", layout, []ShaderParameter{
		{Name: "vertex_buffer", Type: ParamByteAddressBuffer},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrLayoutMismatch)
}

func TestPushConstantDecl_SizeMismatch(t *testing.T) {
	layout, err := ConstantLayoutOf(reflect.TypeOf(EffectConstants{}))
	require.NoError(t, err)

	// float4 is 16 bytes where the host field is 4: positional check
	// fails on the first parameter.
	_, err = PushConstantDecl("DrawConstants", layout, []ShaderParameter{
		{Name: "vertex_buffer", Type: ParamFloat4},
		{Name: "color_texture", Type: ParamTexture2D},
		{Name: "color_sampler", Type: ParamSampler},
		{Name: "time", Type: ParamFloat},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrLayoutMismatch)
	assert.Contains(t, err.Error(), "vertex_buffer")
}
