package astral

import (
	"fmt"
	"strings"
)

// Descriptor table register spaces. Each category lives in its own
// unbounded array; the spaces must match the pipeline root layout the
// backend builds.
const (
	spaceTextures    = 1
	spaceCubes       = 2
	spaceSamplers    = 3
	spaceBuffers     = 4
	spacePushConsts  = 0
	pushConstantName = "g_draw_constants"
)

// BindlessPreamble emits the HLSL prelude prepended to every compiled
// stage: the per-category descriptor arrays, the handle resolution
// helpers, and the packed color decode. Every table subscript goes
// through NonUniformResourceIndex. That annotation is a correctness
// requirement, not a hint: invocations in one wave may resolve
// different handles, and hardware that assumes uniform indices
// produces silently wrong results without it. It is emitted
// unconditionally; there is no build flag to strip it.
func BindlessPreamble() string {
	var b strings.Builder
	b.WriteString("// astral bindless prelude (generated)\n")
	fmt.Fprintf(&b, "Texture2D g_textures[] : register(t0, space%d);\n", spaceTextures)
	fmt.Fprintf(&b, "TextureCube g_texture_cubes[] : register(t0, space%d);\n", spaceCubes)
	fmt.Fprintf(&b, "SamplerState g_samplers[] : register(s0, space%d);\n", spaceSamplers)
	fmt.Fprintf(&b, "ByteAddressBuffer g_buffers[] : register(t0, space%d);\n", spaceBuffers)
	b.WriteString(`
Texture2D GetTexture2D(uint handle)
{
    return g_textures[NonUniformResourceIndex(handle)];
}

TextureCube GetTextureCube(uint handle)
{
    return g_texture_cubes[NonUniformResourceIndex(handle)];
}

SamplerState GetSampler(uint handle)
{
    return g_samplers[NonUniformResourceIndex(handle)];
}

ByteAddressBuffer GetByteAddressBuffer(uint handle)
{
    return g_buffers[NonUniformResourceIndex(handle)];
}

// Typed structured load out of a byte-address table slot. Callers
// guarantee (index) addresses a live element; nothing is clamped.
#define LoadStructured(type, handle, index) \
    (GetByteAddressBuffer(handle).Load<type>((index) * sizeof(type)))

float4 UnpackColor(uint packed)
{
    return float4(
        (packed & 0xFF) / 255.0,
        ((packed >> 8) & 0xFF) / 255.0,
        ((packed >> 16) & 0xFF) / 255.0,
        ((packed >> 24) & 0xFF) / 255.0);
}
`)
	return b.String()
}

// PushConstantDecl emits the shader-side declaration of a per-draw
// constant record from its host layout, so both sides derive from one
// definition instead of hand-maintained copies.
func PushConstantDecl(structName string, layout ConstantLayout, params []ShaderParameter) (string, error) {
	if len(params) != len(layout.Fields) {
		return "", fmt.Errorf("%w: %s declares %d parameters, host layout %s has %d fields",
			ErrLayoutMismatch, structName, len(params), layout.TypeName, len(layout.Fields))
	}
	var b strings.Builder
	fmt.Fprintf(&b, "struct %s\n{\n", structName)
	offset := uintptr(0)
	for i, p := range params {
		size, err := p.Type.ByteSize()
		if err != nil {
			return "", err
		}
		f := layout.Fields[i]
		if size != f.Size || offset != f.Offset {
			return "", fmt.Errorf("%w: parameter %s (%s, %d bytes at %d) vs host field %s (%d bytes at %d)",
				ErrLayoutMismatch, p.Name, p.Type, size, offset, f.Name, f.Size, f.Offset)
		}
		fmt.Fprintf(&b, "    %s %s;\n", p.Type.HLSL(), p.Name)
		offset += size
	}
	b.WriteString("};\n")
	fmt.Fprintf(&b, "[[vk::push_constant]] ConstantBuffer<%s> %s : register(b0, space%d);\n",
		structName, pushConstantName, spacePushConsts)
	return b.String(), nil
}
