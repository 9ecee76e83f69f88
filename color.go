package astral

// Packed 32-bit RGBA color, 8 bits per channel, red in the least
// significant byte. This is the wire format vertex colors use inside
// structured buffers; shaders unpack it with the same byte order.
type PackedColor uint32

// PackColor packs four byte channels into the R-first layout.
func PackColor(r, g, b, a uint8) PackedColor {
	return PackedColor(uint32(r) | uint32(g)<<8 | uint32(b)<<16 | uint32(a)<<24)
}

// DecodeColor expands a packed color to four normalized channels in
// [0,1], channel/255. Pure helper, mirrors the shader-side unpack.
func DecodeColor(c PackedColor) (r, g, b, a float32) {
	r = float32(uint32(c)&0xFF) / 255.0
	g = float32(uint32(c)>>8&0xFF) / 255.0
	b = float32(uint32(c)>>16&0xFF) / 255.0
	a = float32(uint32(c)>>24&0xFF) / 255.0
	return
}

// DecodeColorVec4 is DecodeColor shaped for uniform encoding.
func DecodeColorVec4(c PackedColor) [4]float32 {
	r, g, b, a := DecodeColor(c)
	return [4]float32{r, g, b, a}
}
