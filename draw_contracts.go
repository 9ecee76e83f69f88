package astral

import "github.com/go-gl/mathgl/mgl32"

// The concrete per-draw constant contracts the engine ships. Each
// shader module declares its own matching record; binary compatibility
// is checked once at pipeline setup via ConstantLayout.Match.

// UiDrawConstants is the contract for UI draws: screen-space
// projection plus the handles the stages pull vertices and texels
// through. BaseVertex is added to the invocation index so one large
// vertex buffer serves many widget draws.
type UiDrawConstants struct {
	Projection   mgl32.Mat4
	BaseVertex   uint32
	VertexBuffer ResourceHandle
	Texture      ResourceHandle
	Sampler      ResourceHandle
}

// EffectConstants is the contract for the fullscreen test effect.
type EffectConstants struct {
	VertexBuffer ResourceHandle
	Texture      ResourceHandle
	Sampler      ResourceHandle
	Time         float32
}

// EffectVertex is the record shape the test effect reads out of its
// structured vertex buffer.
type EffectVertex struct {
	Position [2]float32
	Color    PackedColor
	UV       [2]float32
}

// UiProjection builds the top-left-origin orthographic projection UI
// draws expect, mapping pixel coordinates to clip space.
func UiProjection(displayX, displayY, displayWidth, displayHeight float32) mgl32.Mat4 {
	left := displayX
	right := displayX + displayWidth
	top := displayY
	bottom := displayY + displayHeight
	return mgl32.Ortho2D(left, right, bottom, top)
}
