package astral

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
)

// BindlessTables groups the global descriptor tables, one per resource
// category. Resolution functions take the table set explicitly; there
// is no hidden global. Tables are read-mostly during a frame: all
// allocation and release must happen outside any draw's execution
// window (enforced by DescriptorTable's deferred reclamation).
type BindlessTables struct {
	Textures     *DescriptorTable[*wgpu.TextureView]
	TextureCubes *DescriptorTable[*wgpu.TextureView]
	Samplers     *DescriptorTable[*wgpu.Sampler]
	Buffers      *DescriptorTable[*wgpu.Buffer]

	// DebugValidate turns on generation/liveness checks in the
	// Resolve* helpers. Leave it off outside development builds; the
	// resolution contract is "caller guarantees validity".
	DebugValidate bool

	logger Logger
}

// BindlessTableSizes configures per-category capacities. Zero fields
// fall back to defaults sized for a small scene.
type BindlessTableSizes struct {
	Textures       int
	TextureCubes   int
	Samplers       int
	Buffers        int
	FramesInFlight int
}

const (
	defaultTextureSlots = 4096
	defaultCubeSlots    = 256
	defaultSamplerSlots = 64
	defaultBufferSlots  = 1024
)

func NewBindlessTables(sizes BindlessTableSizes, logger Logger) *BindlessTables {
	if logger == nil {
		logger = NewDefaultLogger("astral", false)
	}
	if sizes.Textures <= 0 {
		sizes.Textures = defaultTextureSlots
	}
	if sizes.TextureCubes <= 0 {
		sizes.TextureCubes = defaultCubeSlots
	}
	if sizes.Samplers <= 0 {
		sizes.Samplers = defaultSamplerSlots
	}
	if sizes.Buffers <= 0 {
		sizes.Buffers = defaultBufferSlots
	}
	if sizes.FramesInFlight < 1 {
		sizes.FramesInFlight = 2
	}
	return &BindlessTables{
		Textures:     NewDescriptorTable[*wgpu.TextureView]("textures", sizes.Textures, sizes.FramesInFlight),
		TextureCubes: NewDescriptorTable[*wgpu.TextureView]("texture-cubes", sizes.TextureCubes, sizes.FramesInFlight),
		Samplers:     NewDescriptorTable[*wgpu.Sampler]("samplers", sizes.Samplers, sizes.FramesInFlight),
		Buffers:      NewDescriptorTable[*wgpu.Buffer]("buffers", sizes.Buffers, sizes.FramesInFlight),
		logger:       logger,
	}
}

// AdvanceFrame advances every table's reclamation clock. Call once per
// rendered frame, before recording.
func (bt *BindlessTables) AdvanceFrame() {
	bt.Textures.AdvanceFrame()
	bt.TextureCubes.AdvanceFrame()
	bt.Samplers.AdvanceFrame()
	bt.Buffers.AdvanceFrame()
}

// ResolveTexture2D maps a handle to its 2D texture view.
func (bt *BindlessTables) ResolveTexture2D(h ResourceHandle) *wgpu.TextureView {
	if bt.DebugValidate {
		bt.debugCheck(bt.Textures.Validate(h), ResourceTexture2D, h)
	}
	return bt.Textures.Resolve(h)
}

// ResolveTextureCube maps a handle to its cube texture view.
func (bt *BindlessTables) ResolveTextureCube(h ResourceHandle) *wgpu.TextureView {
	if bt.DebugValidate {
		bt.debugCheck(bt.TextureCubes.Validate(h), ResourceTextureCube, h)
	}
	return bt.TextureCubes.Resolve(h)
}

// ResolveSampler maps a handle to its sampler state.
func (bt *BindlessTables) ResolveSampler(h ResourceHandle) *wgpu.Sampler {
	if bt.DebugValidate {
		bt.debugCheck(bt.Samplers.Validate(h), ResourceSampler, h)
	}
	return bt.Samplers.Resolve(h)
}

// ResolveBuffer maps a handle to its buffer. Structured and
// byte-address access share the buffer table; the element shape is a
// shader-side concern.
func (bt *BindlessTables) ResolveBuffer(h ResourceHandle) *wgpu.Buffer {
	if bt.DebugValidate {
		bt.debugCheck(bt.Buffers.Validate(h), ResourceStructuredBuffer, h)
	}
	return bt.Buffers.Resolve(h)
}

func (bt *BindlessTables) debugCheck(err error, cat ResourceCategory, h ResourceHandle) {
	if err != nil {
		bt.logger.Errorf("bindless resolve %s %s: %v", cat, h, err)
	}
}

// BindlessCaps is the capability surface the binding convention needs
// from a backend. Checked once at configuration time; hot code never
// re-checks.
type BindlessCaps struct {
	MaxSampledTexturesPerStage uint32
	MaxSamplersPerStage        uint32
	MaxStorageBuffersPerStage  uint32
	MaxPushConstantSize        uint32
}

// CapsFromLimits extracts the relevant fields from wgpu device limits.
// wgpu core has no push constant limit field; pass the native extra
// separately (0 means unsupported).
func CapsFromLimits(limits wgpu.Limits, maxPushConstantSize uint32) BindlessCaps {
	return BindlessCaps{
		MaxSampledTexturesPerStage: limits.MaxSampledTexturesPerShaderStage,
		MaxSamplersPerStage:        limits.MaxSamplersPerShaderStage,
		MaxStorageBuffersPerStage:  limits.MaxStorageBuffersPerShaderStage,
		MaxPushConstantSize:        maxPushConstantSize,
	}
}

// minimum capability floor for the binding convention to behave like a
// bindless backend at all
const (
	minSampledTextures  = 256
	minSamplers         = 16
	minStorageBuffers   = 8
	minPushConstantSize = 64
)

// ValidateBindlessSupport fails configuration when the selected
// backend cannot express bindless-style indexing plus inline
// push-style constants. Call it once at device acquisition; do not
// scatter backend checks through draw code.
func ValidateBindlessSupport(caps BindlessCaps) error {
	if caps.MaxSampledTexturesPerStage < minSampledTextures {
		return fmt.Errorf("backend supports %d sampled textures per stage, bindless binding needs at least %d",
			caps.MaxSampledTexturesPerStage, minSampledTextures)
	}
	if caps.MaxSamplersPerStage < minSamplers {
		return fmt.Errorf("backend supports %d samplers per stage, bindless binding needs at least %d",
			caps.MaxSamplersPerStage, minSamplers)
	}
	if caps.MaxStorageBuffersPerStage < minStorageBuffers {
		return fmt.Errorf("backend supports %d storage buffers per stage, bindless binding needs at least %d",
			caps.MaxStorageBuffersPerStage, minStorageBuffers)
	}
	if caps.MaxPushConstantSize < minPushConstantSize {
		return fmt.Errorf("backend push constant budget is %d bytes, inline constants need at least %d",
			caps.MaxPushConstantSize, minPushConstantSize)
	}
	return nil
}
