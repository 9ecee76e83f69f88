package astral

import (
	"fmt"
	"runtime"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/cogentcore/webgpu/wgpuglfw"
	"github.com/go-gl/glfw/v3.3/glfw"
)

// GpuOptions configures context creation. Zero values fall back to
// defaults.
type GpuOptions struct {
	Width  int
	Height int
	Title  string

	// Caps overrides the capability surface validated at startup.
	// Zero means DefaultBindlessCaps.
	Caps BindlessCaps

	TableSizes BindlessTableSizes
	Logger     Logger
}

// DefaultBindlessCaps is the capability envelope of the native wgpu
// targets this toolkit is built for. Backends that query real device
// limits can build caps with CapsFromLimits instead.
func DefaultBindlessCaps() BindlessCaps {
	return BindlessCaps{
		MaxSampledTexturesPerStage: defaultTextureSlots,
		MaxSamplersPerStage:        defaultSamplerSlots,
		MaxStorageBuffersPerStage:  defaultBufferSlots,
		// Emulated push constants are sliced out of a uniform ring at
		// the dynamic offset stride, so one stride is the per-draw
		// budget.
		MaxPushConstantSize: uniformOffsetAlign,
	}
}

// GpuContext owns the window, the wgpu device and queue, and the
// bindless descriptor tables. Creation performs the bindless
// capability check once; nothing downstream re-checks.
type GpuContext struct {
	window        *glfw.Window
	surface       *wgpu.Surface
	adapter       *wgpu.Adapter
	device        *wgpu.Device
	queue         *wgpu.Queue
	surfaceConfig *wgpu.SurfaceConfiguration

	Caps   BindlessCaps
	Tables *BindlessTables
	logger Logger
}

// NewGpuContext opens a window, acquires a device and validates the
// bindless capability floor. Must be called from the main goroutine;
// the OS thread is locked for GLFW.
func NewGpuContext(opts GpuOptions) (*GpuContext, error) {
	if opts.Width <= 0 {
		opts.Width = 1280
	}
	if opts.Height <= 0 {
		opts.Height = 720
	}
	if opts.Title == "" {
		opts.Title = "Astral"
	}
	if opts.Logger == nil {
		opts.Logger = NewDefaultLogger("astral", false)
	}
	if (opts.Caps == BindlessCaps{}) {
		opts.Caps = DefaultBindlessCaps()
	}
	if err := ValidateBindlessSupport(opts.Caps); err != nil {
		return nil, fmt.Errorf("bindless binding unavailable: %w", err)
	}

	runtime.LockOSThread()
	if err := glfw.Init(); err != nil {
		return nil, fmt.Errorf("failed to init GLFW: %w", err)
	}
	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	glfw.WindowHint(glfw.Resizable, glfw.True)
	window, err := glfw.CreateWindow(opts.Width, opts.Height, opts.Title, nil, nil)
	if err != nil {
		glfw.Terminate()
		return nil, fmt.Errorf("failed to create window: %w", err)
	}

	instance := wgpu.CreateInstance(nil)
	defer instance.Release()
	surface := instance.CreateSurface(wgpuglfw.GetSurfaceDescriptor(window))
	adapter, err := instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		CompatibleSurface: surface,
		PowerPreference:   wgpu.PowerPreferenceHighPerformance,
	})
	if err != nil {
		surface.Release()
		window.Destroy()
		glfw.Terminate()
		return nil, fmt.Errorf("failed to acquire adapter: %w", err)
	}
	device, err := adapter.RequestDevice(&wgpu.DeviceDescriptor{
		Label: "Astral Device",
	})
	if err != nil {
		adapter.Release()
		surface.Release()
		window.Destroy()
		glfw.Terminate()
		return nil, fmt.Errorf("failed to acquire device: %w", err)
	}
	queue := device.GetQueue()

	caps := surface.GetCapabilities(adapter)
	surfaceConfig := wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      caps.Formats[0],
		Width:       uint32(opts.Width),
		Height:      uint32(opts.Height),
		PresentMode: wgpu.PresentModeFifo,
		AlphaMode:   caps.AlphaModes[0],
	}
	surface.Configure(adapter, device, &surfaceConfig)

	opts.Logger.Infof("GPU context up (%dx%d, %d texture slots, %d buffer slots)",
		opts.Width, opts.Height, opts.Caps.MaxSampledTexturesPerStage, opts.Caps.MaxStorageBuffersPerStage)

	return &GpuContext{
		window:        window,
		surface:       surface,
		adapter:       adapter,
		device:        device,
		queue:         queue,
		surfaceConfig: &surfaceConfig,
		Caps:          opts.Caps,
		Tables:        NewBindlessTables(opts.TableSizes, opts.Logger),
		logger:        opts.Logger,
	}, nil
}

func (c *GpuContext) Device() *wgpu.Device                      { return c.device }
func (c *GpuContext) Queue() *wgpu.Queue                        { return c.queue }
func (c *GpuContext) Surface() *wgpu.Surface                    { return c.surface }
func (c *GpuContext) SurfaceFormat() wgpu.TextureFormat         { return c.surfaceConfig.Format }
func (c *GpuContext) Window() *glfw.Window                      { return c.window }
func (c *GpuContext) SurfaceConfig() *wgpu.SurfaceConfiguration { return c.surfaceConfig }

// BeginFrame advances the descriptor table reclamation clocks. Call
// once per frame before recording.
func (c *GpuContext) BeginFrame() {
	c.Tables.AdvanceFrame()
}

// PollEvents pumps the window event loop. Main goroutine only.
func (c *GpuContext) PollEvents() {
	glfw.PollEvents()
}

// CreateStructuredBuffer uploads records and registers the buffer in
// the buffer table.
func (c *GpuContext) CreateStructuredBuffer(label string, contents []byte, usage wgpu.BufferUsage) (ResourceHandle, *wgpu.Buffer, error) {
	buffer, err := c.device.CreateBufferInit(&wgpu.BufferInitDescriptor{
		Label:    label,
		Contents: contents,
		Usage:    usage,
	})
	if err != nil {
		return InvalidHandle, nil, fmt.Errorf("failed to create buffer %q: %w", label, err)
	}
	handle, err := c.Tables.Buffers.Push(buffer)
	if err != nil {
		buffer.Release()
		return InvalidHandle, nil, err
	}
	return handle, buffer, nil
}

// CreateTexture2D uploads texel data and registers the view in the
// texture table.
func (c *GpuContext) CreateTexture2D(label string, width, height uint32, format wgpu.TextureFormat, texels []byte) (ResourceHandle, *wgpu.TextureView, error) {
	extent := wgpu.Extent3D{
		Width:              width,
		Height:             height,
		DepthOrArrayLayers: 1,
	}
	texture, err := c.device.CreateTexture(&wgpu.TextureDescriptor{
		Label:         label,
		Size:          extent,
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension2D,
		Format:        format,
		Usage:         wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopyDst,
	})
	if err != nil {
		return InvalidHandle, nil, fmt.Errorf("failed to create texture %q: %w", label, err)
	}
	defer texture.Release()

	view, err := texture.CreateView(nil)
	if err != nil {
		return InvalidHandle, nil, fmt.Errorf("failed to create texture view %q: %w", label, err)
	}
	err = c.queue.WriteTexture(
		texture.AsImageCopy(),
		texels,
		&wgpu.TextureDataLayout{
			Offset:       0,
			BytesPerRow:  width * uint32(bytesPerPixel(format)),
			RowsPerImage: height,
		},
		&extent,
	)
	if err != nil {
		view.Release()
		return InvalidHandle, nil, fmt.Errorf("failed to upload texture %q: %w", label, err)
	}
	handle, err := c.Tables.Textures.Push(view)
	if err != nil {
		view.Release()
		return InvalidHandle, nil, err
	}
	return handle, view, nil
}

// CreateSampler registers a sampler in the sampler table.
func (c *GpuContext) CreateSampler(desc *wgpu.SamplerDescriptor) (ResourceHandle, *wgpu.Sampler, error) {
	if desc == nil {
		desc = &wgpu.SamplerDescriptor{
			AddressModeU:  wgpu.AddressModeClampToEdge,
			AddressModeV:  wgpu.AddressModeClampToEdge,
			AddressModeW:  wgpu.AddressModeClampToEdge,
			MagFilter:     wgpu.FilterModeLinear,
			MinFilter:     wgpu.FilterModeLinear,
			MipmapFilter:  wgpu.MipmapFilterModeLinear,
			MaxAnisotropy: 1,
		}
	}
	sampler, err := c.device.CreateSampler(desc)
	if err != nil {
		return InvalidHandle, nil, fmt.Errorf("failed to create sampler: %w", err)
	}
	handle, err := c.Tables.Samplers.Push(sampler)
	if err != nil {
		sampler.Release()
		return InvalidHandle, nil, err
	}
	return handle, sampler, nil
}

// Release tears the context down. Views still registered in the
// tables are the caller's to release first.
func (c *GpuContext) Release() {
	c.queue.Release()
	c.device.Release()
	c.adapter.Release()
	c.surface.Release()
	c.window.Destroy()
	glfw.Terminate()
}

func bytesPerPixel(format wgpu.TextureFormat) uint {
	switch format {
	case wgpu.TextureFormatR8Unorm, wgpu.TextureFormatR8Snorm,
		wgpu.TextureFormatR8Uint, wgpu.TextureFormatR8Sint:
		return 1
	case wgpu.TextureFormatR16Uint, wgpu.TextureFormatR16Sint, wgpu.TextureFormatR16Float,
		wgpu.TextureFormatRG8Unorm, wgpu.TextureFormatRG8Snorm,
		wgpu.TextureFormatRG8Uint, wgpu.TextureFormatRG8Sint:
		return 2
	case wgpu.TextureFormatR32Uint, wgpu.TextureFormatR32Sint, wgpu.TextureFormatR32Float,
		wgpu.TextureFormatRG16Uint, wgpu.TextureFormatRG16Sint, wgpu.TextureFormatRG16Float,
		wgpu.TextureFormatRGBA8Unorm, wgpu.TextureFormatRGBA8UnormSrgb,
		wgpu.TextureFormatRGBA8Snorm, wgpu.TextureFormatRGBA8Uint, wgpu.TextureFormatRGBA8Sint,
		wgpu.TextureFormatBGRA8Unorm, wgpu.TextureFormatBGRA8UnormSrgb:
		return 4
	case wgpu.TextureFormatRGBA16Uint, wgpu.TextureFormatRGBA16Sint, wgpu.TextureFormatRGBA16Float,
		wgpu.TextureFormatRG32Uint, wgpu.TextureFormatRG32Sint, wgpu.TextureFormatRG32Float:
		return 8
	case wgpu.TextureFormatRGBA32Uint, wgpu.TextureFormatRGBA32Sint, wgpu.TextureFormatRGBA32Float:
		return 16
	}
	panic(fmt.Sprintf("unsupported texture format %v", format))
}
