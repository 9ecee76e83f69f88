package astral

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"reflect"

	"github.com/cogentcore/webgpu/wgpu"
)

// ErrLayoutMismatch is returned when two constant block definitions
// that must be binary compatible are not.
var ErrLayoutMismatch = errors.New("constant block layout mismatch")

// ConstantField describes one field of a constant block layout.
type ConstantField struct {
	Name   string
	Offset uintptr
	Size   uintptr
}

// ConstantLayout is the computed byte layout of a constant block
// record type. Host and shader sides must agree on it exactly; the
// layout is computed once at block construction and compared with
// Match, never rechecked per draw.
type ConstantLayout struct {
	TypeName string
	Fields   []ConstantField
	Size     uintptr
	Align    uintptr
}

// ConstantLayoutOf computes the layout of a struct type and rejects
// types the per-draw constant contract cannot carry: non-structs,
// fields with unsupported kinds, and any implicit padding. Padding is
// rejected rather than mirrored because the shader-side record is
// tightly packed; a host struct that pads would silently diverge.
func ConstantLayoutOf(t reflect.Type) (ConstantLayout, error) {
	if t.Kind() != reflect.Struct {
		return ConstantLayout{}, fmt.Errorf("constant block type %v is not a struct", t)
	}
	layout := ConstantLayout{
		TypeName: t.String(),
		Align:    uintptr(t.Align()),
	}
	var packed uintptr
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !constantKindOK(f.Type) {
			return ConstantLayout{}, fmt.Errorf("constant block %v: field %s has unsupported type %v", t, f.Name, f.Type)
		}
		if f.Offset != packed {
			return ConstantLayout{}, fmt.Errorf("constant block %v: %d bytes of padding before field %s, host and shader layouts would diverge",
				t, f.Offset-packed, f.Name)
		}
		layout.Fields = append(layout.Fields, ConstantField{
			Name:   f.Name,
			Offset: f.Offset,
			Size:   f.Type.Size(),
		})
		packed += f.Type.Size()
	}
	if t.Size() != packed {
		return ConstantLayout{}, fmt.Errorf("constant block %v: %d bytes of trailing padding, host and shader layouts would diverge",
			t, t.Size()-packed)
	}
	layout.Size = packed
	return layout, nil
}

func constantKindOK(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Float32, reflect.Uint32, reflect.Int32, reflect.Uint64:
		return true
	case reflect.Array:
		return constantKindOK(t.Elem())
	case reflect.Struct:
		for i := 0; i < t.NumField(); i++ {
			if !constantKindOK(t.Field(i).Type) {
				return false
			}
		}
		return true
	}
	return false
}

// Match reports nil when two layouts are binary compatible: same
// field order, sizes, offsets and total size. Field names may differ,
// the contract is positional.
func (l ConstantLayout) Match(other ConstantLayout) error {
	if l.Size != other.Size {
		return fmt.Errorf("%w: %s is %d bytes, %s is %d bytes",
			ErrLayoutMismatch, l.TypeName, l.Size, other.TypeName, other.Size)
	}
	if len(l.Fields) != len(other.Fields) {
		return fmt.Errorf("%w: %s has %d fields, %s has %d",
			ErrLayoutMismatch, l.TypeName, len(l.Fields), other.TypeName, len(other.Fields))
	}
	for i := range l.Fields {
		a, b := l.Fields[i], other.Fields[i]
		if a.Offset != b.Offset || a.Size != b.Size {
			return fmt.Errorf("%w: field %d (%s at %d+%d vs %s at %d+%d)",
				ErrLayoutMismatch, i, a.Name, a.Offset, a.Size, b.Name, b.Offset, b.Size)
		}
	}
	return nil
}

// ConstantBlock binds a host record type to the per-draw inline
// constant mechanism. Construction validates the layout once against
// the backend budget; after that, Bytes encodes instances with no
// further validation. Instances are write-once by the host and
// read-only downstream; nothing is retained between draws.
type ConstantBlock[T any] struct {
	layout ConstantLayout
}

// NewConstantBlock computes and validates the layout of T. Fails fast
// with a descriptive error at pipeline-setup time when T cannot match
// a shader-side record or exceeds the push constant budget.
func NewConstantBlock[T any](caps BindlessCaps) (*ConstantBlock[T], error) {
	var zero T
	layout, err := ConstantLayoutOf(reflect.TypeOf(zero))
	if err != nil {
		return nil, err
	}
	if uintptr(caps.MaxPushConstantSize) < layout.Size {
		return nil, fmt.Errorf("constant block %s is %d bytes, backend budget is %d",
			layout.TypeName, layout.Size, caps.MaxPushConstantSize)
	}
	return &ConstantBlock[T]{layout: layout}, nil
}

func (b *ConstantBlock[T]) Layout() ConstantLayout {
	return b.layout
}

func (b *ConstantBlock[T]) Size() uint32 {
	return uint32(b.layout.Size)
}

// Bytes encodes one instance to the little-endian wire form handed to
// the backend.
func (b *ConstantBlock[T]) Bytes(v *T) []byte {
	buf := new(bytes.Buffer)
	buf.Grow(int(b.layout.Size))
	writeConstantBytes(reflect.ValueOf(v).Elem(), buf)
	return buf.Bytes()
}

func writeConstantBytes(field reflect.Value, buf *bytes.Buffer) {
	switch field.Kind() {
	case reflect.Struct:
		for i := 0; i < field.NumField(); i++ {
			writeConstantBytes(field.Field(i), buf)
		}
	case reflect.Array:
		for i := 0; i < field.Len(); i++ {
			elem := field.Index(i)
			if elem.Kind() == reflect.Struct {
				writeConstantBytes(elem, buf)
			} else if err := binary.Write(buf, binary.LittleEndian, elem.Interface()); err != nil {
				panic(fmt.Errorf("failed to encode constant array element: %w", err))
			}
		}
	default:
		if err := binary.Write(buf, binary.LittleEndian, field.Interface()); err != nil {
			panic(fmt.Errorf("failed to encode constant field: %w", err))
		}
	}
}

// EncodeRecords encodes a slice of fixed-size records to the
// little-endian form structured buffers hold. Shares the constant
// block's field encoding so vertex records and constant records agree
// on byte order.
func EncodeRecords(records any) []byte {
	v := reflect.ValueOf(records)
	if v.Kind() != reflect.Slice && v.Kind() != reflect.Array {
		panic(fmt.Sprintf("EncodeRecords wants a slice or array, got %T", records))
	}
	buf := new(bytes.Buffer)
	for i := 0; i < v.Len(); i++ {
		writeConstantBytes(v.Index(i), buf)
	}
	return buf.Bytes()
}

// ConstantRecorder is the backend entry point for per-draw constant
// data. Backends with real push constants satisfy it directly;
// UniformConstantRecorder emulates it where only uniform buffers
// exist.
type ConstantRecorder interface {
	// Record stores one draw's constant bytes and returns the dynamic
	// offset to bind the draw with.
	Record(data []byte) (uint32, error)
}

// minimum uniform buffer dynamic offset alignment required by WebGPU
const uniformOffsetAlign = 256

// UniformConstantRecorder emulates push constants on WebGPU-style
// backends: one uniform buffer sliced per draw with dynamic offsets,
// rewritten every frame. Reset at frame start, Record per draw, then
// bind BindGroup with the returned offset.
type UniformConstantRecorder struct {
	device    *wgpu.Device
	queue     *wgpu.Queue
	buffer    *wgpu.Buffer
	bindGroup *wgpu.BindGroup
	layout    *wgpu.BindGroupLayout
	blockSize uint32
	capacity  uint32
	used      uint32
}

// NewUniformConstantRecorder sizes the backing buffer for maxDraws
// draws of blockSize bytes each (rounded up to the dynamic offset
// alignment).
func NewUniformConstantRecorder(device *wgpu.Device, queue *wgpu.Queue, blockSize uint32, maxDraws uint32) (*UniformConstantRecorder, error) {
	if blockSize == 0 || maxDraws == 0 {
		return nil, fmt.Errorf("constant recorder needs a positive block size and draw count")
	}
	stride := alignUp32(blockSize, uniformOffsetAlign)
	buffer, err := device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "Per-Draw Constants",
		Size:  uint64(stride) * uint64(maxDraws),
		Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create constant buffer: %w", err)
	}
	layout, err := device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label: "Per-Draw Constants Layout",
		Entries: []wgpu.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: wgpu.ShaderStageVertex | wgpu.ShaderStageFragment,
				Buffer: wgpu.BufferBindingLayout{
					Type:             wgpu.BufferBindingTypeUniform,
					HasDynamicOffset: true,
					MinBindingSize:   uint64(blockSize),
				},
			},
		},
	})
	if err != nil {
		buffer.Release()
		return nil, fmt.Errorf("failed to create constant bind group layout: %w", err)
	}
	bindGroup, err := device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  "Per-Draw Constants",
		Layout: layout,
		Entries: []wgpu.BindGroupEntry{
			{
				Binding: 0,
				Buffer:  buffer,
				Size:    uint64(blockSize),
			},
		},
	})
	if err != nil {
		layout.Release()
		buffer.Release()
		return nil, fmt.Errorf("failed to create constant bind group: %w", err)
	}
	return &UniformConstantRecorder{
		device:    device,
		queue:     queue,
		buffer:    buffer,
		bindGroup: bindGroup,
		layout:    layout,
		blockSize: blockSize,
		capacity:  stride * maxDraws,
	}, nil
}

// Reset recycles the buffer for a new frame.
func (r *UniformConstantRecorder) Reset() {
	r.used = 0
}

func (r *UniformConstantRecorder) Record(data []byte) (uint32, error) {
	if uint32(len(data)) != r.blockSize {
		return 0, fmt.Errorf("constant data is %d bytes, recorder expects %d", len(data), r.blockSize)
	}
	offset := r.used
	if offset+r.blockSize > r.capacity {
		return 0, fmt.Errorf("constant recorder exhausted (%d bytes)", r.capacity)
	}
	if err := r.queue.WriteBuffer(r.buffer, uint64(offset), data); err != nil {
		return 0, fmt.Errorf("failed to upload constant data: %w", err)
	}
	r.used += alignUp32(r.blockSize, uniformOffsetAlign)
	return offset, nil
}

// BindGroupLayout is the layout to include in pipeline layouts that
// consume per-draw constants.
func (r *UniformConstantRecorder) BindGroupLayout() *wgpu.BindGroupLayout {
	return r.layout
}

// BindGroup is bound per draw with the offset returned by Record.
func (r *UniformConstantRecorder) BindGroup() *wgpu.BindGroup {
	return r.bindGroup
}

func (r *UniformConstantRecorder) Release() {
	r.bindGroup.Release()
	r.layout.Release()
	r.buffer.Release()
}

func alignUp32(v, align uint32) uint32 {
	m := v % align
	if m == 0 {
		return v
	}
	return v - m + align
}
