package astral

import "fmt"

// ResourceHandle is an opaque index into one of the global descriptor
// tables. A handle is only meaningful for the table category that
// allocated it, and only while that slot is live; resolving a stale
// handle is undefined behavior (no validation happens on the hot path,
// see DescriptorTable.Resolve).
type ResourceHandle uint32

// InvalidHandle is never returned by a table allocation.
const InvalidHandle = ResourceHandle(0xFFFFFFFF)

func (h ResourceHandle) Valid() bool {
	return h != InvalidHandle
}

func (h ResourceHandle) String() string {
	if h == InvalidHandle {
		return "handle(invalid)"
	}
	return fmt.Sprintf("handle(%d)", uint32(h))
}

// ResourceCategory names the descriptor table a handle belongs to.
// Handles carry no category tag at runtime; the category is implied by
// which table the caller resolves against.
type ResourceCategory uint8

const (
	ResourceTexture2D ResourceCategory = iota
	ResourceTextureCube
	ResourceSampler
	ResourceStructuredBuffer
	ResourceByteAddressBuffer
)

func (c ResourceCategory) String() string {
	switch c {
	case ResourceTexture2D:
		return "Texture2D"
	case ResourceTextureCube:
		return "TextureCube"
	case ResourceSampler:
		return "Sampler"
	case ResourceStructuredBuffer:
		return "StructuredBuffer"
	case ResourceByteAddressBuffer:
		return "ByteAddressBuffer"
	}
	return fmt.Sprintf("ResourceCategory(%d)", uint8(c))
}
