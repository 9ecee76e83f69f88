package astral

import "fmt"

// BufferArena suballocates element ranges out of one large structured
// buffer so that many draws can share a single buffer binding. Each
// allocation is addressed by its base element: a shader computes the
// effective element index as invocation index + base. Indexing past
// the end of a range ((i + base) >= element count) is a contract
// violation with undefined results, it is never clamped here or on
// the GPU.
type BufferArena struct {
	elementSize  uint32
	elementCount uint32
	allocs       []*ArenaRange
}

// ArenaRange is a live suballocation. BaseElement is the offset draws
// carry in their constant block.
type ArenaRange struct {
	BaseElement uint32
	Count       uint32
}

// EffectiveIndex is the element a given invocation addresses. Callers
// guarantee invocation < Count.
func (r *ArenaRange) EffectiveIndex(invocation uint32) uint32 {
	return r.BaseElement + invocation
}

func (r *ArenaRange) String() string {
	return fmt.Sprintf("[%d +%d]", r.BaseElement, r.Count)
}

// NewBufferArena describes a buffer of elementCount records of
// elementSize bytes each.
func NewBufferArena(elementSize, elementCount uint32) *BufferArena {
	if elementSize == 0 || elementCount == 0 {
		panic("buffer arena needs a positive element size and count")
	}
	return &BufferArena{
		elementSize:  elementSize,
		elementCount: elementCount,
	}
}

// Allocate finds a free range of count elements, first-fit. The base
// element is aligned to alignElements (1 for no alignment).
func (a *BufferArena) Allocate(count, alignElements uint32) (*ArenaRange, error) {
	if count == 0 {
		return nil, fmt.Errorf("arena allocation of zero elements")
	}
	if alignElements == 0 {
		alignElements = 1
	}

	// Gap before the first allocation.
	cursor := uint32(0)
	for i := 0; i <= len(a.allocs); i++ {
		base := alignUp32(cursor, alignElements)
		var gapEnd uint32
		if i < len(a.allocs) {
			gapEnd = a.allocs[i].BaseElement
		} else {
			gapEnd = a.elementCount
		}
		if gapEnd >= base && gapEnd-base >= count {
			r := &ArenaRange{BaseElement: base, Count: count}
			a.allocs = append(a.allocs, nil)
			copy(a.allocs[i+1:], a.allocs[i:])
			a.allocs[i] = r
			return r, nil
		}
		if i < len(a.allocs) {
			cursor = a.allocs[i].BaseElement + a.allocs[i].Count
		}
	}
	return nil, fmt.Errorf("arena exhausted: no free range of %d elements (capacity %d)", count, a.elementCount)
}

// Free returns a range to the arena. Freeing a range that is still
// referenced by an in-flight draw is a contract violation; callers
// must sequence frees the same way descriptor table frees are
// sequenced.
func (a *BufferArena) Free(r *ArenaRange) {
	for i, alloc := range a.allocs {
		if alloc == r {
			a.allocs = append(a.allocs[:i], a.allocs[i+1:]...)
			return
		}
	}
}

// Reset drops every allocation. Useful for per-frame transient
// arenas.
func (a *BufferArena) Reset() {
	a.allocs = a.allocs[:0]
}

// ByteOffset converts a range's base element to a byte offset into
// the backing buffer.
func (a *BufferArena) ByteOffset(r *ArenaRange) uint64 {
	return uint64(r.BaseElement) * uint64(a.elementSize)
}

// ElementSize is the declared record size in bytes.
func (a *BufferArena) ElementSize() uint32 {
	return a.elementSize
}

// FreeElements is the total number of unallocated elements (possibly
// fragmented).
func (a *BufferArena) FreeElements() uint32 {
	used := uint32(0)
	for _, alloc := range a.allocs {
		used += alloc.Count
	}
	return a.elementCount - used
}
