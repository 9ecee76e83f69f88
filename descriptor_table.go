package astral

import "fmt"

// DescriptorTable is a global, per-category table of GPU resource views
// addressed by ResourceHandle. Allocation and release happen on the
// host between frames; Resolve is the execution-time hot path and
// performs no validation whatsoever.
//
// Slots freed with Free are not reused immediately: they are parked
// until framesInFlight frames have been advanced, so a table never
// mutates a slot that an in-flight draw may still reference. Each
// reclaim bumps the slot's generation counter, which the debug
// validation path uses to catch stale handles.
//
// A table is not safe for concurrent mutation; mutate it only from the
// thread that owns frame advancement.
type DescriptorTable[V any] struct {
	name        string
	slots       []V
	generations []uint32
	freeSlots   []uint32
	pending     []pendingFree
	frame       uint64
	inFlight    uint64
	capacity    int
}

type pendingFree struct {
	slot  uint32
	frame uint64
}

// NewDescriptorTable creates a table holding at most capacity live
// views. framesInFlight is how many frames a freed slot stays parked
// before reuse; pass the swapchain depth (minimum 1).
func NewDescriptorTable[V any](name string, capacity int, framesInFlight int) *DescriptorTable[V] {
	if capacity <= 0 {
		panic(fmt.Sprintf("descriptor table %q: capacity must be positive", name))
	}
	if framesInFlight < 1 {
		framesInFlight = 1
	}
	return &DescriptorTable[V]{
		name:     name,
		inFlight: uint64(framesInFlight),
		capacity: capacity,
	}
}

// Push stores a view and returns its handle. Reuses the oldest
// reclaimed slot when one is available.
func (t *DescriptorTable[V]) Push(view V) (ResourceHandle, error) {
	if n := len(t.freeSlots); n > 0 {
		slot := t.freeSlots[0]
		t.freeSlots = t.freeSlots[1:]
		t.slots[slot] = view
		return ResourceHandle(slot), nil
	}
	if len(t.slots) >= t.capacity {
		return InvalidHandle, fmt.Errorf("descriptor table %q is full (%d slots)", t.name, t.capacity)
	}
	t.slots = append(t.slots, view)
	t.generations = append(t.generations, 0)
	return ResourceHandle(len(t.slots) - 1), nil
}

// Update replaces the view in a live slot without changing its handle.
func (t *DescriptorTable[V]) Update(h ResourceHandle, view V) error {
	if err := t.Validate(h); err != nil {
		return err
	}
	t.slots[h] = view
	return nil
}

// Resolve maps a handle to its view. The caller guarantees the handle
// is live and belongs to this table; a stale handle silently yields
// whatever occupies the slot now, and an out-of-range handle panics.
// No checks are added here, this is the per-invocation hot path.
func (t *DescriptorTable[V]) Resolve(h ResourceHandle) V {
	return t.slots[h]
}

// Free parks a slot for reclamation. The view stays resolvable until
// the in-flight window has elapsed.
func (t *DescriptorTable[V]) Free(h ResourceHandle) error {
	if err := t.Validate(h); err != nil {
		return err
	}
	t.pending = append(t.pending, pendingFree{slot: uint32(h), frame: t.frame})
	return nil
}

// AdvanceFrame marks the start of a new frame and reclaims slots whose
// in-flight window has fully elapsed.
func (t *DescriptorTable[V]) AdvanceFrame() {
	t.frame++
	kept := t.pending[:0]
	for _, p := range t.pending {
		if t.frame-p.frame >= t.inFlight {
			var zero V
			t.slots[p.slot] = zero
			t.generations[p.slot]++
			t.freeSlots = append(t.freeSlots, p.slot)
		} else {
			kept = append(kept, p)
		}
	}
	t.pending = kept
}

// Generation returns the slot's reuse counter. Callers that snapshot a
// handle across frames can compare generations to detect reuse.
func (t *DescriptorTable[V]) Generation(h ResourceHandle) uint32 {
	return t.generations[h]
}

// Validate reports whether a handle currently addresses a live slot.
// This is the debug-only counterpart of Resolve; it is never called on
// the resolution path.
func (t *DescriptorTable[V]) Validate(h ResourceHandle) error {
	if !h.Valid() {
		return fmt.Errorf("descriptor table %q: invalid handle", t.name)
	}
	if int(h) >= len(t.slots) {
		return fmt.Errorf("descriptor table %q: handle %d out of range (%d slots)", t.name, uint32(h), len(t.slots))
	}
	for _, s := range t.freeSlots {
		if s == uint32(h) {
			return fmt.Errorf("descriptor table %q: handle %d refers to a freed slot", t.name, uint32(h))
		}
	}
	for _, p := range t.pending {
		if p.slot == uint32(h) {
			return fmt.Errorf("descriptor table %q: handle %d is pending reclamation", t.name, uint32(h))
		}
	}
	return nil
}

// Len is the number of live slots (allocated and not yet reclaimed).
func (t *DescriptorTable[V]) Len() int {
	return len(t.slots) - len(t.freeSlots)
}

// Capacity is the maximum number of live slots.
func (t *DescriptorTable[V]) Capacity() int {
	return t.capacity
}
