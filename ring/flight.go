// Package ring implements a frame-transient bump allocator over a fixed-capacity arena.
//
// Allocations are grouped into flights (typically one per frame in flight). Nothing is freed
// individually: when PrepareNextFlight recycles a flight slot, every range allocated during the
// flight that previously occupied it is reclaimed at once. The arena is used as a ring, so
// allocation wraps back to offset 0 once the oldest live flight has moved past it.
package ring

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/arsenal/suballoc"
)

// InvalidOffset is returned by Alloc when the ring has no room for the request
const InvalidOffset = suballoc.InvalidOffset

// Range is a span of the arena. A flight whose allocations wrapped around the end of the
// arena has End < Begin.
type Range struct {
	Begin uint32
	End   uint32
}

// FlightRing is a ring allocator with a fixed number of flights. It is not safe for
// concurrent use.
type FlightRing struct {
	size      uint32
	alignment uint32

	// The arena in use is [tail, head), or [tail, size) + [0, head) when wrapped
	head    uint32
	tail    uint32
	wrapped bool

	current int
	flights []Range
}

var _ suballoc.Validatable = &FlightRing{}

// New creates a FlightRing over an arena of size bytes. Every allocation is aligned to alignment,
// which must be a power of two. flights is the number of flights that may be live at once.
func New(size, alignment uint32, flights int) (*FlightRing, error) {
	err := suballoc.CheckPow2(alignment, "alignment")
	if err != nil {
		return nil, err
	}

	if flights < 1 {
		return nil, errors.Newf("a flight ring needs at least one flight, but %d were requested", flights)
	}

	return &FlightRing{
		size:      size,
		alignment: alignment,
		flights:   make([]Range, flights),
	}, nil
}

// Size returns the size in bytes of the arena the ring manages
func (r *FlightRing) Size() uint32 { return r.size }

// Flight returns the range allocated so far by the current flight
func (r *FlightRing) Flight() Range {
	return r.flights[r.current]
}

// Reset discards every flight and resizes the ring to size bytes
func (r *FlightRing) Reset(size uint32) {
	r.size = size
	r.head = 0
	r.tail = 0
	r.wrapped = false
	r.current = 0
	for i := range r.flights {
		r.flights[i] = Range{}
	}
}

// PrepareNextFlight moves to the next flight slot, reclaiming everything allocated by the
// flight that last used it
func (r *FlightRing) PrepareNextFlight() {
	suballoc.DebugValidate(r)

	r.current = (r.current + 1) % len(r.flights)

	newTail := r.flights[r.current].End
	if r.wrapped && newTail < r.tail {
		// The oldest live flight now starts in the low half of the arena
		r.wrapped = false
	}
	r.tail = newTail

	r.flights[r.current] = Range{Begin: r.head, End: r.head}
}

// Alloc reserves size bytes, rounded up to the ring's alignment, in the current flight. It
// returns InvalidOffset if the ring is full.
func (r *FlightRing) Alloc(size uint32) uint32 {
	suballoc.DebugValidate(r)
	suballoc.DebugCheckPow2(r.alignment, "alignment")

	if size > r.size {
		return InvalidOffset
	}

	aligned := suballoc.AlignUp(size, r.alignment)
	if aligned < size || aligned > r.size {
		return InvalidOffset
	}
	size = aligned

	var offset uint32
	switch {
	case r.wrapped:
		if r.tail-r.head < size {
			return InvalidOffset
		}
		offset = r.head
	case r.size-r.head >= size:
		offset = r.head
	case r.tail >= size:
		// Leave the end of the arena unused and start again from the beginning
		offset = 0
		r.wrapped = true
	default:
		return InvalidOffset
	}

	r.head = offset + size
	r.flights[r.current].End = r.head

	return offset
}

// Validate performs internal consistency checks on the ring
func (r *FlightRing) Validate() error {
	if r.head > r.size || r.tail > r.size {
		return errors.Newf("ring cursors (head %d, tail %d) run past the end of the arena (%d)", r.head, r.tail, r.size)
	}

	if r.wrapped && r.head > r.tail {
		return errors.Newf("wrapped ring has its head (%d) past its tail (%d)", r.head, r.tail)
	}

	if !r.wrapped && r.tail > r.head {
		return errors.Newf("ring has its tail (%d) past its head (%d) but is not wrapped", r.tail, r.head)
	}

	if r.flights[r.current].End != r.head {
		return errors.Newf("the current flight ends at %d, but the ring's head is at %d", r.flights[r.current].End, r.head)
	}

	return nil
}
