package tlsf

import (
	"context"
	"log/slog"

	"github.com/cockroachdb/errors"
	"github.com/dolthub/swiss"
	"github.com/vkngwrapper/arsenal/suballoc"
)

// InvalidOffset is returned by Alloc and Realloc when no free range is large enough for the request
const InvalidOffset = suballoc.InvalidOffset

// MoveFunc is called by Realloc when an allocation has to be relocated. The caller should copy
// size bytes of payload from oldOffset to newOffset in its arena. The two ranges may overlap, so
// the copy must behave like memmove (the builtin copy does).
type MoveFunc func(oldOffset, newOffset, size uint32)

// Pool manages the ranges of a single arena of capacity bytes. It is not safe for concurrent use.
type Pool struct {
	logger   *slog.Logger
	capacity uint32

	allocCount int
	freeCount  int
	freeSize   uint32

	chunks    chunkStore
	freeLists [firstLevelCount][secondLevelCount]chunkIndex
	bitmap    bitmapDirectory

	allocations         *swiss.Map[uint32, chunkIndex]
	expectedAllocations uint32

	head chunkIndex
	tail chunkIndex
}

var _ suballoc.Validatable = &Pool{}

// NewPool creates a Pool over an arena of capacity bytes, with a single free range covering
// [0, capacity). capacity must be between MinimumAllocationSize and MaxCapacity.
func NewPool(capacity uint32, options ...Option) (*Pool, error) {
	if capacity < MinimumAllocationSize || capacity > MaxCapacity {
		return nil, errors.Wrapf(ErrInvalidCapacity, "capacity %d must be between %d and %d", capacity, MinimumAllocationSize, MaxCapacity)
	}

	opts := defaultOptions()
	for _, option := range options {
		option(&opts)
	}

	p := &Pool{
		logger:              opts.logger,
		capacity:            capacity,
		expectedAllocations: opts.expectedAllocations,
	}
	p.reset()

	return p, nil
}

func (p *Pool) reset() {
	p.allocCount = 0
	p.freeCount = 0
	p.freeSize = 0
	p.freeLists = [firstLevelCount][secondLevelCount]chunkIndex{}
	p.bitmap = bitmapDirectory{}
	p.chunks = newChunkStore(int(p.expectedAllocations) * 2)
	p.allocations = swiss.NewMap[uint32, chunkIndex](p.expectedAllocations)

	p.head = p.chunks.allocate()
	p.tail = p.head
	first := p.chunks.at(p.head)
	first.size = p.capacity
	p.insertFree(p.head)
}

// Capacity returns the size in bytes of the arena the pool manages
func (p *Pool) Capacity() uint32 { return p.capacity }

// AllocationCount returns the number of live allocations
func (p *Pool) AllocationCount() int { return p.allocCount }

// FreeRegionsCount returns the number of distinct free ranges. Adjacent free ranges are always
// merged, so this is also a measure of fragmentation.
func (p *Pool) FreeRegionsCount() int { return p.freeCount }

// SumFreeSize returns the number of bytes not currently allocated
func (p *Pool) SumFreeSize() uint32 { return p.freeSize }

// IsEmpty returns true if the pool has no live allocations
func (p *Pool) IsEmpty() bool { return p.allocCount == 0 }

// AllocationSize returns the number of bytes reserved for the allocation at offset. This is
// at least the size that was requested, and may be larger.
func (p *Pool) AllocationSize(offset uint32) (uint32, error) {
	index, err := p.lookup(offset)
	if err != nil {
		return 0, err
	}

	return p.chunks.at(index).size, nil
}

func (p *Pool) lookup(offset uint32) (chunkIndex, error) {
	index, ok := p.allocations.Get(offset)
	if !ok {
		p.logger.LogAttrs(context.Background(), slog.LevelError, "received an offset that is not a live allocation",
			slog.Uint64("offset", uint64(offset)))
		return nilChunk, errors.Wrapf(ErrInvalidOffset, "offset %d", offset)
	}

	return index, nil
}

// Alloc reserves a range of at least size bytes and returns its offset, or InvalidOffset if no
// free range is large enough. A size of 0 is treated as 1.
func (p *Pool) Alloc(size uint32) uint32 {
	suballoc.DebugValidate(p)

	index := p.takeFreeChunk(size)
	if index == nilChunk {
		p.logger.LogAttrs(context.Background(), slog.LevelDebug, "no free range for allocation",
			slog.Uint64("size", uint64(size)),
			slog.Uint64("freeSize", uint64(p.freeSize)),
			slog.Int("freeRegions", p.freeCount))
		return InvalidOffset
	}

	return p.commit(index)
}

func (p *Pool) commit(index chunkIndex) uint32 {
	offset := p.chunks.at(index).offset
	p.allocations.Put(offset, index)
	p.allocCount++

	return offset
}

// takeFreeChunk finds a free chunk that can hold size bytes, removes it from the free lists
// and trims it to the rounded request size. It returns nilChunk without changing anything if
// no chunk is large enough.
func (p *Pool) takeFreeChunk(size uint32) chunkIndex {
	if size > p.freeSize {
		return nilChunk
	}

	class := classForRequest(size)
	roundedSize := sizeOfClass(class)
	if roundedSize > p.freeSize {
		return nilChunk
	}

	if !p.bitmap.hasFree(class) {
		// Every chunk in a larger class is bigger than roundedSize and can be split
		class = p.bitmap.findGreaterOrEqual(class.next())
		if !class.valid() {
			return nilChunk
		}
	}

	index := p.popFree(class)
	p.trim(index, roundedSize)

	return index
}

// Free returns the allocation at offset to the pool. It returns an error wrapping
// ErrInvalidOffset if offset is not a live allocation.
func (p *Pool) Free(offset uint32) error {
	suballoc.DebugValidate(p)

	index, err := p.lookup(offset)
	if err != nil {
		return err
	}

	p.allocations.Delete(offset)
	p.allocCount--
	p.release(index)

	return nil
}

// Grow informs the pool that the caller's arena has been extended to newCapacity bytes. The new
// space is added to the free range at the end of the arena, if there is one. Shrinking is not
// supported.
func (p *Pool) Grow(newCapacity uint32) error {
	suballoc.DebugValidate(p)

	if newCapacity < p.capacity || newCapacity > MaxCapacity {
		return errors.Wrapf(ErrInvalidCapacity, "cannot grow a pool of %d bytes to %d bytes", p.capacity, newCapacity)
	}

	extra := newCapacity - p.capacity
	if extra == 0 {
		return nil
	}

	tail := p.chunks.at(p.tail)
	if tail.free {
		p.removeFree(p.tail)
		p.chunks.at(p.tail).size += extra
		p.insertFree(p.tail)
	} else if extra < MinimumAllocationSize {
		// Too small to track on its own, so it becomes slack in the last allocation
		tail.size += extra
	} else {
		tail.size += extra
		rest := p.splitAt(p.tail, tail.size-extra)
		p.insertFree(rest)
	}

	p.capacity = newCapacity
	return nil
}

// Clear instantly frees all allocations
func (p *Pool) Clear() {
	p.reset()
}
