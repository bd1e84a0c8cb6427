package tlsf

import (
	"context"
	"log/slog"

	"github.com/vkngwrapper/arsenal/suballoc"
)

// Realloc resizes the allocation at offset to hold at least newSize bytes and returns its
// offset afterward.
//
// When the allocation shrinks, or the free range directly after it is large enough to absorb
// the growth, the allocation is resized in place and offset is returned unchanged. Otherwise the
// allocation is released and a new range is allocated, which may be at a different (possibly
// overlapping) offset. In that case move is called once, before Realloc returns, so the caller
// can copy its payload to the new offset. move may be nil if the payload does not need to be
// preserved.
//
// Growth in place takes only the bytes it needs from the free successor and leaves the rest
// free, so the offset is kept even when the new size falls in a larger size class.
//
// If no range large enough exists, Realloc returns InvalidOffset and a nil error, and the
// allocation is left exactly as it was. An error wrapping ErrInvalidOffset is returned
// if offset is not a live allocation.
func (p *Pool) Realloc(offset, newSize uint32, move MoveFunc) (uint32, error) {
	suballoc.DebugValidate(p)

	index, err := p.lookup(offset)
	if err != nil {
		return InvalidOffset, err
	}

	if newSize > p.capacity {
		return InvalidOffset, nil
	}

	roundedSize := roundedRequestSize(newSize)
	oldSize := p.chunks.at(index).size

	if roundedSize <= oldSize {
		p.trim(index, roundedSize)
		return offset, nil
	}

	if newSize <= oldSize {
		// Still fits in the slack at the end of the chunk
		return offset, nil
	}

	if p.growInPlace(index, roundedSize) {
		return offset, nil
	}

	// Release first, so the new allocation can make use of the space the old one occupied
	p.allocations.Delete(offset)
	p.allocCount--
	merged := p.release(index)

	newIndex := p.takeFreeChunk(newSize)
	if newIndex == nilChunk {
		restored := p.carve(merged, offset, oldSize)
		p.commit(restored)

		p.logger.LogAttrs(context.Background(), slog.LevelDebug, "no free range for reallocation",
			slog.Uint64("offset", uint64(offset)),
			slog.Uint64("size", uint64(newSize)))
		return InvalidOffset, nil
	}

	newOffset := p.commit(newIndex)
	p.logger.LogAttrs(context.Background(), slog.LevelDebug, "relocated allocation",
		slog.Uint64("oldOffset", uint64(offset)),
		slog.Uint64("newOffset", uint64(newOffset)),
		slog.Uint64("size", uint64(newSize)))

	if move != nil && newOffset != offset {
		move(offset, newOffset, oldSize)
	}

	return newOffset, nil
}

// growInPlace extends a taken chunk to size by absorbing the front of its free physical
// successor. It returns false without changing anything if the successor is taken or too small.
func (p *Pool) growInPlace(index chunkIndex, size uint32) bool {
	c := p.chunks.at(index)
	next := c.nextPhysical
	if next == nilChunk || !p.chunks.at(next).free {
		return false
	}

	if uint64(c.size)+uint64(p.chunks.at(next).size) < uint64(size) {
		return false
	}

	p.removeFree(next)
	p.absorbNext(index)
	p.trim(index, size)

	return true
}
