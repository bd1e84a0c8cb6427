package tlsf_test

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/arsenal/suballoc/tlsf"
)

type move struct {
	OldOffset uint32
	NewOffset uint32
	Size      uint32
}

func recordMoves(moves *[]move) tlsf.MoveFunc {
	return func(oldOffset, newOffset, size uint32) {
		*moves = append(*moves, move{OldOffset: oldOffset, NewOffset: newOffset, Size: size})
	}
}

func TestReallocGrowsIntoFreeNeighbor(t *testing.T) {
	pool := newPool(t, 1024)

	require.Equal(t, uint32(0), pool.Alloc(16))
	require.Equal(t, uint32(16), pool.Alloc(16))
	require.NoError(t, pool.Free(16))

	var moves []move
	offset, err := pool.Realloc(0, 32, recordMoves(&moves))
	require.NoError(t, err)
	require.Equal(t, uint32(0), offset)
	requireSize(t, pool, offset, 32)
	require.Empty(t, moves)

	require.NoError(t, pool.Validate())
	require.Equal(t, []region{
		{Offset: 0, Size: 32},
		{Offset: 32, Size: 992, Free: true},
	}, regions(t, pool))
}

func TestReallocAbsorbsWholeNeighbor(t *testing.T) {
	pool := newPool(t, 1024)

	require.Equal(t, uint32(0), pool.Alloc(32))
	require.Equal(t, uint32(32), pool.Alloc(16))
	require.Equal(t, uint32(48), pool.Alloc(16))
	require.NoError(t, pool.Free(32))

	// Growing to 48 leaves nothing of the 16 byte neighbor behind
	offset, err := pool.Realloc(0, 40, nil)
	require.NoError(t, err)
	require.Equal(t, uint32(0), offset)
	requireSize(t, pool, offset, 48)

	require.NoError(t, pool.Validate())
	require.Equal(t, 1, pool.FreeRegionsCount())
}

func TestReallocShrinksInPlace(t *testing.T) {
	pool := newPool(t, 1024)

	require.Equal(t, uint32(0), pool.Alloc(256))
	require.Equal(t, uint32(256), pool.Alloc(16))

	offset, err := pool.Realloc(0, 100, nil)
	require.NoError(t, err)
	require.Equal(t, uint32(0), offset)
	requireSize(t, pool, offset, 112)

	require.NoError(t, pool.Validate())
	require.Equal(t, []region{
		{Offset: 0, Size: 112},
		{Offset: 112, Size: 144, Free: true},
		{Offset: 256, Size: 16},
		{Offset: 272, Size: 752, Free: true},
	}, regions(t, pool))

	// Shrinking next to a free range merges the released tail into it
	require.NoError(t, pool.Free(256))
	offset, err = pool.Realloc(0, 16, nil)
	require.NoError(t, err)
	require.Equal(t, uint32(0), offset)

	require.NoError(t, pool.Validate())
	require.Equal(t, []region{
		{Offset: 0, Size: 16},
		{Offset: 16, Size: 1008, Free: true},
	}, regions(t, pool))
}

func TestReallocSameClassIsNoop(t *testing.T) {
	pool := newPool(t, 1024)

	require.Equal(t, uint32(0), pool.Alloc(20))

	offset, err := pool.Realloc(0, 30, nil)
	require.NoError(t, err)
	require.Equal(t, uint32(0), offset)
	requireSize(t, pool, offset, 32)
	require.Len(t, regions(t, pool), 2)
}

func TestReallocFitsInSlack(t *testing.T) {
	pool := newPool(t, 40)

	require.Equal(t, uint32(0), pool.Alloc(20))
	requireSize(t, pool, 0, 40)

	var moves []move
	offset, err := pool.Realloc(0, 40, recordMoves(&moves))
	require.NoError(t, err)
	require.Equal(t, uint32(0), offset)
	requireSize(t, pool, offset, 40)
	require.Empty(t, moves)
	require.NoError(t, pool.Validate())
}

func TestReallocRelocates(t *testing.T) {
	pool := newPool(t, 1024)

	require.Equal(t, uint32(0), pool.Alloc(32))
	require.Equal(t, uint32(32), pool.Alloc(32))

	var moves []move
	offset, err := pool.Realloc(0, 64, recordMoves(&moves))
	require.NoError(t, err)
	require.Equal(t, uint32(64), offset)
	requireSize(t, pool, offset, 64)
	require.Equal(t, []move{{OldOffset: 0, NewOffset: 64, Size: 32}}, moves)

	require.NoError(t, pool.Validate())
	require.Equal(t, []region{
		{Offset: 0, Size: 32, Free: true},
		{Offset: 32, Size: 32},
		{Offset: 64, Size: 64},
		{Offset: 128, Size: 896, Free: true},
	}, regions(t, pool))

	err = pool.Free(0)
	require.True(t, errors.Is(err, tlsf.ErrInvalidOffset))
}

func TestReallocRelocatesIntoOverlappingRange(t *testing.T) {
	pool := newPool(t, 1024)
	arena := make([]byte, pool.Capacity())

	require.Equal(t, uint32(0), pool.Alloc(32))
	require.Equal(t, uint32(32), pool.Alloc(32))
	require.Equal(t, uint32(64), pool.Alloc(32))
	require.NoError(t, pool.Free(0))

	for i := uint32(0); i < 32; i++ {
		arena[32+i] = byte(i + 1)
	}

	// The released range merges with the free range before it, so the new
	// allocation starts below the old one and overlaps it
	offset, err := pool.Realloc(32, 48, func(oldOffset, newOffset, size uint32) {
		copy(arena[newOffset:newOffset+size], arena[oldOffset:oldOffset+size])
	})
	require.NoError(t, err)
	require.Equal(t, uint32(0), offset)
	requireSize(t, pool, offset, 48)

	for i := uint32(0); i < 32; i++ {
		require.Equal(t, byte(i+1), arena[offset+i])
	}

	require.NoError(t, pool.Validate())
	require.Equal(t, []region{
		{Offset: 0, Size: 48},
		{Offset: 48, Size: 16, Free: true},
		{Offset: 64, Size: 32},
		{Offset: 96, Size: 928, Free: true},
	}, regions(t, pool))
}

func TestReallocFailureRestoresAllocation(t *testing.T) {
	pool := newPool(t, 128)

	require.Equal(t, uint32(0), pool.Alloc(32))
	require.Equal(t, uint32(32), pool.Alloc(32))
	require.Equal(t, uint32(64), pool.Alloc(64))
	require.NoError(t, pool.Free(0))

	before := regions(t, pool)

	var moves []move
	offset, err := pool.Realloc(32, 96, recordMoves(&moves))
	require.NoError(t, err)
	require.Equal(t, tlsf.InvalidOffset, offset)
	require.Empty(t, moves)

	require.NoError(t, pool.Validate())
	require.Equal(t, before, regions(t, pool))
	requireSize(t, pool, 32, 32)
	require.Equal(t, 2, pool.AllocationCount())

	require.NoError(t, pool.Free(32))
	require.NoError(t, pool.Free(64))
	require.Equal(t, []region{{Offset: 0, Size: 128, Free: true}}, regions(t, pool))
}

func TestReallocFailureRestoresBetweenFreeRanges(t *testing.T) {
	pool := newPool(t, 256)

	require.Equal(t, uint32(0), pool.Alloc(64))
	require.Equal(t, uint32(64), pool.Alloc(32))
	require.Equal(t, uint32(96), pool.Alloc(32))
	require.Equal(t, uint32(128), pool.Alloc(128))
	require.NoError(t, pool.Free(0))
	require.NoError(t, pool.Free(96))

	before := regions(t, pool)

	// Only 128 bytes are free once the allocation is released, but 192 are needed
	offset, err := pool.Realloc(64, 192, nil)
	require.NoError(t, err)
	require.Equal(t, tlsf.InvalidOffset, offset)

	require.NoError(t, pool.Validate())
	require.Equal(t, before, regions(t, pool))
}

func TestReallocLargerThanCapacity(t *testing.T) {
	pool := newPool(t, 1024)
	require.Equal(t, uint32(0), pool.Alloc(16))

	offset, err := pool.Realloc(0, 2048, nil)
	require.NoError(t, err)
	require.Equal(t, tlsf.InvalidOffset, offset)
	requireSize(t, pool, 0, 16)
}

func TestReallocInvalidOffset(t *testing.T) {
	pool := newPool(t, 1024)

	offset, err := pool.Realloc(0, 16, nil)
	require.True(t, errors.Is(err, tlsf.ErrInvalidOffset))
	require.Equal(t, tlsf.InvalidOffset, offset)

	require.Equal(t, uint32(0), pool.Alloc(16))
	require.Equal(t, uint32(16), pool.Alloc(16))
	require.Equal(t, uint32(32), pool.Alloc(16))

	// A relocated allocation's old offset is no longer valid
	offset, err = pool.Realloc(16, 64, nil)
	require.NoError(t, err)
	require.NotEqual(t, uint32(16), offset)

	_, err = pool.Realloc(16, 16, nil)
	require.True(t, errors.Is(err, tlsf.ErrInvalidOffset))
	require.NoError(t, pool.Validate())
}
