package tlsf

import (
	"math"
	"math/bits"
)

const (
	// MinimumAllocationSize is the smallest chunk the pool will track, and the granularity of
	// the linear size classes
	MinimumAllocationSize uint32 = 16
	// SecondLevelIndex is the number of bits used to subdivide each first level class
	SecondLevelIndex = 5
	// FirstLevelMax is the largest size served by the linear classes. Sizes above it use
	// power-of-two first level classes.
	FirstLevelMax uint32 = MinimumAllocationSize << SecondLevelIndex
	// MaxCapacity is the largest arena a Pool can manage
	MaxCapacity uint32 = 1 << 31

	secondLevelCount = 1 << SecondLevelIndex
	// log2(FirstLevelMax). First level class f > 0 covers sizes in (2^(f+8), 2^(f+9)].
	firstLevelShift = 9
	// Enough first level classes to hold MaxCapacity
	firstLevelCount = 32 - firstLevelShift
)

// sizeClass is a (first level, second level) free list coordinate
type sizeClass struct {
	first  uint8
	second uint8
}

var noClass = sizeClass{first: math.MaxUint8, second: math.MaxUint8}

func (c sizeClass) valid() bool {
	return c != noClass
}

// next returns the class immediately above c, or noClass if c is the largest class
func (c sizeClass) next() sizeClass {
	if !c.valid() {
		return noClass
	}
	if c.second+1 < secondLevelCount {
		return sizeClass{first: c.first, second: c.second + 1}
	}
	if int(c.first)+1 < firstLevelCount {
		return sizeClass{first: c.first + 1, second: 0}
	}
	return noClass
}

// classForRequest is the ceiling mapping: it returns the smallest class whose nominal size
// is at least size. Any chunk indexed under the returned class, or a larger one, can satisfy
// the request. size must not exceed MaxCapacity.
func classForRequest(size uint32) sizeClass {
	if size <= MinimumAllocationSize {
		return sizeClass{}
	}

	if size <= FirstLevelMax {
		return sizeClass{second: uint8((size+MinimumAllocationSize-1)/MinimumAllocationSize - 1)}
	}

	// size-1 puts exact powers of two at the top of the class below them
	first := bits.Len32(size-1) - firstLevelShift
	base := uint32(1) << (first + firstLevelShift - 1)
	step := base >> SecondLevelIndex
	second := (size-base+step-1)/step - 1

	return sizeClass{first: uint8(first), second: uint8(second)}
}

// classForChunk is the floor mapping: it returns the largest class whose nominal size is no
// greater than size. Free chunks are indexed this way so that every chunk in a class is at
// least as large as the class's nominal size. Sizes below MinimumAllocationSize have no class.
func classForChunk(size uint32) sizeClass {
	if size < MinimumAllocationSize {
		return noClass
	}

	if size <= FirstLevelMax {
		return sizeClass{second: uint8(size/MinimumAllocationSize - 1)}
	}

	first := bits.Len32(size) - firstLevelShift
	base := uint32(1) << (first + firstLevelShift - 1)
	step := base >> SecondLevelIndex
	quotient := (size - base) / step

	if quotient == 0 {
		// size is within one step of a power of two: it belongs at the top of the class below
		return sizeClass{first: uint8(first - 1), second: secondLevelCount - 1}
	}

	return sizeClass{first: uint8(first), second: uint8(quotient - 1)}
}

// sizeOfClass returns the nominal size of a class: the size that requests mapped to the
// class are rounded up to, and the minimum size of any chunk indexed under it.
func sizeOfClass(c sizeClass) uint32 {
	if c.first == 0 {
		return (uint32(c.second) + 1) * MinimumAllocationSize
	}

	base := uint32(1) << (uint32(c.first) + firstLevelShift - 1)
	return base + (base>>SecondLevelIndex)*(uint32(c.second)+1)
}

// roundedRequestSize returns the size a request of the provided size will actually occupy
func roundedRequestSize(size uint32) uint32 {
	return sizeOfClass(classForRequest(size))
}
