package tlsf

import "math/bits"

// bitmapDirectory tracks which size classes have at least one free chunk. Bit f of firstLevel
// is set when secondLevel[f] is non-zero, and bit s of secondLevel[f] is set when the free
// list for class (f, s) is non-empty.
type bitmapDirectory struct {
	firstLevel  uint32
	secondLevel [firstLevelCount]uint32
}

func (d *bitmapDirectory) hasFree(c sizeClass) bool {
	if d.firstLevel&(1<<c.first) == 0 {
		return false
	}

	return d.secondLevel[c.first]&(1<<c.second) != 0
}

func (d *bitmapDirectory) set(c sizeClass) {
	d.secondLevel[c.first] |= 1 << c.second
	d.firstLevel |= 1 << c.first
}

func (d *bitmapDirectory) unset(c sizeClass) {
	d.secondLevel[c.first] &^= 1 << c.second
	if d.secondLevel[c.first] == 0 {
		d.firstLevel &^= 1 << c.first
	}
}

// findGreaterOrEqual returns the smallest class at or above c that has a free chunk, or
// noClass if there is none
func (d *bitmapDirectory) findGreaterOrEqual(c sizeClass) sizeClass {
	if !c.valid() {
		return noClass
	}

	first := c.first
	innerFreeMap := d.secondLevel[first] & (^uint32(0) << c.second)

	if innerFreeMap == 0 {
		// Check higher levels for available chunks
		if int(first)+1 >= firstLevelCount {
			return noClass
		}

		freeMap := d.firstLevel & (^uint32(0) << (first + 1))
		if freeMap == 0 {
			return noClass
		}

		first = uint8(bits.TrailingZeros32(freeMap))
		innerFreeMap = d.secondLevel[first]
		if innerFreeMap == 0 {
			panic("free bitmap is in an invalid state")
		}
	}

	return sizeClass{first: first, second: uint8(bits.TrailingZeros32(innerFreeMap))}
}
