package tlsf

import (
	"log/slog"

	"github.com/cockroachdb/errors"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/vkngwrapper/arsenal/suballoc"
)

// Validate performs internal consistency checks on the pool. It walks every chunk and every
// free list, so it is expensive. When the pool is functioning correctly, it should not be
// possible for this method to return an error.
func (p *Pool) Validate() error {
	if p.freeSize > p.capacity {
		return errors.New("invalid pool free size")
	}

	head := p.chunks.at(p.head)
	if head.prevPhysical != nilChunk {
		return errors.New("the first physical chunk has a previous chunk")
	}
	if head.offset != 0 {
		return errors.Newf("the first physical chunk should have an offset of 0, but instead it has an offset of %d", head.offset)
	}

	var calculatedSize, calculatedFreeSize uint64
	var allocCount, freeCount, chunkCount int
	last := nilChunk
	prevFree := false

	for index := p.head; index != nilChunk; index = p.chunks.at(index).nextPhysical {
		c := p.chunks.at(index)
		chunkCount++

		if c.prevPhysical != last {
			return errors.Newf("chunk at offset %d has a previous physical chunk, but the reverse reference is broken", c.offset)
		}
		if uint64(c.offset) != calculatedSize {
			return errors.Newf("chunk at offset %d does not start where the previous chunk ends (%d)", c.offset, calculatedSize)
		}
		if c.size < MinimumAllocationSize {
			return errors.Newf("chunk at offset %d has size %d, below the minimum allocation size", c.offset, c.size)
		}

		calculatedSize += uint64(c.size)

		if c.free {
			if prevFree {
				return errors.Newf("free chunk at offset %d directly follows another free chunk", c.offset)
			}
			freeCount++
			calculatedFreeSize += uint64(c.size)
		} else {
			allocIndex, ok := p.allocations.Get(c.offset)
			if !ok || allocIndex != index {
				return errors.Newf("taken chunk at offset %d is not in the allocation map", c.offset)
			}
			allocCount++
		}

		prevFree = c.free
		last = index
	}

	if last != p.tail {
		return errors.New("the last physical chunk is not the pool's tail")
	}
	if chunkCount != p.chunks.live() {
		return errors.Newf("the physical chain holds %d chunks, but %d chunk records are live", chunkCount, p.chunks.live())
	}
	if calculatedSize != uint64(p.capacity) {
		return errors.Newf("the capacity of the pool is %d, but the chunks only added up to %d", p.capacity, calculatedSize)
	}
	if calculatedFreeSize != uint64(p.freeSize) {
		return errors.Newf("the free size of the pool is %d, but the free chunks only added up to %d", p.freeSize, calculatedFreeSize)
	}
	if allocCount != p.allocCount || p.allocations.Count() != p.allocCount {
		return errors.Newf("the allocation count of the pool is %d, but there were %d taken chunks and %d mapped offsets", p.allocCount, allocCount, p.allocations.Count())
	}
	if freeCount != p.freeCount {
		return errors.Newf("the free chunk count of the pool is %d, but there were %d free chunks", p.freeCount, freeCount)
	}

	return p.validateFreeLists(freeCount)
}

func (p *Pool) validateFreeLists(expectedCount int) error {
	var freeListCount int

	for first := 0; first < firstLevelCount; first++ {
		if (p.bitmap.firstLevel&(1<<first) != 0) != (p.bitmap.secondLevel[first] != 0) {
			return errors.Newf("first level bitmap disagrees with the second level bitmap for class %d", first)
		}

		for second := 0; second < secondLevelCount; second++ {
			class := sizeClass{first: uint8(first), second: uint8(second)}
			index := p.freeLists[first][second]

			if (index != nilChunk) != p.bitmap.hasFree(class) {
				return errors.Newf("bitmap disagrees with the occupancy of free list (%d, %d)", first, second)
			}

			prev := nilChunk
			for ; index != nilChunk; index = p.chunks.at(index).nextFree {
				c := p.chunks.at(index)
				if !c.free {
					return errors.Newf("chunk at offset %d is in the free list but is not free", c.offset)
				}
				if c.prevFree != prev {
					return errors.Newf("chunk at offset %d is in the free list, but the reverse reference is broken", c.offset)
				}
				if classForChunk(c.size) != class {
					return errors.Newf("chunk at offset %d with size %d is in free list (%d, %d)", c.offset, c.size, first, second)
				}

				freeListCount++
				prev = index
			}
		}
	}

	if freeListCount != expectedCount {
		return errors.Newf("the number of free chunks in the physical chain and the number of chunks in the free lists do not match! free lists: %d, physical chain: %d", freeListCount, expectedCount)
	}

	return nil
}

// AddStatistics sums this pool's allocation statistics into the provided suballoc.Statistics
func (p *Pool) AddStatistics(stats *suballoc.Statistics) {
	stats.ArenaCount++
	stats.AllocationCount += p.allocCount
	stats.ArenaBytes += int(p.capacity)
	stats.AllocationBytes += int(p.capacity - p.freeSize)
}

// AddDetailedStatistics sums this pool's allocation statistics into the provided
// suballoc.DetailedStatistics. It walks every chunk in the pool.
func (p *Pool) AddDetailedStatistics(stats *suballoc.DetailedStatistics) {
	stats.ArenaCount++
	stats.ArenaBytes += int(p.capacity)

	for index := p.head; index != nilChunk; index = p.chunks.at(index).nextPhysical {
		c := p.chunks.at(index)
		if c.free {
			stats.AddUnusedRange(int(c.size))
		} else {
			stats.AddAllocation(int(c.size))
		}
	}
}

// VisitAllRegions calls handleRegion once for each allocated and free range in the pool, in
// address order. Iteration stops at the first error, which is returned.
func (p *Pool) VisitAllRegions(handleRegion func(offset, size uint32, free bool) error) error {
	for index := p.head; index != nilChunk; index = p.chunks.at(index).nextPhysical {
		c := p.chunks.at(index)
		err := handleRegion(c.offset, c.size, c.free)
		if err != nil {
			return err
		}
	}

	return nil
}

// PrintDetailedMap writes a json object describing the pool and every range in it
func (p *Pool) PrintDetailedMap(writer *jwriter.Writer) {
	json := writer.Object()
	defer json.End()

	json.Name("TotalBytes").Int(int(p.capacity))
	json.Name("UnusedBytes").Int(int(p.freeSize))
	json.Name("Allocations").Int(p.allocCount)
	json.Name("UnusedRanges").Int(p.freeCount)

	regions := json.Name("Regions").Array()
	defer regions.End()

	_ = p.VisitAllRegions(func(offset, size uint32, free bool) error {
		obj := regions.Object()
		defer obj.End()

		obj.Name("Offset").Int(int(offset))
		obj.Name("Size").Int(int(size))
		if free {
			obj.Name("Type").String("FREE")
		} else {
			obj.Name("Type").String("ALLOCATED")
		}

		return nil
	})
}

// DebugLogAllAllocations calls logFunc for every live allocation in the pool, in address order
func (p *Pool) DebugLogAllAllocations(logger *slog.Logger, logFunc func(log *slog.Logger, offset, size uint32)) {
	for index := p.head; index != nilChunk; index = p.chunks.at(index).nextPhysical {
		c := p.chunks.at(index)
		if !c.free {
			logFunc(logger, c.offset, c.size)
		}
	}
}
