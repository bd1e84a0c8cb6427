package suballoc

import "math"

// Statistics is a cheap summary of one or more arenas. Pools add themselves to it with
// AddStatistics, so a single Statistics can total several arenas.
type Statistics struct {
	ArenaCount      int
	AllocationCount int
	ArenaBytes      int
	AllocationBytes int
}

func (s *Statistics) Clear() {
	s.ArenaCount = 0
	s.AllocationCount = 0
	s.ArenaBytes = 0
	s.AllocationBytes = 0
}

func (s *Statistics) AddStatistics(other *Statistics) {
	s.ArenaCount += other.ArenaCount
	s.AllocationCount += other.AllocationCount
	s.ArenaBytes += other.ArenaBytes
	s.AllocationBytes += other.AllocationBytes
}

// UnusedBytes returns the number of arena bytes not covered by an allocation
func (s *Statistics) UnusedBytes() int {
	return s.ArenaBytes - s.AllocationBytes
}

// DetailedStatistics extends Statistics with per-region extremes. Clear must be called before
// first use so the minimums start at math.MaxInt.
type DetailedStatistics struct {
	Statistics
	UnusedRangeCount   int
	AllocationSizeMin  int
	AllocationSizeMax  int
	UnusedRangeSizeMin int
	UnusedRangeSizeMax int
}

func (s *DetailedStatistics) Clear() {
	s.Statistics.Clear()
	s.UnusedRangeCount = 0
	s.AllocationSizeMin = math.MaxInt
	s.AllocationSizeMax = 0
	s.UnusedRangeSizeMin = math.MaxInt
	s.UnusedRangeSizeMax = 0
}

func (s *DetailedStatistics) AddUnusedRange(size int) {
	s.UnusedRangeCount++

	if size < s.UnusedRangeSizeMin {
		s.UnusedRangeSizeMin = size
	}

	if size > s.UnusedRangeSizeMax {
		s.UnusedRangeSizeMax = size
	}
}

func (s *DetailedStatistics) AddAllocation(size int) {
	s.AllocationCount++
	s.AllocationBytes += size

	if size < s.AllocationSizeMin {
		s.AllocationSizeMin = size
	}

	if size > s.AllocationSizeMax {
		s.AllocationSizeMax = size
	}
}

func (s *DetailedStatistics) AddDetailedStatistics(other *DetailedStatistics) {
	s.Statistics.AddStatistics(&other.Statistics)
	s.UnusedRangeCount += other.UnusedRangeCount

	if other.UnusedRangeSizeMin < s.UnusedRangeSizeMin {
		s.UnusedRangeSizeMin = other.UnusedRangeSizeMin
	}

	if other.UnusedRangeSizeMax > s.UnusedRangeSizeMax {
		s.UnusedRangeSizeMax = other.UnusedRangeSizeMax
	}

	if other.AllocationSizeMin < s.AllocationSizeMin {
		s.AllocationSizeMin = other.AllocationSizeMin
	}

	if other.AllocationSizeMax > s.AllocationSizeMax {
		s.AllocationSizeMax = other.AllocationSizeMax
	}
}

// Fragmentation returns how scattered the unused bytes are, from 0 when they form a single
// range (or there are none) up to nearly 1 when the largest unused range is tiny compared to
// the total. A request larger than UnusedRangeSizeMax fails even if UnusedBytes would cover it.
func (s *DetailedStatistics) Fragmentation() float64 {
	unused := s.UnusedBytes()
	if unused <= 0 || s.UnusedRangeCount == 0 {
		return 0
	}

	return 1 - float64(s.UnusedRangeSizeMax)/float64(unused)
}
