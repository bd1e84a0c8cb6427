// Package tlsf implements a two-level segregated fit suballocator over a fixed-capacity arena
// owned by the caller. The Pool never reads or writes arena bytes: it only decides which
// [offset, offset+size) ranges of the caller's buffer are free or allocated.
//
// Free ranges are indexed by size class. The first level of a class is a power of two (above
// FirstLevelMax) and the second level splits it linearly into 1<<SecondLevelIndex steps, so a
// class's chunks are never more than ~1/32 larger than the class's nominal size. A bitmap per
// level lets Alloc find the nearest non-empty class in constant time, and physically adjacent
// free ranges are merged eagerly on every Free.
//
// A Pool is not safe for concurrent use. Wrap it in a SharedPool, or hold an exclusive lock
// around every call, when it must be shared between goroutines.
package tlsf
