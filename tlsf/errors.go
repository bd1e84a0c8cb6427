package tlsf

import "github.com/cockroachdb/errors"

var (
	// ErrInvalidOffset is returned when Free, Realloc or a query receives an offset that is not
	// the start of a live allocation in the pool: one that was never returned by Alloc or Realloc,
	// one that has already been freed, or one that a successful Realloc moved away from. It
	// indicates a bug in the caller, and the pool is left unchanged.
	ErrInvalidOffset = errors.New("offset is not a live allocation in this pool")
	// ErrInvalidCapacity is returned when a pool is created or grown with an unusable capacity
	ErrInvalidCapacity = errors.New("invalid pool capacity")
)
