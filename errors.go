package suballoc

import "github.com/pkg/errors"

// PowerOfTwoError is the error returned from CheckPow2 or other methods if the number being tested is not a power of two
var PowerOfTwoError error = errors.New("number must be a power of two")

// InvalidOffset is returned by allocators in this module when a request cannot be satisfied. It is
// an expected outcome (the arena is full or too fragmented), not a fault.
const InvalidOffset uint32 = ^uint32(0)
