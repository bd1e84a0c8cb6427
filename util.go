package suballoc

import (
	cerrors "github.com/cockroachdb/errors"
	"golang.org/x/exp/constraints"
)

// CheckPow2 returns an error wrapping PowerOfTwoError if number is not a power of two.
// name is used to identify the value in the error message.
func CheckPow2[T constraints.Integer](number T, name string) error {
	if number <= 0 || number&(number-1) != 0 {
		return cerrors.Wrapf(PowerOfTwoError, "%s is %d", name, number)
	}
	return nil
}

// AlignUp rounds value up to the next multiple of alignment, which must be a power of two
func AlignUp[T constraints.Unsigned](value T, alignment T) T {
	return (value + alignment - 1) &^ (alignment - 1)
}

// AlignDown rounds value down to a multiple of alignment, which must be a power of two
func AlignDown[T constraints.Unsigned](value T, alignment T) T {
	return value &^ (alignment - 1)
}
