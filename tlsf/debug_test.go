//go:build debug_suballoc

package tlsf

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func corruptedPool(t *testing.T) *Pool {
	pool, err := NewPool(1024)
	require.NoError(t, err)

	require.Equal(t, uint32(0), pool.Alloc(16))
	pool.freeSize++
	require.Error(t, pool.Validate())

	return pool
}

func TestDebugValidateOnEveryMutation(t *testing.T) {
	require.Panics(t, func() { corruptedPool(t).Alloc(16) })
	require.Panics(t, func() { _ = corruptedPool(t).Free(0) })
	require.Panics(t, func() { _, _ = corruptedPool(t).Realloc(0, 64, nil) })
	require.Panics(t, func() { _ = corruptedPool(t).Grow(2048) })
}
