package ring_test

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/arsenal/suballoc"
	"github.com/vkngwrapper/arsenal/suballoc/ring"
)

func newRing(t *testing.T, size, alignment uint32, flights int) *ring.FlightRing {
	t.Helper()

	r, err := ring.New(size, alignment, flights)
	require.NoError(t, err)
	require.NoError(t, r.Validate())

	return r
}

func requireAlloc(t *testing.T, r *ring.FlightRing, size, expected uint32) {
	t.Helper()

	require.Equal(t, expected, r.Alloc(size))
	require.NoError(t, r.Validate())
}

func TestNewRingParameters(t *testing.T) {
	_, err := ring.New(256, 3, 2)
	require.True(t, errors.Is(err, suballoc.PowerOfTwoError))

	_, err = ring.New(256, 0, 2)
	require.True(t, errors.Is(err, suballoc.PowerOfTwoError))

	_, err = ring.New(256, 16, 0)
	require.Error(t, err)

	r := newRing(t, 256, 16, 2)
	require.Equal(t, uint32(256), r.Size())
	require.Equal(t, ring.Range{}, r.Flight())
}

func TestRingBumpsWithAlignment(t *testing.T) {
	r := newRing(t, 256, 16, 3)

	requireAlloc(t, r, 10, 0)
	requireAlloc(t, r, 20, 16)
	requireAlloc(t, r, 16, 48)
	require.Equal(t, ring.Range{Begin: 0, End: 64}, r.Flight())
}

func TestRingExhaustion(t *testing.T) {
	r := newRing(t, 128, 16, 2)

	requireAlloc(t, r, 100, 0)
	requireAlloc(t, r, 32, ring.InvalidOffset)
	requireAlloc(t, r, 16, 112)
	requireAlloc(t, r, 1, ring.InvalidOffset)
	requireAlloc(t, r, 256, ring.InvalidOffset)
}

func TestRingAlignmentOverflow(t *testing.T) {
	r := newRing(t, ^uint32(0), 16, 2)

	requireAlloc(t, r, ^uint32(0)-7, ring.InvalidOffset)
	requireAlloc(t, r, 16, 0)
}

func TestRingReclaimsAndWraps(t *testing.T) {
	r := newRing(t, 128, 16, 2)

	// Flight 0
	requireAlloc(t, r, 64, 0)

	r.PrepareNextFlight()
	require.NoError(t, r.Validate())
	require.Equal(t, ring.Range{Begin: 64, End: 64}, r.Flight())

	// Flight 1
	requireAlloc(t, r, 48, 64)

	// Recycling flight 0 frees [0, 64)
	r.PrepareNextFlight()
	require.NoError(t, r.Validate())

	// [112, 128) is too small, so the ring wraps
	requireAlloc(t, r, 32, 0)
	requireAlloc(t, r, 32, 32)
	requireAlloc(t, r, 16, ring.InvalidOffset)
	require.Equal(t, ring.Range{Begin: 112, End: 64}, r.Flight())

	// Recycling flight 1 frees [64, 112), and the ring is still wrapped
	r.PrepareNextFlight()
	require.NoError(t, r.Validate())
	requireAlloc(t, r, 48, 64)
	requireAlloc(t, r, 16, ring.InvalidOffset)

	// Recycling the wrapped flight brings the tail back to the low end of the arena
	r.PrepareNextFlight()
	require.NoError(t, r.Validate())
	require.Equal(t, ring.Range{Begin: 112, End: 112}, r.Flight())
	requireAlloc(t, r, 16, 112)
	requireAlloc(t, r, 64, 0)
}

func TestRingSingleFlight(t *testing.T) {
	r := newRing(t, 64, 16, 1)

	requireAlloc(t, r, 32, 0)
	requireAlloc(t, r, 32, 32)
	requireAlloc(t, r, 16, ring.InvalidOffset)

	// With one flight, preparing the next one reclaims everything
	r.PrepareNextFlight()
	require.NoError(t, r.Validate())
	requireAlloc(t, r, 16, 0)
	requireAlloc(t, r, 48, 16)
	requireAlloc(t, r, 16, ring.InvalidOffset)
}

func TestRingEmptyFlights(t *testing.T) {
	r := newRing(t, 128, 16, 3)

	requireAlloc(t, r, 32, 0)
	for i := 0; i < 6; i++ {
		r.PrepareNextFlight()
		require.NoError(t, r.Validate())
	}

	requireAlloc(t, r, 96, 32)
	requireAlloc(t, r, 32, 0)
}

func TestRingReset(t *testing.T) {
	r := newRing(t, 128, 16, 2)

	requireAlloc(t, r, 128, 0)
	requireAlloc(t, r, 16, ring.InvalidOffset)

	r.Reset(512)
	require.NoError(t, r.Validate())
	require.Equal(t, uint32(512), r.Size())
	require.Equal(t, ring.Range{}, r.Flight())
	requireAlloc(t, r, 256, 0)
	requireAlloc(t, r, 256, 256)
}
