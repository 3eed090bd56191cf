package occupancy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		occupied, capacity int
		want               Status
	}{
		{0, 0, Empty},
		{3, 0, Empty},
		{0, 10, Empty},
		{1, 10, Partial},
		{7, 10, Partial},
		{8, 10, AlmostFull},
		{9, 10, AlmostFull},
		{10, 10, Full},
		{11, 10, Overbooked},
		{4, 5, AlmostFull},
		{3, 4, Partial},
		{1, 1, Full},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Classify(tc.occupied, tc.capacity), "occupied=%d capacity=%d", tc.occupied, tc.capacity)
	}
}

func TestClassifyMonotonic(t *testing.T) {
	for capacity := 1; capacity <= 40; capacity++ {
		prev := Classify(0, capacity)
		for occupied := 1; occupied <= capacity*2; occupied++ {
			cur := Classify(occupied, capacity)
			require.GreaterOrEqual(t, int(cur), int(prev), "capacity=%d occupied=%d", capacity, occupied)
			prev = cur
		}
	}
}

func TestCrossingFiresOncePerTransition(t *testing.T) {
	const capacity = 10
	var fired []Status
	for occupied := 0; occupied < 13; occupied++ {
		if st, ok := Crossing(occupied, occupied+1, capacity); ok {
			fired = append(fired, st)
		}
	}
	assert.Equal(t, []Status{AlmostFull, Full, Overbooked}, fired)
}

func TestCrossingIgnoresSameStatus(t *testing.T) {
	st, ok := Crossing(8, 9, 10)
	assert.False(t, ok)
	assert.Equal(t, AlmostFull, st)

	_, ok = Crossing(11, 12, 10)
	assert.False(t, ok)
}

func TestPercentage(t *testing.T) {
	assert.Equal(t, 0.0, Percentage(5, 0))
	assert.Equal(t, 80.0, Percentage(8, 10))
	assert.Equal(t, 33.3, Percentage(1, 3))
	assert.Equal(t, 66.7, Percentage(2, 3))
	assert.Equal(t, 110.0, Percentage(11, 10))
}

func TestStatusText(t *testing.T) {
	b, err := AlmostFull.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "almost_full", string(b))

	var s Status
	require.NoError(t, s.UnmarshalText([]byte("overbooked")))
	assert.Equal(t, Overbooked, s)
	assert.Error(t, s.UnmarshalText([]byte("nope")))
}
