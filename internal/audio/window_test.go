package audio

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRollingWindowUnprimedBeforeAnySample(t *testing.T) {
	w := newRollingWindow()
	_, _, _, ok := w.MinMax()
	assert.False(t, ok)
}

func TestRollingWindowTracksMinMax(t *testing.T) {
	w := newRollingWindow()
	values := []uint16{10, 50, 5, 40, 20}
	for i, v := range values {
		w.Add(v, uint64(i))
	}
	lo, hi, minTS, ok := w.MinMax()
	assert.True(t, ok)
	assert.Equal(t, uint16(5), lo)
	assert.Equal(t, uint16(50), hi)
	assert.Equal(t, uint64(2), minTS)
}

func TestRollingWindowEvictsOldest(t *testing.T) {
	w := newRollingWindow()
	for i := 0; i < windowCapacity; i++ {
		w.Add(100, uint64(i))
	}
	lo, hi, _, ok := w.MinMax()
	assert.True(t, ok)
	assert.Equal(t, uint16(100), lo)
	assert.Equal(t, uint16(100), hi)

	// Push a single low value; it evicts the oldest 100, not the others.
	w.Add(1, uint64(windowCapacity))
	lo, hi, _, ok = w.MinMax()
	assert.True(t, ok)
	assert.Equal(t, uint16(1), lo)
	assert.Equal(t, uint16(100), hi)
}

func TestRollingWindowMinLessEqualMaxOncePrimed(t *testing.T) {
	w := newRollingWindow()
	for i := 0; i < 200; i++ {
		w.Add(uint16(i%4095), uint64(i))
		lo, hi, _, ok := w.MinMax()
		if ok {
			assert.LessOrEqual(t, lo, hi)
		}
	}
}
