package montecarlo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSamplerDeterministic(t *testing.T) {
	a := newSampler(4, 42)
	b := newSampler(4, 42)

	for i := 0; i < 100; i++ {
		assert.Equal(t, a.Point(i), b.Point(i))
	}
}

func TestSamplerSeedChangesSequence(t *testing.T) {
	a := newSampler(4, 1)
	b := newSampler(4, 2)
	assert.NotEqual(t, a.Point(0), b.Point(0))
}

func TestSamplerIndexIndependentOfOrder(t *testing.T) {
	s := newSampler(3, 7)
	later := s.Point(50)
	_ = s.Point(3)
	assert.Equal(t, later, s.Point(50))
}

func TestSamplerUnitInterval(t *testing.T) {
	s := newSampler(6, 99)
	for i := 0; i < 1000; i++ {
		for _, v := range s.Point(i) {
			assert.Greater(t, v, 0.0)
			assert.Less(t, v, 1.0)
		}
	}
}

func TestSamplerLowDiscrepancy(t *testing.T) {
	// First dimension is base-2 Halton: every run of 2^k consecutive points
	// covers the unit interval far more evenly than independent draws. Check
	// that each half of [0,1) gets exactly half of 256 points.
	s := newSampler(1, 5)
	var lower int
	for i := 0; i < 256; i++ {
		if s.Point(i)[0] < 0.5 {
			lower++
		}
	}
	assert.Equal(t, 128, lower)
}

func TestRadicalInverse(t *testing.T) {
	tests := []struct {
		n, base int
		want    float64
	}{
		{1, 2, 0.5},
		{2, 2, 0.25},
		{3, 2, 0.75},
		{4, 2, 0.125},
		{1, 3, 1.0 / 3},
		{2, 3, 2.0 / 3},
		{3, 3, 1.0 / 9},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, radicalInverse(tt.n, tt.base), 1e-12)
	}
}

func TestFirstPrimes(t *testing.T) {
	require.Equal(t, []int{2, 3, 5, 7, 11, 13, 17, 19, 23, 29}, firstPrimes(10))
}
