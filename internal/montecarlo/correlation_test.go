package montecarlo

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ai-in-pm/CSCSC-Agent/internal/domain"
)

func TestCholeskyFactorValid(t *testing.T) {
	corr := [][]float64{
		{1.0, 0.6},
		{0.6, 1.0},
	}
	l, err := choleskyFactor(2, corr)
	require.NoError(t, err)

	// L·Lᵀ must reproduce the input matrix
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			got := 0.0
			for k := 0; k < 2; k++ {
				got += l.At(i, k) * l.At(j, k)
			}
			assert.InDelta(t, corr[i][j], got, 1e-9)
		}
	}
}

func TestCholeskyFactorMalformed(t *testing.T) {
	tests := []struct {
		name string
		n    int
		corr [][]float64
	}{
		{"wrong row count", 3, [][]float64{{1, 0}, {0, 1}}},
		{"ragged rows", 2, [][]float64{{1, 0}, {0}}},
		{"non-unit diagonal", 2, [][]float64{{1, 0}, {0, 2}}},
		{"asymmetric", 2, [][]float64{{1, 0.5}, {0.3, 1}}},
		{"not positive semi-definite", 2, [][]float64{{1, 1.5}, {1.5, 1}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := choleskyFactor(tt.n, tt.corr)
			var malformed *domain.MalformedCorrelationMatrixError
			assert.True(t, errors.As(err, &malformed))
		})
	}
}

func TestCholeskyFactorSemiDefinite(t *testing.T) {
	// Perfect correlation is rank deficient but still a valid matrix
	corr := [][]float64{
		{1.0, 1.0},
		{1.0, 1.0},
	}
	l, err := choleskyFactor(2, corr)
	require.NoError(t, err)
	require.NotNil(t, l)
}

func TestCorrelateIdentityWithNilFactor(t *testing.T) {
	eta := []float64{0.3, -1.2, 2.1}
	assert.Equal(t, eta, correlate(nil, eta))
}

func TestCorrelateInducesCorrelation(t *testing.T) {
	corr := [][]float64{
		{1.0, 0.9},
		{0.9, 1.0},
	}
	l, err := choleskyFactor(2, corr)
	require.NoError(t, err)

	z := correlate(l, []float64{1.0, 0.0})
	// First output passes through; second picks up 0.9 of the first
	assert.InDelta(t, 1.0, z[0], 1e-9)
	assert.InDelta(t, 0.9, z[1], 1e-9)
}
