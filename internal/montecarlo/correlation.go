package montecarlo

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/ai-in-pm/CSCSC-Agent/internal/domain"
)

const (
	symmetryTolerance = 1e-9
	// psdRidge is added to the diagonal once when factorization fails, so
	// positive semi-definite matrices with a zero eigenvalue are accepted
	psdRidge = 1e-10
)

// choleskyFactor validates a pairwise correlation matrix over n tasks and
// returns its lower Cholesky factor. The matrix must be n×n, symmetric,
// unit-diagonal, and positive semi-definite; anything else fails with
// MalformedCorrelationMatrixError.
func choleskyFactor(n int, corr [][]float64) (*mat.TriDense, error) {
	if len(corr) != n {
		return nil, &domain.MalformedCorrelationMatrixError{
			Reason: fmt.Sprintf("matrix has %d rows, project has %d tasks", len(corr), n),
		}
	}
	flat := make([]float64, n*n)
	for i := range corr {
		if len(corr[i]) != n {
			return nil, &domain.MalformedCorrelationMatrixError{
				Reason: fmt.Sprintf("row %d has %d columns, want %d", i, len(corr[i]), n),
			}
		}
		for j := range corr[i] {
			flat[i*n+j] = corr[i][j]
		}
	}
	for i := 0; i < n; i++ {
		if math.Abs(corr[i][i]-1) > symmetryTolerance {
			return nil, &domain.MalformedCorrelationMatrixError{
				Reason: fmt.Sprintf("diagonal element (%d,%d) is %g, want 1", i, i, corr[i][i]),
			}
		}
		for j := i + 1; j < n; j++ {
			if math.Abs(corr[i][j]-corr[j][i]) > symmetryTolerance {
				return nil, &domain.MalformedCorrelationMatrixError{
					Reason: fmt.Sprintf("asymmetric at (%d,%d)", i, j),
				}
			}
		}
	}

	sym := mat.NewSymDense(n, flat)
	var chol mat.Cholesky
	if !chol.Factorize(sym) {
		// Semi-definite matrices (rank-deficient but valid) fail strict
		// factorization; retry once with a tiny diagonal ridge.
		for i := 0; i < n; i++ {
			sym.SetSym(i, i, sym.At(i, i)+psdRidge)
		}
		if !chol.Factorize(sym) {
			return nil, &domain.MalformedCorrelationMatrixError{
				Reason: "matrix is not positive semi-definite",
			}
		}
	}

	l := mat.NewTriDense(n, mat.Lower, nil)
	chol.LTo(l)
	return l, nil
}

// correlate maps independent standard normals to correlated ones: z = L·eta.
// A nil factor means independent draws and returns eta unchanged.
func correlate(l *mat.TriDense, eta []float64) []float64 {
	if l == nil {
		return eta
	}
	n := len(eta)
	z := make([]float64, n)
	for i := 0; i < n; i++ {
		sum := 0.0
		for j := 0; j <= i; j++ {
			sum += l.At(i, j) * eta[j]
		}
		z[i] = sum
	}
	return z
}
