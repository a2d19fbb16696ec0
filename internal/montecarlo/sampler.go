package montecarlo

import (
	"math"
	"math/rand"
)

// Low-discrepancy sampling. Each trial draws one point of a Halton sequence
// (one prime base per dimension) with a seeded Cranley-Patterson rotation, so
// the whole sequence is deterministic in (seed, trial index) and independent
// of evaluation order. No library in the stack ships a quasi-random
// generator, so the radical inverse is implemented here.

// uClamp keeps transformed uniforms away from 0 and 1 where inverse CDFs blow up
const uClamp = 1e-12

type sampler struct {
	dims   int
	primes []int
	shift  []float64
}

// newSampler creates a sampler for the given dimensionality and seed
func newSampler(dims int, seed int64) *sampler {
	// Seeded rotation only; no crypto requirement for simulation draws.
	//nolint:gosec // G404: Monte Carlo sampling does not need crypto-grade randomness
	rng := rand.New(rand.NewSource(seed))
	shift := make([]float64, dims)
	for i := range shift {
		shift[i] = rng.Float64()
	}
	return &sampler{
		dims:   dims,
		primes: firstPrimes(dims),
		shift:  shift,
	}
}

// Point returns the quasi-random uniform vector for a trial index
func (s *sampler) Point(index int) []float64 {
	u := make([]float64, s.dims)
	for d := 0; d < s.dims; d++ {
		v := radicalInverse(index+1, s.primes[d]) + s.shift[d]
		v -= math.Floor(v)
		if v < uClamp {
			v = uClamp
		} else if v > 1-uClamp {
			v = 1 - uClamp
		}
		u[d] = v
	}
	return u
}

// radicalInverse reflects the base-b digits of n about the radix point
func radicalInverse(n, base int) float64 {
	inv := 0.0
	f := 1.0 / float64(base)
	for n > 0 {
		inv += f * float64(n%base)
		n /= base
		f /= float64(base)
	}
	return inv
}

// firstPrimes returns the first n primes by trial division
func firstPrimes(n int) []int {
	primes := make([]int, 0, n)
	for candidate := 2; len(primes) < n; candidate++ {
		isPrime := true
		for _, p := range primes {
			if p*p > candidate {
				break
			}
			if candidate%p == 0 {
				isPrime = false
				break
			}
		}
		if isPrime {
			primes = append(primes, candidate)
		}
	}
	return primes
}
