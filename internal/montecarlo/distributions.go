package montecarlo

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/ai-in-pm/CSCSC-Agent/internal/domain"
)

// Marginal distribution derivation. Tasks with explicit three-point
// estimates get triangular marginals; everything else falls back to
// distributions derived from planned values and the task's observed
// performance indices.
const (
	// Lognormal dispersion for derived duration marginals: a base spread
	// plus a penalty that widens with observed schedule slippage
	durSigmaBase = 0.10
	durSigmaSlip = 0.25

	// Derived cost triangles span this range around the CPI-adjusted budget
	costOptimisticFactor  = 0.85
	costPessimisticFactor = 1.30

	// Index hints are clamped so a single pathological observation cannot
	// produce a degenerate marginal
	hintFloor   = 0.5
	hintCeiling = 1.5
)

// quantiler is the inverse CDF surface shared by all marginals
type quantiler interface {
	Quantile(p float64) float64
}

// constDist is a degenerate marginal for zero-duration or zero-budget tasks
type constDist struct {
	v float64
}

func (c constDist) Quantile(float64) float64 { return c.v }

// triangle builds a triangular marginal from a three-point estimate
func triangle(scope string, tp domain.ThreePoint) (quantiler, error) {
	if tp.Optimistic > tp.MostLikely || tp.MostLikely > tp.Pessimistic {
		return nil, &domain.ValidationError{
			Scope:  scope,
			Reason: "three-point estimate must satisfy optimistic <= most-likely <= pessimistic",
		}
	}
	if tp.Optimistic == tp.Pessimistic {
		return constDist{v: tp.MostLikely}, nil
	}
	return distuv.NewTriangle(tp.Optimistic, tp.Pessimistic, tp.MostLikely, nil), nil
}

// durationDist returns the duration marginal (days) for a task. Without an
// explicit estimate the marginal is lognormal with median plannedDuration/SPI:
// tasks running behind schedule shift longer and spread wider.
func durationDist(t domain.Task, spiHint float64) (quantiler, error) {
	if t.DurationEstimate != nil {
		return triangle(t.ID, *t.DurationEstimate)
	}
	planned := t.PlannedDurationDays()
	if planned <= 0 {
		return constDist{v: 0}, nil
	}
	spi := clampHint(spiHint)
	median := planned / spi
	sigma := durSigmaBase + durSigmaSlip*math.Max(0, 1-spi)
	return distuv.LogNormal{Mu: math.Log(median), Sigma: sigma}, nil
}

// costDist returns the cost marginal for a task. Without an explicit
// estimate the marginal is triangular around the CPI-adjusted budget.
func costDist(t domain.Task, cpiHint float64) (quantiler, error) {
	if t.CostEstimate != nil {
		return triangle(t.ID, *t.CostEstimate)
	}
	if t.BudgetAtCompletion <= 0 {
		return constDist{v: 0}, nil
	}
	cpi := clampHint(cpiHint)
	mode := t.BudgetAtCompletion / cpi
	return distuv.NewTriangle(mode*costOptimisticFactor, mode*costPessimisticFactor, mode, nil), nil
}

func clampHint(v float64) float64 {
	if v <= 0 || math.IsNaN(v) {
		return 1
	}
	if v < hintFloor {
		return hintFloor
	}
	if v > hintCeiling {
		return hintCeiling
	}
	return v
}
