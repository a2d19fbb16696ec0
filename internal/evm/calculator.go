// Package evm computes earned value metrics for tasks and projects. The
// calculator is a pure function of its inputs plus the as-of date; the
// aggregator rolls task metrics up to project level.
package evm

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/ai-in-pm/CSCSC-Agent/internal/domain"
)

// DefaultVarianceThreshold is the relative variance considered significant (10%)
const DefaultVarianceThreshold = 0.10

// Calculator computes the EVM metric set for a single task
type Calculator struct {
	varianceThreshold float64
	log               zerolog.Logger
}

// NewCalculator creates a calculator with the default variance threshold
func NewCalculator(log zerolog.Logger) *Calculator {
	return &Calculator{
		varianceThreshold: DefaultVarianceThreshold,
		log:               log.With().Str("component", "evm_calculator").Logger(),
	}
}

// PlannedValue computes PV (BCWS) for a task as-of a date: zero before the
// planned start, full budget at or after the planned finish, and a linear
// interpolation by elapsed fraction of planned duration in between.
func (c *Calculator) PlannedValue(task domain.Task, asOf time.Time) float64 {
	if asOf.Before(task.PlannedStart) {
		return 0
	}
	if !asOf.Before(task.PlannedFinish) {
		return task.BudgetAtCompletion
	}
	totalDays := task.PlannedDurationDays()
	if totalDays <= 0 {
		// Zero-duration task that the as-of date has reached
		return task.BudgetAtCompletion
	}
	elapsed := asOf.Sub(task.PlannedStart).Hours() / 24
	frac := elapsed / totalDays
	if frac < 0 {
		frac = 0
	} else if frac > 1 {
		frac = 1
	}
	return task.BudgetAtCompletion * frac
}

// EarnedValue computes EV (BCWP) for a task using its crediting technique.
// The default technique credits percent-complete times budget.
func (c *Calculator) EarnedValue(task domain.Task, asOf time.Time) float64 {
	switch task.Technique {
	case domain.TechniqueZeroHundred:
		if task.PercentComplete == 1.0 {
			return task.BudgetAtCompletion
		}
		return 0
	case domain.TechniqueFiftyFifty:
		switch {
		case task.PercentComplete == 0:
			return 0
		case task.PercentComplete == 1.0:
			return task.BudgetAtCompletion
		default:
			return task.BudgetAtCompletion * 0.5
		}
	case domain.TechniqueLevelOfEffort:
		if task.ActualStart == nil {
			return 0
		}
		totalDays := task.PlannedDurationDays()
		if totalDays <= 0 {
			return 0
		}
		ref := asOf
		if task.ActualFinish != nil {
			ref = *task.ActualFinish
		}
		elapsed := ref.Sub(*task.ActualStart).Hours() / 24
		frac := elapsed / totalDays
		if frac < 0 {
			frac = 0
		} else if frac > 1 {
			frac = 1
		}
		return task.BudgetAtCompletion * frac
	default:
		return task.BudgetAtCompletion * task.PercentComplete
	}
}

// TaskMetrics computes the full metric set for a task as-of a date.
//
// actualCost is external ground truth supplied by the caller; nil fails with
// MissingActualCostError. Callers that need synthetic actuals must apply
// their own policy (e.g. cost-performance factor times EV) before calling —
// never relied on as a silent default here.
func (c *Calculator) TaskMetrics(task domain.Task, actualCost *float64, asOf time.Time) (domain.EVMMetrics, error) {
	if err := task.Validate(); err != nil {
		return domain.EVMMetrics{}, err
	}
	if actualCost == nil {
		return domain.EVMMetrics{}, &domain.MissingActualCostError{TaskID: task.ID}
	}

	pv := c.PlannedValue(task, asOf)
	ev := c.EarnedValue(task, asOf)
	ac := *actualCost

	return Derive(task.ID, asOf, pv, ev, ac, task.BudgetAtCompletion), nil
}

// Derive builds a metric set from the three base values. Index
// division-by-zero is reported via undefined ratios, never substituted.
func Derive(scope string, asOf time.Time, pv, ev, ac, bac float64) domain.EVMMetrics {
	m := domain.EVMMetrics{
		Scope: scope,
		AsOf:  asOf,
		PV:    pv,
		EV:    ev,
		AC:    ac,
		BAC:   bac,
		CV:    ev - ac,
		SV:    ev - pv,
	}

	if ac != 0 {
		m.CPI = domain.DefinedRatio(ev / ac)
	} else {
		m.CPI = domain.UndefinedRatio()
	}
	if pv != 0 {
		m.SPI = domain.DefinedRatio(ev / pv)
	} else {
		m.SPI = domain.UndefinedRatio()
	}

	// EAC: untouched work keeps its budget; otherwise project remaining work
	// at the observed cost efficiency, falling back to BAC when CPI is
	// undefined (no actuals booked yet).
	switch {
	case ac == 0 && ev == 0:
		m.EAC = bac
	case m.CPI.Defined && m.CPI.Value != 0:
		m.EAC = ac + (bac-ev)/m.CPI.Value
	default:
		m.EAC = bac
	}
	m.ETC = m.EAC - ac
	m.VAC = bac - m.EAC

	if bac != ac {
		m.TCPI = domain.DefinedRatio((bac - ev) / (bac - ac))
	} else {
		m.TCPI = domain.UndefinedRatio()
	}

	return m
}

// VarianceSignificant reports whether a variance is significant relative to
// its base value using the calculator's threshold.
func (c *Calculator) VarianceSignificant(variance, base float64) bool {
	if base == 0 {
		return variance != 0
	}
	rel := variance / base
	if rel < 0 {
		rel = -rel
	}
	return rel > c.varianceThreshold
}
