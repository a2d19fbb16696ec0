package evm

import (
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/ai-in-pm/CSCSC-Agent/internal/domain"
)

// budgetTolerance is the floating tolerance for the project BAC invariant
const budgetTolerance = 1e-6

// Aggregator rolls per-task metrics up to project level. Base values (PV, EV,
// AC) are summed; derived ratios are recomputed from the sums. Ratios are
// never averaged across tasks — that would bias toward small tasks instead of
// weighting by budget.
type Aggregator struct {
	calc *Calculator
	log  zerolog.Logger
}

// NewAggregator creates an aggregator backed by the given calculator
func NewAggregator(calc *Calculator, log zerolog.Logger) *Aggregator {
	return &Aggregator{
		calc: calc,
		log:  log.With().Str("component", "evm_aggregator").Logger(),
	}
}

// ProjectMetrics computes project-level metrics as-of a date.
//
// actualCosts maps task ID to actual cost; every task must have an entry
// (zero is a valid, explicit value). The project budget must equal the sum
// of task budgets within tolerance or the call fails with ConsistencyError.
func (a *Aggregator) ProjectMetrics(p domain.Project, actualCosts map[string]float64, asOf time.Time) (domain.EVMMetrics, error) {
	taskBAC := 0.0
	for _, t := range p.Tasks {
		taskBAC += t.BudgetAtCompletion
	}
	if math.Abs(taskBAC-p.BudgetAtCompletion) > budgetTolerance {
		return domain.EVMMetrics{}, &domain.ConsistencyError{
			Scope:  p.ID,
			Reason: "project budget does not equal sum of task budgets",
		}
	}

	var totalPV, totalEV, totalAC float64
	for _, t := range p.Tasks {
		ac, ok := actualCosts[t.ID]
		if !ok {
			return domain.EVMMetrics{}, &domain.MissingActualCostError{TaskID: t.ID}
		}
		m, err := a.calc.TaskMetrics(t, &ac, asOf)
		if err != nil {
			return domain.EVMMetrics{}, err
		}
		totalPV += m.PV
		totalEV += m.EV
		totalAC += m.AC
	}

	agg := Derive(p.ID, asOf, totalPV, totalEV, totalAC, taskBAC)
	a.log.Debug().
		Str("project", p.ID).
		Float64("pv", agg.PV).
		Float64("ev", agg.EV).
		Float64("ac", agg.AC).
		Msg("Aggregated project metrics")
	return agg, nil
}

// PercentComplete returns overall project percent complete weighted by task
// budget. Falls back to an unweighted mean when the project has no budget.
func (a *Aggregator) PercentComplete(p domain.Project) float64 {
	if len(p.Tasks) == 0 {
		return 0
	}
	totalBudget := 0.0
	for _, t := range p.Tasks {
		totalBudget += t.BudgetAtCompletion
	}
	if totalBudget == 0 {
		sum := 0.0
		for _, t := range p.Tasks {
			sum += t.PercentComplete
		}
		return sum / float64(len(p.Tasks))
	}
	weighted := 0.0
	for _, t := range p.Tasks {
		weighted += t.PercentComplete * t.BudgetAtCompletion
	}
	return weighted / totalBudget
}
