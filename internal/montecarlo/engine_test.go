package montecarlo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ai-in-pm/CSCSC-Agent/internal/domain"
	"github.com/ai-in-pm/CSCSC-Agent/internal/evm"
)

func simProject() (domain.Project, map[string]float64) {
	start := time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC)
	mk := func(id string, startDay, days int, budget float64, deps ...string) domain.Task {
		return domain.Task{
			ID:                 id,
			PlannedStart:       start.AddDate(0, 0, startDay),
			PlannedFinish:      start.AddDate(0, 0, startDay+days),
			BudgetAtCompletion: budget,
			Status:             domain.StatusInProgress,
			PercentComplete:    0.5,
			DependsOn:          deps,
		}
	}
	p := domain.Project{
		ID:        "proj-001",
		StartDate: start,
		Tasks: []domain.Task{
			mk("task-001", 0, 10, 50_000),
			mk("task-002", 0, 15, 80_000, "task-001"),
			mk("task-003", 0, 12, 30_000),
			mk("task-004", 0, 8, 40_000, "task-002", "task-003"),
		},
	}
	p.RecomputeBudget()
	costs := map[string]float64{
		"task-001": 28_000,
		"task-002": 41_000,
		"task-003": 14_000,
		"task-004": 22_000,
	}
	return p, costs
}

func runEngine(t *testing.T, cfg Config) (*domain.SimulationResult, error) {
	t.Helper()
	calc := evm.NewCalculator(zerolog.Nop())
	engine := NewEngine(calc, zerolog.Nop())
	p, costs := simProject()
	if cfg.AsOf.IsZero() {
		cfg.AsOf = p.StartDate.AddDate(0, 0, 10)
	}
	return engine.Run(context.Background(), p, costs, cfg)
}

func TestRunInvalidTrialCount(t *testing.T) {
	_, err := runEngine(t, Config{Trials: 0, Seed: 1})
	var invalid *domain.InvalidTrialCountError
	require.True(t, errors.As(err, &invalid))
	assert.Equal(t, 0, invalid.Trials)
}

func TestRunPercentilesOrdered(t *testing.T) {
	res, err := runEngine(t, Config{Trials: 500, Seed: 7})
	require.NoError(t, err)

	assert.False(t, res.P10.After(res.P50))
	assert.False(t, res.P50.After(res.P80))
	assert.False(t, res.P80.After(res.P90))
}

func TestRunDistributionSumsToOne(t *testing.T) {
	res, err := runEngine(t, Config{Trials: 500, Seed: 7})
	require.NoError(t, err)

	require.NotEmpty(t, res.Distribution)
	total := 0.0
	for _, b := range res.Distribution {
		assert.GreaterOrEqual(t, b.Probability, 0.0)
		total += b.Probability
	}
	assert.InDelta(t, 1.0, total, 1e-3)

	weightTotal := 0.0
	for _, tr := range res.Trials {
		weightTotal += tr.Weight
	}
	assert.InDelta(t, 1.0, weightTotal, 1e-9)
}

func TestRunSeedDeterminism(t *testing.T) {
	a, err := runEngine(t, Config{Trials: 400, Seed: 42})
	require.NoError(t, err)
	b, err := runEngine(t, Config{Trials: 400, Seed: 42})
	require.NoError(t, err)

	assert.Equal(t, a.P10, b.P10)
	assert.Equal(t, a.P50, b.P50)
	assert.Equal(t, a.P80, b.P80)
	assert.Equal(t, a.P90, b.P90)
	assert.Equal(t, a.Distribution, b.Distribution)
	// Run identity differs even when the statistics agree
	assert.NotEqual(t, a.RunID, b.RunID)
}

func TestRunSeedChangesOutcome(t *testing.T) {
	a, err := runEngine(t, Config{Trials: 400, Seed: 1})
	require.NoError(t, err)
	b, err := runEngine(t, Config{Trials: 400, Seed: 2})
	require.NoError(t, err)
	assert.NotEqual(t, a.Distribution, b.Distribution)
}

func TestRunCorrelationWidensTail(t *testing.T) {
	// Strong positive correlation concentrates slip: everything late
	// together. The gap between P90 and P10 must widen versus independence.
	corr := [][]float64{
		{1.0, 0.9, 0.9, 0.9},
		{0.9, 1.0, 0.9, 0.9},
		{0.9, 0.9, 1.0, 0.9},
		{0.9, 0.9, 0.9, 1.0},
	}
	indep, err := runEngine(t, Config{Trials: 2000, Seed: 3})
	require.NoError(t, err)
	correlated, err := runEngine(t, Config{Trials: 2000, Seed: 3, Correlation: corr})
	require.NoError(t, err)

	indepSpread := indep.P90.Sub(indep.P10)
	corrSpread := correlated.P90.Sub(correlated.P10)
	assert.Greater(t, corrSpread, indepSpread)
}

func TestRunMalformedCorrelation(t *testing.T) {
	_, err := runEngine(t, Config{Trials: 100, Seed: 1, Correlation: [][]float64{{1}}})
	var malformed *domain.MalformedCorrelationMatrixError
	assert.True(t, errors.As(err, &malformed))
}

func TestRunTimeoutReturnsPartial(t *testing.T) {
	_, err := runEngine(t, Config{Trials: 50_000, Seed: 1, Timeout: time.Nanosecond})
	var partial *domain.PartialSimulationError
	require.True(t, errors.As(err, &partial))
	assert.Less(t, partial.Completed, partial.Requested)
}

func TestRunMetadata(t *testing.T) {
	res, err := runEngine(t, Config{Trials: 200, Seed: 9, Workers: 2})
	require.NoError(t, err)

	assert.Equal(t, int64(9), res.Metadata.Seed)
	assert.Equal(t, 2, res.Metadata.Workers)
	assert.Greater(t, res.Metadata.LogicalCPUs, 0)
	assert.NotEmpty(t, res.Metadata.Methodology)
	assert.NotEmpty(t, res.Metadata.CorrelationHandling)
	assert.Equal(t, DefaultConfidenceLevel, res.Metadata.ConfidenceLevel)
	assert.Equal(t, 200, res.TrialCount)
	assert.NotEmpty(t, res.RunID)
}

func TestRunDefaultWorkersMatchLogicalCPUs(t *testing.T) {
	res, err := runEngine(t, Config{Trials: 100, Seed: 9})
	require.NoError(t, err)
	assert.Equal(t, res.Metadata.LogicalCPUs, res.Metadata.Workers)
}

func TestRunSingleTriangularTaskP50(t *testing.T) {
	// Single uncorrelated task estimated triangular(8, 10, 14): the P50
	// completion must land within a day of the 10-day baseline.
	start := time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC)
	p := domain.Project{
		ID:        "proj-tri",
		StartDate: start,
		Tasks: []domain.Task{{
			ID:                 "task-001",
			PlannedStart:       start,
			PlannedFinish:      start.AddDate(0, 0, 10),
			BudgetAtCompletion: 10_000,
			Status:             domain.StatusNotStarted,
			DurationEstimate:   &domain.ThreePoint{Optimistic: 8, MostLikely: 10, Pessimistic: 14},
		}},
	}
	p.RecomputeBudget()

	calc := evm.NewCalculator(zerolog.Nop())
	engine := NewEngine(calc, zerolog.Nop())
	res, err := engine.Run(context.Background(), p, nil, Config{
		Trials: DefaultTrials,
		Seed:   42,
		AsOf:   start.AddDate(0, 0, 5),
	})
	require.NoError(t, err)

	baseline := start.AddDate(0, 0, 10)
	diff := res.P50.Sub(baseline)
	if diff < 0 {
		diff = -diff
	}
	assert.LessOrEqual(t, diff, 24*time.Hour)
}

func TestRunTrialOutcomes(t *testing.T) {
	res, err := runEngine(t, Config{Trials: 300, Seed: 11})
	require.NoError(t, err)
	require.Len(t, res.Trials, 300)

	p, _ := simProject()
	slipped := 0
	for _, tr := range res.Trials {
		assert.Greater(t, tr.DurationDays, 0.0)
		assert.Greater(t, tr.TotalCost, 0.0)
		assert.Greater(t, tr.CPI, 0.0)
		assert.Greater(t, tr.SPI, 0.0)
		assert.Equal(t, p.StartDate.Add(time.Duration(tr.DurationDays*24*float64(time.Hour))), tr.CompletionDate)
		slipped += len(tr.SlippedTasks)
	}
	// Roughly 20% of sampled durations sit above their own P80
	assert.Greater(t, slipped, 0)
}

func TestRunRejectsInvalidProject(t *testing.T) {
	calc := evm.NewCalculator(zerolog.Nop())
	engine := NewEngine(calc, zerolog.Nop())

	_, err := engine.Run(context.Background(), domain.Project{ID: "empty"}, nil, Config{Trials: 10})
	var validation *domain.ValidationError
	assert.True(t, errors.As(err, &validation))
}

func TestWeightedQuantile(t *testing.T) {
	sorted := []float64{1, 2, 3, 4, 5}
	uniform := []float64{0.2, 0.2, 0.2, 0.2, 0.2}

	assert.InDelta(t, 3, weightedQuantile(sorted, uniform, 0.5), 1e-9)
	assert.InDelta(t, 1, weightedQuantile(sorted, uniform, 0.05), 1e-9)
	assert.InDelta(t, 5, weightedQuantile(sorted, uniform, 0.99), 1e-9)
	// Skewed weights pull the median toward the heavy value
	skewed := []float64{0.6, 0.1, 0.1, 0.1, 0.1}
	assert.Less(t, weightedQuantile(sorted, skewed, 0.5), 3.0)
}

func TestWeekStart(t *testing.T) {
	// 2026-03-04 is a Wednesday; its ISO week starts Monday 2026-03-02
	wed := time.Date(2026, time.March, 4, 13, 45, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC), weekStart(wed))

	mon := time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, mon, weekStart(mon))

	sun := time.Date(2026, time.March, 8, 23, 0, 0, 0, time.UTC)
	assert.Equal(t, mon, weekStart(sun))
}
