package evm

import (
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ai-in-pm/CSCSC-Agent/internal/domain"
)

var testStart = time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC)

func testTask(budget float64, days int, pc float64) domain.Task {
	status := domain.StatusInProgress
	if pc == 0 {
		status = domain.StatusNotStarted
	} else if pc == 1 {
		status = domain.StatusCompleted
	}
	return domain.Task{
		ID:                 "task-001",
		Name:               "Test task",
		PlannedStart:       testStart,
		PlannedFinish:      testStart.AddDate(0, 0, days),
		BudgetAtCompletion: budget,
		Status:             status,
		PercentComplete:    pc,
	}
}

func TestTaskMetrics(t *testing.T) {
	calc := NewCalculator(zerolog.Nop())

	// Ten-day task, halfway through the schedule, 40% complete, 4800 spent
	task := testTask(10_000, 10, 0.4)
	ac := 4800.0
	asOf := testStart.AddDate(0, 0, 5)

	m, err := calc.TaskMetrics(task, &ac, asOf)
	require.NoError(t, err)

	assert.InDelta(t, 5000, m.PV, 1e-9)
	assert.InDelta(t, 4000, m.EV, 1e-9)
	assert.InDelta(t, 4800, m.AC, 1e-9)
	assert.InDelta(t, -800, m.CV, 1e-9)
	assert.InDelta(t, -1000, m.SV, 1e-9)

	require.True(t, m.CPI.Defined)
	assert.InDelta(t, 0.8333, m.CPI.Value, 1e-4)
	require.True(t, m.SPI.Defined)
	assert.InDelta(t, 0.8, m.SPI.Value, 1e-9)

	// EAC = AC + (BAC-EV)/CPI; ETC and VAC follow
	assert.InDelta(t, 4800+6000/(4000.0/4800.0), m.EAC, 1e-6)
	assert.InDelta(t, m.EAC-m.AC, m.ETC, 1e-9)
	assert.InDelta(t, m.BAC-m.EAC, m.VAC, 1e-9)

	require.True(t, m.TCPI.Defined)
	assert.InDelta(t, (10_000.0-4000)/(10_000-4800), m.TCPI.Value, 1e-9)
}

func TestTaskMetricsMissingActualCost(t *testing.T) {
	calc := NewCalculator(zerolog.Nop())
	task := testTask(10_000, 10, 0.4)

	_, err := calc.TaskMetrics(task, nil, testStart.AddDate(0, 0, 5))

	var missing *domain.MissingActualCostError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, "task-001", missing.TaskID)
}

func TestTaskMetricsInvalidTask(t *testing.T) {
	calc := NewCalculator(zerolog.Nop())
	ac := 100.0

	tests := []struct {
		name   string
		mutate func(*domain.Task)
	}{
		{"negative budget", func(task *domain.Task) { task.BudgetAtCompletion = -1 }},
		{"finish before start", func(task *domain.Task) { task.PlannedFinish = testStart.AddDate(0, 0, -1) }},
		{"percent complete above one", func(task *domain.Task) { task.PercentComplete = 1.5 }},
		{"completed but not at 100%", func(task *domain.Task) {
			task.Status = domain.StatusCompleted
			task.PercentComplete = 0.9
		}},
		{"not started with progress", func(task *domain.Task) {
			task.Status = domain.StatusNotStarted
			task.PercentComplete = 0.1
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task := testTask(10_000, 10, 0.4)
			tt.mutate(&task)
			_, err := calc.TaskMetrics(task, &ac, testStart)
			var validation *domain.ValidationError
			assert.True(t, errors.As(err, &validation))
		})
	}
}

func TestUndefinedRatios(t *testing.T) {
	// Before the planned start with nothing spent: PV and AC are both zero,
	// so SPI and CPI must be undefined, never substituted.
	calc := NewCalculator(zerolog.Nop())
	task := testTask(10_000, 10, 0)
	ac := 0.0

	m, err := calc.TaskMetrics(task, &ac, testStart.AddDate(0, 0, -1))
	require.NoError(t, err)

	assert.False(t, m.CPI.Defined)
	assert.False(t, m.SPI.Defined)
	assert.Equal(t, 10_000.0, m.EAC, "untouched work keeps its budget")
	assert.Equal(t, 0.0, m.VAC)
}

func TestTCPIUndefinedAtBudgetExhaustion(t *testing.T) {
	m := Derive("task-001", testStart, 5000, 4000, 10_000, 10_000)
	assert.False(t, m.TCPI.Defined)
}

func TestPlannedValue(t *testing.T) {
	calc := NewCalculator(zerolog.Nop())
	task := testTask(10_000, 10, 0.4)

	tests := []struct {
		name string
		asOf time.Time
		want float64
	}{
		{"before start", testStart.AddDate(0, 0, -3), 0},
		{"at start", testStart, 0},
		{"30% elapsed", testStart.AddDate(0, 0, 3), 3000},
		{"at finish", testStart.AddDate(0, 0, 10), 10_000},
		{"after finish", testStart.AddDate(0, 0, 20), 10_000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, calc.PlannedValue(task, tt.asOf), 1e-9)
		})
	}
}

func TestPlannedValueZeroDuration(t *testing.T) {
	calc := NewCalculator(zerolog.Nop())
	task := testTask(5000, 0, 0)

	assert.Equal(t, 0.0, calc.PlannedValue(task, testStart.AddDate(0, 0, -1)))
	assert.Equal(t, 5000.0, calc.PlannedValue(task, testStart))
}

func TestEarnedValueTechniques(t *testing.T) {
	calc := NewCalculator(zerolog.Nop())
	asOf := testStart.AddDate(0, 0, 5)

	tests := []struct {
		name      string
		technique domain.EVTechnique
		pc        float64
		want      float64
	}{
		{"percent complete", domain.TechniquePercentComplete, 0.4, 4000},
		{"zero-hundred incomplete", domain.TechniqueZeroHundred, 0.9, 0},
		{"zero-hundred complete", domain.TechniqueZeroHundred, 1.0, 10_000},
		{"fifty-fifty not started", domain.TechniqueFiftyFifty, 0, 0},
		{"fifty-fifty in progress", domain.TechniqueFiftyFifty, 0.3, 5000},
		{"fifty-fifty complete", domain.TechniqueFiftyFifty, 1.0, 10_000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task := testTask(10_000, 10, tt.pc)
			task.Technique = tt.technique
			assert.InDelta(t, tt.want, calc.EarnedValue(task, asOf), 1e-9)
		})
	}
}

func TestEarnedValueLevelOfEffort(t *testing.T) {
	calc := NewCalculator(zerolog.Nop())
	task := testTask(10_000, 10, 0.2)
	task.Technique = domain.TechniqueLevelOfEffort

	// No actual start yet: nothing earned regardless of percent complete
	assert.Equal(t, 0.0, calc.EarnedValue(task, testStart.AddDate(0, 0, 5)))

	actualStart := testStart.AddDate(0, 0, 2)
	task.ActualStart = &actualStart
	// Three elapsed days of a ten-day effort
	assert.InDelta(t, 3000, calc.EarnedValue(task, testStart.AddDate(0, 0, 5)), 1e-9)
	// Elapsed time past the planned duration caps at full budget
	assert.InDelta(t, 10_000, calc.EarnedValue(task, testStart.AddDate(0, 0, 30)), 1e-9)
}

func TestVarianceSignificant(t *testing.T) {
	calc := NewCalculator(zerolog.Nop())

	assert.False(t, calc.VarianceSignificant(-500, 10_000), "5% is below threshold")
	assert.True(t, calc.VarianceSignificant(-1500, 10_000), "15% is significant")
	assert.True(t, calc.VarianceSignificant(1500, 10_000), "sign does not matter")
	assert.True(t, calc.VarianceSignificant(-1, 0), "any variance on zero base")
	assert.False(t, calc.VarianceSignificant(0, 0))
}
