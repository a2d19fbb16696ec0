package montecarlo

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ai-in-pm/CSCSC-Agent/internal/domain"
)

var scheduleStart = time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC)

func chainProject(deps map[string][]string, offsets map[string]int, ids ...string) domain.Project {
	tasks := make([]domain.Task, len(ids))
	for i, id := range ids {
		off := offsets[id]
		tasks[i] = domain.Task{
			ID:            id,
			PlannedStart:  scheduleStart.AddDate(0, 0, off),
			PlannedFinish: scheduleStart.AddDate(0, 0, off+10),
			DependsOn:     deps[id],
		}
	}
	return domain.Project{ID: "proj-001", StartDate: scheduleStart, Tasks: tasks}
}

func TestProjectDurationSerialChain(t *testing.T) {
	p := chainProject(map[string][]string{
		"b": {"a"},
		"c": {"b"},
	}, nil, "a", "b", "c")

	days, err := projectDuration(p, []float64{10, 5, 7})
	require.NoError(t, err)
	assert.InDelta(t, 22, days, 1e-9)
}

func TestProjectDurationParallelBranches(t *testing.T) {
	// d waits for the longer of two parallel branches
	p := chainProject(map[string][]string{
		"b": {"a"},
		"c": {"a"},
		"d": {"b", "c"},
	}, nil, "a", "b", "c", "d")

	days, err := projectDuration(p, []float64{5, 20, 3, 2})
	require.NoError(t, err)
	assert.InDelta(t, 27, days, 1e-9)
}

func TestProjectDurationPlannedStartReleaseDate(t *testing.T) {
	// An unlinked task cannot start before its planned offset
	p := chainProject(nil, map[string]int{"b": 30}, "a", "b")

	days, err := projectDuration(p, []float64{5, 10})
	require.NoError(t, err)
	assert.InDelta(t, 40, days, 1e-9)
}

func TestProjectDurationDependencyBeatsPlannedStart(t *testing.T) {
	// The predecessor finishes after b's planned start, so b waits
	p := chainProject(map[string][]string{"b": {"a"}}, map[string]int{"b": 3}, "a", "b")

	days, err := projectDuration(p, []float64{8, 4})
	require.NoError(t, err)
	assert.InDelta(t, 12, days, 1e-9)
}

func TestProjectDurationUnknownDependency(t *testing.T) {
	p := chainProject(map[string][]string{"b": {"ghost"}}, nil, "a", "b")

	_, err := projectDuration(p, []float64{1, 1})
	var validation *domain.ValidationError
	require.True(t, errors.As(err, &validation))
	assert.Equal(t, "b", validation.Scope)
}

func TestProjectDurationCycle(t *testing.T) {
	p := chainProject(map[string][]string{
		"a": {"c"},
		"b": {"a"},
		"c": {"b"},
	}, nil, "a", "b", "c")

	_, err := projectDuration(p, []float64{1, 1, 1})
	var validation *domain.ValidationError
	require.True(t, errors.As(err, &validation))
	assert.Equal(t, "proj-001", validation.Scope)
}

func TestProjectDurationEmpty(t *testing.T) {
	days, err := projectDuration(domain.Project{ID: "proj-001"}, nil)
	require.NoError(t, err)
	assert.Zero(t, days)
}
