// Package fixtures generates seeded synthetic projects for demos and tests.
// Every value is drawn from a seeded generator, so the same seed always
// produces the same project, actual costs included.
package fixtures

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/ai-in-pm/CSCSC-Agent/internal/domain"
)

const (
	defaultTaskCount   = 12
	minTaskDays        = 5
	maxTaskDays        = 30
	minTaskBudget      = 20_000
	maxTaskBudget      = 150_000
	dependencyChance   = 0.5
	maxDependencyReach = 3

	// Spread of the synthetic cost/schedule performance noise
	performanceNoise = 0.25
)

// Options tunes fixture generation
type Options struct {
	Seed      int64
	TaskCount int       // 0 uses the default
	Start     time.Time // zero uses a fixed reference date
	// Progress is how far through the schedule the as-of date sits, 0..1
	Progress float64
}

// Generated bundles a synthetic project with its matching actual costs and
// the as-of date the progress data was synthesized for
type Generated struct {
	Project domain.Project
	Costs   map[string]float64
	AsOf    time.Time
}

// Project builds a deterministic synthetic project. Tasks are chained with
// random finish-to-start dependencies on earlier tasks so the dependency
// graph is always acyclic, and each in-progress task gets an actual cost
// consistent with a noisy cost performance factor.
func Project(opts Options) Generated {
	//nolint:gosec // G404: synthetic fixture data, determinism is the point
	rng := rand.New(rand.NewSource(opts.Seed))

	count := opts.TaskCount
	if count < 1 {
		count = defaultTaskCount
	}
	start := opts.Start
	if start.IsZero() {
		start = time.Date(2026, time.January, 5, 0, 0, 0, 0, time.UTC)
	}
	progress := opts.Progress
	if progress <= 0 || progress > 1 {
		progress = 0.5
	}

	projectID, _ := uuid.NewRandomFromReader(rng)

	tasks := make([]domain.Task, count)
	finishOffsets := make([]float64, count)
	projectEnd := start
	for i := 0; i < count; i++ {
		days := float64(minTaskDays + rng.Intn(maxTaskDays-minTaskDays+1))
		budget := float64(minTaskBudget) + rng.Float64()*float64(maxTaskBudget-minTaskBudget)

		startOffset := 0.0
		var deps []string
		if i > 0 && rng.Float64() < dependencyChance {
			reach := rng.Intn(min(i, maxDependencyReach)) + 1
			j := i - reach
			deps = append(deps, tasks[j].ID)
			startOffset = finishOffsets[j]
		} else if i > 0 {
			// Unlinked tasks start at a random earlier offset
			startOffset = finishOffsets[rng.Intn(i)] * rng.Float64()
		}
		finishOffsets[i] = startOffset + days

		plannedStart := start.Add(time.Duration(startOffset * 24 * float64(time.Hour)))
		plannedFinish := plannedStart.Add(time.Duration(days * 24 * float64(time.Hour)))
		if plannedFinish.After(projectEnd) {
			projectEnd = plannedFinish
		}

		tasks[i] = domain.Task{
			ID:                 fmt.Sprintf("task-%03d", i+1),
			Name:               fmt.Sprintf("Work package %d", i+1),
			WBSElement:         fmt.Sprintf("1.%d", i+1),
			PlannedStart:       plannedStart,
			PlannedFinish:      plannedFinish,
			BudgetAtCompletion: budget,
			Status:             domain.StatusNotStarted,
			Technique:          domain.TechniquePercentComplete,
			DependsOn:          deps,
		}
	}

	totalDays := projectEnd.Sub(start).Hours() / 24
	asOf := start.Add(time.Duration(progress * totalDays * 24 * float64(time.Hour)))

	costs := make(map[string]float64, count)
	for i := range tasks {
		t := &tasks[i]
		switch {
		case !t.PlannedFinish.After(asOf):
			t.Status = domain.StatusCompleted
			t.PercentComplete = 1
			s, f := t.PlannedStart, t.PlannedFinish
			t.ActualStart, t.ActualFinish = &s, &f
		case t.PlannedStart.Before(asOf):
			t.Status = domain.StatusInProgress
			elapsed := asOf.Sub(t.PlannedStart).Hours() / 24
			t.PercentComplete = clamp01(elapsed / t.PlannedDurationDays() * perfFactor(rng))
			s := t.PlannedStart
			t.ActualStart = &s
		}
		// Actual cost: earned budget divided by a noisy cost performance factor
		costs[t.ID] = t.BudgetAtCompletion * t.PercentComplete / perfFactor(rng)
	}

	p := domain.Project{
		ID:            projectID.String(),
		Name:          "Synthetic project",
		StartDate:     start,
		PlannedFinish: projectEnd,
		Tasks:         tasks,
	}
	p.RecomputeBudget()

	return Generated{Project: p, Costs: costs, AsOf: asOf}
}

// perfFactor draws a performance multiplier centered on 1.0
func perfFactor(rng *rand.Rand) float64 {
	f := 1 + (rng.Float64()*2-1)*performanceNoise
	if f <= 0 {
		f = 1
	}
	return f
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
