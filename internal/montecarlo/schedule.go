package montecarlo

import (
	"fmt"
	"sort"

	"github.com/ai-in-pm/CSCSC-Agent/internal/domain"
)

// projectDuration propagates sampled task durations (days, aligned with WBS
// order) through the dependency structure and returns the project completion
// in days from project start. A task starts at the later of its planned start
// offset and the finish of its latest predecessor (critical-path forward
// pass). Cycles and unknown dependency IDs fail with ValidationError.
func projectDuration(p domain.Project, durations []float64) (float64, error) {
	n := len(p.Tasks)
	if n == 0 {
		return 0, nil
	}

	indexByID := make(map[string]int, n)
	for i, t := range p.Tasks {
		indexByID[t.ID] = i
	}

	succ := make([][]int, n)
	inDegree := make([]int, n)
	for i, t := range p.Tasks {
		for _, dep := range t.DependsOn {
			j, ok := indexByID[dep]
			if !ok {
				return 0, &domain.ValidationError{
					Scope:  t.ID,
					Reason: fmt.Sprintf("unknown dependency %q", dep),
				}
			}
			succ[j] = append(succ[j], i)
			inDegree[i]++
		}
	}

	// Kahn topological sort; ready queue kept in WBS order for determinism
	var queue []int
	for i := 0; i < n; i++ {
		if inDegree[i] == 0 {
			queue = append(queue, i)
		}
	}

	earlyFinish := make([]float64, n)
	processed := 0
	completion := 0.0
	for len(queue) > 0 {
		i := queue[0]
		queue = queue[1:]
		processed++

		// Release date: a task never starts before its planned offset
		es := p.Tasks[i].PlannedStart.Sub(p.StartDate).Hours() / 24
		if es < 0 {
			es = 0
		}
		for _, t := range p.Tasks[i].DependsOn {
			j := indexByID[t]
			if earlyFinish[j] > es {
				es = earlyFinish[j]
			}
		}
		earlyFinish[i] = es + durations[i]
		if earlyFinish[i] > completion {
			completion = earlyFinish[i]
		}

		var ready []int
		for _, s := range succ[i] {
			inDegree[s]--
			if inDegree[s] == 0 {
				ready = append(ready, s)
			}
		}
		sort.Ints(ready)
		queue = append(queue, ready...)
	}

	if processed != n {
		return 0, &domain.ValidationError{
			Scope:  p.ID,
			Reason: "task dependency graph has a cycle",
		}
	}
	return completion, nil
}
