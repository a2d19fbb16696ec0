// Package montecarlo runs correlated stochastic simulations of project
// completion. Each trial samples task durations and costs from fitted
// marginals joined by a Gaussian copula, propagates them through the task
// dependency structure, and re-derives performance indices; the reduction
// produces a completion-date distribution with percentile dates.
//
// Sampling is quasi-random (Halton) with a pilot batch followed by Neyman
// stratified refinement on the dimension contributing the most output
// variance. Trials are evaluated in parallel but reduced in trial-index
// order, so an explicit seed fully determines the distribution and
// percentiles regardless of scheduling.
package montecarlo

import (
	"context"
	"math"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/ai-in-pm/CSCSC-Agent/internal/domain"
	"github.com/ai-in-pm/CSCSC-Agent/internal/evm"
)

const (
	// DefaultTrials is the trial count used when the caller has no preference
	DefaultTrials = 5000
	// DefaultConfidenceLevel annotates result metadata
	DefaultConfidenceLevel = 0.80

	// Share of trials spent on the exploratory pilot batch
	pilotFraction = 0.10
	// Strata on the dominant dimension during refinement
	strataCount = 8
	// slipQuantile marks a task's sampled duration as slipped in a trial
	slipQuantile = 0.80
)

// Config parameterizes a simulation run
type Config struct {
	Trials int
	Seed   int64
	// Correlation is a pairwise matrix over tasks in WBS order; nil means
	// independent draws
	Correlation [][]float64
	// Workers caps parallel trial evaluation; 0 uses all logical CPUs
	Workers int
	// Timeout is the wall-clock budget; exceeded runs return a
	// PartialSimulationError carrying the completed trials
	Timeout time.Duration
	// ConfidenceLevel is recorded in metadata; 0 uses the default
	ConfidenceLevel float64
	// AsOf anchors the performance-index hints used to derive marginals
	AsOf time.Time
}

// Engine runs Monte Carlo simulations over immutable project snapshots
type Engine struct {
	calc *evm.Calculator
	log  zerolog.Logger
}

// NewEngine creates a simulation engine
func NewEngine(calc *evm.Calculator, log zerolog.Logger) *Engine {
	return &Engine{
		calc: calc,
		log:  log.With().Str("component", "montecarlo").Logger(),
	}
}

// trialSpec describes one trial before evaluation
type trialSpec struct {
	index   int
	stratum int // -1 for unstratified (pilot) trials
}

// trialData is the raw per-trial record kept until reduction
type trialData struct {
	completed      bool
	stratum        int
	durations      []float64
	uDur           []float64 // kept for pilot trials only (stratification input)
	completionDays float64
	totalCost      float64
}

// Run executes a simulation and reduces it to a SimulationResult.
//
// Same seed, project, trial count, and correlation matrix produce an
// identical distribution and percentiles. The returned result omits risk
// factors; the risk extractor attaches those separately.
func (e *Engine) Run(ctx context.Context, p domain.Project, actualCosts map[string]float64, cfg Config) (*domain.SimulationResult, error) {
	if cfg.Trials < 1 {
		return nil, &domain.InvalidTrialCountError{Trials: cfg.Trials}
	}
	n := len(p.Tasks)
	if n == 0 {
		return nil, &domain.ValidationError{Scope: p.ID, Reason: "project has no tasks"}
	}
	for _, t := range p.Tasks {
		if err := t.Validate(); err != nil {
			return nil, err
		}
	}

	var factor *mat.TriDense
	if cfg.Correlation != nil {
		var err error
		factor, err = choleskyFactor(n, cfg.Correlation)
		if err != nil {
			return nil, err
		}
	}

	asOf := cfg.AsOf
	if asOf.IsZero() {
		asOf = time.Now()
	}

	durDists := make([]quantiler, n)
	costDists := make([]quantiler, n)
	for i, t := range p.Tasks {
		spiHint, cpiHint := 1.0, 1.0
		if actualCosts != nil {
			if ac, ok := actualCosts[t.ID]; ok {
				if m, err := e.calc.TaskMetrics(t, &ac, asOf); err == nil {
					spiHint = m.SPI.Or(1)
					cpiHint = m.CPI.Or(1)
				}
			}
		}
		var err error
		if durDists[i], err = durationDist(t, spiHint); err != nil {
			return nil, err
		}
		if costDists[i], err = costDist(t, cpiHint); err != nil {
			return nil, err
		}
	}

	// Validate dependency structure once with planned durations; per-trial
	// propagation cannot fail afterwards. The planned duration also anchors
	// per-trial SPI re-derivation.
	planned := make([]float64, n)
	for i, t := range p.Tasks {
		planned[i] = t.PlannedDurationDays()
	}
	plannedDays, err := projectDuration(p, planned)
	if err != nil {
		return nil, err
	}

	// Host CPU inventory sizes the default worker pool and is recorded in
	// run metadata
	logicalCPUs, cpuErr := cpu.Counts(true)
	if cpuErr != nil || logicalCPUs < 1 {
		logicalCPUs = runtime.NumCPU()
	}
	workers := cfg.Workers
	if workers < 1 {
		workers = logicalCPUs
	}
	confidence := cfg.ConfidenceLevel
	if confidence == 0 {
		confidence = DefaultConfidenceLevel
	}

	smp := newSampler(2*n, cfg.Seed)
	start := time.Now()
	var deadline time.Time
	if cfg.Timeout > 0 {
		deadline = start.Add(cfg.Timeout)
	}

	trials := make([]trialData, cfg.Trials)
	run := runState{
		project:   p,
		factor:    factor,
		durDists:  durDists,
		costDists: costDists,
		sampler:   smp,
		trials:    trials,
		workers:   workers,
		deadline:  deadline,
	}

	pilotN := int(math.Round(float64(cfg.Trials) * pilotFraction))
	if pilotN < 1 {
		pilotN = 1
	}
	remaining := cfg.Trials - pilotN
	stratified := remaining >= strataCount

	if !stratified {
		pilotN = cfg.Trials
		remaining = 0
	}

	pilotSpecs := make([]trialSpec, pilotN)
	for i := range pilotSpecs {
		pilotSpecs[i] = trialSpec{index: i, stratum: -1}
	}
	run.evaluate(ctx, pilotSpecs, -1)

	domDim := -1
	if stratified && !run.expired(ctx) {
		domDim = dominantDimension(trials[:pilotN], n)
		alloc := neymanAllocation(trials[:pilotN], domDim, remaining)
		specs := make([]trialSpec, 0, remaining)
		next := pilotN
		for k := 0; k < strataCount; k++ {
			for c := 0; c < alloc[k]; c++ {
				specs = append(specs, trialSpec{index: next, stratum: k})
				next++
			}
		}
		run.evaluate(ctx, specs, domDim)
	}

	completed := 0
	for i := range trials {
		if trials[i].completed {
			completed++
		}
	}
	if completed == 0 {
		return nil, &domain.PartialSimulationError{Completed: 0, Requested: cfg.Trials}
	}

	result := e.reduce(p, trials, domDim, stratified, plannedDays, confidence, cfg, workers, logicalCPUs, time.Since(start))
	if completed < cfg.Trials {
		return result, &domain.PartialSimulationError{
			Completed: completed,
			Requested: cfg.Trials,
			Result:    result,
		}
	}
	return result, nil
}

// runState carries shared state for parallel trial evaluation
type runState struct {
	project   domain.Project
	factor    *mat.TriDense
	durDists  []quantiler
	costDists []quantiler
	sampler   *sampler
	trials    []trialData
	workers   int
	deadline  time.Time
}

func (r *runState) expired(ctx context.Context) bool {
	if ctx.Err() != nil {
		return true
	}
	return !r.deadline.IsZero() && time.Now().After(r.deadline)
}

// evaluate runs a batch of trials on the worker pool. Results are written
// into the trial slice by index, so completion order never affects the
// reduction.
func (r *runState) evaluate(ctx context.Context, specs []trialSpec, domDim int) {
	jobs := make(chan trialSpec)
	var wg sync.WaitGroup
	for w := 0; w < r.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for spec := range jobs {
				if r.expired(ctx) {
					continue
				}
				r.trials[spec.index] = r.evalTrial(spec, domDim)
			}
		}()
	}
	for _, spec := range specs {
		jobs <- spec
	}
	close(jobs)
	wg.Wait()
}

// evalTrial samples one trial: quasi-random uniforms, copula-correlated
// normals, marginal inverse CDFs, critical-path propagation.
func (r *runState) evalTrial(spec trialSpec, domDim int) trialData {
	n := len(r.project.Tasks)
	u := r.sampler.Point(spec.index)
	stratum := spec.stratum
	if stratum >= 0 {
		u[domDim] = (float64(stratum) + u[domDim]) / strataCount
	}

	etaDur := make([]float64, n)
	etaCost := make([]float64, n)
	for i := 0; i < n; i++ {
		etaDur[i] = distuv.UnitNormal.Quantile(u[i])
		etaCost[i] = distuv.UnitNormal.Quantile(u[n+i])
	}
	zDur := correlate(r.factor, etaDur)
	zCost := correlate(r.factor, etaCost)

	durations := make([]float64, n)
	totalCost := 0.0
	for i := 0; i < n; i++ {
		durations[i] = r.durDists[i].Quantile(clampUnit(distuv.UnitNormal.CDF(zDur[i])))
		totalCost += r.costDists[i].Quantile(clampUnit(distuv.UnitNormal.CDF(zCost[i])))
	}

	// Structure already validated; propagation cannot fail here
	days, _ := projectDuration(r.project, durations)

	data := trialData{
		completed:      true,
		stratum:        stratum,
		durations:      durations,
		completionDays: days,
		totalCost:      totalCost,
	}
	if stratum < 0 {
		data.uDur = u[:n:n]
	}
	return data
}

// dominantDimension picks the duration dimension whose pilot uniforms
// correlate most strongly with completion time
func dominantDimension(pilot []trialData, n int) int {
	var us, outs []float64
	best, bestAbs := 0, -1.0
	for d := 0; d < n; d++ {
		us = us[:0]
		outs = outs[:0]
		for i := range pilot {
			if !pilot[i].completed || pilot[i].uDur == nil {
				continue
			}
			us = append(us, pilot[i].uDur[d])
			outs = append(outs, pilot[i].completionDays)
		}
		if len(us) < 2 {
			continue
		}
		c := stat.Correlation(us, outs, nil)
		if math.IsNaN(c) {
			continue
		}
		if math.Abs(c) > bestAbs {
			bestAbs = math.Abs(c)
			best = d
		}
	}
	return best
}

// neymanAllocation distributes the refinement trials across strata in
// proportion to each stratum's pilot-estimated standard deviation
func neymanAllocation(pilot []trialData, domDim, remaining int) [strataCount]int {
	var samples [strataCount][]float64
	var all []float64
	for i := range pilot {
		if !pilot[i].completed || pilot[i].uDur == nil {
			continue
		}
		k := pilotStratum(pilot[i].uDur[domDim])
		samples[k] = append(samples[k], pilot[i].completionDays)
		all = append(all, pilot[i].completionDays)
	}
	overall := stat.StdDev(all, nil)
	if math.IsNaN(overall) || overall == 0 {
		overall = 1
	}

	var weights [strataCount]float64
	total := 0.0
	for k := 0; k < strataCount; k++ {
		sd := overall
		if len(samples[k]) >= 2 {
			sd = stat.StdDev(samples[k], nil)
			if math.IsNaN(sd) || sd == 0 {
				sd = overall
			}
		}
		weights[k] = sd
		total += sd
	}

	// Floor of one trial per stratum keeps every stratum covered; the rest
	// follows the Neyman weights with largest-remainder rounding.
	var alloc [strataCount]int
	spare := remaining - strataCount
	if spare < 0 {
		for k := 0; k < remaining; k++ {
			alloc[k] = 1
		}
		return alloc
	}
	type frac struct {
		k int
		f float64
	}
	fracs := make([]frac, 0, strataCount)
	assigned := 0
	for k := 0; k < strataCount; k++ {
		exact := float64(spare) * weights[k] / total
		alloc[k] = 1 + int(exact)
		assigned += int(exact)
		fracs = append(fracs, frac{k: k, f: exact - math.Floor(exact)})
	}
	sort.SliceStable(fracs, func(i, j int) bool {
		if fracs[i].f != fracs[j].f {
			return fracs[i].f > fracs[j].f
		}
		return fracs[i].k < fracs[j].k
	})
	for i := 0; i < spare-assigned; i++ {
		alloc[fracs[i%strataCount].k]++
	}
	return alloc
}

func pilotStratum(u float64) int {
	k := int(u * strataCount)
	if k >= strataCount {
		k = strataCount - 1
	}
	if k < 0 {
		k = 0
	}
	return k
}

func clampUnit(v float64) float64 {
	if v < uClamp {
		return uClamp
	}
	if v > 1-uClamp {
		return 1 - uClamp
	}
	return v
}

// reduce folds completed trials into the immutable result record. Trials are
// consumed in index order; weights compensate for the unequal stratum
// allocation so the histogram remains an unbiased distribution estimate.
func (e *Engine) reduce(p domain.Project, trials []trialData, domDim int, stratified bool, plannedDays, confidence float64, cfg Config, workers, logicalCPUs int, elapsed time.Duration) *domain.SimulationResult {
	n := len(p.Tasks)

	var stratumSize [strataCount]int
	completed := 0
	for i := range trials {
		if !trials[i].completed {
			continue
		}
		completed++
		if stratified {
			k := trials[i].stratum
			if k < 0 {
				k = pilotStratum(trials[i].uDur[domDim])
				trials[i].stratum = k
			}
			stratumSize[k]++
		}
	}

	// Per-trial weights, normalized to sum to 1 across completed trials
	weightOf := func(t *trialData) float64 {
		if !stratified {
			return 1
		}
		return 1.0 / float64(strataCount) / float64(stratumSize[t.stratum])
	}
	weightSum := 0.0
	for i := range trials {
		if trials[i].completed {
			weightSum += weightOf(&trials[i])
		}
	}

	// Per-task slip thresholds: the P80 of each task's sampled durations
	slipThresholds := make([]float64, n)
	taskSamples := make([]float64, 0, completed)
	for d := 0; d < n; d++ {
		taskSamples = taskSamples[:0]
		for i := range trials {
			if trials[i].completed {
				taskSamples = append(taskSamples, trials[i].durations[d])
			}
		}
		sort.Float64s(taskSamples)
		slipThresholds[d] = stat.Quantile(slipQuantile, stat.Empirical, taskSamples, nil)
	}

	type weighted struct {
		days   float64
		weight float64
		index  int
	}
	ordered := make([]weighted, 0, completed)
	outcomes := make([]domain.TrialOutcome, 0, completed)
	for i := range trials {
		t := &trials[i]
		if !t.completed {
			continue
		}
		w := weightOf(t) / weightSum
		ordered = append(ordered, weighted{days: t.completionDays, weight: w, index: i})

		outcome := domain.TrialOutcome{
			Index:          i,
			CompletionDate: completionDate(p.StartDate, t.completionDays),
			DurationDays:   t.completionDays,
			TotalCost:      t.totalCost,
			Weight:         w,
		}
		if t.totalCost > 0 {
			outcome.CPI = p.BudgetAtCompletion / t.totalCost
		}
		if t.completionDays > 0 && plannedDays > 0 {
			outcome.SPI = plannedDays / t.completionDays
		}
		for d := 0; d < n; d++ {
			if t.durations[d] > slipThresholds[d] {
				outcome.SlippedTasks = append(outcome.SlippedTasks, p.Tasks[d].ID)
			}
		}
		outcomes = append(outcomes, outcome)
	}

	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].days != ordered[j].days {
			return ordered[i].days < ordered[j].days
		}
		return ordered[i].index < ordered[j].index
	})
	days := make([]float64, len(ordered))
	weights := make([]float64, len(ordered))
	for i, o := range ordered {
		days[i] = o.days
		weights[i] = o.weight
	}
	renormalize(weights)

	// Completion-date histogram by ISO week
	buckets := make(map[time.Time]float64)
	for _, o := range ordered {
		buckets[weekStart(completionDate(p.StartDate, o.days))] += o.weight
	}
	periods := make([]time.Time, 0, len(buckets))
	for k := range buckets {
		periods = append(periods, k)
	}
	sort.Slice(periods, func(i, j int) bool { return periods[i].Before(periods[j]) })
	distribution := make([]domain.CompletionBucket, len(periods))
	for i, period := range periods {
		distribution[i] = domain.CompletionBucket{Period: period, Probability: buckets[period]}
	}

	correlationHandling := "independent draws (no correlation matrix supplied)"
	if cfg.Correlation != nil {
		correlationHandling = "Gaussian copula over pairwise task correlation matrix (Cholesky factorization)"
	}
	methodology := "quasi-random Halton sampling"
	if stratified {
		methodology += " with Neyman stratified refinement"
	}

	result := &domain.SimulationResult{
		ProjectID:    p.ID,
		RunID:        uuid.New().String(),
		TrialCount:   completed,
		Distribution: distribution,
		P10:          completionDate(p.StartDate, weightedQuantile(days, weights, 0.10)),
		P50:          completionDate(p.StartDate, weightedQuantile(days, weights, 0.50)),
		P80:          completionDate(p.StartDate, weightedQuantile(days, weights, 0.80)),
		P90:          completionDate(p.StartDate, weightedQuantile(days, weights, 0.90)),
		Trials:       outcomes,
		Metadata: domain.SimulationMetadata{
			Methodology:         methodology,
			CorrelationHandling: correlationHandling,
			ConfidenceLevel:     confidence,
			Seed:                cfg.Seed,
			WallClock:           elapsed,
			Workers:             workers,
			LogicalCPUs:         logicalCPUs,
		},
	}

	e.log.Info().
		Str("project", p.ID).
		Int("trials", completed).
		Dur("elapsed", elapsed).
		Time("p50", result.P50).
		Time("p80", result.P80).
		Msg("Simulation complete")

	return result
}

// renormalize scales a weight vector in place so it sums to exactly 1,
// absorbing the rounding drift of the per-stratum divisions
func renormalize(weights []float64) {
	total := floats.Sum(weights)
	if total <= 0 {
		return
	}
	for i := range weights {
		weights[i] /= total
	}
}

// weightedQuantile interpolates linearly between order statistics of a
// sorted, weighted sample (Hazen midpoint convention)
func weightedQuantile(sorted, weights []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if len(sorted) == 1 {
		return sorted[0]
	}
	total := floats.Sum(weights)
	cum := 0.0
	prevPos, prevVal := math.Inf(-1), sorted[0]
	for i := range sorted {
		pos := (cum + weights[i]/2) / total
		if q <= pos {
			if math.IsInf(prevPos, -1) {
				return sorted[i]
			}
			frac := (q - prevPos) / (pos - prevPos)
			return prevVal + frac*(sorted[i]-prevVal)
		}
		cum += weights[i]
		prevPos, prevVal = pos, sorted[i]
	}
	return sorted[len(sorted)-1]
}

// completionDate converts a duration in days from project start to a date
func completionDate(start time.Time, days float64) time.Time {
	return start.Add(time.Duration(days * 24 * float64(time.Hour)))
}

// weekStart truncates a date to the Monday of its ISO week (UTC)
func weekStart(t time.Time) time.Time {
	t = t.UTC()
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}
