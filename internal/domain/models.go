// Package domain provides core domain models and types for earned value
// analysis: tasks, projects, metric sets, and the result records produced by
// the forecasting, simulation, sensitivity, and risk components.
package domain

import (
	"time"
)

// TaskStatus represents the lifecycle state of a task
type TaskStatus string

const (
	StatusNotStarted TaskStatus = "not_started"
	StatusInProgress TaskStatus = "in_progress"
	StatusCompleted  TaskStatus = "completed"
)

// EVTechnique selects the earned value crediting rule for a task
type EVTechnique string

const (
	// TechniquePercentComplete credits EV proportionally to percent complete (default)
	TechniquePercentComplete EVTechnique = "percent_complete"
	// TechniqueZeroHundred credits nothing until the task is 100% complete
	TechniqueZeroHundred EVTechnique = "0/100"
	// TechniqueFiftyFifty credits 50% at start and the remainder at completion
	TechniqueFiftyFifty EVTechnique = "50/50"
	// TechniqueLevelOfEffort credits EV by elapsed calendar time, not deliverables
	TechniqueLevelOfEffort EVTechnique = "level_of_effort"
)

// ThreePoint holds an optimistic / most-likely / pessimistic estimate.
// Used to parameterize triangular distributions in the simulation engine.
type ThreePoint struct {
	Optimistic  float64 `json:"optimistic"`
	MostLikely  float64 `json:"most_likely"`
	Pessimistic float64 `json:"pessimistic"`
}

// Task represents a single work-breakdown element with budget and schedule data
type Task struct {
	ID                 string      `json:"id"`
	Name               string      `json:"name"`
	WBSElement         string      `json:"wbs_element"`
	Responsible        string      `json:"responsible"`
	PlannedStart       time.Time   `json:"planned_start"`
	PlannedFinish      time.Time   `json:"planned_finish"`
	ActualStart        *time.Time  `json:"actual_start,omitempty"`
	ActualFinish       *time.Time  `json:"actual_finish,omitempty"`
	BudgetAtCompletion float64     `json:"budget_at_completion"`
	Status             TaskStatus  `json:"status"`
	PercentComplete    float64     `json:"percent_complete"` // 0.0 - 1.0
	Technique          EVTechnique `json:"technique,omitempty"`
	DependsOn          []string    `json:"depends_on,omitempty"`
	// Optional stochastic estimates (days / money). When absent, the
	// simulation engine derives distributions from planned values and
	// observed performance indices.
	DurationEstimate *ThreePoint `json:"duration_estimate,omitempty"`
	CostEstimate     *ThreePoint `json:"cost_estimate,omitempty"`
}

// Validate checks the structural invariants of a task
func (t Task) Validate() error {
	if t.BudgetAtCompletion < 0 {
		return &ValidationError{Scope: t.ID, Reason: "budget_at_completion must be >= 0"}
	}
	if t.PlannedFinish.Before(t.PlannedStart) {
		return &ValidationError{Scope: t.ID, Reason: "planned_finish precedes planned_start"}
	}
	if t.PercentComplete < 0 || t.PercentComplete > 1 {
		return &ValidationError{Scope: t.ID, Reason: "percent_complete outside [0,1]"}
	}
	if t.ActualFinish != nil {
		if t.ActualStart == nil {
			return &ValidationError{Scope: t.ID, Reason: "actual_finish set without actual_start"}
		}
		if t.ActualFinish.Before(*t.ActualStart) {
			return &ValidationError{Scope: t.ID, Reason: "actual_finish precedes actual_start"}
		}
	}
	switch t.Status {
	case StatusCompleted:
		if t.PercentComplete != 1.0 {
			return &ValidationError{Scope: t.ID, Reason: "completed task must have percent_complete 1.0"}
		}
	case StatusNotStarted:
		if t.PercentComplete != 0.0 {
			return &ValidationError{Scope: t.ID, Reason: "not-started task must have percent_complete 0.0"}
		}
	}
	return nil
}

// PlannedDurationDays returns the planned duration of the task in days
func (t Task) PlannedDurationDays() float64 {
	return t.PlannedFinish.Sub(t.PlannedStart).Hours() / 24
}

// Project is an ordered collection of tasks. Task order is WBS order.
type Project struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	StartDate     time.Time `json:"start_date"`
	PlannedFinish time.Time `json:"planned_finish"`
	// BudgetAtCompletion is always the sum of task budgets. It is recomputed
	// via RecomputeBudget, never edited independently.
	BudgetAtCompletion float64 `json:"budget_at_completion"`
	Tasks              []Task  `json:"tasks"`
}

// RecomputeBudget restores the invariant that the project budget equals the
// sum of task budgets. Call after adding or updating tasks.
func (p *Project) RecomputeBudget() {
	total := 0.0
	for _, t := range p.Tasks {
		total += t.BudgetAtCompletion
	}
	p.BudgetAtCompletion = total
}

// TaskByID returns the task with the given ID, or false when absent
func (p Project) TaskByID(id string) (Task, bool) {
	for _, t := range p.Tasks {
		if t.ID == id {
			return t, true
		}
	}
	return Task{}, false
}

// Ratio is a performance index that is undefined when its denominator is
// zero. Downstream components must check Defined and choose their own
// fallback; the calculator never substitutes 1.0 or infinity.
type Ratio struct {
	Value   float64 `json:"value"`
	Defined bool    `json:"defined"`
}

// DefinedRatio wraps a computed index value
func DefinedRatio(v float64) Ratio { return Ratio{Value: v, Defined: true} }

// UndefinedRatio marks an index whose denominator was zero
func UndefinedRatio() Ratio { return Ratio{} }

// Or returns the index value, or the given fallback when undefined
func (r Ratio) Or(fallback float64) float64 {
	if r.Defined {
		return r.Value
	}
	return fallback
}

// EVMMetrics is the full earned value metric set for a task or project as-of
// a timestamp. Instances are immutable once computed; a new as-of date
// produces a new instance.
type EVMMetrics struct {
	Scope string    `json:"scope"` // task or project ID
	AsOf  time.Time `json:"as_of"`

	PV  float64 `json:"pv"`  // Planned Value (BCWS)
	EV  float64 `json:"ev"`  // Earned Value (BCWP)
	AC  float64 `json:"ac"`  // Actual Cost (ACWP)
	BAC float64 `json:"bac"` // Budget at Completion

	CV float64 `json:"cv"` // EV - AC
	SV float64 `json:"sv"` // EV - PV

	CPI  Ratio `json:"cpi"`  // EV / AC
	SPI  Ratio `json:"spi"`  // EV / PV
	TCPI Ratio `json:"tcpi"` // (BAC-EV) / (BAC-AC)

	EAC float64 `json:"eac"` // Estimate at Completion
	ETC float64 `json:"etc"` // EAC - AC
	VAC float64 `json:"vac"` // BAC - EAC
}

// Forecast is a point estimate of project cost and completion produced from
// aggregated metrics. Immutable once created.
type Forecast struct {
	ProjectID       string    `json:"project_id"`
	AsOf            time.Time `json:"as_of"`
	EAC             float64   `json:"eac"`
	ETC             float64   `json:"etc"`
	EstimatedFinish time.Time `json:"estimated_finish"`
	Confidence      float64   `json:"confidence"` // 0.5 - 0.99
	Methodology     string    `json:"methodology"`
	KeyFactors      []string  `json:"key_factors"`
}

// VarianceExplanation is a deterministic classification of the dominant
// variance in a metric set, with fixed-wording factors and recommendations.
type VarianceExplanation struct {
	MetricScope     string   `json:"metric_scope"`
	VarianceType    string   `json:"variance_type"` // "cost" or "schedule"
	Explanation     string   `json:"explanation"`
	Factors         []string `json:"factors"`
	Impact          string   `json:"impact"`
	Recommendations []string `json:"recommendations"`
	Confidence      float64  `json:"confidence"`
}

// CompletionBucket is one calendar period of the completion-date distribution
type CompletionBucket struct {
	Period      time.Time `json:"period"` // start of ISO week
	Probability float64   `json:"probability"`
}

// TrialOutcome is the reduced outcome of a single simulation trial
type TrialOutcome struct {
	Index          int       `json:"index"`
	CompletionDate time.Time `json:"completion_date"`
	DurationDays   float64   `json:"duration_days"`
	TotalCost      float64   `json:"total_cost"`
	CPI            float64   `json:"cpi"` // re-derived per trial: BAC / sampled cost
	SPI            float64   `json:"spi"` // re-derived per trial: planned / sampled duration
	Weight         float64   `json:"weight"`
	// SlippedTasks lists task IDs whose sampled duration exceeded that
	// task's own P80 marginal across all trials.
	SlippedTasks []string `json:"slipped_tasks,omitempty"`
}

// SimulationMetadata describes how a simulation run was performed
type SimulationMetadata struct {
	Methodology         string        `json:"methodology"`
	CorrelationHandling string        `json:"correlation_handling"`
	ConfidenceLevel     float64       `json:"confidence_level"`
	Seed                int64         `json:"seed"`
	WallClock           time.Duration `json:"wall_clock"`
	Workers             int           `json:"workers"`
	LogicalCPUs         int           `json:"logical_cpus"`
}

// SimulationResult is the immutable output of a Monte Carlo run
type SimulationResult struct {
	ProjectID    string             `json:"project_id"`
	RunID        string             `json:"run_id"`
	TrialCount   int                `json:"trial_count"`
	Distribution []CompletionBucket `json:"distribution"`
	P10          time.Time          `json:"p10"`
	P50          time.Time          `json:"p50"`
	P80          time.Time          `json:"p80"`
	P90          time.Time          `json:"p90"`
	Trials       []TrialOutcome     `json:"trials,omitempty"`
	RiskFactors  []RiskFactor       `json:"risk_factors,omitempty"`
	Metadata     SimulationMetadata `json:"metadata"`
}

// RiskImpact is a qualitative impact tier
type RiskImpact string

const (
	RiskImpactHigh   RiskImpact = "High"
	RiskImpactMedium RiskImpact = "Medium"
	RiskImpactLow    RiskImpact = "Low"
)

// RiskFactor is a statistically significant adverse cluster surfaced from
// simulation trials. Produced only by the risk extractor.
type RiskFactor struct {
	Name            string     `json:"name"`
	Impact          RiskImpact `json:"impact"`
	Confidence      float64    `json:"confidence"` // 0 - 100
	DetectionMethod string     `json:"detection_method"`
	Mitigation      string     `json:"mitigation,omitempty"`
	Status          string     `json:"status"`
}

// ParameterImpact is one row of a sensitivity analysis
type ParameterImpact struct {
	Name           string  `json:"name"`
	Baseline       float64 `json:"baseline"`
	NegativeImpact float64 `json:"negative_impact"` // output shift at -magnitude
	PositiveImpact float64 `json:"positive_impact"` // output shift at +magnitude
	Elasticity     float64 `json:"elasticity"`
	Elastic        bool    `json:"elastic"` // |elasticity| > 1
}

// SensitivityResult ranks parameters by descending absolute elasticity
type SensitivityResult struct {
	ProjectID    string            `json:"project_id"`
	OutputMetric string            `json:"output_metric"` // "SPI" or "CPI"
	Magnitude    float64           `json:"magnitude"`     // perturbation fraction
	Impacts      []ParameterImpact `json:"impacts"`
	KeyFinding   string            `json:"key_finding"`
}
