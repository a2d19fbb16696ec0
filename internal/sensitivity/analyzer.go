// Package sensitivity ranks project parameters by how strongly they move an
// output metric. Each registered parameter is perturbed symmetrically around
// its baseline and the output recomputed deterministically; the elasticity is
// the central difference of the relative output change over the perturbation.
package sensitivity

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/ai-in-pm/CSCSC-Agent/internal/domain"
	"github.com/ai-in-pm/CSCSC-Agent/internal/evm"
)

const (
	// DefaultMagnitude is the relative perturbation applied to each parameter
	DefaultMagnitude = 0.10
	// elasticThreshold separates elastic from inelastic parameters
	elasticThreshold = 1.0
)

// Output metrics the analyzer can target
const (
	OutputSPI = "SPI"
	OutputCPI = "CPI"
)

// Scenario is a mutable copy of the project inputs a perturbation acts on.
// PerturbFuncs must return a modified copy and never touch the original.
type Scenario struct {
	Project domain.Project
	Costs   map[string]float64
}

// clone deep-copies a scenario so perturbations cannot leak between parameters
func (s Scenario) clone() Scenario {
	out := Scenario{Project: s.Project}
	out.Project.Tasks = make([]domain.Task, len(s.Project.Tasks))
	copy(out.Project.Tasks, s.Project.Tasks)
	out.Costs = make(map[string]float64, len(s.Costs))
	for k, v := range s.Costs {
		out.Costs[k] = v
	}
	return out
}

// PerturbFunc applies a relative delta (e.g. +0.10) to one parameter of a
// scenario and returns the perturbed scenario
type PerturbFunc func(s Scenario, delta float64) Scenario

// Options configures one analysis run
type Options struct {
	// Magnitude is the relative perturbation; 0 uses the default
	Magnitude float64
	// Output selects the metric; empty means SPI
	Output string
	// Parameters limits analysis to named parameters; empty means all
	// registered parameters in registration order
	Parameters []string
}

// Analyzer perturbs registered parameters one at a time. Correlated parameter
// pairs declared via DeclareCorrelated co-move: perturbing one drags the other
// by the declared coefficient, so the reported impact reflects the joint shift
// rather than an impossible isolated one.
type Analyzer struct {
	agg        *evm.Aggregator
	log        zerolog.Logger
	params     map[string]PerturbFunc
	order      []string
	correlated map[string]map[string]float64
}

// NewAnalyzer creates a sensitivity analyzer over the given aggregator
func NewAnalyzer(agg *evm.Aggregator, log zerolog.Logger) *Analyzer {
	return &Analyzer{
		agg:        agg,
		log:        log.With().Str("component", "sensitivity").Logger(),
		params:     make(map[string]PerturbFunc),
		correlated: make(map[string]map[string]float64),
	}
}

// Register adds a named parameter. Registering the same name again replaces
// the perturbation but keeps the original ranking position.
func (a *Analyzer) Register(name string, fn PerturbFunc) {
	if _, ok := a.params[name]; !ok {
		a.order = append(a.order, name)
	}
	a.params[name] = fn
}

// DeclareCorrelated declares that perturbing either parameter drags the other
// by coefficient×delta. Declared symmetrically in both directions.
func (a *Analyzer) DeclareCorrelated(p1, p2 string, coefficient float64) {
	if a.correlated[p1] == nil {
		a.correlated[p1] = make(map[string]float64)
	}
	if a.correlated[p2] == nil {
		a.correlated[p2] = make(map[string]float64)
	}
	a.correlated[p1][p2] = coefficient
	a.correlated[p2][p1] = coefficient
}

// Analyze perturbs each selected parameter by ±magnitude and ranks the
// results by descending absolute elasticity. Name is the tiebreak, so the
// ranking is fully deterministic.
func (a *Analyzer) Analyze(base Scenario, asOf time.Time, opts Options) (domain.SensitivityResult, error) {
	magnitude := opts.Magnitude
	if magnitude == 0 {
		magnitude = DefaultMagnitude
	}
	output := opts.Output
	if output == "" {
		output = OutputSPI
	}
	if output != OutputSPI && output != OutputCPI {
		return domain.SensitivityResult{}, &domain.ValidationError{
			Scope:  base.Project.ID,
			Reason: fmt.Sprintf("unsupported output metric %q", output),
		}
	}

	names := opts.Parameters
	if len(names) == 0 {
		names = a.order
	}
	for _, name := range names {
		if _, ok := a.params[name]; !ok {
			return domain.SensitivityResult{}, &domain.UnknownParameterError{Name: name}
		}
	}

	baseline, err := a.metric(base, asOf, output)
	if err != nil {
		return domain.SensitivityResult{}, err
	}

	impacts := make([]domain.ParameterImpact, 0, len(names))
	for _, name := range names {
		down, err := a.metric(a.perturb(base, name, -magnitude), asOf, output)
		if err != nil {
			return domain.SensitivityResult{}, err
		}
		up, err := a.metric(a.perturb(base, name, magnitude), asOf, output)
		if err != nil {
			return domain.SensitivityResult{}, err
		}

		elasticity := 0.0
		if baseline != 0 {
			elasticity = ((up - down) / baseline) / (2 * magnitude)
		}
		impacts = append(impacts, domain.ParameterImpact{
			Name:           name,
			Baseline:       baseline,
			NegativeImpact: down - baseline,
			PositiveImpact: up - baseline,
			Elasticity:     elasticity,
			Elastic:        math.Abs(elasticity) > elasticThreshold,
		})
	}

	sort.SliceStable(impacts, func(i, j int) bool {
		ai, aj := math.Abs(impacts[i].Elasticity), math.Abs(impacts[j].Elasticity)
		if ai != aj {
			return ai > aj
		}
		return impacts[i].Name < impacts[j].Name
	})

	result := domain.SensitivityResult{
		ProjectID:    base.Project.ID,
		OutputMetric: output,
		Magnitude:    magnitude,
		Impacts:      impacts,
		KeyFinding:   keyFinding(output, impacts),
	}
	a.log.Info().
		Str("project", base.Project.ID).
		Str("output", output).
		Int("parameters", len(impacts)).
		Msg("Sensitivity analysis complete")
	return result, nil
}

// perturb applies a parameter's perturbation plus the partial co-movement of
// every parameter declared correlated with it
func (a *Analyzer) perturb(base Scenario, name string, delta float64) Scenario {
	s := a.params[name](base.clone(), delta)
	for other, coeff := range a.correlated[name] {
		if fn, ok := a.params[other]; ok {
			s = fn(s, delta*coeff)
		}
	}
	return s
}

// metric recomputes the target output for a scenario. The project budget is
// recomputed first so budget perturbations keep the roll-up invariant intact.
func (a *Analyzer) metric(s Scenario, asOf time.Time, output string) (float64, error) {
	s.Project.RecomputeBudget()
	m, err := a.agg.ProjectMetrics(s.Project, s.Costs, asOf)
	if err != nil {
		return 0, err
	}
	switch output {
	case OutputCPI:
		return m.CPI.Or(0), nil
	default:
		return m.SPI.Or(0), nil
	}
}

func keyFinding(output string, impacts []domain.ParameterImpact) string {
	if len(impacts) == 0 {
		return "no parameters analyzed"
	}
	top := impacts[0]
	kind := "inelastic"
	if top.Elastic {
		kind = "elastic"
	}
	return fmt.Sprintf("%s is most sensitive to %s (elasticity %.2f, %s)",
		output, top.Name, top.Elasticity, kind)
}
