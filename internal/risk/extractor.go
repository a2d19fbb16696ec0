// Package risk surfaces statistically significant adverse patterns from
// Monte Carlo trial data. It looks only at the tail of the completion-date
// distribution (trials beyond P80), clusters the tasks that slip together
// there, and grades each cluster by how far its own trials sit from the
// median.
package risk

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ai-in-pm/CSCSC-Agent/internal/domain"
)

const (
	// DefaultCoOccurrence is the minimum share of tail trials two tasks must
	// slip in together to be clustered
	DefaultCoOccurrence = 0.15

	detectionMethod = "monte-carlo-tail-clustering"
)

// Config parameterizes risk extraction
type Config struct {
	// CoOccurrence overrides the clustering threshold; 0 uses the default
	CoOccurrence float64
}

// Extractor derives risk factors from simulation results
type Extractor struct {
	cfg Config
	log zerolog.Logger
}

// NewExtractor creates a risk extractor
func NewExtractor(cfg Config, log zerolog.Logger) *Extractor {
	if cfg.CoOccurrence <= 0 {
		cfg.CoOccurrence = DefaultCoOccurrence
	}
	return &Extractor{
		cfg: cfg,
		log: log.With().Str("component", "risk").Logger(),
	}
}

// Extract clusters the slipped tasks of above-P80 trials into risk factors.
// Tasks slipping together in at least the configured share of tail trials
// form one factor; tasks above the threshold on their own form singleton
// factors. Results are ordered by descending confidence, name as tiebreak.
func (e *Extractor) Extract(res *domain.SimulationResult) []domain.RiskFactor {
	if res == nil || len(res.Trials) == 0 {
		return nil
	}

	var tail []domain.TrialOutcome
	tailWeight := 0.0
	for _, t := range res.Trials {
		if t.CompletionDate.After(res.P80) {
			tail = append(tail, t)
			tailWeight += t.Weight
		}
	}
	if len(tail) == 0 || tailWeight == 0 {
		return nil
	}

	// Weighted slip frequencies for single tasks and co-occurring pairs
	single := make(map[string]float64)
	pair := make(map[[2]string]float64)
	for _, t := range tail {
		ids := append([]string(nil), t.SlippedTasks...)
		sort.Strings(ids)
		for i, a := range ids {
			single[a] += t.Weight
			for _, b := range ids[i+1:] {
				pair[[2]string{a, b}] += t.Weight
			}
		}
	}

	// Union-find over tasks joined by frequent pair co-occurrence
	parent := make(map[string]string)
	var find func(string) string
	find = func(x string) string {
		if parent[x] != x {
			parent[x] = find(parent[x])
		}
		return parent[x]
	}
	ids := make([]string, 0, len(single))
	for id, w := range single {
		if w/tailWeight >= e.cfg.CoOccurrence {
			ids = append(ids, id)
			parent[id] = id
		}
	}
	sort.Strings(ids)
	for i, a := range ids {
		for _, b := range ids[i+1:] {
			if pair[[2]string{a, b}]/tailWeight >= e.cfg.CoOccurrence {
				ra, rb := find(a), find(b)
				if ra != rb {
					if ra > rb {
						ra, rb = rb, ra
					}
					parent[rb] = ra
				}
			}
		}
	}

	clusters := make(map[string][]string)
	for _, id := range ids {
		root := find(id)
		clusters[root] = append(clusters[root], id)
	}

	p80Gap := res.P80.Sub(res.P50)
	p90Gap := res.P90.Sub(res.P50)

	factors := make([]domain.RiskFactor, 0, len(clusters))
	for _, members := range clusters {
		sort.Strings(members)
		// Cluster frequency and mean slip, over the tail trials slipping
		// any member
		freq := 0.0
		slipSum := 0.0
		for _, t := range tail {
			for _, id := range t.SlippedTasks {
				if contains(members, id) {
					freq += t.Weight
					slipSum += float64(t.CompletionDate.Sub(res.P50)) * t.Weight
					break
				}
			}
		}
		meanSlip := time.Duration(slipSum / freq)
		freq /= tailWeight

		factors = append(factors, domain.RiskFactor{
			Name:            clusterName(members),
			Impact:          clusterImpact(meanSlip, p80Gap, p90Gap),
			Confidence:      math.Min(freq*100, 100),
			DetectionMethod: detectionMethod,
			Mitigation:      mitigation(members),
			Status:          "open",
		})
	}

	sort.SliceStable(factors, func(i, j int) bool {
		if factors[i].Confidence != factors[j].Confidence {
			return factors[i].Confidence > factors[j].Confidence
		}
		return factors[i].Name < factors[j].Name
	})

	e.log.Info().
		Str("project", res.ProjectID).
		Int("tail_trials", len(tail)).
		Int("risk_factors", len(factors)).
		Msg("Risk extraction complete")
	return factors
}

// clusterImpact grades a cluster by its mean completion slip past the
// median: High beyond the P90-P50 gap, Medium within the P80-P50 to P90-P50
// band, Low below the P80-P50 gap.
func clusterImpact(meanSlip, p80Gap, p90Gap time.Duration) domain.RiskImpact {
	switch {
	case meanSlip > p90Gap:
		return domain.RiskImpactHigh
	case meanSlip >= p80Gap:
		return domain.RiskImpactMedium
	default:
		return domain.RiskImpactLow
	}
}

func clusterName(members []string) string {
	if len(members) == 1 {
		return fmt.Sprintf("Schedule slip concentrated in task %s", members[0])
	}
	return fmt.Sprintf("Correlated schedule slip across tasks %s", strings.Join(members, ", "))
}

func mitigation(members []string) string {
	if len(members) == 1 {
		return fmt.Sprintf("Re-estimate task %s and add schedule margin on its successors", members[0])
	}
	return "Decouple the shared driver behind these tasks or add schedule margin to the chain"
}

func contains(sorted []string, v string) bool {
	i := sort.SearchStrings(sorted, v)
	return i < len(sorted) && sorted[i] == v
}
