// Command cscsc runs the full earned value analysis pipeline against a
// seeded synthetic project: metric roll-up, deterministic forecast, variance
// explanation, sensitivity ranking, Monte Carlo simulation, and risk
// extraction.
package main

import (
	"context"
	"errors"
	"time"

	"github.com/ai-in-pm/CSCSC-Agent/internal/config"
	"github.com/ai-in-pm/CSCSC-Agent/internal/domain"
	"github.com/ai-in-pm/CSCSC-Agent/internal/evm"
	"github.com/ai-in-pm/CSCSC-Agent/internal/fixtures"
	"github.com/ai-in-pm/CSCSC-Agent/internal/forecast"
	"github.com/ai-in-pm/CSCSC-Agent/internal/montecarlo"
	"github.com/ai-in-pm/CSCSC-Agent/internal/risk"
	"github.com/ai-in-pm/CSCSC-Agent/internal/sensitivity"
	"github.com/ai-in-pm/CSCSC-Agent/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		errLog := logger.New(logger.Config{Level: "error"})
		errLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{Level: cfg.LogLevel, Pretty: cfg.Pretty})
	logger.SetGlobalLogger(log)

	gen := fixtures.Project(fixtures.Options{Seed: cfg.Seed, Progress: 0.5})
	project, costs, asOf := gen.Project, gen.Costs, gen.AsOf
	log.Info().
		Str("project", project.ID).
		Int("tasks", len(project.Tasks)).
		Float64("bac", project.BudgetAtCompletion).
		Time("as_of", asOf).
		Msg("Generated synthetic project")

	calc := evm.NewCalculator(log)
	agg := evm.NewAggregator(calc, log)

	metrics, err := agg.ProjectMetrics(project, costs, asOf)
	if err != nil {
		log.Fatal().Err(err).Msg("Metric aggregation failed")
	}
	log.Info().
		Float64("pv", metrics.PV).
		Float64("ev", metrics.EV).
		Float64("ac", metrics.AC).
		Float64("cpi", metrics.CPI.Or(0)).
		Float64("spi", metrics.SPI.Or(0)).
		Float64("eac", metrics.EAC).
		Msg("Project metrics")

	fg := forecast.NewGenerator(log)
	fc, err := fg.Generate(project, metrics, asOf)
	if err != nil {
		log.Fatal().Err(err).Msg("Forecast generation failed")
	}
	log.Info().
		Str("methodology", fc.Methodology).
		Float64("eac", fc.EAC).
		Time("estimated_finish", fc.EstimatedFinish).
		Float64("confidence", fc.Confidence).
		Msg("Forecast")

	explanation := forecast.ExplainVariance(calc, metrics)
	log.Info().
		Str("variance_type", explanation.VarianceType).
		Str("impact", explanation.Impact).
		Msg("Variance explanation")

	analyzer := sensitivity.NewAnalyzer(agg, log)
	registerParameters(analyzer, project)
	sens, err := analyzer.Analyze(
		sensitivity.Scenario{Project: project, Costs: costs},
		asOf,
		sensitivity.Options{Magnitude: cfg.SensitivityMagnitude, Output: sensitivity.OutputSPI},
	)
	if err != nil {
		log.Fatal().Err(err).Msg("Sensitivity analysis failed")
	}
	log.Info().Str("key_finding", sens.KeyFinding).Msg("Sensitivity")

	engine := montecarlo.NewEngine(calc, log)
	ctx := context.Background()
	result, err := engine.Run(ctx, project, costs, montecarlo.Config{
		Trials:          cfg.Trials,
		Seed:            cfg.Seed,
		Workers:         cfg.Workers,
		Timeout:         time.Duration(cfg.TimeoutSeconds) * time.Second,
		ConfidenceLevel: cfg.ConfidenceLevel,
		AsOf:            asOf,
	})
	if err != nil {
		var partial *domain.PartialSimulationError
		if errors.As(err, &partial) && partial.Result != nil {
			log.Warn().
				Int("completed", partial.Completed).
				Int("requested", partial.Requested).
				Msg("Simulation timed out; continuing with partial result")
			result = partial.Result
		} else {
			log.Fatal().Err(err).Msg("Simulation failed")
		}
	}
	log.Info().
		Str("run_id", result.RunID).
		Int("trials", result.TrialCount).
		Time("p50", result.P50).
		Time("p80", result.P80).
		Time("p90", result.P90).
		Msg("Simulation result")

	extractor := risk.NewExtractor(risk.Config{CoOccurrence: cfg.RiskCoOccurrence}, log)
	result.RiskFactors = extractor.Extract(result)
	for _, rf := range result.RiskFactors {
		log.Info().
			Str("risk", rf.Name).
			Str("impact", string(rf.Impact)).
			Float64("confidence", rf.Confidence).
			Msg("Risk factor")
	}
}

// registerParameters wires the standard sensitivity parameters: overall
// actual cost, overall task budgets, and overall percent complete. Actual
// cost and percent complete co-move partially, since spending and progress
// are never independent.
func registerParameters(a *sensitivity.Analyzer, p domain.Project) {
	a.Register("actual_cost", func(s sensitivity.Scenario, delta float64) sensitivity.Scenario {
		for id := range s.Costs {
			s.Costs[id] *= 1 + delta
		}
		return s
	})
	a.Register("task_budgets", func(s sensitivity.Scenario, delta float64) sensitivity.Scenario {
		for i := range s.Project.Tasks {
			s.Project.Tasks[i].BudgetAtCompletion *= 1 + delta
		}
		return s
	})
	a.Register("percent_complete", func(s sensitivity.Scenario, delta float64) sensitivity.Scenario {
		for i := range s.Project.Tasks {
			t := &s.Project.Tasks[i]
			if t.Status != domain.StatusInProgress {
				continue
			}
			pc := t.PercentComplete * (1 + delta)
			if pc > 1 {
				pc = 1
			}
			if pc < 0 {
				pc = 0
			}
			t.PercentComplete = pc
		}
		return s
	})
	a.DeclareCorrelated("actual_cost", "percent_complete", 0.5)
}
