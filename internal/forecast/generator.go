// Package forecast derives closed-form estimates of project cost and
// completion from aggregated earned value metrics. Everything here is
// deterministic: the same metrics always produce the same forecast, key
// factors included. Stochastic projection lives in the montecarlo package.
package forecast

import (
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/ai-in-pm/CSCSC-Agent/internal/domain"
)

// Methodology labels for the EAC formula used
const (
	MethodologyCPI             = "CPI"
	MethodologyCPISPI          = "CPI×SPI"
	MethodologyRemainingBudget = "Remaining Budget"
)

const (
	// Both indices below this mark schedule performance as materially
	// affecting remaining cost
	compoundThreshold = 0.9
	// Indices within this band of 1.0 count as near-baseline performance
	baselineBand = 0.05

	confidenceFloor   = 0.5
	confidenceCeiling = 0.99
)

// Generator produces Forecast records from aggregated metrics
type Generator struct {
	log zerolog.Logger
}

// NewGenerator creates a forecast generator
func NewGenerator(log zerolog.Logger) *Generator {
	return &Generator{log: log.With().Str("component", "forecast").Logger()}
}

// Generate builds a forecast for a project from its aggregated metrics.
//
// Methodology selection is deterministic, evaluated in order:
//  1. CPI < 0.9 and SPI < 0.9        → "CPI×SPI"
//  2. |CPI−1| < 0.05 and |SPI−1| < 0.05 → "Remaining Budget"
//  3. otherwise                       → "CPI"
//
// The completion date is projected from the EV run-rate since project start;
// zero elapsed days fails with InsufficientHistoryError.
func (g *Generator) Generate(p domain.Project, m domain.EVMMetrics, asOf time.Time) (domain.Forecast, error) {
	elapsedDays := asOf.Sub(p.StartDate).Hours() / 24
	if elapsedDays <= 0 {
		return domain.Forecast{}, &domain.InsufficientHistoryError{ProjectID: p.ID, ElapsedDays: elapsedDays}
	}

	cpi := m.CPI.Or(1.0)
	spi := m.SPI.Or(1.0)

	var (
		methodology string
		etc         float64
		factors     []string
	)
	switch {
	case m.CPI.Defined && m.SPI.Defined && cpi < compoundThreshold && spi < compoundThreshold:
		methodology = MethodologyCPISPI
		etc = (m.BAC - m.EV) / (cpi * spi)
		factors = append(factors,
			"Both cost and schedule performance are degraded; remaining work projected at compound CPI×SPI efficiency")
	case math.Abs(cpi-1) < baselineBand && math.Abs(spi-1) < baselineBand:
		methodology = MethodologyRemainingBudget
		etc = m.BAC - m.EV
		factors = append(factors,
			"Performance is within 5% of baseline; remaining work projected at budgeted cost")
	default:
		methodology = MethodologyCPI
		etc = (m.BAC - m.EV) / cpi
		factors = append(factors,
			"Remaining work projected at observed cost efficiency (CPI method)")
	}

	eac := m.AC + etc

	factors = append(factors,
		fmt.Sprintf("CPI = %.2f, indicating %s cost efficiency", cpi, favorability(cpi)),
		fmt.Sprintf("SPI = %.2f, indicating the project is %s schedule", spi, scheduleState(spi)),
	)
	if !m.CPI.Defined {
		factors = append(factors, "CPI undefined (no actual costs booked); baseline efficiency assumed")
	}
	if !m.SPI.Defined {
		factors = append(factors, "SPI undefined (no work scheduled yet); baseline schedule assumed")
	}

	// Completion date from the EV run-rate. With no earned value yet there
	// is no rate to extrapolate, so the planned finish carries forward.
	var estimated time.Time
	if m.EV > 0 {
		evRate := m.EV / elapsedDays
		days := math.Ceil(etc / evRate)
		estimated = asOf.AddDate(0, 0, int(days))
	} else {
		estimated = p.PlannedFinish
		factors = append(factors, "No earned value recorded; planned finish date carried forward")
	}

	confidence := clamp(1-math.Abs(cpi*spi-1), confidenceFloor, confidenceCeiling)

	g.log.Debug().
		Str("project", p.ID).
		Str("methodology", methodology).
		Float64("eac", eac).
		Float64("confidence", confidence).
		Msg("Generated forecast")

	return domain.Forecast{
		ProjectID:       p.ID,
		AsOf:            asOf,
		EAC:             eac,
		ETC:             etc,
		EstimatedFinish: estimated,
		Confidence:      confidence,
		Methodology:     methodology,
		KeyFactors:      factors,
	}, nil
}

func favorability(cpi float64) string {
	if cpi >= 1 {
		return "favorable"
	}
	return "unfavorable"
}

func scheduleState(spi float64) string {
	if spi >= 1 {
		return "ahead of"
	}
	return "behind"
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
