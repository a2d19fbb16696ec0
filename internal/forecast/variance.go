package forecast

import (
	"fmt"
	"math"

	"github.com/ai-in-pm/CSCSC-Agent/internal/domain"
	"github.com/ai-in-pm/CSCSC-Agent/internal/evm"
)

// Contributing-factor catalogues. Severity selects a prefix of each list, so
// the wording is fixed and the output deterministic.
var (
	costOverrunFactors = []string{
		"Labor costs exceeding estimates",
		"Material price increases",
		"Rework due to quality issues",
	}
	costUnderrunFactors = []string{
		"Efficient resource utilization",
		"Lower than estimated material costs",
		"Process improvements",
	}
	scheduleSlipFactors = []string{
		"Late start on critical activities",
		"Resource constraints or unavailability",
		"Dependencies with other delayed tasks",
	}
	scheduleAheadFactors = []string{
		"Efficient execution of activities",
		"Early start on critical tasks",
		"Conservative duration estimates",
	}
)

// ExplainVariance classifies the dominant variance in a metric set and
// returns a fixed-wording explanation with factors and recommendations.
// The calculator's significance threshold decides which variance dominates.
func ExplainVariance(calc *evm.Calculator, m domain.EVMMetrics) domain.VarianceExplanation {
	cvSig := calc.VarianceSignificant(m.CV, m.EV)
	svSig := calc.VarianceSignificant(m.SV, m.PV)

	varianceType := "cost"
	switch {
	case cvSig && svSig:
		cvRel := relative(m.CV, m.EV)
		svRel := relative(m.SV, m.PV)
		if svRel > cvRel {
			varianceType = "schedule"
		}
	case svSig:
		varianceType = "schedule"
	case cvSig:
		varianceType = "cost"
	default:
		if math.Abs(m.SV) > math.Abs(m.CV) {
			varianceType = "schedule"
		}
	}

	ex := domain.VarianceExplanation{
		MetricScope:  m.Scope,
		VarianceType: varianceType,
		Explanation:  "No significant variance detected.",
		Impact:       "Performance is tracking plan.",
		Confidence:   0.5,
	}

	if varianceType == "cost" {
		explainCost(&ex, m)
	} else {
		explainSchedule(&ex, m)
	}
	ex.Recommendations = recommend(varianceType, m)
	return ex
}

func explainCost(ex *domain.VarianceExplanation, m domain.EVMMetrics) {
	cpi := m.CPI.Or(1.0)
	switch {
	case m.CV < 0 && cpi < 1.0:
		ex.Explanation = fmt.Sprintf("This work package is over budget with a CPI of %.2f, indicating cost inefficiency.", cpi)
		severity := 0.0
		if m.BAC > 0 {
			severity = math.Abs(m.CV) / m.BAC
		}
		ex.Factors = costOverrunFactors[:factorCount(severity)]
		impactPct := severity * 100
		if m.VAC < 0 && math.Abs(m.VAC) > 0.1*m.BAC {
			ex.Impact = fmt.Sprintf("Significant impact on final cost. Current projection shows %.2f cost overrun at completion (%.1f%% of budget).", math.Abs(m.VAC), impactPct)
		} else {
			ex.Impact = fmt.Sprintf("Moderate impact on cost performance. May need budget adjustment of approximately %.2f (%.1f%% of budget).", math.Abs(m.CV), impactPct)
		}
		ex.Confidence = 0.7
	case m.CV > 0 && cpi > 1.0:
		ex.Explanation = fmt.Sprintf("This work package is under budget with a CPI of %.2f, indicating cost efficiency.", cpi)
		ex.Factors = costUnderrunFactors
		ex.Impact = fmt.Sprintf("Positive impact. Continued performance may result in %.2f cost savings at completion.", m.VAC)
		ex.Confidence = 0.65
	}
}

func explainSchedule(ex *domain.VarianceExplanation, m domain.EVMMetrics) {
	spi := m.SPI.Or(1.0)
	switch {
	case m.SV < 0 && spi < 1.0:
		ex.Explanation = fmt.Sprintf("This work package is behind schedule with an SPI of %.2f.", spi)
		severity := 0.0
		if m.PV > 0 {
			severity = math.Abs(m.SV) / m.PV
		}
		ex.Factors = scheduleSlipFactors[:factorCount(severity)]
		delayFactor := 10.0
		if spi > 0.1 {
			delayFactor = 1 / spi
		}
		delayPct := int((delayFactor - 1) * 100)
		if delayFactor-1 > 0.5 {
			ex.Impact = fmt.Sprintf("Significant schedule impact. At current rate, may delay completion by approximately %d%%.", delayPct)
		} else {
			ex.Impact = fmt.Sprintf("Moderate schedule impact. May delay completion by approximately %d%%.", delayPct)
		}
		ex.Confidence = 0.7
	case m.SV > 0 && spi > 1.0:
		ex.Explanation = fmt.Sprintf("This work package is ahead of schedule with an SPI of %.2f.", spi)
		ex.Factors = scheduleAheadFactors
		ex.Impact = fmt.Sprintf("Positive schedule impact. Work progressing %d%% faster than planned.", int((spi-1)*100))
		ex.Confidence = 0.65
	}
}

func recommend(varianceType string, m domain.EVMMetrics) []string {
	var recs []string
	switch {
	case varianceType == "cost" && m.CV < 0:
		recs = append(recs, "Review cost estimation methodology for similar future tasks")
		if m.VAC < 0 && math.Abs(m.VAC) > 0.1*m.BAC {
			recs = append(recs,
				"Initiate formal EAC review and potential budget change request",
				"Assess scope for possible reduction to align with budget constraints")
		}
	case varianceType == "schedule" && m.SV < 0:
		recs = append(recs, "Review and update remaining duration estimates")
		if m.SPI.Defined && m.SPI.Value < 0.8 {
			recs = append(recs,
				"Develop a recovery plan with specific milestones",
				"Consider re-baselining if recovery is not feasible")
		}
	}
	if len(recs) == 0 {
		if m.CV < 0 || m.SV < 0 {
			recs = append(recs,
				"Investigate root causes and document lessons learned",
				"Monitor closely in the next reporting period")
		} else {
			recs = append(recs,
				"Document successful practices for future reference",
				"Consider adjusting estimates for similar future tasks")
		}
	}
	return recs
}

// factorCount maps severity to a 1-3 element prefix of the factor catalogue
func factorCount(severity float64) int {
	n := int(severity * 5)
	if n < 1 {
		n = 1
	}
	if n > 3 {
		n = 3
	}
	return n
}

func relative(variance, base float64) float64 {
	if base == 0 {
		return 0
	}
	return math.Abs(variance / base)
}
