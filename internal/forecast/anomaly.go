package forecast

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/ai-in-pm/CSCSC-Agent/internal/domain"
)

// indexJumpThreshold flags a CPI or SPI change of more than 0.2 between
// consecutive observations
const indexJumpThreshold = 0.2

// cvTrendScale normalizes trend-reversal severity against typical CV swings
const cvTrendScale = 1000.0

// Anomaly is a flagged irregularity in a metric time series
type Anomaly struct {
	Date        time.Time `json:"date"`
	Type        string    `json:"type"` // cpi_change, spi_change, cv_trend_reversal
	Description string    `json:"description"`
	FromValue   float64   `json:"from_value"`
	ToValue     float64   `json:"to_value"`
	Severity    float64   `json:"severity"`
}

// DetectAnomalies scans an ordered metric history for sudden index changes
// and cost-variance trend reversals. At least three observations are needed
// for trend analysis; fewer return no anomalies. Output is sorted newest
// first and is deterministic for a given history.
func DetectAnomalies(history []domain.EVMMetrics) []Anomaly {
	if len(history) < 3 {
		return nil
	}

	var anomalies []Anomaly

	for i := 1; i < len(history); i++ {
		prev, cur := history[i-1], history[i]
		if prev.CPI.Defined && cur.CPI.Defined {
			if a, ok := indexJump("cpi_change", "CPI", prev.CPI.Value, cur.CPI.Value, cur.AsOf); ok {
				anomalies = append(anomalies, a)
			}
		}
		if prev.SPI.Defined && cur.SPI.Defined {
			if a, ok := indexJump("spi_change", "SPI", prev.SPI.Value, cur.SPI.Value, cur.AsOf); ok {
				anomalies = append(anomalies, a)
			}
		}
	}

	for i := 2; i < len(history); i++ {
		prevTrend := history[i-1].CV - history[i-2].CV
		curTrend := history[i].CV - history[i-1].CV
		if (prevTrend > 0 && curTrend < 0) || (prevTrend < 0 && curTrend > 0) {
			anomalies = append(anomalies, Anomaly{
				Date:        history[i].AsOf,
				Type:        "cv_trend_reversal",
				Description: "Cost variance trend reversal detected",
				FromValue:   prevTrend,
				ToValue:     curTrend,
				Severity:    math.Min(1.0, (math.Abs(prevTrend)+math.Abs(curTrend))/cvTrendScale),
			})
		}
	}

	sort.SliceStable(anomalies, func(i, j int) bool {
		return anomalies[i].Date.After(anomalies[j].Date)
	})
	return anomalies
}

func indexJump(kind, label string, from, to float64, at time.Time) (Anomaly, bool) {
	change := to - from
	if math.Abs(change) <= indexJumpThreshold {
		return Anomaly{}, false
	}
	direction := "deterioration"
	if change > 0 {
		direction = "improvement"
	}
	return Anomaly{
		Date:        at,
		Type:        kind,
		Description: fmt.Sprintf("Sudden %s in %s", direction, label),
		FromValue:   from,
		ToValue:     to,
		Severity:    math.Abs(change) / indexJumpThreshold,
	}, true
}
