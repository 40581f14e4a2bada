package health

import "github.com/fitsearch/pipeline/pkg/domain/metrics"

// Default recovery thresholds, overridable per run.
const (
	DefaultHRVThreshold      = 30.0
	DefaultBaselineRestingHR = 50.0
)

// Thresholds configures the recovery_ready classification.
type Thresholds struct {
	HRVThreshold      float64 `yaml:"hrv_threshold"`
	BaselineRestingHR float64 `yaml:"baseline_resting_hr"`
}

// DefaultThresholds returns the stock recovery thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{
		HRVThreshold:      DefaultHRVThreshold,
		BaselineRestingHR: DefaultBaselineRestingHR,
	}
}

// Enricher augments session documents with the day's watch context. It is
// strictly additive: existing document fields are never touched, only the
// nested "watch" and "computed" blocks are produced.
type Enricher struct {
	Lookup     Lookup
	Thresholds Thresholds
}

// NewEnricher builds an enricher over a daily summary table with the given
// thresholds.
func NewEnricher(lookup Lookup, thresholds Thresholds) *Enricher {
	return &Enricher{Lookup: lookup, Thresholds: thresholds}
}

// Enrich resolves the session date against the summary table and derives the
// composite indices. An unknown date yields an empty watch block and no
// computed fields. Each index is guarded independently by the presence of
// its inputs; absent results are omitted, never set to null.
func (e *Enricher) Enrich(date string, m metrics.Metrics) (watch, computed map[string]any) {
	day := e.Lookup[date]
	watch = day.Fields()
	computed = map[string]any{}

	if day.RestingHR != nil && *day.RestingHR > 0 && m.AvgHR > 0 {
		computed["fatigue_index"] = m.AvgHR / *day.RestingHR - 1
	}

	if day.MaxHR != nil && *day.MaxHR > 0 && m.AvgHR > 0 && m.NormalizedPower > 0 {
		computed["session_intensity_index"] = m.IntensityFactor * (m.AvgHR / *day.MaxHR)
	}

	if day.HRV != nil && day.RestingHR != nil {
		computed["recovery_ready"] = *day.HRV > e.Thresholds.HRVThreshold &&
			*day.RestingHR < e.Thresholds.BaselineRestingHR
	}

	return watch, computed
}
