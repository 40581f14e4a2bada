// Package health joins sessions against an independently sourced daily
// physiological summary (Apple Health export) and derives composite
// readiness indices.
package health

// DailySummary holds one calendar day's aggregated watch metrics. Every
// field is optional: absence means no measurements were recorded for that
// metric on that day.
type DailySummary struct {
	RestingHR        *float64
	AvgHR            *float64
	MinHR            *float64
	MaxHR            *float64
	HRV              *float64
	StepCount        *int64
	ActiveEnergyKcal *float64
}

// Lookup is a read-only date-keyed (ISO YYYY-MM-DD) summary table.
type Lookup map[string]DailySummary

// Fields returns the day's raw watch metrics as document fields, omitting
// absent values.
func (d DailySummary) Fields() map[string]any {
	out := map[string]any{}
	if d.RestingHR != nil {
		out["resting_hr"] = *d.RestingHR
	}
	if d.AvgHR != nil {
		out["avg_hr"] = *d.AvgHR
	}
	if d.MinHR != nil {
		out["min_hr"] = *d.MinHR
	}
	if d.MaxHR != nil {
		out["max_hr"] = *d.MaxHR
	}
	if d.HRV != nil {
		out["hrv"] = *d.HRV
	}
	if d.StepCount != nil {
		out["step_count"] = *d.StepCount
	}
	if d.ActiveEnergyKcal != nil {
		out["active_energy_kcal"] = *d.ActiveEnergyKcal
	}
	return out
}
