// Package metrics derives session-level training load figures from the full
// ordered sample sequence of one session. Every metric is computed
// independently and degrades to zero or absent when its inputs are missing;
// the engine never fails on malformed or empty input.
package metrics

import (
	"math"

	"github.com/fitsearch/pipeline/pkg/domain/telemetry"
)

// Metrics is the fixed set of per-session outputs, broadcast onto every
// document of the session. Pointer fields are absent (omitted from
// documents) rather than zero when their inputs are missing.
type Metrics struct {
	MovingTimeSec       float64
	PauseTimeSec        float64
	AvgPower            float64
	AvgHR               float64
	DistanceM           *float64
	ElevationGainM      *float64
	NormalizedPower     float64
	IntensityFactor     float64
	TrainingStressScore float64
	HRDriftPct          *float64
}

// Fields flattens the metrics into document fields, omitting absent values.
func (m Metrics) Fields() map[string]any {
	out := map[string]any{
		"moving_time_sec":       m.MovingTimeSec,
		"pause_time_sec":        m.PauseTimeSec,
		"avg_power":             m.AvgPower,
		"avg_hr":                m.AvgHR,
		"normalized_power":      m.NormalizedPower,
		"intensity_factor":      m.IntensityFactor,
		"training_stress_score": m.TrainingStressScore,
	}
	if m.DistanceM != nil {
		out["distance_m"] = *m.DistanceM
	}
	if m.ElevationGainM != nil {
		out["elevation_gain_m"] = *m.ElevationGainM
	}
	if m.HRDriftPct != nil {
		out["hr_drift_pct"] = *m.HRDriftPct
	}
	return out
}

// Compute runs the whole-session pass. ftp is the configured functional
// threshold power; ratios derived from normalized power are zero when
// ftp <= 0.
func Compute(samples []telemetry.Sample, ftp float64) Metrics {
	var m Metrics

	// Moving time is the count of powered samples, a proxy for active
	// duration at the device's 1 Hz cadence. Kept as-is: downstream
	// dashboards depend on this definition.
	var (
		powerSum, powerQuartSum float64
		powerCount              int
		hrSum                   float64
		hrCount                 int
	)
	for _, s := range samples {
		if s.Power != nil {
			powerSum += *s.Power
			powerQuartSum += math.Pow(*s.Power, 4)
			powerCount++
		}
		if s.HeartRate != nil {
			hrSum += *s.HeartRate
			hrCount++
		}
		if s.Distance != nil && (m.DistanceM == nil || *s.Distance > *m.DistanceM) {
			m.DistanceM = telemetry.Float(*s.Distance)
		}
	}

	m.MovingTimeSec = float64(powerCount)
	m.PauseTimeSec = pauseTime(samples)

	if powerCount > 0 {
		m.AvgPower = powerSum / float64(powerCount)
		m.NormalizedPower = math.Pow(powerQuartSum/float64(powerCount), 0.25)
	}
	if hrCount > 0 {
		m.AvgHR = hrSum / float64(hrCount)
	}

	m.ElevationGainM = elevationGain(samples)

	if ftp > 0 {
		m.IntensityFactor = m.NormalizedPower / ftp
		m.TrainingStressScore = (m.MovingTimeSec * m.NormalizedPower * m.IntensityFactor) / (ftp * 3600) * 100
	}

	m.HRDriftPct = hrDrift(samples)

	return m
}

// pauseTime sums recording gaps beyond the expected 1-second cadence over
// consecutive timestamped sample pairs.
func pauseTime(samples []telemetry.Sample) float64 {
	var prev *telemetry.Sample
	var total float64
	for i := range samples {
		s := &samples[i]
		if s.Timestamp == nil {
			continue
		}
		if prev != nil {
			gap := s.Timestamp.Sub(*prev.Timestamp).Seconds()
			if gap > 1 {
				total += gap - 1
			}
		}
		prev = s
	}
	return total
}

// elevationGain is max(altitude) - min(altitude). Deliberately a range, not
// a monotonic-climb sum; consumers depend on the existing definition.
func elevationGain(samples []telemetry.Sample) *float64 {
	var lo, hi float64
	seen := false
	for _, s := range samples {
		if s.Altitude == nil {
			continue
		}
		if !seen {
			lo, hi = *s.Altitude, *s.Altitude
			seen = true
			continue
		}
		if *s.Altitude < lo {
			lo = *s.Altitude
		}
		if *s.Altitude > hi {
			hi = *s.Altitude
		}
	}
	if !seen {
		return nil
	}
	return telemetry.Float(hi - lo)
}

// hrDrift estimates cardiovascular drift: the percentage increase of the
// HR-to-power ratio from the first half of the session to the second.
// The sequence is split at its midpoint index (integer floor); each half's
// mean HR and mean power are computed over the samples carrying that value.
// Any degeneracy (a half with no HR or no power samples, or a zero mean
// power in either half) yields absent rather than a misleading zero.
func hrDrift(samples []telemetry.Sample) *float64 {
	mid := len(samples) / 2
	hr1, pw1 := halfMeans(samples[:mid])
	hr2, pw2 := halfMeans(samples[mid:])

	if hr1 == nil || pw1 == nil || hr2 == nil || pw2 == nil {
		return nil
	}
	if *pw1 <= 0 || *pw2 <= 0 || *hr1 <= 0 {
		return nil
	}

	ratio1 := *hr1 / *pw1
	ratio2 := *hr2 / *pw2
	return telemetry.Float((ratio2 - ratio1) / ratio1 * 100)
}

func halfMeans(half []telemetry.Sample) (meanHR, meanPower *float64) {
	var hrSum, pwSum float64
	var hrN, pwN int
	for _, s := range half {
		if s.HeartRate != nil {
			hrSum += *s.HeartRate
			hrN++
		}
		if s.Power != nil {
			pwSum += *s.Power
			pwN++
		}
	}
	if hrN > 0 {
		meanHR = telemetry.Float(hrSum / float64(hrN))
	}
	if pwN > 0 {
		meanPower = telemetry.Float(pwSum / float64(pwN))
	}
	return meanHR, meanPower
}
