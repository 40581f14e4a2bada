// Package telemetry defines the decoded per-sample data model shared by the
// metrics, enrichment and delivery stages.
package telemetry

import "time"

// Sample is one timestamped observation within a session. Every field is
// optional: device recordings routinely drop channels mid-ride, so absence
// is represented with nil pointers rather than zero values. Fields the
// pipeline has no typed use for are carried through Extra unchanged.
//
// Samples are immutable once decoded. Downstream stages copy fields into
// new documents; they never write back into a Sample.
type Sample struct {
	Timestamp *time.Time
	Power     *float64
	HeartRate *float64
	Altitude  *float64
	Distance  *float64 // cumulative meters
	Extra     map[string]any
}

// Session is the ordered sample sequence decoded from one source file.
// Sample order is source temporal order and is significant: drift and
// pause-time computations depend on it.
type Session struct {
	// ID is derived from the source file name (stem without extension)
	// and seeds every document id for the session.
	ID      string
	Samples []Sample
}

// Date returns the session's representative calendar date (UTC, YYYY-MM-DD):
// the date of the first sample carrying a timestamp. Empty string when no
// sample is timestamped.
func (s *Session) Date() string {
	for _, sm := range s.Samples {
		if sm.Timestamp != nil {
			return sm.Timestamp.UTC().Format("2006-01-02")
		}
	}
	return ""
}

// Float returns a pointer to v. Decoder and test helper.
func Float(v float64) *float64 { return &v }

// Time returns a pointer to t. Decoder and test helper.
func Time(t time.Time) *time.Time { return &t }
