// Package document combines raw samples, zone labels, session metrics and
// optional health enrichment into delivery-ready documents with
// deterministic identifiers.
package document

import (
	"fmt"
	"time"

	"github.com/fitsearch/pipeline/pkg/domain/metrics"
	"github.com/fitsearch/pipeline/pkg/domain/telemetry"
	"github.com/fitsearch/pipeline/pkg/domain/zones"
	"github.com/fitsearch/pipeline/pkg/health"
)

// Doc is one delivery unit: a flat field mapping plus its deterministic id.
// Constructed once per sample per run and never mutated after handoff to
// delivery.
type Doc struct {
	ID     string
	Fields map[string]any
}

// Assembler builds the per-sample documents for one session. All
// configuration is threaded in at construction; the assembler holds no
// mutable state and is safe to share across parallel sessions.
type Assembler struct {
	HRZones    zones.Table
	PowerZones zones.Table
	FTP        float64
	// Enricher is optional: nil disables health enrichment without
	// affecting any other document field.
	Enricher *health.Enricher
}

// Assemble computes the session metrics in one whole-session pass and then
// produces one document per sample. Document ids follow
// "{session_id}-{index}", the pipeline's sole idempotency key: re-running
// over the same file re-derives the same ids and overwrites prior documents.
func (a *Assembler) Assemble(session *telemetry.Session) []Doc {
	m := metrics.Compute(session.Samples, a.FTP)
	metricFields := m.Fields()

	var watch, computed map[string]any
	if a.Enricher != nil {
		watch, computed = a.Enricher.Enrich(session.Date(), m)
	}

	docs := make([]Doc, 0, len(session.Samples))
	for i, s := range session.Samples {
		fields := make(map[string]any, len(s.Extra)+len(metricFields)+8)

		for k, v := range s.Extra {
			fields[k] = normalize(v)
		}
		if s.Timestamp != nil {
			fields["timestamp"] = s.Timestamp.UTC().Format(time.RFC3339)
		}
		if s.Power != nil {
			fields["power"] = *s.Power
		}
		if s.HeartRate != nil {
			fields["heart_rate"] = *s.HeartRate
		}
		if s.Altitude != nil {
			fields["altitude"] = *s.Altitude
		}
		if s.Distance != nil {
			fields["distance"] = *s.Distance
		}

		if name, ok := zones.Classify(s.HeartRate, a.HRZones); ok {
			fields["heart_rate_zone"] = name
		}
		if name, ok := zones.Classify(s.Power, a.PowerZones); ok {
			fields["power_zone"] = name
		}

		fields["session_id"] = session.ID
		for k, v := range metricFields {
			fields[k] = v
		}

		if a.Enricher != nil {
			fields["watch"] = watch
			fields["computed"] = computed
		}

		docs = append(docs, Doc{
			ID:     fmt.Sprintf("%s-%d", session.ID, i),
			Fields: fields,
		})
	}
	return docs
}

// normalize converts datetime values carried in passthrough fields to the
// canonical RFC 3339 text form; the store client accepts only
// primitive/text/numeric values.
func normalize(v any) any {
	switch t := v.(type) {
	case time.Time:
		return t.UTC().Format(time.RFC3339)
	case *time.Time:
		if t == nil {
			return nil
		}
		return t.UTC().Format(time.RFC3339)
	default:
		return v
	}
}
