// Package fit_parser decodes the record stream of one FIT file into the
// ordered sample sequence the analytics pipeline consumes.
package fit_parser

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/muktihari/fit/decoder"
	"github.com/muktihari/fit/profile/mesgdef"
	"github.com/muktihari/fit/profile/typedef"
	"github.com/muktihari/fit/proto"

	"github.com/fitsearch/pipeline/pkg/domain/telemetry"
)

// ErrNoRecords marks a file that decoded cleanly but carried no record
// messages. The pipeline treats this as a skipped session, never a fatal
// run error.
var ErrNoRecords = errors.New("no record messages in FIT file")

// Parse decodes data into a session identified by sessionID (the source
// file stem). Record order is preserved as decoded: it is the device's
// temporal order and downstream metrics depend on it.
func Parse(data []byte, sessionID string) (*telemetry.Session, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%s: empty FIT data", sessionID)
	}

	fitDec := decoder.New(bytes.NewReader(data))

	var samples []telemetry.Sample
	for fitDec.Next() {
		fitData, err := fitDec.Decode()
		if err != nil {
			return nil, fmt.Errorf("decode FIT file %s: %w", sessionID, err)
		}
		for i := range fitData.Messages {
			msg := &fitData.Messages[i]
			if msg.Num != typedef.MesgNumRecord {
				continue
			}
			samples = append(samples, parseRecord(msg))
		}
	}

	if len(samples) == 0 {
		return nil, fmt.Errorf("%s: %w", sessionID, ErrNoRecords)
	}

	return &telemetry.Session{ID: sessionID, Samples: samples}, nil
}

// parseRecord extracts the typed channels plus passthrough extras from one
// record message, dropping fields at their FIT invalid sentinels.
func parseRecord(msg *proto.Message) telemetry.Sample {
	recordMsg := mesgdef.NewRecord(msg)

	var s telemetry.Sample

	if ts := recordMsg.Timestamp; !ts.IsZero() {
		s.Timestamp = telemetry.Time(ts.UTC())
	}
	if recordMsg.HeartRate != 0xFF {
		s.HeartRate = telemetry.Float(float64(recordMsg.HeartRate))
	}
	if recordMsg.Power != 0xFFFF {
		s.Power = telemetry.Float(float64(recordMsg.Power))
	}
	// Altitude uses the FIT 5 * (altitude + 500) scale.
	if recordMsg.Altitude != 0xFFFF {
		s.Altitude = telemetry.Float((float64(recordMsg.Altitude) / 5) - 500)
	}
	// Distance is cumulative centimeters.
	if recordMsg.Distance != 0xFFFFFFFF {
		s.Distance = telemetry.Float(float64(recordMsg.Distance) / 100)
	}

	extra := map[string]any{}
	if recordMsg.Cadence != 0xFF {
		extra["cadence"] = float64(recordMsg.Cadence)
	}
	// Speed is mm/s on the wire.
	if recordMsg.Speed != 0xFFFF {
		extra["speed"] = float64(recordMsg.Speed) / 1000
	}
	if recordMsg.Temperature != 0x7F {
		extra["temperature"] = float64(recordMsg.Temperature)
	}
	// Position arrives in semicircles; convert to decimal degrees.
	if recordMsg.PositionLat != 0x7FFFFFFF && recordMsg.PositionLong != 0x7FFFFFFF {
		const semicircleConst = 11930464.7111 // 2^31 / 180
		extra["position_lat"] = float64(recordMsg.PositionLat) / semicircleConst
		extra["position_long"] = float64(recordMsg.PositionLong) / semicircleConst
	}
	if len(extra) > 0 {
		s.Extra = extra
	}

	return s
}
