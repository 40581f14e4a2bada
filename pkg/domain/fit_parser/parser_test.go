package fit_parser

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/muktihari/fit/encoder"
	"github.com/muktihari/fit/profile/mesgdef"
	"github.com/muktihari/fit/profile/typedef"
	"github.com/muktihari/fit/proto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// encodeActivity builds a minimal FIT activity file with the given record
// messages.
func encodeActivity(t *testing.T, records []*mesgdef.Record) []byte {
	t.Helper()

	start := time.Date(2025, 3, 15, 9, 0, 0, 0, time.UTC)
	fit := &proto.FIT{}

	fileId := mesgdef.NewFileId(nil).
		SetType(typedef.FileActivity).
		SetManufacturer(typedef.ManufacturerDevelopment).
		SetProduct(1).
		SetTimeCreated(start)
	fit.Messages = append(fit.Messages, fileId.ToMesg(nil))

	for _, r := range records {
		fit.Messages = append(fit.Messages, r.ToMesg(nil))
	}

	var buf bytes.Buffer
	enc := encoder.New(&buf)
	require.NoError(t, enc.Encode(fit))
	return buf.Bytes()
}

func TestParse(t *testing.T) {
	start := time.Date(2025, 3, 15, 9, 0, 0, 0, time.UTC)

	records := []*mesgdef.Record{
		mesgdef.NewRecord(nil).
			SetTimestamp(start).
			SetHeartRate(140).
			SetPower(200).
			SetCadence(85).
			SetAltitude(uint16((274.2 + 500) * 5)). // FIT scale 5, offset 500
			SetDistance(0),
		mesgdef.NewRecord(nil).
			SetTimestamp(start.Add(time.Second)).
			SetHeartRate(150).
			SetPower(210).
			SetDistance(850), // centimeters
	}

	session, err := Parse(encodeActivity(t, records), "2025-03-15-ride")
	require.NoError(t, err)

	assert.Equal(t, "2025-03-15-ride", session.ID)
	require.Len(t, session.Samples, 2)
	assert.Equal(t, "2025-03-15", session.Date())

	first := session.Samples[0]
	require.NotNil(t, first.Timestamp)
	assert.True(t, first.Timestamp.Equal(start))
	require.NotNil(t, first.HeartRate)
	assert.Equal(t, 140.0, *first.HeartRate)
	require.NotNil(t, first.Power)
	assert.Equal(t, 200.0, *first.Power)
	require.NotNil(t, first.Altitude)
	assert.InDelta(t, 274.2, *first.Altitude, 0.2) // quantized by the wire scale
	assert.Equal(t, 85.0, first.Extra["cadence"])

	second := session.Samples[1]
	require.NotNil(t, second.Distance)
	assert.Equal(t, 8.5, *second.Distance) // centimeters to meters

	// Channels the device never reported stay absent.
	assert.Nil(t, second.Altitude)
	_, hasCadence := second.Extra["cadence"]
	assert.False(t, hasCadence)
}

func TestParse_NoRecords(t *testing.T) {
	data := encodeActivity(t, nil)

	_, err := Parse(data, "empty")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoRecords))
}

func TestParse_EmptyData(t *testing.T) {
	_, err := Parse(nil, "empty")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrNoRecords))
}

func TestParse_Garbage(t *testing.T) {
	_, err := Parse([]byte("definitely not a fit file"), "garbage")
	require.Error(t, err)
}
