package health

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"
)

// Apple Health record type identifiers we aggregate.
const (
	typeRestingHR    = "HKQuantityTypeIdentifierRestingHeartRate"
	typeHeartRate    = "HKQuantityTypeIdentifierHeartRate"
	typeHRV          = "HKQuantityTypeIdentifierHeartRateVariabilitySDNN"
	typeStepCount    = "HKQuantityTypeIdentifierStepCount"
	typeActiveEnergy = "HKQuantityTypeIdentifierActiveEnergyBurned"
)

// Apple Health timestamps look like "2025-03-15 07:12:45 -0800".
const appleTimeLayout = "2006-01-02 15:04:05 -0700"

type dayAccumulator struct {
	restingHR    []float64
	heartRate    []float64
	hrv          []float64
	stepCount    float64
	steps        bool
	activeEnergy float64
	energy       bool
}

// ParseAppleExport streams an Apple Health export.xml and aggregates the
// heart rate, HRV, step and energy records into a date-keyed daily summary.
// The export can run to hundreds of megabytes, so Record elements are
// consumed token-by-token rather than unmarshalled wholesale. Records with
// missing or unparsable attributes are skipped.
func ParseAppleExport(path string) (Lookup, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open health export: %w", err)
	}
	defer f.Close()
	return parseAppleExport(f)
}

func parseAppleExport(r io.Reader) (Lookup, error) {
	dec := xml.NewDecoder(r)
	days := map[string]*dayAccumulator{}

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse health export: %w", err)
		}

		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != "Record" {
			continue
		}

		var recordType, startDate, value string
		for _, attr := range start.Attr {
			switch attr.Name.Local {
			case "type":
				recordType = attr.Value
			case "startDate":
				startDate = attr.Value
			case "value":
				value = attr.Value
			}
		}
		if recordType == "" || startDate == "" || value == "" {
			continue
		}

		ts, err := time.Parse(appleTimeLayout, startDate)
		if err != nil {
			continue
		}
		val, err := strconv.ParseFloat(value, 64)
		if err != nil {
			continue
		}

		date := ts.Format("2006-01-02")
		day := days[date]
		if day == nil {
			day = &dayAccumulator{}
			days[date] = day
		}

		switch recordType {
		case typeRestingHR:
			day.restingHR = append(day.restingHR, val)
		case typeHeartRate:
			day.heartRate = append(day.heartRate, val)
		case typeHRV:
			day.hrv = append(day.hrv, val)
		case typeStepCount:
			day.stepCount += val
			day.steps = true
		case typeActiveEnergy:
			day.activeEnergy += val
			day.energy = true
		}
	}

	lookup := make(Lookup, len(days))
	for date, day := range days {
		var s DailySummary
		if v, ok := mean(day.restingHR); ok {
			s.RestingHR = &v
		}
		if v, ok := mean(day.heartRate); ok {
			s.AvgHR = &v
			lo, hi := minMax(day.heartRate)
			s.MinHR = &lo
			s.MaxHR = &hi
		}
		if v, ok := mean(day.hrv); ok {
			s.HRV = &v
		}
		if day.steps {
			steps := int64(day.stepCount)
			s.StepCount = &steps
		}
		if day.energy {
			energy := day.activeEnergy
			s.ActiveEnergyKcal = &energy
		}
		lookup[date] = s
	}
	return lookup, nil
}

func mean(vals []float64) (float64, bool) {
	if len(vals) == 0 {
		return 0, false
	}
	var sum float64
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals)), true
}

func minMax(vals []float64) (lo, hi float64) {
	lo, hi = vals[0], vals[0]
	for _, v := range vals[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi
}
