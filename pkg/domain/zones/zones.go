// Package zones maps scalar power and heart-rate readings to named training
// zones via ordered inclusive ranges.
package zones

import "math"

// Zone is one named inclusive range [Low, High].
type Zone struct {
	Name string  `yaml:"name"`
	Low  float64 `yaml:"low"`
	High float64 `yaml:"high"`
}

// Table is an ordered zone list. Tables are used exactly as authored: no
// sorting, no overlap validation. Overlapping ranges resolve to the first
// match, which is documented ambiguity rather than an error.
type Table []Zone

// Classify returns the name of the first zone whose range contains v.
// A nil value, or a value covered by no range, yields ("", false).
func Classify(v *float64, table Table) (string, bool) {
	if v == nil {
		return "", false
	}
	for _, z := range table {
		if *v >= z.Low && *v <= z.High {
			return z.Name, true
		}
	}
	return "", false
}

// DefaultHeartRate is the stock 5-zone heart rate table.
func DefaultHeartRate() Table {
	return Table{
		{Name: "Zone 1", Low: 0, High: 119},
		{Name: "Zone 2", Low: 120, High: 139},
		{Name: "Zone 3", Low: 140, High: 159},
		{Name: "Zone 4", Low: 160, High: 179},
		{Name: "Zone 5", Low: 180, High: math.Inf(1)},
	}
}

// DefaultPower is the stock 7-zone power table.
func DefaultPower() Table {
	return Table{
		{Name: "Zone 1", Low: 0, High: 119},
		{Name: "Zone 2", Low: 120, High: 133},
		{Name: "Zone 3", Low: 134, High: 167},
		{Name: "Zone 4", Low: 168, High: 192},
		{Name: "Zone 5", Low: 193, High: 209},
		{Name: "Zone 6", Low: 210, High: 237},
		{Name: "Zone 7", Low: 238, High: math.Inf(1)},
	}
}
