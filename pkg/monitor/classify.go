// Package monitor classifies industrial machine readings (temperature,
// vibration, distance) into a per-cycle status and drives the indicator
// lamps, buzzer and cutoff relay from it.
package monitor

import (
	"github.com/chewxy/math32"
	"github.com/itohio/fieldwatch/pkg/hal"
)

// CountsPerG is the accelerometer scale at the ±2 g full-scale range.
const CountsPerG = 16384.0

// Thresholds are the fixed boundaries for one installation.
type Thresholds struct {
	TempWarning  float32 // °C, Warning above
	TempCritical float32 // °C, Critical above
	TempShutdown float32 // °C, Critical and relay cut at or above

	VibWarning  float32 // g, Warning above
	VibCritical float32 // g, Critical and relay cut above

	DistMin         float32 // cm, Critical below
	DistMax         float32 // cm, Critical above
	DistWarningLow  float32 // cm, Warning below
	DistWarningHigh float32 // cm, Warning above
}

// DefaultThresholds returns the factory limits.
func DefaultThresholds() Thresholds {
	return Thresholds{
		TempWarning:     60,
		TempCritical:    80,
		TempShutdown:    90,
		VibWarning:      1,
		VibCritical:     2,
		DistMin:         5,
		DistMax:         250,
		DistWarningLow:  10,
		DistWarningHigh: 200,
	}
}

// ClassifyTemperature returns the severity of t and whether it reached the
// shutdown limit. The shutdown clause of the Critical test is redundant
// whenever TempShutdown > TempCritical.
func ClassifyTemperature(t float32, th Thresholds) (sev Severity, shutdown bool) {
	shutdown = t >= th.TempShutdown
	switch {
	case t > th.TempCritical || shutdown:
		return Critical, shutdown
	case t > th.TempWarning:
		return Warning, false
	default:
		return Normal, false
	}
}

// VibrationMagnitude returns the resultant acceleration in g from raw counts.
func VibrationMagnitude(ax, ay, az int16) float32 {
	x := float32(ax) / CountsPerG
	y := float32(ay) / CountsPerG
	z := float32(az) / CountsPerG
	return math32.Sqrt(x*x + y*y + z*z)
}

// ClassifyVibration returns the severity of a vibration magnitude in g.
func ClassifyVibration(v float32, th Thresholds) Severity {
	switch {
	case v > th.VibCritical:
		return Critical
	case v > th.VibWarning:
		return Warning
	default:
		return Normal
	}
}

// ClassifyDistance returns the severity of a distance in cm. Being too close
// or too far is an unsafe physical state, so out-of-range values are Critical.
func ClassifyDistance(d float32, th Thresholds) Severity {
	switch {
	case d < th.DistMin || d > th.DistMax:
		return Critical
	case d < th.DistWarningLow || d > th.DistWarningHigh:
		return Warning
	default:
		return Normal
	}
}

// TemperatureFault reports whether t is the disconnected-probe sentinel.
func TemperatureFault(t float32) bool {
	return t == hal.Disconnected || math32.IsNaN(t)
}

// Readings is one cycle's sampled values.
type Readings struct {
	Temperature float32 // °C, hal.Disconnected when the probe failed
	Vibration   float32 // g
	Distance    float32 // cm
}

// Status is the immutable outcome of one cycle.
type Status struct {
	Readings Readings

	Temperature Severity
	Vibration   Severity
	Distance    Severity
	Overall     Severity

	// TemperatureFault is set when the probe did not answer; Temperature is
	// then Normal and does not contribute to Overall.
	TemperatureFault bool
	// Shutdown is set when the temperature reached the shutdown limit.
	Shutdown bool
	// Cutoff means the relay must be open (equipment de-energized).
	Cutoff bool
}

// Evaluate classifies every reading and aggregates them. It has no state.
func Evaluate(r Readings, th Thresholds) Status {
	s := Status{Readings: r}

	if TemperatureFault(r.Temperature) {
		s.TemperatureFault = true
	} else {
		s.Temperature, s.Shutdown = ClassifyTemperature(r.Temperature, th)
	}
	s.Vibration = ClassifyVibration(r.Vibration, th)
	s.Distance = ClassifyDistance(r.Distance, th)

	s.Overall = Aggregate(s.Temperature, s.Vibration, s.Distance)
	s.Cutoff = s.Shutdown || s.Vibration == Critical
	return s
}
