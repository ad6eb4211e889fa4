// Package irrigation implements the soil irrigation controller: a pump gated
// on dry soil and the presence of both phosphorus and potassium.
package irrigation

import "github.com/chewxy/math32"

// DefaultDryBelow is the humidity (%) under which the soil counts as dry.
const DefaultDryBelow = 50

// Scale selects how the raw light-sensor value maps to a pH figure.
type Scale uint8

const (
	// ScaleFine maps 0..4095 to 0..140 and divides by ten, giving one decimal.
	ScaleFine Scale = iota
	// ScaleCoarse maps 0..4095 straight to whole pH units 0..14.
	ScaleCoarse
)

// String returns the config name of the scale.
func (s Scale) String() string {
	if s == ScaleCoarse {
		return "coarse"
	}
	return "fine"
}

// ParseScale accepts "fine" or "coarse"; anything else is fine.
func ParseScale(s string) Scale {
	if s == "coarse" {
		return ScaleCoarse
	}
	return ScaleFine
}

// ADCMax is the top of the 12-bit converter range.
const ADCMax = 4095

// Readings is one cycle's sampled values.
type Readings struct {
	Humidity   float32 // %, NaN when the sensor did not answer
	PH         float32
	Phosphorus bool
	Potassium  bool
}

// HumidityValid reports whether the humidity reading is usable.
func (r Readings) HumidityValid() bool {
	return !math32.IsNaN(r.Humidity)
}

// PumpShouldRun is the pump rule. Every condition must hold; a failed
// humidity read keeps the pump off.
func PumpShouldRun(r Readings, dryBelow float32) bool {
	return r.HumidityValid() &&
		r.Humidity < dryBelow &&
		r.Phosphorus &&
		r.Potassium
}

// SimulatedPH converts a raw 12-bit light reading into a pH figure using
// integer range mapping. Values above the converter range are clamped.
func SimulatedPH(raw uint16, scale Scale) float32 {
	if raw > ADCMax {
		raw = ADCMax
	}
	if scale == ScaleCoarse {
		return float32(mapRange(int32(raw), 0, ADCMax, 0, 14))
	}
	return float32(mapRange(int32(raw), 0, ADCMax, 0, 140)) / 10
}

// mapRange re-maps x with truncating integer division.
func mapRange(x, inMin, inMax, outMin, outMax int32) int32 {
	return (x-inMin)*(outMax-outMin)/(inMax-inMin) + outMin
}
