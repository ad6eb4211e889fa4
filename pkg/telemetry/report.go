// Package telemetry defines the per-cycle record line the boards print next
// to their human-readable log, and the Report value the host builds from it.
//
// Industrial:  I,<uptime_us>,<temp>,<vib>,<dist>,<N|W|C>,<cutoff>,<tempfault>
// Irrigation:  P,<uptime_us>,<humidity|nan>,<ph>,<P>,<K>,<pump>
package telemetry

import (
	"time"

	"github.com/chewxy/math32"
	"github.com/itohio/fieldwatch/pkg/irrigation"
	"github.com/itohio/fieldwatch/pkg/monitor"
)

// Kind tells which board produced a report.
type Kind string

const (
	KindIndustrial Kind = "industrial"
	KindIrrigation Kind = "irrigation"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	return k == KindIndustrial || k == KindIrrigation
}

// Report is one controller cycle as seen by the host. Only the fields of its
// Kind are meaningful.
type Report struct {
	Kind Kind
	// Time is stamped by the host on receive; Uptime comes from the board.
	Time   time.Time
	Uptime time.Duration

	Temperature      float32
	Vibration        float32
	Distance         float32
	Severity         monitor.Severity
	Cutoff           bool
	TemperatureFault bool

	Humidity   float32
	PH         float32
	Phosphorus bool
	Potassium  bool
	Pump       bool
}

// Active reports whether the cycle needs attention: an industrial alarm or a
// running pump.
func (r Report) Active() bool {
	if r.Kind == KindIrrigation {
		return r.Pump
	}
	return r.Severity != monitor.Normal
}

// Level is the severity used for grouping and metrics. An irrigation cycle is
// Warning while the pump runs and Normal otherwise.
func (r Report) Level() monitor.Severity {
	if r.Kind == KindIrrigation {
		if r.Pump {
			return monitor.Warning
		}
		return monitor.Normal
	}
	return r.Severity
}

// HumidityFault reports whether an irrigation report carries no humidity.
func (r Report) HumidityFault() bool {
	return r.Kind == KindIrrigation && math32.IsNaN(r.Humidity)
}

// FromStatus builds an industrial report.
func FromStatus(s monitor.Status, uptime time.Duration) Report {
	return Report{
		Kind:             KindIndustrial,
		Uptime:           uptime,
		Temperature:      s.Readings.Temperature,
		Vibration:        s.Readings.Vibration,
		Distance:         s.Readings.Distance,
		Severity:         s.Overall,
		Cutoff:           s.Cutoff,
		TemperatureFault: s.TemperatureFault,
	}
}

// FromState builds an irrigation report.
func FromState(s irrigation.State, uptime time.Duration) Report {
	return Report{
		Kind:       KindIrrigation,
		Uptime:     uptime,
		Humidity:   s.Readings.Humidity,
		PH:         s.Readings.PH,
		Phosphorus: s.Readings.Phosphorus,
		Potassium:  s.Readings.Potassium,
		Pump:       s.Pump,
	}
}

// State rebuilds the irrigation controller state of an irrigation report.
func (r Report) State(dryBelow float32) irrigation.State {
	return irrigation.State{
		Readings: irrigation.Readings{
			Humidity:   r.Humidity,
			PH:         r.PH,
			Phosphorus: r.Phosphorus,
			Potassium:  r.Potassium,
		},
		Pump:     r.Pump,
		DryBelow: dryBelow,
	}
}
