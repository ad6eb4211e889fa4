//go:build !tinygo

package telemetry

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/chewxy/math32"
	"github.com/itohio/fieldwatch/pkg/monitor"
)

type industrialJSON struct {
	Temperature      float32          `json:"temperature"`
	Vibration        float32          `json:"vibration"`
	Distance         float32          `json:"distance"`
	Severity         monitor.Severity `json:"severity"`
	Cutoff           bool             `json:"cutoff"`
	TemperatureFault bool             `json:"temperature_fault"`
}

type irrigationJSON struct {
	Humidity   *float32 `json:"humidity"`
	PH         float32  `json:"ph"`
	Phosphorus bool     `json:"phosphorus"`
	Potassium  bool     `json:"potassium"`
	Pump       bool     `json:"pump"`
}

type reportJSON struct {
	Kind       Kind            `json:"kind"`
	Time       time.Time       `json:"time"`
	UptimeMS   int64           `json:"uptime_ms"`
	Industrial *industrialJSON `json:"industrial,omitempty"`
	Irrigation *irrigationJSON `json:"irrigation,omitempty"`
}

// MarshalJSON encodes only the fields of the report's kind. A missing
// humidity is null.
func (r Report) MarshalJSON() ([]byte, error) {
	out := reportJSON{
		Kind:     r.Kind,
		Time:     r.Time,
		UptimeMS: r.Uptime.Milliseconds(),
	}
	switch r.Kind {
	case KindIndustrial:
		out.Industrial = &industrialJSON{
			Temperature:      r.Temperature,
			Vibration:        r.Vibration,
			Distance:         r.Distance,
			Severity:         r.Severity,
			Cutoff:           r.Cutoff,
			TemperatureFault: r.TemperatureFault,
		}
	case KindIrrigation:
		irr := &irrigationJSON{
			PH:         r.PH,
			Phosphorus: r.Phosphorus,
			Potassium:  r.Potassium,
			Pump:       r.Pump,
		}
		if !math32.IsNaN(r.Humidity) {
			h := r.Humidity
			irr.Humidity = &h
		}
		out.Irrigation = irr
	default:
		return nil, fmt.Errorf("unknown report kind %q", r.Kind)
	}
	return json.Marshal(out)
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *Report) UnmarshalJSON(b []byte) error {
	var in reportJSON
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}

	*r = Report{
		Kind:   in.Kind,
		Time:   in.Time,
		Uptime: time.Duration(in.UptimeMS) * time.Millisecond,
	}
	switch {
	case in.Kind == KindIndustrial && in.Industrial != nil:
		r.Temperature = in.Industrial.Temperature
		r.Vibration = in.Industrial.Vibration
		r.Distance = in.Industrial.Distance
		r.Severity = in.Industrial.Severity
		r.Cutoff = in.Industrial.Cutoff
		r.TemperatureFault = in.Industrial.TemperatureFault
	case in.Kind == KindIrrigation && in.Irrigation != nil:
		r.Humidity = math32.NaN()
		if in.Irrigation.Humidity != nil {
			r.Humidity = *in.Irrigation.Humidity
		}
		r.PH = in.Irrigation.PH
		r.Phosphorus = in.Irrigation.Phosphorus
		r.Potassium = in.Irrigation.Potassium
		r.Pump = in.Irrigation.Pump
	default:
		return fmt.Errorf("report of kind %q has no body", in.Kind)
	}
	return nil
}
