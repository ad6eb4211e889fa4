package monitor

import "github.com/itohio/fieldwatch/pkg/hal"

// DefaultToneHz is the alarm tone played on Critical.
const DefaultToneHz = 1000

// Outputs are the actuators driven from a Status.
// Any field may be nil when the board does not have that output.
type Outputs struct {
	Green  hal.DigitalOutput
	Yellow hal.DigitalOutput
	Red    hal.DigitalOutput
	Buzzer hal.Buzzer
	// Relay is energized (high) while equipment may run; low opens it.
	Relay  hal.DigitalOutput
	ToneHz uint32
}

// Apply clears every output and then sets the ones s calls for, so nothing
// from a previous cycle survives.
func (o Outputs) Apply(s Status) {
	set(o.Green, false)
	set(o.Yellow, false)
	set(o.Red, false)
	if o.Buzzer != nil {
		o.Buzzer.Silence()
	}

	switch s.Overall {
	case Critical:
		set(o.Red, true)
		if o.Buzzer != nil {
			hz := o.ToneHz
			if hz == 0 {
				hz = DefaultToneHz
			}
			o.Buzzer.Tone(hz)
		}
	case Warning:
		set(o.Yellow, true)
	default:
		set(o.Green, true)
	}

	set(o.Relay, !s.Cutoff)
}

// Safe puts the outputs in their power-on state: lamps and buzzer off, relay
// energized.
func (o Outputs) Safe() {
	set(o.Green, false)
	set(o.Yellow, false)
	set(o.Red, false)
	if o.Buzzer != nil {
		o.Buzzer.Silence()
	}
	set(o.Relay, true)
}

func set(out hal.DigitalOutput, high bool) {
	if out != nil {
		out.Set(high)
	}
}
