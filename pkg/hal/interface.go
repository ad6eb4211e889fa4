// Package hal defines the small hardware capabilities the controllers depend on.
// Firmware binds them to machine pins and sensor drivers; tests and the mock
// link bind them to the fakes in mock.go.
package hal

import (
	"errors"
	"time"
)

// Disconnected is the reading a one-wire temperature probe reports when it
// does not answer on the bus.
const Disconnected float32 = -127.0

var (
	// ErrDisconnected is returned by sensors that lost their device.
	ErrDisconnected = errors.New("sensor disconnected")
	// ErrTimeout is returned when a measurement did not complete in time.
	ErrTimeout = errors.New("measurement timeout")
)

// DigitalOutput is a single output line (LED, relay coil, trigger pin).
type DigitalOutput interface {
	Set(high bool)
}

// DigitalInput is a single input line (switch, echo pin).
type DigitalInput interface {
	Get() bool
}

// AnalogInput is a 12-bit ADC channel (0-4095).
type AnalogInput interface {
	Get() uint16
}

// Buzzer is a piezo driven either on/off or with a square tone.
type Buzzer interface {
	Tone(hz uint32)
	Silence()
}

// Thermometer reads a temperature in degrees Celsius.
// Implementations may report a missing device either as an error or by
// returning Disconnected.
type Thermometer interface {
	ReadCelsius() (float32, error)
}

// Accelerometer reads raw three-axis acceleration counts.
type Accelerometer interface {
	Connected() bool
	Acceleration() (ax, ay, az int16, err error)
}

// EchoTimer measures the round trip of an ultrasonic ping.
// A ping that never returns yields a zero duration, not an error.
type EchoTimer interface {
	Echo() (time.Duration, error)
}

// Hygrometer reads relative humidity in percent.
type Hygrometer interface {
	Humidity() (float32, error)
}

// TextDisplay shows whole lines of text on a character display.
type TextDisplay interface {
	Show(lines []string) error
}

// OutputFunc adapts a plain function to DigitalOutput.
type OutputFunc func(high bool)

// Set calls f(high).
func (f OutputFunc) Set(high bool) { f(high) }

// InputFunc adapts a plain function to DigitalInput.
type InputFunc func() bool

// Get calls f().
func (f InputFunc) Get() bool { return f() }

type inverted struct {
	in DigitalInput
}

// Inverted returns an input that reads true when in reads false. Use it for
// switches wired to ground with a pull-up resistor.
func Inverted(in DigitalInput) DigitalInput {
	return inverted{in: in}
}

func (i inverted) Get() bool { return !i.in.Get() }
