// Package ranging converts ultrasonic echo timing into distance and drives an
// HC-SR04 style trigger/echo pair.
package ranging

import (
	"time"

	"github.com/itohio/fieldwatch/pkg/hal"
)

const (
	// SoundSpeed is the speed of sound in cm per microsecond.
	SoundSpeed = 0.034

	// DefaultTimeout bounds the wait for an echo, matching pulseIn.
	DefaultTimeout = time.Second

	settleLow    = 2 * time.Microsecond
	triggerWidth = 10 * time.Microsecond
)

// DistanceCM converts an echo round trip into centimetres.
// The division by two accounts for the out-and-back path.
func DistanceCM(echo time.Duration) float32 {
	return float32(echo.Microseconds()) * SoundSpeed / 2
}

// Ultrasonic measures the echo pulse width on a trigger/echo pin pair.
type Ultrasonic struct {
	TriggerPin hal.DigitalOutput
	EchoPin    hal.DigitalInput
	Timeout    time.Duration

	// Now and Sleep default to the time package; tests replace them.
	Now   func() time.Time
	Sleep func(time.Duration)
}

var _ hal.EchoTimer = (*Ultrasonic)(nil)

// NewUltrasonic returns a sensor on the given pins with the default timeout.
func NewUltrasonic(trigger hal.DigitalOutput, echo hal.DigitalInput) *Ultrasonic {
	return &Ultrasonic{
		TriggerPin: trigger,
		EchoPin:    echo,
		Timeout:    DefaultTimeout,
	}
}

// Echo sends a trigger pulse and returns the width of the echo pulse.
// If no complete pulse arrives within Timeout it returns 0.
func (u *Ultrasonic) Echo() (time.Duration, error) {
	now, sleep := u.clock()
	timeout := u.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	u.TriggerPin.Set(false)
	sleep(settleLow)
	u.TriggerPin.Set(true)
	sleep(triggerWidth)
	u.TriggerPin.Set(false)

	deadline := now().Add(timeout)

	// Wait for any previous pulse to end, then for the rising edge.
	for u.EchoPin.Get() {
		if now().After(deadline) {
			return 0, nil
		}
	}
	for !u.EchoPin.Get() {
		if now().After(deadline) {
			return 0, nil
		}
	}

	start := now()
	for u.EchoPin.Get() {
		if now().After(deadline) {
			return 0, nil
		}
	}
	return now().Sub(start), nil
}

func (u *Ultrasonic) clock() (func() time.Time, func(time.Duration)) {
	now, sleep := u.Now, u.Sleep
	if now == nil {
		now = time.Now
	}
	if sleep == nil {
		sleep = time.Sleep
	}
	return now, sleep
}
