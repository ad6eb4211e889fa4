package monitor

import (
	"context"
	"errors"
	"time"

	"github.com/itohio/fieldwatch/pkg/console"
	"github.com/itohio/fieldwatch/pkg/hal"
	"github.com/itohio/fieldwatch/pkg/ranging"
)

// DefaultPeriod is the cycle period of the industrial monitor.
const DefaultPeriod = time.Second

// ErrMotionSensorUnreachable is returned by Init when the accelerometer does
// not answer. The monitor cannot run without it.
var ErrMotionSensorUnreachable = errors.New("motion sensor unreachable")

// Sensors are the inputs of the industrial monitor.
type Sensors struct {
	Temperature hal.Thermometer
	Motion      hal.Accelerometer
	Range       hal.EchoTimer
}

// Monitor runs the read → classify → actuate cycle.
type Monitor struct {
	sensors    Sensors
	out        Outputs
	thresholds Thresholds
	log        console.Logger
}

// New creates a monitor. A nil logger discards output.
func New(sensors Sensors, out Outputs, th Thresholds, log console.Logger) *Monitor {
	if log == nil {
		log = console.Discard
	}
	return &Monitor{
		sensors:    sensors,
		out:        out,
		thresholds: th,
		log:        log,
	}
}

// Thresholds returns the limits in use.
func (m *Monitor) Thresholds() Thresholds {
	return m.thresholds
}

// Init puts the outputs in a safe state and checks the required peripherals.
// A non-nil error is fatal; the caller decides whether to retry or halt.
func (m *Monitor) Init() error {
	m.out.Safe()
	if m.sensors.Motion == nil || !m.sensors.Motion.Connected() {
		m.log.Error("motion sensor not connected, check wiring")
		return ErrMotionSensorUnreachable
	}
	m.log.Info("system initialized, monitoring started")
	return nil
}

// Cycle performs one full read, classify and actuate pass.
func (m *Monitor) Cycle() Status {
	r := m.read()
	s := Evaluate(r, m.thresholds)
	m.out.Apply(s)
	m.report(s)
	return s
}

// Run calls Cycle every period until ctx is done. onStatus, if not nil,
// receives every cycle's status.
func (m *Monitor) Run(ctx context.Context, period time.Duration, onStatus func(Status)) error {
	if period <= 0 {
		period = DefaultPeriod
	}

	for {
		s := m.Cycle()
		if onStatus != nil {
			onStatus(s)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(period):
		}
	}
}

func (m *Monitor) read() Readings {
	var r Readings

	r.Temperature = hal.Disconnected
	if m.sensors.Temperature != nil {
		t, err := m.sensors.Temperature.ReadCelsius()
		if err == nil {
			r.Temperature = t
		}
	}

	// A motion read failure reports zero vibration; Init already refused to
	// start without the device.
	if m.sensors.Motion != nil {
		ax, ay, az, err := m.sensors.Motion.Acceleration()
		if err != nil {
			m.log.Warn("motion sensor read failed", "err", err)
		} else {
			r.Vibration = VibrationMagnitude(ax, ay, az)
		}
	}

	// A failed range read is handled like a missing echo: distance 0, which
	// classifies Critical. The HC-SR04 has no fault signal of its own.
	if m.sensors.Range != nil {
		echo, err := m.sensors.Range.Echo()
		if err != nil {
			m.log.Warn("range sensor read failed", "err", err)
			echo = 0
		}
		r.Distance = ranging.DistanceCM(echo)
	}

	return r
}

func (m *Monitor) report(s Status) {
	if s.TemperatureFault {
		m.log.Warn("temperature sensor fault")
	} else {
		m.log.Info("temperature", "value", s.Readings.Temperature, "unit", "C")
		switch s.Temperature {
		case Critical:
			m.log.Warn("ALERT: critical temperature")
			if s.Shutdown {
				m.log.Error("EMERGENCY: equipment shut down, overheating")
			}
		case Warning:
			m.log.Warn("temperature above normal")
		}
	}

	m.log.Info("vibration", "value", s.Readings.Vibration, "unit", "g")
	switch s.Vibration {
	case Critical:
		m.log.Error("ALERT: critical vibration, stopping machine")
	case Warning:
		m.log.Warn("vibration above normal")
	}

	m.log.Info("distance", "value", s.Readings.Distance, "unit", "cm")
	switch s.Distance {
	case Critical:
		m.log.Warn("ALERT: critical distance")
	case Warning:
		m.log.Warn("distance outside normal range")
	}

	switch s.Overall {
	case Critical:
		m.log.Info("STATUS: CRITICAL", "lamp", "red", "buzzer", true, "relay", !s.Cutoff)
	case Warning:
		m.log.Info("STATUS: WARNING", "lamp", "yellow", "buzzer", false, "relay", !s.Cutoff)
	default:
		m.log.Info("STATUS: NORMAL", "lamp", "green", "buzzer", false, "relay", !s.Cutoff)
	}
}
