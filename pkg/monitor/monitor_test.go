package monitor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/itohio/fieldwatch/pkg/console"
	"github.com/itohio/fieldwatch/pkg/hal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rig struct {
	temp   *hal.FakeThermometer
	motion *hal.FakeAccelerometer
	echo   *hal.FakeEcho

	green, yellow, red, relay *hal.Pin
	buzzer                    *hal.ToneBuzzer

	log *console.Recorder
	mon *Monitor
}

// distanceEcho is the round trip for d cm.
func distanceEcho(cm float64) time.Duration {
	return time.Duration(cm*2/0.034) * time.Microsecond
}

func newRig() *rig {
	r := &rig{
		temp:   &hal.FakeThermometer{},
		motion: &hal.FakeAccelerometer{},
		echo:   &hal.FakeEcho{},
		green:  &hal.Pin{},
		yellow: &hal.Pin{},
		red:    &hal.Pin{},
		relay:  &hal.Pin{},
		buzzer: &hal.ToneBuzzer{},
		log:    &console.Recorder{},
	}
	r.temp.Set(25)
	r.motion.Set(0, 0, 8000)
	r.echo.Set(distanceEcho(100))

	r.mon = New(
		Sensors{Temperature: r.temp, Motion: r.motion, Range: r.echo},
		Outputs{Green: r.green, Yellow: r.yellow, Red: r.red, Buzzer: r.buzzer, Relay: r.relay},
		DefaultThresholds(),
		r.log,
	)
	return r
}

func (r *rig) pins() [5]bool {
	return [5]bool{r.green.Get(), r.yellow.Get(), r.red.Get(), r.relay.Get(), func() bool { a, _ := r.buzzer.State(); return a }()}
}

func TestMonitor_Init(t *testing.T) {
	r := newRig()
	r.relay.Set(false)
	r.red.Set(true)

	require.NoError(t, r.mon.Init())
	assert.True(t, r.relay.Get(), "relay energized after init")
	assert.False(t, r.red.Get())
	assert.Contains(t, r.log.Messages(), "system initialized, monitoring started")
}

func TestMonitor_InitMotionOffline(t *testing.T) {
	r := newRig()
	r.motion.SetOffline(true)

	err := r.mon.Init()
	assert.ErrorIs(t, err, ErrMotionSensorUnreachable)
	assert.Contains(t, r.log.Messages(), "motion sensor not connected, check wiring")
}

func TestMonitor_InitNoMotion(t *testing.T) {
	m := New(Sensors{}, Outputs{}, DefaultThresholds(), nil)
	assert.ErrorIs(t, m.Init(), ErrMotionSensorUnreachable)
}

func TestMonitor_Cycle(t *testing.T) {
	tests := []struct {
		name       string
		temp       float32
		accel      [3]int16
		distance   float64
		wantLamp   string
		wantBuzzer bool
		wantRelay  bool
		wantLog    string
	}{
		{
			name:      "normal",
			temp:      25,
			accel:     [3]int16{0, 0, 8000},
			distance:  100,
			wantLamp:  "green",
			wantRelay: true,
			wantLog:   "STATUS: NORMAL",
		},
		{
			name:      "warm",
			temp:      70,
			accel:     [3]int16{0, 0, 8000},
			distance:  100,
			wantLamp:  "yellow",
			wantRelay: true,
			wantLog:   "temperature above normal",
		},
		{
			name:       "critical temperature keeps relay",
			temp:       85,
			accel:      [3]int16{0, 0, 8000},
			distance:   100,
			wantLamp:   "red",
			wantBuzzer: true,
			wantRelay:  true,
			wantLog:    "ALERT: critical temperature",
		},
		{
			name:       "overheat cuts relay",
			temp:       90,
			accel:      [3]int16{0, 0, 8000},
			distance:   100,
			wantLamp:   "red",
			wantBuzzer: true,
			wantRelay:  false,
			wantLog:    "EMERGENCY: equipment shut down, overheating",
		},
		{
			name:       "heavy vibration cuts relay",
			temp:       25,
			accel:      [3]int16{32000, 32000, 16384},
			distance:   100,
			wantLamp:   "red",
			wantBuzzer: true,
			wantRelay:  false,
			wantLog:    "ALERT: critical vibration, stopping machine",
		},
		{
			name:      "moderate vibration",
			temp:      25,
			accel:     [3]int16{16384, 8000, 0},
			distance:  100,
			wantLamp:  "yellow",
			wantRelay: true,
			wantLog:   "vibration above normal",
		},
		{
			name:       "object too close",
			temp:       25,
			accel:      [3]int16{0, 0, 8000},
			distance:   3,
			wantLamp:   "red",
			wantBuzzer: true,
			wantRelay:  true,
			wantLog:    "ALERT: critical distance",
		},
		{
			name:      "object far",
			temp:      25,
			accel:     [3]int16{0, 0, 8000},
			distance:  220,
			wantLamp:  "yellow",
			wantRelay: true,
			wantLog:   "distance outside normal range",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRig()
			r.temp.Set(tt.temp)
			r.motion.Set(tt.accel[0], tt.accel[1], tt.accel[2])
			r.echo.Set(distanceEcho(tt.distance))

			r.mon.Cycle()

			assert.Equal(t, tt.wantLamp == "green", r.green.Get())
			assert.Equal(t, tt.wantLamp == "yellow", r.yellow.Get())
			assert.Equal(t, tt.wantLamp == "red", r.red.Get())
			active, hz := r.buzzer.State()
			assert.Equal(t, tt.wantBuzzer, active)
			if active {
				assert.EqualValues(t, DefaultToneHz, hz)
			}
			assert.Equal(t, tt.wantRelay, r.relay.Get())
			assert.Contains(t, r.log.Messages(), tt.wantLog)
		})
	}
}

func TestMonitor_SensorFault(t *testing.T) {
	r := newRig()
	r.temp.Fail(hal.ErrDisconnected)

	s := r.mon.Cycle()

	assert.True(t, s.TemperatureFault)
	assert.Equal(t, Normal, s.Overall)
	assert.True(t, r.green.Get())
	assert.True(t, r.relay.Get())

	msgs := r.log.Messages()
	assert.Contains(t, msgs, "temperature sensor fault")
	assert.NotContains(t, msgs, "temperature")
	assert.NotContains(t, msgs, "ALERT: critical temperature")
}

func TestMonitor_SentinelReading(t *testing.T) {
	r := newRig()
	r.temp.Set(hal.Disconnected)

	s := r.mon.Cycle()
	assert.True(t, s.TemperatureFault)
	assert.Equal(t, Normal, s.Overall)
	assert.Contains(t, r.log.Messages(), "temperature sensor fault")
}

func TestMonitor_EchoTimeoutIsCritical(t *testing.T) {
	r := newRig()
	r.echo.Set(0)

	s := r.mon.Cycle()
	assert.Equal(t, Critical, s.Distance)
	assert.False(t, s.Cutoff)
}

func TestMonitor_MotionReadError(t *testing.T) {
	r := newRig()
	r.motion.SetOffline(true)

	s := r.mon.Cycle()
	assert.Zero(t, s.Readings.Vibration)
	assert.Contains(t, r.log.Messages(), "motion sensor read failed")
}

func TestMonitor_RangeReadError(t *testing.T) {
	r := newRig()
	r.echo.Fail(errors.New("bus"))

	s := r.mon.Cycle()
	assert.Equal(t, Critical, s.Distance)
	assert.Contains(t, r.log.Messages(), "range sensor read failed")

	// Same outcome as an echo timeout.
	timeout := newRig()
	timeout.echo.Set(0)
	assert.Equal(t, timeout.mon.Cycle(), s)
}

func TestMonitor_ApplyIdempotent(t *testing.T) {
	for _, temp := range []float32{25, 70, 85, 95} {
		r := newRig()
		r.temp.Set(temp)

		r.mon.Cycle()
		first := r.pins()
		r.mon.Cycle()
		assert.Equal(t, first, r.pins(), "t=%v", temp)
	}
}

func TestMonitor_RecoversAfterCritical(t *testing.T) {
	r := newRig()
	r.temp.Set(95)
	r.mon.Cycle()
	require.False(t, r.relay.Get())
	require.True(t, r.red.Get())

	r.temp.Set(25)
	s := r.mon.Cycle()
	assert.Equal(t, Normal, s.Overall)
	assert.True(t, r.relay.Get())
	assert.True(t, r.green.Get())
	assert.False(t, r.red.Get())
	active, _ := r.buzzer.State()
	assert.False(t, active)
}

func TestOutputs_NilFields(t *testing.T) {
	var o Outputs
	assert.NotPanics(t, func() {
		o.Safe()
		o.Apply(Status{Overall: Critical, Cutoff: true})
	})
}

func TestOutputs_ToneOverride(t *testing.T) {
	b := &hal.ToneBuzzer{}
	o := Outputs{Buzzer: b, ToneHz: 2000}
	o.Apply(Status{Overall: Critical})
	active, hz := b.State()
	assert.True(t, active)
	assert.EqualValues(t, 2000, hz)
}

func TestMonitor_Run(t *testing.T) {
	r := newRig()

	ctx, cancel := context.WithCancel(context.Background())
	var got []Status
	err := r.mon.Run(ctx, time.Millisecond, func(s Status) {
		got = append(got, s)
		if len(got) == 3 {
			cancel()
		}
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, got, 3)
	for _, s := range got {
		assert.Equal(t, Normal, s.Overall)
	}
}
