package irrigation

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/chewxy/math32"
	"github.com/itohio/fieldwatch/pkg/console"
	"github.com/itohio/fieldwatch/pkg/hal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPumpShouldRun(t *testing.T) {
	tests := []struct {
		name string
		r    Readings
		want bool
	}{
		{"dry with nutrients", Readings{Humidity: 40, Phosphorus: true, Potassium: true}, true},
		{"no potassium", Readings{Humidity: 40, Phosphorus: true, Potassium: false}, false},
		{"no phosphorus", Readings{Humidity: 40, Phosphorus: false, Potassium: true}, false},
		{"no nutrients", Readings{Humidity: 10}, false},
		{"at threshold", Readings{Humidity: 50, Phosphorus: true, Potassium: true}, false},
		{"just below threshold", Readings{Humidity: 49.9, Phosphorus: true, Potassium: true}, true},
		{"wet", Readings{Humidity: 80, Phosphorus: true, Potassium: true}, false},
		{"sensor failed", Readings{Humidity: math32.NaN(), Phosphorus: true, Potassium: true}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PumpShouldRun(tt.r, DefaultDryBelow))
		})
	}
}

func TestSimulatedPH(t *testing.T) {
	tests := []struct {
		name  string
		raw   uint16
		scale Scale
		want  float32
	}{
		{"fine zero", 0, ScaleFine, 0},
		{"fine top", 4095, ScaleFine, 14},
		{"fine middle", 2048, ScaleFine, 7.0},
		{"fine truncates", 4000, ScaleFine, 13.6},
		{"fine clamps", 5000, ScaleFine, 14},
		{"coarse zero", 0, ScaleCoarse, 0},
		{"coarse top", 4095, ScaleCoarse, 14},
		{"coarse middle", 2048, ScaleCoarse, 7},
		{"coarse truncates", 4000, ScaleCoarse, 13},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, SimulatedPH(tt.raw, tt.scale), 1e-4)
		})
	}
}

func TestScale(t *testing.T) {
	assert.Equal(t, ScaleCoarse, ParseScale("coarse"))
	assert.Equal(t, ScaleFine, ParseScale("fine"))
	assert.Equal(t, ScaleFine, ParseScale(""))
	assert.Equal(t, "coarse", ScaleCoarse.String())
	assert.Equal(t, "fine", ScaleFine.String())
}

func TestRender(t *testing.T) {
	tests := []struct {
		name string
		s    State
		want []string
	}{
		{
			name: "low humidity without potassium",
			s: State{
				Readings: Readings{Humidity: 45, PH: 7, Phosphorus: true},
				DryBelow: 50,
			},
			want: []string{"U:45% pH:7.0", "P:YES  K:NO", "Pump: OFF", MsgLowHumidity},
		},
		{
			name: "irrigating",
			s: State{
				Readings: Readings{Humidity: 30.4, PH: 6.5, Phosphorus: true, Potassium: true},
				Pump:     true,
				DryBelow: 50,
			},
			want: []string{"U:30% pH:6.5", "P:YES  K:YES", "Pump: ON", MsgIrrigating},
		},
		{
			name: "wet",
			s: State{
				Readings: Readings{Humidity: 72, PH: 14},
				DryBelow: 50,
			},
			want: []string{"U:72% pH:14.0", "P:NO   K:NO", "Pump: OFF", MsgOK},
		},
		{
			name: "sensor fault",
			s: State{
				Readings: Readings{Humidity: math32.NaN(), PH: 0},
				DryBelow: 50,
			},
			want: []string{"U:nan% pH:0.0", "P:NO   K:NO", "Pump: OFF", MsgSensorFault},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Render(tt.s)
			require.Len(t, got, Rows)
			for i, line := range got {
				assert.Len(t, line, Columns)
				assert.Equal(t, tt.want[i], strings.TrimRight(line, " "))
			}
		})
	}
}

func TestPlotterLine(t *testing.T) {
	s := State{Readings: Readings{Humidity: 45, PH: 7}, Pump: true}
	assert.Equal(t, "Humidity:45.0 pH:7.0 Pump:1", PlotterLine(s))

	s = State{Readings: Readings{Humidity: math32.NaN(), PH: 3.3}}
	assert.Equal(t, "Humidity:nan pH:3.3 Pump:0", PlotterLine(s))
}

type rig struct {
	humidity *hal.FakeHygrometer
	ph       *hal.FakeAnalog
	p, k     *hal.Pin
	pump     *hal.Pin
	display  *hal.FakeDisplay
	log      *console.Recorder
	ctl      *Controller
}

func newRig() *rig {
	r := &rig{
		humidity: &hal.FakeHygrometer{},
		ph:       &hal.FakeAnalog{},
		p:        &hal.Pin{},
		k:        &hal.Pin{},
		pump:     &hal.Pin{},
		display:  &hal.FakeDisplay{},
		log:      &console.Recorder{},
	}
	r.humidity.Set(60)
	r.ph.Set(2048)
	r.ctl = New(
		Sensors{Humidity: r.humidity, PH: r.ph, Phosphorus: r.p, Potassium: r.k},
		r.pump, r.display, DefaultSettings(), r.log,
	)
	return r
}

func TestController_Init(t *testing.T) {
	r := newRig()
	r.pump.Set(true)

	require.NoError(t, r.ctl.Init())
	assert.False(t, r.pump.Get())
	assert.Equal(t, []string{"Irrigation System", "Starting..."}, r.display.Lines())

	ctl := New(Sensors{}, r.pump, nil, Settings{}, nil)
	assert.ErrorIs(t, ctl.Init(), ErrHumiditySensorMissing)
	assert.EqualValues(t, DefaultDryBelow, ctl.Settings().DryBelow)
}

func TestController_Cycle(t *testing.T) {
	tests := []struct {
		name     string
		humidity float32
		fail     bool
		p, k     bool
		wantPump bool
		wantMsg  string
	}{
		{"dry with nutrients", 40, false, true, true, true, MsgIrrigating},
		{"dry without potassium", 40, false, true, false, false, MsgLowHumidity},
		{"wet", 60, false, true, true, false, MsgOK},
		{"sensor failure", 40, true, true, true, false, MsgSensorFault},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRig()
			r.humidity.Set(tt.humidity)
			if tt.fail {
				r.humidity.Fail(hal.ErrTimeout)
			}
			r.p.Set(tt.p)
			r.k.Set(tt.k)

			s := r.ctl.Cycle()

			assert.Equal(t, tt.wantPump, s.Pump)
			assert.Equal(t, tt.wantPump, r.pump.Get())
			lines := r.display.Lines()
			require.Len(t, lines, Rows)
			assert.Equal(t, tt.wantMsg, strings.TrimRight(lines[3], " "))
			assert.InDelta(t, 7.0, s.Readings.PH, 1e-4)
			if tt.fail {
				assert.Contains(t, r.log.Messages(), "humidity sensor read failed")
			}
		})
	}
}

func TestController_PumpFollowsEachCycle(t *testing.T) {
	r := newRig()
	r.p.Set(true)
	r.k.Set(true)
	r.humidity.Set(30)
	require.True(t, r.ctl.Cycle().Pump)

	r.humidity.Set(55)
	assert.False(t, r.ctl.Cycle().Pump)
	assert.False(t, r.pump.Get())

	r.humidity.Set(30)
	r.k.Set(false)
	assert.False(t, r.ctl.Cycle().Pump)
}

func TestController_InvertedSwitches(t *testing.T) {
	p, k := &hal.Pin{}, &hal.Pin{}
	h := &hal.FakeHygrometer{}
	h.Set(20)
	pump := &hal.Pin{}

	ctl := New(Sensors{Humidity: h, Phosphorus: hal.Inverted(p), Potassium: hal.Inverted(k)}, pump, nil, DefaultSettings(), nil)
	assert.True(t, ctl.Cycle().Pump, "pulled-low switches read as present")

	p.Set(true)
	assert.False(t, ctl.Cycle().Pump)
}

type failingDisplay struct{}

func (failingDisplay) Show([]string) error { return errors.New("i2c nack") }

func TestController_DisplayFailure(t *testing.T) {
	log := &console.Recorder{}
	h := &hal.FakeHygrometer{}
	h.Set(20)
	ctl := New(Sensors{Humidity: h}, &hal.Pin{}, failingDisplay{}, DefaultSettings(), log)

	assert.NotPanics(t, func() { ctl.Cycle() })
	assert.Contains(t, log.Messages(), "display failed")
}

func TestController_Run(t *testing.T) {
	r := newRig()
	ctx, cancel := context.WithCancel(context.Background())

	n := 0
	err := r.ctl.Run(ctx, time.Millisecond, func(State) {
		n++
		if n == 2 {
			cancel()
		}
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 2, n)
}
