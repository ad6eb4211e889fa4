package link

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/chewxy/math32"
	"github.com/itohio/fieldwatch/pkg/config"
	"github.com/itohio/fieldwatch/pkg/console"
	"github.com/itohio/fieldwatch/pkg/hal"
	"github.com/itohio/fieldwatch/pkg/irrigation"
	"github.com/itohio/fieldwatch/pkg/monitor"
	"github.com/itohio/fieldwatch/pkg/ranging"
	"github.com/itohio/fieldwatch/pkg/telemetry"
)

// Mock simulates a board: the real controller runs against fake sensors
// whose values swing slowly through every severity band.
type Mock struct {
	cfg  *config.Config
	kind telemetry.Kind
	log  console.Logger

	reports   chan telemetry.Report
	mu        sync.RWMutex
	cancel    context.CancelFunc
	done      chan struct{}
	connected bool

	rng    *rand.Rand
	period time.Duration // board cycle period, advances the simulated uptime

	// industrial board
	temp   *hal.FakeThermometer
	motion *hal.FakeAccelerometer
	echo   *hal.FakeEcho
	mon    *monitor.Monitor

	// irrigation board
	humidity *hal.FakeHygrometer
	ph       *hal.FakeAnalog
	p, k     *hal.Pin // raw switch levels
	lowOn    bool     // switches pull low when present
	ctl      *irrigation.Controller
}

// NewMock creates a simulated board of cfg.Mock.Kind. Controller log output
// goes to log; nil discards it.
func NewMock(cfg *config.Config, log console.Logger) *Mock {
	if cfg == nil {
		cfg = config.Default()
	}
	if log == nil {
		log = console.Discard
	}

	m := &Mock{
		cfg:     cfg,
		kind:    telemetry.Kind(cfg.Mock.Kind),
		log:     log,
		reports: make(chan telemetry.Report, DefaultBufferSize),
		rng:     rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x5eed)),
	}
	if !m.kind.Valid() {
		m.kind = telemetry.KindIndustrial
	}

	switch m.kind {
	case telemetry.KindIrrigation:
		m.period = cfg.Irrigation.Period
		if m.period <= 0 {
			m.period = irrigation.DefaultPeriod
		}
		m.humidity = &hal.FakeHygrometer{}
		m.ph = &hal.FakeAnalog{}
		m.p, m.k = &hal.Pin{}, &hal.Pin{}
		m.lowOn = cfg.Irrigation.SwitchesActiveLow
		var p, k hal.DigitalInput = m.p, m.k
		if m.lowOn {
			p, k = hal.Inverted(p), hal.Inverted(k)
		}
		m.ctl = irrigation.New(
			irrigation.Sensors{Humidity: m.humidity, PH: m.ph, Phosphorus: p, Potassium: k},
			&hal.Pin{}, &hal.FakeDisplay{}, cfg.Irrigation.Settings(), log,
		)
	default:
		m.period = cfg.Industrial.Period
		if m.period <= 0 {
			m.period = monitor.DefaultPeriod
		}
		m.temp = &hal.FakeThermometer{}
		m.motion = &hal.FakeAccelerometer{}
		m.echo = &hal.FakeEcho{}
		m.mon = monitor.New(
			monitor.Sensors{Temperature: m.temp, Motion: m.motion, Range: m.echo},
			monitor.Outputs{
				Green: &hal.Pin{}, Yellow: &hal.Pin{}, Red: &hal.Pin{},
				Buzzer: &hal.ToneBuzzer{}, Relay: &hal.Pin{},
				ToneHz: cfg.Industrial.ToneHz,
			},
			cfg.Industrial.Thresholds(), log,
		)
	}

	return m
}

// Kind returns the simulated board kind.
func (m *Mock) Kind() telemetry.Kind {
	return m.kind
}

// Connect starts the simulated board.
func (m *Mock) Connect() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.connected {
		return ErrAlreadyConnected
	}
	if m.done != nil {
		return ErrClosed
	}

	m.simulate(0)
	if m.mon != nil {
		if err := m.mon.Init(); err != nil {
			return err
		}
	}
	if m.ctl != nil {
		if err := m.ctl.Init(); err != nil {
			return err
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.done = make(chan struct{})
	m.connected = true

	go m.generateReports(ctx, m.done)

	return nil
}

// Close stops the simulated board and waits for it to finish.
func (m *Mock) Close() error {
	m.mu.Lock()
	if !m.connected {
		m.mu.Unlock()
		return nil
	}
	m.cancel()
	m.connected = false
	done := m.done
	m.mu.Unlock()

	<-done
	return nil
}

// Reports returns the channel for reading reports.
func (m *Mock) Reports() <-chan telemetry.Report {
	return m.reports
}

// IsConnected returns whether the device is currently connected.
func (m *Mock) IsConnected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.connected
}

func (m *Mock) generateReports(ctx context.Context, done chan struct{}) {
	defer close(done)
	defer close(m.reports)

	ticker := time.NewTicker(m.cfg.Mock.SampleRate)
	defer ticker.Stop()

	// One tick is one board cycle; uptime counts cycles, not wall time.
	var uptime time.Duration
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			uptime += m.period
			report := m.step(uptime)
			report.Time = now
			select {
			case m.reports <- report:
			case <-ctx.Done():
				return
			default:
				// Channel full, skip
			}
		}
	}
}

// step advances the simulation to elapsed and runs one controller cycle.
func (m *Mock) step(elapsed time.Duration) telemetry.Report {
	m.simulate(elapsed)
	if m.mon != nil {
		return telemetry.FromStatus(m.mon.Cycle(), elapsed)
	}
	return telemetry.FromState(m.ctl.Cycle(), elapsed)
}

// simulate sets the fake sensors for the given time since start.
func (m *Mock) simulate(elapsed time.Duration) {
	drift := m.cfg.Mock.Drift
	if drift <= 0 {
		drift = time.Minute
	}
	phase := 2 * math32.Pi * float32(elapsed.Seconds()/drift.Seconds())

	if m.mon != nil {
		m.simulateIndustrial(phase)
	} else {
		m.simulateIrrigation(phase)
	}
}

func (m *Mock) simulateIndustrial(phase float32) {
	// A disconnected probe now and then.
	if m.rng.Float32() < 0.01 {
		m.temp.Fail(hal.ErrDisconnected)
	} else {
		m.temp.Set(m.noisy(55 + 40*math32.Sin(phase)))
	}

	g := m.noisy(1.3 + 1.1*math32.Sin(1.7*phase+1))
	if g < 0 {
		g = 0
	}
	m.motion.Set(0, counts(g*0.6), counts(g*0.8))

	cm := m.noisy(125 + 140*math32.Sin(0.6*phase+2))
	if cm < 0 {
		cm = 0
	}
	m.echo.Set(echoFor(cm))
}

func (m *Mock) simulateIrrigation(phase float32) {
	if m.rng.Float32() < 0.01 {
		m.humidity.Fail(hal.ErrTimeout)
	} else {
		m.humidity.Set(clamp(m.noisy(55+30*math32.Sin(phase)), 0, 100))
	}
	m.ph.Set(uint16(clamp(2048+1600*math32.Sin(0.5*phase), 0, irrigation.ADCMax)))
	m.p.Set((math32.Sin(0.3*phase) > -0.5) != m.lowOn)
	m.k.Set((math32.Cos(0.2*phase) > -0.5) != m.lowOn)
}

func (m *Mock) noisy(v float32) float32 {
	return v * (1 + float32(m.cfg.Mock.NoiseLevel)*(2*m.rng.Float32()-1))
}

func counts(g float32) int16 {
	return int16(clamp(g*monitor.CountsPerG, -32768, 32767))
}

// echoFor is the inverse of ranging.DistanceCM.
func echoFor(cm float32) time.Duration {
	return time.Duration(cm*2/ranging.SoundSpeed) * time.Microsecond
}

func clamp(v, lo, hi float32) float32 {
	return math32.Max(lo, math32.Min(hi, v))
}
