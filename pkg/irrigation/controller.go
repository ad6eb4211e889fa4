package irrigation

import (
	"context"
	"errors"
	"time"

	"github.com/chewxy/math32"
	"github.com/itohio/fieldwatch/pkg/console"
	"github.com/itohio/fieldwatch/pkg/hal"
)

// DefaultPeriod is the cycle period of the irrigation controller.
const DefaultPeriod = 2 * time.Second

// ErrHumiditySensorMissing is returned by Init when no hygrometer is wired.
var ErrHumiditySensorMissing = errors.New("humidity sensor missing")

// Sensors are the controller inputs. Phosphorus and Potassium must already
// report true for "present"; wrap pull-up switches with hal.Inverted.
type Sensors struct {
	Humidity   hal.Hygrometer
	PH         hal.AnalogInput
	Phosphorus hal.DigitalInput
	Potassium  hal.DigitalInput
}

// Settings tune the controller.
type Settings struct {
	DryBelow float32
	Scale    Scale
}

// DefaultSettings returns the factory settings.
func DefaultSettings() Settings {
	return Settings{DryBelow: DefaultDryBelow, Scale: ScaleFine}
}

// State is the outcome of one cycle.
type State struct {
	Readings Readings
	Pump     bool
	DryBelow float32
}

// Controller runs the read → decide → actuate → display cycle.
type Controller struct {
	sensors  Sensors
	pump     hal.DigitalOutput
	display  hal.TextDisplay
	settings Settings
	log      console.Logger
}

// New creates a controller. display and log may be nil.
func New(sensors Sensors, pump hal.DigitalOutput, display hal.TextDisplay, settings Settings, log console.Logger) *Controller {
	if log == nil {
		log = console.Discard
	}
	if settings.DryBelow <= 0 {
		settings.DryBelow = DefaultDryBelow
	}
	return &Controller{
		sensors:  sensors,
		pump:     pump,
		display:  display,
		settings: settings,
		log:      log,
	}
}

// Settings returns the settings in use.
func (c *Controller) Settings() Settings {
	return c.settings
}

// Init switches the pump off and shows a splash screen.
func (c *Controller) Init() error {
	if c.pump != nil {
		c.pump.Set(false)
	}
	if c.display != nil {
		if err := c.display.Show([]string{"Irrigation System", "Starting..."}); err != nil {
			c.log.Warn("display failed", "err", err)
		}
	}
	if c.sensors.Humidity == nil {
		c.log.Error("humidity sensor not configured")
		return ErrHumiditySensorMissing
	}
	c.log.Info("irrigation controller started")
	return nil
}

// Cycle reads every sensor, decides the pump and refreshes the display.
func (c *Controller) Cycle() State {
	r := c.read()
	s := State{
		Readings: r,
		Pump:     PumpShouldRun(r, c.settings.DryBelow),
		DryBelow: c.settings.DryBelow,
	}

	if c.pump != nil {
		c.pump.Set(s.Pump)
	}
	if c.display != nil {
		if err := c.display.Show(Render(s)); err != nil {
			c.log.Warn("display failed", "err", err)
		}
	}
	c.report(s)
	return s
}

// Run calls Cycle every period until ctx is done.
func (c *Controller) Run(ctx context.Context, period time.Duration, onState func(State)) error {
	if period <= 0 {
		period = DefaultPeriod
	}

	for {
		s := c.Cycle()
		if onState != nil {
			onState(s)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(period):
		}
	}
}

func (c *Controller) read() Readings {
	r := Readings{Humidity: math32.NaN()}

	if c.sensors.Humidity != nil {
		h, err := c.sensors.Humidity.Humidity()
		if err != nil {
			c.log.Warn("humidity sensor read failed", "err", err)
		} else {
			r.Humidity = h
		}
	}
	if c.sensors.PH != nil {
		r.PH = SimulatedPH(c.sensors.PH.Get(), c.settings.Scale)
	}
	if c.sensors.Phosphorus != nil {
		r.Phosphorus = c.sensors.Phosphorus.Get()
	}
	if c.sensors.Potassium != nil {
		r.Potassium = c.sensors.Potassium.Get()
	}
	return r
}

func (c *Controller) report(s State) {
	r := s.Readings
	c.log.Info("readings",
		"humidity", r.Humidity,
		"ph", r.PH,
		"phosphorus", r.Phosphorus,
		"potassium", r.Potassium,
	)
	if s.Pump {
		c.log.Info("pump on, irrigating")
	} else {
		c.log.Info("pump off", "reason", Message(s))
	}
}
