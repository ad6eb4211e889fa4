//go:build tinygo

//go:generate tinygo flash -target=esp32-coreboard-v2

package main

import (
	"context"
	"machine"
	"sync/atomic"
	"time"

	"github.com/itohio/fieldwatch/pkg/console"
	"github.com/itohio/fieldwatch/pkg/hal"
	"github.com/itohio/fieldwatch/pkg/monitor"
	"github.com/itohio/fieldwatch/pkg/ranging"
	"github.com/itohio/fieldwatch/pkg/telemetry"
	"tinygo.org/x/drivers/buzzer"
	"tinygo.org/x/drivers/ds18b20"
	"tinygo.org/x/drivers/mpu6050"
	"tinygo.org/x/drivers/onewire"
)

var (
	boot   time.Time
	record [96]byte
)

func main() {
	boot = time.Now()
	log := console.New(machine.Serial)

	for _, p := range []machine.Pin{PIN_LED_GREEN, PIN_LED_YELLOW, PIN_LED_RED, PIN_RELAY, PIN_TRIG} {
		p.Configure(machine.PinConfig{Mode: machine.PinOutput})
	}
	PIN_ECHO.Configure(machine.PinConfig{Mode: machine.PinInput})

	machine.I2C0.Configure(machine.I2CConfig{SDA: PIN_SDA, SCL: PIN_SCL})
	mpu := mpu6050.New(machine.I2C0)
	if err := mpu.Configure(); err != nil {
		log.Warn("mpu6050 configure failed", "err", err)
	}

	probe := ds18b20.New(onewire.New(PIN_ONEWIRE))

	sensors := monitor.Sensors{
		Temperature: thermometer{dev: probe},
		Motion:      accelerometer{dev: mpu},
		Range:       ranging.NewUltrasonic(hal.OutputFunc(PIN_TRIG.Set), hal.InputFunc(PIN_ECHO.Get)),
	}
	outputs := monitor.Outputs{
		Green:  hal.OutputFunc(PIN_LED_GREEN.Set),
		Yellow: hal.OutputFunc(PIN_LED_YELLOW.Set),
		Red:    hal.OutputFunc(PIN_LED_RED.Set),
		Buzzer: newToneBuzzer(PIN_BUZZER),
		Relay:  hal.OutputFunc(PIN_RELAY.Set),
		ToneHz: monitor.DefaultToneHz,
	}

	m := monitor.New(sensors, outputs, monitor.DefaultThresholds(), log)
	if err := m.Init(); err != nil {
		halt()
	}

	// The temperature conversion takes most of the period.
	period := monitor.DefaultPeriod - CONVERSION_TIME_MS*time.Millisecond
	m.Run(context.Background(), period, printStatus)
}

// printStatus writes the record line for s after the human log lines.
func printStatus(s monitor.Status) {
	b := telemetry.AppendFormat(record[:0], telemetry.FromStatus(s, time.Since(boot)))
	b = append(b, '\n')
	machine.Serial.Write(b)
}

// halt keeps the outputs in their safe state forever.
func halt() {
	for {
		time.Sleep(time.Hour)
	}
}

type thermometer struct {
	dev ds18b20.Device
}

// ReadCelsius starts a conversion and waits for it. A probe missing from
// the bus fails the read.
func (t thermometer) ReadCelsius() (float32, error) {
	t.dev.RequestTemperature(nil)
	time.Sleep(CONVERSION_TIME_MS * time.Millisecond)
	milli, err := t.dev.ReadTemperature(nil)
	if err != nil {
		return hal.Disconnected, err
	}
	return float32(milli) / 1000, nil
}

type accelerometer struct {
	dev mpu6050.Device
}

func (a accelerometer) Connected() bool {
	return a.dev.Connected()
}

// Acceleration converts the driver's micro-g to counts at the ±2g range.
func (a accelerometer) Acceleration() (ax, ay, az int16, err error) {
	x, y, z := a.dev.ReadAcceleration()
	return counts(x), counts(y), counts(z), nil
}

func counts(ug int32) int16 {
	c := int64(ug) * monitor.CountsPerG / 1000000
	if c > 32767 {
		c = 32767
	} else if c < -32768 {
		c = -32768
	}
	return int16(c)
}

// toneBuzzer plays the requested tone in short bursts from its own
// goroutine so the monitor loop never blocks on it.
type toneBuzzer struct {
	dev buzzer.Device
	hz  atomic.Uint32
}

func newToneBuzzer(pin machine.Pin) *toneBuzzer {
	pin.Configure(machine.PinConfig{Mode: machine.PinOutput})
	b := &toneBuzzer{dev: buzzer.New(pin)}
	go b.loop()
	return b
}

func (b *toneBuzzer) Tone(hz uint32) { b.hz.Store(hz) }

func (b *toneBuzzer) Silence() { b.hz.Store(0) }

func (b *toneBuzzer) loop() {
	for {
		hz := b.hz.Load()
		if hz == 0 {
			b.dev.Off()
			time.Sleep(50 * time.Millisecond)
			continue
		}
		b.dev.Tone(float64(hz), 0.125)
	}
}
