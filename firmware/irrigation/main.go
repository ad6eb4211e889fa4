//go:build tinygo

//go:generate tinygo flash -target=esp32-coreboard-v2

package main

import (
	"context"
	"machine"
	"time"

	"github.com/itohio/fieldwatch/pkg/console"
	"github.com/itohio/fieldwatch/pkg/hal"
	"github.com/itohio/fieldwatch/pkg/irrigation"
	"github.com/itohio/fieldwatch/pkg/telemetry"
	"tinygo.org/x/drivers/dht"
	"tinygo.org/x/drivers/hd44780i2c"
)

var (
	boot   time.Time
	record [96]byte
)

func main() {
	boot = time.Now()
	log := console.New(machine.Serial)

	PIN_PUMP.Configure(machine.PinConfig{Mode: machine.PinOutput})
	PIN_PHOSPHORUS.Configure(machine.PinConfig{Mode: machine.PinInputPullup})
	PIN_POTASSIUM.Configure(machine.PinConfig{Mode: machine.PinInputPullup})

	machine.InitADC()
	ph := machine.ADC{Pin: PIN_PH}
	ph.Configure(machine.ADCConfig{})

	machine.I2C0.Configure(machine.I2CConfig{SDA: PIN_SDA, SCL: PIN_SCL})
	lcd := hd44780i2c.New(machine.I2C0, LCD_ADDR)
	var display hal.TextDisplay
	if err := lcd.Configure(hd44780i2c.Config{Width: irrigation.Columns, Height: irrigation.Rows}); err != nil {
		log.Warn("lcd configure failed", "err", err)
	} else {
		lcd.BacklightOn(true)
		display = &screen{dev: &lcd}
	}

	sensors := irrigation.Sensors{
		Humidity:   hygrometer{dev: dht.New(PIN_DHT, dht.DHT22)},
		PH:         adc12{adc: ph},
		Phosphorus: hal.Inverted(hal.InputFunc(PIN_PHOSPHORUS.Get)),
		Potassium:  hal.Inverted(hal.InputFunc(PIN_POTASSIUM.Get)),
	}

	c := irrigation.New(sensors, hal.OutputFunc(PIN_PUMP.Set), display, irrigation.DefaultSettings(), log)
	if err := c.Init(); err != nil {
		halt()
	}

	c.Run(context.Background(), irrigation.DefaultPeriod, printState)
}

// printState writes the plotter line and the record line for s.
func printState(s irrigation.State) {
	b := append(record[:0], irrigation.PlotterLine(s)...)
	b = append(b, '\n')
	b = telemetry.AppendFormat(b, telemetry.FromState(s, time.Since(boot)))
	b = append(b, '\n')
	machine.Serial.Write(b)
}

// halt keeps the pump off forever.
func halt() {
	PIN_PUMP.Low()
	for {
		time.Sleep(time.Hour)
	}
}

type hygrometer struct {
	dev dht.Device
}

// Humidity returns percent; the driver reports tenths.
func (h hygrometer) Humidity() (float32, error) {
	v, err := h.dev.Humidity()
	if err != nil {
		return 0, err
	}
	return float32(v) / 10, nil
}

// adc12 scales the 16-bit machine reading to the 12-bit range the
// controller expects.
type adc12 struct {
	adc machine.ADC
}

func (a adc12) Get() uint16 {
	return a.adc.Get() >> 4
}

type screen struct {
	dev *hd44780i2c.Device
}

// Show rewrites every row in place, blanking what a shorter line leaves.
func (s *screen) Show(lines []string) error {
	var row [irrigation.Columns]byte
	for y := range irrigation.Rows {
		n := 0
		if y < len(lines) {
			n = copy(row[:], lines[y])
		}
		for i := n; i < len(row); i++ {
			row[i] = ' '
		}
		s.dev.SetCursor(0, uint8(y))
		s.dev.Print(row[:])
	}
	return nil
}
