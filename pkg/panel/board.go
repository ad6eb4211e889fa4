package panel

import (
	"image/color"
	"strings"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"
	"github.com/itohio/fieldwatch/pkg/irrigation"
	"github.com/itohio/fieldwatch/pkg/monitor"
	"github.com/itohio/fieldwatch/pkg/telemetry"
)

// Board mirrors the physical outputs of one controller: the three lamps and
// buzzer of the industrial board, or the pump and 20x4 display of the
// irrigation board.
type Board struct {
	kind     telemetry.Kind
	dryBelow float32

	green, yellow, red *canvas.Circle
	output             *canvas.Circle
	outputLabel        *widget.Label
	summary            *widget.Label
	lcd                *widget.TextGrid

	content fyne.CanvasObject
}

// NewBoard creates a board view for kind. dryBelow is the pump threshold
// shown on the irrigation display.
func NewBoard(kind telemetry.Kind, dryBelow float32) *Board {
	b := &Board{
		kind:        kind,
		dryBelow:    dryBelow,
		green:       lamp(),
		yellow:      lamp(),
		red:         lamp(),
		output:      lamp(),
		outputLabel: widget.NewLabel(""),
		summary:     widget.NewLabel("waiting for data"),
		lcd:         widget.NewTextGrid(),
	}

	var lamps fyne.CanvasObject
	if kind == telemetry.KindIrrigation {
		b.outputLabel.SetText("Pump")
		b.lcd.SetText(strings.Join(blankLCD(), "\n"))
		lamps = container.NewHBox(sized(b.output), b.outputLabel)
		b.content = container.NewVBox(lamps, b.lcd, b.summary)
	} else {
		b.outputLabel.SetText("Relay")
		lamps = container.NewHBox(sized(b.green), sized(b.yellow), sized(b.red), widget.NewSeparator(), sized(b.output), b.outputLabel)
		b.content = container.NewVBox(lamps, b.summary)
	}
	return b
}

// Object is the canvas object to place in a layout.
func (b *Board) Object() fyne.CanvasObject {
	return b.content
}

// Update shows r. Reports of another kind are ignored. Call it on the main
// thread (fyne.Do).
func (b *Board) Update(r telemetry.Report) {
	if r.Kind != b.kind {
		return
	}

	switch r.Kind {
	case telemetry.KindIndustrial:
		sev := r.Severity
		setLamp(b.green, sev == monitor.Normal, LevelColor(monitor.Normal))
		setLamp(b.yellow, sev == monitor.Warning, LevelColor(monitor.Warning))
		setLamp(b.red, sev == monitor.Critical, LevelColor(monitor.Critical))
		// The relay lamp is green while the equipment may run.
		setLamp(b.output, true, LevelColor(cutoffLevel(r.Cutoff)))
		if r.Cutoff {
			b.outputLabel.SetText("Relay: CUT")
		} else {
			b.outputLabel.SetText("Relay: ON")
		}
	case telemetry.KindIrrigation:
		setLamp(b.output, r.Pump, LevelColor(monitor.Normal))
		if r.Pump {
			b.outputLabel.SetText("Pump: ON")
		} else {
			b.outputLabel.SetText("Pump: OFF")
		}
		b.lcd.SetText(strings.Join(irrigation.Render(r.State(b.dryBelow)), "\n"))
	}
	b.summary.SetText(strings.Join(Summary(r), "\n"))
}

func cutoffLevel(cutoff bool) monitor.Severity {
	if cutoff {
		return monitor.Critical
	}
	return monitor.Normal
}

// lampSize is the diameter of an indicator lamp.
var lampSize = fyne.NewSize(24, 24)

func lamp() *canvas.Circle {
	return canvas.NewCircle(colorOff)
}

// sized gives a lamp its size; a circle has no minimum size of its own.
func sized(c *canvas.Circle) fyne.CanvasObject {
	return container.NewGridWrap(lampSize, c)
}

func setLamp(c *canvas.Circle, on bool, lit color.Color) {
	if on {
		c.FillColor = lit
	} else {
		c.FillColor = colorOff
	}
	c.Refresh()
}

func blankLCD() []string {
	lines := make([]string, irrigation.Rows)
	for i := range lines {
		lines[i] = strings.Repeat(" ", irrigation.Columns)
	}
	return lines
}
