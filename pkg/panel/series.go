// Package panel holds the desktop widgets: a trend plot of one quantity over
// the history window and a board view mirroring the lamps, relay, pump and
// character display of a controller.
package panel

import (
	"image/color"
	"strconv"
	"time"

	"github.com/chewxy/math32"
	"github.com/itohio/fieldwatch/pkg/config"
	"github.com/itohio/fieldwatch/pkg/monitor"
	"github.com/itohio/fieldwatch/pkg/telemetry"
)

// Quantity selects what the trend plots.
type Quantity int

const (
	Temperature Quantity = iota
	Vibration
	Distance
	Humidity
	PH
)

// Quantities returns what a board of kind reports.
func Quantities(kind telemetry.Kind) []Quantity {
	if kind == telemetry.KindIrrigation {
		return []Quantity{Humidity, PH}
	}
	return []Quantity{Temperature, Vibration, Distance}
}

func (q Quantity) String() string {
	switch q {
	case Temperature:
		return "Temperature"
	case Vibration:
		return "Vibration"
	case Distance:
		return "Distance"
	case Humidity:
		return "Humidity"
	case PH:
		return "pH"
	default:
		return "?"
	}
}

// Unit is the axis suffix.
func (q Quantity) Unit() string {
	switch q {
	case Temperature:
		return "°C"
	case Vibration:
		return "g"
	case Distance:
		return "cm"
	case Humidity:
		return "%"
	default:
		return ""
	}
}

// Kind is the board kind that reports q.
func (q Quantity) Kind() telemetry.Kind {
	if q == Humidity || q == PH {
		return telemetry.KindIrrigation
	}
	return telemetry.KindIndustrial
}

// Value extracts q from r. It is false for reports of the other kind and
// for faulted sensors.
func (q Quantity) Value(r telemetry.Report) (float64, bool) {
	if r.Kind != q.Kind() {
		return 0, false
	}
	switch q {
	case Temperature:
		if r.TemperatureFault {
			return 0, false
		}
		return float64(r.Temperature), true
	case Vibration:
		return float64(r.Vibration), true
	case Distance:
		return float64(r.Distance), true
	case Humidity:
		if math32.IsNaN(r.Humidity) {
			return 0, false
		}
		return float64(r.Humidity), true
	case PH:
		return float64(r.PH), true
	}
	return 0, false
}

// Point is one plotted value.
type Point struct {
	Time  time.Time
	Value float64
}

// Series appends the values of q found in reports to dst[:0].
func Series(dst []Point, reports []telemetry.Report, q Quantity) []Point {
	dst = dst[:0]
	for _, r := range reports {
		if v, ok := q.Value(r); ok {
			dst = append(dst, Point{Time: r.Time, Value: v})
		}
	}
	return dst
}

// Downsample decimates points to at most maxPoints, reusing dst when it has
// the capacity.
func Downsample(dst []Point, points []Point, maxPoints int) []Point {
	n := len(points)
	if maxPoints <= 0 || n <= maxPoints {
		maxPoints = n
	}
	if cap(dst) >= maxPoints {
		dst = dst[:0]
	} else {
		dst = make([]Point, 0, maxPoints)
	}
	if n == maxPoints {
		return append(dst, points...)
	}

	step := float64(n) / float64(maxPoints)
	for i := range maxPoints {
		dst = append(dst, points[int(float64(i)*step)])
	}
	// Keep the newest point visible.
	dst[len(dst)-1] = points[n-1]
	return dst
}

// Limit is a horizontal threshold line.
type Limit struct {
	Value float64
	Level monitor.Severity
}

// Limits returns the configured thresholds of q.
func Limits(q Quantity, cfg *config.Config) []Limit {
	in := cfg.Industrial
	switch q {
	case Temperature:
		return []Limit{
			{float64(in.TempWarning), monitor.Warning},
			{float64(in.TempCritical), monitor.Critical},
			{float64(in.TempShutdown), monitor.Critical},
		}
	case Vibration:
		return []Limit{
			{float64(in.VibWarning), monitor.Warning},
			{float64(in.VibCritical), monitor.Critical},
		}
	case Distance:
		return []Limit{
			{float64(in.DistMin), monitor.Critical},
			{float64(in.DistWarningLow), monitor.Warning},
			{float64(in.DistWarningHigh), monitor.Warning},
			{float64(in.DistMax), monitor.Critical},
		}
	case Humidity:
		return []Limit{{float64(cfg.Irrigation.DryBelow), monitor.Warning}}
	}
	return nil
}

var (
	colorOff      = color.RGBA{R: 50, G: 50, B: 50, A: 255}
	colorNormal   = color.RGBA{R: 40, G: 200, B: 80, A: 255}
	colorWarning  = color.RGBA{R: 240, G: 200, B: 0, A: 255}
	colorCritical = color.RGBA{R: 230, G: 40, B: 40, A: 255}
)

// LevelColor is the lamp color of a severity.
func LevelColor(s monitor.Severity) color.Color {
	switch s {
	case monitor.Critical:
		return colorCritical
	case monitor.Warning:
		return colorWarning
	default:
		return colorNormal
	}
}

// Summary is the text shown next to the lamps.
func Summary(r telemetry.Report) []string {
	switch r.Kind {
	case telemetry.KindIndustrial:
		temp := "T: fault"
		if !r.TemperatureFault {
			temp = "T: " + formatFloat(float64(r.Temperature), 1) + " °C"
		}
		relay := "Relay: ON"
		if r.Cutoff {
			relay = "Relay: CUT"
		}
		return []string{
			temp,
			"V: " + formatFloat(float64(r.Vibration), 2) + " g",
			"D: " + formatFloat(float64(r.Distance), 1) + " cm",
			"Status: " + r.Severity.String(),
			relay,
		}
	case telemetry.KindIrrigation:
		hum := "Humidity: fault"
		if !r.HumidityFault() {
			hum = "Humidity: " + formatFloat(float64(r.Humidity), 1) + " %"
		}
		pump := "Pump: OFF"
		if r.Pump {
			pump = "Pump: ON"
		}
		return []string{
			hum,
			"pH: " + formatFloat(float64(r.PH), 1),
			"P: " + yesNo(r.Phosphorus) + "  K: " + yesNo(r.Potassium),
			pump,
		}
	}
	return nil
}

func yesNo(v bool) string {
	if v {
		return "YES"
	}
	return "NO"
}

func formatFloat(v float64, decimals int) string {
	return strconv.FormatFloat(v, 'f', decimals, 64)
}

func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return formatFloat(d.Seconds(), 0) + "s"
	}
	return formatFloat(d.Minutes(), 1) + "m"
}
