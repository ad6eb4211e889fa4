package irrigation

import (
	"strconv"

	"github.com/chewxy/math32"
)

// Display geometry of the character LCD.
const (
	Columns = 20
	Rows    = 4
)

// Status messages on the last display row.
const (
	MsgIrrigating  = "IRRIGATING..."
	MsgLowHumidity = "LOW HUMIDITY!"
	MsgSensorFault = "SENSOR FAULT"
	MsgOK          = "SYSTEM OK"
)

// Message returns the status text for s.
func Message(s State) string {
	switch {
	case s.Pump:
		return MsgIrrigating
	case !s.Readings.HumidityValid():
		return MsgSensorFault
	case s.Readings.Humidity < s.DryBelow:
		return MsgLowHumidity
	default:
		return MsgOK
	}
}

// Render lays s out on the 20x4 display. Every line is exactly Columns wide.
func Render(s State) []string {
	r := s.Readings
	buf := make([]byte, 0, Columns)

	buf = append(buf, "U:"...)
	buf = appendFloat(buf, r.Humidity, 0)
	buf = append(buf, "% pH:"...)
	buf = appendFloat(buf, r.PH, 1)
	l0 := pad(buf)

	buf = append(buf[:0], "P:"...)
	buf = append(buf, yesNo(r.Phosphorus)...)
	buf = append(buf, "  K:"...)
	buf = append(buf, yesNo(r.Potassium)...)
	l1 := pad(buf)

	buf = append(buf[:0], "Pump: "...)
	if s.Pump {
		buf = append(buf, "ON"...)
	} else {
		buf = append(buf, "OFF"...)
	}
	l2 := pad(buf)

	l3 := pad(append(buf[:0], Message(s)...))

	return []string{l0, l1, l2, l3}
}

// PlotterLine is the serial plotter record: "Humidity:45.0 pH:7.0 Pump:1".
func PlotterLine(s State) string {
	buf := make([]byte, 0, 40)
	buf = append(buf, "Humidity:"...)
	buf = appendFloat(buf, s.Readings.Humidity, 1)
	buf = append(buf, " pH:"...)
	buf = appendFloat(buf, s.Readings.PH, 1)
	buf = append(buf, " Pump:"...)
	if s.Pump {
		buf = append(buf, '1')
	} else {
		buf = append(buf, '0')
	}
	return string(buf)
}

func appendFloat(b []byte, v float32, prec int) []byte {
	if math32.IsNaN(v) {
		return append(b, "nan"...)
	}
	return strconv.AppendFloat(b, float64(v), 'f', prec, 32)
}

func yesNo(v bool) string {
	if v {
		return "YES"
	}
	return "NO "
}

func pad(b []byte) string {
	if len(b) >= Columns {
		return string(b[:Columns])
	}
	out := make([]byte, Columns)
	copy(out, b)
	for i := len(b); i < Columns; i++ {
		out[i] = ' '
	}
	return string(out)
}
