package telemetry

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/chewxy/math32"
	"github.com/itohio/fieldwatch/pkg/monitor"
)

// Record line prefixes.
const (
	PrefixIndustrial = "I,"
	PrefixIrrigation = "P,"
)

var (
	// ErrNotRecord is returned by Parse for human log lines.
	ErrNotRecord = errors.New("not a record line")
	// ErrMalformed wraps every field error of a record line.
	ErrMalformed = errors.New("malformed record")
)

// IsRecord reports whether line is a machine record rather than a log line.
func IsRecord(line string) bool {
	return strings.HasPrefix(line, PrefixIndustrial) || strings.HasPrefix(line, PrefixIrrigation)
}

// Format renders r as a record line without the trailing newline.
func Format(r Report) string {
	return string(AppendFormat(make([]byte, 0, 64), r))
}

// AppendFormat appends the record line for r to b.
func AppendFormat(b []byte, r Report) []byte {
	us := r.Uptime.Microseconds()
	if r.Kind == KindIrrigation {
		b = append(b, PrefixIrrigation...)
		b = strconv.AppendInt(b, us, 10)
		b = append(b, ',')
		b = appendFloat(b, r.Humidity, 1)
		b = append(b, ',')
		b = appendFloat(b, r.PH, 1)
		b = append(b, ',')
		b = appendBool(b, r.Phosphorus)
		b = append(b, ',')
		b = appendBool(b, r.Potassium)
		b = append(b, ',')
		return appendBool(b, r.Pump)
	}

	b = append(b, PrefixIndustrial...)
	b = strconv.AppendInt(b, us, 10)
	b = append(b, ',')
	b = appendFloat(b, r.Temperature, 2)
	b = append(b, ',')
	b = appendFloat(b, r.Vibration, 3)
	b = append(b, ',')
	b = appendFloat(b, r.Distance, 1)
	b = append(b, ',', r.Severity.Letter(), ',')
	b = appendBool(b, r.Cutoff)
	b = append(b, ',')
	return appendBool(b, r.TemperatureFault)
}

// Parse decodes a record line. Time is left zero for the caller to stamp.
func Parse(line string) (Report, error) {
	line = strings.TrimSpace(line)
	if !IsRecord(line) {
		return Report{}, ErrNotRecord
	}

	parts := strings.Split(line, ",")
	if line[0] == 'P' {
		return parseIrrigation(parts)
	}
	return parseIndustrial(parts)
}

func parseIndustrial(parts []string) (Report, error) {
	if len(parts) != 8 {
		return Report{}, fieldCountError(8, len(parts))
	}

	r := Report{Kind: KindIndustrial}
	var err error
	if r.Uptime, err = parseUptime(parts[1]); err != nil {
		return Report{}, err
	}
	if r.Temperature, err = parseFloat("temperature", parts[2]); err != nil {
		return Report{}, err
	}
	if r.Vibration, err = parseFloat("vibration", parts[3]); err != nil {
		return Report{}, err
	}
	if r.Distance, err = parseFloat("distance", parts[4]); err != nil {
		return Report{}, err
	}
	if r.Severity, err = monitor.ParseSeverity(parts[5]); err != nil {
		return Report{}, wrap("severity", err)
	}
	if r.Cutoff, err = parseBool("cutoff", parts[6]); err != nil {
		return Report{}, err
	}
	if r.TemperatureFault, err = parseBool("temperature fault", parts[7]); err != nil {
		return Report{}, err
	}
	return r, nil
}

func parseIrrigation(parts []string) (Report, error) {
	if len(parts) != 7 {
		return Report{}, fieldCountError(7, len(parts))
	}

	r := Report{Kind: KindIrrigation}
	var err error
	if r.Uptime, err = parseUptime(parts[1]); err != nil {
		return Report{}, err
	}
	if r.Humidity, err = parseFloat("humidity", parts[2]); err != nil {
		return Report{}, err
	}
	if r.PH, err = parseFloat("ph", parts[3]); err != nil {
		return Report{}, err
	}
	if r.PH < 0 || r.PH > 14 {
		return Report{}, wrap("ph", errors.New("out of range 0..14"))
	}
	if r.Phosphorus, err = parseBool("phosphorus", parts[4]); err != nil {
		return Report{}, err
	}
	if r.Potassium, err = parseBool("potassium", parts[5]); err != nil {
		return Report{}, err
	}
	if r.Pump, err = parseBool("pump", parts[6]); err != nil {
		return Report{}, err
	}
	return r, nil
}

func parseUptime(s string) (time.Duration, error) {
	us, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, wrap("uptime", err)
	}
	if us < 0 {
		return 0, wrap("uptime", errors.New("negative"))
	}
	return time.Duration(us) * time.Microsecond, nil
}

func parseFloat(field, s string) (float32, error) {
	if s == "nan" {
		return math32.NaN(), nil
	}
	v, err := strconv.ParseFloat(s, 32)
	if err != nil {
		return 0, wrap(field, err)
	}
	return float32(v), nil
}

func parseBool(field, s string) (bool, error) {
	switch s {
	case "0":
		return false, nil
	case "1":
		return true, nil
	}
	return false, wrap(field, errors.New("expected 0 or 1, got "+strconv.Quote(s)))
}

type fieldError struct {
	field string
	err   error
}

func (e *fieldError) Error() string { return ErrMalformed.Error() + ": " + e.field + ": " + e.err.Error() }
func (e *fieldError) Unwrap() []error { return []error{ErrMalformed, e.err} }

func wrap(field string, err error) error {
	return &fieldError{field: field, err: err}
}

func fieldCountError(want, got int) error {
	return wrap("fields", errors.New("expected "+strconv.Itoa(want)+" comma-separated values, got "+strconv.Itoa(got)))
}

func appendFloat(b []byte, v float32, prec int) []byte {
	if math32.IsNaN(v) {
		return append(b, "nan"...)
	}
	return strconv.AppendFloat(b, float64(v), 'f', prec, 32)
}

func appendBool(b []byte, v bool) []byte {
	if v {
		return append(b, '1')
	}
	return append(b, '0')
}
