package monitor

import "fmt"

// Severity is the health level of one reading or of a whole cycle.
// Higher values are worse.
type Severity uint8

const (
	Normal Severity = iota
	Warning
	Critical
)

// String returns the upper-case name.
func (s Severity) String() string {
	switch s {
	case Normal:
		return "NORMAL"
	case Warning:
		return "WARNING"
	case Critical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// Letter returns the one-letter code used on the serial record line.
func (s Severity) Letter() byte {
	switch s {
	case Warning:
		return 'W'
	case Critical:
		return 'C'
	default:
		return 'N'
	}
}

// ParseSeverity accepts a name or a one-letter code, in upper case.
func ParseSeverity(s string) (Severity, error) {
	switch s {
	case "N", "NORMAL":
		return Normal, nil
	case "W", "WARNING":
		return Warning, nil
	case "C", "CRITICAL":
		return Critical, nil
	}
	return Normal, fmt.Errorf("unknown severity %q", s)
}

// Aggregate returns the worst of the given severities; Normal if none.
func Aggregate(severities ...Severity) Severity {
	worst := Normal
	for _, s := range severities {
		if s > worst {
			worst = s
		}
	}
	return worst
}

// MarshalText implements encoding.TextMarshaler.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Severity) UnmarshalText(b []byte) error {
	v, err := ParseSeverity(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}
