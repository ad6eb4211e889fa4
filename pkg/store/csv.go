package store

import (
	"bufio"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/chewxy/math32"
	"github.com/itohio/fieldwatch/pkg/telemetry"
)

// CSVHeader is the first row written by ExportCSV.
var CSVHeader = []string{
	"id", "kind", "time", "uptime_ms",
	"temperature", "vibration", "distance", "severity", "cutoff", "temperature_fault",
	"humidity", "ph", "phosphorus", "potassium", "pump",
	"notes",
}

// ExportCSV writes every record matching f to w. Columns of the other kind
// are left empty.
func ExportCSV(ctx context.Context, s Store, w io.Writer, f Filter) (int, error) {
	records, err := s.List(ctx, f)
	if err != nil {
		return 0, err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return 0, fmt.Errorf("failed to write csv header: %w", err)
	}
	for _, rec := range records {
		if err := cw.Write(csvRow(rec)); err != nil {
			return 0, fmt.Errorf("failed to write record %d: %w", rec.ID, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return 0, fmt.Errorf("failed to flush csv: %w", err)
	}
	return len(records), nil
}

func csvRow(rec Record) []string {
	r := rec.Report
	row := make([]string, len(CSVHeader))
	row[0] = strconv.FormatInt(rec.ID, 10)
	row[1] = string(r.Kind)
	row[2] = r.Time.UTC().Format(time.RFC3339Nano)
	row[3] = strconv.FormatInt(r.Uptime.Milliseconds(), 10)

	switch r.Kind {
	case telemetry.KindIndustrial:
		row[4] = formatFloat(r.Temperature, 2)
		row[5] = formatFloat(r.Vibration, 3)
		row[6] = formatFloat(r.Distance, 1)
		row[7] = r.Severity.String()
		row[8] = formatBool(r.Cutoff)
		row[9] = formatBool(r.TemperatureFault)
	case telemetry.KindIrrigation:
		if !math32.IsNaN(r.Humidity) {
			row[10] = formatFloat(r.Humidity, 1)
		}
		row[11] = formatFloat(r.PH, 1)
		row[12] = formatBool(r.Phosphorus)
		row[13] = formatBool(r.Potassium)
		row[14] = formatBool(r.Pump)
	}
	row[15] = rec.Notes
	return row
}

// LineError is an import line that could not be stored.
type LineError struct {
	Line int
	Text string
	Err  error
}

func (e LineError) Error() string {
	return fmt.Sprintf("line %d %q: %v", e.Line, e.Text, e.Err)
}

func (e LineError) Unwrap() error { return e.Err }

// ImportResult lists what ImportLines did.
type ImportResult struct {
	IDs    []int64
	Errors []LineError
}

// ImportLines stores every readable line of r. It accepts record lines as
// printed by the boards, and the legacy serial export
// "humidity,ph,P,K,pump[,notes]" of the irrigation board. Blank lines and
// lines starting with '#' are skipped; other bad lines are collected in the
// result. Reports are stamped with now.
func ImportLines(ctx context.Context, s Store, r io.Reader, now func() time.Time) (ImportResult, error) {
	if now == nil {
		now = time.Now
	}

	var res ImportResult
	scanner := bufio.NewScanner(r)
	n := 0
	for scanner.Scan() {
		n++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		rec, err := parseImportLine(line)
		if err != nil {
			res.Errors = append(res.Errors, LineError{Line: n, Text: line, Err: err})
			continue
		}
		rec.Report.Time = now()

		if err := s.Insert(ctx, &rec); err != nil {
			return res, fmt.Errorf("line %d: %w", n, err)
		}
		res.IDs = append(res.IDs, rec.ID)
	}
	if err := scanner.Err(); err != nil {
		return res, fmt.Errorf("failed to read import: %w", err)
	}
	return res, nil
}

func parseImportLine(line string) (Record, error) {
	if telemetry.IsRecord(line) {
		r, err := telemetry.Parse(line)
		return Record{Report: r}, err
	}
	return parseLegacyLine(line)
}

// parseLegacyLine parses "humidity,ph,P,K,pump[,notes]".
func parseLegacyLine(line string) (Record, error) {
	parts := strings.SplitN(line, ",", 6)
	if len(parts) < 5 {
		return Record{}, fmt.Errorf("expected at least 5 comma-separated values, got %d", len(parts))
	}

	humidity, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 32)
	if err != nil {
		return Record{}, fmt.Errorf("invalid humidity: %w", err)
	}
	ph, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 32)
	if err != nil {
		return Record{}, fmt.Errorf("invalid ph: %w", err)
	}

	var flags [3]bool
	for i, name := range []string{"phosphorus", "potassium", "pump"} {
		v, err := strconv.Atoi(strings.TrimSpace(parts[2+i]))
		if err != nil {
			return Record{}, fmt.Errorf("invalid %s: %w", name, err)
		}
		flags[i] = v != 0
	}

	rec := Record{
		Report: telemetry.Report{
			Kind:       telemetry.KindIrrigation,
			Humidity:   float32(humidity),
			PH:         float32(ph),
			Phosphorus: flags[0],
			Potassium:  flags[1],
			Pump:       flags[2],
		},
	}
	if len(parts) == 6 {
		rec.Notes = strings.TrimSpace(parts[5])
	}
	return rec, nil
}

func formatFloat(v float32, prec int) string {
	return strconv.FormatFloat(float64(v), 'f', prec, 32)
}

func formatBool(v bool) string {
	if v {
		return "1"
	}
	return "0"
}
