package store

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the calendar date format of supply expiry dates.
const DateLayout = "2006-01-02"

var (
	// ErrDuplicate is returned when a supply with the same name exists.
	ErrDuplicate = errors.New("supply already exists")
	// ErrInvalid wraps validation failures of a supply.
	ErrInvalid = errors.New("invalid supply")
)

// Supply is a farm input in stock (seed, fertilizer, pesticide, ...).
// Name is unique.
type Supply struct {
	ID       int64
	Name     string
	Type     string
	Quantity int
	Expires  time.Time // calendar date, UTC midnight
}

// Validate checks the fields a caller must provide.
func (s Supply) Validate() error {
	switch {
	case strings.TrimSpace(s.Name) == "":
		return fmt.Errorf("%w: name is required", ErrInvalid)
	case s.Expires.IsZero():
		return fmt.Errorf("%w: expiry date is required", ErrInvalid)
	}
	return validQuantity(s.Quantity)
}

func validQuantity(q int) error {
	if q < 0 {
		return fmt.Errorf("%w: quantity must not be negative", ErrInvalid)
	}
	return nil
}

// Supplies is the farm input inventory.
type Supplies interface {
	// AddSupply stores s and sets its ID. Expires is truncated to its date.
	AddSupply(ctx context.Context, s *Supply) error
	// ListSupplies returns every supply ordered by name.
	ListSupplies(ctx context.Context) ([]Supply, error)
	SetQuantity(ctx context.Context, name string, quantity int) error
	RemoveSupply(ctx context.Context, name string) error
	// Expiring returns supplies expiring between the dates of from and to,
	// both included, ordered by expiry then name.
	Expiring(ctx context.Context, from, to time.Time) ([]Supply, error)
}

// Backend is a store holding both readings and supplies.
type Backend interface {
	Store
	Supplies
}

var (
	_ Backend = (*Memory)(nil)
	_ Backend = (*Postgres)(nil)
)

// Date truncates t to its calendar date in UTC.
func Date(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, use YYYY-MM-DD: %w", s, err)
	}
	return t, nil
}

// ExpiringWithin returns the supplies expiring from today up to days ahead.
func ExpiringWithin(ctx context.Context, s Supplies, now time.Time, days int) ([]Supply, error) {
	if days < 0 {
		return nil, fmt.Errorf("days must not be negative, got %d", days)
	}
	today := Date(now)
	return s.Expiring(ctx, today, today.AddDate(0, 0, days))
}

// TypeSummary aggregates the supplies of one type.
type TypeSummary struct {
	Type     string `json:"type"`
	Items    int    `json:"items"`
	Quantity int    `json:"quantity"`
}

// Summarize groups supplies by type, ordered by type.
func Summarize(supplies []Supply) []TypeSummary {
	byType := make(map[string]*TypeSummary)
	for _, s := range supplies {
		t, ok := byType[s.Type]
		if !ok {
			t = &TypeSummary{Type: s.Type}
			byType[s.Type] = t
		}
		t.Items++
		t.Quantity += s.Quantity
	}

	result := make([]TypeSummary, 0, len(byType))
	for _, t := range byType {
		result = append(result, *t)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Type < result[j].Type })
	return result
}

// SupplyCSVHeader is the first row written by ExportSuppliesCSV.
var SupplyCSVHeader = []string{"id", "name", "type", "quantity", "expires"}

// ExportSuppliesCSV writes every supply to w.
func ExportSuppliesCSV(ctx context.Context, s Supplies, w io.Writer) (int, error) {
	supplies, err := s.ListSupplies(ctx)
	if err != nil {
		return 0, err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(SupplyCSVHeader); err != nil {
		return 0, fmt.Errorf("failed to write csv header: %w", err)
	}
	for _, sp := range supplies {
		row := []string{
			strconv.FormatInt(sp.ID, 10),
			sp.Name,
			sp.Type,
			strconv.Itoa(sp.Quantity),
			sp.Expires.Format(DateLayout),
		}
		if err := cw.Write(row); err != nil {
			return 0, fmt.Errorf("failed to write supply %q: %w", sp.Name, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return 0, fmt.Errorf("failed to flush csv: %w", err)
	}
	return len(supplies), nil
}

func sortByExpiry(supplies []Supply) {
	sort.Slice(supplies, func(i, j int) bool {
		a, b := supplies[i], supplies[j]
		if a.Expires.Equal(b.Expires) {
			return a.Name < b.Name
		}
		return a.Expires.Before(b.Expires)
	})
}
