// Package store keeps the history of cycle reports with optional notes.
// Memory is used when no database is configured; Postgres otherwise.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/itohio/fieldwatch/pkg/telemetry"
)

// ErrNotFound is returned when no record has the requested id.
var ErrNotFound = errors.New("record not found")

// Record is a stored report.
type Record struct {
	ID     int64            `json:"id"`
	Report telemetry.Report `json:"report"`
	Notes  string           `json:"notes,omitempty"`
}

// Filter narrows List. Zero fields do not filter.
type Filter struct {
	Kind       telemetry.Kind
	Since      time.Time
	Until      time.Time
	ActiveOnly bool
	// Limit keeps the newest Limit records.
	Limit int
}

// Match reports whether r passes the filter, ignoring Limit.
func (f Filter) Match(r telemetry.Report) bool {
	if f.Kind != "" && r.Kind != f.Kind {
		return false
	}
	if !f.Since.IsZero() && r.Time.Before(f.Since) {
		return false
	}
	if !f.Until.IsZero() && !r.Time.Before(f.Until) {
		return false
	}
	if f.ActiveOnly && !r.Active() {
		return false
	}
	return true
}

// Store is the reading repository.
type Store interface {
	// Insert stores rec and sets its ID.
	Insert(ctx context.Context, rec *Record) error
	Get(ctx context.Context, id int64) (Record, error)
	// List returns matching records ordered by time, oldest first.
	List(ctx context.Context, f Filter) ([]Record, error)
	// Update replaces the report and notes of rec.ID.
	Update(ctx context.Context, rec Record) error
	Delete(ctx context.Context, id int64) error
	Close() error
}

var (
	_ Store = (*Memory)(nil)
	_ Store = (*Postgres)(nil)
)
