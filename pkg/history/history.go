// Package history keeps the reports of the last time window and groups
// consecutive active reports into episodes: alarms on an industrial board,
// pump runs on an irrigation board.
package history

import (
	"sync"
	"time"

	"github.com/itohio/fieldwatch/pkg/monitor"
	"github.com/itohio/fieldwatch/pkg/telemetry"
)

// DefaultWindow is used when New is given a non-positive window.
const DefaultWindow = 10 * time.Minute

var _ Recorder = (*History)(nil)

// Episode is a run of consecutive active reports of one kind.
type Episode struct {
	Kind    telemetry.Kind   `json:"kind"`
	Start   time.Time        `json:"start"`
	End     time.Time        `json:"end"`  // time of the last active report
	Peak    monitor.Severity `json:"peak"` // worst level seen
	Cutoff  bool             `json:"cutoff"`
	Reports int              `json:"reports"`
	Open    bool             `json:"open"` // no inactive report seen yet
}

// Duration is the time between the first and last active report.
func (e Episode) Duration() time.Duration {
	return e.End.Sub(e.Start)
}

// Recorder processes reports, maintains the window, and detects episodes.
type Recorder interface {
	ProcessReports(input <-chan telemetry.Report)
	// Reports in the window, oldest first.
	Reports() []telemetry.Report
	// Episodes overlapping the window, oldest first.
	Episodes() []Episode
	// Latest report of kind.
	Latest(kind telemetry.Kind) (telemetry.Report, bool)
	OnUpdate(func(reports []telemetry.Report, episodes []Episode))
}

// History implements Recorder.
// Removal is based on timestamp (time window), not number of reports.
type History struct {
	window time.Duration

	reports  []telemetry.Report
	episodes []Episode
	open     map[telemetry.Kind]int // index into episodes of the open episode per kind
	latest   map[telemetry.Kind]telemetry.Report

	mu sync.RWMutex

	callbacks []func(reports []telemetry.Report, episodes []Episode)
	cbMu      sync.RWMutex

	// Set when the input channel closes; prevents further callbacks.
	shutdown bool
}

// New creates a History keeping reports for window.
func New(window time.Duration) *History {
	if window <= 0 {
		window = DefaultWindow
	}
	return &History{
		window: window,
		open:   make(map[telemetry.Kind]int),
		latest: make(map[telemetry.Kind]telemetry.Report),
	}
}

// Window returns the retention window.
func (h *History) Window() time.Duration {
	return h.window
}

// ProcessReports consumes input until it closes. After that no callbacks
// are sent until ResetShutdown.
func (h *History) ProcessReports(input <-chan telemetry.Report) {
	for r := range input {
		h.add(r)
	}
	h.mu.Lock()
	h.shutdown = true
	h.mu.Unlock()
}

// add appends r, trims the window, updates episodes, and notifies.
func (h *History) add(r telemetry.Report) {
	h.mu.Lock()

	h.reports = append(h.reports, r)
	h.latest[r.Kind] = r
	h.trim(r.Time.Add(-h.window))
	h.updateEpisodes(r)

	shouldNotify := !h.shutdown
	h.mu.Unlock()

	if shouldNotify {
		h.notifyCallbacks()
	}
}

// trim drops reports at or before cutoff and closed episodes that ended by then.
func (h *History) trim(cutoff time.Time) {
	idx := 0
	for idx < len(h.reports) && !h.reports[idx].Time.After(cutoff) {
		idx++
	}
	if idx > 0 {
		h.reports = append(h.reports[:0], h.reports[idx:]...)
	}

	kept := h.episodes[:0]
	for _, e := range h.episodes {
		if e.Open || e.End.After(cutoff) {
			kept = append(kept, e)
		}
	}
	h.episodes = kept

	for k := range h.open {
		delete(h.open, k)
	}
	for i, e := range h.episodes {
		if e.Open {
			h.open[e.Kind] = i
		}
	}
}

func (h *History) updateEpisodes(r telemetry.Report) {
	i, ok := h.open[r.Kind]

	if !r.Active() {
		if ok {
			h.episodes[i].Open = false
			delete(h.open, r.Kind)
		}
		return
	}

	if !ok {
		h.episodes = append(h.episodes, Episode{
			Kind:  r.Kind,
			Start: r.Time,
			Open:  true,
		})
		i = len(h.episodes) - 1
		h.open[r.Kind] = i
	}

	e := &h.episodes[i]
	e.End = r.Time
	e.Reports++
	e.Peak = monitor.Aggregate(e.Peak, r.Level())
	e.Cutoff = e.Cutoff || r.Cutoff
}

// Reports returns a copy of the reports in the window.
func (h *History) Reports() []telemetry.Report {
	h.mu.RLock()
	defer h.mu.RUnlock()

	result := make([]telemetry.Report, len(h.reports))
	copy(result, h.reports)
	return result
}

// Episodes returns a copy of the current episodes.
func (h *History) Episodes() []Episode {
	h.mu.RLock()
	defer h.mu.RUnlock()

	result := make([]Episode, len(h.episodes))
	copy(result, h.episodes)
	return result
}

// Latest returns the most recent report of kind, even if it left the window.
func (h *History) Latest(kind telemetry.Kind) (telemetry.Report, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	r, ok := h.latest[kind]
	return r, ok
}

// OnUpdate registers a callback invoked after every report.
// The callback should copy data quickly and return as fast as possible.
func (h *History) OnUpdate(callback func(reports []telemetry.Report, episodes []Episode)) {
	h.cbMu.Lock()
	defer h.cbMu.Unlock()
	h.callbacks = append(h.callbacks, callback)
}

// ResetShutdown resets the shutdown flag, allowing callbacks to be sent again.
// This should be called before processing a new input channel.
func (h *History) ResetShutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.shutdown = false
}

// notifyCallbacks copies the data under the read lock, then calls the
// callbacks without holding any lock.
func (h *History) notifyCallbacks() {
	reports := h.Reports()
	episodes := h.Episodes()

	h.cbMu.RLock()
	callbacks := make([]func(reports []telemetry.Report, episodes []Episode), len(h.callbacks))
	copy(callbacks, h.callbacks)
	h.cbMu.RUnlock()

	for _, cb := range callbacks {
		if cb != nil {
			cb(reports, episodes)
		}
	}
}
