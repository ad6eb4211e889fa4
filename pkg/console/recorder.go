package console

import "sync"

// Entry is one message captured by Recorder.
type Entry struct {
	Level string
	Msg   string
	Args  []any
}

// Recorder keeps every message in memory so tests can assert on controller
// output.
type Recorder struct {
	mu      sync.Mutex
	entries []Entry
}

var _ Logger = (*Recorder)(nil)

func (r *Recorder) Info(msg string, args ...any)  { r.add("INFO", msg, args) }
func (r *Recorder) Warn(msg string, args ...any)  { r.add("WARN", msg, args) }
func (r *Recorder) Error(msg string, args ...any) { r.add("ERROR", msg, args) }

func (r *Recorder) add(level, msg string, args []any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, Entry{Level: level, Msg: msg, Args: append([]any(nil), args...)})
}

// Entries returns a copy of the captured messages.
func (r *Recorder) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Messages returns the captured message texts in order.
func (r *Recorder) Messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.entries))
	for i, e := range r.entries {
		out[i] = e.Msg
	}
	return out
}

// Reset drops everything captured so far.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = r.entries[:0]
}
