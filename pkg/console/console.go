// Package console is the logging collaborator shared by firmware and host.
// On the host a *slog.Logger satisfies Logger directly; on the board Writer
// prints plain lines to the UART without pulling in fmt.
package console

import (
	"io"
	"strconv"
	"sync"
	"time"
)

// Logger is the subset of *slog.Logger used by the controllers.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Writer logs "LEVEL msg key=value ..." lines to an io.Writer.
type Writer struct {
	mu  sync.Mutex
	out io.Writer
	buf []byte
}

var _ Logger = (*Writer)(nil)

// New returns a Writer that logs to out.
func New(out io.Writer) *Writer {
	return &Writer{out: out, buf: make([]byte, 0, 128)}
}

// Info logs at info level.
func (w *Writer) Info(msg string, args ...any) { w.log("INFO", msg, args) }

// Warn logs at warn level.
func (w *Writer) Warn(msg string, args ...any) { w.log("WARN", msg, args) }

// Error logs at error level.
func (w *Writer) Error(msg string, args ...any) { w.log("ERROR", msg, args) }

func (w *Writer) log(level, msg string, args []any) {
	w.mu.Lock()
	defer w.mu.Unlock()

	b := w.buf[:0]
	b = append(b, level...)
	b = append(b, ' ')
	b = append(b, msg...)
	for i := 0; i < len(args); i += 2 {
		b = append(b, ' ')
		key, ok := args[i].(string)
		if !ok || i+1 >= len(args) {
			b = append(b, "!BADKEY="...)
			b = appendValue(b, args[i])
			continue
		}
		b = append(b, key...)
		b = append(b, '=')
		b = appendValue(b, args[i+1])
	}
	b = append(b, '\n')
	w.buf = b
	w.out.Write(b)
}

func appendValue(b []byte, v any) []byte {
	switch x := v.(type) {
	case string:
		return append(b, x...)
	case float32:
		return strconv.AppendFloat(b, float64(x), 'f', 2, 32)
	case float64:
		return strconv.AppendFloat(b, x, 'f', 2, 64)
	case int:
		return strconv.AppendInt(b, int64(x), 10)
	case int16:
		return strconv.AppendInt(b, int64(x), 10)
	case int32:
		return strconv.AppendInt(b, int64(x), 10)
	case int64:
		return strconv.AppendInt(b, x, 10)
	case uint16:
		return strconv.AppendUint(b, uint64(x), 10)
	case uint32:
		return strconv.AppendUint(b, uint64(x), 10)
	case uint64:
		return strconv.AppendUint(b, x, 10)
	case bool:
		return strconv.AppendBool(b, x)
	case time.Duration:
		return append(b, x.String()...)
	case error:
		return append(b, x.Error()...)
	case interface{ String() string }:
		return append(b, x.String()...)
	case nil:
		return append(b, "<nil>"...)
	default:
		return append(b, '?')
	}
}

type discard struct{}

func (discard) Info(string, ...any)  {}
func (discard) Warn(string, ...any)  {}
func (discard) Error(string, ...any) {}

// Discard drops everything.
var Discard Logger = discard{}
