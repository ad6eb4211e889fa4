package console

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// slog.Logger must be usable wherever a Logger is expected.
var _ Logger = (*slog.Logger)(nil)

func TestWriter_Format(t *testing.T) {
	tests := []struct {
		name string
		log  func(w *Writer)
		want string
	}{
		{
			name: "plain message",
			log:  func(w *Writer) { w.Info("system ready") },
			want: "INFO system ready\n",
		},
		{
			name: "float32 value",
			log:  func(w *Writer) { w.Info("reading", "temperature", float32(25.5), "unit", "C") },
			want: "INFO reading temperature=25.50 unit=C\n",
		},
		{
			name: "error value",
			log:  func(w *Writer) { w.Warn("sensor fault", "err", errors.New("disconnected")) },
			want: "WARN sensor fault err=disconnected\n",
		},
		{
			name: "ints and bools",
			log:  func(w *Writer) { w.Error("halt", "code", 3, "fatal", true) },
			want: "ERROR halt code=3 fatal=true\n",
		},
		{
			name: "duration",
			log:  func(w *Writer) { w.Info("cycle", "period", time.Second) },
			want: "INFO cycle period=1s\n",
		},
		{
			name: "dangling key",
			log:  func(w *Writer) { w.Info("odd", "key") },
			want: "INFO odd !BADKEY=key\n",
		},
		{
			name: "unknown type",
			log:  func(w *Writer) { w.Info("odd", "v", struct{}{}) },
			want: "INFO odd v=?\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			tt.log(New(&buf))
			assert.Equal(t, tt.want, buf.String())
		})
	}
}

func TestWriter_ReusesBuffer(t *testing.T) {
	var buf bytes.Buffer
	w := New(&buf)
	w.Info("first", "n", 1)
	w.Info("second")
	assert.Equal(t, "INFO first n=1\nINFO second\n", buf.String())
}

func TestDiscard(t *testing.T) {
	assert.NotPanics(t, func() {
		Discard.Info("x")
		Discard.Warn("x", "k", 1)
		Discard.Error("x")
	})
}

func TestRecorder(t *testing.T) {
	var r Recorder
	r.Info("a", "k", 1)
	r.Warn("b")
	r.Error("c", "err", "x")

	assert.Equal(t, []string{"a", "b", "c"}, r.Messages())
	entries := r.Entries()
	assert.Equal(t, "WARN", entries[1].Level)
	assert.Equal(t, []any{"k", 1}, entries[0].Args)

	r.Reset()
	assert.Empty(t, r.Messages())
}
