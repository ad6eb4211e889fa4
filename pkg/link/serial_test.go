package link

import (
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/itohio/fieldwatch/pkg/monitor"
	"github.com/itohio/fieldwatch/pkg/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// pipeSerial returns a Serial whose port is the read end of a pipe.
func pipeSerial(t *testing.T, bufSize int) (*Serial, *io.PipeWriter) {
	t.Helper()
	pr, pw := io.Pipe()
	dev := New("test", 0, bufSize, quietLogger())
	dev.open = func(name string, mode *serial.Mode) (io.ReadCloser, error) {
		assert.Equal(t, "test", name)
		assert.Equal(t, DefaultBaudRate, mode.BaudRate)
		return pr, nil
	}
	at := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	dev.now = func() time.Time { return at }
	return dev, pw
}

func TestNew(t *testing.T) {
	dev := New("/dev/ttyUSB0", 9600, 10, nil)
	assert.NotNil(t, dev)
	assert.Equal(t, "/dev/ttyUSB0", dev.port)
	assert.Equal(t, 9600, dev.baudRate)
	assert.Equal(t, 10, dev.bufSize)
	assert.NotNil(t, dev.reports)
	assert.False(t, dev.IsConnected())
}

func TestNew_Defaults(t *testing.T) {
	dev := New("/dev/ttyUSB0", 0, 0, nil)
	assert.Equal(t, DefaultBaudRate, dev.baudRate)
	assert.Equal(t, DefaultBufferSize, dev.bufSize)
}

func TestSerial_ReadsRecords(t *testing.T) {
	dev, pw := pipeSerial(t, 10)
	require.NoError(t, dev.Connect())
	assert.True(t, dev.IsConnected())
	assert.ErrorIs(t, dev.Connect(), ErrAlreadyConnected)

	go func() {
		io.WriteString(pw, "INFO system initialized, monitoring started\n")
		io.WriteString(pw, "I,1000000,25.00,0.500,100.0,N,0,0\r\n")
		io.WriteString(pw, "\n")
		io.WriteString(pw, "I,broken\n")
		io.WriteString(pw, "WARN ALERT: critical temperature\n")
		io.WriteString(pw, "I,2000000,85.00,0.500,100.0,C,0,0\n")
		pw.Close()
	}()

	var got []telemetry.Report
	for r := range dev.Reports() {
		got = append(got, r)
	}

	require.Len(t, got, 2)
	assert.Equal(t, monitor.Normal, got[0].Severity)
	assert.Equal(t, monitor.Critical, got[1].Severity)
	assert.Equal(t, 2*time.Second, got[1].Uptime)
	assert.Equal(t, 2025, got[0].Time.Year())

	require.NoError(t, dev.Close())
	assert.False(t, dev.IsConnected())
	assert.ErrorIs(t, dev.Connect(), ErrClosed)
}

func TestSerial_DropsWhenFull(t *testing.T) {
	dev, pw := pipeSerial(t, 1)
	require.NoError(t, dev.Connect())

	go func() {
		for i := 0; i < 5; i++ {
			io.WriteString(pw, "P,1,40.0,7.0,1,1,1\n")
		}
		pw.Close()
	}()

	n := 0
	timeout := time.After(5 * time.Second)
	for {
		select {
		case _, ok := <-dev.Reports():
			if !ok {
				assert.GreaterOrEqual(t, n, 1)
				assert.LessOrEqual(t, n, 5)
				return
			}
			n++
			time.Sleep(10 * time.Millisecond)
		case <-timeout:
			t.Fatal("reports channel did not close")
		}
	}
}

func TestSerial_CloseStopsReader(t *testing.T) {
	dev, _ := pipeSerial(t, 10)
	require.NoError(t, dev.Connect())

	done := make(chan struct{})
	go func() {
		defer close(done)
		for range dev.Reports() {
		}
	}()

	require.NoError(t, dev.Close())

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("reports channel did not close within timeout")
	}
	assert.NoError(t, dev.Close(), "second close is a no-op")
}

func TestSerial_OpenError(t *testing.T) {
	dev := New("missing", 0, 0, quietLogger())
	dev.open = func(string, *serial.Mode) (io.ReadCloser, error) {
		return nil, errors.New("no such port")
	}
	err := dev.Connect()
	assert.ErrorContains(t, err, "missing")
	assert.False(t, dev.IsConnected())
}
