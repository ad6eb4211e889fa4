package link

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/itohio/fieldwatch/pkg/telemetry"
	"go.bug.st/serial"
)

const (
	// DefaultBaudRate matches the ESP32 sketches.
	DefaultBaudRate = 115200
	// DefaultBufferSize is the default size for the reports channel buffer.
	DefaultBufferSize = 100
)

// Port represents a serial port.
type Port struct {
	Name        string
	Description string
}

// Serial reads record lines from a board over a serial port. Human log
// lines printed by the board are passed to the logger at debug level.
// A Serial can be connected once.
type Serial struct {
	port     string
	baudRate int
	bufSize  int
	log      *slog.Logger

	open func(name string, mode *serial.Mode) (io.ReadCloser, error)
	now  func() time.Time

	conn      io.ReadCloser
	reports   chan telemetry.Report
	mu        sync.RWMutex
	cancel    context.CancelFunc
	done      chan struct{}
	connected bool
}

// New creates a new Serial with the specified port, baud rate, and buffer
// size. A nil logger uses slog.Default.
func New(port string, baudRate int, bufSize int, log *slog.Logger) *Serial {
	if baudRate == 0 {
		baudRate = DefaultBaudRate
	}
	if bufSize == 0 {
		bufSize = DefaultBufferSize
	}
	if log == nil {
		log = slog.Default()
	}

	return &Serial{
		port:     port,
		baudRate: baudRate,
		bufSize:  bufSize,
		log:      log.With("port", port),
		open: func(name string, mode *serial.Mode) (io.ReadCloser, error) {
			return serial.Open(name, mode)
		},
		now:     time.Now,
		reports: make(chan telemetry.Report, bufSize),
	}
}

// Ports returns a list of available serial ports.
func Ports() ([]Port, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to list serial ports: %w", err)
	}

	result := make([]Port, 0, len(ports))
	for _, name := range ports {
		desc := name
		if p, err := serial.Open(name, &serial.Mode{BaudRate: DefaultBaudRate}); err != nil {
			desc = name + " (busy)"
		} else {
			p.Close()
		}
		result = append(result, Port{Name: name, Description: desc})
	}

	return result, nil
}

// Connect opens the serial port and starts reading reports.
func (d *Serial) Connect() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.connected {
		return ErrAlreadyConnected
	}
	if d.done != nil {
		return ErrClosed
	}

	conn, err := d.open(d.port, &serial.Mode{BaudRate: d.baudRate})
	if err != nil {
		return fmt.Errorf("failed to open serial port %s: %w", d.port, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	d.conn = conn
	d.cancel = cancel
	d.done = make(chan struct{})
	d.connected = true

	go d.readReports(ctx, conn, d.done)

	return nil
}

// Close closes the port and waits for the reader to finish. The reports
// channel is closed by then.
func (d *Serial) Close() error {
	d.mu.Lock()
	if !d.connected {
		d.mu.Unlock()
		return nil
	}

	d.cancel()
	var err error
	if d.conn != nil {
		err = d.conn.Close()
		d.conn = nil
	}
	d.connected = false
	done := d.done
	d.mu.Unlock()

	<-done
	if err != nil {
		return fmt.Errorf("failed to close serial port: %w", err)
	}
	return nil
}

// Reports returns the channel for reading reports.
func (d *Serial) Reports() <-chan telemetry.Report {
	return d.reports
}

// IsConnected returns whether the device is currently connected.
func (d *Serial) IsConnected() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.connected
}

// readReports scans lines until the port closes or ctx is cancelled.
func (d *Serial) readReports(ctx context.Context, r io.Reader, done chan struct{}) {
	defer close(done)
	defer close(d.reports)
	defer func() {
		if p := recover(); p != nil {
			d.log.Error("panic in serial reader", "panic", p)
		}
	}()

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if !telemetry.IsRecord(line) {
			d.log.Debug("board", "line", line)
			continue
		}

		report, err := telemetry.Parse(line)
		if err != nil {
			d.log.Warn("failed to parse record", "line", line, "err", err)
			continue
		}
		report.Time = d.now()

		// Send report to channel (non-blocking)
		select {
		case d.reports <- report:
		case <-ctx.Done():
			return
		default:
			d.log.Warn("reports channel full, dropping report", "kind", report.Kind)
		}
	}

	if err := scanner.Err(); err != nil && !errors.Is(err, io.EOF) && ctx.Err() == nil {
		d.log.Error("error reading from serial port", "err", err)
	}
}
