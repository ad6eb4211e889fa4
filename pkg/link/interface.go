// Package link connects the host to a board: a serial line carrying record
// lines, or a simulated board running the real controllers on fake sensors.
package link

import (
	"errors"

	"github.com/itohio/fieldwatch/pkg/telemetry"
)

var (
	ErrAlreadyConnected = errors.New("already connected")
	ErrNotConnected     = errors.New("not connected")
	ErrClosed           = errors.New("device closed")
)

// Device defines the interface for boards (real or mocked).
type Device interface {
	Connect() error
	Close() error
	// Reports is closed once the device stops producing.
	Reports() <-chan telemetry.Report
	IsConnected() bool
}

// Ensure Serial implements Device.
var _ Device = (*Serial)(nil)

// Ensure Mock implements Device.
var _ Device = (*Mock)(nil)
