package hal

import (
	"sync"
	"time"
)

// Pin is an in-memory digital line usable as both input and output.
// It counts writes so tests can check how an output was driven.
type Pin struct {
	mu     sync.RWMutex
	level  bool
	writes int
}

var (
	_ DigitalOutput = (*Pin)(nil)
	_ DigitalInput  = (*Pin)(nil)
)

// Set drives the pin.
func (p *Pin) Set(high bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.level = high
	p.writes++
}

// Get returns the current level.
func (p *Pin) Get() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.level
}

// Writes returns how many times Set was called.
func (p *Pin) Writes() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.writes
}

// ToneBuzzer records the last tone requested.
type ToneBuzzer struct {
	mu     sync.RWMutex
	hz     uint32
	active bool
}

var _ Buzzer = (*ToneBuzzer)(nil)

// Tone starts a tone.
func (b *ToneBuzzer) Tone(hz uint32) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.hz = hz
	b.active = true
}

// Silence stops any tone.
func (b *ToneBuzzer) Silence() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.hz = 0
	b.active = false
}

// State returns whether the buzzer sounds and at which frequency.
func (b *ToneBuzzer) State() (active bool, hz uint32) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.active, b.hz
}

// FakeThermometer returns a settable temperature or error.
type FakeThermometer struct {
	mu      sync.RWMutex
	celsius float32
	err     error
}

var _ Thermometer = (*FakeThermometer)(nil)

// Set sets the next reading and clears any error.
func (f *FakeThermometer) Set(celsius float32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.celsius = celsius
	f.err = nil
}

// Fail makes the next reads fail with err.
func (f *FakeThermometer) Fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

// ReadCelsius implements Thermometer.
func (f *FakeThermometer) ReadCelsius() (float32, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.err != nil {
		return Disconnected, f.err
	}
	return f.celsius, nil
}

// FakeAccelerometer returns settable raw counts.
type FakeAccelerometer struct {
	mu         sync.RWMutex
	ax, ay, az int16
	offline    bool
}

var _ Accelerometer = (*FakeAccelerometer)(nil)

// Set sets the raw counts for the next read.
func (f *FakeAccelerometer) Set(ax, ay, az int16) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ax, f.ay, f.az = ax, ay, az
}

// SetOffline makes the device stop answering.
func (f *FakeAccelerometer) SetOffline(offline bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.offline = offline
}

// Connected implements Accelerometer.
func (f *FakeAccelerometer) Connected() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return !f.offline
}

// Acceleration implements Accelerometer.
func (f *FakeAccelerometer) Acceleration() (int16, int16, int16, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.offline {
		return 0, 0, 0, ErrDisconnected
	}
	return f.ax, f.ay, f.az, nil
}

// FakeEcho returns a settable round trip duration.
type FakeEcho struct {
	mu  sync.RWMutex
	d   time.Duration
	err error
}

var _ EchoTimer = (*FakeEcho)(nil)

// Set sets the next round trip.
func (f *FakeEcho) Set(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.d = d
	f.err = nil
}

// Fail makes the next reads fail with err.
func (f *FakeEcho) Fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

// Echo implements EchoTimer.
func (f *FakeEcho) Echo() (time.Duration, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.d, f.err
}

// FakeHygrometer returns a settable humidity or error.
type FakeHygrometer struct {
	mu      sync.RWMutex
	percent float32
	err     error
}

var _ Hygrometer = (*FakeHygrometer)(nil)

// Set sets the next reading and clears any error.
func (f *FakeHygrometer) Set(percent float32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.percent = percent
	f.err = nil
}

// Fail makes the next reads fail with err.
func (f *FakeHygrometer) Fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

// Humidity implements Hygrometer.
func (f *FakeHygrometer) Humidity() (float32, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.percent, f.err
}

// FakeAnalog returns a settable ADC value.
type FakeAnalog struct {
	mu    sync.RWMutex
	value uint16
}

var _ AnalogInput = (*FakeAnalog)(nil)

// Set sets the raw value, clamped to 12 bits.
func (f *FakeAnalog) Set(v uint16) {
	if v > 4095 {
		v = 4095
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.value = v
}

// Get implements AnalogInput.
func (f *FakeAnalog) Get() uint16 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.value
}

// FakeDisplay keeps the last lines shown.
type FakeDisplay struct {
	mu    sync.RWMutex
	lines []string
	shows int
}

var _ TextDisplay = (*FakeDisplay)(nil)

// Show implements TextDisplay.
func (f *FakeDisplay) Show(lines []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lines = append(f.lines[:0], lines...)
	f.shows++
	return nil
}

// Lines returns a copy of the last lines shown.
func (f *FakeDisplay) Lines() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]string, len(f.lines))
	copy(out, f.lines)
	return out
}
