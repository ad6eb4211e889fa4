package ranging

import (
	"testing"
	"time"

	"github.com/itohio/fieldwatch/pkg/hal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDistanceCM(t *testing.T) {
	tests := []struct {
		name string
		echo time.Duration
		want float32
	}{
		{"no echo", 0, 0},
		{"one metre", 5882 * time.Microsecond, 100},
		{"five centimetres", 294 * time.Microsecond, 5},
		{"two and a half metres", 14706 * time.Microsecond, 250},
		{"sub-microsecond truncates", 900 * time.Nanosecond, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, DistanceCM(tt.echo), 0.01)
		})
	}
}

// fakeClock advances by step on every Now call so busy loops make progress.
type fakeClock struct {
	t    time.Time
	step time.Duration
}

func (c *fakeClock) Now() time.Time {
	now := c.t
	c.t = c.t.Add(c.step)
	return now
}

func (c *fakeClock) Sleep(d time.Duration) { c.t = c.t.Add(d) }

func (c *fakeClock) peek() time.Time { return c.t }

func TestUltrasonic_Echo(t *testing.T) {
	clk := &fakeClock{t: time.Unix(0, 0), step: time.Microsecond}
	start := clk.t

	rise := start.Add(200 * time.Microsecond)
	fall := rise.Add(5882 * time.Microsecond)
	echo := hal.InputFunc(func() bool {
		now := clk.peek()
		return !now.Before(rise) && now.Before(fall)
	})

	var trig hal.Pin
	u := NewUltrasonic(&trig, echo)
	u.Now = clk.Now
	u.Sleep = clk.Sleep

	d, err := u.Echo()
	require.NoError(t, err)
	assert.InDelta(t, float64(5882*time.Microsecond), float64(d), float64(5*time.Microsecond))
	assert.InDelta(t, 100.0, DistanceCM(d), 0.2)

	// Trigger is low, pulsed high, then low again.
	assert.False(t, trig.Get())
	assert.Equal(t, 3, trig.Writes())
}

func TestUltrasonic_TimeoutYieldsZero(t *testing.T) {
	clk := &fakeClock{t: time.Unix(0, 0), step: time.Microsecond}

	var trig hal.Pin
	u := NewUltrasonic(&trig, hal.InputFunc(func() bool { return false }))
	u.Timeout = 10 * time.Millisecond
	u.Now = clk.Now
	u.Sleep = clk.Sleep

	d, err := u.Echo()
	require.NoError(t, err)
	assert.Zero(t, d)
	assert.Zero(t, DistanceCM(d))
}

func TestUltrasonic_StuckHighTimesOut(t *testing.T) {
	clk := &fakeClock{t: time.Unix(0, 0), step: time.Microsecond}

	var trig hal.Pin
	u := NewUltrasonic(&trig, hal.InputFunc(func() bool { return true }))
	u.Timeout = 5 * time.Millisecond
	u.Now = clk.Now
	u.Sleep = clk.Sleep

	d, err := u.Echo()
	require.NoError(t, err)
	assert.Zero(t, d)
}

func TestNewUltrasonic_Defaults(t *testing.T) {
	u := NewUltrasonic(&hal.Pin{}, &hal.Pin{})
	assert.Equal(t, DefaultTimeout, u.Timeout)
	assert.Nil(t, u.Now)
	assert.Nil(t, u.Sleep)
}
