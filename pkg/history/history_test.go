package history

import (
	"sync"
	"testing"
	"time"

	"github.com/itohio/fieldwatch/pkg/monitor"
	"github.com/itohio/fieldwatch/pkg/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)

func industrial(sec int, sev monitor.Severity, cutoff bool) telemetry.Report {
	return telemetry.Report{
		Kind:     telemetry.KindIndustrial,
		Time:     t0.Add(time.Duration(sec) * time.Second),
		Severity: sev,
		Cutoff:   cutoff,
	}
}

func irrigating(sec int, pump bool) telemetry.Report {
	return telemetry.Report{
		Kind: telemetry.KindIrrigation,
		Time: t0.Add(time.Duration(sec) * time.Second),
		Pump: pump,
	}
}

func TestNew(t *testing.T) {
	h := New(time.Minute)
	assert.NotNil(t, h)
	assert.Equal(t, time.Minute, h.Window())
	assert.Empty(t, h.Reports())
	assert.Empty(t, h.Episodes())

	assert.Equal(t, DefaultWindow, New(0).Window())
}

func TestAdd_WindowRemoval(t *testing.T) {
	h := New(10 * time.Second)

	for i := 0; i < 30; i++ {
		h.add(industrial(i, monitor.Normal, false))
	}

	reports := h.Reports()
	require.Len(t, reports, 10)
	assert.Equal(t, t0.Add(20*time.Second), reports[0].Time)
	assert.Equal(t, t0.Add(29*time.Second), reports[9].Time)

	latest, ok := h.Latest(telemetry.KindIndustrial)
	require.True(t, ok)
	assert.Equal(t, reports[9], latest)

	_, ok = h.Latest(telemetry.KindIrrigation)
	assert.False(t, ok)
}

func TestEpisodes_Industrial(t *testing.T) {
	h := New(time.Hour)

	seq := []telemetry.Report{
		industrial(0, monitor.Normal, false),
		industrial(1, monitor.Warning, false),
		industrial(2, monitor.Critical, true),
		industrial(3, monitor.Warning, false),
		industrial(4, monitor.Normal, false),
		industrial(5, monitor.Normal, false),
		industrial(6, monitor.Warning, false),
	}
	for _, r := range seq {
		h.add(r)
	}

	episodes := h.Episodes()
	require.Len(t, episodes, 2)

	first := episodes[0]
	assert.Equal(t, telemetry.KindIndustrial, first.Kind)
	assert.Equal(t, t0.Add(time.Second), first.Start)
	assert.Equal(t, t0.Add(3*time.Second), first.End)
	assert.Equal(t, 2*time.Second, first.Duration())
	assert.Equal(t, monitor.Critical, first.Peak)
	assert.True(t, first.Cutoff)
	assert.Equal(t, 3, first.Reports)
	assert.False(t, first.Open)

	second := episodes[1]
	assert.Equal(t, monitor.Warning, second.Peak)
	assert.False(t, second.Cutoff)
	assert.Equal(t, 1, second.Reports)
	assert.True(t, second.Open)
}

func TestEpisodes_Irrigation(t *testing.T) {
	h := New(time.Hour)

	for i, pump := range []bool{false, true, true, true, false, true} {
		h.add(irrigating(i*2, pump))
	}

	episodes := h.Episodes()
	require.Len(t, episodes, 2)
	assert.Equal(t, telemetry.KindIrrigation, episodes[0].Kind)
	assert.Equal(t, 4*time.Second, episodes[0].Duration())
	assert.Equal(t, monitor.Warning, episodes[0].Peak)
	assert.Equal(t, 3, episodes[0].Reports)
	assert.True(t, episodes[1].Open)
}

func TestEpisodes_KindsAreIndependent(t *testing.T) {
	h := New(time.Hour)

	h.add(industrial(0, monitor.Warning, false))
	h.add(irrigating(1, true))
	h.add(industrial(2, monitor.Normal, false))
	h.add(irrigating(3, true))

	episodes := h.Episodes()
	require.Len(t, episodes, 2)
	assert.False(t, episodes[0].Open, "industrial episode closed")
	assert.True(t, episodes[1].Open, "irrigation episode still running")
	assert.Equal(t, 2, episodes[1].Reports)
}

func TestEpisodes_LeaveWindow(t *testing.T) {
	h := New(10 * time.Second)

	h.add(industrial(0, monitor.Critical, false))
	h.add(industrial(1, monitor.Normal, false))
	require.Len(t, h.Episodes(), 1)

	h.add(industrial(5, monitor.Warning, false))
	h.add(industrial(12, monitor.Normal, false))

	episodes := h.Episodes()
	require.Len(t, episodes, 1, "first episode ended outside the window")
	assert.Equal(t, t0.Add(5*time.Second), episodes[0].Start)
}

func TestEpisodes_OpenEpisodeSurvivesWindow(t *testing.T) {
	h := New(5 * time.Second)

	for i := 0; i < 20; i++ {
		h.add(industrial(i, monitor.Warning, false))
	}

	episodes := h.Episodes()
	require.Len(t, episodes, 1)
	assert.True(t, episodes[0].Open)
	assert.Equal(t, t0, episodes[0].Start)
	assert.Equal(t, 20, episodes[0].Reports)

	h.add(industrial(20, monitor.Normal, false))
	assert.False(t, h.Episodes()[0].Open)
}

func TestOnUpdate(t *testing.T) {
	h := New(time.Hour)

	var got [][]telemetry.Report
	h.OnUpdate(func(reports []telemetry.Report, episodes []Episode) {
		got = append(got, reports)
	})
	h.OnUpdate(nil)

	h.add(industrial(0, monitor.Normal, false))
	h.add(industrial(1, monitor.Warning, false))

	require.Len(t, got, 2)
	assert.Len(t, got[0], 1)
	assert.Len(t, got[1], 2)

	// Callback data is a copy.
	got[1][0].Severity = monitor.Critical
	assert.Equal(t, monitor.Normal, h.Reports()[0].Severity)
}

func TestProcessReports_Channel(t *testing.T) {
	h := New(time.Hour)

	input := make(chan telemetry.Report, 10)
	done := make(chan struct{})
	go func() {
		h.ProcessReports(input)
		close(done)
	}()

	for i := 0; i < 5; i++ {
		input <- industrial(i, monitor.Normal, false)
	}
	close(input)

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("ProcessReports did not return")
	}
	assert.Len(t, h.Reports(), 5)
}

func TestReports_ThreadSafe(t *testing.T) {
	h := New(time.Hour)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			h.add(industrial(i, monitor.Severity(i%3), false))
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			_ = h.Reports()
			_ = h.Episodes()
		}
	}()
	wg.Wait()

	assert.Len(t, h.Reports(), 200)
}
