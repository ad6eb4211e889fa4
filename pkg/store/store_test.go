package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/chewxy/math32"
	"github.com/itohio/fieldwatch/pkg/monitor"
	"github.com/itohio/fieldwatch/pkg/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)

func industrialReport(sec int, sev monitor.Severity) telemetry.Report {
	return telemetry.Report{
		Kind:        telemetry.KindIndustrial,
		Time:        t0.Add(time.Duration(sec) * time.Second),
		Uptime:      time.Duration(sec) * time.Second,
		Temperature: 25 + float32(sec),
		Vibration:   0.5,
		Distance:    100,
		Severity:    sev,
		Cutoff:      sev == monitor.Critical,
	}
}

func irrigationReport(sec int, humidity float32, pump bool) telemetry.Report {
	return telemetry.Report{
		Kind:       telemetry.KindIrrigation,
		Time:       t0.Add(time.Duration(sec) * time.Second),
		Humidity:   humidity,
		PH:         6.5,
		Phosphorus: true,
		Potassium:  pump,
		Pump:       pump,
	}
}

// testStore runs the behaviour every Store must share.
func testStore(t *testing.T, s Store) {
	ctx := context.Background()

	t.Run("insert and get", func(t *testing.T) {
		rec := Record{Report: industrialReport(0, monitor.Warning), Notes: "first"}
		require.NoError(t, s.Insert(ctx, &rec))
		assert.NotZero(t, rec.ID)

		got, err := s.Get(ctx, rec.ID)
		require.NoError(t, err)
		assert.Equal(t, rec.ID, got.ID)
		assert.Equal(t, "first", got.Notes)
		assert.Equal(t, telemetry.KindIndustrial, got.Report.Kind)
		assert.True(t, got.Report.Time.Equal(rec.Report.Time))
		assert.Equal(t, monitor.Warning, got.Report.Severity)
		assert.InDelta(t, 25, got.Report.Temperature, 1e-4)
	})

	t.Run("missing humidity survives", func(t *testing.T) {
		rec := Record{Report: irrigationReport(1, math32.NaN(), false)}
		require.NoError(t, s.Insert(ctx, &rec))

		got, err := s.Get(ctx, rec.ID)
		require.NoError(t, err)
		assert.True(t, got.Report.HumidityFault())
		assert.InDelta(t, 6.5, got.Report.PH, 1e-4)
	})

	t.Run("get missing", func(t *testing.T) {
		_, err := s.Get(ctx, 999999)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("list and filter", func(t *testing.T) {
		for i, sev := range []monitor.Severity{monitor.Normal, monitor.Critical, monitor.Normal} {
			rec := Record{Report: industrialReport(10+i, sev)}
			require.NoError(t, s.Insert(ctx, &rec))
		}
		rec := Record{Report: irrigationReport(20, 30, true)}
		require.NoError(t, s.Insert(ctx, &rec))

		all, err := s.List(ctx, Filter{})
		require.NoError(t, err)
		require.Len(t, all, 6)
		for i := 1; i < len(all); i++ {
			assert.False(t, all[i].Report.Time.Before(all[i-1].Report.Time), "ordered by time")
		}

		irr, err := s.List(ctx, Filter{Kind: telemetry.KindIrrigation})
		require.NoError(t, err)
		assert.Len(t, irr, 2)

		active, err := s.List(ctx, Filter{ActiveOnly: true})
		require.NoError(t, err)
		assert.Len(t, active, 3, "warning, critical and the running pump")

		window, err := s.List(ctx, Filter{Since: t0.Add(10 * time.Second), Until: t0.Add(12 * time.Second)})
		require.NoError(t, err)
		assert.Len(t, window, 2)

		newest, err := s.List(ctx, Filter{Kind: telemetry.KindIndustrial, Limit: 2})
		require.NoError(t, err)
		require.Len(t, newest, 2)
		assert.True(t, newest[0].Report.Time.Equal(t0.Add(11*time.Second)))
		assert.True(t, newest[1].Report.Time.Equal(t0.Add(12*time.Second)))
	})

	t.Run("update", func(t *testing.T) {
		rec := Record{Report: irrigationReport(30, 45, false)}
		require.NoError(t, s.Insert(ctx, &rec))

		rec.Notes = "checked by hand"
		rec.Report.Humidity = 47
		require.NoError(t, s.Update(ctx, rec))

		got, err := s.Get(ctx, rec.ID)
		require.NoError(t, err)
		assert.Equal(t, "checked by hand", got.Notes)
		assert.InDelta(t, 47, got.Report.Humidity, 1e-4)

		assert.ErrorIs(t, s.Update(ctx, Record{ID: 999999}), ErrNotFound)
	})

	t.Run("delete", func(t *testing.T) {
		rec := Record{Report: industrialReport(40, monitor.Normal)}
		require.NoError(t, s.Insert(ctx, &rec))
		require.NoError(t, s.Delete(ctx, rec.ID))

		_, err := s.Get(ctx, rec.ID)
		assert.ErrorIs(t, err, ErrNotFound)
		assert.ErrorIs(t, s.Delete(ctx, rec.ID), ErrNotFound)
	})
}

func TestMemory(t *testing.T) {
	s := NewMemory()
	defer s.Close()
	testStore(t, s)
	testSupplies(t, s)
}

func TestPostgres(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	s, err := OpenPostgres(ctx, dsn)
	require.NoError(t, err)
	defer s.Close()

	_, err = s.pool.Exec(ctx, "TRUNCATE readings, supplies RESTART IDENTITY")
	require.NoError(t, err)

	testStore(t, s)
	testSupplies(t, s)
}

func TestListQuery(t *testing.T) {
	q, args := listQuery(Filter{})
	assert.Equal(t, "SELECT "+columns+" FROM readings ORDER BY recorded_at, id", q)
	assert.Empty(t, args)

	q, args = listQuery(Filter{Kind: telemetry.KindIndustrial, Since: t0, ActiveOnly: true, Limit: 5})
	assert.Contains(t, q, "kind = $1")
	assert.Contains(t, q, "recorded_at >= $2")
	assert.Contains(t, q, "LIMIT $3")
	assert.Contains(t, q, "severity <> 'NORMAL'")
	assert.Equal(t, []any{"industrial", t0, 5}, args)
}

func TestFilter_Match(t *testing.T) {
	r := industrialReport(5, monitor.Warning)

	assert.True(t, Filter{}.Match(r))
	assert.True(t, Filter{Kind: telemetry.KindIndustrial, ActiveOnly: true}.Match(r))
	assert.False(t, Filter{Kind: telemetry.KindIrrigation}.Match(r))
	assert.False(t, Filter{Since: t0.Add(6 * time.Second)}.Match(r))
	assert.False(t, Filter{Until: t0.Add(5 * time.Second)}.Match(r))
	assert.True(t, Filter{Until: t0.Add(6 * time.Second)}.Match(r))
	assert.False(t, Filter{ActiveOnly: true}.Match(industrialReport(5, monitor.Normal)))
}
