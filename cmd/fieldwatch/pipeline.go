package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/itohio/fieldwatch/pkg/config"
	"github.com/itohio/fieldwatch/pkg/metrics"
	"github.com/itohio/fieldwatch/pkg/monitor"
	"github.com/itohio/fieldwatch/pkg/store"
	"github.com/itohio/fieldwatch/pkg/telemetry"
	"github.com/itohio/fieldwatch/pkg/weather"
)

type reportPublisher interface {
	Publish(r telemetry.Report) error
}

type latestSetter interface {
	SetLatest(ctx context.Context, r telemetry.Report) error
}

// pipeline hands every report to the configured sinks before the history
// sees it. Optional sinks are nil when disabled.
type pipeline struct {
	log       *slog.Logger
	store     store.Store
	cache     latestSetter
	publisher reportPublisher
	metrics   *metrics.Metrics
	advisor   *advisor

	severity map[telemetry.Kind]monitor.Severity
}

func newPipeline(log *slog.Logger, st store.Store) *pipeline {
	return &pipeline{
		log:      log,
		store:    st,
		severity: make(map[telemetry.Kind]monitor.Severity),
	}
}

// run handles each report of in and forwards it to out. out is closed when
// in is.
func (p *pipeline) run(ctx context.Context, in <-chan telemetry.Report, out chan<- telemetry.Report) {
	defer close(out)
	for r := range in {
		p.handle(ctx, r)
		out <- r
	}
}

func (p *pipeline) handle(ctx context.Context, r telemetry.Report) {
	p.metrics.Observe(r)

	level := r.Level()
	if prev, ok := p.severity[r.Kind]; !ok || prev != level {
		p.severity[r.Kind] = level
		if ok {
			p.log.Info("level changed", "kind", r.Kind, "from", prev.String(), "to", level.String(), "cutoff", r.Cutoff)
		}
	}

	rec := store.Record{Report: r, Notes: p.advisor.notes(ctx, r)}
	if err := p.store.Insert(ctx, &rec); err != nil {
		p.log.Error("failed to store report", "kind", r.Kind, "error", err)
	}

	if p.cache != nil {
		if err := p.cache.SetLatest(ctx, r); err != nil {
			p.log.Warn("failed to cache report", "kind", r.Kind, "error", err)
		}
	}

	if p.publisher != nil {
		if err := p.publisher.Publish(r); err != nil {
			p.log.Warn("failed to publish report", "kind", r.Kind, "error", err)
		}
	}
}

type outlookSource interface {
	Outlook(ctx context.Context) (weather.Outlook, error)
}

// advisor attaches weather advice to irrigation reports. The outlook is
// fetched at most once per refresh; after a failed fetch the last good
// outlook is used until the next attempt.
type advisor struct {
	source  outlookSource
	cfg     config.WeatherConfig
	refresh time.Duration
	now     func() time.Time
	log     *slog.Logger

	fetched time.Time
	outlook weather.Outlook
	valid   bool

	advised  bool
	irrigate bool
}

const defaultOutlookRefresh = 30 * time.Minute

func newAdvisor(src outlookSource, cfg config.WeatherConfig, log *slog.Logger) *advisor {
	return &advisor{
		source:  src,
		cfg:     cfg,
		refresh: defaultOutlookRefresh,
		now:     time.Now,
		log:     log,
	}
}

// notes returns the advice for r, or "" for reports it does not apply to.
func (a *advisor) notes(ctx context.Context, r telemetry.Report) string {
	if a == nil || r.Kind != telemetry.KindIrrigation || r.HumidityFault() {
		return ""
	}

	now := a.now()
	if a.fetched.IsZero() || now.Sub(a.fetched) >= a.refresh {
		a.fetched = now
		o, err := a.source.Outlook(ctx)
		if err != nil {
			a.log.Warn("failed to fetch weather outlook", "error", err)
		} else {
			a.outlook = o
			a.valid = true
		}
	}
	if !a.valid {
		return ""
	}

	advice := weather.Advise(float64(r.Humidity), a.outlook, a.cfg)
	if !a.advised || advice.Irrigate != a.irrigate {
		a.advised = true
		a.irrigate = advice.Irrigate
		a.log.Info("weather advice", "irrigate", advice.Irrigate, "reason", advice.Reason, "pump", r.Pump)
	}
	return advice.Notes()
}
