package panel

import (
	"image/color"
	"sync"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/widget"
	"github.com/itohio/fieldwatch/pkg/config"
	"github.com/itohio/fieldwatch/pkg/history"
	"github.com/itohio/fieldwatch/pkg/telemetry"
)

const maxDisplayPoints = 1000

// Trend is a custom Fyne widget that plots one quantity over the history
// window, with threshold lines and shaded episodes.
type Trend struct {
	widget.BaseWidget

	cfg *config.Config

	// Data (protected by mu)
	mu       sync.RWMutex
	quantity Quantity
	points   []Point
	display  []Point
	episodes []history.Episode
	limits   []Limit

	// Auto-scaling
	yMin, yMax float64
	xMin, xMax time.Time
}

// NewTrend creates a trend plotting q.
func NewTrend(cfg *config.Config, q Quantity) *Trend {
	t := &Trend{
		cfg:      cfg,
		quantity: q,
		limits:   Limits(q, cfg),
		display:  make([]Point, 0, maxDisplayPoints),
	}
	t.ExtendBaseWidget(t)
	t.mu.Lock()
	t.updateAutoScale()
	t.mu.Unlock()
	return t
}

// Quantity returns what is plotted.
func (t *Trend) Quantity() Quantity {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.quantity
}

// SetQuantity switches the plotted quantity. The next Update fills it.
func (t *Trend) SetQuantity(q Quantity) {
	t.mu.Lock()
	t.quantity = q
	t.limits = Limits(q, t.cfg)
	t.points = t.points[:0]
	t.display = t.display[:0]
	t.episodes = nil
	t.updateAutoScale()
	t.mu.Unlock()
	t.Refresh()
}

// Update replaces the plotted data. Call it on the main thread (fyne.Do).
func (t *Trend) Update(reports []telemetry.Report, episodes []history.Episode) {
	t.mu.Lock()

	t.points = Series(t.points, reports, t.quantity)
	t.display = Downsample(t.display, t.points, maxDisplayPoints)

	kind := t.quantity.Kind()
	t.episodes = t.episodes[:0]
	for _, e := range episodes {
		if e.Kind == kind {
			t.episodes = append(t.episodes, e)
		}
	}

	t.updateAutoScale()
	t.mu.Unlock()

	// Refresh outside the lock; the renderer takes the read lock.
	t.Refresh()
}

// updateAutoScale fits the Y range to the data and the limits inside it, and
// the X range to the window.
func (t *Trend) updateAutoScale() {
	window := t.cfg.History.Window
	if window <= 0 {
		window = history.DefaultWindow
	}

	if len(t.display) == 0 {
		t.yMin, t.yMax = 0, 1
		for _, l := range t.limits {
			t.yMax = max(t.yMax, l.Value)
		}
		t.xMax = time.Now()
		t.xMin = t.xMax.Add(-window)
		return
	}

	t.yMin = t.display[0].Value
	t.yMax = t.display[0].Value
	for _, p := range t.display {
		t.yMin = min(t.yMin, p.Value)
		t.yMax = max(t.yMax, p.Value)
	}
	// Show the nearest limit on each side.
	for _, l := range t.limits {
		if l.Value > t.yMax && l.Value-t.yMax < (t.yMax-t.yMin+1) {
			t.yMax = l.Value
		}
		if l.Value < t.yMin && t.yMin-l.Value < (t.yMax-t.yMin+1) {
			t.yMin = l.Value
		}
	}

	span := t.yMax - t.yMin
	if span == 0 {
		span = 1
	}
	margin := span * 0.1
	t.yMin -= margin
	t.yMax += margin

	t.xMax = t.display[len(t.display)-1].Time
	t.xMin = t.display[0].Time
	if t.xMax.Sub(t.xMin) < window {
		t.xMin = t.xMax.Add(-window)
	}
}

// CreateRenderer creates the widget renderer.
func (t *Trend) CreateRenderer() fyne.WidgetRenderer {
	bg := canvas.NewRectangle(color.RGBA{R: 20, G: 20, B: 20, A: 255})
	return &trendRenderer{
		trend:   t,
		bg:      bg,
		objects: []fyne.CanvasObject{bg},
	}
}
