package panel

import (
	"image/color"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"github.com/itohio/fieldwatch/pkg/history"
	"github.com/itohio/fieldwatch/pkg/monitor"
)

var (
	colorGrid  = color.RGBA{R: 40, G: 40, B: 40, A: 255}
	colorAxis  = color.RGBA{R: 150, G: 150, B: 150, A: 255}
	colorTrace = color.RGBA{R: 255, G: 165, B: 0, A: 255}
)

type trendRenderer struct {
	trend *Trend

	bg      *canvas.Rectangle
	objects []fyne.CanvasObject

	lastSize fyne.Size
}

// plot is the drawing area and the value ranges mapped onto it.
type plot struct {
	x, y, w, h float32
	yMin, yMax float64
	xMin, xMax time.Time
}

func (p plot) pos(t time.Time, v float64) fyne.Position {
	span := p.xMax.Sub(p.xMin).Seconds()
	if span <= 0 {
		span = 1
	}
	x := p.x + float32(t.Sub(p.xMin).Seconds()/span)*p.w
	y := p.y + p.h - float32((v-p.yMin)/(p.yMax-p.yMin))*p.h
	return fyne.NewPos(x, y)
}

func (r *trendRenderer) MinSize() fyne.Size {
	return fyne.NewSize(400, 240)
}

func (r *trendRenderer) Layout(size fyne.Size) {
	r.bg.Resize(size)
	if r.lastSize != size {
		r.lastSize = size
		r.trend.BaseWidget.Refresh()
	}
}

func (r *trendRenderer) Refresh() {
	t := r.trend
	t.mu.RLock()
	q := t.quantity
	points := t.display
	episodes := t.episodes
	limits := t.limits
	p := plot{yMin: t.yMin, yMax: t.yMax, xMin: t.xMin, xMax: t.xMax}
	t.mu.RUnlock()

	size := t.Size()
	if size.Width == 0 || size.Height == 0 {
		return
	}

	const marginLeft, marginRight, marginTop, marginBottom = 60, 20, 24, 30
	p.x, p.y = marginLeft, marginTop
	p.w = size.Width - marginLeft - marginRight
	p.h = size.Height - marginTop - marginBottom

	r.objects = []fyne.CanvasObject{r.bg}
	r.drawEpisodes(p, episodes)
	r.drawGrid(p, q)
	r.drawLimits(p, limits)
	r.drawTrace(p, points)
	r.drawTitle(p, q, points)
}

func (r *trendRenderer) drawEpisodes(p plot, episodes []history.Episode) {
	for _, e := range episodes {
		c := LevelColor(e.Peak).(color.RGBA)
		c.A = 50
		rect := canvas.NewRectangle(c)
		start := p.pos(e.Start, p.yMax)
		end := p.pos(e.End, p.yMin)
		if start.X < p.x {
			start.X = p.x
		}
		w := max(end.X-start.X, 2)
		rect.Move(fyne.NewPos(start.X, p.y))
		rect.Resize(fyne.NewSize(w, p.h))
		r.objects = append(r.objects, rect)
	}
}

func (r *trendRenderer) drawGrid(p plot, q Quantity) {
	const rows, cols = 6, 10
	for i := range rows + 1 {
		y := p.y + float32(i)*p.h/rows
		line := canvas.NewLine(colorGrid)
		line.Position1 = fyne.NewPos(p.x, y)
		line.Position2 = fyne.NewPos(p.x+p.w, y)
		line.StrokeWidth = 1
		r.objects = append(r.objects, line)

		value := p.yMax - float64(i)*(p.yMax-p.yMin)/rows
		text := canvas.NewText(formatFloat(value, decimals(q))+q.Unit(), colorAxis)
		text.TextSize = 10
		text.Alignment = fyne.TextAlignTrailing
		text.Move(fyne.NewPos(p.x-5, y-6))
		r.objects = append(r.objects, text)
	}

	span := p.xMax.Sub(p.xMin)
	for i := range cols + 1 {
		x := p.x + float32(i)*p.w/cols
		line := canvas.NewLine(colorGrid)
		line.Position1 = fyne.NewPos(x, p.y)
		line.Position2 = fyne.NewPos(x, p.y+p.h)
		line.StrokeWidth = 1
		r.objects = append(r.objects, line)

		// Age relative to the newest point.
		age := span - time.Duration(i)*span/cols
		text := canvas.NewText("-"+formatDuration(age), colorAxis)
		text.TextSize = 10
		text.Alignment = fyne.TextAlignCenter
		text.Move(fyne.NewPos(x-15, p.y+p.h+5))
		r.objects = append(r.objects, text)
	}
}

func (r *trendRenderer) drawLimits(p plot, limits []Limit) {
	for _, l := range limits {
		if l.Value < p.yMin || l.Value > p.yMax {
			continue
		}
		line := canvas.NewLine(LevelColor(l.Level))
		a := p.pos(p.xMin, l.Value)
		line.Position1 = a
		line.Position2 = fyne.NewPos(p.x+p.w, a.Y)
		line.StrokeWidth = 1
		if l.Level == monitor.Critical {
			line.StrokeWidth = 2
		}
		r.objects = append(r.objects, line)
	}
}

func (r *trendRenderer) drawTrace(p plot, points []Point) {
	if len(points) < 2 {
		return
	}
	prev := p.pos(points[0].Time, points[0].Value)
	for _, pt := range points[1:] {
		next := p.pos(pt.Time, pt.Value)
		line := canvas.NewLine(colorTrace)
		line.Position1 = prev
		line.Position2 = next
		line.StrokeWidth = 1.5
		r.objects = append(r.objects, line)
		prev = next
	}
}

func (r *trendRenderer) drawTitle(p plot, q Quantity, points []Point) {
	title := q.String()
	if len(points) > 0 {
		title += "  " + formatFloat(points[len(points)-1].Value, decimals(q)) + " " + q.Unit()
	}
	text := canvas.NewText(title, color.RGBA{R: 200, G: 200, B: 200, A: 255})
	text.TextSize = 12
	text.Move(fyne.NewPos(p.x+5, 4))
	r.objects = append(r.objects, text)
}

func (r *trendRenderer) Objects() []fyne.CanvasObject {
	return r.objects
}

func (r *trendRenderer) Destroy() {}

func decimals(q Quantity) int {
	if q == Vibration {
		return 2
	}
	return 1
}
