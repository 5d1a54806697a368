package telemplot

import (
	"fmt"
	"io"
	"math"
	"path/filepath"
	"strings"
	"time"
)

// Surface renders a finished plot into w.
type Surface interface {
	Render(w io.Writer, plot *Plot) error
	ContentType() string
}

// Returns the surface for "png" or "svg".
func SurfaceFor(format string) (Surface, error) {
	switch strings.ToLower(strings.TrimPrefix(format, ".")) {
	case "png":
		return NewPNGSurface(), nil
	case "svg":
		return NewSVGSurface(), nil
	default:
		return nil, fmt.Errorf("output format %q: %w", format, ErrUnknownFormat)
	}
}

// Picks the output format from a file name, defaulting to png.
func FormatFromPath(path string) string {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	if ext == "" {
		return "png"
	}
	return ext
}

// Pixels per point at the 100 dpi the surfaces render at.
const pixelsPerPoint = 100.0 / 72.0

// Padding around the plot area, in pixels.
const (
	framePadLeft   = 80.0
	framePadTop    = 50.0
	framePadBottom = 60.0
	framePadRight  = 80.0
)

// plotFrame maps data coordinates to pixels inside the plot area. Pixel y
// grows downwards.
type plotFrame struct {
	Left, Top, Width, Height float64

	Start, End time.Time
	Low, High  float64
}

func newPlotFrame(plot *Plot) plotFrame {
	right := framePadRight
	for _, s := range plot.Series {
		right = Max(right, framePadRight+s.AxisOffset*pixelsPerPoint)
	}

	start, end := plot.TimeBounds()

	return plotFrame{
		Left:   framePadLeft,
		Top:    framePadTop,
		Width:  math.Max(float64(plot.Width)-framePadLeft-right, 1),
		Height: math.Max(float64(plot.Height)-framePadTop-framePadBottom, 1),
		Start:  start,
		End:    end,
		Low:    plot.Range.Low,
		High:   plot.Range.High,
	}
}

func (f plotFrame) X(t time.Time) float64 {
	span := f.End.Sub(f.Start)
	if span <= 0 {
		return f.Left + f.Width/2
	}
	return f.Left + float64(t.Sub(f.Start))/float64(span)*f.Width
}

func (f plotFrame) Y(v float64) float64 {
	span := f.High - f.Low
	if span <= 0 {
		return f.Top + f.Height/2
	}
	return f.Top + (f.High-v)/span*f.Height
}

// Horizontal pixel position of the spine of an axis.
func (f plotFrame) AxisX(s PlottedSeries) float64 {
	if s.AxisIndex == 0 {
		return f.Left
	}
	return f.Left + f.Width + s.AxisOffset*pixelsPerPoint
}

// Pixel position of the label of slot, and of its anchor.
func (f plotFrame) Callout(slot AnnotationSlot) (text Vec, anchor Vec) {
	anchor = Vec{X: f.X(slot.Anchor.Time), Y: f.Y(slot.Anchor.Value)}
	text = Vec{
		X: anchor.X + slot.TextOffset.X*pixelsPerPoint,
		Y: anchor.Y - slot.TextOffset.Y*pixelsPerPoint,
	}
	return text, anchor
}

// Control point of the connector in pixel coordinates.
func connectorPixelControl(text Vec, anchor Vec, rad float64) Vec {
	c := ConnectorControlPoint(Vec{X: text.X, Y: -text.Y}, Vec{X: anchor.X, Y: -anchor.Y}, rad)
	return Vec{X: c.X, Y: -c.Y}
}

// Evenly spaced tick values across [low, high].
func linearTicks(low float64, high float64, n int) []float64 {
	if n < 2 {
		return []float64{low}
	}
	ticks := make([]float64, n)
	step := (high - low) / float64(n-1)
	for i := range ticks {
		ticks[i] = low + float64(i)*step
	}
	return ticks
}

// Evenly spaced tick times across [start, end].
func timeTicks(start time.Time, end time.Time, n int) []time.Time {
	if !end.After(start) || n < 2 {
		return []time.Time{start}
	}
	ticks := make([]time.Time, n)
	step := end.Sub(start) / time.Duration(n-1)
	for i := range ticks {
		ticks[i] = start.Add(time.Duration(i) * step)
	}
	return ticks
}

// Layout for time tick labels, coarser for longer spans.
func timeTickLayout(start time.Time, end time.Time) string {
	switch span := end.Sub(start); {
	case span >= 72*time.Hour:
		return "2006-01-02"
	case span >= 24*time.Hour:
		return "01-02 15:04"
	case span >= 10*time.Minute:
		return "15:04"
	default:
		return "15:04:05"
	}
}
