package telemplot

import (
	"fmt"
	"image/color"
	"io"
	"math"
	"strconv"

	"github.com/fogleman/gg"
	"golang.org/x/image/font/basicfont"
)

// PNGSurface rasterizes a plot with fogleman/gg.
type PNGSurface struct {
	Background color.Color
	Foreground color.Color
	GridColor  color.Color
	LineWidth  float64
}

func NewPNGSurface() *PNGSurface {
	return &PNGSurface{
		Background: color.White,
		Foreground: color.RGBA{33, 37, 41, 255},
		GridColor:  color.RGBA{225, 225, 225, 255},
		LineWidth:  1.5,
	}
}

func (s *PNGSurface) ContentType() string {
	return "image/png"
}

func (s *PNGSurface) Render(w io.Writer, plot *Plot) error {
	if plot == nil || len(plot.Series) == 0 {
		return fmt.Errorf("nothing to render")
	}

	dc := gg.NewContext(plot.Width, plot.Height)
	dc.SetFontFace(basicfont.Face7x13)
	dc.SetColor(s.Background)
	dc.Clear()

	frame := newPlotFrame(plot)

	s.drawGrid(dc, frame)
	s.drawTimeAxis(dc, frame, plot)
	for _, series := range plot.Series {
		rgba, err := series.Color.RGBA()
		if err != nil {
			return err
		}
		s.drawValueAxis(dc, frame, series, rgba)
		s.drawSeries(dc, frame, series, rgba)
	}

	for _, slot := range plot.Annotations {
		rgba, err := slot.Color.RGBA()
		if err != nil {
			return err
		}
		s.drawAnnotation(dc, frame, slot, rgba)
	}

	dc.SetColor(s.Foreground)
	dc.DrawStringAnchored(plot.Title, float64(plot.Width)/2, framePadTop/2, 0.5, 0.5)

	if err := dc.EncodePNG(w); err != nil {
		return fmt.Errorf("failed to encode PNG: %w", err)
	}
	return nil
}

func (s *PNGSurface) drawGrid(dc *gg.Context, f plotFrame) {
	dc.SetColor(s.GridColor)
	dc.SetLineWidth(0.5)
	for _, v := range linearTicks(f.Low, f.High, 6) {
		y := f.Y(v)
		dc.DrawLine(f.Left, y, f.Left+f.Width, y)
		dc.Stroke()
	}

	dc.SetColor(s.Foreground)
	dc.SetLineWidth(1)
	dc.DrawRectangle(f.Left, f.Top, f.Width, f.Height)
	dc.Stroke()
}

func (s *PNGSurface) drawTimeAxis(dc *gg.Context, f plotFrame, plot *Plot) {
	layout := timeTickLayout(f.Start, f.End)
	bottom := f.Top + f.Height

	dc.SetColor(s.Foreground)
	dc.SetLineWidth(1)
	for _, t := range timeTicks(f.Start, f.End, 6) {
		x := f.X(t)
		dc.DrawLine(x, bottom, x, bottom+4)
		dc.Stroke()
		dc.DrawStringAnchored(t.Format(layout), x, bottom+14, 0.5, 0.5)
	}

	dc.DrawStringAnchored(plot.TimeLabel, f.Left+f.Width/2, bottom+38, 0.5, 0.5)
}

func (s *PNGSurface) drawValueAxis(dc *gg.Context, f plotFrame, series PlottedSeries, c color.Color) {
	x := f.AxisX(series)
	tickDir, labelAlign := 1.0, 0.0
	if series.AxisIndex == 0 {
		tickDir, labelAlign = -1.0, 1.0
	}

	dc.SetColor(c)
	dc.SetLineWidth(1)
	dc.DrawLine(x, f.Top, x, f.Top+f.Height)
	dc.Stroke()

	for _, v := range linearTicks(f.Low, f.High, 6) {
		y := f.Y(v)
		dc.DrawLine(x, y, x+4*tickDir, y)
		dc.Stroke()
		dc.DrawStringAnchored(strconv.FormatFloat(v, 'g', 4, 64), x+8*tickDir, y, labelAlign, 0.5)
	}

	labelX := x + 62*tickDir
	dc.Push()
	dc.RotateAbout(gg.Radians(-90), labelX, f.Top+f.Height/2)
	dc.DrawStringAnchored(series.Name, labelX, f.Top+f.Height/2, 0.5, 0.5)
	dc.Pop()
}

func (s *PNGSurface) drawSeries(dc *gg.Context, f plotFrame, series PlottedSeries, c color.Color) {
	dc.SetColor(c)
	dc.SetLineWidth(s.LineWidth)

	penDown := false
	for _, p := range series.Points {
		if isMissing(p.Value) {
			penDown = false
			continue
		}
		x, y := f.X(p.Time), f.Y(p.Value)
		if !penDown {
			dc.NewSubPath()
			dc.MoveTo(x, y)
			penDown = true
			continue
		}
		dc.LineTo(x, y)
	}
	dc.Stroke()

	if len(series.Points) == 1 {
		p := series.Points[0]
		dc.DrawCircle(f.X(p.Time), f.Y(p.Value), 2)
		dc.Fill()
	}
}

// Draws the wedge connector from label to anchor and then the label.
func (s *PNGSurface) drawAnnotation(dc *gg.Context, f plotFrame, slot AnnotationSlot, c color.Color) {
	text, anchor := f.Callout(slot)
	control := connectorPixelControl(text, anchor, slot.ArrowRad)

	dc.SetColor(c)
	dc.NewSubPath()
	for _, p := range wedgePolygon(text, control, anchor, 0.7*slot.FontSize*pixelsPerPoint, 16) {
		dc.LineTo(p.X, p.Y)
	}
	dc.ClosePath()
	dc.Fill()

	dc.SetColor(s.Foreground)
	dc.DrawStringAnchored(slot.Label, text.X+2, text.Y, 0, 0.5)
}

// Outline of a wedge that follows the quadratic curve from p0 to p2, full
// width at p0 and a point at p2.
func wedgePolygon(p0 Vec, p1 Vec, p2 Vec, width float64, steps int) []Vec {
	left := make([]Vec, 0, steps+1)
	right := make([]Vec, 0, steps+1)

	for i := 0; i <= steps; i++ {
		t := float64(i) / float64(steps)
		u := 1 - t

		p := Vec{
			X: u*u*p0.X + 2*u*t*p1.X + t*t*p2.X,
			Y: u*u*p0.Y + 2*u*t*p1.Y + t*t*p2.Y,
		}
		tangent := Vec{
			X: 2*u*(p1.X-p0.X) + 2*t*(p2.X-p1.X),
			Y: 2*u*(p1.Y-p0.Y) + 2*t*(p2.Y-p1.Y),
		}

		length := math.Hypot(tangent.X, tangent.Y)
		if length == 0 {
			length = 1
		}
		half := width * u / 2
		nx, ny := -tangent.Y/length*half, tangent.X/length*half

		left = append(left, Vec{X: p.X + nx, Y: p.Y + ny})
		right = append(right, Vec{X: p.X - nx, Y: p.Y - ny})
	}

	polygon := left
	for i := len(right) - 1; i >= 0; i-- {
		polygon = append(polygon, right[i])
	}
	return polygon
}
