package telemplot

import (
	"fmt"
	"io"
	"strings"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

// SVGSurface renders a plot as SVG with go-chart.
//
// go-chart only knows a primary and a secondary y-axis, so every series after
// the first goes on the secondary axis. All axes share one range, which keeps
// a third series visually where its own axis would put it.
type SVGSurface struct{}

func NewSVGSurface() *SVGSurface {
	return &SVGSurface{}
}

func (s *SVGSurface) ContentType() string {
	return "image/svg+xml"
}

func (s *SVGSurface) Render(w io.Writer, plot *Plot) error {
	ch, err := s.buildChart(plot)
	if err != nil {
		return err
	}

	if err := ch.Render(chart.SVG, w); err != nil {
		return fmt.Errorf("failed to render SVG: %w", err)
	}
	return nil
}

func (s *SVGSurface) buildChart(plot *Plot) (chart.Chart, error) {
	if plot == nil || len(plot.Series) == 0 {
		return chart.Chart{}, fmt.Errorf("nothing to render")
	}

	start, end := plot.TimeBounds()
	yRange := &chart.ContinuousRange{Min: plot.Range.Low, Max: plot.Range.High}

	ch := chart.Chart{
		Title:      plot.Title,
		TitleStyle: chart.Style{FontSize: 10},
		Width:      plot.Width,
		Height:     plot.Height,
		Background: chart.Style{Padding: chart.Box{Top: 40, Left: 16, Right: 16, Bottom: 16}},
		XAxis: chart.XAxis{
			Name:           plot.TimeLabel,
			ValueFormatter: chart.TimeValueFormatterWithFormat(timeTickLayout(start, end)),
		},
		YAxis: chart.YAxis{Name: plot.Series[0].Name, Range: yRange},
	}

	if !end.After(start) {
		ch.XAxis.Range = &chart.ContinuousRange{
			Min: chart.TimeToFloat64(start.Add(-time.Second)),
			Max: chart.TimeToFloat64(start.Add(time.Second)),
		}
	}

	var secondaryNames []string
	for _, series := range plot.Series {
		hex, err := series.Color.Hex()
		if err != nil {
			return chart.Chart{}, err
		}

		ts := chart.TimeSeries{
			Name: series.Name,
			Style: chart.Style{
				StrokeColor: drawing.ColorFromHex(hex),
				StrokeWidth: 1.5,
			},
		}
		for _, p := range series.Points {
			if isMissing(p.Value) {
				continue
			}
			ts.XValues = append(ts.XValues, p.Time)
			ts.YValues = append(ts.YValues, p.Value)
		}

		if series.AxisIndex > 0 {
			ts.YAxis = chart.YAxisSecondary
			secondaryNames = append(secondaryNames, series.Name)
		}

		ch.Series = append(ch.Series, ts)
	}

	if len(secondaryNames) > 0 {
		ch.YAxisSecondary = chart.YAxis{Name: strings.Join(secondaryNames, " / "), Range: yRange}
	}

	ch.Series = append(ch.Series, s.annotationSeries(plot))
	ch.Elements = []chart.Renderable{chart.Legend(&ch)}

	return ch, nil
}

// go-chart draws annotation labels at the data point itself. The text offset
// is converted to data units so labels still land above or below the point.
func (s *SVGSurface) annotationSeries(plot *Plot) chart.AnnotationSeries {
	frame := newPlotFrame(plot)
	valuesPerPixel := plot.Range.Span() / frame.Height

	annotations := chart.AnnotationSeries{Name: "extrema"}
	for _, slot := range plot.Annotations {
		hex, err := slot.Color.Hex()
		if err != nil {
			hex = "000000"
		}

		annotations.Annotations = append(annotations.Annotations, chart.Value2{
			XValue: chart.TimeToFloat64(slot.Anchor.Time),
			YValue: slot.Anchor.Value + slot.TextOffset.Y*pixelsPerPoint*valuesPerPixel,
			Label:  slot.Label,
			Style: chart.Style{
				StrokeColor: drawing.ColorFromHex(hex),
				FontSize:    slot.FontSize,
			},
		})
	}

	return annotations
}
