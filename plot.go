package telemplot

import (
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// PlottedSeries is one series as handed to a rendering surface.
type PlottedSeries struct {
	Index  int     `json:"index"`
	Name   string  `json:"name"`
	Points []Point `json:"points"`
	Color  Color   `json:"color"`

	// 0 is the primary (left) axis, 1 and up are twin axes on the right.
	AxisIndex int `json:"axisIndex"`

	// How far, in points, the axis spine is moved outward from the right
	// edge of the plot area. Only the third axis is moved.
	AxisOffset float64 `json:"axisOffset"`

	Extremum SeriesExtremum `json:"extremum"`
}

// Plot is the complete, immutable geometry of one plot request.
type Plot struct {
	Title       string           `json:"title"`
	WindowTitle string           `json:"windowTitle"`
	TimeLabel   string           `json:"timeLabel"`
	Selection   Selection        `json:"selection"`
	Range       SharedAxisRange  `json:"range"`
	Series      []PlottedSeries  `json:"series"`
	Annotations []AnnotationSlot `json:"annotations"`

	// Non-fatal conditions such as a degenerate range.
	Warnings []string `json:"warnings,omitempty"`

	// Output size in pixels.
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Time span covered by all plotted series.
func (p *Plot) TimeBounds() (time.Time, time.Time) {
	var first, last time.Time
	for _, s := range p.Series {
		if len(s.Points) == 0 {
			continue
		}
		start, end := s.Points[0].Time, s.Points[len(s.Points)-1].Time
		if first.IsZero() || start.Before(first) {
			first = start
		}
		if last.IsZero() || end.After(last) {
			last = end
		}
	}
	return first, last
}

// Builds the plot geometry for an already parsed selection.
func BuildPlot(source TabularSource, selection Selection, opts PlotOptions) (*Plot, error) {
	columns := source.ColumnNames()
	maxSeries := Min(opts.MaxSeries, MaxAxes)
	if len(selection) < 1 || len(selection) > maxSeries {
		return nil, &SelectionCountError{Count: len(selection), Max: maxSeries}
	}

	series := make([]Series, 0, len(selection))
	for _, index := range selection {
		s, err := source.SeriesByIndex(index)
		if err != nil {
			return nil, err
		}
		series = append(series, s)
	}

	axisRange, err := ComputeSharedRange(series, opts)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(series))
	colors := make([]Color, 0, len(series))
	extrema := make([]SeriesExtremum, 0, len(series))
	plotted := make([]PlottedSeries, 0, len(series))

	for i, s := range series {
		extremum, err := FindExtremum(s)
		if err != nil {
			return nil, err
		}

		ps := PlottedSeries{
			Index:     selection[i],
			Name:      s.Name,
			Points:    s.Points,
			Color:     colorAt(opts.Colors, i),
			AxisIndex: i,
			Extremum:  extremum,
		}
		if i == 2 {
			ps.AxisOffset = opts.ThirdAxisOffset
		}

		names = append(names, s.Name)
		colors = append(colors, ps.Color)
		extrema = append(extrema, extremum)
		plotted = append(plotted, ps)
	}

	annotations, err := PlaceAnnotations(names, extrema, colors, opts)
	if err != nil {
		return nil, err
	}

	plot := &Plot{
		Title:       BuildTitle(opts.TitlePrefix, names),
		WindowTitle: opts.WindowTitle,
		Selection:   append(Selection(nil), selection...),
		Range:       axisRange,
		Series:      plotted,
		Annotations: annotations,
		Width:       opts.Width,
		Height:      opts.Height,
	}
	if len(columns) > 0 {
		plot.TimeLabel = columns[0]
	}

	if axisRange.Degenerate {
		extremum := extrema[0]
		warning := &DegenerateRangeError{Value: extremum.Peak.Value, Span: opts.DegenerateSpan}
		plot.Warnings = append(plot.Warnings, warning.Error())
	}

	return plot, nil
}

// Plotter runs plot requests against one data source, one at a time. A
// failed request leaves the previous plot current.
type Plotter struct {
	source TabularSource
	opts   PlotOptions

	mutex   sync.Mutex
	current *Plot

	logger logrus.FieldLogger
}

func NewPlotter(source TabularSource, opts PlotOptions) *Plotter {
	return &Plotter{
		source: source,
		opts:   opts,
		logger: logrus.WithField("tag", "Plotter"),
	}
}

func (p *Plotter) Options() PlotOptions {
	return p.opts
}

func (p *Plotter) Source() TabularSource {
	return p.source
}

// Parses raw as a selection and builds its plot. On success the plot becomes
// current.
func (p *Plotter) Request(raw string) (*Plot, error) {
	return p.RequestAndPublish(raw, nil)
}

// RequestAndPublish is Request with publish run on the built plot before it
// becomes current. Requests and their publish calls never interleave. If
// publish fails the previous plot stays current.
func (p *Plotter) RequestAndPublish(raw string, publish func(*Plot) error) (*Plot, error) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	logger := p.logger.WithField("selection", raw)

	selection, err := ParseSelection(raw, len(p.source.ColumnNames()), p.opts.MaxSeries)
	if err != nil {
		logger.WithError(err).Warn("rejected selection")
		return nil, err
	}

	plot, err := BuildPlot(p.source, selection, p.opts)
	if err != nil {
		err = fmt.Errorf("plot %s: %w", selection, err)
		if IsUserError(err) {
			logger.WithError(err).Warn("rejected selection")
		} else {
			logger.WithError(err).Error("failed to build plot")
		}
		return nil, err
	}

	for _, warning := range plot.Warnings {
		logger.Warn(warning)
	}

	if publish != nil {
		if err := publish(plot); err != nil {
			logger.WithError(err).Error("failed to publish plot")
			return nil, err
		}
	}

	logger.WithFields(logrus.Fields{
		"title": plot.Title,
		"low":   plot.Range.Low,
		"high":  plot.Range.High,
	}).Debug("plot built")

	p.current = plot
	return plot, nil
}

// The most recent successful plot, or nil.
func (p *Plotter) Current() *Plot {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	return p.current
}
