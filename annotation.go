package telemplot

import (
	"fmt"
)

type AnnotationKind string

const (
	AnnotationPeak   AnnotationKind = "peak"
	AnnotationLowest AnnotationKind = "lowest"
)

// Arrow style of the connector between label and anchor. Surfaces draw a
// wedge that narrows towards the anchor.
const ArrowStyleWedge = "wedge,tail_width=0.7"

// A 2D vector in points (1/72 inch) with y pointing up.
type Vec struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// AnnotationSlot is the resolved geometry of one peak or lowest callout.
type AnnotationSlot struct {
	Series string         `json:"series"`
	Kind   AnnotationKind `json:"kind"`
	Label  string         `json:"label"`

	// The annotated data point.
	Anchor Point `json:"anchor"`

	// Label position relative to the anchor, in points.
	TextOffset Vec `json:"textOffset"`

	// Curvature of the connector, see ConnectorControlPoint.
	ArrowRad   float64 `json:"arrowRad"`
	ArrowStyle string  `json:"arrowStyle"`

	Color    Color   `json:"color"`
	FontSize float64 `json:"fontSize"`

	// 1-based position of the series in the selection.
	Level int `json:"level"`

	// True when the label sits above the anchor.
	Above bool `json:"above"`
}

// Lays out the peak and lowest callouts of every series.
//
// Series are visited from the last selected to the first, so later selections
// get the smallest offsets and earlier ones are pushed further out. Within
// the walk each placement flips the side of the previous one, starting as if
// the previous label was above.
func PlaceAnnotations(names []string, extrema []SeriesExtremum, colors []Color, opts PlotOptions) ([]AnnotationSlot, error) {
	if len(names) != len(extrema) {
		return nil, fmt.Errorf("%d series names for %d extrema: %w", len(names), len(extrema), ErrLengthMismatch)
	}

	slots := make([]AnnotationSlot, 0, 2*len(names))
	wasAbove := true

	for level := len(names); level >= 1; level-- {
		i := level - 1
		name := names[i]
		color := colorAt(colors, i)

		var slot AnnotationSlot
		slot, wasAbove = placeOne(name, AnnotationPeak, extrema[i].Peak, color, level, wasAbove, opts)
		slots = append(slots, slot)

		slot, wasAbove = placeOne(name, AnnotationLowest, extrema[i].Trough, color, level, wasAbove, opts)
		slots = append(slots, slot)
	}

	return slots, nil
}

// Places a single callout on the opposite side of the previous one and
// returns the side it used.
func placeOne(series string, kind AnnotationKind, anchor Point, color Color, level int, wasAbove bool, opts PlotOptions) (AnnotationSlot, bool) {
	magnitude := opts.LevelSpacingPoints * float64(level)

	offsetY, rad := magnitude, opts.ArrowRad
	if wasAbove {
		offsetY, rad = -magnitude, -opts.ArrowRad
	}

	slot := AnnotationSlot{
		Series:     series,
		Kind:       kind,
		Label:      annotationLabel(kind, series),
		Anchor:     anchor,
		TextOffset: Vec{X: opts.TextOffsetX, Y: offsetY},
		ArrowRad:   rad,
		ArrowStyle: ArrowStyleWedge,
		Color:      color,
		FontSize:   opts.FontSize,
		Level:      level,
		Above:      !wasAbove,
	}

	return slot, !wasAbove
}

func annotationLabel(kind AnnotationKind, series string) string {
	if kind == AnnotationPeak {
		return "Peak " + series
	}
	return "Lowest " + series
}

// Returns the control point of the quadratic curve from `from` to `to`. The
// control point sits on the perpendicular bisector at rad times the chord
// length; positive rad bends the curve to the right of the travel direction.
// Coordinates are y-up.
func ConnectorControlPoint(from Vec, to Vec, rad float64) Vec {
	midX, midY := (from.X+to.X)/2, (from.Y+to.Y)/2
	dx, dy := to.X-from.X, to.Y-from.Y

	return Vec{X: midX + rad*dy, Y: midY - rad*dx}
}
