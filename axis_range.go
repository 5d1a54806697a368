package telemplot

import (
	"fmt"
	"math"
)

// SharedAxisRange is the y-interval applied to every series axis so the
// series stay comparable and none of their extrema are clipped.
type SharedAxisRange struct {
	Low  float64 `json:"low"`
	High float64 `json:"high"`

	// Set when every selected value was equal and the range was widened to
	// DegenerateSpan.
	Degenerate bool `json:"degenerate,omitempty"`
}

func (r SharedAxisRange) Span() float64 {
	return r.High - r.Low
}

// Computes the range spanning every value of every series, padded by
// MarginFraction of the span on each side.
//
// When all values are equal the span would be zero. The range is then
// centered on the value with a width of DegenerateSpan and marked Degenerate.
func ComputeSharedRange(series []Series, opts PlotOptions) (SharedAxisRange, error) {
	if len(series) == 0 {
		return SharedAxisRange{}, &SelectionCountError{Count: 0, Max: opts.MaxSeries}
	}

	overallMin, overallMax := math.Inf(1), math.Inf(-1)
	for _, s := range series {
		low, high, ok := s.Bounds()
		if !ok {
			return SharedAxisRange{}, fmt.Errorf("series %q: %w", s.Name, ErrEmptySeries)
		}
		overallMin = Min(overallMin, low)
		overallMax = Max(overallMax, high)
	}

	if overallMax == overallMin {
		half := opts.DegenerateSpan / 2
		return SharedAxisRange{
			Low:        overallMin - half,
			High:       overallMax + half,
			Degenerate: true,
		}, nil
	}

	margin := (overallMax - overallMin) * opts.MarginFraction

	return SharedAxisRange{
		Low:  overallMin - margin,
		High: overallMax + margin,
	}, nil
}
