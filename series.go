package telemplot

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// A single (timestamp, value) sample.
type Point struct {
	Time  time.Time `json:"time"`
	Value float64   `json:"value"`
}

type jsonPoint struct {
	Time  time.Time `json:"time"`
	Value *float64  `json:"value"`
}

// Missing values (NaN) are encoded as null.
func (p Point) MarshalJSON() ([]byte, error) {
	jp := jsonPoint{Time: p.Time}
	if !isMissing(p.Value) {
		jp.Value = &p.Value
	}
	return json.Marshal(jp)
}

func (p *Point) UnmarshalJSON(b []byte) error {
	var jp jsonPoint
	if err := json.Unmarshal(b, &jp); err != nil {
		return err
	}

	p.Time = jp.Time
	p.Value = math.NaN()
	if jp.Value != nil {
		p.Value = *jp.Value
	}
	return nil
}

// Series is one value column over the shared time axis, identified by the
// column name.
type Series struct {
	Name   string
	Points []Point
}

// The finite minimum and maximum of the series. ok is false when the series
// holds no finite value.
func (s Series) Bounds() (low float64, high float64, ok bool) {
	low, high = math.Inf(1), math.Inf(-1)
	for _, p := range s.Points {
		if isMissing(p.Value) {
			continue
		}
		low = Min(low, p.Value)
		high = Max(high, p.Value)
	}

	return low, high, !math.IsInf(low, 1)
}

// SeriesExtremum holds the points where a series peaks and bottoms out.
type SeriesExtremum struct {
	Peak   Point `json:"peak"`
	Trough Point `json:"trough"`
}

// Locates the maximum and minimum of s. Missing values are skipped and ties go to the
// earliest point.
func FindExtremum(s Series) (SeriesExtremum, error) {
	var extremum SeriesExtremum
	found := false

	for _, p := range s.Points {
		if isMissing(p.Value) {
			continue
		}

		if !found {
			extremum.Peak, extremum.Trough = p, p
			found = true
			continue
		}

		if p.Value > extremum.Peak.Value {
			extremum.Peak = p
		}
		if p.Value < extremum.Trough.Value {
			extremum.Trough = p
		}
	}

	if !found {
		return SeriesExtremum{}, fmt.Errorf("series %q: %w", s.Name, ErrEmptySeries)
	}

	return extremum, nil
}

// NaN marks a missing sample; infinities are treated the same way so they
// cannot blow up the axis range.
func isMissing(v float64) bool {
	return math.IsNaN(v) || math.IsInf(v, 0)
}
