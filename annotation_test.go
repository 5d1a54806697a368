package telemplot

import (
	"errors"
	"reflect"
	"testing"
)

func TestPlaceAnnotations(t *testing.T) {
	opts := DefaultPlotOptions()

	extremum := func(peak, trough float64) SeriesExtremum {
		return SeriesExtremum{Peak: Point{ts(1), peak}, Trough: Point{ts(2), trough}}
	}

	t.Run("TwoSeries", func(t *testing.T) {
		slots, err := PlaceAnnotations(
			[]string{"Temp", "Current"},
			[]SeriesExtremum{extremum(25, 18), extremum(2.0, 1.2)},
			[]Color{"tab:blue", "tab:green"},
			opts,
		)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		type geometry struct {
			Label   string
			Level   int
			OffsetY float64
			Rad     float64
			Above   bool
			Color   Color
		}
		want := []geometry{
			{"Peak Current", 2, -14, -0.2, false, "tab:green"},
			{"Lowest Current", 2, 14, 0.2, true, "tab:green"},
			{"Peak Temp", 1, -7, -0.2, false, "tab:blue"},
			{"Lowest Temp", 1, 7, 0.2, true, "tab:blue"},
		}

		got := make([]geometry, len(slots))
		for i, s := range slots {
			got[i] = geometry{s.Label, s.Level, s.TextOffset.Y, s.ArrowRad, s.Above, s.Color}
			if s.TextOffset.X != 10 {
				t.Errorf("slot %d: x offset %v, want 10", i, s.TextOffset.X)
			}
			if s.FontSize != 8 || s.ArrowStyle != ArrowStyleWedge {
				t.Errorf("slot %d: unexpected style %v %q", i, s.FontSize, s.ArrowStyle)
			}
		}
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("got %+v\nwant %+v", got, want)
		}

		if slots[0].Anchor != (Point{ts(1), 2.0}) || slots[1].Anchor != (Point{ts(2), 1.2}) {
			t.Fatalf("unexpected anchors %+v %+v", slots[0].Anchor, slots[1].Anchor)
		}
	})

	t.Run("ThreeSeriesAlternate", func(t *testing.T) {
		slots, err := PlaceAnnotations(
			[]string{"A", "B", "C"},
			[]SeriesExtremum{extremum(1, 0), extremum(2, 0), extremum(3, 0)},
			opts.Colors,
			opts,
		)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(slots) != 6 {
			t.Fatalf("expected 6 slots, got %d", len(slots))
		}

		wantLevels := []int{3, 3, 2, 2, 1, 1}
		for i, s := range slots {
			if s.Level != wantLevels[i] {
				t.Fatalf("slot %d: level %d, want %d", i, s.Level, wantLevels[i])
			}
			if i > 0 && s.Above == slots[i-1].Above {
				t.Fatalf("slot %d is on the same side as slot %d", i, i-1)
			}
			if s.Kind == AnnotationPeak && s.Above {
				t.Fatalf("slot %d: peak labels go below the point", i)
			}
			if magnitude := 7 * float64(s.Level); s.TextOffset.Y != magnitude && s.TextOffset.Y != -magnitude {
				t.Fatalf("slot %d: offset %v for level %d", i, s.TextOffset.Y, s.Level)
			}
		}
	})

	t.Run("Deterministic", func(t *testing.T) {
		names := []string{"A", "B"}
		extrema := []SeriesExtremum{extremum(1, 0), extremum(2, 0)}
		first, _ := PlaceAnnotations(names, extrema, opts.Colors, opts)
		second, _ := PlaceAnnotations(names, extrema, opts.Colors, opts)
		if !reflect.DeepEqual(first, second) {
			t.Fatalf("placement is not deterministic")
		}
	})

	t.Run("LengthMismatch", func(t *testing.T) {
		_, err := PlaceAnnotations([]string{"A"}, nil, nil, opts)
		if !errors.Is(err, ErrLengthMismatch) {
			t.Fatalf("expected ErrLengthMismatch, got %v", err)
		}
	})

	t.Run("LevelSpacingOption", func(t *testing.T) {
		custom := opts
		custom.LevelSpacingPoints = 10
		slots, _ := PlaceAnnotations([]string{"A"}, []SeriesExtremum{extremum(1, 0)}, nil, custom)
		if slots[0].TextOffset.Y != -10 || slots[1].TextOffset.Y != 10 {
			t.Fatalf("unexpected offsets %v %v", slots[0].TextOffset, slots[1].TextOffset)
		}
		if slots[0].Color != "black" {
			t.Fatalf("expected fallback color, got %q", slots[0].Color)
		}
	})
}

func TestConnectorControlPoint(t *testing.T) {
	tests := []struct {
		name     string
		from, to Vec
		rad      float64
		want     Vec
	}{
		{"Straight", Vec{0, 0}, Vec{10, 0}, 0, Vec{5, 0}},
		{"RightOfTravel", Vec{0, 0}, Vec{10, 0}, 0.2, Vec{5, -2}},
		{"LeftOfTravel", Vec{0, 0}, Vec{10, 0}, -0.2, Vec{5, 2}},
		{"Vertical", Vec{0, 0}, Vec{0, 10}, 0.5, Vec{5, 5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ConnectorControlPoint(tt.from, tt.to, tt.rad); got != tt.want {
				t.Fatalf("got %+v want %+v", got, tt.want)
			}
		})
	}
}
