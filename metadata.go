package telemplot

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// MaxAxes is the number of value axes a plot can lay out.
const MaxAxes = 3

// PlotOptions holds the presentation constants of a plot. Zero values are
// not meaningful; start from DefaultPlotOptions.
type PlotOptions struct {
	MaxSeries          int     `yaml:"max_series" json:"maxSeries"`
	ThirdAxisOffset    float64 `yaml:"third_axis_offset" json:"thirdAxisOffset"`
	LevelSpacingPoints float64 `yaml:"level_spacing_points" json:"levelSpacingPoints"`
	MarginFraction     float64 `yaml:"margin_fraction" json:"marginFraction"`
	DegenerateSpan     float64 `yaml:"degenerate_span" json:"degenerateSpan"`
	TextOffsetX        float64 `yaml:"text_offset_x" json:"textOffsetX"`
	ArrowRad           float64 `yaml:"arrow_rad" json:"arrowRad"`
	FontSize           float64 `yaml:"font_size" json:"fontSize"`
	Colors             []Color `yaml:"colors" json:"colors"`
	TitlePrefix        string  `yaml:"title_prefix" json:"titlePrefix"`
	WindowTitle        string  `yaml:"window_title" json:"windowTitle"`
	Width              int     `yaml:"width" json:"width"`
	Height             int     `yaml:"height" json:"height"`
}

func DefaultPlotOptions() PlotOptions {
	return PlotOptions{
		MaxSeries:          MaxAxes,
		ThirdAxisOffset:    60,
		LevelSpacingPoints: 7,
		MarginFraction:     0.05,
		DegenerateSpan:     1,
		TextOffsetX:        10,
		ArrowRad:           0.2,
		FontSize:           8,
		Colors:             []Color{"tab:blue", "tab:green", "tab:red"},
		TitlePrefix:        "Satellite Telemetry:",
		WindowTitle:        "LTB_sat_realtime_telemetry_plot",
		Width:              1000,
		Height:             600,
	}
}

func (o PlotOptions) Validate() error {
	var errs []error

	if o.MaxSeries < 1 || o.MaxSeries > MaxAxes {
		errs = append(errs, fmt.Errorf("max_series must be between 1 and %d, got %d", MaxAxes, o.MaxSeries))
	}
	if o.MarginFraction < 0 {
		errs = append(errs, fmt.Errorf("margin_fraction must not be negative, got %g", o.MarginFraction))
	}
	if o.DegenerateSpan <= 0 {
		errs = append(errs, fmt.Errorf("degenerate_span must be positive, got %g", o.DegenerateSpan))
	}
	if o.LevelSpacingPoints < 0 {
		errs = append(errs, fmt.Errorf("level_spacing_points must not be negative, got %g", o.LevelSpacingPoints))
	}
	if o.FontSize <= 0 {
		errs = append(errs, fmt.Errorf("font_size must be positive, got %g", o.FontSize))
	}
	if o.Width <= 0 || o.Height <= 0 {
		errs = append(errs, fmt.Errorf("width and height must be positive, got %dx%d", o.Width, o.Height))
	}
	if len(o.Colors) == 0 {
		errs = append(errs, errors.New("colors must not be empty"))
	}
	for _, c := range o.Colors {
		if _, err := c.Hex(); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// Reads a YAML file on top of DefaultPlotOptions. Keys missing from the file
// keep their default.
func LoadPlotOptions(path string) (PlotOptions, error) {
	opts := DefaultPlotOptions()

	b, err := os.ReadFile(path)
	if err != nil {
		return PlotOptions{}, fmt.Errorf("failed to read plot options: %w", err)
	}

	if err := yaml.Unmarshal(b, &opts); err != nil {
		return PlotOptions{}, fmt.Errorf("failed to parse plot options %s: %w", path, err)
	}

	if err := opts.Validate(); err != nil {
		return PlotOptions{}, fmt.Errorf("invalid plot options %s: %w", path, err)
	}

	return opts, nil
}

// Metadata describes the data set and the plot options. Served by the HTTP
// server on /metadata.
type Metadata struct {
	Source      string      `json:"source"`
	Columns     []string    `json:"columns"`
	Rows        int         `json:"rows"`
	PlotOptions PlotOptions `json:"plotOptions"`
}
