package telemplot

import (
	"fmt"
	"image/color"
	"strconv"
	"strings"
)

// Color is a series color written as "#rrggbb" or as one of the tableau
// palette names ("tab:blue", ...).
type Color string

var tableauColors = map[string]string{
	"tab:blue":   "#1f77b4",
	"tab:orange": "#ff7f0e",
	"tab:green":  "#2ca02c",
	"tab:red":    "#d62728",
	"tab:purple": "#9467bd",
	"tab:brown":  "#8c564b",
	"tab:pink":   "#e377c2",
	"tab:gray":   "#7f7f7f",
	"tab:olive":  "#bcbd22",
	"tab:cyan":   "#17becf",
	"black":      "#000000",
}

// Hex returns the color as "rrggbb" without the leading '#'.
func (c Color) Hex() (string, error) {
	value := strings.ToLower(strings.TrimSpace(string(c)))
	if named, ok := tableauColors[value]; ok {
		value = named
	}

	value = strings.TrimPrefix(value, "#")
	if len(value) != 6 {
		return "", fmt.Errorf("invalid color %q", string(c))
	}
	if _, err := strconv.ParseUint(value, 16, 32); err != nil {
		return "", fmt.Errorf("invalid color %q: %w", string(c), err)
	}

	return value, nil
}

func (c Color) RGBA() (color.RGBA, error) {
	hex, err := c.Hex()
	if err != nil {
		return color.RGBA{}, err
	}

	v, _ := strconv.ParseUint(hex, 16, 32)
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 255}, nil
}

// Colour for the i-th selected series, cycling through palette.
func colorAt(palette []Color, i int) Color {
	if len(palette) == 0 {
		return Color("black")
	}
	return palette[i%len(palette)]
}
