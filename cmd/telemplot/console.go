package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/cactusdynamics/telemplot"
	"github.com/sirupsen/logrus"
)

// fileRenderer writes each successful plot to the same output file. The file
// is replaced atomically so a failed request leaves the previous image.
type fileRenderer struct {
	output string
	format string
}

func (r *fileRenderer) Request(plotter *telemplot.Plotter, raw string) (string, error) {
	format := r.format
	if format == "" {
		format = telemplot.FormatFromPath(r.output)
	}

	// Resolve the surface first so a bad format is reported before any work.
	surface, err := telemplot.SurfaceFor(format)
	if err != nil {
		return "", err
	}

	// The plot only becomes current once the file is in place.
	_, err = plotter.RequestAndPublish(raw, func(plot *telemplot.Plot) error {
		return r.write(surface, plot)
	})
	if err != nil {
		return "", err
	}

	logrus.WithField("tag", "Console").WithField("output", r.output).Debug("plot written")
	return r.output, nil
}

func (r *fileRenderer) write(surface telemplot.Surface, plot *telemplot.Plot) error {
	tmp, err := os.CreateTemp(filepath.Dir(r.output), ".telemplot-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := surface.Render(tmp, plot); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	return os.Rename(tmp.Name(), r.output)
}

// Reads one selection per line until "exit" or end of input.
func runConsole(ctx context.Context, in io.Reader, out io.Writer, plotter *telemplot.Plotter, renderer *fileRenderer) error {
	columns := plotter.Source().ColumnNames()

	printColumns(out, columns)
	prompt := fmt.Sprintf("Enter the column numbers you want to plot (up to %d), separated by commas: (e.g. 1,2,3)\n%s is by default represented by the X-axis\n", plotter.Options().MaxSeries, columns[0])

	scanner := bufio.NewScanner(in)
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		fmt.Fprint(out, prompt)
		if !scanner.Scan() {
			return scanner.Err()
		}

		line := scanner.Text()
		if telemplot.IsExitCommand(line) {
			fmt.Fprintln(out, "--------Exiting the program---------")
			return nil
		}

		written, err := renderer.Request(plotter, line)
		if err != nil {
			fmt.Fprintf(out, "Error: %v\n", err)
			continue
		}

		fmt.Fprintf(out, "wrote %s: %s\n", written, plotter.Current().Title)
	}
}
