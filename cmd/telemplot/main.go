package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/cactusdynamics/telemplot"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

type options struct {
	columns    string
	output     string
	format     string
	config     string
	sheet      string
	serve      string
	relaxed    bool
	exactCount bool
	list       bool
	debug      bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var o options

	cmd := &cobra.Command{
		Use:   "telemplot <data.csv|data.xlsx>",
		Short: "Plot up to three telemetry columns on a shared time axis",
		Long: `telemplot reads a table whose first column is the time axis and plots up to
three of the other columns, each on its own y-axis with a shared range, with
the peak and lowest value of every series annotated.

Without --columns or --serve it asks for selections on stdin until "exit".`,
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), args[0], o)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&o.columns, "columns", "c", "", "comma separated column numbers to plot once, e.g. 1,3")
	flags.StringVarP(&o.output, "output", "o", "telemplot.png", "output image; the extension picks the format")
	flags.StringVar(&o.format, "format", "", "output format (png or svg), overrides the extension")
	flags.StringVar(&o.config, "config", "", "YAML file with plot options")
	flags.StringVar(&o.sheet, "sheet", "", "sheet to read from an xlsx file (default: first sheet)")
	flags.StringVar(&o.serve, "serve", "", "serve plots over HTTP and websocket on this address, e.g. localhost:5274")
	flags.BoolVar(&o.relaxed, "relaxed", false, "split input lines on commas or whitespace instead of strict CSV")
	flags.BoolVar(&o.exactCount, "exact-columns", false, "skip rows whose column count differs from the header")
	flags.BoolVar(&o.list, "list", false, "list the available columns and exit")
	flags.BoolVar(&o.debug, "debug", false, "enable debug logging")

	return cmd
}

func run(ctx context.Context, in io.Reader, out io.Writer, path string, o options) error {
	if o.debug {
		logrus.SetLevel(logrus.DebugLevel)
	}

	plotOpts := telemplot.DefaultPlotOptions()
	if o.config != "" {
		loaded, err := telemplot.LoadPlotOptions(o.config)
		if err != nil {
			return err
		}
		plotOpts = loaded
	}

	sourceOpts := telemplot.SourceOptions{
		Sheet:                  o.sheet,
		ExpectExactColumnCount: o.exactCount,
	}
	if o.relaxed {
		sourceOpts.Format = "relaxed"
	}

	table, err := telemplot.OpenTable(ctx, path, sourceOpts)
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}

	plotter := telemplot.NewPlotter(table, plotOpts)
	renderer := &fileRenderer{output: o.output, format: o.format}

	switch {
	case o.list:
		printColumns(out, table.ColumnNames())
		return nil
	case o.serve != "":
		metadata := telemplot.Metadata{
			Source:      filepath.Base(path),
			Columns:     table.ColumnNames(),
			Rows:        table.Len(),
			PlotOptions: plotOpts,
		}
		server := telemplot.NewHttpServer(plotter, telemplot.NewPlotBroadcaster(bufferedPlots), o.serve, metadata)
		return server.Run(ctx)
	case o.columns != "":
		written, err := renderer.Request(plotter, o.columns)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "wrote %s\n", written)
		return nil
	default:
		return runConsole(ctx, in, out, plotter, renderer)
	}
}

// Plots kept for websocket clients that connect later.
const bufferedPlots = 16

func printColumns(out io.Writer, columns []string) {
	fmt.Fprintf(out, "Available columns (1 to %d):\n", len(columns)-1)
	for i, name := range columns {
		fmt.Fprintf(out, "%d: %s\n", i, name)
	}
}
