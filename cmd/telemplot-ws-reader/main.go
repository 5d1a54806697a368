package main

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/url"
	"os"
	"os/signal"
	"slices"
	"strconv"
	"syscall"

	"github.com/cactusdynamics/telemplot"
	"github.com/spf13/cobra"
	"nhooyr.io/websocket"
)

// Config holds the configuration for the WS reader
type Config struct {
	ServerURL string

	// Selection sent to the server after connecting. Empty means only the
	// current plot is read.
	Columns string

	// Keep reading plots requested by other clients instead of stopping after
	// the first one.
	Follow bool

	Output io.Writer
	Logger *slog.Logger
}

// WSReader reads plots from the telemplot /ws endpoint and outputs their
// samples as CSV.
type WSReader struct {
	config    Config
	csvWriter *csv.Writer
	assembler telemplot.PlotAssembler

	// Normalized form of Config.Columns, nil when nothing is requested.
	wanted telemplot.Selection
}

// NewWSReader creates a new WS reader with the given configuration
func NewWSReader(config Config) *WSReader {
	w := &WSReader{
		config:    config,
		csvWriter: csv.NewWriter(config.Output),
	}

	// The column count is only known to the server, which validates it.
	if selection, err := telemplot.ParseSelection(config.Columns, math.MaxInt, math.MaxInt); err == nil {
		w.wanted = selection
	}

	return w
}

func websocketURL(serverURL string) (string, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return "", fmt.Errorf("invalid server URL: %w", err)
	}

	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	u.Path = "/ws"

	return u.String(), nil
}

// Connect dials the server, optionally requests a plot and processes
// messages until a plot is complete, or until ctx is done when following.
func (w *WSReader) Connect(ctx context.Context) error {
	wsURL, err := websocketURL(w.config.ServerURL)
	if err != nil {
		return err
	}

	w.config.Logger.Info("Connecting to websocket", "url", wsURL)

	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to websocket: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	if w.config.Columns != "" {
		if err := conn.Write(ctx, websocket.MessageText, []byte(w.config.Columns)); err != nil {
			return fmt.Errorf("failed to send selection: %w", err)
		}
	}

	if err := w.csvWriter.Write([]string{"series_id", "x", "y"}); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for {
		_, messageData, err := conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure || ctx.Err() != nil {
				w.config.Logger.Info("Connection closed")
				break
			}
			return fmt.Errorf("failed to read message: %w", err)
		}

		if err := w.processMessage(messageData); err != nil {
			if err == io.EOF {
				break
			}

			var remote *telemplot.RemoteError
			if errors.As(err, &remote) && !w.config.Follow {
				return err
			}
			w.config.Logger.Error("Error processing message", "error", err)
		}
	}

	w.csvWriter.Flush()
	return w.csvWriter.Error()
}

// processMessage processes a single websocket message. io.EOF means the
// reader is done.
func (w *WSReader) processMessage(messageData []byte) error {
	msg, err := telemplot.DecodeWSMessage(messageData)
	if err != nil {
		return fmt.Errorf("failed to decode message: %w", err)
	}

	plot, err := w.assembler.Push(msg)
	if err != nil {
		return err
	}
	if plot == nil {
		return nil
	}

	logger := w.config.Logger.With("title", plot.Title, "selection", plot.Selection.String())

	// On connect the server first replays its current plot, which is not the
	// one we asked for.
	if w.wanted != nil && !w.config.Follow && !slices.Equal(plot.Selection, w.wanted) {
		logger.Debug("Skipping plot of another selection")
		return nil
	}

	logger.Info("Received plot", "series", len(plot.Series), "low", plot.Range.Low, "high", plot.Range.High)
	for _, slot := range plot.Annotations {
		logger.Debug("Annotation", "label", slot.Label, "time", slot.Anchor.Time, "value", slot.Anchor.Value, "above", slot.Above)
	}
	for _, warning := range plot.Warnings {
		logger.Warn("Plot warning", "warning", warning)
	}

	if err := w.writePlot(plot); err != nil {
		return err
	}

	if w.config.Follow {
		return nil
	}
	return io.EOF
}

// writePlot writes one CSV row per sample. x is in unix seconds.
func (w *WSReader) writePlot(plot *telemplot.Plot) error {
	for i, series := range plot.Series {
		seriesID := strconv.Itoa(i)

		for _, p := range series.Points {
			row := []string{
				seriesID,
				strconv.FormatFloat(float64(p.Time.UnixNano())/1e9, 'g', -1, 64),
				strconv.FormatFloat(p.Value, 'g', -1, 64),
			}
			if err := w.csvWriter.Write(row); err != nil {
				return fmt.Errorf("failed to write CSV row: %w", err)
			}
		}
	}

	w.csvWriter.Flush()
	return w.csvWriter.Error()
}

func main() {
	config := Config{Output: os.Stdout}
	var debug bool

	cmd := &cobra.Command{
		Use:          "telemplot-ws-reader",
		Short:        "Read plots from a telemplot server and print their samples as CSV",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			level := slog.LevelInfo
			if debug {
				level = slog.LevelDebug
			}
			config.Logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

			return NewWSReader(config).Connect(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&config.ServerURL, "url", "http://localhost:5274", "URL of the telemplot server")
	cmd.Flags().StringVarP(&config.Columns, "columns", "c", "", "selection to request, e.g. 1,3")
	cmd.Flags().BoolVarP(&config.Follow, "follow", "f", false, "keep printing plots as they are requested")
	cmd.Flags().BoolVar(&debug, "debug", false, "log annotations and other details")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
