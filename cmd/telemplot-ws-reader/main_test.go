package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cactusdynamics/telemplot"
)

func startServer(t *testing.T) (*telemplot.Plotter, *telemplot.PlotBroadcaster, string) {
	t.Helper()

	table := telemplot.NewTable([]string{"Time", "Temp", "Voltage", "Current"})
	rows := []telemplot.DataRow{
		{X: time.Unix(1, 0).UTC(), Ys: []float64{20, 3.3, 1.5}},
		{X: time.Unix(2, 0).UTC(), Ys: []float64{25, 3.2, 2.0}},
		{X: time.Unix(3, 0).UTC(), Ys: []float64{18, 3.3, 1.25}},
	}
	for _, row := range rows {
		if err := table.Append(row); err != nil {
			t.Fatalf("failed to build table: %v", err)
		}
	}

	plotter := telemplot.NewPlotter(table, telemplot.DefaultPlotOptions())
	broadcaster := telemplot.NewPlotBroadcaster(4)
	server := telemplot.NewHttpServer(plotter, broadcaster, "127.0.0.1:0", telemplot.Metadata{Columns: table.ColumnNames()})

	srv := httptest.NewServer(server.Handler())
	t.Cleanup(srv.Close)

	return plotter, broadcaster, srv.URL
}

func runReader(t *testing.T, config Config) (string, string, error) {
	t.Helper()

	var output, logs bytes.Buffer
	config.Output = &output
	config.Logger = slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := NewWSReader(config).Connect(ctx)
	return output.String(), logs.String(), err
}

func TestWSReaderRequest(t *testing.T) {
	_, _, baseURL := startServer(t)

	output, logs, err := runReader(t, Config{ServerURL: baseURL, Columns: "1,3"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := strings.Join([]string{
		"series_id,x,y",
		"0,1,20",
		"0,2,25",
		"0,3,18",
		"1,1,1.5",
		"1,2,2",
		"1,3,1.25",
	}, "\n") + "\n"
	if output != want {
		t.Fatalf("unexpected CSV:\n%s\nwant:\n%s", output, want)
	}

	for _, line := range []string{"Received plot", "Peak Temp", "Lowest Current"} {
		if !strings.Contains(logs, line) {
			t.Fatalf("logs are missing %q:\n%s", line, logs)
		}
	}
}

func TestWSReaderSkipsReplayedPlot(t *testing.T) {
	plotter, broadcaster, baseURL := startServer(t)

	current, err := plotter.Request("2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	broadcaster.Broadcast(context.Background(), current)

	output, logs, err := runReader(t, Config{ServerURL: baseURL, Columns: "1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.Contains(logs, "Skipping plot of another selection") {
		t.Fatalf("replayed plot was not skipped:\n%s", logs)
	}
	if !strings.Contains(output, "0,2,25") || strings.Contains(output, "3.2") {
		t.Fatalf("unexpected CSV:\n%s", output)
	}
}

func TestWSReaderCurrentPlot(t *testing.T) {
	plotter, broadcaster, baseURL := startServer(t)

	current, _ := plotter.Request("2")
	broadcaster.Broadcast(context.Background(), current)

	output, _, err := runReader(t, Config{ServerURL: baseURL})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(output, "0,2,3.2") {
		t.Fatalf("unexpected CSV:\n%s", output)
	}
}

func TestWSReaderServerError(t *testing.T) {
	_, _, baseURL := startServer(t)

	_, _, err := runReader(t, Config{ServerURL: baseURL, Columns: "1,2,3,4"})

	var remote *telemplot.RemoteError
	if !errors.As(err, &remote) || remote.Kind != "selection_count" {
		t.Fatalf("expected a selection_count error, got %v", err)
	}
}

func TestWSReaderFollow(t *testing.T) {
	_, _, baseURL := startServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	var output bytes.Buffer
	reader := NewWSReader(Config{
		ServerURL: baseURL,
		Columns:   "1",
		Follow:    true,
		Output:    &output,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	})

	// Follow only ends with the context.
	if err := reader.Connect(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(output.String(), "0,3,18") {
		t.Fatalf("unexpected CSV:\n%s", output.String())
	}
}

func TestWSReaderBadURL(t *testing.T) {
	_, _, err := runReader(t, Config{ServerURL: "http://[::1"})
	if err == nil || !strings.Contains(err.Error(), "invalid server URL") {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestWebsocketURL(t *testing.T) {
	for in, want := range map[string]string{
		"http://localhost:5274": "ws://localhost:5274/ws",
		"https://example.com/x": "wss://example.com/ws",
		"ws://127.0.0.1:1":      "ws://127.0.0.1:1/ws",
	} {
		got, err := websocketURL(in)
		if err != nil || got != want {
			t.Errorf("%s: got %q, %v want %q", in, got, err, want)
		}
	}
}
