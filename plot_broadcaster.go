package telemplot

import (
	"context"
	"log/slog"
	"runtime/trace"
	"sync"
)

// PlotBroadcaster pushes every new plot to all connected clients and keeps
// the most recent plots so a newly connected client can show the current one.
type PlotBroadcaster struct {
	mutex sync.Mutex

	// These are channels from open websockets where we are sending plots to.
	// Channels should be buffered, to not block the PlotBroadcaster.
	channelsForLiveUpdate []chan<- *Plot

	// The most recent plots, oldest first.
	history *ThreadUnsafeRing[*Plot]

	// Just for tracking how many plots were broadcast.
	numPlotsEmitted int

	logger *slog.Logger
}

func NewPlotBroadcaster(historyCapacity int) *PlotBroadcaster {
	return &PlotBroadcaster{
		mutex:                 sync.Mutex{},
		channelsForLiveUpdate: make([]chan<- *Plot, 0),
		history:               NewRing[*Plot](historyCapacity),
		numPlotsEmitted:       0,
		logger:                slog.Default().With("tag", "PlotBroadcaster"),
	}
}

// Register a new channel. Called from the HTTP server when a new websocket
// connection is initiated.
//
// - ctx: is the HTTP call context.
// - c: is the channel to send plots on. This should be a buffered channel to ensure the PlotBroadcaster is not blocked, as if any channel is blocked, everything is blocked.
//
// The current plot, if any, is sent on c before it starts receiving live
// updates. The lock is held across both steps so no plot is missed or sent
// twice.
func (b *PlotBroadcaster) RegisterChannel(ctx context.Context, c chan<- *Plot) {
	traceCtx, task := trace.NewTask(ctx, "RegisterChannel")
	defer task.End()

	trace.WithRegion(traceCtx, "Lock", b.mutex.Lock)
	defer b.mutex.Unlock()

	trace.WithRegion(traceCtx, "pushCurrentPlotToChannel", func() {
		if current := b.latestLocked(); current != nil {
			c <- current
		}
	})

	b.channelsForLiveUpdate = append(b.channelsForLiveUpdate, c)

	b.logger.With(
		"newChannel", c,
		"channels", len(b.channelsForLiveUpdate),
	).Info("registered channel")
}

// Deregister a channel to get plot updates. Called when a websocket client
// disconnects. Note: the channel shouldn't be closed until this method
// returns, as it may cause panics otherwise.
func (b *PlotBroadcaster) DeregisterChannel(ctx context.Context, c chan<- *Plot) {
	traceCtx, task := trace.NewTask(ctx, "DeregisterChannel")
	defer task.End()

	trace.WithRegion(traceCtx, "Lock", b.mutex.Lock)
	defer b.mutex.Unlock()

	b.channelsForLiveUpdate = Filter(b.channelsForLiveUpdate, func(channel chan<- *Plot) bool {
		return channel != c
	})
	b.logger.With(
		"removedChannel", c,
		"channels", len(b.channelsForLiveUpdate),
	).Info("deregistered channel")
}

// Records plot as current and sends it to every registered channel.
func (b *PlotBroadcaster) Broadcast(ctx context.Context, plot *Plot) {
	traceCtx, task := trace.NewTask(ctx, "Broadcast")
	defer task.End()

	trace.WithRegion(traceCtx, "Lock", b.mutex.Lock)
	defer b.mutex.Unlock()

	b.numPlotsEmitted++
	b.history.Push(plot)

	b.logger.With(
		"title", plot.Title,
		"numPlotsEmitted", b.numPlotsEmitted,
	).Debug("new plot")

	trace.WithRegion(traceCtx, "Send", func() {
		for _, c := range b.channelsForLiveUpdate {
			c <- plot
		}
	})
}

// The retained plots, oldest first.
func (b *PlotBroadcaster) History() []*Plot {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	return b.history.ReadAllOrdered()
}

// The most recently broadcast plot, or nil.
func (b *PlotBroadcaster) Latest() *Plot {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	return b.latestLocked()
}

func (b *PlotBroadcaster) latestLocked() *Plot {
	plots := b.history.ReadAllOrdered()
	if len(plots) == 0 {
		return nil
	}
	return plots[len(plots)-1]
}
