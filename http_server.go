package telemplot

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"nhooyr.io/websocket"
)

const bufferSize = 16

var errNoPlot = errors.New("no plot has been requested yet")

type HttpServer struct {
	plotter     *Plotter
	broadcaster *PlotBroadcaster
	addr        string
	metadata    Metadata
	router      *mux.Router
	metrics     *Metrics
	logger      logrus.FieldLogger
}

type ColumnInfo struct {
	Index int    `json:"index"`
	Name  string `json:"name"`
}

func NewHttpServer(plotter *Plotter, broadcaster *PlotBroadcaster, addr string, metadata Metadata) *HttpServer {
	s := &HttpServer{
		plotter:     plotter,
		broadcaster: broadcaster,
		addr:        addr,
		metadata:    metadata,
		router:      mux.NewRouter(),
		metrics:     NewMetrics(),
		logger:      logrus.WithField("tag", "HttpServer"),
	}

	s.router.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)
	s.router.HandleFunc("/ws", s.handleWebSocket)
	s.router.HandleFunc("/metadata", s.handleMetadata).Methods(http.MethodGet)
	s.router.HandleFunc("/columns", s.handleColumns).Methods(http.MethodGet)
	s.router.HandleFunc("/plot", s.handlePlot).Methods(http.MethodGet)
	s.router.HandleFunc("/plot.{format:png|svg}", s.handleRender).Methods(http.MethodGet)

	return s
}

func (s *HttpServer) Handler() http.Handler {
	return s.router
}

// Runs a plot request and, if it succeeds, shows it to every websocket
// client. The broadcast happens under the plotter lock so the current plot
// and the last broadcast plot are always the same.
func (s *HttpServer) request(ctx context.Context, raw string) (*Plot, error) {
	started := time.Now()
	plot, err := s.plotter.RequestAndPublish(raw, func(plot *Plot) error {
		s.broadcaster.Broadcast(ctx, plot)
		return nil
	})
	s.metrics.RecordRequest(started, err)
	return plot, err
}

// With ?columns= a new plot is requested, without it the current plot is
// returned.
func (s *HttpServer) plotForRequest(req *http.Request) (*Plot, error) {
	if raw, ok := req.URL.Query()["columns"]; ok && len(raw) > 0 {
		return s.request(req.Context(), raw[0])
	}

	if current := s.plotter.Current(); current != nil {
		return current, nil
	}
	return nil, errNoPlot
}

func (s *HttpServer) handlePlot(w http.ResponseWriter, req *http.Request) {
	plot, err := s.plotForRequest(req)
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, plot)
}

func (s *HttpServer) handleRender(w http.ResponseWriter, req *http.Request) {
	format := mux.Vars(req)["format"]

	surface, err := SurfaceFor(format)
	if err != nil {
		s.writeError(w, err)
		return
	}

	plot, err := s.plotForRequest(req)
	if err != nil {
		s.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", surface.ContentType())
	if err := surface.Render(w, plot); err != nil {
		s.logger.WithError(err).WithField("format", format).Error("failed to render plot")
		return
	}
	s.metrics.RecordRender(format)
}

func (s *HttpServer) handleColumns(w http.ResponseWriter, req *http.Request) {
	names := s.plotter.Source().ColumnNames()
	columns := make([]ColumnInfo, len(names))
	for i, name := range names {
		columns[i] = ColumnInfo{Index: i, Name: name}
	}

	writeJSON(w, http.StatusOK, columns)
}

func (s *HttpServer) handleMetadata(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, http.StatusOK, s.metadata)
}

// Each text message from the client is a selection. Resulting plots go to
// every client, failures only to the client that sent the selection.
func (s *HttpServer) handleWebSocket(w http.ResponseWriter, req *http.Request) {
	c, err := websocket.Accept(w, req, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		s.logger.WithError(err).Warn("failed to accept new websocket connection")
		return
	}

	ctx, cancel := context.WithCancel(req.Context())
	defer cancel()

	plots := make(chan *Plot, bufferSize)
	failures := make(chan error, bufferSize)
	deregistered := make(chan struct{})

	wg := sync.WaitGroup{}
	wg.Add(1)

	go func() {
		defer wg.Done()

		s.writeFrames(ctx, c, plots, failures)
		// A failed write means the client is gone, which also ends the read
		// loop below.
		cancel()

		// Broadcast runs under the plotter lock and must never block on this
		// channel, so it is drained until deregistered.
		for {
			select {
			case <-plots:
			case <-deregistered:
				return
			}
		}
	}()

	s.broadcaster.RegisterChannel(ctx, plots)
	s.metrics.wsClients.Inc()

	for {
		msgType, data, err := c.Read(ctx)
		if err != nil {
			if status := websocket.CloseStatus(err); status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway {
				s.logger.WithError(err).Debug("websocket read ended")
			}
			break
		}

		if msgType != websocket.MessageText {
			continue
		}

		if _, err := s.request(ctx, string(data)); err != nil {
			select {
			case failures <- err:
			default:
				s.logger.WithError(err).Warn("dropping error for slow client")
			}
		}
	}

	cancel()
	s.broadcaster.DeregisterChannel(req.Context(), plots)
	close(deregistered)
	wg.Wait()

	s.metrics.wsClients.Dec()
	c.Close(websocket.StatusNormalClosure, "")
}

// Writes plots and request failures to the client until ctx is done or a
// write fails.
func (s *HttpServer) writeFrames(ctx context.Context, c *websocket.Conn, plots <-chan *Plot, failures <-chan error) {
	for {
		select {
		case plot := <-plots:
			frames, err := EncodePlot(plot)
			if err != nil {
				s.logger.WithError(err).Error("failed to encode plot")
				continue
			}
			for _, frame := range frames {
				if err := c.Write(ctx, websocket.MessageBinary, frame); err != nil {
					s.logger.Warn("websocket write failed and closed")
					return
				}
			}
		case failure := <-failures:
			frame, err := EncodeError(failure)
			if err != nil {
				s.logger.WithError(err).Error("failed to encode error")
				continue
			}
			if err := c.Write(ctx, websocket.MessageBinary, frame); err != nil {
				s.logger.Warn("websocket write failed and closed")
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func (s *HttpServer) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, errNoPlot):
		status = http.StatusNotFound
	case IsUserError(err):
		status = http.StatusBadRequest
	default:
		s.logger.WithError(err).Error("request failed")
	}

	writeJSON(w, status, ErrorMessage{Kind: ErrorKind(err), Msg: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logrus.WithField("tag", "HttpServer").WithError(err).Warn("failed to write JSON response")
	}
}

// Serves until ctx is canceled.
func (s *HttpServer) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:    s.addr,
		Handler: s.router,
	}

	stopped := make(chan struct{})
	defer close(stopped)

	go func() {
		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			server.Shutdown(shutdownCtx)
		case <-stopped:
		}
	}()

	s.logger.Infof("starting HTTP server at http://%s", s.addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
