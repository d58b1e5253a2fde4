package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"oasd/internal/audiocore"
	"oasd/internal/cachefs"
	"oasd/internal/conf"
	"oasd/internal/errors"
	"oasd/internal/events"
	"oasd/internal/logging"
	"oasd/internal/netserver"
)

// connectedPollInterval and idlePollInterval bound how long the main loop
// blocks in Listener.Populate per spec §4.6: fast enough that an in-flight
// fade advances at >= 2kHz while a client is connected, slow enough that
// an idle server doesn't spin.
const (
	connectedPollInterval = 500 * time.Microsecond
	idlePollInterval      = 2 * time.Second
)

// quitBackoffInitial and quitBackoffIncrement implement the reinitialize
// retry schedule after QUIT: 5s, 10s, 15s, ... matching the original
// server's delay-+= -5-per-attempt loop.
const (
	quitBackoffInitial   = 5 * time.Second
	quitBackoffIncrement = 5 * time.Second
)

// Server is the main orchestrator: one listening socket, one audio
// handler, one event bus, all constructed once at startup and threaded
// through Run. There is no hidden global state.
type Server struct {
	settings *conf.Settings

	listener *netserver.Listener
	files    *cachefs.FileHandler
	handler  *audiocore.AudioHandler
	events   *events.Bus[audiocore.Snapshot]

	registry *prometheus.Registry
	metrics  *audiocore.SceneMetrics

	logger *slog.Logger
}

// New wires every component from settings but does not start accepting
// connections; call Run to do that. A failure here is always fatal per
// spec §7 (bad config, no device, no listening socket).
func New(settings *conf.Settings) (*Server, error) {
	logger := logging.ForService("server")
	if logger == nil {
		logger = slog.Default()
	}

	files, err := cachefs.New(settings.CacheDirectory)
	if err != nil {
		return nil, errors.New(err).
			Component(ComponentServer).
			Category(errors.CategoryFatal).
			Context("cache_directory", settings.CacheDirectory).
			Build()
	}

	device, err := openDevice(settings.AudioDevice)
	if err != nil {
		return nil, errors.New(err).
			Component(ComponentServer).
			Category(errors.CategoryFatal).
			Context("audio_device", settings.AudioDevice).
			Build()
	}

	registry := prometheus.NewRegistry()
	metrics, err := audiocore.NewSceneMetrics(registry)
	if err != nil {
		return nil, errors.New(err).
			Component(ComponentServer).
			Category(errors.CategoryFatal).
			Context("operation", "register_metrics").
			Build()
	}

	handler := audiocore.NewAudioHandler(device, files)
	handler.SetMetrics(metrics)

	addr := fmt.Sprintf(":%d", settings.Port)
	listener, err := netserver.New(addr, files)
	if err != nil {
		return nil, errors.New(err).
			Component(ComponentServer).
			Category(errors.CategoryFatal).
			Context("port", settings.Port).
			Build()
	}

	return &Server{
		settings: settings,
		listener: listener,
		files:    files,
		handler:  handler,
		events:   events.NewBus[audiocore.Snapshot](events.DefaultConfig()),
		registry: registry,
		metrics:  metrics,
		logger:   logger,
	}, nil
}

// Observe registers fn to be called with every published Snapshot (the
// optional GUI observer's hook; see spec §6's "Observer interface").
func (s *Server) Observe(fn func(audiocore.Snapshot)) {
	s.events.Subscribe(fn)
}

// Registry exposes the Prometheus registry metrics are collected into, for
// a caller that wants to serve it (e.g. a debug/metrics HTTP mux); the
// server itself never binds one.
func (s *Server) Registry() *prometheus.Registry { return s.registry }

// Run drives the socket's accept loop and the dispatch loop concurrently
// until ctx is canceled, returning once both have stopped. The accept
// loop owns the listening socket and feeds messages into the queue
// Populate drains; the dispatch loop populates with a deadline that
// shortens while a client is connected, dispatches whatever arrived, or
// advances time-driven state when nothing did.
func (s *Server) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.listener.Serve(gctx) })
	g.Go(func() error { return s.dispatchLoop(gctx) })
	g.Go(func() error {
		// net.Listener.Accept only returns once the listener is closed;
		// canceling gctx alone never unblocks it, so an explicit close on
		// shutdown is required to stop the accept loop promptly.
		<-gctx.Done()
		_ = s.listener.Close()
		return nil
	})
	return g.Wait()
}

func (s *Server) dispatchLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		interval := idlePollInterval
		if s.listener.Connected() {
			interval = connectedPollInterval
		}

		msgs := s.listener.Populate(time.Now().Add(interval))
		if len(msgs) == 0 {
			s.advance(true)
			continue
		}

		for _, m := range msgs {
			s.dispatch(m)
		}
		s.advance(false)
	}
}

// advance reaps any source queued for deletion this cycle, refreshes the
// metrics snapshot, and — on an idle iteration (forceUpdate) — advances
// every source's time-driven state (fades, playback completion),
// republishing whatever changed. Called once per main-loop iteration,
// after dispatch and before the next populate, matching
// AudioHandler.ProcessLazyDeletionQueue's documented contract.
func (s *Server) advance(forceUpdate bool) {
	if forceUpdate {
		for _, handle := range s.handler.UpdateAll(true) {
			s.publishSource(handle)
		}
	}
	s.handler.ProcessLazyDeletionQueue()
	s.metrics.Snapshot(s.handler)
}

// openDevice selects the null device for the "null" sentinel, or opens the
// real malgo-backed playback device otherwise.
func openDevice(name string) (audiocore.Device, error) {
	if name == "null" {
		return audiocore.NewNullDevice(), nil
	}
	return audiocore.NewMalgoDevice(name)
}

// Close tears down every component; used on process shutdown after Run
// returns.
func (s *Server) Close() error {
	_ = s.listener.Close()
	err := s.handler.Release()
	_ = s.events.Shutdown(2 * time.Second)
	return err
}

