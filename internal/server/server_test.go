package server

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"oasd/internal/audiocore"
	"oasd/internal/cachefs"
	"oasd/internal/conf"
	"oasd/internal/events"
	"oasd/internal/netserver"
	"oasd/internal/protocol"
)

// newTestServer builds a Server against the null device and a throwaway
// cache directory, bypassing New's real device-open path so these tests
// run without audio hardware.
func newTestServer(t *testing.T) *Server {
	t.Helper()

	files, err := cachefs.New(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = files.Close() })

	device := audiocore.NewNullDevice()
	handler := audiocore.NewAudioHandler(device, files)

	registry := prometheus.NewRegistry()
	metrics, err := audiocore.NewSceneMetrics(registry)
	require.NoError(t, err)
	handler.SetMetrics(metrics)

	listener, err := netserver.New("127.0.0.1:0", files)
	require.NoError(t, err)
	t.Cleanup(func() { _ = listener.Close() })

	return &Server{
		settings: &conf.Settings{CacheDirectory: files.BaseDir(), AudioDevice: "null"},
		listener: listener,
		files:    files,
		handler:  handler,
		events:   events.NewBus[audiocore.Snapshot](events.DefaultConfig()),
		registry: registry,
		metrics:  metrics,
		logger:   slog.Default(),
	}
}

func createTestSource(t *testing.T, s *Server) int {
	t.Helper()
	handle, err := s.handler.CreateSourceFromWaveform(audiocore.WaveformSine, 440, 0, 1)
	require.NoError(t, err)
	return handle
}

func TestDispatchGHDLMissingFileCreatesNoSource(t *testing.T) {
	s := newTestServer(t)
	s.dispatch(protocol.Message{Tag: protocol.TagGHDL, Handle: -1, Filename: "missing.wav"})
	// No client is connected, so the response was dropped silently; the
	// handler itself must not have created a source.
	assert.Equal(t, 0, s.handler.SourceCount())
}

func TestDispatchWAVECreatesSourceAndPublishesSnapshot(t *testing.T) {
	s := newTestServer(t)
	var got []audiocore.Snapshot
	s.events.Subscribe(func(snap audiocore.Snapshot) { got = append(got, snap) })

	s.dispatch(protocol.Message{
		Tag: protocol.TagWAVE, Handle: -1, Waveform: audiocore.WaveformSine,
		Floats: []float64{440, 0, 1},
	})

	assert.Equal(t, 1, s.handler.SourceCount())
	require.Eventually(t, func() bool { return len(got) == 1 }, time.Second, time.Millisecond)
	require.NotNil(t, got[0].Source)
	assert.Equal(t, audiocore.StateInitial, got[0].Source.State)
}

func TestDispatchLifecycleTransitionsSource(t *testing.T) {
	s := newTestServer(t)
	handle := createTestSource(t, s)
	src := s.handler.Source(handle)
	require.NotNil(t, src)
	assert.Equal(t, audiocore.StateInitial, src.State())

	s.dispatch(protocol.Message{Tag: protocol.TagPLAY, Handle: handle})
	assert.Equal(t, audiocore.StatePlaying, src.State())

	s.dispatch(protocol.Message{Tag: protocol.TagPAUS, Handle: handle})
	assert.Equal(t, audiocore.StatePaused, src.State())

	s.dispatch(protocol.Message{Tag: protocol.TagSTOP, Handle: handle})
	assert.Equal(t, audiocore.StateStopped, src.State())

	s.dispatch(protocol.Message{Tag: protocol.TagRHDL, Handle: handle})
	assert.Equal(t, audiocore.StateDeleted, src.State())

	s.handler.ProcessLazyDeletionQueue()
	assert.Nil(t, s.handler.Source(handle))
}

func TestDispatchUnknownHandleIsSilentNoOp(t *testing.T) {
	s := newTestServer(t)
	assert.NotPanics(t, func() {
		s.dispatch(protocol.Message{Tag: protocol.TagPLAY, Handle: 999})
		s.dispatch(protocol.Message{Tag: protocol.TagSSVO, Handle: 999, Floats: []float64{0.5}})
	})
}

func TestDispatchSSVESingleFloatAppliesDeprecatedSpeedForm(t *testing.T) {
	s := newTestServer(t)
	handle := createTestSource(t, s)
	src := s.handler.Source(handle)
	src.SetDirection(audiocore.Vec3{X: 0, Y: 0, Z: -1})

	s.dispatch(protocol.Message{Tag: protocol.TagSSVE, Handle: handle, Floats: []float64{2.0}})
	assert.Equal(t, audiocore.Vec3{X: 0, Y: 0, Z: -2}, src.Velocity())
}

func TestDispatchSSDISingleFloatUsesAngleConvention(t *testing.T) {
	s := newTestServer(t)
	handle := createTestSource(t, s)
	src := s.handler.Source(handle)

	s.dispatch(protocol.Message{Tag: protocol.TagSSDI, Handle: handle, Floats: []float64{1.5707963267948966}})
	assert.InDelta(t, 1.0, src.Direction().X, 1e-9)
	assert.InDelta(t, 0.0, src.Direction().Z, 1e-9)
}

func TestDispatchSPARAppliesSourceParamWithoutPanicking(t *testing.T) {
	s := newTestServer(t)
	handle := createTestSource(t, s)

	assert.NotPanics(t, func() {
		s.dispatch(protocol.Message{
			Tag: protocol.TagSPAR, Handle: handle,
			Ints: []int{audiocore.ParamSourceReferenceDistance}, Floats: []float64{5.0},
		})
	})
}

func TestApplyGlobalParamUpdatesListener(t *testing.T) {
	s := newTestServer(t)

	s.applyGlobalParam(audiocore.ParamSpeedOfSound, 300.0)
	assert.Equal(t, 300.0, s.handler.Listener.SpeedOfSound())

	s.applyGlobalParam(audiocore.ParamDopplerFactor, 2.0)
	assert.Equal(t, 2.0, s.handler.Listener.DopplerFactor())
}

func TestQuitResetsSceneButKeepsHandleCounterMonotonic(t *testing.T) {
	s := newTestServer(t)
	h1 := createTestSource(t, s)

	s.handleQuit()
	assert.Equal(t, 0, s.handler.SourceCount())

	h2 := createTestSource(t, s)
	assert.Greater(t, h2, h1)
}

func TestRunShutsDownCleanlyOnContextCancel(t *testing.T) {
	// Skip parallelization for goroutine leak detection.
	defer goleak.VerifyNone(t,
		goleak.IgnoreTopFunction("testing.(*T).Run"),
		goleak.IgnoreTopFunction("runtime.gopark"),
	)

	s := newTestServer(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	// Run only re-checks ctx between populate calls, so shutdown latency is
	// bounded by the idle poll interval (2s) per spec §5's "suspension and
	// blocking" note, not by this test's sleep above.
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not return after context cancellation")
	}
}
