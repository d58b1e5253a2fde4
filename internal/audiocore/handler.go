package audiocore

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"oasd/internal/cachefs"
	"oasd/internal/logging"
)

// AudioHandler owns the rendering device, the buffer and source maps, and
// the scene-wide defaults. Every mutation of audio state is reached
// through its methods; the socket layer never touches a Source or
// AudioListener directly (see internal/server's dispatch table).
type AudioHandler struct {
	mu      sync.RWMutex
	sources map[int]*AudioSource

	nextHandle int64

	buffers  *BufferMap
	Listener *AudioListener

	defaultRolloff           float64
	defaultReferenceDistance float64

	device Device
	files  *cachefs.FileHandler

	deletionQueue []int

	metrics *SceneMetrics
	logger  *slog.Logger
}

// SetMetrics attaches a SceneMetrics instance; nil disables recording.
func (h *AudioHandler) SetMetrics(m *SceneMetrics) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.metrics = m
}

// Device is the minimal surface AudioHandler needs from the playback
// backend to build per-source renderers and decode files; device.go
// supplies the malgo-backed implementation.
type Device interface {
	NewSourceRenderer() sourceRenderer
	DecodeFile(files *cachefs.FileHandler, filename string) (*AudioBuffer, error)
	Synthesize(waveform int, frequency float64, phase float64, durationSeconds float64) (*AudioBuffer, error)
	Close() error
}

// NewAudioHandler constructs a handler bound to device and the sandboxed
// cache directory files resolves filenames against. files may be nil in
// tests whose Device fake never touches the filesystem.
func NewAudioHandler(device Device, files *cachefs.FileHandler) *AudioHandler {
	logger := logging.ForService("audiocore")
	if logger == nil {
		logger = slog.Default()
	}
	return &AudioHandler{
		sources:                  make(map[int]*AudioSource),
		buffers:                  NewBufferMap(),
		Listener:                 NewAudioListener(),
		defaultRolloff:           DefaultRolloffFactor,
		defaultReferenceDistance: DefaultReferenceDistance,
		device:                   device,
		files:                    files,
		logger:                   logger.With("component", "audio_handler"),
	}
}

// CreateSourceFromFile implements GHDL: (1) resolve filename in the buffer
// map, (2) on a miss, decode the on-disk file into a fresh buffer and
// intern it, (3) allocate the next handle, (4) construct the source with
// the current scene defaults and insert it into the source map. Returns
// -1 on any failure (file missing or decode error), per the wire contract.
// Lookup/Intern already acquire the buffer's reference on the new
// source's behalf, so insertSource/newAudioSource must not acquire again.
func (h *AudioHandler) CreateSourceFromFile(filename string) (int, error) {
	buf, ok := h.buffers.Lookup(filename)
	if !ok {
		decoded, err := h.device.DecodeFile(h.files, filename)
		if err != nil {
			return -1, err
		}
		buf = h.buffers.Intern(filename, decoded)
	}
	return h.insertSource(buf), nil
}

// CreateSourceFromWaveform implements WAVE: synthesizes a fresh,
// non-interned buffer and allocates a source against it. The buffer is
// never interned in the BufferMap, so unlike CreateSourceFromFile this
// call must acquire the reference newAudioSource expects itself.
func (h *AudioHandler) CreateSourceFromWaveform(waveform int, frequency, phase, durationSeconds float64) (int, error) {
	buf, err := h.device.Synthesize(waveform, frequency, phase, durationSeconds)
	if err != nil {
		return -1, err
	}
	buf.Acquire()
	return h.insertSource(buf), nil
}

func (h *AudioHandler) insertSource(buf *AudioBuffer) int {
	handle := int(atomic.AddInt64(&h.nextHandle, 1))

	h.mu.Lock()
	defer h.mu.Unlock()
	src := newAudioSource(handle, buf, h.device.NewSourceRenderer(), h.defaultRolloff, h.defaultReferenceDistance)
	h.sources[handle] = src
	h.logger.Debug("source created", "handle", handle, "total_sources", len(h.sources))
	h.metrics.RecordSourceCreated()
	return handle
}

// Source returns the source for handle, or nil if it has never existed or
// has already been reaped. Callers must treat a nil return as a silent
// no-op per the wire contract for unknown handles.
func (h *AudioHandler) Source(handle int) *AudioSource {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.sources[handle]
}

// DeleteSource implements RHDL: the source is marked DELETED immediately
// so that STAT on the same dispatch cycle reports UNKNOWN, but removal
// from the map (and the buffer release) is deferred to
// ProcessLazyDeletionQueue so that a renderer call already in flight for
// this handle never operates on a freed object.
func (h *AudioHandler) DeleteSource(handle int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	src, ok := h.sources[handle]
	if !ok {
		return
	}
	src.markDeleted()
	h.deletionQueue = append(h.deletionQueue, handle)
}

// ProcessLazyDeletionQueue reaps every source queued by DeleteSource since
// the last call. Invoked once per main-loop iteration, after dispatch and
// before observer notification.
func (h *AudioHandler) ProcessLazyDeletionQueue() {
	h.mu.Lock()
	queue := h.deletionQueue
	h.deletionQueue = nil
	h.mu.Unlock()

	for _, handle := range queue {
		h.mu.Lock()
		src := h.sources[handle]
		delete(h.sources, handle)
		h.mu.Unlock()
		if src != nil {
			src.release(h.buffers)
			h.metrics.RecordSourceDeleted()
		}
	}
}

// UpdateAll calls Update(forceUpdate) on every live source and returns the
// handles whose observable state changed, for the server's
// recently-modified tracking.
func (h *AudioHandler) UpdateAll(forceUpdate bool) []int {
	h.mu.RLock()
	sources := make([]*AudioSource, 0, len(h.sources))
	for _, src := range h.sources {
		sources = append(sources, src)
	}
	h.mu.RUnlock()

	var changed []int
	for _, src := range sources {
		if src.Update(forceUpdate) {
			changed = append(changed, src.Handle())
		}
	}
	return changed
}

// SetDefaultRolloffFactor and SetDefaultReferenceDistance mutate
// handler-level scene defaults applied to sources created AFTER the call;
// existing sources are unaffected.

func (h *AudioHandler) SetDefaultRolloffFactor(v float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.defaultRolloff = v
}

func (h *AudioHandler) SetDefaultReferenceDistance(v float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.defaultReferenceDistance = v
}

// SourceCount returns the number of live (non-reaped) sources, for metrics
// and tests.
func (h *AudioHandler) SourceCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sources)
}

// Release deletes every source and buffer and tears down the device. Used
// on QUIT before reinitializing, and on shutdown. nextHandle is
// deliberately left untouched: handle allocation must remain strictly
// monotonic across QUIT (testable property 8), so the handler surviving
// QUIT is the same instance, not a fresh one.
func (h *AudioHandler) Release() error {
	h.mu.Lock()
	clear(h.sources)
	h.deletionQueue = nil
	h.mu.Unlock()

	h.buffers.Reset()
	h.Listener.Reset()
	return h.device.Close()
}

// Reopen installs a freshly-opened device after a QUIT-triggered Release,
// without disturbing nextHandle or anything else Release already cleared.
func (h *AudioHandler) Reopen(device Device) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.device = device
}
