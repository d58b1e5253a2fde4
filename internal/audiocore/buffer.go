package audiocore

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"oasd/internal/logging"
)

// AudioBuffer is a decoded PCM sample set, either loaded from a cached file
// (GHDL) or synthesized (WAVE). Buffers are immutable once built and are
// shared by reference count across every source created from them.
type AudioBuffer struct {
	Filename   string // empty for synthesized buffers
	SampleRate int
	Channels   int
	Samples    []float32 // interleaved, normalized to [-1, 1]

	refCount int32
}

// Acquire increments the buffer's reference count. Called whenever a source
// is created against this buffer.
func (b *AudioBuffer) Acquire() {
	atomic.AddInt32(&b.refCount, 1)
}

// Release decrements the reference count and reports whether it reached
// zero, meaning the buffer has no more sources referencing it and may be
// evicted from the map.
func (b *AudioBuffer) Release() bool {
	return atomic.AddInt32(&b.refCount, -1) <= 0
}

// RefCount returns the current reference count, for diagnostics and tests.
func (b *AudioBuffer) RefCount() int {
	return int(atomic.LoadInt32(&b.refCount))
}

// Duration returns the playback duration of the buffer.
func (b *AudioBuffer) Duration() float64 {
	if b.SampleRate == 0 || b.Channels == 0 {
		return 0
	}
	frames := len(b.Samples) / b.Channels
	return float64(frames) / float64(b.SampleRate)
}

// BufferMap interns AudioBuffers by filename, so that repeated GHDL calls
// for the same file return the same decoded buffer instead of re-decoding
// and re-reading from disk. Synthesized (WAVE) buffers are never interned:
// each call produces its own buffer with an empty Filename.
type BufferMap struct {
	mu     sync.RWMutex
	byFile map[string]*AudioBuffer
	logger *slog.Logger
}

// NewBufferMap constructs an empty buffer cache.
func NewBufferMap() *BufferMap {
	logger := logging.ForService("audiocore")
	if logger == nil {
		logger = slog.Default()
	}
	return &BufferMap{
		byFile: make(map[string]*AudioBuffer),
		logger: logger.With("component", "buffer_map"),
	}
}

// Lookup returns the interned buffer for filename, if one has already been
// decoded, acquiring a reference on the caller's behalf.
func (m *BufferMap) Lookup(filename string) (*AudioBuffer, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	buf, ok := m.byFile[filename]
	if ok {
		buf.Acquire()
	}
	return buf, ok
}

// Intern stores a newly-decoded buffer under filename and returns it with
// one reference already held. If another goroutine raced to decode the
// same file first, the existing buffer wins and the new one is discarded.
func (m *BufferMap) Intern(filename string, buf *AudioBuffer) *AudioBuffer {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.byFile[filename]; ok {
		existing.Acquire()
		return existing
	}
	buf.Filename = filename
	buf.Acquire()
	m.byFile[filename] = buf
	m.logger.Debug("interned audio buffer", "filename", filename, "duration", buf.Duration())
	return buf
}

// Release drops a reference on the buffer backing filename, evicting it
// from the map once the count reaches zero.
func (m *BufferMap) Release(filename string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	buf, ok := m.byFile[filename]
	if !ok {
		return
	}
	if buf.Release() {
		delete(m.byFile, filename)
		m.logger.Debug("evicted audio buffer", "filename", filename)
	}
}

// Len returns the number of distinct interned buffers, for tests and
// metrics.
func (m *BufferMap) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byFile)
}

// Reset releases every interned buffer; called on QUIT/Release.
func (m *BufferMap) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	clear(m.byFile)
}
