// Package audiocore implements the server's audio scene: the listener, the
// per-source state machines, the interned buffer cache, and the handler
// that ties them together behind a scene-mutation API. internal/server is
// the only caller; it never touches a Source or AudioListener field
// directly.
//
// # Components
//
//   - AudioBuffer / BufferMap: decoded (GHDL) or synthesized (WAVE) PCM,
//     interned by filename and reference-counted across sources.
//   - AudioSource: one sound's state machine, spatial parameters and fade
//     plan.
//   - AudioListener: the scene-global singleton (gain, position, velocity,
//     orientation, speed of sound, Doppler factor).
//   - AudioHandler: owns the device, the buffer and source maps, scene
//     defaults, and the lazy-deletion queue.
//   - Device: the malgo-backed playback backend; a fake implementation
//     backs the package's tests.
//
// # Concurrency
//
// AudioHandler, BufferMap, AudioListener and AudioSource each guard their
// own state with a mutex; callers may use a single AudioHandler from
// multiple goroutines, though in practice the server's main loop is the
// only caller and dispatches one message at a time.
package audiocore
