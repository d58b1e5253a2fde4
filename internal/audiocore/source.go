package audiocore

import (
	"math"
	"sync"

	"oasd/internal/oastime"
)

// AudioSource is one sound in the scene: a handle, the buffer it plays
// from, its spatial and rendering parameters, and an optional fade plan.
// All mutation goes through the methods below, which hold the mutex for
// the duration of the rendering-library call they forward to.
type AudioSource struct {
	mu sync.Mutex

	handle int
	buffer *AudioBuffer
	state  SourceState

	position  Vec3
	velocity  Vec3
	direction Vec3 // zero vector => omnidirectional

	gain  float64
	pitch float64
	loop  bool

	rolloff           float64
	referenceDistance float64
	coneInnerAngle    float64
	coneOuterAngle    float64
	coneOuterGain     float64

	fade FadePlan

	// playbackOffset is the frame index reached in buffer.Samples; reset to
	// zero by stop and by a PLAY issued while already playing.
	playbackOffset int

	renderer sourceRenderer
}

// sourceRenderer is the minimal surface AudioSource needs from the
// underlying rendering backend: start/stop playback and report whether
// playback has run to completion. device.go supplies the real
// implementation; tests supply fakes.
type sourceRenderer interface {
	Play(buf *AudioBuffer, offsetFrames int, loop bool, gain, pitch float64) error
	Pause() error
	Stop() error
	Finished() bool
	SetGain(gain float64)
	SetPitch(pitch float64) error
	SetPosition(v Vec3)
	SetVelocity(v Vec3)
	SetDirection(v Vec3)
	SetRolloff(v float64)
	SetReferenceDistance(v float64)
	SetCone(innerDeg, outerDeg, outerGain float64)
}

// newAudioSource constructs a source in state INITIAL with the current
// scene defaults for rolloff and reference distance; every other
// attribute starts at its package default. buf's reference is assumed
// already acquired on this source's behalf by the caller (BufferMap.
// Lookup/Intern for a file-backed source, or the caller directly for a
// synthesized one) — newAudioSource never acquires it itself.
func newAudioSource(handle int, buf *AudioBuffer, renderer sourceRenderer, defaultRolloff, defaultReferenceDistance float64) *AudioSource {
	return &AudioSource{
		handle:            handle,
		buffer:            buf,
		state:             StateInitial,
		gain:              DefaultGain,
		pitch:             DefaultPitch,
		rolloff:           defaultRolloff,
		referenceDistance: defaultReferenceDistance,
		coneInnerAngle:    DefaultConeInnerAngle,
		coneOuterAngle:    DefaultConeOuterAngle,
		coneOuterGain:     DefaultConeOuterGain,
		renderer:          renderer,
	}
}

func (s *AudioSource) Handle() int { return s.handle }

func (s *AudioSource) State() SourceState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Play starts (or restarts) playback. A PLAY on a PLAYING source restarts
// from the beginning; a PLAY on INITIAL, PAUSED or STOPPED resumes or
// starts from the current playbackOffset (zero unless previously paused).
// DELETED sources silently ignore every operation.
func (s *AudioSource) Play() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateDeleted {
		return nil
	}
	if s.state == StatePlaying {
		s.playbackOffset = 0
	}
	if err := s.renderer.Play(s.buffer, s.playbackOffset, s.loop, s.gain, s.pitch); err != nil {
		return err
	}
	s.state = StatePlaying
	return nil
}

// Pause is a no-op unless the source is currently PLAYING.
func (s *AudioSource) Pause() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateDeleted || s.state != StatePlaying {
		return nil
	}
	if err := s.renderer.Pause(); err != nil {
		return err
	}
	s.state = StatePaused
	return nil
}

// Stop resets the playback offset to zero and transitions to STOPPED from
// either PLAYING or PAUSED; it is a no-op from INITIAL or STOPPED.
func (s *AudioSource) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateDeleted || (s.state != StatePlaying && s.state != StatePaused) {
		return nil
	}
	if err := s.renderer.Stop(); err != nil {
		return err
	}
	s.state = StateStopped
	s.playbackOffset = 0
	return nil
}

// SetPlaybackPosition seeks to the given offset in seconds. An offset
// outside the buffer's bounds is a silent no-op per spec. If the source is
// currently PLAYING, playback restarts immediately from the new offset;
// otherwise the offset takes effect on the next Play.
func (s *AudioSource) SetPlaybackPosition(seconds float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateDeleted || s.buffer == nil || s.buffer.SampleRate == 0 || s.buffer.Channels == 0 {
		return
	}
	frame := int(seconds * float64(s.buffer.SampleRate))
	totalFrames := len(s.buffer.Samples) / s.buffer.Channels
	if frame < 0 || frame >= totalFrames {
		return
	}
	s.playbackOffset = frame
	if s.state == StatePlaying {
		_ = s.renderer.Play(s.buffer, frame, s.loop, s.gain, s.pitch)
	}
}

// markDeleted transitions the source to DELETED unconditionally; called by
// the handler when RHDL is processed. DELETED is terminal.
func (s *AudioSource) markDeleted() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateDeleted
}

func (s *AudioSource) SetLoop(loop bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loop = loop
}

func (s *AudioSource) Gain() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentGain(oastime.Now())
}

// currentGain returns the fade-interpolated gain at now; callers must hold
// the mutex.
func (s *AudioSource) currentGain(now oastime.Time) float64 {
	if s.fade.Active() {
		return s.fade.GainAt(now)
	}
	return s.gain
}

func (s *AudioSource) SetGain(gain float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fade = FadePlan{}
	s.gain = gain
	s.renderer.SetGain(gain)
}

func (s *AudioSource) Pitch() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pitch
}

func (s *AudioSource) SetPitch(pitch float64) error {
	if pitch <= 0 {
		return ErrInvalidPitch
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.renderer.SetPitch(pitch); err != nil {
		return err
	}
	s.pitch = pitch
	return nil
}

func (s *AudioSource) Position() Vec3 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.position
}

func (s *AudioSource) SetPosition(v Vec3) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.position = v
	s.renderer.SetPosition(v)
}

func (s *AudioSource) Velocity() Vec3 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.velocity
}

func (s *AudioSource) SetVelocity(v Vec3) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.velocity = v
	s.renderer.SetVelocity(v)
}

// SetSpeed implements the deprecated 1-float SSVE form: velocity is set to
// speed along the source's current facing direction (the zero vector if
// the source is currently omnidirectional).
func (s *AudioSource) SetSpeed(speed float64) {
	dir := s.Direction()
	s.SetVelocity(Vec3{X: dir.X * speed, Y: dir.Y * speed, Z: dir.Z * speed})
}

func (s *AudioSource) Direction() Vec3 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.direction
}

// SetDirection sets the orientation vector. The zero vector makes the
// source omnidirectional; any non-zero vector makes it directional and
// subject to cone attenuation.
func (s *AudioSource) SetDirection(v Vec3) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.direction = v
	s.renderer.SetDirection(v)
}

// SetDirectionAngle implements the 1-float SSDI form: the facing direction
// is set from an angle in radians in the X-Z plane (dirX = sin(angle),
// dirZ = cos(angle)), matching the client library's own convention.
func (s *AudioSource) SetDirectionAngle(radians float64) {
	s.SetDirection(Vec3{X: math.Sin(radians), Y: 0, Z: math.Cos(radians)})
}

func (s *AudioSource) SetRolloff(v float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rolloff = v
	s.renderer.SetRolloff(v)
}

func (s *AudioSource) SetReferenceDistance(v float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.referenceDistance = v
	s.renderer.SetReferenceDistance(v)
}

func (s *AudioSource) SetConeInnerAngle(deg float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.coneInnerAngle = deg
	s.renderer.SetCone(s.coneInnerAngle, s.coneOuterAngle, s.coneOuterGain)
}

func (s *AudioSource) SetConeOuterAngle(deg float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.coneOuterAngle = deg
	s.renderer.SetCone(s.coneInnerAngle, s.coneOuterAngle, s.coneOuterGain)
}

func (s *AudioSource) SetConeOuterGain(gain float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.coneOuterGain = gain
	s.renderer.SetCone(s.coneInnerAngle, s.coneOuterAngle, s.coneOuterGain)
}

// SetFade schedules a linear gain ramp to finalGain over durationSeconds.
// Replacing an in-flight fade is continuous: the new plan's initial gain is
// the old plan's currently-interpolated value, not its stale target.
func (s *AudioSource) SetFade(finalGain, durationSeconds float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := oastime.Now()
	current := s.currentGain(now)
	s.fade = newFade(current, finalGain, now, durationSeconds)
	s.gain = finalGain
}

// Update advances time-driven state: if forceUpdate or the source is
// PLAYING, it queries the renderer's playback-finished flag and, if set,
// transitions to STOPPED (or back to the start for a looping source), and
// advances any active fade. It returns true iff an observable attribute
// changed, so the handler knows whether to mark the source as recently
// modified for observers.
func (s *AudioSource) Update(forceUpdate bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateDeleted {
		return false
	}

	changed := false
	now := oastime.Now()

	if s.fade.Active() {
		if s.fade.Done(now) {
			s.gain = s.fade.FinalGain
			s.fade = FadePlan{}
		}
		s.renderer.SetGain(s.currentGain(now))
		changed = true
	}

	if (forceUpdate || s.state == StatePlaying) && s.renderer.Finished() {
		if s.loop {
			s.playbackOffset = 0
			_ = s.renderer.Play(s.buffer, 0, true, s.gain, s.pitch)
		} else {
			s.state = StateStopped
			s.playbackOffset = 0
		}
		changed = true
	}

	return changed
}

// release drops the source's reference on its backing buffer; called by
// the handler's lazy-deletion sweep.
func (s *AudioSource) release(bufMap *BufferMap) {
	s.mu.Lock()
	buf := s.buffer
	s.buffer = nil
	s.mu.Unlock()
	if buf != nil && buf.Filename != "" {
		bufMap.Release(buf.Filename)
	}
}
