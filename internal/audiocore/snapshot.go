package audiocore

// Snapshot is an immutable value-copy of a single audio unit's observable
// state, published to internal/events subscribers. Exactly one of Source
// or Listener is populated — the dispatch loop publishes one Snapshot per
// changed source (from UpdateAll's returned handles, or a handle touched
// by the packet just dispatched) and one whenever the listener itself
// changes.
type Snapshot struct {
	Source   *SourceSnapshot
	Listener *ListenerSnapshot
}

// SourceSnapshot is a read-only copy of an AudioSource's state at the
// moment it was taken; later mutation of the source does not affect it.
type SourceSnapshot struct {
	Handle   int
	State    SourceState
	Position Vec3
	Velocity Vec3
	Gain     float64
	Pitch    float64
}

// ListenerSnapshot is a read-only copy of the scene-global AudioListener.
type ListenerSnapshot struct {
	Position      Vec3
	Velocity      Vec3
	At, Up        Vec3
	Gain          float64
	SpeedOfSound  float64
	DopplerFactor float64
}

// Snapshot captures s's current observable state under its own mutex.
func (s *AudioSource) Snapshot() SourceSnapshot {
	return SourceSnapshot{
		Handle:   s.Handle(),
		State:    s.State(),
		Position: s.Position(),
		Velocity: s.Velocity(),
		Gain:     s.Gain(),
		Pitch:    s.Pitch(),
	}
}

// SourceSnapshot returns the snapshot for handle, or false if the source
// doesn't exist (never created, or already reaped).
func (h *AudioHandler) SourceSnapshot(handle int) (SourceSnapshot, bool) {
	src := h.Source(handle)
	if src == nil {
		return SourceSnapshot{}, false
	}
	return src.Snapshot(), true
}

// Snapshot captures l's current observable state under its own lock.
func (l *AudioListener) Snapshot() ListenerSnapshot {
	at, up := l.Orientation()
	return ListenerSnapshot{
		Position:      l.Position(),
		Velocity:      l.Velocity(),
		At:            at,
		Up:            up,
		Gain:          l.Gain(),
		SpeedOfSound:  l.SpeedOfSound(),
		DopplerFactor: l.DopplerFactor(),
	}
}
