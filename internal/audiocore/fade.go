package audiocore

import "oasd/internal/oastime"

// FadePlan is a linear gain interpolation in progress on a source. The zero
// value (HasTime() false on Start) means "no fade scheduled".
type FadePlan struct {
	InitialGain float64
	FinalGain   float64
	Start       oastime.Time
	End         oastime.Time
}

// Active reports whether a fade is currently scheduled.
func (f FadePlan) Active() bool {
	return f.Start.HasTime()
}

// GainAt returns the interpolated gain at the given instant. Calling it
// before Start or on a zero FadePlan returns InitialGain; calling it at or
// after End returns FinalGain.
func (f FadePlan) GainAt(now oastime.Time) float64 {
	if !f.Active() {
		return f.InitialGain
	}
	t := oastime.Fraction(now, f.Start, f.End)
	return f.InitialGain + t*(f.FinalGain-f.InitialGain)
}

// Done reports whether the fade's end time has passed.
func (f FadePlan) Done(now oastime.Time) bool {
	return f.Active() && now.AtOrAfter(f.End)
}

// newFade builds a FadePlan starting at the source's currently-interpolated
// gain, so that replacing an in-flight fade is continuous: the new plan's
// initial gain is whatever the old plan reported at this instant, never the
// old plan's stale target.
func newFade(currentGain, finalGain float64, now oastime.Time, durationSeconds float64) FadePlan {
	return FadePlan{
		InitialGain: currentGain,
		FinalGain:   finalGain,
		Start:       now,
		End:         now.Add(oastime.FromSeconds(durationSeconds)),
	}
}
