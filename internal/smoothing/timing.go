package smoothing

import (
	"time"

	"github.com/coreman2200/ledsmooth/internal/colorframe"
)

// TimingState bounds the current transition: Previous is shown at
// PreviousAt, Target is reached at TargetAt. TargetAt >= PreviousAt always.
type TimingState struct {
	Previous   colorframe.Frame
	Target     colorframe.Frame
	PreviousAt time.Time
	TargetAt   time.Time
}

// Empty reports whether no frame has been accepted since the last reset.
func (s *TimingState) Empty() bool { return s.Target == nil }

// Reset forgets the transition; the next Setup starts a fresh session.
func (s *TimingState) Reset() { *s = TimingState{} }

// Fraction returns how far through the window now is, clamped to [0,1].
// A zero-length window is always complete.
func (s *TimingState) Fraction(now time.Time) float64 {
	window := s.TargetAt.Sub(s.PreviousAt)
	if window <= 0 {
		return 1
	}
	return clamp01(float64(now.Sub(s.PreviousAt)) / float64(window))
}

// Settled reports whether the transition has completed at now.
func (s *TimingState) Settled(now time.Time) bool {
	return s.Fraction(now) >= 1
}

// Interpolate returns a fresh frame holding the color at now. A complete
// transition returns an exact copy of Target.
func (s *TimingState) Interpolate(now time.Time, curve Curve) colorframe.Frame {
	f := s.Fraction(now)
	if f >= 1 || len(s.Previous) != len(s.Target) {
		return s.Target.Clone()
	}
	if curve == nil {
		curve = LinearCurve
	}
	w := clamp01(curve(f))
	out := make(colorframe.Frame, len(s.Target))
	for i := range out {
		p, t := s.Previous[i], s.Target[i]
		out[i] = colorframe.RGB{
			R: colorframe.Lerp(p.R, t.R, w),
			G: colorframe.Lerp(p.G, t.G, w),
			B: colorframe.Lerp(p.B, t.B, w),
		}
	}
	return out
}

// Setup starts a transition toward frame. The color on screen at now
// becomes the new starting point, so a target that arrives mid-transition
// continues from where the LEDs are instead of snapping. The first frame of
// a session starts settled on itself.
func (s *TimingState) Setup(frame colorframe.Frame, now time.Time, settling time.Duration, curve Curve) {
	if s.Empty() || len(s.Target) != len(frame) {
		s.Previous = frame.Clone()
	} else {
		s.Previous = s.Interpolate(now, curve)
	}
	s.Target = frame.Clone()
	s.PreviousAt = now
	if settling < 0 {
		settling = 0
	}
	s.TargetAt = now.Add(settling)
}

// SetDirect replaces the transition with a settled frame.
func (s *TimingState) SetDirect(frame colorframe.Frame, now time.Time) {
	s.Previous = frame.Clone()
	s.Target = s.Previous.Clone()
	s.PreviousAt = now
	s.TargetAt = now
}
