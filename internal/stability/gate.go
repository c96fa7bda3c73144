// Package stability turns the motion-score stream plus wall-clock time into a
// boolean steadiness signal.
package stability

import "time"

// Gate reports steadiness once the score has stayed below the motion
// threshold for longer than the stillness duration. It is a pure function of
// the input sequence: no I/O, no internal clock, so the rest of the machine
// can be tested deterministically.
type Gate struct {
	threshold    float64
	stillness    time.Duration
	lastMotionAt time.Time
}

// New creates a gate with the given motion threshold and stillness duration.
func New(threshold float64, stillness time.Duration) *Gate {
	return &Gate{threshold: threshold, stillness: stillness}
}

// Update feeds one sample and reports whether the view is currently steady.
func (g *Gate) Update(score float64, now time.Time) bool {
	if g.lastMotionAt.IsZero() {
		// Stillness is counted from the first sample, not from process start.
		g.lastMotionAt = now
	}
	if score >= g.threshold {
		g.lastMotionAt = now
		return false
	}
	return now.Sub(g.lastMotionAt) > g.stillness
}

// NoteMotion restarts the stillness window as if an above-threshold sample
// arrived at now. The session machine calls it on transitions that must not
// inherit the previous still interval: step advance and reset.
func (g *Gate) NoteMotion(now time.Time) {
	g.lastMotionAt = now
}

// LastMotionAt returns the timestamp of the most recent above-threshold
// sample (or the first sample if none has crossed yet).
func (g *Gate) LastMotionAt() time.Time {
	return g.lastMotionAt
}

// Progress reports how far the current still interval has run, in [0, 1].
// Drives the stability bar in the presenter.
func (g *Gate) Progress(now time.Time) float64 {
	if g.stillness <= 0 || g.lastMotionAt.IsZero() {
		return 0
	}
	p := float64(now.Sub(g.lastMotionAt)) / float64(g.stillness)
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}
