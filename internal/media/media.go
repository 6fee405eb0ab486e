// Package media pauses background playback while a recording is in flight.
// Dictating over music makes the recogniser hallucinate lyrics; toggling the
// media key around the recording keeps the microphone clean.
package media

import "log/slog"

// Controller toggles system media playback. Implementations must be
// best-effort: the pipeline ignores every error here.
type Controller interface {
	// Pause requests playback to stop. Returns whether a resume is owed.
	Pause() bool

	// Resume restarts playback previously stopped by Pause.
	Resume()
}

// Noop is the Controller used when media pausing is disabled or unsupported.
type Noop struct{}

func (Noop) Pause() bool { return false }
func (Noop) Resume()     {}

// Guard wraps a Controller and tracks whether this process paused playback,
// so Resume never unpauses something the user paused themselves.
type Guard struct {
	ctrl   Controller
	paused bool
}

// NewGuard wraps ctrl. A nil ctrl behaves as Noop.
func NewGuard(ctrl Controller) *Guard {
	if ctrl == nil {
		ctrl = Noop{}
	}
	return &Guard{ctrl: ctrl}
}

// Pause pauses playback if not already paused by us. Only called from the
// pipeline's single worker and hook callback paths, never concurrently.
func (g *Guard) Pause() {
	if g.paused {
		return
	}
	g.paused = g.ctrl.Pause()
	if g.paused {
		slog.Debug("media playback paused for recording")
	}
}

// Resume resumes playback only when Pause actually paused it.
func (g *Guard) Resume() {
	if !g.paused {
		return
	}
	g.paused = false
	g.ctrl.Resume()
	slog.Debug("media playback resumed")
}
