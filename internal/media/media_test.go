package media

import "testing"

type fakeController struct {
	pauses  int
	resumes int
	owes    bool
}

func (f *fakeController) Pause() bool {
	f.pauses++
	return f.owes
}

func (f *fakeController) Resume() {
	f.resumes++
}

func TestGuardPauseResume(t *testing.T) {
	t.Parallel()

	f := &fakeController{owes: true}
	g := NewGuard(f)

	g.Pause()
	g.Resume()

	if f.pauses != 1 || f.resumes != 1 {
		t.Errorf("pauses=%d resumes=%d, want 1/1", f.pauses, f.resumes)
	}
}

func TestGuardResumeWithoutPauseIsNoop(t *testing.T) {
	t.Parallel()

	f := &fakeController{owes: true}
	g := NewGuard(f)

	g.Resume()
	if f.resumes != 0 {
		t.Errorf("resumes=%d, want 0", f.resumes)
	}
}

func TestGuardDoesNotResumeWhenNothingWasPaused(t *testing.T) {
	t.Parallel()

	// Controller reports it did not pause anything (e.g. Noop).
	f := &fakeController{owes: false}
	g := NewGuard(f)

	g.Pause()
	g.Resume()

	if f.resumes != 0 {
		t.Errorf("resumes=%d, want 0 when controller owed nothing", f.resumes)
	}
}

func TestGuardDoublePauseSendsOneToggle(t *testing.T) {
	t.Parallel()

	f := &fakeController{owes: true}
	g := NewGuard(f)

	g.Pause()
	g.Pause()
	if f.pauses != 1 {
		t.Errorf("pauses=%d, want 1", f.pauses)
	}
}

func TestGuardNilController(t *testing.T) {
	t.Parallel()

	g := NewGuard(nil)
	g.Pause()
	g.Resume()
}
