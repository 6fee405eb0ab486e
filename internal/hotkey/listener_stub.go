//go:build !windows

package hotkey

import (
	"context"
	"log/slog"
)

// stubListener is used on platforms without a global keyboard hook. It never
// delivers events; the process still runs so the debug endpoints stay useful.
type stubListener struct{}

// NewListener returns a no-op listener on non-Windows platforms.
func NewListener(Handler) Listener {
	return stubListener{}
}

func (stubListener) Run(ctx context.Context) error {
	slog.Warn("global hotkey listener is only implemented on Windows; push-to-talk disabled")
	<-ctx.Done()
	return ctx.Err()
}
