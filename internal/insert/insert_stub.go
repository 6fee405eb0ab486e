//go:build !windows

package insert

import "log/slog"

// stubInserter logs the text instead of typing it. Useful for exercising the
// pipeline on development machines without a Windows session.
type stubInserter struct{}

// NewInserter returns the logging stub on non-Windows platforms.
func NewInserter() Inserter {
	return stubInserter{}
}

func (stubInserter) Insert(text string) error {
	slog.Info("text insertion is only implemented on Windows; printing instead", "text", text)
	return nil
}
