package hotkey

import "context"

// Handler receives raw key events from an OS listener. *Gate implements it.
type Handler interface {
	KeyDown(name string)
	KeyUp(name string)
}

// Listener delivers raw keyboard events from the operating system to a
// Handler. Run blocks until ctx is cancelled or the hook fails.
type Listener interface {
	Run(ctx context.Context) error
}

var _ Handler = (*Gate)(nil)
