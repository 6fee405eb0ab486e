//go:build !windows

package media

// NewController returns Noop on platforms without media-key injection.
func NewController() Controller {
	return Noop{}
}
