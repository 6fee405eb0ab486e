//go:build windows

package media

import (
	"log/slog"
	"syscall"
)

// Wrapper for a user32 function lxn/win does not expose.
var (
	user32         = syscall.NewLazyDLL("user32.dll")
	procKeybdEvent = user32.NewProc("keybd_event")
)

const (
	vkMediaPlayPause  = 0xB3
	keyeventfExtended = 0x0001
	keyeventfKeyUp    = 0x0002
)

// keyController drives playback through the VK_MEDIA_PLAY_PAUSE key. Windows
// offers no portable way to ask whether anything is playing, so Pause always
// sends the toggle and reports that a resume is owed.
type keyController struct{}

// NewController returns the Windows media-key controller.
func NewController() Controller {
	return keyController{}
}

func (keyController) Pause() bool {
	sendPlayPause()
	return true
}

func (keyController) Resume() {
	sendPlayPause()
}

func sendPlayPause() {
	r1, _, err := procKeybdEvent.Call(vkMediaPlayPause, 0, keyeventfExtended, 0)
	procKeybdEvent.Call(vkMediaPlayPause, 0, keyeventfExtended|keyeventfKeyUp, 0)
	_ = r1
	if err != nil && err != syscall.Errno(0) {
		slog.Debug("media key injection failed", "err", err)
	}
}
