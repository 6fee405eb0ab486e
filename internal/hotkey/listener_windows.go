//go:build windows

package hotkey

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"syscall"
	"unsafe"

	"github.com/lxn/win"
	"golang.org/x/sys/windows"
)

// Wrappers for user32 functions lxn/win does not expose.
var (
	user32                  = syscall.NewLazyDLL("user32.dll")
	procSetWindowsHookExW   = user32.NewProc("SetWindowsHookExW")
	procUnhookWindowsHookEx = user32.NewProc("UnhookWindowsHookEx")
	procCallNextHookEx      = user32.NewProc("CallNextHookEx")
	procPostThreadMessageW  = user32.NewProc("PostThreadMessageW")
)

const (
	whKeyboardLL  = 13
	llkhfInjected = 0x10
	llkhfExtended = 0x01
)

// kbdllHookStruct mirrors KBDLLHOOKSTRUCT.
type kbdllHookStruct struct {
	VkCode      uint32
	ScanCode    uint32
	Flags       uint32
	Time        uint32
	DwExtraInfo uintptr
}

// vkNames maps virtual-key codes to the raw key names the gate matches on.
// Only keys plausible as push-to-talk triggers are listed; everything else
// passes through the hook untouched.
var vkNames = map[uint32]string{
	win.VK_LMENU:    "alt_l",
	win.VK_RMENU:    "alt_r",
	win.VK_LCONTROL: "ctrl_l",
	win.VK_RCONTROL: "ctrl_r",
	win.VK_LSHIFT:   "shift_l",
	win.VK_RSHIFT:   "shift_r",
	win.VK_CAPITAL:  "caps_lock",
	win.VK_SCROLL:   "scroll_lock",
	win.VK_PAUSE:    "pause",
	win.VK_F13:      "f13",
	win.VK_F14:      "f14",
	win.VK_F15:      "f15",
	win.VK_F16:      "f16",
	win.VK_F17:      "f17",
	win.VK_F18:      "f18",
	win.VK_F19:      "f19",
	win.VK_F20:      "f20",
	win.VK_F21:      "f21",
	win.VK_F22:      "f22",
	win.VK_F23:      "f23",
	win.VK_F24:      "f24",
}

// keyName resolves a hook event to a raw key name. Some keyboard drivers
// deliver AltGr as an extended right Alt, which is why the gate supports
// alias sets in the first place.
func keyName(vk, flags uint32) (string, bool) {
	name, ok := vkNames[vk]
	if !ok {
		return "", false
	}
	if vk == win.VK_RMENU && flags&llkhfExtended == 0 {
		return "alt_gr", true
	}
	return name, true
}

// hookListener installs a WH_KEYBOARD_LL hook and pumps the thread message
// loop. The hook callback must run on the thread that installed it, so Run
// locks its goroutine to one OS thread for its whole lifetime.
type hookListener struct {
	handler Handler
}

// NewListener returns the Windows low-level keyboard listener.
func NewListener(h Handler) Listener {
	return &hookListener{handler: h}
}

// Run installs the hook and blocks pumping messages until ctx is cancelled.
// The callback never blocks: gate callbacks only flip state and hand off to
// the pipeline's run channel.
func (l *hookListener) Run(ctx context.Context) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	threadID := windows.GetCurrentThreadId()

	proc := syscall.NewCallback(func(nCode, wParam, lParam uintptr) uintptr {
		if int32(nCode) < 0 {
			ret, _, _ := procCallNextHookEx.Call(0, nCode, wParam, lParam)
			return ret
		}

		k := (*kbdllHookStruct)(unsafe.Pointer(lParam))

		// Injected events come from synthetic input (including our own
		// inserter); reacting to them would loop.
		if k.Flags&llkhfInjected == 0 {
			if name, ok := keyName(k.VkCode, k.Flags); ok {
				switch uint32(wParam) {
				case win.WM_KEYDOWN, win.WM_SYSKEYDOWN:
					l.handler.KeyDown(name)
				case win.WM_KEYUP, win.WM_SYSKEYUP:
					l.handler.KeyUp(name)
				}
			}
		}

		ret, _, _ := procCallNextHookEx.Call(0, nCode, wParam, lParam)
		return ret
	})

	hook, _, _ := procSetWindowsHookExW.Call(whKeyboardLL, proc, 0, 0)
	if hook == 0 {
		return fmt.Errorf("hotkey: SetWindowsHookExW failed")
	}
	defer procUnhookWindowsHookEx.Call(hook)

	slog.Debug("keyboard hook installed")

	// Wake the message loop with WM_QUIT when the context ends.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			procPostThreadMessageW.Call(uintptr(threadID), win.WM_QUIT, 0, 0)
		case <-stop:
		}
	}()

	msg := new(win.MSG)
	for {
		switch win.GetMessage(msg, 0, 0, 0) {
		case 0: // WM_QUIT
			return ctx.Err()
		case -1:
			return fmt.Errorf("hotkey: GetMessage failed")
		}
		win.TranslateMessage(msg)
		win.DispatchMessage(msg)
	}
}
