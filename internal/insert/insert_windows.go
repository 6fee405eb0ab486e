//go:build windows

package insert

import (
	"fmt"
	"syscall"
	"unsafe"

	"github.com/lxn/win"
	"golang.org/x/sys/windows"
)

// Wrappers for user32 functions lxn/win does not expose.
var (
	user32                       = syscall.NewLazyDLL("user32.dll")
	procGetForegroundWindow      = user32.NewProc("GetForegroundWindow")
	procGetWindowThreadProcessID = user32.NewProc("GetWindowThreadProcessId")
	procAttachThreadInput        = user32.NewProc("AttachThreadInput")
	procGetFocus                 = user32.NewProc("GetFocus")
)

// EM_REPLACESEL replaces the selection (or inserts at the caret when nothing
// is selected) in standard edit and rich-edit controls.
const emReplaceSel = 0x00C2

// selInserter sends EM_REPLACESEL to the focused control of the foreground
// window. It attaches to the foreground thread's input state briefly because
// GetFocus only sees the caller's own thread otherwise.
type selInserter struct{}

// NewInserter returns the Windows caret inserter.
func NewInserter() Inserter {
	return selInserter{}
}

func (selInserter) Insert(text string) error {
	if text == "" {
		return nil
	}

	fg, _, _ := procGetForegroundWindow.Call()
	if fg == 0 {
		return ErrNoFocus
	}

	fgThread, _, _ := procGetWindowThreadProcessID.Call(fg, 0)
	self := uintptr(windows.GetCurrentThreadId())

	attached := false
	if fgThread != self {
		r, _, _ := procAttachThreadInput.Call(self, fgThread, 1)
		attached = r != 0
	}
	focus, _, _ := procGetFocus.Call()
	if attached {
		procAttachThreadInput.Call(self, fgThread, 0)
	}

	target := focus
	if target == 0 {
		// Some windows keep focus on the top-level handle.
		target = fg
	}

	buf, err := syscall.UTF16PtrFromString(text)
	if err != nil {
		return fmt.Errorf("insert: encode text: %w", err)
	}

	// wParam true makes the edit control register the change as undoable.
	win.SendMessage(win.HWND(target), emReplaceSel, 1, uintptr(unsafe.Pointer(buf)))
	return nil
}
