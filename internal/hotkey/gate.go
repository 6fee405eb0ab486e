// Package hotkey turns raw OS key events into debounced push-to-talk
// press/release transitions.
//
// The Gate sits between an OS-level listener (low-level keyboard hook on
// Windows) and the pipeline coordinator. The listener thread calls KeyDown
// and KeyUp for every key on the system; the gate ignores everything except
// the configured trigger keys, swallows auto-repeat, and fires the press and
// release callbacks exactly once per physical hold.
package hotkey

import (
	"log/slog"
	"sync"
)

// Gate is the push-to-talk state machine. It tracks {enabled, pressed} under
// a single mutex and never invokes callbacks while holding it.
type Gate struct {
	mu       sync.Mutex
	triggers map[string]struct{}
	enabled  bool
	pressed  bool

	onPress   func()
	onRelease func()
}

// NewGate creates an enabled gate reacting to the given raw key names.
// Pass the expanded alias set, not the logical key; see [ExpandAliases].
// Either callback may be nil.
func NewGate(triggerKeys []string, onPress, onRelease func()) *Gate {
	g := &Gate{
		triggers:  make(map[string]struct{}, len(triggerKeys)),
		enabled:   true,
		onPress:   onPress,
		onRelease: onRelease,
	}
	for _, k := range triggerKeys {
		g.triggers[k] = struct{}{}
	}
	return g
}

// ExpandAliases resolves a logical trigger key to the raw key names the OS
// may report for it. A key with no alias entry matches only itself.
func ExpandAliases(trigger string, aliases map[string][]string) []string {
	if raw, ok := aliases[trigger]; ok && len(raw) > 0 {
		return raw
	}
	return []string{trigger}
}

// KeyDown feeds a raw key-down event into the gate. Non-trigger keys,
// disabled state, and auto-repeat (already pressed) are ignored.
func (g *Gate) KeyDown(name string) {
	g.mu.Lock()
	if _, ok := g.triggers[name]; !ok {
		g.mu.Unlock()
		return
	}
	if !g.enabled || g.pressed {
		g.mu.Unlock()
		return
	}
	g.pressed = true
	cb := g.onPress
	g.mu.Unlock()

	invoke(cb, "press")
}

// KeyUp feeds a raw key-up event into the gate. Releases without a matching
// press (e.g. after SetEnabled(false) cleared the state) are ignored.
func (g *Gate) KeyUp(name string) {
	g.mu.Lock()
	if _, ok := g.triggers[name]; !ok {
		g.mu.Unlock()
		return
	}
	if !g.pressed {
		g.mu.Unlock()
		return
	}
	g.pressed = false
	cb := g.onRelease
	g.mu.Unlock()

	invoke(cb, "release")
}

// SetEnabled enables or disables the gate. Disabling also clears the pressed
// state so a key released while disabled does not fire a stale release later.
func (g *Gate) SetEnabled(enabled bool) {
	g.mu.Lock()
	g.enabled = enabled
	if !enabled {
		g.pressed = false
	}
	g.mu.Unlock()
}

// Enabled reports whether the gate currently reacts to trigger keys.
func (g *Gate) Enabled() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.enabled
}

// Pressed reports whether a trigger key is currently held.
func (g *Gate) Pressed() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.pressed
}

// invoke runs a gate callback with panic recovery. The callbacks execute on
// the OS hook thread; a panic there would take the whole hook down.
func invoke(cb func(), kind string) {
	if cb == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			slog.Error("hotkey callback panicked", "kind", kind, "panic", r)
		}
	}()
	cb()
}
