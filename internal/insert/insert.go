// Package insert types recognised text into whatever control has input
// focus.
package insert

import "errors"

// ErrNoFocus is returned when no window or control accepts text input.
var ErrNoFocus = errors.New("insert: no focused input control")

// Inserter places text at the caret of the focused control. Unlike the rest
// of the pipeline this is not best-effort: a failed insert terminates the
// run so the user notices the text went nowhere.
type Inserter interface {
	Insert(text string) error
}
