package engine

import (
	"fmt"

	"github.com/RuiFG/streaming-trigger/state"
	"github.com/RuiFG/streaming-trigger/watermark"
	"github.com/RuiFG/streaming-trigger/window"
)

// WindowExpiredError reports an operation on a window whose state was, or is
// due to be, garbage collected.
type WindowExpiredError struct {
	Key       string
	Window    window.Window
	Watermark int64
}

func (e *WindowExpiredError) Error() string {
	return fmt.Sprintf("window %s of key %q expired at watermark %s", e.Window, e.Key, watermark.Format(e.Watermark))
}

// CorruptStateError reports stored state that can't be decoded.
type CorruptStateError struct {
	Namespace state.Namespace
	Field     string
	Err       error
}

func (e *CorruptStateError) Error() string {
	return fmt.Sprintf("corrupt state %s of %s: %v", e.Field, e.Namespace, e.Err)
}

func (e *CorruptStateError) Unwrap() error {
	return e.Err
}
