package window

import (
	"fmt"

	"github.com/RuiFG/streaming-trigger/watermark"
)

// InvalidWindowError is returned when a window is built from a malformed interval.
type InvalidWindowError struct {
	Start int64
	End   int64
}

func (e *InvalidWindowError) Error() string {
	return fmt.Sprintf("invalid window [%d, %d): start must be before end", e.Start, e.End)
}

// Window is the right-open interval [start, end) of event time.
type Window struct {
	start int64
	end   int64
}

// New builds the window [start, end).
func New(start, end int64) (Window, error) {
	if start >= end {
		return Window{}, &InvalidWindowError{Start: start, End: end}
	}
	return Window{start: start, end: end}, nil
}

// Must is like New but panics on a malformed interval.
func Must(start, end int64) Window {
	w, err := New(start, end)
	if err != nil {
		panic(err)
	}
	return w
}

// Global is the window covering all of event time, used for non-windowed aggregation.
func Global() Window {
	return Window{start: watermark.MinTimestamp, end: watermark.EndOfGlobalWindow + 1}
}

func (w Window) Start() int64 {
	return w.start
}

func (w Window) End() int64 {
	return w.end
}

// MaxTimestamp is the last timestamp that belongs to the window.
func (w Window) MaxTimestamp() int64 {
	return w.end - 1
}

func (w Window) IsGlobal() bool {
	return w == Global()
}

// IsZero reports whether w is the zero value, which is never a valid window.
func (w Window) IsZero() bool {
	return w.start == 0 && w.end == 0
}

func (w Window) Equal(o Window) bool {
	return w.start == o.start && w.end == o.end
}

// Compare orders windows by start, then by end.
func (w Window) Compare(o Window) int {
	switch {
	case w.start < o.start:
		return -1
	case w.start > o.start:
		return 1
	case w.end < o.end:
		return -1
	case w.end > o.end:
		return 1
	default:
		return 0
	}
}

func (w Window) Less(o Window) bool {
	return w.Compare(o) < 0
}

// Contains reports whether timestamp falls into the window.
func (w Window) Contains(timestamp int64) bool {
	return timestamp >= w.start && timestamp < w.end
}

// Overlaps reports whether the two windows share at least one timestamp.
func (w Window) Overlaps(o Window) bool {
	return w.start < o.end && o.start < w.end
}

// Span returns the smallest window covering both w and o.
func (w Window) Span(o Window) Window {
	return Window{start: watermark.Min(w.start, o.start), end: watermark.Max(w.end, o.end)}
}

func (w Window) String() string {
	if w.IsGlobal() {
		return "[*]"
	}
	return fmt.Sprintf("[%s, %s)", watermark.Format(w.start), watermark.Format(w.end))
}
