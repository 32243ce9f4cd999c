package engine

import (
	"strconv"

	"github.com/RuiFG/streaming-trigger/window"
)

// Timing places a pane relative to the watermark passing the end of its window.
type Timing int

const (
	Early Timing = iota
	OnTime
	Late
)

func (t Timing) String() string {
	switch t {
	case Early:
		return "early"
	case OnTime:
		return "on_time"
	case Late:
		return "late"
	default:
		return "timing(" + strconv.Itoa(int(t)) + ")"
	}
}

// PaneFiring is one pane emitted for a key and window.
type PaneFiring struct {
	Key    string
	Window window.Window
	// IsLast is set on the final pane of the window.
	IsLast bool
	Timing Timing
	// Index counts the panes of the window, from 0.
	Index int64
	// Elements is the number of elements since the previous pane.
	Elements int64
	// Forced marks the flush at window expiry, emitted without the trigger firing.
	Forced bool
}

type Collector interface {
	EmitPane(pane PaneFiring)
}

type CollectorFn func(pane PaneFiring)

func (fn CollectorFn) EmitPane(pane PaneFiring) {
	fn(pane)
}

type discard struct{}

func (discard) EmitPane(PaneFiring) {}
