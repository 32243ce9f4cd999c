// Package trigger describes when a window emits a pane.
//
// A Trigger is an immutable description: it never holds mutable state, so one
// value is shared by every key and window it governs. The execution state of a
// trigger tree for one key and window lives in a State, addressed by the path
// of each node in the tree ("t" for the root, "t.0" for its first child, ...).
// The execution engine builds a Context over that State and drives the tree
// through OnElement, ShouldFire and OnFire.
//
// The set of variants is closed: Trigger has unexported methods, so only this
// package can implement it.
package trigger

import (
	"strconv"
	"strings"

	"github.com/RuiFG/streaming-trigger/window"
)

// RootPath addresses the root of a trigger tree.
const RootPath = "t"

// Trigger is a firing policy.
type Trigger interface {
	// OnElement records an element arrival. It never decides to fire.
	OnElement(c *Context)
	// ShouldFire reports whether the trigger is ready. It must not mutate state.
	ShouldFire(c *Context) bool
	// OnFire commits a firing; called only after ShouldFire returned true.
	OnFire(c *Context)
	// WatermarkThatGuaranteesFiring is the watermark at which the trigger has
	// fired if it ever fires from the watermark alone. watermark.MaxTimestamp
	// means there is no such guarantee.
	WatermarkThatGuaranteesFiring(w window.Window) int64
	// ContinuationTrigger is the trigger governing a window produced by a merge.
	ContinuationTrigger() Trigger
	// Equal reports structural equality.
	Equal(o Trigger) bool
	String() string

	reset(c *Context)
	onMerge(c *MergeContext)
	subTriggers() []Trigger
}

// TimeDomain selects the clock a timer follows.
type TimeDomain int

const (
	EventTime TimeDomain = iota
	ProcessingTime
)

func (d TimeDomain) String() string {
	switch d {
	case EventTime:
		return "event-time"
	case ProcessingTime:
		return "processing-time"
	default:
		return "unknown-time(" + strconv.Itoa(int(d)) + ")"
	}
}

// Timers receives the timer requests of a trigger tree. Timers are identified
// by the path of the requesting node; setting a timer replaces the previous
// one with the same id.
type Timers interface {
	SetTimer(id string, domain TimeDomain, timestamp int64)
	DeleteTimer(id string, domain TimeDomain)
}

// Paths lists the state paths used by t, root first.
func Paths(t Trigger) []string {
	var paths []string
	var walk func(t Trigger, path string)
	walk = func(t Trigger, path string) {
		paths = append(paths, path)
		for i, sub := range t.subTriggers() {
			walk(sub, childPath(path, i))
		}
	}
	walk(t, RootPath)
	return paths
}

func childPath(path string, i int) string {
	return path + "." + strconv.Itoa(i)
}

func equalAll(a, b []Trigger) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}

func continuations(triggers []Trigger) []Trigger {
	result := make([]Trigger, len(triggers))
	for i, t := range triggers {
		result[i] = t.ContinuationTrigger()
	}
	return result
}

func join(name string, triggers []Trigger) string {
	parts := make([]string, len(triggers))
	for i, t := range triggers {
		parts[i] = t.String()
	}
	return name + "(" + strings.Join(parts, ", ") + ")"
}

func resetAll(triggers []Trigger, c *Context) {
	for i, sub := range triggers {
		sub.reset(c.child(i))
	}
	c.clear()
}

func allFinished(triggers []Trigger, c *Context) bool {
	for i := range triggers {
		if !c.child(i).Finished() {
			return false
		}
	}
	return true
}
