package trigger

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/pkg/errors"

	"github.com/RuiFG/streaming-trigger/window"
)

// IncompatibleTriggerMergeError is returned when windows governed by
// structurally different continuation triggers are merged.
type IncompatibleTriggerMergeError struct {
	Window   window.Window
	Triggers []Trigger
}

func (e *IncompatibleTriggerMergeError) Error() string {
	names := make([]string, len(e.Triggers))
	for i, t := range e.Triggers {
		names[i] = t.String()
	}
	return fmt.Sprintf("can't merge windows into %s: incompatible triggers [%s]", e.Window, strings.Join(names, ", "))
}

// MergeInput is one window taking part in a merge.
type MergeInput struct {
	Window window.Window
	// Trigger governs Window: the original trigger, or a continuation when
	// Window itself came out of an earlier merge.
	Trigger Trigger
	State   *State
}

// Resolution is the trigger and execution state of a merged window.
type Resolution struct {
	Window  window.Window
	Trigger Trigger
	State   *State
}

// Resolve merges the trigger states of inputs into the state of merged.
// Timer requests for the merged window go to timers. No firing decision is made.
func Resolve(inputs []MergeInput, merged window.Window, wm, now int64, timers Timers) (Resolution, error) {
	if len(inputs) == 0 {
		return Resolution{}, errors.Errorf("can't merge windows into %s: no input", merged)
	}
	continuation := inputs[0].Trigger.ContinuationTrigger()
	triggers := make([]Trigger, len(inputs))
	compatible := true
	for i, input := range inputs {
		triggers[i] = input.Trigger.ContinuationTrigger()
		if !triggers[i].Equal(continuation) {
			compatible = false
		}
	}
	if !compatible {
		return Resolution{}, &IncompatibleTriggerMergeError{Window: merged, Triggers: triggers}
	}

	sources := make([]*State, len(inputs))
	for i, input := range inputs {
		// state recorded under another tree shape does not line up path by path.
		if input.State == nil || !sameShape(input.Trigger, continuation) {
			sources[i] = NewState()
		} else {
			sources[i] = input.State
		}
	}
	state := NewState()
	continuation.onMerge(&MergeContext{
		Context: NewContext(merged, wm, now, state, timers),
		sources: sources,
	})
	return Resolution{Window: merged, Trigger: continuation, State: state}, nil
}

func sameShape(a, b Trigger) bool {
	if reflect.TypeOf(a) != reflect.TypeOf(b) {
		return false
	}
	sa, sb := a.subTriggers(), b.subTriggers()
	if len(sa) != len(sb) {
		return false
	}
	for i := range sa {
		if !sameShape(sa[i], sb[i]) {
			return false
		}
	}
	return true
}
