package window

import (
	"fmt"
	"sort"
)

// MergeEvent records that Sources were merged into Result.
// Sources are sorted and Result spans all of them.
type MergeEvent struct {
	Result  Window
	Sources []Window
}

func (e MergeEvent) String() string {
	return fmt.Sprintf("merge%v->%v", e.Sources, e.Result)
}

// MergeOverlapping groups overlapping windows and returns one MergeEvent per
// group of two or more distinct windows. The input is not modified.
func MergeOverlapping(windows []Window) []MergeEvent {
	if len(windows) < 2 {
		return nil
	}
	sorted := make([]Window, len(windows))
	copy(sorted, windows)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Less(sorted[j]) })

	var (
		events  []MergeEvent
		current = MergeEvent{Result: sorted[0], Sources: []Window{sorted[0]}}
	)
	flush := func() {
		if len(current.Sources) > 1 {
			events = append(events, current)
		}
	}
	for _, w := range sorted[1:] {
		if w.Equal(current.Sources[len(current.Sources)-1]) {
			continue
		}
		if current.Result.Overlaps(w) {
			current.Result = current.Result.Span(w)
			current.Sources = append(current.Sources, w)
			continue
		}
		flush()
		current = MergeEvent{Result: w, Sources: []Window{w}}
	}
	flush()
	return events
}
