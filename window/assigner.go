package window

import (
	"time"

	"github.com/pkg/errors"
)

// Assigner maps an element timestamp to the windows it belongs to.
type Assigner interface {
	AssignWindows(timestamp int64) []Window
	// IsMerging reports whether assigned windows may later be merged, as sessions are.
	IsMerging() bool
}

func getWindowStartWithOffset(timestamp int64, offset int64, windowSize int64) int64 {
	remainder := (timestamp - offset) % windowSize
	// handle both positive and negative cases
	if remainder < 0 {
		return timestamp - (remainder + windowSize)
	} else {
		return timestamp - remainder
	}
}

type tumbling struct {
	size         int64
	globalOffset int64
}

func (t *tumbling) AssignWindows(timestamp int64) []Window {
	start := getWindowStartWithOffset(timestamp, t.globalOffset%t.size, t.size)
	return []Window{{start: start, end: start + t.size}}
}

func (t *tumbling) IsMerging() bool {
	return false
}

// Tumbling assigns every element to exactly one fixed size window.
func Tumbling(size time.Duration, offset time.Duration) (Assigner, error) {
	if size < time.Millisecond {
		return nil, errors.Errorf("window size should be at least a millisecond, got %v", size)
	}
	if offset < 0 {
		return nil, errors.Errorf("window offset can't be negative, got %v", offset)
	}
	return &tumbling{
		size:         int64(size / time.Millisecond),
		globalOffset: int64(offset / time.Millisecond),
	}, nil
}

type sliding struct {
	size         int64
	period       int64
	globalOffset int64
}

func (s *sliding) AssignWindows(timestamp int64) []Window {
	var windows []Window
	lastStart := getWindowStartWithOffset(timestamp, s.globalOffset%s.period, s.period)
	for start := lastStart; start > timestamp-s.size; start -= s.period {
		windows = append(windows, Window{start: start, end: start + s.size})
	}
	return windows
}

func (s *sliding) IsMerging() bool {
	return false
}

// Sliding assigns every element to size/period overlapping windows.
func Sliding(size, period, offset time.Duration) (Assigner, error) {
	if size < time.Millisecond || period < time.Millisecond {
		return nil, errors.Errorf("window size and period should be at least a millisecond, got %v and %v", size, period)
	}
	if offset < 0 {
		return nil, errors.Errorf("window offset can't be negative, got %v", offset)
	}
	return &sliding{
		size:         int64(size / time.Millisecond),
		period:       int64(period / time.Millisecond),
		globalOffset: int64(offset / time.Millisecond),
	}, nil
}

type sessions struct {
	gap int64
}

func (s *sessions) AssignWindows(timestamp int64) []Window {
	return []Window{{start: timestamp, end: timestamp + s.gap}}
}

func (s *sessions) IsMerging() bool {
	return true
}

// Sessions assigns every element to a proto-session [timestamp, timestamp+gap).
// Overlapping proto-sessions of the same key are merged.
func Sessions(gap time.Duration) (Assigner, error) {
	if gap < time.Millisecond {
		return nil, errors.Errorf("session gap should be at least a millisecond, got %v", gap)
	}
	return &sessions{gap: int64(gap / time.Millisecond)}, nil
}

type global struct{}

func (global) AssignWindows(int64) []Window {
	return []Window{Global()}
}

func (global) IsMerging() bool {
	return false
}

// GlobalAssigner assigns every element to the global window.
func GlobalAssigner() Assigner {
	return global{}
}
