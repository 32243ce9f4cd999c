package watermark

// Tracker holds the watermark of one execution. The value never decreases.
type Tracker struct {
	current int64
}

func NewTracker() *Tracker {
	return &Tracker{current: MinTimestamp}
}

// Advance moves the watermark forward to timestamp. Regressions are ignored
// and reported by returning false.
func (t *Tracker) Advance(timestamp int64) bool {
	timestamp = Normalize(timestamp)
	if timestamp <= t.current {
		return false
	}
	t.current = timestamp
	return true
}

func (t *Tracker) Current() int64 {
	return t.current
}

// Done reports whether the watermark reached the end of time.
func (t *Tracker) Done() bool {
	return t.current >= MaxTimestamp
}
