package watermark

// Combined tracks one watermark per input and exposes their minimum over the
// inputs that are not idle. Inputs are numbered from 1 and start idle until
// they report. The combined value only moves forward.
type Combined struct {
	current    int64
	timestamps []int64
	idle       []bool
}

func NewCombined(inputs int) *Combined {
	c := &Combined{
		current:    MinTimestamp,
		timestamps: make([]int64, inputs),
		idle:       make([]bool, inputs),
	}
	for i := range c.idle {
		c.timestamps[i], c.idle[i] = MaxTimestamp, true
	}
	return c
}

func (c *Combined) Current() int64 {
	return c.current
}

func (c *Combined) Inputs() int {
	return len(c.timestamps)
}

// Idle reports whether no input currently holds the watermark.
func (c *Combined) Idle() bool {
	for _, idle := range c.idle {
		if !idle {
			return false
		}
	}
	return true
}

// Update records timestamp for input and returns the combined watermark and
// whether it moved.
func (c *Combined) Update(timestamp int64, input int) (int64, bool) {
	c.timestamps[input-1], c.idle[input-1] = Normalize(timestamp), false
	return c.advance()
}

// MarkIdle changes the idleness of input. An idle input stops holding the
// combined watermark back; its last timestamp is kept.
func (c *Combined) MarkIdle(idle bool, input int) (int64, bool) {
	c.idle[input-1] = idle
	return c.advance()
}

func (c *Combined) advance() (int64, bool) {
	minimum, held := MaxTimestamp, false
	for i, timestamp := range c.timestamps {
		if !c.idle[i] {
			minimum, held = Min(minimum, timestamp), true
		}
	}
	if !held || minimum <= c.current {
		return c.current, false
	}
	c.current = minimum
	return c.current, true
}
