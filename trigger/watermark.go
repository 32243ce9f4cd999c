package trigger

import (
	"fmt"
	"time"

	"github.com/RuiFG/streaming-trigger/watermark"
	"github.com/RuiFG/streaming-trigger/window"
)

// Anchor is the window boundary a Deadline is measured from.
type Anchor int

const (
	// EndOfWindow is the exclusive end of the window.
	EndOfWindow Anchor = iota
	// MaxTimestampOfWindow is the largest timestamp inside the window.
	MaxTimestampOfWindow
	// StartOfWindow is the inclusive start of the window.
	StartOfWindow
)

func (a Anchor) String() string {
	switch a {
	case EndOfWindow:
		return "end"
	case MaxTimestampOfWindow:
		return "max"
	case StartOfWindow:
		return "start"
	default:
		return fmt.Sprintf("anchor(%d)", int(a))
	}
}

// Deadline maps a window to an event-time instant.
type Deadline struct {
	Anchor Anchor
	Offset time.Duration
}

// At returns the deadline instant of w, saturating at the timestamp bounds.
func (d Deadline) At(w window.Window) int64 {
	var base int64
	switch d.Anchor {
	case MaxTimestampOfWindow:
		base = w.MaxTimestamp()
	case StartOfWindow:
		base = w.Start()
	default:
		base = w.End()
	}
	return watermark.Add(base, d.Offset)
}

func (d Deadline) String() string {
	if d.Offset == 0 {
		return d.Anchor.String()
	}
	if d.Offset > 0 {
		return d.Anchor.String() + "+" + d.Offset.String()
	}
	return d.Anchor.String() + d.Offset.String()
}

// AfterWatermarkTrigger fires once when the watermark reaches its deadline.
type AfterWatermarkTrigger struct {
	deadline Deadline
}

func AfterWatermark(deadline Deadline) *AfterWatermarkTrigger {
	if deadline.Anchor < EndOfWindow || deadline.Anchor > StartOfWindow {
		panic(fmt.Errorf("after watermark: unknown anchor %d", deadline.Anchor))
	}
	return &AfterWatermarkTrigger{deadline: deadline}
}

// PastEndOfWindow fires when the watermark passes the end of the window.
func PastEndOfWindow() *AfterWatermarkTrigger {
	return AfterWatermark(Deadline{Anchor: EndOfWindow})
}

func (t *AfterWatermarkTrigger) Deadline() Deadline {
	return t.deadline
}

func (t *AfterWatermarkTrigger) OnElement(c *Context) {
	if c.Finished() {
		return
	}
	c.setTimer(EventTime, t.deadline.At(c.window))
}

func (t *AfterWatermarkTrigger) ShouldFire(c *Context) bool {
	return !c.Finished() && c.watermark >= t.deadline.At(c.window)
}

func (t *AfterWatermarkTrigger) OnFire(c *Context) {
	c.deleteTimer(EventTime)
	c.setFinished(true)
}

func (t *AfterWatermarkTrigger) WatermarkThatGuaranteesFiring(w window.Window) int64 {
	return t.deadline.At(w)
}

func (t *AfterWatermarkTrigger) ContinuationTrigger() Trigger {
	return t
}

func (t *AfterWatermarkTrigger) Equal(o Trigger) bool {
	other, ok := o.(*AfterWatermarkTrigger)
	return ok && other.deadline == t.deadline
}

func (t *AfterWatermarkTrigger) String() string {
	return "AfterWatermark(" + t.deadline.String() + ")"
}

func (t *AfterWatermarkTrigger) reset(c *Context) {
	c.deleteTimer(EventTime)
	c.clear()
}

func (t *AfterWatermarkTrigger) onMerge(c *MergeContext) {
	deadline := t.deadline.At(c.window)
	if c.finishedInAll() && c.watermark >= deadline {
		c.setFinished(true)
		return
	}
	c.clear()
	c.setTimer(EventTime, deadline)
}

func (t *AfterWatermarkTrigger) subTriggers() []Trigger {
	return nil
}
