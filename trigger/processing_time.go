package trigger

import (
	"fmt"
	"time"

	"github.com/RuiFG/streaming-trigger/watermark"
	"github.com/RuiFG/streaming-trigger/window"
)

// AfterProcessingTimeTrigger fires once, delay after the first element seen by
// the window, measured on the processing-time clock.
type AfterProcessingTimeTrigger struct {
	delay time.Duration
}

func AfterProcessingTime(delay time.Duration) *AfterProcessingTimeTrigger {
	if delay < time.Millisecond {
		panic(fmt.Errorf("after processing time: delay %s is shorter than 1ms", delay))
	}
	return &AfterProcessingTimeTrigger{delay: delay}
}

func (t *AfterProcessingTimeTrigger) Delay() time.Duration {
	return t.delay
}

func (t *AfterProcessingTimeTrigger) OnElement(c *Context) {
	cell := c.cell()
	if cell.Finished || cell.TimerSet {
		return
	}
	cell.TimerSet = true
	cell.FiringTime = watermark.Add(c.processingTime, t.delay)
	c.setCell(cell)
	c.setTimer(ProcessingTime, cell.FiringTime)
}

func (t *AfterProcessingTimeTrigger) ShouldFire(c *Context) bool {
	cell := c.cell()
	return !cell.Finished && cell.TimerSet && cell.Expired
}

func (t *AfterProcessingTimeTrigger) OnFire(c *Context) {
	c.deleteTimer(ProcessingTime)
	c.setCell(Cell{Finished: true})
}

// WatermarkThatGuaranteesFiring is unbounded: processing time never pins the watermark.
func (t *AfterProcessingTimeTrigger) WatermarkThatGuaranteesFiring(window.Window) int64 {
	return watermark.MaxTimestamp
}

func (t *AfterProcessingTimeTrigger) ContinuationTrigger() Trigger {
	return t
}

func (t *AfterProcessingTimeTrigger) Equal(o Trigger) bool {
	other, ok := o.(*AfterProcessingTimeTrigger)
	return ok && other.delay == t.delay
}

func (t *AfterProcessingTimeTrigger) String() string {
	return "AfterProcessingTime(" + t.delay.String() + ")"
}

func (t *AfterProcessingTimeTrigger) reset(c *Context) {
	if c.cell().TimerSet {
		c.deleteTimer(ProcessingTime)
	}
	c.clear()
}

func (t *AfterProcessingTimeTrigger) onMerge(c *MergeContext) {
	if c.finishedInAny() {
		c.setCell(Cell{Finished: true})
		return
	}
	var merged Cell
	for _, cell := range c.sourceCells() {
		if !cell.TimerSet {
			continue
		}
		if !merged.TimerSet || cell.FiringTime < merged.FiringTime {
			merged.FiringTime = cell.FiringTime
		}
		merged.TimerSet = true
		merged.Expired = merged.Expired || cell.Expired
	}
	c.setCell(merged)
	if merged.TimerSet && !merged.Expired {
		c.setTimer(ProcessingTime, merged.FiringTime)
	}
}

func (t *AfterProcessingTimeTrigger) subTriggers() []Trigger {
	return nil
}
