package trigger

import (
	"fmt"
	"strconv"

	"github.com/RuiFG/streaming-trigger/watermark"
	"github.com/RuiFG/streaming-trigger/window"
)

// AfterPaneTrigger fires whenever at least count elements arrived since the
// previous firing. It never finishes on its own.
type AfterPaneTrigger struct {
	count int64
}

func AfterPane(count int64) *AfterPaneTrigger {
	if count < 1 {
		panic(fmt.Errorf("after pane: element count %d must be positive", count))
	}
	return &AfterPaneTrigger{count: count}
}

func (t *AfterPaneTrigger) Count() int64 {
	return t.count
}

func (t *AfterPaneTrigger) OnElement(c *Context) {
	cell := c.cell()
	if cell.Finished {
		return
	}
	cell.Count++
	c.setCell(cell)
}

func (t *AfterPaneTrigger) ShouldFire(c *Context) bool {
	cell := c.cell()
	return !cell.Finished && cell.Count >= t.count
}

func (t *AfterPaneTrigger) OnFire(c *Context) {
	cell := c.cell()
	cell.Count = 0
	c.setCell(cell)
}

func (t *AfterPaneTrigger) WatermarkThatGuaranteesFiring(window.Window) int64 {
	return watermark.MaxTimestamp
}

func (t *AfterPaneTrigger) ContinuationTrigger() Trigger {
	return t
}

func (t *AfterPaneTrigger) Equal(o Trigger) bool {
	other, ok := o.(*AfterPaneTrigger)
	return ok && other.count == t.count
}

func (t *AfterPaneTrigger) String() string {
	return "AfterPane(" + strconv.FormatInt(t.count, 10) + ")"
}

func (t *AfterPaneTrigger) reset(c *Context) {
	c.clear()
}

func (t *AfterPaneTrigger) onMerge(c *MergeContext) {
	var merged Cell
	for _, cell := range c.sourceCells() {
		merged.Count += cell.Count
	}
	c.setCell(merged)
}

func (t *AfterPaneTrigger) subTriggers() []Trigger {
	return nil
}
