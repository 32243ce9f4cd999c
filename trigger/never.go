package trigger

import (
	"github.com/RuiFG/streaming-trigger/watermark"
	"github.com/RuiFG/streaming-trigger/window"
)

// NeverTrigger never fires. Panes of its windows are only produced by the
// final flush at window expiry.
type NeverTrigger struct{}

var never = &NeverTrigger{}

func Never() *NeverTrigger {
	return never
}

func (t *NeverTrigger) OnElement(*Context) {}

func (t *NeverTrigger) ShouldFire(*Context) bool {
	return false
}

func (t *NeverTrigger) OnFire(*Context) {
	panic("trigger: Never can not fire")
}

func (t *NeverTrigger) WatermarkThatGuaranteesFiring(window.Window) int64 {
	return watermark.MaxTimestamp
}

func (t *NeverTrigger) ContinuationTrigger() Trigger {
	return t
}

func (t *NeverTrigger) Equal(o Trigger) bool {
	_, ok := o.(*NeverTrigger)
	return ok
}

func (t *NeverTrigger) String() string {
	return "Never()"
}

func (t *NeverTrigger) reset(c *Context) {
	c.clear()
}

func (t *NeverTrigger) onMerge(*MergeContext) {}

func (t *NeverTrigger) subTriggers() []Trigger {
	return nil
}
