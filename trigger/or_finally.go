package trigger

import (
	"fmt"

	"github.com/RuiFG/streaming-trigger/watermark"
	"github.com/RuiFG/streaming-trigger/window"
)

// OrFinallyTrigger fires like its main trigger until the until trigger fires,
// which finishes it regardless of the main trigger.
type OrFinallyTrigger struct {
	main  Trigger
	until Trigger
}

func OrFinally(main, until Trigger) *OrFinallyTrigger {
	if main == nil || until == nil {
		panic(fmt.Errorf("or finally: nil sub-trigger"))
	}
	return &OrFinallyTrigger{main: main, until: until}
}

func (t *OrFinallyTrigger) Main() Trigger {
	return t.main
}

func (t *OrFinallyTrigger) Until() Trigger {
	return t.until
}

func (t *OrFinallyTrigger) OnElement(c *Context) {
	if c.Finished() {
		return
	}
	t.main.OnElement(c.child(0))
	t.until.OnElement(c.child(1))
}

func (t *OrFinallyTrigger) ShouldFire(c *Context) bool {
	if c.Finished() {
		return false
	}
	return t.main.ShouldFire(c.child(0)) || t.until.ShouldFire(c.child(1))
}

func (t *OrFinallyTrigger) OnFire(c *Context) {
	main, until := c.child(0), c.child(1)
	if t.until.ShouldFire(until) {
		t.until.OnFire(until)
		t.main.reset(main)
		c.setFinished(true)
		return
	}
	t.main.OnFire(main)
	if main.Finished() {
		c.setFinished(true)
	}
}

func (t *OrFinallyTrigger) WatermarkThatGuaranteesFiring(w window.Window) int64 {
	return watermark.Max(t.main.WatermarkThatGuaranteesFiring(w), t.until.WatermarkThatGuaranteesFiring(w))
}

func (t *OrFinallyTrigger) ContinuationTrigger() Trigger {
	main, until := t.main.ContinuationTrigger(), t.until.ContinuationTrigger()
	if main == t.main && until == t.until {
		return t
	}
	return &OrFinallyTrigger{main: main, until: until}
}

func (t *OrFinallyTrigger) Equal(o Trigger) bool {
	other, ok := o.(*OrFinallyTrigger)
	return ok && other.main.Equal(t.main) && other.until.Equal(t.until)
}

func (t *OrFinallyTrigger) String() string {
	return t.main.String() + ".OrFinally(" + t.until.String() + ")"
}

func (t *OrFinallyTrigger) reset(c *Context) {
	resetAll(t.subTriggers(), c)
}

func (t *OrFinallyTrigger) onMerge(c *MergeContext) {
	main, until := c.child(0), c.child(1)
	t.main.onMerge(main)
	t.until.onMerge(until)
	if main.Finished() || until.Finished() {
		c.setFinished(true)
	}
}

func (t *OrFinallyTrigger) subTriggers() []Trigger {
	return []Trigger{t.main, t.until}
}
