package trigger

import (
	"fmt"

	"github.com/RuiFG/streaming-trigger/window"
)

// RepeatedlyTrigger fires every time its sub-trigger is ready and resets the
// sub-trigger after each firing. It never finishes.
type RepeatedlyTrigger struct {
	repeated Trigger
}

func Repeatedly(repeated Trigger) *RepeatedlyTrigger {
	if repeated == nil {
		panic(fmt.Errorf("repeatedly: nil sub-trigger"))
	}
	return &RepeatedlyTrigger{repeated: repeated}
}

func (t *RepeatedlyTrigger) Repeated() Trigger {
	return t.repeated
}

func (t *RepeatedlyTrigger) OnElement(c *Context) {
	t.repeated.OnElement(c.child(0))
}

func (t *RepeatedlyTrigger) ShouldFire(c *Context) bool {
	return t.repeated.ShouldFire(c.child(0))
}

func (t *RepeatedlyTrigger) OnFire(c *Context) {
	sub := c.child(0)
	t.repeated.OnFire(sub)
	t.repeated.reset(sub)
}

func (t *RepeatedlyTrigger) WatermarkThatGuaranteesFiring(w window.Window) int64 {
	return t.repeated.WatermarkThatGuaranteesFiring(w)
}

func (t *RepeatedlyTrigger) ContinuationTrigger() Trigger {
	continuation := t.repeated.ContinuationTrigger()
	if continuation == t.repeated {
		return t
	}
	return &RepeatedlyTrigger{repeated: continuation}
}

func (t *RepeatedlyTrigger) Equal(o Trigger) bool {
	other, ok := o.(*RepeatedlyTrigger)
	return ok && other.repeated.Equal(t.repeated)
}

func (t *RepeatedlyTrigger) String() string {
	return "Repeatedly(" + t.repeated.String() + ")"
}

func (t *RepeatedlyTrigger) reset(c *Context) {
	resetAll(t.subTriggers(), c)
}

func (t *RepeatedlyTrigger) onMerge(c *MergeContext) {
	t.repeated.onMerge(c.child(0))
}

func (t *RepeatedlyTrigger) subTriggers() []Trigger {
	return []Trigger{t.repeated}
}
