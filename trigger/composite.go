package trigger

import (
	"fmt"

	"github.com/RuiFG/streaming-trigger/watermark"
	"github.com/RuiFG/streaming-trigger/window"
)

func checkSubTriggers(name string, min int, subs []Trigger) []Trigger {
	if len(subs) < min {
		panic(fmt.Errorf("%s: needs at least %d sub-triggers, got %d", name, min, len(subs)))
	}
	for i, sub := range subs {
		if sub == nil {
			panic(fmt.Errorf("%s: sub-trigger %d is nil", name, i))
		}
	}
	return append([]Trigger(nil), subs...)
}

// AfterFirstTrigger fires as soon as any of its sub-triggers is ready, and
// finishes once every sub-trigger has finished.
type AfterFirstTrigger struct {
	subs []Trigger
}

func AfterFirst(subs ...Trigger) *AfterFirstTrigger {
	return &AfterFirstTrigger{subs: checkSubTriggers("after first", 2, subs)}
}

func (t *AfterFirstTrigger) SubTriggers() []Trigger {
	return append([]Trigger(nil), t.subs...)
}

func (t *AfterFirstTrigger) OnElement(c *Context) {
	for i, sub := range t.subs {
		if child := c.child(i); !child.Finished() {
			sub.OnElement(child)
		}
	}
}

func (t *AfterFirstTrigger) ShouldFire(c *Context) bool {
	if c.Finished() {
		return false
	}
	for i, sub := range t.subs {
		if sub.ShouldFire(c.child(i)) {
			return true
		}
	}
	return false
}

func (t *AfterFirstTrigger) OnFire(c *Context) {
	for i, sub := range t.subs {
		if child := c.child(i); sub.ShouldFire(child) {
			sub.OnFire(child)
		}
	}
	if allFinished(t.subs, c) {
		c.setFinished(true)
	}
}

func (t *AfterFirstTrigger) WatermarkThatGuaranteesFiring(w window.Window) int64 {
	bound := watermark.MaxTimestamp
	for _, sub := range t.subs {
		bound = watermark.Min(bound, sub.WatermarkThatGuaranteesFiring(w))
	}
	return bound
}

func (t *AfterFirstTrigger) ContinuationTrigger() Trigger {
	return &AfterFirstTrigger{subs: continuations(t.subs)}
}

func (t *AfterFirstTrigger) Equal(o Trigger) bool {
	other, ok := o.(*AfterFirstTrigger)
	return ok && equalAll(t.subs, other.subs)
}

func (t *AfterFirstTrigger) String() string {
	return join("AfterFirst", t.subs)
}

func (t *AfterFirstTrigger) reset(c *Context) {
	resetAll(t.subs, c)
}

func (t *AfterFirstTrigger) onMerge(c *MergeContext) {
	mergeChildren(t.subs, c)
}

func (t *AfterFirstTrigger) subTriggers() []Trigger {
	return t.subs
}

// AfterAllTrigger fires once every unfinished sub-trigger is ready, and
// finishes once every sub-trigger has finished.
type AfterAllTrigger struct {
	subs []Trigger
}

func AfterAll(subs ...Trigger) *AfterAllTrigger {
	return &AfterAllTrigger{subs: checkSubTriggers("after all", 2, subs)}
}

func (t *AfterAllTrigger) SubTriggers() []Trigger {
	return append([]Trigger(nil), t.subs...)
}

func (t *AfterAllTrigger) OnElement(c *Context) {
	for i, sub := range t.subs {
		if child := c.child(i); !child.Finished() {
			sub.OnElement(child)
		}
	}
}

func (t *AfterAllTrigger) ShouldFire(c *Context) bool {
	if c.Finished() {
		return false
	}
	pending := false
	for i, sub := range t.subs {
		child := c.child(i)
		if child.Finished() {
			continue
		}
		if !sub.ShouldFire(child) {
			return false
		}
		pending = true
	}
	return pending
}

func (t *AfterAllTrigger) OnFire(c *Context) {
	for i, sub := range t.subs {
		if child := c.child(i); !child.Finished() {
			sub.OnFire(child)
		}
	}
	if allFinished(t.subs, c) {
		c.setFinished(true)
	}
}

func (t *AfterAllTrigger) WatermarkThatGuaranteesFiring(w window.Window) int64 {
	bound := watermark.MinTimestamp
	for _, sub := range t.subs {
		bound = watermark.Max(bound, sub.WatermarkThatGuaranteesFiring(w))
	}
	return bound
}

func (t *AfterAllTrigger) ContinuationTrigger() Trigger {
	return &AfterAllTrigger{subs: continuations(t.subs)}
}

func (t *AfterAllTrigger) Equal(o Trigger) bool {
	other, ok := o.(*AfterAllTrigger)
	return ok && equalAll(t.subs, other.subs)
}

func (t *AfterAllTrigger) String() string {
	return join("AfterAll", t.subs)
}

func (t *AfterAllTrigger) reset(c *Context) {
	resetAll(t.subs, c)
}

func (t *AfterAllTrigger) onMerge(c *MergeContext) {
	mergeChildren(t.subs, c)
}

func (t *AfterAllTrigger) subTriggers() []Trigger {
	return t.subs
}

// AfterEachTrigger runs its sub-triggers one after another: it fires whenever
// the current sub-trigger fires and moves on once that sub-trigger finishes.
type AfterEachTrigger struct {
	subs []Trigger
}

func AfterEach(subs ...Trigger) *AfterEachTrigger {
	return &AfterEachTrigger{subs: checkSubTriggers("after each", 1, subs)}
}

func (t *AfterEachTrigger) SubTriggers() []Trigger {
	return append([]Trigger(nil), t.subs...)
}

func (t *AfterEachTrigger) current(c *Context) (int, bool) {
	cell := c.cell()
	if cell.Finished || cell.Index >= int64(len(t.subs)) {
		return 0, false
	}
	return int(cell.Index), true
}

func (t *AfterEachTrigger) OnElement(c *Context) {
	if i, ok := t.current(c); ok {
		t.subs[i].OnElement(c.child(i))
	}
}

func (t *AfterEachTrigger) ShouldFire(c *Context) bool {
	i, ok := t.current(c)
	return ok && t.subs[i].ShouldFire(c.child(i))
}

func (t *AfterEachTrigger) OnFire(c *Context) {
	i, ok := t.current(c)
	if !ok {
		return
	}
	child := c.child(i)
	t.subs[i].OnFire(child)
	if !child.Finished() {
		return
	}
	cell := c.cell()
	cell.Index++
	cell.Finished = cell.Index >= int64(len(t.subs))
	c.setCell(cell)
	if next, ok := t.current(c); ok {
		arm(t.subs[next], c.child(next))
	}
}

func (t *AfterEachTrigger) WatermarkThatGuaranteesFiring(w window.Window) int64 {
	return t.subs[0].WatermarkThatGuaranteesFiring(w)
}

// ContinuationTrigger fires whenever any remaining step would have.
func (t *AfterEachTrigger) ContinuationTrigger() Trigger {
	return &RepeatedlyTrigger{repeated: &AfterFirstTrigger{subs: continuations(t.subs)}}
}

func (t *AfterEachTrigger) Equal(o Trigger) bool {
	other, ok := o.(*AfterEachTrigger)
	return ok && equalAll(t.subs, other.subs)
}

func (t *AfterEachTrigger) String() string {
	return join("AfterEach", t.subs)
}

func (t *AfterEachTrigger) reset(c *Context) {
	resetAll(t.subs, c)
}

func (t *AfterEachTrigger) onMerge(c *MergeContext) {
	mergeChildren(t.subs, c)
	cells := c.sourceCells()
	var merged Cell
	for i, cell := range cells {
		if i == 0 || cell.Index < merged.Index {
			merged.Index = cell.Index
		}
	}
	merged.Finished = c.finishedInAll() || c.Finished()
	c.setCell(merged)
}

func (t *AfterEachTrigger) subTriggers() []Trigger {
	return t.subs
}

// arm sets the event-time timers t needs to fire from the watermark alone,
// for a step that starts without an element of its own.
func arm(t Trigger, c *Context) {
	switch t := t.(type) {
	case *AfterWatermarkTrigger:
		if !c.Finished() {
			c.setTimer(EventTime, t.deadline.At(c.window))
		}
	case *AfterEachTrigger:
		if i, ok := t.current(c); ok {
			arm(t.subs[i], c.child(i))
		}
	default:
		for i, sub := range t.subTriggers() {
			arm(sub, c.child(i))
		}
	}
}

func mergeChildren(subs []Trigger, c *MergeContext) {
	for i, sub := range subs {
		sub.onMerge(c.child(i))
	}
	if allFinished(subs, c.Context) {
		c.setFinished(true)
	}
}
