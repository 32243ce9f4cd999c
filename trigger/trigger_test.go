package trigger

import (
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RuiFG/streaming-trigger/watermark"
	"github.com/RuiFG/streaming-trigger/window"
)

type requestedTimer struct {
	domain    TimeDomain
	timestamp int64
}

type fakeTimers map[string]requestedTimer

func (f fakeTimers) SetTimer(id string, domain TimeDomain, timestamp int64) {
	f[id] = requestedTimer{domain: domain, timestamp: timestamp}
}

func (f fakeTimers) DeleteTimer(id string, _ TimeDomain) {
	delete(f, id)
}

type harness struct {
	trigger Trigger
	window  window.Window
	state   *State
	timers  fakeTimers
	wm      int64
	now     int64
}

func newHarness(t Trigger, w window.Window) *harness {
	return &harness{trigger: t, window: w, state: NewState(), timers: fakeTimers{}, wm: watermark.MinTimestamp}
}

func (h *harness) context() *Context {
	return NewContext(h.window, h.wm, h.now, h.state, h.timers)
}

func (h *harness) element() bool {
	h.trigger.OnElement(h.context())
	return h.fire()
}

func (h *harness) advance(wm int64) bool {
	h.wm = wm
	return h.fire()
}

func (h *harness) fire() bool {
	c := h.context()
	if !h.trigger.ShouldFire(c) {
		return false
	}
	h.trigger.OnFire(c)
	return true
}

func (h *harness) finished() bool {
	return h.context().Finished()
}

var w010 = window.Must(0, 10)

func TestNever(t *testing.T) {
	t.Run("bound", func(t *testing.T) {
		for _, w := range []window.Window{w010, window.Must(-500, -100), window.Must(1000, 1000000), window.Global()} {
			assert.Equal(t, watermark.MaxTimestamp, Never().WatermarkThatGuaranteesFiring(w), w.String())
		}
	})
	t.Run("never ready", func(t *testing.T) {
		h := newHarness(Never(), w010)
		for _, ts := range []int64{1, 5, 9} {
			assert.False(t, h.element(), "element %d", ts)
		}
		for _, wm := range []int64{0, 9, 10, 100, watermark.MaxTimestamp} {
			assert.False(t, h.advance(wm), "watermark %d", wm)
		}
		assert.Empty(t, h.timers)
		assert.False(t, h.finished())
	})
}

func TestContinuationIdempotent(t *testing.T) {
	triggers := []Trigger{
		Never(),
		PastEndOfWindow(),
		AfterWatermark(Deadline{Anchor: StartOfWindow, Offset: time.Second}),
		AfterProcessingTime(time.Minute),
		AfterPane(3),
		Repeatedly(AfterPane(2)),
		OrFinally(AfterPane(5), PastEndOfWindow()),
		AfterEach(AfterPane(1), PastEndOfWindow()),
	}
	for _, trigger := range triggers {
		once := trigger.ContinuationTrigger()
		assert.True(t, once.ContinuationTrigger().Equal(once), trigger.String())
	}
	for _, trigger := range triggers[:5] {
		assert.True(t, trigger.ContinuationTrigger().Equal(trigger), trigger.String())
	}
}

func TestRepeatedlyNeverFinishes(t *testing.T) {
	subs := []Trigger{
		AfterPane(2),
		PastEndOfWindow(),
		AfterProcessingTime(time.Second),
		AfterFirst(AfterPane(1), PastEndOfWindow()),
		AfterAll(AfterPane(1), PastEndOfWindow()),
		OrFinally(AfterPane(2), PastEndOfWindow()),
	}
	for _, sub := range subs {
		t.Run(sub.String(), func(t *testing.T) {
			h := newHarness(Repeatedly(sub), w010)
			fired := 0
			for i, wm := range []int64{0, 3, 9, 10, 11, 50} {
				for j := 0; j < 3; j++ {
					if h.element() {
						fired++
					}
					assert.False(t, h.finished())
					if h.state.MarkTimerExpired("t.0") && h.fire() {
						fired++
					}
					assert.False(t, h.finished())
				}
				if h.advance(wm) {
					fired++
				}
				assert.False(t, h.finished(), "step %d", i)
			}
			assert.Greater(t, fired, 1)
		})
	}
}

func TestCompositeBounds(t *testing.T) {
	early := PastEndOfWindow()
	late := AfterWatermark(Deadline{Anchor: EndOfWindow, Offset: 5 * time.Second})
	require.NotEqual(t, early.WatermarkThatGuaranteesFiring(w010), late.WatermarkThatGuaranteesFiring(w010))

	assert.Equal(t, int64(10), AfterFirst(early, late).WatermarkThatGuaranteesFiring(w010))
	assert.Equal(t, int64(5010), AfterAll(early, late).WatermarkThatGuaranteesFiring(w010))
	assert.Equal(t, int64(10), AfterFirst(Never(), early).WatermarkThatGuaranteesFiring(w010))
	assert.Equal(t, watermark.MaxTimestamp, AfterAll(Never(), early).WatermarkThatGuaranteesFiring(w010))
	assert.Equal(t, int64(5010), OrFinally(early, late).WatermarkThatGuaranteesFiring(w010))
	assert.Equal(t, int64(10), AfterEach(early, late).WatermarkThatGuaranteesFiring(w010))
	assert.Equal(t, watermark.MaxTimestamp, AfterProcessingTime(time.Second).WatermarkThatGuaranteesFiring(w010))
}

func TestAfterWatermark(t *testing.T) {
	h := newHarness(PastEndOfWindow(), w010)
	for _, ts := range []int64{1, 5} {
		assert.False(t, h.element(), "element %d", ts)
	}
	assert.Equal(t, fakeTimers{"t": {domain: EventTime, timestamp: 10}}, h.timers)
	for wm := int64(0); wm < 10; wm++ {
		assert.False(t, h.advance(wm), "watermark %d", wm)
	}
	assert.True(t, h.advance(10))
	assert.True(t, h.finished())
	assert.Empty(t, h.timers)
	assert.False(t, h.advance(11))
	assert.False(t, h.element())
	assert.Empty(t, h.timers)
}

func TestAfterProcessingTime(t *testing.T) {
	h := newHarness(AfterProcessingTime(time.Second), w010)
	h.now = 1000
	assert.False(t, h.element())
	h.now = 1500
	assert.False(t, h.element())
	assert.Equal(t, fakeTimers{"t": {domain: ProcessingTime, timestamp: 2000}}, h.timers)
	assert.False(t, h.state.MarkTimerExpired("t.0"))
	assert.True(t, h.state.MarkTimerExpired("t"))
	assert.True(t, h.fire())
	assert.True(t, h.finished())
	assert.Empty(t, h.timers)
}

func TestOrFinally(t *testing.T) {
	h := newHarness(OrFinally(AfterPane(5), PastEndOfWindow()), w010)
	for i := 0; i < 3; i++ {
		assert.False(t, h.element())
	}
	assert.Equal(t, int64(3), h.state.Cell("t.0").Count)
	assert.True(t, h.advance(11))
	assert.True(t, h.finished())
	assert.True(t, h.state.Cell("t.0").IsZero())
	assert.False(t, h.element())
	assert.False(t, h.advance(20))

	t.Run("main finishes", func(t *testing.T) {
		h := newHarness(OrFinally(PastEndOfWindow(), AfterPane(100)), w010)
		h.element()
		assert.True(t, h.advance(10))
		assert.True(t, h.finished())
	})
}

func TestAfterFirstAndAfterAll(t *testing.T) {
	t.Run("after first", func(t *testing.T) {
		h := newHarness(AfterFirst(AfterPane(2), PastEndOfWindow()), w010)
		assert.False(t, h.element())
		assert.True(t, h.element())
		assert.False(t, h.finished())
		assert.True(t, h.advance(10))
		// AfterPane never finishes, so neither does the whole.
		assert.False(t, h.finished())
		assert.True(t, h.state.Cell("t.1").Finished)
	})
	t.Run("after all", func(t *testing.T) {
		h := newHarness(AfterAll(AfterPane(2), PastEndOfWindow()), w010)
		assert.False(t, h.element())
		assert.False(t, h.element())
		assert.True(t, h.advance(10))
		assert.True(t, h.state.Cell("t.1").Finished)
		assert.False(t, h.element())
		assert.True(t, h.element())
	})
	t.Run("after all finishes", func(t *testing.T) {
		h := newHarness(AfterAll(AfterWatermark(Deadline{Anchor: StartOfWindow}), PastEndOfWindow()), w010)
		h.element()
		assert.False(t, h.advance(5))
		assert.True(t, h.advance(10))
		assert.True(t, h.finished())
	})
}

func TestAfterEach(t *testing.T) {
	h := newHarness(AfterEach(AfterWatermark(Deadline{Anchor: StartOfWindow}), PastEndOfWindow()), w010)
	h.element()
	assert.True(t, h.advance(0))
	assert.Equal(t, int64(1), h.state.Cell("t").Index)
	assert.False(t, h.finished())
	assert.False(t, h.element())
	assert.True(t, h.advance(10))
	assert.True(t, h.finished())
	assert.False(t, h.element())

	armed := newHarness(AfterEach(AfterWatermark(Deadline{Anchor: StartOfWindow}), PastEndOfWindow()), w010)
	armed.element()
	assert.True(t, armed.advance(0))
	assert.Equal(t, requestedTimer{domain: EventTime, timestamp: 10}, armed.timers["t.1"])
}

func TestResolve(t *testing.T) {
	w1, w2, merged := window.Must(0, 10), window.Must(5, 15), window.Must(0, 15)

	t.Run("after pane counts sum", func(t *testing.T) {
		trigger := AfterPane(3)
		inputs := make([]MergeInput, 0, 2)
		for _, w := range []window.Window{w1, w2} {
			h := newHarness(trigger, w)
			assert.False(t, h.element())
			assert.False(t, h.element())
			inputs = append(inputs, MergeInput{Window: w, Trigger: trigger, State: h.state})
		}
		resolution, err := Resolve(inputs, merged, 0, 0, fakeTimers{})
		require.NoError(t, err)
		assert.True(t, resolution.Trigger.Equal(trigger))
		assert.Equal(t, int64(4), resolution.State.Cell(RootPath).Count)

		h := newHarness(resolution.Trigger, merged)
		h.state = resolution.State
		assert.True(t, h.element())
		assert.Equal(t, int64(0), h.state.Cell(RootPath).Count)
	})

	t.Run("incompatible", func(t *testing.T) {
		_, err := Resolve([]MergeInput{
			{Window: w1, Trigger: AfterPane(3), State: NewState()},
			{Window: w2, Trigger: AfterPane(4), State: NewState()},
		}, merged, 0, 0, nil)
		var incompatible *IncompatibleTriggerMergeError
		require.True(t, errors.As(err, &incompatible))
		assert.Equal(t, merged, incompatible.Window)
		assert.Len(t, incompatible.Triggers, 2)
	})

	t.Run("after watermark", func(t *testing.T) {
		finished := func() *State {
			s := NewState()
			s.Load(RootPath, Cell{Finished: true})
			return s
		}
		inputs := []MergeInput{
			{Window: w1, Trigger: PastEndOfWindow(), State: finished()},
			{Window: w2, Trigger: PastEndOfWindow(), State: finished()},
		}
		timers := fakeTimers{}
		resolution, err := Resolve(inputs, merged, 12, 0, timers)
		require.NoError(t, err)
		assert.False(t, resolution.State.Cell(RootPath).Finished)
		assert.Equal(t, fakeTimers{"t": {domain: EventTime, timestamp: 15}}, timers)

		resolution, err = Resolve(inputs, merged, 15, 0, fakeTimers{})
		require.NoError(t, err)
		assert.True(t, resolution.State.Cell(RootPath).Finished)

		inputs[1].State = NewState()
		resolution, err = Resolve(inputs, merged, 15, 0, fakeTimers{})
		require.NoError(t, err)
		assert.False(t, resolution.State.Cell(RootPath).Finished)
	})

	t.Run("after processing time keeps the earliest timer", func(t *testing.T) {
		trigger := AfterProcessingTime(time.Second)
		var inputs []MergeInput
		for i, now := range []int64{3000, 1000} {
			h := newHarness(trigger, []window.Window{w1, w2}[i])
			h.now = now
			h.element()
			inputs = append(inputs, MergeInput{Window: h.window, Trigger: trigger, State: h.state})
		}
		timers := fakeTimers{}
		resolution, err := Resolve(inputs, merged, 0, 1500, timers)
		require.NoError(t, err)
		assert.Equal(t, Cell{TimerSet: true, FiringTime: 2000}, resolution.State.Cell(RootPath))
		assert.Equal(t, fakeTimers{"t": {domain: ProcessingTime, timestamp: 2000}}, timers)
	})

	t.Run("continuation of a merged window", func(t *testing.T) {
		original := AfterEach(AfterPane(1), PastEndOfWindow())
		continuation := original.ContinuationTrigger()
		s := NewState()
		s.Load("t.0", Cell{Count: 7})
		resolution, err := Resolve([]MergeInput{
			{Window: w1, Trigger: original, State: s},
			{Window: w2, Trigger: continuation, State: NewState()},
		}, merged, 0, 0, nil)
		require.NoError(t, err)
		assert.True(t, resolution.Trigger.Equal(continuation))
		assert.Empty(t, resolution.State.Paths())
	})
}

func TestCleanupTime(t *testing.T) {
	assert.Equal(t, int64(9), CleanupTime(Never(), w010, 0))
	assert.Equal(t, int64(10), CleanupTime(PastEndOfWindow(), w010, 0))
	assert.Equal(t, int64(15), CleanupTime(PastEndOfWindow(), w010, 5*time.Millisecond))
	assert.Equal(t, int64(1009), CleanupTime(AfterPane(1), w010, time.Second))
	assert.Equal(t, watermark.MaxTimestamp, CleanupTime(Never(), window.Global(), 48*time.Hour))
	assert.Equal(t, int64(10), RequiredWatermarkHold(PastEndOfWindow(), w010))

	start := AfterWatermark(Deadline{Anchor: StartOfWindow})
	late := AfterWatermark(Deadline{Anchor: EndOfWindow, Offset: 5 * time.Millisecond})
	assert.Equal(t, int64(15), CleanupTime(AfterEach(start, late), w010, 0))
	assert.Equal(t, int64(15), CleanupTime(Repeatedly(AfterFirst(start, late)), w010, 0))
	assert.Equal(t, int64(0), RequiredWatermarkHold(AfterEach(start, late), w010))
}

func TestConstructorsValidate(t *testing.T) {
	assert.Panics(t, func() { AfterPane(0) })
	assert.Panics(t, func() { AfterProcessingTime(time.Microsecond) })
	assert.Panics(t, func() { AfterFirst(AfterPane(1)) })
	assert.Panics(t, func() { AfterAll(AfterPane(1), nil) })
	assert.Panics(t, func() { AfterEach() })
	assert.Panics(t, func() { Repeatedly(nil) })
	assert.Panics(t, func() { OrFinally(nil, Never()) })
	assert.Panics(t, func() { AfterWatermark(Deadline{Anchor: Anchor(7)}) })
}

func TestPaths(t *testing.T) {
	trigger := OrFinally(Repeatedly(AfterFirst(AfterPane(1), PastEndOfWindow())), Never())
	assert.Equal(t, []string{"t", "t.0", "t.0.0", "t.0.0.0", "t.0.0.1", "t.1"}, Paths(trigger))
	assert.Equal(t, "Repeatedly(AfterFirst(AfterPane(1), AfterWatermark(end))).OrFinally(Never())", trigger.String())
}

func TestCellCodec(t *testing.T) {
	cell := Cell{Finished: true, Count: 42, Index: 1, TimerSet: true, FiringTime: -1500, Expired: true}
	decoded, err := UnmarshalCell(MarshalCell(cell))
	require.NoError(t, err)
	assert.Equal(t, cell, decoded)

	assert.Empty(t, MarshalCell(Cell{}))

	_, err = UnmarshalCell([]byte{0x10, 0xff})
	assert.Error(t, err)
}

func TestSpecBuild(t *testing.T) {
	spec := Spec{
		Kind: "or_finally",
		Triggers: []Spec{
			{Kind: "repeatedly", Triggers: []Spec{{Kind: "after_pane", Count: 5}}},
			{Kind: "after_watermark", Anchor: "end", Offset: time.Minute},
		},
	}
	trigger, err := spec.Build()
	require.NoError(t, err)
	assert.True(t, trigger.Equal(OrFinally(
		Repeatedly(AfterPane(5)),
		AfterWatermark(Deadline{Anchor: EndOfWindow, Offset: time.Minute}),
	)))

	for _, invalid := range []Spec{
		{Kind: "after_pane"},
		{Kind: "sometimes"},
		{Kind: "after_first", Triggers: []Spec{{Kind: "never"}}},
		{Kind: "repeatedly"},
		{Kind: "after_watermark", Anchor: "middle"},
	} {
		_, err := invalid.Build()
		assert.Error(t, err, invalid.Kind)
	}
}
