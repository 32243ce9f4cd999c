// Package engine drives trigger state machines for keyed windows: it feeds
// element arrivals, watermark progress and timer expiries to the trigger of
// each window, emits panes when triggers fire and garbage collects windows
// once they can no longer fire.
package engine

import (
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"github.com/uber-go/tally/v4"

	"github.com/RuiFG/streaming-trigger/log"
	"github.com/RuiFG/streaming-trigger/state"
	"github.com/RuiFG/streaming-trigger/timer"
	"github.com/RuiFG/streaming-trigger/trigger"
	"github.com/RuiFG/streaming-trigger/watermark"
	"github.com/RuiFG/streaming-trigger/window"
)

const (
	recordField = "window"
	// CleanupTimerID identifies the garbage collection timer of a window.
	CleanupTimerID = "gc"
)

// TimerRef identifies the timer of a trigger node, or the cleanup timer, of one key and window.
type TimerRef struct {
	Key    string
	Window window.Window
	ID     string
}

type TimerService interface {
	RegisterEventTimeTimer(timer timer.Timer[TimerRef])
	RegisterProcessingTimeTimer(timer timer.Timer[TimerRef])
	DeleteEventTimeTimer(timer timer.Timer[TimerRef])
	DeleteProcessingTimeTimer(timer timer.Timer[TimerRef])
}

// Engine is not safe for concurrent use: the host serializes every call.
type Engine struct {
	trigger         trigger.Trigger
	continuation    trigger.Trigger
	allowedLateness time.Duration
	merging         bool

	store     state.Store
	timers    TimerService
	owned     *timer.Service[TimerRef]
	collector Collector
	clock     clock.Clock
	logger    log.Logger
	scope     tally.Scope

	watermark *watermark.Tracker
	active    map[string]*window.Index
	// windows expired by Expire ahead of their cleanup time
	tombstones map[state.Namespace]int64
}

func New(t trigger.Trigger, withOptionsFns ...WithOptions) (*Engine, error) {
	if t == nil {
		return nil, errors.Errorf("trigger can't be nil")
	}
	o := &options{}
	for _, withOptionsFn := range withOptionsFns {
		if err := withOptionsFn(o); err != nil {
			return nil, errors.WithMessage(err, "failed to init engine options")
		}
	}
	if o.store == nil {
		o.store = state.NewMemoryStore()
	}
	if o.collector == nil {
		o.collector = discard{}
	}
	if o.clock == nil {
		o.clock = clock.New()
	}
	if o.logger == nil {
		o.logger = log.Global().Named("engine")
	}
	if o.scope == nil {
		o.scope = tally.NoopScope
	}
	e := &Engine{
		trigger:         t,
		continuation:    t.ContinuationTrigger(),
		allowedLateness: o.allowedLateness,
		merging:         o.merging,
		store:           o.store,
		timers:          o.timers,
		collector:       o.collector,
		clock:           o.clock,
		logger:          o.logger,
		scope:           o.scope,
		watermark:       watermark.NewTracker(),
		active:          map[string]*window.Index{},
		tombstones:      map[state.Namespace]int64{},
	}
	if e.timers == nil {
		e.owned = timer.NewService[TimerRef](o.clock, nil)
		e.owned.Start(e)
		e.timers = e.owned
	}
	e.logger.Infow("engine created", "trigger", t.String(), "allowed_lateness", o.allowedLateness, "merging", o.merging)
	return e, nil
}

func (e *Engine) Trigger() trigger.Trigger {
	return e.trigger
}

func (e *Engine) Watermark() int64 {
	return e.watermark.Current()
}

// OnElementArrival records an element with event time timestamp for w.
func (e *Engine) OnElementArrival(key string, w window.Window, timestamp int64) error {
	if !w.Contains(timestamp) {
		return errors.Errorf("element at %s is outside window %s", watermark.Format(timestamp), w)
	}
	exec, err := e.load(state.Namespace{Key: key, Window: w})
	if err != nil {
		return err
	}
	if e.expired(exec) {
		e.scope.Tagged(map[string]string{"reason": "expired"}).Counter("dropped").Inc(1)
		e.logger.Warnw("drop element of expired window", "key", key, "window", w.String(),
			"timestamp", timestamp, "watermark", watermark.Format(e.watermark.Current()))
		return &WindowExpiredError{Key: key, Window: w, Watermark: e.watermark.Current()}
	}
	if exec.record.Closed {
		e.scope.Tagged(map[string]string{"reason": "closed"}).Counter("dropped").Inc(1)
		e.logger.Debugw("drop element of closed window", "key", key, "window", w.String(), "timestamp", timestamp)
		return nil
	}
	e.scope.Counter("elements").Inc(1)
	e.index(key).Insert(w)
	exec.record.Pending++
	exec.trigger.OnElement(e.context(exec))
	e.registerCleanupTimer(exec)
	e.evaluate(exec)
	return e.persist(exec)
}

// OnWatermarkAdvance moves the input watermark forward; regressions are
// ignored and reported as false. Event-time timers of an engine without a
// host timer service fire here.
func (e *Engine) OnWatermarkAdvance(wm int64) bool {
	if !e.watermark.Advance(wm) {
		return false
	}
	current := e.watermark.Current()
	for ns, cleanup := range e.tombstones {
		if cleanup <= current {
			delete(e.tombstones, ns)
		}
	}
	e.logger.Debugw("watermark advanced", "watermark", watermark.Format(current))
	if e.owned != nil {
		e.owned.AdvanceWatermark(current)
	}
	return true
}

// OnTimerExpiry handles the expiry of timer id of key and w.
func (e *Engine) OnTimerExpiry(key string, w window.Window, id string) error {
	exec, err := e.load(state.Namespace{Key: key, Window: w})
	if err != nil {
		return err
	}
	if exec.fresh {
		if e.expired(exec) {
			return &WindowExpiredError{Key: key, Window: w, Watermark: e.watermark.Current()}
		}
		e.logger.Debugw("ignore timer of unknown window", "key", key, "window", w.String(), "timer", id)
		return nil
	}
	if id == CleanupTimerID {
		return e.expire(exec)
	}
	exec.record.removeTimer(id)
	if !exec.record.Closed {
		exec.state.MarkTimerExpired(id)
		e.evaluate(exec)
	}
	return e.persist(exec)
}

func (e *Engine) OnEventTime(t timer.Timer[TimerRef]) {
	e.onTimer(t)
}

func (e *Engine) OnProcessingTime(t timer.Timer[TimerRef]) {
	e.onTimer(t)
}

func (e *Engine) onTimer(t timer.Timer[TimerRef]) {
	if err := e.OnTimerExpiry(t.Payload.Key, t.Payload.Window, t.Payload.ID); err != nil {
		e.logger.Errorw("failed to handle timer", "key", t.Payload.Key, "window", t.Payload.Window.String(),
			"timer", t.Payload.ID, "err", err)
	}
}

// Expire flushes w of key and drops its state. A pane marked last is emitted
// first if the trigger has not finished and elements arrived since the
// previous pane. Later operations on w fail with WindowExpiredError.
func (e *Engine) Expire(key string, w window.Window) error {
	exec, err := e.load(state.Namespace{Key: key, Window: w})
	if err != nil {
		return err
	}
	if exec.fresh {
		return &WindowExpiredError{Key: key, Window: w, Watermark: e.watermark.Current()}
	}
	return e.expire(exec)
}

func (e *Engine) expire(exec *execution) error {
	if !exec.record.Closed {
		e.evaluate(exec)
		if !exec.record.Closed && exec.record.Pending > 0 {
			e.emit(exec, true, true)
		}
	}
	e.deleteTimers(exec, true)
	key, w := exec.ns.Key, exec.ns.Window
	if index, ok := e.active[key]; ok {
		index.Delete(w)
		if index.Len() == 0 {
			delete(e.active, key)
		}
	}
	if cleanup := e.cleanupTime(exec); cleanup > e.watermark.Current() {
		e.tombstones[exec.ns] = cleanup
	}
	e.scope.Counter("expired").Inc(1)
	e.logger.Debugw("window expired", "key", key, "window", w.String(), "panes", exec.record.PaneIndex)
	return errors.WithMessagef(e.store.ClearNamespace(exec.ns), "failed to clear state of %s", exec.ns)
}

// MergeWindows replaces the source windows of event by its result window.
// The result window is governed by the continuation trigger; no pane is
// emitted by the merge itself.
func (e *Engine) MergeWindows(key string, event window.MergeEvent) error {
	if !e.merging {
		return errors.Errorf("can't merge windows into %s: engine is not merging", event.Result)
	}
	if len(event.Sources) == 0 {
		return errors.Errorf("can't merge windows into %s: no source window", event.Result)
	}
	target := &execution{
		ns:      state.Namespace{Key: key, Window: event.Result},
		record:  &windowRecord{Merged: true},
		trigger: e.continuation,
		fresh:   true,
	}
	if e.expired(target) {
		return &WindowExpiredError{Key: key, Window: event.Result, Watermark: e.watermark.Current()}
	}
	sources := make([]*execution, 0, len(event.Sources))
	inputs := make([]trigger.MergeInput, 0, len(event.Sources))
	for _, w := range event.Sources {
		if !event.Result.Contains(w.Start()) || w.End() > event.Result.End() {
			return errors.Errorf("can't merge %s into %s: not covered", w, event.Result)
		}
		exec, err := e.load(state.Namespace{Key: key, Window: w})
		if err != nil {
			return err
		}
		sources = append(sources, exec)
		inputs = append(inputs, trigger.MergeInput{Window: w, Trigger: exec.trigger, State: exec.state})
	}
	// source timers go first, the result window may reuse their identity
	for _, exec := range sources {
		e.deleteTimers(exec, true)
	}
	resolution, err := trigger.Resolve(inputs, event.Result, e.watermark.Current(), e.now(), &windowTimers{engine: e, exec: target})
	if err != nil {
		for _, exec := range sources {
			for _, entry := range exec.record.Timers {
				e.registerTimer(exec.ns, entry)
			}
		}
		return err
	}
	target.trigger, target.state = resolution.Trigger, resolution.State
	index := e.index(key)
	for _, exec := range sources {
		target.record.absorb(exec.record)
		index.Delete(exec.ns.Window)
		if err := e.store.ClearNamespace(exec.ns); err != nil {
			return errors.WithMessagef(err, "failed to clear state of %s", exec.ns)
		}
	}
	target.record.Closed = resolution.State.Cell(trigger.RootPath).Finished
	index.Insert(event.Result)
	e.registerCleanupTimer(target)
	e.scope.Counter("merges").Inc(1)
	e.logger.Debugw("windows merged", "key", key, "result", event.Result.String(), "sources", len(event.Sources))
	return e.persist(target)
}

// RequiredWatermarkHold is the event time the output watermark must be held
// at for w of key. watermark.MaxTimestamp means no hold.
func (e *Engine) RequiredWatermarkHold(key string, w window.Window) (int64, error) {
	exec, err := e.loadLive(key, w)
	if err != nil {
		return 0, err
	}
	if exec.record.Closed {
		return watermark.MaxTimestamp, nil
	}
	return trigger.RequiredWatermarkHold(exec.trigger, w), nil
}

// CleanupTime is the watermark at which w of key is garbage collected.
func (e *Engine) CleanupTime(key string, w window.Window) (int64, error) {
	exec, err := e.loadLive(key, w)
	if err != nil {
		return 0, err
	}
	return e.cleanupTime(exec), nil
}

// loadLive loads w of key, refusing a window without state whose cleanup
// time has already passed.
func (e *Engine) loadLive(key string, w window.Window) (*execution, error) {
	exec, err := e.load(state.Namespace{Key: key, Window: w})
	if err != nil {
		return nil, err
	}
	if exec.fresh && e.expired(exec) {
		return nil, &WindowExpiredError{Key: key, Window: w, Watermark: e.watermark.Current()}
	}
	return exec, nil
}

// ActiveWindows lists the windows of key holding state, in order.
func (e *Engine) ActiveWindows(key string) []window.Window {
	if index, ok := e.active[key]; ok {
		return index.Windows()
	}
	return nil
}

// HoldForKey is the minimum hold over the active windows of key.
func (e *Engine) HoldForKey(key string) int64 {
	hold := watermark.MaxTimestamp
	index, ok := e.active[key]
	if !ok {
		return hold
	}
	index.Ascend(func(w window.Window) bool {
		h, err := e.RequiredWatermarkHold(key, w)
		if err != nil {
			e.logger.Warnw("skip hold of unreadable window", "key", key, "window", w.String(), "err", err)
			return true
		}
		hold = watermark.Min(hold, h)
		return true
	})
	return hold
}

// Hold is the minimum hold over every active window.
func (e *Engine) Hold() int64 {
	hold := watermark.MaxTimestamp
	for key := range e.active {
		hold = watermark.Min(hold, e.HoldForKey(key))
	}
	return hold
}

// Close stops the timers owned by the engine and closes its store.
func (e *Engine) Close() error {
	if e.owned != nil {
		e.owned.Stop()
	}
	return e.store.Close()
}

func (e *Engine) now() int64 {
	return e.clock.Now().UnixMilli()
}

func (e *Engine) index(key string) *window.Index {
	index, ok := e.active[key]
	if !ok {
		index = window.NewIndex()
		e.active[key] = index
	}
	return index
}

func (e *Engine) cleanupTime(exec *execution) int64 {
	return trigger.CleanupTime(exec.trigger, exec.ns.Window, e.allowedLateness)
}

func (e *Engine) expired(exec *execution) bool {
	if _, ok := e.tombstones[exec.ns]; ok {
		return true
	}
	return e.watermark.Current() >= e.cleanupTime(exec)
}

func (e *Engine) registerCleanupTimer(exec *execution) {
	cleanup := e.cleanupTime(exec)
	if cleanup >= watermark.MaxTimestamp {
		return
	}
	(&windowTimers{engine: e, exec: exec}).SetTimer(CleanupTimerID, trigger.EventTime, cleanup)
}

func (e *Engine) evaluate(exec *execution) {
	if exec.record.Closed {
		return
	}
	c := e.context(exec)
	if !exec.trigger.ShouldFire(c) {
		return
	}
	exec.trigger.OnFire(c)
	isLast := c.Finished()
	if !isLast && exec.record.Pending == 0 && e.timing(exec) != OnTime {
		e.scope.Counter("empty_firings").Inc(1)
		return
	}
	e.emit(exec, isLast, false)
}

func (e *Engine) timing(exec *execution) Timing {
	if e.watermark.Current() < exec.ns.Window.MaxTimestamp() {
		return Early
	}
	if !exec.record.OnTimeEmitted {
		return OnTime
	}
	return Late
}

func (e *Engine) emit(exec *execution, isLast bool, forced bool) {
	timing := e.timing(exec)
	pane := PaneFiring{
		Key:      exec.ns.Key,
		Window:   exec.ns.Window,
		IsLast:   isLast,
		Timing:   timing,
		Index:    exec.record.PaneIndex,
		Elements: exec.record.Pending,
		Forced:   forced,
	}
	exec.record.PaneIndex++
	exec.record.Pending = 0
	if timing == OnTime {
		exec.record.OnTimeEmitted = true
	}
	if isLast {
		exec.record.Closed = true
		e.deleteTimers(exec, false)
	}
	e.scope.Tagged(map[string]string{"timing": timing.String()}).Counter("panes").Inc(1)
	e.logger.Debugw("pane fired", "key", pane.Key, "window", pane.Window.String(), "timing", timing.String(),
		"index", pane.Index, "elements", pane.Elements, "last", isLast, "forced", forced)
	e.collector.EmitPane(pane)
}

// deleteTimers drops the trigger timers of exec, and its cleanup timer too when all is set.
func (e *Engine) deleteTimers(exec *execution, all bool) {
	kept := exec.record.Timers[:0]
	for _, entry := range exec.record.Timers {
		if !all && entry.ID == CleanupTimerID {
			kept = append(kept, entry)
			continue
		}
		e.deleteTimer(exec.ns, entry)
	}
	if all {
		// sources of a failed merge re-register from this slice
		return
	}
	exec.record.Timers = kept
}

func (e *Engine) registerTimer(ns state.Namespace, entry timerEntry) {
	t := timer.Timer[TimerRef]{
		Payload:   TimerRef{Key: ns.Key, Window: ns.Window, ID: entry.ID},
		Timestamp: entry.Timestamp,
	}
	if entry.Domain == trigger.ProcessingTime {
		e.timers.RegisterProcessingTimeTimer(t)
	} else {
		e.timers.RegisterEventTimeTimer(t)
	}
}

func (e *Engine) deleteTimer(ns state.Namespace, entry timerEntry) {
	t := timer.Timer[TimerRef]{
		Payload:   TimerRef{Key: ns.Key, Window: ns.Window, ID: entry.ID},
		Timestamp: entry.Timestamp,
	}
	if entry.Domain == trigger.ProcessingTime {
		e.timers.DeleteProcessingTimeTimer(t)
	} else {
		e.timers.DeleteEventTimeTimer(t)
	}
}
