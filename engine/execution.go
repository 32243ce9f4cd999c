package engine

import (
	"github.com/pkg/errors"

	"github.com/RuiFG/streaming-trigger/state"
	"github.com/RuiFG/streaming-trigger/trigger"
)

// execution is the loaded state of one key and window.
type execution struct {
	ns      state.Namespace
	record  *windowRecord
	trigger trigger.Trigger
	state   *trigger.State
	// fresh is set when nothing was stored for the window.
	fresh bool
}

func (e *Engine) triggerFor(record *windowRecord) trigger.Trigger {
	if record.Merged {
		return e.continuation
	}
	return e.trigger
}

func (e *Engine) load(ns state.Namespace) (*execution, error) {
	value, ok, err := e.store.Get(ns, recordField)
	if err != nil {
		return nil, errors.WithMessagef(err, "failed to load %s", ns)
	}
	exec := &execution{ns: ns, record: &windowRecord{}, state: trigger.NewState(), fresh: !ok}
	if ok {
		if exec.record, err = unmarshalRecord(value); err != nil {
			return nil, &CorruptStateError{Namespace: ns, Field: recordField, Err: err}
		}
	}
	exec.trigger = e.triggerFor(exec.record)
	if !ok {
		return exec, nil
	}
	for _, path := range trigger.Paths(exec.trigger) {
		value, found, err := e.store.Get(ns, path)
		if err != nil {
			return nil, errors.WithMessagef(err, "failed to load %s of %s", path, ns)
		}
		if !found {
			continue
		}
		cell, err := trigger.UnmarshalCell(value)
		if err != nil {
			return nil, &CorruptStateError{Namespace: ns, Field: path, Err: err}
		}
		exec.state.Load(path, cell)
	}
	return exec, nil
}

func (e *Engine) persist(exec *execution) error {
	for _, path := range exec.state.Dirty() {
		var err error
		if cell := exec.state.Cell(path); cell.IsZero() {
			err = e.store.Clear(exec.ns, path)
		} else {
			err = e.store.Set(exec.ns, path, trigger.MarshalCell(cell))
		}
		if err != nil {
			return errors.WithMessagef(err, "failed to persist %s of %s", path, exec.ns)
		}
	}
	exec.state.ResetDirty()
	exec.fresh = false
	return errors.WithMessagef(e.store.Set(exec.ns, recordField, marshalRecord(exec.record)),
		"failed to persist %s", exec.ns)
}

func (e *Engine) context(exec *execution) *trigger.Context {
	return trigger.NewContext(exec.ns.Window, e.watermark.Current(), e.now(), exec.state, &windowTimers{engine: e, exec: exec})
}

// windowTimers records the timers requested for one window, so that they can
// be dropped with it.
type windowTimers struct {
	engine *Engine
	exec   *execution
}

func (t *windowTimers) SetTimer(id string, domain trigger.TimeDomain, timestamp int64) {
	entry := timerEntry{ID: id, Domain: domain, Timestamp: timestamp}
	if old, ok := t.exec.record.timer(id); ok {
		if old == entry {
			return
		}
		t.engine.deleteTimer(t.exec.ns, old)
	}
	t.exec.record.putTimer(entry)
	t.engine.registerTimer(t.exec.ns, entry)
}

func (t *windowTimers) DeleteTimer(id string, _ trigger.TimeDomain) {
	if old, ok := t.exec.record.timer(id); ok {
		t.engine.deleteTimer(t.exec.ns, old)
		t.exec.record.removeTimer(id)
	}
}
