// Package host drives a trigger engine from an event log: it assigns windows,
// merges sessions, combines input watermarks and schedules timers.
package host

import (
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"github.com/uber-go/tally/v4"
	"go.uber.org/multierr"

	"github.com/RuiFG/streaming-trigger/common/safe"
	"github.com/RuiFG/streaming-trigger/config"
	"github.com/RuiFG/streaming-trigger/engine"
	"github.com/RuiFG/streaming-trigger/log"
	"github.com/RuiFG/streaming-trigger/state"
	"github.com/RuiFG/streaming-trigger/timer"
	"github.com/RuiFG/streaming-trigger/watermark"
	"github.com/RuiFG/streaming-trigger/window"
)

// Runner serializes events, watermarks and processing-time timers into one engine.
type Runner struct {
	mu     sync.Mutex
	closed bool

	logger   log.Logger
	scope    tally.Scope
	assigner window.Assigner
	engine   *engine.Engine
	timers   *timer.Service[engine.TimerRef]

	combined *watermark.Combined
	// per input, nil when watermarks only come from watermark events
	generators []*watermark.BoundedOutOfOrderness
}

func New(application *config.Application, withOptionsFns ...WithOptions) (*Runner, error) {
	o := &options{}
	for _, withOptionsFn := range withOptionsFns {
		if err := withOptionsFn(o); err != nil {
			return nil, errors.WithMessage(err, "failed to init runner options")
		}
	}
	if o.clock == nil {
		o.clock = clock.New()
	}
	if o.logger == nil {
		o.logger = log.Global().Named("host")
	}
	if o.scope == nil {
		o.scope = tally.NoopScope
	}
	assigner, err := application.Assigner()
	if err != nil {
		return nil, err
	}
	t, err := application.Trigger.Build()
	if err != nil {
		return nil, err
	}
	if o.store == nil {
		if o.store, err = newStore(application.State, o.logger); err != nil {
			return nil, err
		}
	}

	r := &Runner{
		logger:   o.logger,
		scope:    o.scope,
		assigner: assigner,
		combined: watermark.NewCombined(application.Watermark.Inputs),
	}
	r.timers = timer.NewService[engine.TimerRef](o.clock, r.call)
	engineOptions := []engine.WithOptions{
		engine.WithStore(o.store),
		engine.WithTimerService(r.timers),
		engine.WithAllowedLateness(application.AllowedLateness),
		engine.WithMerging(assigner.IsMerging()),
		engine.WithClock(o.clock),
		engine.WithLogger(o.logger.Named("engine")),
		engine.WithMetrics(o.scope.SubScope("engine")),
	}
	if o.collector != nil {
		engineOptions = append(engineOptions, engine.WithCollector(o.collector))
	}
	if r.engine, err = engine.New(t, engineOptions...); err != nil {
		_ = o.store.Close()
		return nil, err
	}
	if application.Watermark.OutOfOrderness > 0 {
		r.generators = make([]*watermark.BoundedOutOfOrderness, application.Watermark.Inputs)
		for i := range r.generators {
			r.generators[i] = watermark.NewBoundedOutOfOrderness(application.Watermark.OutOfOrderness)
		}
	}
	r.timers.Start(r.engine)
	return r, nil
}

func newStore(stateConfig config.State, logger log.Logger) (state.Store, error) {
	switch stateConfig.Backend {
	case "nutsdb":
		return state.NewNutsStore(logger.Named("store"), stateConfig.Dir)
	case "memory", "":
		return state.NewMemoryStore(), nil
	default:
		return nil, errors.Errorf("unknown state backend %q", stateConfig.Backend)
	}
}

// call is the executor of the timer service; clock goroutines take the runner lock.
func (r *Runner) call(fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	fn()
}

// Process applies one event. Element errors of several windows are combined;
// elements of expired windows are counted as late and not reported.
func (r *Runner) Process(event Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return errors.New("runner already closed")
	}
	return safe.Run(func() error {
		return r.process(event)
	})
}

func (r *Runner) process(event Event) error {
	input, err := event.validate(r.combined.Inputs())
	if err != nil {
		return err
	}
	switch event.Kind {
	case ElementKind:
		return r.onElement(event, input)
	case WatermarkKind:
		r.advance(r.combined.Update(event.Timestamp, input))
	case IdleKind:
		r.advance(r.combined.MarkIdle(event.Idle, input))
	case TickKind:
		r.timers.AdvanceProcessingTime(event.Timestamp)
	}
	return nil
}

func (r *Runner) onElement(event Event, input int) error {
	r.scope.Counter("elements").Inc(1)
	var errs error
	for _, w := range r.assigner.AssignWindows(event.Timestamp) {
		err := r.arrive(event, w)
		var expired *engine.WindowExpiredError
		if errors.As(err, &expired) {
			r.scope.Counter("late_elements").Inc(1)
			continue
		}
		errs = multierr.Append(errs, err)
	}
	if r.generators != nil {
		generator := r.generators[input-1]
		generator.OnEvent(event.Timestamp)
		r.advance(r.combined.Update(generator.Current(), input))
	}
	return errs
}

func (r *Runner) arrive(event Event, w window.Window) error {
	if r.assigner.IsMerging() {
		var err error
		if w, err = r.merge(event.Key, w); err != nil {
			return err
		}
	}
	return r.engine.OnElementArrival(event.Key, w, event.Timestamp)
}

// merge folds the new window w into the active windows of key it overlaps,
// returning the window the element belongs to.
func (r *Runner) merge(key string, w window.Window) (window.Window, error) {
	var (
		active     []window.Window
		candidates = []window.Window{w}
	)
	for _, a := range r.engine.ActiveWindows(key) {
		if a.Overlaps(w) {
			active = append(active, a)
			candidates = append(candidates, a)
		}
	}
	events := window.MergeOverlapping(candidates)
	if len(events) == 0 {
		return w, nil
	}
	result := events[0].Result
	if len(active) == 1 && active[0].Equal(result) {
		return result, nil
	}
	if err := r.engine.MergeWindows(key, window.MergeEvent{Result: result, Sources: active}); err != nil {
		return window.Window{}, err
	}
	r.scope.Counter("merges").Inc(1)
	return result, nil
}

func (r *Runner) advance(current int64, changed bool) {
	if !changed {
		return
	}
	r.engine.OnWatermarkAdvance(current)
	r.timers.AdvanceWatermark(current)
	r.scope.Gauge("watermark").Update(float64(current))
}

// Watermark is the combined input watermark.
func (r *Runner) Watermark() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.combined.Current()
}

// OutputWatermark is the input watermark held back by the windows still able to fire.
func (r *Runner) OutputWatermark() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return watermark.Min(r.combined.Current(), r.engine.Hold())
}

func (r *Runner) ActiveWindows(key string) []window.Window {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.engine.ActiveWindows(key)
}

func (r *Runner) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	r.timers.Stop()
	return r.engine.Close()
}
