package engine

import (
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"github.com/uber-go/tally/v4"

	"github.com/RuiFG/streaming-trigger/log"
	"github.com/RuiFG/streaming-trigger/state"
)

type options struct {
	store           state.Store
	timers          TimerService
	collector       Collector
	allowedLateness time.Duration
	merging         bool
	clock           clock.Clock
	logger          log.Logger
	scope           tally.Scope
}

type WithOptions func(opts *options) error

func WithStore(store state.Store) WithOptions {
	return func(opts *options) error {
		if store == nil {
			return errors.Errorf("store can't be nil")
		}
		opts.store = store
		return nil
	}
}

// WithTimerService hands timer scheduling to the host, which then delivers
// expired timers through OnTimerExpiry. Without it the engine schedules its
// own timers and fires event-time ones from OnWatermarkAdvance.
func WithTimerService(timers TimerService) WithOptions {
	return func(opts *options) error {
		if timers == nil {
			return errors.Errorf("timer service can't be nil")
		}
		opts.timers = timers
		return nil
	}
}

func WithCollector(collector Collector) WithOptions {
	return func(opts *options) error {
		if collector == nil {
			return errors.Errorf("collector can't be nil")
		}
		opts.collector = collector
		return nil
	}
}

func WithAllowedLateness(allowedLateness time.Duration) WithOptions {
	return func(opts *options) error {
		if allowedLateness < 0 {
			return errors.Errorf("allowedLateness can't less than 0")
		}
		opts.allowedLateness = allowedLateness
		return nil
	}
}

func WithMerging(merging bool) WithOptions {
	return func(opts *options) error {
		opts.merging = merging
		return nil
	}
}

func WithClock(clk clock.Clock) WithOptions {
	return func(opts *options) error {
		if clk == nil {
			return errors.Errorf("clock can't be nil")
		}
		opts.clock = clk
		return nil
	}
}

func WithLogger(logger log.Logger) WithOptions {
	return func(opts *options) error {
		if logger == nil {
			return errors.Errorf("logger can't be nil")
		}
		opts.logger = logger
		return nil
	}
}

func WithMetrics(scope tally.Scope) WithOptions {
	return func(opts *options) error {
		if scope == nil {
			return errors.Errorf("metrics scope can't be nil")
		}
		opts.scope = scope
		return nil
	}
}
