package host

import (
	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"github.com/uber-go/tally/v4"

	"github.com/RuiFG/streaming-trigger/engine"
	"github.com/RuiFG/streaming-trigger/log"
	"github.com/RuiFG/streaming-trigger/state"
)

type options struct {
	store     state.Store
	collector engine.Collector
	clock     clock.Clock
	logger    log.Logger
	scope     tally.Scope
}

type WithOptions func(opts *options) error

// WithStore overrides the store selected by the state config.
func WithStore(store state.Store) WithOptions {
	return func(opts *options) error {
		if store == nil {
			return errors.Errorf("store can't be nil")
		}
		opts.store = store
		return nil
	}
}

func WithCollector(collector engine.Collector) WithOptions {
	return func(opts *options) error {
		if collector == nil {
			return errors.Errorf("collector can't be nil")
		}
		opts.collector = collector
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
			return errors.Errorf("scope can't be nil")
		}
		opts.scope = scope
		return nil
	}
}
