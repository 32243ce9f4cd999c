package trigger

import (
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Spec is the configuration form of a trigger tree.
//
//	trigger:
//	  kind: or_finally
//	  triggers:
//	    - kind: repeatedly
//	      triggers: [{kind: after_pane, count: 5}]
//	    - kind: after_watermark
//	      anchor: end
type Spec struct {
	Kind     string        `mapstructure:"kind"`
	Anchor   string        `mapstructure:"anchor"`
	Offset   time.Duration `mapstructure:"offset"`
	Delay    time.Duration `mapstructure:"delay"`
	Count    int64         `mapstructure:"count"`
	Triggers []Spec        `mapstructure:"triggers"`
}

// Build turns the spec into a trigger, reporting invalid trees as errors.
func (s Spec) Build() (t Trigger, err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = errors.WithMessagef(e, "build trigger %q", s.Kind)
			} else {
				err = errors.Errorf("build trigger %q: %v", s.Kind, r)
			}
		}
	}()
	return s.build()
}

func (s Spec) build() (Trigger, error) {
	subs := make([]Trigger, len(s.Triggers))
	for i, sub := range s.Triggers {
		t, err := sub.build()
		if err != nil {
			return nil, err
		}
		subs[i] = t
	}
	switch strings.ToLower(s.Kind) {
	case "never":
		return Never(), nil
	case "after_watermark", "":
		anchor, err := parseAnchor(s.Anchor)
		if err != nil {
			return nil, err
		}
		return AfterWatermark(Deadline{Anchor: anchor, Offset: s.Offset}), nil
	case "after_processing_time":
		return AfterProcessingTime(s.Delay), nil
	case "after_pane":
		return AfterPane(s.Count), nil
	case "repeatedly":
		if len(subs) != 1 {
			return nil, errors.Errorf("repeatedly needs exactly one sub-trigger, got %d", len(subs))
		}
		return Repeatedly(subs[0]), nil
	case "after_first":
		return AfterFirst(subs...), nil
	case "after_all":
		return AfterAll(subs...), nil
	case "after_each":
		return AfterEach(subs...), nil
	case "or_finally":
		if len(subs) != 2 {
			return nil, errors.Errorf("or_finally needs a main and an until trigger, got %d", len(subs))
		}
		return OrFinally(subs[0], subs[1]), nil
	default:
		return nil, errors.Errorf("unknown trigger kind %q", s.Kind)
	}
}

func parseAnchor(anchor string) (Anchor, error) {
	switch strings.ToLower(anchor) {
	case "", "end":
		return EndOfWindow, nil
	case "max", "max_timestamp":
		return MaxTimestampOfWindow, nil
	case "start":
		return StartOfWindow, nil
	default:
		return 0, errors.Errorf("unknown deadline anchor %q", anchor)
	}
}
