package host

import (
	"github.com/pkg/errors"
)

type Kind string

const (
	ElementKind   Kind = "element"
	WatermarkKind Kind = "watermark"
	IdleKind      Kind = "idle"
	TickKind      Kind = "tick"
)

// Event is one line of the event log. Timestamps are epoch milliseconds; for
// a tick it is the processing time, for every other kind the event time.
type Event struct {
	Kind      Kind   `json:"kind"`
	Key       string `json:"key,omitempty"`
	Timestamp int64  `json:"timestamp"`
	// Input is the 1-based watermark input, 0 meaning the first one.
	Input int  `json:"input,omitempty"`
	Idle  bool `json:"idle,omitempty"`
}

func (e Event) validate(inputs int) (int, error) {
	switch e.Kind {
	case ElementKind, WatermarkKind, IdleKind, TickKind:
	default:
		return 0, errors.Errorf("unknown event kind %q", e.Kind)
	}
	input := e.Input
	if input == 0 {
		input = 1
	}
	if input < 0 || input > inputs {
		return 0, errors.Errorf("input %d out of range [1, %d]", e.Input, inputs)
	}
	return input, nil
}
