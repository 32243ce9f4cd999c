package trigger

import (
	"time"

	"github.com/RuiFG/streaming-trigger/watermark"
	"github.com/RuiFG/streaming-trigger/window"
)

// RequiredWatermarkHold is the event time before which the output watermark
// of w must be held so that a firing driven by t is not late.
// watermark.MaxTimestamp means no hold is needed.
func RequiredWatermarkHold(t Trigger, w window.Window) int64 {
	return t.WatermarkThatGuaranteesFiring(w)
}

// CleanupTime is the watermark at which the state of w is garbage collected.
func CleanupTime(t Trigger, w window.Window, allowedLateness time.Duration) int64 {
	deadline := w.MaxTimestamp()
	if bound := latestBound(t, w); bound < watermark.MaxTimestamp {
		deadline = watermark.Max(deadline, bound)
	}
	return watermark.Add(deadline, allowedLateness)
}

// latestBound is the latest finite watermark bound of any node of t. A
// combinator keeps running after its first firing, so a later step or child
// may still fire from the watermark up to this point.
func latestBound(t Trigger, w window.Window) int64 {
	latest, found := watermark.MinTimestamp, false
	if bound := t.WatermarkThatGuaranteesFiring(w); bound < watermark.MaxTimestamp {
		latest, found = bound, true
	}
	for _, sub := range t.subTriggers() {
		if bound := latestBound(sub, w); bound < watermark.MaxTimestamp {
			latest, found = watermark.Max(latest, bound), true
		}
	}
	if !found {
		return watermark.MaxTimestamp
	}
	return latest
}
