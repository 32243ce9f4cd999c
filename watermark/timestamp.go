package watermark

import (
	"math"
	"strconv"
	"time"
)

const (
	// MinTimestamp is the smallest representable event time, "-infinity".
	MinTimestamp int64 = math.MinInt64 / 1000
	// MaxTimestamp is the largest representable event time, "+infinity".
	// A watermark at MaxTimestamp means no more elements will ever arrive,
	// and a trigger bound of MaxTimestamp means the trigger never pins the watermark.
	MaxTimestamp int64 = math.MaxInt64 / 1000
	// EndOfGlobalWindow is the max timestamp of the global window, a day before MaxTimestamp
	// so that the global window can still be closed by a final watermark.
	EndOfGlobalWindow = MaxTimestamp - int64(24*time.Hour/time.Millisecond)
)

// Normalize clamps timestamp into [MinTimestamp, MaxTimestamp].
func Normalize(timestamp int64) int64 {
	if timestamp < MinTimestamp {
		return MinTimestamp
	}
	if timestamp > MaxTimestamp {
		return MaxTimestamp
	}
	return timestamp
}

// Add returns timestamp+d in milliseconds, saturating at the representable bounds.
func Add(timestamp int64, d time.Duration) int64 {
	delta := int64(d / time.Millisecond)
	if delta > 0 && timestamp > MaxTimestamp-delta {
		return MaxTimestamp
	}
	if delta < 0 && timestamp < MinTimestamp-delta {
		return MinTimestamp
	}
	return Normalize(timestamp + delta)
}

func Min(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}

func Max(a, b int64) int64 {
	if a < b {
		return b
	}
	return a
}

// Format renders a timestamp, naming the sentinels.
func Format(timestamp int64) string {
	switch timestamp {
	case MinTimestamp:
		return "-inf"
	case MaxTimestamp:
		return "+inf"
	case EndOfGlobalWindow:
		return "glo"
	default:
		return strconv.FormatInt(timestamp, 10)
	}
}
