package watermark

import "time"

// BoundedOutOfOrderness derives a watermark from observed event timestamps,
// assuming no element arrives more than outOfOrderness behind the latest one.
type BoundedOutOfOrderness struct {
	maxTimestamp   int64
	outOfOrderness int64
}

func (b *BoundedOutOfOrderness) OnEvent(timestamp int64) {
	b.maxTimestamp = Max(b.maxTimestamp, timestamp)
}

// Current is the watermark to emit on the next periodic emit.
func (b *BoundedOutOfOrderness) Current() int64 {
	if b.maxTimestamp == MinTimestamp {
		return MinTimestamp
	}
	return Normalize(b.maxTimestamp - b.outOfOrderness - 1)
}

func NewBoundedOutOfOrderness(outOfOrderness time.Duration) *BoundedOutOfOrderness {
	if outOfOrderness < 0 {
		panic("outOfOrderness is negative")
	}
	return &BoundedOutOfOrderness{
		maxTimestamp:   MinTimestamp,
		outOfOrderness: int64(outOfOrderness / time.Millisecond),
	}
}
