package engine

import (
	"github.com/pkg/errors"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/RuiFG/streaming-trigger/trigger"
)

type timerEntry struct {
	ID        string
	Domain    trigger.TimeDomain
	Timestamp int64
}

// windowRecord is the engine bookkeeping of one key and window.
type windowRecord struct {
	PaneIndex     int64
	OnTimeEmitted bool
	// Pending counts the elements since the last pane.
	Pending int64
	// Merged windows are governed by the continuation trigger.
	Merged bool
	// Closed windows drop elements until they are garbage collected.
	Closed bool
	Timers []timerEntry
}

func (r *windowRecord) timer(id string) (timerEntry, bool) {
	for _, entry := range r.Timers {
		if entry.ID == id {
			return entry, true
		}
	}
	return timerEntry{}, false
}

func (r *windowRecord) putTimer(entry timerEntry) {
	for i := range r.Timers {
		if r.Timers[i].ID == entry.ID {
			r.Timers[i] = entry
			return
		}
	}
	r.Timers = append(r.Timers, entry)
}

func (r *windowRecord) removeTimer(id string) {
	for i := range r.Timers {
		if r.Timers[i].ID == id {
			r.Timers = append(r.Timers[:i], r.Timers[i+1:]...)
			return
		}
	}
}

func (r *windowRecord) absorb(other *windowRecord) {
	if other.PaneIndex > r.PaneIndex {
		r.PaneIndex = other.PaneIndex
	}
	r.OnTimeEmitted = r.OnTimeEmitted || other.OnTimeEmitted
	r.Pending += other.Pending
}

const (
	recordPaneIndex protowire.Number = 1
	recordOnTime    protowire.Number = 2
	recordPending   protowire.Number = 3
	recordMerged    protowire.Number = 4
	recordClosed    protowire.Number = 5
	recordTimer     protowire.Number = 6

	timerID        protowire.Number = 1
	timerDomain    protowire.Number = 2
	timerTimestamp protowire.Number = 3
)

func marshalRecord(r *windowRecord) []byte {
	var b []byte
	b = appendVarint(b, recordPaneIndex, uint64(r.PaneIndex))
	b = appendVarint(b, recordOnTime, protowire.EncodeBool(r.OnTimeEmitted))
	b = appendVarint(b, recordPending, uint64(r.Pending))
	b = appendVarint(b, recordMerged, protowire.EncodeBool(r.Merged))
	b = appendVarint(b, recordClosed, protowire.EncodeBool(r.Closed))
	for _, entry := range r.Timers {
		var t []byte
		t = protowire.AppendTag(t, timerID, protowire.BytesType)
		t = protowire.AppendString(t, entry.ID)
		t = appendVarint(t, timerDomain, uint64(entry.Domain))
		t = protowire.AppendTag(t, timerTimestamp, protowire.VarintType)
		t = protowire.AppendVarint(t, protowire.EncodeZigZag(entry.Timestamp))
		b = protowire.AppendTag(b, recordTimer, protowire.BytesType)
		b = protowire.AppendBytes(b, t)
	}
	return b
}

func appendVarint(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func unmarshalRecord(b []byte) (*windowRecord, error) {
	r := &windowRecord{}
	err := consumeFields(b, func(num protowire.Number, v uint64, bytes []byte) error {
		switch num {
		case recordPaneIndex:
			r.PaneIndex = int64(v)
		case recordOnTime:
			r.OnTimeEmitted = protowire.DecodeBool(v)
		case recordPending:
			r.Pending = int64(v)
		case recordMerged:
			r.Merged = protowire.DecodeBool(v)
		case recordClosed:
			r.Closed = protowire.DecodeBool(v)
		case recordTimer:
			entry, err := unmarshalTimer(bytes)
			if err != nil {
				return err
			}
			r.Timers = append(r.Timers, entry)
		}
		return nil
	})
	if err != nil {
		return nil, errors.WithMessage(err, "decode window record")
	}
	return r, nil
}

func unmarshalTimer(b []byte) (timerEntry, error) {
	var entry timerEntry
	err := consumeFields(b, func(num protowire.Number, v uint64, bytes []byte) error {
		switch num {
		case timerID:
			entry.ID = string(bytes)
		case timerDomain:
			entry.Domain = trigger.TimeDomain(v)
		case timerTimestamp:
			entry.Timestamp = protowire.DecodeZigZag(v)
		}
		return nil
	})
	if err == nil && entry.ID == "" {
		err = errors.New("timer without id")
	}
	return entry, errors.WithMessage(err, "decode timer")
}

// consumeFields walks varint and length-delimited fields, skipping others.
func consumeFields(b []byte, fn func(num protowire.Number, v uint64, bytes []byte) error) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]
		var (
			v     uint64
			bytes []byte
		)
		switch typ {
		case protowire.VarintType:
			v, n = protowire.ConsumeVarint(b)
		case protowire.BytesType:
			bytes, n = protowire.ConsumeBytes(b)
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n >= 0 {
				b = b[n:]
				continue
			}
		}
		if n < 0 {
			return errors.WithMessagef(protowire.ParseError(n), "field %d", num)
		}
		b = b[n:]
		if err := fn(num, v, bytes); err != nil {
			return err
		}
	}
	return nil
}
