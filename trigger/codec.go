package trigger

import (
	"github.com/pkg/errors"
	"google.golang.org/protobuf/encoding/protowire"
)

const (
	cellFinished   protowire.Number = 1
	cellCount      protowire.Number = 2
	cellIndex      protowire.Number = 3
	cellTimerSet   protowire.Number = 4
	cellFiringTime protowire.Number = 5
	cellExpired    protowire.Number = 6
)

// MarshalCell encodes cell in protobuf wire format. Zero fields are omitted,
// so the zero Cell encodes to an empty slice.
func MarshalCell(cell Cell) []byte {
	var b []byte
	b = appendBool(b, cellFinished, cell.Finished)
	b = appendSint(b, cellCount, cell.Count)
	b = appendSint(b, cellIndex, cell.Index)
	b = appendBool(b, cellTimerSet, cell.TimerSet)
	b = appendSint(b, cellFiringTime, cell.FiringTime)
	b = appendBool(b, cellExpired, cell.Expired)
	return b
}

// UnmarshalCell decodes a cell written by MarshalCell. Unknown fields are skipped.
func UnmarshalCell(b []byte) (Cell, error) {
	var cell Cell
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return Cell{}, errors.WithMessage(protowire.ParseError(n), "decode cell tag")
		}
		b = b[n:]
		if typ != protowire.VarintType {
			if n = protowire.ConsumeFieldValue(num, typ, b); n < 0 {
				return Cell{}, errors.WithMessagef(protowire.ParseError(n), "skip cell field %d", num)
			}
			b = b[n:]
			continue
		}
		v, n := protowire.ConsumeVarint(b)
		if n < 0 {
			return Cell{}, errors.WithMessagef(protowire.ParseError(n), "decode cell field %d", num)
		}
		b = b[n:]
		switch num {
		case cellFinished:
			cell.Finished = protowire.DecodeBool(v)
		case cellCount:
			cell.Count = protowire.DecodeZigZag(v)
		case cellIndex:
			cell.Index = protowire.DecodeZigZag(v)
		case cellTimerSet:
			cell.TimerSet = protowire.DecodeBool(v)
		case cellFiringTime:
			cell.FiringTime = protowire.DecodeZigZag(v)
		case cellExpired:
			cell.Expired = protowire.DecodeBool(v)
		}
	}
	return cell, nil
}

func appendBool(b []byte, num protowire.Number, v bool) []byte {
	if !v {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, protowire.EncodeBool(v))
}

func appendSint(b []byte, num protowire.Number, v int64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, protowire.EncodeZigZag(v))
}
