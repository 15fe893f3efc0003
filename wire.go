package bps

import "encoding/binary"

var magic = [4]byte{'B', 'P', 'S', '1'}

// encodeOpcode serializes one of the four data operations to its wire
// bytes: one varint header (bytespan-1, low two bits = op code) followed by
// the operation's extra fields (spec §3.3).
func encodeOpcode(op Opcode) ([]byte, error) {
	if !op.Kind.IsDataOp() {
		return nil, corrupt(ReasonUnknownOpcode, "encodeOpcode called with %s", op.Kind)
	}
	if op.Span == 0 {
		return nil, corrupt(ReasonZeroBytespan, "%s has zero bytespan", op.Kind)
	}

	header := (op.Span-1)<<2 | wireFromOpKind(op.Kind)
	buf := EncodeVarint(header)

	switch op.Kind {
	case OpTargetRead:
		if uint64(len(op.Payload)) != op.Span {
			return nil, corrupt(ReasonZeroBytespan, "TargetRead payload length %d != bytespan %d", len(op.Payload), op.Span)
		}
		buf = append(buf, op.Payload...)
	case OpSourceCopy, OpTargetCopy:
		buf = append(buf, EncodeSignedOffset(op.Offset)...)
	}

	return buf, nil
}

func encodeCRC(crc uint32) []byte {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], crc)
	return b[:]
}

func decodeCRC(b []byte) (uint32, error) {
	if len(b) < 4 {
		return 0, corrupt(ReasonEarlyEOF, "truncated CRC32 field")
	}
	return binary.LittleEndian.Uint32(b[:4]), nil
}
