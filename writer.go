package bps

import (
	"hash"
	"hash/crc32"
	"io"

	"github.com/pkg/errors"
)

// Writer is the inverse of Reader: it consumes an Opcode stream and
// serializes it to w, maintaining a running CRC32 over every byte written so
// far. When it receives the PatchCRC32 pseudo-op it ignores the value on the
// opcode and writes the running CRC instead, per spec §4.2 — callers may pass
// a placeholder (CRC: 0) for PatchCRC32 and the writer will fill in the
// correct value.
type Writer struct {
	w     io.Writer
	hash  hash.Hash32
	state readerState
}

// NewWriter returns a Writer that serializes opcodes to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w, hash: crc32.NewIEEE()}
}

func (wr *Writer) emit(b []byte) error {
	if _, err := wr.hash.Write(b); err != nil {
		return err
	}
	_, err := wr.w.Write(b)
	return err
}

func (wr *Writer) Write(op Opcode) error {
	switch wr.state {
	case stateExpectSourceHeader:
		if op.Kind != OpSourceHeader {
			return corrupt(ReasonOutOfOrderOpcode, "expected SourceHeader, got %s", op.Kind)
		}
		if err := wr.emit(magic[:]); err != nil {
			return errors.Wrap(err, "writing magic")
		}
		if err := wr.emit(EncodeVarint(op.Size)); err != nil {
			return errors.Wrap(err, "writing source size")
		}
		wr.state = stateExpectTargetHeader
		return nil

	case stateExpectTargetHeader:
		if op.Kind != OpTargetHeader {
			return corrupt(ReasonOutOfOrderOpcode, "expected TargetHeader, got %s", op.Kind)
		}
		if err := wr.emit(EncodeVarint(op.Size)); err != nil {
			return errors.Wrap(err, "writing target size")
		}
		if err := wr.emit(EncodeVarint(uint64(len(op.Metadata)))); err != nil {
			return errors.Wrap(err, "writing metadata length")
		}
		if err := wr.emit(op.Metadata); err != nil {
			return errors.Wrap(err, "writing metadata")
		}
		wr.state = stateExpectOpOrTrailer
		return nil

	case stateExpectOpOrTrailer:
		if op.Kind == OpSourceCRC32 {
			return wr.writeCRC(op.CRC, stateExpectTargetCRC)
		}
		b, err := encodeOpcode(op)
		if err != nil {
			return err
		}
		return wr.emit(b)

	case stateExpectTargetCRC:
		if op.Kind != OpTargetCRC32 {
			return corrupt(ReasonOutOfOrderOpcode, "expected TargetCRC32, got %s", op.Kind)
		}
		return wr.writeCRC(op.CRC, stateExpectPatchCRC)

	case stateExpectPatchCRC:
		if op.Kind != OpPatchCRC32 {
			return corrupt(ReasonOutOfOrderOpcode, "expected PatchCRC32, got %s", op.Kind)
		}
		// The running hash covers every byte written so far, which is
		// exactly "every byte of the patch preceding this field" per
		// spec §3.2 — ignore the caller-supplied value.
		running := wr.hash.Sum32()
		if _, err := wr.w.Write(encodeCRC(running)); err != nil {
			return err
		}
		wr.state = stateDone
		return nil

	default:
		return corrupt(ReasonOutOfOrderOpcode, "writer already finished")
	}
}

func (wr *Writer) writeCRC(crc uint32, next readerState) error {
	if err := wr.emit(encodeCRC(crc)); err != nil {
		return err
	}
	wr.state = next
	return nil
}

// WritePatch drains r into w via a Writer, returning any error either side
// raises.
func WritePatch(r OpReader, w io.Writer) error {
	wr := NewWriter(w)
	for {
		op, err := r.Next()
		if err == errEndOfOpcodes {
			return nil
		}
		if err != nil {
			return err
		}
		if err := wr.Write(op); err != nil {
			return err
		}
	}
}

// ReadPatch parses r into a slice of opcodes (convenience wrapper around
// Reader + ReadAll for callers that want random access rather than a
// pull-driven iterator).
func ReadPatch(r io.Reader) ([]Opcode, error) {
	reader, err := NewReader(r)
	if err != nil {
		return nil, err
	}
	return ReadAll(reader)
}
