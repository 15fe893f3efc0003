package bps

import (
	"bytes"
	"io"

	"github.com/pkg/errors"
)

// Apply executes an opcode stream against source, reconstructing and
// returning the target. It is ApplyTo writing into an in-memory buffer.
func Apply(r OpReader, source []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := ApplyTo(r, source, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ApplyTo executes an opcode stream against source, assembling the
// reconstructed target in one buffer of the declared target size and writing
// it to sink once all operations have succeeded. Grounded on the teacher's PatchSourceFile
// switch-over-action loop: SourceRead/TargetRead/SourceCopy copy in bulk,
// TargetCopy must copy byte-by-byte so self-overlapping spans behave as RLE
// (the teacher already does this correctly — "sadly, cannot use copy for
// this, because we might be copying from areas we haven't written yet").
func ApplyTo(r OpReader, source []byte, sink io.Writer) error {
	var (
		target       []byte
		outputOffset uint64
		sourceCursor int64
		targetCursor int64
		targetSize   uint64
		haveHeaders  bool
	)

	for {
		op, err := r.Next()
		if err == errEndOfOpcodes {
			break
		}
		if err != nil {
			return err
		}

		switch op.Kind {
		case OpSourceHeader:
			if uint64(len(source)) < op.Size {
				return corrupt(ReasonSourceCursorRange, "source is %d bytes, patch expects %d", len(source), op.Size)
			}
		case OpTargetHeader:
			targetSize = op.Size
			target = make([]byte, targetSize)
			haveHeaders = true

		case OpSourceRead:
			if !haveHeaders {
				return corrupt(ReasonOutOfOrderOpcode, "SourceRead before TargetHeader")
			}
			if outputOffset+op.Span > uint64(len(source)) {
				return corrupt(ReasonSourceCursorRange, "SourceRead reads past end of source")
			}
			if outputOffset+op.Span > targetSize {
				return corrupt(ReasonOutputOverflow, "SourceRead writes past end of target")
			}
			copy(target[outputOffset:outputOffset+op.Span], source[outputOffset:outputOffset+op.Span])
			outputOffset += op.Span

		case OpTargetRead:
			if outputOffset+op.Span > targetSize {
				return corrupt(ReasonOutputOverflow, "TargetRead writes past end of target")
			}
			copy(target[outputOffset:outputOffset+op.Span], op.Payload)
			outputOffset += op.Span

		case OpSourceCopy:
			sourceCursor += op.Offset
			if sourceCursor < 0 || uint64(sourceCursor)+op.Span > uint64(len(source)) {
				return corrupt(ReasonSourceCursorRange, "SourceCopy out of range")
			}
			if outputOffset+op.Span > targetSize {
				return corrupt(ReasonOutputOverflow, "SourceCopy writes past end of target")
			}
			copy(target[outputOffset:outputOffset+op.Span], source[sourceCursor:uint64(sourceCursor)+op.Span])
			sourceCursor += int64(op.Span)
			outputOffset += op.Span

		case OpTargetCopy:
			targetCursor += op.Offset
			if targetCursor < 0 || uint64(targetCursor) >= outputOffset {
				return corrupt(ReasonTargetCursorRange, "TargetCopy out of range")
			}
			for i := uint64(0); i < op.Span; i++ {
				if outputOffset >= targetSize {
					return corrupt(ReasonOutputOverflow, "TargetCopy writes past end of target")
				}
				target[outputOffset] = target[uint64(targetCursor)]
				outputOffset++
				targetCursor++
			}

		case OpSourceCRC32, OpTargetCRC32, OpPatchCRC32:
			// Apply does not verify checksums; use Validate for that.
		}
	}

	if !haveHeaders {
		return corrupt(ReasonEarlyEOF, "stream had no TargetHeader")
	}
	if outputOffset != targetSize {
		return corrupt(ReasonOutputOverflow, "wrote %d bytes, expected %d", outputOffset, targetSize)
	}

	if _, err := sink.Write(target); err != nil {
		return errors.Wrap(err, "writing target output")
	}
	return nil
}
