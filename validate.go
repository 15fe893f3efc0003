package bps

import (
	"hash"
	"hash/crc32"
)

// ValidatorOption configures optional source/target CRC verification.
type ValidatorOption func(*validatorOpts)

type validatorOpts struct {
	source []byte
	target []byte
}

// VerifySource asks the validator to additionally check SourceCRC32 against
// crc32.ChecksumIEEE(source).
func VerifySource(source []byte) ValidatorOption {
	return func(o *validatorOpts) { o.source = source }
}

// VerifyTarget asks the validator to additionally check TargetCRC32 against
// crc32.ChecksumIEEE(target).
func VerifyTarget(target []byte) ValidatorOption {
	return func(o *validatorOpts) { o.target = target }
}

// Validator streams opcodes through unchanged (a pass-through OpReader),
// tracking output offset, source cursor, target cursor and a rolling CRC32
// of the re-encoded patch bytes, and raises CorruptFile the moment any
// invariant from spec §3.4 is violated.
//
// A freshly produced Diff/Optimize stream carries a placeholder PatchCRC32
// (CRC == 0) — see DESIGN.md — because that value is only meaningful once
// the stream has actually been serialized by a Writer. The validator treats
// a declared patch CRC of exactly 0 as "not yet computed" and skips that one
// check, which is what lets `validate(diff(...))` succeed directly on an
// in-memory stream per spec §8.1, while still fully checking patches that
// came from Reader (parsed from real bytes).
type Validator struct {
	upstream OpReader
	opts     validatorOpts

	sourceSize uint64
	targetSize uint64

	outputOffset uint64
	spanSum      uint64
	sourceCursor int64
	targetCursor int64

	seenSourceHeader bool
	seenTargetHeader bool
	finished         bool

	patchHash hash.Hash32
}

// NewValidator wraps upstream, validating every opcode as it passes through.
func NewValidator(upstream OpReader, options ...ValidatorOption) *Validator {
	v := &Validator{upstream: upstream, patchHash: crc32.NewIEEE()}
	for _, opt := range options {
		opt(&v.opts)
	}
	return v
}

func (v *Validator) Next() (Opcode, error) {
	if v.finished {
		return Opcode{}, errEndOfOpcodes
	}

	op, err := v.upstream.Next()
	if err == errEndOfOpcodes {
		if !v.finished {
			return Opcode{}, corrupt(ReasonEarlyEOF, "stream ended before PatchCRC32")
		}
		return Opcode{}, errEndOfOpcodes
	}
	if err != nil {
		return Opcode{}, err
	}

	if err := v.check(op); err != nil {
		return Opcode{}, err
	}
	return op, nil
}

func (v *Validator) check(op Opcode) error {
	switch op.Kind {
	case OpSourceHeader:
		if v.seenSourceHeader {
			return corrupt(ReasonOutOfOrderOpcode, "duplicate SourceHeader")
		}
		v.seenSourceHeader = true
		v.sourceSize = op.Size
		v.feedHash(magic[:])
		v.feedHash(EncodeVarint(op.Size))
		return nil

	case OpTargetHeader:
		if !v.seenSourceHeader || v.seenTargetHeader {
			return corrupt(ReasonOutOfOrderOpcode, "TargetHeader out of order")
		}
		v.seenTargetHeader = true
		v.targetSize = op.Size
		v.feedHash(EncodeVarint(op.Size))
		v.feedHash(EncodeVarint(uint64(len(op.Metadata))))
		v.feedHash(op.Metadata)
		return nil

	case OpSourceRead:
		if !v.seenTargetHeader {
			return corrupt(ReasonOutOfOrderOpcode, "operation before headers")
		}
		if op.Span == 0 {
			return corrupt(ReasonZeroBytespan, "SourceRead")
		}
		if v.outputOffset+op.Span > v.sourceSize {
			return corrupt(ReasonSourceCursorRange, "SourceRead at %d span %d exceeds source size %d", v.outputOffset, op.Span, v.sourceSize)
		}
		return v.applyDataOp(op)

	case OpTargetRead:
		if !v.seenTargetHeader {
			return corrupt(ReasonOutOfOrderOpcode, "operation before headers")
		}
		if op.Span == 0 {
			return corrupt(ReasonZeroBytespan, "TargetRead")
		}
		if uint64(len(op.Payload)) != op.Span {
			return corrupt(ReasonZeroBytespan, "TargetRead payload length mismatch")
		}
		return v.applyDataOp(op)

	case OpSourceCopy:
		if !v.seenTargetHeader {
			return corrupt(ReasonOutOfOrderOpcode, "operation before headers")
		}
		if op.Span == 0 {
			return corrupt(ReasonZeroBytespan, "SourceCopy")
		}
		cursor := v.sourceCursor + op.Offset
		if cursor < 0 || uint64(cursor)+op.Span > v.sourceSize {
			return corrupt(ReasonSourceCursorRange, "SourceCopy cursor %d span %d exceeds source size %d", cursor, op.Span, v.sourceSize)
		}
		v.sourceCursor = cursor + int64(op.Span)
		return v.applyDataOp(op)

	case OpTargetCopy:
		if !v.seenTargetHeader {
			return corrupt(ReasonOutOfOrderOpcode, "operation before headers")
		}
		if op.Span == 0 {
			return corrupt(ReasonZeroBytespan, "TargetCopy")
		}
		cursor := v.targetCursor + op.Offset
		if cursor < 0 || uint64(cursor) >= v.outputOffset {
			return corrupt(ReasonTargetCursorRange, "TargetCopy cursor %d must be < current output offset %d", cursor, v.outputOffset)
		}
		v.targetCursor = cursor + int64(op.Span)
		return v.applyDataOp(op)

	case OpSourceCRC32:
		if v.spanSum != v.targetSize {
			return corrupt(ReasonOutputOverflow, "bytespan sum %d != declared target size %d", v.spanSum, v.targetSize)
		}
		if v.opts.source != nil {
			want := crc32.ChecksumIEEE(v.opts.source)
			if want != op.CRC {
				return corrupt(ReasonCRCMismatchSource, "")
			}
		}
		v.feedHash(encodeCRC(op.CRC))
		return nil

	case OpTargetCRC32:
		if v.opts.target != nil {
			want := crc32.ChecksumIEEE(v.opts.target)
			if want != op.CRC {
				return corrupt(ReasonCRCMismatchTarget, "")
			}
		}
		v.feedHash(encodeCRC(op.CRC))
		return nil

	case OpPatchCRC32:
		if op.CRC != 0 && op.CRC != v.patchHash.Sum32() {
			return corrupt(ReasonCRCMismatchPatch, "")
		}
		v.finished = true
		return nil

	default:
		return corrupt(ReasonUnknownOpcode, "%v", op.Kind)
	}
}

func (v *Validator) applyDataOp(op Opcode) error {
	b, err := encodeOpcode(op)
	if err != nil {
		return err
	}
	v.feedHash(b)
	v.outputOffset += op.Span
	v.spanSum += op.Span
	if v.outputOffset > v.targetSize {
		return corrupt(ReasonOutputOverflow, "output offset %d exceeds target size %d", v.outputOffset, v.targetSize)
	}
	return nil
}

func (v *Validator) feedHash(b []byte) {
	_, _ = v.patchHash.Write(b)
}

// Validate drains r through a Validator (discarding the pass-through
// opcodes) purely to surface the first violation, if any.
func Validate(r OpReader, options ...ValidatorOption) error {
	v := NewValidator(r, options...)
	_, err := ReadAll(v)
	return err
}
