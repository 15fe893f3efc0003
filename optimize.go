package bps

// Optimize rewrites an opcode stream into an equivalent, no-larger one per
// spec §4.6: merging adjacent same-kind runs, re-targeting relative offsets,
// and absorbing single-source-byte SourceReads into adjacent SourceCopys
// when that does not grow the encoding. It does not attempt the cross-kind
// rewrites spec §9's open question leaves unresolved (e.g. turning a short
// SourceCopy into a SourceRead) — conservative re-implementations should
// not, per the spec's own guidance.
//
// SourceCRC32/TargetCRC32 pass through unchanged (source and target bytes
// never change). PatchCRC32 is reset to the placeholder value 0: the
// serialized bytes generally did change (that is the point of optimizing),
// so any PatchCRC32 carried on the input is stale the moment an operation is
// merged — a Writer recomputes it from scratch regardless, and a Validator
// treats 0 as "not yet computed" (see DESIGN.md).
func Optimize(r OpReader) OpReader {
	ops, err := ReadAll(r)
	if err != nil {
		return errorReader{err}
	}

	var sourceHeader, targetHeader, sourceCRC, targetCRC Opcode
	for _, op := range ops {
		switch op.Kind {
		case OpSourceHeader:
			sourceHeader = op
		case OpTargetHeader:
			targetHeader = op
		case OpSourceCRC32:
			sourceCRC = op
		case OpTargetCRC32:
			targetCRC = op
		}
	}

	annotated := annotateAbsolute(ops)
	merged := mergeAdjacent(annotated)
	finalized := finalizeDeltas(merged)

	out := make([]Opcode, 0, len(finalized)+5)
	out = append(out, sourceHeader, targetHeader)
	out = append(out, finalized...)
	out = append(out, sourceCRC, targetCRC, Opcode{Kind: OpPatchCRC32, CRC: 0})

	return NewSliceReader(out)
}

// errorReader is an OpReader that always fails with the same error, used to
// surface a ReadAll failure through the OpReader interface Optimize returns.
type errorReader struct{ err error }

func (e errorReader) Next() (Opcode, error) { return Opcode{}, e.err }

// optOp is an internal, absolute-position annotated representation of one
// data opcode, used only inside the optimizer's merge/re-delta passes.
type optOp struct {
	kind     OpKind
	span     uint64
	payload  []byte
	absStart int64 // absolute position in the relevant origin array
}

// annotateAbsolute walks ops (as a real decoder would) converting every
// relative SourceCopy/TargetCopy offset into the absolute position it
// resolves to, and drops degenerate zero-span operations (spec rule 1).
func annotateAbsolute(ops []Opcode) []optOp {
	var out []optOp
	var outputOffset uint64
	var sourceCursor, targetCursor int64

	for _, op := range ops {
		switch op.Kind {
		case OpSourceRead:
			if op.Span == 0 {
				continue
			}
			out = append(out, optOp{kind: op.Kind, span: op.Span, absStart: int64(outputOffset)})
			outputOffset += op.Span

		case OpTargetRead:
			if op.Span == 0 {
				continue
			}
			out = append(out, optOp{kind: op.Kind, span: op.Span, payload: append([]byte(nil), op.Payload...)})
			outputOffset += op.Span

		case OpSourceCopy:
			if op.Span == 0 {
				continue
			}
			sourceCursor += op.Offset
			out = append(out, optOp{kind: op.Kind, span: op.Span, absStart: sourceCursor})
			sourceCursor += int64(op.Span)
			outputOffset += op.Span

		case OpTargetCopy:
			if op.Span == 0 {
				continue
			}
			targetCursor += op.Offset
			out = append(out, optOp{kind: op.Kind, span: op.Span, absStart: targetCursor})
			targetCursor += int64(op.Span)
			outputOffset += op.Span
		}
	}
	return out
}

// mergeAdjacent coalesces adjacent same-kind runs (spec rule 2): TargetReads
// and SourceReads always merge; SourceCopy/TargetCopy pairs merge only when
// the second picks up exactly where the first's cursor left off.
func mergeAdjacent(in []optOp) []optOp {
	out := make([]optOp, 0, len(in))
	for _, op := range in {
		if n := len(out); n > 0 {
			last := &out[n-1]
			if last.kind == op.kind {
				switch op.kind {
				case OpTargetRead:
					last.payload = append(last.payload, op.payload...)
					last.span += op.span
					continue
				case OpSourceRead:
					last.span += op.span
					continue
				case OpSourceCopy, OpTargetCopy:
					if last.absStart+int64(last.span) == op.absStart {
						last.span += op.span
						continue
					}
				}
			}
		}
		out = append(out, op)
	}
	return out
}

// finalizeDeltas re-targets every SourceCopy/TargetCopy's relative offset
// against the new preceding copy of the same kind (spec rule 3), and applies
// rule 4's single-source-byte-SourceRead absorption where it provably does
// not increase the encoded size.
func finalizeDeltas(ops []optOp) []Opcode {
	out := make([]Opcode, 0, len(ops))
	var lastSourceCopyEnd, lastTargetCopyEnd int64

	i := 0
	for i < len(ops) {
		op := ops[i]

		if op.kind == OpSourceRead && op.span == 1 && i+1 < len(ops) &&
			ops[i+1].kind == OpSourceCopy && op.absStart+1 == ops[i+1].absStart {
			nxt := ops[i+1]
			beforeCost := varintHeaderLen(op.span) + varintHeaderLen(nxt.span) +
				varintOffsetLen(nxt.absStart-lastSourceCopyEnd)
			mergedSpan := op.span + nxt.span
			mergedDelta := op.absStart - lastSourceCopyEnd
			afterCost := varintHeaderLen(mergedSpan) + varintOffsetLen(mergedDelta)

			if afterCost <= beforeCost {
				out = append(out, Opcode{Kind: OpSourceCopy, Span: mergedSpan, Offset: mergedDelta})
				lastSourceCopyEnd = op.absStart + int64(mergedSpan)
				i += 2
				continue
			}
		}

		switch op.kind {
		case OpSourceRead:
			out = append(out, Opcode{Kind: OpSourceRead, Span: op.span})
		case OpTargetRead:
			out = append(out, Opcode{Kind: OpTargetRead, Span: op.span, Payload: op.payload})
		case OpSourceCopy:
			delta := op.absStart - lastSourceCopyEnd
			out = append(out, Opcode{Kind: OpSourceCopy, Span: op.span, Offset: delta})
			lastSourceCopyEnd = op.absStart + int64(op.span)
		case OpTargetCopy:
			delta := op.absStart - lastTargetCopyEnd
			out = append(out, Opcode{Kind: OpTargetCopy, Span: op.span, Offset: delta})
			lastTargetCopyEnd = op.absStart + int64(op.span)
		}
		i++
	}
	return out
}

func varintHeaderLen(span uint64) int {
	return len(EncodeVarint((span - 1) << 2))
}

func varintOffsetLen(delta int64) int {
	return len(EncodeSignedOffset(delta))
}
