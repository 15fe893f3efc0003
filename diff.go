package bps

import (
	"errors"
	"hash/crc32"
)

// ErrInvalidBlockSize is returned by Diff when blocksize < 1. Per spec §7
// this is a caller-parameter error, not a CorruptFile: the diff engine never
// fails on input content, only on a pathological parameter.
var ErrInvalidBlockSize = errors.New("bps: blocksize must be >= 1")

// DefaultBlockSize implements the size-based heuristic default spec §4.5
// suggests as a separate helper (the open question in spec §9 resolved by
// exposing blocksize explicitly and keeping the heuristic apart from it).
func DefaultBlockSize(sourceLen, targetLen int) int {
	bs := (sourceLen+targetLen)/1_000_000 + 1
	if bs < 1 {
		bs = 1
	}
	return bs
}

// Diff computes an opcode stream transforming source into target, using
// blockwise rolling-hash matching plus greedy extension (spec §4.5). The
// trailing PatchCRC32 is emitted as a placeholder (CRC 0); a Writer fills in
// the real value when the stream is serialized.
func Diff(blocksize int, source, target []byte) (OpReader, error) {
	return DiffMetadata(blocksize, source, target, nil)
}

// DiffMetadata is Diff with an opaque metadata blob carried in TargetHeader.
func DiffMetadata(blocksize int, source, target, metadata []byte) (OpReader, error) {
	if blocksize < 1 {
		return nil, ErrInvalidBlockSize
	}

	sourceBlocks := buildBlockMap(source, blocksize)
	targetBlocks := buildBlockMap(target, blocksize)

	ops := make([]Opcode, 0, len(target)/max(blocksize, 1)+4)
	ops = append(ops, Opcode{Kind: OpSourceHeader, Size: uint64(len(source))})
	ops = append(ops, Opcode{Kind: OpTargetHeader, Size: uint64(len(target)), Metadata: metadata})

	var lastSourceCopyEnd, lastTargetCopyEnd, pendingStart int

	w := 0
	for w < len(target) {
		best, ok := bestCandidate(w, source, target, sourceBlocks, targetBlocks, blocksize, lastSourceCopyEnd, lastTargetCopyEnd, pendingStart)
		if !ok || best.right == 0 {
			w++
			continue
		}

		literalEnd := w - best.left
		if literalEnd > pendingStart {
			ops = append(ops, Opcode{
				Kind:    OpTargetRead,
				Span:    uint64(literalEnd - pendingStart),
				Payload: append([]byte(nil), target[pendingStart:literalEnd]...),
			})
		}

		absStart := best.pos - best.left
		span := best.span()

		switch {
		case best.origin == originSource && absStart == literalEnd:
			// SourceRead is implicitly "read source at the current output
			// offset" — strictly cheaper than SourceCopy(offset 0) since it
			// carries no offset field at all.
			ops = append(ops, Opcode{Kind: OpSourceRead, Span: uint64(span)})
		case best.origin == originSource:
			delta := int64(absStart - lastSourceCopyEnd)
			ops = append(ops, Opcode{Kind: OpSourceCopy, Span: uint64(span), Offset: delta})
			lastSourceCopyEnd = absStart + span
		default:
			delta := int64(absStart - lastTargetCopyEnd)
			ops = append(ops, Opcode{Kind: OpTargetCopy, Span: uint64(span), Offset: delta})
			lastTargetCopyEnd = absStart + span
		}

		w += best.right
		pendingStart = w
	}

	if pendingStart < len(target) {
		ops = append(ops, Opcode{
			Kind:    OpTargetRead,
			Span:    uint64(len(target) - pendingStart),
			Payload: append([]byte(nil), target[pendingStart:]...),
		})
	}

	ops = append(ops, Opcode{Kind: OpSourceCRC32, CRC: crc32.ChecksumIEEE(source)})
	ops = append(ops, Opcode{Kind: OpTargetCRC32, CRC: crc32.ChecksumIEEE(target)})
	ops = append(ops, Opcode{Kind: OpPatchCRC32, CRC: 0})

	return NewSliceReader(ops), nil
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// matchOrigin distinguishes a candidate copy's byte source.
type matchOrigin uint8

const (
	originSource matchOrigin = iota
	originTarget
)

// candidate is one block-hash hit, extended as far as possible in both
// directions from the anchor position.
type candidate struct {
	origin matchOrigin
	pos    int // anchor position in the origin array
	left   int // extension backwards from pos (and from w in target)
	right  int // extension forwards from pos (and from w in target)
}

func (c candidate) span() int { return c.left + c.right }

// buildBlockMap indexes every blocksize-length window of data whose start is
// a multiple of blocksize (spec §4.5's "block-map construction"). Tail bytes
// shorter than blocksize are not indexed.
func buildBlockMap(data []byte, blocksize int) map[string][]int {
	m := make(map[string][]int)
	for p := 0; p+blocksize <= len(data); p += blocksize {
		key := string(data[p : p+blocksize])
		m[key] = append(m[key], p)
	}
	return m
}

// bestCandidate finds the highest-span candidate copy available at target
// write-cursor w, breaking ties by cheapest encoding (spec §4.5 selection
// rule). pendingStart bounds how far left a candidate may reach: bytes
// before pendingStart already belong to a previously emitted operation, so
// absorbing them would overshoot the target (see extendCandidate).
func bestCandidate(w int, source, target []byte, sourceBlocks, targetBlocks map[string][]int, blocksize, lastSourceCopyEnd, lastTargetCopyEnd, pendingStart int) (candidate, bool) {
	if w+blocksize > len(target) {
		return candidate{}, false
	}
	key := string(target[w : w+blocksize])
	maxLeft := w - pendingStart

	var best candidate
	var bestCost int
	haveBest := false

	consider := func(c candidate) {
		cost := candidateCost(c, w, lastSourceCopyEnd, lastTargetCopyEnd)
		if !haveBest || c.span() > best.span() || (c.span() == best.span() && cost < bestCost) {
			best, bestCost, haveBest = c, cost, true
		}
	}

	for _, p := range sourceBlocks[key] {
		consider(extendCandidate(originSource, p, w, source, target, maxLeft))
	}
	for _, p := range targetBlocks[key] {
		if p >= w {
			// A TargetCopy's source must lie entirely before the current
			// write cursor; the decoder has not produced these bytes yet.
			continue
		}
		consider(extendCandidate(originTarget, p, w, target, target, maxLeft))
	}

	return best, haveBest
}

// extendCandidate grows a block-hash hit at anchor p (in originBytes) versus
// target's write cursor w, in both directions, stopping at the first
// mismatch or either array's boundary. The left extension additionally stops
// at maxLeft: bytes before w-maxLeft (i.e. before pendingStart) were already
// claimed by a previously emitted operation, and absorbing them into this
// candidate would make the emitted stream overshoot the target (the
// preceding bytes would be produced twice).
func extendCandidate(origin matchOrigin, p, w int, originBytes, target []byte, maxLeft int) candidate {
	left := 0
	for left < maxLeft && w-1-left >= 0 && p-1-left >= 0 && target[w-1-left] == originBytes[p-1-left] {
		left++
	}
	right := 0
	for w+right < len(target) && p+right < len(originBytes) && target[w+right] == originBytes[p+right] {
		right++
	}
	return candidate{origin: origin, pos: p, left: left, right: right}
}

// candidateCost estimates the serialized byte length of emitting c as an
// operation, used only to break span ties (spec §4.5: "prefer copies whose
// implied offset varint is shortest").
func candidateCost(c candidate, w, lastSourceCopyEnd, lastTargetCopyEnd int) int {
	span := c.span()
	cost := len(EncodeVarint(uint64(span-1) << 2))

	absStart := c.pos - c.left
	literalEnd := w - c.left
	if c.origin == originSource && absStart == literalEnd {
		return cost // SourceRead: no offset field at all
	}

	last := lastTargetCopyEnd
	if c.origin == originSource {
		last = lastSourceCopyEnd
	}
	cost += len(EncodeSignedOffset(int64(absStart - last)))
	return cost
}
