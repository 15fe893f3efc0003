package bps

import (
	"hash/crc32"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidateAcceptsWellFormedStream(t *testing.T) {
	source := []byte("hello world")
	ops := []Opcode{
		{Kind: OpSourceHeader, Size: uint64(len(source))},
		{Kind: OpTargetHeader, Size: uint64(len(source))},
		{Kind: OpSourceRead, Span: uint64(len(source))},
		{Kind: OpSourceCRC32},
		{Kind: OpTargetCRC32},
		{Kind: OpPatchCRC32},
	}
	require.NoError(t, Validate(NewSliceReader(ops)))
}

func TestValidateRejectsZeroBytespan(t *testing.T) {
	ops := []Opcode{
		{Kind: OpSourceHeader, Size: 0},
		{Kind: OpTargetHeader, Size: 0},
		{Kind: OpSourceRead, Span: 0},
	}
	err := Validate(NewSliceReader(ops))
	require.Error(t, err)
	var cf *CorruptFile
	require.ErrorAs(t, err, &cf)
	require.Equal(t, ReasonZeroBytespan, cf.Reason)
}

func TestValidateRejectsBytespanSumMismatch(t *testing.T) {
	ops := []Opcode{
		{Kind: OpSourceHeader, Size: 10},
		{Kind: OpTargetHeader, Size: 10},
		{Kind: OpSourceRead, Span: 5},
		{Kind: OpSourceCRC32},
	}
	err := Validate(NewSliceReader(ops))
	require.Error(t, err)
	var cf *CorruptFile
	require.ErrorAs(t, err, &cf)
	require.Equal(t, ReasonOutputOverflow, cf.Reason)
}

func TestValidateRejectsSourceCursorOutOfRange(t *testing.T) {
	ops := []Opcode{
		{Kind: OpSourceHeader, Size: 4},
		{Kind: OpTargetHeader, Size: 4},
		{Kind: OpSourceCopy, Span: 4, Offset: 10},
	}
	err := Validate(NewSliceReader(ops))
	require.Error(t, err)
	var cf *CorruptFile
	require.ErrorAs(t, err, &cf)
	require.Equal(t, ReasonSourceCursorRange, cf.Reason)
}

func TestValidateRejectsTargetCopyAheadOfCursor(t *testing.T) {
	ops := []Opcode{
		{Kind: OpSourceHeader, Size: 0},
		{Kind: OpTargetHeader, Size: 4},
		{Kind: OpTargetCopy, Span: 4, Offset: 0}, // nothing written yet
	}
	err := Validate(NewSliceReader(ops))
	require.Error(t, err)
	var cf *CorruptFile
	require.ErrorAs(t, err, &cf)
	require.Equal(t, ReasonTargetCursorRange, cf.Reason)
}

func TestValidateVerifiesSourceChecksum(t *testing.T) {
	source := []byte("hello world")
	target := []byte("hello world")
	ops := []Opcode{
		{Kind: OpSourceHeader, Size: uint64(len(source))},
		{Kind: OpTargetHeader, Size: uint64(len(target))},
		{Kind: OpSourceRead, Span: uint64(len(source))},
		{Kind: OpSourceCRC32, CRC: 0xdeadbeef}, // deliberately wrong
		{Kind: OpTargetCRC32},
		{Kind: OpPatchCRC32},
	}
	err := Validate(NewSliceReader(ops), VerifySource(source))
	require.Error(t, err)
	var cf *CorruptFile
	require.ErrorAs(t, err, &cf)
	require.Equal(t, ReasonCRCMismatchSource, cf.Reason)
}

func TestValidateTreatsZeroPatchCRCAsUnchecked(t *testing.T) {
	source := []byte("abc")
	ops := []Opcode{
		{Kind: OpSourceHeader, Size: 3},
		{Kind: OpTargetHeader, Size: 3},
		{Kind: OpSourceRead, Span: 3},
		{Kind: OpSourceCRC32, CRC: crc32.ChecksumIEEE(source)},
		{Kind: OpTargetCRC32},
		{Kind: OpPatchCRC32, CRC: 0},
	}
	require.NoError(t, Validate(NewSliceReader(ops), VerifySource(source)))
}

func TestValidateAcceptsDiffOutputDirectly(t *testing.T) {
	source := []byte("the quick brown fox jumps over the lazy dog")
	target := []byte("the quick brown fox leaps over the lazy dog")

	ops, err := Diff(DefaultBlockSize(len(source), len(target)), source, target)
	require.NoError(t, err)

	require.NoError(t, Validate(ops, VerifySource(source), VerifyTarget(target)))
}
