package bps

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestApplyIdentity(t *testing.T) {
	source := []byte("hello world")
	ops := []Opcode{
		{Kind: OpSourceHeader, Size: uint64(len(source))},
		{Kind: OpTargetHeader, Size: uint64(len(source))},
		{Kind: OpSourceRead, Span: uint64(len(source))},
		{Kind: OpSourceCRC32},
		{Kind: OpTargetCRC32},
		{Kind: OpPatchCRC32},
	}

	got, err := Apply(NewSliceReader(ops), source)
	require.NoError(t, err)
	require.Equal(t, source, got)
}

func TestApplyPureLiteral(t *testing.T) {
	source := []byte("")
	ops := []Opcode{
		{Kind: OpSourceHeader, Size: 0},
		{Kind: OpTargetHeader, Size: 2},
		{Kind: OpTargetRead, Span: 2, Payload: []byte("hi")},
		{Kind: OpSourceCRC32},
		{Kind: OpTargetCRC32},
		{Kind: OpPatchCRC32},
	}

	got, err := Apply(NewSliceReader(ops), source)
	require.NoError(t, err)
	require.Equal(t, []byte("hi"), got)
}

func TestApplyRLEViaTargetCopy(t *testing.T) {
	// One literal "A" followed by a self-overlapping TargetCopy that repeats
	// it 99 more times — byte-by-byte copy semantics (spec §4.4), the same
	// behavior the teacher's PatchSourceFile loop implements for TargetCopy.
	ops := []Opcode{
		{Kind: OpSourceHeader, Size: 0},
		{Kind: OpTargetHeader, Size: 100},
		{Kind: OpTargetRead, Span: 1, Payload: []byte("A")},
		{Kind: OpTargetCopy, Span: 99, Offset: 0},
		{Kind: OpSourceCRC32},
		{Kind: OpTargetCRC32},
		{Kind: OpPatchCRC32},
	}

	got, err := Apply(NewSliceReader(ops), nil)
	require.NoError(t, err)
	require.Len(t, got, 100)
	for _, b := range got {
		require.Equal(t, byte('A'), b)
	}
}

func TestApplyRejectsShortSource(t *testing.T) {
	ops := []Opcode{
		{Kind: OpSourceHeader, Size: 100},
	}
	_, err := Apply(NewSliceReader(ops), []byte("short"))
	require.Error(t, err)
	var cf *CorruptFile
	require.ErrorAs(t, err, &cf)
}

func TestApplyRejectsShortOutput(t *testing.T) {
	ops := []Opcode{
		{Kind: OpSourceHeader, Size: 0},
		{Kind: OpTargetHeader, Size: 5},
		{Kind: OpTargetRead, Span: 2, Payload: []byte("hi")},
		{Kind: OpSourceCRC32},
		{Kind: OpTargetCRC32},
		{Kind: OpPatchCRC32},
	}
	_, err := Apply(NewSliceReader(ops), nil)
	require.Error(t, err)
	var cf *CorruptFile
	require.ErrorAs(t, err, &cf)
	require.Equal(t, ReasonOutputOverflow, cf.Reason)
}

// TestApplyRejectsMidStreamOverflow pins down a panic-vs-error bug: a data
// op whose span would write past the declared target size must fail with
// CorruptFile immediately, not panic with an index-out-of-range a few lines
// later. Each op kind that writes into target gets its own case since each
// needed its own bounds check in the fix.
func TestApplyRejectsMidStreamOverflow(t *testing.T) {
	cases := []struct {
		name string
		ops  []Opcode
	}{
		{
			name: "SourceRead",
			ops: []Opcode{
				{Kind: OpSourceHeader, Size: 10},
				{Kind: OpTargetHeader, Size: 2},
				{Kind: OpSourceRead, Span: 5},
			},
		},
		{
			name: "TargetRead",
			ops: []Opcode{
				{Kind: OpSourceHeader, Size: 0},
				{Kind: OpTargetHeader, Size: 2},
				{Kind: OpTargetRead, Span: 5, Payload: []byte("hello")},
			},
		},
		{
			name: "SourceCopy",
			ops: []Opcode{
				{Kind: OpSourceHeader, Size: 10},
				{Kind: OpTargetHeader, Size: 2},
				{Kind: OpSourceCopy, Span: 5, Offset: 0},
			},
		},
		{
			name: "TargetCopy",
			ops: []Opcode{
				{Kind: OpSourceHeader, Size: 0},
				{Kind: OpTargetHeader, Size: 2},
				{Kind: OpTargetRead, Span: 1, Payload: []byte("a")},
				{Kind: OpTargetCopy, Span: 5, Offset: 0},
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			source := make([]byte, 10)
			_, err := Apply(NewSliceReader(tc.ops), source)
			require.Error(t, err)
			var cf *CorruptFile
			require.ErrorAs(t, err, &cf)
			require.Equal(t, ReasonOutputOverflow, cf.Reason)
		})
	}
}
