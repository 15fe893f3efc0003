package bps

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOpKindString(t *testing.T) {
	require.Equal(t, "SourceRead", OpSourceRead.String())
	require.Equal(t, "TargetCopy", OpTargetCopy.String())
	require.Equal(t, "Unknown", OpKind(200).String())
}

func TestIsDataOp(t *testing.T) {
	require.True(t, OpSourceRead.IsDataOp())
	require.True(t, OpTargetCopy.IsDataOp())
	require.False(t, OpSourceHeader.IsDataOp())
	require.False(t, OpPatchCRC32.IsDataOp())
}

func TestSliceReader(t *testing.T) {
	want := []Opcode{
		{Kind: OpSourceHeader, Size: 10},
		{Kind: OpTargetHeader, Size: 20},
	}
	r := NewSliceReader(want)

	got, err := ReadAll(r)
	require.NoError(t, err)
	require.Equal(t, want, got)

	_, err = r.Next()
	require.ErrorIs(t, err, errEndOfOpcodes)
}

func TestReadAllPropagatesError(t *testing.T) {
	failing := errorReader{err: corrupt(ReasonBadMagic, "boom")}
	_, err := ReadAll(failing)
	require.Error(t, err)
}
