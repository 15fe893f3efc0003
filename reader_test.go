package bps

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReadPatchRoundTrip(t *testing.T) {
	meta := []byte(`{"created":"2026-07-31"}`)
	original := sampleOps(meta)

	var buf bytes.Buffer
	require.NoError(t, WritePatch(NewSliceReader(original), &buf))

	ops, err := ReadPatch(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	require.Len(t, ops, len(original))

	require.Equal(t, OpSourceHeader, ops[0].Kind)
	require.Equal(t, uint64(4), ops[0].Size)

	require.Equal(t, OpTargetHeader, ops[1].Kind)
	require.Equal(t, uint64(6), ops[1].Size)
	require.Equal(t, meta, ops[1].Metadata)

	require.Equal(t, OpSourceRead, ops[2].Kind)
	require.Equal(t, uint64(4), ops[2].Span)

	require.Equal(t, OpTargetRead, ops[3].Kind)
	require.Equal(t, []byte("hi"), ops[3].Payload)

	require.Equal(t, OpSourceCRC32, ops[4].Kind)
	require.Equal(t, uint32(0x11223344), ops[4].CRC)

	require.Equal(t, OpTargetCRC32, ops[5].Kind)
	require.Equal(t, uint32(0x55667788), ops[5].CRC)

	require.Equal(t, OpPatchCRC32, ops[6].Kind)
	require.NotZero(t, ops[6].CRC) // Writer replaced the placeholder
}

func TestReadPatchBadMagic(t *testing.T) {
	_, err := ReadPatch(bytes.NewReader([]byte("NOPE1234")))
	require.Error(t, err)
	var cf *CorruptFile
	require.ErrorAs(t, err, &cf)
	require.Equal(t, ReasonBadMagic, cf.Reason)
}

func TestReadPatchTruncated(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WritePatch(NewSliceReader(sampleOps(nil)), &buf))

	truncated := buf.Bytes()[:buf.Len()-2]
	_, err := ReadPatch(bytes.NewReader(truncated))
	require.Error(t, err)
}

func TestReadPatchSourceCopyOffset(t *testing.T) {
	ops := []Opcode{
		{Kind: OpSourceHeader, Size: 10},
		{Kind: OpTargetHeader, Size: 3},
		{Kind: OpSourceCopy, Span: 3, Offset: -5},
		{Kind: OpSourceCRC32, CRC: 1},
		{Kind: OpTargetCRC32, CRC: 2},
		{Kind: OpPatchCRC32, CRC: 0},
	}
	var buf bytes.Buffer
	require.NoError(t, WritePatch(NewSliceReader(ops), &buf))

	got, err := ReadPatch(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	require.Equal(t, int64(-5), got[2].Offset)
	require.Equal(t, uint64(3), got[2].Span)
}
