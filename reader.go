package bps

import (
	"io"

	"github.com/pkg/errors"
)

type readerState uint8

const (
	stateExpectSourceHeader readerState = iota
	stateExpectTargetHeader
	stateExpectOpOrTrailer
	stateExpectSourceCRC
	stateExpectTargetCRC
	stateExpectPatchCRC
	stateDone
)

// Reader parses a BPS byte stream into a pull-driven Opcode iterator,
// generalizing the teacher's FromFile (which parsed everything eagerly into
// a flat BPSPatch struct) into lazy Next() calls that decode one operation
// at a time. The patch bytes themselves are held in memory in full (see
// NewReader), and TargetRead payloads are slices of them.
//
// The reader does not verify the trailing PatchCRC32 against the bytes it
// read — per spec §4.2 that is the validator's job, not the reader's.
type Reader struct {
	data  []byte
	pos   int
	state readerState
}

// NewReader reads all of r (a BPS patch must be seekable-in-spirit to locate
// its 12-byte trailer) and returns a pull-driven Opcode iterator over it.
func NewReader(r io.Reader) (*Reader, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "bps: reading patch stream")
	}
	return NewReaderBytes(data), nil
}

// NewReaderBytes is like NewReader but starts from bytes already in memory.
func NewReaderBytes(data []byte) *Reader {
	return &Reader{data: data}
}

func (r *Reader) Next() (Opcode, error) {
	switch r.state {
	case stateExpectSourceHeader:
		return r.readMagicAndSourceHeader()
	case stateExpectTargetHeader:
		return r.readTargetHeader()
	case stateExpectOpOrTrailer:
		return r.readOpOrAdvanceToTrailer()
	case stateExpectSourceCRC:
		return r.readCRC(OpSourceCRC32, stateExpectTargetCRC)
	case stateExpectTargetCRC:
		return r.readCRC(OpTargetCRC32, stateExpectPatchCRC)
	case stateExpectPatchCRC:
		return r.readCRC(OpPatchCRC32, stateDone)
	default:
		return Opcode{}, errEndOfOpcodes
	}
}

func (r *Reader) readMagicAndSourceHeader() (Opcode, error) {
	if len(r.data) < len(magic) || [4]byte(r.data[:4]) != magic {
		return Opcode{}, corrupt(ReasonBadMagic, "expected %q", string(magic[:]))
	}
	r.pos = len(magic)

	size, n, err := DecodeVarint(r.data[r.pos:])
	if err != nil {
		return Opcode{}, errors.Wrap(err, "reading source header size")
	}
	r.pos += n
	r.state = stateExpectTargetHeader
	return Opcode{Kind: OpSourceHeader, Size: size}, nil
}

func (r *Reader) readTargetHeader() (Opcode, error) {
	size, n, err := DecodeVarint(r.data[r.pos:])
	if err != nil {
		return Opcode{}, errors.Wrap(err, "reading target header size")
	}
	r.pos += n

	metaLen, n, err := DecodeVarint(r.data[r.pos:])
	if err != nil {
		return Opcode{}, errors.Wrap(err, "reading metadata length")
	}
	r.pos += n

	if r.pos+int(metaLen) > len(r.data) {
		return Opcode{}, corrupt(ReasonEarlyEOF, "metadata truncated")
	}
	metadata := r.data[r.pos : r.pos+int(metaLen)]
	r.pos += int(metaLen)

	r.state = stateExpectOpOrTrailer
	return Opcode{Kind: OpTargetHeader, Size: size, Metadata: metadata}, nil
}

// trailerSize is the three trailing u32 CRCs: source, target, patch.
const trailerSize = 12

func (r *Reader) readOpOrAdvanceToTrailer() (Opcode, error) {
	if len(r.data)-r.pos <= trailerSize {
		if len(r.data)-r.pos != trailerSize {
			return Opcode{}, corrupt(ReasonTrailingGarbage, "%d bytes before trailer", len(r.data)-r.pos)
		}
		r.state = stateExpectSourceCRC
		return r.Next()
	}

	header, n, err := DecodeVarint(r.data[r.pos:])
	if err != nil {
		return Opcode{}, errors.Wrap(err, "reading operation header")
	}
	r.pos += n

	kind, ok := opKindFromWire(header & 0b11)
	if !ok {
		return Opcode{}, corrupt(ReasonUnknownOpcode, "wire code %d", header&0b11)
	}
	span := (header >> 2) + 1

	op := Opcode{Kind: kind, Span: span}

	switch kind {
	case OpTargetRead:
		if r.pos+int(span) > len(r.data)-trailerSize {
			return Opcode{}, corrupt(ReasonEarlyEOF, "TargetRead payload truncated")
		}
		op.Payload = r.data[r.pos : r.pos+int(span)]
		r.pos += int(span)
	case OpSourceCopy, OpTargetCopy:
		offset, n, err := DecodeSignedOffset(r.data[r.pos:])
		if err != nil {
			return Opcode{}, errors.Wrap(err, "reading copy offset")
		}
		r.pos += n
		op.Offset = offset
	}

	return op, nil
}

func (r *Reader) readCRC(kind OpKind, next readerState) (Opcode, error) {
	if r.pos+4 > len(r.data) {
		return Opcode{}, corrupt(ReasonEarlyEOF, "truncated %s", kind)
	}
	crc, err := decodeCRC(r.data[r.pos : r.pos+4])
	if err != nil {
		return Opcode{}, err
	}
	r.pos += 4
	r.state = next
	return Opcode{Kind: kind, CRC: crc}, nil
}
