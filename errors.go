// Package bps implements the BPS binary patch format: codec, diff engine,
// optimizer, validator and apply engine for the variant used throughout the
// ROM-hacking community.
package bps

import "fmt"

// Reason identifies why a patch stream was rejected. Callers can switch on
// it without string matching.
type Reason string

const (
	ReasonBadMagic          Reason = "bad magic"
	ReasonTruncatedVarint   Reason = "truncated varint"
	ReasonUnknownOpcode     Reason = "unknown opcode"
	ReasonZeroBytespan      Reason = "zero bytespan"
	ReasonOutputOverflow    Reason = "output overflow"
	ReasonSourceCursorRange Reason = "source cursor out of range"
	ReasonTargetCursorRange Reason = "target cursor out of range"
	ReasonCRCMismatchSource Reason = "source CRC mismatch"
	ReasonCRCMismatchTarget Reason = "target CRC mismatch"
	ReasonCRCMismatchPatch  Reason = "patch CRC mismatch"
	ReasonTrailingGarbage   Reason = "trailing garbage"
	ReasonEarlyEOF          Reason = "early EOF"
	ReasonOutOfOrderOpcode  Reason = "opcode out of order"
)

// CorruptFile is the single error kind raised by the reader, validator and
// apply engine. It always carries a human-readable Reason.
type CorruptFile struct {
	Reason Reason
	Detail string
}

func (e *CorruptFile) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("corrupt BPS file: %s", e.Reason)
	}
	return fmt.Sprintf("corrupt BPS file: %s: %s", e.Reason, e.Detail)
}

func corrupt(reason Reason, detail string, args ...interface{}) error {
	return &CorruptFile{Reason: reason, Detail: fmt.Sprintf(detail, args...)}
}
