// Package frame parses a P25 capture file into typed frames.
//
// A capture is a flat sequence of frames with no outer envelope: each
// frame is a 5-octet header (DUID, big-endian NAC, big-endian length)
// followed by exactly that many octets of payload.
package frame

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// DUID is the one-octet Data Unit Identifier tag.
type DUID byte

const (
	DUIDHeader      DUID = 0x00
	DUIDTerminator1 DUID = 0x03
	DUIDLDU1        DUID = 0x05
	DUIDTerminator2 DUID = 0x07
	DUIDLDU2        DUID = 0x0A
	DUIDPacketData  DUID = 0x0C
	DUIDTerminator3 DUID = 0x0F
	DUIDTrunkingTSB DUID = 0x12
)

// Kind classifies a frame for downstream dispatch.
type Kind int

const (
	KindHeader Kind = iota
	KindLDU1
	KindLDU2
	KindTerminator
	KindPacketDataUnit
	KindTrunkingSignalBlock
	KindUnknown
)

func (k Kind) String() string {
	switch k {
	case KindHeader:
		return "Header"
	case KindLDU1:
		return "LDU1"
	case KindLDU2:
		return "LDU2"
	case KindTerminator:
		return "Terminator"
	case KindPacketDataUnit:
		return "PacketDataUnit"
	case KindTrunkingSignalBlock:
		return "TrunkingSignalBlock"
	default:
		return "Unknown"
	}
}

func kindForDUID(d DUID) Kind {
	switch d {
	case DUIDHeader:
		return KindHeader
	case DUIDTerminator1, DUIDTerminator2, DUIDTerminator3:
		return KindTerminator
	case DUIDLDU1:
		return KindLDU1
	case DUIDLDU2:
		return KindLDU2
	case DUIDPacketData:
		return KindPacketDataUnit
	case DUIDTrunkingTSB:
		return KindTrunkingSignalBlock
	default:
		return KindUnknown
	}
}

// Frame is one parsed unit from a capture.
type Frame struct {
	DUID            DUID
	NAC             uint16 // low 12 bits carry the network access code
	DeclaredLength  uint16
	Payload         []byte
	Kind            Kind
	IsVoice         bool
	AlgorithmID     byte   // populated for LDU2 only, by the ldu2 package
	KeyID           uint16 // populated for LDU2 only
	MessageIndicator [9]byte
}

// Sentinel errors for frame-level recovery, per the error kinds in
// the spec's error handling design. Frame-level truncation is always
// recovered by the caller: finalize what has been read so far.
var (
	ErrTruncatedHeader  = errors.New("frame: truncated header")
	ErrTruncatedPayload = errors.New("frame: truncated payload")
)

// Reader parses a stream of concatenated frames. It is restartable
// (reopen the capture and build a new Reader) but not rewindable
// within a session.
type Reader struct {
	r *bufio.Reader
}

// NewReader wraps r for frame-at-a-time parsing.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReaderSize(r, 64*1024)}
}

// Next produces the next frame, (nil, nil) at clean EOF, or a
// sentinel error (ErrTruncatedHeader, ErrTruncatedPayload) on a
// partial read. Unknown DUID values are tagged KindUnknown and
// forwarded rather than aborting the stream.
func (r *Reader) Next() (*Frame, error) {
	var hdr [5]byte
	n, err := io.ReadFull(r.r, hdr[:])
	if err != nil {
		if n == 0 && errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrTruncatedHeader, err)
	}

	duid := DUID(hdr[0])
	nac := binary.BigEndian.Uint16(hdr[1:3]) & 0x0FFF
	length := binary.BigEndian.Uint16(hdr[3:5])

	payload := make([]byte, length)
	if length > 0 {
		if _, err := io.ReadFull(r.r, payload); err != nil {
			return nil, fmt.Errorf("%w: declared %d bytes: %v", ErrTruncatedPayload, length, err)
		}
	}

	kind := kindForDUID(duid)
	f := &Frame{
		DUID:           duid,
		NAC:            nac,
		DeclaredLength: length,
		Payload:        payload,
		Kind:           kind,
		IsVoice:        kind == KindLDU1 || kind == KindLDU2,
	}
	return f, nil
}
