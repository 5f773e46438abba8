package frame

import (
	"bytes"
	"errors"
	"testing"
)

func encodeFrame(duid DUID, nac uint16, payload []byte) []byte {
	buf := make([]byte, 5+len(payload))
	buf[0] = byte(duid)
	buf[1] = byte(nac >> 8)
	buf[2] = byte(nac)
	buf[3] = byte(len(payload) >> 8)
	buf[4] = byte(len(payload))
	copy(buf[5:], payload)
	return buf
}

func TestReaderParsesKnownDUIDs(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(encodeFrame(DUIDHeader, 0x293, nil))
	buf.Write(encodeFrame(DUIDLDU1, 0x293, make([]byte, 20)))
	buf.Write(encodeFrame(DUIDLDU2, 0x293, make([]byte, 216)))
	buf.Write(encodeFrame(DUIDTerminator1, 0x293, nil))

	r := NewReader(&buf)

	f, err := r.Next()
	if err != nil || f == nil || f.Kind != KindHeader {
		t.Fatalf("header frame: %+v, err=%v", f, err)
	}
	if f.NAC != 0x293 {
		t.Fatalf("nac = %x, want 0x293", f.NAC)
	}

	f, err = r.Next()
	if err != nil || f.Kind != KindLDU1 || !f.IsVoice {
		t.Fatalf("ldu1 frame: %+v, err=%v", f, err)
	}

	f, err = r.Next()
	if err != nil || f.Kind != KindLDU2 || !f.IsVoice {
		t.Fatalf("ldu2 frame: %+v, err=%v", f, err)
	}
	if len(f.Payload) != 216 {
		t.Fatalf("payload len = %d, want 216", len(f.Payload))
	}

	f, err = r.Next()
	if err != nil || f.Kind != KindTerminator {
		t.Fatalf("terminator frame: %+v, err=%v", f, err)
	}

	f, err = r.Next()
	if err != nil || f != nil {
		t.Fatalf("expected clean EOF, got %+v, err=%v", f, err)
	}
}

func TestReaderUnknownDUIDForwarded(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(encodeFrame(DUID(0x55), 0, []byte{1, 2, 3}))

	r := NewReader(&buf)
	f, err := r.Next()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.Kind != KindUnknown {
		t.Fatalf("kind = %v, want Unknown", f.Kind)
	}
	if len(f.Payload) != int(f.DeclaredLength) {
		t.Fatalf("payload len mismatch")
	}
}

func TestReaderTruncatedHeader(t *testing.T) {
	r := NewReader(bytes.NewReader([]byte{0x05, 0x02}))
	_, err := r.Next()
	if !errors.Is(err, ErrTruncatedHeader) {
		t.Fatalf("err = %v, want ErrTruncatedHeader", err)
	}
}

func TestReaderTruncatedPayload(t *testing.T) {
	full := encodeFrame(DUIDLDU1, 0, make([]byte, 20))
	short := full[:len(full)-5]
	r := NewReader(bytes.NewReader(short))
	_, err := r.Next()
	if !errors.Is(err, ErrTruncatedPayload) {
		t.Fatalf("err = %v, want ErrTruncatedPayload", err)
	}
}

func TestEveryFramePayloadMatchesDeclaredLength(t *testing.T) {
	var buf bytes.Buffer
	lengths := []int{0, 1, 20, 216, 300}
	for _, l := range lengths {
		buf.Write(encodeFrame(DUIDLDU2, 0, make([]byte, l)))
	}
	r := NewReader(&buf)
	for range lengths {
		f, err := r.Next()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(f.Payload) != int(f.DeclaredLength) {
			t.Fatalf("payload.len()=%d != declared=%d", len(f.Payload), f.DeclaredLength)
		}
	}
}
