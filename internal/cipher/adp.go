package cipher

import "crypto/rc4"

// ADPEngineLen is the keystream length for ADP: 469 PRGA output
// bytes with no initial discard.
const ADPEngineLen = 469

// extendedKeyLen is the "key[0..5] ++ mi[0..8]" extended key width
// RC4 is keyed with — 5 octets of key plus the first 8 octets of the
// message indicator, the same "first 8 octets" MI convention DES
// uses for its IV.
const extendedKeyLen = 5 + 8

// ADPEngine generates an ADP keystream: standard RC4 keyed with a
// 13-byte extended key (5-octet key concatenated with the first
// 8 octets of the message indicator), PRGA run for exactly 469 bytes
// with no discard of initial output.
type ADPEngine struct {
	ks keystream
}

// NewADPEngine returns an ADP engine with no keystream prepared.
func NewADPEngine() *ADPEngine { return &ADPEngine{} }

// Prepare builds the 13-byte extended key and runs RC4's standard KSA
// followed by 469 bytes of PRGA.
func (e *ADPEngine) Prepare(key []byte, mi [9]byte) error {
	var extended [extendedKeyLen]byte
	copy(extended[:5], leftPad(key, 5))
	copy(extended[5:], mi[:8])

	c, err := rc4.NewCipher(extended[:])
	if err != nil {
		return err
	}
	buf := make([]byte, ADPEngineLen)
	c.XORKeyStream(buf, buf)
	e.ks.reset(buf)
	return nil
}

// DecryptCodeword XORs an 11-byte IMBE voice word in place at the ADP
// offset (no initial PRGA discard), then advances the position
// cursor modulo 9.
func (e *ADPEngine) DecryptCodeword(data []byte, isLDU2 bool, frameIndex int) {
	e.ks.xorAt(data, adpOffset(e.ks.cursor, isLDU2))
	e.ks.advance()
}

// Cursor reports the current 9-bit position cursor.
func (e *ADPEngine) Cursor() int { return e.ks.cursor }
