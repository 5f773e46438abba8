package cipher

import (
	"crypto/aes"
	"crypto/cipher"
)

// AESEngineLen is the keystream length for AES-256-OFB: fifteen
// 16-byte OFB blocks.
const AESEngineLen = 240

// AESEngine generates an AES-256-OFB keystream from a 32-octet key
// (left-padded with zeros if shorter) and a 16-octet IV expanded from
// the message indicator.
type AESEngine struct {
	ks keystream
}

// NewAESEngine returns an AES-256-OFB engine with no keystream
// prepared.
func NewAESEngine() *AESEngine { return &AESEngine{} }

// Prepare runs AES-256 in output-feedback mode to produce 240 bytes
// of keystream from fifteen 16-byte blocks.
func (e *AESEngine) Prepare(key []byte, mi [9]byte) error {
	block, err := aes.NewCipher(leftPad(key, 32))
	if err != nil {
		return err
	}
	iv := expandIV16(mi)
	stream := cipher.NewOFB(block, iv)
	buf := make([]byte, AESEngineLen)
	stream.XORKeyStream(buf, buf)
	e.ks.reset(buf)
	return nil
}

// expandIV16 builds a 16-octet IV from the 9-octet message
// indicator: the MI occupies the low 9 octets, the remaining high
// octets are zero. This is the AES-specific analogue of DES's
// "MI's first 8 octets are the IV" convention, scaled to the wider
// AES block.
func expandIV16(mi [9]byte) []byte {
	iv := make([]byte, 16)
	copy(iv[16-len(mi):], mi[:])
	return iv
}

// DecryptCodeword XORs an 11-byte IMBE voice word in place using the
// same structural offset formula as DES, with base 16 instead of 8,
// then advances the position cursor modulo 9.
func (e *AESEngine) DecryptCodeword(data []byte, isLDU2 bool, frameIndex int) {
	e.ks.xorAt(data, aesOffset(e.ks.cursor, isLDU2))
	e.ks.advance()
}

// Cursor reports the current 9-bit position cursor.
func (e *AESEngine) Cursor() int { return e.ks.cursor }
