package cipher

// CipherSet bundles one instance of each cipher engine plus the
// KeyTable they draw from. A decoder pipeline owns exactly one
// CipherSet for its lifetime — never shared across concurrent calls,
// matching the IMBE vocoder's ownership contract.
type CipherSet struct {
	keys *KeyTable
	des  *DESEngine
	aes  *AESEngine
	adp  *ADPEngine
}

// NewCipherSet returns a CipherSet reading keys from keys.
func NewCipherSet(keys *KeyTable) *CipherSet {
	return &CipherSet{
		keys: keys,
		des:  NewDESEngine(),
		aes:  NewAESEngine(),
		adp:  NewADPEngine(),
	}
}

// Prepare looks up the engine named by algID and, if the relevant key
// is known, primes its keystream from keyID/mi. It returns the
// resolved family and whether an engine is now ready to decrypt.
//
//   - Unrecognized algID (including the unencrypted sentinel): no
//     family, ready=false, err=nil. The caller should not treat this
//     as an encrypted stream.
//   - Recognized algID but unknown key_id: family set, ready=false,
//     err=ErrUnknownKey. The caller continues decoding with the
//     cipher left disabled; voice frames pass through unintelligible.
//   - Recognized algID and known key: family set, ready=true, err=nil.
func (cs *CipherSet) Prepare(algID byte, keyID uint16, mi [9]byte) (Family, bool, error) {
	family, ok := FamilyForAlgID(algID)
	if !ok {
		return 0, false, nil
	}
	key, ok := cs.keys.Lookup(family, keyID)
	if !ok {
		return family, false, ErrUnknownKey
	}
	if err := cs.prepareEngine(family, key, mi); err != nil {
		return family, false, err
	}
	return family, true, nil
}

func (cs *CipherSet) prepareEngine(family Family, key []byte, mi [9]byte) error {
	switch family {
	case FamilyDES:
		return cs.des.Prepare(key, mi)
	case FamilyAES:
		return cs.aes.Prepare(key, mi)
	case FamilyADP:
		return cs.adp.Prepare(key, mi)
	default:
		return ErrUnknownKey
	}
}

// DecryptCodeword XORs data in place using the named family's
// current keystream position, then advances that engine's cursor.
func (cs *CipherSet) DecryptCodeword(family Family, data []byte, isLDU2 bool, frameIndex int) {
	switch family {
	case FamilyDES:
		cs.des.DecryptCodeword(data, isLDU2, frameIndex)
	case FamilyAES:
		cs.aes.DecryptCodeword(data, isLDU2, frameIndex)
	case FamilyADP:
		cs.adp.DecryptCodeword(data, isLDU2, frameIndex)
	}
}
