// Package cipher implements the three P25 voice-encryption cipher
// families (DES-OFB, AES-256-OFB, ADP/RC4) and the KeyTable that
// feeds them. Key material length selects the family on insertion:
// 5 bytes -> ADP, 8 bytes -> DES, 32 bytes -> AES-256.
package cipher

import (
	"fmt"
	"sync"
)

// Family identifies a cipher engine.
type Family int

const (
	FamilyDES Family = iota
	FamilyAES
	FamilyADP
)

func (f Family) String() string {
	switch f {
	case FamilyDES:
		return "DES-OFB"
	case FamilyAES:
		return "AES-256-OFB"
	case FamilyADP:
		return "ADP"
	default:
		return "unknown"
	}
}

// UnencryptedAlgID is the P25 "clear voice" algorithm ID sentinel.
const UnencryptedAlgID byte = 0x80

// Algorithm IDs that select a cipher family. Values follow the
// conventional P25 ALGID registry entries for these three families.
const (
	AlgIDDES byte = 0x81
	AlgIDAES byte = 0x84
	AlgIDADP byte = 0xAA
)

// FamilyForAlgID maps an LDU2-carried algorithm ID to the cipher
// family that handles it. ok is false for an unrecognized algorithm
// ID (including the unencrypted sentinel) — the caller treats that as
// "no engine available", not as an error.
func FamilyForAlgID(algID byte) (Family, bool) {
	switch algID {
	case AlgIDDES:
		return FamilyDES, true
	case AlgIDAES:
		return FamilyAES, true
	case AlgIDADP:
		return FamilyADP, true
	default:
		return 0, false
	}
}

// KeyTable holds three independent key_id -> key material mappings,
// one per cipher family. It is created at service start, mutated
// only before workers begin processing (or via a single serialized
// writer while steady-state decodes are in flight); it is never
// locked for the duration of a decode.
type KeyTable struct {
	mu   sync.RWMutex
	keys [3]map[uint16][]byte
}

// NewKeyTable returns an empty table.
func NewKeyTable() *KeyTable {
	return &KeyTable{keys: [3]map[uint16][]byte{
		FamilyDES: {}, FamilyAES: {}, FamilyADP: {},
	}}
}

// AddKey inserts key material under keyID. The family is selected by
// len(key): 5 -> ADP, 8 -> DES, 32 -> AES. Any other length is
// rejected.
func (kt *KeyTable) AddKey(keyID uint16, key []byte) error {
	var family Family
	switch len(key) {
	case 5:
		family = FamilyADP
	case 8:
		family = FamilyDES
	case 32:
		family = FamilyAES
	default:
		return fmt.Errorf("cipher: key length %d does not select a known family (want 5, 8, or 32)", len(key))
	}
	stored := make([]byte, len(key))
	copy(stored, key)

	kt.mu.Lock()
	defer kt.mu.Unlock()
	kt.keys[family][keyID] = stored
	return nil
}

// HasKey reports whether family has key material for keyID.
func (kt *KeyTable) HasKey(family Family, keyID uint16) bool {
	kt.mu.RLock()
	defer kt.mu.RUnlock()
	_, ok := kt.keys[family][keyID]
	return ok
}

// Lookup returns a copy of the key material for family/keyID.
func (kt *KeyTable) Lookup(family Family, keyID uint16) ([]byte, bool) {
	kt.mu.RLock()
	defer kt.mu.RUnlock()
	k, ok := kt.keys[family][keyID]
	if !ok {
		return nil, false
	}
	out := make([]byte, len(k))
	copy(out, k)
	return out, true
}
