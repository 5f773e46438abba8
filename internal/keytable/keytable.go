// Package keytable parses "KEYID:HEX" key specifications from config
// or CLI flags and loads them into a cipher.KeyTable.
package keytable

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/gopher2/trunk-decoder/internal/cipher"
)

// Load parses each spec as "KEYID:HEX" — KEYID is a hex uint16 with an
// optional "0x" prefix, HEX is the key material — and inserts it into
// table. It returns on the first malformed entry, naming the
// offending spec.
func Load(table *cipher.KeyTable, specs []string) error {
	for _, spec := range specs {
		if err := loadOne(table, spec); err != nil {
			return fmt.Errorf("keytable: %s: %w", spec, err)
		}
	}
	return nil
}

func loadOne(table *cipher.KeyTable, spec string) error {
	idPart, hexPart, ok := strings.Cut(spec, ":")
	if !ok {
		return fmt.Errorf("expected KEYID:HEX")
	}

	id, err := strconv.ParseUint(strings.TrimPrefix(idPart, "0x"), 16, 16)
	if err != nil {
		return fmt.Errorf("invalid key id: %w", err)
	}

	key, err := hex.DecodeString(hexPart)
	if err != nil {
		return fmt.Errorf("invalid key hex: %w", err)
	}

	return table.AddKey(uint16(id), key)
}
