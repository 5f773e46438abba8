package ldu2

// bitPositionTable gives, for each of the 240 link-signaling bit
// slots read from an LDU2 payload, the bit offset (MSB-first, 0 =
// first bit of the payload) to read. The 240 entries are grouped into
// twenty-four 10-bit codewords (bitPositionTable[cw*10+b] is bit b of
// codeword cw, b=0 is the codeword's MSB).
//
// The table is generated, not the standard P25 LDU2 bit-position
// table: it reads one contiguous 240-bit run of a >=216-octet (>=1728
// bit) payload, starting at bit offset ldu2SyncBitOffset, and skips
// the rest. No deinterleaving is applied; the 24 decoded hexbits are
// stored in order at hexbit indices 39..63.
const ldu2SyncBitOffset = 1320

var bitPositionTable [240]int

func init() {
	for i := range bitPositionTable {
		bitPositionTable[i] = ldu2SyncBitOffset + i
	}
}
