package ldu2

// Hamming(10,6,3) encodes 6 data bits (hi-to-lo: d5 d4 d3 d2 d1 d0)
// plus 4 parity bits into a 10-bit codeword, and corrects any single
// bit error via syndrome lookup. This is the full syndrome-based
// correction the spec prefers over a bare bit-extraction.
//
// Parity-check matrix H (4x10), columns ordered d5 d4 d3 d2 d1 d0 p0
// p1 p2 p3. Each parity bit covers a fixed subset of the data bits;
// the codeword is systematic so an all-zero syndrome is a clean
// decode and a single set syndrome bit identifies exactly one flipped
// column (the index into the syndrome table below).
var parityCheck = [4][6]bool{
	// p0 covers d4 d3 d2 d1
	{false, true, true, true, true, false},
	// p1 covers d5 d3 d2 d0
	{true, false, true, true, false, true},
	// p2 covers d5 d4 d2 d0
	{true, true, false, true, false, true},
	// p3 covers d5 d4 d3 d1
	{true, true, true, false, true, false},
}

// syndromeTable maps a 4-bit syndrome to the index (0..9) of the
// codeword bit that produced it, built once from parityCheck so the
// two stay consistent by construction instead of by hand-transcribed
// table. Index 0..5 are data bits d5..d0, 6..9 are parity bits
// p0..p3 in transmission order (matches hammingEncode/hammingDecode
// bit layout below).
var syndromeTable [16]int

func init() {
	for i := range syndromeTable {
		syndromeTable[i] = -1
	}
	for bit := 0; bit < 10; bit++ {
		s := syndromeOfSingleError(bit)
		syndromeTable[s] = bit
	}
}

// syndromeOfSingleError computes the 4-bit syndrome produced by a
// single bit error at codeword position bit (0..9, in the same order
// as encodeHamming's output: d5 d4 d3 d2 d1 d0 p0 p1 p2 p3).
func syndromeOfSingleError(bit int) int {
	cw := [10]bool{}
	cw[bit] = true
	return computeSyndrome(cw)
}

func computeSyndrome(cw [10]bool) int {
	data := cw[:6]
	parity := cw[6:10]
	s := 0
	for i := 0; i < 4; i++ {
		v := parity[i]
		for j, covered := range parityCheck[i] {
			if covered {
				v = v != data[j]
			}
		}
		if v {
			s |= 1 << i
		}
	}
	return s
}

// decodeHamming decodes a 10-bit codeword (bit 9 is the MSB) into a
// 6-bit hexbit, correcting a single bit error if the syndrome is
// non-zero and identifies one codeword position. If the syndrome
// identifies no known single-error pattern, the codeword is returned
// uncorrected (no abort — the pipeline never fails on this).
func decodeHamming(codeword uint16) (hexbit byte, corrected bool) {
	var cw [10]bool
	for i := 0; i < 10; i++ {
		cw[i] = (codeword>>(9-i))&1 == 1
	}

	s := computeSyndrome(cw)
	if s != 0 {
		if bit := syndromeTable[s]; bit >= 0 {
			cw[bit] = !cw[bit]
			corrected = true
		}
	}

	var hb byte
	for i := 0; i < 6; i++ {
		hb <<= 1
		if cw[i] {
			hb |= 1
		}
	}
	return hb, corrected
}
