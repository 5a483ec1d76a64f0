package precode

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// packPrecodeSymbols packs count 3-bit precode code-length symbols,
// LSB-first, the same bit order DEFLATE itself uses within the 19
// HCLEN-ordered precode symbols.
func packPrecodeSymbols(symbols []uint64) uint64 {
	var packed uint64
	for i, s := range symbols {
		packed |= (s & 0x7) << (uint(i) * precodeBits)
	}
	return packed
}

func TestSingleLengthOneSymbolIsValid(t *testing.T) {
	// HCLEN encodes 4 total symbols (the minimum): one of length 1,
	// the rest zero (unused).
	next4Bits := uint64(0) // codeLengthCount = 4
	symbols := []uint64{1, 0, 0, 0}
	err := CheckPrecode(next4Bits, packPrecodeSymbols(symbols))
	assert.Nil(t, err)
}

func TestAllZeroLengthsIsInvalid(t *testing.T) {
	next4Bits := uint64(0)
	symbols := []uint64{0, 0, 0, 0}
	err := CheckPrecode(next4Bits, packPrecodeSymbols(symbols))
	assert.NotNil(t, err)
}

func TestTwoEqualLengthOneSymbolsIsValid(t *testing.T) {
	// Two codes of length 1 (0 and 1) form a complete code on their own.
	next4Bits := uint64(0)
	symbols := []uint64{1, 1, 0, 0}
	err := CheckPrecode(next4Bits, packPrecodeSymbols(symbols))
	assert.Nil(t, err)
}

func TestKraftCompleteEightLengthThreeIsValid(t *testing.T) {
	symbols := make([]uint64, 19)
	for i := 0; i < 8; i++ {
		symbols[i] = 3
	}
	err := CheckPrecode(uint64(15), packPrecodeSymbols(symbols))
	assert.Nil(t, err)
}

func TestValidCodeLengthHistogramsNonEmpty(t *testing.T) {
	histograms := validCodeLengthHistograms()
	assert.NotEmpty(t, histograms)
	for _, h := range histograms {
		total := 0
		for _, c := range h {
			total += c
		}
		assert.LessOrEqual(t, total, maxPrecodeCount)
		assert.GreaterOrEqual(t, total, 1)
	}
}

func TestIncrementCountSetsOverflowBit(t *testing.T) {
	var h histogram
	// memberBitWidths[1] == 1, so two increments overflow that field.
	h = incrementCount(h, 1)
	h = incrementCount(h, 1)
	assert.NotZero(t, h&(histogram(1)<<overflowMemberOffset))
}
