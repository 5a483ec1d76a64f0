// Package precode implements the Precode Validity Check (spec.md §5):
// a branchless test, invoked on every candidate block-start guess during
// speculative boundary search, that rejects invalid DEFLATE precode
// (code-length alphabet) bit sequences before spending any time trying
// to actually decode them.
//
// Grounded on pragzip::PrecodeCheck::SingleLUT (original_source),
// translated from C++ constexpr table generation into Go package-level
// init() construction (Go has no facility for building tables this size
// at compile time). Bit-packing style follows cache/cm_sketch.go's
// nibble-packed counters (a variable-width packed histogram instead of
// fixed 4-bit nibbles).
package precode

// histogram is a variable-length bit-packed count-of-code-lengths
// record: one 5-bit "how many non-zero lengths" field, one field per
// code length 1..7 sized just wide enough for the maximum count that
// length can legally have, and 3 reserved overflow bits at the top.
type histogram = uint32

// memberBitWidths[0] is the width of the non-zero-count field; indices
// 1..7 are the widths for code lengths 1..7 respectively. Exhaustive
// search over valid DEFLATE precode histograms (pragzip's derivation)
// shows these are the minimum widths that never truncate a legal count.
var memberBitWidths = [8]uint{5, 1, 2, 3, 4, 5, 5, 4}

// memberOffsets[i] is the bit offset of member i, the running sum of
// the preceding widths.
var memberOffsets = computeMemberOffsets()

func computeMemberOffsets() [8]uint {
	var offsets [8]uint
	var sum uint
	for i, width := range memberBitWidths {
		offsets[i] = sum
		sum += width
	}
	return offsets
}

// overflowMemberOffset is the bit position of the overflow flag: set
// whenever any individual member's count field would have overflowed
// during a carryless (XOR-based) histogram addition.
var overflowMemberOffset = memberOffsets[7] + memberBitWidths[7]

// lowestMemberBitsMask has the lowest bit of every member field set;
// used to detect a carry having crossed a field boundary during
// carryless addition.
var lowestMemberBitsMask = computeLowestMemberBitsMask()

func computeLowestMemberBitsMask() histogram {
	var result histogram
	for _, offset := range memberOffsets {
		result |= histogram(1) << offset
	}
	return result
}

// overflowBitsMask additionally covers the reserved overflow bits above
// overflowMemberOffset.
var overflowBitsMask = lowestMemberBitsMask | (^histogram(0) << overflowMemberOffset)

func nLowestBitsSet(n uint) histogram {
	if n == 0 {
		return 0
	}
	return histogram(1)<<n - 1
}

func getCount(h histogram, value uint) uint8 {
	return uint8((h >> memberOffsets[value]) & nLowestBitsSet(memberBitWidths[value]))
}

func setCount(h histogram, value uint, count uint8) histogram {
	width := memberBitWidths[value]
	return (h &^ (nLowestBitsSet(width) << memberOffsets[value])) | (histogram(count) << memberOffsets[value])
}

// incrementCount adds one to the count for value, setting the overflow
// flag (rather than truncating) if that count's field is already full.
// Always performs the raw addition regardless of overflow so that the
// result stays associative across differently-ordered partial sums —
// the overflow bit itself is non-associative (any overflow collapses to
// "some overflow happened") but that is fine since it is stripped before
// the validity lookup.
func incrementCount(h histogram, value uint) histogram {
	oldCount := uint32(getCount(h, value))
	newHistogram := h + (histogram(1) << memberOffsets[value])
	if oldCount+1 < (1 << memberBitWidths[value]) {
		return newHistogram
	}
	return newHistogram | (histogram(1) << overflowMemberOffset)
}

const (
	// precodeBits is the bit width of one DEFLATE precode symbol.
	precodeBits = 3
	// maxPrecodeCount is the maximum number of code-length-alphabet
	// symbols a DEFLATE block header can specify (RFC 1951 §3.2.7).
	maxPrecodeCount = 19
)

// calculateHistogram builds the packed histogram for valueCount values,
// each valueBits wide, packed LSB-first into values.
func calculateHistogram(values uint64, valueBits, valueCount uint) histogram {
	var h histogram
	for i := uint(0); i < valueCount; i++ {
		value := uint((values >> (i * valueBits)) & uint64(nLowestBitsSet(valueBits)))
		if value > 0 {
			h = incrementCount(h, value)
			h++ // = incrementCount(h, 0); safe: the LUT passes at most 4 values, far below the 5-bit field's limit.
		}
	}
	return h
}

// precodeX4ToHistogramLUT maps every possible 4-symbol (12-bit) chunk of
// precode values to its packed histogram, so a 19-symbol precode can be
// histogrammed in 5 lookups and additions instead of 19.
var precodeX4ToHistogramLUT [1 << (precodeBits * 4)]histogram

func init() {
	for i := range precodeX4ToHistogramLUT {
		precodeX4ToHistogramLUT[i] = calculateHistogram(uint64(i), precodeBits, 4)
	}
}

// histogramToLookUpBits is the width of the validity-LUT key: all seven
// length-count fields, excluding the non-zero-count and overflow
// fields.
const histogramToLookUpBits = 24

// precodeHistogramValidLUT is a 2 MiB bitmap (2^24 bits) with one bit
// per possible packed (non-zero-count- and overflow-stripped) histogram
// value, set exactly for histograms that are valid, Kraft-complete
// DEFLATE precode code-length distributions.
var precodeHistogramValidLUT [(1 << histogramToLookUpBits) / 64]uint64

func init() {
	for _, counts := range validCodeLengthHistograms() {
		packed, ok := packHistogram(counts)
		if !ok {
			continue
		}
		lookupValue := packed >> memberBitWidths[0]
		precodeHistogramValidLUT[lookupValue/64] |= uint64(1) << (lookupValue % 64)
	}
}

// packHistogram packs a [7]int histogram of per-length code counts
// (index i holding the count for length i+1) into the compact
// representation, returning ok=false if any individual count overflows
// its field width (those cases are covered instead by
// powerOfTwoSpecialCases).
func packHistogram(counts [7]int) (histogram, bool) {
	var packed histogram
	var nonZeroCount int
	for i, count := range counts {
		depth := uint(i + 1)
		nonZeroCount += count
		if count >= (1 << memberBitWidths[depth]) {
			return 0, false
		}
		packed = setCount(packed, depth, uint8(count))
	}
	if nonZeroCount >= (1 << memberBitWidths[0]) {
		return 0, false
	}
	return setCount(packed, 0, uint8(nonZeroCount)), true
}

// validCodeLengthHistograms enumerates every histogram of per-length
// code counts (lengths 1..7, total count 1..maxPrecodeCount) that forms
// a Kraft-complete binary code, i.e. a legal canonical Huffman code with
// no unused leaves and no missing ones. Equivalent to exhaustively
// searching sum(counts[i] / 2^(i+1)) == 1 using integer arithmetic
// scaled by 2^7 to avoid floating point.
func validCodeLengthHistograms() [][7]int {
	const scale = 1 << 7 // common denominator for lengths 1..7
	weights := [7]int{64, 32, 16, 8, 4, 2, 1}

	var results [][7]int
	var counts [7]int

	var recurse func(depth, remainingWeight, remainingTotal int)
	recurse = func(depth, remainingWeight, remainingTotal int) {
		if depth == 7 {
			if remainingWeight == 0 {
				results = append(results, counts)
			}
			return
		}
		weight := weights[depth]
		maxCount := remainingWeight / weight
		if maxCount > remainingTotal {
			maxCount = remainingTotal
		}
		for c := 0; c <= maxCount; c++ {
			counts[depth] = c
			recurse(depth+1, remainingWeight-c*weight, remainingTotal-c)
		}
		counts[depth] = 0
	}
	recurse(0, scale, maxPrecodeCount)

	return results
}

// powerOfTwoSpecialCases maps a non-zero-count to the single valid
// histogram it can correspond to when that histogram's per-length
// counts would otherwise overflow packHistogram's field widths (e.g. 2
// codes of length 1 overflows the 1-bit length-1 field). Indices with
// more than one possible histogram, or none, map to ^histogram(0), a
// value the validity lookup can never match.
var powerOfTwoSpecialCases = [32]histogram{
	0:  ^histogram(0), // an empty alphabet is never legal
	1:  1 << 0,        // one code of length 1
	2:  1 << 1,        // two codes of length 1, folds to one of length 2
	3:  ^histogram(0),
	4:  1 << 3, // four codes folding to one of length 3
	5:  ^histogram(0),
	6:  ^histogram(0),
	7:  ^histogram(0),
	8:  1 << 6, // eight codes folding to one of length 4
	9:  ^histogram(0),
	10: ^histogram(0),
	11: ^histogram(0),
	12: ^histogram(0),
	13: ^histogram(0),
	14: ^histogram(0),
	15: ^histogram(0),
	16: 1 << 10, // sixteen codes folding to one of length 5
	17: ^histogram(0),
	18: ^histogram(0),
	19: ^histogram(0),
	20: ^histogram(0),
	21: ^histogram(0),
	22: ^histogram(0),
	23: ^histogram(0),
	24: ^histogram(0),
	25: ^histogram(0),
	26: ^histogram(0),
	27: ^histogram(0),
	28: ^histogram(0),
	29: ^histogram(0),
	30: ^histogram(0),
	31: ^histogram(0),
}
