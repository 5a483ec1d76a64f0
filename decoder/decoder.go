// Package decoder defines the Block Decoder external collaborator
// (spec.md §6): the interface the Block Fetcher calls into to turn a
// confirmed or guessed block offset into decoded payload bytes. The
// concrete DEFLATE/gzip bitstream decoder is explicitly out of scope
// (spec.md §1); this package only carries the boundary the Fetcher is
// built against, plus a fake used to exercise the pipeline in tests.
//
// Grounded on the teacher's cache/replacer.go Replacer interface: a
// minimal single-method collaborator boundary with no implementation
// assumptions baked in.
package decoder

import "math"

// UnknownEnd is the sentinel passed as nextOffsetBits when the caller
// does not know where the following block starts.
const UnknownEnd = math.MaxInt64

// BlockData is the decoded payload for one DEFLATE block, treated
// opaquely by every layer above the decoder: producers emit it, caches
// hold it, consumers borrow it (spec.md §3).
type BlockData struct {
	// Payload is the decompressed bytes for this block.
	Payload []byte
	// OffsetBits is the bit offset this block was decoded from, carried
	// along for diagnostics.
	OffsetBits int64
}

// BlockDecoder turns a block's bit offset (and, if known, the bit
// offset of the block after it, or UnknownEnd) into decoded data.
type BlockDecoder interface {
	DecodeBlock(offsetBits, nextOffsetBits int64) (BlockData, error)
}
