// BGZF auxiliary scanner: a SPEC_FULL supplement (see SPEC_FULL.md,
// Supplemented Features §1). BGZF (the block-gzip variant samtools and
// friends use) embeds an "extra field" subfield in every member's gzip
// header giving that member's total compressed size, which lets block
// boundaries be found by jumping rather than by actually decoding
// DEFLATE data. Gated by the same batchFetchCount lookahead pragzip's
// GzipBlockFinder uses (max(16, 3*parallelism)), this turns confirmed
// offsets into a near-free index for BGZF input instead of falling back
// to evenly-spaced virtual guesses.
package blockfinder

import "io"

// bgzfSubfieldID0 and bgzfSubfieldID1 form the two-byte subfield
// identifier ('B','C') BGZF uses within the gzip FEXTRA field to carry the block size.
const (
	bgzfSubfieldID0 = 'B'
	bgzfSubfieldID1 = 'C'
)

// detectBGZF reports whether r begins with a gzip member carrying a
// BGZF "BC" extra subfield. It parses only the first header, but its
// buffered bit reader may read further ahead from r; callers always hand
// it a fresh SectionReader, so that read-ahead has no effect on them.
func detectBGZF(r io.Reader) (bool, error) {
	br := newBitReader(r)
	h, err := peekHeaderForBGZF(br)
	if err != nil {
		return false, err
	}
	return h, nil
}

// peekHeaderForBGZF parses just enough of a gzip header to tell whether
// FEXTRA carries a BGZF "BC" subfield, without needing the full header
// parser's side effects.
func peekHeaderForBGZF(b *bitReader) (bool, error) {
	magic0, err := b.readByte()
	if err != nil {
		return false, err
	}
	magic1, err := b.readByte()
	if err != nil {
		return false, err
	}
	if magic0 != gzipMagic0 || magic1 != gzipMagic1 {
		return false, nil
	}
	if _, err := b.readByte(); err != nil { // CM
		return false, err
	}
	flags, err := b.readByte()
	if err != nil {
		return false, err
	}
	if err := b.skipBytes(6); err != nil { // MTIME, XFL, OS
		return false, err
	}
	if flags&flagExtra == 0 {
		return false, nil
	}

	xlen0, err := b.readByte()
	if err != nil {
		return false, err
	}
	xlen1, err := b.readByte()
	if err != nil {
		return false, err
	}
	xlen := int(xlen0) | int(xlen1)<<8

	remaining := xlen
	for remaining >= 4 {
		si1, err := b.readByte()
		if err != nil {
			return false, err
		}
		si2, err := b.readByte()
		if err != nil {
			return false, err
		}
		slen0, err := b.readByte()
		if err != nil {
			return false, err
		}
		slen1, err := b.readByte()
		if err != nil {
			return false, err
		}
		slen := int(slen0) | int(slen1)<<8
		remaining -= 4

		if si1 == bgzfSubfieldID0 && si2 == bgzfSubfieldID1 && slen == 2 {
			return true, nil
		}
		if err := b.skipBytes(slen); err != nil {
			return false, err
		}
		remaining -= slen
	}

	return false, nil
}

// bsizeOfHeader parses one gzip+BGZF header starting at the reader's
// current position and returns BSIZE, the total member size in bytes
// minus one, as recorded in the "BC" extra subfield.
func bsizeOfHeader(b *bitReader) (bsize int, err error) {
	if _, err = b.readByte(); err != nil { // magic0
		return 0, err
	}
	if _, err = b.readByte(); err != nil { // magic1
		return 0, err
	}
	if _, err = b.readByte(); err != nil { // CM
		return 0, err
	}
	flags, err := b.readByte()
	if err != nil {
		return 0, err
	}
	if err = b.skipBytes(6); err != nil {
		return 0, err
	}
	if flags&flagExtra == 0 {
		return 0, io.ErrUnexpectedEOF
	}

	xlen0, err := b.readByte()
	if err != nil {
		return 0, err
	}
	xlen1, err := b.readByte()
	if err != nil {
		return 0, err
	}
	xlen := int(xlen0) | int(xlen1)<<8

	remaining := xlen
	for remaining >= 4 {
		si1, err := b.readByte()
		if err != nil {
			return 0, err
		}
		si2, err := b.readByte()
		if err != nil {
			return 0, err
		}
		slen0, err := b.readByte()
		if err != nil {
			return 0, err
		}
		slen1, err := b.readByte()
		if err != nil {
			return 0, err
		}
		slen := int(slen0) | int(slen1)<<8
		remaining -= 4

		if si1 == bgzfSubfieldID0 && si2 == bgzfSubfieldID1 && slen == 2 {
			b0, err := b.readByte()
			if err != nil {
				return 0, err
			}
			b1, err := b.readByte()
			if err != nil {
				return 0, err
			}
			return int(b0) | int(b1)<<8, nil
		}
		if err = b.skipBytes(slen); err != nil {
			return 0, err
		}
		remaining -= slen
	}

	return 0, io.ErrUnexpectedEOF
}

// bgzfScanner walks a BGZF stream member-by-member by following each
// header's BSIZE field, yielding successive member start offsets in
// bits. It never needs to touch compressed payload bytes.
type bgzfScanner struct {
	r            io.ReaderAt
	fileSize     int64
	nextByteOffs int64
	done         bool
}

func newBGZFScanner(r io.ReaderAt, fileSize int64) *bgzfScanner {
	return &bgzfScanner{r: r, fileSize: fileSize}
}

// next returns the bit offset of the next BGZF member's DEFLATE data —
// the position right after that member's gzip+"BC" header has been
// fully consumed, not the header's own starting offset — advancing past
// the member. ok is false once the stream is exhausted or a malformed
// member is encountered.
func (s *bgzfScanner) next() (offsetBits int64, ok bool) {
	if s.done || s.nextByteOffs >= s.fileSize {
		s.done = true
		return 0, false
	}

	memberStart := s.nextByteOffs
	section := io.NewSectionReader(s.r, memberStart, s.fileSize-memberStart)
	br := newBitReader(section)
	bsize, err := bsizeOfHeader(br)
	if err != nil {
		s.done = true
		return 0, false
	}

	blockDataOffsetBits := memberStart*8 + br.tell()
	s.nextByteOffs = memberStart + int64(bsize) + 1
	return blockDataOffsetBits, true
}
