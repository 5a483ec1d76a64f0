package blockfinder

import (
	"bufio"
	"io"

	"pargzip/internal/errs"
)

// bitReader reads bits LSB-first from an underlying byte stream, the
// order the DEFLATE and gzip formats are both specified in. It tracks
// its absolute bit position so offsets into the compressed stream can
// be reported in the same unit the rest of this package works in:
// bits, not bytes (spec.md §2: "offsets are in bits, not bytes").
type bitReader struct {
	src      *bufio.Reader
	buffer   uint64
	bitsHeld uint
	position int64
}

func newBitReader(r io.Reader) *bitReader {
	return &bitReader{src: bufio.NewReaderSize(r, 64*1024)}
}

// tell returns the current absolute bit offset into the stream.
func (b *bitReader) tell() int64 {
	return b.position
}

func (b *bitReader) refill(need uint) error {
	for b.bitsHeld < need {
		c, err := b.src.ReadByte()
		if err != nil {
			return err
		}
		b.buffer |= uint64(c) << b.bitsHeld
		b.bitsHeld += 8
	}
	return nil
}

// read returns the next n bits (n <= 57) as the low bits of the result,
// LSB-first.
func (b *bitReader) read(n uint) (uint64, error) {
	if n == 0 {
		return 0, nil
	}
	if err := b.refill(n); err != nil {
		return 0, err
	}
	mask := uint64(1)<<n - 1
	value := b.buffer & mask
	b.buffer >>= n
	b.bitsHeld -= n
	b.position += int64(n)
	return value, nil
}

func (b *bitReader) readByte() (byte, error) {
	v, err := b.read(8)
	return byte(v), err
}

// alignToByte discards any partially consumed byte, rounding the
// position up to the next byte boundary.
func (b *bitReader) alignToByte() {
	discard := b.bitsHeld % 8
	b.buffer >>= discard
	b.bitsHeld -= discard
	b.position += int64(discard)
}

var errBadMagic = errs.New(errs.HeaderInvalid, "not a gzip stream: bad magic bytes")

// skipBytes discards n bytes from the stream, honoring the bit-aligned
// position tracking; used for FEXTRA/FNAME/FCOMMENT gzip header fields.
func (b *bitReader) skipBytes(n int) error {
	b.alignToByte()
	for i := 0; i < n; i++ {
		if _, err := b.readByte(); err != nil {
			return err
		}
	}
	return nil
}

// readCString reads bytes up to and including a NUL terminator.
func (b *bitReader) readCString() error {
	b.alignToByte()
	for {
		c, err := b.readByte()
		if err != nil {
			return err
		}
		if c == 0 {
			return nil
		}
	}
}
