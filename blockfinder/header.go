package blockfinder

import "pargzip/internal/errs"

const (
	gzipMagic0 = 0x1f
	gzipMagic1 = 0x8b
	gzipCMDeflate = 8

	flagText    = 1 << 0
	flagHCRC    = 1 << 1
	flagExtra   = 1 << 2
	flagName    = 1 << 3
	flagComment = 1 << 4
)

// header holds the handful of gzip member header fields this package
// cares about: enough to validate the stream and locate the first
// DEFLATE block (spec.md §2, Non-goals: "does not decode DEFLATE data,
// only locates block boundaries").
type header struct {
	compressionMethod byte
	flags             byte
	mtime             uint32
	extraFlags        byte
	os                byte
}

// readHeader parses one gzip member header from r, leaving r positioned
// at the first bit of the first DEFLATE block header. It returns the
// parsed header fields; the caller reads the first block's bit offset
// from b.tell() afterwards, matching GzipBlockFinder's constructor
// behavior of recording bitReader.tell() right after the header.
func readHeader(b *bitReader) (header, error) {
	var h header

	magic0, err := b.readByte()
	if err != nil {
		return h, errs.Wrap(errs.HeaderInvalid, err, "reading gzip magic byte 0")
	}
	magic1, err := b.readByte()
	if err != nil {
		return h, errs.Wrap(errs.HeaderInvalid, err, "reading gzip magic byte 1")
	}
	if magic0 != gzipMagic0 || magic1 != gzipMagic1 {
		return h, errBadMagic
	}

	h.compressionMethod, err = b.readByte()
	if err != nil {
		return h, errs.Wrap(errs.HeaderInvalid, err, "reading CM")
	}
	if h.compressionMethod != gzipCMDeflate {
		return h, errs.Newf(errs.HeaderInvalid, "unsupported gzip compression method %d", h.compressionMethod)
	}

	h.flags, err = b.readByte()
	if err != nil {
		return h, errs.Wrap(errs.HeaderInvalid, err, "reading FLG")
	}

	mtimeBytes := make([]byte, 4)
	for i := range mtimeBytes {
		mtimeBytes[i], err = b.readByte()
		if err != nil {
			return h, errs.Wrap(errs.HeaderInvalid, err, "reading MTIME")
		}
	}
	h.mtime = uint32(mtimeBytes[0]) | uint32(mtimeBytes[1])<<8 | uint32(mtimeBytes[2])<<16 | uint32(mtimeBytes[3])<<24

	h.extraFlags, err = b.readByte()
	if err != nil {
		return h, errs.Wrap(errs.HeaderInvalid, err, "reading XFL")
	}
	h.os, err = b.readByte()
	if err != nil {
		return h, errs.Wrap(errs.HeaderInvalid, err, "reading OS")
	}

	if h.flags&flagExtra != 0 {
		xlen0, err := b.readByte()
		if err != nil {
			return h, errs.Wrap(errs.HeaderInvalid, err, "reading XLEN")
		}
		xlen1, err := b.readByte()
		if err != nil {
			return h, errs.Wrap(errs.HeaderInvalid, err, "reading XLEN")
		}
		xlen := int(xlen0) | int(xlen1)<<8
		if err := b.skipBytes(xlen); err != nil {
			return h, errs.Wrap(errs.HeaderInvalid, err, "reading FEXTRA payload")
		}
	}
	if h.flags&flagName != 0 {
		if err := b.readCString(); err != nil {
			return h, errs.Wrap(errs.HeaderInvalid, err, "reading FNAME")
		}
	}
	if h.flags&flagComment != 0 {
		if err := b.readCString(); err != nil {
			return h, errs.Wrap(errs.HeaderInvalid, err, "reading FCOMMENT")
		}
	}
	if h.flags&flagHCRC != 0 {
		if err := b.skipBytes(2); err != nil {
			return h, errs.Wrap(errs.HeaderInvalid, err, "reading FHCRC")
		}
	}

	return h, nil
}
