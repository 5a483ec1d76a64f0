// Package blockfinder implements the Gzip Block Finder (spec.md §2): a
// bookkeeping structure that partitions a gzip stream into confirmed
// block offsets (fed in by the decoder as it makes progress) and guessed
// "virtual" offsets spaced evenly across the remainder of the file, so
// the Block Fetcher always has something plausible to hand a worker even
// before real decoding confirms it.
//
// Grounded on pragzip::GzipBlockFinder (original_source), translated
// from C++ RAII + std::deque + std::mutex into a Go struct guarded by
// sync.Mutex, in the teacher's idiom of version/version_set.go's
// mutex-guarded monotonic state.
package blockfinder

import (
	"io"
	"math"
	"sort"
	"sync"

	"pargzip/internal/errs"
)

// minSpacingBits mirrors GzipBlockFinder's rejection of a spacing
// smaller than the deflate window size: below that, the virtual-offset
// index could grow as large as the decompressed file itself.
const minSpacingBits = 32 * 1024 * 8

// Finder partitions a gzip stream into confirmed and virtual block
// offsets. All methods are safe for concurrent use.
type Finder struct {
	mu sync.Mutex

	fileSizeBits  int64
	spacingBits   int64
	blockOffsets  []int64
	finalized     bool

	isBGZF        bool
	bgzf          *bgzfScanner
	batchFetch    int
}

// Options configures a new Finder.
type Options struct {
	// FileSize is the size, in bytes, of the gzip stream.
	FileSize int64
	// Spacing is the virtual-offset grid spacing, in bytes. Must be at
	// least the deflate window size (32 KiB); anything smaller makes
	// the index as large as the decompressed data.
	Spacing int64
	// Parallelization sizes the BGZF batch lookahead
	// (max(16, 3*Parallelization)), matching
	// GzipBlockFinder::m_batchFetchCount.
	Parallelization int
}

// New constructs a Finder by reading the gzip header from r to locate
// the first DEFLATE block, and probing for the BGZF extra field.
func New(r io.ReaderAt, opts Options) (*Finder, error) {
	if opts.Spacing*8 < minSpacingBits {
		return nil, errs.New(errs.InvalidArgument, "a spacing smaller than the window size makes no sense")
	}

	sectionReader := io.NewSectionReader(r, 0, opts.FileSize)
	br := newBitReader(sectionReader)
	if _, err := readHeader(br); err != nil {
		return nil, errs.Wrap(errs.HeaderInvalid, err, "reading gzip header")
	}

	f := &Finder{
		fileSizeBits: opts.FileSize * 8,
		spacingBits:  opts.Spacing * 8,
		blockOffsets: []int64{br.tell()},
	}

	f.batchFetch = opts.Parallelization * 3
	if f.batchFetch < 16 {
		f.batchFetch = 16
	}

	isBGZF, err := detectBGZF(io.NewSectionReader(r, 0, opts.FileSize))
	if err == nil && isBGZF {
		f.isBGZF = true
		f.bgzf = newBGZFScanner(r, opts.FileSize)
	}

	return f, nil
}

// Size returns the number of block offsets currently known. This may
// grow until Finalize is called.
func (f *Finder) Size() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.blockOffsets)
}

// Finalize marks the Finder as complete: no further offsets may be
// inserted, and Get will stop synthesizing virtual offsets beyond the
// confirmed set.
func (f *Finder) Finalize() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finalized = true
}

// Finalized reports whether Finalize has been called.
func (f *Finder) Finalized() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.finalized
}

// IsBGZFFile reports whether the stream was detected as BGZF
// (spec.md's Non-goals carve out BGZF detection as explicitly in
// scope: "detecting BGZF framing to skip guesswork").
func (f *Finder) IsBGZFFile() bool {
	return f.isBGZF
}

// SpacingBits returns the virtual-offset grid spacing, in bits.
func (f *Finder) SpacingBits() int64 {
	return f.spacingBits
}

// Insert records a confirmed block offset, in bits. Offsets should
// generally be inserted in increasing order since no partitioning
// happens before the largest inserted offset. Offsets at or past the end
// of the file are ignored without error, finalized or not. A no-op once
// Finalize has been called on an already-known offset; inserting a genuinely new
// offset after Finalize returns an InvalidArgument error to the caller,
// matching the original's std::invalid_argument (thrown synchronously to
// the caller, not an abort-worthy invariant violation).
func (f *Finder) Insert(blockOffsetBits int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.insertLocked(blockOffsetBits)
}

func (f *Finder) insertLocked(blockOffsetBits int64) error {
	if blockOffsetBits >= f.fileSizeBits {
		return nil
	}

	idx := sort.Search(len(f.blockOffsets), func(i int) bool { return f.blockOffsets[i] >= blockOffsetBits })
	if idx < len(f.blockOffsets) && f.blockOffsets[idx] == blockOffsetBits {
		return nil
	}
	if f.finalized {
		return errs.New(errs.InvalidArgument, "already finalized, may not insert further block offsets")
	}

	f.blockOffsets = append(f.blockOffsets, 0)
	copy(f.blockOffsets[idx+1:], f.blockOffsets[idx:])
	f.blockOffsets[idx] = blockOffsetBits
	return nil
}

// sentinelFileSize is the largest representable offset. Get does not
// return it: for the index one past the last grid guess inside the file,
// Get returns the file size in bits.
const sentinelFileSize = math.MaxInt64

// Get returns the bit offset of blockIndex: a confirmed offset if known,
// otherwise a guess based on SpacingBits. Unlike the original's
// gatherMoreBgzfBlocks, which accepts a timeout budget to poll for more
// confirmed offsets, this never blocks: BGZF gathering is bounded by
// batchFetch and returns immediately regardless of how many more offsets
// it finds. The index right after the last grid guess inside the file
// yields the file size in bits. ok is false when the stream is finalized
// and blockIndex is past the confirmed offsets, or when blockIndex lies
// beyond that file-size entry.
func (f *Finder) Get(blockIndex int64) (offsetBits int64, ok bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.isBGZF && f.bgzf != nil && !f.finalized {
		f.gatherMoreBGZFBlocksLocked(blockIndex)
	}

	if blockIndex < int64(len(f.blockOffsets)) {
		return f.blockOffsets[blockIndex], true
	}

	if f.finalized {
		return 0, false
	}

	blockIndexOutside := blockIndex - int64(len(f.blockOffsets))
	partitionIndex := f.firstPartitionIndexLocked() + blockIndexOutside
	offset := partitionIndex * f.spacingBits
	if offset < f.fileSizeBits {
		return offset, true
	}

	if partitionIndex > 0 {
		previous := (partitionIndex - 1) * f.spacingBits
		if previous < f.fileSizeBits {
			return f.fileSizeBits, true
		}
	}

	return 0, false
}

// Find returns the index of the block at encodedBlockOffsetBits.
func (f *Finder) Find(encodedBlockOffsetBits int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	idx := sort.Search(len(f.blockOffsets), func(i int) bool { return f.blockOffsets[i] >= encodedBlockOffsetBits })
	if idx < len(f.blockOffsets) && f.blockOffsets[idx] == encodedBlockOffsetBits {
		return int64(idx), nil
	}

	last := f.blockOffsets[len(f.blockOffsets)-1]
	if encodedBlockOffsetBits > last && encodedBlockOffsetBits < f.fileSizeBits &&
		encodedBlockOffsetBits%f.spacingBits == 0 {
		blockIndex := int64(len(f.blockOffsets)) +
			(encodedBlockOffsetBits/f.spacingBits - f.firstPartitionIndexLocked())
		return blockIndex, nil
	}

	return 0, errs.Newf(errs.OutOfRange, "no block with offset %d exists in the block finder map", encodedBlockOffsetBits)
}

// SetBlockOffsets replaces the confirmed offset set wholesale and
// finalizes the Finder. Used when an external index (e.g. one produced
// by a prior full scan) is available up front.
func (f *Finder) SetBlockOffsets(offsets []int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blockOffsets = append([]int64(nil), offsets...)
	f.finalized = true
}

// PartitionOffsetContaining rounds blockOffsetBits down to the
// SpacingBits grid.
func (f *Finder) PartitionOffsetContaining(blockOffsetBits int64) int64 {
	return (blockOffsetBits / f.spacingBits) * f.spacingBits
}

func (f *Finder) firstPartitionIndexLocked() int64 {
	last := f.blockOffsets[len(f.blockOffsets)-1]
	return last/f.spacingBits + 1
}

func (f *Finder) gatherMoreBGZFBlocksLocked(blockNumber int64) {
	for blockNumber+int64(f.batchFetch) >= int64(len(f.blockOffsets)) {
		nextOffset, ok := f.bgzf.next()
		if !ok {
			break
		}
		if nextOffset < f.blockOffsets[len(f.blockOffsets)-1]+f.spacingBits {
			continue
		}
		if nextOffset >= f.fileSizeBits {
			break
		}
		_ = f.insertLocked(nextOffset)
	}
}
