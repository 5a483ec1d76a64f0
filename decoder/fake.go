package decoder

import (
	"fmt"
	"sync"
	"sync/atomic"

	"pargzip/internal/errs"
)

// Fake is a BlockDecoder that never touches DEFLATE bitstreams: it
// synthesizes a deterministic payload from the requested offset, so
// fetcher tests can exercise caching, prefetching, and failure
// propagation without a real decoder. Not a reference implementation of
// anything in scope (spec.md Non-goals: "the concrete DEFLATE/gzip
// bitstream decoder").
type Fake struct {
	mu         sync.Mutex
	failOffset map[int64]bool
	delay      func()
	calls      int64
	lastNext   int64
}

// NewFake returns a Fake with no induced failures or artificial delay.
func NewFake() *Fake {
	return &Fake{failOffset: make(map[int64]bool)}
}

// FailAt makes subsequent decodes of offsetBits return a DecodeFailure
// error, for exercising the failure-propagation paths in spec.md §7.
func (f *Fake) FailAt(offsetBits int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failOffset[offsetBits] = true
}

// SetDelay installs a hook invoked synchronously at the start of every
// DecodeBlock call, letting tests simulate a slow decoder to exercise
// the Fetcher's poll-and-reprefetch suspension point.
func (f *Fake) SetDelay(delay func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delay = delay
}

// Calls returns the number of times DecodeBlock has been invoked.
func (f *Fake) Calls() int64 {
	return atomic.LoadInt64(&f.calls)
}

// LastNextOffsetBits returns the nextOffsetBits argument passed to the
// most recent DecodeBlock call, letting tests assert that callers thread
// a resolved boundary through instead of always passing UnknownEnd.
func (f *Fake) LastNextOffsetBits() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastNext
}

// DecodeBlock implements BlockDecoder.
func (f *Fake) DecodeBlock(offsetBits, nextOffsetBits int64) (BlockData, error) {
	atomic.AddInt64(&f.calls, 1)

	f.mu.Lock()
	delay := f.delay
	shouldFail := f.failOffset[offsetBits]
	f.lastNext = nextOffsetBits
	f.mu.Unlock()

	if delay != nil {
		delay()
	}
	if shouldFail {
		return BlockData{}, errs.Newf(errs.DecodeFailure, "fake decode failure at offset %d", offsetBits)
	}

	payload := []byte(fmt.Sprintf("block@%d..%d", offsetBits, nextOffsetBits))
	return BlockData{Payload: payload, OffsetBits: offsetBits}, nil
}
