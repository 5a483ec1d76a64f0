// Package fetcher implements the Block Fetcher (spec.md §4.4): the
// cache-backed, thread-pool-driven engine that turns a block offset
// into decoded data while speculatively prefetching blocks predicted by
// a Fetching Strategy, avoiding cache pollution from prefetches that
// never get consumed.
//
// Grounded on core/BlockFetcher.hpp (original_source), translated from
// std::future/std::promise and a std::map-based prefetch queue into Go
// channel-backed pool.Future values and a plain map guarded by the
// single-manager-thread contract (spec.md §5: "the Block Fetcher is not
// thread-safe at its public surface"), in the teacher's idiom of
// version/gc.go (goroutine-driven background work against
// mutex-guarded shared state — here, just the analytics fields workers
// touch).
package fetcher

import (
	"log"
	"sort"
	"sync"
	"time"

	"pargzip/blockfinder"
	"pargzip/decoder"
	"pargzip/internal/cache"
	"pargzip/internal/errs"
	"pargzip/internal/offsetset"
	"pargzip/pool"
	"pargzip/strategy"
)

// onDemandPriority and highPriority are the two priorities the Fetcher
// itself submits at (spec.md §5: "Prefetches submit at priority 0;
// high-priority scoped work is at priority -1").
const (
	prefetchPriority = 0
	onDemandPriority = 0
	highPriority     = -1
)

// pollInterval is how often Get re-checks an on-demand future while
// waiting, re-invoking the prefetch loop on every timeout so the pool
// stays saturated (spec.md §5).
const pollInterval = time.Millisecond

// microWait gates the Block Finder poll inside the prefetch loop for
// not-yet-discovered offsets.
const microWait = 100 * time.Microsecond

// Options configures a new Fetcher.
type Options struct {
	// Parallelization sizes the thread pool and both caches.
	Parallelization int
	// Pinning optionally maps a worker index to a logical CPU core.
	Pinning map[int]int
	// PartitionOffset, if set, additionally prefetches and de-dupes on
	// the partition offset containing a candidate, supplied by the
	// Block Finder's PartitionOffsetContaining.
	PartitionOffset func(offsetBits int64) int64
	// Logger receives the two Open-Question decisions' diagnostics
	// (dropped prefetch failures, duplicate on-demand/prefetch races),
	// gated by Verbose. Defaults to log.Default().
	Logger *log.Logger
	// Verbose enables logging of dropped prefetch failures and duplicate
	// on-demand/prefetch races (SPEC_FULL ambient logging; Open Question
	// decisions, see DESIGN.md). Off by default, matching spec.md §9's
	// "no logging, reimplementation should decide".
	Verbose bool
}

func withDefaults(o Options) Options {
	if o.Parallelization < 1 {
		o.Parallelization = 1
	}
	if o.Logger == nil {
		o.Logger = log.Default()
	}
	return o
}

func mainCacheSize(parallelization int) int {
	if parallelization > 16 {
		return parallelization
	}
	return 16
}

// Fetcher is the Block Fetcher. Its public operations are single-caller
// (spec.md §5); only the analytics fields are touched by worker
// goroutines, under analyticsMu.
type Fetcher struct {
	opts Options

	finder   *blockfinder.Finder
	strategy strategy.FetchingStrategy
	decode   decoder.BlockDecoder
	pool     *pool.Pool

	mainCache     *cache.Cache
	prefetchCache *cache.Cache
	prefetchMap   map[int64]*pool.Future

	hasLastIndex bool
	lastIndex    int64

	analyticsMu sync.Mutex
	stats       Statistics
}

// New constructs a Fetcher wired to the given Finder, Strategy, and
// Decoder.
func New(finder *blockfinder.Finder, strat strategy.FetchingStrategy, dec decoder.BlockDecoder, opts Options) *Fetcher {
	opts = withDefaults(opts)

	f := &Fetcher{
		opts:          opts,
		finder:        finder,
		strategy:      strat,
		decode:        dec,
		pool:          pool.New(opts.Parallelization, opts.Pinning),
		mainCache:     cache.New(mainCacheSize(opts.Parallelization)),
		prefetchCache: cache.New(2 * opts.Parallelization),
		prefetchMap:   make(map[int64]*pool.Future),
	}
	f.stats.Parallelization = opts.Parallelization
	return f
}

// Close stops the underlying thread pool, discarding any queued
// prefetches (spec.md §5: "stop_thread_pool() ... called from the
// Fetcher's teardown"), and shrinks both caches to 0 to finalize their
// "unused entries" statistics (spec.md §4.5).
func (f *Fetcher) Close() {
	f.mainCache.ShrinkTo(0)
	f.prefetchCache.ShrinkTo(0)
	f.pool.Stop()
}

// ClearCache empties the main cache only; the prefetch cache and
// in-flight prefetches are preserved.
func (f *Fetcher) ClearCache() {
	f.mainCache.Clear()
}

// SubmitHighPriority is a SPEC_FULL supplement exposing direct access
// to priority -1 scheduling (pragzip's BlockFetcher reserves this
// priority internally for scoped high-priority work, but never exposes
// submission at it; a caller needing to jump the queue — e.g. a
// user-visible seek competing with background prefetches — needs a way
// to ask for it).
func (f *Fetcher) SubmitHighPriority(task pool.Task) *pool.Future {
	return f.pool.Submit(task, highPriority)
}

// Get resolves offsetBits to decoded block data, consulting the prefetch
// map and both caches before falling back to an on-demand decode.
// dataBlockIndex, if non-nil, supplies the block's index directly
// (skipping a Finder.Find lookup); onlyCheckCaches, if true, never
// submits a decode and reports found=false on a miss instead.
//
// Mirrors core/BlockFetcher.hpp's get(): a result already resolved from
// a cache (a plain main-cache hit, or a prefetch-cache hit promoted into
// the main cache as part of that lookup) is returned as-is; only a
// result that had to come from a future — a prefetch-map direct hit or a
// freshly submitted on-demand decode — runs the strategy-driven
// main-cache clear and insert once that future resolves.
func (f *Fetcher) Get(offsetBits int64, dataBlockIndex *int64, onlyCheckCaches bool) (data decoder.BlockData, found bool, err error) {
	getStart := time.Now()
	f.stats.Gets++

	cached, cachedOK, future, miss, err := f.lookup(offsetBits, dataBlockIndex, onlyCheckCaches)
	if err != nil {
		f.stats.TotalGetDuration += time.Since(getStart)
		return decoder.BlockData{}, false, err
	}
	if miss {
		f.stats.TotalGetDuration += time.Since(getStart)
		return decoder.BlockData{}, false, nil
	}

	blockIndex, err := f.resolveBlockIndex(offsetBits, dataBlockIndex)
	if err != nil {
		f.stats.TotalGetDuration += time.Since(getStart)
		return decoder.BlockData{}, false, err
	}
	f.classifyAccess(blockIndex)
	f.strategy.Fetch(blockIndex)

	f.prefetchNewBlocks(stopPrefetchingFor(future))

	if cachedOK {
		f.stats.TotalGetDuration += time.Since(getStart)
		return cached, true, nil
	}

	result, err := f.awaitFuture(future)
	if err != nil {
		f.stats.TotalGetDuration += time.Since(getStart)
		return decoder.BlockData{}, false, err
	}
	if f.strategy.IsSequential() {
		f.mainCache.Clear()
	}
	f.mainCache.Insert(offsetBits, result)

	f.stats.TotalGetDuration += time.Since(getStart)
	return result, true, nil
}

func (f *Fetcher) resolveBlockIndex(offsetBits int64, dataBlockIndex *int64) (int64, error) {
	if dataBlockIndex != nil {
		return *dataBlockIndex, nil
	}
	idx, err := f.finder.Find(offsetBits)
	if err != nil {
		return 0, err
	}
	return idx, nil
}

func (f *Fetcher) classifyAccess(blockIndex int64) {
	switch {
	case !f.hasLastIndex:
		f.stats.SequentialAccesses++
	case blockIndex == f.lastIndex:
		f.stats.DuplicateAccesses++
		if f.opts.Verbose {
			f.opts.Logger.Printf("fetcher: duplicate access to block %d; an on-demand decode may race a still-in-flight prefetch for it", blockIndex)
		}
	case blockIndex == f.lastIndex+1:
		f.stats.SequentialAccesses++
	case blockIndex > f.lastIndex:
		f.stats.ForwardSeeks++
	default:
		f.stats.BackwardSeeks++
	}
	f.lastIndex = blockIndex
	f.hasLastIndex = true
}

// lookup implements the lookup order from spec.md §4.4: prefetch map,
// then main cache, then prefetch cache (with promotion), then an
// on-demand decode unless onlyCheckCaches is set.
//
// Exactly one of (cachedOK, future non-nil, miss) holds on a nil error:
// cachedOK means data is already resolved (no further cache mutation is
// needed); a non-nil future means the caller must await it and then run
// the strategy-driven clear/insert; miss means onlyCheckCaches was set
// and nothing is in cache.
func (f *Fetcher) lookup(offsetBits int64, dataBlockIndex *int64, onlyCheckCaches bool) (cached decoder.BlockData, cachedOK bool, future *pool.Future, miss bool, err error) {
	if fut, ok := f.prefetchMap[offsetBits]; ok {
		delete(f.prefetchMap, offsetBits)
		f.stats.PrefetchDirectHits++
		return decoder.BlockData{}, false, fut, false, nil
	}

	if v, ok := f.mainCache.Get(offsetBits); ok {
		f.stats.CacheHits++
		return v.(decoder.BlockData), true, nil, false, nil
	}

	if v, ok := f.prefetchCache.Get(offsetBits); ok {
		f.stats.PrefetchCacheHits++
		f.prefetchCache.Evict(offsetBits)
		data := v.(decoder.BlockData)
		if f.strategy.IsSequential() {
			f.mainCache.Clear()
		}
		f.mainCache.Insert(offsetBits, data)
		return data, true, nil, false, nil
	}

	f.stats.CacheMisses++
	if onlyCheckCaches {
		return decoder.BlockData{}, false, nil, true, nil
	}

	nextOffsetBits := f.resolveNextOffsetBits(offsetBits, dataBlockIndex)
	fut := f.pool.Submit(f.decodeTask(offsetBits, nextOffsetBits), onDemandPriority)
	return decoder.BlockData{}, false, fut, false, nil
}

// resolveNextOffsetBits asks the Block Finder for the offset of the
// block after offsetBits, so the decoder can be given a real boundary
// instead of the "unknown end" sentinel whenever the Finder already
// knows it (spec.md §6: "decode_block(offset_bits,
// next_offset_bits_or_sentinel)"). Falls back to the sentinel if the
// block's index can't be resolved or the Finder has no offset for the
// block after it yet.
func (f *Fetcher) resolveNextOffsetBits(offsetBits int64, dataBlockIndex *int64) int64 {
	blockIndex, err := f.resolveBlockIndex(offsetBits, dataBlockIndex)
	if err != nil {
		return decoder.UnknownEnd
	}
	next, ok := f.finder.Get(blockIndex + 1)
	if !ok {
		return decoder.UnknownEnd
	}
	return next
}

// awaitFuture blocks for fut to resolve, polling at pollInterval and
// re-invoking the prefetch loop on every timeout so the pool stays
// saturated while the caller waits (spec.md §5). fut.Ready is also
// handed to the prefetch loop as its stop_prefetching predicate, so it
// skips the micro-wait for not-yet-discovered offsets once the awaited
// result is ready.
func (f *Fetcher) awaitFuture(fut *pool.Future) (decoder.BlockData, error) {
	waitStart := time.Now()
	for !fut.Ready() {
		time.Sleep(pollInterval)
		f.stats.WaitCount++
		f.prefetchNewBlocks(fut.Ready)
	}
	f.stats.FutureWaitDuration += time.Since(waitStart)

	result, err := fut.Get()
	if err != nil {
		return decoder.BlockData{}, err
	}
	return result.(decoder.BlockData), nil
}

// stopPrefetchingFor builds the stop_prefetching predicate for a call to
// prefetchNewBlocks made before awaiting fut (spec.md §5): false if
// there is nothing to await yet, otherwise fut.Ready so an
// already-resolved future short-circuits any micro-wait immediately.
func stopPrefetchingFor(fut *pool.Future) func() bool {
	if fut == nil {
		return func() bool { return false }
	}
	return fut.Ready
}

// decodeTask wraps the Decoder call with decode-timing bookkeeping
// under analyticsMu, the only Fetcher state touched from worker
// goroutines (spec.md §5). nextOffsetBits should be the real offset of
// the following block when the caller already knows it, or
// decoder.UnknownEnd otherwise.
func (f *Fetcher) decodeTask(offsetBits, nextOffsetBits int64) pool.Task {
	return func() (interface{}, error) {
		decodeStart := time.Now()
		data, err := f.decode.DecodeBlock(offsetBits, nextOffsetBits)
		decodeEnd := time.Now()

		f.analyticsMu.Lock()
		f.stats.DecodeDuration += decodeEnd.Sub(decodeStart)
		if f.stats.MinDecodeStart.IsZero() || decodeStart.Before(f.stats.MinDecodeStart) {
			f.stats.MinDecodeStart = decodeStart
		}
		if decodeEnd.After(f.stats.MaxDecodeEnd) {
			f.stats.MaxDecodeEnd = decodeEnd
		}
		f.analyticsMu.Unlock()

		if err != nil {
			return nil, err
		}
		return data, nil
	}
}

// prefetchCandidate pairs a predicted block index with the offset the
// Finder resolved it to.
type prefetchCandidate struct {
	index  int64
	offset int64
}

// prefetchNewBlocks is the prefetch loop from spec.md §4.4.
// stopPrefetching reports whether the primary result the caller is
// actually waiting on (if any) is already ready; once it is, the
// per-candidate micro-wait for not-yet-discovered offsets is skipped.
func (f *Fetcher) prefetchNewBlocks(stopPrefetching func() bool) {
	f.drainReadyPrefetches()

	if len(f.prefetchMap)+1 >= f.pool.Size() {
		return
	}

	indices := f.strategy.Prefetch(f.prefetchCache.Capacity())
	if len(indices) == 0 {
		return
	}

	candidates := make([]prefetchCandidate, 0, len(indices))
	candidateSet := offsetset.New(len(indices) * 2)

	for _, idx := range indices {
		offset, ok := f.finder.Get(idx)
		if !ok {
			continue
		}
		candidates = append(candidates, prefetchCandidate{index: idx, offset: offset})
		candidateSet.Add(offset)

		if f.opts.PartitionOffset != nil {
			partition := f.opts.PartitionOffset(offset)
			if partition != offset {
				candidateSet.Add(partition)
			}
		}
	}
	if len(candidates) == 0 {
		return
	}

	f.touchCandidatesReverseOrder(candidates)

	for _, c := range candidates {
		// Recheck saturation every iteration (spec.md §4.4 step 2's
		// invariant applies throughout the loop, not just on entry):
		// len(prefetchMap)+1 must never reach thread_pool.size().
		if len(f.prefetchMap)+1 >= f.pool.Size() {
			break
		}

		if _, ok := f.waitForOffset(c.index, stopPrefetching); !ok {
			continue
		}
		nextOffset, ok := f.waitForOffset(c.index+1, stopPrefetching)
		if !ok {
			continue
		}
		if f.alreadyPresent(c.offset) {
			continue
		}
		if f.opts.PartitionOffset != nil {
			partition := f.opts.PartitionOffset(c.offset)
			if partition != c.offset && f.alreadyPresent(partition) {
				continue
			}
		}

		if evictKey, ok := f.prefetchCache.NextNthEviction(len(f.prefetchMap) + 1); ok {
			if candidateSet.Contains(evictKey) {
				break
			}
		}

		future := f.pool.Submit(f.decodeTask(c.offset, nextOffset), prefetchPriority)
		f.prefetchMap[c.offset] = future
		f.stats.PrefetchSubmitted++
	}

	errs.CondPanic(f.pool.UnprocessedTasksCount(nil) > f.opts.Parallelization,
		errs.New(errs.LogicError, "thread pool queue depth exceeds parallelization"))
}

// waitForOffset resolves index to an offset via the Block Finder. On a
// miss it sleeps for one microWait and asks the Finder once more, unless
// the Finder has finalized (a miss past finalization can never resolve)
// or stopPrefetching reports the caller's primary result is already
// ready; either of those returns the miss at once.
func (f *Fetcher) waitForOffset(index int64, stopPrefetching func() bool) (int64, bool) {
	offset, ok := f.finder.Get(index)
	if ok {
		return offset, true
	}
	if f.finder.Finalized() {
		return 0, false
	}
	if stopPrefetching != nil && stopPrefetching() {
		return 0, false
	}
	time.Sleep(microWait)
	return f.finder.Get(index)
}

func (f *Fetcher) alreadyPresent(offset int64) bool {
	if f.mainCache.Test(offset) || f.prefetchCache.Test(offset) {
		return true
	}
	_, ok := f.prefetchMap[offset]
	return ok
}

// touchCandidatesReverseOrder protects every already-cached candidate
// from eviction during the prefetch burst, touched in reverse order so
// the earliest candidate ends up most-recently-used (spec.md §4.4).
func (f *Fetcher) touchCandidatesReverseOrder(candidates []prefetchCandidate) {
	for i := len(candidates) - 1; i >= 0; i-- {
		offset := candidates[i].offset
		f.mainCache.Touch(offset)
		f.prefetchCache.Touch(offset)
	}
}

// drainReadyPrefetches moves every completed prefetch result into the
// prefetch cache, silently discarding failures (spec.md §7: "Decode
// failures from prefetch tasks are swallowed").
func (f *Fetcher) drainReadyPrefetches() {
	ready := make([]int64, 0)
	for offset, future := range f.prefetchMap {
		if future.Ready() {
			ready = append(ready, offset)
		}
	}
	sort.Slice(ready, func(i, j int) bool { return ready[i] < ready[j] })

	for _, offset := range ready {
		future := f.prefetchMap[offset]
		delete(f.prefetchMap, offset)

		result, err := future.Get()
		if err != nil {
			if f.opts.Verbose {
				f.opts.Logger.Printf("fetcher: dropping failed prefetch at offset %d: %v", offset, err)
			}
			continue
		}
		f.prefetchCache.Insert(offset, result)
	}
}
