package fetcher

import (
	"fmt"
	"strings"
	"time"

	"pargzip/internal/cache"
)

// Statistics is a snapshot of a Fetcher's lifetime counters (spec.md
// §4.4/§4.5): cache hit/miss counts, gets, classified access patterns,
// prefetch counts, wait counts, and timing sums.
type Statistics struct {
	Parallelization int

	Gets               uint64
	CacheHits          uint64
	CacheMisses        uint64
	PrefetchCacheHits  uint64
	PrefetchDirectHits uint64
	PrefetchSubmitted  uint64

	DuplicateAccesses  uint64
	SequentialAccesses uint64
	ForwardSeeks       uint64
	BackwardSeeks      uint64

	WaitCount uint64

	DecodeDuration     time.Duration
	FutureWaitDuration time.Duration
	TotalGetDuration   time.Duration

	MinDecodeStart time.Time
	MaxDecodeEnd   time.Time
}

// PoolEfficiency is (total decode CPU time / parallelization) divided
// by the wall-clock span between the earliest decode start and the
// latest decode end (spec.md §4.4). Returns 0 if no decode has
// completed yet.
func (s Statistics) PoolEfficiency() float64 {
	if s.MinDecodeStart.IsZero() || s.MaxDecodeEnd.IsZero() || s.Parallelization == 0 {
		return 0
	}
	span := s.MaxDecodeEnd.Sub(s.MinDecodeStart)
	if span <= 0 {
		return 0
	}
	perThread := s.DecodeDuration / time.Duration(s.Parallelization)
	return float64(perThread) / float64(span)
}

// String renders the statistics as a profile report, the SPEC_FULL
// restoration of pragzip's Statistics::print() (see SPEC_FULL.md,
// Supplemented Features §3).
func (s Statistics) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "gets: %d (duplicate=%d sequential=%d forwardSeek=%d backwardSeek=%d)\n",
		s.Gets, s.DuplicateAccesses, s.SequentialAccesses, s.ForwardSeeks, s.BackwardSeeks)
	fmt.Fprintf(&b, "cache: hits=%d misses=%d\n", s.CacheHits, s.CacheMisses)
	fmt.Fprintf(&b, "prefetch: submitted=%d directHits=%d cacheHits=%d\n",
		s.PrefetchSubmitted, s.PrefetchDirectHits, s.PrefetchCacheHits)
	fmt.Fprintf(&b, "waits: %d\n", s.WaitCount)
	fmt.Fprintf(&b, "time: decode=%s futureWait=%s totalGet=%s\n",
		s.DecodeDuration, s.FutureWaitDuration, s.TotalGetDuration)
	fmt.Fprintf(&b, "pool efficiency: %.4f\n", s.PoolEfficiency())
	return b.String()
}

// Statistics returns a snapshot of the Fetcher's lifetime counters. The
// two LRU caches' own hit/miss/eviction accounting is available
// separately through MainCacheStatistics and PrefetchCacheStatistics.
func (f *Fetcher) Statistics() Statistics {
	f.analyticsMu.Lock()
	defer f.analyticsMu.Unlock()
	return f.stats
}

// MainCacheStatistics returns the main cache's own hit/miss/eviction
// counters (spec.md §6).
func (f *Fetcher) MainCacheStatistics() cache.Statistics {
	return f.mainCache.Statistics()
}

// PrefetchCacheStatistics returns the prefetch cache's own
// hit/miss/eviction counters (spec.md §6).
func (f *Fetcher) PrefetchCacheStatistics() cache.Statistics {
	return f.prefetchCache.Statistics()
}
