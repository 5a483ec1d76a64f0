// Package offsetset provides a small open-addressed set of bit-offsets for
// the Block Fetcher's hot-path membership checks (prefetch candidate
// de-duplication, cache-pollution-guard containment tests). It trades the
// generality of a Go map for fewer allocations on a path that runs once per
// prefetch-loop iteration, in the spirit of the teacher's cm_sketch.go
// hash-bucketed counters.
package offsetset

import (
	"encoding/binary"

	metro "github.com/dgryski/go-metro"
)

// Set is an open-addressed hash set over int64 offsets, growing as needed.
type Set struct {
	slots []uint64
	used  []bool
	count int
}

// New returns a Set sized for at least capacityHint entries before
// needing to grow.
func New(capacityHint int) *Set {
	n := nextPow2(capacityHint*2 + 1)
	if n < 8 {
		n = 8
	}
	return &Set{
		slots: make([]uint64, n),
		used:  make([]bool, n),
	}
}

func nextPow2(v int) int {
	n := 1
	for n < v {
		n <<= 1
	}
	return n
}

func hash(offset int64) uint64 {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(offset))
	return metro.Hash64(buf[:], 0)
}

// Add inserts offset, growing the table if load factor exceeds 0.6.
func (s *Set) Add(offset int64) {
	if s.count*10 >= len(s.slots)*6 {
		s.grow()
	}
	s.insert(uint64(offset))
}

// Contains reports whether offset is present.
func (s *Set) Contains(offset int64) bool {
	mask := uint64(len(s.slots) - 1)
	idx := hash(offset) & mask
	for {
		if !s.used[idx] {
			return false
		}
		if s.slots[idx] == uint64(offset) {
			return true
		}
		idx = (idx + 1) & mask
	}
}

// Len returns the number of entries stored.
func (s *Set) Len() int {
	return s.count
}

func (s *Set) insert(v uint64) {
	mask := uint64(len(s.slots) - 1)
	idx := hash(int64(v)) & mask
	for {
		if !s.used[idx] {
			s.used[idx] = true
			s.slots[idx] = v
			s.count++
			return
		}
		if s.slots[idx] == v {
			return
		}
		idx = (idx + 1) & mask
	}
}

func (s *Set) grow() {
	old := s.slots
	oldUsed := s.used
	s.slots = make([]uint64, len(old)*2)
	s.used = make([]bool, len(old)*2)
	s.count = 0
	for i, v := range old {
		if oldUsed[i] {
			s.insert(v)
		}
	}
}
