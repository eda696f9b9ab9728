// Package unionfind implements the lock-free, path-compressed,
// union-by-rank disjoint-set structure that drives marker-graph
// construction (spec §4.4 Phase 1, §9): "an array of 64-bit words encoding
// (parent << bits) | rank with atomic CAS on the whole word. Path
// compression is best-effort."
//
// Correctness here does not require linearizability, only eventual
// consistency of the forest under concurrent Union calls from many
// goroutines — the standard property of lock-free union-find.
package unionfind

import (
	"sync/atomic"

	"github.com/pkg/errors"
)

// rankBits is the number of low bits of each packed word reserved for the
// rank; the remaining high bits hold the parent index. 8 bits of rank
// comfortably bounds log2 of any realistic marker count.
const rankBits = 8
const rankMask = uint64(1)<<rankBits - 1

// Set is a disjoint-set forest over the dense index space [0, n).
// Elements start in singleton sets, each its own root with rank 0.
type Set struct {
	words []uint64 // words[i] == (parent(i) << rankBits) | rank(i)
}

// New creates a disjoint-set forest of size n with every element its own
// singleton set.
func New(n int) (*Set, error) {
	if n < 0 {
		return nil, errors.New("unionfind: negative size")
	}
	s := &Set{words: make([]uint64, n)}
	for i := range s.words {
		s.words[i] = uint64(i) << rankBits
	}
	return s, nil
}

// Size returns n, the number of elements.
func (s *Set) Size() int { return len(s.words) }

func parentOf(word uint64) int { return int(word >> rankBits) }
func rankOf(word uint64) uint8 { return uint8(word & rankMask) }

// Find returns the representative (root) of the set containing x, doing
// best-effort path compression: a stale read that observes an ancestor
// rather than the true root is still a correct answer, just a less
// compressed one, matching spec §9's tolerance for eventual consistency.
func (s *Set) Find(x int) int {
	root := x
	for {
		word := atomic.LoadUint64(&s.words[root])
		parent := parentOf(word)
		if parent == root {
			break
		}
		root = parent
	}
	// Best-effort compression: point every node on the walked path
	// directly at root via CAS; ignore CAS failures, another thread's
	// concurrent update is still a valid (if less compressed) forest.
	cur := x
	for cur != root {
		word := atomic.LoadUint64(&s.words[cur])
		parent := parentOf(word)
		rank := rankOf(word)
		newWord := (uint64(root) << rankBits) | uint64(rank)
		atomic.CompareAndSwapUint64(&s.words[cur], word, newWord)
		cur = parent
	}
	return root
}

// Union merges the sets containing x and y, using union-by-rank, and
// retries on CAS contention. It tolerates being called concurrently by
// many goroutines on overlapping elements (spec §4.4 Phase 1: "the single
// hottest inner loop; it must tolerate concurrent union operations").
func (s *Set) Union(x, y int) {
	for {
		rx, ry := s.Find(x), s.Find(y)
		if rx == ry {
			return
		}
		wx := atomic.LoadUint64(&s.words[rx])
		wy := atomic.LoadUint64(&s.words[ry])
		rankX, rankY := rankOf(wx), rankOf(wy)

		// Union by rank: attach the lower-rank root under the higher-rank
		// root; break ties by attaching the lower index under the higher
		// one, so the loser is always well defined and retries converge.
		lo, hi := rx, ry
		loRank, hiRank := rankX, rankY
		if rankX > rankY || (rankX == rankY && rx > ry) {
			lo, hi = ry, rx
			loRank, hiRank = rankY, rankX
		}
		loWord := atomic.LoadUint64(&s.words[lo])
		if parentOf(loWord) != lo {
			continue // lo was reparented by another thread; retry
		}
		newLoWord := (uint64(hi) << rankBits) | uint64(loRank)
		if !atomic.CompareAndSwapUint64(&s.words[lo], loWord, newLoWord) {
			continue
		}
		if loRank == hiRank {
			hiWord := atomic.LoadUint64(&s.words[hi])
			if parentOf(hiWord) == hi && rankOf(hiWord) == hiRank && hiRank < rankMask {
				newHiWord := (uint64(hi) << rankBits) | uint64(hiRank+1)
				atomic.CompareAndSwapUint64(&s.words[hi], hiWord, newHiWord)
			}
		}
		return
	}
}

// SetSizes computes the size of every set, keyed by its root. It is the
// histogram step of spec §4.4 Phase 3, split out so callers can apply the
// coverage filter themselves.
func (s *Set) SetSizes() map[int]int {
	sizes := make(map[int]int)
	for i := range s.words {
		sizes[s.Find(i)]++
	}
	return sizes
}
