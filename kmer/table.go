// Package kmer implements the k-mer table (spec §3, §6): for every k-mer
// id in [0, 4^k), the id of its reverse complement and whether it belongs
// to the fixed, randomly-chosen marker set.
package kmer

import (
	"math/rand"

	"github.com/grailbio/base/errors"
	"github.com/shasta-assembly/shasta-core/config"
)

// ID identifies a k-mer by its packed 2-bit-per-base encoding, in
// [0, 4^k).
type ID uint64

var baseCode = map[byte]uint64{'A': 0, 'C': 1, 'G': 2, 'T': 3}
var codeBase = [4]byte{'A', 'C', 'G', 'T'}

// Encode packs a k-mer's bases into an ID. len(bases) must equal k.
func Encode(bases []byte) ID {
	var v uint64
	for _, b := range bases {
		v = (v << 2) | baseCode[b]
	}
	return ID(v)
}

// Decode unpacks an ID back into its k bases.
func Decode(id ID, k int) []byte {
	out := make([]byte, k)
	v := uint64(id)
	for i := k - 1; i >= 0; i-- {
		out[i] = codeBase[v&3]
		v >>= 2
	}
	return out
}

// entry is the per-k-mer record: its reverse-complement id, and whether it
// is a marker.
type entry struct {
	reverseComplement ID
	isMarker          bool
}

// Table is the complete 4^k-entry k-mer table. It is small enough (at
// most 4^30 would not be, but spec bounds k <= config.MaxK = 30 and real
// deployments use k around 10, i.e. about 4^10 entries) to keep resident
// rather than memory-mapped; the large, per-read derived data
// (reads.Store, markers.Table) are the structures that actually need
// mmstore.
type Table struct {
	k       int
	entries []entry
}

// Build constructs the k-mer table for the given k, selecting markers by
// an independent Bernoulli trial per k-mer/reverse-complement pair with
// probability cfg.MarkerProbability, seeded deterministically by cfg.Seed
// so that the marker set is reproducible across runs.
//
// The reverse-complement relation is computed directly from k rather than
// sampled, so it is exact and involutive by construction; the marker flag
// is assigned once per {id, revcomp(id)} pair so that it is symmetric
// under reverse complementation, satisfying the invariant of spec §3.
func Build(cfg config.Kmer) (*Table, error) {
	if cfg.K <= 0 || cfg.K > config.MaxK {
		return nil, errors.E(errors.Invalid, "kmer: k out of range:", cfg.K)
	}
	if cfg.MarkerProbability <= 0 || cfg.MarkerProbability > 1 {
		return nil, errors.E(errors.Invalid, "kmer: marker probability out of range:", cfg.MarkerProbability)
	}
	n := uint64(1) << uint(2*cfg.K)
	t := &Table{k: cfg.K, entries: make([]entry, n)}
	rng := rand.New(rand.NewSource(int64(cfg.Seed)))
	decided := make([]bool, n)
	for id := uint64(0); id < n; id++ {
		rc := reverseComplementID(ID(id), cfg.K)
		t.entries[id].reverseComplement = rc

		if decided[id] {
			continue
		}
		isMarker := rng.Float64() < cfg.MarkerProbability
		t.entries[id].isMarker = isMarker
		decided[id] = true
		if uint64(rc) != id {
			t.entries[rc].isMarker = isMarker
			decided[rc] = true
		}
	}
	return t, nil
}

func reverseComplementID(id ID, k int) ID {
	var v uint64
	x := uint64(id)
	for i := 0; i < k; i++ {
		code := x & 3
		x >>= 2
		v = (v << 2) | (3 - code) // A<->T (0<->3), C<->G (1<->2)
	}
	return ID(v)
}

// K returns the k-mer length this table was built for.
func (t *Table) K() int { return t.k }

// Size returns 4^k, the number of entries.
func (t *Table) Size() int { return len(t.entries) }

// ReverseComplement returns the reverse-complement id of id.
func (t *Table) ReverseComplement(id ID) ID { return t.entries[id].reverseComplement }

// IsMarker reports whether id belongs to the marker set.
func (t *Table) IsMarker(id ID) bool { return t.entries[id].isMarker }
