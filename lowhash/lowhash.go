// Package lowhash implements the LowHash candidate finder (spec §4.1): a
// locality-sensitive-hashing sweep that proposes candidate overlapping
// oriented-read pairs without comparing every pair of reads, grounded on
// fusion/kmer_index.go's farmhash-sharded table and fusion/postprocess.go's
// highwayhash bucketing.
package lowhash

import (
	"encoding/binary"
	"math"

	farm "github.com/dgryski/go-farm"
	"github.com/grailbio/base/traverse"
	"github.com/minio/highwayhash"

	"github.com/shasta-assembly/shasta-core/config"
	"github.com/shasta-assembly/shasta-core/markers"
	"github.com/shasta-assembly/shasta-core/reads"
)

// Witness is one per-iteration ordinal-pair collision that contributed to a
// candidate pair: the ordinal of the colliding feature's first marker in
// each of the two oriented reads, in whatever strand each read held at the
// time of the collision (spec §4.1: "a list of per-iteration (ordinal in
// read 0, ordinal in read 1) witnesses").
type Witness struct {
	Ordinal0, Ordinal1 uint32
}

// Candidate is one candidate overlapping read pair together with the
// distinct ordinal-pair witnesses that support it.
type Candidate struct {
	Pair      reads.Pair
	Witnesses []Witness
}

// zeroHighwayKey is the fixed all-zero highwayhash key used to mix a
// feature's low hash into a bucket index. highwayhash.Sum requires a
// Size-byte key; fusion/postprocess.go's groupCandidatesByGenePair uses the
// same all-zero-key convention when the input is already well distributed.
var zeroHighwayKey [highwayhash.Size]byte

// lowEntry is one surviving ("low") feature hash recorded for one oriented
// read during one iteration.
type lowEntry struct {
	oriented reads.OrientedID
	ordinal  uint32
	hash     uint64
}

// Find runs every iteration of the LowHash sweep and returns the candidate
// pairs that collided on at least cfg.MinFrequency distinct
// (ordinal0, ordinal1) witnesses, a collision being two oriented reads of
// different reads sharing a low hash within one bucket (spec §4.1). Never returns a non-nil error for statistical reasons --
// too few or too many candidates is reported by the caller inspecting the
// result, not a failure of Find itself (spec §4.1 Failure model).
func Find(cfg config.LowHash, store *reads.Store, mt *markers.Table) ([]Candidate, error) {
	orientedCount := 2 * store.ReadCount()
	threshold := uint64(math.MaxUint64)
	if cfg.HashFraction < 1 {
		threshold = uint64(cfg.HashFraction * float64(math.MaxUint64))
	}
	bucketMask := uint64(1)<<uint(cfg.Log2BucketCount) - 1

	aggregate := make(map[reads.Pair]map[Witness]struct{})

	for iteration := 0; iteration < cfg.Iterations; iteration++ {
		seed := iterationSeed(iteration)

		perOriented := make([][]lowEntry, orientedCount)
		err := traverse.Each(orientedCount, func(i int) error {
			oriented := reads.OrientedID(i)
			ms := mt.All(oriented)
			perOriented[i] = lowFeatures(oriented, ms, cfg.M, seed, threshold)
			return nil
		})
		if err != nil {
			return nil, err
		}

		buckets := make(map[uint64][]lowEntry)
		for _, entries := range perOriented {
			for _, e := range entries {
				b := bucketOf(seed, e.hash, bucketMask)
				buckets[b] = append(buckets[b], e)
			}
		}

		for _, entries := range buckets {
			if len(entries) > cfg.MaxBucketSize {
				continue // spec §4.1: buckets exceeding B are discarded
			}
			for i := 0; i < len(entries); i++ {
				for j := i + 1; j < len(entries); j++ {
					if entries[i].hash != entries[j].hash {
						continue
					}
					emitCollision(aggregate, entries[i], entries[j])
				}
			}
		}
	}

	var out []Candidate
	for pair, witnesses := range aggregate {
		if len(witnesses) < cfg.MinFrequency {
			continue
		}
		c := Candidate{Pair: pair, Witnesses: make([]Witness, 0, len(witnesses))}
		for w := range witnesses {
			c.Witnesses = append(c.Witnesses, w)
		}
		out = append(out, c)
	}
	return out, nil
}

// iterationSeed derives the per-iteration 64-bit mixer seed H_i from the
// iteration index, using farm's own seeded hash so that H_i is itself a
// strong, well-distributed 64-bit value rather than the small integer i.
func iterationSeed(iteration int) uint64 {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(iteration))
	return farm.Hash64WithSeed(buf[:], 0x9e3779b97f4a7c15)
}

// lowFeatures slides an m-marker window across ms and returns every feature
// whose farmhash (seeded by seed) falls below threshold, i.e. every "low
// hash" (spec §4.1). A read with fewer than m markers contributes none.
func lowFeatures(oriented reads.OrientedID, ms []markers.Marker, m int, seed, threshold uint64) []lowEntry {
	if len(ms) < m {
		return nil
	}
	buf := make([]byte, m*8)
	var out []lowEntry
	for start := 0; start+m <= len(ms); start++ {
		for i := 0; i < m; i++ {
			binary.LittleEndian.PutUint64(buf[i*8:], uint64(ms[start+i].KmerID))
		}
		h := farm.Hash64WithSeed(buf, seed)
		if h < threshold {
			out = append(out, lowEntry{oriented: oriented, ordinal: uint32(start), hash: h})
		}
	}
	return out
}

// bucketOf computes the bucket index for a low hash: a second, independent
// mixing (highwayhash) of (H_i XOR low_hash), truncated to the low
// log2BucketCount bits (spec §4.1).
func bucketOf(seed, hash uint64, bucketMask uint64) uint64 {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], seed^hash)
	digest := highwayhash.Sum(buf[:], zeroHighwayKey[:])
	return binary.LittleEndian.Uint64(digest[:8]) & bucketMask
}

// emitCollision records the collision between two bucket entries as a
// witness of the canonical pair they belong to, excluding self-pairs and
// pairs on the same underlying read (spec §4.1: "excluding self-pairs and
// pairs whose second element is the reverse complement of the first" --
// both cases share the same underlying read id).
func emitCollision(aggregate map[reads.Pair]map[Witness]struct{}, a, b lowEntry) {
	if a.oriented.ReadID() == b.oriented.ReadID() {
		return
	}
	o0, o1 := a, b
	if o1.oriented.ReadID() < o0.oriented.ReadID() {
		o0, o1 = o1, o0
	}
	pair := reads.NewPair(o0.oriented.ReadID(), o1.oriented.ReadID(), o0.oriented.Strand() == o1.oriented.Strand())
	witness := Witness{Ordinal0: o0.ordinal, Ordinal1: o1.ordinal}

	set, ok := aggregate[pair]
	if !ok {
		set = make(map[Witness]struct{})
		aggregate[pair] = set
	}
	set[witness] = struct{}{}
}
