// Package markers implements the marker table (spec §3, §4.4 inputs): for
// every oriented read, the ordered sequence of (k-mer id, position,
// ordinal) triples where the k-mer id belongs to the marker set.
package markers

import (
	"path/filepath"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/traverse"
	"github.com/shasta-assembly/shasta-core/kmer"
	"github.com/shasta-assembly/shasta-core/mmstore"
	"github.com/shasta-assembly/shasta-core/reads"
)

// Marker is one occurrence of a marker k-mer in a read.
type Marker struct {
	KmerID   kmer.ID
	Position uint32 // run-length coordinate position in the read
	Ordinal  uint32 // 0-based rank among markers of the same oriented read
}

// Table holds the marker sequence of every oriented read, flattened into
// two parallel mmstore-backed arrays (k-mer ids and positions) indexed by
// a per-oriented-read offset table, mirroring the read store's layout.
// Ordinals are not stored; they are the index within the read.
type Table struct {
	kmerIDs   mmstore.Uint64Vector
	positions mmstore.Uint32Vector
	// offsets[o] is the starting index for oriented read o;
	// offsets[o+1]-offsets[o] is its marker count. Built for both strands
	// of every read, so len(offsets) == 2*readCount+1.
	offsets mmstore.Uint64Vector
}

// Create creates a new, empty marker table backed by files under dir.
func Create(dir string) (*Table, error) {
	kmerIDs, err := mmstore.CreateUint64Vector(filepath.Join(dir, "Markers-KmerIds"))
	if err != nil {
		return nil, err
	}
	positions, err := mmstore.CreateUint32Vector(filepath.Join(dir, "Markers-Positions"))
	if err != nil {
		return nil, err
	}
	offsets, err := mmstore.CreateUint64Vector(filepath.Join(dir, "Markers-Offsets"))
	if err != nil {
		return nil, err
	}
	if _, err := offsets.Append(0); err != nil {
		return nil, err
	}
	return &Table{kmerIDs: kmerIDs, positions: positions, offsets: offsets}, nil
}

// Open reopens an existing marker table.
func Open(dir string, readOnly bool) (*Table, error) {
	kmerIDs, err := mmstore.OpenUint64Vector(filepath.Join(dir, "Markers-KmerIds"), readOnly)
	if err != nil {
		return nil, err
	}
	positions, err := mmstore.OpenUint32Vector(filepath.Join(dir, "Markers-Positions"), readOnly)
	if err != nil {
		return nil, err
	}
	offsets, err := mmstore.OpenUint64Vector(filepath.Join(dir, "Markers-Offsets"), readOnly)
	if err != nil {
		return nil, err
	}
	return &Table{kmerIDs: kmerIDs, positions: positions, offsets: offsets}, nil
}

// Build scans every read in store (both strands) for marker k-mer
// occurrences and appends them to the table in ordinal order. It must be
// called once, after the read store and k-mer table are both sealed, and
// before any other phase runs (spec §5: strict happens-before across
// phases).
//
// A read with fewer markers than required downstream is not an error
// here; "exhausted data" (spec §7) is reported, not rejected, by later
// phases that observe the resulting empty or short marker list.
//
// Per spec §5, the per-oriented-read marker scan is sharded across a
// fixed worker pool (traverse.Each) into one output buffer per oriented
// read; those buffers are then merged into the table sequentially by the
// calling goroutine, since mmstore.Vector.Append is single-writer.
func Build(dir string, store *reads.Store, kt *kmer.Table, threadCount int) (*Table, error) {
	t, err := Create(dir)
	if err != nil {
		return nil, err
	}
	k := kt.K()
	orientedCount := 2 * store.ReadCount()
	perOriented := make([][]Marker, orientedCount)

	err = traverse.Each(orientedCount, func(i int) error {
		oriented := reads.OrientedID(i)
		bases := store.Bases(oriented)
		n := len(bases)
		var out []Marker
		ordinal := uint32(0)
		for pos := 0; pos+k <= n; pos++ {
			id := kmer.Encode(bases[pos : pos+k])
			if !kt.IsMarker(id) {
				continue
			}
			out = append(out, Marker{KmerID: id, Position: uint32(pos), Ordinal: ordinal})
			ordinal++
		}
		perOriented[i] = out
		return nil
	})
	if err != nil {
		return nil, errors.E(err, "markers: build")
	}

	for _, ms := range perOriented {
		for _, m := range ms {
			if _, err := t.kmerIDs.Append(uint64(m.KmerID)); err != nil {
				return nil, err
			}
			if _, err := t.positions.Append(m.Position); err != nil {
				return nil, err
			}
		}
		newOffset := t.offsets.Get(t.offsets.Len()-1) + uint64(len(ms))
		if _, err := t.offsets.Append(newOffset); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// Count returns the number of markers of the given oriented read.
func (t *Table) Count(o reads.OrientedID) int {
	v := o.Value()
	return int(t.offsets.Get(int(v)+1) - t.offsets.Get(int(v)))
}

// At returns the ordinal-th marker of the given oriented read.
func (t *Table) At(o reads.OrientedID, ordinal int) Marker {
	begin := t.offsets.Get(int(o.Value()))
	idx := int(begin) + ordinal
	return Marker{
		KmerID:   kmer.ID(t.kmerIDs.Get(idx)),
		Position: t.positions.Get(idx),
		Ordinal:  uint32(ordinal),
	}
}

// All returns every marker of the given oriented read, in ordinal order.
// Invariant (spec §3): strictly increasing in position, hence in ordinal.
func (t *Table) All(o reads.OrientedID) []Marker {
	n := t.Count(o)
	out := make([]Marker, n)
	for i := 0; i < n; i++ {
		out[i] = t.At(o, i)
	}
	return out
}

// Total returns the flat count of markers across every oriented read, i.e.
// the size of the index space used by the marker-graph builder's
// disjoint-set structure (spec §4.4 Phase 1).
func (t *Table) Total() int {
	return int(t.offsets.Get(t.offsets.Len() - 1))
}

// Index returns the flat marker index of the ordinal-th marker of oriented
// read o, suitable as a disjoint-set element id.
func (t *Table) Index(o reads.OrientedID, ordinal int) int {
	return int(t.offsets.Get(int(o.Value()))) + ordinal
}

// Locate is the inverse of Index: given a flat marker index, it returns
// the oriented read and ordinal it belongs to.
func (t *Table) Locate(flatIndex int) (reads.OrientedID, int) {
	n := t.offsets.Len()
	lo, hi := 0, n-1
	for lo+1 < hi {
		mid := (lo + hi) / 2
		if int(t.offsets.Get(mid)) <= flatIndex {
			lo = mid
		} else {
			hi = mid
		}
	}
	ordinal := flatIndex - int(t.offsets.Get(lo))
	return reads.OrientedID(lo), ordinal
}

// Twin returns the ordinal, in the reverse-complemented read, of the
// marker at ordinal `ordinal` in oriented read o. Spec §3: "a marker at
// ordinal o in a read of length n markers has its twin at ordinal n-1-o
// in the reverse-complemented read."
func (t *Table) Twin(o reads.OrientedID, ordinal int) int {
	n := t.Count(o)
	return n - 1 - ordinal
}

// Close releases the table's memory mappings.
func (t *Table) Close() error {
	var e errors.Once
	e.Set(t.kmerIDs.Close())
	e.Set(t.positions.Close())
	e.Set(t.offsets.Close())
	return e.Err()
}
