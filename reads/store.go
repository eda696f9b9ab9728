// Package reads implements the read store (spec §3, §4): the run-length
// encoded base sequences and per-base repeat counts of the input reads,
// indexed by read id and immutable after load. Reverse-complement
// orientation is computed on demand by the consumer rather than
// materialized, matching spec §6.
//
// The ingest format (FASTA/runnie) is explicitly out of scope (spec §1);
// Store.AddRead accepts already-decoded run-length records from whatever
// upstream reader a caller wires in.
package reads

import (
	"path/filepath"

	"github.com/grailbio/base/errors"
	"github.com/shasta-assembly/shasta-core/mmstore"
)

// MaxRepeatCount is the largest repeat count a run-length read may carry
// (spec §3: "a read that contained a repeat count > 255 is rejected at
// load").
const MaxRepeatCount = 255

// Raw is an already-decoded run-length read, as delivered by an upstream
// collaborator (e.g. a FASTA or runnie reader, out of scope here).
type Raw struct {
	// Bases holds one byte per run, one of 'A', 'C', 'G', 'T'.
	Bases []byte
	// Counts holds the repeat count of each run, parallel to Bases.
	// Every entry must be in [1, MaxRepeatCount].
	Counts []int
}

// Store is the immutable, memory-mapped read store. It is created once by
// Create and filled by AddRead during ingest (or reopened by Open), and is
// thereafter shared read-only, per the resource policy of spec §5.
type Store struct {
	dir    string
	bases  *mmstore.Vector // one byte per run, flat across all reads
	counts *mmstore.Vector // one byte per run, parallel to bases
	// offset[i] is the starting index into bases/counts for read i;
	// offset[i+1]-offset[i] is its length. len(offset) == readCount+1.
	offsets mmstore.Uint64Vector
	// readCount is cached from offsets.Len()-1 once sealed.
	readCount int
}

// Create creates a new, empty store backed by files under dir.
func Create(dir string) (*Store, error) {
	bases, err := mmstore.Create(filepath.Join(dir, "Reads-Bases"), 1)
	if err != nil {
		return nil, err
	}
	counts, err := mmstore.Create(filepath.Join(dir, "Reads-Counts"), 1)
	if err != nil {
		return nil, err
	}
	offsets, err := mmstore.CreateUint64Vector(filepath.Join(dir, "Reads-Offsets"))
	if err != nil {
		return nil, err
	}
	if _, err := offsets.Append(0); err != nil {
		return nil, err
	}
	return &Store{dir: dir, bases: bases, counts: counts, offsets: offsets}, nil
}

// Open reopens an existing store. Pass readOnly=true once ingest has
// finished; every later phase opens the store this way.
func Open(dir string, readOnly bool) (*Store, error) {
	bases, err := mmstore.Open(filepath.Join(dir, "Reads-Bases"), readOnly)
	if err != nil {
		return nil, err
	}
	counts, err := mmstore.Open(filepath.Join(dir, "Reads-Counts"), readOnly)
	if err != nil {
		return nil, err
	}
	offsets, err := mmstore.OpenUint64Vector(filepath.Join(dir, "Reads-Offsets"), readOnly)
	if err != nil {
		return nil, err
	}
	return &Store{dir: dir, bases: bases, counts: counts, offsets: offsets, readCount: offsets.Len() - 1}, nil
}

// AddRead validates and appends one read, returning its id. A read whose
// repeat counts fall outside [1, MaxRepeatCount], or whose Bases/Counts
// lengths disagree, is an "Invalid input" error (spec §7) and is rejected
// without being stored.
func (s *Store) AddRead(r Raw) (ID, error) {
	if len(r.Bases) != len(r.Counts) {
		return 0, errors.E(errors.Invalid, "reads: bases/counts length mismatch")
	}
	for _, c := range r.Counts {
		if c < 1 || c > MaxRepeatCount {
			return 0, errors.E(errors.Invalid, "reads: repeat count out of range:", c)
		}
	}
	for _, b := range r.Bases {
		switch b {
		case 'A', 'C', 'G', 'T':
		default:
			return 0, errors.E(errors.Invalid, "reads: invalid base byte:", b)
		}
	}
	for i := range r.Bases {
		if _, err := s.bases.Append(r.Bases[i : i+1]); err != nil {
			return 0, err
		}
		if _, err := s.counts.Append([]byte{byte(r.Counts[i])}); err != nil {
			return 0, err
		}
	}
	id := ID(s.offsets.Len() - 1)
	newOffset := s.offsets.Get(s.offsets.Len()-1) + uint64(len(r.Bases))
	if _, err := s.offsets.Append(newOffset); err != nil {
		return 0, err
	}
	s.readCount++
	return id, nil
}

// ReadCount returns the number of reads in the store.
func (s *Store) ReadCount() int { return s.readCount }

// Length returns the number of runs (equivalently, the run-length
// coordinate length) of the given read on its forward strand.
func (s *Store) Length(id ID) int {
	return int(s.offsets.Get(int(id)+1) - s.offsets.Get(int(id)))
}

// MarkerCapacity returns Length(id), the upper bound on the number of
// markers a read can carry; every marker ordinal for this read lies in
// [0, MarkerCapacity(id)).
func (s *Store) MarkerCapacity(id ID) int { return s.Length(id) }

// Bases returns the base sequence of the given oriented read, applying
// reverse complementation on the fly when the strand is Reverse. The
// returned slice is a fresh copy; it never aliases the store's mapping.
func (s *Store) Bases(o OrientedID) []byte {
	id := o.ReadID()
	begin := s.offsets.Get(int(id))
	n := s.Length(id)
	out := make([]byte, n)
	if o.Strand() == Forward {
		for i := 0; i < n; i++ {
			out[i] = s.bases.At(int(begin)+i)[0]
		}
		return out
	}
	for i := 0; i < n; i++ {
		b := s.bases.At(int(begin)+n-1-i)[0]
		out[i] = complementTable[b]
	}
	return out
}

// Counts returns the per-run repeat counts of the given oriented read,
// reversed (but not complemented) when the strand is Reverse.
func (s *Store) Counts(o OrientedID) []uint8 {
	id := o.ReadID()
	begin := s.offsets.Get(int(id))
	n := s.Length(id)
	out := make([]uint8, n)
	if o.Strand() == Forward {
		for i := 0; i < n; i++ {
			out[i] = s.counts.At(int(begin)+i)[0]
		}
		return out
	}
	for i := 0; i < n; i++ {
		out[i] = s.counts.At(int(begin)+n-1-i)[0]
	}
	return out
}

// Close releases the store's memory mappings.
func (s *Store) Close() error {
	var e errors.Once
	e.Set(s.bases.Close())
	e.Set(s.counts.Close())
	e.Set(s.offsets.Close())
	return e.Err()
}

// complementTable maps a base byte to its Watson-Crick complement. Table
// driven in the style of the teacher corpus's biosimd revcomp routines,
// but over the single-byte RLE alphabet rather than packed 4-bit codes.
var complementTable = func() [256]byte {
	var t [256]byte
	for i := range t {
		t[i] = 'N'
	}
	t['A'] = 'T'
	t['C'] = 'G'
	t['G'] = 'C'
	t['T'] = 'A'
	return t
}()
