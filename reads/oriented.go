package reads

import "strconv"

// ID identifies a read. It indexes into a Store.
type ID uint32

// Strand distinguishes the as-sequenced orientation (0) from its reverse
// complement (1).
type Strand = uint32

const (
	Forward Strand = 0
	Reverse Strand = 1
)

// OrientedID packs a read id and a strand into a single integer, as spec §3
// describes: "(read_id << 1) | strand". It is used throughout the engine
// (markers, alignments, marker-graph intervals) wherever an entity needs to
// refer to a specific orientation of a read without materializing the
// reverse-complemented sequence.
type OrientedID uint32

// NewOrientedID packs a read id and strand.
func NewOrientedID(id ID, strand Strand) OrientedID {
	return OrientedID((uint32(id) << 1) | strand)
}

// ReadID unpacks the read id.
func (o OrientedID) ReadID() ID { return ID(o >> 1) }

// Strand unpacks the strand.
func (o OrientedID) Strand() Strand { return uint32(o) & 1 }

// Value returns the packed integer value, usable as a dense array index.
func (o OrientedID) Value() uint32 { return uint32(o) }

// Twin returns the oriented id for the same read on the opposite strand.
func (o OrientedID) Twin() OrientedID { return OrientedID(uint32(o) ^ 1) }

// String renders "<readId>-<strand>", matching the teacher/original
// convention for oriented-read diagnostics.
func (o OrientedID) String() string {
	return strconv.FormatUint(uint64(o.ReadID()), 10) + "-" + strconv.FormatUint(uint64(o.Strand()), 10)
}

// Pair is an unordered pair of read ids with a same-strand flag, in
// canonical form (ReadID0 < ReadID1). It is the "oriented-read pair" of
// spec §3.
type Pair struct {
	ReadID0, ReadID1 ID
	SameStrand       bool
}

// NewPair canonicalizes (a, b, sameStrand) so that ReadID0 < ReadID1,
// flipping sameStrand's sense is unnecessary since the same-strand relation
// is symmetric under swapping the two reads.
func NewPair(a, b ID, sameStrand bool) Pair {
	if a > b {
		a, b = b, a
	}
	return Pair{ReadID0: a, ReadID1: b, SameStrand: sameStrand}
}

// Other returns the member of the pair that is not id, expressed with the
// strand relationship implied by SameStrand and the strand of id.
func (p Pair) Other(o OrientedID) OrientedID {
	id, strand := o.ReadID(), o.Strand()
	var otherID ID
	switch {
	case id == p.ReadID0:
		otherID = p.ReadID1
	case id == p.ReadID1:
		otherID = p.ReadID0
	default:
		panic("reads: Other called with an id not in the pair")
	}
	otherStrand := strand
	if !p.SameStrand {
		otherStrand ^= 1
	}
	return NewOrientedID(otherID, otherStrand)
}
