package mmstore

import "encoding/binary"

// Uint32Vector is a thin typed view over a Vector of 4-byte records. It
// holds the marker positions of the marker table.
type Uint32Vector struct{ v *Vector }

// CreateUint32Vector creates a new file-backed uint32 vector.
func CreateUint32Vector(path string) (Uint32Vector, error) {
	v, err := Create(path, 4)
	return Uint32Vector{v}, err
}

// OpenUint32Vector reopens an existing uint32 vector.
func OpenUint32Vector(path string, readOnly bool) (Uint32Vector, error) {
	v, err := Open(path, readOnly)
	return Uint32Vector{v}, err
}

func (u Uint32Vector) Len() int { return u.v.Len() }

func (u Uint32Vector) Get(i int) uint32 { return binary.LittleEndian.Uint32(u.v.At(i)) }

func (u Uint32Vector) Set(i int, val uint32) {
	binary.LittleEndian.PutUint32(u.v.At(i), val)
}

func (u Uint32Vector) Append(val uint32) (int, error) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], val)
	return u.v.Append(b[:])
}

func (u Uint32Vector) Reserve(n int) error { return u.v.Reserve(n) }

func (u Uint32Vector) Close() error { return u.v.Close() }

// Uint64Vector is a thin typed view over a Vector of 8-byte records. It
// holds the marker table's k-mer ids and the per-read offset tables of the
// read store and the marker table.
type Uint64Vector struct{ v *Vector }

func CreateUint64Vector(path string) (Uint64Vector, error) {
	v, err := Create(path, 8)
	return Uint64Vector{v}, err
}

func OpenUint64Vector(path string, readOnly bool) (Uint64Vector, error) {
	v, err := Open(path, readOnly)
	return Uint64Vector{v}, err
}

func (u Uint64Vector) Len() int { return u.v.Len() }

func (u Uint64Vector) Get(i int) uint64 { return binary.LittleEndian.Uint64(u.v.At(i)) }

func (u Uint64Vector) Set(i int, val uint64) {
	binary.LittleEndian.PutUint64(u.v.At(i), val)
}

func (u Uint64Vector) Append(val uint64) (int, error) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], val)
	return u.v.Append(b[:])
}

func (u Uint64Vector) Reserve(n int) error { return u.v.Reserve(n) }

func (u Uint64Vector) Close() error { return u.v.Close() }
