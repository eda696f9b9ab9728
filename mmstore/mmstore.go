// Package mmstore implements the fixed-page memory-mapped backing store
// used by the read store and the marker table; the k-mer table and the
// marker and assembly graphs are kept in ordinary Go slices (spec §6: "a set of memory-mapped files named by a stable
// convention ... each with a fixed-page allocator and a minimal header
// permitting reopen-in-place").
//
// The growth strategy mirrors the anonymous-mmap hash table in the
// teacher corpus (fusion/kmer_index.go): grow by mapping fresh pages and
// remapping in place, never by copying the whole array.
package mmstore

import (
	"encoding/binary"
	"os"

	"github.com/grailbio/base/errors"
	"golang.org/x/sys/unix"
)

// PageSize is the fixed page granularity of every mmstore allocation.
const PageSize = 4096

// magic identifies an mmstore file; version allows the header layout to
// change without silently misinterpreting an old file.
const (
	magic       = 0x53484153544d4d53 // "SHASTMMS"
	version     = 1
	headerBytes = 32 // magic(8) + version(4) + elemSize(4) + count(8) + reserved(8)
)

// Vector is an append-only, fixed-record-size array backed by a
// memory-mapped file. Records are addressed by a dense integer index
// starting at 0, never by pointer — consistent with the "struct-of-arrays
// with dense integer indices" design note (spec §9).
//
// Vector is safe for concurrent readers once the owning phase has stopped
// appending (spec §5's "shared read-only after their owning phase
// completes"). Append is not safe to call concurrently with itself; callers
// that append from multiple goroutines must serialize through a single
// writer goroutine per Vector, which is how every phase in this engine
// uses it (per-thread output vectors merged sequentially at end of phase).
type Vector struct {
	f        *os.File
	path     string
	elemSize int
	count    int64
	capBytes int64 // capacity of the current mapping, in bytes, always a multiple of PageSize
	data     []byte
	readOnly bool
}

// Create creates a new mmstore file at path holding fixed-size records of
// elemSize bytes each. The file does not need to already exist; its
// directory does.
func Create(path string, elemSize int) (*Vector, error) {
	if elemSize <= 0 {
		return nil, errors.E(errors.Invalid, "mmstore: elemSize must be > 0")
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return nil, errors.E(err, "mmstore: create", path)
	}
	v := &Vector{f: f, path: path, elemSize: elemSize}
	if err := v.mapCapacity(PageSize); err != nil {
		f.Close()
		return nil, err
	}
	v.writeHeader()
	return v, nil
}

// Open reopens an existing mmstore file in place, honoring its stored
// header. If readOnly is true the mapping is PROT_READ only, matching the
// "shared read-only after their owning phase completes" resource policy.
func Open(path string, readOnly bool) (*Vector, error) {
	flag := os.O_RDWR
	if readOnly {
		flag = os.O_RDONLY
	}
	f, err := os.OpenFile(path, flag, 0644)
	if err != nil {
		return nil, errors.E(err, "mmstore: open", path)
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, errors.E(err, "mmstore: stat", path)
	}
	v := &Vector{f: f, path: path, readOnly: readOnly}
	if err := v.mapCapacity(roundUpToPage(fi.Size())); err != nil {
		f.Close()
		return nil, err
	}
	if err := v.readHeader(); err != nil {
		v.Close()
		return nil, err
	}
	return v, nil
}

func roundUpToPage(n int64) int64 {
	if n < PageSize {
		return PageSize
	}
	return (n + PageSize - 1) / PageSize * PageSize
}

// mapCapacity (re)establishes the mapping at the given byte capacity,
// first truncating a writable vector's backing file up to that size (a
// read-only vector's file is left as it is). It is the only place that
// calls mmap/mremap.
func (v *Vector) mapCapacity(newCapBytes int64) error {
	if !v.readOnly {
		if err := v.f.Truncate(newCapBytes); err != nil {
			return errors.E(err, "mmstore: truncate", v.path)
		}
	}
	prot := unix.PROT_READ | unix.PROT_WRITE
	if v.readOnly {
		prot = unix.PROT_READ
	}
	if v.data == nil {
		data, err := unix.Mmap(int(v.f.Fd()), 0, int(newCapBytes), prot, unix.MAP_SHARED)
		if err != nil {
			return errors.E(errors.NotExist, err, "mmstore: mmap", v.path)
		}
		v.data = data
	} else {
		data, err := unix.Mremap(v.data, int(newCapBytes), unix.MREMAP_MAYMOVE)
		if err != nil {
			return errors.E(errors.NotExist, err, "mmstore: mremap", v.path)
		}
		v.data = data
	}
	v.capBytes = newCapBytes
	return nil
}

func (v *Vector) writeHeader() {
	h := v.data[:headerBytes]
	binary.LittleEndian.PutUint64(h[0:8], magic)
	binary.LittleEndian.PutUint32(h[8:12], version)
	binary.LittleEndian.PutUint32(h[12:16], uint32(v.elemSize))
	binary.LittleEndian.PutUint64(h[16:24], uint64(v.count))
}

func (v *Vector) readHeader() error {
	if v.capBytes < headerBytes {
		return errors.E(errors.Invalid, "mmstore: file too small to contain a header:", v.path)
	}
	h := v.data[:headerBytes]
	if got := binary.LittleEndian.Uint64(h[0:8]); got != magic {
		return errors.E(errors.Invalid, "mmstore: bad magic in", v.path)
	}
	if got := binary.LittleEndian.Uint32(h[8:12]); got != version {
		return errors.E(errors.Invalid, "mmstore: unsupported version", got, "in", v.path)
	}
	v.elemSize = int(binary.LittleEndian.Uint32(h[12:16]))
	v.count = int64(binary.LittleEndian.Uint64(h[16:24]))
	return nil
}

// Len returns the number of records currently stored.
func (v *Vector) Len() int { return int(v.count) }

// ElemSize returns the fixed record size in bytes.
func (v *Vector) ElemSize() int { return v.elemSize }

func (v *Vector) byteOffset(i int) int64 {
	return headerBytes + int64(i)*int64(v.elemSize)
}

// At returns the raw bytes of record i. The returned slice aliases the
// mapping; callers must not retain it across an Append, which may remap.
func (v *Vector) At(i int) []byte {
	off := v.byteOffset(i)
	return v.data[off : off+int64(v.elemSize)]
}

// Append adds one record (exactly ElemSize() bytes) and returns its index.
func (v *Vector) Append(record []byte) (int, error) {
	if v.readOnly {
		return 0, errors.E(errors.Invalid, "mmstore: append on read-only vector", v.path)
	}
	if len(record) != v.elemSize {
		return 0, errors.E(errors.Invalid, "mmstore: record size mismatch")
	}
	need := v.byteOffset(int(v.count)) + int64(v.elemSize)
	if need > v.capBytes {
		newCap := roundUpToPage(need * 2)
		if err := v.mapCapacity(newCap); err != nil {
			return 0, err
		}
	}
	idx := int(v.count)
	copy(v.At(idx), record)
	v.count++
	v.writeHeader()
	return idx, nil
}

// Reserve grows the file so that n records fit without further remapping,
// without changing Len().
func (v *Vector) Reserve(n int) error {
	need := v.byteOffset(n)
	if need <= v.capBytes {
		return nil
	}
	return v.mapCapacity(roundUpToPage(need))
}

// Truncate sets Len() to n, n <= Len(). It does not shrink the mapping.
func (v *Vector) Truncate(n int) error {
	if n < 0 || int64(n) > v.count {
		return errors.E(errors.Invalid, "mmstore: truncate out of range")
	}
	v.count = int64(n)
	v.writeHeader()
	return nil
}

// Close unmaps and closes the backing file.
func (v *Vector) Close() error {
	if v.data != nil {
		if err := unix.Munmap(v.data); err != nil {
			return errors.E(err, "mmstore: munmap", v.path)
		}
		v.data = nil
	}
	return v.f.Close()
}

// Path returns the path this Vector was created or opened from.
func (v *Vector) Path() string { return v.path }
