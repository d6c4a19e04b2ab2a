// Package codec implements the fixed big-endian, length-prefixed binary
// serialization used for both the image Store dump and the VideoCandidate
// BLOB column of the persistent video store. It deliberately avoids
// encoding/gob: the format must be stable across the Go-specific
// reflection gob relies on, and self-describing enough that a future
// reader (or a reimplementation in another language) can walk it without
// the original type information.
package codec

import (
	"bufio"
	"io"
	"math"
	"sort"
	"unicode/utf8"

	"github.com/kestrelav/simdup/errs"
)

// Writer encodes primitives and collections in the wire format described
// in the package doc: integers and floats as their big-endian/IEEE byte
// representation, collections as a uint64 length prefix followed by
// elements, strings as a rune-count prefix followed by one uint32 Unicode
// scalar per character, and booleans as a single 0/1 byte.
type Writer struct {
	w   io.Writer
	buf [8]byte
	err error
}

// NewWriter wraps w. Writes are unbuffered unless w already buffers;
// callers writing many small fields should pass a *bufio.Writer.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

func (w *Writer) fail(op string, err error) {
	if w.err == nil {
		w.err = errs.New(errs.BadArgument, op, err)
	}
}

// Err returns the first write error encountered, if any. Per the error
// handling design, a write error in the store dump is fatal for the
// dump as a whole; callers should check Err after the last field.
func (w *Writer) Err() error { return w.err }

func (w *Writer) write(n int) {
	if w.err != nil {
		return
	}
	if _, err := w.w.Write(w.buf[:n]); err != nil {
		w.fail("write", err)
	}
}

// WriteBool writes a single byte, 1 for true, 0 for false.
func (w *Writer) WriteBool(v bool) {
	if v {
		w.buf[0] = 1
	} else {
		w.buf[0] = 0
	}
	w.write(1)
}

// WriteUint8 writes a single byte.
func (w *Writer) WriteUint8(v uint8) {
	w.buf[0] = v
	w.write(1)
}

// WriteUint32 writes v big-endian.
func (w *Writer) WriteUint32(v uint32) {
	w.buf[0] = byte(v >> 24)
	w.buf[1] = byte(v >> 16)
	w.buf[2] = byte(v >> 8)
	w.buf[3] = byte(v)
	w.write(4)
}

// WriteUint64 writes v big-endian.
func (w *Writer) WriteUint64(v uint64) {
	for i := 0; i < 8; i++ {
		w.buf[i] = byte(v >> uint(56-8*i))
	}
	w.write(8)
}

// WriteInt32 writes v as its two's-complement bit pattern.
func (w *Writer) WriteInt32(v int32) { w.WriteUint32(uint32(v)) }

// WriteInt64 writes v as its two's-complement bit pattern.
func (w *Writer) WriteInt64(v int64) { w.WriteUint64(uint64(v)) }

// WriteFloat64 writes v as its IEEE 754 bit pattern, big-endian.
func (w *Writer) WriteFloat64(v float64) { w.WriteUint64(math.Float64bits(v)) }

// WriteFloat32 writes v as its IEEE 754 bit pattern, big-endian.
func (w *Writer) WriteFloat32(v float32) { w.WriteUint32(math.Float32bits(v)) }

// WriteLen writes a collection length prefix.
func (w *Writer) WriteLen(n int) { w.WriteUint64(uint64(n)) }

// WriteString writes the rune count followed by each rune as a uint32
// Unicode scalar value.
func (w *Writer) WriteString(s string) {
	runes := []rune(s)
	w.WriteLen(len(runes))
	for _, r := range runes {
		w.WriteUint32(uint32(r))
	}
}

// Reader decodes values written by a Writer. All methods record the
// first error they hit; subsequent calls become no-ops that return the
// zero value so callers can decode a whole struct and check Err once.
type Reader struct {
	r   io.ByteReader
	raw io.Reader
	err error
}

// NewReader wraps r. If r does not already implement io.ByteReader, it
// is wrapped in a bufio.Reader.
func NewReader(r io.Reader) *Reader {
	br, ok := r.(io.ByteReader)
	if !ok {
		buffered := bufio.NewReader(r)
		br = buffered
		r = buffered
	}
	return &Reader{r: br, raw: r}
}

func (r *Reader) fail(op string, err error) {
	if r.err == nil {
		r.err = errs.New(errs.MalformedBlob, op, err)
	}
}

// Err returns the first decode error encountered, if any.
func (r *Reader) Err() error { return r.err }

func (r *Reader) readN(n int) []byte {
	if r.err != nil {
		return make([]byte, n)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r.raw, buf); err != nil {
		r.fail("read", err)
		return make([]byte, n)
	}
	return buf
}

// ReadBool reads a single 0/1 byte.
func (r *Reader) ReadBool() bool {
	b := r.readN(1)
	return b[0] != 0
}

// ReadUint8 reads a single byte.
func (r *Reader) ReadUint8() uint8 {
	b := r.readN(1)
	return b[0]
}

// ReadUint32 reads a big-endian uint32.
func (r *Reader) ReadUint32() uint32 {
	b := r.readN(4)
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

// ReadUint64 reads a big-endian uint64.
func (r *Reader) ReadUint64() uint64 {
	b := r.readN(8)
	var v uint64
	for i := 0; i < 8; i++ {
		v = v<<8 | uint64(b[i])
	}
	return v
}

// ReadInt32 reads a two's-complement int32.
func (r *Reader) ReadInt32() int32 { return int32(r.ReadUint32()) }

// ReadInt64 reads a two's-complement int64.
func (r *Reader) ReadInt64() int64 { return int64(r.ReadUint64()) }

// ReadFloat64 reads an IEEE 754 float64.
func (r *Reader) ReadFloat64() float64 { return math.Float64frombits(r.ReadUint64()) }

// ReadFloat32 reads an IEEE 754 float32.
func (r *Reader) ReadFloat32() float32 { return math.Float32frombits(r.ReadUint32()) }

// ReadLen reads a collection length prefix. Absurdly large values (more
// than 1<<32 elements) are rejected as malformed rather than trusted,
// since a truncated/corrupt stream can otherwise cause a huge
// allocation before the real EOF is observed.
func (r *Reader) ReadLen() int {
	n := r.ReadUint64()
	if n > (1 << 32) {
		r.fail("length prefix", errs.New(errs.MalformedBlob, "length", nil))
		return 0
	}
	return int(n)
}

// ReadString reads a rune count followed by that many uint32 scalars.
func (r *Reader) ReadString() string {
	n := r.ReadLen()
	runes := make([]rune, 0, n)
	for i := 0; i < n && r.err == nil; i++ {
		v := r.ReadUint32()
		if !utf8.ValidRune(rune(v)) {
			r.fail("string", errs.New(errs.MalformedBlob, "invalid scalar", nil))
			return ""
		}
		runes = append(runes, rune(v))
	}
	return string(runes)
}

// SortedKeys returns m's keys in ascending order, for encoding a mapping
// as key/value pairs in key-sorted order.
func SortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
