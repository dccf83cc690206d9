// Package xdr implements the primitive encode/decode operations of External
// Data Representation (RFC 4506) used by the ONC RPC, Portmap, MOUNT, and
// NFS wire formats.
//
// All values are big-endian and padded to 4-byte boundaries. Encoding is
// deterministic and byte-exact; decoding validates every length prefix
// against the bytes remaining in the buffer and fails with ErrMalformed
// rather than reading past the end.
package xdr

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrMalformed is returned when a decoded length prefix would overrun the
// remaining buffer, or a fixed-size field is missing entirely.
var ErrMalformed = errors.New("xdr: malformed encoding")

// MaxFileHandleLength is the largest file handle NFSv3 permits on the wire
// (RFC 1813 Section 2.3.3, FHSIZE3).
const MaxFileHandleLength = 64

func pad(length int) int {
	return (4 - (length % 4)) % 4
}

// Encoder appends XDR-encoded values to a growable byte buffer.
type Encoder struct {
	buf []byte
}

// NewEncoder returns an Encoder with an empty buffer.
func NewEncoder() *Encoder {
	return &Encoder{}
}

// Bytes returns the accumulated encoding.
func (e *Encoder) Bytes() []byte {
	return e.buf
}

// Len returns the number of bytes written so far.
func (e *Encoder) Len() int {
	return len(e.buf)
}

// PutUint32 appends a 4-byte big-endian unsigned integer.
func (e *Encoder) PutUint32(v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	e.buf = append(e.buf, b[:]...)
}

// PutUint64 appends an 8-byte big-endian unsigned integer.
func (e *Encoder) PutUint64(v uint64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	e.buf = append(e.buf, b[:]...)
}

// PutOpaqueFixed appends data as given (it is never truncated or extended
// to a declared length; the caller supplies exactly the bytes to send),
// then zero-pads to the next 4-byte boundary. Per RFC 4506 Section 4.9.
func (e *Encoder) PutOpaqueFixed(data []byte) {
	e.buf = append(e.buf, data...)
	e.buf = append(e.buf, make([]byte, pad(len(data)))...)
}

// PutVarOpaque appends a u32 length followed by the data and zero padding
// to a 4-byte boundary. Per RFC 4506 Section 4.10.
func (e *Encoder) PutVarOpaque(data []byte) {
	e.PutUint32(uint32(len(data)))
	e.PutOpaqueFixed(data)
}

// PutString appends a string using the same encoding as variable-length
// opaque data (RFC 4506 Section 4.11).
func (e *Encoder) PutString(s string) {
	e.PutVarOpaque([]byte(s))
}

// PutFileHandle appends an NFSv3 file handle: a variable-length opaque
// capped at MaxFileHandleLength bytes.
func (e *Encoder) PutFileHandle(fh []byte) error {
	if len(fh) > MaxFileHandleLength {
		return fmt.Errorf("xdr: file handle length %d exceeds maximum %d", len(fh), MaxFileHandleLength)
	}
	e.PutVarOpaque(fh)
	return nil
}

// PutUint32Array appends a u32 count followed by that many u32 values.
func (e *Encoder) PutUint32Array(values []uint32) {
	e.PutUint32(uint32(len(values)))
	for _, v := range values {
		e.PutUint32(v)
	}
}

// Decoder extracts XDR-encoded values from a fixed byte slice, advancing a
// cursor as it reads.
type Decoder struct {
	buf []byte
	pos int
}

// NewDecoder returns a Decoder positioned at the start of buf.
func NewDecoder(buf []byte) *Decoder {
	return &Decoder{buf: buf}
}

// Remaining returns the number of unread bytes.
func (d *Decoder) Remaining() int {
	return len(d.buf) - d.pos
}

// Pos returns the current read offset.
func (d *Decoder) Pos() int {
	return d.pos
}

func (d *Decoder) require(n int) error {
	if n < 0 || d.Remaining() < n {
		return ErrMalformed
	}
	return nil
}

// Uint32 decodes a 4-byte big-endian unsigned integer.
func (d *Decoder) Uint32() (uint32, error) {
	if err := d.require(4); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint32(d.buf[d.pos : d.pos+4])
	d.pos += 4
	return v, nil
}

// Uint64 decodes an 8-byte big-endian unsigned integer.
func (d *Decoder) Uint64() (uint64, error) {
	if err := d.require(8); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint64(d.buf[d.pos : d.pos+8])
	d.pos += 8
	return v, nil
}

// OpaqueFixed decodes exactly n bytes of data, then consumes (without
// validating) the padding to the next 4-byte boundary.
func (d *Decoder) OpaqueFixed(n int) ([]byte, error) {
	if err := d.require(n); err != nil {
		return nil, err
	}
	data := d.buf[d.pos : d.pos+n]
	d.pos += n
	padding := pad(n)
	if err := d.require(padding); err != nil {
		return nil, err
	}
	d.pos += padding
	return data, nil
}

// VarOpaque decodes a u32 length followed by that many bytes and padding.
// Fails with ErrMalformed if the declared length would overrun the buffer.
func (d *Decoder) VarOpaque() ([]byte, error) {
	length, err := d.Uint32()
	if err != nil {
		return nil, err
	}
	return d.OpaqueFixed(int(length))
}

// String decodes a variable-length opaque field and returns it as a string.
func (d *Decoder) String() (string, error) {
	data, err := d.VarOpaque()
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// FileHandle decodes an NFSv3 file handle, rejecting lengths beyond
// MaxFileHandleLength.
func (d *Decoder) FileHandle() ([]byte, error) {
	length, err := d.Uint32()
	if err != nil {
		return nil, err
	}
	if length > MaxFileHandleLength {
		return nil, fmt.Errorf("%w: file handle length %d exceeds maximum %d", ErrMalformed, length, MaxFileHandleLength)
	}
	return d.OpaqueFixed(int(length))
}

// Uint32Array decodes a u32 count followed by that many u32 values.
func (d *Decoder) Uint32Array() ([]uint32, error) {
	count, err := d.Uint32()
	if err != nil {
		return nil, err
	}
	// Guard against a hostile count claiming more elements than the buffer
	// could possibly contain.
	if err := d.require(int(count) * 4); err != nil {
		return nil, err
	}
	values := make([]uint32, count)
	for i := range values {
		values[i], err = d.Uint32()
		if err != nil {
			return nil, err
		}
	}
	return values, nil
}

// Skip advances the cursor by n bytes without interpreting them, used to
// skip over attribute bodies the client does not decode.
func (d *Decoder) Skip(n int) error {
	if err := d.require(n); err != nil {
		return err
	}
	d.pos += n
	return nil
}
