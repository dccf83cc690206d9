// Package sink implements the downstream data-sink interface the fetch
// driver delivers file contents to: a logical position, a stream of
// delivered bytes, and a single terminal close.
package sink

import (
	"fmt"
	"io"
)

// Sink is the interface pkg/fetch drives. Implementations are not
// expected to be safe for concurrent use; the driver calls them from its
// single event loop.
type Sink interface {
	// Seek sets the logical position for the next Deliver call.
	Seek(offset uint64) error
	// Deliver appends data at the current position and advances it.
	Deliver(data []byte) error
	// Close is called exactly once on driver completion, successful or
	// not.
	Close(err error) error
}

// File is a Sink backed by an io.WriterAt, e.g. an *os.File opened for
// writing. It is the concrete sink cmd/nfsfetch plugs in where the spec
// leaves the byte sink as an external collaborator.
type File struct {
	w      io.WriterAt
	offset uint64
	closer io.Closer
}

// NewFile wraps w. If w also implements io.Closer, Close calls it.
func NewFile(w io.WriterAt) *File {
	f := &File{w: w}
	if c, ok := w.(io.Closer); ok {
		f.closer = c
	}
	return f
}

func (f *File) Seek(offset uint64) error {
	f.offset = offset
	return nil
}

func (f *File) Deliver(data []byte) error {
	n, err := f.w.WriteAt(data, int64(f.offset))
	if err != nil {
		return fmt.Errorf("sink: write at offset %d: %w", f.offset, err)
	}
	f.offset += uint64(n)
	return nil
}

func (f *File) Close(err error) error {
	if f.closer == nil {
		return nil
	}
	return f.closer.Close()
}
