package sink

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeWriterAt is an in-memory io.WriterAt for testing File without disk
// I/O.
type fakeWriterAt struct {
	buf []byte
}

func (f *fakeWriterAt) WriteAt(p []byte, off int64) (int, error) {
	end := int(off) + len(p)
	if end > len(f.buf) {
		grown := make([]byte, end)
		copy(grown, f.buf)
		f.buf = grown
	}
	copy(f.buf[off:], p)
	return len(p), nil
}

func TestDeliverAdvancesPositionSequentially(t *testing.T) {
	w := &fakeWriterAt{}
	f := NewFile(w)

	require.NoError(t, f.Seek(0))
	require.NoError(t, f.Deliver([]byte("hel")))
	require.NoError(t, f.Deliver([]byte("lo")))

	assert.Equal(t, []byte("hello"), w.buf)
}

func TestSeekRepositionsBeforeDeliver(t *testing.T) {
	w := &fakeWriterAt{}
	f := NewFile(w)

	require.NoError(t, f.Seek(5)) // size signal, no write
	require.NoError(t, f.Seek(0)) // reposition
	require.NoError(t, f.Deliver([]byte("hello")))

	assert.True(t, bytes.Equal([]byte("hello"), w.buf))
}

func TestCloseIsNoOpWithoutCloser(t *testing.T) {
	f := NewFile(&fakeWriterAt{})
	assert.NoError(t, f.Close(nil))
}
