package nfs

import (
	"bytes"
	"testing"

	xdr2 "github.com/rasky/go-xdr/xdr2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nfsfetch/nfsfetch/pkg/rpc"
	"github.com/nfsfetch/nfsfetch/pkg/xdr"
)

type loopbackTransport struct {
	session *rpc.Session
	reply   []byte
}

func (l *loopbackTransport) Send(frame []byte) (rpc.SendResult, error) {
	return rpc.SendOK, l.session.OnDelivery(l.reply)
}

func (l *loopbackTransport) Close(rc error) error { return nil }

func acceptedResultReply(xid uint32, result []byte) []byte {
	var buf bytes.Buffer
	type replyPrefix struct{ XID, MsgType, ReplyState uint32 }
	type opaqueAuth struct {
		Flavor uint32
		Body   []byte `xdr:"opaque"`
	}
	type acceptedReplyHeader struct {
		Verf       opaqueAuth
		AcceptStat uint32
	}
	_, _ = xdr2.Marshal(&buf, &replyPrefix{XID: xid, MsgType: 1, ReplyState: 0})
	_, _ = xdr2.Marshal(&buf, &acceptedReplyHeader{AcceptStat: 0})
	buf.Write(result)
	return buf.Bytes()
}

func newLoopback(t *testing.T, resultBody []byte) *Client {
	t.Helper()
	lb := &loopbackTransport{}
	session, err := rpc.New(lb, ProgramNumber, Version, rpc.None(), rpc.None(), 0)
	require.NoError(t, err)
	lb.session = session
	lb.reply = acceptedResultReply(0, resultBody)
	return New(session)
}

func fattr3Bytes(size uint64) []byte {
	e := xdr.NewEncoder()
	e.PutUint32(1) // type: regular file
	e.PutUint32(0o644)
	e.PutUint32(1) // nlink
	e.PutUint32(0) // uid
	e.PutUint32(0) // gid
	e.PutUint64(size)
	e.PutUint64(size) // used
	e.PutUint32(0)    // rdev major
	e.PutUint32(0)    // rdev minor
	e.PutUint64(0)    // fsid
	e.PutUint64(1)    // fileid
	e.PutUint64(0)    // atime: seconds and nseconds u32s, both zero
	e.PutUint64(0)    // mtime
	e.PutUint64(0)    // ctime
	return e.Bytes()
}

func TestLookupSuccessReturnsHandle(t *testing.T) {
	fh := []byte{2, 2, 2, 2, 2, 2, 2, 2}

	e := xdr.NewEncoder()
	e.PutUint32(OK)
	_ = e.PutFileHandle(fh)
	e.PutUint32(0) // obj_attributes absent
	e.PutUint32(0) // dir_attributes absent

	c := newLoopback(t, e.Bytes())

	var got LookupResult
	var gotErr error
	require.NoError(t, c.Lookup([]byte{1}, "hello.txt", func(res LookupResult, err error) {
		got, gotErr = res, err
	}))
	require.NoError(t, gotErr)
	assert.Equal(t, OK, got.Status)
	assert.Equal(t, fh, got.FileHandle)
}

func TestLookupNoEntReportsStatus(t *testing.T) {
	e := xdr.NewEncoder()
	e.PutUint32(ErrNoEnt)
	e.PutUint32(0) // dir_attributes absent

	c := newLoopback(t, e.Bytes())

	var got LookupResult
	require.NoError(t, c.Lookup([]byte{1}, "missing.txt", func(res LookupResult, err error) {
		got = res
		require.NoError(t, err)
	}))
	assert.Equal(t, ErrNoEnt, got.Status)
	assert.Nil(t, got.FileHandle)
}

func TestReadFirstChunkSignalsSizeAndEof(t *testing.T) {
	e := xdr.NewEncoder()
	e.PutUint32(OK)
	e.PutUint32(1) // attributes_follow
	tail := xdr.NewEncoder()
	tail.PutUint32(5) // count
	tail.PutUint32(1) // eof
	tail.PutVarOpaque([]byte("hello"))

	body := append(append(e.Bytes(), fattr3Bytes(5)...), tail.Bytes()...)
	c := newLoopback(t, body)

	var got ReadResult
	require.NoError(t, c.Read([]byte{2}, 0, 1300, func(res ReadResult, err error) {
		got = res
		require.NoError(t, err)
	}))
	assert.Equal(t, OK, got.Status)
	assert.True(t, got.FileSizeKnown)
	assert.Equal(t, uint64(5), got.FileSize)
	assert.Equal(t, uint32(5), got.Count)
	assert.True(t, got.Eof)
	assert.Equal(t, []byte("hello"), got.Data)
}

func TestReadAbsentAttributesOmitsSizeSignal(t *testing.T) {
	e := xdr.NewEncoder()
	e.PutUint32(OK)
	e.PutUint32(0) // attributes_follow = FALSE
	e.PutUint32(400)
	e.PutUint32(1)
	e.PutVarOpaque(make([]byte, 400))

	c := newLoopback(t, e.Bytes())

	var got ReadResult
	require.NoError(t, c.Read([]byte{2}, 2600, 1300, func(res ReadResult, err error) {
		got = res
		require.NoError(t, err)
	}))
	assert.False(t, got.FileSizeKnown)
	assert.Equal(t, uint32(400), got.Count)
	assert.True(t, got.Eof)
}
