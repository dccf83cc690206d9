package transport

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nfsfetch/nfsfetch/pkg/rpc"
)

func listenAndDial(t *testing.T) (server net.Conn, client *Transport) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		c, err := ln.Accept()
		require.NoError(t, err)
		accepted <- c
	}()

	tr, err := Dial(ln.Addr().String(), DialOptions{})
	require.NoError(t, err)

	select {
	case server = <-accepted:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for accept")
	}
	return server, tr
}

func TestReadLoopReassemblesSingleFragmentRecord(t *testing.T) {
	server, tr := listenAndDial(t)
	defer server.Close()
	defer tr.Close(nil)

	payload := []byte("hello reply")
	_, err := server.Write(rpc.WriteRecord(payload))
	require.NoError(t, err)

	select {
	case ev := <-tr.Events():
		require.Equal(t, EventData, ev.Kind)
		assert.Equal(t, payload, ev.Data)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestReadLoopReassemblesMultiFragmentRecord(t *testing.T) {
	server, tr := listenAndDial(t)
	defer server.Close()
	defer tr.Close(nil)

	frag1 := lastFragmentOff([]byte("part-one-"))
	frag2 := rpc.WriteRecord([]byte("part-two"))
	_, err := server.Write(frag1)
	require.NoError(t, err)
	_, err = server.Write(frag2)
	require.NoError(t, err)

	select {
	case ev := <-tr.Events():
		require.Equal(t, EventData, ev.Kind)
		assert.Equal(t, []byte("part-one-part-two"), ev.Data)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
}

// lastFragmentOff builds a non-final record-marking fragment (high bit
// clear) by clearing the bit WriteRecord always sets.
func lastFragmentOff(payload []byte) []byte {
	frame := rpc.WriteRecord(payload)
	frame[0] &^= 0x80
	return frame
}

func TestSendWritesFrameDirectly(t *testing.T) {
	server, tr := listenAndDial(t)
	defer server.Close()
	defer tr.Close(nil)

	result, err := tr.Send(rpc.WriteRecord([]byte{1, 2, 3}))
	require.NoError(t, err)
	assert.Equal(t, rpc.SendOK, result)
}

func TestPeerCloseReportsEventClosed(t *testing.T) {
	server, tr := listenAndDial(t)
	defer tr.Close(nil)

	require.NoError(t, server.Close())

	select {
	case ev := <-tr.Events():
		assert.Equal(t, EventClosed, ev.Kind)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for close event")
	}
}
