// Package transport supplies the one concrete Transport the core's
// driver needs to actually move bytes: a net.Conn-backed implementation
// that reassembles record-marked ONC RPC frames and, for the MOUNT and
// NFS connections, binds a privileged local source port so that servers
// enforcing the Linux nfs-utils "secure" export option accept the
// connection.
package transport

import (
	"fmt"
	"io"
	"math/rand"
	"net"
	"time"

	"github.com/nfsfetch/nfsfetch/internal/logger"
	"github.com/nfsfetch/nfsfetch/pkg/errs"
	"github.com/nfsfetch/nfsfetch/pkg/rpc"
)

var log = logger.New("transport")

// EventKind discriminates the two things a Transport reports on its
// Events channel.
type EventKind int

const (
	// EventData carries one fully reassembled RPC message, with the
	// record-marking headers already stripped.
	EventData EventKind = iota
	// EventClosed reports the connection is gone; Err is nil for a clean
	// peer-initiated close.
	EventClosed
)

// Event is a single item delivered on a Transport's Events channel.
type Event struct {
	Kind EventKind
	Data []byte
	Err  error
}

// DefaultPrivilegedPortMin and DefaultPrivilegedPortMax bound the local
// source port range used for MOUNT/NFS connections, per spec §4.4.
const (
	DefaultPrivilegedPortMin = 1
	DefaultPrivilegedPortMax = 1023
)

const maxBindAttempts = 16

// Transport implements rpc.Transport over a net.Conn. Its background
// read loop feeds reassembled frames to Events; Send and Close are
// called from the driver's single event-loop goroutine, and Events has
// a single reader (the driver's relay goroutine for this connection,
// which forwards to that event loop) — this is what keeps the session's
// state mutation single-threaded despite the network I/O living on its
// own goroutine.
type Transport struct {
	conn   net.Conn
	events chan Event
}

// DialOptions configures how a Transport's connection is established.
type DialOptions struct {
	// Privileged, when true, binds the local source port to a
	// pseudo-random value in [PortMin, PortMax] before connecting.
	Privileged bool
	PortMin    int
	PortMax    int
}

// Dial opens a TCP connection to addr ("host:port") and starts the
// background read loop. Events must be drained by the caller or the read
// loop will block once the channel's 8-event buffer is full.
func Dial(addr string, opts DialOptions) (*Transport, error) {
	dialer := net.Dialer{Timeout: 10 * time.Second}

	var conn net.Conn
	var err error
	if opts.Privileged {
		conn, err = dialPrivileged(dialer, addr, opts)
	} else {
		conn, err = dialer.Dial("tcp", addr)
	}
	if err != nil {
		return nil, errs.New(errs.Network, fmt.Errorf("transport: dial %s: %w", addr, err))
	}

	t := &Transport{
		conn:   conn,
		events: make(chan Event, 8),
	}
	go t.readLoop()
	return t, nil
}

func dialPrivileged(dialer net.Dialer, addr string, opts DialOptions) (net.Conn, error) {
	portMin, portMax := opts.PortMin, opts.PortMax
	if portMin <= 0 {
		portMin = DefaultPrivilegedPortMin
	}
	if portMax <= 0 || portMax < portMin {
		portMax = DefaultPrivilegedPortMax
	}
	span := portMax - portMin + 1

	var lastErr error
	for attempt := 0; attempt < maxBindAttempts; attempt++ {
		port := portMin + rand.Intn(span)
		d := dialer
		d.LocalAddr = &net.TCPAddr{Port: port}
		conn, err := d.Dial("tcp", addr)
		if err == nil {
			return conn, nil
		}
		lastErr = err
		log.Debug("privileged bind attempt %d on port %d failed: %v", attempt, port, err)
	}
	return nil, fmt.Errorf("exhausted %d privileged port bind attempts: %w", maxBindAttempts, lastErr)
}

// Events returns the channel the Transport's read loop publishes to.
func (t *Transport) Events() <-chan Event {
	return t.events
}

// Send writes a complete, already record-marked frame. A net.Conn write
// either fully succeeds or fails; this Transport never reports
// SendWouldBlock, since Go's blocking Write already provides the
// backpressure the session's queuing exists to handle.
func (t *Transport) Send(frame []byte) (rpc.SendResult, error) {
	if _, err := t.conn.Write(frame); err != nil {
		return rpc.SendError, errs.New(errs.Network, fmt.Errorf("transport: write: %w", err))
	}
	return rpc.SendOK, nil
}

// Close shuts the connection down. rc is not transmitted anywhere; it
// exists so callers can log why the transport was torn down.
func (t *Transport) Close(rc error) error {
	if rc != nil {
		log.Debug("closing due to: %v", rc)
	}
	return t.conn.Close()
}

func (t *Transport) readLoop() {
	defer close(t.events)
	for {
		frame, err := t.readRecord()
		if err != nil {
			if err != io.EOF {
				t.events <- Event{Kind: EventClosed, Err: errs.New(errs.Network, err)}
			} else {
				t.events <- Event{Kind: EventClosed}
			}
			return
		}
		t.events <- Event{Kind: EventData, Data: frame}
	}
}

// readRecord reassembles one RPC message from one or more record-marking
// fragments (RFC 5531 Section 11).
func (t *Transport) readRecord() ([]byte, error) {
	var fragments [][]byte
	for {
		var header [4]byte
		if _, err := io.ReadFull(t.conn, header[:]); err != nil {
			return nil, err
		}
		last, length := rpc.ReadRecordHeader(header)

		payload := make([]byte, length)
		if _, err := io.ReadFull(t.conn, payload); err != nil {
			return nil, err
		}
		fragments = append(fragments, payload)

		if last {
			break
		}
	}
	if len(fragments) == 1 {
		return fragments[0], nil
	}
	return rpc.AssembleRecord(fragments), nil
}
