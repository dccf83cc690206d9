// Package fetch implements the NFS-open driver: the state machine that,
// given a nfs://host/export/path URI, resolves the MOUNT and NFS service
// ports via Portmap, mounts the export, looks up the target file, and
// streams its contents to a downstream sink, cleanly unmounting when
// done.
//
// The driver is conceptually single-threaded cooperative: every mutation
// of a Request happens on one goroutine, the one running Run. Network
// I/O happens on separate per-connection goroutines owned by
// pkg/transport, which publish reassembled frames as events; Run is the
// sole consumer of those events and the sole caller into each
// *rpc.Session, which preserves the single-writer invariant the original
// callback-chain design relied on without needing any locking.
package fetch

import (
	"context"
	"fmt"
	"time"

	"github.com/nfsfetch/nfsfetch/internal/logger"
	"github.com/nfsfetch/nfsfetch/pkg/errs"
	"github.com/nfsfetch/nfsfetch/pkg/metrics"
	"github.com/nfsfetch/nfsfetch/pkg/mount"
	"github.com/nfsfetch/nfsfetch/pkg/nfs"
	"github.com/nfsfetch/nfsfetch/pkg/portmap"
	"github.com/nfsfetch/nfsfetch/pkg/rpc"
	"github.com/nfsfetch/nfsfetch/pkg/sink"
	"github.com/nfsfetch/nfsfetch/pkg/transport"
)

var log = logger.New("fetch")

// DefaultRSIZE is the read-chunk size requested on every READ, chosen to
// fit comfortably within typical MTUs after TCP/IP/RPC overhead (spec
// §4.4). Implementations may override it but must not exceed the
// server's advertised maximum, which this client never queries.
const DefaultRSIZE = 1300

// DefaultMachineName is used for the AUTH_SYS credential when Options
// does not supply one.
const DefaultMachineName = "client"

// eventTransport is the subset of *transport.Transport the driver needs:
// the rpc.Transport contract plus the event channel the driver's single
// event loop drains.
type eventTransport interface {
	rpc.Transport
	Events() <-chan transport.Event
}

// DialFunc opens a TCP connection and returns a transport ready to have
// its Events channel drained. The default is transport.Dial; tests
// inject a fake to avoid real sockets.
type DialFunc func(addr string, opts transport.DialOptions) (eventTransport, error)

func defaultDial(addr string, opts transport.DialOptions) (eventTransport, error) {
	return transport.Dial(addr, opts)
}

// Options carries the knobs spec §4.4 explicitly permits implementations
// to parameterize. All fields are optional.
type Options struct {
	// MachineName is sent in the AUTH_SYS credential. Defaults to
	// DefaultMachineName.
	MachineName string
	// RSIZE overrides the per-READ chunk size. Defaults to DefaultRSIZE.
	RSIZE uint32
	// PrivilegedPortMin/Max bound the local source port range used for
	// the MOUNT and NFS connections. Default to
	// transport.DefaultPrivilegedPortMin/Max.
	PrivilegedPortMin int
	PrivilegedPortMax int
	// Dial overrides how connections are established. Defaults to
	// transport.Dial.
	Dial DialFunc
}

type sessionSource int

const (
	sourcePortmap sessionSource = iota
	sourceMount
	sourceNFS
)

func (s sessionSource) String() string {
	switch s {
	case sourcePortmap:
		return "portmap"
	case sourceMount:
		return "mount"
	case sourceNFS:
		return "nfs"
	default:
		return "unknown"
	}
}

type sessionEvent struct {
	source sessionSource
	ev     transport.Event
}

// Request is the driver state of spec §3: three RPC sessions, the export
// path and file name parsed from the URI, the credential, the current
// file handle, the current byte offset, and the state enum.
type Request struct {
	host        string
	portmapPort int
	exportPath  string
	fileName    string
	cred        rpc.Credential
	rsize       uint32
	portMin     int
	portMax     int
	dial        DialFunc
	metrics     metrics.FetchMetrics

	sink  sink.Sink
	state State

	pmTransport eventTransport
	pmSession   *rpc.Session
	pmClient    *portmap.Client
	pmClosed    bool

	mountTransport eventTransport
	mountSession   *rpc.Session
	mountClient    *mount.Client
	mountClosed    bool

	nfsTransport eventTransport
	nfsSession   *rpc.Session
	nfsClient    *nfs.Client
	nfsClosed    bool

	fileHandle    []byte
	offset        uint64
	firstReadDone bool
	mounted       bool
	umntIssued    bool

	err   error
	start time.Time

	events chan sessionEvent
}

// Open parses uri, validates it, and constructs a Request in StateInit.
// It does not dial anything; call Run to drive the fetch to completion.
func Open(uri string, s sink.Sink, opts Options) (*Request, error) {
	if s == nil {
		return nil, errs.New(errs.InvalidArg, fmt.Errorf("fetch: nil sink"))
	}
	parsed, err := parseURI(uri)
	if err != nil {
		return nil, err
	}

	machineName := opts.MachineName
	if machineName == "" {
		machineName = DefaultMachineName
	}
	rsize := opts.RSIZE
	if rsize == 0 {
		rsize = DefaultRSIZE
	}
	dial := opts.Dial
	if dial == nil {
		dial = defaultDial
	}

	r := &Request{
		host:        parsed.Host,
		portmapPort: parsed.PortmapPort,
		exportPath:  parsed.ExportPath,
		fileName:    parsed.FileName,
		cred:        rpc.Sys(0, 0, 0, machineName, nil),
		rsize:       rsize,
		portMin:     opts.PrivilegedPortMin,
		portMax:     opts.PrivilegedPortMax,
		dial:        dial,
		metrics:     metrics.NewFetchMetrics(),
		sink:        s,
		state:       StateInit,
		events:      make(chan sessionEvent, 16),
	}
	return r, nil
}

// State reports the driver's current state, primarily for logging and
// tests.
func (r *Request) State() State {
	return r.state
}

// Run drives the fetch to completion: dialing Portmap, MOUNT, and NFS in
// turn, looking up the target file, streaming its contents to the sink,
// and unmounting. It blocks until the driver reaches DONE or FAILED, or
// ctx is cancelled (treated as a cancellation, identically to the sink
// closing downstream). It returns the terminal error, or on success
// whatever the sink's Close returns.
func (r *Request) Run(ctx context.Context) error {
	r.start = time.Now()
	r.startPortmap()

	for r.state != StateDone && r.state != StateFailed {
		select {
		case <-ctx.Done():
			r.cancel(ctx.Err())
		case se := <-r.events:
			r.dispatch(se)
		}
	}

	r.metrics.RecordFetchDuration(time.Since(r.start))
	closeErr := r.sink.Close(r.err)
	if r.err != nil {
		return r.err
	}
	return closeErr
}

func (r *Request) dispatch(se sessionEvent) {
	switch se.ev.Kind {
	case transport.EventData:
		r.onDelivery(se.source, se.ev.Data)
	case transport.EventClosed:
		r.onClosed(se.source, se.ev.Err)
	}
}

func (r *Request) onDelivery(source sessionSource, data []byte) {
	var session *rpc.Session
	switch source {
	case sourcePortmap:
		session = r.pmSession
	case sourceMount:
		session = r.mountSession
	case sourceNFS:
		session = r.nfsSession
	}
	if session == nil {
		return
	}
	if err := session.OnDelivery(data); err != nil {
		log.Warn("%s session: %v", source, err)
	}
}

func (r *Request) onClosed(source sessionSource, err error) {
	expected := false
	switch source {
	case sourcePortmap:
		expected = r.pmClosed
	case sourceMount:
		expected = r.mountClosed
	case sourceNFS:
		expected = r.nfsClosed
	}
	if expected || r.state == StateDone || r.state == StateFailed {
		return
	}
	if err == nil {
		err = errs.New(errs.Network, fmt.Errorf("fetch: %s connection closed unexpectedly", source))
	}
	r.fail(err)
}

func relay(source sessionSource, tr eventTransport, out chan<- sessionEvent) {
	for ev := range tr.Events() {
		out <- sessionEvent{source: source, ev: ev}
	}
}

// fail records the first terminal error and, if the mount has already
// succeeded and UMNT has not yet been issued, attempts UMNT before
// finishing. Subsequent calls after the first are ignored.
func (r *Request) fail(err error) {
	if r.err != nil {
		return
	}
	r.err = err
	r.metrics.RecordRPCError(errorCode(err))
	log.Warn("failing from state %s: %v", r.state, err)

	if r.mounted && !r.umntIssued && r.mountClient != nil {
		r.umntIssued = true
		r.state = StateUmnt
		if umErr := r.mountClient.Umnt(r.exportPath, func(_ error) { r.finalizeFailed() }); umErr == nil {
			return
		}
	}
	r.finalizeFailed()
}

// cancel handles a downstream cancellation: the sink closed (or ctx was
// cancelled) before EOF. Per spec §5, no UMNT is attempted.
func (r *Request) cancel(cause error) {
	if r.err != nil {
		return
	}
	r.umntIssued = true // suppress any UMNT attempt from fail's shared path
	r.fail(errs.New(errs.Cancelled, cause))
}

func (r *Request) finalizeFailed() {
	r.state = StateFailed
	r.closeSessions()
}

func (r *Request) finalizeDone() {
	r.state = StateDone
	r.closeSessions()
}

func (r *Request) closeSessions() {
	if r.pmSession != nil && !r.pmClosed {
		r.pmClosed = true
		r.pmSession.OnClose(r.err)
	}
	if r.mountSession != nil && !r.mountClosed {
		r.mountClosed = true
		r.mountSession.OnClose(r.err)
	}
	if r.nfsSession != nil && !r.nfsClosed {
		r.nfsClosed = true
		r.nfsSession.OnClose(r.err)
	}
}

func errorCode(err error) string {
	var e *errs.Error
	if ae, ok := err.(*errs.Error); ok {
		e = ae
	}
	if e == nil {
		return "UNKNOWN"
	}
	return e.Code.String()
}
