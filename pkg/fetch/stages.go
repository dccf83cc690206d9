package fetch

import (
	"fmt"

	"github.com/nfsfetch/nfsfetch/pkg/errs"
	"github.com/nfsfetch/nfsfetch/pkg/mount"
	"github.com/nfsfetch/nfsfetch/pkg/nfs"
	"github.com/nfsfetch/nfsfetch/pkg/portmap"
	"github.com/nfsfetch/nfsfetch/pkg/rpc"
	"github.com/nfsfetch/nfsfetch/pkg/transport"
)

// startPortmap opens the first of the three connections and issues
// GETPORT(MOUNT), per the state diagram's INIT -> PM_CONNECTING ->
// PM_GETPORT_MOUNT transition. Dialing blocks the calling goroutine
// until the TCP handshake completes or fails, so there is no separate
// asynchronous "on_connect" event to wait for.
func (r *Request) startPortmap() {
	r.state = StatePMConnecting
	addr := fmt.Sprintf("%s:%d", r.host, r.portmapPort)
	tr, err := r.dial(addr, transport.DialOptions{})
	if err != nil {
		r.fail(err)
		return
	}
	r.pmTransport = tr
	go relay(sourcePortmap, tr, r.events)

	session, err := rpc.New(tr, portmap.ProgramNumber, portmap.Version, rpc.None(), rpc.None(), 0)
	if err != nil {
		r.fail(err)
		return
	}
	r.pmSession = session
	r.pmClient = portmap.New(session)

	r.state = StatePMGetPortMount
	r.metrics.RecordRPCCall("GETPORT")
	if err := r.pmClient.GetPort(mount.ProgramNumber, mount.Version, portmap.ProtoTCP, r.onGetPortMountReply); err != nil {
		r.fail(err)
	}
}

func (r *Request) onGetPortMountReply(port uint32, err error) {
	if err != nil {
		r.fail(err)
		return
	}
	if port == 0 {
		r.fail(errs.New(errs.NotFound, fmt.Errorf("fetch: MOUNT service not registered")))
		return
	}

	r.state = StateMountConnecting
	addr := fmt.Sprintf("%s:%d", r.host, port)
	tr, err := r.dial(addr, transport.DialOptions{Privileged: true, PortMin: r.portMin, PortMax: r.portMax})
	if err != nil {
		r.fail(err)
		return
	}
	r.mountTransport = tr
	go relay(sourceMount, tr, r.events)

	session, err := rpc.New(tr, mount.ProgramNumber, mount.Version, r.cred, rpc.None(), 0)
	if err != nil {
		r.fail(err)
		return
	}
	r.mountSession = session
	r.mountClient = mount.New(session)

	r.state = StateMnt
	r.metrics.RecordRPCCall("MNT")
	if err := r.mountClient.Mnt(r.exportPath, r.onMntReply); err != nil {
		r.fail(err)
	}
}

func (r *Request) onMntReply(res mount.MntResult, err error) {
	if err != nil {
		r.fail(err)
		return
	}
	if res.Status != mount.OK {
		r.fail(errs.WithDetail(errs.Remote, res.Status, fmt.Errorf("fetch: MNT failed")))
		return
	}
	r.fileHandle = res.FileHandle
	r.mounted = true

	r.state = StatePMGetPortNFS
	r.metrics.RecordRPCCall("GETPORT")
	if err := r.pmClient.GetPort(nfs.ProgramNumber, nfs.Version, portmap.ProtoTCP, r.onGetPortNFSReply); err != nil {
		r.fail(err)
	}
}

func (r *Request) onGetPortNFSReply(port uint32, err error) {
	if err != nil {
		r.fail(err)
		return
	}
	if port == 0 {
		r.fail(errs.New(errs.NotFound, fmt.Errorf("fetch: NFS service not registered")))
		return
	}

	// Per the state diagram, the portmap session has no further use once
	// the NFS port is known.
	if r.pmSession != nil && !r.pmClosed {
		r.pmClosed = true
		r.pmSession.OnClose(nil)
	}

	r.state = StateNFSConnecting
	addr := fmt.Sprintf("%s:%d", r.host, port)
	tr, err := r.dial(addr, transport.DialOptions{Privileged: true, PortMin: r.portMin, PortMax: r.portMax})
	if err != nil {
		r.fail(err)
		return
	}
	r.nfsTransport = tr
	go relay(sourceNFS, tr, r.events)

	session, err := rpc.New(tr, nfs.ProgramNumber, nfs.Version, r.cred, rpc.None(), 0)
	if err != nil {
		r.fail(err)
		return
	}
	r.nfsSession = session
	r.nfsClient = nfs.New(session)

	r.state = StateLookup
	r.metrics.RecordRPCCall("LOOKUP")
	if err := r.nfsClient.Lookup(r.fileHandle, r.fileName, r.onLookupReply); err != nil {
		r.fail(err)
	}
}

func (r *Request) onLookupReply(res nfs.LookupResult, err error) {
	if err != nil {
		r.fail(err)
		return
	}
	if res.Status != nfs.OK {
		r.fail(errs.WithDetail(errs.Remote, res.Status, fmt.Errorf("fetch: LOOKUP failed")))
		return
	}
	r.fileHandle = res.FileHandle
	r.offset = 0
	r.state = StateRead
	r.issueRead()
}

func (r *Request) issueRead() {
	r.metrics.RecordRPCCall("READ")
	if err := r.nfsClient.Read(r.fileHandle, r.offset, r.rsize, r.onReadReply); err != nil {
		r.fail(err)
	}
}

func (r *Request) onReadReply(res nfs.ReadResult, err error) {
	if err != nil {
		r.fail(err)
		return
	}
	if res.Status != nfs.OK {
		r.fail(errs.WithDetail(errs.Remote, res.Status, fmt.Errorf("fetch: READ failed")))
		return
	}

	if !r.firstReadDone {
		r.firstReadDone = true
		if res.FileSizeKnown {
			if serr := r.sink.Seek(res.FileSize); serr != nil {
				r.cancel(serr)
				return
			}
		} else {
			log.Debug("server omitted file_attributes on first READ; size signal skipped")
		}
		if serr := r.sink.Seek(0); serr != nil {
			r.cancel(serr)
			return
		}
	}

	if len(res.Data) > 0 {
		if serr := r.sink.Deliver(res.Data); serr != nil {
			r.cancel(serr)
			return
		}
		r.metrics.RecordBytesDelivered(len(res.Data))
	}
	r.offset += uint64(res.Count)

	if res.Eof {
		r.umntIssued = true
		r.state = StateUmnt
		r.metrics.RecordRPCCall("UMNT")
		if err := r.mountClient.Umnt(r.exportPath, r.onUmntReply); err != nil {
			r.fail(err)
		}
		return
	}
	r.issueRead()
}

func (r *Request) onUmntReply(err error) {
	if err != nil {
		r.fail(err)
		return
	}
	r.finalizeDone()
}
