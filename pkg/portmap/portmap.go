// Package portmap implements the Portmap v2 client procedures needed to
// resolve the TCP port a remote program is listening on (RFC 1833, the
// predecessor protocol also known as rpcbind). The driver uses this to
// find the MOUNT and NFS service ports before it can dial them.
package portmap

import (
	"fmt"

	"github.com/nfsfetch/nfsfetch/pkg/errs"
	"github.com/nfsfetch/nfsfetch/pkg/rpc"
	"github.com/nfsfetch/nfsfetch/pkg/xdr"
)

// Program and procedure numbers for Portmap v2 (RFC 1833 Appendix A).
const (
	ProgramNumber uint32 = rpc.ProgramPortmap
	Version       uint32 = 2

	ProcNull    uint32 = 0
	ProcGetPort uint32 = 3
)

// Protocol identifies the transport a caller wants a port for, per the
// pmap2.mapping.prot field.
type Protocol uint32

const (
	ProtoTCP Protocol = 6
	ProtoUDP Protocol = 17
)

// GetPortFunc is invoked once with the resolved port, or with a non-nil
// error. port == 0 and err == nil together mean the program/version pair
// is not registered (RFC 1833 Section 3: "If the procedure is not
// listed... a port of 0 is returned").
type GetPortFunc func(port uint32, err error)

// Client is a thin wrapper around an *rpc.Session bound to the Portmap
// program, exposing one method per procedure the driver needs.
type Client struct {
	session *rpc.Session
}

// New wraps session, which must already be bound to (ProgramNumber,
// Version).
func New(session *rpc.Session) *Client {
	return &Client{session: session}
}

// GetPort asks the remote portmapper what port program/version is
// listening on for the given protocol. A resolved port of 0 is reported
// to onResult as (0, nil), not as an error; callers that consider this a
// failure (the driver does, via errs.NotFound) make that translation
// themselves.
func (c *Client) GetPort(program, version uint32, proto Protocol, onResult GetPortFunc) error {
	e := xdr.NewEncoder()
	e.PutUint32(program)
	e.PutUint32(version)
	e.PutUint32(uint32(proto))
	e.PutUint32(0) // port is always 0 in the request

	return c.session.Call(ProcGetPort, e.Bytes(), func(d *xdr.Decoder, err error) {
		if err != nil {
			onResult(0, err)
			return
		}
		port, err := d.Uint32()
		if err != nil {
			onResult(0, errs.New(errs.Malformed, fmt.Errorf("portmap: decode GETPORT result: %w", err)))
			return
		}
		onResult(port, nil)
	})
}
