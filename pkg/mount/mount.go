// Package mount implements the MOUNT v3 client procedures the driver
// needs to obtain and release a root file handle for an export (RFC 1813
// Appendix I).
package mount

import (
	"fmt"

	"github.com/nfsfetch/nfsfetch/pkg/errs"
	"github.com/nfsfetch/nfsfetch/pkg/rpc"
	"github.com/nfsfetch/nfsfetch/pkg/xdr"
)

// Program and procedure numbers for MOUNT v3.
const (
	ProgramNumber uint32 = rpc.ProgramMount
	Version       uint32 = 3

	ProcNull uint32 = 0
	ProcMnt  uint32 = 1
	ProcUmnt uint32 = 3
)

// Status codes returned in the MNT reply (RFC 1813 Appendix I).
const (
	OK             uint32 = 0
	ErrPerm        uint32 = 1
	ErrNoEnt       uint32 = 2
	ErrIO          uint32 = 5
	ErrAccess      uint32 = 13
	ErrNotDir      uint32 = 20
	ErrInval       uint32 = 22
	ErrNameTooLong uint32 = 63
	ErrNotSupp     uint32 = 10004
	ErrServerFault uint32 = 10006
)

// MntResult carries the decoded MNT reply: the export's root file handle
// and the auth flavors the server is willing to accept. Both fields are
// zero-valued when Status != OK.
type MntResult struct {
	Status      uint32
	FileHandle  []byte
	AuthFlavors []uint32
}

// MntFunc is invoked once with the decoded result, or a non-nil error for
// transport/RPC-level failures. A non-OK Status is not reported as err;
// callers branch on Status.
type MntFunc func(res MntResult, err error)

// UmntFunc is invoked once the UMNT call completes. UMNT has no status of
// its own (void reply); err is non-nil only for transport/RPC failures.
type UmntFunc func(err error)

// Client wraps an *rpc.Session bound to the MOUNT program.
type Client struct {
	session *rpc.Session
}

// New wraps session, which must already be bound to (ProgramNumber,
// Version).
func New(session *rpc.Session) *Client {
	return &Client{session: session}
}

// Mnt requests the root file handle for dirPath (the export path, e.g.
// "/export/data").
func (c *Client) Mnt(dirPath string, onResult MntFunc) error {
	e := xdr.NewEncoder()
	e.PutString(dirPath)

	return c.session.Call(ProcMnt, e.Bytes(), func(d *xdr.Decoder, err error) {
		if err != nil {
			onResult(MntResult{}, err)
			return
		}
		res, decodeErr := decodeMntResult(d)
		if decodeErr != nil {
			onResult(MntResult{}, decodeErr)
			return
		}
		onResult(res, nil)
	})
}

// Umnt releases the mount entry for dirPath. Per the data model, the
// driver never calls this on a cancelled fetch.
func (c *Client) Umnt(dirPath string, onDone UmntFunc) error {
	e := xdr.NewEncoder()
	e.PutString(dirPath)

	return c.session.Call(ProcUmnt, e.Bytes(), func(d *xdr.Decoder, err error) {
		onDone(err)
	})
}

func decodeMntResult(d *xdr.Decoder) (MntResult, error) {
	status, err := d.Uint32()
	if err != nil {
		return MntResult{}, errs.New(errs.Malformed, fmt.Errorf("mount: decode status: %w", err))
	}
	if status != OK {
		return MntResult{Status: status}, nil
	}

	fh, err := d.FileHandle()
	if err != nil {
		return MntResult{}, errs.New(errs.Malformed, fmt.Errorf("mount: decode file handle: %w", err))
	}

	flavors, err := d.Uint32Array()
	if err != nil {
		return MntResult{}, errs.New(errs.Malformed, fmt.Errorf("mount: decode auth flavors: %w", err))
	}

	return MntResult{Status: OK, FileHandle: fh, AuthFlavors: flavors}, nil
}
