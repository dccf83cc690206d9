// Package nfs implements the NFSv3 client procedures the driver needs to
// resolve a path and stream a file's contents (RFC 1813): LOOKUP and READ.
// Every other NFSv3 procedure is out of scope for a read-only fetch client.
package nfs

import (
	"fmt"

	"github.com/nfsfetch/nfsfetch/pkg/errs"
	"github.com/nfsfetch/nfsfetch/pkg/rpc"
	"github.com/nfsfetch/nfsfetch/pkg/xdr"
)

// Program and procedure numbers for NFSv3.
const (
	ProgramNumber uint32 = rpc.ProgramNFS
	Version       uint32 = 3

	ProcNull   uint32 = 0
	ProcLookup uint32 = 3
	ProcRead   uint32 = 6
)

// Status codes returned in NFSv3 replies (RFC 1813 Section 3.3).
const (
	OK             uint32 = 0
	ErrPerm        uint32 = 1
	ErrNoEnt       uint32 = 2
	ErrIO          uint32 = 5
	ErrAcces       uint32 = 13
	ErrNotDir      uint32 = 20
	ErrInval       uint32 = 22
	ErrNameTooLong uint32 = 63
	ErrStale       uint32 = 70
	ErrBadHandle   uint32 = 10001
	ErrServerFault uint32 = 10006
)

// Client wraps an *rpc.Session bound to the NFS program.
type Client struct {
	session *rpc.Session
}

// New wraps session, which must already be bound to (ProgramNumber,
// Version).
func New(session *rpc.Session) *Client {
	return &Client{session: session}
}

// attrFixedBodyLen is the byte length of an fattr3 once past the size
// field (used, rdev, fsid, fileid, atime, mtime, ctime): 8 + 8 + 8 + 8 +
// 8 + 8 + 8 bytes (RFC 1813 Section 2.5.5).
const attrFixedBodyLen = 56

// decodePostOpAttrSize decodes a post_op_attr, returning the file size if
// attributes_follow is TRUE. When attributes are absent it returns
// (0, false, nil), matching the spec's "size signal omitted" fallback.
func decodePostOpAttrSize(d *xdr.Decoder) (size uint64, present bool, err error) {
	follows, err := d.Uint32()
	if err != nil {
		return 0, false, err
	}
	if follows == 0 {
		return 0, false, nil
	}

	// type, mode, nlink, uid, gid
	if err := d.Skip(4 * 5); err != nil {
		return 0, false, err
	}
	size, err = d.Uint64()
	if err != nil {
		return 0, false, err
	}
	if err := d.Skip(attrFixedBodyLen); err != nil {
		return 0, false, err
	}
	return size, true, nil
}

// skipPostOpAttr decodes and discards a post_op_attr the caller does not
// need the contents of, leaving the decoder positioned just past it.
func skipPostOpAttr(d *xdr.Decoder) error {
	_, _, err := decodePostOpAttrSize(d)
	return err
}

func newMalformed(op string, err error) error {
	return errs.New(errs.Malformed, fmt.Errorf("nfs: decode %s: %w", op, err))
}
