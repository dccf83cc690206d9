package nfs

import (
	"github.com/nfsfetch/nfsfetch/pkg/xdr"
)

// LookupResult carries the decoded LOOKUP3res. FileHandle is empty unless
// Status == OK.
type LookupResult struct {
	Status     uint32
	FileHandle []byte
}

// LookupFunc is invoked once with the decoded result, or a non-nil error
// for transport/RPC-level failures.
type LookupFunc func(res LookupResult, err error)

// Lookup resolves name within the directory identified by dirHandle,
// per RFC 1813 Section 3.3.3 (NFSPROC3_LOOKUP).
func (c *Client) Lookup(dirHandle []byte, name string, onResult LookupFunc) error {
	e := xdr.NewEncoder()
	if err := e.PutFileHandle(dirHandle); err != nil {
		return err
	}
	e.PutString(name)

	return c.session.Call(ProcLookup, e.Bytes(), func(d *xdr.Decoder, err error) {
		if err != nil {
			onResult(LookupResult{}, err)
			return
		}
		res, decodeErr := decodeLookupResult(d)
		if decodeErr != nil {
			onResult(LookupResult{}, decodeErr)
			return
		}
		onResult(res, nil)
	})
}

func decodeLookupResult(d *xdr.Decoder) (LookupResult, error) {
	status, err := d.Uint32()
	if err != nil {
		return LookupResult{}, newMalformed("LOOKUP status", err)
	}
	if status != OK {
		// dir_attributes (post_op_attr) follows; the driver has no use for
		// it on a failed lookup.
		if err := skipPostOpAttr(d); err != nil {
			return LookupResult{}, newMalformed("LOOKUP dir_attributes", err)
		}
		return LookupResult{Status: status}, nil
	}

	fh, err := d.FileHandle()
	if err != nil {
		return LookupResult{}, newMalformed("LOOKUP object handle", err)
	}

	// obj_attributes, then dir_attributes: both post_op_attr, both unused
	// by the driver (it never needs the looked-up file's size until READ).
	if err := skipPostOpAttr(d); err != nil {
		return LookupResult{}, newMalformed("LOOKUP obj_attributes", err)
	}
	if err := skipPostOpAttr(d); err != nil {
		return LookupResult{}, newMalformed("LOOKUP dir_attributes", err)
	}

	return LookupResult{Status: OK, FileHandle: fh}, nil
}
