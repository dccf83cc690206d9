package nfs

import (
	"github.com/nfsfetch/nfsfetch/pkg/xdr"
)

// ReadResult carries the decoded READ3res. FileSize and FileSizeKnown
// reflect the optional post-op attributes (RFC 1813 Section 3.3.6); per
// the spec, a server that omits attributes leaves the size signal absent
// rather than failing the read.
type ReadResult struct {
	Status        uint32
	FileSize      uint64
	FileSizeKnown bool
	Count         uint32
	Eof           bool
	Data          []byte
}

// ReadFunc is invoked once with the decoded result, or a non-nil error
// for transport/RPC-level failures.
type ReadFunc func(res ReadResult, err error)

// Read requests up to count bytes from fileHandle starting at offset, per
// RFC 1813 Section 3.3.6 (NFSPROC3_READ). The server may return fewer
// bytes than requested; this client never retries a short read.
func (c *Client) Read(fileHandle []byte, offset uint64, count uint32, onResult ReadFunc) error {
	e := xdr.NewEncoder()
	if err := e.PutFileHandle(fileHandle); err != nil {
		return err
	}
	e.PutUint64(offset)
	e.PutUint32(count)

	return c.session.Call(ProcRead, e.Bytes(), func(d *xdr.Decoder, err error) {
		if err != nil {
			onResult(ReadResult{}, err)
			return
		}
		res, decodeErr := decodeReadResult(d)
		if decodeErr != nil {
			onResult(ReadResult{}, decodeErr)
			return
		}
		onResult(res, nil)
	})
}

func decodeReadResult(d *xdr.Decoder) (ReadResult, error) {
	status, err := d.Uint32()
	if err != nil {
		return ReadResult{}, newMalformed("READ status", err)
	}

	size, present, err := decodePostOpAttrSize(d)
	if err != nil {
		return ReadResult{}, newMalformed("READ file_attributes", err)
	}

	if status != OK {
		return ReadResult{Status: status, FileSize: size, FileSizeKnown: present}, nil
	}

	count, err := d.Uint32()
	if err != nil {
		return ReadResult{}, newMalformed("READ count", err)
	}
	eofFlag, err := d.Uint32()
	if err != nil {
		return ReadResult{}, newMalformed("READ eof", err)
	}
	data, err := d.VarOpaque()
	if err != nil {
		return ReadResult{}, newMalformed("READ data", err)
	}

	return ReadResult{
		Status:        OK,
		FileSize:      size,
		FileSizeKnown: present,
		Count:         count,
		Eof:           eofFlag != 0,
		Data:          data,
	}, nil
}
