package rpc

// opaqueAuth is the credential/verifier wire shape shared by calls and
// replies (RFC 5531 Section 8.1). The xdr tag tells the rasky/go-xdr
// marshaler to treat Body as variable-length opaque data rather than a
// fixed array.
type opaqueAuth struct {
	Flavor uint32
	Body   []byte `xdr:"opaque"`
}

// callHeader is the fixed-shape portion of every RPC call (RFC 5531
// Section 9): xid, direction, rpc version, program, version, procedure,
// credential, verifier. Procedure-specific arguments follow and are
// appended separately by Session.Call.
type callHeader struct {
	XID        uint32
	MsgType    uint32
	RPCVersion uint32
	Program    uint32
	Version    uint32
	Procedure  uint32
	Cred       opaqueAuth
	Verf       opaqueAuth
}

// replyPrefix is the part of every reply that exists regardless of
// reply_stat: xid, direction, reply_stat.
type replyPrefix struct {
	XID        uint32
	MsgType    uint32
	ReplyState uint32
}

// acceptedReplyHeader is the part of an accepted reply (reply_stat = 0)
// that precedes the procedure-specific results: the verifier and the
// accept_stat.
type acceptedReplyHeader struct {
	Verf       opaqueAuth
	AcceptStat uint32
}
