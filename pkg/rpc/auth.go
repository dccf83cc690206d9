package rpc

import (
	"fmt"

	"github.com/nfsfetch/nfsfetch/pkg/xdr"
)

// Credential is the tagged variant described in the data model: either
// no authentication at all (AUTH_NONE) or a Unix-style credential
// (AUTH_SYS) carrying a stamp, machine name, uid, gid, and up to 16
// auxiliary group ids. The same shape is used for verifiers; this client
// only ever sends AUTH_NONE as a verifier.
type Credential struct {
	sys     bool
	stamp   uint32
	machine string
	uid     uint32
	gid     uint32
	auxGIDs []uint32
}

// None returns the empty AUTH_NONE credential/verifier.
func None() Credential {
	return Credential{}
}

// Sys returns an AUTH_SYS credential. machine is truncated to
// MaxMachineNameLength bytes and auxGIDs to MaxAuxGIDs entries, matching
// the bounds AUTH_SYS imposes on the wire.
func Sys(stamp, uid, gid uint32, machine string, auxGIDs []uint32) Credential {
	if len(machine) > MaxMachineNameLength {
		machine = machine[:MaxMachineNameLength]
	}
	if len(auxGIDs) > MaxAuxGIDs {
		auxGIDs = auxGIDs[:MaxAuxGIDs]
	}
	return Credential{
		sys:     true,
		stamp:   stamp,
		machine: machine,
		uid:     uid,
		gid:     gid,
		auxGIDs: auxGIDs,
	}
}

func (c Credential) toOpaqueAuth() opaqueAuth {
	if !c.sys {
		return opaqueAuth{Flavor: AuthNone, Body: nil}
	}
	e := xdr.NewEncoder()
	e.PutUint32(c.stamp)
	e.PutString(c.machine)
	e.PutUint32(c.uid)
	e.PutUint32(c.gid)
	e.PutUint32Array(c.auxGIDs)
	return opaqueAuth{Flavor: AuthSys, Body: e.Bytes()}
}

// UnixAuth is the decoded form of an AUTH_SYS credential body. It is not
// used by the happy-path fetch (the client only ever sends AUTH_SYS, it
// never receives one back) but is provided for tests and for callers who
// want to inspect what was sent.
type UnixAuth struct {
	Stamp       uint32
	MachineName string
	UID         uint32
	GID         uint32
	GIDs        []uint32
}

// ParseUnixAuth decodes an AUTH_SYS credential body per RFC 5531 Section
// 8.2 (struct authsys_parms).
func ParseUnixAuth(body []byte) (*UnixAuth, error) {
	if len(body) == 0 {
		return nil, fmt.Errorf("rpc: empty AUTH_SYS body")
	}
	d := xdr.NewDecoder(body)

	stamp, err := d.Uint32()
	if err != nil {
		return nil, fmt.Errorf("read stamp: %w", err)
	}

	nameLen, err := d.Uint32()
	if err != nil {
		return nil, fmt.Errorf("read machine name length: %w", err)
	}
	if nameLen > MaxMachineNameLength {
		return nil, fmt.Errorf("machine name too long: %d", nameLen)
	}
	nameBytes, err := d.OpaqueFixed(int(nameLen))
	if err != nil {
		return nil, fmt.Errorf("read machine name: %w", err)
	}
	machine := string(nameBytes)

	uid, err := d.Uint32()
	if err != nil {
		return nil, fmt.Errorf("read uid: %w", err)
	}
	gid, err := d.Uint32()
	if err != nil {
		return nil, fmt.Errorf("read gid: %w", err)
	}

	gidCount, err := d.Uint32()
	if err != nil {
		return nil, fmt.Errorf("read gid count: %w", err)
	}
	if gidCount > MaxAuxGIDs {
		return nil, fmt.Errorf("too many gids: %d", gidCount)
	}
	gids := make([]uint32, gidCount)
	for i := range gids {
		gids[i], err = d.Uint32()
		if err != nil {
			return nil, fmt.Errorf("read gid[%d]: %w", i, err)
		}
	}

	return &UnixAuth{
		Stamp:       stamp,
		MachineName: machine,
		UID:         uid,
		GID:         gid,
		GIDs:        gids,
	}, nil
}

func (a *UnixAuth) String() string {
	return fmt.Sprintf("UnixAuth{machine=%s uid=%d gid=%d gids=%v}", a.MachineName, a.UID, a.GID, a.GIDs)
}
