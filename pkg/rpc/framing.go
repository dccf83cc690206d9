package rpc

import (
	"encoding/binary"
)

// lastFragmentBit marks a record-marking fragment as the final one in a
// message (RFC 5531 Section 11, record marking standard).
const lastFragmentBit = 0x80000000

// WriteRecord prepends the RFC 5531 record-marking header to payload and
// returns the complete frame. This client always sends single-fragment,
// last-fragment records.
//
// The header slot is reserved first and filled in afterward so there is
// no path where the high bit could be set before the payload length is
// known (spec Open Question 1).
func WriteRecord(payload []byte) []byte {
	frame := make([]byte, 4+len(payload))
	binary.BigEndian.PutUint32(frame[0:4], lastFragmentBit|uint32(len(payload)))
	copy(frame[4:], payload)
	return frame
}

// ReadRecordHeader decodes a 4-byte record-marking header, returning
// whether it is the last fragment and the fragment's payload length.
func ReadRecordHeader(header [4]byte) (last bool, length uint32) {
	v := binary.BigEndian.Uint32(header[:])
	return v&lastFragmentBit != 0, v &^ lastFragmentBit
}

// AssembleRecord reassembles a reply from one or more fragments read off
// the wire. Callers that know their server only emits single-fragment
// records (the common case) may call this with a single fragment.
func AssembleRecord(fragments [][]byte) []byte {
	total := 0
	for _, f := range fragments {
		total += len(f)
	}
	out := make([]byte, 0, total)
	for _, f := range fragments {
		out = append(out, f...)
	}
	return out
}
