package wire

import (
	"encoding/binary"
	"fmt"
	"io"
)

// MaxTCPPayload is the largest DNS message this implementation will accept
// over a length-prefixed TCP connection (§5 resource bounds).
const MaxTCPPayload = 64 * 1024

// EncodeTCPFrame prepends the 16-bit big-endian length prefix TCP/53
// framing requires (§6) to an already-encoded message.
func EncodeTCPFrame(message []byte) ([]byte, error) {
	if len(message) > MaxTCPPayload {
		return nil, fmt.Errorf("message of %d bytes exceeds TCP frame limit %d", len(message), MaxTCPPayload)
	}
	framed := make([]byte, 2+len(message))
	binary.BigEndian.PutUint16(framed, uint16(len(message)))
	copy(framed[2:], message)
	return framed, nil
}

// ReadTCPFrame reads one length-prefixed DNS message from r, rejecting
// frames that declare a length beyond MaxTCPPayload before reading the
// body, so a malicious length prefix can't force a huge allocation.
func ReadTCPFrame(r io.Reader) ([]byte, error) {
	var lenBuf [2]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint16(lenBuf[:])
	if int(n) > MaxTCPPayload {
		return nil, fmt.Errorf("TCP frame length %d exceeds limit %d", n, MaxTCPPayload)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, fmt.Errorf("reading TCP frame body: %w", err)
	}
	return buf, nil
}
