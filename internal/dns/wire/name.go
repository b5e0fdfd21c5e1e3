package wire

import (
	"encoding/binary"
	"fmt"
	"strings"
)

const (
	maxLabelLen    = 63
	maxNameOctets  = 255
	maxPointerHops = 128
	pointerMask    = 0xC0
	pointerOffMask = 0x3FFF
)

// compressionMap tracks where each fully-qualified name was first written in
// the message buffer, so later occurrences can be replaced with a 14-bit
// pointer per RFC 1035 §4.1.4. Only names at offsets representable in 14
// bits are recorded; an overflow simply means that occurrence won't compress.
type compressionMap map[string]int

// encodeName writes name (absolute, dot-separated) to buf, using buf's
// current length as the base offset for recording new compression targets.
// When compress is false (OpaqueData and other non-compressible contexts)
// the name is still looked up for a pointer opportunity but never itself
// registered, matching the compressible-type whitelist in RRType.Compressible.
func encodeName(buf *[]byte, name string, comp compressionMap, compress bool) error {
	labels := splitLabels(name)

	suffix := ""
	for i := range labels {
		suffix = strings.Join(labels[i:], ".") + "."
		if off, ok := comp[suffix]; ok {
			ptr := uint16(pointerMask)<<8 | uint16(off)
			*buf = append(*buf, byte(ptr>>8), byte(ptr))
			return nil
		}
		if off := len(*buf); compress && off <= pointerOffMask {
			comp[suffix] = off
		}
		label := labels[i]
		if len(label) > maxLabelLen {
			return fmt.Errorf("label %q exceeds %d octets", label, maxLabelLen)
		}
		*buf = append(*buf, byte(len(label)))
		*buf = append(*buf, label...)
	}
	*buf = append(*buf, 0)
	return nil
}

// splitLabels splits an absolute dot-separated name into ordered labels,
// treating the root "." as zero labels.
func splitLabels(name string) []string {
	name = strings.TrimSuffix(name, ".")
	if name == "" {
		return nil
	}
	return strings.Split(name, ".")
}

// decodeName reads a possibly-compressed name starting at offset within msg,
// returning the canonical absolute name and the offset immediately following
// the name's on-the-wire representation (which, for a pointer, is right
// after the 2-byte pointer itself, not after the jump target).
func decodeName(msg []byte, offset int) (string, int, error) {
	var labels []string
	cursor := offset
	end := -1
	hops := 0
	total := 0

	for {
		if cursor >= len(msg) {
			return "", 0, fmt.Errorf("name extends past end of message")
		}
		length := int(msg[cursor])
		switch {
		case length == 0:
			cursor++
			if end == -1 {
				end = cursor
			}
			if len(labels) == 0 {
				return ".", end, nil
			}
			return strings.ToLower(strings.Join(labels, ".")) + ".", end, nil
		case length&pointerMask == pointerMask:
			if cursor+1 >= len(msg) {
				return "", 0, fmt.Errorf("truncated compression pointer")
			}
			ptr := int(binary.BigEndian.Uint16(msg[cursor:cursor+2]) & pointerOffMask)
			if end == -1 {
				end = cursor + 2
			}
			if ptr >= offset {
				return "", 0, fmt.Errorf("compression pointer does not point backward")
			}
			hops++
			if hops > maxPointerHops {
				return "", 0, fmt.Errorf("too many compression pointer hops")
			}
			cursor = ptr
			offset = ptr
		default:
			if length > maxLabelLen {
				return "", 0, fmt.Errorf("label length %d exceeds %d octets", length, maxLabelLen)
			}
			cursor++
			if cursor+length > len(msg) {
				return "", 0, fmt.Errorf("label extends past end of message")
			}
			total += length + 1
			if total > maxNameOctets {
				return "", 0, fmt.Errorf("name exceeds %d octets", maxNameOctets)
			}
			labels = append(labels, string(msg[cursor:cursor+length]))
			cursor += length
		}
	}
}
