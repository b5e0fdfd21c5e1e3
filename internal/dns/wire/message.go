// Package wire implements the RFC 1035 binary encoding of domain.Message,
// including name compression, and the UDP truncation and TCP length-prefix
// framing rules used by the transports.
package wire

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/quilldns/rr-dns/internal/dns/common/utils"
	"github.com/quilldns/rr-dns/internal/dns/domain"
)

const (
	headerLen = 12

	// MaxUDPPayload is the largest response this implementation will send
	// without setting TC, per §4.1 (no EDNS0 size negotiation).
	MaxUDPPayload = 512
)

func packFlags(f domain.Flags) uint16 {
	var v uint16
	if f.QR {
		v |= 1 << 15
	}
	v |= uint16(f.Opcode&0x0F) << 11
	if f.AA {
		v |= 1 << 10
	}
	if f.TC {
		v |= 1 << 9
	}
	if f.RD {
		v |= 1 << 8
	}
	if f.RA {
		v |= 1 << 7
	}
	v |= uint16(f.RCode) & 0x0F
	return v
}

func unpackFlags(v uint16) domain.Flags {
	return domain.Flags{
		QR:     v&(1<<15) != 0,
		Opcode: domain.Opcode((v >> 11) & 0x0F),
		AA:     v&(1<<10) != 0,
		TC:     v&(1<<9) != 0,
		RD:     v&(1<<8) != 0,
		RA:     v&(1<<7) != 0,
		RCode:  domain.RCode(v & 0x0F),
	}
}

// EncodeMessage renders msg to its canonical wire form with name
// compression. Use EncodeUDP when the result must fit a UDP datagram.
func EncodeMessage(msg domain.Message) ([]byte, error) {
	buf := make([]byte, 0, 256)
	buf = append(buf, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0) // header placeholder

	binary.BigEndian.PutUint16(buf[0:2], msg.ID)
	binary.BigEndian.PutUint16(buf[2:4], packFlags(msg.Flags))
	binary.BigEndian.PutUint16(buf[4:6], 1)
	binary.BigEndian.PutUint16(buf[6:8], uint16(len(msg.Answer)))
	binary.BigEndian.PutUint16(buf[8:10], uint16(len(msg.Authority)))
	binary.BigEndian.PutUint16(buf[10:12], uint16(len(msg.Additional)))

	comp := compressionMap{}

	if err := encodeName(&buf, msg.Question.Name, comp, true); err != nil {
		return nil, fmt.Errorf("encode question name: %w", err)
	}
	buf = append(buf, byte(msg.Question.Type>>8), byte(msg.Question.Type))
	buf = append(buf, byte(msg.Question.Class>>8), byte(msg.Question.Class))

	for _, section := range [][]domain.ResourceRecord{msg.Answer, msg.Authority, msg.Additional} {
		for _, rr := range section {
			if err := encodeRR(&buf, rr, comp); err != nil {
				return nil, err
			}
		}
	}
	return buf, nil
}

func encodeRR(buf *[]byte, rr domain.ResourceRecord, comp compressionMap) error {
	if err := encodeName(buf, rr.Name, comp, true); err != nil {
		return fmt.Errorf("encode owner name %q: %w", rr.Name, err)
	}
	*buf = append(*buf, byte(rr.Type>>8), byte(rr.Type))
	*buf = append(*buf, byte(rr.Class>>8), byte(rr.Class))
	ttl := rr.TTL()
	*buf = append(*buf, byte(ttl>>24), byte(ttl>>16), byte(ttl>>8), byte(ttl))

	lenPos := len(*buf)
	*buf = append(*buf, 0, 0) // RDLENGTH placeholder
	rdataStart := len(*buf)
	if err := encodeRData(buf, rr.Data, comp); err != nil {
		return fmt.Errorf("encode rdata for %s %s: %w", rr.Name, rr.Type, err)
	}
	rdlen := len(*buf) - rdataStart
	if rdlen > 0xFFFF {
		return fmt.Errorf("rdata for %s %s exceeds 65535 octets", rr.Name, rr.Type)
	}
	binary.BigEndian.PutUint16((*buf)[lenPos:lenPos+2], uint16(rdlen))
	return nil
}

// EncodeUDP encodes msg and, if the result exceeds MaxUDPPayload, drops
// records (additional first, then authority, then answer) and sets TC
// until a valid prefix fits, per §6.
func EncodeUDP(msg domain.Message) ([]byte, error) {
	working := msg
	for {
		data, err := EncodeMessage(working)
		if err != nil {
			return nil, err
		}
		if len(data) <= MaxUDPPayload {
			return data, nil
		}
		switch {
		case len(working.Additional) > 0:
			working.Additional = working.Additional[:len(working.Additional)-1]
		case len(working.Authority) > 0:
			working.Authority = working.Authority[:len(working.Authority)-1]
		case len(working.Answer) > 0:
			working.Answer = working.Answer[:len(working.Answer)-1]
		default:
			working.Flags.TC = true
			return EncodeMessage(working)
		}
		working.Flags.TC = true
	}
}

// DecodeMessage parses a full DNS message (as delivered by a UDP datagram
// or a length-framed TCP segment) into a domain.Message. now timestamps any
// decoded resource records (their TTL is relative to receipt, per §4.6) and
// is only consulted when the message carries records; decoding a bare query
// never touches it.
func DecodeMessage(data []byte, now time.Time) (domain.Message, error) {
	if len(data) < headerLen {
		return domain.Message{}, fmt.Errorf("message shorter than header: %d bytes", len(data))
	}
	id := binary.BigEndian.Uint16(data[0:2])
	flags := unpackFlags(binary.BigEndian.Uint16(data[2:4]))
	qdCount := binary.BigEndian.Uint16(data[4:6])
	anCount := binary.BigEndian.Uint16(data[6:8])
	nsCount := binary.BigEndian.Uint16(data[8:10])
	arCount := binary.BigEndian.Uint16(data[10:12])

	if qdCount != 1 {
		return domain.Message{}, fmt.Errorf("expected exactly one question, got %d", qdCount)
	}

	offset := headerLen
	qname, next, err := decodeName(data, offset)
	if err != nil {
		return domain.Message{}, fmt.Errorf("decode question name: %w", err)
	}
	offset = next
	if offset+4 > len(data) {
		return domain.Message{}, fmt.Errorf("message truncated in question section")
	}
	qtype := domain.RRType(binary.BigEndian.Uint16(data[offset : offset+2]))
	qclass := domain.RRClass(binary.BigEndian.Uint16(data[offset+2 : offset+4]))
	offset += 4

	question := domain.Question{ID: id, Name: utils.CanonicalName(qname), Type: qtype, Class: qclass}

	answer, offset, err := decodeRRSection(data, offset, int(anCount), now)
	if err != nil {
		return domain.Message{}, fmt.Errorf("decode answer section: %w", err)
	}
	authority, offset, err := decodeRRSection(data, offset, int(nsCount), now)
	if err != nil {
		return domain.Message{}, fmt.Errorf("decode authority section: %w", err)
	}
	additional, _, err := decodeRRSection(data, offset, int(arCount), now)
	if err != nil {
		return domain.Message{}, fmt.Errorf("decode additional section: %w", err)
	}

	return domain.Message{
		ID:         id,
		Flags:      flags,
		Question:   question,
		Answer:     answer,
		Authority:  authority,
		Additional: additional,
	}, nil
}

func decodeRRSection(data []byte, offset int, count int, now time.Time) ([]domain.ResourceRecord, int, error) {
	records := make([]domain.ResourceRecord, 0, count)
	for i := 0; i < count; i++ {
		rr, next, err := decodeRR(data, offset, now)
		if err != nil {
			return nil, 0, fmt.Errorf("record %d: %w", i, err)
		}
		records = append(records, rr)
		offset = next
	}
	return records, offset, nil
}

func decodeRR(data []byte, offset int, now time.Time) (domain.ResourceRecord, int, error) {
	name, next, err := decodeName(data, offset)
	if err != nil {
		return domain.ResourceRecord{}, 0, fmt.Errorf("decode name: %w", err)
	}
	offset = next
	if offset+10 > len(data) {
		return domain.ResourceRecord{}, 0, fmt.Errorf("record header truncated")
	}
	rrType := domain.RRType(binary.BigEndian.Uint16(data[offset : offset+2]))
	rrClass := domain.RRClass(binary.BigEndian.Uint16(data[offset+2 : offset+4]))
	ttl := binary.BigEndian.Uint32(data[offset+4 : offset+8])
	rdlen := int(binary.BigEndian.Uint16(data[offset+8 : offset+10]))
	offset += 10

	if offset+rdlen > len(data) {
		return domain.ResourceRecord{}, 0, fmt.Errorf("rdlength %d exceeds remaining message", rdlen)
	}
	rdata, err := decodeRData(data, offset, rdlen, rrType)
	if err != nil {
		return domain.ResourceRecord{}, 0, fmt.Errorf("decode rdata: %w", err)
	}
	offset += rdlen

	rr, err := domain.NewCachedRecord(utils.CanonicalName(name), rrClass, ttl, rdata, now)
	if err != nil {
		return domain.ResourceRecord{}, 0, err
	}
	return rr, offset, nil
}
