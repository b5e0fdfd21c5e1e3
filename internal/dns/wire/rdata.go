package wire

import (
	"encoding/binary"
	"fmt"

	"github.com/quilldns/rr-dns/internal/dns/domain"
)

// encodeRData appends the wire form of data to buf. Names inside RDATA (NS
// target, CNAME target, SOA mname/rname, MX exchange, PTR target) compress
// against the whole message through comp, not just the RDATA region.
func encodeRData(buf *[]byte, data domain.RData, comp compressionMap) error {
	switch d := data.(type) {
	case domain.AData:
		ip4 := d.Addr.To4()
		if ip4 == nil {
			return fmt.Errorf("A record address is not IPv4: %s", d.Addr)
		}
		*buf = append(*buf, ip4...)
	case domain.NSData:
		return encodeName(buf, d.NSDName, comp, d.Type().Compressible())
	case domain.CNAMEData:
		return encodeName(buf, d.Target, comp, d.Type().Compressible())
	case domain.PTRData:
		return encodeName(buf, d.Target, comp, d.Type().Compressible())
	case domain.SOAData:
		if err := encodeName(buf, d.MName, comp, d.Type().Compressible()); err != nil {
			return err
		}
		if err := encodeName(buf, d.RName, comp, d.Type().Compressible()); err != nil {
			return err
		}
		var tail [20]byte
		binary.BigEndian.PutUint32(tail[0:4], d.Serial)
		binary.BigEndian.PutUint32(tail[4:8], d.Refresh)
		binary.BigEndian.PutUint32(tail[8:12], d.Retry)
		binary.BigEndian.PutUint32(tail[12:16], d.Expire)
		binary.BigEndian.PutUint32(tail[16:20], d.Minimum)
		*buf = append(*buf, tail[:]...)
	case domain.MXData:
		*buf = append(*buf, byte(d.Preference>>8), byte(d.Preference))
		return encodeName(buf, d.Exchange, comp, d.Type().Compressible())
	case domain.TXTData:
		for _, s := range d.Strings {
			if len(s) > 255 {
				return fmt.Errorf("TXT segment exceeds 255 octets")
			}
			*buf = append(*buf, byte(len(s)))
			*buf = append(*buf, s...)
		}
	case domain.HINFOData:
		if len(d.CPU) > 255 || len(d.OS) > 255 {
			return fmt.Errorf("HINFO field exceeds 255 octets")
		}
		*buf = append(*buf, byte(len(d.CPU)))
		*buf = append(*buf, d.CPU...)
		*buf = append(*buf, byte(len(d.OS)))
		*buf = append(*buf, d.OS...)
	case domain.OpaqueData:
		*buf = append(*buf, d.Raw...)
	default:
		return fmt.Errorf("unsupported RDATA type %T", data)
	}
	return nil
}

// decodeRData parses the rdlen octets of RDATA for rrType starting at
// offset within msg. Names inside RDATA are decoded against the full
// message so compression pointers resolve correctly.
func decodeRData(msg []byte, offset int, rdlen int, rrType domain.RRType) (domain.RData, error) {
	end := offset + rdlen
	if end > len(msg) {
		return nil, fmt.Errorf("rdata extends past end of message")
	}
	switch rrType {
	case domain.RRTypeA:
		if rdlen != 4 {
			return nil, fmt.Errorf("A record rdlength must be 4, got %d", rdlen)
		}
		ip := make([]byte, 4)
		copy(ip, msg[offset:end])
		return domain.AData{Addr: ip}, nil
	case domain.RRTypeNS:
		name, next, err := decodeName(msg, offset)
		if err != nil {
			return nil, err
		}
		if next != end {
			return nil, fmt.Errorf("NS rdlength mismatch: decoded to %d, expected %d", next, end)
		}
		return domain.NSData{NSDName: name}, nil
	case domain.RRTypeCNAME:
		name, next, err := decodeName(msg, offset)
		if err != nil {
			return nil, err
		}
		if next != end {
			return nil, fmt.Errorf("CNAME rdlength mismatch: decoded to %d, expected %d", next, end)
		}
		return domain.CNAMEData{Target: name}, nil
	case domain.RRTypePTR:
		name, next, err := decodeName(msg, offset)
		if err != nil {
			return nil, err
		}
		if next != end {
			return nil, fmt.Errorf("PTR rdlength mismatch: decoded to %d, expected %d", next, end)
		}
		return domain.PTRData{Target: name}, nil
	case domain.RRTypeSOA:
		mname, next, err := decodeName(msg, offset)
		if err != nil {
			return nil, err
		}
		rname, next2, err := decodeName(msg, next)
		if err != nil {
			return nil, err
		}
		if next2+20 != end {
			return nil, fmt.Errorf("SOA rdlength mismatch")
		}
		return domain.SOAData{
			MName:   mname,
			RName:   rname,
			Serial:  binary.BigEndian.Uint32(msg[next2 : next2+4]),
			Refresh: binary.BigEndian.Uint32(msg[next2+4 : next2+8]),
			Retry:   binary.BigEndian.Uint32(msg[next2+8 : next2+12]),
			Expire:  binary.BigEndian.Uint32(msg[next2+12 : next2+16]),
			Minimum: binary.BigEndian.Uint32(msg[next2+16 : next2+20]),
		}, nil
	case domain.RRTypeMX:
		if offset+2 > end {
			return nil, fmt.Errorf("MX rdata too short")
		}
		pref := binary.BigEndian.Uint16(msg[offset : offset+2])
		exchange, next, err := decodeName(msg, offset+2)
		if err != nil {
			return nil, err
		}
		if next != end {
			return nil, fmt.Errorf("MX rdlength mismatch: decoded to %d, expected %d", next, end)
		}
		return domain.MXData{Preference: pref, Exchange: exchange}, nil
	case domain.RRTypeTXT:
		var strs []string
		cursor := offset
		for cursor < end {
			l := int(msg[cursor])
			cursor++
			if cursor+l > end {
				return nil, fmt.Errorf("TXT character-string extends past rdlength")
			}
			strs = append(strs, string(msg[cursor:cursor+l]))
			cursor += l
		}
		if cursor != end {
			return nil, fmt.Errorf("TXT rdlength mismatch")
		}
		return domain.TXTData{Strings: strs}, nil
	case domain.RRTypeHINFO:
		if offset >= end {
			return nil, fmt.Errorf("HINFO rdata too short")
		}
		cpuLen := int(msg[offset])
		cpuStart := offset + 1
		if cpuStart+cpuLen > end {
			return nil, fmt.Errorf("HINFO CPU field extends past rdlength")
		}
		cpu := string(msg[cpuStart : cpuStart+cpuLen])
		osLenOffset := cpuStart + cpuLen
		if osLenOffset >= end {
			return nil, fmt.Errorf("HINFO rdata too short for OS field")
		}
		osLen := int(msg[osLenOffset])
		osStart := osLenOffset + 1
		if osStart+osLen != end {
			return nil, fmt.Errorf("HINFO rdlength mismatch")
		}
		os := string(msg[osStart : osStart+osLen])
		return domain.HINFOData{CPU: cpu, OS: os}, nil
	default:
		raw := make([]byte, rdlen)
		copy(raw, msg[offset:end])
		return domain.OpaqueData{RRType: rrType, Raw: raw}, nil
	}
}
