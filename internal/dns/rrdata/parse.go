// Package rrdata parses the master-file presentation form of each
// supported RDATA type into the typed domain.RData values the rest of the
// system operates on. Wire encoding/decoding (including name compression)
// lives in package wire; this package only ever sees text.
package rrdata

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/quilldns/rr-dns/internal/dns/common/utils"
	"github.com/quilldns/rr-dns/internal/dns/domain"
)

// Parse converts the whitespace-separated RDATA tokens for rrType into a
// typed domain.RData. Relative domain names found in the RDATA (NS/CNAME/
// PTR targets, SOA mname/rname, MX exchange) are qualified against origin
// exactly like owner names are, per §4.3.
func Parse(rrType domain.RRType, origin string, tokens []string) (domain.RData, error) {
	switch rrType {
	case domain.RRTypeA:
		return parseA(tokens)
	case domain.RRTypeNS:
		return parseNS(tokens, origin)
	case domain.RRTypeCNAME:
		return parseCNAME(tokens, origin)
	case domain.RRTypeSOA:
		return parseSOA(tokens, origin)
	case domain.RRTypePTR:
		return parsePTR(tokens, origin)
	case domain.RRTypeMX:
		return parseMX(tokens, origin)
	case domain.RRTypeTXT:
		return parseTXT(tokens)
	case domain.RRTypeHINFO:
		return parseHINFO(tokens)
	default:
		return nil, fmt.Errorf("unsupported record type %s", rrType)
	}
}

// QualifyName expands a relative master-file name against origin, honoring
// '@' and already-absolute names, mirroring owner-name expansion.
func QualifyName(name, origin string) string {
	if name == "@" {
		return utils.CanonicalName(origin)
	}
	if utils.IsAbsolute(name) {
		return utils.CanonicalName(name)
	}
	return utils.CanonicalName(name + "." + strings.TrimSuffix(utils.CanonicalName(origin), "."))
}

func expectFields(tokens []string, n int, label string) error {
	if len(tokens) != n {
		return fmt.Errorf("invalid %s record: expected %d fields, got %d (%v)", label, n, len(tokens), tokens)
	}
	return nil
}

func parseA(tokens []string) (domain.RData, error) {
	if err := expectFields(tokens, 1, "A"); err != nil {
		return nil, err
	}
	ip := net.ParseIP(tokens[0])
	if ip == nil || ip.To4() == nil {
		return nil, fmt.Errorf("invalid A record address: %s", tokens[0])
	}
	return domain.AData{Addr: ip.To4()}, nil
}

func parseNS(tokens []string, origin string) (domain.RData, error) {
	if err := expectFields(tokens, 1, "NS"); err != nil {
		return nil, err
	}
	return domain.NSData{NSDName: QualifyName(tokens[0], origin)}, nil
}

func parseCNAME(tokens []string, origin string) (domain.RData, error) {
	if err := expectFields(tokens, 1, "CNAME"); err != nil {
		return nil, err
	}
	return domain.CNAMEData{Target: QualifyName(tokens[0], origin)}, nil
}

func parsePTR(tokens []string, origin string) (domain.RData, error) {
	if err := expectFields(tokens, 1, "PTR"); err != nil {
		return nil, err
	}
	return domain.PTRData{Target: QualifyName(tokens[0], origin)}, nil
}

func parseSOA(tokens []string, origin string) (domain.RData, error) {
	if err := expectFields(tokens, 7, "SOA"); err != nil {
		return nil, err
	}
	vals := make([]uint32, 5)
	for i := 0; i < 5; i++ {
		v, err := strconv.ParseUint(tokens[i+2], 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid SOA field %d (%s): %w", i+2, tokens[i+2], err)
		}
		vals[i] = uint32(v)
	}
	return domain.SOAData{
		MName:   QualifyName(tokens[0], origin),
		RName:   QualifyName(tokens[1], origin),
		Serial:  vals[0],
		Refresh: vals[1],
		Retry:   vals[2],
		Expire:  vals[3],
		Minimum: vals[4],
	}, nil
}

func parseMX(tokens []string, origin string) (domain.RData, error) {
	if err := expectFields(tokens, 2, "MX"); err != nil {
		return nil, err
	}
	pref, err := strconv.ParseUint(tokens[0], 10, 16)
	if err != nil {
		return nil, fmt.Errorf("invalid MX preference: %s", tokens[0])
	}
	return domain.MXData{Preference: uint16(pref), Exchange: QualifyName(tokens[1], origin)}, nil
}

func parseTXT(tokens []string) (domain.RData, error) {
	if len(tokens) == 0 {
		return nil, fmt.Errorf("TXT record requires at least one character-string")
	}
	strs := make([]string, len(tokens))
	for i, tok := range tokens {
		s := strings.Trim(tok, `"`)
		if len(s) > 255 {
			return nil, fmt.Errorf("TXT segment exceeds 255 octets: %d", len(s))
		}
		strs[i] = s
	}
	return domain.TXTData{Strings: strs}, nil
}

func parseHINFO(tokens []string) (domain.RData, error) {
	if err := expectFields(tokens, 2, "HINFO"); err != nil {
		return nil, err
	}
	return domain.HINFOData{
		CPU: strings.Trim(tokens[0], `"`),
		OS:  strings.Trim(tokens[1], `"`),
	}, nil
}
