// Package zonefile parses RFC 1035 master files into typed resource
// records. It supports $ORIGIN/$INCLUDE directives, parenthesized
// multi-line records, quoted character-strings, and the TTL/class
// defaulting rules of §5.1.
package zonefile

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/quilldns/rr-dns/internal/dns/common/utils"
	"github.com/quilldns/rr-dns/internal/dns/domain"
	"github.com/quilldns/rr-dns/internal/dns/rrdata"
)

// state threads through one file and its included descendants. ttlSet
// records that currentTTL has been seeded: parseStartingSOA always seeds it,
// from the SOA line's explicit TTL or else from the SOA's Minimum field.
type state struct {
	zone         string
	subzones     []string
	baseDir      string
	currentOrig  string
	currentTTL   uint32
	ttlSet       bool
	minTTL       uint32
	haveSOA      bool
}

// ParseFile parses the master file at path as the zone rooted at origin.
// subzones lists the origins of any delegated subzones hosted by sibling
// files; it is carried in the parse state but not consulted: owner names
// are checked only against origin.
func ParseFile(path string, origin string, subzones []string) ([]domain.ResourceRecord, error) {
	origin = utils.CanonicalName(origin)
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening zone file %s: %w", path, err)
	}
	defer f.Close()

	st := &state{
		zone:        origin,
		subzones:    subzones,
		baseDir:     filepath.Dir(path),
		currentOrig: origin,
	}
	tz := newTokenizer(f)

	soa, err := parseStartingSOA(tz, st)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	records := []domain.ResourceRecord{soa}

	rest, err := parseEntries(tz, st)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return append(records, rest...), nil
}

func (st *state) ownerInZone(name string) error {
	if !utils.IsSubdomain(name, st.zone) && name != st.zone {
		return fmt.Errorf("owner name %s is outside zone %s", name, st.zone)
	}
	return nil
}

func (st *state) resolveOwner(tok token) (string, error) {
	switch tok.kind {
	case tokAt:
		return st.currentOrig, nil
	case tokString:
		name := rrdata.QualifyName(tok.text, st.currentOrig)
		if err := st.ownerInZone(name); err != nil {
			return "", err
		}
		return name, nil
	default:
		return "", fmt.Errorf("expected owner name, got token kind %d", tok.kind)
	}
}

// parseEntries consumes directives and records until EOF, expanding
// $INCLUDE files inline.
func parseEntries(tz *tokenizer, st *state) ([]domain.ResourceRecord, error) {
	var records []domain.ResourceRecord
	for {
		tok, err := tz.peek()
		if err != nil {
			return nil, err
		}
		if tok.kind == tokEOF {
			return records, nil
		}

		switch tok.kind {
		case tokOrigin:
			if err := parseOriginDirective(tz, st); err != nil {
				return nil, err
			}
		case tokInclude:
			included, err := parseIncludeDirective(tz, st)
			if err != nil {
				return nil, err
			}
			records = append(records, included...)
		case tokNewline:
			if _, err := tz.next(); err != nil {
				return nil, err
			}
		default:
			rr, err := parseRecord(tz, st)
			if err != nil {
				return nil, err
			}
			records = append(records, rr)
		}
	}
}

func expectNewlineOrEOF(tz *tokenizer) error {
	tok, err := tz.next()
	if err != nil {
		return err
	}
	if tok.kind != tokNewline && tok.kind != tokEOF {
		return fmt.Errorf("expected end of line, got token kind %d", tok.kind)
	}
	return nil
}

func parseOriginDirective(tz *tokenizer, st *state) error {
	if _, err := tz.next(); err != nil { // consume $ORIGIN
		return err
	}
	tok, err := tz.next()
	if err != nil {
		return err
	}
	if tok.kind != tokString {
		return fmt.Errorf("$ORIGIN requires a domain name")
	}
	name := rrdata.QualifyName(tok.text, st.currentOrig)
	if err := st.ownerInZone(name); err != nil {
		return fmt.Errorf("$ORIGIN: %w", err)
	}
	st.currentOrig = name
	return expectNewlineOrEOF(tz)
}

func parseIncludeDirective(tz *tokenizer, st *state) ([]domain.ResourceRecord, error) {
	if _, err := tz.next(); err != nil { // consume $INCLUDE
		return nil, err
	}
	filenameTok, err := tz.next()
	if err != nil {
		return nil, err
	}
	if filenameTok.kind != tokString {
		return nil, fmt.Errorf("$INCLUDE requires a file name")
	}

	origin := st.currentOrig
	next, err := tz.peek()
	if err != nil {
		return nil, err
	}
	if next.kind == tokString {
		tok, err := tz.next()
		if err != nil {
			return nil, err
		}
		origin = rrdata.QualifyName(tok.text, st.currentOrig)
		if err := st.ownerInZone(origin); err != nil {
			return nil, fmt.Errorf("$INCLUDE: %w", err)
		}
	}
	if err := expectNewlineOrEOF(tz); err != nil {
		return nil, err
	}

	path := filepath.Join(st.baseDir, filenameTok.text)
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("$INCLUDE %s: %w", path, err)
	}
	defer f.Close()

	childState := &state{
		zone:        st.zone,
		subzones:    st.subzones,
		baseDir:     filepath.Dir(path),
		currentOrig: origin,
		currentTTL:  st.currentTTL,
		ttlSet:      st.ttlSet,
		minTTL:      st.minTTL,
		haveSOA:     st.haveSOA,
	}
	return parseEntries(newTokenizer(f), childState)
}

// parseTTLClass consumes an optional TTL and/or class token, in either
// order, stopping once it sees the record type keyword (a bare String that
// isn't "IN"/"CH"). It never consumes the type token itself.
func parseTTLClass(tz *tokenizer) (ttl *uint32, class string, err error) {
	for i := 0; i < 2; i++ {
		tok, err := tz.peek()
		if err != nil {
			return nil, "", err
		}
		switch {
		case tok.kind == tokNumber && ttl == nil:
			tz.next()
			v := tok.num
			ttl = &v
		case tok.kind == tokString && class == "" && (tok.text == "IN" || tok.text == "CH"):
			tz.next()
			class = tok.text
		default:
			return ttl, class, nil
		}
	}
	return ttl, class, nil
}

func parseRecord(tz *tokenizer, st *state) (domain.ResourceRecord, error) {
	ownerTok, err := tz.next()
	if err != nil {
		return domain.ResourceRecord{}, err
	}
	owner, err := st.resolveOwner(ownerTok)
	if err != nil {
		return domain.ResourceRecord{}, err
	}

	ttlOverride, class, err := parseTTLClass(tz)
	if err != nil {
		return domain.ResourceRecord{}, err
	}
	if class == "" {
		class = "IN"
	}
	rrClass, ok := domain.ParseRRClass(class)
	if !ok {
		return domain.ResourceRecord{}, fmt.Errorf("unsupported class %q", class)
	}

	typeTok, err := tz.next()
	if err != nil {
		return domain.ResourceRecord{}, err
	}
	if typeTok.kind != tokString {
		return domain.ResourceRecord{}, fmt.Errorf("expected record type keyword")
	}
	rrType := domain.RRTypeFromString(typeTok.text)
	if !rrType.IsKnown() {
		return domain.ResourceRecord{}, fmt.Errorf("unsupported record type %q", typeTok.text)
	}
	if rrType == domain.RRTypeSOA {
		return domain.ResourceRecord{}, fmt.Errorf("SOA record must be the first entry in the zone file")
	}

	fields, err := readFieldTokens(tz, rrType)
	if err != nil {
		return domain.ResourceRecord{}, err
	}
	rdata, err := rrdata.Parse(rrType, st.currentOrig, fields)
	if err != nil {
		return domain.ResourceRecord{}, fmt.Errorf("%s %s: %w", owner, rrType, err)
	}

	ttl := resolveTTL(st, ttlOverride)
	return domain.NewAuthoritativeRecord(owner, rrClass, ttl, rdata)
}

func resolveTTL(st *state, override *uint32) uint32 {
	if override != nil {
		st.currentTTL = *override
		st.ttlSet = true
		return *override
	}
	return st.currentTTL
}

// readFieldTokens reads all the remaining tokens for the RDATA of rrType,
// returning their literal text (quotes already stripped by the tokenizer).
// TXT is variadic; every other supported type has a fixed arity enforced
// later by rrdata.Parse.
func readFieldTokens(tz *tokenizer, rrType domain.RRType) ([]string, error) {
	var fields []string
	for {
		tok, err := tz.peek()
		if err != nil {
			return nil, err
		}
		if tok.kind == tokNewline || tok.kind == tokEOF {
			tz.next()
			return fields, nil
		}
		tz.next()
		switch tok.kind {
		case tokString, tokQString:
			fields = append(fields, tok.text)
		case tokNumber:
			fields = append(fields, tok.text)
		case tokAt:
			fields = append(fields, "@")
		default:
			return nil, fmt.Errorf("unexpected token in RDATA")
		}
		if rrType != domain.RRTypeTXT && len(fields) >= maxFieldsFor(rrType) {
			// Drain to end of line/record; extra tokens before a newline
			// (e.g. a trailing comment already stripped by the lexer) are
			// an error, not silently ignored.
			next, err := tz.peek()
			if err != nil {
				return nil, err
			}
			if next.kind != tokNewline && next.kind != tokEOF {
				return nil, fmt.Errorf("unexpected extra token after %s RDATA", rrType)
			}
		}
	}
}

func maxFieldsFor(rrType domain.RRType) int {
	switch rrType {
	case domain.RRTypeA, domain.RRTypeNS, domain.RRTypeCNAME, domain.RRTypePTR:
		return 1
	case domain.RRTypeMX:
		return 2
	case domain.RRTypeHINFO:
		return 2
	case domain.RRTypeSOA:
		return 7
	default:
		return 1 << 30
	}
}

// parseStartingSOA enforces that the zone file's first record is its SOA,
// owned by the zone apex, and seeds the TTL-inheritance state from it. A
// leading $ORIGIN directive (the common real-world convention) is allowed
// before it; any other directive or record is rejected.
func parseStartingSOA(tz *tokenizer, st *state) (domain.ResourceRecord, error) {
	for {
		tok, err := tz.peek()
		if err != nil {
			return domain.ResourceRecord{}, err
		}
		switch tok.kind {
		case tokNewline:
			tz.next()
			continue
		case tokOrigin:
			if err := parseOriginDirective(tz, st); err != nil {
				return domain.ResourceRecord{}, err
			}
			continue
		}
		break
	}

	ownerTok, err := tz.next()
	if err != nil {
		return domain.ResourceRecord{}, err
	}
	var owner string
	switch ownerTok.kind {
	case tokAt:
		owner = st.zone
	case tokString:
		owner = rrdata.QualifyName(ownerTok.text, st.zone)
	default:
		return domain.ResourceRecord{}, fmt.Errorf("expected SOA owner name")
	}
	if owner != st.zone {
		return domain.ResourceRecord{}, fmt.Errorf("SOA record must be owned by zone apex %s, got %s", st.zone, owner)
	}

	ttlOverride, class, err := parseTTLClass(tz)
	if err != nil {
		return domain.ResourceRecord{}, err
	}
	if class == "" {
		return domain.ResourceRecord{}, fmt.Errorf("SOA record requires an explicit class")
	}
	rrClass, ok := domain.ParseRRClass(class)
	if !ok {
		return domain.ResourceRecord{}, fmt.Errorf("unsupported class %q", class)
	}

	typeTok, err := tz.next()
	if err != nil {
		return domain.ResourceRecord{}, err
	}
	if typeTok.kind != tokString || domain.RRTypeFromString(typeTok.text) != domain.RRTypeSOA {
		return domain.ResourceRecord{}, fmt.Errorf("first record in zone file must be SOA")
	}

	fields, err := readFieldTokens(tz, domain.RRTypeSOA)
	if err != nil {
		return domain.ResourceRecord{}, err
	}
	rdata, err := rrdata.Parse(domain.RRTypeSOA, st.zone, fields)
	if err != nil {
		return domain.ResourceRecord{}, err
	}
	soa := rdata.(domain.SOAData)

	ttl := soa.Minimum
	if ttlOverride != nil {
		ttl = *ttlOverride
	}
	st.currentTTL = ttl
	st.ttlSet = true
	st.minTTL = soa.Minimum
	st.haveSOA = true

	return domain.NewAuthoritativeRecord(owner, rrClass, ttl, rdata)
}
