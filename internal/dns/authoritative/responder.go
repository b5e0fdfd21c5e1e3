// Package authoritative implements the response-composition algorithm of
// §4.5: given a decoded query and the zone store (§4.4), it builds the
// answer/authority/additional sections that distinguish an authoritative
// answer, a CNAME chain, a delegation, or a negative response.
package authoritative

import (
	"github.com/quilldns/rr-dns/internal/dns/common/log"
	"github.com/quilldns/rr-dns/internal/dns/domain"
	"github.com/quilldns/rr-dns/internal/dns/zonestore"
)

// maxCNAMEHops bounds in-zone CNAME chasing: a chain of exactly 8 hops is
// returned in full, a 9th is truncated with no error, per §4.5 and §8.
const maxCNAMEHops = 8

// Responder composes authoritative answers from a Store. It holds no
// mutable state of its own; the store is safe for concurrent read after
// zones are loaded (§5).
type Responder struct {
	store  *zonestore.Store
	logger log.Logger
}

// New builds a Responder over store. A nil logger falls back to a no-op
// logger.
func New(store *zonestore.Store, logger log.Logger) *Responder {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &Responder{store: store, logger: logger}
}

// Handles reports whether qname falls under some zone this responder
// hosts, letting the dispatcher (C8) decide whether to route here.
func (r *Responder) Handles(qname string) bool {
	_, ok := r.store.Hosts(qname)
	return ok
}

// Handle answers query against the hosted zones. The caller is expected to
// have already confirmed Handles(query.Question.Name); if it didn't,
// Handle returns Refused rather than guessing.
func (r *Responder) Handle(query domain.Message) domain.Message {
	resp := domain.Message{
		ID:       query.ID,
		Question: query.Question,
		Flags: domain.Flags{
			QR: true,
			RD: query.Flags.RD,
			RA: false,
		},
	}

	if query.Flags.Opcode != domain.OpcodeQuery {
		resp.Flags.RCode = domain.RCodeNotImp
		return resp
	}
	if !query.Question.Class.IsValid() {
		resp.Flags.RCode = domain.RCodeFormErr
		return resp
	}

	zone, ok := r.store.Hosts(query.Question.Name)
	if !ok {
		resp.Flags.RCode = domain.RCodeRefused
		return resp
	}

	r.compose(&resp, zone, query.Question.Name, query.Question.Type)
	return resp
}

// compose runs the §4.4 lookup (chasing CNAMEs within the zone, up to
// maxCNAMEHops) and fills resp's sections and flags from the result.
func (r *Responder) compose(resp *domain.Message, zone, name string, qtype domain.RRType) {
	result := r.store.Lookup(name, qtype)

	switch result.Kind {
	case zonestore.KindAnswer:
		resp.Answer = append(resp.Answer, result.Answer...)
		resp.Authority = r.zoneNS(zone)
		resp.Additional = r.glueForNS(zone, resp.Authority)
		resp.Flags.AA = true

	case zonestore.KindCNAME:
		resp.Flags.AA = true
		resp.Answer = append(resp.Answer, result.Answer...)
		cname := result.Answer[0].Data.(domain.CNAMEData)
		r.chaseCNAME(resp, zone, cname.Target, qtype, 1)

	case zonestore.KindNoData:
		resp.Authority = result.Authority
		resp.Flags.AA = true

	case zonestore.KindDelegation:
		resp.Authority = result.Authority
		resp.Additional = result.Additional
		resp.Flags.AA = false

	case zonestore.KindNXDomain:
		resp.Authority = result.Authority
		resp.Flags.RCode = domain.RCodeNXDomain
		resp.Flags.AA = true

	default:
		r.logger.Error(map[string]any{"kind": result.Kind}, "unhandled zonestore result kind")
		resp.Flags.RCode = domain.RCodeServFail
	}
}

// chaseCNAME follows an alias within the same zone, appending each hop's
// records to resp.Answer. hop counts the CNAME already appended by the
// caller. Stopping at maxCNAMEHops, or the moment the target falls outside
// this zone, is not an error: the responder returns whatever chain it
// accumulated so far (§4.5, §8).
func (r *Responder) chaseCNAME(resp *domain.Message, zone, target string, qtype domain.RRType, hop int) {
	if hop >= maxCNAMEHops {
		return
	}
	if z, ok := r.store.Hosts(target); !ok || z != zone {
		return
	}

	result := r.store.Lookup(target, qtype)
	switch result.Kind {
	case zonestore.KindAnswer:
		resp.Answer = append(resp.Answer, result.Answer...)
		resp.Authority = r.zoneNS(zone)
		resp.Additional = r.glueForNS(zone, resp.Authority)
	case zonestore.KindCNAME:
		resp.Answer = append(resp.Answer, result.Answer...)
		cname := result.Answer[0].Data.(domain.CNAMEData)
		r.chaseCNAME(resp, zone, cname.Target, qtype, hop+1)
	case zonestore.KindNoData:
		resp.Authority = result.Authority
	case zonestore.KindDelegation:
		resp.Authority = result.Authority
		resp.Additional = result.Additional
		resp.Flags.AA = false
	case zonestore.KindNXDomain:
		resp.Authority = result.Authority
		resp.Flags.RCode = domain.RCodeNXDomain
	}
}

// zoneNS returns the zone's apex NS rrset, used as the Authority section
// for answered and no-data responses.
func (r *Responder) zoneNS(zone string) []domain.ResourceRecord {
	result := r.store.Lookup(zone, domain.RRTypeNS)
	if result.Kind != zonestore.KindAnswer {
		return nil
	}
	return result.Answer
}

// glueForNS returns the in-zone A records for any names mentioned in ns,
// used to populate the Additional section per §4.5.
func (r *Responder) glueForNS(zone string, ns []domain.ResourceRecord) []domain.ResourceRecord {
	var additional []domain.ResourceRecord
	seen := make(map[string]bool)
	for _, rr := range ns {
		nsd, ok := rr.Data.(domain.NSData)
		if !ok || seen[nsd.NSDName] {
			continue
		}
		seen[nsd.NSDName] = true
		result := r.store.Lookup(nsd.NSDName, domain.RRTypeA)
		if result.Kind == zonestore.KindAnswer {
			additional = append(additional, result.Answer...)
		}
	}
	return additional
}
