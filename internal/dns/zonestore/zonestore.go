// Package zonestore holds authoritative zone data in memory, indexed for
// the exact-match / CNAME / delegation / NXDOMAIN classification the
// authoritative responder needs, and validates the zone invariants of
// §4.4 at load time.
package zonestore

import (
	"fmt"
	"sync"

	"github.com/quilldns/rr-dns/internal/dns/common/utils"
	"github.com/quilldns/rr-dns/internal/dns/domain"
)

// ResultKind classifies the outcome of a Lookup.
type ResultKind int

const (
	// KindAnswer means records of the requested type were found at name.
	KindAnswer ResultKind = iota
	// KindCNAME means name is an alias; Answer holds the CNAME rrset and the caller is responsible for chasing it (bounded, per
	// §4.5).
	KindCNAME
	// KindNoData means name exists in the zone but not with the requested
	// type; Authority carries the zone's SOA for negative caching.
	KindNoData
	// KindDelegation means name falls under a child zone cut; Authority
	// carries the delegation's NS records and Additional any in-zone glue.
	KindDelegation
	// KindNXDomain means name does not exist anywhere in the zone.
	KindNXDomain
)

// Result is the outcome of a Lookup against one hosted zone.
type Result struct {
	Kind       ResultKind
	Zone       string
	Answer     []domain.ResourceRecord
	Authority  []domain.ResourceRecord
	Additional []domain.ResourceRecord
}

type node struct {
	records map[domain.RRType][]domain.ResourceRecord
}

type zone struct {
	origin string
	soa    domain.ResourceRecord
	nodes  map[string]*node // owner name -> node
}

// Store holds every zone this nameserver is authoritative for, keyed by
// zone apex.
type Store struct {
	mu    sync.RWMutex
	zones map[string]*zone
}

// New creates an empty Store.
func New() *Store {
	return &Store{zones: make(map[string]*zone)}
}

// LoadZone validates records as a complete zone rooted at origin and, if
// valid, installs it, replacing any previous data for that origin.
func (s *Store) LoadZone(origin string, records []domain.ResourceRecord) error {
	origin = utils.CanonicalName(origin)
	z, err := buildZone(origin, records)
	if err != nil {
		return fmt.Errorf("zone %s: %w", origin, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.zones[origin] = z
	return nil
}

// RemoveZone drops all data for origin.
func (s *Store) RemoveZone(origin string) {
	origin = utils.CanonicalName(origin)
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.zones, origin)
}

// Zones lists every hosted zone apex.
func (s *Store) Zones() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.zones))
	for origin := range s.zones {
		out = append(out, origin)
	}
	return out
}

// Hosts reports whether name falls within some zone this store hosts,
// returning that zone's apex (the longest matching one).
func (s *Store) Hosts(name string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.bestZoneLocked(name)
}

func (s *Store) bestZoneLocked(name string) (string, bool) {
	name = utils.CanonicalName(name)
	best := ""
	for origin := range s.zones {
		if origin != name && !utils.IsSubdomain(name, origin) {
			continue
		}
		if len(origin) > len(best) {
			best = origin
		}
	}
	if best == "" {
		return "", false
	}
	return best, true
}

func buildZone(origin string, records []domain.ResourceRecord) (*zone, error) {
	z := &zone{origin: origin, nodes: make(map[string]*node)}
	var soaCount int

	for _, rr := range records {
		if rr.Name != origin && !utils.IsSubdomain(rr.Name, origin) {
			return nil, fmt.Errorf("record %s %s is outside zone", rr.Name, rr.Type)
		}
		n, ok := z.nodes[rr.Name]
		if !ok {
			n = &node{records: make(map[domain.RRType][]domain.ResourceRecord)}
			z.nodes[rr.Name] = n
		}
		n.records[rr.Type] = append(n.records[rr.Type], rr)
		if rr.Type == domain.RRTypeSOA {
			soaCount++
			if rr.Name != origin {
				return nil, fmt.Errorf("SOA record must be owned by the zone apex")
			}
			z.soa = rr
		}
	}

	if soaCount != 1 {
		return nil, fmt.Errorf("zone must have exactly one SOA record, found %d", soaCount)
	}
	apexNode, ok := z.nodes[origin]
	if !ok || len(apexNode.records[domain.RRTypeNS]) == 0 {
		return nil, fmt.Errorf("zone apex must have at least one NS record")
	}

	for name, n := range z.nodes {
		if name == origin {
			continue
		}
		nsRecords := n.records[domain.RRTypeNS]
		if len(nsRecords) == 0 {
			continue
		}
		// name is a delegation point: only NS (and glue A for in-zone
		// targets) may live here, per §4.4. An A record here is glue only
		// when one of the NS records names this node itself.
		isNSTarget := false
		for _, ns := range nsRecords {
			if ns.Data.(domain.NSData).NSDName == name {
				isNSTarget = true
			}
		}
		for rrType := range n.records {
			if rrType != domain.RRTypeNS && !(rrType == domain.RRTypeA && isNSTarget) {
				return nil, fmt.Errorf("delegation point %s carries disallowed record type %s", name, rrType)
			}
		}
		for _, ns := range nsRecords {
			target := ns.Data.(domain.NSData).NSDName
			if !utils.IsSubdomain(target, name) && target != name {
				continue // glue not required for out-of-subtree targets
			}
			glueNode, ok := z.nodes[target]
			if !ok || len(glueNode.records[domain.RRTypeA]) == 0 {
				return nil, fmt.Errorf("missing mandatory glue A record for %s at delegation %s", target, name)
			}
		}
	}

	return z, nil
}

// Lookup classifies a query against the best-matching hosted zone for
// name. The caller (the authoritative responder) must have already
// confirmed, via Hosts, that name belongs to a zone this store serves.
func (s *Store) Lookup(name string, qtype domain.RRType) Result {
	name = utils.CanonicalName(name)
	s.mu.RLock()
	defer s.mu.RUnlock()

	origin, ok := s.bestZoneLocked(name)
	if !ok {
		return Result{Kind: KindNXDomain}
	}
	z := s.zones[origin]

	if delegation, ok := z.delegationAbove(name, qtype); ok {
		ns := delegation.records[domain.RRTypeNS]
		return Result{
			Kind:       KindDelegation,
			Zone:       origin,
			Authority:  ns,
			Additional: z.glueFor(ns),
		}
	}

	n, exists := z.nodes[name]
	if !exists {
		return Result{Kind: KindNXDomain, Zone: origin, Authority: []domain.ResourceRecord{z.soa}}
	}

	if records, ok := n.records[qtype]; ok && len(records) > 0 {
		return Result{Kind: KindAnswer, Zone: origin, Answer: records}
	}
	if cname, ok := n.records[domain.RRTypeCNAME]; ok && len(cname) > 0 && qtype != domain.RRTypeCNAME {
		return Result{Kind: KindCNAME, Zone: origin, Answer: cname}
	}
	return Result{Kind: KindNoData, Zone: origin, Authority: []domain.ResourceRecord{z.soa}}
}

// delegationAbove walks from name up to (not including) the zone apex
// looking for a delegation point that is an ancestor of, or equal to,
// name. A query for NS right at the delegation point itself is answered
// as zone data instead of referred, matching how the NS records are
// simultaneously the parent zone's delegation and its own directory data.
func (z *zone) delegationAbove(name string, qtype domain.RRType) (*node, bool) {
	for _, candidate := range utils.DomainHierarchy(name) {
		if candidate == z.origin {
			return nil, false
		}
		n, ok := z.nodes[candidate]
		if !ok {
			continue
		}
		if len(n.records[domain.RRTypeNS]) > 0 {
			if candidate == name && qtype == domain.RRTypeNS {
				return nil, false
			}
			return n, true
		}
	}
	return nil, false
}

// glueFor returns the in-zone A records backing any of ns's targets.
func (z *zone) glueFor(ns []domain.ResourceRecord) []domain.ResourceRecord {
	var glue []domain.ResourceRecord
	seen := make(map[string]bool)
	for _, rr := range ns {
		target := rr.Data.(domain.NSData).NSDName
		if seen[target] {
			continue
		}
		seen[target] = true
		if n, ok := z.nodes[target]; ok {
			glue = append(glue, n.records[domain.RRTypeA]...)
		}
	}
	return glue
}
