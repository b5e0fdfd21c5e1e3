package resolver

import (
	"net"

	"github.com/quilldns/rr-dns/internal/dns/cache"
)

// RootHint is one well-known root server, as loaded from config at startup
// (§6's resolver root_hints list).
type RootHint struct {
	Name string
	Addr net.IP
}

// SeedRootHints installs hints as the non-expiring nameserver set for the
// root zone, so resolveIterative always has somewhere to start when no
// closer zone is cached yet.
func SeedRootHints(ns *cache.NSCache, hints []RootHint) {
	servers := make([]cache.NSRecord, len(hints))
	for i, h := range hints {
		servers[i] = cache.NSRecord{Name: h.Name, Addr: h.Addr}
	}
	ns.Seed(".", servers)
}
