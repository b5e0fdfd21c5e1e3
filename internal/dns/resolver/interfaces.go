package resolver

import (
	"context"

	"github.com/quilldns/rr-dns/internal/dns/domain"
)

// QueryClient sends one outbound DNS query to addr ("host:port") and
// returns the decoded response. The interface is defined at its point of
// use rather than next to the concrete implementation; *upstream.Client
// satisfies it without change.
type QueryClient interface {
	Query(ctx context.Context, addr string, query domain.Message) (domain.Message, error)
}
