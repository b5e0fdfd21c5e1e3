// Package dispatch implements the request dispatcher of §4.8: it decodes
// an inbound packet, routes the question to the authoritative responder
// (C5) when the name falls under a hosted zone, or to the recursive
// resolver (C7) when recursion is offered and the client asked for it,
// and re-encodes whichever reply results for the transport that received
// the query.
package dispatch

import (
	"context"
	"encoding/binary"
	"time"

	"github.com/quilldns/rr-dns/internal/dns/authoritative"
	"github.com/quilldns/rr-dns/internal/dns/common/log"
	"github.com/quilldns/rr-dns/internal/dns/domain"
	"github.com/quilldns/rr-dns/internal/dns/resolver"
	"github.com/quilldns/rr-dns/internal/dns/wire"
)

// Dispatcher is the C8 request dispatcher. A Dispatcher built with a nil
// Resolver answers as an authoritative-only server (recursion unavailable,
// RA always 0); one built with a nil Responder answers as a pure recursive
// resolver (everything not matching a hosted zone that asks for recursion
// is forwarded, and anything else is Refused).
type Dispatcher struct {
	responder *authoritative.Responder
	resolver  *resolver.Resolver
	recurse   bool
	trace     bool
	logger    log.Logger
}

// New builds a Dispatcher. recurse reports whether this instance offers
// recursive service at all (§6 Nameserver config carries no such flag; it
// is always false for cmd/rr-nsd and always true for cmd/rr-resolverd).
func New(responder *authoritative.Responder, res *resolver.Resolver, recurse, trace bool, logger log.Logger) *Dispatcher {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &Dispatcher{responder: responder, resolver: res, recurse: recurse, trace: trace, logger: logger}
}

// HandleUDP decodes, routes, and re-encodes raw as a UDP exchange,
// truncating per §4.1/§6 if the response would exceed 512 octets. A nil
// return means the inbound packet was too malformed to answer at all
// (§7: format errors are recoverable at message boundaries, but a packet
// with no recoverable header isn't answered, matching real resolvers'
// silent-drop behavior for garbage UDP traffic).
func (d *Dispatcher) HandleUDP(ctx context.Context, raw []byte) []byte {
	resp, ok := d.route(ctx, raw)
	if !ok {
		return nil
	}
	data, err := wire.EncodeUDP(resp)
	if err != nil {
		d.logger.Error(map[string]any{"error": err.Error()}, "failed to encode UDP response")
		return nil
	}
	return data
}

// HandleTCP decodes, routes, and re-encodes raw as a TCP exchange (no
// truncation, §4.1). The caller is responsible for the 16-bit length
// framing (wire.EncodeTCPFrame); HandleTCP returns only the message body.
func (d *Dispatcher) HandleTCP(ctx context.Context, raw []byte) []byte {
	resp, ok := d.route(ctx, raw)
	if !ok {
		return nil
	}
	data, err := wire.EncodeMessage(resp)
	if err != nil {
		d.logger.Error(map[string]any{"error": err.Error()}, "failed to encode TCP response")
		return nil
	}
	return data
}

// route decodes raw and produces the response message, without wire
// encoding. ok is false only when raw couldn't be decoded enough to form
// any response (not even an ID).
func (d *Dispatcher) route(ctx context.Context, raw []byte) (domain.Message, bool) {
	query, err := wire.DecodeMessage(raw, time.Now())
	if err != nil {
		id, ok := bestEffortID(raw)
		if !ok {
			d.logger.Warn(map[string]any{"size": len(raw)}, "dropping undecodable packet")
			return domain.Message{}, false
		}
		d.logger.Warn(map[string]any{"error": err.Error(), "id": id}, "malformed DNS query")
		return domain.Message{ID: id, Flags: domain.Flags{QR: true, RCode: domain.RCodeFormErr}}, true
	}

	if d.responder != nil && d.responder.Handles(query.Question.Name) {
		return d.responder.Handle(query), true
	}

	if d.recurse && d.resolver != nil && query.Flags.RD {
		return d.handleRecursive(ctx, query), true
	}

	return domain.Message{
		ID:       query.ID,
		Question: query.Question,
		Flags: domain.Flags{
			QR:    true,
			RD:    query.Flags.RD,
			RCode: domain.RCodeRefused,
		},
	}, true
}

func (d *Dispatcher) handleRecursive(ctx context.Context, query domain.Message) domain.Message {
	result := d.resolver.Resolve(ctx, query.Question.Name, query.Question.Type, query.Question.Class, d.trace)
	if d.trace {
		for _, ev := range result.Trace.Events() {
			d.logger.Debug(map[string]any{"kind": ev.Kind, "detail": ev.Detail, "at": ev.Time}, "resolution trace")
		}
	}
	return domain.Message{
		ID:       query.ID,
		Question: query.Question,
		Answer:   result.Answer,
		Flags: domain.Flags{
			QR:    true,
			RD:    query.Flags.RD,
			RA:    true,
			RCode: result.RCode,
		},
	}
}

// bestEffortID extracts the message ID from a packet too malformed to
// decode otherwise, so a FormatError response can still echo it (RFC 1035
// clients match responses to queries by ID). Packets shorter than 2 bytes
// carry no recoverable ID at all.
func bestEffortID(raw []byte) (uint16, bool) {
	if len(raw) < 2 {
		return 0, false
	}
	return binary.BigEndian.Uint16(raw[0:2]), true
}
