// Package upstream sends outbound DNS queries to other nameservers and
// decodes their replies, over UDP with a TCP fallback on a truncated
// response, built on this repo's own wire codec (package wire).
package upstream

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/quilldns/rr-dns/internal/dns/domain"
	"github.com/quilldns/rr-dns/internal/dns/wire"
)

// Client issues one outbound DNS query at a time over a fresh connection.
// It holds no long-lived sockets, so it's safe for concurrent use by many
// resolution goroutines.
type Client struct {
	dialer net.Dialer
}

// NewClient builds a Client with the given dial timeout.
func NewClient(dialTimeout time.Duration) *Client {
	return &Client{dialer: net.Dialer{Timeout: dialTimeout}}
}

// Query sends query to addr (host:port) and returns the decoded response.
// If the UDP reply sets TC, Query retries the same question over TCP
// automatically, per §4.7 step 4. The deadline on ctx bounds the entire
// exchange, including a TCP fallback.
func (c *Client) Query(ctx context.Context, addr string, query domain.Message) (domain.Message, error) {
	resp, err := c.queryUDP(ctx, addr, query)
	if err != nil {
		return domain.Message{}, err
	}
	if resp.Flags.TC {
		return c.queryTCP(ctx, addr, query)
	}
	return resp, nil
}

func (c *Client) queryUDP(ctx context.Context, addr string, query domain.Message) (domain.Message, error) {
	conn, err := c.dialer.DialContext(ctx, "udp", addr)
	if err != nil {
		return domain.Message{}, fmt.Errorf("dial %s: %w", addr, err)
	}
	defer conn.Close()
	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}

	data, err := wire.EncodeMessage(query)
	if err != nil {
		return domain.Message{}, fmt.Errorf("encode query: %w", err)
	}
	if _, err := conn.Write(data); err != nil {
		return domain.Message{}, fmt.Errorf("write to %s: %w", addr, err)
	}

	buf := make([]byte, wire.MaxUDPPayload)
	n, err := conn.Read(buf)
	if err != nil {
		return domain.Message{}, fmt.Errorf("read from %s: %w", addr, err)
	}
	resp, err := wire.DecodeMessage(buf[:n], time.Now())
	if err != nil {
		return domain.Message{}, fmt.Errorf("decode response from %s: %w", addr, err)
	}
	return resp, nil
}

func (c *Client) queryTCP(ctx context.Context, addr string, query domain.Message) (domain.Message, error) {
	conn, err := c.dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return domain.Message{}, fmt.Errorf("dial tcp %s: %w", addr, err)
	}
	defer conn.Close()
	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}

	data, err := wire.EncodeMessage(query)
	if err != nil {
		return domain.Message{}, fmt.Errorf("encode query: %w", err)
	}
	framed, err := wire.EncodeTCPFrame(data)
	if err != nil {
		return domain.Message{}, fmt.Errorf("frame query: %w", err)
	}
	if _, err := conn.Write(framed); err != nil {
		return domain.Message{}, fmt.Errorf("write tcp to %s: %w", addr, err)
	}

	body, err := wire.ReadTCPFrame(conn)
	if err != nil {
		return domain.Message{}, fmt.Errorf("read tcp frame from %s: %w", addr, err)
	}
	resp, err := wire.DecodeMessage(body, time.Now())
	if err != nil {
		return domain.Message{}, fmt.Errorf("decode tcp response from %s: %w", addr, err)
	}
	return resp, nil
}
