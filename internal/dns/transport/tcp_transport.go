package transport

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/quilldns/rr-dns/internal/dns/common/log"
	"github.com/quilldns/rr-dns/internal/dns/wire"
)

// TCPTransport implements ServerTransport for DNS over TCP: 16-bit
// length-prefixed framing, no truncation, one connection handled per
// worker drawn from the same bounded pool model as UDPTransport.
type TCPTransport struct {
	addr    string
	workers int
	handler Handler
	logger  log.Logger

	mu       sync.Mutex
	listener net.Listener
	running  bool
	sem      chan struct{}
	wg       sync.WaitGroup
}

// NewTCPTransport builds a TCP transport bound to addr, accepting up to
// workers connections concurrently.
func NewTCPTransport(addr string, workers int, handler Handler, logger log.Logger) *TCPTransport {
	if workers < 1 {
		workers = 1
	}
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &TCPTransport{
		addr:    addr,
		workers: workers,
		handler: handler,
		logger:  logger,
		sem:     make(chan struct{}, workers),
	}
}

// Start binds the TCP listener and begins accepting connections.
func (t *TCPTransport) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.running {
		return fmt.Errorf("TCP transport already running")
	}
	ln, err := net.Listen("tcp", t.addr)
	if err != nil {
		return fmt.Errorf("bind TCP socket on %s: %w", t.addr, err)
	}
	t.listener = ln
	t.running = true

	go t.acceptLoop(ctx)
	t.logger.Info(map[string]any{"transport": "tcp", "address": t.addr, "workers": t.workers}, "DNS transport started")
	return nil
}

func (t *TCPTransport) acceptLoop(ctx context.Context) {
	for {
		conn, err := t.listener.Accept()
		if err != nil {
			t.mu.Lock()
			running := t.running
			t.mu.Unlock()
			if !running {
				return
			}
			t.logger.Warn(map[string]any{"error": err.Error()}, "failed to accept TCP connection")
			continue
		}
		select {
		case t.sem <- struct{}{}:
			t.wg.Add(1)
			go t.handleConn(ctx, conn)
		case <-ctx.Done():
			conn.Close()
			return
		}
	}
}

func (t *TCPTransport) handleConn(ctx context.Context, conn net.Conn) {
	defer t.wg.Done()
	defer func() { <-t.sem }()
	defer conn.Close()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		body, err := wire.ReadTCPFrame(conn)
		if err != nil {
			return // client closed or sent something unreadable
		}
		resp := t.handler.HandleTCP(ctx, body)
		if resp == nil {
			continue
		}
		framed, err := wire.EncodeTCPFrame(resp)
		if err != nil {
			t.logger.Error(map[string]any{"error": err.Error()}, "failed to frame TCP response")
			return
		}
		if _, err := conn.Write(framed); err != nil {
			t.logger.Warn(map[string]any{"error": err.Error()}, "failed to write TCP response")
			return
		}
	}
}

// Stop closes the listener and waits for in-flight connections to drain.
func (t *TCPTransport) Stop() error {
	t.mu.Lock()
	if !t.running {
		t.mu.Unlock()
		return nil
	}
	t.running = false
	var closeErr error
	if t.listener != nil {
		closeErr = t.listener.Close()
	}
	t.mu.Unlock()

	t.wg.Wait()
	t.logger.Info(map[string]any{"transport": "tcp", "address": t.addr}, "DNS transport stopped")
	return closeErr
}

// Address returns the bound address.
func (t *TCPTransport) Address() string {
	return t.addr
}
