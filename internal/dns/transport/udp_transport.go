package transport

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/quilldns/rr-dns/internal/dns/common/log"
)

// maxUDPDatagram is the largest inbound UDP query this implementation will
// read (§5 resource bounds).
const maxUDPDatagram = 512

// udpJob is one received datagram queued for a worker.
type udpJob struct {
	data   []byte
	client *net.UDPAddr
}

// UDPTransport implements ServerTransport for DNS over UDP (RFC 1035),
// handling each datagram to completion on a worker drawn from a bounded
// pool.
type UDPTransport struct {
	addr    string
	workers int
	handler Handler
	logger  log.Logger

	mu      sync.RWMutex
	conn    *net.UDPConn
	running bool
	stopCh  chan struct{}
	jobs    chan udpJob
	wg      sync.WaitGroup
}

// NewUDPTransport builds a UDP transport bound to addr with workers
// concurrent handler goroutines (§5: "threads" in NameserverConfig,
// implicit pool size for the resolver).
func NewUDPTransport(addr string, workers int, handler Handler, logger log.Logger) *UDPTransport {
	if workers < 1 {
		workers = 1
	}
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &UDPTransport{
		addr:    addr,
		workers: workers,
		handler: handler,
		logger:  logger,
		stopCh:  make(chan struct{}),
		jobs:    make(chan udpJob, workers*4),
	}
}

// Start binds the UDP socket and launches the read loop plus the worker
// pool. Returns once the socket is listening; processing continues in the
// background until ctx is done or Stop is called.
func (t *UDPTransport) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.running {
		return fmt.Errorf("UDP transport already running")
	}

	udpAddr, err := net.ResolveUDPAddr("udp", t.addr)
	if err != nil {
		return fmt.Errorf("resolve UDP address %s: %w", t.addr, err)
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return fmt.Errorf("bind UDP socket on %s: %w", t.addr, err)
	}
	t.conn = conn
	t.running = true

	for i := 0; i < t.workers; i++ {
		t.wg.Add(1)
		go t.worker(ctx)
	}
	go t.readLoop(ctx)

	t.logger.Info(map[string]any{"transport": "udp", "address": t.addr, "workers": t.workers}, "DNS transport started")
	return nil
}

func (t *UDPTransport) readLoop(ctx context.Context) {
	buf := make([]byte, maxUDPDatagram)
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.stopCh:
			return
		default:
		}
		n, clientAddr, err := t.conn.ReadFromUDP(buf)
		if err != nil {
			t.mu.RLock()
			running := t.running
			t.mu.RUnlock()
			if !running {
				return
			}
			t.logger.Warn(map[string]any{"error": err.Error()}, "failed to read UDP packet")
			continue
		}
		data := make([]byte, n)
		copy(data, buf[:n])
		select {
		case t.jobs <- udpJob{data: data, client: clientAddr}:
		case <-ctx.Done():
			return
		case <-t.stopCh:
			return
		}
	}
}

func (t *UDPTransport) worker(ctx context.Context) {
	defer t.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.stopCh:
			return
		case job := <-t.jobs:
			t.handle(ctx, job)
		}
	}
}

func (t *UDPTransport) handle(ctx context.Context, job udpJob) {
	resp := t.handler.HandleUDP(ctx, job.data)
	if resp == nil {
		return
	}
	t.mu.RLock()
	conn := t.conn
	t.mu.RUnlock()
	if conn == nil {
		return
	}
	if _, err := conn.WriteToUDP(resp, job.client); err != nil {
		t.logger.Warn(map[string]any{"client": job.client.String(), "error": err.Error()}, "failed to write UDP response")
	}
}

// Stop closes the socket and waits for in-flight workers to drain.
func (t *UDPTransport) Stop() error {
	t.mu.Lock()
	if !t.running {
		t.mu.Unlock()
		return nil
	}
	t.running = false
	close(t.stopCh)
	var closeErr error
	if t.conn != nil {
		closeErr = t.conn.Close()
	}
	t.mu.Unlock()

	t.wg.Wait()
	t.logger.Info(map[string]any{"transport": "udp", "address": t.addr}, "DNS transport stopped")
	return closeErr
}

// Address returns the bound address.
func (t *UDPTransport) Address() string {
	return t.addr
}
