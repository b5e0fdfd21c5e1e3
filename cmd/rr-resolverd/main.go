// Command rr-resolverd is the recursive resolver (§4.6-§4.7): it holds no
// zones of its own and answers any query with RD set by iteratively
// descending the delegation chain from the configured root hints,
// populating the shared record/nameserver/negative caches as it goes.
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/quilldns/rr-dns/internal/dns/cache"
	"github.com/quilldns/rr-dns/internal/dns/common/clock"
	"github.com/quilldns/rr-dns/internal/dns/common/log"
	"github.com/quilldns/rr-dns/internal/dns/config"
	"github.com/quilldns/rr-dns/internal/dns/dispatch"
	"github.com/quilldns/rr-dns/internal/dns/resolver"
	"github.com/quilldns/rr-dns/internal/dns/transport"
	"github.com/quilldns/rr-dns/internal/dns/upstream"
)

const (
	version = "0.1.0-dev"

	defaultDialTimeout     = 5 * time.Second
	defaultShutdownTimeout = 10 * time.Second
)

// Application holds all components of the recursive resolver.
type Application struct {
	config *config.ResolverConfig
	cache  *cache.RecordCache
	udp    *transport.UDPTransport
	tcp    *transport.TCPTransport
	stopCh chan struct{}
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "usage: %s <config-file>\n", os.Args[0])
		os.Exit(2)
	}

	cfg, err := config.LoadResolver(os.Args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(2)
	}

	if err := log.Configure(cfg.Env, cfg.LogLevel); err != nil {
		fmt.Fprintf(os.Stderr, "logging configuration error: %v\n", err)
		os.Exit(1)
	}

	log.Info(map[string]any{
		"version":    version,
		"env":        cfg.Env,
		"udp_addr":   cfg.UDPAddr,
		"tcp_addr":   cfg.TCPAddr,
		"root_hints": len(cfg.RootHints),
	}, "starting rr-resolverd")

	app, err := buildApplication(cfg)
	if err != nil {
		log.Fatal(map[string]any{"error": err.Error()}, "failed to build application")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.Info(map[string]any{"signal": sig.String()}, "shutdown signal received")
		cancel()
	}()

	if err := app.Run(ctx); err != nil {
		log.Fatal(map[string]any{"error": err.Error()}, "server failed")
	}
	log.Info(nil, "rr-resolverd stopped gracefully")
	_ = log.Sync()
}

// buildApplication wires the three caches, the upstream client, and the
// iterative resolver to both transports, and seeds the root hints from
// config so resolution always has somewhere to start.
func buildApplication(cfg *config.ResolverConfig) (*Application, error) {
	logger := log.GetLogger()
	clk := &clock.RealClock{}

	records, err := cache.NewRecordCache(cfg.Cache.MaxEntries, clk)
	if err != nil {
		return nil, fmt.Errorf("building record cache: %w", err)
	}
	nsCache, err := cache.NewNSCache(cfg.Cache.MaxEntries, clk)
	if err != nil {
		return nil, fmt.Errorf("building nameserver cache: %w", err)
	}
	negative, err := cache.NewNegativeCache(cfg.Cache.MaxEntries, clk)
	if err != nil {
		return nil, fmt.Errorf("building negative cache: %w", err)
	}

	hints := make([]resolver.RootHint, 0, len(cfg.RootHints))
	for _, h := range cfg.RootHints {
		ip := net.ParseIP(h.Addr)
		if ip == nil {
			return nil, fmt.Errorf("root hint %s has invalid address %q", h.Name, h.Addr)
		}
		hints = append(hints, resolver.RootHint{Name: h.Name, Addr: ip})
	}
	resolver.SeedRootHints(nsCache, hints)

	client := upstream.NewClient(defaultDialTimeout)

	rcfg := resolver.DefaultConfig()
	rcfg.QueryTimeout = time.Duration(cfg.QueryTimeoutMS) * time.Millisecond
	rcfg.TotalTimeout = time.Duration(cfg.TotalTimeoutMS) * time.Millisecond
	rcfg.MaxAttempts = cfg.MaxAttempts

	res := resolver.New(records, nsCache, negative, client, clk, logger, rcfg)
	disp := dispatch.New(nil, res, true, cfg.Trace.Enabled, logger)

	udp := transport.NewUDPTransport(cfg.UDPAddr, 16, disp, logger)
	tcp := transport.NewTCPTransport(cfg.TCPAddr, 16, disp, logger)

	return &Application{config: cfg, cache: records, udp: udp, tcp: tcp, stopCh: make(chan struct{})}, nil
}

// Run starts both transports and the cache sweeper, and blocks until ctx
// is cancelled.
func (app *Application) Run(ctx context.Context) error {
	if err := app.udp.Start(ctx); err != nil {
		return fmt.Errorf("starting UDP transport: %w", err)
	}
	if err := app.tcp.Start(ctx); err != nil {
		return fmt.Errorf("starting TCP transport: %w", err)
	}
	app.cache.StartSweeper(app.config.Cache.SweepInterval, app.stopCh)

	log.Info(map[string]any{"udp": app.udp.Address(), "tcp": app.tcp.Address()}, "rr-resolverd listening")

	<-ctx.Done()
	log.Info(nil, "shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
	defer cancel()

	close(app.stopCh)

	done := make(chan struct{})
	go func() {
		if err := app.udp.Stop(); err != nil {
			log.Warn(map[string]any{"error": err.Error()}, "error stopping UDP transport")
		}
		if err := app.tcp.Stop(); err != nil {
			log.Warn(map[string]any{"error": err.Error()}, "error stopping TCP transport")
		}
		close(done)
	}()

	select {
	case <-done:
		log.Info(nil, "graceful shutdown completed")
		return nil
	case <-shutdownCtx.Done():
		return fmt.Errorf("shutdown timeout exceeded")
	}
}
