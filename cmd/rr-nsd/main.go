// Command rr-nsd is the authoritative nameserver (§4.1-§4.5): it loads one
// or more zone files into a Store and answers queries for names under
// those zones over UDP and TCP, refusing anything else.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/quilldns/rr-dns/internal/dns/authoritative"
	"github.com/quilldns/rr-dns/internal/dns/common/log"
	"github.com/quilldns/rr-dns/internal/dns/config"
	"github.com/quilldns/rr-dns/internal/dns/dispatch"
	"github.com/quilldns/rr-dns/internal/dns/domain"
	"github.com/quilldns/rr-dns/internal/dns/transport"
	"github.com/quilldns/rr-dns/internal/dns/zonefile"
	"github.com/quilldns/rr-dns/internal/dns/zonestore"
)

const (
	version = "0.1.0-dev"

	defaultShutdownTimeout = 10 * time.Second
)

// Application holds all components of the authoritative server.
type Application struct {
	config *config.NameserverConfig
	udp    *transport.UDPTransport
	tcp    *transport.TCPTransport
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "usage: %s <config-file>\n", os.Args[0])
		os.Exit(2)
	}

	cfg, err := config.LoadNameserver(os.Args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(2)
	}

	if err := log.Configure(cfg.Env, cfg.LogLevel); err != nil {
		fmt.Fprintf(os.Stderr, "logging configuration error: %v\n", err)
		os.Exit(1)
	}

	log.Info(map[string]any{
		"version":  version,
		"env":      cfg.Env,
		"udp_addr": cfg.UDPAddr,
		"tcp_addr": cfg.TCPAddr,
		"zones":    cfg.Zones,
	}, "starting rr-nsd")

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
	log.Info(nil, "rr-nsd stopped gracefully")
	_ = log.Sync()
}

// buildApplication loads every configured zone file and wires the
// authoritative responder to both transports.
func buildApplication(cfg *config.NameserverConfig) (*Application, error) {
	logger := log.GetLogger()

	store := zonestore.New()
	for _, path := range cfg.Zones {
		origin, records, err := loadZoneFile(path)
		if err != nil {
			return nil, fmt.Errorf("loading zone file %s: %w", path, err)
		}
		if err := store.LoadZone(origin, records); err != nil {
			return nil, fmt.Errorf("loading zone %s: %w", origin, err)
		}
		log.Info(map[string]any{"zone": origin, "records": len(records), "file": path}, "zone loaded")
	}

	responder := authoritative.New(store, logger)
	disp := dispatch.New(responder, nil, false, false, logger)

	udp := transport.NewUDPTransport(cfg.UDPAddr, cfg.Threads, disp, logger)
	tcp := transport.NewTCPTransport(cfg.TCPAddr, cfg.Threads, disp, logger)

	return &Application{config: cfg, udp: udp, tcp: tcp}, nil
}

// loadZoneFile parses the zone file at path. The zone's origin is taken
// from the file's base name (e.g. "example.com.zone" names the zone
// "example.com."), matching the layout cfg.Zones entries are expected to
// follow; ParseFile then enforces that the file's own SOA owner agrees.
func loadZoneFile(path string) (string, []domain.ResourceRecord, error) {
	origin := zoneOriginFromPath(path)
	records, err := zonefile.ParseFile(path, origin, nil)
	if err != nil {
		return "", nil, err
	}
	return origin, records, nil
}

func zoneOriginFromPath(path string) string {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	if !strings.HasSuffix(base, ".") {
		base += "."
	}
	return base
}

// Run starts both transports and blocks until ctx is cancelled.
func (app *Application) Run(ctx context.Context) error {
	if err := app.udp.Start(ctx); err != nil {
		return fmt.Errorf("starting UDP transport: %w", err)
	}
	if err := app.tcp.Start(ctx); err != nil {
		return fmt.Errorf("starting TCP transport: %w", err)
	}

	log.Info(map[string]any{"udp": app.udp.Address(), "tcp": app.tcp.Address()}, "rr-nsd listening")

	<-ctx.Done()
	log.Info(nil, "shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
	defer cancel()

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
