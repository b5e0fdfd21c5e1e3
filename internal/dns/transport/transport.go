// Package transport provides the UDP and TCP server transports for DNS/53,
// converting between wire bytes and the dispatcher's decoded handling: a
// shared ServerTransport interface with one concrete type per protocol, a
// bounded worker pool per listener instead of one goroutine per packet,
// and graceful Start/Stop lifecycle methods.
package transport

import (
	"context"
)

// Handler is what a transport delivers raw wire bytes to. dispatch.Dispatcher
// satisfies this with its HandleUDP/HandleTCP methods.
type Handler interface {
	HandleUDP(ctx context.Context, raw []byte) []byte
	HandleTCP(ctx context.Context, raw []byte) []byte
}

// ServerTransport is the lifecycle contract both concrete transports
// implement.
type ServerTransport interface {
	Start(ctx context.Context) error
	Stop() error
	Address() string
}
