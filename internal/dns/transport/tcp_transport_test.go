package transport

import (
	"bytes"
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quilldns/rr-dns/internal/dns/wire"
)

func TestTCPTransportRoundTrip(t *testing.T) {
	handler := echoHandler{respond: func(raw []byte) []byte {
		out := make([]byte, len(raw))
		copy(out, raw)
		return bytes.ToUpper(out)
	}}
	tr := NewTCPTransport("127.0.0.1:0", 4, handler, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, tr.Start(ctx))
	defer tr.Stop()

	conn, err := net.Dial("tcp", tr.Address())
	require.NoError(t, err)
	defer conn.Close()

	framed, err := wire.EncodeTCPFrame([]byte("hello"))
	require.NoError(t, err)
	_, err = conn.Write(framed)
	require.NoError(t, err)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	body, err := wire.ReadTCPFrame(conn)
	require.NoError(t, err)
	assert.Equal(t, "HELLO", string(body))
}

func TestTCPTransportKeepsConnectionOpenAcrossQueries(t *testing.T) {
	var count int
	handler := echoHandler{respond: func(raw []byte) []byte {
		count++
		return raw
	}}
	tr := NewTCPTransport("127.0.0.1:0", 2, handler, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, tr.Start(ctx))
	defer tr.Stop()

	conn, err := net.Dial("tcp", tr.Address())
	require.NoError(t, err)
	defer conn.Close()

	for i := 0; i < 3; i++ {
		framed, err := wire.EncodeTCPFrame([]byte("ping"))
		require.NoError(t, err)
		_, err = conn.Write(framed)
		require.NoError(t, err)
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, err = wire.ReadTCPFrame(conn)
		require.NoError(t, err)
	}
	assert.Equal(t, 3, count)
}
