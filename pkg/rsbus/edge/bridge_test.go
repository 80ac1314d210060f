package edge

import (
	"context"
	"io"
	"net"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/net/websocket"

	"github.com/robotalks/rsbus/pkg/rsbus"
)

func waitPulses(t *testing.T, src rsbus.PulseSource, n uint16) {
	deadline := time.Now().Add(2 * time.Second)
	for src.Pulses() != n {
		if time.Now().After(deadline) {
			t.Fatalf("expect %d pulses, got %d", n, src.Pulses())
		}
		time.Sleep(time.Millisecond)
	}
}

func TestBridgeStream(t *testing.T) {
	r, w := io.Pipe()
	src := rsbus.NewEdgeCounter()
	done := make(chan error, 1)
	go func() { done <- NewBridge(src, NewStreamConn(r)).Run(context.Background()) }()

	_, err := w.Write(make([]byte, rsbus.CyclePulses))
	require.NoError(t, err)
	waitPulses(t, src, rsbus.CyclePulses)
	w.Close()
	require.Equal(t, io.EOF, <-done)
}

func TestBridgeCancel(t *testing.T) {
	r, _ := io.Pipe()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := NewBridge(rsbus.NewEdgeCounter(), NewStreamConn(r)).Run(ctx)
	require.Equal(t, context.Canceled, err)
}

func TestOpenTCP(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		conn.Write(make([]byte, 42))
		conn.Close()
	}()

	conn, err := Open("tcp://" + ln.Addr().String())
	require.NoError(t, err)
	src := rsbus.NewEdgeCounter()
	err = NewBridge(src, conn).Run(context.Background())
	require.Equal(t, io.EOF, err)
	require.EqualValues(t, 42, src.Pulses())
}

func TestOpenWebsocket(t *testing.T) {
	srv := httptest.NewServer(websocket.Handler(func(ws *websocket.Conn) {
		for i := 0; i < 3; i++ {
			websocket.Message.Send(ws, make([]byte, 10))
		}
	}))
	defer srv.Close()

	conn, err := Open("ws" + strings.TrimPrefix(srv.URL, "http") + "/edges")
	require.NoError(t, err)
	src := rsbus.NewEventCounter()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go NewBridge(src, conn).Run(ctx)
	waitPulses(t, src, 30)
}

func TestOpenInvalid(t *testing.T) {
	_, err := Open("udp://localhost:1234")
	require.Error(t, err)
	_, err = Open("serial:///dev/null?baud=fast")
	require.Error(t, err)
}
