// Package edge feeds bus transitions captured elsewhere into a PulseSource.
//
// A capture front-end (e.g. a microcontroller on the bus) reports every
// transition as one byte over a serial line, a TCP stream or websocket
// messages. The value of the byte is ignored.
package edge

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/url"
	"strconv"

	"github.com/golang/glog"
	"go.bug.st/serial"
	"golang.org/x/net/websocket"

	fx "github.com/robotalks/rsbus/pkg/framework"
	"github.com/robotalks/rsbus/pkg/rsbus"
)

// DefaultSerialBaudRate is used for serial:// URLs without baud parameter.
const DefaultSerialBaudRate = 115200

// PacketReader reads chunks of transitions.
type PacketReader interface {
	ReadPacket() ([]byte, error)
}

// Conn is an opened capture front-end.
type Conn interface {
	PacketReader
	io.Closer
}

// streamConn reads whatever is available from a byte stream.
type streamConn struct {
	io.ReadCloser
	buf []byte
}

// NewStreamConn wraps a byte stream.
func NewStreamConn(r io.ReadCloser) Conn {
	return &streamConn{ReadCloser: r, buf: make([]byte, 256)}
}

func (c *streamConn) ReadPacket() ([]byte, error) {
	n, err := c.Read(c.buf)
	return c.buf[:n], err
}

// wsConn reads websocket messages.
type wsConn websocket.Conn

// NewWebsocketConn wraps a websocket connection.
func NewWebsocketConn(conn *websocket.Conn) Conn {
	return (*wsConn)(conn)
}

func (c *wsConn) ReadPacket() (pkt []byte, err error) {
	err = websocket.Message.Receive((*websocket.Conn)(c), &pkt)
	return
}

func (c *wsConn) Close() error {
	return (*websocket.Conn)(c).Close()
}

// Open connects a capture front-end:
//
//	serial:///dev/ttyACM0?baud=115200
//	tcp://host:port
//	ws://host:port/path (or wss://)
func Open(rawURL string) (Conn, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid edge source URL: %v", err)
	}
	switch u.Scheme {
	case "serial":
		baud := DefaultSerialBaudRate
		if val := u.Query().Get("baud"); val != "" {
			if baud, err = strconv.Atoi(val); err != nil {
				return nil, fmt.Errorf("invalid baud rate %q: %v", val, err)
			}
		}
		port, err := serial.Open(u.Path, &serial.Mode{
			BaudRate: baud,
			DataBits: 8,
			Parity:   serial.NoParity,
			StopBits: serial.OneStopBit,
		})
		if err != nil {
			return nil, fmt.Errorf("open serial port %s error: %v", u.Path, err)
		}
		return NewStreamConn(port), nil
	case "tcp":
		conn, err := net.Dial("tcp", u.Host)
		if err != nil {
			return nil, err
		}
		return NewStreamConn(conn), nil
	case "ws", "wss":
		origin := "http://" + u.Host
		if u.Scheme == "wss" {
			origin = "https://" + u.Host
		}
		conn, err := websocket.Dial(rawURL, "", origin)
		if err != nil {
			return nil, err
		}
		return NewWebsocketConn(conn), nil
	}
	return nil, fmt.Errorf("unknown edge source URL scheme: %q", u.Scheme)
}

// Bridge calls Edge of the PulseSource for every transition received.
type Bridge struct {
	Source rsbus.PulseSource
	Conn   Conn
}

// NewBridge creates a Bridge.
func NewBridge(src rsbus.PulseSource, conn Conn) *Bridge {
	return &Bridge{Source: src, Conn: conn}
}

// Name implements framework.Named.
func (b *Bridge) Name() string {
	return "edge-bridge"
}

// Run implements framework.Runnable.
func (b *Bridge) Run(ctx context.Context) error {
	return fx.RunWithContextCloser(ctx, b.Conn, func() error {
		for {
			pkt, err := b.Conn.ReadPacket()
			for range pkt {
				b.Source.Edge()
			}
			if err != nil {
				if err != io.EOF {
					glog.Warningf("edge source error: %v", err)
				}
				return err
			}
		}
	})
}
