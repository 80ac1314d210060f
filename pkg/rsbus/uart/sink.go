// Package uart transmits RS-bus frames through a serial port.
package uart

import (
	"context"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/golang/glog"
	"go.bug.st/serial"

	fx "github.com/robotalks/rsbus/pkg/framework"
)

// DefaultBaudRate is the RS-bus transmission rate.
const DefaultBaudRate = 4800

// backlog is the number of frames buffered towards the writer goroutine.
// A frame is sent once per polling cycle, so it never fills in practice.
const backlog = 4

// Sink is an rsbus.ByteSink writing to a serial port (8N1).
// SendByte only hands the frame to a writer goroutine started by Run.
type Sink struct {
	w       io.WriteCloser
	ch      chan byte
	dropped atomic.Uint32
}

// Open opens the serial port and creates a Sink on it.
func Open(portName string, baudRate int) (*Sink, error) {
	if baudRate <= 0 {
		baudRate = DefaultBaudRate
	}
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("open serial port %s error: %v", portName, err)
	}
	glog.Infof("RS-bus transmitter on %s at %d baud", portName, baudRate)
	return New(port), nil
}

// New creates a Sink on an arbitrary writer.
func New(w io.WriteCloser) *Sink {
	return &Sink{w: w, ch: make(chan byte, backlog)}
}

// SendByte implements rsbus.ByteSink. It never blocks, a frame which can't
// be buffered is dropped.
func (s *Sink) SendByte(b byte) {
	select {
	case s.ch <- b:
	default:
		s.dropped.Add(1)
	}
}

// Dropped returns the number of frames dropped because the writer was busy.
func (s *Sink) Dropped() uint32 {
	return s.dropped.Load()
}

// Name implements framework.Named.
func (s *Sink) Name() string {
	return "uart"
}

// Run implements framework.Runnable. The port is closed on return.
func (s *Sink) Run(ctx context.Context) error {
	return fx.RunWithContextCloser(ctx, s.w, func() error {
		buf := make([]byte, 1)
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case buf[0] = <-s.ch:
			}
			if _, err := s.w.Write(buf); err != nil {
				glog.Warningf("uart write error: %v", err)
				return err
			}
		}
	})
}
