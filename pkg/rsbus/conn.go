package rsbus

import (
	"fmt"

	"github.com/golang/glog"

	fx "github.com/robotalks/rsbus/pkg/framework"
)

// ConnState is the state of a Connection towards the master.
type ConnState uint8

// Connection states.
const (
	StateUnsynchronized ConnState = iota
	StateFeedbackNeeded
	StateSendingNibble1
	StateSendingNibble2
	StateConnected
)

var connStateNames = [...]string{
	StateUnsynchronized: "unsynchronized",
	StateFeedbackNeeded: "feedback-needed",
	StateSendingNibble1: "sending-nibble-1",
	StateSendingNibble2: "sending-nibble-2",
	StateConnected:      "connected",
}

// String implements fmt.Stringer.
func (s ConnState) String() string {
	if int(s) < len(connStateNames) {
		return connStateNames[s]
	}
	return fmt.Sprintf("ConnState(%d)", uint8(s))
}

// Connection announces the feedback of one address to the master.
// A Connection is owned by the main context, only the frame it hands to the
// Bus mailbox crosses into the pulse context.
type Connection struct {
	bus     *Bus
	address uint8
	typ     DeviceType
	fec     int

	state             ConnState
	feedbackRequested bool
	queue             Queue
}

// Address returns the polled address of the connection.
func (c *Connection) Address() uint8 {
	return c.address
}

// Type returns the device type announced in every frame.
func (c *Connection) Type() DeviceType {
	return c.typ
}

// State returns the current connection state.
func (c *Connection) State() ConnState {
	return c.state
}

// Pending returns the number of frames waiting for their slot.
func (c *Connection) Pending() int {
	return c.queue.Len()
}

// FeedbackRequested reports that the master needs the complete 8 feedback
// bits, which must be supplied with Send8.
func (c *Connection) FeedbackRequested() bool {
	return c.feedbackRequested
}

// Send4 queues 4 feedback bits for the given half.
func (c *Connection) Send4(pos Nibble, value uint8) {
	c.enqueue(EncodeNibble(pos, value&nibbleValues, c.typ))
}

// Send8 queues all 8 feedback bits, low half first.
// It satisfies a pending feedback request.
func (c *Connection) Send8(value uint8) {
	c.feedbackRequested = false
	lo, hi := EncodeByte(value, c.typ)
	c.enqueue(lo)
	c.enqueue(hi)
}

func (c *Connection) enqueue(f Frame) {
	for i := 0; i <= c.fec; i++ {
		c.queue.Push(f)
	}
}

// Poll advances the connection by at most one state.
// It must be called from the main loop as often as possible.
func (c *Connection) Poll() {
	if c.bus == nil {
		return
	}
	if !c.bus.SignalOK() {
		if c.state != StateUnsynchronized {
			glog.V(2).Infof("RS-bus address %d: %s -> %s", c.address, c.state, StateUnsynchronized)
		}
		c.state = StateUnsynchronized
		c.feedbackRequested = false
		c.queue.Clear()
		c.bus.mailbox.Drop(c.address)
		return
	}
	switch c.state {
	case StateUnsynchronized:
		c.state = StateFeedbackNeeded
		c.feedbackRequested = true
	case StateFeedbackNeeded:
		if !c.feedbackRequested {
			c.state = StateSendingNibble1
		}
	case StateSendingNibble1:
		if c.handoff() {
			c.state = StateSendingNibble2
		}
	case StateSendingNibble2:
		if c.handoff() {
			c.state = StateConnected
			glog.Infof("RS-bus address %d connected", c.address)
		}
	case StateConnected:
		c.handoff()
	}
}

// Control implements framework.Controller.
func (c *Connection) Control(fx.ControlContext) error {
	c.Poll()
	return nil
}

// handoff moves the oldest queued frame into the mailbox if it's empty.
func (c *Connection) handoff() bool {
	f, ok := c.queue.Peek()
	if !ok || !c.bus.mailbox.Offer(c.address, f) {
		return false
	}
	c.queue.Pop()
	return true
}
