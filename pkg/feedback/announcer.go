// Package feedback keeps the feedback bits of every connected address and
// announces them to the master whenever it asks for them.
package feedback

import (
	"github.com/golang/glog"

	fx "github.com/robotalks/rsbus/pkg/framework"
	"github.com/robotalks/rsbus/pkg/msgs"
	"github.com/robotalks/rsbus/pkg/rsbus"
)

// Announcer owns the latest 8 feedback bits per address.
// It runs in the main loop before the connections are polled.
type Announcer struct {
	bus    *rsbus.Bus
	values map[uint8]uint8
}

// New creates an Announcer for all connections of bus.
func New(bus *rsbus.Bus) *Announcer {
	return &Announcer{bus: bus, values: make(map[uint8]uint8)}
}

// Value returns the last feedback bits of an address.
func (a *Announcer) Value(address uint8) (uint8, bool) {
	if a.bus.Connection(int(address)) == nil {
		return 0, false
	}
	return a.values[address], true
}

// Set changes all 8 feedback bits of an address and sends them.
func (a *Announcer) Set(address uint8, value uint8) error {
	conn := a.bus.Connection(int(address))
	if conn == nil {
		return &rsbus.AddressError{Address: int(address)}
	}
	a.values[address] = value
	conn.Send8(value)
	return nil
}

// SetNibble changes 4 feedback bits of an address and sends only them.
func (a *Announcer) SetNibble(address uint8, pos rsbus.Nibble, value uint8) error {
	conn := a.bus.Connection(int(address))
	if conn == nil {
		return &rsbus.AddressError{Address: int(address)}
	}
	value &= 0x0f
	cur := a.values[address]
	if pos == rsbus.HighBits {
		cur = cur&0x0f | value<<4
	} else {
		cur = cur&0xf0 | value
	}
	a.values[address] = cur
	conn.Send4(pos, value)
	return nil
}

// Apply executes a FeedbackCommand.
func (a *Announcer) Apply(cmd *msgs.FeedbackCommand) error {
	if err := cmd.Validate(); err != nil {
		return err
	}
	if pos, ok := cmd.Half(); ok {
		return a.SetNibble(uint8(cmd.Address), pos, uint8(cmd.Value))
	}
	return a.Set(uint8(cmd.Address), uint8(cmd.Value))
}

// Control implements framework.Controller.
func (a *Announcer) Control(cc fx.ControlContext) error {
	cc.Messages().ProcessMessages(fx.ProcessMessageFunc(func(mc fx.MessageProcessingContext) {
		cmd, ok := mc.CurrentMessage().(*msgs.FeedbackCommand)
		if !ok {
			return
		}
		mc.MessageTaken()
		if err := a.Apply(cmd); err != nil {
			glog.Warningf("feedback command %s rejected: %v", cmd, err)
		}
	}))
	for _, conn := range a.bus.Connections() {
		if conn.FeedbackRequested() {
			glog.V(2).Infof("announce feedback %02x of address %d", a.values[conn.Address()], conn.Address())
			conn.Send8(a.values[conn.Address()])
		}
	}
	return nil
}

// AddToLoop implements framework.LoopAdder.
func (a *Announcer) AddToLoop(l *fx.Loop) {
	l.AddController(fx.PrLvApply, a)
}
