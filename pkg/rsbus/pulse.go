package rsbus

import "sync/atomic"

// Polling constants of the RS-bus master.
const (
	MinAddress = 1
	MaxAddress = 128
	// CyclePulses is the number of pulses in a complete polling cycle:
	// a start pulse, one per address and a closing pulse.
	CyclePulses = MaxAddress + 2
)

func validAddress(address int) bool {
	return address >= MinAddress && address <= MaxAddress
}

// PulseHandler is invoked from the pulse context on a transmit opportunity.
// polled is the number of pulses counted in the current cycle before the
// edge, thus the address whose slot is opened by this edge.
// Implementations must return quickly and must not block.
type PulseHandler interface {
	HandlePulse(polled uint16)
}

// HandlePulseFunc is func form of PulseHandler.
type HandlePulseFunc func(uint16)

// HandlePulse implements PulseHandler.
func (f HandlePulseFunc) HandlePulse(polled uint16) {
	f(polled)
}

// PulseSource counts the polling pulses of the master.
// All methods except Edge are called from the main context, Edge is
// called by the physical input for every bus transition.
type PulseSource interface {
	// Pulses returns the pulses counted since the start of the cycle.
	Pulses() uint16
	// CycleComplete reports whether n, as returned by Pulses during
	// the silence period, is the count of a complete polling cycle.
	CycleComplete(n uint16) bool
	// StartCycle resets counting for the next cycle.
	StartCycle()
	// Watch selects the address that must raise the PulseHandler.
	Watch(address uint8)
	// Attach installs the handler. It must be called before edges arrive.
	Attach(PulseHandler)
	// Edge records a single bus transition.
	Edge()
}

// EdgeCounter counts every transition in software, like a pin interrupt
// that fires on each edge. The handler is raised on every edge and
// decides itself whether the slot is its own.
type EdgeCounter struct {
	count   atomic.Uint32
	handler PulseHandler
}

// NewEdgeCounter creates an EdgeCounter.
func NewEdgeCounter() *EdgeCounter {
	return &EdgeCounter{}
}

// Pulses implements PulseSource.
func (c *EdgeCounter) Pulses() uint16 {
	return uint16(c.count.Load())
}

// CycleComplete implements PulseSource.
func (c *EdgeCounter) CycleComplete(n uint16) bool {
	return n == CyclePulses
}

// StartCycle implements PulseSource.
func (c *EdgeCounter) StartCycle() {
	c.count.Store(0)
}

// Watch implements PulseSource. All edges are reported anyway.
func (c *EdgeCounter) Watch(uint8) {}

// Attach implements PulseSource.
func (c *EdgeCounter) Attach(h PulseHandler) {
	c.handler = h
}

// Edge implements PulseSource.
func (c *EdgeCounter) Edge() {
	polled := c.count.Add(1) - 1
	if h := c.handler; h != nil {
		h.HandlePulse(uint16(polled))
	}
}

// EventCounter behaves like a hardware event counter: the count wraps to
// zero with the last pulse of every cycle (period match) and the handler is
// only raised on compare match with the watched address, so the pulse
// context is entered once per cycle instead of on every edge.
type EventCounter struct {
	// Period is the number of pulses after which the counter wraps.
	Period uint16

	count   atomic.Uint32
	compare atomic.Uint32
	handler PulseHandler
}

// NewEventCounter creates an EventCounter wrapping after a polling cycle.
func NewEventCounter() *EventCounter {
	return &EventCounter{Period: CyclePulses}
}

// Pulses implements PulseSource.
func (c *EventCounter) Pulses() uint16 {
	return uint16(c.count.Load())
}

// CycleComplete implements PulseSource. A complete cycle leaves
// the counter wrapped around to zero.
func (c *EventCounter) CycleComplete(n uint16) bool {
	return n == 0
}

// StartCycle implements PulseSource.
func (c *EventCounter) StartCycle() {
	c.count.Store(0)
}

// Watch implements PulseSource by loading the compare register.
func (c *EventCounter) Watch(address uint8) {
	c.compare.Store(uint32(address))
}

// Attach implements PulseSource.
func (c *EventCounter) Attach(h PulseHandler) {
	c.handler = h
}

// Edge implements PulseSource.
func (c *EventCounter) Edge() {
	period := uint32(c.Period)
	if period == 0 {
		period = CyclePulses
	}
	var n uint32
	for {
		n = c.count.Load()
		next := n + 1
		if next >= period {
			next = 0
		}
		if c.count.CompareAndSwap(n, next) {
			break
		}
	}
	if cmp := c.compare.Load(); cmp != 0 && cmp == n {
		if h := c.handler; h != nil {
			h.HandlePulse(uint16(n))
		}
	}
}
