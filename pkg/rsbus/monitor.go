package rsbus

import (
	"time"

	"github.com/golang/glog"
)

// TickPeriod is the cadence the silence classifier must be sampled at.
const TickPeriod = 2 * time.Millisecond

// Silence the master keeps after a polling cycle, after a parity error
// and when it stopped polling at all.
const (
	CycleEndSilence   = 4 * time.Millisecond
	ParitySilence     = 8 * time.Millisecond
	SignalLossSilence = 12 * time.Millisecond
)

// Classifier windows, counted in ticks since the last pulse.
// The first tick after a pulse is window 1.
const (
	windowCycleEnd   = 1 + uint8(CycleEndSilence/TickPeriod)
	windowParity     = 1 + uint8(ParitySilence/TickPeriod)
	windowSignalLost = 1 + uint8(SignalLossSilence/TickPeriod)
)

// monitor is the state of the silence classifier, only touched by Tick.
type monitor struct {
	idle uint8
	last uint16
	// justSent is latched at the end of every cycle and tells the
	// retransmit policies of the following gap whether a frame went out.
	justSent bool
	// parityCounted is set when window 5 of the current gap counted a
	// parity error.
	parityCounted bool
	lastTick      time.Time
}

func newMonitor() monitor {
	// Start as if the signal was already lost: nothing is classified
	// before the first pulse arrives.
	return monitor{idle: windowSignalLost + 1}
}

// Tick samples the pulse counter and classifies the silence since the last
// pulse. It must be called every TickPeriod from the main context.
func (b *Bus) Tick() {
	m := &b.mon
	n := b.src.Pulses()
	if n != m.last {
		m.last = n
		m.idle = 1
		return
	}
	if m.idle > windowSignalLost {
		return
	}
	m.idle++
	switch m.idle {
	case windowCycleEnd:
		b.endCycle(n)
	case windowParity:
		b.parityGap()
	case windowSignalLost:
		b.signalLost()
	}
}

// CheckPolling ticks the classifier if at least TickPeriod elapsed since the
// previous tick. It's meant for main loops running faster than TickPeriod.
func (b *Bus) CheckPolling(now time.Time) {
	if now.Sub(b.mon.lastTick) < TickPeriod {
		return
	}
	b.mon.lastTick = now
	b.Tick()
}

func (b *Bus) endCycle(n uint16) {
	m := &b.mon
	m.justSent = b.sent.Swap(false)
	m.parityCounted = false
	if b.src.CycleComplete(n) {
		b.cycles.Add(1)
		if !b.signalOK.Swap(true) {
			glog.Info("RS-bus signal acquired")
		}
		if addr, ok := b.mailbox.Arm(); ok {
			b.src.Watch(addr)
		}
	} else {
		b.pulseCountErrors.Add(1)
		glog.V(2).Infof("RS-bus pulse count error: %d pulses", n)
		if b.SignalOK() && b.pulseCountPolicy.Triggers(m.justSent) {
			b.loseSignal("pulse count error")
		}
	}
	b.src.StartCycle()
	m.last = 0
}

func (b *Bus) parityGap() {
	m := &b.mon
	b.parityErrors.Add(1)
	m.parityCounted = true
	glog.V(2).Info("RS-bus parity error")
	if b.parityPolicy.Triggers(m.justSent) {
		b.loseSignal("parity error")
	}
}

func (b *Bus) signalLost() {
	m := &b.mon
	// The long gap was no parity error but the master going quiet.
	if m.parityCounted {
		b.parityErrors.Add(^uint32(0))
		m.parityCounted = false
	}
	m.justSent = false
	b.loseSignal("no pulses")
}

func (b *Bus) loseSignal(reason string) {
	b.sent.Store(false)
	wasOK := b.signalOK.Swap(false)
	b.mailbox.Clear()
	if wasOK {
		glog.Infof("RS-bus signal lost: %s", reason)
	}
}
