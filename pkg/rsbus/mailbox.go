package rsbus

import "sync/atomic"

// Mailbox is the single-slot handoff between connections (main context)
// and the pulse handler. The slot, its address and the armed flag live in
// one word, every transition is a single compare-and-swap.
//
// Only a connection fills the slot (Offer), only the pulse handler empties
// it after transmission (Take), the monitor arms it for the next cycle.
type Mailbox struct {
	word atomic.Uint32
}

const (
	mbFrameMask   uint32 = 0x000000ff
	mbAddrShift          = 8
	mbAddrMask    uint32 = 0x0000ff00
	mbFull        uint32 = 0x00010000
	mbArmed       uint32 = 0x00020000
	mbStateFields        = mbFull | mbArmed
)

// Offer places a frame for address into an empty slot.
func (m *Mailbox) Offer(address uint8, f Frame) bool {
	if !validAddress(int(address)) {
		return false
	}
	w := mbFull | uint32(address)<<mbAddrShift | uint32(f)
	return m.word.CompareAndSwap(0, w)
}

// Pending returns the frame waiting in the slot.
func (m *Mailbox) Pending() (address uint8, f Frame, ok bool) {
	w := m.word.Load()
	if w&mbFull == 0 {
		return 0, 0, false
	}
	return uint8((w & mbAddrMask) >> mbAddrShift), Frame(w & mbFrameMask), true
}

// Armed reports whether the pulse handler may transmit the slot.
func (m *Mailbox) Armed() bool {
	return m.word.Load()&mbArmed != 0
}

// Arm allows the pulse handler to transmit the slot during the next cycle.
// It returns the address of the armed slot, or false if the slot is empty.
func (m *Mailbox) Arm() (uint8, bool) {
	for {
		w := m.word.Load()
		if w&mbFull == 0 {
			return 0, false
		}
		if m.word.CompareAndSwap(w, w|mbArmed) {
			return uint8((w & mbAddrMask) >> mbAddrShift), true
		}
	}
}

// Disarm withdraws the slot from the pulse handler but keeps its content.
func (m *Mailbox) Disarm() {
	for {
		w := m.word.Load()
		if w&mbArmed == 0 || m.word.CompareAndSwap(w, w&^mbArmed) {
			return
		}
	}
}

// Take is called by the pulse handler with the number of pulses counted so
// far. It empties the slot if it's armed and polled is its address.
func (m *Mailbox) Take(polled uint16) (Frame, bool) {
	w := m.word.Load()
	if w&mbStateFields != mbStateFields || uint16((w&mbAddrMask)>>mbAddrShift) != polled {
		return 0, false
	}
	if !m.word.CompareAndSwap(w, 0) {
		return 0, false
	}
	return Frame(w & mbFrameMask), true
}

// Drop empties the slot if it's held by address.
func (m *Mailbox) Drop(address uint8) {
	for {
		w := m.word.Load()
		if w&mbFull == 0 || uint8((w&mbAddrMask)>>mbAddrShift) != address {
			return
		}
		if m.word.CompareAndSwap(w, 0) {
			return
		}
	}
}

// Clear empties the slot unconditionally.
func (m *Mailbox) Clear() {
	m.word.Store(0)
}
