package rsbus

import (
	"fmt"
	"math/bits"
)

// DeviceType is encoded into the two TT bits of every frame.
type DeviceType uint8

const (
	// Switch is an accessory decoder with feedback.
	Switch DeviceType = iota
	// Feedback is a feedback-only module, it can't switch anything.
	Feedback
)

// String implements fmt.Stringer.
func (t DeviceType) String() string {
	switch t {
	case Switch:
		return "switch"
	case Feedback:
		return "feedback"
	default:
		return fmt.Sprintf("DeviceType(%d)", uint8(t))
	}
}

// ParseDeviceType parses the name of a device type.
func ParseDeviceType(s string) (DeviceType, error) {
	switch s {
	case "switch", "":
		return Switch, nil
	case "feedback":
		return Feedback, nil
	}
	return Switch, fmt.Errorf("unknown device type %q", s)
}

// Nibble selects which half of the 8 feedback bits a frame carries.
type Nibble uint8

const (
	// LowBits carries feedback bits 1-4.
	LowBits Nibble = iota
	// HighBits carries feedback bits 5-8.
	HighBits
)

// String implements fmt.Stringer.
func (n Nibble) String() string {
	if n == HighBits {
		return "high"
	}
	return "low"
}

// Frame is a single byte as transmitted on the RS-bus.
//
//	bit 7..4  data (feedback bit 1 in bit 7)
//	bit 3     nibble select
//	bit 2     TT0
//	bit 1     TT1
//	bit 0     parity
//
// The UART sends LSB first, so the parity bit directly follows the start bit.
type Frame uint8

// Bit positions within a Frame.
const (
	bitParity    = 0
	bitTT1       = 1
	bitTT0       = 2
	bitNibble    = 3
	dataShift    = 4
	nibbleValues = 0x0f
)

// reverse4 mirrors the 4 low bits: bit0<->bit3, bit1<->bit2.
func reverse4(v uint8) uint8 {
	return bits.Reverse8(v&nibbleValues) >> 4
}

// EncodeNibble creates the frame carrying 4 feedback bits.
// Bit 0 of value ends up in bit 7 of the frame.
func EncodeNibble(pos Nibble, value uint8, typ DeviceType) Frame {
	f := reverse4(value) << dataShift
	if pos == HighBits {
		f |= 1 << bitNibble
	}
	if typ == Feedback {
		f |= 1 << bitTT1
	} else {
		f |= 1 << bitTT0
	}
	if bits.OnesCount8(f)&1 != 0 {
		f |= 1 << bitParity
	}
	return Frame(f)
}

// EncodeByte splits 8 feedback bits into the low and the high nibble frame,
// in transmission order.
func EncodeByte(value uint8, typ DeviceType) (lo, hi Frame) {
	return EncodeNibble(LowBits, value, typ), EncodeNibble(HighBits, value>>4, typ)
}

// Nibble returns which half the frame carries.
func (f Frame) Nibble() Nibble {
	if f&(1<<bitNibble) != 0 {
		return HighBits
	}
	return LowBits
}

// Data returns the 4 feedback bits in natural order.
func (f Frame) Data() uint8 {
	return reverse4(uint8(f) >> dataShift)
}

// Type returns the device type from the TT bits.
func (f Frame) Type() DeviceType {
	if f&(1<<bitTT1) != 0 {
		return Feedback
	}
	return Switch
}

// ParityOK checks the frame has an even number of bits set.
func (f Frame) ParityOK() bool {
	return bits.OnesCount8(uint8(f))&1 == 0
}

// String implements fmt.Stringer.
func (f Frame) String() string {
	return fmt.Sprintf("%02x(%s %s %04b)", uint8(f), f.Type(), f.Nibble(), f.Data())
}

// DecodeByte reassembles the 8 feedback bits from a low and high frame.
func DecodeByte(lo, hi Frame) (uint8, error) {
	if !lo.ParityOK() || !hi.ParityOK() {
		return 0, ErrParity
	}
	if lo.Nibble() != LowBits || hi.Nibble() != HighBits {
		return 0, ErrNibbleOrder
	}
	return lo.Data() | hi.Data()<<4, nil
}
