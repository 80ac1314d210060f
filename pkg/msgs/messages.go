package msgs

import (
	"fmt"

	"github.com/golang/protobuf/proto"

	fx "github.com/robotalks/rsbus/pkg/framework"
	"github.com/robotalks/rsbus/pkg/rsbus"
)

// Status is the event publishing the diagnostics of a device.
type Status struct {
	DeviceId         string              `protobuf:"bytes,1,opt,name=device_id,json=deviceId,proto3" json:"device_id,omitempty"`
	SignalOk         bool                `protobuf:"varint,2,opt,name=signal_ok,json=signalOk,proto3" json:"signal_ok,omitempty"`
	Cycles           uint32              `protobuf:"varint,3,opt,name=cycles,proto3" json:"cycles,omitempty"`
	ParityErrors     uint32              `protobuf:"varint,4,opt,name=parity_errors,json=parityErrors,proto3" json:"parity_errors,omitempty"`
	PulseCountErrors uint32              `protobuf:"varint,5,opt,name=pulse_count_errors,json=pulseCountErrors,proto3" json:"pulse_count_errors,omitempty"`
	Transmitted      uint32              `protobuf:"varint,6,opt,name=transmitted,proto3" json:"transmitted,omitempty"`
	Connections      []*ConnectionStatus `protobuf:"bytes,7,rep,name=connections,proto3" json:"connections,omitempty"`
	LoopOverruns     uint64              `protobuf:"varint,8,opt,name=loop_overruns,json=loopOverruns,proto3" json:"loop_overruns,omitempty"`
}

// NewStatus creates a Status from the bus diagnostics.
func NewStatus(deviceID string, stats rsbus.Stats) *Status {
	s := &Status{
		DeviceId:         deviceID,
		SignalOk:         stats.SignalOK,
		Cycles:           stats.Cycles,
		ParityErrors:     stats.ParityErrors,
		PulseCountErrors: stats.PulseCountErrors,
		Transmitted:      stats.Transmitted,
	}
	for _, c := range stats.Connections {
		s.Connections = append(s.Connections, &ConnectionStatus{
			Address:           uint32(c.Address),
			Type:              c.Type.String(),
			State:             c.State.String(),
			Queued:            uint32(c.Queued),
			FeedbackRequested: c.FeedbackRequested,
		})
	}
	return s
}

// Connection finds the status of an address.
func (m *Status) Connection(address uint32) *ConnectionStatus {
	for _, c := range m.Connections {
		if c.Address == address {
			return c
		}
	}
	return nil
}

// NewMessage implements Message.
func (m *Status) NewMessage() fx.Message { return &Status{} }

// TypeID implements SerializableMessage.
func (m *Status) TypeID() uint32 { return StatusEventTypeID }

// Serializable implements SerializableMessage.
func (m *Status) Serializable() proto.Message { return m }

// ProtoMessage implements proto.Message.
func (m *Status) ProtoMessage() {}

// Reset implements proto.Message.
func (m *Status) Reset() { *m = Status{} }

// String implements proto.Message.
func (m *Status) String() string { return proto.CompactTextString(m) }

// ConnectionStatus is the state of a single address.
type ConnectionStatus struct {
	Address           uint32 `protobuf:"varint,1,opt,name=address,proto3" json:"address,omitempty"`
	Type              string `protobuf:"bytes,2,opt,name=type,proto3" json:"type,omitempty"`
	State             string `protobuf:"bytes,3,opt,name=state,proto3" json:"state,omitempty"`
	Queued            uint32 `protobuf:"varint,4,opt,name=queued,proto3" json:"queued,omitempty"`
	FeedbackRequested bool   `protobuf:"varint,5,opt,name=feedback_requested,json=feedbackRequested,proto3" json:"feedback_requested,omitempty"`
	// Feedback is the last 8 feedback bits announced.
	Feedback uint32 `protobuf:"varint,6,opt,name=feedback,proto3" json:"feedback,omitempty"`
}

// ProtoMessage implements proto.Message.
func (m *ConnectionStatus) ProtoMessage() {}

// Reset implements proto.Message.
func (m *ConnectionStatus) Reset() { *m = ConnectionStatus{} }

// String implements proto.Message.
func (m *ConnectionStatus) String() string { return proto.CompactTextString(m) }

// StatusQuery asks the device to publish its Status immediately.
type StatusQuery struct {
}

// NewMessage implements Message.
func (m *StatusQuery) NewMessage() fx.Message { return &StatusQuery{} }

// TypeID implements SerializableMessage.
func (m *StatusQuery) TypeID() uint32 { return StatusQueryTypeID }

// Serializable implements SerializableMessage.
func (m *StatusQuery) Serializable() proto.Message { return m }

// ProtoMessage implements proto.Message.
func (m *StatusQuery) ProtoMessage() {}

// Reset implements proto.Message.
func (m *StatusQuery) Reset() { *m = StatusQuery{} }

// String implements proto.Message.
func (m *StatusQuery) String() string { return proto.CompactTextString(m) }

// Nibble names accepted by FeedbackCommand.
const (
	NibbleLow  = "low"
	NibbleHigh = "high"
)

// FeedbackCommand changes the feedback bits of an address.
// With an empty Nibble, Value carries all 8 bits, otherwise the 4 bits of
// the named half.
type FeedbackCommand struct {
	Address uint32 `protobuf:"varint,1,opt,name=address,proto3" json:"address,omitempty"`
	Value   uint32 `protobuf:"varint,2,opt,name=value,proto3" json:"value,omitempty"`
	Nibble  string `protobuf:"bytes,3,opt,name=nibble,proto3" json:"nibble,omitempty"`
}

// Validate checks the ranges of the fields.
func (m *FeedbackCommand) Validate() error {
	if m.Address < rsbus.MinAddress || m.Address > rsbus.MaxAddress {
		return &rsbus.AddressError{Address: int(m.Address)}
	}
	switch m.Nibble {
	case "":
		if m.Value > 0xff {
			return fmt.Errorf("feedback value %d exceeds 8 bits", m.Value)
		}
	case NibbleLow, NibbleHigh:
		if m.Value > 0x0f {
			return fmt.Errorf("feedback value %d exceeds 4 bits", m.Value)
		}
	default:
		return fmt.Errorf("invalid nibble %q", m.Nibble)
	}
	return nil
}

// Half returns the nibble selected by the command, or false for 8 bits.
func (m *FeedbackCommand) Half() (rsbus.Nibble, bool) {
	switch m.Nibble {
	case NibbleLow:
		return rsbus.LowBits, true
	case NibbleHigh:
		return rsbus.HighBits, true
	}
	return rsbus.LowBits, false
}

// NewMessage implements Message.
func (m *FeedbackCommand) NewMessage() fx.Message { return &FeedbackCommand{} }

// TypeID implements SerializableMessage.
func (m *FeedbackCommand) TypeID() uint32 { return FeedbackCommandTypeID }

// Serializable implements SerializableMessage.
func (m *FeedbackCommand) Serializable() proto.Message { return m }

// ProtoMessage implements proto.Message.
func (m *FeedbackCommand) ProtoMessage() {}

// Reset implements proto.Message.
func (m *FeedbackCommand) Reset() { *m = FeedbackCommand{} }

// String implements proto.Message.
func (m *FeedbackCommand) String() string { return proto.CompactTextString(m) }

// GroupRSBus is the type ID group of all RS-bus messages.
const GroupRSBus uint32 = 0x00010000

// TypeIDs
const (
	StatusEventTypeID     uint32 = GroupRSBus | TypeIDKindEvent | 0x0000
	StatusQueryTypeID     uint32 = GroupRSBus | 0x0000
	FeedbackCommandTypeID uint32 = GroupRSBus | 0x0001
)
