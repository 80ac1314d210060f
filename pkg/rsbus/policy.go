package rsbus

import (
	"fmt"
	"strings"
)

// RetransmitPolicy decides whether a detected bus error demotes the signal,
// which forces every connection to re-announce its complete feedback state.
type RetransmitPolicy uint8

// Retransmission policies.
const (
	// Never keeps the signal, the error is only counted.
	Never RetransmitPolicy = iota
	// IfJustTransmitted drops the signal only if this device placed a
	// frame on the bus in the cycle preceding the error.
	IfJustTransmitted
	// Always drops the signal on every error.
	Always
)

// Default policies per error class.
const (
	DefaultParityPolicy     = IfJustTransmitted
	DefaultPulseCountPolicy = Always
)

var policyNames = map[RetransmitPolicy]string{
	Never:             "never",
	IfJustTransmitted: "if-sent",
	Always:            "always",
}

// String implements fmt.Stringer.
func (p RetransmitPolicy) String() string {
	if name, ok := policyNames[p]; ok {
		return name
	}
	return fmt.Sprintf("RetransmitPolicy(%d)", uint8(p))
}

// Triggers reports whether an error must demote the signal.
func (p RetransmitPolicy) Triggers(justTransmitted bool) bool {
	switch p {
	case IfJustTransmitted:
		return justTransmitted
	case Always:
		return true
	}
	return false
}

// ParseRetransmitPolicy accepts the policy names or their numeric values.
func ParseRetransmitPolicy(s string) (RetransmitPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "never", "0":
		return Never, nil
	case "if-sent", "ifsent", "1":
		return IfJustTransmitted, nil
	case "always", "2":
		return Always, nil
	}
	return Never, fmt.Errorf("invalid retransmit policy %q", s)
}
