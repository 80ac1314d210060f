package rsbus

import (
	"errors"
	"fmt"
)

var (
	// ErrParity indicates a frame doesn't have even parity.
	ErrParity = errors.New("parity error")
	// ErrNibbleOrder indicates the frames are not a low/high nibble pair.
	ErrNibbleOrder = errors.New("nibble order mismatch")
	// ErrNoSource indicates a Bus is created without a PulseSource.
	ErrNoSource = errors.New("pulse source required")
	// ErrAddressInUse indicates an address is connected twice.
	ErrAddressInUse = errors.New("address already connected")
)

// AddressError reports an address outside of the polled range.
type AddressError struct {
	Address int
}

// Error implements error.
func (e *AddressError) Error() string {
	return fmt.Sprintf("invalid RS-bus address %d, must be %d-%d", e.Address, MinAddress, MaxAddress)
}
