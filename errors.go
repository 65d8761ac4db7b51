package hm5065

import (
	"errors"
	"fmt"
)

var (
	// ErrBusy is returned when a change conflicts with the current streaming
	// or power state. The device state is left untouched.
	ErrBusy = errors.New("device busy")

	// ErrConfiguration is returned when power-on finds a device it cannot
	// drive: wrong device ID or an external clock missing from the clock LUT.
	ErrConfiguration = errors.New("configuration error")

	// ErrUnsupported is returned for controls or encodings the driver does not
	// implement.
	ErrUnsupported = errors.New("unsupported")

	// ErrNotPowered is returned by operations that need the sensor powered.
	ErrNotPowered = errors.New("device not powered")

	// ErrInvalidArgument is returned for out of range arguments.
	ErrInvalidArgument = errors.New("invalid argument")
)

// BusError is a transport failure annotated with the register address and
// operation that failed.
type BusError struct {
	Op   string
	Addr uint16
	Size int
	Err  error
}

// Error implements the error interface
func (e *BusError) Error() string {
	return fmt.Sprintf("bus %s of %d bytes at 0x%04x: %v", e.Op, e.Size, e.Addr, e.Err)
}

// Unwrap returns the underlying bus error
func (e *BusError) Unwrap() error {
	return e.Err
}
