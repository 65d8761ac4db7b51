package hm5065

import (
	"encoding/binary"
	"fmt"
)

// EventFlags is the INT_EVENT_FLAG register, several bits can be set at once
type EventFlags uint8

const (
	EventOpMode     EventFlags = 1 << 0
	EventCamMode    EventFlags = 1 << 1
	EventJPEGStatus EventFlags = 1 << 2
	EventNumFrames  EventFlags = 1 << 3
	EventAFLocked   EventFlags = 1 << 4
)

// Has reports whether all bits of f are set
func (e EventFlags) Has(f EventFlags) bool {
	return e&f == f
}

// SensorState is the mode manager state reported in the STATE register
type SensorState uint8

const (
	SensorStateRaw     SensorState = 0x10
	SensorStateIdle    SensorState = 0x20
	SensorStateRunning SensorState = 0x30
)

// String implement Stringer interface for SensorState
func (s SensorState) String() string {
	switch s {
	case SensorStateRaw:
		return "raw"
	case SensorStateIdle:
		return "idle"
	case SensorStateRunning:
		return "running"
	default:
		return fmt.Sprintf("state(0x%02x)", uint8(s))
	}
}

// Register reads a 1, 2 or 4 byte register
func (h *HM5065) Register(addr uint16, size int) (uint32, error) {

	h.mu.Lock()
	defer h.mu.Unlock()

	switch size {
	case 1:
		v, err := h.readReg(addr)
		return uint32(v), err
	case 2:
		v, err := h.readReg16Bit(addr)
		return uint32(v), err
	case 4:
		return h.readReg32Bit(addr)
	}

	return 0, fmt.Errorf("register size %d: %w", size, ErrInvalidArgument)
}

// SetRegister writes a 1, 2 or 4 byte register. The value must fit in size.
func (h *HM5065) SetRegister(addr uint16, size int, value uint32) error {

	h.mu.Lock()
	defer h.mu.Unlock()

	switch {
	case size == 1 && value <= 0xff:
		return h.writeReg(addr, uint8(value))
	case size == 2 && value <= 0xffff:
		return h.writeReg16Bit(addr, uint16(value))
	case size == 4:
		return h.writeReg32Bit(addr, value)
	}

	return fmt.Errorf("register size %d value 0x%x: %w", size, value, ErrInvalidArgument)
}

// ReadFloat reads a fp16 register and returns its value in milli units
func (h *HM5065) ReadFloat(addr uint16) (int64, error) {

	h.mu.Lock()
	defer h.mu.Unlock()

	v, err := h.readReg16Bit(addr)

	if err != nil {
		return 0, err
	}

	return MilliFromFP16(v), nil
}

// WriteFloat writes a value in milli units to a fp16 register
func (h *HM5065) WriteFloat(addr uint16, milli int32) error {

	h.mu.Lock()
	defer h.mu.Unlock()

	return h.writeReg16Bit(addr, MilliToFP16(milli))
}

// FrameRates are the static frame rate status registers, in milli Hz
type FrameRates struct {
	Requested int64
	Max       int64
	Min       int64
}

// ReportedFrameRates reads the frame rates the sensor computed for the
// programmed mode
func (h *HM5065) ReportedFrameRates() (FrameRates, error) {

	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.powered {
		return FrameRates{}, ErrNotPowered
	}

	// REQUESTED, MAX and MIN are consecutive u16 registers
	buf, err := h.readRegs(REQUESTED_FRAME_RATE_HZ, 6)

	if err != nil {
		return FrameRates{}, err
	}

	return FrameRates{
		Requested: MilliFromFP16(binary.BigEndian.Uint16(buf[0:2])),
		Max:       MilliFromFP16(binary.BigEndian.Uint16(buf[2:4])),
		Min:       MilliFromFP16(binary.BigEndian.Uint16(buf[4:6])),
	}, nil
}

// Events reads the interrupt event flags
func (h *HM5065) Events() (EventFlags, error) {

	h.mu.Lock()
	defer h.mu.Unlock()

	v, err := h.readReg(INT_EVENT_FLAG)

	return EventFlags(v), err
}

// SensorState reads the mode manager state
func (h *HM5065) SensorState() (SensorState, error) {

	h.mu.Lock()
	defer h.mu.Unlock()

	v, err := h.readReg(STATE)

	return SensorState(v), err
}

// LogStatus dumps registers 0x0000-0x00ff to the logger
func (h *HM5065) LogStatus() error {

	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.powered {
		return ErrNotPowered
	}

	buf, err := h.readRegs(0, 256)

	if err != nil {
		return err
	}

	h.log.Printf("HM5065 registers:")

	for i, b := range buf {
		h.log.Printf("%04x: %02x", i, b)
	}

	return nil
}
