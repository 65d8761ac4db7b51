package hm5065

import (
	"errors"
	"fmt"

	"periph.io/x/conn/v3/gpio"
)

// SetPower powers the sensor up or down. Powering up runs the full bring-up
// sequence, programs the configured mode and replays cached control values,
// so it blocks for tens of milliseconds. A failed power-up leaves the sensor
// fully powered down. Powering down while streaming returns ErrBusy.
func (h *HM5065) SetPower(on bool) error {

	h.mu.Lock()
	defer h.mu.Unlock()

	switch {
	case on && !h.powered:

		if err := h.powerOn(); err != nil {
			h.setState(StateUnpowered)
			return err
		}

		h.powered = true
		h.setState(StateIdle)

		// the sensor lost every register on power down
		if err := h.restoreControls(); err != nil {
			h.setState(StateError)
			return fmt.Errorf("restore controls: %w", err)
		}

	case !on && h.powered:

		if h.streaming {
			return ErrBusy
		}

		err := h.powerOff()
		h.powered = false
		h.pendingModeChange = true
		h.setState(StateUnpowered)

		return err
	}

	return nil
}

// Close stops streaming and powers the sensor down from any state. It is
// safe to call more than once.
func (h *HM5065) Close() error {

	h.mu.Lock()
	defer h.mu.Unlock()

	var errs []error

	if h.streaming {
		if err := h.writeReg(USER_COMMAND, USER_COMMAND_STOP); err != nil {
			errs = append(errs, err)
		}

		h.streaming = false
	}

	if h.powered {
		errs = append(errs, h.powerOff())
		h.powered = false
	}

	h.pendingModeChange = true
	h.setState(StateUnpowered)

	return errors.Join(errs...)
}

// powerOn enables rails and clock, pulses chip enable and configures the
// sensor. Anything enabled before a failure is switched off again.
func (h *HM5065) powerOn() error {

	h.setState(StateConfiguring)
	h.log.Printf("Starting power on")

	if h.supplies != nil {
		if err := h.supplies.Enable(); err != nil {
			return fmt.Errorf("enable supplies: %w", err)
		}
	}

	if err := h.clock.Enable(); err != nil {
		h.unwind(false)
		return fmt.Errorf("enable clock: %w", err)
	}

	if err := h.bringUp(); err != nil {
		h.unwind(true)
		return err
	}

	h.log.Printf("Device powered on")

	return nil
}

// bringUp runs the steps of the power-on sequence that follow clock enable
func (h *HM5065) bringUp() error {

	if err := h.clock.SetRate(h.clockRate); err != nil {
		return fmt.Errorf("set clock rate %s: %w", h.clockRate, err)
	}

	h.sleep(resetPulse)

	if err := h.setChipEnable(false); err != nil {
		return err
	}

	h.sleep(resetPulse)

	if err := h.setChipEnable(true); err != nil {
		return err
	}

	h.sleep(bootSettle)

	if err := h.configure(); err != nil {
		return err
	}

	return h.setupMode()
}

// unwind tears down a partial power-up. Its own failures are only logged,
// the caller reports the error that started the unwind.
func (h *HM5065) unwind(clockOn bool) {

	if clockOn {
		if err := h.clock.Disable(); err != nil {
			h.log.Printf("disable clock: %v", err)
		}
	}

	if err := h.setChipEnable(false); err != nil {
		h.log.Printf("disable chip: %v", err)
	}

	if h.supplies != nil {
		if err := h.supplies.Disable(); err != nil {
			h.log.Printf("disable supplies: %v", err)
		}
	}
}

// powerOff switches off clock, chip enable and rails. Every step runs even if
// an earlier one fails.
func (h *HM5065) powerOff() error {

	h.log.Printf("Starting power off")

	var errs []error

	if err := h.clock.Disable(); err != nil {
		errs = append(errs, fmt.Errorf("disable clock: %w", err))
	}

	if err := h.setChipEnable(false); err != nil {
		errs = append(errs, err)
	}

	if h.supplies != nil {
		if err := h.supplies.Disable(); err != nil {
			errs = append(errs, fmt.Errorf("disable supplies: %w", err))
		}
	}

	return errors.Join(errs...)
}

// setChipEnable drives chip enable and the (inverted) reset line
func (h *HM5065) setChipEnable(enable bool) error {

	h.log.Printf("chip enable=%t", enable)

	if h.chipEnable != nil {
		if err := h.chipEnable.Out(gpio.Level(enable)); err != nil {
			return fmt.Errorf("set chip enable: %w", err)
		}
	}

	if h.reset != nil {
		if err := h.reset.Out(gpio.Level(!enable)); err != nil {
			return fmt.Errorf("set reset: %w", err)
		}
	}

	return nil
}

// configure checks the device identity and selects the PLL setup matching
// the external clock
func (h *HM5065) configure() error {

	id, err := h.readReg16Bit(DEVICE_ID)

	if err != nil {
		return err
	}

	if id != DEVICE_ID_VALUE {
		return fmt.Errorf("unsupported device id 0x%04x: %w", id, ErrConfiguration)
	}

	rate := h.clock.Rate()
	lut, ok := FindClockLUT(rate)

	if !ok {
		return fmt.Errorf("xclk frequency %s has no clock LUT: %w", rate, ErrConfiguration)
	}

	h.log.Printf("xclk %s, clock LUT 0x%02x", rate, lut)

	return h.writeReg(EXCLOCKLUT, lut)
}
