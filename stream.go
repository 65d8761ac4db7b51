package hm5065

import "fmt"

// SetStreaming starts or stops the sensor output. Starting commits a pending
// format or frame interval change to the hardware before issuing the run
// command. Requesting the state already held is a no-op. On failure the
// streaming state is left as it was.
func (h *HM5065) SetStreaming(enable bool) error {

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.streaming == enable {
		return nil
	}

	if !h.powered {
		return ErrNotPowered
	}

	if enable {
		return h.startStreaming()
	}

	return h.stopStreaming()
}

// Streaming reports whether the sensor is streaming
func (h *HM5065) Streaming() bool {

	h.mu.Lock()
	defer h.mu.Unlock()

	return h.streaming
}

// startStreaming commits pending mode changes and sends the run command
func (h *HM5065) startStreaming() error {

	h.log.Print("Start streaming")

	if h.pendingModeChange {
		if err := h.setupMode(); err != nil {
			h.setState(StateError)
			return fmt.Errorf("setup mode: %w", err)
		}
	}

	if err := h.writeReg(USER_COMMAND, USER_COMMAND_RUN); err != nil {
		h.setState(StateError)
		return err
	}

	h.streaming = true
	h.setState(StateStreaming)

	return nil
}

// stopStreaming sends the stop command
func (h *HM5065) stopStreaming() error {

	h.log.Print("Stop streaming")

	if err := h.writeReg(USER_COMMAND, USER_COMMAND_STOP); err != nil {
		h.setState(StateError)
		return err
	}

	h.streaming = false
	h.setState(StateIdle)

	return nil
}

// setupMode programs the configured format and frame rate into pipe setup
// bank 0 and clears the pending change flag. The flag stays set if any write
// fails.
func (h *HM5065) setupMode() error {

	pf, ok := findFormat(h.format.Code)

	if !ok {
		return fmt.Errorf("pixel format %s: %w", h.format.Code, ErrUnsupported)
	}

	h.pendingModeChange = true

	if err := h.writeReg(P0_SENSOR_MODE, SENSOR_MODE_FULLSIZE); err != nil {
		return err
	}

	if err := h.writeReg(P0_IMAGE_SIZE, IMAGE_SIZE_MANUAL); err != nil {
		return err
	}

	if err := h.writeReg16Bit(P0_MANUAL_HSIZE, uint16(h.format.Width)); err != nil {
		return err
	}

	if err := h.writeReg16Bit(P0_MANUAL_VSIZE, uint16(h.format.Height)); err != nil {
		return err
	}

	if err := h.writeReg(P0_DATA_FORMAT, pf.DataFormat); err != nil {
		return err
	}

	if pf.NeedsYCbCrSetup {
		if err := h.writeReg(YCRCB_ORDER, pf.YCbCrOrder); err != nil {
			return err
		}
	}

	if err := h.writeReg16Bit(DESIRED_FRAME_RATE_NUM, uint16(h.interval.Denominator)); err != nil {
		return err
	}

	h.pendingModeChange = false

	h.log.Printf("mode %s %dx%d @ %d fps programmed", h.format.Code,
		h.format.Width, h.format.Height, h.interval.Denominator)

	return nil
}
