package hm5065

import (
	"fmt"
	"time"
)

// SetTimeout sets how long WaitSensorState polls before giving up
func (h *HM5065) SetTimeout(timeout time.Duration) {

	h.mu.Lock()
	defer h.mu.Unlock()

	h.ioTimeout = timeout
}

// WaitSensorState polls the mode manager until it reports want, for example
// SensorStateRunning after starting a stream. A zero timeout polls forever.
func (h *HM5065) WaitSensorState(want SensorState) error {

	h.mu.Lock()
	defer h.mu.Unlock()

	start := time.Now()

	for {
		v, err := h.readReg(STATE)

		if err != nil {
			return err
		}

		if SensorState(v) == want {
			return nil
		}

		if h.ioTimeout > 0 && time.Since(start) > h.ioTimeout {
			return fmt.Errorf("timeout waiting for sensor state %s, last %s",
				want, SensorState(v))
		}

		h.sleep(time.Millisecond)
	}
}
