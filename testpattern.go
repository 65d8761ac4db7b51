package hm5065

// TestPatternColor is the 10 bit per channel color of the solid color test
// pattern
type TestPatternColor struct {
	Red, GreenR, Blue, GreenB uint16
}

// maxTestData is the largest value a test data channel holds
const maxTestData = 1023

// SetTestPatternColor sets the color shown by the "Solid color" test pattern.
// Channels above 1023 are clipped.
func (h *HM5065) SetTestPatternColor(c TestPatternColor) error {

	h.mu.Lock()
	defer h.mu.Unlock()

	regs := [...]struct {
		reg uint16
		val uint16
	}{
		{TESTDATA_RED, c.Red},
		{TESTDATA_GREEN_R, c.GreenR},
		{TESTDATA_BLUE, c.Blue},
		{TESTDATA_GREEN_B, c.GreenB},
	}

	for _, r := range regs {
		if err := h.writeReg16Bit(r.reg, min(r.val, maxTestData)); err != nil {
			return err
		}
	}

	return nil
}

// TestPatternColor returns the current solid color test pattern color
func (h *HM5065) TestPatternColor() (TestPatternColor, error) {

	h.mu.Lock()
	defer h.mu.Unlock()

	var vals [4]uint16

	for i, reg := range [...]uint16{TESTDATA_RED, TESTDATA_GREEN_R, TESTDATA_BLUE, TESTDATA_GREEN_B} {
		v, err := h.readReg16Bit(reg)

		if err != nil {
			return TestPatternColor{}, err
		}

		vals[i] = v
	}

	return TestPatternColor{vals[0], vals[1], vals[2], vals[3]}, nil
}
