package hm5065

import (
	"fmt"
	"strings"
)

// ControlID names a user control
type ControlID int

const (
	ControlTestPattern ControlID = iota
	ControlBrightness
	ControlContrast
	ControlSaturation
	ControlHorizontalMirror
	ControlVerticalFlip
	ControlExposure
	ControlGain
	ControlAutoWhiteBalance
	ControlHue
)

var controlNames = map[ControlID]string{
	ControlTestPattern:      "test_pattern",
	ControlBrightness:       "brightness",
	ControlContrast:         "contrast",
	ControlSaturation:       "saturation",
	ControlHorizontalMirror: "horizontal_mirror",
	ControlVerticalFlip:     "vertical_flip",
	ControlExposure:         "exposure",
	ControlGain:             "gain",
	ControlAutoWhiteBalance: "auto_white_balance",
	ControlHue:              "hue",
}

// String implement Stringer interface for ControlID
func (c ControlID) String() string {

	if n, ok := controlNames[c]; ok {
		return n
	}

	return fmt.Sprintf("control(%d)", int(c))
}

// ParseControl returns the control with the given name
func ParseControl(name string) (ControlID, bool) {

	name = strings.ToLower(strings.TrimSpace(name))

	for id, n := range controlNames {
		if n == name {
			return id, true
		}
	}

	return 0, false
}

// TestPatternNames are the menu entries of ControlTestPattern, indexed by
// control value
var TestPatternNames = []string{
	"Disabled",
	"Horizontal gray scale",
	"Vertical gray scale",
	"Diagonal gray scale",
	"PN28",
	"PN9",
	"Solid color",
	"Color bars",
	"Graduated color bars",
}

// controlInfo describes the range of a control and how it reaches hardware.
// A nil apply marks a control waiting on sensor algorithm support.
type controlInfo struct {
	min, max, def int32
	apply         func(h *HM5065, v int32) error
}

// controlOrder is the order cached values are replayed after power-up
var controlOrder = []ControlID{
	ControlTestPattern,
	ControlBrightness,
	ControlContrast,
	ControlSaturation,
	ControlHorizontalMirror,
	ControlVerticalFlip,
}

var controlInfos = map[ControlID]controlInfo{
	ControlTestPattern:      {0, int32(len(TestPatternNames) - 1), 0, (*HM5065).applyTestPattern},
	ControlBrightness:       {0, 200, 100, regControl(BRIGHTNESS)},
	ControlContrast:         {0, 200, 100, regControl(CONTRAST)},
	ControlSaturation:       {0, 200, 100, regControl(COLOR_SATURATION)},
	ControlHorizontalMirror: {0, 1, 0, regControl(HORIZONTAL_MIRROR)},
	ControlVerticalFlip:     {0, 1, 0, regControl(VERTICAL_FLIP)},
	ControlExposure:         {0, 65535, 0, nil},
	ControlGain:             {0, 1023, 0, nil},
	ControlAutoWhiteBalance: {0, 1, 1, nil},
	ControlHue:              {0, 359, 0, nil},
}

// regControl applies a control by writing its value to a single u8 register
func regControl(reg uint16) func(h *HM5065, v int32) error {
	return func(h *HM5065, v int32) error {
		return h.writeReg(reg, uint8(v))
	}
}

// defaultControls returns the controls replayed after every power-up. Other
// controls join once set, until then the sensor keeps its own defaults.
func defaultControls() map[ControlID]int32 {
	return map[ControlID]int32{
		ControlTestPattern: controlInfos[ControlTestPattern].def,
	}
}

// applyTestPattern enables the pattern generator for any non zero pattern
func (h *HM5065) applyTestPattern(v int32) error {

	enable := uint8(0)

	if v != 0 {
		enable = 1
	}

	if err := h.writeReg(ENABLE_TEST_PATTERN, enable); err != nil {
		return err
	}

	return h.writeReg(TEST_PATTERN, uint8(v))
}

// SetControl sets a control value. If the sensor is not powered the value is
// only cached and is applied right after the next power-up. A value the
// sensor rejected is not cached.
func (h *HM5065) SetControl(id ControlID, value int32) error {

	info, ok := controlInfos[id]

	if !ok || info.apply == nil {
		return fmt.Errorf("control %s: %w", id, ErrUnsupported)
	}

	if value < info.min || value > info.max {
		return fmt.Errorf("control %s value %d outside [%d, %d]: %w",
			id, value, info.min, info.max, ErrInvalidArgument)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.powered {
		if err := info.apply(h, value); err != nil {
			h.setState(StateError)
			return fmt.Errorf("control %s: %w", id, err)
		}
	}

	h.controls[id] = value

	return nil
}

// Control returns the cached value of a control
func (h *HM5065) Control(id ControlID) (int32, error) {

	info, ok := controlInfos[id]

	if !ok || info.apply == nil {
		return 0, fmt.Errorf("control %s: %w", id, ErrUnsupported)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if v, ok := h.controls[id]; ok {
		return v, nil
	}

	return info.def, nil
}

// restoreControls writes every cached control value to the sensor
func (h *HM5065) restoreControls() error {

	for _, id := range controlOrder {
		v, ok := h.controls[id]

		if !ok {
			continue
		}

		if err := controlInfos[id].apply(h, v); err != nil {
			return fmt.Errorf("control %s: %w", id, err)
		}
	}

	return nil
}
