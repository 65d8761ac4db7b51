package hm5065

import "encoding/binary"

// Registers are u8 unless noted otherwise.
const (
	// Device parameters
	DEVICE_ID       uint16 = 0x0000 // u16
	FIRMWARE_VSN    uint16 = 0x0002
	PATCH_VSN       uint16 = 0x0003
	EXCLOCKLUT      uint16 = 0x0009 // standby
	INT_EVENT_FLAG  uint16 = 0x000A
	DEVICE_ID_VALUE uint16 = 0x039E

	// Mode manager
	USER_COMMAND               uint16 = 0x0010
	STATE                      uint16 = 0x0011
	ACTIVE_PIPE_SETUP_BANK     uint16 = 0x0012
	NUMBER_OF_FRAMES_STREAMED  uint16 = 0x0014 // ro
	REQUIRED_STREAM_LENGTH     uint16 = 0x0015
	CSI_ENABLE                 uint16 = 0x0016 // standby
	P0_SENSOR_MODE             uint16 = 0x0040
	P0_IMAGE_SIZE              uint16 = 0x0041
	P0_MANUAL_HSIZE            uint16 = 0x0042 // u16
	P0_MANUAL_VSIZE            uint16 = 0x0044 // u16
	P0_DATA_FORMAT             uint16 = 0x0046
	P0_GAMMA_GAIN              uint16 = 0x0049 // 0-31
	P0_GAMMA_INTERPOLATION     uint16 = 0x004A // 0-16
	P0_PEAKING_GAIN            uint16 = 0x004C // 0-63
	P0_JPEG_SQUEEZE_MODE       uint16 = 0x004D
	P0_JPEG_TARGET_FILE_SIZE   uint16 = 0x004E // u16, kB
	P0_JPEG_IMAGE_QUALITY      uint16 = 0x0050
	P1_SENSOR_MODE             uint16 = 0x0060
	P1_IMAGE_SIZE              uint16 = 0x0061
	P1_MANUAL_HSIZE            uint16 = 0x0062 // u16
	P1_MANUAL_VSIZE            uint16 = 0x0064 // u16
	P1_DATA_FORMAT             uint16 = 0x0066
	P1_GAMMA_GAIN              uint16 = 0x0069
	P1_GAMMA_INTERPOLATION     uint16 = 0x006A
	P1_PEAKING_GAIN            uint16 = 0x006C
	P1_JPEG_SQUEEZE_MODE       uint16 = 0x006D
	P1_JPEG_TARGET_FILE_SIZE   uint16 = 0x006E // u16, kB
	P1_JPEG_IMAGE_QUALITY      uint16 = 0x0070
	CONTRAST                   uint16 = 0x0080 // 0-200
	COLOR_SATURATION           uint16 = 0x0081 // 0-200
	BRIGHTNESS                 uint16 = 0x0082 // 0-200
	HORIZONTAL_MIRROR          uint16 = 0x0083 // 0,1
	VERTICAL_FLIP              uint16 = 0x0084 // 0,1
	YCRCB_ORDER                uint16 = 0x0085
	EXTERNAL_CLOCK_FREQ_MHZ    uint16 = 0x00B0 // fp16, 6-27, standby
	TARGET_PLL_OUTPUT          uint16 = 0x00B2 // fp16, 450-1000, standby
	DESIRED_FRAME_RATE_NUM     uint16 = 0x00C8 // u16
	DESIRED_FRAME_RATE_DEN     uint16 = 0x00CA
	REQUESTED_FRAME_RATE_HZ    uint16 = 0x00D8 // fp16
	MAX_FRAME_RATE_HZ          uint16 = 0x00DA // fp16
	MIN_FRAME_RATE_HZ          uint16 = 0x00DC // fp16
	EXPOSURE_MODE              uint16 = 0x0128
	EXPOSURE_METERING          uint16 = 0x0129
	MANUAL_EXPOSURE_TIME_US    uint16 = 0x012C // fp16
	COLD_START_DESIRED_TIME_US uint16 = 0x012E // fp16, standby
	EXPOSURE_COMPENSATION      uint16 = 0x0130 // s8, -7 - +7
	DIRECT_MODE_DIGITAL_GAIN   uint16 = 0x0138 // fp16
	FREEZE_AUTO_EXPOSURE       uint16 = 0x0142 // 0,1
	ANTI_FLICKER_MODE          uint16 = 0x0148 // 0,1
	DIGITAL_GAIN_FLOOR         uint16 = 0x015C // fp16
	DIGITAL_GAIN_CEILING       uint16 = 0x015E // fp16
	ENABLE_DETECT              uint16 = 0x0190 // flicker detect, 0,1
	FLICKER_FREQUENCY          uint16 = 0x019C // fp16
	WB_MODE                    uint16 = 0x01A0
	WB_MANUAL_RED_GAIN         uint16 = 0x01A1
	WB_MANUAL_GREEN_GAIN       uint16 = 0x01A2
	WB_MANUAL_BLUE_GAIN        uint16 = 0x01A3
	WB_MISC_SETTINGS           uint16 = 0x01A4
	WB_HUE_R_BIAS              uint16 = 0x01A5 // fp16
	WB_HUE_B_BIAS              uint16 = 0x01A7 // fp16
	WB_STATUS                  uint16 = 0x01C0
	WHITE_BALANCE_STABLE       uint16 = 0x0291 // 0,1
	EXPOSURE_STABLE            uint16 = 0x0292 // 0,1
	STABLE                     uint16 = 0x0294 // 0,1
	FLASH_MODE                 uint16 = 0x02D0 // 0,1
	ENABLE_TEST_PATTERN        uint16 = 0x05D8 // 0,1
	TEST_PATTERN               uint16 = 0x05D9
	TESTDATA_RED               uint16 = 0x4304 // u16, 0-1023
	TESTDATA_GREEN_R           uint16 = 0x4308 // u16, 0-1023
	TESTDATA_BLUE              uint16 = 0x430C // u16, 0-1023
	TESTDATA_GREEN_B           uint16 = 0x4310 // u16, 0-1023
	PRESET_LOADER_ENABLE       uint16 = 0x0638 // 0,1, standby
	INDIVIDUAL_PRESET          uint16 = 0x0639 // standby
	JPEG_STATUS                uint16 = 0x0649
	JPEG_RESTART               uint16 = 0x064A
	JPEG_BYTE_SENT             uint16 = 0x0653 // u32
)

// Register values
const (
	USER_COMMAND_STOP     uint8 = 0x00
	USER_COMMAND_RUN      uint8 = 0x01
	USER_COMMAND_POWEROFF uint8 = 0x02

	PIPE_SETUP_BANK_0 uint8 = 0x00
	PIPE_SETUP_BANK_1 uint8 = 0x01

	DATA_FORMAT_YCBCR_JFIF       uint8 = 0x00
	DATA_FORMAT_YCBCR_REC601     uint8 = 0x01
	DATA_FORMAT_YCBCR_CUSTOM     uint8 = 0x02
	DATA_FORMAT_RGB_565          uint8 = 0x03
	DATA_FORMAT_RGB_565_CUSTOM   uint8 = 0x04
	DATA_FORMAT_RGB_444          uint8 = 0x05
	DATA_FORMAT_RGB_555          uint8 = 0x06
	DATA_FORMAT_RAW10ITU10       uint8 = 0x07
	DATA_FORMAT_RAW10ITU8        uint8 = 0x08
	DATA_FORMAT_JPEG             uint8 = 0x09
	YCRCB_ORDER_CB_Y_CR_Y        uint8 = 0x00
	YCRCB_ORDER_CR_Y_CB_Y        uint8 = 0x01
	YCRCB_ORDER_Y_CB_Y_CR        uint8 = 0x02
	YCRCB_ORDER_Y_CR_Y_CB        uint8 = 0x03
	IMAGE_SIZE_5MP               uint8 = 0x00
	IMAGE_SIZE_UXGA              uint8 = 0x01
	IMAGE_SIZE_SXGA              uint8 = 0x02
	IMAGE_SIZE_SVGA              uint8 = 0x03
	IMAGE_SIZE_VGA               uint8 = 0x04
	IMAGE_SIZE_CIF               uint8 = 0x05
	IMAGE_SIZE_QVGA              uint8 = 0x06
	IMAGE_SIZE_QCIF              uint8 = 0x07
	IMAGE_SIZE_QQVGA             uint8 = 0x08
	IMAGE_SIZE_QQCIF             uint8 = 0x09
	IMAGE_SIZE_MANUAL            uint8 = 0x0A
	SENSOR_MODE_FULLSIZE         uint8 = 0x00
	SENSOR_MODE_BINNING_2X2      uint8 = 0x01
	SENSOR_MODE_BINNING_4X4      uint8 = 0x02
	SENSOR_MODE_SUBSAMPLING_2X2  uint8 = 0x03
	SENSOR_MODE_SUBSAMPLING_4X4  uint8 = 0x04
	WB_MISC_SETTINGS_FREEZE_ALGO uint8 = 1 << 2
	WB_STATUS_STABLE             uint8 = 1 << 0
)

// Conn is the register connection to the sensor. Tx writes w and then reads
// len(r) bytes as one combined bus transaction; r may be empty. *i2c.Dev from
// periph.io/x/conn/v3/i2c satisfies it.
type Conn interface {
	Tx(w, r []byte) error
}

// writeRegs writes data to consecutive registers starting at reg. The address
// and payload go out as one bus write so the device sees a single contiguous
// transfer.
func (h *HM5065) writeRegs(reg uint16, data []byte) error {

	buf := make([]byte, 2, len(data)+2)
	binary.BigEndian.PutUint16(buf, reg)
	buf = append(buf, data...)

	if err := h.c.Tx(buf, nil); err != nil {
		h.log.Printf("write 0x%04x % x failed: %v", reg, data, err)
		return &BusError{Op: "write", Addr: reg, Size: len(data), Err: err}
	}

	return nil
}

// readRegs reads count bytes starting at reg. The address write and data read
// are chained into one transaction so no other traffic can interleave.
func (h *HM5065) readRegs(reg uint16, count int) ([]byte, error) {

	addr := []byte{byte(reg >> 8), byte(reg)}
	buf := make([]byte, count)

	if err := h.c.Tx(addr, buf); err != nil {
		h.log.Printf("read 0x%04x (%d bytes) failed: %v", reg, count, err)
		return nil, &BusError{Op: "read", Addr: reg, Size: count, Err: err}
	}

	return buf, nil
}

// writeReg writes a 8 bit value to the register
func (h *HM5065) writeReg(reg uint16, value uint8) error {
	return h.writeRegs(reg, []byte{value})
}

// writeReg16Bit writes a 16 bit value to the register
func (h *HM5065) writeReg16Bit(reg uint16, value uint16) error {
	return h.writeRegs(reg, binary.BigEndian.AppendUint16(nil, value))
}

// writeReg32Bit writes a 32 bit value to the register
func (h *HM5065) writeReg32Bit(reg uint16, value uint32) error {
	return h.writeRegs(reg, binary.BigEndian.AppendUint32(nil, value))
}

// readReg reads an 8-bit value from a 16-bit register.
func (h *HM5065) readReg(reg uint16) (uint8, error) {

	buf, err := h.readRegs(reg, 1)

	if err != nil {
		return 0, err
	}

	return buf[0], nil
}

// readReg16Bit reads a 16-bit value from a 16-bit register.
func (h *HM5065) readReg16Bit(reg uint16) (uint16, error) {

	buf, err := h.readRegs(reg, 2)

	if err != nil {
		return 0, err
	}

	return binary.BigEndian.Uint16(buf), nil
}

// readReg32Bit reads a 32-bit value from a 16-bit register.
func (h *HM5065) readReg32Bit(reg uint16) (uint32, error) {

	buf, err := h.readRegs(reg, 4)

	if err != nil {
		return 0, err
	}

	return binary.BigEndian.Uint32(buf), nil
}
