package hm5065

import (
	"fmt"

	"periph.io/x/conn/v3/physic"
)

// PixelCode is a media bus pixel encoding as seen by the host receiver. The
// values match the Linux MEDIA_BUS_FMT_* codes.
type PixelCode uint32

const (
	CodeRGB555_2X8_PADHI_BE PixelCode = 0x1003
	CodeRGB565_2X8_BE       PixelCode = 0x1007
	CodeUYVY8_2X8           PixelCode = 0x2006
	CodeVYUY8_2X8           PixelCode = 0x2007
	CodeYUYV8_2X8           PixelCode = 0x2008
	CodeYVYU8_2X8           PixelCode = 0x2009
)

// String implements Stringer for PixelCode
func (c PixelCode) String() string {
	switch c {
	case CodeRGB555_2X8_PADHI_BE:
		return "RGB555_2X8_PADHI_BE"
	case CodeRGB565_2X8_BE:
		return "RGB565_2X8_BE"
	case CodeUYVY8_2X8:
		return "UYVY8_2X8"
	case CodeVYUY8_2X8:
		return "VYUY8_2X8"
	case CodeYUYV8_2X8:
		return "YUYV8_2X8"
	case CodeYVYU8_2X8:
		return "YVYU8_2X8"
	default:
		return fmt.Sprintf("PixelCode(0x%04x)", uint32(c))
	}
}

// Colorspace of the pixel data, V4L2_COLORSPACE_* numbering
type Colorspace uint32

const ColorspaceSRGB Colorspace = 8

// PixelFormat describes how a host-visible encoding is programmed into the
// sensor.
type PixelFormat struct {
	Code       PixelCode
	Colorspace Colorspace
	// DataFormat is written to P0_DATA_FORMAT
	DataFormat uint8
	// YCbCrOrder is written to YCRCB_ORDER when NeedsYCbCrSetup is set
	YCbCrOrder      uint8
	NeedsYCbCrSetup bool
}

// FrameSize is a supported output resolution. SizeSelect is the matching
// preset code for P0_IMAGE_SIZE, or IMAGE_SIZE_MANUAL when the sensor has no
// preset for it.
type FrameSize struct {
	Width      uint32
	Height     uint32
	SizeSelect uint8
}

// Area returns width*height
func (f FrameSize) Area() uint64 {
	return uint64(f.Width) * uint64(f.Height)
}

// pixelFormats lists the supported encodings, first entry is the default
var pixelFormats = [...]PixelFormat{
	{CodeUYVY8_2X8, ColorspaceSRGB, DATA_FORMAT_YCBCR_JFIF, YCRCB_ORDER_CB_Y_CR_Y, true},
	{CodeVYUY8_2X8, ColorspaceSRGB, DATA_FORMAT_YCBCR_JFIF, YCRCB_ORDER_CR_Y_CB_Y, true},
	{CodeYUYV8_2X8, ColorspaceSRGB, DATA_FORMAT_YCBCR_JFIF, YCRCB_ORDER_Y_CB_Y_CR, true},
	{CodeYVYU8_2X8, ColorspaceSRGB, DATA_FORMAT_YCBCR_JFIF, YCRCB_ORDER_Y_CR_Y_CB, true},
	{CodeRGB555_2X8_PADHI_BE, ColorspaceSRGB, DATA_FORMAT_RGB_555, 0, false},
	{CodeRGB565_2X8_BE, ColorspaceSRGB, DATA_FORMAT_RGB_565, 0, false},
}

// frameSizes must stay sorted by strictly decreasing area, negotiation takes
// the first fitting entry.
var frameSizes = [...]FrameSize{
	{2592, 1944, IMAGE_SIZE_5MP},
	{1920, 1080, IMAGE_SIZE_MANUAL},
	{1600, 1200, IMAGE_SIZE_UXGA},
	{1280, 1024, IMAGE_SIZE_SXGA},
	{1280, 720, IMAGE_SIZE_MANUAL},
	{800, 600, IMAGE_SIZE_SVGA},
	{640, 480, IMAGE_SIZE_VGA},
	{352, 288, IMAGE_SIZE_CIF},
	{320, 240, IMAGE_SIZE_QVGA},
	{176, 144, IMAGE_SIZE_QCIF},
	{160, 120, IMAGE_SIZE_QQVGA},
	{88, 72, IMAGE_SIZE_QQCIF},
}

// clockLUT maps an external clock frequency to the sensor's predefined PLL
// configuration
type clockLUT struct {
	freq physic.Frequency
	id   uint8
}

var clockLUTs = [...]clockLUT{
	{12 * physic.MegaHertz, 0x10},
	{13 * physic.MegaHertz, 0x11},
	{13500 * physic.KiloHertz, 0x12},
	{14400 * physic.KiloHertz, 0x13},
	{18 * physic.MegaHertz, 0x14},
	{19200 * physic.KiloHertz, 0x15},
	{24 * physic.MegaHertz, 0x16},
	{26 * physic.MegaHertz, 0x17},
	{27 * physic.MegaHertz, 0x18},
}

// FindClockLUT returns the PLL LUT id for an external clock frequency. Only
// exact matches are accepted.
func FindClockLUT(freq physic.Frequency) (uint8, bool) {

	for _, l := range clockLUTs {
		if l.freq == freq {
			return l.id, true
		}
	}

	return 0, false
}

// findFormat returns the table entry for code
func findFormat(code PixelCode) (PixelFormat, bool) {

	for _, f := range pixelFormats {
		if f.Code == code {
			return f, true
		}
	}

	return PixelFormat{}, false
}

// PixelFormats returns the supported encodings in table order
func PixelFormats() []PixelFormat {
	return append([]PixelFormat(nil), pixelFormats[:]...)
}

// FrameSizes returns the supported frame sizes, largest first
func FrameSizes() []FrameSize {
	return append([]FrameSize(nil), frameSizes[:]...)
}

// EnumPixelCode returns the i-th supported pixel code
func EnumPixelCode(i int) (PixelCode, error) {

	if i < 0 || i >= len(pixelFormats) {
		return 0, fmt.Errorf("pixel code index %d: %w", i, ErrInvalidArgument)
	}

	return pixelFormats[i].Code, nil
}

// EnumFrameSize returns the i-th supported frame size
func EnumFrameSize(i int) (FrameSize, error) {

	if i < 0 || i >= len(frameSizes) {
		return FrameSize{}, fmt.Errorf("frame size index %d: %w", i, ErrInvalidArgument)
	}

	return frameSizes[i], nil
}
