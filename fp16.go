package hm5065

import "math/bits"

// The sensor controller stores real numbers as 16 bit floats: 1 sign bit, a
// 6 bit exponent biased by 31 and a 9 bit mantissa with an implicit leading
// one.
//
//	s eeeeee mmmmmmmmm  =  (s ? -1 : 1) * 1.mmmmmmmmm * 2^(eeeeee-31)
//
// Values cross the driver boundary in milli units (value * 1000) so the
// conversion is integer only and bit-for-bit reproducible.
const (
	fp16SignBit  = 0x8000
	fp16Mantissa = 0x1ff
	fp16Implicit = 0x200
	fp16Bias     = 31
)

// MilliFromFP16 converts a sensor float to milli units. Decoding is exact up
// to the truncation of the final shifts.
func MilliFromFP16(fp uint16) int64 {

	exp := int((fp>>9)&0x3f) - fp16Bias
	val := int64(fp16Implicit|(fp&fp16Mantissa)) * 1000

	if exp > 0 {
		val <<= exp
	} else if exp < 0 {
		val >>= -exp
	}

	val >>= 9

	if fp&fp16SignBit != 0 {
		val = -val
	}

	return val
}

// MilliToFP16 converts a value in milli units to a sensor float. The mantissa
// is truncated to 9 bits so MilliFromFP16(MilliToFP16(x)) only reproduces x to
// roughly three significant digits.
func MilliToFP16(milli int32) uint16 {

	if milli == 0 {
		return 0
	}

	var sign uint16
	abs := int64(milli)

	if abs < 0 {
		abs = -abs
		sign = fp16SignBit
	}

	// scale by 1024/1000, rounding half up
	v := uint64(abs) * 1024
	rem := v % 1000
	v /= 1000

	if rem >= 500 {
		v++
	}

	fls := bits.Len64(v) - 1
	exp := uint16(fp16Bias + fls - 10)

	var m uint64

	if fls > 9 {
		m = v >> (fls - 9)
	} else {
		m = v << (9 - fls)
	}

	return sign | uint16(m&fp16Mantissa) | exp<<9
}
