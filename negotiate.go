package hm5065

// Format is the pixel encoding and resolution of the output pipe
type Format struct {
	Code       PixelCode
	Colorspace Colorspace
	Width      uint32
	Height     uint32
}

// Interval is the frame interval in seconds, Numerator/Denominator
type Interval struct {
	Numerator   uint32
	Denominator uint32
}

// FrameRate returns the whole number of frames per second, 0 for an
// unconstrained interval
func (i Interval) FrameRate() uint32 {

	if i.Numerator == 0 {
		return 0
	}

	return i.Denominator / i.Numerator
}

// negotiateFormat maps a requested format onto the closest supported one. An
// unknown pixel code falls back to the default encoding. The frame size is
// the largest table entry not exceeding the requested width and height whose
// area fits in the pixel budget of one frame at interval. fallback reports
// that nothing fitted and the smallest size was used.
func negotiateFormat(req Format, interval Interval, maxPixelRate uint32) (f Format, fallback bool) {

	pf, ok := findFormat(req.Code)

	if !ok {
		pf = pixelFormats[0]
	}

	den := uint64(interval.Denominator)

	if den == 0 {
		den = 1
	}

	maxArea := uint64(maxPixelRate) * uint64(interval.Numerator) / den

	size := frameSizes[len(frameSizes)-1]
	fallback = true

	for _, fs := range frameSizes {
		if fs.Area() <= maxArea && fs.Width <= req.Width && fs.Height <= req.Height {
			size = fs
			fallback = false
			break
		}
	}

	return Format{
		Code:       pf.Code,
		Colorspace: pf.Colorspace,
		Width:      size.Width,
		Height:     size.Height,
	}, fallback
}

// negotiateInterval turns a requested interval into a whole frame rate
// clamped to [1, FrameRateMax] and to what the pixel clock sustains at the
// resolution in cur. A zero numerator asks for the fastest rate.
func negotiateInterval(req Interval, cur Format, maxPixelRate uint32) Interval {

	var rate uint32

	if req.Numerator == 0 {
		rate = FrameRateMax
	} else {
		rate = req.Denominator / req.Numerator
	}

	rate = min(max(rate, 1), FrameRateMax)

	if maxRate := maxFrameRate(cur, maxPixelRate); rate > maxRate {
		rate = maxRate
	}

	return Interval{Numerator: 1, Denominator: rate}
}

// maxFrameRate returns the fastest whole frame rate the pixel clock sustains
// at the resolution of f. It never drops below 1 so the stored interval stays
// valid.
func maxFrameRate(f Format, maxPixelRate uint32) uint32 {

	area := uint64(f.Width) * uint64(f.Height)

	if area == 0 {
		return FrameRateMax
	}

	rate := uint64(maxPixelRate) / area

	if rate < 1 {
		return 1
	}

	if rate > uint64(FrameRateMax) {
		return FrameRateMax
	}

	return uint32(rate)
}
