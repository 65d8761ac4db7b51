// go-hm5065 is an I2C driver for the Himax HM5065 5MP camera sensor module.
// It powers the sensor up, negotiates the output format and frame rate, and
// starts and stops streaming. Pixel data leaves the sensor on its parallel
// port and is not handled here.
package hm5065

import (
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
)

const (
	// Address is the default address of the sensor on I2C bus
	Address uint16 = 0x1F
	// PixelClockMax is the absolute maximum pixel clock in Hz
	PixelClockMax uint32 = 89000000
	// MaxPixelRate is the number of pixels per second the sensor outputs at
	// PixelClockMax, two clocks per pixel plus blanking overhead
	MaxPixelRate uint32 = PixelClockMax * 10 / 22
	// FrameRateMax is the fastest frame rate the sensor supports
	FrameRateMax uint32 = 120
	// ClockRate is the external clock rate the sensor is run at
	ClockRate = 24 * physic.MegaHertz
	// ClockRateMin and ClockRateMax bound the supported external clock
	ClockRateMin = 6 * physic.MegaHertz
	ClockRateMax = 27 * physic.MegaHertz
)

// power-up timing
const (
	resetPulse  = 2 * time.Millisecond
	bootSettle  = 60 * time.Millisecond
	defaultCode = CodeUYVY8_2X8
)

// Supply switches the sensor power rails as one unit
type Supply interface {
	Enable() error
	Disable() error
}

// Clock is the external clock feeding the sensor
type Clock interface {
	Enable() error
	Disable() error
	SetRate(f physic.Frequency) error
	Rate() physic.Frequency
}

// OutputPin is a digital output line. gpio.PinOut satisfies it.
type OutputPin interface {
	Out(l gpio.Level) error
}

// Opts holds the collaborators and tunables of a sensor instance
type Opts struct {
	// Supplies are the power rails, nil when always on
	Supplies Supply
	// Clock is the external clock, required
	Clock Clock
	// ChipEnable is driven high to enable the chip. Either ChipEnable or
	// Reset must be set.
	ChipEnable OutputPin
	// Reset is driven low to release the chip from reset
	Reset OutputPin
	// ClockRate is the rate requested from Clock on power-up
	ClockRate physic.Frequency
	// MaxPixelRate is the pixel budget per second used for negotiation
	MaxPixelRate uint32
}

// DefaultOpts holds the tunables of a stock HM5065 module
var DefaultOpts = Opts{
	ClockRate:    ClockRate,
	MaxPixelRate: MaxPixelRate,
}

// State is the driver state machine position
type State int

const (
	StateUnpowered State = iota
	StateConfiguring
	StateIdle
	StateStreaming
	// StateError is entered when a bus write to a powered sensor fails and
	// the hardware configuration is unknown. The next successful stream
	// transition or power cycle leaves it.
	StateError
)

// String implement Stringer interface for State
func (s State) String() string {
	switch s {
	case StateUnpowered:
		return "unpowered"
	case StateConfiguring:
		return "configuring"
	case StateIdle:
		return "idle"
	case StateStreaming:
		return "streaming"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Status is a snapshot of the device state
type Status struct {
	State             State
	Powered           bool
	Streaming         bool
	PendingModeChange bool
	Format            Format
	Interval          Interval
}

// HM5065 represents a single HM5065 sensor instance.
type HM5065 struct {
	// c is the register connection
	c Conn

	supplies     Supply
	clock        Clock
	chipEnable   OutputPin
	reset        OutputPin
	clockRate    physic.Frequency
	maxPixelRate uint32

	// mu guards the fields below and serializes all bus traffic
	mu                sync.Mutex
	format            Format
	interval          Interval
	state             State
	powered           bool
	streaming         bool
	pendingModeChange bool
	controls          map[ControlID]int32

	ioTimeout time.Duration

	// sleep is time.Sleep, swapped out by tests
	sleep func(time.Duration)

	// log logger for debugging
	log *log.Logger
}

// New returns a new HM5065 sensor instance. Chip enable is driven low and
// reset high, the sensor is left unpowered until SetPower(true).
func New(c Conn, opts *Opts) (*HM5065, error) {
	return NewWithLog(c, opts, log.New(io.Discard, "", log.LstdFlags))
}

// NewWithLog creates sensor instance with logger to be used for debugging
func NewWithLog(c Conn, opts *Opts, log *log.Logger) (*HM5065, error) {

	if c == nil {
		return nil, fmt.Errorf("no bus connection: %w", ErrInvalidArgument)
	}

	if opts == nil {
		opts = &DefaultOpts
	}

	if opts.Clock == nil {
		return nil, fmt.Errorf("external clock is required: %w", ErrInvalidArgument)
	}

	if opts.ChipEnable == nil && opts.Reset == nil {
		return nil, fmt.Errorf("either chip enable or reset pin must be configured: %w",
			ErrInvalidArgument)
	}

	h := &HM5065{
		c:            c,
		supplies:     opts.Supplies,
		clock:        opts.Clock,
		chipEnable:   opts.ChipEnable,
		reset:        opts.Reset,
		clockRate:    opts.ClockRate,
		maxPixelRate: opts.MaxPixelRate,
		format: Format{
			Code:       defaultCode,
			Colorspace: ColorspaceSRGB,
			Width:      640,
			Height:     480,
		},
		interval:          Interval{Numerator: 1, Denominator: 30},
		state:             StateUnpowered,
		pendingModeChange: true,
		controls:          defaultControls(),
		ioTimeout:         500 * time.Millisecond,
		sleep:             time.Sleep,
		log:               log,
	}

	if h.clockRate == 0 {
		h.clockRate = ClockRate
	}

	if h.clockRate < ClockRateMin || h.clockRate > ClockRateMax {
		return nil, fmt.Errorf("clock rate %s out of range: %w", h.clockRate, ErrInvalidArgument)
	}

	if h.maxPixelRate == 0 {
		h.maxPixelRate = MaxPixelRate
	}

	// hold the chip disabled and in reset until power-up
	if err := h.setChipEnable(false); err != nil {
		return nil, err
	}

	return h, nil
}

// setState records a state machine transition
func (h *HM5065) setState(s State) {

	if h.state != s {
		h.log.Printf("state %s -> %s", h.state, s)
	}

	h.state = s
}

// Status returns a snapshot of the device state
func (h *HM5065) Status() Status {

	h.mu.Lock()
	defer h.mu.Unlock()

	return Status{
		State:             h.state,
		Powered:           h.powered,
		Streaming:         h.streaming,
		PendingModeChange: h.pendingModeChange,
		Format:            h.format,
		Interval:          h.interval,
	}
}

// State returns the current state machine position
func (h *HM5065) State() State {

	h.mu.Lock()
	defer h.mu.Unlock()

	return h.state
}

// Format returns the configured output format
func (h *HM5065) Format() Format {

	h.mu.Lock()
	defer h.mu.Unlock()

	return h.format
}

// TryFormat returns the format SetFormat would select for req without
// changing the device
func (h *HM5065) TryFormat(req Format) Format {

	h.mu.Lock()
	defer h.mu.Unlock()

	f, fallback := negotiateFormat(req, h.interval, h.maxPixelRate)

	if fallback {
		h.logFallback(req, f)
	}

	return f
}

// logFallback reports a request no frame size fitted
func (h *HM5065) logFallback(req, f Format) {
	h.log.Printf("frame size %dx%d not found, using the smallest one %dx%d",
		req.Width, req.Height, f.Width, f.Height)
}

// SetFormat negotiates req against the supported formats and the current
// frame interval and stores the result. The hardware is programmed on the
// next stream start. Returns ErrBusy while streaming, together with the
// format that would have been used.
func (h *HM5065) SetFormat(req Format) (Format, error) {

	h.mu.Lock()
	defer h.mu.Unlock()

	f, fallback := negotiateFormat(req, h.interval, h.maxPixelRate)

	if fallback {
		h.logFallback(req, f)
	}

	if h.streaming {
		return f, ErrBusy
	}

	h.format = f
	h.pendingModeChange = true

	h.log.Printf("format set to %s %dx%d", f.Code, f.Width, f.Height)

	return f, nil
}

// FrameInterval returns the configured frame interval
func (h *HM5065) FrameInterval() Interval {

	h.mu.Lock()
	defer h.mu.Unlock()

	return h.interval
}

// SetFrameInterval negotiates the frame rate for req at the configured
// resolution and stores it as 1/rate. A zero numerator requests the fastest
// rate. Returns ErrBusy while streaming.
func (h *HM5065) SetFrameInterval(req Interval) (Interval, error) {

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.streaming {
		return h.interval, ErrBusy
	}

	h.interval = negotiateInterval(req, h.format, h.maxPixelRate)
	h.pendingModeChange = true

	h.log.Printf("frame interval set to %d/%d", h.interval.Numerator, h.interval.Denominator)

	return h.interval, nil
}
