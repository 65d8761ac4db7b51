package hm5065

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
)

func TestNew_Validation(t *testing.T) {

	conn := I2CConn(newFakeSensor(), Address)

	tests := []struct {
		name string
		conn Conn
		opts *Opts
	}{
		{"no conn", nil, &Opts{Clock: &fakeClock{}, Reset: &fakePin{}}},
		{"nil opts", conn, nil},
		{"no clock", conn, &Opts{Reset: &fakePin{}}},
		{"no ce or reset", conn, &Opts{Clock: &fakeClock{}}},
		{"clock too fast", conn, &Opts{Clock: &fakeClock{}, Reset: &fakePin{},
			ClockRate: 30 * physic.MegaHertz}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.conn, tt.opts)

			if !errors.Is(err, ErrInvalidArgument) {
				t.Errorf("err = %v, want ErrInvalidArgument", err)
			}
		})
	}
}

func TestNew_Defaults(t *testing.T) {

	r := newRig(t, Opts{})
	s := r.h.Status()

	if s.State != StateUnpowered || s.Powered || s.Streaming {
		t.Errorf("status = %+v, want unpowered", s)
	}

	if !s.PendingModeChange {
		t.Error("pending mode change should start set")
	}

	want := Format{CodeUYVY8_2X8, ColorspaceSRGB, 640, 480}

	if s.Format != want {
		t.Errorf("format = %+v, want %+v", s.Format, want)
	}

	if s.Interval != (Interval{1, 30}) {
		t.Errorf("interval = %+v, want 1/30", s.Interval)
	}

	if r.h.maxPixelRate != MaxPixelRate || r.h.clockRate != ClockRate {
		t.Errorf("maxPixelRate %d clockRate %s", r.h.maxPixelRate, r.h.clockRate)
	}

	if len(r.bus.writes) != 0 || r.bus.reads != 0 {
		t.Error("New must not use the bus")
	}

	// chip held disabled and in reset until power-up
	if fmt.Sprint(r.ce.levels) != "[Low]" || fmt.Sprint(r.reset.levels) != "[High]" {
		t.Errorf("chip enable %v reset %v after New", r.ce.levels, r.reset.levels)
	}

	if r.supply.enables != 0 || r.clock.enabled {
		t.Error("New must not power the sensor")
	}
}

func TestNew_PinFailure(t *testing.T) {

	stuck := errors.New("gpio busy")

	_, err := New(I2CConn(newFakeSensor(), Address), &Opts{
		Clock:      &fakeClock{},
		ChipEnable: &fakePin{err: stuck},
	})

	if !errors.Is(err, stuck) {
		t.Errorf("err = %v, want chip enable failure", err)
	}

	_, err = New(I2CConn(newFakeSensor(), Address), &Opts{
		Clock: &fakeClock{},
		Reset: &fakePin{err: stuck},
	})

	if !errors.Is(err, stuck) {
		t.Errorf("err = %v, want reset failure", err)
	}
}

func TestSetPower_On(t *testing.T) {

	r := newRig(t, Opts{})

	if err := r.h.SetPower(true); err != nil {
		t.Fatalf("SetPower(true): %v", err)
	}

	checkWrites(t, r.bus.writes, []regWrite{
		w8(EXCLOCKLUT, 0x16),
		w8(P0_SENSOR_MODE, SENSOR_MODE_FULLSIZE),
		w8(P0_IMAGE_SIZE, IMAGE_SIZE_MANUAL),
		w16(P0_MANUAL_HSIZE, 640),
		w16(P0_MANUAL_VSIZE, 480),
		w8(P0_DATA_FORMAT, DATA_FORMAT_YCBCR_JFIF),
		w8(YCRCB_ORDER, YCRCB_ORDER_CB_Y_CR_Y),
		w16(DESIRED_FRAME_RATE_NUM, 30),
		w8(ENABLE_TEST_PATTERN, 0),
		w8(TEST_PATTERN, 0),
	})

	s := r.h.Status()

	if s.State != StateIdle || !s.Powered || s.PendingModeChange {
		t.Errorf("status = %+v, want powered idle with nothing pending", s)
	}

	if !r.supply.enabled || !r.clock.enabled || r.clock.rate != 24*physic.MegaHertz {
		t.Errorf("supply %v clock %v rate %s", r.supply.enabled, r.clock.enabled, r.clock.rate)
	}

	// after the idle level set by New, chip enable pulses low then high and
	// reset is its inverse
	if fmt.Sprint(r.ce.levels) != "[Low Low High]" {
		t.Errorf("chip enable levels = %v", r.ce.levels)
	}

	if fmt.Sprint(r.reset.levels) != "[High High Low]" {
		t.Errorf("reset levels = %v", r.reset.levels)
	}

	if r.slept < resetPulse*2+bootSettle {
		t.Errorf("slept %s during power on", r.slept)
	}

	// powering on again is a no-op
	r.bus.reset()

	if err := r.h.SetPower(true); err != nil || len(r.bus.writes) != 0 || r.supply.enables != 1 {
		t.Errorf("second SetPower(true): err %v, %d writes", err, len(r.bus.writes))
	}
}

func TestSetPower_ClockLUT(t *testing.T) {

	for _, l := range clockLUTs {
		t.Run(l.freq.String(), func(t *testing.T) {
			r := newRig(t, Opts{})
			r.clock.fixed = l.freq

			if err := r.h.SetPower(true); err != nil {
				t.Fatalf("SetPower(true): %v", err)
			}

			if got := r.bus.regs[EXCLOCKLUT]; got != l.id {
				t.Errorf("EXCLOCKLUT = 0x%02x, want 0x%02x", got, l.id)
			}
		})
	}
}

// checkPoweredDown verifies nothing was left enabled after a failed power-up
func checkPoweredDown(t *testing.T, r *rig) {

	t.Helper()

	s := r.h.Status()

	if s.Powered || s.State != StateUnpowered {
		t.Errorf("status = %+v, want unpowered", s)
	}

	if r.clock.enabled {
		t.Error("clock left enabled")
	}

	if r.supply.enabled {
		t.Error("supplies left enabled")
	}

	if len(r.ce.levels) > 0 && r.ce.last() != gpio.Low {
		t.Error("chip enable left high")
	}
}

func TestSetPower_ConfigurationErrors(t *testing.T) {

	t.Run("unsupported clock", func(t *testing.T) {
		r := newRig(t, Opts{})
		r.clock.fixed = 25 * physic.MegaHertz

		err := r.h.SetPower(true)

		if !errors.Is(err, ErrConfiguration) {
			t.Fatalf("err = %v, want ErrConfiguration", err)
		}

		checkPoweredDown(t, r)

		if len(r.bus.writes) != 0 {
			t.Errorf("unexpected writes %v", r.bus.writes)
		}
	})

	t.Run("wrong device id", func(t *testing.T) {
		r := newRig(t, Opts{})
		r.bus.regs[DEVICE_ID] = 0x12
		r.bus.regs[DEVICE_ID+1] = 0x34

		err := r.h.SetPower(true)

		if !errors.Is(err, ErrConfiguration) {
			t.Fatalf("err = %v, want ErrConfiguration", err)
		}

		checkPoweredDown(t, r)
	})
}

func TestSetPower_Unwind(t *testing.T) {

	t.Run("supply fails", func(t *testing.T) {
		r := newRig(t, Opts{})
		r.supply.enableErr = errors.New("regulator")

		if err := r.h.SetPower(true); err == nil {
			t.Fatal("expected error")
		}

		if r.clock.enabled || len(r.ce.levels) != 1 {
			t.Error("nothing should run after the supplies fail")
		}

		checkPoweredDown(t, r)
	})

	t.Run("clock enable fails", func(t *testing.T) {
		r := newRig(t, Opts{})
		r.clock.enableErr = errors.New("clk")

		if err := r.h.SetPower(true); err == nil {
			t.Fatal("expected error")
		}

		if r.supply.disables != 1 {
			t.Errorf("supplies disabled %d times", r.supply.disables)
		}

		checkPoweredDown(t, r)
	})

	t.Run("set rate fails", func(t *testing.T) {
		r := newRig(t, Opts{})
		r.clock.setRateErr = errors.New("rate")

		if err := r.h.SetPower(true); err == nil {
			t.Fatal("expected error")
		}

		if r.clock.disables != 1 {
			t.Errorf("clock disabled %d times", r.clock.disables)
		}

		checkPoweredDown(t, r)
	})

	t.Run("bus fails in mode setup", func(t *testing.T) {
		r := newRig(t, Opts{})
		r.bus.failWrite(P0_DATA_FORMAT)

		err := r.h.SetPower(true)

		var be *BusError

		if !errors.As(err, &be) || be.Addr != P0_DATA_FORMAT || be.Op != "write" {
			t.Fatalf("err = %v, want BusError at P0_DATA_FORMAT", err)
		}

		checkPoweredDown(t, r)

		if !r.h.Status().PendingModeChange {
			t.Error("mode change should stay pending")
		}
	})

	t.Run("retry after failure", func(t *testing.T) {
		r := newRig(t, Opts{})
		r.bus.failWrite(EXCLOCKLUT)

		if err := r.h.SetPower(true); err == nil {
			t.Fatal("expected error")
		}

		r.bus.fail = nil

		if err := r.h.SetPower(true); err != nil {
			t.Fatalf("retry: %v", err)
		}

		if r.h.State() != StateIdle {
			t.Errorf("state = %s", r.h.State())
		}
	})
}

func TestSetPower_Off(t *testing.T) {

	r := newRig(t, Opts{})
	r.powerOn(t)

	if err := r.h.SetPower(false); err != nil {
		t.Fatalf("SetPower(false): %v", err)
	}

	checkPoweredDown(t, r)

	if !r.h.Status().PendingModeChange {
		t.Error("power off must mark the mode for reprogramming")
	}

	if len(r.bus.writes) != 0 {
		t.Errorf("power off wrote to the bus: %v", r.bus.writes)
	}

	// idempotent
	if err := r.h.SetPower(false); err != nil || r.clock.disables != 1 {
		t.Errorf("second SetPower(false): err %v, clock disabled %d times", err, r.clock.disables)
	}
}

func TestSetStreaming(t *testing.T) {

	r := newRig(t, Opts{})

	if err := r.h.SetStreaming(true); !errors.Is(err, ErrNotPowered) {
		t.Fatalf("SetStreaming unpowered: %v", err)
	}

	r.powerOn(t)

	if err := r.h.SetStreaming(true); err != nil {
		t.Fatalf("SetStreaming(true): %v", err)
	}

	// mode was committed during power on so only the run command goes out
	checkWrites(t, r.bus.writes, []regWrite{w8(USER_COMMAND, USER_COMMAND_RUN)})

	if r.h.State() != StateStreaming || !r.h.Streaming() {
		t.Errorf("state = %s", r.h.State())
	}

	r.bus.reset()

	if err := r.h.SetStreaming(true); err != nil || len(r.bus.writes) != 0 {
		t.Errorf("repeated start: err %v writes %v", err, r.bus.writes)
	}

	if err := r.h.SetStreaming(false); err != nil {
		t.Fatalf("SetStreaming(false): %v", err)
	}

	checkWrites(t, r.bus.writes, []regWrite{w8(USER_COMMAND, USER_COMMAND_STOP)})

	if r.h.State() != StateIdle || r.h.Streaming() {
		t.Errorf("state = %s", r.h.State())
	}
}

func TestSetStreaming_LazyModeApply(t *testing.T) {

	r := newRig(t, Opts{})
	r.powerOn(t)

	f, err := r.h.SetFormat(Format{Code: CodeRGB565_2X8_BE, Width: 1280, Height: 720})

	if err != nil {
		t.Fatalf("SetFormat: %v", err)
	}

	if f.Width != 1280 || f.Height != 720 {
		t.Fatalf("format = %+v", f)
	}

	if _, err := r.h.SetFrameInterval(Interval{1, 15}); err != nil {
		t.Fatalf("SetFrameInterval: %v", err)
	}

	if len(r.bus.writes) != 0 {
		t.Fatalf("changes must not reach hardware before streaming: %v", r.bus.writes)
	}

	if !r.h.Status().PendingModeChange {
		t.Fatal("mode change should be pending")
	}

	if err := r.h.SetStreaming(true); err != nil {
		t.Fatalf("SetStreaming(true): %v", err)
	}

	// RGB formats skip the YCbCr order register
	checkWrites(t, r.bus.writes, []regWrite{
		w8(P0_SENSOR_MODE, SENSOR_MODE_FULLSIZE),
		w8(P0_IMAGE_SIZE, IMAGE_SIZE_MANUAL),
		w16(P0_MANUAL_HSIZE, 1280),
		w16(P0_MANUAL_VSIZE, 720),
		w8(P0_DATA_FORMAT, DATA_FORMAT_RGB_565),
		w16(DESIRED_FRAME_RATE_NUM, 15),
		w8(USER_COMMAND, USER_COMMAND_RUN),
	})

	if r.h.Status().PendingModeChange {
		t.Error("mode change should be committed")
	}
}

func TestSetStreaming_Failures(t *testing.T) {

	t.Run("run command fails", func(t *testing.T) {
		r := newRig(t, Opts{})
		r.powerOn(t)
		r.bus.failWrite(USER_COMMAND)

		err := r.h.SetStreaming(true)

		var be *BusError

		if !errors.As(err, &be) || be.Addr != USER_COMMAND {
			t.Fatalf("err = %v, want BusError", err)
		}

		if r.h.Streaming() || r.h.State() != StateError {
			t.Errorf("streaming %v state %s", r.h.Streaming(), r.h.State())
		}

		r.bus.fail = nil

		if err := r.h.SetStreaming(true); err != nil {
			t.Fatalf("retry: %v", err)
		}

		if r.h.State() != StateStreaming {
			t.Errorf("state = %s", r.h.State())
		}
	})

	t.Run("mode setup fails", func(t *testing.T) {
		r := newRig(t, Opts{})
		r.powerOn(t)

		if _, err := r.h.SetFormat(Format{Code: CodeYUYV8_2X8, Width: 320, Height: 240}); err != nil {
			t.Fatal(err)
		}

		r.bus.failWrite(P0_MANUAL_VSIZE)

		if err := r.h.SetStreaming(true); err == nil {
			t.Fatal("expected error")
		}

		s := r.h.Status()

		if s.Streaming || !s.PendingModeChange || s.State != StateError {
			t.Errorf("status = %+v", s)
		}

		for _, w := range r.bus.writes {
			if w.reg == USER_COMMAND {
				t.Error("run command sent after failed mode setup")
			}
		}
	})

	t.Run("stop command fails", func(t *testing.T) {
		r := newRig(t, Opts{})
		r.powerOn(t)

		if err := r.h.SetStreaming(true); err != nil {
			t.Fatal(err)
		}

		r.bus.failWrite(USER_COMMAND)

		if err := r.h.SetStreaming(false); err == nil {
			t.Fatal("expected error")
		}

		if !r.h.Streaming() {
			t.Error("streaming flag must survive a failed stop")
		}
	})
}

func TestBusyWhileStreaming(t *testing.T) {

	r := newRig(t, Opts{})
	r.powerOn(t)

	if err := r.h.SetStreaming(true); err != nil {
		t.Fatal(err)
	}

	before := r.h.Status()
	r.bus.reset()

	if _, err := r.h.SetFormat(Format{Code: CodeYVYU8_2X8, Width: 320, Height: 240}); !errors.Is(err, ErrBusy) {
		t.Errorf("SetFormat err = %v, want ErrBusy", err)
	}

	if _, err := r.h.SetFrameInterval(Interval{1, 5}); !errors.Is(err, ErrBusy) {
		t.Errorf("SetFrameInterval err = %v, want ErrBusy", err)
	}

	if err := r.h.SetPower(false); !errors.Is(err, ErrBusy) {
		t.Errorf("SetPower(false) err = %v, want ErrBusy", err)
	}

	if after := r.h.Status(); after != before {
		t.Errorf("status changed\n before %+v\n after  %+v", before, after)
	}

	if len(r.bus.writes) != 0 || r.clock.disables != 0 {
		t.Error("rejected requests touched the hardware")
	}
}

func TestClose(t *testing.T) {

	r := newRig(t, Opts{})
	r.powerOn(t)

	if err := r.h.SetStreaming(true); err != nil {
		t.Fatal(err)
	}

	r.bus.reset()

	if err := r.h.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	checkWrites(t, r.bus.writes, []regWrite{w8(USER_COMMAND, USER_COMMAND_STOP)})
	checkPoweredDown(t, r)

	if err := r.h.Close(); err != nil || r.clock.disables != 1 {
		t.Errorf("second Close: err %v, clock disabled %d times", err, r.clock.disables)
	}

	// the device can be brought up again
	if err := r.h.SetPower(true); err != nil {
		t.Fatalf("SetPower after Close: %v", err)
	}
}

func TestSetFormat(t *testing.T) {

	r := newRig(t, Opts{})

	f, err := r.h.SetFormat(Format{Code: 0xdead, Width: 10000, Height: 10000})

	if err != nil {
		t.Fatalf("SetFormat: %v", err)
	}

	// 1/30 s leaves room for 1348484 pixels per frame
	want := Format{CodeUYVY8_2X8, ColorspaceSRGB, 1280, 1024}

	if f != want || r.h.Format() != want {
		t.Errorf("format = %+v, want %+v", f, want)
	}

	if got := r.h.TryFormat(Format{Code: CodeVYUY8_2X8, Width: 100, Height: 80}); got.Width != 88 || got.Code != CodeVYUY8_2X8 {
		t.Errorf("TryFormat = %+v", got)
	}

	if r.h.Format() != want {
		t.Error("TryFormat changed the format")
	}

	if strings.Contains(r.logs.String(), "not found") {
		t.Errorf("fallback reported for a fitting request:\n%s", r.logs.String())
	}

	if got := r.h.TryFormat(Format{Code: CodeUYVY8_2X8, Width: 10, Height: 10}); got.Width != 88 || got.Height != 72 {
		t.Errorf("TryFormat = %+v", got)
	}

	if !strings.Contains(r.logs.String(), "frame size 10x10 not found, using the smallest one 88x72") {
		t.Errorf("missing fallback diagnostic:\n%s", r.logs.String())
	}
}

func TestSetFrameInterval(t *testing.T) {

	r := newRig(t, Opts{})

	tests := []struct {
		req  Interval
		want Interval
	}{
		{Interval{1, 15}, Interval{1, 15}},
		{Interval{0, 1}, Interval{1, 120}},
		{Interval{1, 1000}, Interval{1, 120}},
		{Interval{2, 1}, Interval{1, 1}},
	}

	for _, tt := range tests {
		got, err := r.h.SetFrameInterval(tt.req)

		if err != nil {
			t.Fatalf("SetFrameInterval(%v): %v", tt.req, err)
		}

		if got != tt.want || r.h.FrameInterval() != tt.want {
			t.Errorf("SetFrameInterval(%v) = %v, want %v", tt.req, got, tt.want)
		}
	}
}
