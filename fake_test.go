package hm5065

import (
	"bytes"
	"errors"
	"fmt"
	"log"
	"testing"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
)

// regWrite is one register write seen by fakeSensor
type regWrite struct {
	reg  uint16
	data []byte
}

func (w regWrite) String() string {
	return fmt.Sprintf("0x%04x:% x", w.reg, w.data)
}

// fakeSensor is an i2c.Bus emulating the sensor register file
type fakeSensor struct {
	regs   [0x10000]byte
	writes []regWrite
	reads  int
	// fail, when set, is consulted before every transfer
	fail func(reg uint16, read bool) error
}

func newFakeSensor() *fakeSensor {

	f := &fakeSensor{}
	f.regs[DEVICE_ID] = byte(DEVICE_ID_VALUE >> 8)
	f.regs[DEVICE_ID+1] = byte(DEVICE_ID_VALUE & 0xff)

	return f
}

func (f *fakeSensor) String() string { return "fake-hm5065" }

func (f *fakeSensor) SetSpeed(physic.Frequency) error { return nil }

func (f *fakeSensor) Tx(addr uint16, w, r []byte) error {

	if addr != Address {
		return fmt.Errorf("no device at 0x%02x", addr)
	}

	if len(w) < 2 {
		return errors.New("missing register address")
	}

	reg := uint16(w[0])<<8 | uint16(w[1])

	if f.fail != nil {
		if err := f.fail(reg, len(r) > 0); err != nil {
			return err
		}
	}

	if len(r) > 0 {
		if len(w) != 2 {
			return errors.New("read with payload")
		}

		copy(r, f.regs[reg:])
		f.reads++

		return nil
	}

	data := append([]byte(nil), w[2:]...)
	copy(f.regs[reg:], data)
	f.writes = append(f.writes, regWrite{reg, data})

	return nil
}

// reset forgets the write journal
func (f *fakeSensor) reset() {
	f.writes = nil
	f.reads = 0
}

// failWrite makes writes to reg fail
func (f *fakeSensor) failWrite(reg uint16) {
	f.fail = func(r uint16, read bool) error {
		if r == reg && !read {
			return errors.New("nack")
		}
		return nil
	}
}

type fakePin struct {
	levels []gpio.Level
	pwm    []physic.Frequency
	err    error
}

func (p *fakePin) Out(l gpio.Level) error {

	if p.err != nil {
		return p.err
	}

	p.levels = append(p.levels, l)
	return nil
}

func (p *fakePin) PWM(duty gpio.Duty, f physic.Frequency) error {

	if p.err != nil {
		return p.err
	}

	p.pwm = append(p.pwm, f)
	return nil
}

func (p *fakePin) last() gpio.Level {
	return p.levels[len(p.levels)-1]
}

type fakeClock struct {
	rate       physic.Frequency
	fixed      physic.Frequency
	enabled    bool
	enableErr  error
	setRateErr error
	disables   int
}

func (c *fakeClock) Enable() error {

	if c.enableErr != nil {
		return c.enableErr
	}

	c.enabled = true
	return nil
}

func (c *fakeClock) Disable() error {
	c.enabled = false
	c.disables++
	return nil
}

func (c *fakeClock) SetRate(f physic.Frequency) error {

	if c.setRateErr != nil {
		return c.setRateErr
	}

	c.rate = f
	return nil
}

func (c *fakeClock) Rate() physic.Frequency {

	if c.fixed != 0 {
		return c.fixed
	}

	return c.rate
}

type fakeSupply struct {
	enabled   bool
	enableErr error
	enables   int
	disables  int
}

func (s *fakeSupply) Enable() error {

	if s.enableErr != nil {
		return s.enableErr
	}

	s.enabled = true
	s.enables++
	return nil
}

func (s *fakeSupply) Disable() error {
	s.enabled = false
	s.disables++
	return nil
}

// rig bundles a device under test with its fake collaborators
type rig struct {
	h      *HM5065
	bus    *fakeSensor
	clock  *fakeClock
	supply *fakeSupply
	ce     *fakePin
	reset  *fakePin
	slept  time.Duration
	logs   *bytes.Buffer
}

func newRig(t *testing.T, opts Opts) *rig {

	t.Helper()

	r := &rig{
		bus:    newFakeSensor(),
		clock:  &fakeClock{},
		supply: &fakeSupply{},
		ce:     &fakePin{},
		reset:  &fakePin{},
	}

	opts.Supplies = r.supply
	opts.Clock = r.clock
	opts.ChipEnable = r.ce
	opts.Reset = r.reset

	r.logs = &bytes.Buffer{}

	h, err := NewWithLog(I2CConn(r.bus, Address), &opts, log.New(r.logs, "", 0))

	if err != nil {
		t.Fatalf("NewWithLog: %v", err)
	}

	t.Cleanup(func() {
		if t.Failed() {
			t.Logf("driver log:\n%s", r.logs.String())
		}
	})

	h.sleep = func(d time.Duration) { r.slept += d }
	r.h = h

	return r
}

// powerOn powers the rig up and clears the bus journal
func (r *rig) powerOn(t *testing.T) {

	t.Helper()

	if err := r.h.SetPower(true); err != nil {
		t.Fatalf("SetPower(true): %v", err)
	}

	r.bus.reset()
}

func checkWrites(t *testing.T, got []regWrite, want []regWrite) {

	t.Helper()

	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("bus writes\n got  %v\n want %v", got, want)
	}
}

func w8(reg uint16, v uint8) regWrite {
	return regWrite{reg, []byte{v}}
}

func w16(reg uint16, v uint16) regWrite {
	return regWrite{reg, []byte{byte(v >> 8), byte(v)}}
}
