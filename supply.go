package hm5065

import (
	"errors"
	"fmt"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
)

// SupplyNames are the sensor power rails in enable order
var SupplyNames = []string{
	"IOVDD", // Digital I/O (2.8V) supply
	"AFVDD", // Autofocus (2.8V) supply
	"DVDD",  // Digital Core (1.8V) supply
	"AVDD",  // Analog (2.8V) supply
}

// Rail is a power rail switched by a GPIO driven load switch
type Rail struct {
	Name string
	Pin  OutputPin
}

// GPIOSupplies switches a set of rails as one Supply. Rails are enabled in
// order and disabled in reverse.
type GPIOSupplies []Rail

// Enable implements Supply. If a rail fails, the rails already enabled are
// switched off again.
func (s GPIOSupplies) Enable() error {

	for i, r := range s {
		if err := r.Pin.Out(gpio.High); err != nil {
			_ = s[:i].Disable()
			return fmt.Errorf("enable %s: %w", r.Name, err)
		}
	}

	return nil
}

// Disable implements Supply. Every rail is switched off even if one fails.
func (s GPIOSupplies) Disable() error {

	var errs []error

	for i := len(s) - 1; i >= 0; i-- {
		if err := s[i].Pin.Out(gpio.Low); err != nil {
			errs = append(errs, fmt.Errorf("disable %s: %w", s[i].Name, err))
		}
	}

	return errors.Join(errs...)
}

// PWMPin is an output able to generate a square wave. gpio.PinOut
// satisfies it.
type PWMPin interface {
	OutputPin
	PWM(duty gpio.Duty, f physic.Frequency) error
}

// PWMClock generates the external clock on a PWM capable pin
type PWMClock struct {
	Pin     PWMPin
	rate    physic.Frequency
	enabled bool
}

// NewPWMClock returns a stopped clock on pin running at rate once enabled
func NewPWMClock(pin PWMPin, rate physic.Frequency) *PWMClock {
	return &PWMClock{Pin: pin, rate: rate}
}

// Enable implements Clock
func (c *PWMClock) Enable() error {

	if c.rate == 0 {
		return errors.New("pwm clock rate not set")
	}

	if err := c.Pin.PWM(gpio.DutyHalf, c.rate); err != nil {
		return err
	}

	c.enabled = true
	return nil
}

// Disable implements Clock
func (c *PWMClock) Disable() error {
	c.enabled = false
	return c.Pin.Out(gpio.Low)
}

// SetRate implements Clock, a running clock is retuned immediately
func (c *PWMClock) SetRate(f physic.Frequency) error {

	if f < ClockRateMin || f > ClockRateMax {
		return fmt.Errorf("clock rate %s out of range", f)
	}

	c.rate = f

	if !c.enabled {
		return nil
	}

	return c.Pin.PWM(gpio.DutyHalf, f)
}

// Rate implements Clock
func (c *PWMClock) Rate() physic.Frequency {
	return c.rate
}

// FixedClock is a free running oscillator on the module. It cannot be gated
// or retuned, Rate always reports its own frequency.
type FixedClock physic.Frequency

// Enable implements Clock
func (FixedClock) Enable() error { return nil }

// Disable implements Clock
func (FixedClock) Disable() error { return nil }

// SetRate implements Clock. The request is ignored, configuration checks the
// real rate against the clock LUT.
func (FixedClock) SetRate(physic.Frequency) error { return nil }

// Rate implements Clock
func (c FixedClock) Rate() physic.Frequency {
	return physic.Frequency(c)
}
