package hm5065

import (
	"fmt"

	goi2c "github.com/swdee/go-i2c"
	"periph.io/x/conn/v3/i2c"
)

// I2CConn returns a Conn talking to the sensor at addr on a periph I²C bus.
// Reads use a single combined write/read transfer.
func I2CConn(b i2c.Bus, addr uint16) Conn {
	return &i2c.Dev{Bus: b, Addr: addr}
}

// goI2CBus is the part of a go-i2c handle the adapter uses
type goI2CBus interface {
	WriteBytes(buf []byte) (int, error)
	ReadBytes(buf []byte) (int, error)
	GetAddr() uint8
	GetDev() string
}

// goI2CConn adapts a go-i2c handle to Conn
type goI2CConn struct {
	bus goI2CBus
}

// GoI2CConn returns a Conn backed by an opened go-i2c device.
//
// go-i2c has no combined write/read transfer, so a read is an address write
// followed by a separate read with a STOP in between. The device lock keeps
// this driver's own traffic from interleaving, but another master or process
// on the same bus can slip a transfer between the two and move the sensor's
// address pointer. Prefer I2CConn when the bus is shared.
func GoI2CConn(bus *goi2c.Options) (Conn, error) {

	if bus == nil {
		return nil, fmt.Errorf("I2C device is not initiated")
	}

	c, err := newGoI2CConn(bus)

	if err != nil {
		return nil, err
	}

	return c, nil
}

func newGoI2CConn(bus goI2CBus) (*goI2CConn, error) {

	if bus.GetAddr() == 0 {
		return nil, fmt.Errorf("I2C device is not initiated")
	}

	return &goI2CConn{bus: bus}, nil
}

// Tx implements Conn
func (g *goI2CConn) Tx(w, r []byte) error {

	if len(w) > 0 {
		if _, err := g.bus.WriteBytes(w); err != nil {
			return err
		}
	}

	if len(r) == 0 {
		return nil
	}

	n, err := g.bus.ReadBytes(r)

	if err != nil {
		return err
	}

	if n < len(r) {
		return fmt.Errorf("insufficient data: got %d of %d bytes", n, len(r))
	}

	return nil
}

// String returns the bus device path and address
func (g *goI2CConn) String() string {
	return fmt.Sprintf("%s@0x%02x", g.bus.GetDev(), g.bus.GetAddr())
}
