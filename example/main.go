package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/swdee/go-hm5065"
	"github.com/swdee/go-hm5065/mqttctl"
	"github.com/swdee/go-i2c"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

func main() {

	i2cbus := flag.String("b", "/dev/i2c-1", "I2C bus to use, a periph bus name or device path")
	driver := flag.String("driver", "periph", "I2C backend: periph or goi2c")
	cePin := flag.String("ce", "", "Chip enable GPIO name")
	resetPin := flag.String("reset", "", "Reset GPIO name")
	xclkPin := flag.String("xclk", "", "PWM capable GPIO generating the external clock")
	supplies := flag.String("supplies", "", "Comma separated GPIO names switching "+
		strings.Join(hm5065.SupplyNames, ","))
	width := flag.Uint("width", 640, "Frame width")
	height := flag.Uint("height", 480, "Frame height")
	fps := flag.Uint("fps", 30, "Frame rate")
	pattern := flag.Int("pattern", 0, "Test pattern, 0 disables")
	broker := flag.String("broker", "", "MQTT broker URL, enables remote control")
	prefix := flag.String("prefix", "hm5065", "MQTT topic prefix")
	duration := flag.Duration("t", 10*time.Second, "How long to stream, 0 runs until interrupted")

	xclkFreq := hm5065.ClockRate
	flag.Var(&xclkFreq, "xclk-freq", "External clock rate, a fixed oscillator when -xclk is not set")

	flag.Parse()

	if _, err := host.Init(); err != nil {
		mqttctl.ERRORLogger.Fatal(err)
	}

	conn, closeBus := openBus(*driver, *i2cbus)
	defer closeBus()

	opts := hm5065.DefaultOpts
	opts.ClockRate = xclkFreq
	opts.ChipEnable = pinByName(*cePin)
	opts.Reset = pinByName(*resetPin)

	if *xclkPin != "" {
		opts.Clock = hm5065.NewPWMClock(mustPin(*xclkPin), xclkFreq)
	} else {
		opts.Clock = hm5065.FixedClock(xclkFreq)
	}

	if *supplies != "" {
		opts.Supplies = rails(*supplies)
	}

	var sensor *hm5065.HM5065
	var err error

	if mqttctl.LOG_LEVEL <= mqttctl.DEBUG_LEVEL {
		sensor, err = hm5065.NewWithLog(conn, &opts, mqttctl.DEBUGLogger)
	} else {
		sensor, err = hm5065.New(conn, &opts)
	}

	if err != nil {
		mqttctl.ERRORLogger.Fatal(err)
	}

	defer sensor.Close()

	f, err := sensor.SetFormat(hm5065.Format{
		Code:   hm5065.CodeUYVY8_2X8,
		Width:  uint32(*width),
		Height: uint32(*height),
	})

	if err != nil {
		mqttctl.ERRORLogger.Fatalf("Set format failed: %v", err)
	}

	interval, err := sensor.SetFrameInterval(hm5065.Interval{Numerator: 1, Denominator: uint32(*fps)})

	if err != nil {
		mqttctl.ERRORLogger.Fatalf("Set frame interval failed: %v", err)
	}

	fmt.Printf("Format: %s %dx%d @ %d fps\n", f.Code, f.Width, f.Height, interval.FrameRate())

	if err := sensor.SetControl(hm5065.ControlTestPattern, int32(*pattern)); err != nil {
		mqttctl.ERRORLogger.Fatalf("Set test pattern failed: %v", err)
	}

	if err := sensor.SetPower(true); err != nil {
		mqttctl.ERRORLogger.Fatalf("Power on failed: %v", err)
	}

	if *broker != "" {
		client, err := mqttctl.Connect(*broker, "hm5065-"+strings.ReplaceAll(*prefix, "/", "-"))

		if err != nil {
			mqttctl.ERRORLogger.Fatal(err)
		}

		defer client.Disconnect(250)

		bridge := mqttctl.NewBridge(sensor, *prefix, mqttctl.ClientPublisher(client))

		if err := bridge.Subscribe(client); err != nil {
			mqttctl.ERRORLogger.Fatal(err)
		}
	}

	if err := sensor.SetStreaming(true); err != nil {
		mqttctl.ERRORLogger.Fatalf("Start streaming failed: %v", err)
	}

	if err := sensor.WaitSensorState(hm5065.SensorStateRunning); err != nil {
		mqttctl.WARNINGLogger.Printf("Sensor not running: %v", err)
	}

	if rates, err := sensor.ReportedFrameRates(); err == nil {
		fmt.Printf("Sensor frame rate: requested %.2f, max %.2f, min %.2f Hz\n",
			float64(rates.Requested)/1000, float64(rates.Max)/1000, float64(rates.Min)/1000)
	}

	wait(*duration)

	if err := sensor.SetStreaming(false); err != nil {
		mqttctl.ERRORLogger.Printf("Stop streaming failed: %v", err)
	}

	if err := sensor.SetPower(false); err != nil {
		mqttctl.ERRORLogger.Printf("Power off failed: %v", err)
	}
}

// openBus opens the I2C bus with the selected backend
func openBus(driver, bus string) (hm5065.Conn, func()) {

	switch driver {
	case "periph":
		b, err := i2creg.Open(bus)

		if err != nil {
			mqttctl.ERRORLogger.Fatal(err)
		}

		return hm5065.I2CConn(b, hm5065.Address), func() { b.Close() }

	case "goi2c":
		dev, err := i2c.New(uint8(hm5065.Address), bus)

		if err != nil {
			mqttctl.ERRORLogger.Fatal(err)
		}

		conn, err := hm5065.GoI2CConn(dev)

		if err != nil {
			mqttctl.ERRORLogger.Fatal(err)
		}

		return conn, func() { dev.Close() }
	}

	mqttctl.ERRORLogger.Fatalf("unknown I2C driver %q", driver)
	return nil, nil
}

// pinByName returns the named GPIO, or nil when name is empty
func pinByName(name string) hm5065.OutputPin {

	if name == "" {
		return nil
	}

	return mustPin(name)
}

func mustPin(name string) gpio.PinIO {

	p := gpioreg.ByName(name)

	if p == nil {
		mqttctl.ERRORLogger.Fatalf("unknown GPIO %q", name)
	}

	return p
}

// rails maps a comma separated pin list onto the supply rails in enable order
func rails(list string) hm5065.GPIOSupplies {

	names := strings.Split(list, ",")

	if len(names) > len(hm5065.SupplyNames) {
		mqttctl.ERRORLogger.Fatalf("at most %d supply pins", len(hm5065.SupplyNames))
	}

	var s hm5065.GPIOSupplies

	for i, n := range names {
		s = append(s, hm5065.Rail{Name: hm5065.SupplyNames[i], Pin: mustPin(strings.TrimSpace(n))})
	}

	return s
}

// wait blocks for d or until interrupted
func wait(d time.Duration) {

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	var timeout <-chan time.Time

	if d > 0 {
		timeout = time.After(d)
	}

	select {
	case <-sig:
	case <-timeout:
	}
}
