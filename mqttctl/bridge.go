// Package mqttctl drives an HM5065 sensor remotely. Commands arrive as JSON
// documents on <prefix>/set/<command> topics, the device status is published
// on <prefix>/status after every command and failures on <prefix>/error.
package mqttctl

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	hm5065 "github.com/swdee/go-hm5065"
)

// Device is the part of the sensor driver the bridge controls.
// *hm5065.HM5065 satisfies it.
type Device interface {
	SetPower(on bool) error
	SetStreaming(enable bool) error
	SetFormat(req hm5065.Format) (hm5065.Format, error)
	SetFrameInterval(req hm5065.Interval) (hm5065.Interval, error)
	SetControl(id hm5065.ControlID, value int32) error
	Status() hm5065.Status
}

// Publisher sends payload on topic
type Publisher func(topic string, payload []byte) error

// ErrUnknownCommand is returned for a topic outside the command set
var ErrUnknownCommand = errors.New("unknown command")

// Command payloads
type (
	PowerCommand struct {
		On bool `json:"on"`
	}

	StreamCommand struct {
		Enable bool `json:"enable"`
	}

	// FormatCommand selects a pixel code by name, an empty code keeps the
	// current one
	FormatCommand struct {
		Code   string `json:"code"`
		Width  uint32 `json:"width"`
		Height uint32 `json:"height"`
	}

	IntervalCommand struct {
		Numerator   uint32 `json:"numerator"`
		Denominator uint32 `json:"denominator"`
	}

	ControlCommand struct {
		Name  string `json:"name"`
		Value int32  `json:"value"`
	}
)

// FormatDoc is the format section of the status document
type FormatDoc struct {
	Code   string `json:"code"`
	Width  uint32 `json:"width"`
	Height uint32 `json:"height"`
}

// StatusDoc is published on <prefix>/status
type StatusDoc struct {
	State     string          `json:"state"`
	Powered   bool            `json:"powered"`
	Streaming bool            `json:"streaming"`
	Pending   bool            `json:"pending"`
	Format    FormatDoc       `json:"format"`
	Interval  IntervalCommand `json:"interval"`
}

// ErrorDoc is published on <prefix>/error
type ErrorDoc struct {
	Topic string `json:"topic"`
	Error string `json:"error"`
}

// Bridge maps MQTT commands onto a Device
type Bridge struct {
	dev     Device
	prefix  string
	publish Publisher
}

// NewBridge returns a bridge for dev publishing through publish. prefix is the
// topic root, without a trailing slash.
func NewBridge(dev Device, prefix string, publish Publisher) *Bridge {
	return &Bridge{
		dev:     dev,
		prefix:  strings.TrimSuffix(prefix, "/"),
		publish: publish,
	}
}

// CommandTopic is the wildcard topic the bridge subscribes to
func (b *Bridge) CommandTopic() string {
	return b.prefix + "/set/#"
}

// StatusTopic is where the status document is published
func (b *Bridge) StatusTopic() string {
	return b.prefix + "/status"
}

// ErrorTopic is where command failures are published
func (b *Bridge) ErrorTopic() string {
	return b.prefix + "/error"
}

// Handle applies one command message. A failed command is reported on the
// error topic. The status is published after every command, failed or not.
func (b *Bridge) Handle(topic string, payload []byte) error {

	debugf("command %s: %s", topic, payload)

	err := b.apply(topic, payload)

	if err != nil {
		warnf("command %s failed: %v", topic, err)

		if perr := b.publishJSON(b.ErrorTopic(), ErrorDoc{Topic: topic, Error: err.Error()}); perr != nil {
			errorf("publish error report: %v", perr)
		}
	}

	if perr := b.PublishStatus(); perr != nil {
		errorf("publish status: %v", perr)
		return errors.Join(err, perr)
	}

	return err
}

func (b *Bridge) apply(topic string, payload []byte) error {

	cmd, ok := strings.CutPrefix(topic, b.prefix+"/set/")

	if !ok {
		return fmt.Errorf("%s: %w", topic, ErrUnknownCommand)
	}

	switch cmd {
	case "power":
		var c PowerCommand

		if err := json.Unmarshal(payload, &c); err != nil {
			return fmt.Errorf("decode power command: %w", err)
		}

		infof("power on=%t", c.On)
		return b.dev.SetPower(c.On)

	case "stream":
		var c StreamCommand

		if err := json.Unmarshal(payload, &c); err != nil {
			return fmt.Errorf("decode stream command: %w", err)
		}

		infof("stream enable=%t", c.Enable)
		return b.dev.SetStreaming(c.Enable)

	case "format":
		var c FormatCommand

		if err := json.Unmarshal(payload, &c); err != nil {
			return fmt.Errorf("decode format command: %w", err)
		}

		req := hm5065.Format{
			Code:   b.dev.Status().Format.Code,
			Width:  c.Width,
			Height: c.Height,
		}

		if c.Code != "" {
			code, ok := ParsePixelCode(c.Code)

			if !ok {
				return fmt.Errorf("pixel code %q: %w", c.Code, hm5065.ErrInvalidArgument)
			}

			req.Code = code
		}

		f, err := b.dev.SetFormat(req)

		if err != nil {
			return err
		}

		infof("format %s %dx%d", f.Code, f.Width, f.Height)
		return nil

	case "interval":
		var c IntervalCommand

		if err := json.Unmarshal(payload, &c); err != nil {
			return fmt.Errorf("decode interval command: %w", err)
		}

		i, err := b.dev.SetFrameInterval(hm5065.Interval{Numerator: c.Numerator, Denominator: c.Denominator})

		if err != nil {
			return err
		}

		infof("frame interval %d/%d", i.Numerator, i.Denominator)
		return nil

	case "control":
		var c ControlCommand

		if err := json.Unmarshal(payload, &c); err != nil {
			return fmt.Errorf("decode control command: %w", err)
		}

		id, ok := hm5065.ParseControl(c.Name)

		if !ok {
			return fmt.Errorf("control %q: %w", c.Name, hm5065.ErrUnsupported)
		}

		infof("control %s=%d", id, c.Value)
		return b.dev.SetControl(id, c.Value)
	}

	return fmt.Errorf("%s: %w", topic, ErrUnknownCommand)
}

// PublishStatus publishes the current device status
func (b *Bridge) PublishStatus() error {

	s := b.dev.Status()

	return b.publishJSON(b.StatusTopic(), StatusDoc{
		State:     s.State.String(),
		Powered:   s.Powered,
		Streaming: s.Streaming,
		Pending:   s.PendingModeChange,
		Format: FormatDoc{
			Code:   s.Format.Code.String(),
			Width:  s.Format.Width,
			Height: s.Format.Height,
		},
		Interval: IntervalCommand{
			Numerator:   s.Interval.Numerator,
			Denominator: s.Interval.Denominator,
		},
	})
}

func (b *Bridge) publishJSON(topic string, obj any) error {

	msg, err := json.Marshal(obj)

	if err != nil {
		return err
	}

	return b.publish(topic, msg)
}

// ParsePixelCode looks up a supported pixel code by its name
func ParsePixelCode(name string) (hm5065.PixelCode, bool) {

	for _, pf := range hm5065.PixelFormats() {
		if strings.EqualFold(pf.Code.String(), strings.TrimSpace(name)) {
			return pf.Code, true
		}
	}

	return 0, false
}
