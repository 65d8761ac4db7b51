package mqttctl

import (
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// qos used for commands and reports
const qos = 1

// Connect opens a client session to broker, e.g. "tcp://localhost:1883"
func Connect(broker, clientID string) (mqtt.Client, error) {

	opts := mqtt.NewClientOptions().AddBroker(broker).SetClientID(clientID)
	opts.SetKeepAlive(2 * time.Second)
	opts.SetPingTimeout(1 * time.Second)
	opts.SetAutoReconnect(true)
	opts.SetDefaultPublishHandler(func(_ mqtt.Client, msg mqtt.Message) {
		debugf("unhandled message on %s: %s", msg.Topic(), msg.Payload())
	})

	c := mqtt.NewClient(opts)

	if token := c.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}

	infof("connected to %s as %s", broker, clientID)

	return c, nil
}

// ClientPublisher returns a Publisher sending through c
func ClientPublisher(c mqtt.Client) Publisher {
	return func(topic string, payload []byte) error {
		token := c.Publish(topic, qos, false, payload)
		token.Wait()
		return token.Error()
	}
}

// Subscribe routes the command topics of c to the bridge and publishes the
// initial status
func (b *Bridge) Subscribe(c mqtt.Client) error {

	handler := func(_ mqtt.Client, msg mqtt.Message) {
		// failures are already reported on the error topic
		_ = b.Handle(msg.Topic(), msg.Payload())
	}

	if token := c.Subscribe(b.CommandTopic(), qos, handler); token.Wait() && token.Error() != nil {
		return token.Error()
	}

	infof("listening on %s", b.CommandTopic())

	return b.PublishStatus()
}
