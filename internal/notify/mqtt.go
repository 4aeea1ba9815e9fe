package notify

import (
	"encoding/json"
	"time"

	"github.com/nerrad567/devicemgr/internal/device"
	"github.com/nerrad567/devicemgr/internal/infrastructure/mqtt"
)

// Publisher is the subset of mqtt.Client used by MQTTNotifier.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// MQTTNotifier publishes registry changes to an MQTT broker.
//
// Every change produces one non-retained Event on {prefix}/event/{op}.
// Adds and updates also refresh the retained {prefix}/state/{id} snapshot;
// a removal clears it with an empty retained message.
type MQTTNotifier struct {
	pub    Publisher
	topics mqtt.Topics
	qos    byte
	logger Logger
	now    func() time.Time

	failures int
}

// NewMQTTNotifier creates a notifier publishing through pub.
func NewMQTTNotifier(pub Publisher, topics mqtt.Topics, qos byte) *MQTTNotifier {
	return &MQTTNotifier{
		pub:    pub,
		topics: topics,
		qos:    qos,
		logger: noopLogger{},
		now:    time.Now,
	}
}

// SetLogger sets the logger for publish failures.
func (n *MQTTNotifier) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	n.logger = logger
}

// Failures returns how many publishes have failed so far.
func (n *MQTTNotifier) Failures() int {
	return n.failures
}

// DeviceChanged implements device.Observer.
func (n *MQTTNotifier) DeviceChanged(c device.Change) {
	ev := NewEvent(c, n.now())

	payload, err := json.Marshal(ev)
	if err != nil {
		n.fail("encoding event", err, c)
		return
	}
	n.publish(n.topics.Event(string(c.Op)), payload, false, c)

	stateTopic := n.topics.DeviceState(c.Device.ID)
	if c.Op == device.OpRemoved {
		n.publish(stateTopic, nil, true, c)
		return
	}

	state, err := json.Marshal(c.Device)
	if err != nil {
		n.fail("encoding state", err, c)
		return
	}
	n.publish(stateTopic, state, true, c)
}

func (n *MQTTNotifier) publish(topic string, payload []byte, retained bool, c device.Change) {
	if err := n.pub.Publish(topic, payload, n.qos, retained); err != nil {
		n.fail("publishing "+topic, err, c)
		return
	}
	n.logger.Debug("change published", "topic", topic, "op", c.Op)
}

func (n *MQTTNotifier) fail(what string, err error, c device.Change) {
	n.failures++
	n.logger.Warn("change notification failed",
		"step", what,
		"op", c.Op,
		"id", c.Device.ID,
		"error", err,
	)
}
