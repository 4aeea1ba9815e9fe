package mqtt

import "fmt"

// maxPayloadSize caps a single message at 1MB, well inside common broker limits.
const maxPayloadSize = 1 << 20

// Publish sends payload to topic and waits for the broker acknowledgment
// required by qos. Device state topics are published retained so a new
// subscriber sees the current record at once; event topics are not.
func (c *Client) Publish(topic string, payload []byte, qos byte, retained bool) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: payload size %d exceeds maximum %d bytes", ErrPublishFailed, len(payload), maxPayloadSize)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	return wait(c.client.Publish(topic, qos, retained, payload), defaultPublishTimeout, ErrPublishFailed)
}
