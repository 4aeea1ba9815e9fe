package mqtt

import "fmt"

// Subscribe routes messages matching topic to handler. topic may use the +
// and # wildcards; see Topics.AllEvents and Topics.AllStates.
//
// The subscription is remembered and replayed after a reconnect until
// Unsubscribe is called with the same topic string.
func (c *Client) Subscribe(topic string, qos byte, handler MessageHandler) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if handler == nil {
		return fmt.Errorf("%w: handler cannot be nil", ErrSubscribeFailed)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	if err := wait(c.client.Subscribe(topic, qos, c.wrapHandler(handler)), defaultPublishTimeout, ErrSubscribeFailed); err != nil {
		return err
	}

	c.mu.Lock()
	c.subs[topic] = subscription{topic: topic, qos: qos, handler: handler}
	c.mu.Unlock()
	return nil
}

// Unsubscribe stops delivery for a topic previously passed to Subscribe.
// Messages already in flight may still reach the handler.
func (c *Client) Unsubscribe(topic string) error {
	if topic == "" {
		return ErrInvalidTopic
	}

	// Forget it first so a reconnect cannot bring it back.
	c.mu.Lock()
	delete(c.subs, topic)
	c.mu.Unlock()

	if !c.IsConnected() {
		return ErrNotConnected
	}
	return wait(c.client.Unsubscribe(topic), defaultPublishTimeout, ErrUnsubscribeFailed)
}
