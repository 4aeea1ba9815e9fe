package mqtt

import (
	"fmt"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/devicemgr/internal/infrastructure/config"
)

// Client publishes registry changes to one broker and follows the registry
// event topics for watchers.
//
// Paho reconnects on its own after the link drops. Subscriptions made with
// Subscribe are replayed and the online status is republished after every
// reconnect. All methods are safe for concurrent use.
type Client struct {
	client pahomqtt.Client
	cfg    config.MQTTConfig
	topics Topics

	mu        sync.RWMutex
	connected bool
	subs      map[string]subscription
	onChange  ConnectionHandler
	logger    Logger
}

// Logger receives handler failures and reconnect attempts.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
}

// MessageHandler receives one message. Paho calls handlers from its own
// goroutines, so they must not block for long. A returned error is logged.
type MessageHandler func(topic string, payload []byte) error

// ConnectionHandler is told when the link state changes after Connect:
// connected is false (with the cause) when the link drops and true once paho
// has reconnected.
type ConnectionHandler func(connected bool, cause error)

type subscription struct {
	topic   string
	qos     byte
	handler MessageHandler
}

// Connect dials the broker described by cfg and waits for the CONNACK.
//
// The client registers a retained Last Will on {prefix}/system/status so
// subscribers can tell a crash from a clean Close.
func Connect(cfg config.MQTTConfig) (*Client, error) {
	c := &Client{
		cfg:    cfg,
		topics: Topics{Prefix: cfg.TopicPrefix},
		subs:   make(map[string]subscription),
	}

	opts := buildClientOptions(cfg)
	configureLWT(opts, c.topics, cfg.Broker.ClientID)
	opts.SetOnConnectHandler(func(pahomqtt.Client) {
		c.setConnected(true, nil)
	})
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		c.setConnected(false, err)
	})
	opts.SetReconnectingHandler(func(pahomqtt.Client, *pahomqtt.ClientOptions) {
		if logger := c.getLogger(); logger != nil {
			logger.Warn("MQTT reconnecting", "broker", cfg.Broker.Host)
		}
	})

	c.client = pahomqtt.NewClient(opts)
	if err := wait(c.client.Connect(), defaultConnectTimeout, ErrConnectionFailed); err != nil {
		// Stop the background connect retries.
		c.client.Disconnect(0)
		return nil, err
	}

	// The OnConnect handler runs asynchronously; mark the link up here so
	// callers can publish straight away.
	c.mu.Lock()
	c.connected = true
	c.mu.Unlock()
	return c, nil
}

// wait blocks until token completes or timeout elapses. Failures wrap failed;
// an unacknowledged operation also matches ErrTimeout.
func wait(token pahomqtt.Token, timeout time.Duration, failed error) error {
	if !token.WaitTimeout(timeout) {
		return fmt.Errorf("%w: %w after %v", failed, ErrTimeout, timeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", failed, err)
	}
	return nil
}

// setConnected records a link state change. On every (re)connect it replays
// the tracked subscriptions and republishes the online status. The
// ConnectionHandler only hears about actual transitions.
func (c *Client) setConnected(up bool, cause error) {
	c.mu.Lock()
	changed := c.connected != up
	c.connected = up
	handler := c.onChange
	var replay []subscription
	if up {
		replay = make([]subscription, 0, len(c.subs))
		for _, sub := range c.subs {
			replay = append(replay, sub)
		}
	}
	c.mu.Unlock()

	if up && c.client != nil {
		for _, sub := range replay {
			// Failures surface again on the next reconnect; nothing to return them to.
			c.client.Subscribe(sub.topic, sub.qos, c.wrapHandler(sub.handler))
		}
		c.client.Publish(c.topics.SystemStatus(), c.QoS(), true, buildOnlinePayload(c.cfg.Broker.ClientID))
	}
	if changed && handler != nil {
		handler(up, cause)
	}
}

// SetOnConnectionChange installs handler for link drops and reconnects.
// Pass nil to remove it.
func (c *Client) SetOnConnectionChange(handler ConnectionHandler) {
	c.mu.Lock()
	c.onChange = handler
	c.mu.Unlock()
}

// Close publishes a graceful offline status, then disconnects after giving
// in-flight operations a short quiesce period.
func (c *Client) Close() error {
	if c.client == nil {
		return nil
	}

	if c.IsConnected() {
		token := c.client.Publish(c.topics.SystemStatus(), c.QoS(), true, buildOfflinePayload(c.cfg.Broker.ClientID))
		token.WaitTimeout(defaultPublishTimeout)
	}
	c.client.Disconnect(defaultDisconnectQuiesce)

	c.mu.Lock()
	c.connected = false
	c.mu.Unlock()
	return nil
}

// IsConnected reports whether the link is currently up.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected && c.client != nil && c.client.IsConnected()
}

// Topics returns the topic builder for the configured prefix.
func (c *Client) Topics() Topics {
	return c.topics
}

// QoS returns the configured default QoS level.
func (c *Client) QoS() byte {
	return byte(c.cfg.QoS)
}

// SetLogger sets the logger for handler failures. Without one they are dropped.
func (c *Client) SetLogger(logger Logger) {
	c.mu.Lock()
	c.logger = logger
	c.mu.Unlock()
}

func (c *Client) getLogger() Logger {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.logger
}

// wrapHandler adapts handler to paho, recovering panics and logging errors.
func (c *Client) wrapHandler(handler MessageHandler) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		defer func() {
			if r := recover(); r != nil {
				if logger := c.getLogger(); logger != nil {
					logger.Error("MQTT handler panic recovered", "topic", msg.Topic(), "panic", r)
				}
			}
		}()

		if err := handler(msg.Topic(), msg.Payload()); err != nil {
			if logger := c.getLogger(); logger != nil {
				logger.Warn("MQTT handler returned error", "topic", msg.Topic(), "error", err)
			}
		}
	}
}
