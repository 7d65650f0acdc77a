package mqtt

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/gray-logic-compliance/internal/infrastructure/config"
)

// Client is a paho connection that receives evaluation outcomes, publishes
// compliance status and events, and announces service presence on the
// system status topic. Methods are safe for concurrent use; subscriptions
// are restored after a reconnect.
type Client struct {
	client pahomqtt.Client
	cfg    config.MQTTConfig

	connected atomic.Bool

	subMu         sync.RWMutex
	subscriptions map[string]subscription

	// hooks guards the optional logger and connection callbacks.
	hooks struct {
		sync.RWMutex
		logger       Logger
		onConnect    func()
		onDisconnect func(err error)
	}
}

// Logger receives handler failures and reconnect notices. Satisfied by
// *logging.Logger and *slog.Logger.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
}

type subscription struct {
	qos     byte
	handler MessageHandler
}

// MessageHandler processes one inbound message. It runs on a paho goroutine,
// so it should return promptly; a returned error is only logged.
type MessageHandler func(topic string, payload []byte) error

// Connect dials the broker described by cfg and waits up to
// defaultConnectTimeout for the first session. A Last Will marks the
// service offline on the system status topic if the connection drops; the
// online status is republished on every (re)connect.
func Connect(cfg config.MQTTConfig) (*Client, error) {
	c := &Client{
		cfg:           cfg,
		subscriptions: make(map[string]subscription),
	}

	opts := buildClientOptions(cfg)
	configureLWT(opts, cfg.Broker.ClientID)
	opts.SetOnConnectHandler(func(pahomqtt.Client) { c.onConnected() })
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) { c.onConnectionLost(err) })
	opts.SetReconnectingHandler(func(pahomqtt.Client, *pahomqtt.ClientOptions) {
		if log := c.log(); log != nil {
			log.Warn("MQTT reconnecting", "client_id", cfg.Broker.ClientID)
		}
	})

	c.client = pahomqtt.NewClient(opts)
	token := c.client.Connect()
	if !token.WaitTimeout(defaultConnectTimeout) {
		return nil, fmt.Errorf("%w: timeout after %v", ErrConnectionFailed, defaultConnectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	// The connect handler may not have run yet.
	c.connected.Store(true)
	return c, nil
}

func (c *Client) onConnected() {
	c.connected.Store(true)

	c.subMu.RLock()
	for topic, sub := range c.subscriptions {
		// A failed resubscribe shows up as the next connection loss.
		c.client.Subscribe(topic, sub.qos, c.wrapHandler(sub.handler))
	}
	c.subMu.RUnlock()

	c.client.Publish(Topics{}.SystemStatus(), byte(c.cfg.QoS), true, buildOnlinePayload(c.cfg.Broker.ClientID))

	c.hooks.RLock()
	cb := c.hooks.onConnect
	c.hooks.RUnlock()
	if cb != nil {
		cb()
	}
}

func (c *Client) onConnectionLost(err error) {
	c.connected.Store(false)

	c.hooks.RLock()
	cb := c.hooks.onDisconnect
	c.hooks.RUnlock()
	if cb != nil {
		cb(err)
	}
}

// Close publishes a graceful offline status, which differs from the Last
// Will reason, then disconnects. Safe on a nil or never-connected client.
func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}

	if c.IsConnected() {
		c.client.Publish(Topics{}.SystemStatus(), byte(c.cfg.QoS), true, buildOfflinePayload(c.cfg.Broker.ClientID)).
			WaitTimeout(defaultPublishTimeout)
	}
	c.client.Disconnect(defaultDisconnectQuiesce)
	c.connected.Store(false)
	return nil
}

// HealthCheck returns ErrNotConnected while the broker connection is down.
func (c *Client) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("mqtt health check: %w", err)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

// IsConnected reports whether the broker session is currently up.
func (c *Client) IsConnected() bool {
	return c.connected.Load() && c.client != nil && c.client.IsConnected()
}

// SetOnConnect registers a callback run after the initial connect and every reconnect.
func (c *Client) SetOnConnect(callback func()) {
	c.hooks.Lock()
	c.hooks.onConnect = callback
	c.hooks.Unlock()
}

// SetOnDisconnect registers a callback run when the connection is lost.
func (c *Client) SetOnDisconnect(callback func(err error)) {
	c.hooks.Lock()
	c.hooks.onDisconnect = callback
	c.hooks.Unlock()
}

// SetLogger sets the logger for handler errors and panics. Without one they
// are dropped.
func (c *Client) SetLogger(logger Logger) {
	c.hooks.Lock()
	c.hooks.logger = logger
	c.hooks.Unlock()
}

func (c *Client) log() Logger {
	c.hooks.RLock()
	defer c.hooks.RUnlock()
	return c.hooks.logger
}

// wrapHandler adapts a MessageHandler to paho, recovering panics and
// logging returned errors.
func (c *Client) wrapHandler(handler MessageHandler) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		defer func() {
			if r := recover(); r != nil {
				if log := c.log(); log != nil {
					log.Error("MQTT handler panic recovered", "topic", msg.Topic(), "panic", r)
				}
			}
		}()

		if err := handler(msg.Topic(), msg.Payload()); err != nil {
			if log := c.log(); log != nil {
				log.Warn("MQTT handler returned error", "topic", msg.Topic(), "error", err)
			}
		}
	}
}
