package mqtt

import (
	"context"
	"net"
	"net/url"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/tphakala/imageclassifier/internal/errors"
	"github.com/tphakala/imageclassifier/internal/logger"
	"github.com/tphakala/imageclassifier/internal/observability/metrics"
)

// client implements the Client interface on top of paho.
type client struct {
	config         Config
	internalClient paho.Client
	mu             sync.Mutex
	metrics        *metrics.MQTTMetrics
}

// NewClient creates a new MQTT client. metrics may be nil.
func NewClient(cfg Config, m *metrics.MQTTMetrics) Client {
	if cfg.ClientID == "" {
		cfg.ClientID = "imageclassifier-" + uuid.NewString()[:8]
	}
	return &client{config: cfg, metrics: m}
}

// Connect resolves the broker host and establishes a connection.
func (c *client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	u, err := url.Parse(c.config.Broker)
	if err != nil {
		return c.connError(err, "parse_broker_url")
	}

	host := u.Hostname()
	if net.ParseIP(host) == nil {
		if _, err := net.DefaultResolver.LookupHost(ctx, host); err != nil {
			return c.connError(err, "resolve_host")
		}
	}

	opts := paho.NewClientOptions()
	opts.AddBroker(c.config.Broker)
	opts.SetClientID(c.config.ClientID)
	opts.SetUsername(c.config.Username)
	opts.SetPassword(c.config.Password)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(c.config.ConnectTimeout)
	opts.SetOnConnectHandler(c.onConnect)
	opts.SetConnectionLostHandler(c.onConnectionLost)

	c.internalClient = paho.NewClient(opts)

	token := c.internalClient.Connect()
	if !waitToken(ctx, token, c.config.ConnectTimeout) {
		return c.connError(errors.NewStd("connection timeout"), "connect")
	}
	if err := token.Error(); err != nil {
		return c.connError(err, "connect")
	}

	c.updateConnectionStatus(true)
	return nil
}

// Publish sends payload to topic, honouring the configured retain flag.
func (c *client) Publish(ctx context.Context, topic string, payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.internalClient == nil || !c.internalClient.IsConnected() {
		c.recordError("publish")
		return errors.New(errors.NewStd("not connected to MQTT broker")).
			Component("mqtt").
			Category(errors.CategoryMQTTPublish).
			Context("topic", topic).
			Build()
	}

	start := time.Now()
	token := c.internalClient.Publish(topic, 0, c.config.Retain, payload)
	if !waitToken(ctx, token, c.config.PublishTimeout) {
		c.recordError("publish")
		return errors.New(errors.NewStd("publish timeout")).
			Component("mqtt").
			Category(errors.CategoryMQTTPublish).
			Context("topic", topic).
			Timing("mqtt_publish", time.Since(start)).
			Build()
	}
	if err := token.Error(); err != nil {
		c.recordError("publish")
		return errors.New(err).
			Component("mqtt").
			Category(errors.CategoryMQTTPublish).
			Context("topic", topic).
			Build()
	}

	if c.metrics != nil {
		c.metrics.RecordPublish(len(payload), time.Since(start))
	}
	GetLogger().Debug("published message",
		logger.String("topic", topic),
		logger.Int("size", len(payload)))
	return nil
}

// IsConnected returns true if the client is currently connected to the MQTT broker.
func (c *client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.internalClient != nil && c.internalClient.IsConnected()
}

// Disconnect closes the connection to the MQTT broker.
func (c *client) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.internalClient != nil && c.internalClient.IsConnected() {
		c.internalClient.Disconnect(uint(c.config.DisconnectTimeout.Milliseconds()))
		c.updateConnectionStatus(false)
	}
}

func (c *client) onConnect(paho.Client) {
	GetLogger().Info("connected to MQTT broker", logger.String("broker", c.config.Broker))
	c.updateConnectionStatus(true)
}

func (c *client) onConnectionLost(_ paho.Client, err error) {
	GetLogger().Warn("connection to MQTT broker lost",
		logger.String("broker", c.config.Broker),
		logger.Error(err))
	c.updateConnectionStatus(false)
	c.recordError("connection_lost")
}

func (c *client) connError(err error, op string) error {
	c.recordError("connect")
	return errors.New(err).
		Component("mqtt").
		Category(errors.CategoryMQTTConnection).
		Context("broker", c.config.Broker).
		Context("operation", op).
		Build()
}

func (c *client) updateConnectionStatus(connected bool) {
	if c.metrics != nil {
		c.metrics.UpdateConnectionStatus(connected)
	}
}

func (c *client) recordError(op string) {
	if c.metrics != nil {
		c.metrics.RecordError(op)
	}
}

// waitToken waits for token completion, the timeout, or ctx cancellation.
func waitToken(ctx context.Context, token paho.Token, timeout time.Duration) bool {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-token.Done():
		return true
	case <-timer.C:
		return false
	case <-ctx.Done():
		return false
	}
}
