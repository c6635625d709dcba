// Package mqtt bridges decoder and transmit events onto an MQTT broker and
// accepts remote transmit requests.
package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/pietro2356/gr-selcall/pkg/logger"
)

const (
	connectTimeout    = 10 * time.Second
	keepAlive         = 60 * time.Second
	pingTimeout       = 10 * time.Second
	retryInterval     = 10 * time.Second
	maxReconnectDelay = time.Minute
	publishTimeout    = 5 * time.Second
)

// Config holds MQTT client configuration
type Config struct {
	Enabled     bool
	Broker      string
	ClientID    string
	TopicPrefix string
	Username    string
	Password    string
	QoS         byte
	Protocol    string // active protocol name, used to refuse mismatched tx requests
}

// TxHandler is invoked for each transmit request received on the tx topic.
type TxHandler func(destination string) error

// Client publishes daemon events and subscribes to transmit requests.
type Client struct {
	config Config
	log    *logger.Logger
	client pahomqtt.Client
	onTx   TxHandler
}

// txRequest is the JSON form of a transmit request payload
type txRequest struct {
	Destination string `json:"destination"`
	Protocol    string `json:"protocol,omitempty"`
}

// New creates a new MQTT client
func New(config Config, log *logger.Logger) *Client {
	if log == nil {
		log = logger.New(logger.Config{Level: "info", Format: "text"})
	}
	if config.ClientID == "" {
		config.ClientID = "selcall-" + uuid.New().String()[:8]
	}

	return &Client{
		config: config,
		log:    log.WithComponent("mqtt"),
	}
}

// OnTxRequest sets the transmit request handler. Must be called before Start.
func (c *Client) OnTxRequest(fn TxHandler) {
	c.onTx = fn
}

// Start connects to the broker. The connection is established in the
// background; a broker that is down at startup is retried until it appears.
func (c *Client) Start(ctx context.Context) error {
	if !c.config.Enabled {
		c.log.Info("MQTT client disabled")
		return nil
	}

	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(c.config.Broker)
	opts.SetClientID(c.config.ClientID)
	if c.config.Username != "" {
		opts.SetUsername(c.config.Username)
	}
	if c.config.Password != "" {
		opts.SetPassword(c.config.Password)
	}

	opts.SetKeepAlive(keepAlive)
	opts.SetPingTimeout(pingTimeout)
	opts.SetConnectTimeout(connectTimeout)
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(maxReconnectDelay)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(retryInterval)

	// The broker marks us offline if the connection dies uncleanly.
	opts.SetWill(c.topic("status"), "offline", c.config.QoS, true)

	opts.SetOnConnectHandler(c.onConnect)
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		c.log.Warn("Connection lost", logger.Error(err))
	})
	opts.SetReconnectingHandler(func(_ pahomqtt.Client, _ *pahomqtt.ClientOptions) {
		c.log.Info("Reconnecting to broker")
	})

	c.client = pahomqtt.NewClient(opts)

	c.log.Info("Starting MQTT client",
		logger.String("broker", c.config.Broker),
		logger.String("client_id", c.config.ClientID))

	token := c.client.Connect()
	go func() {
		token.Wait()
		if err := token.Error(); err != nil {
			c.log.Error("Connect failed", logger.Error(err))
		}
	}()

	return nil
}

// onConnect runs on every (re)connection: announce presence and resubscribe.
func (c *Client) onConnect(client pahomqtt.Client) {
	c.log.Info("Connected to broker", logger.String("broker", c.config.Broker))

	token := client.Publish(c.topic("status"), c.config.QoS, true, "online")
	if token.WaitTimeout(publishTimeout) && token.Error() != nil {
		c.log.Warn("Failed to publish online status", logger.Error(token.Error()))
	}

	txTopic := c.topic("tx")
	sub := client.Subscribe(txTopic, c.config.QoS, c.handleTxMessage)
	if sub.WaitTimeout(publishTimeout) && sub.Error() != nil {
		c.log.Error("Failed to subscribe", logger.String("topic", txTopic), logger.Error(sub.Error()))
		return
	}
	c.log.Info("Subscribed for transmit requests", logger.String("topic", txTopic))
}

// Stop announces offline status and disconnects cleanly.
func (c *Client) Stop() {
	if !c.config.Enabled || c.client == nil {
		return
	}

	c.log.Info("Stopping MQTT client")
	if c.client.IsConnected() {
		token := c.client.Publish(c.topic("status"), c.config.QoS, true, "offline")
		token.WaitTimeout(publishTimeout)
	}
	c.client.Disconnect(250)
}

// PublishDecode publishes a decode event
func (c *Client) PublishDecode(event interface{}) error {
	return c.publish(c.topic("decode"), event)
}

// PublishTransmission publishes a transmission record
func (c *Client) PublishTransmission(event interface{}) error {
	return c.publish(c.topic("transmission"), event)
}

// PublishGate publishes a gate state change
func (c *Client) PublishGate(event interface{}) error {
	return c.publish(c.topic("gate"), event)
}

// PublishRinger publishes a ringer activation
func (c *Client) PublishRinger(event interface{}) error {
	return c.publish(c.topic("ringer"), event)
}

// publish serializes an event and sends it to a topic
func (c *Client) publish(topic string, event interface{}) error {
	if !c.config.Enabled || c.client == nil {
		return nil
	}

	payload, err := json.Marshal(event)
	if err != nil {
		c.log.Error("Failed to serialize event",
			logger.String("topic", topic),
			logger.Error(err))
		return err
	}

	token := c.client.Publish(topic, c.config.QoS, false, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish to %s timed out", topic)
	}
	if err := token.Error(); err != nil {
		c.log.Warn("Publish failed",
			logger.String("topic", topic),
			logger.Error(err))
		return err
	}
	return nil
}

// handleTxMessage processes an incoming transmit request
func (c *Client) handleTxMessage(_ pahomqtt.Client, msg pahomqtt.Message) {
	c.dispatchTx(msg.Payload())
}

// dispatchTx parses a transmit request payload and hands it to the handler.
// Malformed requests are logged and dropped.
func (c *Client) dispatchTx(payload []byte) {
	dest, proto, err := parseTxRequest(payload)
	if err != nil {
		c.log.Warn("Dropping malformed transmit request", logger.Error(err))
		return
	}
	if proto != "" && c.config.Protocol != "" && !strings.EqualFold(proto, c.config.Protocol) {
		c.log.Warn("Dropping transmit request for other protocol",
			logger.String("requested", proto),
			logger.String("active", c.config.Protocol))
		return
	}
	if c.onTx == nil {
		c.log.Warn("No transmit handler registered, dropping request",
			logger.String("destination", dest))
		return
	}
	if err := c.onTx(dest); err != nil {
		c.log.Warn("Transmit request refused",
			logger.String("destination", dest),
			logger.Error(err))
	}
}

// parseTxRequest accepts either a bare destination code or a JSON object
// with destination and optional protocol fields.
func parseTxRequest(payload []byte) (destination, protocol string, err error) {
	raw := strings.TrimSpace(string(payload))
	if raw == "" {
		return "", "", fmt.Errorf("empty payload")
	}
	if strings.HasPrefix(raw, "{") {
		var req txRequest
		if err := json.Unmarshal([]byte(raw), &req); err != nil {
			return "", "", fmt.Errorf("invalid JSON payload: %w", err)
		}
		if req.Destination == "" {
			return "", "", fmt.Errorf("missing destination field")
		}
		return req.Destination, req.Protocol, nil
	}
	return raw, "", nil
}

// topic formats a topic with the configured prefix
func (c *Client) topic(suffix string) string {
	prefix := strings.TrimSuffix(c.config.TopicPrefix, "/")
	if prefix == "" {
		return suffix
	}
	return fmt.Sprintf("%s/%s", prefix, suffix)
}
