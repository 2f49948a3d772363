package publish

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/mklimuk/lightsense"
)

var _ lightsense.Publisher = &MQTT{}

// MQTTOpts configures the broker connection.
type MQTTOpts struct {
	Broker   string
	ClientID string
	Username string
	Password string
	QoS      byte
	Retained bool
	Prefix   string
	Timeout  time.Duration
}

// MQTT forwards publications to an MQTT broker.
type MQTT struct {
	client   mqtt.Client
	qos      byte
	retained bool
	prefix   string
	log      *slog.Logger
}

// DialMQTT connects to the broker and waits for the connection to be
// acknowledged or for opts.Timeout to elapse.
func DialMQTT(opts MQTTOpts) (*MQTT, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	co := mqtt.NewClientOptions().
		AddBroker(opts.Broker).
		SetClientID(opts.ClientID).
		SetAutoReconnect(true).
		SetConnectTimeout(opts.Timeout)
	if opts.Username != "" {
		co.SetUsername(opts.Username).SetPassword(opts.Password)
	}
	client := mqtt.NewClient(co)
	token := client.Connect()
	if !token.WaitTimeout(opts.Timeout) {
		return nil, fmt.Errorf("mqtt: connect to %s timed out", opts.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt: could not connect to %s: %w", opts.Broker, err)
	}
	return NewMQTT(client, opts), nil
}

// NewMQTT wraps a connected client.
func NewMQTT(client mqtt.Client, opts MQTTOpts) *MQTT {
	return &MQTT{
		client:   client,
		qos:      opts.QoS,
		retained: opts.Retained,
		prefix:   opts.Prefix,
		log:      slog.Default().With("module", "mqtt"),
	}
}

// Publish hands the payload to the client and returns immediately. done is
// called from another goroutine once the broker acknowledged the message
// according to the QoS, or when ctx ends first.
func (m *MQTT) Publish(ctx context.Context, topic string, payload []byte, done lightsense.PublishCallback) {
	full := m.prefix + topic
	token := m.client.Publish(full, m.qos, m.retained, payload)
	go func() {
		var err error
		select {
		case <-token.Done():
			err = token.Error()
		case <-ctx.Done():
			err = ctx.Err()
		}
		if err != nil {
			m.log.Warn("publish failed", "topic", full, "error", err)
		}
		if done != nil {
			done(topic, err)
		}
	}()
}

// Close disconnects, giving in-flight work up to quiesce milliseconds.
func (m *MQTT) Close(quiesce uint) {
	m.client.Disconnect(quiesce)
}
