package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"codeberg.org/mutker/plugmon/internal/errors"
	"codeberg.org/mutker/plugmon/internal/storage"
	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

const (
	mqttConnectTimeout    = 10 * time.Second
	mqttPublishTimeout    = 5 * time.Second
	mqttDisconnectQuiesce = 250
	mqttMaxQoS            = 2
)

type MQTTConfig struct {
	Broker      string
	ClientID    string
	Username    string
	Password    string
	TopicPrefix string
	QoS         int
}

// MQTT publishes every reading as retained JSON on
// <prefix>/<device_id>/power.
type MQTT struct {
	client pahomqtt.Client
	prefix string
	qos    byte
}

// NewMQTT connects to the broker. Reconnects after a lost connection are
// handled by the client; publishes while disconnected fail.
func NewMQTT(cfg MQTTConfig) (*MQTT, error) {
	errFactory := errors.New()

	if cfg.Broker == "" {
		return nil, errFactory.WithMessage(ErrSinkConfig, "mqtt broker is required")
	}
	if cfg.QoS < 0 || cfg.QoS > mqttMaxQoS {
		return nil, errFactory.WithData(ErrSinkConfig, cfg.QoS)
	}

	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(mqttConnectTimeout)

	client := pahomqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(mqttConnectTimeout) {
		return nil, errFactory.WithData(ErrSinkConnect, "timeout after "+mqttConnectTimeout.String())
	}
	if err := token.Error(); err != nil {
		return nil, errFactory.Wrap(ErrSinkConnect, err)
	}

	return NewMQTTWithClient(client, cfg.TopicPrefix, byte(cfg.QoS)), nil
}

// NewMQTTWithClient wraps an existing client.
func NewMQTTWithClient(client pahomqtt.Client, prefix string, qos byte) *MQTT {
	return &MQTT{
		client: client,
		prefix: prefix,
		qos:    qos,
	}
}

func (*MQTT) Name() string {
	return "mqtt"
}

// Topic returns the topic readings of a device are published on.
func (m *MQTT) Topic(deviceID string) string {
	return fmt.Sprintf("%s/%s/power", m.prefix, deviceID)
}

func (m *MQTT) Publish(ctx context.Context, reading *storage.Reading) error {
	errFactory := errors.New()

	if !m.client.IsConnected() {
		return errFactory.New(ErrNotConnected)
	}

	payload, err := json.Marshal(reading)
	if err != nil {
		return errFactory.Wrap(ErrEncodeReading, err)
	}

	token := m.client.Publish(m.Topic(reading.DeviceID), m.qos, true, payload)

	timeout := mqttPublishTimeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = min(timeout, time.Until(deadline))
	}

	if !token.WaitTimeout(timeout) {
		return errFactory.WithData(ErrPublishTimeout, "mqtt publish to "+m.Topic(reading.DeviceID))
	}
	if err := token.Error(); err != nil {
		return errFactory.Wrap(ErrPublishFailed, err)
	}

	return nil
}

func (m *MQTT) Close() error {
	if m.client.IsConnected() {
		m.client.Disconnect(mqttDisconnectQuiesce)
	}
	return nil
}
