// internal/telemetry/mqtt.go
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
)

// MQTTConfig is the broker session config.
type MQTTConfig struct {
	Broker   string // tcp://host:1883
	ClientID string // generated when empty
	Username string
	Password string

	// ConnectRetries bounds startup connection attempts.
	ConnectRetries uint64
	// ConnectMaxElapsed bounds total startup connection time.
	ConnectMaxElapsed time.Duration
}

// Connect opens a broker session, retrying with exponential backoff.
// Once connected, paho's auto-reconnect owns the session.
func Connect(ctx context.Context, cfg MQTTConfig, log *slog.Logger) (mqtt.Client, error) {
	if cfg.Broker == "" {
		return nil, errors.New("telemetry: broker required")
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "pressure-bridge-" + uuid.NewString()[:8]
	}
	if log == nil {
		log = slog.Default()
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.Warn("mqtt connection lost", "broker", cfg.Broker, "err", err)
	})
	opts.SetOnConnectHandler(func(mqtt.Client) {
		log.Info("mqtt connected", "broker", cfg.Broker, "client_id", cfg.ClientID)
	})

	bo := backoff.NewExponentialBackOff()
	if cfg.ConnectMaxElapsed > 0 {
		bo.MaxElapsedTime = cfg.ConnectMaxElapsed
	}
	var policy backoff.BackOff = bo
	if cfg.ConnectRetries > 0 {
		policy = backoff.WithMaxRetries(bo, cfg.ConnectRetries-1)
	}

	var client mqtt.Client
	err := backoff.Retry(func() error {
		client = mqtt.NewClient(opts)
		if token := client.Connect(); token.Wait() && token.Error() != nil {
			log.Warn("mqtt connect failed", "broker", cfg.Broker, "err", token.Error())
			return token.Error()
		}
		return nil
	}, backoff.WithContext(policy, ctx))
	if err != nil {
		return nil, fmt.Errorf("telemetry: could not connect to %s: %w", cfg.Broker, err)
	}

	return client, nil
}

// mqttClient is the part of mqtt.Client the sink uses.
type mqttClient interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	IsConnectionOpen() bool
	Disconnect(quiesce uint)
}

// MQTTTopics names the two fixed telemetry topics.
type MQTTTopics struct {
	Pressure    string
	Temperature string
}

// MQTTSink publishes each value as an ASCII decimal integer, retained,
// so a late subscriber immediately receives the last value.
type MQTTSink struct {
	client mqttClient
	topics MQTTTopics
	qos    byte
}

// NewMQTTSink wraps a connected client.
func NewMQTTSink(client mqttClient, topics MQTTTopics, qos byte) (*MQTTSink, error) {
	if client == nil {
		return nil, errors.New("telemetry: mqtt client required")
	}
	if topics.Pressure == "" || topics.Temperature == "" {
		return nil, errors.New("telemetry: both topics required")
	}
	if qos < 1 || qos > 2 {
		return nil, fmt.Errorf("telemetry: qos %d, retained values need 1 or 2", qos)
	}
	return &MQTTSink{client: client, topics: topics, qos: qos}, nil
}

func (s *MQTTSink) Name() string { return "mqtt" }

// Publish sends pressure then temperature.
func (s *MQTTSink) Publish(ctx context.Context, m Message) error {
	if err := s.send(ctx, s.topics.Pressure, m.Pressure); err != nil {
		return err
	}
	return s.send(ctx, s.topics.Temperature, m.Temperature)
}

func (s *MQTTSink) send(ctx context.Context, topic string, v int16) error {
	token := s.client.Publish(topic, s.qos, true, strconv.Itoa(int(v)))
	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			return fmt.Errorf("mqtt publish %s: %w", topic, err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("mqtt publish %s: %w", topic, ctx.Err())
	}
}

// Connected reports whether the broker session is open.
func (s *MQTTSink) Connected() bool {
	return s.client.IsConnectionOpen()
}

// Close disconnects, allowing 250ms for in-flight work.
func (s *MQTTSink) Close() error {
	s.client.Disconnect(250)
	return nil
}
