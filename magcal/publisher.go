package magcal

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"
)

const (
	// DefaultPublishPrefix is the topic prefix when none is configured
	DefaultPublishPrefix = "magcal"

	publishTimeout = 2 * time.Second
	connectTimeout = 10 * time.Second
)

// Publisher publishes calibration reports to MQTT
type Publisher struct {
	client mqtt.Client
	prefix string
	qos    byte
	retain bool
}

// NewPublisher creates a report publisher. Reports are retained so late
// subscribers see the most recent calibration.
func NewPublisher(client mqtt.Client, prefix string) *Publisher {
	if prefix == "" {
		prefix = DefaultPublishPrefix
	}
	return &Publisher{
		client: client,
		prefix: prefix,
		qos:    0,
		retain: true,
	}
}

// SetQoS sets the Quality of Service level for publishing (0, 1, or 2)
func (p *Publisher) SetQoS(qos byte) {
	if qos <= 2 {
		p.qos = qos
	}
}

// SetRetain sets whether published messages should be retained by the broker
func (p *Publisher) SetRetain(retain bool) {
	p.retain = retain
}

// PublishReport publishes the full report to <prefix>/report and the
// transform alone to <prefix>/transform.
func (p *Publisher) PublishReport(r *Report) error {
	if p.client == nil || !p.client.IsConnected() {
		return ErrNotConnected
	}
	if r == nil {
		return errors.New("nil report")
	}

	if err := p.publishJSON(p.prefix+"/report", r); err != nil {
		return err
	}
	if err := p.publishJSON(p.prefix+"/transform", r.Transform); err != nil {
		return err
	}

	log.WithFields(log.Fields{
		"prefix":  p.prefix,
		"samples": r.Samples,
		"rank":    r.Rank,
	}).Info("published calibration report")
	return nil
}

func (p *Publisher) publishJSON(topic string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshaling %s payload: %w", topic, err)
	}

	token := p.client.Publish(topic, p.qos, p.retain, payload)
	if token.WaitTimeout(publishTimeout) && token.Error() != nil {
		return fmt.Errorf("publishing to %s: %w", topic, token.Error())
	}
	return nil
}

// ConnectMQTT connects to the configured broker and waits for the
// connection to complete.
func ConnectMQTT(cfg MQTTConfig) (mqtt.Client, error) {
	if cfg.Broker == "" {
		return nil, errors.New("mqtt.broker is required")
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)

	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "magcal"
	}
	opts.SetClientID(clientID)

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetConnectTimeout(connectTimeout)
	opts.SetCleanSession(true)

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("connecting to %s: timed out", cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", cfg.Broker, err)
	}

	log.WithFields(log.Fields{"broker": cfg.Broker, "clientId": clientID}).Info("connected to MQTT broker")
	return client, nil
}
