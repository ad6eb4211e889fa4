// Package publish forwards reports to an MQTT broker. Every report goes to
// <prefix>/<kind>/report; an alert goes to <prefix>/<kind>/alert when a
// board becomes active or returns to normal.
package publish

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/itohio/fieldwatch/pkg/config"
	"github.com/itohio/fieldwatch/pkg/monitor"
	"github.com/itohio/fieldwatch/pkg/telemetry"
)

// DefaultTimeout bounds how long a publish waits for the broker.
const DefaultTimeout = 5 * time.Second

// ErrTimeout is returned when the broker does not acknowledge in time.
var ErrTimeout = errors.New("mqtt publish timed out")

// Client is the part of mqtt.Client the publisher needs.
type Client interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

// Alert states.
const (
	Raised  = "raised"
	Cleared = "cleared"
)

// Message is the report payload.
type Message struct {
	ID     string           `json:"id"`
	Report telemetry.Report `json:"report"`
}

// Alert is published when a board's active state flips.
type Alert struct {
	ID       string           `json:"id"`
	Kind     telemetry.Kind   `json:"kind"`
	State    string           `json:"state"`
	Severity monitor.Severity `json:"severity"`
	Cutoff   bool             `json:"cutoff,omitempty"`
	Time     time.Time        `json:"time"`
}

// Publisher sends reports and alerts. It is safe for concurrent use.
type Publisher struct {
	client  Client
	prefix  string
	qos     byte
	timeout time.Duration
	newID   func() string

	mu     sync.Mutex
	active map[telemetry.Kind]bool
}

// New wraps a connected client.
func New(client Client, prefix string, qos byte) *Publisher {
	return &Publisher{
		client:  client,
		prefix:  prefix,
		qos:     qos,
		timeout: DefaultTimeout,
		newID:   func() string { return uuid.NewString() },
		active:  make(map[telemetry.Kind]bool),
	}
}

// Dial connects to the broker in cfg.
func Dial(cfg config.MQTTConfig) (*Publisher, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectTimeout(DefaultTimeout)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.WaitTimeout(DefaultTimeout) && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", cfg.Broker, token.Error())
	} else if !client.IsConnected() {
		return nil, fmt.Errorf("failed to connect to %s: %w", cfg.Broker, ErrTimeout)
	}
	return New(client, cfg.Prefix, cfg.QoS), nil
}

// ReportTopic returns the topic reports of kind are published on.
func (p *Publisher) ReportTopic(kind telemetry.Kind) string {
	return p.prefix + "/" + string(kind) + "/report"
}

// AlertTopic returns the topic alerts of kind are published on.
func (p *Publisher) AlertTopic(kind telemetry.Kind) string {
	return p.prefix + "/" + string(kind) + "/alert"
}

// Publish sends r and, if its active state differs from the previous report
// of the same kind, an alert. The first report of a kind raises an alert
// only if it is active.
func (p *Publisher) Publish(r telemetry.Report) error {
	if err := p.send(p.ReportTopic(r.Kind), false, Message{ID: p.newID(), Report: r}); err != nil {
		return err
	}

	active := r.Active()
	p.mu.Lock()
	flipped := p.active[r.Kind] != active
	p.active[r.Kind] = active
	p.mu.Unlock()

	if !flipped {
		return nil
	}

	alert := Alert{
		ID:       p.newID(),
		Kind:     r.Kind,
		State:    Cleared,
		Severity: r.Level(),
		Cutoff:   r.Cutoff,
		Time:     r.Time,
	}
	if active {
		alert.State = Raised
	}
	// Alerts are retained so late subscribers see the current state.
	return p.send(p.AlertTopic(r.Kind), true, alert)
}

func (p *Publisher) send(topic string, retained bool, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", topic, err)
	}

	token := p.client.Publish(topic, p.qos, retained, payload)
	if !token.WaitTimeout(p.timeout) {
		return fmt.Errorf("%s: %w", topic, ErrTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to publish %s: %w", topic, err)
	}
	return nil
}

// Close disconnects from the broker.
func (p *Publisher) Close() {
	p.client.Disconnect(250)
}
