package delivery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
)

const DefaultTopic = "photobooth/captures"

var errNotConnected = errors.New("mqtt not connected")

// Announcement is the JSON notice published for each capture.
type Announcement struct {
	ID      string    `json:"id"`
	Path    string    `json:"path"`
	Tag     string    `json:"tag,omitempty"`
	TakenAt time.Time `json:"taken_at"`
}

// client is the part of mqtt.Client the announcer uses.
type client interface {
	IsConnected() bool
	Connect() mqtt.Token
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

func newPahoClient(opts *mqtt.ClientOptions) client { return mqtt.NewClient(opts) }

// MQTTAnnouncer publishes an Announcement per delivery.
type MQTTAnnouncer struct {
	Broker   string
	ClientID string
	Topic    string
	QoS      byte
	Timeout  time.Duration

	log       zerolog.Logger
	newClient func(*mqtt.ClientOptions) client

	mu        sync.Mutex
	client    client
	stopped   bool
	published uint64
	errors    uint64
}

func NewMQTTAnnouncer(broker, clientID, topic string, log zerolog.Logger) *MQTTAnnouncer {
	if topic == "" {
		topic = DefaultTopic
	}
	return &MQTTAnnouncer{
		Broker:    broker,
		ClientID:  clientID,
		Topic:     topic,
		QoS:       1,
		Timeout:   2 * time.Second,
		log:       log,
		newClient: newPahoClient,
	}
}

// Connect dials the broker. The client keeps retrying in the background,
// so a timeout here still leaves the announcer usable once the broker comes
// up.
func (m *MQTTAnnouncer) Connect(ctx context.Context) error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(m.Broker)
	opts.SetClientID(m.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)
	opts.OnConnect = func(mqtt.Client) {
		m.log.Info().Str("broker", m.Broker).Msg("mqtt connected")
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		m.log.Warn().Err(err).Str("broker", m.Broker).Msg("mqtt connection lost, reconnecting")
	}

	c := m.newClient(opts)
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return errors.New("mqtt announcer disconnected")
	}
	m.client = c
	m.mu.Unlock()
	token := c.Connect()

	wait := 5 * time.Second
	if dl, ok := ctx.Deadline(); ok {
		wait = time.Until(dl)
	}
	if !token.WaitTimeout(wait) {
		return fmt.Errorf("mqtt connect %s: timeout", m.Broker)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connect %s: %w", m.Broker, err)
	}
	return nil
}

func (m *MQTTAnnouncer) conn() client {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.client
}

func (m *MQTTAnnouncer) Deliver(ctx context.Context, d Delivery) error {
	c := m.conn()
	if c == nil || !c.IsConnected() {
		m.count(false)
		return errNotConnected
	}

	payload, err := json.Marshal(Announcement{
		ID:      d.ID.String(),
		Path:    d.Path,
		Tag:     d.Tag,
		TakenAt: d.TakenAt.UTC(),
	})
	if err != nil {
		m.count(false)
		return err
	}

	token := c.Publish(m.Topic, m.QoS, false, payload)
	if !token.WaitTimeout(m.Timeout) {
		m.count(false)
		return fmt.Errorf("mqtt publish %s: timeout", m.Topic)
	}
	if err := token.Error(); err != nil {
		m.count(false)
		return fmt.Errorf("mqtt publish %s: %w", m.Topic, err)
	}
	m.count(true)
	m.log.Debug().Str("topic", m.Topic).Str("id", d.ID.String()).Msg("capture announced")
	return nil
}

func (m *MQTTAnnouncer) count(ok bool) {
	m.mu.Lock()
	if ok {
		m.published++
	} else {
		m.errors++
	}
	m.mu.Unlock()
}

// Stats returns published and failed announcement counts.
func (m *MQTTAnnouncer) Stats() (published, failed uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.published, m.errors
}

// Disconnect stops the client, including a connect still retrying.
func (m *MQTTAnnouncer) Disconnect() {
	m.mu.Lock()
	c := m.client
	m.client = nil
	m.stopped = true
	m.mu.Unlock()
	if c != nil {
		c.Disconnect(250)
	}
}
