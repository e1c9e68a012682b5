package cloud

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/eclipse/paho.golang/paho"
	"github.com/google/uuid"

	"github.com/f451labs/telemetry/internal/config"
)

const (
	defaultKeepAlive = 30
	receiveWait      = 2 * time.Second
)

// MQTT publishes feed values to an MQTT v5 broker as retained messages on
// <prefix>/feeds/<key>. ReceiveData subscribes on first use and returns the
// last value seen, which the broker replays from its retained store.
type MQTT struct {
	client *paho.Client
	prefix string
	active atomic.Bool

	mu         sync.Mutex
	last       map[string]Datum
	subscribed map[string]bool
	changed    chan struct{} // closed and replaced on every received value
	now        func() time.Time
}

// DialMQTT connects to cfg.Broker and returns a ready service.
func DialMQTT(ctx context.Context, cfg config.MQTTConfig) (*MQTT, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", cfg.Broker)
	if err != nil {
		return nil, fmt.Errorf("cloud: dial mqtt %s: %w", cfg.Broker, err)
	}

	prefix := strings.Trim(cfg.TopicPrefix, "/")
	if prefix == "" {
		prefix = config.DefaultTopicPrefix
	}
	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "f451-" + uuid.NewString()
	}

	m := &MQTT{
		prefix:     prefix,
		last:       make(map[string]Datum),
		subscribed: make(map[string]bool),
		changed:    make(chan struct{}),
		now:        time.Now,
	}
	m.client = paho.NewClient(paho.ClientConfig{
		ClientID:          clientID,
		Conn:              conn,
		OnPublishReceived: []func(paho.PublishReceived) (bool, error){m.onPublish},
		OnClientError: func(err error) {
			m.active.Store(false)
			slog.Error("cloud: mqtt client error", "err", err)
		},
		OnServerDisconnect: func(d *paho.Disconnect) {
			m.active.Store(false)
			slog.Warn("cloud: mqtt server disconnected", "reason", d.ReasonCode)
		},
	})

	keepAlive := cfg.KeepAlive
	if keepAlive == 0 {
		keepAlive = defaultKeepAlive
	}
	cp := &paho.Connect{
		ClientID:   clientID,
		KeepAlive:  keepAlive,
		CleanStart: true,
	}
	if cfg.Username != "" {
		cp.Username = cfg.Username
		cp.UsernameFlag = true
	}
	if pw := cfg.Password(); pw != "" {
		cp.Password = []byte(pw)
		cp.PasswordFlag = true
	}
	if _, err := m.client.Connect(ctx, cp); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("cloud: mqtt connect: %w", err)
	}
	m.active.Store(true)
	slog.Info("cloud: mqtt connected", "broker", cfg.Broker, "client_id", clientID, "prefix", prefix)
	return m, nil
}

func (m *MQTT) Active() bool { return m.active.Load() }

// Topic returns the topic a feed key is published on.
func (m *MQTT) Topic(key string) string {
	return m.prefix + "/feeds/" + key
}

func (m *MQTT) SendData(ctx context.Context, key string, value float64) error {
	if !m.Active() {
		return ErrInactive
	}
	if key == "" {
		return ErrEmptyKey
	}
	_, err := m.client.Publish(ctx, &paho.Publish{
		Topic:   m.Topic(key),
		QoS:     1,
		Retain:  true,
		Payload: []byte(strconv.FormatFloat(value, 'f', -1, 64)),
	})
	if err != nil {
		return fmt.Errorf("cloud: mqtt publish %s: %w", key, err)
	}
	return nil
}

func (m *MQTT) ReceiveData(ctx context.Context, key string) (Datum, error) {
	if !m.Active() {
		return Datum{}, ErrInactive
	}
	if key == "" {
		return Datum{}, ErrEmptyKey
	}
	if err := m.subscribe(ctx, key); err != nil {
		return Datum{}, err
	}

	timer := time.NewTimer(receiveWait)
	defer timer.Stop()
	for {
		m.mu.Lock()
		d, ok := m.last[key]
		ch := m.changed
		m.mu.Unlock()
		if ok {
			return d, nil
		}
		select {
		case <-ch:
		case <-timer.C:
			return Datum{}, ErrNoData
		case <-ctx.Done():
			return Datum{}, ctx.Err()
		}
	}
}

func (m *MQTT) subscribe(ctx context.Context, key string) error {
	m.mu.Lock()
	done := m.subscribed[key]
	m.mu.Unlock()
	if done {
		return nil
	}
	_, err := m.client.Subscribe(ctx, &paho.Subscribe{
		Subscriptions: []paho.SubscribeOptions{{Topic: m.Topic(key), QoS: 1}},
	})
	if err != nil {
		return fmt.Errorf("cloud: mqtt subscribe %s: %w", key, err)
	}
	m.mu.Lock()
	m.subscribed[key] = true
	m.mu.Unlock()
	return nil
}

func (m *MQTT) onPublish(pr paho.PublishReceived) (bool, error) {
	p := pr.Packet
	key, ok := strings.CutPrefix(p.Topic, m.prefix+"/feeds/")
	if !ok {
		return false, nil
	}
	m.mu.Lock()
	m.last[key] = Datum{FeedKey: key, Value: string(p.Payload), CreatedAt: m.now()}
	close(m.changed)
	m.changed = make(chan struct{})
	m.mu.Unlock()
	return true, nil
}

// Close disconnects from the broker.
func (m *MQTT) Close() error {
	if !m.active.Swap(false) {
		return nil
	}
	return m.client.Disconnect(&paho.Disconnect{ReasonCode: 0})
}
