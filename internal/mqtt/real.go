package mqtt

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

// Default timeouts for the bounded session operations.
const (
	DefaultConnectTimeout = 5 * time.Second
	DefaultPublishTimeout = 2 * time.Second
	DefaultKeepAlive      = 30 * time.Second
	inboundQueueSize      = 32
)

var errNotConnected = errors.New("mqtt: not connected")

// RealConfig configures a RealSession.
type RealConfig struct {
	Broker         string
	Username       string
	Password       string
	ConnectTimeout time.Duration
	PublishTimeout time.Duration
	KeepAlive      time.Duration
}

// RealSession is a Session backed by an actual MQTT broker. Automatic
// reconnection in paho is disabled; the caller decides when to reconnect.
type RealSession struct {
	cfg    RealConfig
	client paho.Client

	mu      sync.Mutex
	inbound *inboundQueue
	lastErr error
}

// NewRealSession creates a session for the given broker. It does not connect.
func NewRealSession(cfg RealConfig) *RealSession {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = DefaultConnectTimeout
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = DefaultPublishTimeout
	}
	if cfg.KeepAlive <= 0 {
		cfg.KeepAlive = DefaultKeepAlive
	}
	return &RealSession{
		cfg:     cfg,
		inbound: newInboundQueue(inboundQueueSize),
	}
}

// Connect opens a fresh client connection with the given identity and will.
func (s *RealSession) Connect(identity, willTopic string, willPayload []byte, retain bool) bool {
	if s.client != nil {
		// Drop any half-open client before replacing it.
		s.client.Disconnect(0)
		s.client = nil
	}

	opts := paho.NewClientOptions().
		AddBroker(s.cfg.Broker).
		SetClientID(identity).
		SetCleanSession(true).
		SetAutoReconnect(false).
		SetConnectRetry(false).
		SetConnectTimeout(s.cfg.ConnectTimeout).
		SetKeepAlive(s.cfg.KeepAlive).
		SetBinaryWill(willTopic, willPayload, 0, retain).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			log.Printf("mqtt: connection lost: %v", err)
			s.setErr(err)
		})
	if s.cfg.Username != "" {
		opts.SetUsername(s.cfg.Username)
		opts.SetPassword(s.cfg.Password)
	}

	client := paho.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(s.cfg.ConnectTimeout) {
		s.setErr(fmt.Errorf("connect to %s: timeout after %v", s.cfg.Broker, s.cfg.ConnectTimeout))
		client.Disconnect(0)
		return false
	}
	if err := token.Error(); err != nil {
		s.setErr(fmt.Errorf("connect to %s: %w", s.cfg.Broker, err))
		return false
	}

	s.client = client
	s.setErr(nil)
	return true
}

// Connected reports whether the underlying connection is open.
func (s *RealSession) Connected() bool {
	return s.client != nil && s.client.IsConnectionOpen()
}

// Publish sends payload with QoS 0.
func (s *RealSession) Publish(topic string, payload []byte, retain bool) bool {
	if !s.Connected() {
		s.setErr(errNotConnected)
		return false
	}
	token := s.client.Publish(topic, 0, retain, payload)
	if !token.WaitTimeout(s.cfg.PublishTimeout) {
		s.setErr(fmt.Errorf("publish %s: timeout", topic))
		return false
	}
	if err := token.Error(); err != nil {
		s.setErr(fmt.Errorf("publish %s: %w", topic, err))
		return false
	}
	return true
}

// Subscribe subscribes with QoS 0. Messages are queued for ServiceIncoming.
func (s *RealSession) Subscribe(topic string) bool {
	if !s.Connected() {
		s.setErr(errNotConnected)
		return false
	}
	token := s.client.Subscribe(topic, 0, s.enqueue)
	if !token.WaitTimeout(s.cfg.PublishTimeout) {
		s.setErr(fmt.Errorf("subscribe %s: timeout", topic))
		return false
	}
	if err := token.Error(); err != nil {
		s.setErr(fmt.Errorf("subscribe %s: %w", topic, err))
		return false
	}
	return true
}

// enqueue runs on paho's router goroutine.
func (s *RealSession) enqueue(_ paho.Client, msg paho.Message) {
	payload := make([]byte, len(msg.Payload()))
	copy(payload, msg.Payload())

	s.mu.Lock()
	s.inbound.push(inboundMsg{topic: msg.Topic(), payload: payload})
	s.mu.Unlock()
}

// ServiceIncoming drains queued messages into handler.
func (s *RealSession) ServiceIncoming(handler func(topic string, payload []byte)) {
	s.mu.Lock()
	msgs := s.inbound.drain()
	s.mu.Unlock()

	for _, m := range msgs {
		handler(m.topic, m.payload)
	}
}

// LastError returns the most recent failure.
func (s *RealSession) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

func (s *RealSession) setErr(err error) {
	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()
}

// Disconnect closes the connection, waiting up to 250ms for in-flight work.
func (s *RealSession) Disconnect() {
	if s.client == nil {
		return
	}
	s.client.Disconnect(250)
	s.client = nil
}
