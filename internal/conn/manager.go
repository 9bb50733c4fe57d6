// Package conn keeps the node's two-layer network session alive: the link
// layer underneath and the MQTT session on top of it.
//
// Service is called once per control-loop tick and never blocks beyond the
// bounded session operations. Reconnection attempts are gated by fixed retry
// intervals; a failed attempt is logged and retried on a later tick.
package conn

import (
	"context"
	"log"
	"time"

	"github.com/sweeney/sensor-node/internal/link"
	"github.com/sweeney/sensor-node/internal/mqtt"
)

// Default retry intervals.
const (
	LinkRetryInterval    = 5000 * time.Millisecond
	SessionRetryInterval = 3000 * time.Millisecond
)

// Config configures a Manager.
type Config struct {
	// Identity is the stable client ID presented to the broker.
	Identity string

	// StatusTopic carries the last will ("offline") and the retained
	// "online" marker published after every connect.
	StatusTopic string

	// CmdTopic is subscribed after every connect.
	CmdTopic string

	LinkRetry    time.Duration
	SessionRetry time.Duration
}

// MessageHandler receives inbound session messages.
type MessageHandler func(topic string, payload []byte)

// Manager owns the link and session lifecycle. It is not safe for concurrent
// use; all methods run on the control loop.
type Manager struct {
	cfg     Config
	link    link.Provider
	session mqtt.Session
	handler MessageHandler

	// Connectivity as last seen by Service. Observers read these so a tick
	// polls the link provider once.
	linkStatus link.Status
	linkUp     bool
	sessionUp  bool

	lastLinkAttempt    time.Time
	lastSessionAttempt time.Time
	sessionAttempted   bool

	linkEdge    Edge
	sessionEdge Edge
}

// New creates a Manager. start is treated as the time of the initial link
// attempt made by the host at boot, so the first explicit re-association
// happens no earlier than one link retry interval later.
func New(cfg Config, lp link.Provider, session mqtt.Session, start time.Time) *Manager {
	if cfg.LinkRetry <= 0 {
		cfg.LinkRetry = LinkRetryInterval
	}
	if cfg.SessionRetry <= 0 {
		cfg.SessionRetry = SessionRetryInterval
	}
	return &Manager{
		cfg:             cfg,
		link:            lp,
		session:         session,
		linkStatus:      link.Disconnected,
		lastLinkAttempt: start,
	}
}

// SetHandler sets the receiver for inbound messages.
func (m *Manager) SetHandler(h MessageHandler) {
	m.handler = h
}

// AwaitLink polls the link until it is connected or ctx expires. It is the
// only blocking call and is meant for startup.
func (m *Manager) AwaitLink(ctx context.Context, poll time.Duration) bool {
	if m.pollLink() {
		return true
	}
	ticker := time.NewTicker(poll)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Printf("conn: link not up after startup wait (%s)", m.linkStatus)
			return false
		case <-ticker.C:
			if m.pollLink() {
				return true
			}
		}
	}
}

func (m *Manager) pollLink() bool {
	m.linkStatus = m.link.Status()
	m.linkUp = m.linkStatus == link.Connected
	return m.linkUp
}

// Service advances the connection state machine by one tick.
//
// A layer seen down resets its edge detector before any reconnect attempt,
// so a drop and reconnect inside one call still yields a rising edge.
func (m *Manager) Service(now time.Time) {
	if !m.pollLink() {
		m.sessionUp = false
		m.linkEdge.Observe(false)
		m.sessionEdge.Observe(false)
		if now.Sub(m.lastLinkAttempt) >= m.cfg.LinkRetry {
			m.lastLinkAttempt = now
			m.reconnectLink(m.linkStatus)
		}
		return
	}

	if !m.session.Connected() {
		m.sessionUp = false
		m.sessionEdge.Observe(false)
		if !m.sessionAttempted || now.Sub(m.lastSessionAttempt) >= m.cfg.SessionRetry {
			m.sessionAttempted = true
			m.lastSessionAttempt = now
			m.connectSession()
			m.sessionUp = m.session.Connected()
		}
		return
	}

	m.sessionUp = true
	m.session.ServiceIncoming(m.dispatch)
}

func (m *Manager) reconnectLink(st link.Status) {
	switch st {
	case link.Failed, link.Disconnected:
		log.Printf("conn: link %s, requesting re-association", st)
		if err := m.link.Reconnect(); err != nil {
			log.Printf("conn: %v", err)
		}
	default:
		// Scanning or associating: let it finish.
	}
}

func (m *Manager) connectSession() {
	log.Printf("conn: connecting session as %s", m.cfg.Identity)
	if !m.session.Connect(m.cfg.Identity, m.cfg.StatusTopic, []byte(mqtt.Offline), true) {
		log.Printf("conn: session connect failed: %v", m.session.LastError())
		return
	}

	log.Printf("conn: session connected")
	if !m.session.Publish(m.cfg.StatusTopic, []byte(mqtt.Online), true) {
		log.Printf("conn: publish online marker failed: %v", m.session.LastError())
	}
	if m.session.Subscribe(m.cfg.CmdTopic) {
		log.Printf("conn: subscribed to %s", m.cfg.CmdTopic)
	} else {
		log.Printf("conn: subscribe %s failed: %v", m.cfg.CmdTopic, m.session.LastError())
	}
}

func (m *Manager) dispatch(topic string, payload []byte) {
	if m.handler == nil {
		log.Printf("conn: dropping message on %s, no handler", topic)
		return
	}
	m.handler(topic, payload)
}

// IsLinkConnected reports link-layer connectivity as of the last Service.
func (m *Manager) IsLinkConnected() bool {
	return m.linkUp
}

// IsSessionConnected reports session connectivity as of the last Service. It
// is never true while the link is down.
func (m *Manager) IsSessionConnected() bool {
	return m.linkUp && m.sessionUp
}

// LinkStatus returns the link-layer status seen by the last Service.
func (m *Manager) LinkStatus() link.Status {
	return m.linkStatus
}

// LinkJustConnected returns true exactly once per link rising edge.
func (m *Manager) LinkJustConnected() bool {
	m.linkEdge.Observe(m.IsLinkConnected())
	return m.linkEdge.Consume()
}

// SessionJustConnected returns true exactly once per session rising edge.
func (m *Manager) SessionJustConnected() bool {
	m.sessionEdge.Observe(m.IsSessionConnected())
	return m.sessionEdge.Consume()
}

// Publish sends payload if the session is up. It never retries.
func (m *Manager) Publish(topic string, payload []byte) bool {
	if !m.IsSessionConnected() {
		return false
	}
	if !m.session.Publish(topic, payload, false) {
		log.Printf("conn: publish to %s failed: %v", topic, m.session.LastError())
		return false
	}
	return true
}

// Shutdown marks the node offline and closes the session.
func (m *Manager) Shutdown() {
	if !m.IsSessionConnected() {
		return
	}
	if !m.session.Publish(m.cfg.StatusTopic, []byte(mqtt.Offline), true) {
		log.Printf("conn: publish offline marker failed: %v", m.session.LastError())
	}
	m.session.Disconnect()
}
