// Package mqtt provides the pub/sub session client used by the connection
// manager, the node's topic layout and its JSON payloads.
package mqtt

// Session is the session-layer client capability. Implementations must not
// reconnect on their own: the connection manager owns the retry schedule.
type Session interface {
	// Connect opens a session presenting identity and registers a last will
	// that the broker publishes if the session drops uncleanly. It blocks for
	// a bounded time and reports success.
	Connect(identity, willTopic string, willPayload []byte, retain bool) bool

	// Connected reports whether the session is currently open.
	Connected() bool

	// Publish sends payload to topic. QoS 0.
	Publish(topic string, payload []byte, retain bool) bool

	// Subscribe registers interest in topic. Inbound messages are queued
	// until ServiceIncoming is called.
	Subscribe(topic string) bool

	// ServiceIncoming delivers queued inbound messages to handler, in
	// arrival order, on the caller's goroutine.
	ServiceIncoming(handler func(topic string, payload []byte))

	// LastError returns the error of the most recent failed operation.
	LastError() error

	// Disconnect closes the session cleanly (no last will).
	Disconnect()
}

// Availability payloads on the status topic.
const (
	Online  = "online"
	Offline = "offline"
)

// Topics is the node's topic layout under a common base.
type Topics struct {
	Boot      string
	Log       string
	Events    string
	Resp      string
	Status    string // availability and last will
	Cmd       string
	Heartbeat string
	Reading   string
	MinMax    string
	Alarm     string
}

// NewTopics derives the topic set from base (e.g. "sensors/greenhouse").
func NewTopics(base string) Topics {
	return Topics{
		Boot:      base + "/boot",
		Log:       base + "/log",
		Events:    base + "/events",
		Resp:      base + "/resp",
		Status:    base + "/status",
		Cmd:       base + "/cmd",
		Heartbeat: base + "/heartbeat",
		Reading:   base + "/reading",
		MinMax:    base + "/minmax",
		Alarm:     base + "/alarm",
	}
}
