package mqtt

import "errors"

// ConnectCall records the arguments of a FakeSession.Connect call.
type ConnectCall struct {
	Identity    string
	WillTopic   string
	WillPayload []byte
	Retain      bool
}

// Published records a message sent through FakeSession.Publish.
type Published struct {
	Topic   string
	Payload []byte
	Retain  bool
}

// FakeSession is a Session test double with scripted outcomes.
type FakeSession struct {
	// ConnectResult is returned by Connect. On success the session becomes
	// connected.
	ConnectResult bool

	// PublishResult and SubscribeResult are returned by Publish and Subscribe
	// while connected.
	PublishResult   bool
	SubscribeResult bool

	// Recorded calls.
	Connects      []ConnectCall
	Published     []Published
	Subscriptions []string
	Disconnects   int

	// PublishCalls counts every Publish call, including rejected ones.
	PublishCalls int

	connected bool
	inbound   []inboundMsg
	lastErr   error
}

// NewFakeSession returns a FakeSession whose operations succeed.
func NewFakeSession() *FakeSession {
	return &FakeSession{
		ConnectResult:   true,
		PublishResult:   true,
		SubscribeResult: true,
	}
}

// Connect records the call and connects if ConnectResult is true.
func (f *FakeSession) Connect(identity, willTopic string, willPayload []byte, retain bool) bool {
	f.Connects = append(f.Connects, ConnectCall{
		Identity:    identity,
		WillTopic:   willTopic,
		WillPayload: willPayload,
		Retain:      retain,
	})
	f.connected = f.ConnectResult
	if !f.ConnectResult {
		f.lastErr = errors.New("fake: connection refused")
	}
	return f.ConnectResult
}

// Connected reports the simulated session state.
func (f *FakeSession) Connected() bool {
	return f.connected
}

// Publish records the message when connected and PublishResult is true.
func (f *FakeSession) Publish(topic string, payload []byte, retain bool) bool {
	f.PublishCalls++
	if !f.connected || !f.PublishResult {
		f.lastErr = errors.New("fake: publish failed")
		return false
	}
	f.Published = append(f.Published, Published{Topic: topic, Payload: payload, Retain: retain})
	return true
}

// Subscribe records the topic when connected and SubscribeResult is true.
func (f *FakeSession) Subscribe(topic string) bool {
	if !f.connected || !f.SubscribeResult {
		f.lastErr = errors.New("fake: subscribe failed")
		return false
	}
	f.Subscriptions = append(f.Subscriptions, topic)
	return true
}

// Deliver queues an inbound message for the next ServiceIncoming call.
func (f *FakeSession) Deliver(topic string, payload []byte) {
	f.inbound = append(f.inbound, inboundMsg{topic: topic, payload: payload})
}

// ServiceIncoming hands queued messages to handler.
func (f *FakeSession) ServiceIncoming(handler func(topic string, payload []byte)) {
	msgs := f.inbound
	f.inbound = nil
	for _, m := range msgs {
		handler(m.topic, m.payload)
	}
}

// LastError returns the error recorded by the last failed call.
func (f *FakeSession) LastError() error {
	return f.lastErr
}

// Disconnect closes the simulated session.
func (f *FakeSession) Disconnect() {
	f.Disconnects++
	f.connected = false
}

// Drop simulates the broker dropping the session.
func (f *FakeSession) Drop() {
	f.connected = false
}

// PublishedTo returns the payloads published to topic, in order.
func (f *FakeSession) PublishedTo(topic string) []string {
	var out []string
	for _, p := range f.Published {
		if p.Topic == topic {
			out = append(out, string(p.Payload))
		}
	}
	return out
}

// Reset clears recorded calls. Scripted results are kept.
func (f *FakeSession) Reset() {
	f.Connects = nil
	f.Published = nil
	f.Subscriptions = nil
	f.Disconnects = 0
	f.PublishCalls = 0
	f.inbound = nil
	f.lastErr = nil
}
