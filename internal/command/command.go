// Package command executes the textual commands received on the node's
// command topic.
//
// Each inbound message runs exactly one command synchronously. Payloads are
// copied into a bounded buffer and trailing whitespace is trimmed before an
// exact, case-sensitive match against the command table.
package command

import (
	"log"
)

// MaxPayload is the largest payload prefix considered. Longer payloads are
// truncated.
const MaxPayload = 256

// Command strings.
const (
	Ping      = "ping"
	LEDOn     = "led=on"
	LEDOff    = "led=off"
	LEDToggle = "led=toggle"
)

// UnknownPrefix starts the log-channel line published for an unrecognised
// command.
const UnknownPrefix = "[CMD] Unknown command: "

// Responder publishes command responses and log lines. *comms.Comms
// satisfies it.
type Responder interface {
	PublishResp(msg string) bool
	PublishLog(msg string) bool
}

// Output drives a boolean hardware line.
type Output interface {
	Set(on bool) error
}

// Dispatcher owns the LED state and executes commands. It is not safe for
// concurrent use; HandleMessage runs inside the connection manager's Service.
type Dispatcher struct {
	resp  Responder
	led   Output
	ledOn bool
	count int
}

// NewDispatcher creates a Dispatcher. led may be nil when the node has no LED
// line; the state is still tracked.
func NewDispatcher(resp Responder, led Output) *Dispatcher {
	return &Dispatcher{resp: resp, led: led}
}

// Normalize copies at most MaxPayload bytes of payload and strips trailing
// '\r', '\n', ' ' and '\t'.
func Normalize(payload []byte) string {
	n := len(payload)
	if n > MaxPayload {
		n = MaxPayload
	}
	var buf [MaxPayload]byte
	copy(buf[:n], payload)
	for n > 0 && isTrailing(buf[n-1]) {
		n--
	}
	return string(buf[:n])
}

func isTrailing(c byte) bool {
	return c == '\r' || c == '\n' || c == ' ' || c == '\t'
}

// HandleMessage executes the command carried by payload.
func (d *Dispatcher) HandleMessage(topic string, payload []byte) {
	if len(payload) > MaxPayload {
		log.Printf("cmd: payload on %s truncated from %d to %d bytes", topic, len(payload), MaxPayload)
	}
	cmd := Normalize(payload)
	log.Printf("cmd: received on %s: %q", topic, cmd)
	d.count++
	d.Execute(cmd)
}

// Execute runs a normalized command string.
func (d *Dispatcher) Execute(cmd string) {
	switch cmd {
	case Ping:
		ok := d.resp.PublishResp("pong")
		log.Printf("cmd: publish pong -> %s", okString(ok))
		d.resp.PublishLog("ping received")
	case LEDOn:
		d.setLED(true)
	case LEDOff:
		d.setLED(false)
	case LEDToggle:
		d.setLED(!d.ledOn)
	default:
		log.Printf("cmd: unknown command: %q", cmd)
		d.resp.PublishLog(UnknownPrefix + cmd)
	}
}

func (d *Dispatcher) setLED(on bool) {
	d.ledOn = on
	if d.led != nil {
		if err := d.led.Set(on); err != nil {
			log.Printf("cmd: drive led: %v", err)
		}
	}
	log.Printf("cmd: led %s", onOff(on))
}

// LED returns the current LED state.
func (d *Dispatcher) LED() bool {
	return d.ledOn
}

// Handled returns the number of messages processed.
func (d *Dispatcher) Handled() int {
	return d.count
}

func okString(ok bool) string {
	if ok {
		return "OK"
	}
	return "FAILED"
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}
