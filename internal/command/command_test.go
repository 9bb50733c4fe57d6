package command

import (
	"errors"
	"strings"
	"testing"

	"github.com/sweeney/sensor-node/internal/gpio"
)

type fakeResponder struct {
	resp []string
	logs []string
}

func (f *fakeResponder) PublishResp(msg string) bool {
	f.resp = append(f.resp, msg)
	return true
}

func (f *fakeResponder) PublishLog(msg string) bool {
	f.logs = append(f.logs, msg)
	return true
}

func newTestDispatcher() (*Dispatcher, *fakeResponder, *gpio.FakeOutput) {
	r := &fakeResponder{}
	led := &gpio.FakeOutput{}
	return NewDispatcher(r, led), r, led
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"ping", "ping"},
		{"ping\r\n", "ping"},
		{"ping \t\r\n", "ping"},
		{" ping", " ping"},
		{"led=on\n\n", "led=on"},
		{"\r\n", ""},
		{"", ""},
		{"PING", "PING"},
	}
	for _, tt := range tests {
		if got := Normalize([]byte(tt.in)); got != tt.want {
			t.Errorf("Normalize(%q): got %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNormalizeTruncates(t *testing.T) {
	long := strings.Repeat("a", 1000)
	if got := Normalize([]byte(long)); len(got) != MaxPayload {
		t.Errorf("got length %d, want %d", len(got), MaxPayload)
	}

	// Trimming applies after truncation.
	padded := strings.Repeat("b", MaxPayload-2) + "  tail"
	if got := Normalize([]byte(padded)); got != strings.Repeat("b", MaxPayload-2) {
		t.Errorf("got %q", got)
	}
}

func TestPingWithLineEnding(t *testing.T) {
	for _, payload := range []string{"ping", "ping\r\n", "ping\n"} {
		d, r, _ := newTestDispatcher()
		d.HandleMessage("sensors/x/cmd", []byte(payload))
		if len(r.resp) != 1 || r.resp[0] != "pong" {
			t.Errorf("%q: resp got %v, want [pong]", payload, r.resp)
		}
		if len(r.logs) != 1 || r.logs[0] != "ping received" {
			t.Errorf("%q: logs got %v", payload, r.logs)
		}
	}
}

func TestLEDCommands(t *testing.T) {
	d, r, led := newTestDispatcher()

	steps := []struct {
		cmd  string
		want bool
	}{
		{"led=on", true},
		{"led=on", true},
		{"led=off", false},
		{"led=toggle", true},
		{"led=toggle", false},
		{"led=toggle\r\n", true},
	}
	for i, s := range steps {
		d.HandleMessage("cmd", []byte(s.cmd))
		if d.LED() != s.want {
			t.Errorf("step %d (%q): LED got %v, want %v", i, s.cmd, d.LED(), s.want)
		}
		if led.On != s.want {
			t.Errorf("step %d (%q): line got %v, want %v", i, s.cmd, led.On, s.want)
		}
	}
	if len(r.resp) != 0 || len(r.logs) != 0 {
		t.Errorf("LED commands publish nothing, got resp=%v logs=%v", r.resp, r.logs)
	}
	if d.Handled() != len(steps) {
		t.Errorf("Handled: got %d", d.Handled())
	}
}

func TestUnknownGoesToLog(t *testing.T) {
	for _, payload := range []string{"Ping", "led=ON", "led=", "reboot", ""} {
		d, r, led := newTestDispatcher()
		d.HandleMessage("cmd", []byte(payload))
		if len(r.resp) != 0 {
			t.Errorf("%q: unexpected response %v", payload, r.resp)
		}
		if len(r.logs) != 1 || r.logs[0] != UnknownPrefix+payload {
			t.Errorf("%q: logs got %v", payload, r.logs)
		}
		if len(led.Writes) != 0 {
			t.Errorf("%q: led written", payload)
		}
	}
}

func TestOversizedPayload(t *testing.T) {
	d, r, _ := newTestDispatcher()
	payload := []byte("ping" + strings.Repeat(" ", 300))
	d.HandleMessage("cmd", payload)
	if len(r.resp) != 1 || r.resp[0] != "pong" {
		t.Errorf("truncated whitespace tail should still match ping, got %v", r.resp)
	}

	d, r, _ = newTestDispatcher()
	payload = []byte(strings.Repeat("x", 300))
	d.HandleMessage("cmd", payload)
	if len(r.logs) != 1 || r.logs[0] != UnknownPrefix+strings.Repeat("x", MaxPayload) {
		t.Errorf("oversized garbage should be logged truncated, got %d logs", len(r.logs))
	}
}

func TestPayloadNotRetained(t *testing.T) {
	d, r, _ := newTestDispatcher()
	buf := []byte("zzz")
	d.HandleMessage("cmd", buf)
	copy(buf, "yyy")
	if r.logs[0] != "[CMD] Unknown command: zzz" {
		t.Errorf("got %q", r.logs[0])
	}
}

func TestLEDWriteErrorKeepsState(t *testing.T) {
	d, _, led := newTestDispatcher()
	led.SetError = errors.New("busy")
	d.HandleMessage("cmd", []byte("led=on"))
	if !d.LED() {
		t.Error("state tracks the command even when the line write fails")
	}
}

func TestNilOutput(t *testing.T) {
	d := NewDispatcher(&fakeResponder{}, nil)
	d.HandleMessage("cmd", []byte("led=toggle"))
	if !d.LED() {
		t.Error("expected LED on")
	}
}
