package main

import (
	"bytes"
	"errors"
	"os"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/sweeney/sensor-node/internal/command"
	"github.com/sweeney/sensor-node/internal/comms"
	"github.com/sweeney/sensor-node/internal/conn"
	"github.com/sweeney/sensor-node/internal/gpio"
	"github.com/sweeney/sensor-node/internal/input"
	"github.com/sweeney/sensor-node/internal/link"
	"github.com/sweeney/sensor-node/internal/minmax"
	"github.com/sweeney/sensor-node/internal/mqtt"
	"github.com/sweeney/sensor-node/internal/rtc"
	"github.com/sweeney/sensor-node/internal/sensor"
	"github.com/sweeney/sensor-node/internal/status"
)

// t0 is after the daily reset hour so the first reading seeds the record.
var t0 = time.Date(2026, 3, 1, 11, 0, 0, 0, time.UTC)

func at(ms int) time.Time {
	return t0.Add(time.Duration(ms) * time.Millisecond)
}

type harness struct {
	session *mqtt.FakeSession
	link    *link.FakeProvider
	inputs  *gpio.FakeInputs
	led     *gpio.FakeOutput
	reader  *sensor.FakeReader
	clock   *rtc.Fake
	topics  mqtt.Topics
	n       *node
}

// newHarness wires a node with two inputs (pin 4 active-low idle high,
// pin 17 active-high idle low) on fakes.
func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		session: mqtt.NewFakeSession(),
		link:    link.NewFakeProvider(link.Connected),
		inputs:  gpio.NewFakeInputs([]int{1, 0}, []bool{true, false}),
		led:     &gpio.FakeOutput{},
		reader:  &sensor.FakeReader{Readings: []sensor.Reading{{TempC: 21.5, HumPct: 40}}},
		clock:   &rtc.Fake{Epoch: t0.Unix()},
		topics:  mqtt.NewTopics("sensors/greenhouse"),
	}

	channels := []input.Channel{
		{Pin: 4, Polarity: input.ActiveLow},
		{Pin: 17, Polarity: input.ActiveHigh},
	}
	mgr := conn.New(conn.Config{
		Identity:    "greenhouse",
		StatusTopic: h.topics.Status,
		CmdTopic:    h.topics.Cmd,
	}, h.link, h.session, t0)
	out := comms.New(mgr, h.topics, "greenhouse", "1.2.0")
	disp := command.NewDispatcher(out, h.led)
	mgr.SetHandler(disp.HandleMessage)

	monitor, err := input.NewMonitor(channels, h.inputs, 60*time.Millisecond)
	if err != nil {
		t.Fatalf("NewMonitor: %v", err)
	}
	for i := range channels {
		h.inputs.OnEdge(i, monitor.EdgeHandler(i))
	}

	tracker := status.NewTracker(t0, status.Config{
		Device:    "greenhouse",
		Version:   "1.2.0",
		BaseTopic: "sensors/greenhouse",
	}, status.Boot{ID: "boot-1", Count: 7})

	h.n = &node{
		mgr:            mgr,
		comms:          out,
		monitor:        monitor,
		disp:           disp,
		sensor:         h.reader,
		clock:          h.clock,
		minmax:         minmax.NewTracker(),
		alarms:         &minmax.Thresholds{},
		tracker:        tracker,
		boot:           tracker.Snapshot().Boot,
		heartbeat:      time.Minute,
		sensorInterval: 30 * time.Second,
		lastHeartbeat:  t0,
	}
	return h
}

// baseline moves both inputs off their startup level so each commits its
// first confirmed value. Both end up active.
func (h *harness) baseline(startMs int) {
	h.inputs.Set(0, 0)
	h.inputs.Set(1, 1)
	h.n.step(at(startMs))
	h.n.step(at(startMs + 60))
}

// release takes pin 4 back to idle. The rising edge does not qualify on an
// active-low line, so the release bounces once.
func (h *harness) release() {
	h.inputs.Set(0, 1)
	h.inputs.Pulse(0)
}

func TestStepConnectsAndAnnouncesBoot(t *testing.T) {
	h := newHarness(t)
	h.n.step(at(0))

	if len(h.session.Connects) != 1 {
		t.Fatalf("connects: got %d, want 1", len(h.session.Connects))
	}
	if got := h.session.PublishedTo(h.topics.Status); len(got) != 1 || got[0] != mqtt.Online {
		t.Errorf("status topic: got %v, want [online]", got)
	}
	if len(h.session.Subscriptions) != 1 || h.session.Subscriptions[0] != h.topics.Cmd {
		t.Errorf("subscriptions: got %v", h.session.Subscriptions)
	}

	boots := h.session.PublishedTo(h.topics.Boot)
	if len(boots) != 1 {
		t.Fatalf("boot announcements: got %d, want 1", len(boots))
	}
	for _, want := range []string{`"boot_count":7`, `"boot_id":"boot-1"`, `"status":"online"`, `"version":"1.2.0"`} {
		if !strings.Contains(boots[0], want) {
			t.Errorf("boot payload %s missing %s", boots[0], want)
		}
	}

	h.n.step(at(10))
	if got := len(h.session.PublishedTo(h.topics.Boot)); got != 1 {
		t.Errorf("boot announcements after second tick: got %d, want 1", got)
	}
}

func TestBootReannouncedAfterReconnect(t *testing.T) {
	h := newHarness(t)
	h.n.step(at(0))
	h.session.Drop()

	h.n.step(at(10))
	if len(h.session.Connects) != 1 {
		t.Fatalf("reconnected before the retry interval: %d connects", len(h.session.Connects))
	}

	h.n.step(at(3010))
	if len(h.session.Connects) != 2 {
		t.Fatalf("connects: got %d, want 2", len(h.session.Connects))
	}
	if got := len(h.session.PublishedTo(h.topics.Boot)); got != 2 {
		t.Errorf("boot announcements: got %d, want 2", got)
	}
}

func TestBootReannouncedAfterLateDrop(t *testing.T) {
	h := newHarness(t)
	h.n.step(at(0))
	h.n.step(at(10))

	// Dropped long after the last attempt: reconnect happens in the same
	// step that sees the drop.
	h.session.Drop()
	h.n.step(at(60000))
	if len(h.session.Connects) != 2 {
		t.Fatalf("connects: got %d, want 2", len(h.session.Connects))
	}
	if got := len(h.session.PublishedTo(h.topics.Boot)); got != 2 {
		t.Errorf("boot announcements: got %d, want 2", got)
	}
}

func TestStepPublishesInputEvents(t *testing.T) {
	h := newHarness(t)
	h.n.step(at(0))
	h.baseline(10)

	if got := h.session.PublishedTo(h.topics.Events); len(got) != 0 {
		t.Fatalf("baseline must not publish, got %v", got)
	}

	h.release()
	h.n.step(at(100))
	h.n.step(at(130))
	if got := h.session.PublishedTo(h.topics.Events); len(got) != 0 {
		t.Fatalf("event before the window closed: %v", got)
	}
	h.n.step(at(160))

	events := h.session.PublishedTo(h.topics.Events)
	if len(events) != 1 {
		t.Fatalf("events: got %d, want 1", len(events))
	}
	if !strings.Contains(events[0], `"pin":4`) || !strings.Contains(events[0], `"state":0`) {
		t.Errorf("event payload: got %s", events[0])
	}

	snap := h.n.tracker.Snapshot()
	if !snap.Ready() {
		t.Error("expected Ready after baseline")
	}
	if snap.Inputs[0].Active || snap.Inputs[0].Changes != 1 {
		t.Errorf("pin 4 status: got %+v", snap.Inputs[0])
	}
}

func TestStepBounceSuppressed(t *testing.T) {
	h := newHarness(t)
	h.n.step(at(0))
	h.baseline(10)

	h.release()
	h.n.step(at(100))
	h.inputs.Set(0, 0) // pressed again inside the window
	h.n.step(at(130))
	h.n.step(at(160))

	if got := h.session.PublishedTo(h.topics.Events); len(got) != 0 {
		t.Errorf("bounce published events: %v", got)
	}
}

func TestEventsDroppedWhileLinkDown(t *testing.T) {
	h := newHarness(t)
	h.link.Current = link.Disconnected

	h.n.step(at(0))
	h.baseline(10)
	h.release()
	h.n.step(at(100))
	h.n.step(at(160))

	if h.session.PublishCalls != 0 {
		t.Errorf("PublishCalls: got %d, want 0 while the link is down", h.session.PublishCalls)
	}
	if len(h.session.Connects) != 0 {
		t.Errorf("session connect attempted while the link is down")
	}
	snap := h.n.tracker.Snapshot()
	if snap.Inputs[0].Active || snap.Inputs[0].Changes != 1 {
		t.Errorf("state must still be tracked while offline: %+v", snap.Inputs[0])
	}
	if snap.LinkStatus != "disconnected" || snap.SessionConnected {
		t.Errorf("connection status: got %q/%v", snap.LinkStatus, snap.SessionConnected)
	}
}

func TestStepHandlesCommands(t *testing.T) {
	h := newHarness(t)
	h.n.step(at(0))

	h.session.Deliver(h.topics.Cmd, []byte("led=on\r\n"))
	h.n.step(at(10))
	if !h.led.On {
		t.Error("expected LED on")
	}

	h.session.Deliver(h.topics.Cmd, []byte("ping"))
	h.session.Deliver(h.topics.Cmd, []byte("reboot"))
	h.n.step(at(20))

	if got := h.session.PublishedTo(h.topics.Resp); len(got) != 1 || got[0] != "pong" {
		t.Errorf("resp: got %v, want [pong]", got)
	}
	logs := h.session.PublishedTo(h.topics.Log)
	want := []string{"ping received", "[CMD] Unknown command: reboot"}
	if len(logs) != len(want) {
		t.Fatalf("log: got %v, want %v", logs, want)
	}
	for i := range want {
		if logs[i] != want[i] {
			t.Errorf("log[%d]: got %q, want %q", i, logs[i], want[i])
		}
	}

	snap := h.n.tracker.Snapshot()
	if !snap.LED || snap.Commands != 3 {
		t.Errorf("tracker: LED=%v Commands=%d, want true/3", snap.LED, snap.Commands)
	}
}

func TestStepSamplesSensorOnInterval(t *testing.T) {
	h := newHarness(t)
	h.n.step(at(0))

	readings := h.session.PublishedTo(h.topics.Reading)
	if len(readings) != 1 {
		t.Fatalf("readings: got %d, want 1", len(readings))
	}
	for _, want := range []string{`"temp_c":21.5`, `"hum_pct":40`, `"wake_count":7`, `"fw":"1.2.0"`} {
		if !strings.Contains(readings[0], want) {
			t.Errorf("reading payload %s missing %s", readings[0], want)
		}
	}
	minmaxes := h.session.PublishedTo(h.topics.MinMax)
	if len(minmaxes) != 1 || !strings.Contains(minmaxes[0], `"reset_yyyymmdd":20260301`) {
		t.Errorf("minmax: got %v", minmaxes)
	}

	h.n.step(at(1000))
	if h.reader.Reads != 1 {
		t.Errorf("Reads before the interval: got %d, want 1", h.reader.Reads)
	}
	h.n.step(at(30000))
	if h.reader.Reads != 2 {
		t.Errorf("Reads after the interval: got %d, want 2", h.reader.Reads)
	}

	snap := h.n.tracker.Snapshot()
	if snap.Reading == nil || snap.Reading.TempC != 21.5 || snap.Reading.Epoch != t0.Unix() {
		t.Errorf("tracker reading: got %+v", snap.Reading)
	}
	if !snap.MinMax.Valid() || snap.MinMax.Min != 21.5 {
		t.Errorf("tracker minmax: got %+v", snap.MinMax)
	}
}

func TestStepSensorFailureSkipsCycle(t *testing.T) {
	h := newHarness(t)
	h.reader.Err = errors.New("checksum mismatch")
	h.n.step(at(0))

	if got := h.session.PublishedTo(h.topics.Log); len(got) != 1 || got[0] != "sensor read failed" {
		t.Errorf("log: got %v", got)
	}
	if got := h.session.PublishedTo(h.topics.Reading); len(got) != 0 {
		t.Errorf("reading published after failure: %v", got)
	}
	if got := h.n.tracker.Snapshot().SensorFailures; got != 1 {
		t.Errorf("SensorFailures: got %d, want 1", got)
	}
}

func TestStepNoClockSkipsMinMax(t *testing.T) {
	h := newHarness(t)
	h.clock.Epoch = 0
	h.n.step(at(0))

	readings := h.session.PublishedTo(h.topics.Reading)
	if len(readings) != 1 || !strings.Contains(readings[0], `"ts":0`) {
		t.Errorf("reading: got %v", readings)
	}
	if got := h.session.PublishedTo(h.topics.MinMax); len(got) != 0 {
		t.Errorf("minmax published without a clock: %v", got)
	}
	if h.n.tracker.Snapshot().MinMax.Valid() {
		t.Error("record must stay empty without a clock")
	}
}

func TestStepAlarmFiresOnBandEntry(t *testing.T) {
	h := newHarness(t)
	high := 25.0
	h.n.alarms.High = &high
	h.reader.Readings = []sensor.Reading{{TempC: 26}, {TempC: 27}, {TempC: 24}, {TempC: 26}}

	for i := 0; i < 4; i++ {
		h.n.step(at(i * 30000))
	}

	alarms := h.session.PublishedTo(h.topics.Alarm)
	if len(alarms) != 2 {
		t.Fatalf("alarms: got %d, want 2 (%v)", len(alarms), alarms)
	}
	if !strings.Contains(alarms[0], `"type":"HIGH"`) || !strings.Contains(alarms[0], `"threshold_c":25`) {
		t.Errorf("alarm payload: got %s", alarms[0])
	}
	if got := h.n.tracker.Snapshot().Alarm; got != minmax.AlarmHigh {
		t.Errorf("tracker alarm: got %q, want HIGH", got)
	}
}

func TestStepHeartbeat(t *testing.T) {
	h := newHarness(t)
	h.n.network = func() *status.NetworkInfo {
		return &status.NetworkInfo{Status: "connected", Type: "wifi", SSID: "HomeNet"}
	}

	h.n.step(at(0))
	h.n.step(at(30000))
	if got := h.session.PublishedTo(h.topics.Heartbeat); len(got) != 0 {
		t.Fatalf("heartbeat before the interval: %v", got)
	}
	h.n.step(at(60000))

	hbs := h.session.PublishedTo(h.topics.Heartbeat)
	if len(hbs) != 1 {
		t.Fatalf("heartbeats: got %d, want 1", len(hbs))
	}
	for _, want := range []string{`"event":"HEARTBEAT"`, `"ssid":"HomeNet"`, `"connected":true`, `"boot_count":7`} {
		if !strings.Contains(hbs[0], want) {
			t.Errorf("heartbeat %s missing %s", hbs[0], want)
		}
	}
}

func TestStepHeartbeatDisabled(t *testing.T) {
	h := newHarness(t)
	h.n.heartbeat = 0
	for i := 0; i <= 10; i++ {
		h.n.step(at(i * 60000))
	}
	if got := h.session.PublishedTo(h.topics.Heartbeat); len(got) != 0 {
		t.Errorf("heartbeats: got %d, want 0", len(got))
	}
}

func TestStepWithoutInputsOrSensor(t *testing.T) {
	h := newHarness(t)
	h.n.monitor = nil
	h.n.sensor = nil
	h.n.step(at(0))

	if h.reader.Reads != 0 {
		t.Errorf("sensor read with sampling disabled")
	}
	if got := len(h.session.PublishedTo(h.topics.Boot)); got != 1 {
		t.Errorf("boot announcements: got %d, want 1", got)
	}
}

// --- runLoop tests ---

// fakeClock returns a function that yields start, start+step, start+2*step, ...
// on successive calls. Not safe for concurrent use (only called from runLoop's goroutine).
func fakeClock(start time.Time, step time.Duration) func() time.Time {
	n := 0
	return func() time.Time {
		t := start.Add(time.Duration(n) * step)
		n++
		return t
	}
}

// runRunLoop drives runLoop for nTicks and then delivers signal.
func runRunLoop(t *testing.T, n *node, clock func() time.Time, nTicks int, signal os.Signal) error {
	t.Helper()
	tick := make(chan time.Time)
	sig := make(chan os.Signal, 1)

	errCh := make(chan error, 1)
	go func() {
		errCh <- runLoop(n, clock, tick, sig)
	}()

	for i := 0; i < nTicks; i++ {
		tick <- time.Time{}
	}
	sig <- signal

	return <-errCh
}

func TestRunLoopShutdownSIGINT(t *testing.T) {
	h := newHarness(t)
	clock := fakeClock(t0, 10*time.Millisecond)

	if err := runRunLoop(t, h.n, clock, 3, syscall.SIGINT); err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	hbs := h.session.PublishedTo(h.topics.Heartbeat)
	if len(hbs) != 1 {
		t.Fatalf("expected 1 status event, got %d", len(hbs))
	}
	if !strings.Contains(hbs[0], `"event":"SHUTDOWN"`) || !strings.Contains(hbs[0], `"reason":"SIGINT"`) {
		t.Errorf("shutdown payload: got %s", hbs[0])
	}

	st := h.session.PublishedTo(h.topics.Status)
	if len(st) == 0 || st[len(st)-1] != mqtt.Offline {
		t.Errorf("status topic: got %v, want trailing offline", st)
	}
	if h.session.Disconnects != 1 {
		t.Errorf("Disconnects: got %d, want 1", h.session.Disconnects)
	}
}

func TestRunLoopShutdownSIGTERM(t *testing.T) {
	h := newHarness(t)
	clock := fakeClock(t0, 10*time.Millisecond)

	if err := runRunLoop(t, h.n, clock, 3, syscall.SIGTERM); err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	hbs := h.session.PublishedTo(h.topics.Heartbeat)
	if len(hbs) != 1 || !strings.Contains(hbs[0], `"reason":"SIGTERM"`) {
		t.Errorf("shutdown events: got %v", hbs)
	}
}

func TestRunLoopShutdownOffline(t *testing.T) {
	h := newHarness(t)
	h.link.Current = link.Connecting
	clock := fakeClock(t0, 10*time.Millisecond)

	if err := runRunLoop(t, h.n, clock, 3, syscall.SIGTERM); err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}
	if h.session.PublishCalls != 0 || h.session.Disconnects != 0 {
		t.Errorf("offline shutdown touched the session: publishes=%d disconnects=%d",
			h.session.PublishCalls, h.session.Disconnects)
	}
}

func TestRunLoopEventFlow(t *testing.T) {
	h := newHarness(t)
	h.n.sensor = nil
	clock := fakeClock(t0, 20*time.Millisecond)

	// A glitch on pin 4 and a real change on pin 17 land before the loop
	// starts; the first ticks open and close both windows.
	h.inputs.Pulse(0)
	h.inputs.Set(1, 1)
	if err := runRunLoop(t, h.n, clock, 6, syscall.SIGTERM); err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	snap := h.n.tracker.Snapshot()
	if !snap.Inputs[1].Baselined || !snap.Inputs[1].Active {
		t.Errorf("pin 17: got %+v, want baselined active", snap.Inputs[1])
	}
	if snap.Inputs[0].Baselined {
		t.Error("pin 4 glitch must not capture a baseline")
	}
	if got := h.session.PublishedTo(h.topics.Events); len(got) != 0 {
		t.Errorf("baseline published events: %v", got)
	}
}

func TestResolveWSBroker(t *testing.T) {
	tests := []struct {
		ws, broker, want string
	}{
		{"=broker", "tcp://192.168.1.200:1883", "ws://192.168.1.200:9001"},
		{"=broker", "tcp://broker.local:1883", "ws://broker.local:9001"},
		{"off", "tcp://192.168.1.200:1883", ""},
		{"", "tcp://192.168.1.200:1883", ""},
		{"wss://example.com/mqtt", "tcp://192.168.1.200:1883", "wss://example.com/mqtt"},
		{"=broker", "://bad", ""},
	}
	for _, tt := range tests {
		if got := resolveWSBroker(tt.ws, tt.broker); got != tt.want {
			t.Errorf("resolveWSBroker(%q, %q): got %q, want %q", tt.ws, tt.broker, got, tt.want)
		}
	}
}

func TestNetworkInfo(t *testing.T) {
	if got := networkInfo(nil); got != nil {
		t.Errorf("networkInfo(nil): got %+v, want nil", got)
	}
	got := networkInfo(&link.Info{Type: "wifi", IP: "192.168.1.42", Status: "connected", SSID: "HomeNet"})
	if got == nil || got.IP != "192.168.1.42" || got.SSID != "HomeNet" || got.Status != "connected" {
		t.Errorf("networkInfo: got %+v", got)
	}
}

func TestPrintInputs(t *testing.T) {
	channels := []input.Channel{
		{Pin: 4, Polarity: input.ActiveLow},
		{Pin: 17, Polarity: input.ActiveHigh},
	}
	inputs := gpio.NewFakeInputs([]int{0, 0}, []bool{true, false})

	var buf bytes.Buffer
	if err := printInputs(&buf, inputs, channels); err != nil {
		t.Fatalf("printInputs: %v", err)
	}
	want := "pin 4 (active-low): ACTIVE\npin 17 (active-high): INACTIVE\n"
	if buf.String() != want {
		t.Errorf("got %q, want %q", buf.String(), want)
	}

	buf.Reset()
	if err := printInputs(&buf, nil, nil); err != nil || buf.String() != "no inputs configured\n" {
		t.Errorf("no inputs: got %q, %v", buf.String(), err)
	}

	inputs.ReadError = errors.New("line busy")
	if err := printInputs(&buf, inputs, channels); err == nil {
		t.Error("expected read error")
	}
}
