// Package status provides a thread-safe status tracker for the sensor-node daemon.
// It is written by the control loop and read by HTTP handlers and the
// heartbeat publisher.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/sensor-node/internal/input"
	"github.com/sweeney/sensor-node/internal/minmax"
)

// NetworkInfo contains network state. This is a local copy to avoid
// importing internal/link from status.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains daemon configuration for display.
type Config struct {
	Device      string
	Version     string
	TickMs      int64
	DebounceMs  int64
	HeartbeatMs int64
	SensorMs    int64
	Broker      string
	BaseTopic   string
	HTTPAddr    string
	WSBroker    string // Websocket broker URL for browser MQTT (empty = disabled)
}

// Boot identifies this process lifetime.
type Boot struct {
	ID    string
	Count uint64
}

// Reading is the last successful sensor sample.
type Reading struct {
	TempC  float64
	HumPct float64
	Epoch  int64 // 0 when no clock was available
	At     time.Time
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type and safe to use after the lock is released.
type Snapshot struct {
	Boot             Boot
	LinkStatus       string
	SessionConnected bool
	LED              bool
	Commands         int
	Inputs           []input.ChannelStatus
	Reading          *Reading
	SensorFailures   int
	MinMax           minmax.Stats
	Alarm            minmax.AlarmType
	StartTime        time.Time
	Now              time.Time
	Network          *NetworkInfo
	Config           Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Ready reports whether every input has a baseline. It is true with no
// inputs configured.
func (s Snapshot) Ready() bool {
	for _, in := range s.Inputs {
		if !in.Baselined {
			return false
		}
	}
	return true
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time, config and boot
// identity.
func NewTracker(startTime time.Time, cfg Config, boot Boot) *Tracker {
	return &Tracker{
		snap: Snapshot{
			Boot:       boot,
			StartTime:  startTime,
			Config:     cfg,
			LinkStatus: "unknown",
			MinMax:     minmax.NewTracker().Stats(),
		},
	}
}

// UpdateInputs replaces the input channel view.
// Called from runLoop on every tick.
func (t *Tracker) UpdateInputs(inputs []input.ChannelStatus) {
	cp := append([]input.ChannelStatus(nil), inputs...)
	t.mu.Lock()
	t.snap.Inputs = cp
	t.mu.Unlock()
}

// SetConnection sets the link status and session state.
func (t *Tracker) SetConnection(link string, session bool) {
	t.mu.Lock()
	t.snap.LinkStatus = link
	t.snap.SessionConnected = session
	t.mu.Unlock()
}

// SetCommands sets the LED state and the number of commands handled.
func (t *Tracker) SetCommands(led bool, handled int) {
	t.mu.Lock()
	t.snap.LED = led
	t.snap.Commands = handled
	t.mu.Unlock()
}

// SetReading records a successful sensor sample.
func (t *Tracker) SetReading(r Reading) {
	t.mu.Lock()
	t.snap.Reading = &r
	t.mu.Unlock()
}

// SensorFailed counts a failed sensor read.
func (t *Tracker) SensorFailed() {
	t.mu.Lock()
	t.snap.SensorFailures++
	t.mu.Unlock()
}

// SetMinMax records the daily extremum and the active alarm band.
func (t *Tracker) SetMinMax(s minmax.Stats, alarm minmax.AlarmType) {
	t.mu.Lock()
	t.snap.MinMax = s
	t.snap.Alarm = alarm
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	s.Inputs = append([]input.ChannelStatus(nil), t.snap.Inputs...)
	if t.snap.Reading != nil {
		r := *t.snap.Reading
		s.Reading = &r
	}
	if t.snap.Network != nil {
		n := *t.snap.Network
		s.Network = &n
	}
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
