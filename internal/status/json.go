package status

import (
	"encoding/json"
	"math"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string       `json:"event,omitempty"`
	Reason        string       `json:"reason,omitempty"`
	Device        string       `json:"device"`
	Version       string       `json:"version"`
	BootID        string       `json:"boot_id"`
	BootCount     uint64       `json:"boot_count"`
	Ready         bool         `json:"ready"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartTime     string       `json:"start_time"`
	Timestamp     string       `json:"timestamp"`
	Link          LinkStatus   `json:"link"`
	MQTT          MQTTStatus   `json:"mqtt"`
	LED           string       `json:"led"`
	Commands      int          `json:"commands"`
	Inputs        []InputJSON  `json:"inputs"`
	Reading       *ReadingJSON `json:"reading,omitempty"`
	SensorErrors  int          `json:"sensor_errors"`
	MinMax        *MinMaxJSON  `json:"minmax,omitempty"`
	Alarm         string       `json:"alarm,omitempty"`
	Network       *NetworkJSON `json:"network,omitempty"`
	Config        ConfigJSON   `json:"config"`
}

// LinkStatus reports link-layer state.
type LinkStatus struct {
	Status string `json:"status"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// InputJSON is the JSON representation of one input channel.
type InputJSON struct {
	Pin       int    `json:"pin"`
	Polarity  string `json:"polarity"`
	State     string `json:"state"`
	Baselined bool   `json:"baselined"`
	Changes   int    `json:"changes"`
}

// ReadingJSON is the JSON representation of the last sensor sample.
type ReadingJSON struct {
	TempC  float64 `json:"temp_c"`
	HumPct float64 `json:"hum_pct"`
	TS     int64   `json:"ts"`
	At     string  `json:"at"`
}

// MinMaxJSON is the JSON representation of the daily record.
type MinMaxJSON struct {
	MinC      float64 `json:"min_c"`
	MaxC      float64 `json:"max_c"`
	ResetDate int     `json:"reset_yyyymmdd"`
	ResetTS   int64   `json:"reset_ts"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	TickMs      int64  `json:"tick_ms"`
	DebounceMs  int64  `json:"debounce_ms"`
	HeartbeatMs int64  `json:"heartbeat_ms"`
	SensorMs    int64  `json:"sensor_ms"`
	Broker      string `json:"broker"`
	BaseTopic   string `json:"base_topic"`
	HTTPAddr    string `json:"http_addr"`
	WSBroker    string `json:"ws_broker,omitempty"`
}

// InputState renders a logical input level.
func InputState(active bool) string {
	if active {
		return "ACTIVE"
	}
	return "INACTIVE"
}

func onOff(on bool) string {
	if on {
		return "ON"
	}
	return "OFF"
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func buildInner(snap Snapshot) StatusInner {
	inputs := make([]InputJSON, 0, len(snap.Inputs))
	for _, in := range snap.Inputs {
		state := InputState(in.Active)
		if !in.Baselined {
			state = "UNKNOWN"
		}
		inputs = append(inputs, InputJSON{
			Pin:       in.Pin,
			Polarity:  in.Polarity.String(),
			State:     state,
			Baselined: in.Baselined,
			Changes:   in.Changes,
		})
	}

	inner := StatusInner{
		Device:        snap.Config.Device,
		Version:       snap.Config.Version,
		BootID:        snap.Boot.ID,
		BootCount:     snap.Boot.Count,
		Ready:         snap.Ready(),
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		Link:          LinkStatus{Status: snap.LinkStatus},
		MQTT:          MQTTStatus{Connected: snap.SessionConnected, Broker: snap.Config.Broker},
		LED:           onOff(snap.LED),
		Commands:      snap.Commands,
		Inputs:        inputs,
		SensorErrors:  snap.SensorFailures,
		Alarm:         string(snap.Alarm),
		Config: ConfigJSON{
			TickMs:      snap.Config.TickMs,
			DebounceMs:  snap.Config.DebounceMs,
			HeartbeatMs: snap.Config.HeartbeatMs,
			SensorMs:    snap.Config.SensorMs,
			Broker:      snap.Config.Broker,
			BaseTopic:   snap.Config.BaseTopic,
			HTTPAddr:    snap.Config.HTTPAddr,
			WSBroker:    snap.Config.WSBroker,
		},
	}

	if r := snap.Reading; r != nil {
		inner.Reading = &ReadingJSON{
			TempC:  round1(r.TempC),
			HumPct: round1(r.HumPct),
			TS:     r.Epoch,
			At:     r.At.UTC().Format(time.RFC3339),
		}
	}
	if snap.MinMax.Valid() {
		inner.MinMax = &MinMaxJSON{
			MinC:      round1(snap.MinMax.Min),
			MaxC:      round1(snap.MinMax.Max),
			ResetDate: snap.MinMax.DateKey,
			ResetTS:   snap.MinMax.ResetTime,
		}
	}
	return inner
}

func buildNetwork(snap Snapshot, inner *StatusInner) {
	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	inner := buildInner(snap)
	buildNetwork(snap, &inner)

	data, _ := json.MarshalIndent(StatusJSON{Status: inner}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT heartbeat or
// shutdown message.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason
	buildNetwork(snap, &inner)

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
