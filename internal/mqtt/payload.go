package mqtt

import (
	"encoding/json"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/sweeney/sensor-node/internal/input"
	"github.com/sweeney/sensor-node/internal/minmax"
)

// BootPayload is published on the boot topic after every session connect.
type BootPayload struct {
	Device    string `json:"device"`
	Version   string `json:"version"`
	Status    string `json:"status"`
	BootID    string `json:"boot_id"`
	BootCount uint64 `json:"boot_count"`
}

// EventPayload is a confirmed input change.
type EventPayload struct {
	Pin       int    `json:"pin"`
	State     int    `json:"state"`
	Timestamp string `json:"timestamp"`
}

// ReadingPayload is a temperature/humidity reading.
type ReadingPayload struct {
	Device    string  `json:"device"`
	FW        string  `json:"fw"`
	TS        int64   `json:"ts"`
	TempC     float64 `json:"temp_c"`
	HumPct    float64 `json:"hum_pct"`
	WakeCount uint64  `json:"wake_count"`
}

// MinMaxPayload carries the daily extremum record.
type MinMaxPayload struct {
	Device    string  `json:"device"`
	TS        int64   `json:"ts"`
	ResetDate int     `json:"reset_yyyymmdd"`
	MinC      float64 `json:"min_c"`
	MaxC      float64 `json:"max_c"`
}

// AlarmPayload is a threshold alarm.
type AlarmPayload struct {
	Device     string  `json:"device"`
	TS         int64   `json:"ts"`
	Type       string  `json:"type"`
	TempC      float64 `json:"temp_c"`
	ThresholdC float64 `json:"threshold_c"`
}

// NewBootID returns a random identifier for this process lifetime.
func NewBootID() string {
	return uuid.NewString()
}

// FormatBoot creates the boot announcement.
func FormatBoot(device, version, bootID string, bootCount uint64) []byte {
	data, _ := json.Marshal(BootPayload{
		Device:    device,
		Version:   version,
		Status:    Online,
		BootID:    bootID,
		BootCount: bootCount,
	})
	return data
}

// FormatEvent creates the payload for an input change.
func FormatEvent(e input.Event) []byte {
	state := 0
	if e.Active {
		state = 1
	}
	data, _ := json.Marshal(EventPayload{
		Pin:       e.Pin,
		State:     state,
		Timestamp: e.Timestamp.UTC().Format(time.RFC3339),
	})
	return data
}

// FormatReading creates the reading payload. ts is 0 when no clock is available.
func FormatReading(device, fw string, ts int64, tempC, humPct float64, wakeCount uint64) []byte {
	data, _ := json.Marshal(ReadingPayload{
		Device:    device,
		FW:        fw,
		TS:        ts,
		TempC:     round1(tempC),
		HumPct:    round1(humPct),
		WakeCount: wakeCount,
	})
	return data
}

// FormatMinMax creates the daily record payload. It returns nil when the
// record holds no reading yet.
func FormatMinMax(device string, ts int64, s minmax.Stats) []byte {
	if !s.Valid() {
		return nil
	}
	data, _ := json.Marshal(MinMaxPayload{
		Device:    device,
		TS:        ts,
		ResetDate: s.DateKey,
		MinC:      round1(s.Min),
		MaxC:      round1(s.Max),
	})
	return data
}

// FormatAlarm creates the alarm payload.
func FormatAlarm(device string, ts int64, a minmax.Alarm) []byte {
	data, _ := json.Marshal(AlarmPayload{
		Device:     device,
		TS:         ts,
		Type:       string(a.Type),
		TempC:      round1(a.TempC),
		ThresholdC: round1(a.ThresholdC),
	})
	return data
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
