// Package comms names the node's outbound channels. Every helper is a single
// pass through the connection manager's publish gate and reports whether the
// message left the node; callers treat false as "skip this cycle".
package comms

import (
	"github.com/sweeney/sensor-node/internal/input"
	"github.com/sweeney/sensor-node/internal/minmax"
	"github.com/sweeney/sensor-node/internal/mqtt"
)

// Publisher is the publish gate, normally *conn.Manager.
type Publisher interface {
	Publish(topic string, payload []byte) bool
}

// Comms publishes the node's payloads on their topics.
type Comms struct {
	pub     Publisher
	topics  mqtt.Topics
	device  string
	version string
}

// New creates a Comms for device running firmware version.
func New(pub Publisher, topics mqtt.Topics, device, version string) *Comms {
	return &Comms{
		pub:     pub,
		topics:  topics,
		device:  device,
		version: version,
	}
}

// Topics returns the topic set in use.
func (c *Comms) Topics() mqtt.Topics {
	return c.topics
}

// PublishBoot announces this boot.
func (c *Comms) PublishBoot(bootID string, bootCount uint64) bool {
	return c.pub.Publish(c.topics.Boot, mqtt.FormatBoot(c.device, c.version, bootID, bootCount))
}

// PublishLog sends a free-form log line.
func (c *Comms) PublishLog(msg string) bool {
	return c.pub.Publish(c.topics.Log, []byte(msg))
}

// PublishResp sends a command response.
func (c *Comms) PublishResp(msg string) bool {
	return c.pub.Publish(c.topics.Resp, []byte(msg))
}

// PublishEvent sends a confirmed input change.
func (c *Comms) PublishEvent(e input.Event) bool {
	return c.pub.Publish(c.topics.Events, mqtt.FormatEvent(e))
}

// PublishHeartbeat sends a pre-rendered status document.
func (c *Comms) PublishHeartbeat(payload []byte) bool {
	return c.pub.Publish(c.topics.Heartbeat, payload)
}

// PublishReading sends a temperature/humidity reading.
func (c *Comms) PublishReading(ts int64, tempC, humPct float64, wakeCount uint64) bool {
	return c.pub.Publish(c.topics.Reading, mqtt.FormatReading(c.device, c.version, ts, tempC, humPct, wakeCount))
}

// PublishMinMax sends the daily record. Nothing is sent before the record
// holds a reading.
func (c *Comms) PublishMinMax(ts int64, s minmax.Stats) bool {
	payload := mqtt.FormatMinMax(c.device, ts, s)
	if payload == nil {
		return false
	}
	return c.pub.Publish(c.topics.MinMax, payload)
}

// PublishAlarm sends a threshold alarm.
func (c *Comms) PublishAlarm(ts int64, a minmax.Alarm) bool {
	return c.pub.Publish(c.topics.Alarm, mqtt.FormatAlarm(c.device, ts, a))
}
