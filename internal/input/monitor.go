package input

import (
	"fmt"
	"log"
	"sync/atomic"
	"time"
)

// Monitor debounces up to MaxChannels edge-triggered inputs.
//
// Capture may be called from any goroutine. Every other method must be called
// from the single control loop.
type Monitor struct {
	debounce time.Duration
	sampler  Sampler
	n        int
	flags    [MaxChannels]atomic.Bool
	chans    [MaxChannels]channelState
}

// NewMonitor creates a monitor for the given channels. Each channel's
// confirmed state is seeded from an immediate sample. The seed is not a
// baseline: the first window that ends at a different level is, and it is
// committed without an event.
func NewMonitor(channels []Channel, sampler Sampler, debounce time.Duration) (*Monitor, error) {
	if len(channels) == 0 {
		return nil, errNoChannels
	}
	if len(channels) > MaxChannels {
		return nil, fmt.Errorf("%w: %d > %d", errTooMany, len(channels), MaxChannels)
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	m := &Monitor{
		debounce: debounce,
		sampler:  sampler,
		n:        len(channels),
	}

	seen := make(map[int]bool, len(channels))
	for i, c := range channels {
		if seen[c.Pin] {
			return nil, fmt.Errorf("%w: %d", errDuplicatePin, c.Pin)
		}
		seen[c.Pin] = true

		raw, err := sampler.Level(i)
		if err != nil {
			return nil, fmt.Errorf("initial read of pin %d: %w", c.Pin, err)
		}
		logical := c.Polarity.Logical(raw)
		m.chans[i] = channelState{
			pin:       c.Pin,
			polarity:  c.Polarity,
			confirmed: logical,
			reading:   logical,
		}
	}
	return m, nil
}

// Capture records a qualifying edge on channel ch. It does no other work and
// is safe to call from the GPIO event goroutine.
func (m *Monitor) Capture(ch int) {
	if ch >= 0 && ch < m.n {
		m.flags[ch].Store(true)
	}
}

// EdgeHandler returns a capture callback bound to channel ch, suitable for
// passing to an interrupt registration call.
func (m *Monitor) EdgeHandler(ch int) func() {
	return func() { m.Capture(ch) }
}

// Service runs the confirmation stage once and returns the committed changes.
func (m *Monitor) Service(now time.Time) []Event {
	var events []Event

	for i := 0; i < m.n; i++ {
		c := &m.chans[i]

		if m.flags[i].Swap(false) && !c.debouncing {
			c.debouncing = true
			c.windowStart = now
		}
		if !c.debouncing {
			continue
		}

		raw, err := m.sampler.Level(i)
		if err != nil {
			log.Printf("input: read pin %d: %v", c.pin, err)
			continue
		}
		c.reading = c.polarity.Logical(raw)

		if now.Sub(c.windowStart) < m.debounce {
			continue
		}

		c.debouncing = false
		if c.reading == c.confirmed {
			continue // spurious edge
		}

		c.confirmed = c.reading
		if !c.baselined {
			c.baselined = true
			log.Printf("input: baseline captured for pin %d (active=%v)", c.pin, c.confirmed)
			continue
		}
		c.changes++
		events = append(events, Event{
			Pin:       c.pin,
			Active:    c.confirmed,
			Timestamp: now,
		})
	}

	return events
}

// Len returns the number of configured channels.
func (m *Monitor) Len() int {
	return m.n
}

// State returns the last confirmed logical state of channel ch.
func (m *Monitor) State(ch int) bool {
	if ch < 0 || ch >= m.n {
		return false
	}
	return m.chans[ch].confirmed
}

// Debouncing reports whether channel ch has an open debounce window.
func (m *Monitor) Debouncing(ch int) bool {
	if ch < 0 || ch >= m.n {
		return false
	}
	return m.chans[ch].debouncing
}

// Snapshot returns the status of every configured channel.
func (m *Monitor) Snapshot() []ChannelStatus {
	out := make([]ChannelStatus, m.n)
	for i := 0; i < m.n; i++ {
		c := m.chans[i]
		out[i] = ChannelStatus{
			Pin:       c.pin,
			Polarity:  c.polarity,
			Active:    c.confirmed,
			Baselined: c.baselined,
			Changes:   c.changes,
		}
	}
	return out
}
