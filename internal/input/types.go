// Package input turns raw edge interrupts from digital pins into confirmed,
// polarity-normalized state-change events.
//
// Work is split in two stages. The capture stage ([Monitor.Capture]) runs in
// the GPIO event context and only raises a per-channel flag. The confirmation
// stage ([Monitor.Service]) runs on the control loop, opens a debounce window
// for every flagged channel, resamples the line while the window is open and
// commits the value observed when the window closes.
//
// This package has no MQTT or OS dependencies. Time is injected via
// time.Time parameters.
package input

import (
	"errors"
	"time"
)

// MaxChannels is the fixed capacity of the channel arena.
const MaxChannels = 8

// DefaultDebounce is the confirmation window length.
const DefaultDebounce = 60 * time.Millisecond

// Polarity maps a raw electrical level onto a logical active/inactive state.
type Polarity int

const (
	// ActiveLow means a low line is active. Qualifying edge: falling.
	ActiveLow Polarity = iota
	// ActiveHigh means a high line is active. Qualifying edge: rising.
	ActiveHigh
)

// String returns "active-low" or "active-high".
func (p Polarity) String() string {
	if p == ActiveHigh {
		return "active-high"
	}
	return "active-low"
}

// Logical converts a raw level (0 or 1) to the logical state.
func (p Polarity) Logical(raw int) bool {
	if p == ActiveHigh {
		return raw != 0
	}
	return raw == 0
}

// Channel configures one monitored pin.
type Channel struct {
	Pin      int
	Polarity Polarity
}

// Sampler reads the raw level of a configured channel.
type Sampler interface {
	// Level returns the raw electrical level (0 or 1) of the channel at
	// index ch, in the order the channels were configured.
	Level(ch int) (int, error)
}

// Event is a confirmed logical state change.
type Event struct {
	Pin       int
	Active    bool
	Timestamp time.Time
}

// ChannelStatus is a read-only view of one channel for status reporting.
type ChannelStatus struct {
	Pin       int
	Polarity  Polarity
	Active    bool
	Baselined bool
	Changes   int
}

var (
	errNoChannels   = errors.New("input: no channels configured")
	errTooMany      = errors.New("input: too many channels")
	errDuplicatePin = errors.New("input: duplicate pin")
)

// channelState is the per-pin debounce state.
type channelState struct {
	pin         int
	polarity    Polarity
	confirmed   bool // last confirmed logical state
	reading     bool // logical value sampled most recently inside the window
	windowStart time.Time
	debouncing  bool
	baselined   bool
	changes     int
}
