// Package gpio provides GPIO line access with hardware abstraction.
// The real implementation uses the Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

import "github.com/sweeney/sensor-node/internal/input"

// DefaultChip is the Raspberry Pi header chip.
const DefaultChip = "gpiochip0"

// Inputs reads edge-triggered input lines. It satisfies input.Sampler.
type Inputs interface {
	// Level returns the raw level (0 or 1) of the line at index ch.
	Level(ch int) (int, error)

	// OnEdge registers fn to run on every qualifying edge of line ch.
	// fn runs on the GPIO event goroutine and must only capture.
	OnEdge(ch int, fn func())

	// Close releases GPIO resources.
	Close() error
}

// Output drives a single output line.
type Output interface {
	Set(on bool) error
	Close() error
}

var _ input.Sampler = Inputs(nil)
