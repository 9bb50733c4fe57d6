//go:build !linux

package gpio

import (
	"errors"

	"github.com/sweeney/sensor-node/internal/input"
)

var errUnsupported = errors.New("gpio: not supported on this platform (requires Linux)")

// RealInputs is not available on non-Linux platforms.
type RealInputs struct{}

// NewRealInputs returns an error on non-Linux platforms.
func NewRealInputs(string, []input.Channel) (*RealInputs, error) {
	return nil, errUnsupported
}

// Level is not implemented on non-Linux platforms.
func (r *RealInputs) Level(int) (int, error) {
	return 0, errUnsupported
}

// OnEdge is a no-op on non-Linux platforms.
func (r *RealInputs) OnEdge(int, func()) {}

// Close is not implemented on non-Linux platforms.
func (r *RealInputs) Close() error {
	return nil
}

// RealOutput is not available on non-Linux platforms.
type RealOutput struct{}

// NewRealOutput returns an error on non-Linux platforms.
func NewRealOutput(string, int) (*RealOutput, error) {
	return nil, errUnsupported
}

// Set is not implemented on non-Linux platforms.
func (o *RealOutput) Set(bool) error {
	return errUnsupported
}

// Close is not implemented on non-Linux platforms.
func (o *RealOutput) Close() error {
	return nil
}
