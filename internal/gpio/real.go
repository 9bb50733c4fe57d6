//go:build linux

package gpio

import (
	"fmt"
	"sync/atomic"

	"github.com/warthog618/go-gpiocdev"

	"github.com/sweeney/sensor-node/internal/input"
)

const consumer = "sensor-node"

// RealInputs reads input lines from actual hardware using the Linux GPIO
// character device. Each line reports its qualifying edge (falling for
// active-low, rising for active-high) to the handler registered with OnEdge.
type RealInputs struct {
	chip     *gpiocdev.Chip
	lines    []*gpiocdev.Line
	handlers [input.MaxChannels]atomic.Pointer[func()]
}

// NewRealInputs requests one line per channel on the named chip.
func NewRealInputs(chipName string, chans []input.Channel) (*RealInputs, error) {
	if len(chans) > input.MaxChannels {
		return nil, fmt.Errorf("too many input lines: %d > %d", len(chans), input.MaxChannels)
	}
	chip, err := gpiocdev.NewChip(chipName, gpiocdev.WithConsumer(consumer))
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	r := &RealInputs{chip: chip}
	for i, c := range chans {
		ch := i
		opts := []gpiocdev.LineReqOption{
			gpiocdev.AsInput,
			gpiocdev.WithEventHandler(func(gpiocdev.LineEvent) { r.fire(ch) }),
		}
		// Bias the line towards its inactive level.
		if c.Polarity == input.ActiveHigh {
			opts = append(opts, gpiocdev.WithPullDown, gpiocdev.WithRisingEdge)
		} else {
			opts = append(opts, gpiocdev.WithPullUp, gpiocdev.WithFallingEdge)
		}

		line, err := chip.RequestLine(c.Pin, opts...)
		if err != nil {
			r.Close()
			return nil, fmt.Errorf("request input pin %d: %w", c.Pin, err)
		}
		r.lines = append(r.lines, line)
	}
	return r, nil
}

func (r *RealInputs) fire(ch int) {
	if fn := r.handlers[ch].Load(); fn != nil {
		(*fn)()
	}
}

// OnEdge registers the capture callback for line ch. Edges seen before
// registration are dropped.
func (r *RealInputs) OnEdge(ch int, fn func()) {
	if ch >= 0 && ch < len(r.lines) {
		r.handlers[ch].Store(&fn)
	}
}

// Level returns the raw level of line ch.
func (r *RealInputs) Level(ch int) (int, error) {
	if ch < 0 || ch >= len(r.lines) {
		return 0, fmt.Errorf("input line %d not configured", ch)
	}
	v, err := r.lines[ch].Value()
	if err != nil {
		return 0, fmt.Errorf("read input line %d: %w", ch, err)
	}
	return v, nil
}

// Close releases GPIO resources.
// Reconfigures lines to input with pull-down (matching Pi boot defaults)
// before closing so external hardware sees a clean state across reboots.
func (r *RealInputs) Close() error {
	var errs []error
	for i, l := range r.lines {
		if err := l.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure line %d: %w", i, err))
		}
		if err := l.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close line %d: %w", i, err))
		}
	}
	r.lines = nil
	if r.chip != nil {
		if err := r.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
		r.chip = nil
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}

// RealOutput drives an output line, initially low.
type RealOutput struct {
	line *gpiocdev.Line
}

// NewRealOutput requests pin as an output on the named chip.
func NewRealOutput(chipName string, pin int) (*RealOutput, error) {
	line, err := gpiocdev.RequestLine(chipName, pin, gpiocdev.AsOutput(0), gpiocdev.WithConsumer(consumer))
	if err != nil {
		return nil, fmt.Errorf("request output pin %d: %w", pin, err)
	}
	return &RealOutput{line: line}, nil
}

// Set drives the line high when on.
func (o *RealOutput) Set(on bool) error {
	v := 0
	if on {
		v = 1
	}
	if err := o.line.SetValue(v); err != nil {
		return fmt.Errorf("set output: %w", err)
	}
	return nil
}

// Close drives the line low and releases it.
func (o *RealOutput) Close() error {
	var errs []error
	if err := o.line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
		errs = append(errs, fmt.Errorf("reconfigure output: %w", err))
	}
	if err := o.line.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close output: %w", err))
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
