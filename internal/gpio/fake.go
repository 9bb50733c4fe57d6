package gpio

import (
	"errors"
	"sync"
)

// FakeInputs is a test double with settable line levels. Setting a level
// that produces a qualifying edge fires the registered handler, like the
// hardware would.
type FakeInputs struct {
	mu       sync.Mutex
	levels   []int
	activeLo []bool
	handlers []func()

	// ReadError, if set, is returned by Level.
	ReadError error

	// Reads counts Level calls.
	Reads int

	// Closed tracks if Close was called.
	Closed bool
}

// NewFakeInputs creates n lines at the given initial levels. activeLow[i]
// selects the qualifying edge of line i: falling when true, rising otherwise.
func NewFakeInputs(levels []int, activeLow []bool) *FakeInputs {
	if len(activeLow) != len(levels) {
		panic("gpio: levels and activeLow length mismatch")
	}
	return &FakeInputs{
		levels:   append([]int(nil), levels...),
		activeLo: append([]bool(nil), activeLow...),
		handlers: make([]func(), len(levels)),
	}
}

// Level returns the current level of line ch.
func (f *FakeInputs) Level(ch int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Reads++
	if f.ReadError != nil {
		return 0, f.ReadError
	}
	if ch < 0 || ch >= len(f.levels) {
		return 0, errors.New("line not configured")
	}
	return f.levels[ch], nil
}

// OnEdge registers fn for line ch.
func (f *FakeInputs) OnEdge(ch int, fn func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if ch >= 0 && ch < len(f.handlers) {
		f.handlers[ch] = fn
	}
}

// Set changes the level of line ch and fires its handler on a qualifying
// edge.
func (f *FakeInputs) Set(ch, level int) {
	f.mu.Lock()
	prev := f.levels[ch]
	f.levels[ch] = level
	falling := prev == 1 && level == 0
	rising := prev == 0 && level == 1
	fire := (f.activeLo[ch] && falling) || (!f.activeLo[ch] && rising)
	fn := f.handlers[ch]
	f.mu.Unlock()

	if fire && fn != nil {
		fn()
	}
}

// Pulse fires the handler of line ch without changing its level, as a
// glitch shorter than a sample would.
func (f *FakeInputs) Pulse(ch int) {
	f.mu.Lock()
	fn := f.handlers[ch]
	f.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// Close marks the inputs as closed.
func (f *FakeInputs) Close() error {
	f.Closed = true
	return nil
}

// FakeOutput records the values driven onto an output line.
type FakeOutput struct {
	// On is the current level.
	On bool

	// Writes lists every value set, in order.
	Writes []bool

	// SetError, if set, is returned by Set. The write is still recorded.
	SetError error

	// Closed tracks if Close was called.
	Closed bool
}

// Set records the value.
func (f *FakeOutput) Set(on bool) error {
	f.Writes = append(f.Writes, on)
	if f.SetError != nil {
		return f.SetError
	}
	f.On = on
	return nil
}

// Close marks the output as closed.
func (f *FakeOutput) Close() error {
	f.Closed = true
	return nil
}
