package link

// FakeProvider is a Provider test double.
type FakeProvider struct {
	// Current is returned by Status.
	Current Status

	// ReconnectTo, if non-nil, becomes Current when Reconnect is called.
	ReconnectTo *Status

	// ReconnectError is returned by Reconnect.
	ReconnectError error

	// Reconnects counts Reconnect calls.
	Reconnects int
}

// NewFakeProvider returns a provider reporting s.
func NewFakeProvider(s Status) *FakeProvider {
	return &FakeProvider{Current: s}
}

// Status returns Current.
func (f *FakeProvider) Status() Status {
	return f.Current
}

// Reconnect records the call.
func (f *FakeProvider) Reconnect() error {
	f.Reconnects++
	if f.ReconnectTo != nil {
		f.Current = *f.ReconnectTo
	}
	return f.ReconnectError
}
