// Package link reports link-layer (Wi-Fi/Ethernet) connectivity and can ask
// the host to re-associate.
package link

// Status is the link-layer connection state.
type Status int

const (
	Disconnected Status = iota
	Connecting          // scanning or associating
	Connected
	Failed
)

func (s Status) String() string {
	switch s {
	case Connected:
		return "connected"
	case Connecting:
		return "connecting"
	case Failed:
		return "failed"
	default:
		return "disconnected"
	}
}

// ParseStatus maps a status word written by the host network helper.
func ParseStatus(s string) Status {
	switch s {
	case "connected", "up", "completed":
		return Connected
	case "connecting", "associating", "scanning", "authenticating", "4way_handshake", "group_handshake":
		return Connecting
	case "failed", "connect_failed":
		return Failed
	default:
		return Disconnected
	}
}

// Provider is the link-layer status provider.
type Provider interface {
	Status() Status
	Reconnect() error
}

// Info describes the current network attachment for status payloads.
type Info struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}
