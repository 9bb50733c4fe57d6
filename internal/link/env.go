package link

import (
	"context"
	"fmt"
	"os/exec"
	"time"

	"github.com/joho/godotenv"
)

// DefaultEnvFile is where pi-helper writes the network state.
const DefaultEnvFile = "/run/pi-helper.env"

// pi-helper env var names.
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

const reassociateTimeout = 2 * time.Second

// EnvProvider reads link state from the env file maintained by the host
// network helper and re-associates through wpa_cli.
type EnvProvider struct {
	Path      string
	Interface string

	// run executes the re-association command; replaced in tests.
	run func(ctx context.Context, name string, args ...string) error
}

// NewEnvProvider creates a provider for the given env file and interface.
func NewEnvProvider(path, iface string) *EnvProvider {
	if path == "" {
		path = DefaultEnvFile
	}
	return &EnvProvider{
		Path:      path,
		Interface: iface,
		run: func(ctx context.Context, name string, args ...string) error {
			return exec.CommandContext(ctx, name, args...).Run()
		},
	}
}

// Status returns Disconnected if the env file cannot be read.
func (p *EnvProvider) Status() Status {
	env, err := godotenv.Read(p.Path)
	if err != nil {
		return Disconnected
	}
	return ParseStatus(env[envNetworkStatus])
}

// Info returns the current network info, or nil if no status is published.
func (p *EnvProvider) Info() *Info {
	env, err := godotenv.Read(p.Path)
	if err != nil || env[envNetworkStatus] == "" {
		return nil
	}
	return &Info{
		Type:       env[envNetworkType],
		IP:         env[envNetworkIP],
		Status:     env[envNetworkStatus],
		Gateway:    env[envNetworkGateway],
		WifiStatus: env[envNetworkWifiStatus],
		SSID:       env[envNetworkWifiSSID],
	}
}

// Reconnect asks wpa_supplicant to re-associate. It returns within
// reassociateTimeout.
func (p *EnvProvider) Reconnect() error {
	if p.Interface == "" {
		return fmt.Errorf("link: no wireless interface configured")
	}
	ctx, cancel := context.WithTimeout(context.Background(), reassociateTimeout)
	defer cancel()
	if err := p.run(ctx, "wpa_cli", "-i", p.Interface, "reassociate"); err != nil {
		return fmt.Errorf("link: reassociate %s: %w", p.Interface, err)
	}
	return nil
}
