// Package config handles sensor-node configuration loading.
//
// Settings come from, in increasing precedence: Default, a YAML file (with
// ${VAR} expansion), and the MQTT_USERNAME / MQTT_PASSWORD environment
// variables, which may be supplied by a .env file. Command-line flags are
// applied by the caller.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/sweeney/sensor-node/internal/conn"
	"github.com/sweeney/sensor-node/internal/gpio"
	"github.com/sweeney/sensor-node/internal/input"
	"github.com/sweeney/sensor-node/internal/link"
	"github.com/sweeney/sensor-node/internal/sensor"
)

// Environment variables carrying broker credentials.
const (
	EnvUsername = "MQTT_USERNAME"
	EnvPassword = "MQTT_PASSWORD"
)

// DefaultSearchPaths returns the config file search order.
// An explicit path (from -config flag) is checked first.
// Then: ./sensor-node.yaml, /etc/sensor-node/config.yaml.
func DefaultSearchPaths() []string {
	return []string{"sensor-node.yaml", "/etc/sensor-node/config.yaml"}
}

// FindConfig locates a config file. If explicit is non-empty, it must exist.
// Otherwise, searches DefaultSearchPaths and returns the first that exists,
// or "" when there is none (defaults apply).
func FindConfig(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}
	for _, p := range DefaultSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", nil
}

// Config holds all sensor-node configuration.
type Config struct {
	Device  string `yaml:"device"`
	Version string `yaml:"version"`

	MQTT   MQTTConfig   `yaml:"mqtt"`
	GPIO   GPIOConfig   `yaml:"gpio"`
	Link   LinkConfig   `yaml:"link"`
	Sensor SensorConfig `yaml:"sensor"`
	Alarm  AlarmConfig  `yaml:"alarm"`
	HTTP   HTTPConfig   `yaml:"http"`

	Tick      time.Duration `yaml:"tick"`
	Heartbeat time.Duration `yaml:"heartbeat"`

	// RTCPath is a sysfs hardware clock; empty uses the system clock.
	RTCPath string `yaml:"rtc_path"`

	// BootCountFile persists the boot counter.
	BootCountFile string `yaml:"boot_count_file"`

	// EnvFile holds secrets in KEY=value form. Missing is not an error.
	EnvFile string `yaml:"env_file"`
}

// MQTTConfig configures the session.
type MQTTConfig struct {
	Broker       string        `yaml:"broker"`
	BaseTopic    string        `yaml:"base_topic"` // default sensors/<device>
	Username     string        `yaml:"username"`
	Password     string        `yaml:"password"`
	WSBroker     string        `yaml:"ws_broker"` // browser live view; "=broker" derives it, "off" disables
	SessionRetry time.Duration `yaml:"session_retry"`
}

// InputConfig configures one debounced input.
type InputConfig struct {
	Pin       int   `yaml:"pin"`
	ActiveLow *bool `yaml:"active_low"` // default true
}

// GPIOConfig configures the GPIO lines.
type GPIOConfig struct {
	Chip     string        `yaml:"chip"`
	Inputs   []InputConfig `yaml:"inputs"`
	LEDPin   int           `yaml:"led_pin"` // -1 disables the LED
	Debounce time.Duration `yaml:"debounce"`
}

// LinkConfig configures the link-layer provider.
type LinkConfig struct {
	EnvFile   string        `yaml:"env_file"`
	Interface string        `yaml:"interface"`
	Retry     time.Duration `yaml:"retry"`
	Startup   time.Duration `yaml:"startup_wait"`
}

// SensorConfig configures the temperature/humidity sensor.
type SensorConfig struct {
	Device   string        `yaml:"device"` // IIO directory; empty disables
	Interval time.Duration `yaml:"interval"`
}

// AlarmConfig sets optional temperature thresholds.
type AlarmConfig struct {
	LowC  *float64 `yaml:"low_c"`
	HighC *float64 `yaml:"high_c"`
}

// HTTPConfig configures the status server.
type HTTPConfig struct {
	Addr string `yaml:"addr"` // empty disables
}

// Default returns a default configuration.
func Default() *Config {
	return &Config{
		Device:  "sensor-node",
		Version: "dev",
		MQTT: MQTTConfig{
			Broker:       "tcp://localhost:1883",
			WSBroker:     "=broker",
			SessionRetry: conn.SessionRetryInterval,
		},
		GPIO: GPIOConfig{
			Chip:     gpio.DefaultChip,
			LEDPin:   -1,
			Debounce: input.DefaultDebounce,
		},
		Link: LinkConfig{
			EnvFile:   link.DefaultEnvFile,
			Interface: "wlan0",
			Retry:     conn.LinkRetryInterval,
			Startup:   30 * time.Second,
		},
		Sensor: SensorConfig{
			Device:   sensor.DefaultDevice,
			Interval: 30 * time.Second,
		},
		HTTP:          HTTPConfig{Addr: ":80"},
		Tick:          10 * time.Millisecond,
		Heartbeat:     60 * time.Second,
		BootCountFile: "/var/lib/sensor-node/boot_count",
		EnvFile:       ".env",
	}
}

// Load reads configuration from a YAML file over Default. An empty path
// yields the defaults. Broker credentials from the environment (after
// loading EnvFile) override the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		// Expand environment variables
		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", filepath.Base(path), err)
		}
	}

	if err := loadEnvFile(cfg.EnvFile); err != nil {
		return nil, err
	}
	if v := os.Getenv(EnvUsername); v != "" {
		cfg.MQTT.Username = v
	}
	if v := os.Getenv(EnvPassword); v != "" {
		cfg.MQTT.Password = v
	}

	if cfg.MQTT.BaseTopic == "" {
		cfg.MQTT.BaseTopic = "sensors/" + cfg.Device
	}
	return cfg, nil
}

// loadEnvFile adds variables from path to the process environment without
// overriding ones already set.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load env file: %w", err)
	}
	return nil
}

// Channels converts the input list for the debounced input monitor.
func (c *Config) Channels() []input.Channel {
	out := make([]input.Channel, 0, len(c.GPIO.Inputs))
	for _, in := range c.GPIO.Inputs {
		pol := input.ActiveLow
		if in.ActiveLow != nil && !*in.ActiveLow {
			pol = input.ActiveHigh
		}
		out = append(out, input.Channel{Pin: in.Pin, Polarity: pol})
	}
	return out
}

// Validate checks the configuration for values the daemon cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Device == "" {
		errs = append(errs, errors.New("device name is empty"))
	}
	if c.MQTT.Broker == "" {
		errs = append(errs, errors.New("mqtt broker is empty"))
	}
	if len(c.GPIO.Inputs) > input.MaxChannels {
		errs = append(errs, fmt.Errorf("%d inputs configured, at most %d supported", len(c.GPIO.Inputs), input.MaxChannels))
	}
	seen := make(map[int]bool)
	for _, in := range c.GPIO.Inputs {
		if in.Pin < 0 {
			errs = append(errs, fmt.Errorf("input pin %d is negative", in.Pin))
		}
		if seen[in.Pin] {
			errs = append(errs, fmt.Errorf("input pin %d configured twice", in.Pin))
		}
		seen[in.Pin] = true
	}
	if c.GPIO.LEDPin >= 0 && seen[c.GPIO.LEDPin] {
		errs = append(errs, fmt.Errorf("led pin %d is also an input", c.GPIO.LEDPin))
	}
	if c.Tick <= 0 {
		errs = append(errs, errors.New("tick must be positive"))
	}
	if c.GPIO.Debounce <= 0 {
		errs = append(errs, errors.New("debounce must be positive"))
	}
	if c.Tick > 0 && c.GPIO.Debounce > 0 && c.Tick > c.GPIO.Debounce {
		errs = append(errs, fmt.Errorf("tick %s is longer than debounce %s", c.Tick, c.GPIO.Debounce))
	}
	if c.Link.Retry <= 0 || c.MQTT.SessionRetry <= 0 {
		errs = append(errs, errors.New("retry intervals must be positive"))
	}
	if c.Heartbeat < 0 || c.Sensor.Interval < 0 {
		errs = append(errs, errors.New("heartbeat and sensor intervals must not be negative"))
	}
	if c.Alarm.LowC != nil && c.Alarm.HighC != nil && *c.Alarm.LowC >= *c.Alarm.HighC {
		errs = append(errs, fmt.Errorf("alarm low %.1f must be below high %.1f", *c.Alarm.LowC, *c.Alarm.HighC))
	}
	return errors.Join(errs...)
}
