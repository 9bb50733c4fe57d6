// Package sensor reads temperature and relative humidity.
//
// The real reader uses the Linux IIO dht11 driver, which also serves DHT22
// parts. Values are exposed in sysfs as milli-units.
package sensor

import (
	"errors"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// MinInterval is the shortest interval between two reads the part supports.
const MinInterval = 2 * time.Second

// DefaultDevice is the first IIO device, where a lone DHT overlay lands.
const DefaultDevice = "/sys/bus/iio/devices/iio:device0"

const (
	tempFile     = "in_temp_input"
	humidityFile = "in_humidityrelative_input"
	readAttempts = 3
)

// ErrTooSoon is returned when a read is requested within MinInterval of the
// previous one.
var ErrTooSoon = errors.New("sensor: read interval too short")

// Reading is one sample.
type Reading struct {
	TempC  float64
	HumPct float64
}

// Reader reads the sensor.
type Reader interface {
	Read(now time.Time) (Reading, error)
}

// IIOReader reads a DHT through its IIO sysfs directory.
type IIOReader struct {
	Dir string

	lastRead time.Time
}

// NewIIOReader creates a reader for the IIO device directory dir.
func NewIIOReader(dir string) *IIOReader {
	if dir == "" {
		dir = DefaultDevice
	}
	return &IIOReader{Dir: dir}
}

// Read samples temperature then humidity. The driver fails individual reads
// on checksum or timing errors, so each value is retried a few times.
func (r *IIOReader) Read(now time.Time) (Reading, error) {
	if !r.lastRead.IsZero() && now.Sub(r.lastRead) < MinInterval {
		return Reading{}, ErrTooSoon
	}
	r.lastRead = now

	t, err := readMilli(filepath.Join(r.Dir, tempFile))
	if err != nil {
		return Reading{}, fmt.Errorf("read temperature: %w", err)
	}
	h, err := readMilli(filepath.Join(r.Dir, humidityFile))
	if err != nil {
		return Reading{}, fmt.Errorf("read humidity: %w", err)
	}
	return Reading{TempC: t, HumPct: h}, nil
}

func readMilli(path string) (float64, error) {
	var lastErr error
	for i := 0; i < readAttempts; i++ {
		data, err := os.ReadFile(path)
		if err != nil {
			lastErr = err
			continue
		}
		v, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
		}
		return float64(v) / 1000, nil
	}
	log.Printf("sensor: %s failed after %d attempts", filepath.Base(path), readAttempts)
	return 0, lastErr
}

// FakeReader is a Reader test double returning scripted results.
type FakeReader struct {
	// Readings are returned in order; the last one repeats.
	Readings []Reading

	// Err, if set, is returned instead of a reading.
	Err error

	// Reads counts Read calls.
	Reads int

	index int
}

// Read returns the next scripted reading.
func (f *FakeReader) Read(time.Time) (Reading, error) {
	f.Reads++
	if f.Err != nil {
		return Reading{}, f.Err
	}
	if len(f.Readings) == 0 {
		return Reading{TempC: math.NaN(), HumPct: math.NaN()}, errors.New("no readings configured")
	}
	r := f.Readings[f.index]
	if f.index < len(f.Readings)-1 {
		f.index++
	}
	return r, nil
}
