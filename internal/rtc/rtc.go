// Package rtc provides epoch timestamps for readings. A source returns 0 when
// it has no trustworthy time, and callers must skip time-dependent work then.
package rtc

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// Plausible clock range. A board without a battery-backed clock boots at
// 1970 until NTP syncs.
var (
	minValid = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC).Unix()
	maxValid = time.Date(2100, 12, 31, 23, 59, 59, 0, time.UTC).Unix()
)

// DefaultSysfs is the kernel's view of the first hardware RTC.
const DefaultSysfs = "/sys/class/rtc/rtc0/since_epoch"

const sysfsAttempts = 3

// Source returns the current time in epoch seconds, or 0 if unavailable.
type Source interface {
	Now() int64
}

// Valid reports whether epoch lies in the plausible range.
func Valid(epoch int64) bool {
	return epoch >= minValid && epoch <= maxValid
}

// System reads the system clock.
type System struct {
	now func() time.Time
}

// NewSystem returns a Source backed by time.Now.
func NewSystem() *System {
	return &System{now: time.Now}
}

// Now returns the system time, or 0 if the clock is clearly unset.
func (s *System) Now() int64 {
	t := s.now().Unix()
	if !Valid(t) {
		return 0
	}
	return t
}

// Sysfs reads a hardware RTC through sysfs, falling back to Fallback when the
// device is absent or returns an implausible value.
type Sysfs struct {
	Path     string
	Fallback Source
}

// NewSysfs returns a Sysfs source for path with the system clock as fallback.
func NewSysfs(path string) *Sysfs {
	if path == "" {
		path = DefaultSysfs
	}
	return &Sysfs{Path: path, Fallback: NewSystem()}
}

// Now returns the hardware clock time.
func (s *Sysfs) Now() int64 {
	t, err := s.read()
	if err == nil {
		return t
	}
	log.Printf("rtc: %v", err)
	if s.Fallback != nil {
		return s.Fallback.Now()
	}
	return 0
}

func (s *Sysfs) read() (int64, error) {
	var lastErr error
	for i := 0; i < sysfsAttempts; i++ {
		data, err := os.ReadFile(s.Path)
		if err != nil {
			lastErr = err
			continue
		}
		t, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("parse %s: %w", s.Path, err)
		}
		if !Valid(t) {
			return 0, fmt.Errorf("implausible hardware clock value %d", t)
		}
		return t, nil
	}
	return 0, fmt.Errorf("read %s: %w", s.Path, lastErr)
}

// Fake is a Source returning Epoch.
type Fake struct {
	Epoch int64
}

// Now returns Epoch.
func (f *Fake) Now() int64 {
	return f.Epoch
}
