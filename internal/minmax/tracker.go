// Package minmax tracks the daily temperature minimum and maximum.
//
// The day rolls over at ResetHourUTC. A reading resets the record when it is
// taken at or after that hour on a calendar date (UTC) different from the date
// of the previous reset. Readings without a valid timestamp are discarded.
package minmax

import (
	"log"
	"math"
	"time"
)

// ResetHourUTC is the hour of day (UTC) from which a new date resets the record.
const ResetHourUTC = 10

// Outcome describes what Update did with a reading.
type Outcome int

const (
	// Skipped means the reading had no valid timestamp and was discarded.
	Skipped Outcome = iota
	// Reset means the record was reseeded from the reading.
	Reset
	// Extended means the reading was folded into the current record.
	Extended
)

func (o Outcome) String() string {
	switch o {
	case Reset:
		return "reset"
	case Extended:
		return "extended"
	default:
		return "skipped"
	}
}

// Stats is an immutable snapshot of the daily record.
type Stats struct {
	Min       float64 // NaN until the first accepted reading
	Max       float64 // NaN until the first accepted reading
	ResetTime int64   // epoch seconds of the last reset, 0 if none yet
	DateKey   int     // yyyymmdd of the last reset, 0 if none yet
}

// Valid reports whether the record holds at least one reading.
func (s Stats) Valid() bool {
	return !math.IsNaN(s.Min) && !math.IsNaN(s.Max)
}

// Tracker holds the daily record. It is not safe for concurrent use.
type Tracker struct {
	min       float64
	max       float64
	resetTime int64
	resetDate int
}

// NewTracker returns a tracker with undefined extrema.
func NewTracker() *Tracker {
	return &Tracker{
		min: math.NaN(),
		max: math.NaN(),
	}
}

// Update folds a reading taken at epoch (seconds, UTC) into the record.
func (t *Tracker) Update(tempC float64, epoch int64) Outcome {
	if epoch <= 0 {
		log.Printf("minmax: invalid timestamp %d, skipping reading", epoch)
		return Skipped
	}

	ts := time.Unix(epoch, 0).UTC()
	today := DateKey(ts)

	if ts.Hour() >= ResetHourUTC && today != t.resetDate {
		t.min = tempC
		t.max = tempC
		t.resetTime = epoch
		t.resetDate = today
		log.Printf("minmax: reset for %d, min=max=%.1f", today, tempC)
		return Reset
	}

	if math.IsNaN(t.min) || tempC < t.min {
		t.min = tempC
	}
	if math.IsNaN(t.max) || tempC > t.max {
		t.max = tempC
	}
	return Extended
}

// Stats returns a snapshot of the record.
func (t *Tracker) Stats() Stats {
	return Stats{
		Min:       t.min,
		Max:       t.max,
		ResetTime: t.resetTime,
		DateKey:   t.resetDate,
	}
}

// IsNewDay reports whether epoch falls on a date other than the last reset.
func (t *Tracker) IsNewDay(epoch int64) bool {
	if epoch <= 0 {
		return false
	}
	return DateKey(time.Unix(epoch, 0).UTC()) != t.resetDate
}

// WasResetToday reports whether the last reset happened on epoch's date.
func (t *Tracker) WasResetToday(epoch int64) bool {
	if epoch <= 0 {
		return false
	}
	return DateKey(time.Unix(epoch, 0).UTC()) == t.resetDate
}

// DateKey returns year*10000 + month*100 + day for ts.
func DateKey(ts time.Time) int {
	y, m, d := ts.Date()
	return y*10000 + int(m)*100 + d
}
