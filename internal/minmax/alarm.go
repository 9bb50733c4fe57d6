package minmax

// AlarmType is the side of the band a reading fell out of.
type AlarmType string

const (
	AlarmLow  AlarmType = "LOW"
	AlarmHigh AlarmType = "HIGH"
)

// Alarm is raised once when a reading leaves the configured band.
type Alarm struct {
	Type       AlarmType
	TempC      float64
	ThresholdC float64
}

// Thresholds fires an Alarm on the first reading outside [Low, High] and
// re-arms once a reading is back inside. A nil bound disables that side.
type Thresholds struct {
	Low  *float64
	High *float64

	active AlarmType
}

// Check evaluates a reading and returns an alarm on entry into a band.
func (th *Thresholds) Check(tempC float64) *Alarm {
	var side AlarmType
	var limit float64
	switch {
	case th.Low != nil && tempC < *th.Low:
		side, limit = AlarmLow, *th.Low
	case th.High != nil && tempC > *th.High:
		side, limit = AlarmHigh, *th.High
	}

	if side == th.active {
		return nil
	}
	th.active = side
	if side == "" {
		return nil
	}
	return &Alarm{Type: side, TempC: tempC, ThresholdC: limit}
}

// Active returns the band currently alarmed, or "" when in range.
func (th *Thresholds) Active() AlarmType {
	return th.active
}
