package models

import "time"

// Desired relay states for a schedule rule.
const (
	StateOn  = "on"
	StateOff = "off"
)

// ScheduleRule fires a relay command at a 12-hour wall-clock time on the given weekdays.
type ScheduleRule struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Hour            int       `json:"hour"`     // 1-12
	Minute          int       `json:"minute"`   // 0-59
	AmPm            string    `json:"ampm"`     // AM | PM
	RelayID         int       `json:"relay_id"` // 1-based
	DesiredState    string    `json:"state"`    // on | off
	DurationSeconds int       `json:"duration"` // auto-off delay, on rules only
	DaysOfWeek      []string  `json:"days"`     // lower-case full weekday names
	Enabled         bool      `json:"enabled"`
	CreatedAt       time.Time `json:"created_at"`
}

// Hour24 converts the rule's 12-hour clock to 0-23.
func (r ScheduleRule) Hour24() int {
	h := r.Hour
	switch {
	case r.AmPm == "AM" && h == 12:
		return 0
	case r.AmPm == "PM" && h != 12:
		return h + 12
	}
	return h
}

// RunsOn reports whether the rule is active on the given lower-case weekday.
func (r ScheduleRule) RunsOn(day string) bool {
	for _, d := range r.DaysOfWeek {
		if d == day {
			return true
		}
	}
	return false
}

// ArmedTimer is a pending auto-off command, persisted so a restart can re-arm it.
type ArmedTimer struct {
	Key      string    `json:"key"`
	RuleID   string    `json:"rule_id,omitempty"`
	RelayID  int       `json:"relay_id"`
	Deadline time.Time `json:"deadline"`
}
